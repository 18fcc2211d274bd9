package minigame

import (
	"fmt"
	"sync"
)

// Factory builds a fresh session of one variant for an owner.
type Factory func(ownerID int64) Session

// Registry maps each player to at most one active session across all variants.
type Registry struct {
	sessions  sync.Map // int64 -> Session
	factories map[Variant]Factory
}

func NewRegistry(factories map[Variant]Factory) *Registry {
	return &Registry{factories: factories}
}

// Start creates a session unless the owner already has one of any variant.
// Two racing starts for the same owner cannot both succeed.
func (r *Registry) Start(ownerID int64, variant Variant) (Session, error) {
	if existing, ok := r.Get(ownerID); ok {
		return nil, &AlreadyPlayingError{Variant: existing.Variant()}
	}

	factory, ok := r.factories[variant]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariant, variant)
	}

	session := factory(ownerID)
	if actual, loaded := r.sessions.LoadOrStore(ownerID, session); loaded {
		return nil, &AlreadyPlayingError{Variant: actual.(Session).Variant()}
	}
	return session, nil
}

func (r *Registry) Get(ownerID int64) (Session, bool) {
	v, ok := r.sessions.Load(ownerID)
	if !ok {
		return nil, false
	}
	return v.(Session), true
}

// End drops the owner's session, if any.
func (r *Registry) End(ownerID int64) {
	r.sessions.Delete(ownerID)
}

// endIf drops the owner's session only if it is still s.
func (r *Registry) endIf(ownerID int64, s Session) bool {
	return r.sessions.CompareAndDelete(ownerID, s)
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	n := 0
	r.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
