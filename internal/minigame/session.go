// Package minigame holds the per-player mini-games and the registry that keeps
// each player to one game at a time.
package minigame

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Variant names a game type.
type Variant string

const VariantOneATwoB Variant = "one_a_two_b"

var (
	ErrGuessRejected  = errors.New("guess is not made of unique digits")
	ErrAlreadyPlaying = errors.New("already playing a game")
	ErrNotPlaying     = errors.New("not playing a game")
	ErrUnknownVariant = errors.New("unknown game variant")
)

// AlreadyPlayingError carries the game the player is already in.
type AlreadyPlayingError struct {
	Variant Variant
}

func (e *AlreadyPlayingError) Error() string {
	return fmt.Sprintf("already playing %s", e.Variant)
}

func (e *AlreadyPlayingError) Is(target error) bool {
	return target == ErrAlreadyPlaying
}

// Session is an active game. The set of implementations is closed to this
// package.
type Session interface {
	ID() uuid.UUID
	OwnerID() int64
	Variant() Variant
	StartedAt() time.Time
	sealed()
}
