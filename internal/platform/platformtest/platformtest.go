// Package platformtest provides in-memory platform collaborators for tests.
package platformtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/keshon/warden/internal/platform"
)

type Call struct {
	Kind    string
	Scope   int64
	Target  int64
	Millis  int64
	Seconds int
	Reason  string
}

// Moderator records every moderation call.
type Moderator struct {
	mu    sync.Mutex
	calls []Call
}

func (m *Moderator) record(c Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

func (m *Moderator) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

func (m *Moderator) TimeoutMember(_ context.Context, scopeID, target int64, millis int64, reason string) {
	m.record(Call{Kind: "timeout", Scope: scopeID, Target: target, Millis: millis, Reason: reason})
}

func (m *Moderator) BanMember(_ context.Context, scopeID, target int64, reason string) {
	m.record(Call{Kind: "ban", Scope: scopeID, Target: target, Reason: reason})
}

func (m *Moderator) UnbanMember(_ context.Context, scopeID, subjectID int64) {
	m.record(Call{Kind: "unban", Scope: scopeID, Target: subjectID})
}

func (m *Moderator) SetSlowMode(_ context.Context, channelID int64, seconds int) {
	m.record(Call{Kind: "slowmode", Target: channelID, Seconds: seconds})
}

// Permissions grants capabilities per member ID.
type Permissions map[int64][]platform.Capability

func (p Permissions) HasCapability(m platform.Member, c platform.Capability) bool {
	for _, have := range p[m.ID] {
		if have == c {
			return true
		}
	}
	return false
}

// Localizer renders "key" or "key: arg1 | arg2" so tests can assert on keys.
type Localizer struct{}

func (Localizer) Lookup(_ int64, key string, args ...any) string {
	if len(args) == 0 {
		return key
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return key + ": " + strings.Join(parts, " | ")
}

// Points keeps rewards in memory.
type Points struct {
	mu      sync.Mutex
	rewards map[int64]int64
	Err     error
}

func (p *Points) AddReward(_ context.Context, userID int64, amount int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	if p.rewards == nil {
		p.rewards = map[int64]int64{}
	}
	p.rewards[userID] += amount
	return nil
}

func (p *Points) Reward(userID int64) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rewards[userID]
}

var (
	_ platform.Moderator   = (*Moderator)(nil)
	_ platform.Permissions = Permissions(nil)
	_ platform.Localizer   = Localizer{}
	_ platform.Points      = (*Points)(nil)
)
