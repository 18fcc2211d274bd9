package moderation

import (
	"context"
	"errors"
	"sync"
	"time"
)

type moderatorCall struct {
	Kind    string
	Scope   int64
	Target  int64
	Millis  int64
	Seconds int
	Reason  string
}

type recordingModerator struct {
	mu    sync.Mutex
	calls []moderatorCall
}

func (m *recordingModerator) record(c moderatorCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

func (m *recordingModerator) Calls() []moderatorCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]moderatorCall(nil), m.calls...)
}

func (m *recordingModerator) TimeoutMember(_ context.Context, scopeID, target int64, millis int64, reason string) {
	m.record(moderatorCall{Kind: "timeout", Scope: scopeID, Target: target, Millis: millis, Reason: reason})
}

func (m *recordingModerator) BanMember(_ context.Context, scopeID, target int64, reason string) {
	m.record(moderatorCall{Kind: "ban", Scope: scopeID, Target: target, Reason: reason})
}

func (m *recordingModerator) UnbanMember(_ context.Context, scopeID, subjectID int64) {
	m.record(moderatorCall{Kind: "unban", Scope: scopeID, Target: subjectID})
}

func (m *recordingModerator) SetSlowMode(_ context.Context, channelID int64, seconds int) {
	m.record(moderatorCall{Kind: "slowmode", Target: channelID, Seconds: seconds})
}

type memoryStore struct {
	mu      sync.Mutex
	saved   []PendingSanction
	loadErr error
	saveErr error
	saves   int
}

func (s *memoryStore) LoadSanctions(context.Context) ([]PendingSanction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return append([]PendingSanction(nil), s.saved...), nil
}

func (s *memoryStore) SaveSanctions(_ context.Context, list []PendingSanction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append([]PendingSanction(nil), list...)
	return nil
}

func (s *memoryStore) Saved() []PendingSanction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PendingSanction(nil), s.saved...)
}

var errDisk = errors.New("disk unavailable")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
