package moderation

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/warden/internal/duration"
	"github.com/keshon/warden/internal/platform"
)

// 2023-11-14 22:13:20 UTC, hour 472222
var testNow = time.Unix(1_700_000_000, 0)

func newTestScheduler(store *memoryStore, mod *recordingModerator, clock *fakeClock) *Scheduler {
	return NewScheduler(SchedulerConfig{
		Store:     store,
		Moderator: mod,
		Clock:     clock.Now,
	})
}

func TestRequestTempBanValidation(t *testing.T) {
	target := platform.Member{ID: 5, ScopeID: 1}
	tests := []struct {
		name    string
		req     TempBanRequest
		wantErr error
	}{
		{"no permission", TempBanRequest{Target: target, Magnitude: 1, Unit: duration.Day}, ErrNoPermission},
		{"owner", TempBanRequest{RequesterCanBan: true, Target: platform.Member{ID: 1, IsOwner: true}, Magnitude: 1, Unit: duration.Day}, ErrInvalidTarget},
		{"zero", TempBanRequest{RequesterCanBan: true, Target: target, Magnitude: 0, Unit: duration.Day}, ErrInvalidDuration},
		{"under an hour", TempBanRequest{RequesterCanBan: true, Target: target, Magnitude: 0.02, Unit: duration.Hour}, ErrInvalidDuration},
		{"nan", TempBanRequest{RequesterCanBan: true, Target: target, Magnitude: math.NaN(), Unit: duration.Hour}, ErrInvalidDuration},
		{"seconds under an hour", TempBanRequest{RequesterCanBan: true, Target: target, Magnitude: 30, Unit: duration.Second}, ErrInvalidDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler(&memoryStore{}, &recordingModerator{}, newFakeClock(testNow))
			_, err := s.RequestTempBan(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, s.Pending())
		})
	}
}

func TestRequestTempBanHalfDay(t *testing.T) {
	clock := newFakeClock(testNow)
	mod := &recordingModerator{}
	s := newTestScheduler(&memoryStore{}, mod, clock)

	res, err := s.RequestTempBan(context.Background(), TempBanRequest{
		RequesterCanBan: true,
		Target:          platform.Member{ID: 5, ScopeID: 1},
		Magnitude:       0.5,
		Unit:            duration.Day,
		ScopeID:         1,
		Reason:          "raid",
	})
	require.NoError(t, err)

	nowHours := testNow.Unix() / 3600
	assert.Equal(t, int64(12), res.DurationHours)
	assert.Equal(t, "0.5 day", res.Label)
	assert.Equal(t, testNow.Unix()+12*3600, res.UnbanAt)
	assert.Equal(t, PendingSanction{SubjectID: 5, ExpiryEpochHours: nowHours + 12, ScopeID: 1}, res.Sanction)
	assert.Equal(t, []PendingSanction{res.Sanction}, s.Pending())

	// recording does not ban; the caller does that after replying
	assert.Empty(t, mod.Calls())
	s.IssueBan(context.Background(), res, "raid")
	assert.Equal(t, []moderatorCall{{Kind: "ban", Scope: 1, Target: 5, Reason: "raid\n0.5 day"}}, mod.Calls())
}

func TestRequestTempBanInSeconds(t *testing.T) {
	s := newTestScheduler(&memoryStore{}, &recordingModerator{}, newFakeClock(testNow))

	res, err := s.RequestTempBan(context.Background(), TempBanRequest{RequesterCanBan: true, Target: platform.Member{ID: 5}, Magnitude: 3600, Unit: duration.Second, ScopeID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.DurationHours)
	assert.Equal(t, int64(472223), res.Sanction.ExpiryEpochHours)
	assert.Equal(t, "3600 second", res.Label)
}

func TestRequestTempBanSaturatesExpiry(t *testing.T) {
	s := newTestScheduler(&memoryStore{}, &recordingModerator{}, newFakeClock(testNow))

	res, err := s.RequestTempBan(context.Background(), TempBanRequest{
		RequesterCanBan: true,
		Target:          platform.Member{ID: 5},
		Magnitude:       1e300,
		Unit:            duration.Century,
		ScopeID:         1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), res.Sanction.ExpiryEpochHours)
	assert.Equal(t, int64(math.MaxInt64), res.UnbanAt)
}

func TestRebanReplacesPendingEntry(t *testing.T) {
	clock := newFakeClock(testNow)
	s := newTestScheduler(&memoryStore{}, &recordingModerator{}, clock)
	ctx := context.Background()
	req := TempBanRequest{RequesterCanBan: true, Target: platform.Member{ID: 5}, Magnitude: 1, Unit: duration.Day, ScopeID: 1}

	_, err := s.RequestTempBan(ctx, req)
	require.NoError(t, err)
	req.Magnitude = 2
	second, err := s.RequestTempBan(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, []PendingSanction{second.Sanction}, s.Pending())
}

func TestSweepRemovesExactlyExpired(t *testing.T) {
	s := newTestScheduler(&memoryStore{}, &recordingModerator{}, newFakeClock(testNow))

	entries := []PendingSanction{
		{SubjectID: 1, ExpiryEpochHours: 100, ScopeID: 1},
		{SubjectID: 2, ExpiryEpochHours: 101, ScopeID: 1},
		{SubjectID: 3, ExpiryEpochHours: 99, ScopeID: 2},
		{SubjectID: 4, ExpiryEpochHours: math.MaxInt64, ScopeID: 2},
	}
	rand.Shuffle(len(entries), func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })
	for _, e := range entries {
		s.insert(e)
	}

	lifted := s.Sweep(100)
	assert.Equal(t, []PendingSanction{
		{SubjectID: 1, ExpiryEpochHours: 100, ScopeID: 1},
		{SubjectID: 3, ExpiryEpochHours: 99, ScopeID: 2},
	}, lifted)
	assert.Equal(t, []PendingSanction{
		{SubjectID: 2, ExpiryEpochHours: 101, ScopeID: 1},
		{SubjectID: 4, ExpiryEpochHours: math.MaxInt64, ScopeID: 2},
	}, s.Pending())

	assert.Empty(t, s.Sweep(100))
}

func TestSweepWithConcurrentInserts(t *testing.T) {
	s := newTestScheduler(&memoryStore{}, &recordingModerator{}, newFakeClock(testNow))
	const sweepHour = 1000

	// expired entries present before the sweep
	for i := int64(0); i < 500; i++ {
		s.insert(PendingSanction{SubjectID: i, ExpiryEpochHours: sweepHour - i%10, ScopeID: 1})
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int64(0); i < 500; i++ {
			s.insert(PendingSanction{SubjectID: i, ExpiryEpochHours: sweepHour + 1 + i%10, ScopeID: 2})
		}
	}()

	var lifted []PendingSanction
	var mu sync.Mutex
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := s.Sweep(sweepHour)
			mu.Lock()
			lifted = append(lifted, got...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	// every expired entry was lifted exactly once across racing sweeps
	assert.Len(t, lifted, 500)
	seen := map[int64]bool{}
	for _, p := range lifted {
		assert.Equal(t, int64(1), p.ScopeID)
		assert.False(t, seen[p.SubjectID])
		seen[p.SubjectID] = true
	}

	remaining := s.Pending()
	assert.Len(t, remaining, 500)
	for _, p := range remaining {
		assert.Equal(t, int64(2), p.ScopeID)
		assert.Greater(t, p.ExpiryEpochHours, int64(sweepHour))
	}
}

func TestRunSweepUnbansAndSaves(t *testing.T) {
	clock := newFakeClock(testNow)
	store := &memoryStore{}
	mod := &recordingModerator{}
	s := newTestScheduler(store, mod, clock)
	ctx := context.Background()

	res, err := s.RequestTempBan(ctx, TempBanRequest{RequesterCanBan: true, Target: platform.Member{ID: 9}, Magnitude: 2, Unit: duration.Hour, ScopeID: 3})
	require.NoError(t, err)

	clock.Advance(time.Hour)
	assert.Empty(t, s.RunSweep(ctx))

	clock.Advance(time.Hour)
	assert.Equal(t, []PendingSanction{res.Sanction}, s.RunSweep(ctx))
	assert.Equal(t, []moderatorCall{{Kind: "unban", Scope: 3, Target: 9}}, mod.Calls())
	assert.Empty(t, store.Saved())
	assert.Equal(t, 1, store.saves)
}

func TestRunSweepWithCancelledContextStillUnbans(t *testing.T) {
	clock := newFakeClock(testNow)
	store := &memoryStore{}
	mod := &recordingModerator{}
	s := newTestScheduler(store, mod, clock)

	for i := int64(1); i <= 50; i++ {
		_, err := s.RequestTempBan(context.Background(), TempBanRequest{RequesterCanBan: true, Target: platform.Member{ID: i}, Magnitude: 1, Unit: duration.Hour, ScopeID: 3})
		require.NoError(t, err)
	}
	clock.Advance(3 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	lifted := s.RunSweep(ctx)

	require.Len(t, lifted, 50)
	assert.Len(t, mod.Calls(), 50)
	assert.Empty(t, s.Pending())
	assert.Equal(t, 1, store.saves)
	assert.NoError(t, s.LastSaveError())
}

func TestPardonIsIdempotent(t *testing.T) {
	s := newTestScheduler(&memoryStore{}, &recordingModerator{}, newFakeClock(testNow))
	s.insert(PendingSanction{SubjectID: 1, ExpiryEpochHours: 10, ScopeID: 1})

	assert.True(t, s.Pardon(1, 1))
	assert.False(t, s.Pardon(1, 1))
	assert.False(t, s.Pardon(2, 1))
	assert.Empty(t, s.Sweep(math.MaxInt64))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := &memoryStore{}
	first := newTestScheduler(store, &recordingModerator{}, newFakeClock(testNow))
	want := []PendingSanction{
		{SubjectID: 3, ExpiryEpochHours: 500_000, ScopeID: 2},
		{SubjectID: 1, ExpiryEpochHours: math.MaxInt64, ScopeID: 1},
		{SubjectID: 2, ExpiryEpochHours: 600_000, ScopeID: 1},
	}
	for _, p := range want {
		first.insert(p)
	}
	require.NoError(t, first.Save(context.Background()))

	second := newTestScheduler(store, &recordingModerator{}, newFakeClock(testNow))
	require.NoError(t, second.Load(context.Background()))
	assert.ElementsMatch(t, want, second.Pending())
}

func TestLoadFailureIsNotFatal(t *testing.T) {
	store := &memoryStore{loadErr: errDisk}
	s := newTestScheduler(store, &recordingModerator{}, newFakeClock(testNow))

	err := s.Load(context.Background())
	assert.ErrorIs(t, err, ErrStorageLoadFailed)
	assert.ErrorIs(t, err, errDisk)
	assert.Empty(t, s.Pending())
}

func TestLoadSkipsInvalidExpiry(t *testing.T) {
	store := &memoryStore{saved: []PendingSanction{
		{SubjectID: 1, ExpiryEpochHours: 0, ScopeID: 1},
		{SubjectID: 2, ExpiryEpochHours: 10, ScopeID: 1},
	}}
	s := newTestScheduler(store, &recordingModerator{}, newFakeClock(testNow))
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, []PendingSanction{{SubjectID: 2, ExpiryEpochHours: 10, ScopeID: 1}}, s.Pending())
}

func TestSaveFailureIsReported(t *testing.T) {
	store := &memoryStore{saveErr: errDisk}
	s := newTestScheduler(store, &recordingModerator{}, newFakeClock(testNow))
	s.insert(PendingSanction{SubjectID: 1, ExpiryEpochHours: 10, ScopeID: 1})

	err := s.Save(context.Background())
	assert.ErrorIs(t, err, ErrStorageSaveFailed)
	assert.ErrorIs(t, s.LastSaveError(), ErrStorageSaveFailed)
	assert.True(t, s.dirty.Load())

	store.mu.Lock()
	store.saveErr = nil
	store.mu.Unlock()
	require.NoError(t, s.Save(context.Background()))
	assert.NoError(t, s.LastSaveError())
}

func TestStartLiftsOverdueAndStopFlushes(t *testing.T) {
	nowHours := testNow.Unix() / 3600
	store := &memoryStore{saved: []PendingSanction{
		{SubjectID: 1, ExpiryEpochHours: nowHours - 5, ScopeID: 1},
		{SubjectID: 2, ExpiryEpochHours: nowHours + 5, ScopeID: 1},
	}}
	mod := &recordingModerator{}
	s := NewScheduler(SchedulerConfig{
		Store:            store,
		Moderator:        mod,
		Clock:            newFakeClock(testNow).Now,
		AutosaveInterval: time.Hour,
	})
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	assert.Equal(t, []moderatorCall{{Kind: "unban", Scope: 1, Target: 1}}, mod.Calls())
	assert.ElementsMatch(t, []string{sweepJob, autosaveJob}, s.jobs.List())

	s.insert(PendingSanction{SubjectID: 3, ExpiryEpochHours: nowHours + 1, ScopeID: 4})

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))

	assert.Empty(t, s.jobs.List())
	assert.ElementsMatch(t, []PendingSanction{
		{SubjectID: 2, ExpiryEpochHours: nowHours + 5, ScopeID: 1},
		{SubjectID: 3, ExpiryEpochHours: nowHours + 1, ScopeID: 4},
	}, store.Saved())
}
