package moderation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keshon/warden/internal/duration"
	"github.com/keshon/warden/internal/platform"
	"github.com/keshon/warden/pkg/jobmgr"
)

const (
	sweepJob    = "sanction-sweep"
	autosaveJob = "sanction-autosave"

	secondsPerHour = 60 * 60
)

// TempBanRequest describes a /admin temp_ban invocation.
type TempBanRequest struct {
	RequesterCanBan bool
	Target          platform.Member
	Magnitude       float64
	Unit            duration.Unit
	ScopeID         int64
	Reason          string
}

type TempBanResult struct {
	DurationHours int64
	Label         string
	// UnbanAt is the absolute end of the ban in epoch seconds.
	UnbanAt  int64
	Sanction PendingSanction
}

type SchedulerConfig struct {
	Store     SanctionStore
	Moderator platform.Moderator
	Jobs      *jobmgr.Manager
	// Clock defaults to time.Now.
	Clock func() time.Time
	// AutosaveInterval of zero disables periodic saving.
	AutosaveInterval time.Duration
}

// Scheduler owns the set of pending temporary bans. Handlers insert into it
// while the sweep job removes expired entries; both go through sync.Map so
// work on different subjects never contends on a single lock.
type Scheduler struct {
	pending sync.Map // sanctionKey -> PendingSanction
	dirty   atomic.Bool
	saveMu  sync.Mutex
	lastErr atomic.Pointer[error]

	store     SanctionStore
	moderator platform.Moderator
	jobs      *jobmgr.Manager
	clock     func() time.Time
	autosave  time.Duration
}

func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Jobs == nil {
		cfg.Jobs = jobmgr.NewManager(nil)
	}
	return &Scheduler{
		store:     cfg.Store,
		moderator: cfg.Moderator,
		jobs:      cfg.Jobs,
		clock:     cfg.Clock,
		autosave:  cfg.AutosaveInterval,
	}
}

// CurrentEpochHours returns whole hours elapsed since the Unix epoch.
func (s *Scheduler) CurrentEpochHours() int64 {
	return s.clock().Unix() / secondsPerHour
}

// RequestTempBan validates the request and records the pending unban. Issuing
// the ban itself is left to the caller, after its reply has gone out.
func (s *Scheduler) RequestTempBan(ctx context.Context, req TempBanRequest) (TempBanResult, error) {
	if !req.RequesterCanBan {
		return TempBanResult{}, ErrNoPermission
	}
	if req.Target.IsOwner {
		return TempBanResult{}, ErrInvalidTarget
	}
	if !(req.Magnitude > 0) {
		return TempBanResult{}, ErrInvalidDuration
	}

	hours := duration.Convert(req.Magnitude, req.Unit, duration.Hours)
	if hours < 1 {
		return TempBanResult{}, ErrInvalidDuration
	}

	now := s.clock()
	sanction := PendingSanction{
		SubjectID:        req.Target.ID,
		ExpiryEpochHours: duration.SaturatingAdd(now.Unix()/secondsPerHour, hours),
		ScopeID:          req.ScopeID,
	}
	s.insert(sanction)

	log.Info().
		Int64("scope", sanction.ScopeID).
		Int64("subject", sanction.SubjectID).
		Int64("hours", hours).
		Int64("expiry_hour", sanction.ExpiryEpochHours).
		Msg("temp ban recorded")

	return TempBanResult{
		DurationHours: hours,
		Label:         duration.Label(req.Magnitude, req.Unit),
		UnbanAt:       duration.SaturatingAdd(now.Unix(), saturatingMul(hours, secondsPerHour)),
		Sanction:      sanction,
	}, nil
}

// IssueBan asks the platform to ban the subject of a recorded sanction. The
// reason carries the duration label so the audit log shows how long it lasts.
func (s *Scheduler) IssueBan(ctx context.Context, res TempBanResult, reason string) {
	if reason == "" {
		reason = res.Label
	} else {
		reason = reason + "\n" + res.Label
	}
	s.moderator.BanMember(ctx, res.Sanction.ScopeID, res.Sanction.SubjectID, reason)
}

func (s *Scheduler) insert(p PendingSanction) {
	s.pending.Store(p.key(), p)
	s.dirty.Store(true)
}

// Sweep removes and returns every sanction expiring at or before hour.
// An entry replaced concurrently by a newer ban is left alone.
func (s *Scheduler) Sweep(hour int64) []PendingSanction {
	var lifted []PendingSanction
	s.pending.Range(func(k, v any) bool {
		p := v.(PendingSanction)
		if p.ExpiryEpochHours <= hour && s.pending.CompareAndDelete(k, p) {
			lifted = append(lifted, p)
		}
		return true
	})
	if len(lifted) > 0 {
		s.dirty.Store(true)
	}
	SortSanctions(lifted)
	return lifted
}

// RunSweep lifts everything due at the current hour, asks the platform to unban
// each subject and persists the smaller set. Once an entry leaves the set its
// unban is always issued, even if ctx is already done.
func (s *Scheduler) RunSweep(ctx context.Context) []PendingSanction {
	lifted := s.Sweep(s.CurrentEpochHours())
	if len(lifted) == 0 {
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	for _, p := range lifted {
		log.Info().Int64("scope", p.ScopeID).Int64("subject", p.SubjectID).Msg("lifting temp ban")
		s.moderator.UnbanMember(ctx, p.ScopeID, p.SubjectID)
	}

	if err := s.Save(ctx); err != nil {
		log.Error().Err(err).Msg("save after sweep failed")
	}
	return lifted
}

// Pardon drops a pending sanction, e.g. after a manual unban. Returns false if
// there was nothing to drop.
func (s *Scheduler) Pardon(scopeID, subjectID int64) bool {
	_, ok := s.pending.LoadAndDelete(sanctionKey{scope: scopeID, subject: subjectID})
	if ok {
		s.dirty.Store(true)
		log.Info().Int64("scope", scopeID).Int64("subject", subjectID).Msg("temp ban pardoned")
	}
	return ok
}

// Pending returns a sorted snapshot of the pending set.
func (s *Scheduler) Pending() []PendingSanction {
	var out []PendingSanction
	s.pending.Range(func(_, v any) bool {
		out = append(out, v.(PendingSanction))
		return true
	})
	SortSanctions(out)
	return out
}

// Load merges the stored set into memory. A missing or unreadable store is not
// fatal: the error is logged and returned, and the scheduler keeps what it has.
func (s *Scheduler) Load(ctx context.Context) error {
	list, err := s.store.LoadSanctions(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrStorageLoadFailed, err)
		log.Warn().Err(err).Msg("starting with an empty sanction set")
		return err
	}

	loaded := 0
	for _, p := range list {
		if p.ExpiryEpochHours <= 0 {
			log.Warn().Int64("scope", p.ScopeID).Int64("subject", p.SubjectID).Msg("skipping sanction with invalid expiry")
			continue
		}
		s.pending.Store(p.key(), p)
		loaded++
	}
	log.Info().Int("count", loaded).Msg("pending sanctions loaded")
	return nil
}

// Save writes the current set to the store.
func (s *Scheduler) Save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.dirty.Store(false)
	if err := s.store.SaveSanctions(ctx, s.Pending()); err != nil {
		s.dirty.Store(true)
		err = fmt.Errorf("%w: %w", ErrStorageSaveFailed, err)
		s.lastErr.Store(&err)
		return err
	}
	s.lastErr.Store(nil)
	return nil
}

// LastSaveError reports the outcome of the most recent save, nil if it worked.
func (s *Scheduler) LastSaveError() error {
	if p := s.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Start loads the stored set, lifts whatever expired while the process was
// down and schedules the hourly sweep and the autosave job.
func (s *Scheduler) Start(ctx context.Context) error {
	_ = s.Load(ctx)
	s.RunSweep(ctx)

	if err := s.jobs.StartAsync(ctx, sweepJob, s.sweepLoop); err != nil {
		return err
	}
	if s.autosave > 0 {
		if err := s.jobs.StartAsync(ctx, autosaveJob, s.autosaveLoop); err != nil {
			return err
		}
	}
	return nil
}

// Stop flushes the set to the store, then stops the background jobs and waits
// for them so no sweep races the final state.
func (s *Scheduler) Stop(ctx context.Context) error {
	saveErr := s.Save(ctx)
	if saveErr != nil {
		log.Error().Err(saveErr).Msg("final sanction save failed")
	}

	for _, name := range []string{sweepJob, autosaveJob} {
		if err := s.jobs.StopWait(ctx, name); err != nil && !errors.Is(err, jobmgr.ErrNotRunning) {
			return err
		}
	}

	// a sweep that was mid-flight may have changed the set after the first save
	if s.dirty.Load() {
		return s.Save(ctx)
	}
	return saveErr
}

func (s *Scheduler) sweepLoop(ctx context.Context) error {
	for {
		now := s.clock()
		wait := now.Truncate(time.Hour).Add(time.Hour).Sub(now)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			if lifted := s.RunSweep(ctx); len(lifted) > 0 {
				log.Info().Int("lifted", len(lifted)).Msg("hourly sweep finished")
			}
		}
	}
}

func (s *Scheduler) autosaveLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.autosave)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !s.dirty.Load() {
				continue
			}
			if err := s.Save(ctx); err != nil {
				log.Error().Err(err).Msg("sanction autosave failed")
			}
		}
	}
}

func saturatingMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > 0 && b > 0 && a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}
