package moderation

import (
	"context"
	"math"
	"time"

	"github.com/keshon/warden/internal/duration"
	"github.com/keshon/warden/internal/platform"
)

// MaxTimeout is the longest timeout the platform accepts.
const MaxTimeout = 28 * 24 * time.Hour

// MuteRequest describes a /admin mute invocation.
type MuteRequest struct {
	RequesterCanModerate bool
	Target               platform.Member
	Magnitude            float64
	Unit                 duration.Unit
	Reason               string
}

// MuteResult is what the caller needs to render the reply.
type MuteResult struct {
	DurationMillis int64
	Label          string
	// ExpiresAt is the absolute end of the timeout in epoch seconds.
	ExpiresAt int64
}

// MuteController validates and issues timeouts. The platform expires them on its
// own, so nothing is persisted.
type MuteController struct {
	moderator platform.Moderator
	clock     func() time.Time
}

func NewMuteController(moderator platform.Moderator, clock func() time.Time) *MuteController {
	if clock == nil {
		clock = time.Now
	}
	return &MuteController{moderator: moderator, clock: clock}
}

// RequestMute checks the request and asks the platform to time the target out.
func (c *MuteController) RequestMute(ctx context.Context, req MuteRequest) (MuteResult, error) {
	if !req.RequesterCanModerate {
		return MuteResult{}, ErrNoPermission
	}
	if req.Target.IsOwner || req.Target.TimedOut {
		return MuteResult{}, ErrInvalidTarget
	}
	if !(req.Magnitude > 0) {
		return MuteResult{}, ErrInvalidDuration
	}

	millis := duration.Convert(req.Magnitude, req.Unit, duration.Milliseconds)
	if millis > MaxTimeout.Milliseconds() {
		return MuteResult{}, ErrDurationTooLong
	}

	res := MuteResult{
		DurationMillis: millis,
		Label:          duration.Label(req.Magnitude, req.Unit),
		ExpiresAt:      duration.SaturatingAdd(c.clock().UnixMilli(), millis) / 1000,
	}
	c.moderator.TimeoutMember(ctx, req.Target.ScopeID, req.Target.ID, millis, req.Reason)
	return res, nil
}

// Duration returns the timeout length as a time.Duration.
func (r MuteResult) Duration() time.Duration {
	if r.DurationMillis > math.MaxInt64/int64(time.Millisecond) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(r.DurationMillis) * time.Millisecond
}
