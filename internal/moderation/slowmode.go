package moderation

import (
	"context"
	"math"

	"github.com/keshon/warden/internal/duration"
	"github.com/keshon/warden/internal/platform"
)

// MaxSlowModeSeconds is the longest per-message delay a channel accepts.
const MaxSlowModeSeconds = 21600

type SlowModeRequest struct {
	RequesterCanManage bool
	ChannelID          int64
	// SupportsSlowMode is false for channel types without a rate limit setting.
	SupportsSlowMode bool
	Magnitude        float64
	Unit             duration.Unit
}

type SlowModeResult struct {
	Seconds int
	Label   string
	// Cancelled is set when the request turns slow mode off.
	Cancelled bool
}

type SlowModeController struct {
	moderator platform.Moderator
}

func NewSlowModeController(moderator platform.Moderator) *SlowModeController {
	return &SlowModeController{moderator: moderator}
}

// RequestSlowMode sets the channel's delay between messages. Zero cancels it.
func (c *SlowModeController) RequestSlowMode(ctx context.Context, req SlowModeRequest) (SlowModeResult, error) {
	if !req.RequesterCanManage {
		return SlowModeResult{}, ErrNoPermission
	}
	if !req.SupportsSlowMode {
		return SlowModeResult{}, ErrInvalidTarget
	}
	if req.Magnitude < 0 || math.IsNaN(req.Magnitude) {
		return SlowModeResult{}, ErrInvalidDuration
	}

	seconds := duration.Convert(req.Magnitude, req.Unit, duration.Seconds)
	if seconds > MaxSlowModeSeconds {
		return SlowModeResult{}, ErrDurationTooLong
	}

	res := SlowModeResult{
		Seconds:   int(seconds),
		Label:     duration.Label(req.Magnitude, req.Unit),
		Cancelled: seconds == 0,
	}
	c.moderator.SetSlowMode(ctx, req.ChannelID, res.Seconds)
	return res, nil
}
