package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/keshon/warden/pkg/retrylimit"
)

// GuildAPI is the slice of the Discord REST client the moderator needs.
type GuildAPI interface {
	GuildMemberTimeout(guildID, userID string, until *time.Time, options ...discordgo.RequestOption) error
	GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error
	GuildBanDelete(guildID, userID string, options ...discordgo.RequestOption) error
	ChannelEdit(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// Moderator delivers moderation actions in the background, retrying through
// rate limits and transient failures.
type Moderator struct {
	api     GuildAPI
	limiter *retrylimit.AdaptiveLimiter
	policy  retrylimit.Policy
	timeout time.Duration
	clock   func() time.Time

	wg sync.WaitGroup
}

type ModeratorOption func(*Moderator)

func WithPolicy(p retrylimit.Policy) ModeratorOption {
	return func(m *Moderator) { m.policy = p }
}

// WithActionTimeout caps how long a single action may keep retrying.
func WithActionTimeout(d time.Duration) ModeratorOption {
	return func(m *Moderator) { m.timeout = d }
}

func WithClock(clock func() time.Time) ModeratorOption {
	return func(m *Moderator) { m.clock = clock }
}

func NewModerator(api GuildAPI, opts ...ModeratorOption) *Moderator {
	policy := retrylimit.DefaultPolicy()
	policy.MaxAttempts = 8

	m := &Moderator{
		api:     api,
		limiter: retrylimit.NewAdaptiveLimiter(rate.Limit(5), rate.Limit(0.5), rate.Limit(20), rate.Limit(0.5), 0.5),
		policy:  policy,
		timeout: 2 * time.Minute,
		clock:   time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Moderator) TimeoutMember(ctx context.Context, scopeID, target int64, durationMillis int64, reason string) {
	until := m.clock().Add(time.Duration(durationMillis) * time.Millisecond)
	m.dispatch(ctx, "timeout", scopeID, target, func(ctx context.Context) error {
		return m.api.GuildMemberTimeout(formatID(scopeID), formatID(target), &until,
			discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	})
}

func (m *Moderator) BanMember(ctx context.Context, scopeID, target int64, reason string) {
	m.dispatch(ctx, "ban", scopeID, target, func(ctx context.Context) error {
		return m.api.GuildBanCreateWithReason(formatID(scopeID), formatID(target), reason, 0,
			discordgo.WithContext(ctx))
	})
}

func (m *Moderator) UnbanMember(ctx context.Context, scopeID, subjectID int64) {
	m.dispatch(ctx, "unban", scopeID, subjectID, func(ctx context.Context) error {
		err := m.api.GuildBanDelete(formatID(scopeID), formatID(subjectID), discordgo.WithContext(ctx))
		if statusCode(err) == http.StatusNotFound {
			// already unbanned by hand
			return nil
		}
		return err
	})
}

func (m *Moderator) SetSlowMode(ctx context.Context, channelID int64, seconds int) {
	m.dispatch(ctx, "slow_mode", 0, channelID, func(ctx context.Context) error {
		_, err := m.api.ChannelEdit(formatID(channelID), &discordgo.ChannelEdit{RateLimitPerUser: &seconds},
			discordgo.WithContext(ctx))
		return err
	})
}

// Wait blocks until every dispatched action has finished or ctx ends.
func (m *Moderator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatch runs call detached from the caller's cancellation so an action
// outlives the interaction that asked for it.
func (m *Moderator) dispatch(ctx context.Context, action string, scopeID, target int64, call func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()

		err := retrylimit.Do(ctx, m.limiter, m.policy, func(ctx context.Context) error {
			return classify(call(ctx))
		})
		if err != nil {
			log.Error().Err(err).
				Str("action", action).
				Int64("scope", scopeID).
				Int64("target", target).
				Msg("moderation action failed")
			return
		}
		log.Debug().Str("action", action).Int64("scope", scopeID).Int64("target", target).Msg("moderation action delivered")
	}()
}

type restStatusError struct {
	err  error
	code int
}

func (e *restStatusError) Error() string   { return e.err.Error() }
func (e *restStatusError) Unwrap() error   { return e.err }
func (e *restStatusError) StatusCode() int { return e.code }

// classify exposes REST status codes to the retry loop. Client errors other
// than 429 will not get better by retrying.
func classify(err error) error {
	if err == nil {
		return nil
	}
	code := statusCode(err)
	switch {
	case code == 0:
		return err
	case code == http.StatusTooManyRequests || code >= 500:
		return &restStatusError{err: err, code: code}
	case code >= 400:
		return retrylimit.Fatal(fmt.Errorf("discord %d: %w", code, err))
	default:
		return err
	}
}

func statusCode(err error) int {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		return rest.Response.StatusCode
	}
	return 0
}
