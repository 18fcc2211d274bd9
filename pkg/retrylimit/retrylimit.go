// Package retrylimit wraps outbound calls in an adaptive rate limit and an
// exponential backoff retry loop.
//
//	lim := retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5)
//	err := retrylimit.Do(ctx, lim, retrylimit.DefaultPolicy(), func(ctx context.Context) error {
//	    return call(ctx)
//	})
package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter raises its rate after quiet successes and cuts it when the
// remote side pushes back.
type AdaptiveLimiter struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	minLimit  rate.Limit
	maxLimit  rate.Limit
	stepUp    rate.Limit
	stepDown  float64
	lastError time.Time
	now       func() time.Time
}

// NewAdaptiveLimiter starts at initial requests per second, stays within
// [min, max], adds stepUp on success and multiplies by stepDown on pushback.
func NewAdaptiveLimiter(initial, min, max, stepUp rate.Limit, stepDown float64) *AdaptiveLimiter {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	initial = clamp(initial, min, max)
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(initial, burstFor(initial)),
		minLimit: min,
		maxLimit: max,
		stepUp:   stepUp,
		stepDown: stepDown,
		now:      time.Now,
	}
}

func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// Success raises the rate unless there was pushback in the last ten seconds.
func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.now().Sub(a.lastError) > 10*time.Second {
		a.set(a.limiter.Limit() + a.stepUp)
	}
}

func (a *AdaptiveLimiter) RateLimited() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = a.now()
	a.set(rate.Limit(float64(a.limiter.Limit()) * a.stepDown))
}

func (a *AdaptiveLimiter) CurrentLimit() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return float64(a.limiter.Limit())
}

func (a *AdaptiveLimiter) set(l rate.Limit) {
	l = clamp(l, a.minLimit, a.maxLimit)
	if l != a.limiter.Limit() {
		a.limiter.SetLimit(l)
		a.limiter.SetBurst(burstFor(l))
	}
}

func clamp(l, min, max rate.Limit) rate.Limit {
	if l > max {
		return max
	}
	if l < min {
		return min
	}
	return l
}

func burstFor(l rate.Limit) int {
	if int(l) < 1 {
		return 1
	}
	return int(l)
}

// StatusError is implemented by errors that carry an HTTP status code.
type StatusError interface {
	error
	StatusCode() int
}

// Fatal marks err as not worth retrying.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

type FatalError struct {
	Err error
}

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// Classifier reports whether err means the remote side is overloaded.
type Classifier func(error) bool

// DefaultClassifier treats 429 and 5xx responses as pushback.
func DefaultClassifier(err error) bool {
	code := statusOf(err)
	return code == http.StatusTooManyRequests || (code >= 500 && code < 600)
}

type Policy struct {
	// MaxAttempts of zero means one hundred.
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	RateLimitDelay time.Duration
	Multiplier     float64
	Jitter         bool
	Classifier     Classifier
	OnRetry        func(attempt int, err error)
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    100,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		RateLimitDelay: 100 * time.Millisecond,
		Multiplier:     2.0,
		Jitter:         true,
		Classifier:     DefaultClassifier,
	}
}

// Do runs fn until it succeeds, returns a FatalError, ctx ends or the attempts
// run out. lim may be nil.
func Do(ctx context.Context, lim *AdaptiveLimiter, p Policy, fn func(context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 100
	}
	if p.Classifier == nil {
		p.Classifier = DefaultClassifier
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}

	delay := p.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn(ctx)
		if err == nil {
			if lim != nil {
				lim.Success()
			}
			if attempt > 1 {
				log.Debug().Int("attempt", attempt).Msg("retry succeeded")
			}
			return nil
		}
		lastErr = err

		var fatal *FatalError
		if errors.As(err, &fatal) {
			return fatal.Err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		throttled := statusOf(err) == http.StatusTooManyRequests
		wait := delay
		if throttled {
			wait = p.RateLimitDelay
		} else if p.Jitter {
			wait = addJitter(delay)
		}
		if p.Classifier(err) && lim != nil {
			lim.RateLimited()
		}

		log.Warn().Err(err).Int("attempt", attempt).Dur("sleep", wait).Msg("call failed, retrying")

		if attempt == p.MaxAttempts {
			break
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}

		if !throttled {
			delay = time.Duration(float64(delay) * p.Multiplier)
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}
	}

	return fmt.Errorf("max attempts (%d) exceeded: %w", p.MaxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// addJitter adds up to a quarter of delay.
func addJitter(delay time.Duration) time.Duration {
	if delay < 4 {
		return delay
	}
	return delay + rand.N(delay/4)
}

func statusOf(err error) int {
	var se StatusError
	if errors.As(err, &se) {
		return se.StatusCode()
	}
	return 0
}
