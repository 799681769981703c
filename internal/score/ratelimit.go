package score

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"token-ingest-engine/internal/errs"
)

// EnrichLimiter layers the §4.5.2 dual per-minute/per-second caps on top
// of whatever self-throttling internal/enrich.Client already does, and
// retries with exponential backoff on a provider-side 429
// (errs.ErrRateLimited) rather than surfacing it to the caller directly.
type EnrichLimiter struct {
	perMinute *rate.Limiter
	perSecond *rate.Limiter
}

// RateLimitConfig is the §4.5.2 "defaults N=600, M=10".
type RateLimitConfig struct {
	PerMinute int
	PerSecond int
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{PerMinute: 600, PerSecond: 10}
}

func NewEnrichLimiter(cfg RateLimitConfig) *EnrichLimiter {
	return &EnrichLimiter{
		perMinute: rate.NewLimiter(rate.Limit(float64(cfg.PerMinute)/60.0), cfg.PerMinute),
		perSecond: rate.NewLimiter(rate.Limit(cfg.PerSecond), cfg.PerSecond),
	}
}

// Do waits for both caps, then calls fn; a fn failing with
// errs.ErrRateLimited is retried with exponential backoff, all other
// errors are returned immediately.
func (l *EnrichLimiter) Do(ctx context.Context, fn func() error) error {
	if err := l.perMinute.Wait(ctx); err != nil {
		return err
	}
	if err := l.perSecond.Wait(ctx); err != nil {
		return err
	}

	b := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, errs.ErrRateLimited) {
			return err // retryable
		}
		return backoff.Permanent(err)
	}, b)
}

// ReleaseOnCancel reports whether ctx is already done, so a caller can skip
// the call entirely rather than burn a reservation it can't use. It hands
// no token back to the limiters: x/time/rate has no explicit token-return
// API, and a token already taken by Do stays spent.
func ReleaseOnCancel(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
