// Package ratelimit spaces external calls at a fixed minimum interval.
package ratelimit

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Limiter enforces strictly periodic spacing between calls: burst is one, so
// an idle period never banks extra calls.
type Limiter struct {
	interval time.Duration
	lim      *rate.Limiter
}

// New creates a Limiter that allows one Acquire per interval. A non-positive
// interval disables limiting.
func New(interval time.Duration) *Limiter {
	l := &Limiter{interval: interval}
	if interval > 0 {
		l.lim = rate.NewLimiter(rate.Every(interval), 1)
	}
	return l
}

// Interval returns the configured minimum spacing.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Acquire blocks until the interval since the previous Acquire has elapsed
// or the context is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil || l.lim == nil {
		return ctx.Err()
	}
	if err := l.lim.Wait(ctx); err != nil {
		return eris.Wrap(err, "ratelimit: wait")
	}
	return nil
}
