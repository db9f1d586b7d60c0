package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonho/pulserank/internal/domain"
)

// Budget is the single shared accounting for one provider's rate limit.
// Every call against the provider acquires from this token bucket; there
// are no per-caller counters that could jointly exceed the real limit.
type Budget struct {
	limiter        *rate.Limiter
	foregroundWait time.Duration
	backgroundWait time.Duration
}

// NewBudget builds a budget of limit calls per window. Burst equals the
// full window allowance so idle budget can absorb a batch.
func NewBudget(limit int, window time.Duration, foregroundWait, backgroundWait time.Duration) *Budget {
	if limit < 1 {
		limit = 1
	}
	perSecond := float64(limit) / window.Seconds()

	return &Budget{
		limiter:        rate.NewLimiter(rate.Limit(perSecond), limit),
		foregroundWait: foregroundWait,
		backgroundWait: backgroundWait,
	}
}

// Acquire blocks until a token is available or the bounded wait for the
// context's priority elapses, in which case it fails with ErrRateLimited.
func (b *Budget) Acquire(ctx context.Context) error {
	wait := b.foregroundWait
	if PriorityFrom(ctx) == Background {
		wait = b.backgroundWait
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	if err := b.limiter.Wait(waitCtx); err != nil {
		// The caller's own context ending is not a rate limit signal.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("budget wait of %s exhausted: %w", wait, domain.ErrRateLimited)
		}
		return fmt.Errorf("budget wait of %s exhausted: %w", wait, domain.ErrRateLimited)
	}
	return nil
}

// Allow reports whether a token is available right now, without waiting.
func (b *Budget) Allow() bool {
	return b.limiter.Allow()
}
