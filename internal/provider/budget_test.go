package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonho/pulserank/internal/domain"
)

func TestBudget_AllowsWithinLimit(t *testing.T) {
	b := NewBudget(5, time.Second, 10*time.Millisecond, time.Millisecond)

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Acquire(context.Background()), "call %d should fit the burst", i)
	}
}

func TestBudget_RateLimitedAfterBoundedWait(t *testing.T) {
	// 1 call per hour: the second acquire cannot succeed within the wait.
	b := NewBudget(1, time.Hour, 10*time.Millisecond, time.Millisecond)

	require.NoError(t, b.Acquire(context.Background()))

	err := b.Acquire(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestBudget_BackgroundGivesUpSooner(t *testing.T) {
	b := NewBudget(1, time.Hour, 500*time.Millisecond, time.Millisecond)
	require.NoError(t, b.Acquire(context.Background()))

	start := time.Now()
	err := b.Acquire(WithPriority(context.Background(), Background))
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Less(t, elapsed, 250*time.Millisecond, "background wait must be the short one")
}

func TestBudget_CallerCancellationIsNotRateLimit(t *testing.T) {
	b := NewBudget(1, time.Hour, time.Second, time.Millisecond)
	require.NoError(t, b.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Acquire(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRateLimited)
}

func TestPriorityFrom_Default(t *testing.T) {
	assert.Equal(t, Foreground, PriorityFrom(context.Background()))
	assert.Equal(t, Background, PriorityFrom(WithPriority(context.Background(), Background)))
}
