package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonho/pulserank/internal/refresh"
	"github.com/wonho/pulserank/pkg/logger"
)

// RefreshJob sweeps the result cache for entries close to expiry.
type RefreshJob struct {
	refresher *refresh.Refresher
	interval  time.Duration
	logger    *logger.Logger
}

// NewRefreshJob creates the refresh sweep job.
func NewRefreshJob(r *refresh.Refresher, interval time.Duration, log *logger.Logger) *RefreshJob {
	if interval < time.Second {
		interval = 15 * time.Second
	}
	return &RefreshJob{refresher: r, interval: interval, logger: log}
}

func (j *RefreshJob) Name() string { return "cache_refresh" }

func (j *RefreshJob) Schedule() string {
	return fmt.Sprintf("@every %s", j.interval)
}

func (j *RefreshJob) Run(ctx context.Context) error {
	return j.refresher.Sweep(ctx)
}
