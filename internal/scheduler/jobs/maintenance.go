package jobs

import (
	"context"
	"time"

	"github.com/wonho/pulserank/internal/collector"
	"github.com/wonho/pulserank/internal/store"
	"github.com/wonho/pulserank/pkg/logger"
)

// historyRetention is how long score history rows are kept.
const historyRetention = 30 * 24 * time.Hour

// snapshotRetention bounds how long a dead snapshot can occupy memory.
const snapshotRetention = time.Hour

// MaintenanceJob reclaims storage: old score history rows and snapshot
// cache entries past any conceivable stale-serving window.
type MaintenanceJob struct {
	snaps  *collector.SnapshotCache
	scores *store.ScoreRepository
	logger *logger.Logger
}

// NewMaintenanceJob creates the hourly maintenance job. scores may be
// nil when postgres is disabled.
func NewMaintenanceJob(snaps *collector.SnapshotCache, scores *store.ScoreRepository, log *logger.Logger) *MaintenanceJob {
	return &MaintenanceJob{snaps: snaps, scores: scores, logger: log}
}

func (j *MaintenanceJob) Name() string { return "maintenance" }

func (j *MaintenanceJob) Schedule() string { return "@hourly" }

func (j *MaintenanceJob) Run(ctx context.Context) error {
	removed := j.snaps.PruneOlderThan(time.Now().Add(-snapshotRetention))
	if removed > 0 {
		j.logger.WithField("snapshots", removed).Info("Pruned snapshot cache")
	}

	if j.scores != nil {
		rows, err := j.scores.Prune(ctx, historyRetention)
		if err != nil {
			return err
		}
		if rows > 0 {
			j.logger.WithField("rows", rows).Info("Pruned score history")
		}
	}
	return nil
}
