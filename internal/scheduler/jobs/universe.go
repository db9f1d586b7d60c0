package jobs

import (
	"context"
	"fmt"

	"github.com/wonho/pulserank/internal/universe"
	"github.com/wonho/pulserank/pkg/logger"
)

// UniverseJob reloads the instrument seed file and applies membership
// changes. Delistings fire the universe's invalidation hook.
type UniverseJob struct {
	universe *universe.Universe
	seedPath string
	logger   *logger.Logger
}

// NewUniverseJob creates the daily membership refresh job.
func NewUniverseJob(u *universe.Universe, seedPath string, log *logger.Logger) *UniverseJob {
	return &UniverseJob{universe: u, seedPath: seedPath, logger: log}
}

func (j *UniverseJob) Name() string { return "universe_refresh" }

// Schedule runs before the US pre-market.
func (j *UniverseJob) Schedule() string { return "0 0 8 * * *" }

func (j *UniverseJob) Run(ctx context.Context) error {
	insts, err := universe.LoadSeed(j.seedPath)
	if err != nil {
		return fmt.Errorf("reload universe: %w", err)
	}

	_, removed := j.universe.Replace(insts)
	if len(removed) > 0 {
		j.logger.WithField("symbols", removed).Info("Instruments delisted from universe")
	}
	return nil
}
