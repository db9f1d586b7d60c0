package refresh

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/wonho/pulserank/internal/cache"
	"github.com/wonho/pulserank/internal/provider"
	"github.com/wonho/pulserank/pkg/logger"
)

// sweepConcurrency bounds parallel background refreshes so a sweep
// never floods a recovering provider.
const sweepConcurrency = 4

// Recorder receives sweep outcomes.
type Recorder interface {
	RefreshRun(ok bool)
	RefreshDue(n int)
}

type nopRecorder struct{}

func (nopRecorder) RefreshRun(bool) {}
func (nopRecorder) RefreshDue(int)  {}

// Refresher recomputes cache entries before they expire. Sweeps run
// with background priority, so provider budget goes to foreground
// requests first and a starved refresh simply waits for the next sweep.
type Refresher struct {
	store  *cache.Store
	rec    Recorder
	logger *logger.Logger
}

// New creates a refresher. rec may be nil.
func New(store *cache.Store, rec Recorder, log *logger.Logger) *Refresher {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Refresher{store: store, rec: rec, logger: log}
}

// Sweep refreshes every key past its refresh-ahead threshold. A failed
// refresh leaves the old entry serving; Sweep itself only errors when
// the context dies.
func (r *Refresher) Sweep(ctx context.Context) error {
	ctx = provider.WithPriority(ctx, provider.Background)

	due := r.store.RefreshDue()
	r.rec.RefreshDue(len(due))
	if len(due) == 0 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(sweepConcurrency)

	for _, key := range due {
		key := key
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			err := r.store.Refresh(ctx, key)
			r.rec.RefreshRun(err == nil)
			if err != nil {
				r.logger.WithError(err).WithField("key", key).Warn("Background refresh failed")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	r.logger.WithField("keys", len(due)).Debug("Refresh sweep completed")
	return nil
}
