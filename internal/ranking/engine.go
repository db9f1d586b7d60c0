package ranking

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wonho/pulserank/internal/collector"
	"github.com/wonho/pulserank/internal/domain"
	"github.com/wonho/pulserank/internal/scoring"
	"github.com/wonho/pulserank/pkg/logger"
)

// defaultConcurrency bounds how many instruments score at once.
const defaultConcurrency = 16

// HistoryRepo persists score records for traceability. Writes are
// best-effort; ranking never fails on a history error.
type HistoryRepo interface {
	SaveScores(ctx context.Context, records []domain.ScoreRecord) error
}

// Engine produces ordered, filterable ranked views over the universe.
// It owns no cache state; the refresh scheduler decides when Rank runs.
type Engine struct {
	collector   *collector.Collector
	scorer      *scoring.Engine
	history     HistoryRepo
	logger      *logger.Logger
	concurrency int
}

// NewEngine creates a ranking engine. history may be nil.
func NewEngine(col *collector.Collector, scorer *scoring.Engine, history HistoryRepo, log *logger.Logger) *Engine {
	return &Engine{
		collector:   col,
		scorer:      scorer,
		history:     history,
		logger:      log,
		concurrency: defaultConcurrency,
	}
}

// Rank scores the filtered subset of instruments and returns the top-N.
//
// Filtering happens before sorting and truncation, so limit always
// returns the true top-N of the filtered set. Instruments with no
// computable sub-score are excluded, never ranked at zero. Each
// instrument's sub-scores all derive from the single SnapshotSet fixed
// at collection time.
func (e *Engine) Rank(ctx context.Context, insts []domain.Instrument, params domain.RankParams) (*domain.RankedResult, error) {
	filtered := filter(insts, params)
	if len(filtered) == 0 {
		return &domain.RankedResult{Params: params, Entries: []domain.RankedEntry{}}, nil
	}

	symbols := make([]string, len(filtered))
	for i, inst := range filtered {
		symbols[i] = inst.Symbol
	}

	sets, err := e.collector.Collect(ctx, symbols)
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		records  []domain.ScoreRecord
		excluded int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, inst := range filtered {
		inst := inst
		g.Go(func() error {
			record, err := e.scorer.Score(inst, sets[inst.Symbol], params.Timeframe)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, domain.ErrInsufficientData) {
					excluded++
					return nil
				}
				return err
			}
			records = append(records, *record)
			return nil
		})
		if gctx.Err() != nil {
			break
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortRecords(records)

	limit := params.Limit
	if limit <= 0 || limit > len(records) {
		limit = len(records)
	}

	result := &domain.RankedResult{
		Params:   params,
		Entries:  make([]domain.RankedEntry, 0, limit),
		Excluded: excluded,
	}

	for i := 0; i < limit; i++ {
		result.Entries = append(result.Entries, domain.RankedEntry{
			Rank:        i + 1,
			ScoreRecord: records[i],
		})
		if result.AsOf.IsZero() || records[i].ComputedAt.Before(result.AsOf) {
			result.AsOf = records[i].ComputedAt
		}
	}

	e.persist(ctx, records)

	e.logger.WithFields(map[string]interface{}{
		"universe": len(insts),
		"filtered": len(filtered),
		"ranked":   len(records),
		"excluded": excluded,
		"returned": len(result.Entries),
	}).Info("Ranking completed")

	return result, nil
}

// ScoreOne scores a single instrument outside any ranked view.
func (e *Engine) ScoreOne(ctx context.Context, inst domain.Instrument, tf domain.Timeframe) (*domain.ScoreRecord, error) {
	sets, err := e.collector.Collect(ctx, []string{inst.Symbol})
	if err != nil {
		return nil, err
	}

	record, err := e.scorer.Score(inst, sets[inst.Symbol], tf)
	if err != nil {
		return nil, err
	}

	e.persist(ctx, []domain.ScoreRecord{*record})
	return record, nil
}

// filter applies sector and theme filters before any sorting.
func filter(insts []domain.Instrument, params domain.RankParams) []domain.Instrument {
	filtered := make([]domain.Instrument, 0, len(insts))
	for _, inst := range insts {
		if params.Sector != "" && !strings.EqualFold(inst.Sector, params.Sector) {
			continue
		}
		if params.Theme != "" && !inst.HasTheme(params.Theme) {
			continue
		}
		filtered = append(filtered, inst)
	}
	return filtered
}

// sortRecords orders by composite score descending with deterministic
// tie-breaks: higher liquidity sub-score first, then symbol order, so
// identical inputs always reproduce the identical ordering.
func sortRecords(records []domain.ScoreRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Total != records[j].Total {
			return records[i].Total > records[j].Total
		}

		li, iOK := records[i].SubScoreValue(scoring.SubLiquidity)
		lj, jOK := records[j].SubScoreValue(scoring.SubLiquidity)
		if iOK != jOK {
			return iOK // a computable liquidity score ranks ahead of none
		}
		if iOK && li != lj {
			return li > lj
		}

		return records[i].Symbol < records[j].Symbol
	})
}

func (e *Engine) persist(ctx context.Context, records []domain.ScoreRecord) {
	if e.history == nil || len(records) == 0 {
		return
	}
	if err := e.history.SaveScores(ctx, records); err != nil {
		e.logger.WithError(err).Warn("Score history write failed")
	}
}
