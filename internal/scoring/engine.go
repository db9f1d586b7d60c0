package scoring

import (
	"fmt"
	"math"

	"github.com/wonho/pulserank/internal/domain"
	"github.com/wonho/pulserank/pkg/logger"
)

// Engine computes composite scores from normalized snapshots. It is a
// pure function over its inputs: it never fetches, never caches, and a
// record's sub-scores all come from the one SnapshotSet passed in.
type Engine struct {
	weights Weights
	logger  *logger.Logger
}

// NewEngine creates a scoring engine with a validated weight policy.
func NewEngine(weights Weights, log *logger.Logger) (*Engine, error) {
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weight policy: %w", err)
	}
	return &Engine{
		weights: weights,
		logger:  log,
	}, nil
}

// subScoreFn computes one raw sub-score in [0,100]; active is false when
// a required input field is null.
type subScoreFn func(set domain.SnapshotSet, tf domain.Timeframe) (value float64, active bool)

// Score computes the composite score for one instrument.
//
// Active sub-score weights are renormalized so they always sum to 100:
// an instrument with sparse data is scored on what it has, not penalized
// with implied zeros. When nothing is computable the typed
// ErrInsufficientData is returned, never a zero-score record.
func (e *Engine) Score(inst domain.Instrument, set domain.SnapshotSet, tf domain.Timeframe) (*domain.ScoreRecord, error) {
	catalog := []struct {
		name    string
		nominal float64
		fn      subScoreFn
	}{
		{SubMomentum, e.weights.Momentum, momentumScore},
		{SubLiquidity, e.weights.Liquidity, liquidityScore},
		{SubQuality, e.weights.Quality, qualityScore},
		{SubSentiment, e.weights.Sentiment, sentimentScore},
	}

	subScores := make(map[string]domain.SubScore, len(catalog))
	var activeNominal float64

	for _, entry := range catalog {
		value, active := entry.fn(set, tf)
		subScores[entry.name] = domain.SubScore{
			Value:         value,
			NominalWeight: entry.nominal,
			Active:        active,
		}
		if active {
			activeNominal += entry.nominal
		}
	}

	if activeNominal == 0 {
		return nil, fmt.Errorf("no computable sub-score for %s: %w", inst.Symbol, domain.ErrInsufficientData)
	}

	// Renormalize: active weights scale up to fill the full 100.
	var total float64
	for name, s := range subScores {
		if !s.Active {
			subScores[name] = s
			continue
		}
		s.Weight = s.NominalWeight / activeNominal * 100
		total += s.Value * s.Weight / 100
		subScores[name] = s
	}

	record := &domain.ScoreRecord{
		Symbol:       inst.Symbol,
		Total:        clamp(total, 0, 100),
		SubScores:    subScores,
		SnapshotRefs: set.Versions(),
		ComputedAt:   set.Oldest(),
	}

	e.logger.WithFields(map[string]interface{}{
		"symbol": inst.Symbol,
		"total":  record.Total,
		"active": activeNominal,
	}).Debug("Scored instrument")

	return record, nil
}

// tanhScale maps an unbounded signal onto [0,100] with 50 as neutral.
func tanhScale(x float64) float64 {
	return 50 * (1 + math.Tanh(x))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
