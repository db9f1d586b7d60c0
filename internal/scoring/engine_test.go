package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonho/pulserank/internal/domain"
	"github.com/wonho/pulserank/pkg/logger"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(DefaultWeights(), logger.NewNop())
	require.NoError(t, err)
	return engine
}

func quoteSnap(at time.Time, numbers map[string]float64) *domain.Snapshot {
	return &domain.Snapshot{
		Symbol: "AAA", Class: domain.ClassQuotes, Provider: "marketfeed",
		RetrievedAt: at, TTL: 30 * time.Second, Numbers: numbers,
	}
}

func fullSet(at time.Time) domain.SnapshotSet {
	return domain.SnapshotSet{
		Quotes: quoteSnap(at, map[string]float64{
			"return_5d": 0.03, "return_1m": 0.08, "return_3m": 0.15,
			"volume": 2000000, "avg_volume_20d": 1000000,
		}),
		Fundamentals: &domain.Snapshot{
			Symbol: "AAA", Class: domain.ClassFundamentals, Provider: "fundata",
			RetrievedAt: at.Add(-time.Hour), TTL: 24 * time.Hour,
			Numbers: map[string]float64{"roe": 18, "debt_ratio": 0.6, "margin": 12},
		},
		News: &domain.Snapshot{
			Symbol: "AAA", Class: domain.ClassNews, Provider: "newswire",
			RetrievedAt: at, TTL: 5 * time.Minute,
			Numbers: map[string]float64{"article_count_24h": 4, "headline_impact": 0.4},
		},
		Sentiment: &domain.Snapshot{
			Symbol: "AAA", Class: domain.ClassSentiment, Provider: "socialpulse",
			RetrievedAt: at, TTL: 10 * time.Minute,
			Numbers: map[string]float64{"social_score": 0.5, "bullish_ratio": 0.7},
		},
	}
}

func TestScore_FullData(t *testing.T) {
	engine := newTestEngine(t)
	at := time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC)

	record, err := engine.Score(domain.Instrument{Symbol: "AAA"}, fullSet(at), domain.TimeframeSwing)
	require.NoError(t, err)

	assert.Equal(t, "AAA", record.Symbol)
	assert.GreaterOrEqual(t, record.Total, 0.0)
	assert.LessOrEqual(t, record.Total, 100.0)
	assert.Greater(t, record.Total, 50.0, "all-positive inputs should score above neutral")

	for _, name := range []string{SubMomentum, SubLiquidity, SubQuality, SubSentiment} {
		s, exists := record.SubScores[name]
		require.True(t, exists, "missing sub-score %s", name)
		assert.True(t, s.Active)
	}

	assert.InDelta(t, 100.0, record.ActiveWeightSum(), 1e-9)
	assert.Len(t, record.SnapshotRefs, 4)
}

func TestScore_ComputedAtIsOldestInput(t *testing.T) {
	engine := newTestEngine(t)
	at := time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC)

	set := fullSet(at)
	// Fundamentals is one hour older than everything else.
	require.Equal(t, at.Add(-time.Hour), set.Fundamentals.RetrievedAt)

	record, err := engine.Score(domain.Instrument{Symbol: "AAA"}, set, domain.TimeframeSwing)
	require.NoError(t, err)

	assert.Equal(t, at.Add(-time.Hour), record.ComputedAt,
		"record is only as fresh as its stalest input")
}

// Weight renormalization across every null pattern: active weights must
// always sum to exactly 100.
func TestScore_RenormalizationInvariant(t *testing.T) {
	engine := newTestEngine(t)
	at := time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC)
	full := fullSet(at)

	cases := []struct {
		name string
		set  domain.SnapshotSet
	}{
		{"all classes", full},
		{"no fundamentals", domain.SnapshotSet{Quotes: full.Quotes, News: full.News, Sentiment: full.Sentiment}},
		{"no sentiment or news", domain.SnapshotSet{Quotes: full.Quotes, Fundamentals: full.Fundamentals}},
		{"quotes only", domain.SnapshotSet{Quotes: full.Quotes}},
		{"momentum only", domain.SnapshotSet{
			Quotes: quoteSnap(at, map[string]float64{"return_5d": 0.02, "return_1m": 0.05}),
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			record, err := engine.Score(domain.Instrument{Symbol: "AAA"}, tc.set, domain.TimeframeSwing)
			require.NoError(t, err)
			assert.InDelta(t, 100.0, record.ActiveWeightSum(), 1e-9)
		})
	}
}

// Instrument AAA has quotes momentum data but null fundamentals and null
// sentiment: the record uses only momentum-derived sub-scores and their
// renormalized weights carry the full 100.
func TestScore_SparseDataUsesOnlyActiveSubScores(t *testing.T) {
	engine := newTestEngine(t)
	at := time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC)

	set := domain.SnapshotSet{
		Quotes: quoteSnap(at, map[string]float64{"return_5d": 0.12, "return_1m": 0.12}),
	}

	record, err := engine.Score(domain.Instrument{Symbol: "AAA"}, set, domain.TimeframeSwing)
	require.NoError(t, err)

	momentum := record.SubScores[SubMomentum]
	require.True(t, momentum.Active)
	assert.InDelta(t, 100.0, momentum.Weight, 1e-9, "sole active sub-score carries full weight")
	assert.InDelta(t, momentum.Value, record.Total, 1e-9, "composite derives solely from momentum")

	assert.False(t, record.SubScores[SubLiquidity].Active)
	assert.False(t, record.SubScores[SubQuality].Active)
	assert.False(t, record.SubScores[SubSentiment].Active)
}

func TestScore_AllNullIsInsufficientData(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Score(domain.Instrument{Symbol: "ZZZ"}, domain.SnapshotSet{}, domain.TimeframeSwing)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)

	// Snapshots present but every field null is the same outcome.
	at := time.Now()
	set := domain.SnapshotSet{
		Quotes:       quoteSnap(at, nil),
		Fundamentals: &domain.Snapshot{Class: domain.ClassFundamentals, RetrievedAt: at},
	}
	_, err = engine.Score(domain.Instrument{Symbol: "ZZZ"}, set, domain.TimeframeSwing)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestScore_TimeframeChangesMomentumInputs(t *testing.T) {
	engine := newTestEngine(t)
	at := time.Now()

	// Only the position-horizon returns are present.
	set := domain.SnapshotSet{
		Quotes: quoteSnap(at, map[string]float64{"return_1m": 0.05, "return_3m": 0.20}),
	}

	_, err := engine.Score(domain.Instrument{Symbol: "AAA"}, set, domain.TimeframeSwing)
	assert.ErrorIs(t, err, domain.ErrInsufficientData, "swing needs return_5d")

	record, err := engine.Score(domain.Instrument{Symbol: "AAA"}, set, domain.TimeframePosition)
	require.NoError(t, err)
	assert.True(t, record.SubScores[SubMomentum].Active)
}

func TestScore_MissingRatioNeverReadAsZero(t *testing.T) {
	engine := newTestEngine(t)
	at := time.Now()

	// ROE missing entirely: quality inactive even though other
	// fundamentals fields exist.
	set := domain.SnapshotSet{
		Quotes: quoteSnap(at, map[string]float64{
			"return_5d": 0.01, "return_1m": 0.02,
		}),
		Fundamentals: &domain.Snapshot{
			Class: domain.ClassFundamentals, RetrievedAt: at,
			Numbers: map[string]float64{"debt_ratio": 0.4},
		},
	}

	record, err := engine.Score(domain.Instrument{Symbol: "AAA"}, set, domain.TimeframeSwing)
	require.NoError(t, err)
	assert.False(t, record.SubScores[SubQuality].Active)
}

func TestNewEngine_RejectsBadWeights(t *testing.T) {
	_, err := NewEngine(Weights{Momentum: 50, Liquidity: 50, Quality: 50, Sentiment: 50}, logger.NewNop())
	assert.Error(t, err)

	_, err = NewEngine(Weights{Momentum: 120, Liquidity: -20, Quality: 0, Sentiment: 0}, logger.NewNop())
	assert.Error(t, err)
}

func TestLoadWeights(t *testing.T) {
	path := t.TempDir() + "/weights.yaml"
	yaml := "weights:\n  momentum: 40\n  liquidity: 10\n  quality: 30\n  sentiment: 20\n"
	require.NoError(t, writeFile(path, yaml))

	w, err := LoadWeights(path)
	require.NoError(t, err)
	assert.Equal(t, 40.0, w.Momentum)

	// Unknown fields fail fast.
	badPath := t.TempDir() + "/bad.yaml"
	require.NoError(t, writeFile(badPath, "weights:\n  momentum: 100\n  volatility: 0\n"))
	_, err = LoadWeights(badPath)
	assert.Error(t, err)
}
