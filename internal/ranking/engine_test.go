package ranking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonho/pulserank/internal/collector"
	"github.com/wonho/pulserank/internal/domain"
	"github.com/wonho/pulserank/internal/normalize"
	"github.com/wonho/pulserank/internal/provider"
	"github.com/wonho/pulserank/internal/scoring"
	"github.com/wonho/pulserank/pkg/logger"
)

// fakeAdapter serves canned vendor fields per symbol.
type fakeAdapter struct {
	class  domain.DataClass
	fields map[string]map[string]interface{}
}

func (f *fakeAdapter) Class() domain.DataClass     { return f.class }
func (f *fakeAdapter) Provider() string            { return "fake-" + string(f.class) }
func (f *fakeAdapter) FreshnessTTL() time.Duration { return time.Minute }

func (f *fakeAdapter) Fetch(ctx context.Context, symbols []string) (*provider.RawPayload, error) {
	payload := &provider.RawPayload{
		Class:       f.class,
		Provider:    f.Provider(),
		RetrievedAt: time.Now(),
		TTL:         time.Minute,
	}
	for _, sym := range symbols {
		if fields, ok := f.fields[sym]; ok {
			payload.Records = append(payload.Records, provider.RawRecord{Symbol: sym, Fields: fields})
		}
	}
	return payload, nil
}

// memoryHistory records SaveScores calls.
type memoryHistory struct {
	mu    sync.Mutex
	saved []domain.ScoreRecord
}

func (m *memoryHistory) SaveScores(ctx context.Context, records []domain.ScoreRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, records...)
	return nil
}

func quoteFields(ret5d, ret1m, volume float64) map[string]interface{} {
	return map[string]interface{}{
		"last":         100.0,
		"chg5d":        ret5d,
		"chg1m":        ret1m,
		"volume":       volume,
		"avgVolume20d": 1_000_000.0,
	}
}

func fullFields(symbols ...string) (quotes, funds, sentiment map[string]map[string]interface{}) {
	quotes = map[string]map[string]interface{}{}
	funds = map[string]map[string]interface{}{}
	sentiment = map[string]map[string]interface{}{}
	for i, sym := range symbols {
		spread := float64(len(symbols) - i) // earlier symbols score higher
		quotes[sym] = quoteFields(0.01*spread, 0.02*spread, 500_000*spread)
		funds[sym] = map[string]interface{}{"returnOnEquity": 8.0 + 2*spread}
		sentiment[sym] = map[string]interface{}{"score": 0.1 * spread, "bullPct": 0.5}
	}
	return quotes, funds, sentiment
}

func newTestEngine(t *testing.T, quotes, funds, sentiment map[string]map[string]interface{}, history HistoryRepo) *Engine {
	t.Helper()

	adapters := []provider.Adapter{
		&fakeAdapter{class: domain.ClassQuotes, fields: quotes},
		&fakeAdapter{class: domain.ClassFundamentals, fields: funds},
		&fakeAdapter{class: domain.ClassNews, fields: map[string]map[string]interface{}{}},
		&fakeAdapter{class: domain.ClassSentiment, fields: sentiment},
	}

	log := logger.NewNop()
	col := collector.New(adapters, normalize.New(log), nil, log)

	scorer, err := scoring.NewEngine(scoring.DefaultWeights(), log)
	require.NoError(t, err)

	return NewEngine(col, scorer, history, log)
}

func instruments(symbols ...string) []domain.Instrument {
	insts := make([]domain.Instrument, len(symbols))
	for i, sym := range symbols {
		insts[i] = domain.Instrument{Symbol: sym, Exchange: "NASDAQ", Sector: "Technology"}
	}
	return insts
}

func TestRankOrdersByScoreDescending(t *testing.T) {
	quotes, funds, sentiment := fullFields("AAA", "BBB", "CCC")
	e := newTestEngine(t, quotes, funds, sentiment, nil)

	result, err := e.Rank(context.Background(), instruments("CCC", "AAA", "BBB"),
		domain.RankParams{Timeframe: domain.TimeframeSwing})
	require.NoError(t, err)
	require.Len(t, result.Entries, 3)

	assert.Equal(t, "AAA", result.Entries[0].Symbol)
	assert.Equal(t, "BBB", result.Entries[1].Symbol)
	assert.Equal(t, "CCC", result.Entries[2].Symbol)

	for i, entry := range result.Entries {
		assert.Equal(t, i+1, entry.Rank)
		if i > 0 {
			assert.GreaterOrEqual(t, result.Entries[i-1].Total, entry.Total)
		}
	}
}

func TestRankIsDeterministic(t *testing.T) {
	quotes, funds, sentiment := fullFields("AAA", "BBB", "CCC", "DDD", "EEE")
	params := domain.RankParams{Timeframe: domain.TimeframeSwing}

	first := func() []string {
		e := newTestEngine(t, quotes, funds, sentiment, nil)
		result, err := e.Rank(context.Background(), instruments("EEE", "BBB", "DDD", "AAA", "CCC"), params)
		require.NoError(t, err)
		order := make([]string, len(result.Entries))
		for i, entry := range result.Entries {
			order[i] = entry.Symbol
		}
		return order
	}

	assert.Equal(t, first(), first())
}

func TestRankTieBreaksOnLiquidityThenSymbol(t *testing.T) {
	// Identical fundamentals and sentiment; identical returns so the
	// composite ties. BBB trades heavier, so it must rank ahead of AAA
	// despite symbol order, and AAA ahead of CCC on symbol alone.
	quotes := map[string]map[string]interface{}{
		"AAA": quoteFields(0.02, 0.04, 1_000_000),
		"BBB": quoteFields(0.02, 0.04, 3_000_000),
		"CCC": quoteFields(0.02, 0.04, 1_000_000),
	}
	funds := map[string]map[string]interface{}{
		"AAA": {"returnOnEquity": 12.0},
		"BBB": {"returnOnEquity": 12.0},
		"CCC": {"returnOnEquity": 12.0},
	}
	sentiment := map[string]map[string]interface{}{
		"AAA": {"score": 0.2},
		"BBB": {"score": 0.2},
		"CCC": {"score": 0.2},
	}

	e := newTestEngine(t, quotes, funds, sentiment, nil)
	result, err := e.Rank(context.Background(), instruments("CCC", "BBB", "AAA"),
		domain.RankParams{Timeframe: domain.TimeframeSwing})
	require.NoError(t, err)
	require.Len(t, result.Entries, 3)

	assert.Equal(t, "BBB", result.Entries[0].Symbol)
	assert.Equal(t, "AAA", result.Entries[1].Symbol)
	assert.Equal(t, "CCC", result.Entries[2].Symbol)
}

func TestRankFiltersBeforeTruncation(t *testing.T) {
	quotes, funds, sentiment := fullFields("AAA", "BBB", "CCC", "DDD")
	e := newTestEngine(t, quotes, funds, sentiment, nil)

	insts := instruments("AAA", "BBB", "CCC", "DDD")
	insts[0].Sector = "Energy" // the highest scorer sits outside the filter

	result, err := e.Rank(context.Background(), insts, domain.RankParams{
		Timeframe: domain.TimeframeSwing,
		Sector:    "technology", // case-insensitive match
		Limit:     2,
	})
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)

	// The top-2 of the filtered set, not the global top-2.
	assert.Equal(t, "BBB", result.Entries[0].Symbol)
	assert.Equal(t, "CCC", result.Entries[1].Symbol)
}

func TestRankFiltersByTheme(t *testing.T) {
	quotes, funds, sentiment := fullFields("AAA", "BBB")
	e := newTestEngine(t, quotes, funds, sentiment, nil)

	insts := instruments("AAA", "BBB")
	insts[1].Themes = []string{"ai"}

	result, err := e.Rank(context.Background(), insts,
		domain.RankParams{Timeframe: domain.TimeframeSwing, Theme: "AI"})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "BBB", result.Entries[0].Symbol)
}

func TestRankEmptyFilterMatchIsEmptyResult(t *testing.T) {
	quotes, funds, sentiment := fullFields("AAA")
	e := newTestEngine(t, quotes, funds, sentiment, nil)

	result, err := e.Rank(context.Background(), instruments("AAA"),
		domain.RankParams{Timeframe: domain.TimeframeSwing, Sector: "Utilities"})
	require.NoError(t, err)
	assert.Empty(t, result.Entries)
	assert.Zero(t, result.Excluded)
}

func TestRankExcludesInstrumentsWithoutData(t *testing.T) {
	quotes, funds, sentiment := fullFields("AAA", "BBB")
	e := newTestEngine(t, quotes, funds, sentiment, nil)

	// ZZZ exists in no provider; every sub-score is null.
	result, err := e.Rank(context.Background(), instruments("AAA", "ZZZ", "BBB"),
		domain.RankParams{Timeframe: domain.TimeframeSwing})
	require.NoError(t, err)

	require.Len(t, result.Entries, 2)
	assert.Equal(t, 1, result.Excluded)
	for _, entry := range result.Entries {
		assert.NotEqual(t, "ZZZ", entry.Symbol)
	}
}

func TestRankAsOfIsOldestComputedAt(t *testing.T) {
	quotes, funds, sentiment := fullFields("AAA", "BBB")
	e := newTestEngine(t, quotes, funds, sentiment, nil)

	result, err := e.Rank(context.Background(), instruments("AAA", "BBB"),
		domain.RankParams{Timeframe: domain.TimeframeSwing})
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)

	oldest := result.Entries[0].ComputedAt
	for _, entry := range result.Entries {
		if entry.ComputedAt.Before(oldest) {
			oldest = entry.ComputedAt
		}
	}
	assert.Equal(t, oldest, result.AsOf)
	assert.False(t, result.AsOf.IsZero())
}

func TestRankPersistsHistory(t *testing.T) {
	quotes, funds, sentiment := fullFields("AAA", "BBB")
	history := &memoryHistory{}
	e := newTestEngine(t, quotes, funds, sentiment, history)

	_, err := e.Rank(context.Background(), instruments("AAA", "BBB"),
		domain.RankParams{Timeframe: domain.TimeframeSwing})
	require.NoError(t, err)

	history.mu.Lock()
	defer history.mu.Unlock()
	assert.Len(t, history.saved, 2)
}

func TestScoreOne(t *testing.T) {
	quotes, funds, sentiment := fullFields("AAA")
	e := newTestEngine(t, quotes, funds, sentiment, nil)

	record, err := e.ScoreOne(context.Background(),
		domain.Instrument{Symbol: "AAA"}, domain.TimeframeSwing)
	require.NoError(t, err)
	assert.Equal(t, "AAA", record.Symbol)
	assert.Greater(t, record.Total, 0.0)
}
