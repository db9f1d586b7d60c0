package collector

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonho/pulserank/internal/domain"
	"github.com/wonho/pulserank/internal/normalize"
	"github.com/wonho/pulserank/internal/provider"
	"github.com/wonho/pulserank/pkg/logger"
)

// fakeAdapter serves canned fields and counts calls.
type fakeAdapter struct {
	class  domain.DataClass
	ttl    time.Duration
	fields map[string]map[string]interface{} // symbol -> vendor fields
	err    error
	calls  int32
}

func (f *fakeAdapter) Class() domain.DataClass     { return f.class }
func (f *fakeAdapter) Provider() string            { return "fake-" + string(f.class) }
func (f *fakeAdapter) FreshnessTTL() time.Duration { return f.ttl }

func (f *fakeAdapter) Fetch(ctx context.Context, symbols []string) (*provider.RawPayload, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}

	payload := &provider.RawPayload{
		Class:       f.class,
		Provider:    f.Provider(),
		RetrievedAt: time.Now(),
		TTL:         f.ttl,
	}
	for _, sym := range symbols {
		if fields, ok := f.fields[sym]; ok {
			payload.Records = append(payload.Records, provider.RawRecord{Symbol: sym, Fields: fields})
		}
	}
	return payload, nil
}

func quotesAdapter() *fakeAdapter {
	return &fakeAdapter{
		class: domain.ClassQuotes,
		ttl:   time.Minute,
		fields: map[string]map[string]interface{}{
			"AAA": {"last": 100.0, "chg5d": 0.02, "chg1m": 0.05},
			"BBB": {"last": 55.0, "chg5d": -0.01, "chg1m": 0.03},
		},
	}
}

func newTestCollector(adapters ...provider.Adapter) *Collector {
	log := logger.NewNop()
	return New(adapters, normalize.New(log), nil, log)
}

func TestCollect_BuildsSets(t *testing.T) {
	quotes := quotesAdapter()
	sentiment := &fakeAdapter{
		class: domain.ClassSentiment,
		ttl:   time.Minute,
		fields: map[string]map[string]interface{}{
			"AAA": {"score": 0.4},
		},
	}

	c := newTestCollector(quotes, sentiment)

	sets, err := c.Collect(context.Background(), []string{"AAA", "BBB"})
	require.NoError(t, err)
	require.Len(t, sets, 2)

	aaa := sets["AAA"]
	require.NotNil(t, aaa.Quotes)
	require.NotNil(t, aaa.Sentiment)
	assert.Nil(t, aaa.Fundamentals, "unconfigured class stays null")

	bbb := sets["BBB"]
	require.NotNil(t, bbb.Quotes)
	assert.Nil(t, bbb.Sentiment, "symbol absent from provider response stays null")
}

func TestCollect_UsesCacheWithinTTL(t *testing.T) {
	quotes := quotesAdapter()
	c := newTestCollector(quotes)

	_, err := c.Collect(context.Background(), []string{"AAA"})
	require.NoError(t, err)
	_, err = c.Collect(context.Background(), []string{"AAA"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&quotes.calls),
		"second collect inside TTL must not refetch")
}

func TestCollect_RefetchesAfterExpiry(t *testing.T) {
	quotes := quotesAdapter()
	c := newTestCollector(quotes)

	_, err := c.Collect(context.Background(), []string{"AAA"})
	require.NoError(t, err)

	// Move the clock past the quote TTL.
	c.WithNow(func() time.Time { return time.Now().Add(2 * time.Minute) })

	_, err = c.Collect(context.Background(), []string{"AAA"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&quotes.calls))
}

func TestCollect_PartialProviderFailureTolerated(t *testing.T) {
	quotes := quotesAdapter()
	news := &fakeAdapter{class: domain.ClassNews, ttl: time.Minute, err: domain.ErrProviderUnavailable}

	c := newTestCollector(quotes, news)

	sets, err := c.Collect(context.Background(), []string{"AAA"})
	require.NoError(t, err, "one failing class must not sink the collection")
	require.NotNil(t, sets["AAA"].Quotes)
	assert.Nil(t, sets["AAA"].News)
}

func TestCollect_TotalFailureIsError(t *testing.T) {
	quotes := &fakeAdapter{class: domain.ClassQuotes, ttl: time.Minute, err: domain.ErrProviderUnavailable}

	c := newTestCollector(quotes)

	_, err := c.Collect(context.Background(), []string{"AAA"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestApplyPayload_StreamUpdatesCache(t *testing.T) {
	c := newTestCollector()

	raw := &provider.RawPayload{
		Class:       domain.ClassQuotes,
		Provider:    "marketfeed",
		RetrievedAt: time.Now(),
		TTL:         time.Minute,
		Records: []provider.RawRecord{
			{Symbol: "AAA", Fields: map[string]interface{}{"price": 102.5}},
		},
	}
	require.NoError(t, c.ApplyPayload(context.Background(), raw))

	snap, ok := c.Snapshots().Get(domain.ClassQuotes, "AAA")
	require.True(t, ok)
	last, ok := snap.Number("last")
	require.True(t, ok, "stream 'price' maps to canonical 'last'")
	assert.Equal(t, 102.5, last)
}

func TestDelist_DropsSnapshotsAndForcesRefetch(t *testing.T) {
	quotes := quotesAdapter()
	c := newTestCollector(quotes)

	_, err := c.Collect(context.Background(), []string{"AAA", "BBB"})
	require.NoError(t, err)

	c.Delist(context.Background(), "AAA")

	_, ok := c.Snapshots().Get(domain.ClassQuotes, "AAA")
	assert.False(t, ok, "delisted symbol's snapshots are dropped")
	_, ok = c.Snapshots().Get(domain.ClassQuotes, "BBB")
	assert.True(t, ok, "remaining members keep their snapshots")

	// A re-listed symbol starts from a fresh fetch, not the old data.
	_, err = c.Collect(context.Background(), []string{"AAA"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&quotes.calls))
}

func TestSnapshotCache_OlderNeverOverwritesNewer(t *testing.T) {
	cache := NewSnapshotCache()
	now := time.Now()

	newer := &domain.Snapshot{Symbol: "AAA", Class: domain.ClassQuotes, RetrievedAt: now}
	older := &domain.Snapshot{Symbol: "AAA", Class: domain.ClassQuotes, RetrievedAt: now.Add(-time.Second)}

	assert.True(t, cache.Put(newer))
	assert.False(t, cache.Put(older), "stale REST backfill must not clobber stream data")

	got, _ := cache.Get(domain.ClassQuotes, "AAA")
	assert.Equal(t, now, got.RetrievedAt)
}

func TestMacro(t *testing.T) {
	macro := &fakeAdapter{
		class:  domain.ClassMacro,
		ttl:    time.Hour,
		fields: map[string]map[string]interface{}{},
	}
	// Macro payloads carry one symbol-less record.
	macroFetch := func(ctx context.Context, symbols []string) (*provider.RawPayload, error) {
		return &provider.RawPayload{
			Class: domain.ClassMacro, Provider: "macrowatch", RetrievedAt: time.Now(), TTL: time.Hour,
			Records: []provider.RawRecord{{Fields: map[string]interface{}{"regime": "risk_on", "riskAppetite": 0.7}}},
		}, nil
	}
	c := newTestCollector(adapterFunc{macro, macroFetch})

	snap, err := c.Macro(context.Background())
	require.NoError(t, err)

	regime, ok := snap.String("regime")
	require.True(t, ok)
	assert.Equal(t, "risk_on", regime)
}

// adapterFunc overrides a fakeAdapter's Fetch.
type adapterFunc struct {
	*fakeAdapter
	fetch func(ctx context.Context, symbols []string) (*provider.RawPayload, error)
}

func (a adapterFunc) Fetch(ctx context.Context, symbols []string) (*provider.RawPayload, error) {
	return a.fetch(ctx, symbols)
}
