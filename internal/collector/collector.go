package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonho/pulserank/internal/domain"
	"github.com/wonho/pulserank/internal/normalize"
	"github.com/wonho/pulserank/internal/provider"
	"github.com/wonho/pulserank/pkg/logger"
	"github.com/wonho/pulserank/pkg/redis"
)

// scoringClasses are the data classes a SnapshotSet carries.
var scoringClasses = []domain.DataClass{
	domain.ClassQuotes,
	domain.ClassFundamentals,
	domain.ClassNews,
	domain.ClassSentiment,
}

// Collector gathers normalized snapshots for a set of instruments. It
// checks the in-memory snapshot cache first, then the redis layer, and
// only calls providers for what is missing or expired. Classes fail
// independently: a sentiment outage leaves sentiment null, it does not
// sink the whole collection.
type Collector struct {
	adapters map[domain.DataClass]provider.Adapter
	norm     *normalize.Normalizer
	snaps    *SnapshotCache
	l2       *redis.Cache
	logger   *logger.Logger

	nowFn func() time.Time
}

// New creates a collector over the given adapters.
func New(adapters []provider.Adapter, norm *normalize.Normalizer, l2 *redis.Cache, log *logger.Logger) *Collector {
	byClass := make(map[domain.DataClass]provider.Adapter, len(adapters))
	for _, a := range adapters {
		byClass[a.Class()] = a
	}

	return &Collector{
		adapters: byClass,
		norm:     norm,
		snaps:    NewSnapshotCache(),
		l2:       l2,
		logger:   log,
		nowFn:    time.Now,
	}
}

// WithNow overrides the clock. Meant for tests.
func (c *Collector) WithNow(nowFn func() time.Time) *Collector {
	c.nowFn = nowFn
	return c
}

// Snapshots exposes the snapshot cache for maintenance pruning.
func (c *Collector) Snapshots() *SnapshotCache {
	return c.snaps
}

// Delist drops a departed symbol's snapshots from memory and redis, so
// a symbol that later rejoins the universe starts from live data.
func (c *Collector) Delist(ctx context.Context, symbol string) {
	c.snaps.Remove(symbol)
	if c.l2 == nil {
		return
	}

	for _, class := range scoringClasses {
		key := redis.SnapshotKey(string(class), symbol)
		if err := c.l2.Delete(ctx, key); err != nil {
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"class":  class,
				"symbol": symbol,
			}).Debug("Redis snapshot delete failed")
		}
	}
}

// Collect returns one fixed SnapshotSet per symbol. The sets are built
// once and never mutated afterwards, so a scoring run sees a single
// consistent snapshot version per class even while newer data arrives.
//
// An error is returned only when no class yielded any data at all;
// partial coverage is the normal case and is not an error.
func (c *Collector) Collect(ctx context.Context, symbols []string) (map[string]domain.SnapshotSet, error) {
	var (
		mu        sync.Mutex
		anyData   bool
		firstErr  error
		collected = make(map[domain.DataClass]map[string]*domain.Snapshot, len(scoringClasses))
	)

	g, gctx := errgroup.WithContext(ctx)

	for _, class := range scoringClasses {
		class := class
		g.Go(func() error {
			bySymbol, err := c.collectClass(gctx, class, symbols)

			mu.Lock()
			defer mu.Unlock()
			collected[class] = bySymbol
			if len(bySymbol) > 0 {
				anyData = true
			}
			if err != nil && firstErr == nil {
				firstErr = err
			}
			// Class failures are absorbed; cancellation is not.
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !anyData {
		if firstErr != nil {
			return nil, fmt.Errorf("no data class produced snapshots: %w", firstErr)
		}
		return nil, fmt.Errorf("no data class produced snapshots: %w", domain.ErrProviderUnavailable)
	}

	sets := make(map[string]domain.SnapshotSet, len(symbols))
	for _, symbol := range symbols {
		sets[symbol] = domain.SnapshotSet{
			Quotes:       collected[domain.ClassQuotes][symbol],
			Fundamentals: collected[domain.ClassFundamentals][symbol],
			News:         collected[domain.ClassNews][symbol],
			Sentiment:    collected[domain.ClassSentiment][symbol],
		}
	}

	return sets, nil
}

// collectClass resolves one class for all symbols: memory, then redis,
// then the provider for the remainder.
func (c *Collector) collectClass(ctx context.Context, class domain.DataClass, symbols []string) (map[string]*domain.Snapshot, error) {
	now := c.nowFn()
	result := make(map[string]*domain.Snapshot, len(symbols))
	var missing []string

	for _, symbol := range symbols {
		if snap, ok := c.snaps.GetFresh(class, symbol, now); ok {
			result[symbol] = snap
			continue
		}
		if snap := c.fromL2(ctx, class, symbol, now); snap != nil {
			result[symbol] = snap
			continue
		}
		missing = append(missing, symbol)
	}

	if len(missing) == 0 {
		return result, nil
	}

	adapter, ok := c.adapters[class]
	if !ok {
		return result, nil
	}

	raw, err := adapter.Fetch(ctx, missing)
	if err != nil {
		c.logger.WithError(err).WithFields(map[string]interface{}{
			"class":   class,
			"missing": len(missing),
		}).Warn("Provider fetch failed, continuing with partial data")
		return result, err
	}

	snaps, err := c.norm.Normalize(raw)
	if err != nil {
		return result, err
	}

	for _, snap := range snaps {
		c.store(ctx, snap)
		result[snap.Symbol] = snap
	}

	return result, nil
}

// ApplyPayload normalizes and stores a pushed payload (websocket ticks).
func (c *Collector) ApplyPayload(ctx context.Context, raw *provider.RawPayload) error {
	snaps, err := c.norm.Normalize(raw)
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		c.store(ctx, snap)
	}
	return nil
}

// RunStream consumes pushed quote updates until the context ends.
func (c *Collector) RunStream(ctx context.Context, updates <-chan *provider.RawPayload) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-updates:
			if !ok {
				return
			}
			if err := c.ApplyPayload(ctx, raw); err != nil {
				c.logger.WithError(err).Debug("Dropping stream payload")
			}
		}
	}
}

// Macro fetches the market-level indicator snapshot, memory-cached under
// the empty symbol like any other class.
func (c *Collector) Macro(ctx context.Context) (*domain.Snapshot, error) {
	now := c.nowFn()
	if snap, ok := c.snaps.GetFresh(domain.ClassMacro, "", now); ok {
		return snap, nil
	}

	adapter, ok := c.adapters[domain.ClassMacro]
	if !ok {
		return nil, fmt.Errorf("no macro adapter configured: %w", domain.ErrDataUnavailable)
	}

	raw, err := adapter.Fetch(ctx, nil)
	if err != nil {
		return nil, err
	}

	snaps, err := c.norm.Normalize(raw)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("empty macro payload: %w", domain.ErrProviderUnavailable)
	}

	c.store(ctx, snaps[0])
	return snaps[0], nil
}

// store writes a snapshot to memory and best-effort to redis so a
// restart warms from the last persisted state.
func (c *Collector) store(ctx context.Context, snap *domain.Snapshot) {
	if !c.snaps.Put(snap) {
		return
	}
	if c.l2 == nil {
		return
	}

	key := redis.SnapshotKey(string(snap.Class), snap.Symbol)
	if err := c.l2.Set(ctx, key, snap, snap.TTL); err != nil {
		c.logger.WithError(err).Debug("Redis snapshot write failed")
	}
}

// fromL2 reads a still-fresh snapshot out of redis and promotes it to
// the in-memory cache.
func (c *Collector) fromL2(ctx context.Context, class domain.DataClass, symbol string, now time.Time) *domain.Snapshot {
	if c.l2 == nil {
		return nil
	}

	var snap domain.Snapshot
	found, err := c.l2.Get(ctx, redis.SnapshotKey(string(class), symbol), &snap)
	if err != nil || !found {
		return nil
	}
	if snap.Expired(now) {
		return nil
	}

	c.snaps.Put(&snap)
	return &snap
}
