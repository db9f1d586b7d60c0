package api

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wonho/pulserank/internal/cache"
	"github.com/wonho/pulserank/internal/domain"
	"github.com/wonho/pulserank/internal/ranking"
	"github.com/wonho/pulserank/internal/universe"
	"github.com/wonho/pulserank/pkg/logger"
)

// Cache key namespaces. By-prefix invalidation targets these.
const (
	endpointPicks  = "picks"
	endpointScore  = "score"
	endpointMarket = "market"
)

// MacroFunc fetches the current macro snapshot.
type MacroFunc func(ctx context.Context) (*domain.Snapshot, error)

// Service is the cached face of the scoring system. Every read goes
// through the result cache, so request fan-in, stale serving and
// background refresh behave identically for all endpoints.
type Service struct {
	store    *cache.Store
	ranker   *ranking.Engine
	universe *universe.Universe
	macro    MacroFunc

	resultTTL time.Duration
	logger    *logger.Logger
}

// NewService wires the service and registers the delisting hook so
// membership changes drop every cached view that could contain the
// departed symbol.
func NewService(store *cache.Store, ranker *ranking.Engine, u *universe.Universe, macro MacroFunc, resultTTL time.Duration, log *logger.Logger) *Service {
	s := &Service{
		store:     store,
		ranker:    ranker,
		universe:  u,
		macro:     macro,
		resultTTL: resultTTL,
		logger:    log,
	}

	u.OnDelist(s.onDelist)
	return s
}

// PicksKey is the cache key for one ranked view.
func PicksKey(params domain.RankParams) string {
	return cache.Fingerprint(endpointPicks, map[string]string{
		"timeframe": string(params.Timeframe),
		"sector":    params.Sector,
		"theme":     params.Theme,
		"limit":     strconv.Itoa(params.Limit),
	})
}

// ScoreKey is the cache key for one instrument's score.
func ScoreKey(symbol string, tf domain.Timeframe) string {
	return cache.Fingerprint(endpointScore, map[string]string{
		"symbol":    symbol,
		"timeframe": string(tf),
	})
}

// Picks returns the cached ranked view for the given parameters.
func (s *Service) Picks(ctx context.Context, params domain.RankParams) (*cache.Result, error) {
	return s.store.GetOrCompute(ctx, PicksKey(params), s.resultTTL, func(ctx context.Context) (interface{}, error) {
		return s.ranker.Rank(ctx, s.universe.List(), params)
	})
}

// Score returns the cached score for one instrument. Symbols outside
// the universe are invalid, not empty.
func (s *Service) Score(ctx context.Context, symbol string, tf domain.Timeframe) (*cache.Result, error) {
	inst, ok := s.universe.Get(symbol)
	if !ok {
		return nil, fmt.Errorf("symbol %s not in universe: %w", symbol, domain.ErrInvalidInstrument)
	}

	return s.store.GetOrCompute(ctx, ScoreKey(inst.Symbol, tf), s.resultTTL, func(ctx context.Context) (interface{}, error) {
		return s.ranker.ScoreOne(ctx, inst, tf)
	})
}

// Market returns the cached macro regime snapshot.
func (s *Service) Market(ctx context.Context) (*cache.Result, error) {
	key := cache.Fingerprint(endpointMarket, nil)
	return s.store.GetOrCompute(ctx, key, s.resultTTL, func(ctx context.Context) (interface{}, error) {
		return s.macro(ctx)
	})
}

// Warm primes the cache for a set of ranked views. Failures are
// reported per view but never abort the remaining warms.
func (s *Service) Warm(ctx context.Context, views []domain.RankParams) (warmed int, errs []error) {
	for _, params := range views {
		if _, err := s.Picks(ctx, params); err != nil {
			errs = append(errs, fmt.Errorf("warm %s: %w", PicksKey(params), err))
			continue
		}
		warmed++
	}
	return warmed, errs
}

// Invalidate drops exact keys and, when prefix is set, a whole
// namespace regardless of TTL.
func (s *Service) Invalidate(keys []string, prefix string) int {
	removed := s.store.Invalidate(keys...)
	if prefix != "" {
		removed += s.store.InvalidatePrefix(strings.ToLower(prefix))
	}
	return removed
}

// onDelist drops every cached view that could still contain a symbol
// that left the universe. Ranked views are keyed by parameters, not
// membership, so the whole picks namespace goes.
func (s *Service) onDelist(symbol string) {
	removed := s.store.InvalidatePrefix(endpointPicks + ":")
	for _, tf := range []domain.Timeframe{domain.TimeframeSwing, domain.TimeframePosition} {
		removed += s.store.Invalidate(ScoreKey(symbol, tf))
	}

	s.logger.WithFields(map[string]interface{}{
		"symbol":  symbol,
		"entries": removed,
	}).Info("Invalidated cache entries for delisted symbol")
}
