package commands

import (
	"fmt"

	"github.com/wonho/pulserank/internal/collector"
	"github.com/wonho/pulserank/internal/metrics"
	"github.com/wonho/pulserank/internal/normalize"
	"github.com/wonho/pulserank/internal/provider"
	"github.com/wonho/pulserank/internal/provider/fundamentals"
	"github.com/wonho/pulserank/internal/provider/macro"
	"github.com/wonho/pulserank/internal/provider/news"
	"github.com/wonho/pulserank/internal/provider/quotes"
	"github.com/wonho/pulserank/internal/provider/sentiment"
	"github.com/wonho/pulserank/internal/ranking"
	"github.com/wonho/pulserank/internal/scoring"
	"github.com/wonho/pulserank/internal/universe"
	"github.com/wonho/pulserank/pkg/config"
	"github.com/wonho/pulserank/pkg/httputil"
	"github.com/wonho/pulserank/pkg/logger"
	"github.com/wonho/pulserank/pkg/redis"
)

// newTransport builds one provider's transport with its own budget.
func newTransport(name string, pc config.ProviderConfig, cfg *config.Config, httpClient *httputil.Client, m *metrics.Metrics, log *logger.Logger) *provider.Transport {
	budget := provider.NewBudget(pc.RateLimit, pc.Window, cfg.Cache.ForegroundWait, cfg.Cache.BackgroundWait)
	t := provider.NewTransport(name, httpClient, budget, log)
	if m != nil {
		t = t.WithObserver(m)
	}
	return t
}

// buildAdapters wires one adapter per data class.
func buildAdapters(cfg *config.Config, m *metrics.Metrics, log *logger.Logger) []provider.Adapter {
	httpClient := httputil.New(log)

	return []provider.Adapter{
		quotes.NewClient(cfg.Quotes, newTransport(quotes.ProviderID, cfg.Quotes, cfg, httpClient, m, log), log),
		fundamentals.NewClient(cfg.Fundamentals, newTransport(fundamentals.ProviderID, cfg.Fundamentals, cfg, httpClient, m, log), log),
		news.NewClient(cfg.News, newTransport(news.ProviderID, cfg.News, cfg, httpClient, m, log), log),
		sentiment.NewClient(cfg.Sentiment, newTransport(sentiment.ProviderID, cfg.Sentiment, cfg, httpClient, m, log), log),
		macro.NewClient(cfg.Macro, newTransport(macro.ProviderID, cfg.Macro, cfg, httpClient, m, log), log),
	}
}

// buildCollector wires the collector, optionally over a redis L2.
func buildCollector(cfg *config.Config, m *metrics.Metrics, log *logger.Logger) (*collector.Collector, error) {
	var l2 *redis.Cache
	if cfg.Redis.Enabled {
		client, err := redis.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		l2 = redis.NewCache(client, "pulserank")
		log.Info("Redis snapshot cache enabled")
	}

	return collector.New(buildAdapters(cfg, m, log), normalize.New(log), l2, log), nil
}

// buildRanker wires collector, scoring and ranking.
func buildRanker(cfg *config.Config, col *collector.Collector, history ranking.HistoryRepo, log *logger.Logger) (*ranking.Engine, error) {
	weights := scoring.DefaultWeights()
	if cfg.WeightsPath != "" {
		var err error
		weights, err = scoring.LoadWeights(cfg.WeightsPath)
		if err != nil {
			return nil, fmt.Errorf("load weights: %w", err)
		}
	}

	scorer, err := scoring.NewEngine(weights, log)
	if err != nil {
		return nil, err
	}
	return ranking.NewEngine(col, scorer, history, log), nil
}

// loadUniverse reads the seed file into a fresh universe.
func loadUniverse(cfg *config.Config, log *logger.Logger) (*universe.Universe, error) {
	insts, err := universe.LoadSeed(cfg.UniversePath)
	if err != nil {
		return nil, err
	}

	u := universe.New(log)
	u.Replace(insts)
	log.WithField("instruments", u.Len()).Info("Universe loaded")
	return u, nil
}
