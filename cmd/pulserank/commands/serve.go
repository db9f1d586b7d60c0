package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonho/pulserank/internal/api"
	"github.com/wonho/pulserank/internal/cache"
	"github.com/wonho/pulserank/internal/metrics"
	"github.com/wonho/pulserank/internal/provider/quotes"
	"github.com/wonho/pulserank/internal/ranking"
	"github.com/wonho/pulserank/internal/refresh"
	"github.com/wonho/pulserank/internal/scheduler"
	"github.com/wonho/pulserank/internal/scheduler/jobs"
	"github.com/wonho/pulserank/internal/store"
	"github.com/wonho/pulserank/pkg/config"
	"github.com/wonho/pulserank/pkg/database"
	"github.com/wonho/pulserank/pkg/logger"
)

var (
	servePort   string
	serveStream bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server with the refresh scheduler",
	Long: `Starts the HTTP API, the background refresh scheduler and, when
enabled, the realtime quote stream.

Endpoints:
  GET  /api/picks
  GET  /api/score/{symbol}
  GET  /api/market
  POST /api/admin/warm
  POST /api/admin/invalidate
  GET  /api/admin/jobs
  GET  /health
  GET  /metrics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePort, "port", "", "override listen port")
	serveCmd.Flags().BoolVar(&serveStream, "stream", false, "subscribe to the realtime quote stream")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if servePort != "" {
		cfg.Port = servePort
	}

	log := logger.New(cfg)

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	col, err := buildCollector(cfg, m, log)
	if err != nil {
		return err
	}

	// Score history is optional; the service runs fully without postgres.
	var history ranking.HistoryRepo
	var scores *store.ScoreRepository
	if cfg.Database.Enabled {
		db, err := database.New(cfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()

		scores = store.NewScoreRepository(db.Pool)
		if err := scores.Migrate(cmd.Context()); err != nil {
			return err
		}
		history = scores
		log.Info("Score history enabled")
	}

	ranker, err := buildRanker(cfg, col, history, log)
	if err != nil {
		return err
	}

	u, err := loadUniverse(cfg, log)
	if err != nil {
		return err
	}

	storeOpts := cache.Options{
		RefreshAhead:   cfg.Cache.RefreshAhead,
		MaxStaleFactor: cfg.Cache.MaxStaleFactor,
	}
	if m != nil {
		storeOpts.Recorder = m
	}
	resultCache, err := cache.NewStore(storeOpts, log)
	if err != nil {
		return err
	}

	service := api.NewService(resultCache, ranker, u, col.Macro, cfg.Cache.ResultTTL, log)

	// Delistings also purge the symbol's snapshots, memory and redis.
	u.OnDelist(func(symbol string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		col.Delist(ctx, symbol)
	})

	var refreshRec refresh.Recorder
	if m != nil {
		refreshRec = m
	}
	refresher := refresh.New(resultCache, refreshRec, log)

	sched := scheduler.New(log)
	if err := sched.Register(jobs.NewRefreshJob(refresher, cfg.Cache.RefreshInterval, log)); err != nil {
		return err
	}
	if err := sched.Register(jobs.NewUniverseJob(u, cfg.UniversePath, log)); err != nil {
		return err
	}
	if err := sched.Register(jobs.NewMaintenanceJob(col.Snapshots(), scores, log)); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	streamCtx, stopStream := context.WithCancel(context.Background())
	defer stopStream()
	if serveStream {
		stream := quotes.NewStream(cfg.Quotes, log)
		if err := stream.Start(streamCtx, u.Symbols()); err != nil {
			log.WithError(err).Warn("Quote stream unavailable, continuing with polling only")
		} else {
			defer stream.Stop()
			go col.RunStream(streamCtx, stream.Updates())
		}
	}

	var metricsHandler http.Handler
	if m != nil {
		metricsHandler = m.Handler()
	}
	handler := api.NewHandler(service, sched, log)
	server := api.NewServer(cfg, log, api.NewRouter(handler, metricsHandler, log))

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
