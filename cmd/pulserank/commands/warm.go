package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonho/pulserank/internal/api"
	"github.com/wonho/pulserank/internal/cache"
	"github.com/wonho/pulserank/internal/domain"
	"github.com/wonho/pulserank/pkg/config"
	"github.com/wonho/pulserank/pkg/logger"
)

var warmLimit int

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Prime the result cache for the standard ranked views",
	Long: `Computes the unfiltered ranked view for each timeframe so the first
requests after a deploy hit a warm cache.`,
	RunE: runWarm,
}

func init() {
	rootCmd.AddCommand(warmCmd)
	warmCmd.Flags().IntVar(&warmLimit, "limit", 50, "entries per warmed view")
}

func runWarm(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	col, err := buildCollector(cfg, nil, log)
	if err != nil {
		return err
	}
	ranker, err := buildRanker(cfg, col, nil, log)
	if err != nil {
		return err
	}
	u, err := loadUniverse(cfg, log)
	if err != nil {
		return err
	}

	resultCache, err := cache.NewStore(cache.Options{
		RefreshAhead:   cfg.Cache.RefreshAhead,
		MaxStaleFactor: cfg.Cache.MaxStaleFactor,
	}, log)
	if err != nil {
		return err
	}

	service := api.NewService(resultCache, ranker, u, col.Macro, cfg.Cache.ResultTTL, log)

	views := []domain.RankParams{
		{Timeframe: domain.TimeframeSwing, Limit: warmLimit},
		{Timeframe: domain.TimeframePosition, Limit: warmLimit},
	}

	warmed, errs := service.Warm(cmd.Context(), views)
	for _, err := range errs {
		log.WithError(err).Warn("View warm failed")
	}

	fmt.Printf("warmed %d/%d views\n", warmed, len(views))
	if len(errs) > 0 {
		return fmt.Errorf("%d views failed to warm", len(errs))
	}
	return nil
}
