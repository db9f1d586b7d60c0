package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonho/pulserank/internal/domain"
	"github.com/wonho/pulserank/pkg/config"
	"github.com/wonho/pulserank/pkg/logger"
)

var scoreTimeframe string

var scoreCmd = &cobra.Command{
	Use:   "score <symbol>",
	Short: "Score one instrument and print the record",
	Args:  cobra.ExactArgs(1),
	RunE:  runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)
	scoreCmd.Flags().StringVar(&scoreTimeframe, "timeframe", "swing", "scoring timeframe (swing|position)")
}

func runScore(cmd *cobra.Command, args []string) error {
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

	symbol := strings.ToUpper(args[0])
	inst, ok := u.Get(symbol)
	if !ok {
		return fmt.Errorf("symbol %s not in universe", symbol)
	}

	record, err := ranker.ScoreOne(cmd.Context(), inst, domain.ParseTimeframe(scoreTimeframe))
	if err != nil {
		return fmt.Errorf("score %s: %w", symbol, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(record)
}
