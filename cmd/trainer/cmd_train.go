package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"verdict-engine/internal/config"
	"verdict-engine/internal/db"
	"verdict-engine/internal/domain"
	"verdict-engine/internal/notify"
	"verdict-engine/internal/registry"
	"verdict-engine/internal/training"
	"verdict-engine/pkg/tracing"
)

var (
	trainForce    bool
	trainInterval string
	trainLookback int
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run one offline training cycle",
	Long: `Pools the three historical sources (resolved prediction snapshots,
backtest trades, bar-derived synthetic samples), scrubs and time-splits
them, trains every model family with enough data, and writes a candidate
artifact. The validation gate decides promotion; a rejected candidate
never replaces the active version.

Example usage:
  trainer train                       # train from 90 days of hourly bars
  trainer train --lookback 180        # longer bar history
  trainer train --force               # train families below the sample floor`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().BoolVar(&trainForce, "force", false, "Train families even below the per-family sample minimum")
	trainCmd.Flags().StringVar(&trainInterval, "interval", "1h", "Bar interval for the synthetic source")
	trainCmd.Flags().IntVar(&trainLookback, "lookback", 90, "Days of bar history to pool")
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	policy, err := config.LoadPolicy(policyPath)
	if err != nil {
		return err
	}

	db.InitPostgres(ctx)
	if db.Pool == nil {
		return fmt.Errorf("DATABASE_URL is required: training reads historical outcomes from postgres")
	}
	defer db.Pool.Close()

	tp, tracer, err := tracing.InitTracer(ctx)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	chatID, _ := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)
	notifier := notify.NewNotifier(os.Getenv("TELEGRAM_BOT_TOKEN"), chatID)

	pipeline := training.NewPipeline(tracer,
		training.NewRepository(db.Pool, tracer),
		registry.NewStore(artifactsDir),
		notifier, policy, nil)

	result, err := pipeline.Run(ctx, training.Options{
		Force:        trainForce,
		BarInterval:  trainInterval,
		LookbackDays: trainLookback,
	})
	if err != nil {
		return err
	}

	printTrainResult(result)
	if !result.Promoted {
		return fmt.Errorf("%w: candidate v%d kept aside, active artifact untouched",
			domain.ErrGateRejected, result.Version)
	}
	return nil
}

func printTrainResult(result *training.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "version:\tv%d\n", result.Version)
	fmt.Fprintf(w, "promoted:\t%t\n", result.Promoted)
	fmt.Fprintf(w, "samples:\t%d (dropped %d, outliers %d, validation %d)\n",
		result.Samples, result.Dropped, result.Outliers, result.TestSize)

	families := make([]string, 0, len(result.Families))
	for name := range result.Families {
		families = append(families, name)
	}
	sort.Strings(families)
	for _, name := range families {
		fmt.Fprintf(w, "family %s:\t%s\n", name, result.Families[name])
	}

	metrics := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		metrics = append(metrics, name)
	}
	sort.Strings(metrics)
	for _, name := range metrics {
		fmt.Fprintf(w, "metric %s:\t%.4f\n", name, result.Metrics[name])
	}

	for _, check := range result.Gate.Checks {
		fmt.Fprintf(w, "gate %s:\t%s (%.4f vs %.4f)\n", check.Name, check.Status, check.Value, check.Threshold)
	}
	w.Flush()
}
