package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"verdict-engine/internal/cache"
	"verdict-engine/internal/config"
	"verdict-engine/internal/drift"
	"verdict-engine/internal/registry"
)

var (
	driftWindowSize int
	driftJSON       bool
)

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Compare live feature traffic against the active training snapshot",
	Long: `Reads the rolling feature window from redis, bins it against the
active artifact's training-time feature statistics and reports the
per-feature Population Stability Index plus the aggregate verdict.

Example usage:
  trainer drift                 # table output
  trainer drift --json          # machine-readable report`,
	RunE: runDrift,
}

func init() {
	rootCmd.AddCommand(driftCmd)

	driftCmd.Flags().IntVar(&driftWindowSize, "window", 500, "Rolling feature window size")
	driftCmd.Flags().BoolVar(&driftJSON, "json", false, "Emit the report as JSON")
}

func runDrift(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	policy, err := config.LoadPolicy(policyPath)
	if err != nil {
		return err
	}

	reg := registry.New(registry.NewStore(artifactsDir), nil)
	if err := reg.Load(); err != nil {
		return fmt.Errorf("no active artifact to compare against: %w", err)
	}
	bundle := reg.Current()
	if len(bundle.Stats) == 0 {
		return fmt.Errorf("active artifact v%d carries no feature statistics", bundle.Version)
	}

	cache.InitRedis(ctx)
	window := cache.NewFeatureWindow(cache.Client, driftWindowSize)
	recent, err := window.Recent(ctx)
	if err != nil {
		return fmt.Errorf("read feature window: %w", err)
	}

	report := drift.NewMonitor(policy.Drift.Bins, nil).Compare(bundle.Stats, recent)

	if driftJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FEATURE\tPSI\tSTATUS\tMEAN SHIFT")
	for _, fd := range report.Features {
		fmt.Fprintf(w, "%s\t%.4f\t%s\t%+.2f\n", fd.Feature, fd.PSI, fd.Status, fd.MeanShift)
	}
	w.Flush()
	fmt.Printf("\naggregate: %s (window %d vectors, model v%d)\n",
		report.Aggregate, report.RecentCount, bundle.Version)
	return nil
}
