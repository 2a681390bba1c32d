package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	artifactsDir string
	policyPath   string
)

// rootCmd is the base command for the offline training CLI.
var rootCmd = &cobra.Command{
	Use:   "trainer",
	Short: "Offline training and artifact management for the verdict engine",
	Long: `Trains the meta-model, per-engine calibrators and the weight optimizer
from pooled historical outcomes, gates candidates before promotion, and
manages the on-disk artifact versions the serving process loads.

Training never touches the active artifact directly: candidates are
written aside and only an approved candidate is promoted.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&artifactsDir, "artifacts", "artifacts", "Artifact store directory")
	rootCmd.PersistentFlags().StringVar(&policyPath, "policy", "config/policy.yaml", "Path to the YAML policy file")
}

func main() {
	godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
