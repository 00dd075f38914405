package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"guardian-hq/sentinel/pkg/config"
	"guardian-hq/sentinel/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Sentinel - content filtering engine for community platforms",
	Long: `Sentinel analyzes text content against a configurable rule set and
decides whether each item should be allowed, flagged for review, or
blocked.

It provides:
  - Keyword, regex, and proximity phrase matching
  - Weighted severity scoring with configurable thresholds
  - A persistent audit trail of every rule match
  - Hot-reloadable rules from a database or YAML files
  - Synthetic content generation for exercising rule sets`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig loads the configuration file named by --config, with the
// --verbose flag forcing debug logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// buildLogger creates the process logger from configuration. Logs go to
// stderr so command output on stdout stays machine-readable.
func buildLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
		Writer:    os.Stderr,
	})
}
