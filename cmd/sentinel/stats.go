package main

import (
	"time"

	"github.com/spf13/cobra"

	"guardian-hq/sentinel/pkg/moderator"
)

var statsFlags struct {
	window time.Duration
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize moderation activity",
	Long: `Summarize moderation activity over a trailing window: item counts,
average severity, and the action and category distributions. Output is
JSON.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().DurationVarP(&statsFlags.window, "window", "w", 0, "trailing window (default: configured stats window)")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if statsFlags.window > 0 {
		cfg.Moderator.StatsWindow = statsFlags.window
	}
	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	mod, err := moderator.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer mod.Close()

	stats, err := mod.Stats(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), stats)
}
