package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"guardian-hq/sentinel/pkg/filter"
	"guardian-hq/sentinel/pkg/filter/cache"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration without running anything",
	Long: `Load and validate the configuration file, including scoring
thresholds and, when the file rule source is configured, compilation of
every rule pattern. Exits non-zero on the first problem.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "configuration OK")

	if cfg.Rules.Source == "file" {
		rules, err := cache.NewFileSource(cfg.Rules.Path).Load(cmd.Context())
		if err != nil {
			return err
		}
		compiled, skipped := filter.CompileAll(rules, filter.CompileOptions{PhraseWindow: cfg.Cache.PhraseWindow})
		fmt.Fprintf(out, "rule file OK: %d rules compiled, %d skipped\n", len(compiled), len(skipped))
		for _, err := range skipped {
			fmt.Fprintf(out, "  skipped: %v\n", err)
		}
		if len(skipped) > 0 {
			return fmt.Errorf("%d rules failed to compile", len(skipped))
		}
	}
	return nil
}
