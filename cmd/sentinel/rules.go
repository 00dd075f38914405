package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"guardian-hq/sentinel/pkg/config"
	"guardian-hq/sentinel/pkg/filter"
	"guardian-hq/sentinel/pkg/filter/cache"
	"guardian-hq/sentinel/pkg/storage"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage the filtering rule set",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every rule in the store",
	RunE:  runRulesList,
}

var rulesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the built-in sample rule set into the store",
	RunE:  runRulesSeed,
}

var rulesEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Activate a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRuleActive(cmd, args[0], true)
	},
}

var rulesDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Deactivate a rule without deleting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRuleActive(cmd, args[0], false)
	},
}

var rulesTestCmd = &cobra.Command{
	Use:   "test <text>",
	Short: "Test content against the active rules with per-rule detail",
	Long: `Analyze one piece of content against the active rule set and print
every match with its rule, offsets, and confidence, plus the resulting
severity and action. Nothing is persisted.`,
	Args: cobra.ExactArgs(1),
	RunE: runRulesTest,
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check <file-or-dir>",
	Short: "Compile a rule file and report pattern errors",
	Long: `Compile every rule in a YAML rule file (or directory of rule files)
and report patterns that would be skipped at load time.`,
	Args: cobra.ExactArgs(1),
	RunE: runRulesCheck,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesSeedCmd, rulesEnableCmd, rulesDisableCmd, rulesTestCmd, rulesCheckCmd)
}

// openStore opens the configured store for rule administration.
func openStore(ctx context.Context) (storage.Store, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := buildLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

func runRulesList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	rules, err := store.ListRules(ctx)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no rules in store (try: sentinel rules seed)")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tSEVERITY\tCATEGORY\tACTIVE\tPATTERN")
	for _, r := range rules {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%t\t%s\n",
			r.ID, r.Name, r.Type, r.Severity, r.Category, r.Active, r.Pattern)
	}
	return w.Flush()
}

func runRulesSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := storage.SeedSampleRules(ctx, store)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d sample rules\n", n)
	return nil
}

func setRuleActive(cmd *cobra.Command, rawID string, active bool) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid rule id %q", rawID)
	}

	ctx := cmd.Context()
	store, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SetRuleActive(ctx, id, active); err != nil {
		return err
	}
	state := "disabled"
	if active {
		state = "enabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rule %d %s\n", id, state)
	return nil
}

// staticRules serves a fixed compiled rule set to the engine.
type staticRules []filter.CompiledRule

func (s staticRules) ActiveRules(ctx context.Context) ([]filter.CompiledRule, error) {
	return s, nil
}

func runRulesTest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	var rules []filter.Rule
	if cfg.Rules.Source == "file" {
		rules, err = cache.NewFileSource(cfg.Rules.Path).Load(ctx)
	} else {
		var store storage.Store
		store, err = storage.Open(ctx, cfg.Storage, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		rules, err = store.ListActiveRules(ctx)
	}
	if err != nil {
		return err
	}

	compiled, skipped := filter.CompileAll(rules, filter.CompileOptions{PhraseWindow: cfg.Cache.PhraseWindow})
	for _, err := range skipped {
		fmt.Fprintf(cmd.OutOrStdout(), "skipped: %v\n", err)
	}

	engine, err := filter.NewEngine(cfg.Filter, staticRules(compiled), logger)
	if err != nil {
		return err
	}
	res := engine.Analyze(ctx, "test", args[0])

	byID := make(map[int64]filter.Rule, len(compiled))
	for _, cr := range compiled {
		byID[cr.Rule.ID] = cr.Rule
	}

	out := cmd.OutOrStdout()
	if len(res.Matches) == 0 {
		fmt.Fprintln(out, "no matches")
	}
	for _, m := range res.Matches {
		r := byID[m.RuleID]
		fmt.Fprintf(out, "rule %d %q (%s, severity %d): %q at [%d:%d] confidence %.2f\n",
			m.RuleID, r.Name, r.Type, r.Severity, m.Text, m.Start, m.End, m.Confidence)
	}
	fmt.Fprintf(out, "severity %.3f action %s\n", res.Severity, res.Action)
	return nil
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	source := cache.NewFileSource(args[0])
	rules, err := source.Load(cmd.Context())
	if err != nil {
		return err
	}

	compiled, skipped := filter.CompileAll(rules, filter.CompileOptions{})
	fmt.Fprintf(cmd.OutOrStdout(), "%d rules compiled, %d skipped\n", len(compiled), len(skipped))
	for _, err := range skipped {
		fmt.Fprintf(cmd.OutOrStdout(), "  skipped: %v\n", err)
	}
	if len(skipped) > 0 {
		return fmt.Errorf("%d rules failed to compile", len(skipped))
	}
	return nil
}
