package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"guardian-hq/sentinel/pkg/filter"
	"guardian-hq/sentinel/pkg/moderator"
)

var analyzeFlags struct {
	contentID string
	file      string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text]",
	Short: "Analyze content against the active rule set",
	Long: `Analyze content against the active rule set and print the filtering
results as JSON.

A single text argument analyzes one item. With --file, each non-empty
line of the file is analyzed as a separate item ("-" reads stdin).
Results are persisted to the configured store.

Examples:
  # Analyze one item
  sentinel analyze "guaranteed returns, no risk!!!"

  # Analyze a file, one post per line
  sentinel analyze --file posts.txt

  # Analyze stdin
  cat posts.txt | sentinel analyze --file -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeFlags.contentID, "id", "", "content id for single-item analysis (default: generated)")
	analyzeCmd.Flags().StringVarP(&analyzeFlags.file, "file", "f", "", "read items from file, one per line (\"-\" for stdin)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && analyzeFlags.file == "" {
		return fmt.Errorf("provide text to analyze or --file")
	}
	if len(args) == 1 && analyzeFlags.file != "" {
		return fmt.Errorf("text argument and --file are mutually exclusive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
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

	if len(args) == 1 {
		id := analyzeFlags.contentID
		if id == "" {
			id = uuid.NewString()
		}
		res, err := mod.Moderate(ctx, id, args[0])
		if err != nil {
			logger.Warn("result not persisted", "error", err)
		}
		return printJSON(cmd.OutOrStdout(), res)
	}

	items, err := readItems(analyzeFlags.file, cmd.InOrStdin())
	if err != nil {
		return err
	}
	results, err := mod.ModerateBatch(ctx, items)
	if err != nil {
		logger.Warn("some results not persisted", "error", err)
	}
	return printJSON(cmd.OutOrStdout(), results)
}

// readItems reads one content item per non-empty line.
func readItems(path string, stdin io.Reader) ([]filter.Item, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening input file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var items []filter.Item
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		items = append(items, filter.Item{
			ID:   fmt.Sprintf("line-%d", line),
			Text: text,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return items, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
