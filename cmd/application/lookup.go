package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gomarket_mdm/internal/marketplace"
	"gomarket_mdm/metrics"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <pricing|offers|restrictions> [KEY[:category]...]",
	Short: "Look up marketplace data for product keys",
	Long:  "Looks up pricing, offers or listing restrictions for ASINs/SKUs in rate-limited batches. Results that could not be fetched live are flagged as simulated.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLookup,
}

var lookupFile string

func init() {
	lookupCmd.Flags().StringVarP(&lookupFile, "file", "f", "", "File with one KEY[:category] per line")

	rootCmd.AddCommand(lookupCmd)
}

type lookupReport struct {
	Kind    marketplace.Kind           `json:"kind"`
	Results []marketplace.LookupResult `json:"results"`
	Summary metrics.BatchSummary       `json:"summary"`
}

func runLookup(cmd *cobra.Command, args []string) error {
	kind, err := marketplace.ParseKind(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	startMetrics(ctx, cfg, newLogger("[Metrics] "))

	items := parseItems(args[1:])
	if lookupFile != "" {
		fromFile, err := readItems(lookupFile)
		if err != nil {
			return err
		}
		items = append(items, fromFile...)
	}
	if len(items) == 0 {
		return fmt.Errorf("no keys given")
	}

	results, summary := newBatchClient(cfg).Run(ctx, items, kind)
	return printJSON(cmd.OutOrStdout(), lookupReport{Kind: kind, Results: results, Summary: summary})
}

func parseItems(args []string) []marketplace.Item {
	items := make([]marketplace.Item, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		key, category, _ := strings.Cut(arg, ":")
		items = append(items, marketplace.Item{Key: strings.TrimSpace(key), Category: strings.TrimSpace(category)})
	}
	return items
}

func readItems(path string) ([]marketplace.Item, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return parseItems(lines), nil
}
