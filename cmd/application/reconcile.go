package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"gomarket_mdm/internal/reconcile"
	"gomarket_mdm/internal/storage"
	"gomarket_mdm/pkg/records"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Propose mappings from supplier columns to the product schema",
	Long:  "Reads a sample file (--file) or a header list (--headers), proposes column to field mappings, reports unmapped required fields, suggests a saved template and checks value types.",
	RunE:  runReconcile,
}

var (
	reconcileFile     string
	reconcileHeaders  string
	reconcileEncoding string
	reconcileSourceID string
	reconcileSave     bool
)

func init() {
	reconcileCmd.Flags().StringVarP(&reconcileFile, "file", "f", "", "Sample file (csv, tsv, json)")
	reconcileCmd.Flags().StringVar(&reconcileHeaders, "headers", "", "Comma-separated column names instead of a file")
	reconcileCmd.Flags().StringVar(&reconcileEncoding, "encoding", "", "CSV encoding, e.g. windows-1251")
	reconcileCmd.Flags().StringVar(&reconcileSourceID, "source-id", "", "Source to save mappings for (with --save)")
	reconcileCmd.Flags().BoolVar(&reconcileSave, "save", false, "Replace the saved mappings of --source-id (requires Postgres)")

	rootCmd.AddCommand(reconcileCmd)
}

type reconcileReport struct {
	Headers          []string                     `json:"headers"`
	Mappings         []reconcile.FieldMapping     `json:"mappings"`
	UnmappedRequired []string                     `json:"unmapped_required"`
	Suggestion       *reconcile.Suggestion        `json:"suggestion,omitempty"`
	Validation       []reconcile.ValidationResult `json:"validation,omitempty"`
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if reconcileSave && reconcileSourceID == "" {
		return fmt.Errorf("--save requires --source-id")
	}

	var table *records.Table
	switch {
	case reconcileFile != "":
		body, err := os.ReadFile(reconcileFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", reconcileFile, err)
		}
		table, err = records.Parse(body, records.Options{
			Filename: filepath.Base(reconcileFile),
			Encoding: reconcileEncoding,
			Limit:    cfg.Pull.SampleLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", reconcileFile, err)
		}
	case reconcileHeaders != "":
		headers := lo.Map(strings.Split(reconcileHeaders, ","), func(h string, _ int) string {
			return strings.TrimSpace(h)
		})
		table = &records.Table{Columns: headers, Records: []records.Record{}}
	default:
		return fmt.Errorf("either --file or --headers is required")
	}

	targets := targetsFrom(cfg.Catalog)
	mappings := reconcile.Reconcile(table.Columns, targets)
	report := reconcileReport{
		Headers:          table.Columns,
		Mappings:         mappings,
		UnmappedRequired: reconcile.UnmappedRequired(targets, mappings),
	}
	if suggestion, _ := reconcile.SuggestTemplate(table.Columns, templatesFrom(cfg.Catalog), targets); suggestion != nil {
		report.Suggestion = suggestion
	}
	if len(table.Records) > 0 {
		report.Validation = reconcile.ValidateMappings(table, targets, mappings)
	}

	if reconcileSave {
		db, closeDB, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer closeDB()

		ctx := commandContext(cmd)
		complete := lo.Filter(mappings, func(m reconcile.FieldMapping, _ int) bool { return m.Complete() })
		if err := storage.NewMappingRepository(db, newLogger("[Mappings] ")).Replace(ctx, reconcileSourceID, complete); err != nil {
			return err
		}
	}

	return printJSON(cmd.OutOrStdout(), report)
}
