package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"gomarket_mdm/config/values"
	"gomarket_mdm/internal/acquisition"
	"gomarket_mdm/internal/reconcile"
	"gomarket_mdm/internal/storage"
	"gomarket_mdm/pkg/records"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Onboard a supplier source: test the connection, pull a sample and propose mappings",
	Long: "Tests the connection to a source, pulls a sample, reconciles its columns with the product schema and " +
		"suggests a saved template. With Postgres (--source-id or --register) the pull is logged and a template " +
		"with confidence above 0.7 is saved as the source mappings.",
	RunE: runOnboard,
}

var (
	onboardSourceID string
	onboardKind     string
	onboardPath     string
	onboardLabel    string
	onboardOpts     map[string]string
	onboardRegister bool
)

func init() {
	onboardCmd.Flags().StringVar(&onboardSourceID, "source-id", "", "ID of a registered source (requires Postgres)")
	onboardCmd.Flags().StringVar(&onboardKind, "kind", "", "Source kind: http, sftp or file")
	onboardCmd.Flags().StringVar(&onboardPath, "path", "", "URL, remote path or local file")
	onboardCmd.Flags().StringVar(&onboardLabel, "label", "adhoc", "Source label")
	onboardCmd.Flags().StringToStringVarP(&onboardOpts, "option", "o", nil, "Source option key=value (repeatable)")
	onboardCmd.Flags().BoolVar(&onboardRegister, "register", false, "Register the --kind/--path source first (requires Postgres)")

	rootCmd.AddCommand(onboardCmd)
}

// Шаблон применяется, только если оценка строго больше порога.
const templateConfidence = 0.7

const sampleDataSize = 10

const (
	stepPull = "pull"
	stepSave = "save"
)

type onboardingError struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type onboardingReport struct {
	Source           acquisition.RemoteSource     `json:"source"`
	PullSuccess      bool                         `json:"pull_success"`
	Attempts         int                          `json:"attempts"`
	TotalRecords     int                          `json:"total_records"`
	Columns          []string                     `json:"columns,omitempty"`
	SampleData       []records.Record             `json:"sample_data,omitempty"`
	Mappings         []reconcile.FieldMapping     `json:"mappings,omitempty"`
	UnmappedRequired []string                     `json:"unmapped_required,omitempty"`
	Validation       []reconcile.ValidationResult `json:"validation,omitempty"`
	Suggestion       *reconcile.Suggestion        `json:"suggestion,omitempty"`
	Confidence       float64                      `json:"confidence"`
	TemplateAccepted bool                         `json:"template_accepted"`
	Errors           []onboardingError            `json:"errors,omitempty"`
	StepsCompleted   int                          `json:"steps_completed"`
	TotalSteps       int                          `json:"total_steps"`
	Status           string                       `json:"status"`

	outcome acquisition.PullOutcome
}

func (r *onboardingReport) fail(step string, err error) {
	r.Errors = append(r.Errors, onboardingError{
		Step:    step,
		Message: acquisition.Describe(err),
		Code:    string(acquisition.CodeOf(err)),
	})
}

func (r *onboardingReport) finish() *onboardingReport {
	switch {
	case r.StepsCompleted == r.TotalSteps:
		r.Status = "success"
	case r.StepsCompleted > 0:
		r.Status = "partial_success"
	default:
		r.Status = "failed"
	}
	return r
}

// onboard выгружает образец и сопоставляет его колонки со схемой.
// Проверка соединения выполняется контроллером перед каждой попыткой.
func onboard(ctx context.Context, controller *acquisition.Controller, source acquisition.RemoteSource, opts acquisition.Options, catalog values.Catalog) *onboardingReport {
	report := &onboardingReport{Source: source, TotalSteps: 2}

	outcome := controller.Pull(ctx, source, opts)
	report.outcome = outcome
	report.Attempts = outcome.Attempts
	if !outcome.Success {
		report.fail(stepPull, outcomeError(outcome))
		return report
	}
	report.PullSuccess = true
	report.TotalRecords = outcome.TotalRecords
	report.Columns = outcome.Columns
	report.SampleData = lo.Slice(outcome.Records, 0, sampleDataSize)
	report.StepsCompleted++

	targets := targetsFrom(catalog)
	table := &records.Table{Columns: outcome.Columns, Records: outcome.Records, Total: outcome.TotalRecords}
	report.Mappings = reconcile.Reconcile(table.Columns, targets)
	report.UnmappedRequired = reconcile.UnmappedRequired(targets, report.Mappings)
	report.Validation = reconcile.ValidateMappings(table, targets, report.Mappings)
	report.Suggestion, report.Confidence = reconcile.SuggestTemplate(table.Columns, templatesFrom(catalog), targets)
	report.TemplateAccepted = report.Suggestion != nil && report.Confidence > templateConfidence
	report.StepsCompleted++
	return report
}

func runOnboard(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if onboardSourceID == "" && onboardKind == "" {
		return fmt.Errorf("either --source-id or --kind is required")
	}
	ctx := commandContext(cmd)

	controller, err := newController(cfg)
	if err != nil {
		return err
	}

	source := acquisition.RemoteSource{
		ID:      onboardLabel,
		Label:   onboardLabel,
		Kind:    acquisition.Kind(onboardKind),
		Path:    onboardPath,
		Options: stringOptions(onboardOpts),
	}

	if onboardSourceID == "" && !onboardRegister {
		report := onboard(ctx, controller, source, controllerOptions(cfg), cfg.Catalog).finish()
		if err := printJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
		return outcomeError(report.outcome)
	}

	db, closeDB, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	sources := storage.NewSourceRepository(db, newLogger("[Sources] "))
	registered := false
	if onboardSourceID != "" {
		found, err := sources.Get(ctx, onboardSourceID)
		if err != nil {
			return err
		}
		if found == nil {
			return fmt.Errorf("source %s not found", onboardSourceID)
		}
		source = *found
	} else {
		source.ID = ""
		created, err := sources.Create(ctx, source)
		if err != nil {
			return err
		}
		source = *created
		registered = true
	}

	report := onboard(ctx, controller, source, controllerOptions(cfg), cfg.Catalog)
	report.TotalSteps++
	if registered {
		report.TotalSteps++
		report.StepsCompleted++
	}
	if err := persistOnboarding(ctx, db, sources, report); err != nil {
		report.fail(stepSave, err)
	} else {
		report.StepsCompleted++
	}
	report.finish()

	if err := printJSON(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	return outcomeError(report.outcome)
}

// persistOnboarding сохраняет итог выгрузки, запись журнала и, если шаблон принят, его сопоставления.
func persistOnboarding(ctx context.Context, db *sql.DB, sources *storage.SourceRepository, report *onboardingReport) error {
	if err := sources.RecordPull(ctx, report.Source.ID, report.outcome, time.Now()); err != nil {
		return err
	}
	if _, err := storage.NewPullLogRepository(db, newLogger("[PullLog] ")).Log(ctx, report.Source.ID, report.outcome); err != nil {
		return err
	}
	if !report.TemplateAccepted {
		return nil
	}
	complete := lo.Filter(report.Suggestion.Mappings, func(m reconcile.FieldMapping, _ int) bool { return m.Complete() })
	return storage.NewMappingRepository(db, newLogger("[Mappings] ")).Replace(ctx, report.Source.ID, complete)
}
