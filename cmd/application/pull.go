package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gomarket_mdm/internal/acquisition"
	"gomarket_mdm/internal/storage"
	"gomarket_mdm/pkg/records"
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull a data sample from a supplier source",
	Long:  "Pulls a data sample from a registered source (--source-id) or an ad hoc one (--kind/--path) with a per-attempt deadline and exponential backoff between attempts.",
	RunE:  runPull,
}

var (
	pullSourceID string
	pullKind     string
	pullPath     string
	pullLabel    string
	pullOpts     map[string]string
	pullStage    bool
)

func init() {
	pullCmd.Flags().StringVar(&pullSourceID, "source-id", "", "ID of a registered source (requires Postgres)")
	pullCmd.Flags().StringVar(&pullKind, "kind", "", "Ad hoc source kind: http, sftp or file")
	pullCmd.Flags().StringVar(&pullPath, "path", "", "Ad hoc source path (URL, remote path or local file)")
	pullCmd.Flags().StringVar(&pullLabel, "label", "adhoc", "Ad hoc source id and label")
	pullCmd.Flags().StringToStringVarP(&pullOpts, "option", "o", nil, "Source option key=value (repeatable)")
	pullCmd.Flags().BoolVar(&pullStage, "stage", false, "Copy pulled records into mdm.staged_records (with --source-id)")

	rootCmd.AddCommand(pullCmd)
}

func runPull(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	startMetrics(ctx, cfg, newLogger("[Metrics] "))

	controller, err := newController(cfg)
	if err != nil {
		return err
	}

	if pullSourceID == "" {
		if pullKind == "" {
			return fmt.Errorf("either --source-id or --kind is required")
		}
		source := acquisition.RemoteSource{
			ID:      pullLabel,
			Label:   pullLabel,
			Kind:    acquisition.Kind(pullKind),
			Path:    pullPath,
			Options: stringOptions(pullOpts),
		}
		outcome := controller.Pull(ctx, source, controllerOptions(cfg))
		if err := printJSON(cmd.OutOrStdout(), outcome); err != nil {
			return err
		}
		return outcomeError(outcome)
	}

	db, closeDB, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	sources := storage.NewSourceRepository(db, newLogger("[Sources] "))
	source, err := sources.Get(ctx, pullSourceID)
	if err != nil {
		return err
	}
	if source == nil {
		return fmt.Errorf("source %s not found", pullSourceID)
	}

	outcome := controller.Pull(ctx, *source, controllerOptions(cfg))

	// статус источника меняется только по итогу всей выгрузки
	if err := sources.RecordPull(ctx, source.ID, outcome, time.Now()); err != nil {
		return err
	}
	pullID, err := storage.NewPullLogRepository(db, newLogger("[PullLog] ")).Log(ctx, source.ID, outcome)
	if err != nil {
		return err
	}
	if pullStage && outcome.Success {
		table := &records.Table{Columns: outcome.Columns, Records: outcome.Records, Total: outcome.TotalRecords}
		if _, err := records.NewPostgresStager(db, newLogger("[Stager] ")).Stage(ctx, source.ID, pullID, table); err != nil {
			return err
		}
	}

	if err := printJSON(cmd.OutOrStdout(), outcome); err != nil {
		return err
	}
	return outcomeError(outcome)
}

func stringOptions(in map[string]string) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func outcomeError(outcome acquisition.PullOutcome) error {
	if outcome.Success {
		return nil
	}
	if outcome.Err != nil {
		return outcome.Err
	}
	return fmt.Errorf("%s", outcome.Message)
}
