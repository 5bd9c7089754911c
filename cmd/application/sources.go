package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"gomarket_mdm/internal/acquisition"
	"gomarket_mdm/internal/storage"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage registered supplier sources",
}

var sourcesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a supplier source",
	RunE:  runSourcesAdd,
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sources with their last pull status",
	RunE:  runSourcesList,
}

var sourcesLogsCmd = &cobra.Command{
	Use:   "logs <source-id>",
	Short: "Show recent pull attempts of a source",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourcesLogs,
}

var (
	sourceKind    string
	sourcePath    string
	sourceLabel   string
	sourceOptions map[string]string
	logsLimit     int
)

func init() {
	sourcesAddCmd.Flags().StringVar(&sourceKind, "kind", "", "Source kind: http, sftp or file (required)")
	sourcesAddCmd.Flags().StringVar(&sourcePath, "path", "", "URL, remote path or local file")
	sourcesAddCmd.Flags().StringVar(&sourceLabel, "label", "", "Human readable label")
	sourcesAddCmd.Flags().StringToStringVarP(&sourceOptions, "option", "o", nil, "Source option key=value (repeatable)")
	_ = sourcesAddCmd.MarkFlagRequired("kind")

	sourcesLogsCmd.Flags().IntVarP(&logsLimit, "limit", "n", 10, "Number of entries")

	sourcesCmd.AddCommand(sourcesAddCmd, sourcesListCmd, sourcesLogsCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func runSourcesAdd(cmd *cobra.Command, _ []string) error {
	kind := acquisition.Kind(sourceKind)
	switch kind {
	case acquisition.KindHTTP, acquisition.KindSFTP, acquisition.KindFile:
	default:
		return fmt.Errorf("unknown source kind %q", sourceKind)
	}

	return withSources(cmd, func(ctx context.Context, repo *storage.SourceRepository) error {
		src, err := repo.Create(ctx, acquisition.RemoteSource{
			Label:   sourceLabel,
			Kind:    kind,
			Path:    sourcePath,
			Options: stringOptions(sourceOptions),
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), src)
	})
}

func runSourcesList(cmd *cobra.Command, _ []string) error {
	return withSources(cmd, func(ctx context.Context, repo *storage.SourceRepository) error {
		list, err := repo.List(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), list)
	})
}

func runSourcesLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, closeDB, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	logs, err := storage.NewPullLogRepository(db, newLogger("[PullLog] ")).Recent(commandContext(cmd), args[0], logsLimit)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), logs)
}

func withSources(cmd *cobra.Command, fn func(ctx context.Context, repo *storage.SourceRepository) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, closeDB, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB()
	return fn(commandContext(cmd), storage.NewSourceRepository(db, newLogger("[Sources] ")))
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
