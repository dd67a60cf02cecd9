package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/upb/llm-orchestrator/app"
	"github.com/upb/llm-orchestrator/services/audit"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the orchestrator tables",
		Long:  `Create the execution log, metrics and process mapping tables and their indexes if they do not exist.`,
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := commandContext(cmd)
	deps, err := app.NewStorageDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close(ctx) }()

	tables := cfg.Orchestrator.Tables
	color.Green("Schema ready (%s)", cfg.Database.LogString())
	fmt.Fprintf(cmd.OutOrStdout(), "  %-18s: %s\n", "Execution logs", tables.ExecutionLogs)
	fmt.Fprintf(cmd.OutOrStdout(), "  %-18s: %s\n", "Metrics", tables.Metrics)
	fmt.Fprintf(cmd.OutOrStdout(), "  %-18s: %s\n", "Process mappings", tables.ProcessMappings)
	return nil
}

func newPruneLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune-logs",
		Short: "Delete execution logs",
		Long:  `Delete every execution log, or with --hours only the logs created more than that many hours ago.`,
		Args:  cobra.NoArgs,
		RunE:  runPruneLogs,
	}
	cmd.Flags().Int("hours", 0, "only delete logs older than this many hours")
	return cmd
}

func runPruneLogs(cmd *cobra.Command, _ []string) error {
	var window *time.Duration
	if cmd.Flags().Changed("hours") {
		hours, _ := cmd.Flags().GetInt("hours")
		d, err := audit.Hours(hours)
		if err != nil {
			return err
		}
		window = d
	}

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := commandContext(cmd)
	deps, err := app.NewStorageDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close(ctx) }()

	deleted, err := deps.ExecutionLogger.Prune(ctx, window)
	if err != nil {
		return err
	}

	if window == nil {
		color.Green("Deleted %d execution logs", deleted)
	} else {
		color.Green("Deleted %d execution logs older than %s", deleted, window)
	}
	return nil
}
