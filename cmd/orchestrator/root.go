package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/upb/llm-orchestrator/config"
	"github.com/upb/llm-orchestrator/internal/observability"
)

const (
	appName = "llm-orchestrator"
	version = "0.1.0"
)

// loadConfig is swapped in tests
var loadConfig = config.New

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "orchestrator",
		Short:         "LLM orchestrator - one API over OpenAI, Claude and Gemini",
		Long:          `Routes chat requests to configured LLM clients with fallback, and records execution logs and daily usage metrics.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newPruneLogsCmd())
	root.AddCommand(newPromptCmd())

	return root
}

// setup loads the configuration and builds the logger
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Observability.LogLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}

	logger, err := observability.NewLogger(level, cfg.Observability.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
