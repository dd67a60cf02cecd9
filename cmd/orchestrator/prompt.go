package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/upb/llm-orchestrator/app"
	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/services"
)

func newPromptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt [text...]",
		Short: "Send a single prompt",
		Long:  `Send a single user prompt through the orchestrator and print the reply. --process routes through a process mapping; --client picks a configured client.`,
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPrompt,
	}
	cmd.Flags().StringP("client", "c", "", "client name (defaults to the configured default client)")
	cmd.Flags().StringP("process", "p", "", "process name to route through its mapping")
	cmd.Flags().StringP("model", "m", "", "model override")
	cmd.Flags().Int("max-tokens", 0, "maximum output tokens")
	cmd.Flags().Bool("json", false, "print the full response as JSON")
	cmd.MarkFlagsMutuallyExclusive("client", "process")
	return cmd
}

func runPrompt(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return services.ErrEmptyPrompt
	}

	client, _ := cmd.Flags().GetString("client")
	process, _ := cmd.Flags().GetString("process")
	model, _ := cmd.Flags().GetString("model")
	maxTokens, _ := cmd.Flags().GetInt("max-tokens")
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := commandContext(cmd)
	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close(ctx) }()

	builder := deps.Manager.Request().Prompt(text)
	if model != "" {
		builder = builder.Model(model)
	}
	if maxTokens > 0 {
		builder = builder.MaxTokens(maxTokens)
	}
	req := builder.Build()

	var resp *models.Response
	if process != "" {
		resp, err = deps.Manager.ForProcess(ctx, process, req)
	} else {
		resp, err = deps.Manager.Send(ctx, req, client)
	}
	if err != nil {
		return describeError(err)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		body := resp.ToMap()
		body["client"] = resp.Client
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(body)
	}

	fmt.Fprintln(out, resp.Content)
	fmt.Fprintln(out)
	color.New(color.FgCyan).Fprintf(out, "%s/%s", resp.Client, resp.Model)
	fmt.Fprintf(out, "  tokens %d in / %d out  cost $%.6f\n", resp.InputTokens, resp.OutputTokens, resp.CostValue())
	if len(resp.AttemptedClients) > 1 {
		color.New(color.FgYellow).Fprintf(out, "fell back through %s\n", strings.Join(resp.AttemptedClients, " -> "))
	}
	return nil
}

// describeError appends the per-client failures of an exhausted fallback chain
func describeError(err error) error {
	if !services.IsAllClientsFailedError(err) {
		return err
	}
	details := services.GetErrorDetails(err)
	clientErrors, _ := details["errors"].(map[string]string)
	attempted, _ := details["attempted_clients"].([]string)
	if len(clientErrors) == 0 {
		return err
	}

	lines := make([]string, 0, len(attempted))
	for _, name := range attempted {
		if msg, ok := clientErrors[name]; ok {
			lines = append(lines, fmt.Sprintf("  %s: %s", name, msg))
		}
	}
	return fmt.Errorf("%w\n%s", err, strings.Join(lines, "\n"))
}
