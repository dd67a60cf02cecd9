package providers

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/services"
)

// BaseDriver carries the behavior shared by every driver kind.
// Concrete drivers embed it and supply themselves as the Executor.
type BaseDriver struct {
	name     string
	config   ClientConfig
	pricing  PricingTable
	logs     LogSink
	metrics  MetricsSink
	logger   *zap.Logger
	executor Executor
}

// NewBaseDriver creates the shared half of a driver
func NewBaseDriver(name string, cfg ClientConfig, deps Dependencies, executor Executor) *BaseDriver {
	b := &BaseDriver{
		name:     name,
		config:   cfg,
		pricing:  deps.Pricing,
		logs:     deps.Logs,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		executor: executor,
	}
	if b.logs == nil {
		b.logs = nopLogSink{}
	}
	if b.metrics == nil {
		b.metrics = nopMetricsSink{}
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	b.logger = b.logger.With(zap.String("client", cfg.Name), zap.String("driver", name))
	return b
}

// Name returns the driver kind
func (b *BaseDriver) Name() string {
	return b.name
}

// Client returns the configured client name
func (b *BaseDriver) Client() string {
	return b.config.Name
}

// Config returns the client configuration
func (b *BaseDriver) Config() ClientConfig {
	return b.config
}

// Logger returns the driver-scoped logger
func (b *BaseDriver) Logger() *zap.Logger {
	return b.logger
}

// DefaultModel returns the client's default model
func (b *BaseDriver) DefaultModel() string {
	return b.config.Model
}

// DefaultMaxTokens returns the client's default max tokens
func (b *BaseDriver) DefaultMaxTokens() int {
	return b.config.MaxTokens
}

// Send executes the request and records the outcome.
// Only RequestFailed errors are recorded; every other error is returned untouched.
func (b *BaseDriver) Send(ctx context.Context, req *models.Request) (*models.Response, error) {
	if req == nil {
		return nil, services.NewMessageValidationError(b.name, "request cannot be nil")
	}

	resp, err := b.executor.Execute(ctx, req)
	if err != nil {
		if services.IsRequestFailedError(err) {
			b.logger.Warn("LLM request failed", zap.Error(err))
			b.RecordFailure(ctx, req, services.ErrorMessage(err))
		}
		return nil, err
	}

	resp.Client = b.Client()

	b.logger.Debug("LLM request completed",
		zap.String("model", resp.Model),
		zap.Int("total_tokens", resp.TotalTokens),
	)
	b.logs.Record(ctx, b.LogEntryFor(req, resp, ""))
	b.metrics.Record(ctx, b.MetricEventFor(req, resp))

	return resp, nil
}

// RecordFailure writes a failed log entry and a failed metric event for req
func (b *BaseDriver) RecordFailure(ctx context.Context, req *models.Request, reason string) {
	b.logs.Record(ctx, b.LogEntryFor(req, nil, reason))
	b.metrics.Record(ctx, b.MetricEventFor(req, nil))
}

// CalculateCost prices token usage for a model; unknown models cost nothing
func (b *BaseDriver) CalculateCost(inputTokens, outputTokens int, model string) float64 {
	if model == "" {
		model = b.DefaultModel()
	}
	price := b.pricing.Lookup(b.Client(), b.name, model)
	return float64(inputTokens)/1_000_000*price.Input + float64(outputTokens)/1_000_000*price.Output
}

// ParseStructuredOutput decodes JSON content when a JSON response format was requested.
// Non-JSON content yields nil, not an error.
func (b *BaseDriver) ParseStructuredOutput(content string, responseFormat map[string]interface{}) interface{} {
	if responseFormat == nil {
		return nil
	}
	formatType, _ := responseFormat["type"].(string)
	_, hasSchema := responseFormat["json_schema"]
	if formatType != models.ResponseFormatJSONObject && !hasSchema {
		return nil
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(content), &decoded); err != nil {
		return nil
	}
	return decoded
}

// StructuredOutputFor parses the content when a response format was requested and
// falls back to the first tool call's arguments when nothing usable was parsed
func (b *BaseDriver) StructuredOutputFor(req *models.Request, content string, toolCalls []models.ToolCall) interface{} {
	if req.ResponseFormat == nil {
		return nil
	}
	output := b.ParseStructuredOutput(content, req.ResponseFormat)
	if isEmptyOutput(output) && len(toolCalls) > 0 {
		return toolCalls[0].Arguments
	}
	return output
}

func isEmptyOutput(v interface{}) bool {
	switch out := v.(type) {
	case nil:
		return true
	case map[string]interface{}:
		return len(out) == 0
	case []interface{}:
		return len(out) == 0
	case bool:
		return !out
	case string:
		return out == ""
	case float64:
		return out == 0
	}
	return false
}

// MetricEventFor builds the usage event for an attempt; resp is nil for failures
func (b *BaseDriver) MetricEventFor(req *models.Request, resp *models.Response) models.MetricEvent {
	event := models.MetricEvent{
		Date:   models.Today(),
		Client: b.Client(),
		Driver: b.name,
		Model:  req.ModelOr(b.DefaultModel()),
	}
	if resp == nil {
		return event
	}

	if resp.Model != "" {
		event.Model = resp.Model
	}
	event.InputTokens = resp.InputTokens
	event.OutputTokens = resp.OutputTokens
	event.TotalTokens = resp.InputTokens + resp.OutputTokens
	event.IsSuccessful = true
	event.Cost = resp.CostValue()
	return event
}

// LogEntryFor builds the sanitized execution log for an attempt; resp is nil for failures
func (b *BaseDriver) LogEntryFor(req *models.Request, resp *models.Response, failedReason string) *models.ExecutionLog {
	entry := models.NewExecutionLog(b.Client(), b.name, req.ModelOr(b.DefaultModel())).
		WithRequestData(b.requestDataForLogging(req))

	if resp == nil {
		return entry.WithFailure(failedReason)
	}

	return entry.
		WithUsage(resp.InputTokens, resp.OutputTokens, resp.TotalTokens, resp.Cost).
		WithSuccess(resp.FinishReason).
		WithResponseData(responseDataForLogging(resp))
}

func (b *BaseDriver) requestDataForLogging(req *models.Request) map[string]interface{} {
	messages := make([]interface{}, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, map[string]interface{}{
			"role":    m.Role,
			"content": SanitizeMessage(m),
		})
	}
	tools := make([]interface{}, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, t.ToMap())
	}
	return map[string]interface{}{
		"model":    req.ModelOr(b.DefaultModel()),
		"messages": messages,
		"tools":    tools,
	}
}

func responseDataForLogging(resp *models.Response) map[string]interface{} {
	toolCalls := make([]interface{}, 0, len(resp.ToolCalls))
	for _, tc := range resp.ToolCalls {
		toolCalls = append(toolCalls, tc.ToMap())
	}
	return map[string]interface{}{
		"model": resp.Model,
		"messages": []interface{}{
			map[string]interface{}{
				"role":    models.RoleAssistant,
				"content": Truncate(resp.Content, DefaultTruncateLimit),
			},
		},
		"tool_calls":        toolCalls,
		"structured_output": resp.StructuredOutput,
	}
}

// RequestFailed wraps err as a retryable failure of this client
func (b *BaseDriver) RequestFailed(payload map[string]interface{}, err error) error {
	return services.NewRequestFailedError(b.Client(), b.name, payload, err)
}

// MessageValidation reports content this driver cannot translate
func (b *BaseDriver) MessageValidation(message string) error {
	return services.NewMessageValidationError(b.name, message)
}
