package providers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/llm-orchestrator/models"
)

// Built-in driver kinds
const (
	DriverOpenAI = "openai"
	DriverClaude = "claude"
	DriverGemini = "gemini"
)

// Driver sends canonical requests to one configured client
type Driver interface {
	// Name returns the driver kind (e.g., "openai", "claude")
	Name() string

	// Client returns the configured client name this driver serves
	Client() string

	// Send executes the request and records logs and metrics
	Send(ctx context.Context, req *models.Request) (*models.Response, error)
}

// Executor is the provider-specific half of a driver: payload build, HTTP call, response parse
type Executor interface {
	Execute(ctx context.Context, req *models.Request) (*models.Response, error)
}

// LogSink receives one execution log per driver attempt.
// Implementations must not block indefinitely and must not mutate the entry.
type LogSink interface {
	Record(ctx context.Context, entry *models.ExecutionLog)
}

// MetricsSink receives one usage event per driver attempt
type MetricsSink interface {
	Record(ctx context.Context, event models.MetricEvent)
}

// Price is the cost in USD per one million tokens
type Price struct {
	Name   string  `json:"name,omitempty" yaml:"name"`
	Input  float64 `json:"input" yaml:"input"`
	Output float64 `json:"output" yaml:"output"`
}

// PricingTable maps a client or driver name to model prices
type PricingTable map[string]map[string]Price

// Lookup returns the price for a model, checking the client first and then the driver
func (p PricingTable) Lookup(client, driver, model string) Price {
	if price, ok := p[client][model]; ok {
		return price
	}
	if price, ok := p[driver][model]; ok {
		return price
	}
	return Price{}
}

// Merge returns a new table with the overrides applied on top
func (p PricingTable) Merge(overrides PricingTable) PricingTable {
	out := make(PricingTable, len(p)+len(overrides))
	for owner, prices := range p {
		out[owner] = make(map[string]Price, len(prices))
		for model, price := range prices {
			out[owner][model] = price
		}
	}
	for owner, prices := range overrides {
		if out[owner] == nil {
			out[owner] = make(map[string]Price, len(prices))
		}
		for model, price := range prices {
			out[owner][model] = price
		}
	}
	return out
}

// DefaultPricing returns the built-in price list
func DefaultPricing() PricingTable {
	return PricingTable{
		DriverOpenAI: {
			"gpt-4o":      {Name: "GPT-4o", Input: 2.50, Output: 10.00},
			"gpt-4o-mini": {Name: "GPT-4o Mini", Input: 0.15, Output: 0.60},
			"gpt-4.1":     {Name: "GPT-4.1", Input: 2, Output: 8},
		},
		DriverClaude: {
			"claude-3-5-sonnet-20241022": {Name: "Claude 3.5 Sonnet", Input: 3.00, Output: 15.00},
			"claude-3-5-haiku-20241022":  {Name: "Claude 3.5 Haiku", Input: 0.80, Output: 4.00},
		},
		DriverGemini: {
			"gemini-1.5-pro":   {Name: "Gemini 1.5 Pro", Input: 1.25, Output: 5.00},
			"gemini-1.5-flash": {Name: "Gemini 1.5 Flash", Input: 0.075, Output: 0.30},
		},
	}
}

// Defaults are applied to every client that leaves a setting empty
type Defaults struct {
	Model      string
	MaxTokens  int
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultDefaults returns the built-in client defaults
func DefaultDefaults() Defaults {
	return Defaults{
		Model:      "gpt-4-mini",
		MaxTokens:  2000,
		Timeout:    60 * time.Second,
		MaxRetries: 3,
		RetryDelay: 200 * time.Millisecond,
	}
}

// ClientConfig holds the settings of one named client
type ClientConfig struct {
	// Name is the client key requests are routed by
	Name string `json:"name" yaml:"-" validate:"required"`

	// Driver is the registered driver kind
	Driver string `json:"driver" yaml:"driver" validate:"required"`

	APIKey  string `json:"-" yaml:"api_key"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url" validate:"omitempty,url"`

	// Model is the default model when a request carries none
	Model     string `json:"model,omitempty" yaml:"model"`
	MaxTokens int    `json:"max_tokens,omitempty" yaml:"max_tokens" validate:"gte=0"`

	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout" validate:"gte=0"`
	MaxRetries int           `json:"max_retries" yaml:"max_retries" validate:"gte=0,lte=10"`
	RetryDelay time.Duration `json:"retry_delay,omitempty" yaml:"retry_delay" validate:"gte=0"`

	// AnthropicVersion is sent as the anthropic-version header by the claude driver
	AnthropicVersion string `json:"anthropic_version,omitempty" yaml:"anthropic_version"`

	Headers map[string]string `json:"headers,omitempty" yaml:"headers"`

	// RequestsPerSecond enables client-side rate limiting when positive
	RequestsPerSecond float64 `json:"requests_per_second,omitempty" yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `json:"burst,omitempty" yaml:"burst" validate:"gte=0"`

	Breaker BreakerConfig `json:"breaker" yaml:"breaker"`

	// Options are merged into every payload of this client
	Options map[string]interface{} `json:"options,omitempty" yaml:"options"`
}

// WithDefaults fills empty settings from the defaults
func (c ClientConfig) WithDefaults(d Defaults) ClientConfig {
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = d.RetryDelay
	}
	return c
}

// Dependencies are the collaborators handed to every driver builder
type Dependencies struct {
	Pricing  PricingTable
	Logs     LogSink
	Metrics  MetricsSink
	Logger   *zap.Logger
	Defaults Defaults

	// HTTPClient overrides the transport's client; nil builds one per driver
	HTTPClient *http.Client
}

type nopLogSink struct{}

func (nopLogSink) Record(context.Context, *models.ExecutionLog) {}

type nopMetricsSink struct{}

func (nopMetricsSink) Record(context.Context, models.MetricEvent) {}
