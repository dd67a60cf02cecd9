package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/services/providers"
	"github.com/upb/llm-orchestrator/services/routing"
)

// Recording mechanisms for execution logs and metrics
const (
	MechanismSync  = "sync"
	MechanismAsync = "async"
)

// OrchestratorConfig holds the LLM client table and recording settings
type OrchestratorConfig struct {
	DefaultClient string
	Defaults      providers.Defaults
	Clients       map[string]providers.ClientConfig
	Fallback      routing.FallbackConfig

	Logging      RecordingConfig
	Metrics      RecordingConfig
	Async        AsyncConfig
	Tables       TablesConfig
	MappingCache CacheConfig

	Pricing         providers.PricingTable
	ProcessMappings map[string]models.Route

	// ConfigFile is the optional YAML file merged over the environment
	ConfigFile string
}

// RecordingConfig toggles a recording sink
type RecordingConfig struct {
	Enabled   bool
	Mechanism string

	// RedactSecrets masks credentials in logged request and response data
	RedactSecrets bool
}

// CacheConfig sizes the process mapping lookup cache; TTL zero disables it
type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// AsyncConfig sizes the background recorder
type AsyncConfig struct {
	BufferSize   int
	Workers      int
	DrainTimeout time.Duration
}

// TablesConfig names the storage tables
type TablesConfig struct {
	Metrics         string
	ExecutionLogs   string
	ProcessMappings string
}

// fileConfig is the shape of LLM_CONFIG_FILE
type fileConfig struct {
	DefaultClient   string                            `yaml:"default_client"`
	Clients         map[string]providers.ClientConfig `yaml:"clients"`
	Fallback        *routing.FallbackConfig           `yaml:"fallback"`
	Pricing         providers.PricingTable            `yaml:"pricing"`
	ProcessMappings map[string]models.Route           `yaml:"process_mappings"`
}

func loadOrchestratorConfig() (OrchestratorConfig, error) {
	defaults := providers.Defaults{
		Model:      getEnv("LLM_DEFAULT_MODEL", "gpt-4-mini"),
		MaxTokens:  getEnvAsInt("LLM_DEFAULT_MAX_TOKENS", 2000),
		Timeout:    getEnvAsSeconds("LLM_DEFAULT_TIMEOUT", 60*time.Second),
		MaxRetries: getEnvAsInt("LLM_DEFAULT_MAX_RETRIES", 3),
		RetryDelay: getEnvAsDuration("LLM_DEFAULT_RETRY_DELAY", 200*time.Millisecond),
	}

	breaker := providers.BreakerConfig{
		Enabled:     getEnvAsBool("LLM_BREAKER_ENABLED", false),
		MaxFailures: uint32(getEnvAsInt("LLM_BREAKER_MAX_FAILURES", 5)),
		Timeout:     getEnvAsDuration("LLM_BREAKER_TIMEOUT", 30*time.Second),
		Interval:    getEnvAsDuration("LLM_BREAKER_INTERVAL", 60*time.Second),
	}

	cfg := OrchestratorConfig{
		DefaultClient: getEnv("LLM_DEFAULT_CLIENT", "openai"),
		Defaults:      defaults,
		Clients: map[string]providers.ClientConfig{
			"openai": clientFromEnv("OPENAI", providers.DriverOpenAI, "https://api.openai.com", "gpt-4o-mini", breaker),
			"claude": clientFromEnv("CLAUDE", providers.DriverClaude, "https://api.anthropic.com", "claude-3-5-sonnet-20241022", breaker),
			"gemini": clientFromEnv("GEMINI", providers.DriverGemini, "https://generativelanguage.googleapis.com", "gemini-1.5-pro", breaker),
		},
		Fallback: routing.FallbackConfig{
			Enabled: getEnvAsBool("LLM_FALLBACK_ENABLED", false),
			Clients: getEnvAsList("LLM_FALLBACK_CLIENTS", []string{"claude", "gemini"}),
		},
		Logging: RecordingConfig{
			Enabled:       getEnvAsBool("LLM_LOGGING_ENABLED", false),
			Mechanism:     getEnv("LLM_LOGGING_MECHANISM", MechanismSync),
			RedactSecrets: getEnvAsBool("LLM_LOGGING_REDACT_SECRETS", true),
		},
		Metrics: RecordingConfig{
			Enabled:   getEnvAsBool("LLM_METRICS_ENABLED", false),
			Mechanism: getEnv("LLM_METRICS_MECHANISM", MechanismSync),
		},
		Async: AsyncConfig{
			BufferSize:   getEnvAsInt("LLM_ASYNC_BUFFER_SIZE", 1000),
			Workers:      getEnvAsInt("LLM_ASYNC_WORKERS", 4),
			DrainTimeout: getEnvAsDuration("LLM_ASYNC_DRAIN_TIMEOUT", 10*time.Second),
		},
		Tables: TablesConfig{
			Metrics:         getEnv("LLM_METRICS_TABLE", models.MetricBucket{}.TableName()),
			ExecutionLogs:   getEnv("LLM_EXECUTION_LOGS_TABLE", models.ExecutionLog{}.TableName()),
			ProcessMappings: getEnv("LLM_PROCESS_MAPPINGS_TABLE", models.ProcessMapping{}.TableName()),
		},
		MappingCache: CacheConfig{
			Size: getEnvAsInt("LLM_PROCESS_MAPPING_CACHE_SIZE", 256),
			TTL:  getEnvAsDuration("LLM_PROCESS_MAPPING_CACHE_TTL", 30*time.Second),
		},
		Pricing:         providers.DefaultPricing(),
		ProcessMappings: map[string]models.Route{},
		ConfigFile:      getEnv("LLM_CONFIG_FILE", ""),
	}

	if cfg.ConfigFile != "" {
		if err := cfg.MergeFile(cfg.ConfigFile); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// clientFromEnv reads the <PREFIX>_* variables of a built-in client.
// Unset limits stay zero so the shared defaults apply.
func clientFromEnv(prefix, driver, baseURL, model string, breaker providers.BreakerConfig) providers.ClientConfig {
	return providers.ClientConfig{
		Driver:            driver,
		APIKey:            getEnv(prefix+"_API_KEY", ""),
		BaseURL:           getEnv(prefix+"_API_BASE_URL", baseURL),
		Model:             getEnv(prefix+"_MODEL", model),
		MaxTokens:         getEnvAsInt(prefix+"_MAX_TOKENS", 0),
		Timeout:           getEnvAsSeconds(prefix+"_TIMEOUT", 0),
		MaxRetries:        getEnvAsInt(prefix+"_MAX_RETRIES", 0),
		AnthropicVersion:  getEnv(prefix+"_ANTHROPIC_VERSION", ""),
		RequestsPerSecond: getEnvAsFloat(prefix+"_REQUESTS_PER_SECOND", 0),
		Burst:             getEnvAsInt(prefix+"_BURST", 0),
		Breaker:           breaker,
	}
}

// MergeFile loads a YAML file and merges its clients, pricing and process mappings.
// ${VAR} references in the file are expanded from the environment.
func (c *OrchestratorConfig) MergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read LLM config file: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &file); err != nil {
		return fmt.Errorf("failed to parse LLM config file %s: %w", path, err)
	}

	if file.DefaultClient != "" {
		c.DefaultClient = file.DefaultClient
	}
	if c.Clients == nil {
		c.Clients = map[string]providers.ClientConfig{}
	}
	for name, client := range file.Clients {
		client.Name = name
		c.Clients[name] = client
	}
	if file.Fallback != nil {
		c.Fallback = *file.Fallback
	}
	if len(file.Pricing) > 0 {
		c.Pricing = c.Pricing.Merge(file.Pricing)
	}
	if c.ProcessMappings == nil {
		c.ProcessMappings = map[string]models.Route{}
	}
	for process, route := range file.ProcessMappings {
		c.ProcessMappings[process] = route
	}

	return nil
}

// Validate checks the client table and recording settings
func (c *OrchestratorConfig) Validate() error {
	if c.DefaultClient == "" {
		return fmt.Errorf("default LLM client is required")
	}
	if _, ok := c.Clients[c.DefaultClient]; !ok {
		return fmt.Errorf("default LLM client %q is not configured", c.DefaultClient)
	}
	for name, client := range c.Clients {
		if client.Driver == "" {
			return fmt.Errorf("LLM client %q has no driver", name)
		}
	}
	for _, mechanism := range []string{c.Logging.Mechanism, c.Metrics.Mechanism} {
		if mechanism != MechanismSync && mechanism != MechanismAsync {
			return fmt.Errorf("unsupported recording mechanism: %q", mechanism)
		}
	}
	return nil
}

// ManagerConfig converts the settings into the routing manager configuration
func (c *OrchestratorConfig) ManagerConfig() routing.ManagerConfig {
	clients := make(map[string]providers.ClientConfig, len(c.Clients))
	for name, client := range c.Clients {
		client.Name = name
		clients[name] = client
	}
	return routing.ManagerConfig{
		DefaultClient: c.DefaultClient,
		Fallback:      c.Fallback,
		Clients:       clients,
	}
}
