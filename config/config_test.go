package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/services/providers"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.False(t, cfg.Server.TLS.Enabled)
				assert.Equal(t, "certs/cert.pem", cfg.Server.TLS.CertFile)
				assert.Equal(t, "certs/key.pem", cfg.Server.TLS.KeyFile)
				assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
				assert.Equal(t, DriverPostgres, cfg.Database.Driver)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "dev", cfg.Database.User)
				assert.Equal(t, "llm_orchestrator", cfg.Database.Database)
			},
		},
		{
			name: "orchestrator defaults",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			check: func(t *testing.T, cfg *Config) {
				o := cfg.Orchestrator
				assert.Equal(t, "openai", o.DefaultClient)
				assert.Equal(t, "gpt-4-mini", o.Defaults.Model)
				assert.Equal(t, 2000, o.Defaults.MaxTokens)
				assert.Equal(t, 60*time.Second, o.Defaults.Timeout)
				assert.Equal(t, 3, o.Defaults.MaxRetries)
				assert.Len(t, o.Clients, 3)
				assert.Equal(t, "https://api.anthropic.com", o.Clients["claude"].BaseURL)
				assert.Equal(t, "gemini-1.5-pro", o.Clients["gemini"].Model)
				assert.False(t, o.Fallback.Enabled)
				assert.Equal(t, []string{"claude", "gemini"}, o.Fallback.Clients)
				assert.False(t, o.Logging.Enabled)
				assert.Equal(t, MechanismSync, o.Logging.Mechanism)
				assert.False(t, o.Metrics.Enabled)
				assert.Equal(t, "llm_metrics", o.Tables.Metrics)
				assert.Equal(t, 1000, o.Async.BufferSize)
			},
		},
		{
			name: "client overrides from environment",
			envVars: map[string]string{
				"OPENAI_API_KEY":             "sk-test",
				"OPENAI_TIMEOUT":             "30",
				"OPENAI_MAX_RETRIES":         "5",
				"CLAUDE_TIMEOUT":             "2m",
				"CLAUDE_ANTHROPIC_VERSION":   "2024-01-01",
				"GEMINI_REQUESTS_PER_SECOND": "2.5",
				"LLM_FALLBACK_ENABLED":       "true",
				"LLM_FALLBACK_CLIENTS":       "gemini, claude,",
				"LLM_METRICS_ENABLED":        "true",
				"LLM_METRICS_MECHANISM":      "async",
			},
			check: func(t *testing.T, cfg *Config) {
				o := cfg.Orchestrator
				assert.Equal(t, "sk-test", o.Clients["openai"].APIKey)
				assert.Equal(t, 30*time.Second, o.Clients["openai"].Timeout)
				assert.Equal(t, 5, o.Clients["openai"].MaxRetries)
				assert.Equal(t, 2*time.Minute, o.Clients["claude"].Timeout)
				assert.Equal(t, "2024-01-01", o.Clients["claude"].AnthropicVersion)
				assert.Equal(t, 2.5, o.Clients["gemini"].RequestsPerSecond)
				assert.True(t, o.Fallback.Enabled)
				assert.Equal(t, []string{"gemini", "claude"}, o.Fallback.Clients)
				assert.True(t, o.Metrics.Enabled)
				assert.Equal(t, MechanismAsync, o.Metrics.Mechanism)
			},
		},
		{
			name: "sqlite store",
			envVars: map[string]string{
				"DB_DRIVER":   "SQLite",
				"SQLITE_PATH": "/tmp/orchestrator.db",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DriverSQLite, cfg.Database.Driver)
				assert.Equal(t, "/tmp/orchestrator.db", cfg.Database.DSN())
				assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
			},
		},
		{
			name: "database url takes precedence",
			envVars: map[string]string{
				"DATABASE_URL": "postgres://u:p@db.internal:6543/llm?sslmode=require",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgres://u:p@db.internal:6543/llm?sslmode=require", cfg.Database.DSN())
				assert.Equal(t, "host=db.internal port=6543 database=llm", cfg.Database.LogString())
			},
		},
		{
			name: "unsupported database driver",
			envVars: map[string]string{
				"DB_DRIVER": "mysql",
			},
			wantErr: true,
		},
		{
			name: "unknown default client",
			envVars: map[string]string{
				"LLM_DEFAULT_CLIENT": "mistral",
			},
			wantErr: true,
		},
		{
			name: "unsupported recording mechanism",
			envVars: map[string]string{
				"LLM_LOGGING_MECHANISM": "queue",
			},
			wantErr: true,
		},
		{
			name: "missing config file",
			envVars: map[string]string{
				"LLM_CONFIG_FILE": "/nonexistent/llm.yaml",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			// Create config
			cfg, err := New(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestOrchestratorConfig_MergeFile(t *testing.T) {
	os.Clearenv()
	os.Setenv("MISTRAL_KEY", "secret-from-env")

	path := filepath.Join(t.TempDir(), "llm.yaml")
	content := `
default_client: mistral
clients:
  mistral:
    driver: openai
    api_key: ${MISTRAL_KEY}
    base_url: https://api.mistral.ai
    model: mistral-large
    timeout: 45s
    options:
      safe_prompt: true
fallback:
  enabled: true
  clients: [openai]
pricing:
  mistral:
    mistral-large:
      input: 2
      output: 6
process_mappings:
  invoice_extraction:
    client: claude
    model: claude-3-5-haiku-20241022
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := OrchestratorConfig{
		DefaultClient: "openai",
		Clients: map[string]providers.ClientConfig{
			"openai": {Driver: providers.DriverOpenAI},
		},
		Pricing: providers.DefaultPricing(),
	}

	require.NoError(t, cfg.MergeFile(path))

	assert.Equal(t, "mistral", cfg.DefaultClient)
	require.Contains(t, cfg.Clients, "mistral")
	mistral := cfg.Clients["mistral"]
	assert.Equal(t, "mistral", mistral.Name)
	assert.Equal(t, providers.DriverOpenAI, mistral.Driver)
	assert.Equal(t, "secret-from-env", mistral.APIKey)
	assert.Equal(t, 45*time.Second, mistral.Timeout)
	assert.Equal(t, true, mistral.Options["safe_prompt"])
	assert.Contains(t, cfg.Clients, "openai")

	assert.True(t, cfg.Fallback.Enabled)
	assert.Equal(t, []string{"openai"}, cfg.Fallback.Clients)

	assert.Equal(t, providers.Price{Input: 2, Output: 6}, cfg.Pricing.Lookup("mistral", "openai", "mistral-large"))
	assert.Equal(t, 0.15, cfg.Pricing.Lookup("openai", "openai", "gpt-4o-mini").Input)

	assert.Equal(t, models.Route{Client: "claude", Model: "claude-3-5-haiku-20241022"}, cfg.ProcessMappings["invoice_extraction"])
}

func TestOrchestratorConfig_MergeFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("clients: [unterminated"), 0o600))

	cfg := OrchestratorConfig{}
	err := cfg.MergeFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse LLM config file")
}

func TestOrchestratorConfig_ManagerConfig(t *testing.T) {
	cfg := OrchestratorConfig{
		DefaultClient: "openai",
		Clients: map[string]providers.ClientConfig{
			"openai": {Driver: providers.DriverOpenAI},
			"backup": {Driver: providers.DriverClaude},
		},
	}
	cfg.Fallback.Enabled = true
	cfg.Fallback.Clients = []string{"backup"}

	mc := cfg.ManagerConfig()

	assert.Equal(t, "openai", mc.DefaultClient)
	assert.Equal(t, "backup", mc.Clients["backup"].Name)
	assert.Equal(t, "openai", mc.Clients["openai"].Name)
	assert.Equal(t, []string{"backup"}, mc.Fallback.Clients)
	assert.Empty(t, cfg.Clients["backup"].Name)
}

func validOrchestrator() OrchestratorConfig {
	return OrchestratorConfig{
		DefaultClient: "openai",
		Clients: map[string]providers.ClientConfig{
			"openai": {Driver: providers.DriverOpenAI},
		},
		Logging: RecordingConfig{Mechanism: MechanismSync},
		Metrics: RecordingConfig{Mechanism: MechanismAsync},
	}
}

func TestConfig_Validate(t *testing.T) {
	noDriver := validOrchestrator()
	noDriver.Clients = map[string]providers.ClientConfig{"openai": {}}

	badMechanism := validOrchestrator()
	badMechanism.Metrics.Mechanism = "kafka"

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid development config",
			config: &Config{
				Environment: "development",
				Database: DatabaseConfig{
					Driver:   DriverPostgres,
					Host:     "localhost",
					User:     "user",
					Database: "db",
				},
				Orchestrator: validOrchestrator(),
				Observability: ObservabilityConfig{
					LogLevel: "info",
				},
			},
			wantErr: false,
		},
		{
			name: "valid sqlite config",
			config: &Config{
				Database: DatabaseConfig{
					Driver:     DriverSQLite,
					SQLitePath: "orchestrator.db",
				},
				Orchestrator: validOrchestrator(),
				Observability: ObservabilityConfig{
					LogLevel: "info",
				},
			},
			wantErr: false,
		},
		{
			name: "sqlite without path",
			config: &Config{
				Database:      DatabaseConfig{Driver: DriverSQLite},
				Orchestrator:  validOrchestrator(),
				Observability: ObservabilityConfig{LogLevel: "info"},
			},
			wantErr: true,
			errMsg:  "sqlite path is required",
		},
		{
			name: "missing database host",
			config: &Config{
				Environment: "development",
				Database: DatabaseConfig{
					Driver:   DriverPostgres,
					Host:     "",
					User:     "user",
					Database: "db",
				},
				Orchestrator: validOrchestrator(),
				Observability: ObservabilityConfig{
					LogLevel: "info",
				},
			},
			wantErr: true,
			errMsg:  "database configuration required",
		},
		{
			name: "missing database user",
			config: &Config{
				Environment: "development",
				Database: DatabaseConfig{
					Driver:   DriverPostgres,
					Host:     "localhost",
					User:     "",
					Database: "db",
				},
				Orchestrator: validOrchestrator(),
				Observability: ObservabilityConfig{
					LogLevel: "info",
				},
			},
			wantErr: true,
			errMsg:  "database user is required",
		},
		{
			name: "client without driver",
			config: &Config{
				Database:      DatabaseConfig{Driver: DriverSQLite, SQLitePath: "x.db"},
				Orchestrator:  noDriver,
				Observability: ObservabilityConfig{LogLevel: "info"},
			},
			wantErr: true,
			errMsg:  "has no driver",
		},
		{
			name: "unsupported mechanism",
			config: &Config{
				Database:      DatabaseConfig{Driver: DriverSQLite, SQLitePath: "x.db"},
				Orchestrator:  badMechanism,
				Observability: ObservabilityConfig{LogLevel: "info"},
			},
			wantErr: true,
			errMsg:  "unsupported recording mechanism",
		},
		{
			name: "missing log level",
			config: &Config{
				Database:     DatabaseConfig{Driver: DriverSQLite, SQLitePath: "x.db"},
				Orchestrator: validOrchestrator(),
			},
			wantErr: true,
			errMsg:  "log level is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Environment(t *testing.T) {
	tests := []struct {
		environment string
		production  bool
		development bool
	}{
		{"production", true, false},
		{"prod", true, false},
		{"development", false, true},
		{"dev", false, true},
		{"staging", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.production, cfg.IsProduction())
			assert.Equal(t, tt.development, cfg.IsDevelopment())
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Driver:   DriverPostgres,
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		Database: "testdb",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	assert.Equal(t, expected, cfg.DSN())
	assert.NotContains(t, cfg.LogString(), "testpass")
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{
		Host: "0.0.0.0",
		Port: 8080,
	}

	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestEnvHelpers(t *testing.T) {
	tests := []struct {
		name  string
		value string
		get   func(key string) interface{}
		want  interface{}
	}{
		{"int", "42", func(k string) interface{} { return getEnvAsInt(k, 10) }, 42},
		{"int unset", "", func(k string) interface{} { return getEnvAsInt(k, 10) }, 10},
		{"int invalid", "many", func(k string) interface{} { return getEnvAsInt(k, 10) }, 10},
		{"bool", "false", func(k string) interface{} { return getEnvAsBool(k, true) }, false},
		{"bool invalid", "maybe", func(k string) interface{} { return getEnvAsBool(k, true) }, true},
		{"float", "0.25", func(k string) interface{} { return getEnvAsFloat(k, 1) }, 0.25},
		{"float invalid", "cheap", func(k string) interface{} { return getEnvAsFloat(k, 1) }, 1.0},
		{"duration", "30s", func(k string) interface{} { return getEnvAsDuration(k, time.Second) }, 30 * time.Second},
		{"duration invalid", "later", func(k string) interface{} { return getEnvAsDuration(k, time.Second) }, time.Second},
		{"seconds as integer", "90", func(k string) interface{} { return getEnvAsSeconds(k, 5*time.Second) }, 90 * time.Second},
		{"seconds as duration", "1m30s", func(k string) interface{} { return getEnvAsSeconds(k, 5*time.Second) }, 90 * time.Second},
		{"seconds invalid", "soon", func(k string) interface{} { return getEnvAsSeconds(k, 5*time.Second) }, 5 * time.Second},
		{"list trims and drops blanks", " claude , ,gemini", func(k string) interface{} { return getEnvAsList(k, nil) }, []string{"claude", "gemini"}},
		{"list unset", "", func(k string) interface{} { return getEnvAsList(k, []string{"openai"}) }, []string{"openai"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LLM_TEST_VALUE", tt.value)
			assert.Equal(t, tt.want, tt.get("LLM_TEST_VALUE"))
		})
	}
}
