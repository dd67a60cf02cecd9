package routing

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/services"
	"github.com/upb/llm-orchestrator/services/providers"
)

// FallbackConfig controls the fallback chain
type FallbackConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Clients []string `json:"clients" yaml:"clients"`
}

// ManagerConfig holds the client table and routing defaults
type ManagerConfig struct {
	DefaultClient string
	Fallback      FallbackConfig
	Clients       map[string]providers.ClientConfig
}

// Manager routes requests to named clients and falls back across clients on
// retryable failures
type Manager struct {
	config   ManagerConfig
	registry *providers.Registry
	deps     providers.Dependencies
	lookup   ProcessMappingLookup
	logger   *zap.Logger

	mu      sync.RWMutex
	drivers map[string]providers.Driver
	group   singleflight.Group

	contextMu     sync.RWMutex
	contextClient string
}

// NewManager creates a manager; lookup may be nil when no process mappings exist
func NewManager(cfg ManagerConfig, registry *providers.Registry, deps providers.Dependencies, lookup ProcessMappingLookup, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lookup == nil {
		lookup = StaticMappings(nil)
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}

	return &Manager{
		config:   cfg,
		registry: registry,
		deps:     deps,
		lookup:   lookup,
		logger:   logger,
		drivers:  make(map[string]providers.Driver),
	}
}

// Request starts a new request builder
func (m *Manager) Request() *models.RequestBuilder {
	return models.NewRequestBuilder()
}

// Prompt sends a single user prompt
func (m *Manager) Prompt(ctx context.Context, prompt string, client ...string) (*models.Response, error) {
	if prompt == "" {
		return nil, services.ErrEmptyPrompt
	}
	return m.Send(ctx, m.Request().Prompt(prompt).Build(), client...)
}

// Using sets the client used when Send is called without an explicit one.
// An empty name clears the override.
func (m *Manager) Using(client string) *Manager {
	m.contextMu.Lock()
	m.contextClient = client
	m.contextMu.Unlock()
	return m
}

// DefaultClient returns the configured default client
func (m *Manager) DefaultClient() string {
	return m.config.DefaultClient
}

// Clients returns the configured client names in sorted order
func (m *Manager) Clients() []string {
	names := make([]string, 0, len(m.config.Clients))
	for name := range m.config.Clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) targetClient(client []string) string {
	if len(client) > 0 && client[0] != "" {
		return client[0]
	}
	m.contextMu.RLock()
	contextClient := m.contextClient
	m.contextMu.RUnlock()
	if contextClient != "" {
		return contextClient
	}
	return m.config.DefaultClient
}

// Send dispatches the request to the target client.
// The target is the explicit client, then the Using override, then the default.
func (m *Manager) Send(ctx context.Context, req *models.Request, client ...string) (*models.Response, error) {
	target := m.targetClient(client)
	attempted := []string{target}

	driver, err := m.ResolveDriver(target)
	if err != nil {
		return nil, err
	}

	resp, err := driver.Send(ctx, req)
	if err == nil {
		return resp.WithAttempts(attempted), nil
	}

	if !services.IsRetryable(err) || !m.config.Fallback.Enabled {
		return nil, err
	}

	m.logger.Warn("client failed, trying fallbacks",
		zap.String("client", target),
		zap.Error(err),
	)

	// fallback clients use their own default models
	if req.HasModel() {
		req = req.WithoutModel()
	}

	return m.sendViaFallbacks(ctx, req, attempted, err)
}

func (m *Manager) sendViaFallbacks(ctx context.Context, req *models.Request, attempted []string, lastErr error) (*models.Response, error) {
	errs := map[string]string{
		attempted[0]: services.ErrorMessage(lastErr),
	}

	for _, client := range m.config.Fallback.Clients {
		if contains(attempted, client) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attempted = append(attempted, client)
		resp, err := m.sendTo(ctx, client, req)
		if err == nil {
			m.logger.Info("fallback client succeeded",
				zap.String("client", client),
				zap.Strings("attempted_clients", attempted),
			)
			return resp.WithAttempts(attempted), nil
		}
		// any orchestration failure moves on to the next client; foreign errors surface
		if !services.IsOrchestrationError(err) {
			return nil, err
		}

		m.logger.Warn("fallback client failed",
			zap.String("client", client),
			zap.Error(err),
		)
		errs[client] = services.ErrorMessage(err)
	}

	return nil, services.NewAllClientsFailedError(attempted, errs)
}

func (m *Manager) sendTo(ctx context.Context, client string, req *models.Request) (*models.Response, error) {
	driver, err := m.ResolveDriver(client)
	if err != nil {
		return nil, err
	}
	return driver.Send(ctx, req)
}

// ForProcess routes the request by its process mapping. A mapping overrides
// the request model and client; without one the default client is used.
func (m *Manager) ForProcess(ctx context.Context, processName string, req *models.Request) (*models.Response, error) {
	route, found, err := m.lookup.Lookup(ctx, processName)
	if err != nil {
		return nil, err
	}
	if !found {
		return m.Send(ctx, req)
	}

	m.logger.Debug("routing process",
		zap.String("process", processName),
		zap.String("client", route.Client),
		zap.String("model", route.Model),
	)

	if route.Model != "" {
		req = req.WithModel(route.Model)
	}
	return m.Send(ctx, req, route.Client)
}

// ResolveDriver returns the cached driver for a client, building it on first use.
// Concurrent first resolutions of the same client share one build.
func (m *Manager) ResolveDriver(name string) (providers.Driver, error) {
	m.mu.RLock()
	driver, ok := m.drivers[name]
	m.mu.RUnlock()
	if ok {
		return driver, nil
	}

	v, err, _ := m.group.Do(name, func() (interface{}, error) {
		m.mu.RLock()
		cached, ok := m.drivers[name]
		m.mu.RUnlock()
		if ok {
			return cached, nil
		}

		built, err := m.buildDriver(name)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.drivers[name] = built
		m.mu.Unlock()

		m.logger.Debug("driver resolved", zap.String("client", name), zap.String("driver", built.Name()))
		return built, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(providers.Driver), nil
}

func (m *Manager) buildDriver(name string) (providers.Driver, error) {
	cfg, ok := m.config.Clients[name]
	if !ok {
		return nil, services.NewInvalidClientError(name, m.Clients())
	}
	cfg.Name = name

	driver, err := m.registry.Build(cfg, m.deps)
	if err != nil {
		return nil, services.NewInvalidDriverError(name, cfg.Driver, err)
	}
	return driver, nil
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
