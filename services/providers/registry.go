package providers

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/upb/llm-orchestrator/utils"
)

var (
	// ErrDriverNotFound is returned when no builder is registered for a driver kind
	ErrDriverNotFound = errors.New("driver not found")

	// ErrDriverAlreadyRegistered is returned when trying to register a duplicate driver kind
	ErrDriverAlreadyRegistered = errors.New("driver already registered")
)

// Builder creates a driver for one client configuration
type Builder func(cfg ClientConfig, deps Dependencies) (Driver, error)

// Registry maps driver kinds to builders
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry creates an empty driver registry
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]Builder),
	}
}

// Register adds a builder for a driver kind
func (r *Registry) Register(kind string, builder Builder) error {
	if kind == "" {
		return errors.New("driver kind cannot be empty")
	}
	if builder == nil {
		return errors.New("driver builder cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builders[kind]; exists {
		return ErrDriverAlreadyRegistered
	}

	r.builders[kind] = builder
	return nil
}

// Unregister removes a driver kind
func (r *Registry) Unregister(kind string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builders[kind]; !exists {
		return ErrDriverNotFound
	}
	delete(r.builders, kind)
	return nil
}

// Has reports whether a driver kind is registered
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.builders[kind]
	return exists
}

// Kinds returns the registered driver kinds in sorted order
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.builders))
	for kind := range r.builders {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Build creates the driver for a client configuration.
// Defaults are applied before validation; an enabled breaker wraps the result.
func (r *Registry) Build(cfg ClientConfig, deps Dependencies) (Driver, error) {
	r.mu.RLock()
	builder, exists := r.builders[cfg.Driver]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrDriverNotFound, cfg.Driver)
	}

	cfg = cfg.WithDefaults(deps.Defaults)
	if err := utils.ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration for client %s: %w", cfg.Name, err)
	}

	driver, err := builder(cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to build driver %s for client %s: %w", cfg.Driver, cfg.Name, err)
	}
	if driver == nil {
		return nil, fmt.Errorf("builder for driver %s returned nil", cfg.Driver)
	}

	if cfg.Breaker.Enabled {
		driver = WithCircuitBreaker(driver, cfg.Breaker, deps.Logger)
	}

	return driver, nil
}
