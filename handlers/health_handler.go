package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/llm-orchestrator/services/routing"
	"github.com/upb/llm-orchestrator/utils"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Clients   []string          `json:"clients,omitempty"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db      HealthChecker
	clients []string
	logger  *zap.Logger

	environment   string
	defaultClient string
	cache         CacheStatsSource
}

// NewHealthHandler creates a new HealthHandler; db may be nil when storage is disabled
func NewHealthHandler(db HealthChecker, clients []string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		clients: clients,
		logger:  logger,
	}
}

// HandleHealth handles GET /healthz
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.db == nil {
		checks["database"] = "disabled"
	} else if err := h.db.HealthCheck(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		allHealthy = false
	} else {
		checks["database"] = "healthy"
	}

	if len(h.clients) == 0 {
		checks["clients"] = "none_configured"
		allHealthy = false
	} else {
		checks["clients"] = "configured"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Clients:   h.clients,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// CacheStatsSource exposes process mapping cache statistics
type CacheStatsSource interface {
	Stats() routing.CacheStats
}

// StatusResponse describes the running orchestrator
type StatusResponse struct {
	Environment   string              `json:"environment"`
	DefaultClient string              `json:"default_client"`
	Clients       []string            `json:"clients"`
	MappingCache  *routing.CacheStats `json:"mapping_cache,omitempty"`
}

// WithStatus sets the environment, default client and optional mapping cache reported by HandleStatus
func (h *HealthHandler) WithStatus(environment, defaultClient string, cache CacheStatsSource) *HealthHandler {
	h.environment = environment
	h.defaultClient = defaultClient
	h.cache = cache
	return h
}

// HandleStatus handles GET /api/v1/status
func (h *HealthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	response := StatusResponse{
		Environment:   h.environment,
		DefaultClient: h.defaultClient,
		Clients:       h.clients,
	}
	if h.cache != nil {
		stats := h.cache.Stats()
		response.MappingCache = &stats
	}

	_ = utils.WriteOK(w, response)
}
