package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/services"
	"github.com/upb/llm-orchestrator/services/routing"
)

// Orchestrator sends canonical requests through the LLM manager
type Orchestrator interface {
	// Send routes the request to the named client, or the default when none is given
	Send(ctx context.Context, req *models.Request, client ...string) (*models.Response, error)

	// ForProcess routes the request by process mapping
	ForProcess(ctx context.Context, processName string, req *models.Request) (*models.Response, error)
}

// MetricsService reads aggregated usage
type MetricsService interface {
	List(ctx context.Context, filter models.MetricFilter) ([]*models.MetricBucket, error)
	Summary(ctx context.Context, filter models.MetricFilter) (*models.MetricsSummary, error)
}

// ExecutionLogService reads and prunes execution logs
type ExecutionLogService interface {
	Get(ctx context.Context, id uuid.UUID) (*models.ExecutionLog, error)
	List(ctx context.Context, filter models.ExecutionLogFilter) ([]*models.ExecutionLog, error)
	Prune(ctx context.Context, olderThan *time.Duration) (int64, error)
}

// ProcessMappingService manages stored process mappings
type ProcessMappingService interface {
	Create(ctx context.Context, input routing.MappingInput) (*models.ProcessMapping, error)
	Get(ctx context.Context, id uuid.UUID) (*models.ProcessMapping, error)
	List(ctx context.Context, active *bool, limit, offset int) ([]*models.ProcessMapping, error)
	Update(ctx context.Context, id uuid.UUID, input routing.MappingInput) (*models.ProcessMapping, error)
	Toggle(ctx context.Context, id uuid.UUID) (*models.ProcessMapping, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ListResponse wraps a page of results
type ListResponse struct {
	Items  interface{} `json:"items"`
	Count  int         `json:"count"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

func invalidQuery(param, reason string) error {
	return services.NewDomainError(services.ErrorTypeValidation, "invalid query parameter: "+param, nil).
		WithDetail(param, reason)
}

// pagination reads limit and offset query parameters
func pagination(r *http.Request) (limit, offset int, err error) {
	limit, err = queryInt(r, "limit", defaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	if limit <= 0 || limit > maxPageSize {
		return 0, 0, invalidQuery("limit", "must be between 1 and 500")
	}

	offset, err = queryInt(r, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	if offset < 0 {
		return 0, 0, invalidQuery("offset", "must not be negative")
	}
	return limit, offset, nil
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidQuery(key, "must be an integer")
	}
	return v, nil
}

func queryBool(r *http.Request, key string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, invalidQuery(key, "must be a boolean")
	}
	return &v, nil
}

// queryDate reads a YYYY-MM-DD date
func queryDate(r *http.Request, key string) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return "", nil
	}
	if _, err := time.Parse(models.DateLayout, raw); err != nil {
		return "", invalidQuery(key, "must be a date in YYYY-MM-DD format")
	}
	return raw, nil
}

// queryTime reads an RFC 3339 timestamp or a YYYY-MM-DD date
func queryTime(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return nil, invalidQuery(key, "must be an RFC 3339 timestamp or YYYY-MM-DD date")
	}
	return &t, nil
}
