package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/utils"
)

// SummaryResponse is the dashboard card data for a filter
type SummaryResponse struct {
	*models.MetricsSummary
	SuccessRate float64 `json:"success_rate"`
}

// MetricsHandler serves aggregated usage
type MetricsHandler struct {
	service MetricsService
	logger  *zap.Logger
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler(service MetricsService, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{
		service: service,
		logger:  logger,
	}
}

// metricFilter reads from, to, client, driver and model query parameters
func metricFilter(r *http.Request) (models.MetricFilter, error) {
	from, err := queryDate(r, "from")
	if err != nil {
		return models.MetricFilter{}, err
	}
	to, err := queryDate(r, "to")
	if err != nil {
		return models.MetricFilter{}, err
	}
	if from != "" && to != "" && from > to {
		return models.MetricFilter{}, invalidQuery("from", "must not be after to")
	}

	q := r.URL.Query()
	return models.MetricFilter{
		From:   from,
		To:     to,
		Client: q.Get("client"),
		Driver: q.Get("driver"),
		Model:  q.Get("model"),
	}, nil
}

// HandleList handles GET /api/v1/metrics
func (h *MetricsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := metricFilter(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	filter.Limit, filter.Offset, err = pagination(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	buckets, err := h.service.List(r.Context(), filter)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, ListResponse{
		Items:  buckets,
		Count:  len(buckets),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleSummary handles GET /api/v1/metrics/summary
func (h *MetricsHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := metricFilter(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	summary, err := h.service.Summary(r.Context(), filter)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, SummaryResponse{
		MetricsSummary: summary,
		SuccessRate:    summary.SuccessRate(),
	}); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
