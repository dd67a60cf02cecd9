package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/services"
	"github.com/upb/llm-orchestrator/utils"
)

// PruneResponse reports how many logs were removed
type PruneResponse struct {
	Deleted int64 `json:"deleted"`
	Hours   *int  `json:"hours,omitempty"`
}

// LogsHandler serves execution logs
type LogsHandler struct {
	service ExecutionLogService
	logger  *zap.Logger
}

// NewLogsHandler creates a new LogsHandler
func NewLogsHandler(service ExecutionLogService, logger *zap.Logger) *LogsHandler {
	return &LogsHandler{
		service: service,
		logger:  logger,
	}
}

// HandleList handles GET /api/v1/logs
func (h *LogsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := logFilter(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	logs, err := h.service.List(r.Context(), filter)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, ListResponse{
		Items:  logs,
		Count:  len(logs),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleGet handles GET /api/v1/logs/{id}
func (h *LogsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	log, err := h.service.Get(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, log); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandlePrune handles DELETE /api/v1/logs; without ?hours every log is removed
func (h *LogsHandler) HandlePrune(w http.ResponseWriter, r *http.Request) {
	var (
		window *time.Duration
		hours  *int
	)
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := queryInt(r, "hours", 0)
		if err != nil || n <= 0 {
			HandleServiceError(w, services.ErrInvalidHours, h.logger)
			return
		}
		d := time.Duration(n) * time.Hour
		window, hours = &d, &n
	}

	deleted, err := h.service.Prune(r.Context(), window)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, PruneResponse{Deleted: deleted, Hours: hours}); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

func logFilter(r *http.Request) (models.ExecutionLogFilter, error) {
	var filter models.ExecutionLogFilter
	var err error

	if filter.From, err = queryTime(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = queryTime(r, "to"); err != nil {
		return filter, err
	}
	if filter.IsSuccessful, err = queryBool(r, "successful"); err != nil {
		return filter, err
	}
	if filter.Limit, filter.Offset, err = pagination(r); err != nil {
		return filter, err
	}

	q := r.URL.Query()
	filter.Client = q.Get("client")
	filter.Driver = q.Get("driver")
	filter.Model = q.Get("model")
	return filter, nil
}
