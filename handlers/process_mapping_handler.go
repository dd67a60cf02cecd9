package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/llm-orchestrator/services/routing"
	"github.com/upb/llm-orchestrator/utils"
)

// ProcessMappingHandler handles process mapping administration
type ProcessMappingHandler struct {
	service ProcessMappingService
	logger  *zap.Logger
}

// NewProcessMappingHandler creates a new ProcessMappingHandler
func NewProcessMappingHandler(service ProcessMappingService, logger *zap.Logger) *ProcessMappingHandler {
	return &ProcessMappingHandler{
		service: service,
		logger:  logger,
	}
}

func (h *ProcessMappingHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *ProcessMappingHandler) decodeInput(w http.ResponseWriter, r *http.Request) (routing.MappingInput, bool) {
	var input routing.MappingInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return input, false
	}
	if err := utils.ValidateStruct(&input); err != nil {
		HandleValidationError(w, err, h.logger)
		return input, false
	}
	return input, true
}

// HandleList handles GET /api/v1/process-mappings
func (h *ProcessMappingHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	active, err := queryBool(r, "active")
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	mappings, err := h.service.List(r.Context(), active, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, ListResponse{
		Items:  mappings,
		Count:  len(mappings),
		Limit:  limit,
		Offset: offset,
	})
}

// HandleCreate handles POST /api/v1/process-mappings
func (h *ProcessMappingHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	mapping, err := h.service.Create(r.Context(), input)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, mapping)
}

// HandleGet handles GET /api/v1/process-mappings/{id}
func (h *ProcessMappingHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	mapping, err := h.service.Get(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, mapping)
}

// HandleUpdate handles PUT /api/v1/process-mappings/{id}
func (h *ProcessMappingHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	input, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	mapping, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, mapping)
}

// HandleToggle handles POST /api/v1/process-mappings/{id}/toggle
func (h *ProcessMappingHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	mapping, err := h.service.Toggle(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, mapping)
}

// HandleDelete handles DELETE /api/v1/process-mappings/{id}
func (h *ProcessMappingHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}
