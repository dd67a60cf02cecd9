package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/services"
	"github.com/upb/llm-orchestrator/utils"
)

// ChatRequest is a canonical request plus routing hints.
// Prompt is shorthand for a single user message.
type ChatRequest struct {
	models.Request
	Client string `json:"client,omitempty" validate:"max=255"`
	Prompt string `json:"prompt,omitempty"`
}

func (c *ChatRequest) toRequest() (*models.Request, error) {
	req := c.Request
	if c.Prompt != "" {
		req.Messages = append(req.Messages, models.NewMessage(models.RoleUser, c.Prompt))
	}
	if len(req.Messages) == 0 {
		return nil, services.ErrEmptyPrompt
	}
	return &req, nil
}

// ChatHandler handles chat requests
type ChatHandler struct {
	orchestrator Orchestrator
	logger       *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(orchestrator Orchestrator, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// decode parses and validates the chat body
func (h *ChatHandler) decode(w http.ResponseWriter, r *http.Request) (*ChatRequest, *models.Request, bool) {
	requestID := middleware.GetReqID(r.Context())

	var body ChatRequest
	if err := utils.DecodeJSON(r, &body); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return nil, nil, false
	}

	if err := utils.ValidateStruct(&body); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return nil, nil, false
	}

	req, err := body.toRequest()
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return nil, nil, false
	}
	return &body, req, true
}

// HandleChat handles POST /api/v1/chat
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	body, req, ok := h.decode(w, r)
	if !ok {
		return
	}

	var clients []string
	if body.Client != "" {
		clients = append(clients, body.Client)
	}

	resp, err := h.orchestrator.Send(r.Context(), req, clients...)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.respond(w, r, resp)
}

// HandleProcessChat handles POST /api/v1/processes/{name}/chat
func (h *ChatHandler) HandleProcessChat(w http.ResponseWriter, r *http.Request) {
	processName := strings.TrimSpace(chi.URLParam(r, "name"))
	if processName == "" {
		_ = utils.WriteBadRequest(w, "process name is required", nil)
		return
	}

	_, req, ok := h.decode(w, r)
	if !ok {
		return
	}

	resp, err := h.orchestrator.ForProcess(r.Context(), processName, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.respond(w, r, resp)
}

func (h *ChatHandler) respond(w http.ResponseWriter, r *http.Request, resp *models.Response) {
	h.logger.Info("chat completion successful",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("client", resp.Client),
		zap.String("driver", resp.Driver),
		zap.String("model", resp.Model),
		zap.Int("input_tokens", resp.InputTokens),
		zap.Int("output_tokens", resp.OutputTokens),
		zap.Float64("cost", resp.CostValue()),
		zap.Strings("attempted_clients", resp.AttemptedClients))

	body := resp.ToMap()
	body["client"] = resp.Client
	if len(resp.AttemptedClients) > 0 {
		body["attempted_clients"] = resp.AttemptedClients
	}

	if err := utils.WriteOK(w, body); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
