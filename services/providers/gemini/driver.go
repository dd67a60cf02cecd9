package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/services/providers"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Driver implements the Gemini generateContent wire format
type Driver struct {
	*providers.BaseDriver
	transport *providers.Transport
	baseURL   string
	options   map[string]interface{}
}

// New creates a Gemini driver for one client
func New(cfg providers.ClientConfig, deps providers.Dependencies) (*Driver, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	d := &Driver{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		options: cfg.Options,
	}
	d.BaseDriver = providers.NewBaseDriver(providers.DriverGemini, cfg, deps, d)
	d.transport = providers.NewTransport(cfg, deps.HTTPClient, d.Logger())

	return d, nil
}

// Builder registers the driver kind
func Builder(cfg providers.ClientConfig, deps providers.Dependencies) (providers.Driver, error) {
	return New(cfg, deps)
}

// Execute sends the request to the model's generateContent endpoint
func (d *Driver) Execute(ctx context.Context, req *models.Request) (*models.Response, error) {
	payload, err := d.BuildPayload(ctx, req)
	if err != nil {
		return nil, err
	}

	body, err := d.transport.PostJSON(ctx, d.endpoint(req), d.headers(), payload)
	if err != nil {
		return nil, d.RequestFailed(payload, err)
	}

	resp, err := d.transformResponse(body, req)
	if err != nil {
		return nil, d.RequestFailed(payload, err)
	}

	return resp, nil
}

func (d *Driver) endpoint(req *models.Request) string {
	model := req.ModelOr(d.DefaultModel())
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent", d.baseURL, url.PathEscape(model))
}

func (d *Driver) headers() map[string]string {
	return map[string]string{
		"x-goog-api-key": d.Config().APIKey,
	}
}

// BuildPayload translates the canonical request into the generateContent payload.
// The last system message becomes the system instruction.
func (d *Driver) BuildPayload(ctx context.Context, req *models.Request) (map[string]interface{}, error) {
	if req.RawPayload != nil {
		return req.RawPayload, nil
	}

	var systemInstruction map[string]interface{}
	contents := make([]interface{}, 0, len(req.Messages))

	for _, m := range req.Messages {
		if m.Role == models.RoleSystem {
			var parts []interface{}
			for _, part := range m.ContentParts() {
				if part.Type == models.ContentTypeText {
					parts = append(parts, map[string]interface{}{"text": part.Data})
				}
			}
			if len(parts) > 0 {
				systemInstruction = map[string]interface{}{"parts": parts}
			}
			continue
		}

		msg, err := d.transformMessage(ctx, m)
		if err != nil {
			return nil, err
		}
		contents = append(contents, msg)
	}

	payload := map[string]interface{}{
		"contents": contents,
	}
	if systemInstruction != nil {
		payload["systemInstruction"] = systemInstruction
	}

	generationConfig := map[string]interface{}{}
	if req.MaxTokens != nil {
		generationConfig["maxOutputTokens"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		generationConfig["temperature"] = *req.Temperature
	}
	switch req.ResponseFormatType() {
	case models.ResponseFormatJSONSchema:
		generationConfig["responseMimeType"] = "application/json"
		generationConfig["responseJsonSchema"] = req.JSONSchemaBody()
	case models.ResponseFormatJSONObject:
		generationConfig["responseMimeType"] = "application/json"
	}
	if len(generationConfig) > 0 {
		payload["generationConfig"] = generationConfig
	}

	if len(req.Tools) > 0 {
		declarations := make([]interface{}, 0, len(req.Tools))
		for _, t := range req.Tools {
			declarations = append(declarations, map[string]interface{}{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters(),
			})
		}
		payload["tools"] = []interface{}{
			map[string]interface{}{"functionDeclarations": declarations},
		}
	}

	for k, v := range d.options {
		payload[k] = v
	}
	for k, v := range req.Options {
		payload[k] = v
	}

	return payload, nil
}

func (d *Driver) transformMessage(ctx context.Context, m models.Message) (map[string]interface{}, error) {
	role := m.Role
	if role == models.RoleAssistant {
		role = "model"
	}

	if m.IsPlainText() {
		return map[string]interface{}{
			"role":  role,
			"parts": []interface{}{map[string]interface{}{"text": m.PlainText()}},
		}, nil
	}

	parts := make([]interface{}, 0, len(m.Parts))
	for _, c := range m.Parts {
		part, err := d.transformContentPart(ctx, c)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}

	return map[string]interface{}{
		"role":  role,
		"parts": parts,
	}, nil
}

func (d *Driver) transformContentPart(ctx context.Context, c models.Content) (map[string]interface{}, error) {
	switch c.Type {
	case models.ContentTypeImage:
		return d.transformImage(ctx, c)

	case models.ContentTypeAudio:
		data, err := d.NormalizeFile(c.Data)
		if err != nil {
			return nil, err
		}
		return inlineData(metadataOr(c, "mime_type", "audio/wav"), data), nil

	case models.ContentTypeFile, models.ContentTypeDocument:
		data, err := d.NormalizeFile(c.Data)
		if err != nil {
			return nil, err
		}
		return inlineData(metadataOr(c, "mime_type", "application/pdf"), data), nil
	}

	return map[string]interface{}{"text": c.Data}, nil
}

// transformImage inlines image data; remote URLs are only fetched when metadata.allow_url is true
func (d *Driver) transformImage(ctx context.Context, c models.Content) (map[string]interface{}, error) {
	normalized, err := d.NormalizeImage(c.Data)
	if err != nil {
		return nil, err
	}
	defaultMime := metadataOr(c, "mime_type", "image/jpeg")

	if providers.IsURL(normalized) {
		if !c.MetadataFlag("allow_url") {
			return nil, d.MessageValidation("Gemini driver requires base64/image file for URLs unless metadata.allow_url is true")
		}
		raw, _, err := d.transport.Get(ctx, normalized)
		if err != nil {
			return nil, d.MessageValidation("Failed to fetch image URL: " + err.Error())
		}
		return inlineData(defaultMime, base64.StdEncoding.EncodeToString(raw)), nil
	}

	mimeType, data, err := d.ExtractMimeAndBase64(normalized, defaultMime)
	if err != nil {
		return nil, err
	}
	return inlineData(mimeType, data), nil
}

func inlineData(mimeType, data string) map[string]interface{} {
	return map[string]interface{}{
		"inlineData": map[string]interface{}{
			"mimeType": mimeType,
			"data":     data,
		},
	}
}

func metadataOr(c models.Content, key, fallback string) string {
	if v, ok := c.MetadataString(key); ok {
		return v
	}
	return fallback
}

func (d *Driver) transformResponse(body []byte, req *models.Request) (*models.Response, error) {
	var wire generateContentResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var candidate candidate
	if len(wire.Candidates) > 0 {
		candidate = wire.Candidates[0]
	}

	content := ""
	textSeen := false
	var toolCalls []models.ToolCall

	for _, part := range candidate.Content.Parts {
		if part.Text != nil && !textSeen {
			content = *part.Text
			textSeen = true
		}
		if part.FunctionCall != nil {
			id := part.FunctionCall.ID
			if id == "" {
				id = part.FunctionCall.Name
			}
			args := part.FunctionCall.Args
			if args == nil {
				args = map[string]interface{}{}
			}
			toolCalls = append(toolCalls, models.ToolCall{
				ID:        id,
				Name:      part.FunctionCall.Name,
				Type:      "function",
				Arguments: args,
			})
		}
	}

	model := req.ModelOr(d.DefaultModel())
	inputTokens := wire.UsageMetadata.PromptTokenCount
	outputTokens := wire.UsageMetadata.CandidatesTokenCount
	totalTokens := inputTokens + outputTokens
	if wire.UsageMetadata.TotalTokenCount != nil {
		totalTokens = *wire.UsageMetadata.TotalTokenCount
	}
	cost := d.CalculateCost(inputTokens, outputTokens, model)

	return &models.Response{
		Content:          content,
		Driver:           d.Name(),
		Model:            model,
		InputTokens:      inputTokens,
		OutputTokens:     outputTokens,
		TotalTokens:      totalTokens,
		Cost:             &cost,
		Metadata:         map[string]interface{}{"model": model},
		FinishReason:     candidate.FinishReason,
		ToolCalls:        toolCalls,
		StructuredOutput: d.StructuredOutputFor(req, content, toolCalls),
	}, nil
}

// generateContent wire types

type generateContentResponse struct {
	Candidates    []candidate `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int  `json:"promptTokenCount"`
		CandidatesTokenCount int  `json:"candidatesTokenCount"`
		TotalTokenCount      *int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

type candidate struct {
	Content struct {
		Parts []part `json:"parts"`
	} `json:"content"`
	FinishReason string `json:"finishReason"`
}

type part struct {
	Text         *string       `json:"text,omitempty"`
	FunctionCall *functionCall `json:"functionCall,omitempty"`
}

type functionCall struct {
	ID   string                 `json:"id,omitempty"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

var _ providers.Driver = (*Driver)(nil)
