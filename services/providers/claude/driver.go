package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/services/providers"
)

const (
	defaultBaseURL          = "https://api.anthropic.com"
	defaultAnthropicVersion = "2023-06-01"
	messagesPath            = "/v1/messages"
)

// Driver implements the Anthropic Messages API wire format
type Driver struct {
	*providers.BaseDriver
	transport *providers.Transport
	baseURL   string
	version   string
	options   map[string]interface{}
}

// New creates a Claude driver for one client
func New(cfg providers.ClientConfig, deps providers.Dependencies) (*Driver, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	version := cfg.AnthropicVersion
	if version == "" {
		version = defaultAnthropicVersion
	}

	d := &Driver{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		version: version,
		options: cfg.Options,
	}
	d.BaseDriver = providers.NewBaseDriver(providers.DriverClaude, cfg, deps, d)
	d.transport = providers.NewTransport(cfg, deps.HTTPClient, d.Logger())

	return d, nil
}

// Builder registers the driver kind
func Builder(cfg providers.ClientConfig, deps providers.Dependencies) (providers.Driver, error) {
	return New(cfg, deps)
}

// Execute sends the request to the messages endpoint
func (d *Driver) Execute(ctx context.Context, req *models.Request) (*models.Response, error) {
	payload, err := d.BuildPayload(req)
	if err != nil {
		return nil, err
	}

	body, err := d.transport.PostJSON(ctx, d.baseURL+messagesPath, d.headers(), payload)
	if err != nil {
		return nil, d.RequestFailed(payload, err)
	}

	resp, err := d.transformResponse(body, req)
	if err != nil {
		return nil, d.RequestFailed(payload, err)
	}

	return resp, nil
}

func (d *Driver) headers() map[string]string {
	return map[string]string{
		"x-api-key":         d.Config().APIKey,
		"anthropic-version": d.version,
	}
}

// BuildPayload translates the canonical request into the Messages API payload.
// System messages are lifted into the top-level system blocks.
func (d *Driver) BuildPayload(req *models.Request) (map[string]interface{}, error) {
	if req.RawPayload != nil {
		return req.RawPayload, nil
	}

	var system []interface{}
	messages := make([]interface{}, 0, len(req.Messages))

	for _, m := range req.Messages {
		if m.Role == models.RoleSystem {
			for _, part := range m.ContentParts() {
				if part.Type != models.ContentTypeText {
					continue
				}
				system = append(system, map[string]interface{}{
					"type": "text",
					"text": part.Data,
				})
			}
			continue
		}

		msg, err := d.transformMessage(m)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	maxTokens := d.DefaultMaxTokens()
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	payload := map[string]interface{}{
		"model":      req.ModelOr(d.DefaultModel()),
		"messages":   messages,
		"max_tokens": maxTokens,
	}

	if len(system) > 0 {
		payload["system"] = system
	}
	if req.Temperature != nil {
		payload["temperature"] = *req.Temperature
	}
	if req.ResponseFormatType() == models.ResponseFormatJSONSchema {
		payload["output_format"] = map[string]interface{}{
			"type":   models.ResponseFormatJSONSchema,
			"schema": req.JSONSchemaBody(),
		}
	}
	if len(req.Tools) > 0 {
		tools := make([]interface{}, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, map[string]interface{}{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": t.Parameters(),
			})
		}
		payload["tools"] = tools
	}

	for k, v := range d.options {
		payload[k] = v
	}
	for k, v := range req.Options {
		payload[k] = v
	}

	return payload, nil
}

func (d *Driver) transformMessage(m models.Message) (map[string]interface{}, error) {
	result := map[string]interface{}{"role": m.Role}

	if m.IsPlainText() {
		result["content"] = m.PlainText()
		return result, nil
	}

	parts := make([]interface{}, 0, len(m.Parts))
	for _, c := range m.Parts {
		part, err := d.transformContentPart(c)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	result["content"] = parts

	return result, nil
}

func (d *Driver) transformContentPart(c models.Content) (map[string]interface{}, error) {
	switch c.Type {
	case models.ContentTypeText:
		return map[string]interface{}{"type": "text", "text": c.Data}, nil

	case models.ContentTypeImage:
		if providers.IsURL(c.Data) {
			return urlSource("image", c.Data), nil
		}
		normalized, err := d.NormalizeImage(c.Data)
		if err != nil {
			return nil, err
		}
		defaultMime, ok := c.MetadataString("mime_type")
		if !ok {
			defaultMime = "image/jpeg"
		}
		mediaType, data, err := d.ExtractMimeAndBase64(normalized, defaultMime)
		if err != nil {
			return nil, err
		}
		return base64Source("image", mediaType, data), nil

	case models.ContentTypeDocument:
		if providers.IsURL(c.Data) {
			return urlSource("document", c.Data), nil
		}
		data, err := d.NormalizeFile(c.Data)
		if err != nil {
			return nil, err
		}
		return base64Source("document", "application/pdf", data), nil
	}

	return nil, d.MessageValidation(fmt.Sprintf("%s content is not supported by Claude API in messages", c.Type))
}

func urlSource(kind, url string) map[string]interface{} {
	return map[string]interface{}{
		"type": kind,
		"source": map[string]interface{}{
			"type": "url",
			"url":  url,
		},
	}
}

func base64Source(kind, mediaType, data string) map[string]interface{} {
	return map[string]interface{}{
		"type": kind,
		"source": map[string]interface{}{
			"type":       "base64",
			"media_type": mediaType,
			"data":       data,
		},
	}
}

func (d *Driver) transformResponse(body []byte, req *models.Request) (*models.Response, error) {
	var wire messagesResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	content := ""
	textSeen := false
	var toolCalls []models.ToolCall

	for _, block := range wire.Content {
		switch block.Type {
		case "text":
			if !textSeen {
				content = block.Text
				textSeen = true
			}
		case "tool_use":
			args := block.Input
			if args == nil {
				args = map[string]interface{}{}
			}
			toolCalls = append(toolCalls, models.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Type:      block.Type,
				Arguments: args,
			})
		}
	}

	model := wire.Model
	if model == "" {
		model = req.ModelOr(d.DefaultModel())
	}

	inputTokens := wire.Usage.InputTokens
	outputTokens := wire.Usage.OutputTokens
	cost := d.CalculateCost(inputTokens, outputTokens, model)

	metadata := map[string]interface{}{"id": nil, "model": nil}
	if wire.ID != "" {
		metadata["id"] = wire.ID
	}
	if wire.Model != "" {
		metadata["model"] = wire.Model
	}

	return &models.Response{
		Content:          content,
		Driver:           d.Name(),
		Model:            model,
		InputTokens:      inputTokens,
		OutputTokens:     outputTokens,
		TotalTokens:      inputTokens + outputTokens,
		Cost:             &cost,
		Metadata:         metadata,
		FinishReason:     wire.StopReason,
		ToolCalls:        toolCalls,
		StructuredOutput: d.StructuredOutputFor(req, content, toolCalls),
	}, nil
}

// Messages API wire types

type messagesResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type contentBlock struct {
	Type  string                 `json:"type"`
	Text  string                 `json:"text,omitempty"`
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`
}

var _ providers.Driver = (*Driver)(nil)
