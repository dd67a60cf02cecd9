package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/services/providers"
)

const (
	defaultBaseURL = "https://api.openai.com"
	completionsPath = "/v1/chat/completions"
)

// Driver implements the OpenAI chat completions wire format
type Driver struct {
	*providers.BaseDriver
	transport *providers.Transport
	baseURL   string
	options   map[string]interface{}
}

// New creates an OpenAI driver for one client
func New(cfg providers.ClientConfig, deps providers.Dependencies) (*Driver, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	d := &Driver{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		options: cfg.Options,
	}
	d.BaseDriver = providers.NewBaseDriver(providers.DriverOpenAI, cfg, deps, d)
	d.transport = providers.NewTransport(cfg, deps.HTTPClient, d.Logger())

	return d, nil
}

// Builder registers the driver kind
func Builder(cfg providers.ClientConfig, deps providers.Dependencies) (providers.Driver, error) {
	return New(cfg, deps)
}

// Execute sends the request to the chat completions endpoint
func (d *Driver) Execute(ctx context.Context, req *models.Request) (*models.Response, error) {
	payload, err := d.BuildPayload(req)
	if err != nil {
		return nil, err
	}

	body, err := d.transport.PostJSON(ctx, d.baseURL+completionsPath, d.headers(), payload)
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
		"Authorization": "Bearer " + d.Config().APIKey,
	}
}

// BuildPayload translates the canonical request into the OpenAI payload
func (d *Driver) BuildPayload(req *models.Request) (map[string]interface{}, error) {
	if req.RawPayload != nil {
		return req.RawPayload, nil
	}

	messages := make([]interface{}, 0, len(req.Messages))
	for _, m := range req.Messages {
		msg, err := d.transformMessage(m)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	payload := map[string]interface{}{
		"model":    req.ModelOr(d.DefaultModel()),
		"messages": messages,
	}

	if req.MaxTokens != nil {
		payload["max_completion_tokens"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		payload["temperature"] = *req.Temperature
	}
	if req.ResponseFormat != nil {
		payload["response_format"] = req.ResponseFormat
	}
	if len(req.Tools) > 0 {
		payload["tools"] = transformTools(req.Tools)
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
	case models.ContentTypeImage:
		url, err := d.NormalizeImage(c.Data)
		if err != nil {
			return nil, err
		}
		detail, ok := c.MetadataString("detail")
		if !ok {
			detail = "auto"
		}
		return map[string]interface{}{
			"type": "image_url",
			"image_url": map[string]interface{}{
				"url":    url,
				"detail": detail,
			},
		}, nil

	case models.ContentTypeAudio:
		data, err := d.NormalizeFile(c.Data)
		if err != nil {
			return nil, err
		}
		format, ok := c.MetadataString("format")
		if !ok {
			return nil, d.MessageValidation("format must be specified in audio content metadata")
		}
		return map[string]interface{}{
			"type": "input_audio",
			"input_audio": map[string]interface{}{
				"data":   data,
				"format": strings.ToLower(format),
			},
		}, nil

	case models.ContentTypeFile, models.ContentTypeDocument:
		file := map[string]interface{}{}
		if fileID, ok := c.MetadataString("file_id"); ok {
			file["file_id"] = fileID
		} else {
			data, err := d.NormalizeFile(c.Data)
			if err != nil {
				return nil, err
			}
			filename, ok := c.MetadataString("filename")
			if !ok {
				filename = "uploaded-file"
			}
			file["file_data"] = data
			file["filename"] = filename
		}
		return map[string]interface{}{
			"type": "file",
			"file": file,
		}, nil
	}

	return map[string]interface{}{
		"type": "text",
		"text": c.Data,
	}, nil
}

func transformTools(tools []models.Tool) []interface{} {
	out := make([]interface{}, 0, len(tools))
	for _, t := range tools {
		out = append(out, map[string]interface{}{
			"type":     "function",
			"function": t.ToMap(),
		})
	}
	return out
}

func (d *Driver) transformResponse(body []byte, req *models.Request) (*models.Response, error) {
	var wire chatCompletionResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var choice chatChoice
	if len(wire.Choices) > 0 {
		choice = wire.Choices[0]
	}

	var toolCalls []models.ToolCall
	for _, tc := range choice.Message.ToolCalls {
		toolCalls = append(toolCalls, parseToolCall(tc))
	}

	content := ""
	if choice.Message.Content != nil {
		content = *choice.Message.Content
	}

	var structured interface{}
	if req.ResponseFormat != nil && content != "" {
		structured = d.StructuredOutputFor(req, content, toolCalls)
	}

	model := wire.Model
	if model == "" {
		model = req.ModelOr(d.DefaultModel())
	}

	inputTokens := wire.Usage.PromptTokens
	outputTokens := wire.Usage.CompletionTokens
	cost := d.CalculateCost(inputTokens, outputTokens, model)

	resp := &models.Response{
		Content:      content,
		Driver:       d.Name(),
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  wire.Usage.TotalTokens,
		Cost:         &cost,
		Metadata: map[string]interface{}{
			"id":    nullable(wire.ID),
			"model": nullable(wire.Model),
		},
		ToolCalls:        toolCalls,
		StructuredOutput: structured,
	}
	if choice.FinishReason != nil {
		resp.FinishReason = *choice.FinishReason
	}

	return resp, nil
}

func parseToolCall(tc wireToolCall) models.ToolCall {
	callType := tc.Type
	if callType == "" {
		callType = "function"
	}
	return models.ToolCall{
		ID:        tc.ID,
		Name:      tc.Function.Name,
		Type:      callType,
		Arguments: decodeArguments(tc.Function.Arguments),
	}
}

// decodeArguments accepts the JSON-string form OpenAI sends as well as a plain object
func decodeArguments(raw json.RawMessage) map[string]interface{} {
	args := map[string]interface{}{}
	if len(raw) == 0 {
		return args
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil || decoded == nil {
		return args
	}
	return decoded
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// OpenAI wire types

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason *string     `json:"finish_reason"`
}

type chatMessage struct {
	Role      string         `json:"role"`
	Content   *string        `json:"content"`
	ToolCalls []wireToolCall `json:"tool_calls"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

var _ providers.Driver = (*Driver)(nil)
