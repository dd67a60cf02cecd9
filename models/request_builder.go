package models

// RequestBuilder assembles a Request fluently
type RequestBuilder struct {
	model          *string
	maxTokens      *int
	temperature    *float64
	messages       []Message
	tools          []Tool
	options        map[string]interface{}
	responseFormat map[string]interface{}
	rawPayload     map[string]interface{}
}

// NewRequestBuilder creates an empty builder
func NewRequestBuilder() *RequestBuilder {
	return &RequestBuilder{options: make(map[string]interface{})}
}

// Prompt appends a user message
func (b *RequestBuilder) Prompt(prompt string) *RequestBuilder {
	b.messages = append(b.messages, NewMessage(RoleUser, prompt))
	return b
}

// Model sets the model; an empty string clears it
func (b *RequestBuilder) Model(model string) *RequestBuilder {
	if model == "" {
		b.model = nil
		return b
	}
	b.model = &model
	return b
}

func (b *RequestBuilder) MaxTokens(maxTokens int) *RequestBuilder {
	b.maxTokens = &maxTokens
	return b
}

func (b *RequestBuilder) Temperature(temperature float64) *RequestBuilder {
	b.temperature = &temperature
	return b
}

// Options merges free-form provider options; later keys win
func (b *RequestBuilder) Options(options map[string]interface{}) *RequestBuilder {
	for k, v := range options {
		b.options[k] = v
	}
	return b
}

func (b *RequestBuilder) AddMessage(message Message) *RequestBuilder {
	b.messages = append(b.messages, message)
	return b
}

func (b *RequestBuilder) AddMessages(messages ...Message) *RequestBuilder {
	b.messages = append(b.messages, messages...)
	return b
}

func (b *RequestBuilder) AddTool(tool Tool) *RequestBuilder {
	b.tools = append(b.tools, tool)
	return b
}

func (b *RequestBuilder) AddTools(tools ...Tool) *RequestBuilder {
	b.tools = append(b.tools, tools...)
	return b
}

// WithRawPayload makes drivers send the payload verbatim
func (b *RequestBuilder) WithRawPayload(payload map[string]interface{}) *RequestBuilder {
	b.rawPayload = payload
	return b
}

func (b *RequestBuilder) WithResponseFormat(format map[string]interface{}) *RequestBuilder {
	b.responseFormat = format
	return b
}

// AsStructuredOutput requests JSON conforming to the schema
func (b *RequestBuilder) AsStructuredOutput(schema Schema) *RequestBuilder {
	b.responseFormat = map[string]interface{}{
		"type":        ResponseFormatJSONSchema,
		"json_schema": schema.ToMap(),
	}
	return b
}

// AsJSON requests a free-form JSON object
func (b *RequestBuilder) AsJSON() *RequestBuilder {
	b.responseFormat = map[string]interface{}{"type": ResponseFormatJSONObject}
	return b
}

// Build returns an independent Request
func (b *RequestBuilder) Build() *Request {
	req := &Request{
		Model:          b.model,
		MaxTokens:      b.maxTokens,
		Temperature:    b.temperature,
		Messages:       b.messages,
		Tools:          b.tools,
		ResponseFormat: b.responseFormat,
		RawPayload:     b.rawPayload,
	}
	if len(b.options) > 0 {
		req.Options = b.options
	}
	return req.clone()
}
