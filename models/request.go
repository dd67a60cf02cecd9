package models

// Response format types understood by the drivers
const (
	ResponseFormatJSONObject = "json_object"
	ResponseFormatJSONSchema = "json_schema"
)

// Request is the provider-agnostic chat request.
// It is treated as an immutable value: WithModel and WithoutModel return copies.
type Request struct {
	Model          *string                `json:"model,omitempty"`
	MaxTokens      *int                   `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
	Temperature    *float64               `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	Messages       []Message              `json:"messages"`
	Tools          []Tool                 `json:"tools,omitempty" validate:"dive"`
	Options        map[string]interface{} `json:"options,omitempty"`
	ResponseFormat map[string]interface{} `json:"response_format,omitempty"`
	RawPayload     map[string]interface{} `json:"raw_payload,omitempty"`
}

// ModelOr returns the explicit model or the given default
func (r *Request) ModelOr(defaultModel string) string {
	if r.Model != nil && *r.Model != "" {
		return *r.Model
	}
	return defaultModel
}

// HasModel reports whether an explicit model is set
func (r *Request) HasModel() bool {
	return r.Model != nil && *r.Model != ""
}

// ResponseFormatType returns the "type" entry of the response format
func (r *Request) ResponseFormatType() string {
	if r.ResponseFormat == nil {
		return ""
	}
	t, _ := r.ResponseFormat["type"].(string)
	return t
}

// JSONSchemaBody returns response_format.json_schema.schema when present
func (r *Request) JSONSchemaBody() interface{} {
	if r.ResponseFormat == nil {
		return nil
	}
	js, ok := r.ResponseFormat["json_schema"].(map[string]interface{})
	if !ok {
		return nil
	}
	return js["schema"]
}

// WithModel returns a copy of the request targeting the given model
func (r *Request) WithModel(model string) *Request {
	out := r.clone()
	out.Model = &model
	return out
}

// WithoutModel returns a copy of the request with no explicit model
func (r *Request) WithoutModel() *Request {
	out := r.clone()
	out.Model = nil
	return out
}

func (r *Request) clone() *Request {
	out := &Request{
		Options:        cloneMap(r.Options),
		ResponseFormat: cloneMap(r.ResponseFormat),
		RawPayload:     cloneMap(r.RawPayload),
	}
	if r.Model != nil {
		m := *r.Model
		out.Model = &m
	}
	if r.MaxTokens != nil {
		v := *r.MaxTokens
		out.MaxTokens = &v
	}
	if r.Temperature != nil {
		v := *r.Temperature
		out.Temperature = &v
	}
	if r.Messages != nil {
		out.Messages = make([]Message, len(r.Messages))
		for i, m := range r.Messages {
			out.Messages[i] = m.clone()
		}
	}
	if r.Tools != nil {
		out.Tools = append([]Tool(nil), r.Tools...)
	}
	return out
}

// ToMap renders the request as a JSON-serializable tree
func (r *Request) ToMap() map[string]interface{} {
	messages := make([]interface{}, 0, len(r.Messages))
	for _, m := range r.Messages {
		messages = append(messages, m.ToMap())
	}
	tools := make([]interface{}, 0, len(r.Tools))
	for _, t := range r.Tools {
		tools = append(tools, t.ToMap())
	}

	var model, maxTokens, temperature interface{}
	if r.Model != nil {
		model = *r.Model
	}
	if r.MaxTokens != nil {
		maxTokens = *r.MaxTokens
	}
	if r.Temperature != nil {
		temperature = *r.Temperature
	}

	options := cloneMap(r.Options)
	if options == nil {
		options = map[string]interface{}{}
	}

	return map[string]interface{}{
		"model":           model,
		"max_tokens":      maxTokens,
		"temperature":     temperature,
		"messages":        messages,
		"tools":           tools,
		"options":         options,
		"response_format": nullableMap(r.ResponseFormat),
		"raw_payload":     nullableMap(r.RawPayload),
	}
}

func nullableMap(m map[string]interface{}) interface{} {
	if m == nil {
		return nil
	}
	return cloneMap(m)
}
