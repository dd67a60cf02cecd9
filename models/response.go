package models

// ToolCall is a function invocation requested by the model
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Type      string                 `json:"type"`
	Arguments map[string]interface{} `json:"arguments"`
}

// NewToolCall creates a "function" tool call
func NewToolCall(id, name string, arguments map[string]interface{}) ToolCall {
	if arguments == nil {
		arguments = map[string]interface{}{}
	}
	return ToolCall{ID: id, Name: name, Type: "function", Arguments: arguments}
}

// ToMap renders the tool call
func (tc ToolCall) ToMap() map[string]interface{} {
	args := cloneMap(tc.Arguments)
	if args == nil {
		args = map[string]interface{}{}
	}
	return map[string]interface{}{
		"id":        tc.ID,
		"name":      tc.Name,
		"type":      tc.Type,
		"arguments": args,
	}
}

// Response is the provider-agnostic result of one successful driver execution
type Response struct {
	Content          string                 `json:"content"`
	Driver           string                 `json:"driver"`
	Client           string                 `json:"client,omitempty"`
	Model            string                 `json:"model"`
	InputTokens      int                    `json:"input_tokens"`
	OutputTokens     int                    `json:"output_tokens"`
	TotalTokens      int                    `json:"total_tokens"`
	Cost             *float64               `json:"cost"`
	Metadata         map[string]interface{} `json:"metadata"`
	FinishReason     string                 `json:"finish_reason,omitempty"`
	ToolCalls        []ToolCall             `json:"tool_calls,omitempty"`
	StructuredOutput interface{}            `json:"structured_output"`
	AttemptedClients []string               `json:"attempted_clients,omitempty"`
}

// CostValue returns the cost or zero when none was computed
func (r *Response) CostValue() float64 {
	if r.Cost == nil {
		return 0
	}
	return *r.Cost
}

// WithAttempts returns a copy carrying the clients tried before this response
func (r *Response) WithAttempts(clients []string) *Response {
	out := *r
	out.Metadata = cloneMap(r.Metadata)
	out.ToolCalls = append([]ToolCall(nil), r.ToolCalls...)
	out.AttemptedClients = append([]string(nil), clients...)
	return &out
}

// ToMap renders the response as a JSON-serializable tree
func (r *Response) ToMap() map[string]interface{} {
	var toolCalls interface{}
	if len(r.ToolCalls) > 0 {
		calls := make([]interface{}, 0, len(r.ToolCalls))
		for _, tc := range r.ToolCalls {
			calls = append(calls, tc.ToMap())
		}
		toolCalls = calls
	}

	var cost, finishReason interface{}
	if r.Cost != nil {
		cost = *r.Cost
	}
	if r.FinishReason != "" {
		finishReason = r.FinishReason
	}

	return map[string]interface{}{
		"content":           r.Content,
		"driver":            r.Driver,
		"model":             r.Model,
		"input_tokens":      r.InputTokens,
		"output_tokens":     r.OutputTokens,
		"total_tokens":      r.TotalTokens,
		"cost":              cost,
		"metadata":          nullableMap(r.Metadata),
		"finish_reason":     finishReason,
		"tool_calls":        toolCalls,
		"structured_output": cloneValue(r.StructuredOutput),
	}
}
