package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Well-known message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn.
// A message is either plain text (Text set) or an ordered list of content parts.
type Message struct {
	Role  string
	Text  *string
	Parts []Content
	Extra map[string]interface{}
}

// NewMessage creates a plain text message
func NewMessage(role, text string) Message {
	return Message{Role: role, Text: &text}
}

// NewMultipartMessage creates a message from content parts
func NewMultipartMessage(role string, parts ...Content) Message {
	return Message{Role: role, Parts: parts}
}

// IsPlainText reports whether the message was built from a bare string
func (m Message) IsPlainText() bool {
	return m.Text != nil
}

// PlainText returns the bare string content, empty for multipart messages
func (m Message) PlainText() string {
	if m.Text == nil {
		return ""
	}
	return *m.Text
}

// ContentParts returns the message content as parts; plain text becomes a single text part
func (m Message) ContentParts() []Content {
	if m.Text != nil {
		return []Content{TextContent(*m.Text)}
	}
	return m.Parts
}

func (m Message) clone() Message {
	out := Message{Role: m.Role, Extra: cloneMap(m.Extra)}
	if m.Text != nil {
		text := *m.Text
		out.Text = &text
	}
	if m.Parts != nil {
		out.Parts = make([]Content, len(m.Parts))
		for i, p := range m.Parts {
			out.Parts[i] = Content{Type: p.Type, Data: p.Data, Metadata: cloneMap(p.Metadata)}
		}
	}
	return out
}

// ToMap renders the message with extra properties spread at the top level
func (m Message) ToMap() map[string]interface{} {
	parts := m.ContentParts()
	content := make([]interface{}, 0, len(parts))
	for _, p := range parts {
		content = append(content, p.ToMap())
	}

	out := map[string]interface{}{
		"role":    m.Role,
		"content": content,
	}
	for k, v := range m.Extra {
		out[k] = cloneValue(v)
	}
	return out
}

type messageJSON struct {
	Role    string                 `json:"role"`
	Content json.RawMessage        `json:"content"`
	Extra   map[string]interface{} `json:"extra,omitempty"`
}

// MarshalJSON emits a string for plain text messages and a part list otherwise
func (m Message) MarshalJSON() ([]byte, error) {
	var content interface{} = m.Parts
	if m.Text != nil {
		content = *m.Text
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(messageJSON{Role: m.Role, Content: raw, Extra: m.Extra})
}

// UnmarshalJSON accepts a string, a single content object or a list of content objects
func (m *Message) UnmarshalJSON(data []byte) error {
	var mj messageJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return err
	}

	*m = Message{Role: mj.Role, Extra: mj.Extra}

	raw := bytes.TrimSpace(mj.Content)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("message content is required")
	}

	switch raw[0] {
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return err
		}
		m.Text = &text
	case '{':
		var part Content
		if err := json.Unmarshal(raw, &part); err != nil {
			return err
		}
		m.Parts = []Content{part}
	case '[':
		if err := json.Unmarshal(raw, &m.Parts); err != nil {
			return err
		}
	default:
		return fmt.Errorf("message content must be a string, object or array")
	}

	return nil
}
