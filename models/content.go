package models

import (
	"encoding/json"
	"fmt"
)

// ContentType identifies the kind of a message content part
type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeImage    ContentType = "image"
	ContentTypeAudio    ContentType = "audio"
	ContentTypeFile     ContentType = "file"
	ContentTypeDocument ContentType = "document"
)

// IsValid reports whether the content type is one of the known kinds
func (t ContentType) IsValid() bool {
	switch t {
	case ContentTypeText, ContentTypeImage, ContentTypeAudio, ContentTypeFile, ContentTypeDocument:
		return true
	}
	return false
}

// Content is a single part of a message.
// For non-text parts Data holds a URL, a data URL, raw base64 or a local file path.
type Content struct {
	Type     ContentType            `json:"type"`
	Data     string                 `json:"data"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// TextContent creates a text part
func TextContent(text string) Content {
	return Content{Type: ContentTypeText, Data: text}
}

// ImageContent creates an image part
func ImageContent(data string, metadata map[string]interface{}) Content {
	return Content{Type: ContentTypeImage, Data: data, Metadata: metadata}
}

// AudioContent creates an audio part
func AudioContent(data string, metadata map[string]interface{}) Content {
	return Content{Type: ContentTypeAudio, Data: data, Metadata: metadata}
}

// FileContent creates a generic file part
func FileContent(data string, metadata map[string]interface{}) Content {
	return Content{Type: ContentTypeFile, Data: data, Metadata: metadata}
}

// DocumentContent creates a document part
func DocumentContent(data string, metadata map[string]interface{}) Content {
	return Content{Type: ContentTypeDocument, Data: data, Metadata: metadata}
}

// MetadataString returns a string metadata value
func (c Content) MetadataString(key string) (string, bool) {
	if c.Metadata == nil {
		return "", false
	}
	v, ok := c.Metadata[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprint(v), true
	}
	return s, true
}

// MetadataFlag reports whether a metadata key holds the boolean true
func (c Content) MetadataFlag(key string) bool {
	if c.Metadata == nil {
		return false
	}
	b, ok := c.Metadata[key].(bool)
	return ok && b
}

// ToMap renders the part as a JSON-serializable map
func (c Content) ToMap() map[string]interface{} {
	var metadata interface{}
	if c.Metadata != nil {
		metadata = cloneMap(c.Metadata)
	}
	return map[string]interface{}{
		"type":     string(c.Type),
		"data":     c.Data,
		"metadata": metadata,
	}
}

// UnmarshalJSON validates the content type while decoding
func (c *Content) UnmarshalJSON(data []byte) error {
	type alias Content
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Type == "" {
		a.Type = ContentTypeText
	}
	if !a.Type.IsValid() {
		return fmt.Errorf("unknown content type %q", a.Type)
	}
	*c = Content(a)
	return nil
}
