package providers

import (
	"unicode/utf8"

	"github.com/upb/llm-orchestrator/models"
)

// DefaultTruncateLimit bounds logged text parts
const DefaultTruncateLimit = 500

const truncatedSuffix = "... [truncated]"

// Truncate shortens text longer than limit bytes and marks it.
// The cut backs off to a rune boundary so multi-byte characters stay intact.
func Truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + truncatedSuffix
}

// SanitizeMessage renders message parts for logging: text is truncated and
// binary parts are replaced by placeholders
func SanitizeMessage(m models.Message) []interface{} {
	parts := m.ContentParts()
	out := make([]interface{}, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case models.ContentTypeText:
			out = append(out, Truncate(p.Data, DefaultTruncateLimit))
		case models.ContentTypeImage:
			out = append(out, "[image]")
		case models.ContentTypeAudio:
			out = append(out, "[audio]")
		case models.ContentTypeFile:
			out = append(out, "[file]")
		case models.ContentTypeDocument:
			out = append(out, "[document]")
		}
	}
	return out
}
