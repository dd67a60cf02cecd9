// Package builtin registers the bundled driver kinds
package builtin

import (
	"github.com/upb/llm-orchestrator/services/providers"
	"github.com/upb/llm-orchestrator/services/providers/claude"
	"github.com/upb/llm-orchestrator/services/providers/gemini"
	"github.com/upb/llm-orchestrator/services/providers/openai"
)

// Register adds the openai, claude and gemini drivers to a registry
func Register(r *providers.Registry) error {
	builders := map[string]providers.Builder{
		providers.DriverOpenAI: openai.Builder,
		providers.DriverClaude: claude.Builder,
		providers.DriverGemini: gemini.Builder,
	}
	for kind, builder := range builders {
		if err := r.Register(kind, builder); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry with the bundled drivers registered
func NewRegistry() *providers.Registry {
	r := providers.NewRegistry()
	// a fresh registry cannot hold duplicates
	_ = Register(r)
	return r
}
