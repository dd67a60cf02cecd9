package providers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/upb/llm-orchestrator/models"
)

// stubExecutor is a test Executor returning canned results
type stubExecutor struct {
	mu    sync.Mutex
	calls int
	resp  *models.Response
	err   error
}

func (s *stubExecutor) Execute(ctx context.Context, req *models.Request) (*models.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	resp := *s.resp
	return &resp, nil
}

func (s *stubExecutor) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingLogs struct {
	mu      sync.Mutex
	entries []*models.ExecutionLog
}

func (r *recordingLogs) Record(_ context.Context, entry *models.ExecutionLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

type recordingMetrics struct {
	mu     sync.Mutex
	events []models.MetricEvent
}

func (r *recordingMetrics) Record(_ context.Context, event models.MetricEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestPricingTable_Lookup(t *testing.T) {
	table := DefaultPricing().Merge(PricingTable{
		"backup": {"gpt-4o": {Input: 1, Output: 1}},
	})

	tests := []struct {
		name   string
		client string
		driver string
		model  string
		want   Price
	}{
		{
			name:   "client override wins",
			client: "backup",
			driver: DriverOpenAI,
			model:  "gpt-4o",
			want:   Price{Input: 1, Output: 1},
		},
		{
			name:   "falls back to driver",
			client: "primary",
			driver: DriverOpenAI,
			model:  "gpt-4o-mini",
			want:   Price{Name: "GPT-4o Mini", Input: 0.15, Output: 0.60},
		},
		{
			name:   "unknown model is free",
			client: "primary",
			driver: DriverOpenAI,
			model:  "unknown",
			want:   Price{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Lookup(tt.client, tt.driver, tt.model))
		})
	}
}

func TestPricingTable_MergeDoesNotMutate(t *testing.T) {
	base := DefaultPricing()
	merged := base.Merge(PricingTable{DriverOpenAI: {"gpt-4o": {Input: 9, Output: 9}}})

	assert.Equal(t, 2.50, base[DriverOpenAI]["gpt-4o"].Input)
	assert.Equal(t, 9.0, merged[DriverOpenAI]["gpt-4o"].Input)
	assert.Contains(t, merged[DriverOpenAI], "gpt-4o-mini")
}

func TestClientConfig_WithDefaults(t *testing.T) {
	cfg := ClientConfig{Name: "c", Driver: DriverOpenAI, Model: "gpt-4o"}.WithDefaults(DefaultDefaults())

	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, 2000, cfg.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.RetryDelay)
}
