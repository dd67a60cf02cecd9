package metrics

import (
	"context"

	"github.com/upb/llm-orchestrator/internal/observability"
	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/services/providers"
)

// Request status label values
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// PrometheusSink exports usage events as Prometheus counters
type PrometheusSink struct {
	metrics *observability.Metrics
}

// NewPrometheusSink creates a sink over the collectors
func NewPrometheusSink(m *observability.Metrics) *PrometheusSink {
	return &PrometheusSink{metrics: m}
}

// Record implements providers.MetricsSink
func (s *PrometheusSink) Record(ctx context.Context, event models.MetricEvent) {
	labels := observability.RequestLabels{
		Client: event.Client,
		Driver: event.Driver,
		Model:  event.Model,
		Status: StatusFailed,
	}
	if event.IsSuccessful {
		labels.Status = StatusSuccess
	}

	s.metrics.RecordRequest(ctx, labels)
	s.metrics.RecordTokens(ctx, event.InputTokens, event.OutputTokens, labels)
	s.metrics.RecordCost(ctx, event.Cost, labels)
}

// MultiSink fans each event out to every sink in order
type MultiSink []providers.MetricsSink

// Record implements providers.MetricsSink
func (m MultiSink) Record(ctx context.Context, event models.MetricEvent) {
	for _, sink := range m {
		if sink != nil {
			sink.Record(ctx, event)
		}
	}
}

var (
	_ providers.MetricsSink = (*PrometheusSink)(nil)
	_ providers.MetricsSink = MultiSink(nil)
)
