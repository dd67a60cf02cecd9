package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/repositories"
	"github.com/upb/llm-orchestrator/services"
	"github.com/upb/llm-orchestrator/services/providers"
)

// ExecutionLogger persists execution logs synchronously
type ExecutionLogger struct {
	repo     repositories.ExecutionLogRepository
	redactor *Redactor
	logger   *zap.Logger
}

// NewExecutionLogger creates a new execution logger
func NewExecutionLogger(repo repositories.ExecutionLogRepository, logger *zap.Logger) *ExecutionLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecutionLogger{repo: repo, logger: logger}
}

// WithRedactor masks credentials before entries are stored
func (l *ExecutionLogger) WithRedactor(r *Redactor) *ExecutionLogger {
	l.redactor = r
	return l
}

// Record implements providers.LogSink. Insert failures are logged and swallowed.
func (l *ExecutionLogger) Record(ctx context.Context, entry *models.ExecutionLog) {
	if entry == nil {
		return
	}
	if l.redactor != nil {
		entry = l.redactor.Entry(entry)
	}
	if err := l.repo.Insert(ctx, entry); err != nil {
		l.logger.Error("failed to record LLM execution log",
			zap.Error(err),
			zap.String("id", entry.ID.String()),
			zap.String("client", entry.Client),
			zap.String("driver", entry.Driver),
			zap.String("model", entry.Model),
			zap.Bool("is_successful", entry.IsSuccessful),
		)
	}
}

// Get retrieves one execution log
func (l *ExecutionLogger) Get(ctx context.Context, id uuid.UUID) (*models.ExecutionLog, error) {
	return l.repo.GetByID(ctx, id)
}

// List retrieves execution logs, newest first
func (l *ExecutionLogger) List(ctx context.Context, filter models.ExecutionLogFilter) ([]*models.ExecutionLog, error) {
	logs, err := l.repo.List(ctx, filter)
	if err != nil {
		return nil, services.WrapInternal("failed to list execution logs", err)
	}
	return logs, nil
}

// Prune deletes every execution log when olderThan is nil, otherwise only
// logs created more than olderThan ago. olderThan must be at least one hour.
func (l *ExecutionLogger) Prune(ctx context.Context, olderThan *time.Duration) (int64, error) {
	if olderThan == nil {
		n, err := l.repo.DeleteAll(ctx)
		if err != nil {
			return 0, services.WrapInternal("failed to prune execution logs", err)
		}
		l.logger.Info("pruned all execution logs", zap.Int64("deleted", n))
		return n, nil
	}

	if *olderThan < time.Hour {
		return 0, services.ErrInvalidHours
	}

	cutoff := time.Now().UTC().Add(-*olderThan)
	n, err := l.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, services.WrapInternal("failed to prune execution logs", err)
	}
	l.logger.Info("pruned execution logs",
		zap.Int64("deleted", n),
		zap.Time("cutoff", cutoff),
	)
	return n, nil
}

// Hours converts a --hours style argument to a retention window
func Hours(hours int) (*time.Duration, error) {
	if hours <= 0 {
		return nil, services.ErrInvalidHours
	}
	d := time.Duration(hours) * time.Hour
	return &d, nil
}

// DisabledLogSink discards every execution log
type DisabledLogSink struct{}

// Record implements providers.LogSink
func (DisabledLogSink) Record(context.Context, *models.ExecutionLog) {}

// DisabledMetricsSink discards every metric event
type DisabledMetricsSink struct{}

// Record implements providers.MetricsSink
func (DisabledMetricsSink) Record(context.Context, models.MetricEvent) {}

var (
	_ providers.LogSink     = (*ExecutionLogger)(nil)
	_ providers.LogSink     = DisabledLogSink{}
	_ providers.MetricsSink = DisabledMetricsSink{}
)
