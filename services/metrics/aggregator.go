package metrics

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/repositories"
	"github.com/upb/llm-orchestrator/services"
	"github.com/upb/llm-orchestrator/services/providers"
)

// recordTimeout bounds one aggregation when the caller's context has no deadline
const recordTimeout = 10 * time.Second

// Aggregator folds usage events into daily buckets keyed by (date, client, driver, model)
type Aggregator struct {
	repo   repositories.MetricRepository
	txMgr  repositories.TransactionManager
	retry  services.RetryPolicy
	logger *zap.Logger
}

// NewAggregator creates a metrics aggregator
func NewAggregator(repo repositories.MetricRepository, txMgr repositories.TransactionManager, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		repo:   repo,
		txMgr:  txMgr,
		retry:  services.DefaultRetryPolicy(),
		logger: logger,
	}
}

// WithRetryPolicy overrides the transaction retry policy
func (a *Aggregator) WithRetryPolicy(policy services.RetryPolicy) *Aggregator {
	a.retry = policy
	return a
}

// Record implements providers.MetricsSink. Failures are logged, never returned.
func (a *Aggregator) Record(ctx context.Context, event models.MetricEvent) {
	if err := a.Aggregate(ctx, event); err != nil {
		a.logger.Error("failed to record LLM metrics",
			zap.Error(err),
			zap.String("date", event.Date),
			zap.String("client", event.Client),
			zap.String("driver", event.Driver),
			zap.String("model", event.Model),
			zap.Bool("is_successful", event.IsSuccessful),
		)
	}
}

// Aggregate locks the event's bucket and increments it, inserting the bucket on first use.
// The whole transaction is replayed on failure per the retry policy.
func (a *Aggregator) Aggregate(ctx context.Context, event models.MetricEvent) error {
	if event.Date == "" {
		event.Date = models.Today()
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, recordTimeout)
		defer cancel()
	}

	return services.WithTransactionRetry(ctx, a.txMgr, a.retry, func(ctx context.Context, tx repositories.Transaction) error {
		repo := a.repo.WithTx(tx)

		bucket, err := repo.GetForUpdate(ctx, event)
		if err == nil {
			return repo.Increment(ctx, bucket.ID, event)
		}
		if !services.IsNotFoundError(err) {
			return err
		}

		return repo.Insert(ctx, models.NewMetricBucket(event))
	})
}

// List returns daily buckets matching the filter
func (a *Aggregator) List(ctx context.Context, filter models.MetricFilter) ([]*models.MetricBucket, error) {
	buckets, err := a.repo.List(ctx, filter)
	if err != nil {
		return nil, services.WrapInternal("failed to list metrics", err)
	}
	return buckets, nil
}

// Summary totals the buckets matching the filter
func (a *Aggregator) Summary(ctx context.Context, filter models.MetricFilter) (*models.MetricsSummary, error) {
	summary, err := a.repo.Summary(ctx, filter)
	if err != nil {
		return nil, services.WrapInternal("failed to summarize metrics", err)
	}
	return summary, nil
}

var _ providers.MetricsSink = (*Aggregator)(nil)
