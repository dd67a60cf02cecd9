package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/repositories"
	"github.com/upb/llm-orchestrator/services"
)

const metricColumns = `id, date, client, driver, model, successful_requests, failed_requests,
	total_requests, input_tokens, output_tokens, total_tokens, total_cost, created_at, updated_at`

// MetricRepository implements the repositories.MetricRepository interface
type MetricRepository struct {
	db     *DB
	tx     *sql.Tx
	table  string
	logger *zap.Logger
}

// NewMetricRepository creates a new metric bucket repository
func NewMetricRepository(db *DB, table string, logger *zap.Logger) repositories.MetricRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetricRepository{
		db:     db,
		table:  table,
		logger: logger,
	}
}

// GetForUpdate retrieves the bucket for an event's key.
// Postgres locks the row; SQLite relies on the immediate write lock of the transaction.
func (r *MetricRepository) GetForUpdate(ctx context.Context, key models.MetricEvent) (*models.MetricBucket, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE date = ? AND client = ? AND driver = ? AND model = ?`,
		metricColumns, r.table)
	if r.db.Dialect() == DialectPostgres {
		query += " FOR UPDATE"
	}

	bucket, err := scanMetricBucket(r.executor(ctx).QueryRowContext(ctx, r.db.Rebind(query),
		key.Date, key.Client, key.Driver, key.Model))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.ErrMetricNotFound
		}
		return nil, fmt.Errorf("failed to get metric bucket: %w", err)
	}
	return bucket, nil
}

// Insert inserts a new bucket and sets its ID
func (r *MetricRepository) Insert(ctx context.Context, bucket *models.MetricBucket) error {
	query := r.db.Rebind(fmt.Sprintf(`
		INSERT INTO %s (
			date, client, driver, model, successful_requests, failed_requests, total_requests,
			input_tokens, output_tokens, total_tokens, total_cost, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`, r.table))

	err := r.executor(ctx).QueryRowContext(ctx, query,
		bucket.Date,
		bucket.Client,
		bucket.Driver,
		bucket.Model,
		bucket.SuccessfulRequests,
		bucket.FailedRequests,
		bucket.TotalRequests,
		bucket.InputTokens,
		bucket.OutputTokens,
		bucket.TotalTokens,
		bucket.TotalCost,
		bucket.CreatedAt,
		bucket.UpdatedAt,
	).Scan(&bucket.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return services.WrapError(services.ErrorTypeConflict, "metric bucket already exists", err)
		}
		return fmt.Errorf("failed to insert metric bucket: %w", err)
	}

	r.logger.Debug("metric bucket created",
		zap.Int64("id", bucket.ID),
		zap.String("date", bucket.Date),
		zap.String("client", bucket.Client),
		zap.String("model", bucket.Model),
	)
	return nil
}

// Increment adds an event to an existing bucket
func (r *MetricRepository) Increment(ctx context.Context, id int64, event models.MetricEvent) error {
	var successful, failed int64
	if event.IsSuccessful {
		successful = 1
	} else {
		failed = 1
	}

	query := r.db.Rebind(fmt.Sprintf(`
		UPDATE %s SET
			successful_requests = successful_requests + ?,
			failed_requests = failed_requests + ?,
			total_requests = total_requests + 1,
			input_tokens = input_tokens + ?,
			output_tokens = output_tokens + ?,
			total_tokens = total_tokens + ?,
			total_cost = total_cost + ?,
			updated_at = ?
		WHERE id = ?
	`, r.table))

	result, err := r.executor(ctx).ExecContext(ctx, query,
		successful,
		failed,
		event.InputTokens,
		event.OutputTokens,
		event.TotalTokens,
		event.Cost,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to increment metric bucket: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return services.ErrMetricNotFound
	}
	return nil
}

// List retrieves buckets matching the filter, newest date first
func (r *MetricRepository) List(ctx context.Context, filter models.MetricFilter) ([]*models.MetricBucket, error) {
	where, args := metricWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY date DESC, client, driver, model LIMIT ? OFFSET ?",
		metricColumns, r.table, where)
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := r.executor(ctx).QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric buckets: %w", err)
	}
	defer rows.Close()

	buckets := []*models.MetricBucket{}
	for rows.Next() {
		bucket, err := scanMetricBucket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metric bucket: %w", err)
		}
		buckets = append(buckets, bucket)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metric rows: %w", err)
	}

	return buckets, nil
}

// Summary sums the buckets matching the filter
func (r *MetricRepository) Summary(ctx context.Context, filter models.MetricFilter) (*models.MetricsSummary, error) {
	where, args := metricWhere(filter)
	query := fmt.Sprintf(`
		SELECT
			COALESCE(SUM(total_requests), 0),
			COALESCE(SUM(successful_requests), 0),
			COALESCE(SUM(failed_requests), 0),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(total_tokens), 0),
			COALESCE(SUM(total_cost), 0)
		FROM %s%s`, r.table, where)

	summary := &models.MetricsSummary{}
	err := r.executor(ctx).QueryRowContext(ctx, r.db.Rebind(query), args...).Scan(
		&summary.TotalRequests,
		&summary.SuccessfulRequests,
		&summary.FailedRequests,
		&summary.InputTokens,
		&summary.OutputTokens,
		&summary.TotalTokens,
		&summary.TotalCost,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize metric buckets: %w", err)
	}
	return summary, nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *MetricRepository) WithTx(tx repositories.Transaction) repositories.MetricRepository {
	return &MetricRepository{
		db:     r.db,
		tx:     unwrapTx(tx),
		table:  r.table,
		logger: r.logger,
	}
}

func (r *MetricRepository) executor(ctx context.Context) Executor {
	return boundExecutor(ctx, r.db, r.tx)
}

func metricWhere(filter models.MetricFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.From != "" {
		conds = append(conds, "date >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		conds = append(conds, "date <= ?")
		args = append(args, filter.To)
	}
	if filter.Client != "" {
		conds = append(conds, "client = ?")
		args = append(args, filter.Client)
	}
	if filter.Driver != "" {
		conds = append(conds, "driver = ?")
		args = append(args, filter.Driver)
	}
	if filter.Model != "" {
		conds = append(conds, "model = ?")
		args = append(args, filter.Model)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanMetricBucket(row rowScanner) (*models.MetricBucket, error) {
	b := &models.MetricBucket{}
	err := row.Scan(
		&b.ID,
		&b.Date,
		&b.Client,
		&b.Driver,
		&b.Model,
		&b.SuccessfulRequests,
		&b.FailedRequests,
		&b.TotalRequests,
		&b.InputTokens,
		&b.OutputTokens,
		&b.TotalTokens,
		&b.TotalCost,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}
