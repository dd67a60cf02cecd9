package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/repositories"
	"github.com/upb/llm-orchestrator/services"
)

const executionLogColumns = `id, client, driver, model, input_tokens, output_tokens, total_tokens,
	cost, is_successful, finish_reason, failed_reason, request_data, response_data, metadata,
	created_at, updated_at`

// ExecutionLogRepository implements the repositories.ExecutionLogRepository interface
type ExecutionLogRepository struct {
	db     *DB
	tx     *sql.Tx
	table  string
	logger *zap.Logger
}

// NewExecutionLogRepository creates a new execution log repository
func NewExecutionLogRepository(db *DB, table string, logger *zap.Logger) repositories.ExecutionLogRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecutionLogRepository{
		db:     db,
		table:  table,
		logger: logger,
	}
}

// Insert inserts a new execution log entry
func (r *ExecutionLogRepository) Insert(ctx context.Context, log *models.ExecutionLog) error {
	requestData, err := marshalJSON(log.RequestData)
	if err != nil {
		return err
	}
	responseData, err := marshalJSON(log.ResponseData)
	if err != nil {
		return err
	}
	metadata, err := marshalJSON(log.Metadata)
	if err != nil {
		return err
	}

	query := r.db.Rebind(fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.table, executionLogColumns))

	_, err = r.executor(ctx).ExecContext(ctx, query,
		log.ID,
		log.Client,
		log.Driver,
		log.Model,
		log.InputTokens,
		log.OutputTokens,
		log.TotalTokens,
		log.Cost,
		log.IsSuccessful,
		log.FinishReason,
		log.FailedReason,
		requestData,
		responseData,
		metadata,
		log.CreatedAt,
		log.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution log: %w", err)
	}

	r.logger.Debug("execution log inserted",
		zap.String("id", log.ID.String()),
		zap.String("client", log.Client),
		zap.Bool("is_successful", log.IsSuccessful),
	)
	return nil
}

// GetByID retrieves an execution log by ID
func (r *ExecutionLogRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ExecutionLog, error) {
	query := r.db.Rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, executionLogColumns, r.table))

	log, err := scanExecutionLog(r.executor(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.ErrExecutionLogNotFound
		}
		return nil, fmt.Errorf("failed to get execution log: %w", err)
	}
	return log, nil
}

// List retrieves execution logs matching the filter, newest first
func (r *ExecutionLogRepository) List(ctx context.Context, filter models.ExecutionLogFilter) ([]*models.ExecutionLog, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.From != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, filter.To.UTC())
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
	if filter.IsSuccessful != nil {
		conds = append(conds, "is_successful = ?")
		args = append(args, *filter.IsSuccessful)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", executionLogColumns, r.table)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := r.executor(ctx).QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution logs: %w", err)
	}
	defer rows.Close()

	logs := []*models.ExecutionLog{}
	for rows.Next() {
		log, err := scanExecutionLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution log rows: %w", err)
	}

	return logs, nil
}

// DeleteAll removes every execution log
func (r *ExecutionLogRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.executor(ctx).ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", r.table))
	if err != nil {
		return 0, fmt.Errorf("failed to delete execution logs: %w", err)
	}
	return rowsAffected(result)
}

// DeleteOlderThan removes logs created before cutoff
func (r *ExecutionLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := r.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE created_at < ?", r.table))

	result, err := r.executor(ctx).ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete execution logs: %w", err)
	}
	return rowsAffected(result)
}

// WithTx returns a new repository instance bound to the transaction
func (r *ExecutionLogRepository) WithTx(tx repositories.Transaction) repositories.ExecutionLogRepository {
	return &ExecutionLogRepository{
		db:     r.db,
		tx:     unwrapTx(tx),
		table:  r.table,
		logger: r.logger,
	}
}

func (r *ExecutionLogRepository) executor(ctx context.Context) Executor {
	return boundExecutor(ctx, r.db, r.tx)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExecutionLog(row rowScanner) (*models.ExecutionLog, error) {
	log := &models.ExecutionLog{}
	var (
		cost                            sql.NullFloat64
		requestData, responseData, meta []byte
	)

	err := row.Scan(
		&log.ID,
		&log.Client,
		&log.Driver,
		&log.Model,
		&log.InputTokens,
		&log.OutputTokens,
		&log.TotalTokens,
		&cost,
		&log.IsSuccessful,
		&log.FinishReason,
		&log.FailedReason,
		&requestData,
		&responseData,
		&meta,
		&log.CreatedAt,
		&log.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if cost.Valid {
		log.Cost = &cost.Float64
	}
	if log.RequestData, err = unmarshalJSON(requestData); err != nil {
		return nil, err
	}
	if log.ResponseData, err = unmarshalJSON(responseData); err != nil {
		return nil, err
	}
	if log.Metadata, err = unmarshalJSON(meta); err != nil {
		return nil, err
	}
	return log, nil
}

// Default and maximum page sizes for listings
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func rowsAffected(result sql.Result) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
