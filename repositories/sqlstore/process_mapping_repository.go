package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/repositories"
	"github.com/upb/llm-orchestrator/services"
)

const processMappingColumns = `id, process_name, client, model, is_active, description, created_at, updated_at`

// ProcessMappingRepository implements the repositories.ProcessMappingRepository interface
type ProcessMappingRepository struct {
	db     *DB
	tx     *sql.Tx
	table  string
	logger *zap.Logger
}

// NewProcessMappingRepository creates a new process mapping repository
func NewProcessMappingRepository(db *DB, table string, logger *zap.Logger) repositories.ProcessMappingRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessMappingRepository{
		db:     db,
		table:  table,
		logger: logger,
	}
}

// Create creates a new process mapping
func (r *ProcessMappingRepository) Create(ctx context.Context, mapping *models.ProcessMapping) error {
	query := r.db.Rebind(fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.table, processMappingColumns))

	_, err := r.executor(ctx).ExecContext(ctx, query,
		mapping.ID,
		mapping.ProcessName,
		mapping.Client,
		mapping.Model,
		mapping.IsActive,
		mapping.Description,
		mapping.CreatedAt,
		mapping.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return services.ErrDuplicateProcessMapping
		}
		return fmt.Errorf("failed to create process mapping: %w", err)
	}

	r.logger.Debug("process mapping created",
		zap.String("id", mapping.ID.String()),
		zap.String("process_name", mapping.ProcessName),
	)
	return nil
}

// GetByID retrieves a process mapping by ID
func (r *ProcessMappingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ProcessMapping, error) {
	query := r.db.Rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, processMappingColumns, r.table))
	return r.getOne(ctx, query, id)
}

// GetActiveByName retrieves the active mapping for a process
func (r *ProcessMappingRepository) GetActiveByName(ctx context.Context, processName string) (*models.ProcessMapping, error) {
	query := r.db.Rebind(fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE process_name = ? AND is_active = ?
		ORDER BY updated_at DESC
		LIMIT 1
	`, processMappingColumns, r.table))
	return r.getOne(ctx, query, processName, true)
}

// List retrieves mappings; a nil active lists both states
func (r *ProcessMappingRepository) List(ctx context.Context, active *bool, limit, offset int) ([]*models.ProcessMapping, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", processMappingColumns, r.table)
	var args []interface{}
	if active != nil {
		query += " WHERE is_active = ?"
		args = append(args, *active)
	}
	query += " ORDER BY process_name, created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limitOrDefault(limit), offset)

	rows, err := r.executor(ctx).QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query process mappings: %w", err)
	}
	defer rows.Close()

	mappings := []*models.ProcessMapping{}
	for rows.Next() {
		mapping, err := scanProcessMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan process mapping: %w", err)
		}
		mappings = append(mappings, mapping)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating process mapping rows: %w", err)
	}

	return mappings, nil
}

// Update updates a process mapping
func (r *ProcessMappingRepository) Update(ctx context.Context, mapping *models.ProcessMapping) error {
	mapping.UpdatedAt = time.Now().UTC()

	query := r.db.Rebind(fmt.Sprintf(`
		UPDATE %s
		SET process_name = ?, client = ?, model = ?, is_active = ?, description = ?, updated_at = ?
		WHERE id = ?
	`, r.table))

	result, err := r.executor(ctx).ExecContext(ctx, query,
		mapping.ProcessName,
		mapping.Client,
		mapping.Model,
		mapping.IsActive,
		mapping.Description,
		mapping.UpdatedAt,
		mapping.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return services.ErrDuplicateProcessMapping
		}
		return fmt.Errorf("failed to update process mapping: %w", err)
	}

	return r.expectOne(result)
}

// SetActive toggles the active flag
func (r *ProcessMappingRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := r.db.Rebind(fmt.Sprintf(`UPDATE %s SET is_active = ?, updated_at = ? WHERE id = ?`, r.table))

	result, err := r.executor(ctx).ExecContext(ctx, query, active, time.Now().UTC(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return services.ErrDuplicateProcessMapping
		}
		return fmt.Errorf("failed to update process mapping status: %w", err)
	}

	return r.expectOne(result)
}

// Delete deletes a process mapping
func (r *ProcessMappingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := r.db.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, r.table))

	result, err := r.executor(ctx).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete process mapping: %w", err)
	}

	return r.expectOne(result)
}

// WithTx returns a new repository instance bound to the transaction
func (r *ProcessMappingRepository) WithTx(tx repositories.Transaction) repositories.ProcessMappingRepository {
	return &ProcessMappingRepository{
		db:     r.db,
		tx:     unwrapTx(tx),
		table:  r.table,
		logger: r.logger,
	}
}

func (r *ProcessMappingRepository) executor(ctx context.Context) Executor {
	return boundExecutor(ctx, r.db, r.tx)
}

func (r *ProcessMappingRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.ProcessMapping, error) {
	mapping, err := scanProcessMapping(r.executor(ctx).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.ErrProcessMappingNotFound
		}
		return nil, fmt.Errorf("failed to get process mapping: %w", err)
	}
	return mapping, nil
}

func (r *ProcessMappingRepository) expectOne(result sql.Result) error {
	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return services.ErrProcessMappingNotFound
	}
	return nil
}

func scanProcessMapping(row rowScanner) (*models.ProcessMapping, error) {
	m := &models.ProcessMapping{}
	err := row.Scan(
		&m.ID,
		&m.ProcessName,
		&m.Client,
		&m.Model,
		&m.IsActive,
		&m.Description,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}
