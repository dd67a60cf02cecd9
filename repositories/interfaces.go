package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/upb/llm-orchestrator/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// ExecutionLogRepository handles execution log data operations
type ExecutionLogRepository interface {
	// Insert inserts a new execution log entry
	Insert(ctx context.Context, log *models.ExecutionLog) error

	// GetByID retrieves an execution log by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.ExecutionLog, error)

	// List retrieves execution logs matching the filter, newest first
	List(ctx context.Context, filter models.ExecutionLogFilter) ([]*models.ExecutionLog, error)

	// DeleteAll removes every execution log and returns the number removed
	DeleteAll(ctx context.Context) (int64, error)

	// DeleteOlderThan removes logs created before cutoff and returns the number removed
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) ExecutionLogRepository
}

// MetricRepository handles daily metric bucket data operations
type MetricRepository interface {
	// GetForUpdate retrieves the bucket for an event's key, locking the row where the dialect supports it
	GetForUpdate(ctx context.Context, key models.MetricEvent) (*models.MetricBucket, error)

	// Insert inserts a new bucket
	Insert(ctx context.Context, bucket *models.MetricBucket) error

	// Increment adds an event to an existing bucket
	Increment(ctx context.Context, id int64, event models.MetricEvent) error

	// List retrieves buckets matching the filter, newest date first
	List(ctx context.Context, filter models.MetricFilter) ([]*models.MetricBucket, error)

	// Summary sums the buckets matching the filter
	Summary(ctx context.Context, filter models.MetricFilter) (*models.MetricsSummary, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) MetricRepository
}

// ProcessMappingRepository handles process mapping data operations
type ProcessMappingRepository interface {
	// Create creates a new process mapping
	Create(ctx context.Context, mapping *models.ProcessMapping) error

	// GetByID retrieves a process mapping by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProcessMapping, error)

	// GetActiveByName retrieves the active mapping for a process
	GetActiveByName(ctx context.Context, processName string) (*models.ProcessMapping, error)

	// List retrieves mappings; a nil active lists both states
	List(ctx context.Context, active *bool, limit, offset int) ([]*models.ProcessMapping, error)

	// Update updates a process mapping
	Update(ctx context.Context, mapping *models.ProcessMapping) error

	// SetActive toggles the active flag
	SetActive(ctx context.Context, id uuid.UUID, active bool) error

	// Delete deletes a process mapping
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) ProcessMappingRepository
}

// Repositories holds all repository instances
type Repositories struct {
	ExecutionLogs   ExecutionLogRepository
	Metrics         MetricRepository
	ProcessMappings ProcessMappingRepository
}
