package sqlstore

import (
	"context"

	"go.uber.org/zap"

	"github.com/upb/llm-orchestrator/config"
	"github.com/upb/llm-orchestrator/repositories"
)

// RepositoryFactory creates and manages all repositories
type RepositoryFactory struct {
	db     *DB
	tables config.TablesConfig
	logger *zap.Logger
}

// NewRepositoryFactory opens the configured store
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	for _, name := range []string{cfg.Orchestrator.Tables.ExecutionLogs, cfg.Orchestrator.Tables.Metrics, cfg.Orchestrator.Tables.ProcessMappings} {
		if err := validateTableName(name); err != nil {
			return nil, err
		}
	}

	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	return NewRepositoryFactoryFromDB(db, cfg.Orchestrator.Tables, logger), nil
}

// NewRepositoryFactoryFromDB builds a factory over an open pool
func NewRepositoryFactoryFromDB(db *DB, tables config.TablesConfig, logger *zap.Logger) *RepositoryFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepositoryFactory{db: db, tables: tables, logger: logger}
}

// InitSchema creates the orchestrator tables
func (f *RepositoryFactory) InitSchema(ctx context.Context) error {
	return f.db.InitSchema(ctx, f.tables)
}

// NewRepositories creates all repository instances
func (f *RepositoryFactory) NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		ExecutionLogs:   NewExecutionLogRepository(f.db, f.tables.ExecutionLogs, f.logger),
		Metrics:         NewMetricRepository(f.db, f.tables.Metrics, f.logger),
		ProcessMappings: NewProcessMappingRepository(f.db, f.tables.ProcessMappings, f.logger),
	}
}

// GetTransactionManager returns a transaction manager
func (f *RepositoryFactory) GetTransactionManager() repositories.TransactionManager {
	return NewTransactionManager(f.db, f.logger)
}

// GetDB returns the database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// Close closes the database connection
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}
