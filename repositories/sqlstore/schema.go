package sqlstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/llm-orchestrator/config"
)

// Column types that differ between dialects
type columnTypes struct {
	serial    string
	uuid      string
	json      string
	timestamp string
	money     string
	boolTrue  string
}

func (db *DB) columnTypes() columnTypes {
	if db.dialect == DialectSQLite {
		return columnTypes{
			serial:    "INTEGER PRIMARY KEY AUTOINCREMENT",
			uuid:      "TEXT",
			json:      "TEXT",
			timestamp: "DATETIME",
			money:     "REAL",
			boolTrue:  "1",
		}
	}
	return columnTypes{
		serial:    "BIGSERIAL PRIMARY KEY",
		uuid:      "UUID",
		json:      "JSONB",
		timestamp: "TIMESTAMPTZ",
		money:     "NUMERIC(20, 12)",
		boolTrue:  "TRUE",
	}
}

// InitSchema creates the orchestrator tables and indexes when missing
func (db *DB) InitSchema(ctx context.Context, tables config.TablesConfig) error {
	for _, name := range []string{tables.ExecutionLogs, tables.Metrics, tables.ProcessMappings} {
		if err := validateTableName(name); err != nil {
			return err
		}
	}

	for _, stmt := range db.schemaStatements(tables) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	db.logger.Info("database schema initialized successfully",
		zap.String("dialect", string(db.dialect)))
	return nil
}

func (db *DB) schemaStatements(tables config.TablesConfig) []string {
	t := db.columnTypes()
	logs, metrics, mappings := tables.ExecutionLogs, tables.Metrics, tables.ProcessMappings

	stmts := []string{
		// Execution logs table
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id %s PRIMARY KEY,
			client VARCHAR(255) NOT NULL,
			driver VARCHAR(255) NOT NULL,
			model VARCHAR(255) NOT NULL,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			cost %s,
			is_successful BOOLEAN NOT NULL,
			finish_reason VARCHAR(50),
			failed_reason TEXT,
			request_data %s,
			response_data %s,
			metadata %s,
			created_at %s NOT NULL,
			updated_at %s NOT NULL
		)`, logs, t.uuid, t.money, t.json, t.json, t.json, t.timestamp, t.timestamp),

		// Daily metric buckets table
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id %s,
			date VARCHAR(10) NOT NULL,
			client VARCHAR(255) NOT NULL,
			driver VARCHAR(255) NOT NULL,
			model VARCHAR(255) NOT NULL,
			successful_requests BIGINT NOT NULL DEFAULT 0,
			failed_requests BIGINT NOT NULL DEFAULT 0,
			total_requests BIGINT NOT NULL DEFAULT 0,
			input_tokens BIGINT NOT NULL DEFAULT 0,
			output_tokens BIGINT NOT NULL DEFAULT 0,
			total_tokens BIGINT NOT NULL DEFAULT 0,
			total_cost %s NOT NULL DEFAULT 0,
			created_at %s NOT NULL,
			updated_at %s NOT NULL,
			UNIQUE (date, client, driver, model)
		)`, metrics, t.serial, t.money, t.timestamp, t.timestamp),

		// Process mappings table
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id %s PRIMARY KEY,
			process_name VARCHAR(255) NOT NULL,
			client VARCHAR(255) NOT NULL,
			model VARCHAR(255) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT %s,
			description TEXT,
			created_at %s NOT NULL,
			updated_at %s NOT NULL
		)`, mappings, t.uuid, t.boolTrue, t.timestamp, t.timestamp),
	}

	// Indexes for performance
	for _, col := range []string{"client", "driver", "model", "is_successful", "created_at"} {
		stmts = append(stmts, createIndex(logs, col))
	}
	for _, col := range []string{"date", "client", "driver", "model"} {
		stmts = append(stmts, createIndex(metrics, col))
	}
	stmts = append(stmts,
		createIndex(mappings, "process_name"),
		createIndex(mappings, "client"),
		// At most one active mapping per process
		fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS uq_%s_active_process ON %s (process_name) WHERE is_active = %s",
			mappings, mappings, t.boolTrue),
	)

	return stmts
}

func createIndex(table, column string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)",
		table, column, table, column)
}
