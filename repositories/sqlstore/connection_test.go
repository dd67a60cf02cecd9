package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/llm-orchestrator/config"
)

func TestDB_Rebind(t *testing.T) {
	query := "SELECT id FROM t WHERE a = ? AND b = ? LIMIT ?"

	pg := NewFromSQL(nil, DialectPostgres, nil)
	assert.Equal(t, "SELECT id FROM t WHERE a = $1 AND b = $2 LIMIT $3", pg.Rebind(query))

	lite := NewFromSQL(nil, DialectSQLite, nil)
	assert.Equal(t, query, lite.Rebind(query))
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "plain path",
			cfg:  config.DatabaseConfig{SQLitePath: "orchestrator.db", BusyTimeout: 2 * time.Second},
			want: "file:orchestrator.db?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_txlock=immediate&_time_format=sqlite",
		},
		{
			name: "uri with query and default timeout",
			cfg:  config.DatabaseConfig{SQLitePath: "file:data.db?mode=rwc"},
			want: "file:data.db?mode=rwc&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate&_time_format=sqlite",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sqliteDSN(tt.cfg))
		})
	}
}

func TestValidateTableName(t *testing.T) {
	assert.NoError(t, validateTableName("llm_metrics"))
	assert.NoError(t, validateTableName("_private2"))
	assert.Error(t, validateTableName(""))
	assert.Error(t, validateTableName("metrics; DROP TABLE x"))
	assert.Error(t, validateTableName("2metrics"))
}

func TestNewDB_UnsupportedDriver(t *testing.T) {
	_, err := NewDB(config.DatabaseConfig{Driver: "mysql"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestDB_HealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer sqlDB.Close()

		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		db := NewFromSQL(sqlDB, DialectPostgres, nil)
		assert.NoError(t, db.HealthCheck(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query fails", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer sqlDB.Close()

		mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("connection reset"))

		db := NewFromSQL(sqlDB, DialectPostgres, nil)
		err = db.HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database query check failed")
	})
}

func TestDB_InitSchemaRejectsBadTableName(t *testing.T) {
	db := NewFromSQL(nil, DialectSQLite, nil)
	err := db.InitSchema(context.Background(), config.TablesConfig{
		ExecutionLogs:   "logs",
		Metrics:         "metrics-table",
		ProcessMappings: "mappings",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")
}

func TestDB_SchemaStatementsPerDialect(t *testing.T) {
	tables := config.TablesConfig{
		ExecutionLogs:   "llm_execution_logs",
		Metrics:         "llm_metrics",
		ProcessMappings: "llm_process_mappings",
	}

	pg := NewFromSQL(nil, DialectPostgres, nil).schemaStatements(tables)
	assert.Contains(t, pg[0], "JSONB")
	assert.Contains(t, pg[1], "BIGSERIAL PRIMARY KEY")
	assert.Contains(t, pg[1], "UNIQUE (date, client, driver, model)")
	assert.Contains(t, pg[len(pg)-1], "WHERE is_active = TRUE")

	lite := NewFromSQL(nil, DialectSQLite, nil).schemaStatements(tables)
	assert.Contains(t, lite[1], "INTEGER PRIMARY KEY AUTOINCREMENT")
	assert.Contains(t, lite[len(lite)-1], "WHERE is_active = 1")
}
