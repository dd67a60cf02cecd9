package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/repositories"
	"github.com/upb/llm-orchestrator/services"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewFromSQL(sqlDB, DialectPostgres, zap.NewNop()), mock
}

var metricRowColumns = []string{
	"id", "date", "client", "driver", "model", "successful_requests", "failed_requests",
	"total_requests", "input_tokens", "output_tokens", "total_tokens", "total_cost", "created_at", "updated_at",
}

func TestExecutionLogRepository_Insert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewExecutionLogRepository(db, "llm_execution_logs", nil)

	cost := 0.25
	log := models.NewExecutionLog("openai", "openai", "gpt-4o-mini").
		WithRequestData(map[string]interface{}{"model": "gpt-4o-mini"}).
		WithUsage(10, 20, 30, &cost).
		WithSuccess("stop")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO llm_execution_logs")).
		WithArgs(log.ID, "openai", "openai", "gpt-4o-mini", 10, 20, 30, 0.25, true,
			"stop", nil, `{"model":"gpt-4o-mini"}`, nil, `{}`, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Insert(context.Background(), log))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionLogRepository_GetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewExecutionLogRepository(db, "llm_execution_logs", nil)

		id := uuid.New()
		now := time.Now().UTC()
		rows := sqlmock.NewRows([]string{
			"id", "client", "driver", "model", "input_tokens", "output_tokens", "total_tokens",
			"cost", "is_successful", "finish_reason", "failed_reason", "request_data", "response_data",
			"metadata", "created_at", "updated_at",
		}).AddRow(id.String(), "claude", "claude", "claude-3-5-sonnet-20241022", 0, 0, 0,
			nil, false, nil, "HTTP 500", []byte(`{"messages":[]}`), nil, []byte(`{"failed_reason":"HTTP 500"}`), now, now)

		mock.ExpectQuery(regexp.QuoteMeta("FROM llm_execution_logs WHERE id = $1")).
			WithArgs(id).
			WillReturnRows(rows)

		log, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, log.ID)
		assert.False(t, log.IsSuccessful)
		assert.Nil(t, log.Cost)
		assert.Nil(t, log.FinishReason)
		require.NotNil(t, log.FailedReason)
		assert.Equal(t, "HTTP 500", *log.FailedReason)
		assert.Equal(t, []interface{}{}, log.RequestData["messages"])
		assert.Nil(t, log.ResponseData)
		assert.Equal(t, "HTTP 500", log.Metadata["failed_reason"])
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewExecutionLogRepository(db, "llm_execution_logs", nil)

		mock.ExpectQuery("SELECT").WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByID(context.Background(), uuid.New())
		assert.ErrorIs(t, err, services.ErrExecutionLogNotFound)
	})
}

func TestExecutionLogRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewExecutionLogRepository(db, "llm_execution_logs", nil)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ok := false

	mock.ExpectQuery(regexp.QuoteMeta(
		"WHERE created_at >= $1 AND client = $2 AND is_successful = $3 ORDER BY created_at DESC LIMIT $4 OFFSET $5")).
		WithArgs(from, "openai", false, 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	logs, err := repo.List(context.Background(), models.ExecutionLogFilter{
		From:         &from,
		Client:       "openai",
		IsSuccessful: &ok,
	})
	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.NotNil(t, logs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionLogRepository_Delete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewExecutionLogRepository(db, "llm_execution_logs", nil)

	cutoff := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM llm_execution_logs WHERE created_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM llm_execution_logs")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	n, err = repo.DeleteAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricRepository_GetForUpdate(t *testing.T) {
	key := models.MetricEvent{Date: "2026-10-16", Client: "openai", Driver: "openai", Model: "gpt-4o"}

	t.Run("postgres locks the row", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMetricRepository(db, "llm_metrics", nil)

		now := time.Now().UTC()
		mock.ExpectQuery(regexp.QuoteMeta("WHERE date = $1 AND client = $2 AND driver = $3 AND model = $4 FOR UPDATE")).
			WithArgs("2026-10-16", "openai", "openai", "gpt-4o").
			WillReturnRows(sqlmock.NewRows(metricRowColumns).
				AddRow(4, "2026-10-16", "openai", "openai", "gpt-4o", 2, 1, 3, 30, 60, 90, 0.5, now, now))

		bucket, err := repo.GetForUpdate(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, int64(4), bucket.ID)
		assert.Equal(t, int64(3), bucket.TotalRequests)
		assert.Equal(t, 0.5, bucket.TotalCost)
	})

	t.Run("missing bucket", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMetricRepository(db, "llm_metrics", nil)

		mock.ExpectQuery("SELECT").WillReturnError(sql.ErrNoRows)

		_, err := repo.GetForUpdate(context.Background(), key)
		assert.ErrorIs(t, err, services.ErrMetricNotFound)
	})
}

func TestMetricRepository_Insert(t *testing.T) {
	t.Run("returns id", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMetricRepository(db, "llm_metrics", nil)

		bucket := models.NewMetricBucket(models.MetricEvent{
			Date: "2026-10-16", Client: "gemini", Driver: "gemini", Model: "gemini-1.5-pro",
			InputTokens: 5, OutputTokens: 7, TotalTokens: 12, IsSuccessful: true, Cost: 0.01,
		})

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO llm_metrics")).
			WithArgs("2026-10-16", "gemini", "gemini", "gemini-1.5-pro", int64(1), int64(0), int64(1),
				int64(5), int64(7), int64(12), 0.01, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

		require.NoError(t, repo.Insert(context.Background(), bucket))
		assert.Equal(t, int64(42), bucket.ID)
	})

	t.Run("unique violation is a conflict", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMetricRepository(db, "llm_metrics", nil)

		mock.ExpectQuery("INSERT INTO").WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Insert(context.Background(), models.NewMetricBucket(models.MetricEvent{Date: "2026-10-16"}))
		require.Error(t, err)
		assert.True(t, services.IsConflictError(err))
	})
}

func TestMetricRepository_Increment(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMetricRepository(db, "llm_metrics", nil)

	event := models.MetricEvent{InputTokens: 3, OutputTokens: 4, TotalTokens: 7, Cost: 0.002}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE llm_metrics SET")).
		WithArgs(int64(0), int64(1), 3, 4, 7, 0.002, sqlmock.AnyArg(), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Increment(context.Background(), 9, event))
	assert.ErrorIs(t, repo.Increment(context.Background(), 10, event), services.ErrMetricNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricRepository_Summary(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMetricRepository(db, "llm_metrics", nil)

	mock.ExpectQuery(regexp.QuoteMeta("FROM llm_metrics WHERE date >= $1 AND date <= $2 AND model = $3")).
		WithArgs("2026-10-01", "2026-10-31", "gpt-4o").
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e", "f", "g"}).
			AddRow(10, 8, 2, 100, 200, 300, 1.5))

	summary, err := repo.Summary(context.Background(), models.MetricFilter{
		From: "2026-10-01", To: "2026-10-31", Model: "gpt-4o",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), summary.TotalRequests)
	assert.Equal(t, int64(2), summary.FailedRequests)
	assert.Equal(t, 1.5, summary.TotalCost)
	assert.Equal(t, 80.0, summary.SuccessRate())
}

func TestProcessMappingRepository_Create(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewProcessMappingRepository(db, "llm_process_mappings", nil)

		mapping := models.NewProcessMapping("summarize", "claude", "claude-3-5-haiku-20241022")
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO llm_process_mappings")).
			WithArgs(mapping.ID, "summarize", "claude", "claude-3-5-haiku-20241022", true, nil,
				sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(context.Background(), mapping))
	})

	t.Run("duplicate active mapping", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewProcessMappingRepository(db, "llm_process_mappings", nil)

		mock.ExpectExec("INSERT INTO").WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(context.Background(), models.NewProcessMapping("summarize", "claude", "m"))
		assert.ErrorIs(t, err, services.ErrDuplicateProcessMapping)
	})

	t.Run("other failures are wrapped", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewProcessMappingRepository(db, "llm_process_mappings", nil)

		mock.ExpectExec("INSERT INTO").WillReturnError(errors.New("disk full"))

		err := repo.Create(context.Background(), models.NewProcessMapping("summarize", "claude", "m"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create process mapping")
		assert.False(t, services.IsConflictError(err))
	})
}

func TestProcessMappingRepository_GetActiveByName(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProcessMappingRepository(db, "llm_process_mappings", nil)

	id := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE process_name = $1 AND is_active = $2")).
		WithArgs("translate", true).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "process_name", "client", "model", "is_active", "description", "created_at", "updated_at",
		}).AddRow(id.String(), "translate", "gemini", "gemini-1.5-flash", true, "fast path", now, now))
	mock.ExpectQuery("SELECT").WillReturnError(sql.ErrNoRows)

	mapping, err := repo.GetActiveByName(context.Background(), "translate")
	require.NoError(t, err)
	assert.Equal(t, models.Route{Client: "gemini", Model: "gemini-1.5-flash"}, mapping.Route())
	require.NotNil(t, mapping.Description)
	assert.Equal(t, "fast path", *mapping.Description)

	_, err = repo.GetActiveByName(context.Background(), "unknown")
	assert.ErrorIs(t, err, services.ErrProcessMappingNotFound)
}

func TestProcessMappingRepository_SetActiveAndDelete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProcessMappingRepository(db, "llm_process_mappings", nil)

	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE llm_process_mappings SET is_active = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(false, sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM llm_process_mappings WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SetActive(context.Background(), id, false))
	assert.ErrorIs(t, repo.Delete(context.Background(), id), services.ErrProcessMappingNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositories_WithTxUsesTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	txMgr := NewTransactionManager(db, nil)
	repo := NewExecutionLogRepository(db, "llm_execution_logs", nil)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM llm_execution_logs").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	tx, err := txMgr.Begin(context.Background())
	require.NoError(t, err)

	n, err := repo.WithTx(tx).DeleteAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_InTransaction(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		db, mock := newMockDB(t)
		txMgr := NewTransactionManager(db, nil)
		repo := NewProcessMappingRepository(db, "llm_process_mappings", nil)
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE llm_process_mappings").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := txMgr.InTransaction(context.Background(), func(ctx context.Context, _ repositories.Transaction) error {
			_, inTx := GetTransactionFromContext(ctx)
			assert.True(t, inTx)
			return repo.SetActive(ctx, id, true)
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback", func(t *testing.T) {
		db, mock := newMockDB(t)
		txMgr := NewTransactionManager(db, nil)

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := txMgr.InTransaction(context.Background(), func(context.Context, repositories.Transaction) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
