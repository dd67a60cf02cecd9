package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/llm-orchestrator/config"
	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/services"
)

var testTables = config.TablesConfig{
	ExecutionLogs:   "llm_execution_logs",
	Metrics:         "llm_metrics",
	ProcessMappings: "llm_process_mappings",
}

func newSQLiteFactory(t *testing.T) *RepositoryFactory {
	t.Helper()

	db, err := NewDB(config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "orchestrator.db"),
		BusyTimeout: 5 * time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := NewRepositoryFactoryFromDB(db, testTables, nil)
	require.NoError(t, f.InitSchema(context.Background()))
	// Idempotent
	require.NoError(t, f.InitSchema(context.Background()))
	return f
}

func TestSQLite_ExecutionLogs(t *testing.T) {
	ctx := context.Background()
	repos := newSQLiteFactory(t).NewRepositories()

	cost := 0.0042
	ok := models.NewExecutionLog("openai", "openai", "gpt-4o").
		WithRequestData(map[string]interface{}{"model": "gpt-4o", "messages": []interface{}{}}).
		WithUsage(100, 50, 150, &cost).
		WithSuccess("stop").
		WithResponseData(map[string]interface{}{"model": "gpt-4o"})
	old := models.NewExecutionLog("claude", "claude", "claude-3-5-sonnet-20241022").WithFailure("HTTP 529")
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	old.UpdatedAt = old.CreatedAt

	require.NoError(t, repos.ExecutionLogs.Insert(ctx, ok))
	require.NoError(t, repos.ExecutionLogs.Insert(ctx, old))

	got, err := repos.ExecutionLogs.GetByID(ctx, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", got.RequestData["model"])
	require.NotNil(t, got.Cost)
	assert.InDelta(t, 0.0042, *got.Cost, 1e-12)
	require.NotNil(t, got.FinishReason)
	assert.Equal(t, "stop", *got.FinishReason)
	assert.WithinDuration(t, ok.CreatedAt, got.CreatedAt, time.Millisecond)

	failed := false
	logs, err := repos.ExecutionLogs.List(ctx, models.ExecutionLogFilter{IsSuccessful: &failed})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, old.ID, logs[0].ID)
	assert.Equal(t, "HTTP 529", logs[0].Metadata["failed_reason"])

	all, err := repos.ExecutionLogs.List(ctx, models.ExecutionLogFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, ok.ID, all[0].ID, "newest first")

	n, err := repos.ExecutionLogs.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repos.ExecutionLogs.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLite_MetricBuckets(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFactory(t)
	repos := f.NewRepositories()

	event := models.MetricEvent{
		Date: "2026-10-16", Client: "openai", Driver: "openai", Model: "gpt-4o-mini",
		InputTokens: 10, OutputTokens: 20, TotalTokens: 30, IsSuccessful: true, Cost: 0.5,
	}

	_, err := repos.Metrics.GetForUpdate(ctx, event)
	assert.ErrorIs(t, err, services.ErrMetricNotFound)

	bucket := models.NewMetricBucket(event)
	require.NoError(t, repos.Metrics.Insert(ctx, bucket))
	assert.NotZero(t, bucket.ID)

	err = repos.Metrics.Insert(ctx, models.NewMetricBucket(event))
	assert.True(t, services.IsConflictError(err), "duplicate key must be a conflict, got %v", err)

	failure := event
	failure.IsSuccessful = false
	failure.InputTokens, failure.OutputTokens, failure.TotalTokens, failure.Cost = 0, 0, 0, 0
	require.NoError(t, repos.Metrics.Increment(ctx, bucket.ID, failure))

	got, err := repos.Metrics.GetForUpdate(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.TotalRequests)
	assert.Equal(t, int64(1), got.SuccessfulRequests)
	assert.Equal(t, int64(1), got.FailedRequests)
	assert.Equal(t, int64(30), got.TotalTokens)

	other := event
	other.Date = "2026-10-15"
	other.Model = "gpt-4o"
	require.NoError(t, repos.Metrics.Insert(ctx, models.NewMetricBucket(other)))

	buckets, err := repos.Metrics.List(ctx, models.MetricFilter{Client: "openai"})
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, "2026-10-16", buckets[0].Date)

	summary, err := repos.Metrics.Summary(ctx, models.MetricFilter{From: "2026-10-16", To: "2026-10-16"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.TotalRequests)
	assert.Equal(t, 50.0, summary.SuccessRate())
	assert.InDelta(t, 0.5, summary.TotalCost, 1e-9)

	empty, err := repos.Metrics.Summary(ctx, models.MetricFilter{Client: "nobody"})
	require.NoError(t, err)
	assert.Equal(t, models.MetricsSummary{}, *empty)
}

func TestSQLite_ProcessMappings(t *testing.T) {
	ctx := context.Background()
	repos := newSQLiteFactory(t).NewRepositories()

	first := models.NewProcessMapping("summarize", "claude", "claude-3-5-haiku-20241022")
	require.NoError(t, repos.ProcessMappings.Create(ctx, first))

	second := models.NewProcessMapping("summarize", "openai", "gpt-4o")
	assert.ErrorIs(t, repos.ProcessMappings.Create(ctx, second), services.ErrDuplicateProcessMapping)

	second.IsActive = false
	require.NoError(t, repos.ProcessMappings.Create(ctx, second))

	active, err := repos.ProcessMappings.GetActiveByName(ctx, "summarize")
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	require.NoError(t, repos.ProcessMappings.SetActive(ctx, first.ID, false))
	require.NoError(t, repos.ProcessMappings.SetActive(ctx, second.ID, true))

	active, err = repos.ProcessMappings.GetActiveByName(ctx, "summarize")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", active.Model)

	inactive := false
	list, err := repos.ProcessMappings.List(ctx, &inactive, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)

	desc := "switched to openai"
	active.Description = &desc
	active.Model = "gpt-4.1"
	require.NoError(t, repos.ProcessMappings.Update(ctx, active))

	got, err := repos.ProcessMappings.GetByID(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", got.Model)
	require.NotNil(t, got.Description)
	assert.Equal(t, desc, *got.Description)

	require.NoError(t, repos.ProcessMappings.Delete(ctx, first.ID))
	_, err = repos.ProcessMappings.GetByID(ctx, first.ID)
	assert.ErrorIs(t, err, services.ErrProcessMappingNotFound)
}

func TestSQLite_TransactionRollback(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFactory(t)
	repos := f.NewRepositories()
	txMgr := f.GetTransactionManager()

	tx, err := txMgr.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repos.ProcessMappings.WithTx(tx).Create(ctx, models.NewProcessMapping("draft", "openai", "gpt-4o")))
	require.NoError(t, tx.Rollback())

	_, err = repos.ProcessMappings.GetActiveByName(ctx, "draft")
	assert.ErrorIs(t, err, services.ErrProcessMappingNotFound)
}
