package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/services/providers"
)

// record is one queued execution log or metric event
type record struct {
	log    *models.ExecutionLog
	metric *models.MetricEvent
}

func (r *record) fields() []zap.Field {
	if r.log != nil {
		return []zap.Field{
			zap.String("kind", "execution_log"),
			zap.String("client", r.log.Client),
			zap.String("model", r.log.Model),
		}
	}
	return []zap.Field{
		zap.String("kind", "metric"),
		zap.String("client", r.metric.Client),
		zap.String("model", r.metric.Model),
	}
}

// AsyncRecorder hands execution logs and metric events to background workers
type AsyncRecorder struct {
	logs        providers.LogSink
	metrics     providers.MetricsSink
	logger      *zap.Logger
	queue       chan *record
	workerCount int
	bufferSize  int
	timeout     time.Duration
	wg          sync.WaitGroup
	started     bool
	stopped     bool
	dropped     atomic.Int64
	mu          sync.RWMutex
}

// Config holds configuration for the AsyncRecorder
type Config struct {
	BufferSize  int           // Size of the record buffer channel
	WorkerCount int           // Number of concurrent workers
	Timeout     time.Duration // Per-record write timeout
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 4,
		Timeout:     5 * time.Second,
	}
}

// NewAsyncRecorder creates a recorder over the given sinks; a nil sink is skipped
func NewAsyncRecorder(logs providers.LogSink, metrics providers.MetricsSink, logger *zap.Logger, config Config) *AsyncRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &AsyncRecorder{
		logs:        logs,
		metrics:     metrics,
		logger:      logger,
		queue:       make(chan *record, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		timeout:     config.Timeout,
	}
}

// Start starts the background workers
func (r *AsyncRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("async recorder already started")
	}

	for i := 0; i < r.workerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.started = true
	r.logger.Info("started async recorder",
		zap.Int("worker_count", r.workerCount),
		zap.Int("buffer_size", r.bufferSize))

	return nil
}

// Stop closes the queue and waits for pending records to drain
func (r *AsyncRecorder) Stop(timeout time.Duration) error {
	r.mu.Lock()
	if !r.started || r.stopped {
		r.mu.Unlock()
		return fmt.Errorf("async recorder not running")
	}
	r.stopped = true
	close(r.queue)
	r.mu.Unlock()

	r.logger.Info("stopping async recorder", zap.Int("pending_records", len(r.queue)))

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("async recorder stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("async recorder stop timeout after %v", timeout)
	}
}

// LogSink returns the recorder's execution log side
func (r *AsyncRecorder) LogSink() providers.LogSink {
	return asyncLogSink{r}
}

// MetricsSink returns the recorder's metrics side
func (r *AsyncRecorder) MetricsSink() providers.MetricsSink {
	return asyncMetricsSink{r}
}

// enqueue never blocks; records are dropped when the buffer is full or the recorder is not running
func (r *AsyncRecorder) enqueue(rec *record) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.started || r.stopped {
		r.drop(rec, "async recorder not running, dropping record")
		return
	}

	select {
	case r.queue <- rec:
	default:
		r.drop(rec, "async recorder buffer full, dropping record")
	}
}

func (r *AsyncRecorder) drop(rec *record, msg string) {
	r.dropped.Add(1)
	r.logger.Warn(msg, rec.fields()...)
}

// worker processes records from the channel
func (r *AsyncRecorder) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("recorder worker started", zap.Int("worker_id", id))

	for rec := range r.queue {
		r.process(rec)
	}

	r.logger.Debug("recorder worker stopped", zap.Int("worker_id", id))
}

// process writes one record with its own timeout, detached from the request that produced it
func (r *AsyncRecorder) process(rec *record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	switch {
	case rec.log != nil && r.logs != nil:
		r.logs.Record(ctx, rec.log)
	case rec.metric != nil && r.metrics != nil:
		r.metrics.Record(ctx, *rec.metric)
	}
}

// GetStats returns statistics about the recorder
func (r *AsyncRecorder) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		BufferSize:     r.bufferSize,
		PendingRecords: len(r.queue),
		WorkerCount:    r.workerCount,
		Dropped:        r.dropped.Load(),
		Started:        r.started && !r.stopped,
	}
}

// Stats represents async recorder statistics
type Stats struct {
	BufferSize     int
	PendingRecords int
	WorkerCount    int
	Dropped        int64
	Started        bool
}

type asyncLogSink struct{ r *AsyncRecorder }

func (s asyncLogSink) Record(_ context.Context, entry *models.ExecutionLog) {
	if entry == nil {
		return
	}
	s.r.enqueue(&record{log: entry})
}

type asyncMetricsSink struct{ r *AsyncRecorder }

func (s asyncMetricsSink) Record(_ context.Context, event models.MetricEvent) {
	s.r.enqueue(&record{metric: &event})
}
