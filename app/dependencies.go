package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/llm-orchestrator/config"
	"github.com/upb/llm-orchestrator/internal/observability"
	"github.com/upb/llm-orchestrator/repositories"
	"github.com/upb/llm-orchestrator/repositories/sqlstore"
	"github.com/upb/llm-orchestrator/services/audit"
	"github.com/upb/llm-orchestrator/services/metrics"
	"github.com/upb/llm-orchestrator/services/providers"
	"github.com/upb/llm-orchestrator/services/providers/builtin"
	"github.com/upb/llm-orchestrator/services/routing"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *sqlstore.DB
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Repository Factory
	RepoFactory *sqlstore.RepositoryFactory

	// Repositories
	ExecutionLogs   repositories.ExecutionLogRepository
	MetricBuckets   repositories.MetricRepository
	ProcessMappings repositories.ProcessMappingRepository
	TxManager       repositories.TransactionManager

	// Recording
	LogSink     providers.LogSink
	MetricsSink providers.MetricsSink
	Recorder    *audit.AsyncRecorder

	// Services
	Registry        *providers.Registry
	Manager         *routing.Manager
	ExecutionLogger *audit.ExecutionLogger
	Aggregator      *metrics.Aggregator
	MappingService  *routing.MappingService
	MappingCache    *routing.CachedLookup
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()

	if err := deps.initRecording(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize recording: %w", err)
	}

	deps.initManager(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.String("default_client", cfg.Orchestrator.DefaultClient),
		zap.Strings("clients", deps.Manager.Clients()))
	return deps, nil
}

// NewStorageDependencies opens only the store, for maintenance commands
func NewStorageDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}
	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.initRepositories()
	return deps, nil
}

// initDatabase opens the store and creates the orchestrator tables
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := sqlstore.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.PingContext(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := factory.InitSchema(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.ExecutionLogs = repos.ExecutionLogs
	d.MetricBuckets = repos.Metrics
	d.ProcessMappings = repos.ProcessMappings
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.ExecutionLogger = audit.NewExecutionLogger(d.ExecutionLogs, d.Logger)
	if d.Config.Orchestrator.Logging.RedactSecrets {
		d.ExecutionLogger.WithRedactor(audit.NewRedactor())
	}
	d.Aggregator = metrics.NewAggregator(d.MetricBuckets, d.TxManager, d.Logger)

	d.Logger.Info("repositories initialized")
}

// initRecording builds the log and metrics sinks the drivers report to.
// Async sinks share one recorder; sync sinks write on the caller's goroutine.
func (d *Dependencies) initRecording(cfg *config.Config) error {
	orch := cfg.Orchestrator

	var logSink providers.LogSink = audit.DisabledLogSink{}
	if orch.Logging.Enabled {
		logSink = d.ExecutionLogger
	}

	// Prometheus counters follow METRICS_ENABLED; the bucket table follows LLM_METRICS_ENABLED
	var bucketSink providers.MetricsSink = audit.DisabledMetricsSink{}
	if orch.Metrics.Enabled {
		bucketSink = d.Aggregator
	}
	var promSink providers.MetricsSink = audit.DisabledMetricsSink{}
	if cfg.Observability.MetricsEnabled {
		promSink = metrics.NewPrometheusSink(d.Metrics)
	}

	asyncLogs := orch.Logging.Enabled && orch.Logging.Mechanism == config.MechanismAsync
	asyncMetrics := orch.Metrics.Enabled && orch.Metrics.Mechanism == config.MechanismAsync

	if asyncLogs || asyncMetrics {
		var queuedLogs providers.LogSink
		var queuedMetrics providers.MetricsSink
		if asyncLogs {
			queuedLogs = logSink
		}
		if asyncMetrics {
			queuedMetrics = bucketSink
		}

		d.Recorder = audit.NewAsyncRecorder(queuedLogs, queuedMetrics, d.Logger, audit.Config{
			BufferSize:  orch.Async.BufferSize,
			WorkerCount: orch.Async.Workers,
		})
		if err := d.Recorder.Start(); err != nil {
			return err
		}

		if asyncLogs {
			logSink = d.Recorder.LogSink()
		}
		if asyncMetrics {
			bucketSink = d.Recorder.MetricsSink()
		}
	}

	d.LogSink = logSink
	d.MetricsSink = metrics.MultiSink{bucketSink, promSink}

	d.Logger.Info("recording initialized",
		zap.Bool("logging_enabled", orch.Logging.Enabled),
		zap.String("logging_mechanism", orch.Logging.Mechanism),
		zap.Bool("metrics_enabled", orch.Metrics.Enabled),
		zap.String("metrics_mechanism", orch.Metrics.Mechanism))
	return nil
}

// initManager builds the driver registry and the routing manager
func (d *Dependencies) initManager(cfg *config.Config) {
	orch := cfg.Orchestrator

	d.Registry = builtin.NewRegistry()

	var stored routing.ProcessMappingLookup = routing.NewStoreLookup(d.ProcessMappings, d.Logger)
	if orch.MappingCache.TTL > 0 {
		d.MappingCache = routing.NewCachedLookup(stored, orch.MappingCache.Size, orch.MappingCache.TTL)
		stored = d.MappingCache
	}
	lookup := routing.ChainLookup{
		stored,
		routing.StaticMappings(orch.ProcessMappings),
	}

	d.Manager = routing.NewManager(orch.ManagerConfig(), d.Registry, providers.Dependencies{
		Pricing:  orch.Pricing,
		Logs:     d.LogSink,
		Metrics:  d.MetricsSink,
		Logger:   d.Logger,
		Defaults: orch.Defaults,
	}, lookup, d.Logger)

	d.MappingService = routing.NewMappingService(d.ProcessMappings, d.TxManager, d.Manager.Clients(), d.Logger)
	if d.MappingCache != nil {
		d.MappingService.WithCache(d.MappingCache)
	}
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain queued records before the store goes away
	if d.Recorder != nil {
		if err := d.Recorder.Stop(d.Config.Orchestrator.Async.DrainTimeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop async recorder: %w", err))
		} else {
			d.Logger.Info("async recorder drained")
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
