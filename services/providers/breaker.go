package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/upb/llm-orchestrator/models"
	"github.com/upb/llm-orchestrator/services"
)

// Default circuit breaker settings
const (
	defaultBreakerMaxFailures uint32        = 5
	defaultBreakerTimeout     time.Duration = 30 * time.Second
	defaultBreakerInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures the per-client circuit breaker
type BreakerConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// MaxFailures is the number of consecutive failures before the circuit opens
	MaxFailures uint32 `json:"max_failures,omitempty" yaml:"max_failures"`

	// Timeout is how long the circuit stays open before a trial request is let through
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout"`

	// Interval clears failure counts while closed
	Interval time.Duration `json:"interval,omitempty" yaml:"interval"`
}

// failureRecorder is implemented by drivers built on BaseDriver
type failureRecorder interface {
	RecordFailure(ctx context.Context, req *models.Request, reason string)
}

// BreakerDriver wraps a Driver with a circuit breaker.
// Only retryable failures trip it; an open circuit fails with RequestFailed so fallback still applies,
// and the rejection is recorded like any other failed attempt.
type BreakerDriver struct {
	inner   Driver
	breaker *gobreaker.CircuitBreaker[*models.Response]
}

// WithCircuitBreaker wraps driver with a circuit breaker
func WithCircuitBreaker(driver Driver, cfg BreakerConfig, logger *zap.Logger) *BreakerDriver {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	cb := gobreaker.NewCircuitBreaker[*models.Response](gobreaker.Settings{
		Name:        "llm:" + driver.Client(),
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !services.IsRetryable(err)
		},
	})

	return &BreakerDriver{inner: driver, breaker: cb}
}

// Name returns the wrapped driver kind
func (d *BreakerDriver) Name() string { return d.inner.Name() }

// Client returns the wrapped client name
func (d *BreakerDriver) Client() string { return d.inner.Client() }

// State returns the current breaker state
func (d *BreakerDriver) State() gobreaker.State { return d.breaker.State() }

// Send routes the call through the breaker
func (d *BreakerDriver) Send(ctx context.Context, req *models.Request) (*models.Response, error) {
	resp, err := d.breaker.Execute(func() (*models.Response, error) {
		return d.inner.Send(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			rejected := services.NewRequestFailedError(d.Client(), d.Name(), nil,
				fmt.Errorf("client %q circuit open: %w", d.Client(), err))
			if r, ok := d.inner.(failureRecorder); ok && req != nil {
				r.RecordFailure(ctx, req, services.ErrorMessage(rejected))
			}
			return nil, rejected
		}
		return nil, err
	}
	return resp, nil
}

var _ Driver = (*BreakerDriver)(nil)
