package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxResponseBody is the maximum response body size read from provider APIs
const maxResponseBody = 10 * 1024 * 1024 // 10 MB

// HTTPError is a non-2xx provider response
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP request returned status code %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Transport performs JSON calls with a per-client timeout, bounded retries and
// optional client-side rate limiting
type Transport struct {
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter
	headers    map[string]string
	logger     *zap.Logger
}

// NewTransport creates a transport for one client
func NewTransport(cfg ClientConfig, httpClient *http.Client, logger *zap.Logger) *Transport {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Transport{
		client:     httpClient,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		headers:    cfg.Headers,
		logger:     logger,
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return t
}

// PostJSON marshals payload and posts it, returning the raw response body
func (t *Transport) PostJSON(ctx context.Context, url string, headers map[string]string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return t.do(ctx, http.MethodPost, url, headers, body)
}

// Get fetches a resource, returning its body and content type
func (t *Transport) Get(ctx context.Context, url string) ([]byte, string, error) {
	var contentType string
	body, err := t.doWith(ctx, http.MethodGet, url, nil, nil, func(resp *http.Response) {
		contentType = resp.Header.Get("Content-Type")
	})
	return body, contentType, err
}

func (t *Transport) do(ctx context.Context, method, url string, headers map[string]string, body []byte) ([]byte, error) {
	return t.doWith(ctx, method, url, headers, body, nil)
}

func (t *Transport) doWith(ctx context.Context, method, url string, headers map[string]string, body []byte, inspect func(*http.Response)) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			t.logger.Debug("retrying provider request",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			if err := sleepContext(ctx, t.retryDelay*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}

		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
		}

		respBody, err := t.attempt(ctx, method, url, headers, body, inspect)
		if err == nil {
			return respBody, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var httpErr *HTTPError
		if errors.As(err, &httpErr) && !httpErr.Retryable() {
			return nil, err
		}
	}

	return nil, lastErr
}

func (t *Transport) attempt(ctx context.Context, method, url string, headers map[string]string, body []byte, inspect func(*http.Response)) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: httpResp.StatusCode, Body: string(respBody)}
	}

	if inspect != nil {
		inspect(httpResp)
	}

	return respBody, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
