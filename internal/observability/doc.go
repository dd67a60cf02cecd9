// Package observability provides structured logging and metrics
// for the LLM orchestrator.
//
// This package implements:
//   - zap logger construction (json or console)
//   - Request ID propagation into log fields
//   - Prometheus collectors for LLM attempts, tokens, cost and HTTP traffic
package observability
