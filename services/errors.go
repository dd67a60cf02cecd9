package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	// Orchestration errors
	ErrorTypeMessageValidation ErrorType = "message_validation"
	ErrorTypeRequestFailed     ErrorType = "request_failed"
	ErrorTypeInvalidClient     ErrorType = "invalid_client"
	ErrorTypeInvalidDriver     ErrorType = "invalid_driver"
	ErrorTypeAllClientsFailed  ErrorType = "all_clients_failed"

	// Service errors
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeInternal   ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Retryable reports whether another client may succeed where this one failed
func (e *DomainError) Retryable() bool {
	return e.Type == ErrorTypeRequestFailed
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// NewMessageValidationError reports content a driver cannot translate
func NewMessageValidationError(driver, message string) *DomainError {
	return NewDomainError(ErrorTypeMessageValidation, message, nil).
		WithDetail("driver", driver)
}

// NewRequestFailedError wraps a transport, HTTP or decoding failure of one driver call
func NewRequestFailedError(client, driver string, payload map[string]interface{}, cause error) *DomainError {
	message := "request failed"
	if cause != nil {
		message = cause.Error()
	}
	return NewDomainError(ErrorTypeRequestFailed, message, cause).
		WithDetail("client", client).
		WithDetail("driver", driver).
		WithDetail("payload", payload)
}

// NewInvalidClientError reports a client name missing from the configuration
func NewInvalidClientError(client string, available []string) *DomainError {
	sorted := append([]string(nil), available...)
	sort.Strings(sorted)
	return NewDomainError(ErrorTypeInvalidClient, fmt.Sprintf("Invalid LLM client requested: %s", client), nil).
		WithDetail("requested_client", client).
		WithDetail("available_clients", sorted)
}

// NewInvalidDriverError reports a client whose driver kind cannot be built
func NewInvalidDriverError(client, driver string, cause error) *DomainError {
	message := fmt.Sprintf("Driver class [%s] for client [%s] is invalid or does not implement the required driver interface", driver, client)
	return NewDomainError(ErrorTypeInvalidDriver, message, cause).
		WithDetail("client", client).
		WithDetail("driver", driver)
}

// NewAllClientsFailedError is returned when the primary client and every fallback failed
func NewAllClientsFailedError(attempted []string, clientErrors map[string]string) *DomainError {
	message := "All LLM clients failed: " + strings.Join(attempted, ", ")
	return NewDomainError(ErrorTypeAllClientsFailed, message, nil).
		WithDetail("attempted_clients", append([]string(nil), attempted...)).
		WithDetail("errors", clientErrors)
}

// Domain error variables

var (
	// Not Found Errors
	ErrProcessMappingNotFound = NewDomainError(ErrorTypeNotFound, "process mapping not found", nil)
	ErrExecutionLogNotFound   = NewDomainError(ErrorTypeNotFound, "execution log not found", nil)
	ErrMetricNotFound         = NewDomainError(ErrorTypeNotFound, "metric bucket not found", nil)

	// Validation Errors
	ErrInvalidInput = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrEmptyPrompt  = NewDomainError(ErrorTypeValidation, "prompt cannot be empty", nil)
	ErrInvalidHours = NewDomainError(ErrorTypeValidation, "hours must be a positive integer", nil)

	// Conflict Errors
	ErrDuplicateProcessMapping = NewDomainError(ErrorTypeConflict, "process mapping already exists", nil)
	ErrConcurrentUpdate        = NewDomainError(ErrorTypeConflict, "concurrent update detected", nil)

	// Internal Errors
	ErrInternal          = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrDatabaseError     = NewDomainError(ErrorTypeInternal, "database error", nil)
	ErrTransactionFailed = NewDomainError(ErrorTypeInternal, "transaction failed", nil)
)

// Error type checking helper functions

func isType(err error, errType ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == errType
	}
	return false
}

// IsOrchestrationError reports whether err belongs to the orchestration family
// (message validation, request failed, invalid client or driver, all clients failed)
func IsOrchestrationError(err error) bool {
	switch GetErrorType(err) {
	case ErrorTypeMessageValidation, ErrorTypeRequestFailed, ErrorTypeInvalidClient,
		ErrorTypeInvalidDriver, ErrorTypeAllClientsFailed:
		return true
	}
	return false
}

// IsRetryable reports whether the fallback chain should try another client
func IsRetryable(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Retryable()
	}
	return false
}

// IsMessageValidationError checks if an error is a content validation error
func IsMessageValidationError(err error) bool {
	return isType(err, ErrorTypeMessageValidation)
}

// IsRequestFailedError checks if an error is a failed provider request
func IsRequestFailedError(err error) bool {
	return isType(err, ErrorTypeRequestFailed)
}

// IsInvalidClientError checks if an error is an unknown client error
func IsInvalidClientError(err error) bool {
	return isType(err, ErrorTypeInvalidClient)
}

// IsInvalidDriverError checks if an error is an invalid driver error
func IsInvalidDriverError(err error) bool {
	return isType(err, ErrorTypeInvalidDriver)
}

// IsAllClientsFailedError checks if an error is an exhausted fallback chain
func IsAllClientsFailedError(err error) bool {
	return isType(err, ErrorTypeAllClientsFailed)
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	return isType(err, ErrorTypeConflict)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return isType(err, ErrorTypeInternal)
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// ErrorMessage returns the bare message of a domain error, or err.Error() otherwise
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
