package models

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionLog is one recorded driver attempt, successful or failed
type ExecutionLog struct {
	ID           uuid.UUID              `json:"id" db:"id"`
	Client       string                 `json:"client" db:"client"`
	Driver       string                 `json:"driver" db:"driver"`
	Model        string                 `json:"model" db:"model"`
	InputTokens  int                    `json:"input_tokens" db:"input_tokens"`
	OutputTokens int                    `json:"output_tokens" db:"output_tokens"`
	TotalTokens  int                    `json:"total_tokens" db:"total_tokens"`
	Cost         *float64               `json:"cost,omitempty" db:"cost"`
	IsSuccessful bool                   `json:"is_successful" db:"is_successful"`
	FinishReason *string                `json:"finish_reason,omitempty" db:"finish_reason"`
	FailedReason *string                `json:"failed_reason,omitempty" db:"failed_reason"`
	RequestData  map[string]interface{} `json:"request_data,omitempty" db:"request_data"`
	ResponseData map[string]interface{} `json:"response_data,omitempty" db:"response_data"`
	Metadata     map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt    time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at" db:"updated_at"`
}

// TableName returns the default table name for ExecutionLog
func (ExecutionLog) TableName() string {
	return "llm_execution_logs"
}

// NewExecutionLog creates a log entry for the given client and driver
func NewExecutionLog(client, driver, model string) *ExecutionLog {
	now := time.Now().UTC()
	return &ExecutionLog{
		ID:        uuid.New(),
		Client:    client,
		Driver:    driver,
		Model:     model,
		Metadata:  map[string]interface{}{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WithUsage sets token counts and cost
func (l *ExecutionLog) WithUsage(inputTokens, outputTokens, totalTokens int, cost *float64) *ExecutionLog {
	l.InputTokens = inputTokens
	l.OutputTokens = outputTokens
	l.TotalTokens = totalTokens
	l.Cost = cost
	return l
}

// WithSuccess marks the entry successful
func (l *ExecutionLog) WithSuccess(finishReason string) *ExecutionLog {
	l.IsSuccessful = true
	if finishReason != "" {
		l.FinishReason = &finishReason
	}
	return l
}

// WithFailure marks the entry failed with the given reason
func (l *ExecutionLog) WithFailure(reason string) *ExecutionLog {
	l.IsSuccessful = false
	l.FailedReason = &reason
	if l.Metadata == nil {
		l.Metadata = map[string]interface{}{}
	}
	l.Metadata["failed_reason"] = reason
	return l
}

// WithRequestData sets the sanitized request snapshot
func (l *ExecutionLog) WithRequestData(data map[string]interface{}) *ExecutionLog {
	l.RequestData = data
	return l
}

// WithResponseData sets the sanitized response snapshot
func (l *ExecutionLog) WithResponseData(data map[string]interface{}) *ExecutionLog {
	l.ResponseData = data
	return l
}

// ExecutionLogFilter narrows log listings
type ExecutionLogFilter struct {
	From         *time.Time
	To           *time.Time
	Client       string
	Driver       string
	Model        string
	IsSuccessful *bool
	Limit        int
	Offset       int
}
