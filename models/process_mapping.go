package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcessMapping routes a named application process to a client and model
type ProcessMapping struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ProcessName string    `json:"process_name" db:"process_name" validate:"required,max=255"`
	Client      string    `json:"client" db:"client" validate:"required,max=255"`
	Model       string    `json:"model" db:"model" validate:"required,max=255"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	Description *string   `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the default table name for ProcessMapping
func (ProcessMapping) TableName() string {
	return "llm_process_mappings"
}

// NewProcessMapping creates an active mapping
func NewProcessMapping(processName, client, model string) *ProcessMapping {
	now := time.Now().UTC()
	return &ProcessMapping{
		ID:          uuid.New(),
		ProcessName: processName,
		Client:      client,
		Model:       model,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Route is the client/model pair a process resolves to
type Route struct {
	Client string `json:"client" yaml:"client"`
	Model  string `json:"model" yaml:"model"`
}

// Route returns the mapping's routing target
func (m *ProcessMapping) Route() Route {
	return Route{Client: m.Client, Model: m.Model}
}
