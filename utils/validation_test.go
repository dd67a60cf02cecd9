package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMessage struct {
	Role string `json:"role" validate:"required,oneof=system user assistant"`
}

type testRequest struct {
	ProcessName string        `json:"process_name" validate:"required,max=10"`
	MaxTokens   int           `json:"max_tokens" validate:"gte=0,lte=100"`
	BaseURL     string        `json:"base_url" validate:"omitempty,url"`
	Messages    []testMessage `json:"messages" validate:"required,min=1,dive"`
	Internal    string        `json:"-" validate:"omitempty"`
}

func TestValidateStruct(t *testing.T) {
	valid := func() testRequest {
		return testRequest{
			ProcessName: "summarize",
			MaxTokens:   50,
			Messages:    []testMessage{{Role: "user"}},
		}
	}

	t.Run("valid struct", func(t *testing.T) {
		s := valid()
		assert.NoError(t, ValidateStruct(&s))
	})

	tests := []struct {
		name    string
		mutate  func(r *testRequest)
		field   string
		message string
	}{
		{
			name:    "missing required field",
			mutate:  func(r *testRequest) { r.ProcessName = "" },
			field:   "process_name",
			message: "process_name is required",
		},
		{
			name:    "too long",
			mutate:  func(r *testRequest) { r.ProcessName = "much-too-long-name" },
			field:   "process_name",
			message: "process_name must be at most 10",
		},
		{
			name:    "out of range",
			mutate:  func(r *testRequest) { r.MaxTokens = 500 },
			field:   "max_tokens",
			message: "max_tokens must be less than or equal to 100",
		},
		{
			name:    "bad url",
			mutate:  func(r *testRequest) { r.BaseURL = "not a url" },
			field:   "base_url",
			message: "base_url must be a valid URL",
		},
		{
			name:    "empty slice",
			mutate:  func(r *testRequest) { r.Messages = []testMessage{} },
			field:   "messages",
			message: "messages must be at least 1",
		},
		{
			name:    "nested field",
			mutate:  func(r *testRequest) { r.Messages = []testMessage{{Role: "tool"}} },
			field:   "messages[0].role",
			message: "messages[0].role must be one of: system user assistant",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)

			err := ValidateStruct(&s)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Equal(t, "Validation failed", err.Error())

			fields := GetValidationFields(err)
			assert.Equal(t, tt.message, fields[tt.field])
		})
	}
}

func TestGetValidationFields_NotValidationError(t *testing.T) {
	assert.Nil(t, GetValidationFields(assert.AnError))
	assert.False(t, IsValidationError(assert.AnError))
}

func TestParseUUID(t *testing.T) {
	id, err := ParseUUID("550e8400-e29b-41d4-a716-446655440000")
	require.NoError(t, err)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", id.String())

	_, err = ParseUUID("not-a-uuid")
	assert.EqualError(t, err, "invalid UUID format: not-a-uuid")
}
