package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationRules(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		rule    ValidationRule
		wantMsg string
	}{
		{"min length ok", "secret1", MinLength(6), ""},
		{"min length counts runes", "ééééé", MinLength(6), "must be at least 6 characters"},
		{"min length nil pointer", (*string)(nil), MinLength(6), ""},
		{"uuid ok", "0b6f0c5e-8f0a-4a43-9d55-2f7f6a1d3c11", UUID, ""},
		{"uuid bad", "m-1", UUID, "must be a valid UUID"},
		{"uuid not string", 7, UUID, "must be a string"},
		{"one of ok", "pending", OneOf("all", "pending"), ""},
		{"one of bad", "done", OneOf("all", "pending"), "must be one of all, pending"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rule("field", tt.value)
			if tt.wantMsg == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantMsg, got.Message)
		})
	}
}

func TestMinLengthRedactsValue(t *testing.T) {
	got := MinLength(10)("password", "hunter2")
	require.NotNil(t, got)
	assert.Equal(t, "<redacted>", got.Value)
}

func TestValidateAndReturnError(t *testing.T) {
	assert.NoError(t, ValidateAndReturnError(NewValidator().Field("id", "x", Required)))

	v := NewValidator().
		Field("id", "", Required).
		Field("status", "done", OneOf("all"))
	err := ValidateAndReturnError(v)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, CodeValidation, CodeOf(err))
	assert.Equal(t, "id is required; status must be one of all", MessageOf(err))
}
