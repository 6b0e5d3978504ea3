package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrom(t *testing.T) {
	var payload map[string]any
	syntaxErr := json.Unmarshal([]byte(`{"action":`), &payload)
	require.Error(t, syntaxErr)

	testCases := []struct {
		name     string
		err      error
		expected Kind
	}{
		{
			name:     "structured_error_passes_through",
			err:      FieldNotFound("a", "b"),
			expected: KindFieldNotFound,
		},
		{
			name:     "wrapped_structured_error",
			err:      fmt.Errorf("validate: %w", InvalidValue("a")),
			expected: KindInvalidValue,
		},
		{
			name:     "json_syntax_error",
			err:      syntaxErr,
			expected: KindWrongJSON,
		},
		{
			name:     "generic_error",
			err:      errors.New("disk on fire"),
			expected: KindUnexpected,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := From(tc.err)
			require.NotNil(t, got)
			assert.Equal(t, tc.expected, got.Kind)
		})
	}

	assert.Nil(t, From(nil))
}

func TestUnexpectedDetails(t *testing.T) {
	err := Unexpected(errors.New("boom"))

	assert.Equal(t, KindUnexpected, err.Kind)
	assert.Equal(t, "boom", err.Details["message"])
	assert.Equal(t, "*errors.errorString", err.Details["type"])
	assert.NotEmpty(t, err.Details["trace"])
	assert.ErrorContains(t, err, "boom")
}

func TestRecovered(t *testing.T) {
	err := Recovered("index out of range", []byte("goroutine 1"))

	assert.Equal(t, KindUnexpected, err.Kind)
	assert.Equal(t, "panic: index out of range", err.Details["message"])
	assert.Equal(t, "string", err.Details["type"])
	assert.Equal(t, "goroutine 1", err.Details["trace"])
}

func TestEnvelope(t *testing.T) {
	data, err := FieldNotFound("name", "age").Marshal()
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"status": false,
		"error": {
			"code": 2,
			"message": "Field not found.",
			"details": {"fields": ["name", "age"]}
		}
	}`, string(data))

	data, err = ActionNotFound("nope").Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"status": false, "error": {"code": 4, "message": "Action not found.", "details": null}}`, string(data))
}

func TestFields(t *testing.T) {
	assert.Equal(t, []string{"x"}, InvalidValue("x").Fields())
	assert.Nil(t, NeedIdempotence().Fields())
}
