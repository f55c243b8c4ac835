package schema

import (
	"testing"

	"github.com/grovetools/uireload/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "type": "object",
  "properties": {
    "plugin": {
      "type": "object",
      "properties": {"name": {"type": "string"}}
    },
    "retention": {
      "type": "object",
      "properties": {"max_artifacts": {"type": "integer"}}
    }
  }
}`

func TestValidatorAcceptsDocument(t *testing.T) {
	v, err := NewValidator("test.json", []byte(testSchema))
	require.NoError(t, err)

	doc := map[string]interface{}{
		"plugin":    map[string]interface{}{"name": "stratum-ui"},
		"retention": map[string]interface{}{"max_artifacts": int64(5)},
	}
	assert.NoError(t, v.Validate(doc))
}

func TestValidatorReportsViolations(t *testing.T) {
	v, err := NewValidator("test.json", []byte(testSchema))
	require.NoError(t, err)

	err = v.Validate(map[string]interface{}{
		"plugin":    map[string]interface{}{"name": 7},
		"retention": map[string]interface{}{"max_artifacts": "five"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
	assert.Contains(t, err.Error(), "/plugin/name")
	assert.Contains(t, err.Error(), "/retention/max_artifacts")

	detail, ok := errors.Detail(err, "violations")
	require.True(t, ok)
	violations := detail.([]Violation)
	require.Len(t, violations, 2)
	assert.Equal(t, "/plugin/name", violations[0].Location)
	assert.Equal(t, "/retention/max_artifacts", violations[1].Location)
}

func TestNewValidatorRejectsBrokenSchema(t *testing.T) {
	_, err := NewValidator("broken.json", []byte(`{"type": 12}`))
	assert.Error(t, err)
}
