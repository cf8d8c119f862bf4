package supervisor

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSubprocessLogger_EncodesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSubprocessLogger(&buf)

	logger.Info("session ready", "model", "qwen-7b", "pid", 1234, "restart_count", 2)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded), "output is not valid JSON: %q", buf.String())
	assert.Equal(t, "qwen-7b", decoded["model"])
	assert.Equal(t, "session ready", decoded["message"])
	assert.Equal(t, float64(1234), decoded["pid"])
	assert.Equal(t, float64(2), decoded["restart_count"])
}

func TestNewSubprocessLogger_LevelMapping(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSubprocessLogger(&buf)

	logger.Warn("readiness probe slow")

	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestNewSubprocessLogger_ErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSubprocessLogger(&buf)

	logger.Error("subprocess crashed", "exit_code", 1)

	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"exit_code":1`)
}
