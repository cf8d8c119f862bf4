package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBackendID_UsesTypeAsPrefix(t *testing.T) {
	id, err := generateBackendID("homeassistant")
	require.NoError(t, err)
	assert.Regexp(t, `^homeassistant_[0-9a-v]{8}$`, id)
}

func TestGenerateBackendID_EmptyTypeFallsBackToBackend(t *testing.T) {
	id, err := generateBackendID("")
	require.NoError(t, err)
	assert.Regexp(t, `^backend_[0-9a-v]{8}$`, id)
}

func TestGenerateBackendID_IsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := generateBackendID("mqtt")
		require.NoError(t, err)
		assert.False(t, seen[id], "duplicate id generated: %s", id)
		seen[id] = true
	}
}
