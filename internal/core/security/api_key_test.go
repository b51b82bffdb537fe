package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAPIKeyRoundTrip(t *testing.T) {
	realKey, keyHash, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(realKey, "cp_live_"))
	assert.Len(t, keyHash, 64) // hex sha256

	assert.True(t, ValidateKey(realKey, keyHash))
	assert.False(t, ValidateKey(realKey+"x", keyHash))
}

func TestGenerateAPIKeyIsUnique(t *testing.T) {
	first, _, err := GenerateAPIKey()
	require.NoError(t, err)
	second, _, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
