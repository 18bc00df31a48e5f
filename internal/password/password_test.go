package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashVerifyRoundTrip(t *testing.T) {
	for _, pw := range []string{"secret1", "P@ssw0rd123", "contraseña-ñ", ""} {
		stored, err := Hash(pw, "")
		require.NoError(t, err)
		assert.True(t, Verify(stored, pw), "password %q", pw)
	}
}

func TestVerifyRejectsOtherPassword(t *testing.T) {
	stored, err := Hash("secret1", "")
	require.NoError(t, err)

	assert.False(t, Verify(stored, "secret2"))
	assert.False(t, Verify(stored, "Secret1"))
	assert.False(t, Verify(stored, ""))
}

func TestHashFormat(t *testing.T) {
	stored, err := Hash("secret1", "")
	require.NoError(t, err)

	salt, digest, ok := strings.Cut(stored, "$")
	require.True(t, ok)
	assert.Len(t, salt, 32)
	assert.Len(t, digest, 44)
}

func TestHashIsDeterministicForSalt(t *testing.T) {
	a, err := Hash("secret1", "0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	b, err := Hash("secret1", "0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Hash("secret1", "")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestVerifyWithoutSeparatorFailsClosed(t *testing.T) {
	assert.False(t, Verify("nodollarsign", "nodollarsign"))
	assert.False(t, Verify("", ""))
}
