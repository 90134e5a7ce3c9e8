package secret

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 32)
	s, err := NewSealerFromBase64(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	require.True(t, s.Enabled())

	sealed, err := s.Seal("APP_USR-123456")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, sealedPrefix))
	assert.NotContains(t, sealed, "APP_USR")

	again, err := s.Seal("APP_USR-123456")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "APP_USR-123456", plain)
}

func TestSealer_TamperAndWrongKey(t *testing.T) {
	s, err := NewSealer(bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)
	other, err := NewSealer(bytes.Repeat([]byte{2}, 32))
	require.NoError(t, err)

	sealed, err := s.Seal("token")
	require.NoError(t, err)

	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, ErrDecryptFailed)

	_, err = s.Open(sealedPrefix + "!!!")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestSealer_Disabled(t *testing.T) {
	s, err := NewSealer(nil)
	require.NoError(t, err)
	assert.False(t, s.Enabled())

	sealed, err := s.Seal("token")
	require.NoError(t, err)
	assert.Equal(t, "token", sealed)

	plain, err := s.Open("legacy-clear-token")
	require.NoError(t, err)
	assert.Equal(t, "legacy-clear-token", plain)

	_, err = NewSealer([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}
