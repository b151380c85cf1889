package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crazycat36/keepassxc/internal/keys"
)

func writeSecret(t *testing.T, secret []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token.secret")
	require.NoError(t, os.WriteFile(path, secret, 0600))
	return path
}

func TestLoadDeviceStableID(t *testing.T) {
	secret := []byte("device-secret-material")
	path := writeSecret(t, secret)

	d1, err := LoadDevice(path)
	require.NoError(t, err)
	d2, err := LoadDevice(path)
	require.NoError(t, err)

	// Same secret, same identity, across loads and across paths.
	assert.Equal(t, d1.ID(), d2.ID())

	other := writeSecret(t, []byte("a different secret"))
	d3, err := LoadDevice(other)
	require.NoError(t, err)
	assert.NotEqual(t, d1.ID(), d3.ID())
}

func TestLoadDeviceEmptySecretFails(t *testing.T) {
	path := writeSecret(t, nil)

	_, err := LoadDevice(path)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestRespondIsHMAC(t *testing.T) {
	secret := []byte("device-secret-material")
	d, err := LoadDevice(writeSecret(t, secret))
	require.NoError(t, err)

	challenge := []byte("vault-challenge")
	mac := hmac.New(sha256.New, secret)
	mac.Write(challenge)

	assert.Equal(t, mac.Sum(nil), d.Respond(challenge))
}

func TestFactorCarriesChallenge(t *testing.T) {
	d, err := LoadDevice(writeSecret(t, []byte("device-secret-material")))
	require.NoError(t, err)

	challenge, err := NewChallenge()
	require.NoError(t, err)
	require.Len(t, challenge, ChallengeSize)

	f := d.Factor(challenge)
	assert.Equal(t, keys.KindChallengeResponse, f.Kind())
	assert.Equal(t, d.ID(), f.ID())
	assert.Equal(t, challenge, f.Challenge())
	assert.Equal(t, d.Respond(challenge), f.Raw())
}

func TestGenerateSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.secret")
	require.NoError(t, GenerateSecret(path))

	d, err := LoadDevice(path)
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID())

	// Refuses to overwrite.
	assert.Error(t, GenerateSecret(path))
}
