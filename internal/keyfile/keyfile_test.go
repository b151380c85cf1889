package keyfile

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crazycat36/keepassxc/internal/keys"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func TestLoadRawKeyFile(t *testing.T) {
	material := bytes.Repeat([]byte{0xAB}, MaterialSize)
	path := writeTemp(t, "raw.key", material)

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, keys.KindKeyFile, f.Kind())
	assert.Equal(t, material, f.Raw())
}

func TestLoadHexKeyFile(t *testing.T) {
	material := bytes.Repeat([]byte{0xCD}, MaterialSize)
	encoded := hex.EncodeToString(material)
	path := writeTemp(t, "hex.key", []byte(encoded+"\n"))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, material, f.Raw())
}

func TestLoadArbitraryFileIsHashed(t *testing.T) {
	content := []byte("this is not key material, just a file someone picked")
	path := writeTemp(t, "arbitrary.bin", content)

	f, err := Load(path)
	require.NoError(t, err)

	sum := sha256.Sum256(content)
	assert.Equal(t, sum[:], f.Raw())
}

func TestLoadEmptyFileFails(t *testing.T) {
	path := writeTemp(t, "empty.key", nil)

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrEmptyKeyFile)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.key"))
	assert.Error(t, err)
}

func TestGenerateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.key")

	require.NoError(t, Generate(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Raw(), MaterialSize)

	// Loading twice yields the same material.
	f2, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, f.Raw(), f2.Raw())
}

func TestGenerateRefusesOverwrite(t *testing.T) {
	path := writeTemp(t, "existing.key", []byte("keep me"))

	err := Generate(path)
	assert.Error(t, err)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, []byte("keep me"), data)
}
