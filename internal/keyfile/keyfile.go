// Package keyfile loads and generates vault key files.
//
// A key file contributes 32 bytes of key material to the composite
// credential. Three layouts are accepted:
//   - exactly 32 bytes: used as-is
//   - exactly 64 hex characters (optionally newline-terminated): decoded
//   - anything else: the SHA-256 of the full content is used, so any
//     existing file can serve as a key file
package keyfile

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/crazycat36/keepassxc/internal/crypto"
	"github.com/crazycat36/keepassxc/internal/keys"
)

const (
	// MaterialSize is the key material contributed by a key file.
	MaterialSize = 32

	filePermSecure = 0600
)

var ErrEmptyKeyFile = errors.New("key file is empty")

// Load reads a key file and parses it into a key file factor.
func Load(path string) (*keys.Factor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	defer crypto.ClearBytes(data)

	if len(data) == 0 {
		return nil, ErrEmptyKeyFile
	}

	material, err := parse(data)
	if err != nil {
		return nil, err
	}

	return keys.NewKeyFileFactor(material), nil
}

func parse(data []byte) ([]byte, error) {
	if len(data) == MaterialSize {
		material := make([]byte, MaterialSize)
		copy(material, data)
		return material, nil
	}

	// Hex layout, tolerating a trailing newline from text editors.
	trimmed := strings.TrimRight(string(data), "\r\n")
	if len(trimmed) == MaterialSize*2 {
		material, err := hex.DecodeString(trimmed)
		if err == nil {
			return material, nil
		}
	}

	sum := sha256.Sum256(data)
	return sum[:], nil
}

// Generate writes a fresh random key file. It refuses to overwrite an
// existing file.
func Generate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("key file %s already exists", path)
	}

	material, err := crypto.GenerateRandom(MaterialSize)
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(material)

	encoded := make([]byte, hex.EncodedLen(MaterialSize)+1)
	hex.Encode(encoded, material)
	encoded[len(encoded)-1] = '\n'
	defer crypto.ClearBytes(encoded)

	if err := os.WriteFile(path, encoded, filePermSecure); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}
