// Package token implements challenge-response unlock factors backed by
// a device secret file. It stands in for hardware tokens: the response
// to the vault's stored challenge is HMAC-SHA256 over the device
// secret, which is the same contract a hardware HMAC token fulfils.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/crazycat36/keepassxc/internal/crypto"
	"github.com/crazycat36/keepassxc/internal/keys"
)

// ChallengeSize is the size of the per-device challenge a vault stores.
const ChallengeSize = 32

var ErrEmptySecret = errors.New("token secret file is empty")

// deviceNamespace scopes derived device IDs to this application.
var deviceNamespace = uuid.MustParse("8a5cf5a4-6c2f-4d3b-9a1e-1f4f0d9b2c77")

// Device is a loaded token device: a stable identity plus the secret
// used to answer challenges.
type Device struct {
	id     string
	secret []byte
}

// LoadDevice reads a device secret file. The device identity is
// derived from the secret itself, so the same file always presents the
// same device to every vault.
func LoadDevice(path string) (*Device, error) {
	secret, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token secret: %w", err)
	}
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	return &Device{
		id:     uuid.NewSHA1(deviceNamespace, secret).String(),
		secret: secret,
	}, nil
}

// ID returns the device's stable identity.
func (d *Device) ID() string { return d.id }

// Respond answers a challenge with HMAC-SHA256 over the device secret.
func (d *Device) Respond(challenge []byte) []byte {
	mac := hmac.New(sha256.New, d.secret)
	mac.Write(challenge)
	return mac.Sum(nil)
}

// Factor builds the challenge-response factor for this device against
// the given challenge.
func (d *Device) Factor(challenge []byte) *keys.Factor {
	return keys.NewChallengeResponseFactor(d.id, challenge, d.Respond(challenge))
}

// Wipe clears the device secret.
func (d *Device) Wipe() {
	crypto.ClearBytes(d.secret)
	d.secret = nil
}

// NewChallenge generates a fresh random challenge for a device being
// enrolled into a vault.
func NewChallenge() ([]byte, error) {
	return crypto.GenerateRandom(ChallengeSize)
}

// GenerateSecret writes a fresh random device secret file. It refuses
// to overwrite an existing file.
func GenerateSecret(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("token secret %s already exists", path)
	}
	secret, err := crypto.GenerateRandom(ChallengeSize)
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(secret)
	if err := os.WriteFile(path, secret, 0600); err != nil {
		return fmt.Errorf("failed to write token secret: %w", err)
	}
	return nil
}
