// Package config loads optional tool-wide defaults from a YAML file.
//
// The file lives at $XDG_CONFIG_HOME/kpvault/config.yaml (falling back
// to ~/.config). A missing file yields the defaults; a malformed file
// is an error so typos do not silently revert settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/crazycat36/keepassxc/internal/crypto"
)

// Config holds tool-wide defaults.
type Config struct {
	// KDFIterations is the default PBKDF2 iteration count for new vaults.
	KDFIterations uint32 `yaml:"kdf_iterations"`
	// UseKeyring enables looking up the password factor in the OS
	// keyring before prompting.
	UseKeyring bool `yaml:"use_keyring"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		KDFIterations: crypto.DefaultIters,
		UseKeyring:    true,
	}
}

// Path returns the config file location.
func Path() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot locate home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "kpvault", "config.yaml"), nil
}

// Load reads the config file, returning defaults if it does not exist.
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a specific config file, returning defaults if it does
// not exist.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.KDFIterations == 0 {
		cfg.KDFIterations = crypto.DefaultIters
	}
	return cfg, nil
}
