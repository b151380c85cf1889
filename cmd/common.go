package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/crazycat36/keepassxc/internal/config"
	"github.com/crazycat36/keepassxc/internal/crypto"
	"github.com/crazycat36/keepassxc/internal/keyfile"
	"github.com/crazycat36/keepassxc/internal/keyring"
	"github.com/crazycat36/keepassxc/internal/keys"
	"github.com/crazycat36/keepassxc/internal/prompt"
	"github.com/crazycat36/keepassxc/internal/storage"
	"github.com/crazycat36/keepassxc/internal/token"
	"github.com/crazycat36/keepassxc/internal/vault"
)

// UnlockOptions carries the non-password factor sources given on the
// command line for unlocking an existing vault.
type UnlockOptions struct {
	KeyFilePath string
	TokenPaths  []string
	NoKeyring   bool
}

// HandleError prints a single-line diagnostic for common errors and exits.
func HandleError(err error) {
	switch {
	case errors.Is(err, vault.ErrNotFound):
		fmt.Fprintf(os.Stderr, "Error: vault not found\n")
		fmt.Fprintf(os.Stderr, "Run 'kpvault create <vault>' first\n")
	case errors.Is(err, vault.ErrAlreadyExists):
		fmt.Fprintf(os.Stderr, "Error: vault already exists\n")
		fmt.Fprintf(os.Stderr, "Use 'kpvault status <vault>' to see its state\n")
	case errors.Is(err, vault.ErrWrongCredentials):
		fmt.Fprintf(os.Stderr, "Error: wrong credentials\n")
	case errors.Is(err, keys.ErrNoFactorsRemain):
		fmt.Fprintf(os.Stderr, "Error: cannot remove all the keys from a vault\n")
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(1)
}

// loadDevices loads token devices from the given secret files.
func loadDevices(paths []string) ([]*token.Device, error) {
	devices := make([]*token.Device, 0, len(paths))
	for _, path := range paths {
		d, err := token.LoadDevice(path)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// getPassword resolves the current master password: environment
// override first, OS keyring second, interactive prompt last. The
// second return reports whether the keyring supplied it, so callers
// can fall back to a prompt when the keyring entry is stale.
func getPassword(vaultID string, useKeyring bool) ([]byte, bool, error) {
	if password := prompt.PasswordFromEnv(); password != nil {
		return password, false, nil
	}

	if useKeyring && vaultID != "" {
		if stored, err := keyring.GetPassword(vaultID); err == nil {
			return []byte(stored), true, nil
		}
	}

	password, err := prompt.ReadPassword("Enter password: ")
	if err != nil {
		return nil, false, err
	}
	return password, false, nil
}

// buildCredential assembles a composite credential matching the
// vault's stored factor descriptors from the command-line sources.
func buildCredential(descriptors []storage.KeyDescriptor, password []byte, opts UnlockOptions) (*keys.CompositeKey, error) {
	var devices []*token.Device
	ck := keys.NewCompositeKey()
	// Partial credentials are wiped on every failure path.
	fail := func(err error) (*keys.CompositeKey, error) {
		ck.Wipe()
		return nil, err
	}

	for _, d := range descriptors {
		switch keys.Kind(d.Kind) {
		case keys.KindPassword:
			if password == nil {
				return fail(fmt.Errorf("vault requires a password"))
			}
			if err := ck.AddFactor(keys.NewPasswordFactor(password)); err != nil {
				return fail(err)
			}

		case keys.KindKeyFile:
			if opts.KeyFilePath == "" {
				return fail(fmt.Errorf("vault requires a key file (use --key-file)"))
			}
			f, err := keyfile.Load(opts.KeyFilePath)
			if err != nil {
				return fail(err)
			}
			if err := ck.AddFactor(f); err != nil {
				f.Wipe()
				return fail(err)
			}

		case keys.KindChallengeResponse:
			if devices == nil {
				loaded, err := loadDevices(opts.TokenPaths)
				if err != nil {
					return fail(err)
				}
				devices = loaded
			}
			var matched *token.Device
			for _, dev := range devices {
				if dev.ID() == d.ID {
					matched = dev
					break
				}
			}
			if matched == nil {
				return fail(fmt.Errorf("vault requires token %s (use --token)", d.ID))
			}
			if err := ck.AddFactor(matched.Factor(d.Challenge)); err != nil {
				return fail(err)
			}

		default:
			return fail(fmt.Errorf("vault uses an unsupported factor kind (%d); upgrade kpvault", d.Kind))
		}
	}

	return ck, nil
}

// openAndUnlock opens a vault and unlocks it with the credential
// assembled from the command-line sources. A password that came from a
// stale keyring entry falls back to one interactive prompt.
func openAndUnlock(path string, opts UnlockOptions) (*vault.Vault, error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %s\n", err)
		cfg = config.Default()
	}
	useKeyring := cfg.UseKeyring && !opts.NoKeyring

	v, err := vault.Open(path)
	if err != nil {
		return nil, err
	}

	descriptors, err := v.Descriptors()
	if err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to read vault key info: %w", err)
	}

	needsPassword := false
	for _, d := range descriptors {
		if keys.Kind(d.Kind) == keys.KindPassword {
			needsPassword = true
		}
	}

	var password []byte
	fromKeyring := false
	if needsPassword {
		vaultID, _ := v.VaultID()
		password, fromKeyring, err = getPassword(vaultID, useKeyring)
		if err != nil {
			v.Close()
			return nil, err
		}
	}

	ck, err := buildCredential(descriptors, password, opts)
	crypto.ClearBytes(password)
	if err != nil {
		v.Close()
		return nil, err
	}

	err = v.Unlock(ck)
	if errors.Is(err, vault.ErrWrongCredentials) && fromKeyring {
		// Stale keyring entry; ask the user directly.
		ck.Wipe()
		retry, perr := prompt.ReadPassword("Enter password: ")
		if perr != nil {
			v.Close()
			return nil, perr
		}
		ck, err = buildCredential(descriptors, retry, opts)
		crypto.ClearBytes(retry)
		if err != nil {
			v.Close()
			return nil, err
		}
		err = v.Unlock(ck)
	}
	if err != nil {
		ck.Wipe()
		v.Close()
		return nil, err
	}

	return v, nil
}
