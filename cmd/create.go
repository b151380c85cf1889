package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crazycat36/keepassxc/internal/config"
	"github.com/crazycat36/keepassxc/internal/keyfile"
	"github.com/crazycat36/keepassxc/internal/keys"
	"github.com/crazycat36/keepassxc/internal/prompt"
	"github.com/crazycat36/keepassxc/internal/token"
	"github.com/crazycat36/keepassxc/internal/vault"
	"github.com/crazycat36/keepassxc/internal/wizard"
)

// CreateOptions carries the factor sources for a new vault.
type CreateOptions struct {
	NoPassword  bool
	KeyFilePath string
	TokenPaths  []string
}

// Create runs the guided creation sequence and writes a new vault.
func Create(vaultPath string, opts CreateOptions) {
	if _, err := os.Stat(vaultPath); err == nil {
		HandleError(vault.ErrAlreadyExists)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %s\n", err)
		cfg = config.Default()
	}

	// A key file or token path that does not exist yet is generated
	// fresh, so `--key-file new.key` both creates and enrolls it.
	if opts.KeyFilePath != "" {
		if _, err := os.Stat(opts.KeyFilePath); os.IsNotExist(err) {
			if err := keyfile.Generate(opts.KeyFilePath); err != nil {
				HandleError(err)
			}
			fmt.Printf("generated key file: %s\n", opts.KeyFilePath)
		}
	}

	var tokenFactors []*keys.Factor
	for _, path := range opts.TokenPaths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := token.GenerateSecret(path); err != nil {
				HandleError(err)
			}
			fmt.Printf("generated token secret: %s\n", path)
		}
		device, err := token.LoadDevice(path)
		if err != nil {
			HandleError(err)
		}
		challenge, err := token.NewChallenge()
		if err != nil {
			HandleError(err)
		}
		tokenFactors = append(tokenFactors, device.Factor(challenge))
		device.Wipe()
	}

	input := bufio.NewReader(os.Stdin)
	defaultName := strings.TrimSuffix(filepath.Base(vaultPath), filepath.Ext(vaultPath))

	w := wizard.New(
		&wizard.MetadataStep{Input: input, DefaultName: defaultName},
		&wizard.EncryptionStep{Input: input, Default: cfg.KDFIterations},
		&wizard.MasterKeyStep{
			WantPassword: !opts.NoPassword,
			KeyFilePath:  opts.KeyFilePath,
			TokenFactors: tokenFactors,
			Secret:       createPasswordProvider(),
			LoadKeyFile:  keyfile.Load,
		},
	)

	st, err := w.Run()
	if err != nil {
		HandleError(err)
	}

	if err := vault.Create(vaultPath, st.Key, st.Info); err != nil {
		st.Key.Wipe()
		HandleError(err)
	}
	st.Key.Wipe()

	fmt.Printf("Created vault %s\n", vaultPath)
}

// createPasswordProvider prefers the environment override so vault
// creation can be scripted, falling back to the confirmation prompt.
func createPasswordProvider() keys.SecretProvider {
	return func() ([]byte, error) {
		if password := prompt.PasswordFromEnv(); password != nil {
			return password, nil
		}
		return prompt.ReadPasswordConfirm()
	}
}
