// Package prompt collects secrets interactively from the terminal.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/crazycat36/keepassxc/internal/crypto"
)

// PasswordEnvVar overrides interactive prompting when set. Intended
// for scripting and CI; the value is copied so it can be wiped.
const PasswordEnvVar = "KPVAULT_PASSWORD"

var (
	ErrEmptyPassword = errors.New("password must not be empty")
	ErrMismatch      = errors.New("passwords do not match")
)

// ReadPassword reads a password from the terminal without echoing.
// The caller is responsible for calling crypto.ClearBytes on the result.
func ReadPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)

	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // New line after password

	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}

	return password, nil
}

// ReadPasswordConfirm reads a new password twice and ensures the two
// match and are non-empty.
func ReadPasswordConfirm() ([]byte, error) {
	password1, err := ReadPassword("Enter new password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password1)

	if len(password1) == 0 {
		return nil, ErrEmptyPassword
	}

	password2, err := ReadPassword("Confirm new password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password2)

	if !crypto.ConstantTimeCompare(password1, password2) {
		return nil, ErrMismatch
	}

	// Return a copy of the password
	result := make([]byte, len(password1))
	copy(result, password1)
	return result, nil
}

// PasswordFromEnv reads the password override from the environment,
// returning nil when unset.
func PasswordFromEnv() []byte {
	password := os.Getenv(PasswordEnvVar)
	if password == "" {
		return nil
	}
	// Return a copy to avoid issues when clearing the bytes
	result := make([]byte, len(password))
	copy(result, []byte(password))
	return result
}
