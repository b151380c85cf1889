package cmd

import (
	"fmt"
	"os"

	"github.com/crazycat36/keepassxc/internal/crypto"
	"github.com/crazycat36/keepassxc/internal/keyring"
	"github.com/crazycat36/keepassxc/internal/prompt"
	"github.com/crazycat36/keepassxc/internal/vault"
)

// KeyringSave verifies the master password and stores it in the OS
// keyring.
func KeyringSave(vaultPath string, opts UnlockOptions) {
	v, err := vault.Open(vaultPath)
	if err != nil {
		HandleError(err)
	}
	defer v.Close()

	password, err := prompt.ReadPassword("Enter password: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(password)

	descriptors, err := v.Descriptors()
	if err != nil {
		HandleError(err)
	}

	ck, err := buildCredential(descriptors, password, opts)
	if err != nil {
		HandleError(err)
	}
	if err := v.Unlock(ck); err != nil {
		HandleError(err)
	}

	vaultID, err := v.VaultID()
	if err != nil {
		HandleError(err)
	}

	if err := keyring.SavePassword(vaultID, string(password)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to save to keyring: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("Password saved to keyring")
}

// KeyringDelete removes the password from the OS keyring.
func KeyringDelete(vaultPath string) {
	v, err := vault.Open(vaultPath)
	if err != nil {
		HandleError(err)
	}
	defer v.Close()

	vaultID, err := v.VaultID()
	if err != nil {
		fmt.Println("No password stored in keyring")
		return
	}

	if err := keyring.DeletePassword(vaultID); err != nil {
		fmt.Println("No password stored in keyring")
		return
	}

	fmt.Println("Password removed from keyring")
}

// KeyringStatus checks if a password is stored in the keyring.
func KeyringStatus(vaultPath string) {
	v, err := vault.Open(vaultPath)
	if err != nil {
		HandleError(err)
	}
	defer v.Close()

	vaultID, err := v.VaultID()
	if err != nil {
		fmt.Println("Password: not stored")
		return
	}

	if keyring.HasPassword(vaultID) {
		fmt.Println("Password: stored in keyring")
	} else {
		fmt.Println("Password: not stored")
	}
}
