package cmd

import (
	"fmt"
	"os"

	"github.com/crazycat36/keepassxc/internal/keyfile"
	"github.com/crazycat36/keepassxc/internal/keyring"
	"github.com/crazycat36/keepassxc/internal/keys"
	"github.com/crazycat36/keepassxc/internal/prompt"
)

// Edit changes a vault's unlock credential. Contradictory flags are
// rejected before anything is touched; a request with no key-change
// flags is a no-op that never opens storage for writing; and the new
// credential reaches disk only through an atomic save, so a failure at
// any point leaves the on-disk vault exactly as it was.
func Edit(vaultPath string, req keys.ChangeRequest, opts UnlockOptions) {
	if err := req.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	if req.Empty() {
		fmt.Println("Vault was not modified.")
		return
	}

	v, err := openAndUnlock(vaultPath, opts)
	if err != nil {
		HandleError(err)
	}
	defer v.Close()

	oldKey := v.Key()
	newKey, err := keys.Reconfigure(oldKey, req, newPasswordProvider(), keyfile.Load)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not change the vault credential: %s\n", err)
		os.Exit(1)
	}

	v.SetKey(newKey)
	if err := v.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: writing the vault failed: %s\n", err)
		os.Exit(1)
	}

	// The old credential is dead once the new one is on disk. Only the
	// factors that were dropped still hold material of their own.
	for _, f := range oldKey.Factors() {
		carried := false
		for _, nf := range newKey.Factors() {
			if nf == f {
				carried = true
				break
			}
		}
		if !carried {
			f.Wipe()
		}
	}

	// Keep the keyring entry in step with the credential.
	if vaultID, err := v.VaultID(); err == nil && vaultID != "" {
		if req.UnsetPassword || req.SetPassword {
			removed, err := removeStaleKeyringEntry(vaultID, keyring.HasPassword, keyring.DeletePassword)
			switch {
			case err != nil:
				fmt.Fprintf(os.Stderr, "warning: failed to remove keyring entry: %s\n", err)
			case removed:
				fmt.Println("Removed stale keyring entry")
			}
		}
	}

	fmt.Println("Successfully edited the vault.")
}

// newPasswordProvider returns the interactive confirmed-password
// collector used when --set-password is requested.
func newPasswordProvider() keys.SecretProvider {
	return func() ([]byte, error) {
		return prompt.ReadPasswordConfirm()
	}
}

// removeStaleKeyringEntry deletes the keyring entry for a vault whose
// password factor changed, reporting whether an entry was actually
// removed.
func removeStaleKeyringEntry(vaultID string, has func(string) bool, del func(string) error) (bool, error) {
	if !has(vaultID) {
		return false, nil
	}
	if err := del(vaultID); err != nil {
		return false, err
	}
	return true, nil
}
