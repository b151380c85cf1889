package cmd

import (
	"fmt"
	"os"

	"github.com/crazycat36/keepassxc/internal/crypto"
	"github.com/crazycat36/keepassxc/internal/prompt"
)

// Set stores a secret entry, prompting for its value without echo.
func Set(vaultPath, name string, opts UnlockOptions) {
	v, err := openAndUnlock(vaultPath, opts)
	if err != nil {
		HandleError(err)
	}
	defer v.Close()

	value, err := prompt.ReadPassword(fmt.Sprintf("Value for %s: ", name))
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(value)

	if err := v.SetEntry(name, value); err != nil {
		HandleError(err)
	}

	fmt.Printf("stored: %s\n", name)
}

// Show prints a secret entry's value to stdout.
func Show(vaultPath, name string, opts UnlockOptions) {
	v, err := openAndUnlock(vaultPath, opts)
	if err != nil {
		HandleError(err)
	}
	defer v.Close()

	value, err := v.GetEntry(name)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(value)

	os.Stdout.Write(value)
	if len(value) == 0 || value[len(value)-1] != '\n' {
		fmt.Println()
	}
}

// Remove deletes entries from the vault.
func Remove(vaultPath string, names []string, opts UnlockOptions) {
	v, err := openAndUnlock(vaultPath, opts)
	if err != nil {
		HandleError(err)
	}
	defer v.Close()

	for _, name := range names {
		if err := v.RemoveEntry(name); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s\n", err)
			continue
		}
		fmt.Printf("removed: %s\n", name)
	}
}

// List prints the entry records with sizes and modification times.
func List(vaultPath string, opts UnlockOptions) {
	v, err := openAndUnlock(vaultPath, opts)
	if err != nil {
		HandleError(err)
	}
	defer v.Close()

	entries, err := v.Entries()
	if err != nil {
		HandleError(err)
	}

	if len(entries) == 0 {
		fmt.Println("Vault is empty")
		return
	}

	for _, e := range entries {
		fmt.Printf("  %-30s %6d bytes  %s\n", e.Name, e.Size, e.ModTime.Format("2006-01-02 15:04:05"))
	}
}
