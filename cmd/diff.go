package cmd

import (
	"fmt"
	"os"

	"github.com/crazycat36/keepassxc/internal/crypto"
	"github.com/crazycat36/keepassxc/internal/vault"
)

// Diff compares a stored entry against a local file and prints a
// unified diff of the two.
func Diff(vaultPath, name, filePath string, opts UnlockOptions) {
	v, err := openAndUnlock(vaultPath, opts)
	if err != nil {
		HandleError(err)
	}
	defer v.Close()

	vaultData, err := v.GetEntry(name)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(vaultData)

	localData, err := os.ReadFile(filePath)
	if err != nil {
		HandleError(fmt.Errorf("cannot read %s: %w", filePath, err))
	}
	defer crypto.ClearBytes(localData)

	diff, err := vault.GenerateUnifiedDiff(name, vaultData, localData)
	if err != nil {
		HandleError(err)
	}

	if diff == "" {
		fmt.Println("No changes detected")
		return
	}
	fmt.Print(diff)
}
