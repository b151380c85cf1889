package cmd

import (
	"fmt"

	"github.com/crazycat36/keepassxc/internal/keys"
	"github.com/crazycat36/keepassxc/internal/vault"
)

// Status shows vault information. Does not require credentials.
func Status(vaultPath string) {
	info, err := vault.Status(vaultPath)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Vault: %s\n", info.Name)
	if info.Description != "" {
		fmt.Printf("Description: %s\n", info.Description)
	}
	fmt.Printf("ID: %s\n", info.VaultID)
	fmt.Printf("Created: %s\n", info.Created.Format("2006-01-02 15:04:05"))
	fmt.Printf("Modified: %s\n", info.Modified.Format("2006-01-02 15:04:05"))
	fmt.Printf("Encryption: %s\n", info.Algorithm)
	fmt.Printf("KDF iterations: %d\n", info.Iterations)

	fmt.Println("Unlock factors:")
	for _, d := range info.Factors {
		kind := keys.Kind(d.Kind)
		if kind == keys.KindChallengeResponse {
			fmt.Printf("  - %s (device %s)\n", kind, d.ID)
		} else {
			fmt.Printf("  - %s\n", kind)
		}
	}

	fmt.Printf("Entries: %d\n", info.EntryCount)
	for _, name := range info.EntryNames {
		fmt.Printf("  %s\n", name)
	}
}

// Compact reclaims unused space in the vault file. Does not require
// credentials.
func Compact(vaultPath string) {
	v, err := vault.Open(vaultPath)
	if err != nil {
		HandleError(err)
	}
	defer v.Close()

	if err := v.Compact(); err != nil {
		HandleError(err)
	}

	fmt.Println("Vault compacted")
}
