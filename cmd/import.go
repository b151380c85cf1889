package cmd

import (
	"fmt"
	"sort"

	"github.com/joho/godotenv"

	"github.com/crazycat36/keepassxc/internal/crypto"
)

// Import bulk-loads KEY=VALUE pairs from a dotenv file as entries.
// Existing entries with the same name are overwritten.
func Import(vaultPath, envPath string, opts UnlockOptions) {
	pairs, err := godotenv.Read(envPath)
	if err != nil {
		HandleError(fmt.Errorf("cannot parse %s: %w", envPath, err))
	}
	if len(pairs) == 0 {
		fmt.Println("Nothing to import")
		return
	}

	v, err := openAndUnlock(vaultPath, opts)
	if err != nil {
		HandleError(err)
	}
	defer v.Close()

	// Deterministic order so repeated imports report identically.
	names := make([]string, 0, len(pairs))
	for name := range pairs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := []byte(pairs[name])
		if err := v.SetEntry(name, value); err != nil {
			crypto.ClearBytes(value)
			HandleError(err)
		}
		crypto.ClearBytes(value)
		fmt.Printf("imported: %s\n", name)
	}

	fmt.Printf("imported %d entries from %s\n", len(names), envPath)
}
