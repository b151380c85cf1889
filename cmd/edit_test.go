package cmd

import (
	"errors"
	"testing"
)

func TestRemoveStaleKeyringEntry(t *testing.T) {
	hasEntry := func(string) bool { return true }
	noEntry := func(string) bool { return false }
	deleteOK := func(string) error { return nil }
	deleteFails := func(string) error { return errors.New("keyring unavailable") }

	removed, err := removeStaleKeyringEntry("vault-1", hasEntry, deleteOK)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !removed {
		t.Error("Expected the entry to be reported removed")
	}

	removed, err = removeStaleKeyringEntry("vault-1", noEntry, deleteOK)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if removed {
		t.Error("Expected no removal when no entry is stored")
	}

	// A failed delete must not be reported as a removal.
	removed, err = removeStaleKeyringEntry("vault-1", hasEntry, deleteFails)
	if err == nil {
		t.Fatal("Expected the delete error to surface")
	}
	if removed {
		t.Error("Expected no removal report when delete fails")
	}
}
