package vault

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/crazycat36/keepassxc/internal/crypto"
	"github.com/crazycat36/keepassxc/internal/keys"
	"github.com/crazycat36/keepassxc/internal/storage"
)

const credentialCheckString = "kpvault-credential-check"

var (
	ErrNotFound         = errors.New("vault not found")
	ErrAlreadyExists    = errors.New("vault already exists")
	ErrWrongCredentials = errors.New("wrong credentials")
	ErrLocked           = errors.New("vault is locked")
	ErrNoEntry          = errors.New("entry not found")
)

// Info carries the user-facing settings collected when a vault is created.
type Info struct {
	Name        string
	Description string
	Iterations  uint32 // KDF iterations; zero means the default
}

// Vault is an open vault file. Entry operations and Save require a
// prior successful Unlock.
type Vault struct {
	path string
	db   *storage.Storage
	key  *keys.CompositeKey
	enc  *crypto.Encryptor
	meta *storage.Metadata
}

// Create initializes a new vault file protected by the given composite
// credential. The credential must hold at least one factor; a vault
// with zero unlock factors would be unopenable.
func Create(path string, ck *keys.CompositeKey, info Info) error {
	if ck.IsEmpty() {
		return keys.ErrNoFactorsRemain
	}
	if _, err := os.Stat(path); err == nil {
		return ErrAlreadyExists
	}

	db, err := storage.Open(path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.SetName(info.Name); err != nil {
		return fmt.Errorf("failed to store name: %w", err)
	}
	if err := db.SetDescription(info.Description); err != nil {
		return fmt.Errorf("failed to store description: %w", err)
	}

	kdf, err := crypto.NewKDF(int(info.Iterations))
	if err != nil {
		return fmt.Errorf("failed to create KDF: %w", err)
	}
	if err := db.SetSalt(kdf.Salt); err != nil {
		return fmt.Errorf("failed to store salt: %w", err)
	}
	if err := db.SetIterations(uint32(kdf.Iterations)); err != nil {
		return fmt.Errorf("failed to store iterations: %w", err)
	}

	key := kdf.DeriveKey(ck.Material())
	enc := crypto.NewEncryptor(key)
	defer enc.Destroy()

	if err := writeCredentialRecords(db, enc, ck, storage.NewMetadata()); err != nil {
		return err
	}

	return nil
}

// writeCredentialRecords stores everything derived from the credential:
// the verification checksum, the encrypted metadata and the public
// factor descriptors.
func writeCredentialRecords(db *storage.Storage, enc *crypto.Encryptor, ck *keys.CompositeKey, meta *storage.Metadata) error {
	checksum := sha256.Sum256([]byte(credentialCheckString))
	checksumData, err := enc.Encrypt([]byte(hex.EncodeToString(checksum[:])))
	if err != nil {
		return fmt.Errorf("failed to encrypt checksum: %w", err)
	}
	if err := db.StorePrivateBytes("checksum", checksumData); err != nil {
		return fmt.Errorf("failed to store checksum: %w", err)
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	encryptedMeta, err := enc.Encrypt(metaJSON)
	if err != nil {
		return fmt.Errorf("failed to encrypt metadata: %w", err)
	}
	if err := db.StorePrivateBytes("entries", encryptedMeta); err != nil {
		return fmt.Errorf("failed to store metadata: %w", err)
	}

	if err := db.SetKeyDescriptors(Descriptors(ck)); err != nil {
		return fmt.Errorf("failed to store key descriptors: %w", err)
	}

	return nil
}

// Descriptors builds the public factor descriptors for a credential.
func Descriptors(ck *keys.CompositeKey) []storage.KeyDescriptor {
	factors := ck.Factors()
	descriptors := make([]storage.KeyDescriptor, 0, len(factors))
	for _, f := range factors {
		descriptors = append(descriptors, storage.KeyDescriptor{
			Kind:      int(f.Kind()),
			ID:        f.ID(),
			Challenge: f.Challenge(),
		})
	}
	return descriptors
}

// Open opens an existing vault file without unlocking it.
func Open(path string) (*Vault, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, ErrNotFound
	}

	db, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	initialized, err := db.IsInitialized()
	if err != nil || !initialized {
		db.Close()
		return nil, ErrNotFound
	}

	return &Vault{path: path, db: db}, nil
}

// Close releases the vault and wipes any unlocked key material.
func (v *Vault) Close() error {
	if v.enc != nil {
		v.enc.Destroy()
		v.enc = nil
	}
	v.key = nil
	v.meta = nil
	return v.db.Close()
}

// Descriptors returns the public factor descriptors, available without
// unlocking.
func (v *Vault) Descriptors() ([]storage.KeyDescriptor, error) {
	return v.db.GetKeyDescriptors()
}

// VaultID returns the vault's stable identity, available without
// unlocking.
func (v *Vault) VaultID() (string, error) {
	return v.db.GetVaultID()
}

// Unlock verifies the credential against the vault and loads the entry
// metadata. On success the vault keeps the credential for later entry
// operations and saves.
func (v *Vault) Unlock(ck *keys.CompositeKey) error {
	salt, err := v.db.GetSalt()
	if err != nil {
		return fmt.Errorf("failed to get salt: %w", err)
	}
	iterations, err := v.db.GetIterations()
	if err != nil {
		return fmt.Errorf("failed to get iterations: %w", err)
	}

	kdf := &crypto.KDF{Salt: salt, Iterations: int(iterations)}
	enc := crypto.NewEncryptor(kdf.DeriveKey(ck.Material()))

	encChecksum, err := v.db.GetPrivateBytes("checksum")
	if err != nil {
		enc.Destroy()
		return fmt.Errorf("failed to read credential check: %w", err)
	}
	checksumData, err := enc.Decrypt(encChecksum)
	if err != nil {
		enc.Destroy()
		return ErrWrongCredentials
	}
	checksum := sha256.Sum256([]byte(credentialCheckString))
	if !crypto.ConstantTimeCompare(checksumData, []byte(hex.EncodeToString(checksum[:]))) {
		enc.Destroy()
		return ErrWrongCredentials
	}

	encMeta, err := v.db.GetPrivateBytes("entries")
	if err != nil {
		enc.Destroy()
		return fmt.Errorf("failed to read metadata: %w", err)
	}
	metaData, err := enc.Decrypt(encMeta)
	if err != nil {
		enc.Destroy()
		return fmt.Errorf("failed to decrypt metadata: %w", err)
	}
	var meta storage.Metadata
	if err := json.Unmarshal(metaData, &meta); err != nil {
		enc.Destroy()
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	if v.enc != nil {
		v.enc.Destroy()
	}
	v.enc = enc
	v.key = ck
	v.meta = &meta
	return nil
}

// Key returns the credential the vault was unlocked with, or the
// pending credential after SetKey.
func (v *Vault) Key() *keys.CompositeKey {
	return v.key
}

// SetKey assigns a new credential to the in-memory vault. The on-disk
// file is untouched until Save.
func (v *Vault) SetKey(ck *keys.CompositeKey) {
	v.key = ck
}

// Entries returns the entry records. Requires a prior Unlock.
func (v *Vault) Entries() ([]storage.EntryInfo, error) {
	if v.meta == nil {
		return nil, ErrLocked
	}
	out := make([]storage.EntryInfo, len(v.meta.Entries))
	copy(out, v.meta.Entries)
	return out, nil
}

// SetEntry stores an entry value, encrypting it with the unlocked
// credential.
func (v *Vault) SetEntry(name string, value []byte) error {
	if v.enc == nil {
		return ErrLocked
	}

	encrypted, err := v.enc.Encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt entry %s: %w", name, err)
	}
	if err := v.db.StoreEntryData(name, encrypted); err != nil {
		return fmt.Errorf("failed to store entry %s: %w", name, err)
	}

	v.meta.AddEntry(storage.EntryInfo{
		Name:    name,
		Size:    int64(len(value)),
		ModTime: time.Now(),
	})
	return v.saveMetadata()
}

// GetEntry decrypts and returns an entry value. The caller owns the
// returned slice and should clear it when done.
func (v *Vault) GetEntry(name string) ([]byte, error) {
	if v.enc == nil {
		return nil, ErrLocked
	}
	if v.meta.FindEntry(name) == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoEntry, name)
	}

	encrypted, err := v.db.GetEntryData(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoEntry, name)
	}
	value, err := v.enc.Decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt entry %s: %w", name, err)
	}
	return value, nil
}

// RemoveEntry removes an entry.
func (v *Vault) RemoveEntry(name string) error {
	if v.enc == nil {
		return ErrLocked
	}
	if !v.meta.RemoveEntry(name) {
		return fmt.Errorf("%w: %s", ErrNoEntry, name)
	}
	if err := v.db.RemoveEntryData(name); err != nil {
		return fmt.Errorf("failed to remove entry %s: %w", name, err)
	}
	return v.saveMetadata()
}

func (v *Vault) saveMetadata() error {
	v.meta.Modified = time.Now()

	metaJSON, err := json.Marshal(v.meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	encryptedMeta, err := v.enc.Encrypt(metaJSON)
	if err != nil {
		return fmt.Errorf("failed to encrypt metadata: %w", err)
	}
	if err := v.db.StorePrivateBytes("entries", encryptedMeta); err != nil {
		return fmt.Errorf("failed to store metadata: %w", err)
	}
	return v.db.UpdateModified()
}

// Save atomically rewrites the vault under the current credential. The
// whole vault is re-encrypted into a temporary database which then
// replaces the original file in a single rename; any failure before
// that point leaves the on-disk vault exactly as it was.
func (v *Vault) Save() error {
	if v.enc == nil || v.key == nil || v.meta == nil {
		return ErrLocked
	}
	if v.key.IsEmpty() {
		return keys.ErrNoFactorsRemain
	}

	// Decrypt every entry with the credential that unlocked the vault.
	type entryData struct {
		name string
		data []byte
	}
	var entries []entryData
	defer func() {
		for i := range entries {
			crypto.ClearBytes(entries[i].data)
		}
	}()
	for _, info := range v.meta.Entries {
		encrypted, err := v.db.GetEntryData(info.Name)
		if err != nil {
			return fmt.Errorf("entry %s missing from vault: %w", info.Name, err)
		}
		data, err := v.enc.Decrypt(encrypted)
		if err != nil {
			return fmt.Errorf("failed to decrypt entry %s: %w", info.Name, err)
		}
		entries = append(entries, entryData{name: info.Name, data: data})
	}

	// Carry over the vault's identity and settings.
	vaultID, err := v.db.GetVaultID()
	if err != nil {
		return fmt.Errorf("failed to read vault ID: %w", err)
	}
	created, err := v.db.GetCreated()
	if err != nil {
		created = time.Now()
	}
	name, _ := v.db.GetName()
	description, _ := v.db.GetDescription()
	iterations, err := v.db.GetIterations()
	if err != nil {
		return fmt.Errorf("failed to read iterations: %w", err)
	}

	tmpPath := v.path + ".tmp"
	os.Remove(tmpPath)
	tmp, err := storage.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary database: %w", err)
	}
	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	if err := tmp.Initialize(); err != nil {
		return cleanup(fmt.Errorf("failed to initialize temporary database: %w", err))
	}
	if err := tmp.SetVaultID(vaultID); err != nil {
		return cleanup(err)
	}
	if err := tmp.SetCreated(created); err != nil {
		return cleanup(err)
	}
	if err := tmp.SetName(name); err != nil {
		return cleanup(err)
	}
	if err := tmp.SetDescription(description); err != nil {
		return cleanup(err)
	}

	// Fresh salt for the (possibly new) credential.
	kdf, err := crypto.NewKDF(int(iterations))
	if err != nil {
		return cleanup(fmt.Errorf("failed to create KDF: %w", err))
	}
	if err := tmp.SetSalt(kdf.Salt); err != nil {
		return cleanup(err)
	}
	if err := tmp.SetIterations(uint32(kdf.Iterations)); err != nil {
		return cleanup(err)
	}

	newEnc := crypto.NewEncryptor(kdf.DeriveKey(v.key.Material()))

	for _, e := range entries {
		encrypted, err := newEnc.Encrypt(e.data)
		if err != nil {
			newEnc.Destroy()
			return cleanup(fmt.Errorf("failed to re-encrypt entry %s: %w", e.name, err))
		}
		if err := tmp.StoreEntryData(e.name, encrypted); err != nil {
			newEnc.Destroy()
			return cleanup(fmt.Errorf("failed to store entry %s: %w", e.name, err))
		}
	}

	if err := writeCredentialRecords(tmp, newEnc, v.key, v.meta); err != nil {
		newEnc.Destroy()
		return cleanup(err)
	}
	if err := tmp.UpdateModified(); err != nil {
		newEnc.Destroy()
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		newEnc.Destroy()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temporary database: %w", err)
	}

	if err := v.db.Replace(tmpPath); err != nil {
		newEnc.Destroy()
		os.Remove(tmpPath)
		return err
	}

	v.enc.Destroy()
	v.enc = newEnc
	return nil
}

// Compact reclaims unused space in the vault file.
func (v *Vault) Compact() error {
	return v.db.Compact()
}

// StatusInfo describes a vault without requiring its credential.
type StatusInfo struct {
	Name        string
	Description string
	VaultID     string
	Created     time.Time
	Modified    time.Time
	Algorithm   string
	Iterations  uint32
	Version     int
	Factors     []storage.KeyDescriptor
	EntryCount  int
	EntryNames  []string
}

// Status reads public vault information. No credential is required.
func Status(path string) (*StatusInfo, error) {
	v, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer v.Close()

	status := &StatusInfo{
		Algorithm: "AES-256-GCM",
		Version:   1,
	}

	status.Name, _ = v.db.GetName()
	status.Description, _ = v.db.GetDescription()
	status.VaultID, _ = v.db.GetVaultID()
	status.Created, _ = v.db.GetCreated()
	status.Modified, _ = v.db.GetModified()
	status.Iterations, _ = v.db.GetIterations()
	status.Factors, _ = v.db.GetKeyDescriptors()

	names, err := v.db.ListEntryNames()
	if err == nil {
		status.EntryNames = names
		status.EntryCount = len(names)
	}

	return status, nil
}
