package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	ConfigBucket  = []byte("config")  // KDF params, timestamps, vault info - unencrypted
	KeyInfoBucket = []byte("keyinfo") // Public factor descriptors - unencrypted
	EntriesBucket = []byte("entries") // Encrypted entry values
	PrivateBucket = []byte("private") // Encrypted checksum + entry details
)

// Config keys
var (
	ConfigVersion     = []byte("version")
	ConfigCreated     = []byte("created")
	ConfigModified    = []byte("modified")
	ConfigSalt        = []byte("salt")
	ConfigIters       = []byte("iterations")
	ConfigVaultID     = []byte("vault_id")
	ConfigName        = []byte("name")
	ConfigDescription = []byte("description")
)

var keyDescriptorsKey = []byte("descriptors")

// KeyDescriptor publicly describes one unlock factor: enough for an
// unlock to know what to collect, never any secret material.
type KeyDescriptor struct {
	Kind      int    `json:"kind"`
	ID        string `json:"id"`
	Challenge []byte `json:"challenge,omitempty"` // challenge-response factors only
}

// Storage provides BBolt-based storage for a vault file.
type Storage struct {
	db *bolt.DB
}

// Open opens or creates a vault database.
func Open(path string) (*Storage, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close closes the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Storage) Path() string {
	return s.db.Path()
}

// Initialize creates the bucket structure for a new vault.
func (s *Storage) Initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, KeyInfoBucket, EntriesBucket, PrivateBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		if err := config.Put(ConfigVersion, []byte("1")); err != nil {
			return err
		}
		if err := config.Put(ConfigVaultID, []byte(uuid.NewString())); err != nil {
			return err
		}

		now := time.Now()
		created, _ := now.MarshalBinary()
		if err := config.Put(ConfigCreated, created); err != nil {
			return err
		}
		return config.Put(ConfigModified, created)
	})
}

// IsInitialized checks if the database has been initialized.
func (s *Storage) IsInitialized() (bool, error) {
	var initialized bool
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config != nil && config.Get(ConfigVersion) != nil {
			initialized = true
		}
		return nil
	})
	return initialized, err
}

func (s *Storage) setConfig(key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(ConfigBucket).Put(key, value)
	})
}

func (s *Storage) getConfig(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket not found")
		}
		value = config.Get(key)
		if value == nil {
			return fmt.Errorf("%s not found", key)
		}
		// Make a copy since the slice is only valid during the transaction
		value = append([]byte(nil), value...)
		return nil
	})
	return value, err
}

// SetSalt stores the KDF salt.
func (s *Storage) SetSalt(salt []byte) error {
	return s.setConfig(ConfigSalt, salt)
}

// GetSalt retrieves the KDF salt.
func (s *Storage) GetSalt() ([]byte, error) {
	return s.getConfig(ConfigSalt)
}

// SetIterations stores the KDF iterations.
func (s *Storage) SetIterations(iterations uint32) error {
	iters := make([]byte, 4)
	binary.BigEndian.PutUint32(iters, iterations)
	return s.setConfig(ConfigIters, iters)
}

// GetIterations retrieves the KDF iterations.
func (s *Storage) GetIterations() (uint32, error) {
	iters, err := s.getConfig(ConfigIters)
	if err != nil {
		return 0, err
	}
	if len(iters) != 4 {
		return 0, fmt.Errorf("malformed iterations value")
	}
	return binary.BigEndian.Uint32(iters), nil
}

// SetName stores the vault's display name.
func (s *Storage) SetName(name string) error {
	return s.setConfig(ConfigName, []byte(name))
}

// GetName retrieves the vault's display name.
func (s *Storage) GetName() (string, error) {
	name, err := s.getConfig(ConfigName)
	return string(name), err
}

// SetDescription stores the vault's description.
func (s *Storage) SetDescription(description string) error {
	return s.setConfig(ConfigDescription, []byte(description))
}

// GetDescription retrieves the vault's description.
func (s *Storage) GetDescription() (string, error) {
	description, err := s.getConfig(ConfigDescription)
	return string(description), err
}

// UpdateModified updates the last modified timestamp.
func (s *Storage) UpdateModified() error {
	now := time.Now()
	modified, _ := now.MarshalBinary()
	return s.setConfig(ConfigModified, modified)
}

// GetModified retrieves the last modified timestamp.
func (s *Storage) GetModified() (time.Time, error) {
	var modified time.Time
	data, err := s.getConfig(ConfigModified)
	if err != nil {
		return modified, err
	}
	err = modified.UnmarshalBinary(data)
	return modified, err
}

// GetVaultID retrieves the vault ID.
func (s *Storage) GetVaultID() (string, error) {
	id, err := s.getConfig(ConfigVaultID)
	return string(id), err
}

// SetVaultID overrides the vault ID. Used when rewriting a vault into
// a fresh database file so the identity survives the rewrite.
func (s *Storage) SetVaultID(id string) error {
	return s.setConfig(ConfigVaultID, []byte(id))
}

// GetCreated retrieves the creation timestamp.
func (s *Storage) GetCreated() (time.Time, error) {
	var created time.Time
	data, err := s.getConfig(ConfigCreated)
	if err != nil {
		return created, err
	}
	err = created.UnmarshalBinary(data)
	return created, err
}

// SetCreated overrides the creation timestamp. Used when rewriting a
// vault into a fresh database file.
func (s *Storage) SetCreated(created time.Time) error {
	data, err := created.MarshalBinary()
	if err != nil {
		return err
	}
	return s.setConfig(ConfigCreated, data)
}

// SetKeyDescriptors stores the public factor descriptors.
func (s *Storage) SetKeyDescriptors(descriptors []KeyDescriptor) error {
	data, err := json.Marshal(descriptors)
	if err != nil {
		return fmt.Errorf("failed to marshal key descriptors: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(KeyInfoBucket).Put(keyDescriptorsKey, data)
	})
}

// GetKeyDescriptors retrieves the public factor descriptors.
func (s *Storage) GetKeyDescriptors() ([]KeyDescriptor, error) {
	var descriptors []KeyDescriptor
	err := s.db.View(func(tx *bolt.Tx) error {
		keyinfo := tx.Bucket(KeyInfoBucket)
		if keyinfo == nil {
			return fmt.Errorf("keyinfo bucket not found")
		}
		data := keyinfo.Get(keyDescriptorsKey)
		if data == nil {
			return fmt.Errorf("key descriptors not found")
		}
		return json.Unmarshal(data, &descriptors)
	})
	return descriptors, err
}

// StoreEntryData stores an encrypted entry value.
func (s *Storage) StoreEntryData(name string, encryptedData []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(EntriesBucket).Put([]byte(name), encryptedData)
	})
}

// GetEntryData retrieves an encrypted entry value.
func (s *Storage) GetEntryData(name string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		entries := tx.Bucket(EntriesBucket)
		if entries == nil {
			return fmt.Errorf("entries bucket not found")
		}
		data = entries.Get([]byte(name))
		if data == nil {
			return fmt.Errorf("entry not found")
		}
		// Make a copy since the slice is only valid during the transaction
		data = append([]byte(nil), data...)
		return nil
	})
	return data, err
}

// RemoveEntryData removes an entry value.
func (s *Storage) RemoveEntryData(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(EntriesBucket).Delete([]byte(name))
	})
}

// ListEntryNames returns all entry names.
func (s *Storage) ListEntryNames() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		entries := tx.Bucket(EntriesBucket)
		if entries == nil {
			return nil
		}
		return entries.ForEach(func(k, v []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

// StorePrivateBytes stores encrypted private data.
func (s *Storage) StorePrivateBytes(key string, encryptedData []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(PrivateBucket).Put([]byte(key), encryptedData)
	})
}

// GetPrivateBytes retrieves encrypted private data.
func (s *Storage) GetPrivateBytes(key string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		private := tx.Bucket(PrivateBucket)
		if private == nil {
			return fmt.Errorf("private bucket not found")
		}
		data = private.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("private data not found")
		}
		// Make a copy since the slice is only valid during the transaction
		data = append([]byte(nil), data...)
		return nil
	})
	return data, err
}

// Compact creates a compacted copy of the database, removing unused space.
// This is useful after removing entries or rewriting the vault.
func (s *Storage) Compact() error {
	srcPath := s.db.Path()
	tmpPath := srcPath + ".compact"

	dst, err := bolt.Open(tmpPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	err = s.db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					return dstBucket.Put(k, v)
				})
			})
		})
	})

	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}

	if err := s.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	if err := replaceFile(srcPath, tmpPath); err != nil {
		return err
	}

	// Reopen database
	s.db, err = bolt.Open(srcPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}

	return nil
}

// replaceFile atomically swaps tmpPath into place at path, rolling
// back if the final rename fails.
func replaceFile(path, tmpPath string) error {
	backupPath := path + ".backup"
	if err := os.Rename(path, backupPath); err != nil {
		return fmt.Errorf("failed to backup original: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Rename(backupPath, path) // rollback
		return fmt.Errorf("failed to replace database: %w", err)
	}
	os.Remove(backupPath)
	return nil
}

// Replace closes this database and atomically swaps the database at
// tmpPath into its place, then reopens. On failure the original file
// is left intact.
func (s *Storage) Replace(tmpPath string) error {
	srcPath := s.db.Path()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	if err := replaceFile(srcPath, tmpPath); err != nil {
		// Reopen the original so the caller still holds a usable handle.
		db, openErr := bolt.Open(srcPath, 0600, nil)
		if openErr == nil {
			s.db = db
		}
		return err
	}

	db, err := bolt.Open(srcPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}
	s.db = db
	return nil
}
