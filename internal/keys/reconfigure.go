package keys

import (
	"errors"
	"fmt"

	"github.com/crazycat36/keepassxc/internal/crypto"
)

var (
	ErrMutuallyExclusive  = errors.New("mutually exclusive options")
	ErrNoFactorsRemain    = errors.New("cannot remove all factors from a vault credential")
	ErrPasswordCollection = errors.New("failed to collect new password")
)

// KeyFileLoadError reports a key file that could not be loaded or
// parsed during reconfiguration.
type KeyFileLoadError struct {
	Path string
	Err  error
}

func (e *KeyFileLoadError) Error() string {
	return fmt.Sprintf("loading key file %s: %v", e.Path, e.Err)
}

func (e *KeyFileLoadError) Unwrap() error { return e.Err }

// SecretProvider obtains a confirmed new password. It fails on empty
// input or a confirmation mismatch.
type SecretProvider func() ([]byte, error)

// KeyFileLoader reads and parses a key file into a factor. It fails on
// I/O errors or malformed content.
type KeyFileLoader func(path string) (*Factor, error)

// ChangeRequest describes the credential changes requested by the
// user. The zero value requests no change.
type ChangeRequest struct {
	SetPassword    bool
	UnsetPassword  bool
	NewKeyFilePath string
	UnsetKeyFile   bool
}

// Validate rejects contradictory flag combinations.
func (r ChangeRequest) Validate() error {
	if r.SetPassword && r.UnsetPassword {
		return fmt.Errorf("%w: set-password and unset-password", ErrMutuallyExclusive)
	}
	if r.NewKeyFilePath != "" && r.UnsetKeyFile {
		return fmt.Errorf("%w: set-key-file and unset-key-file", ErrMutuallyExclusive)
	}
	return nil
}

// Empty reports whether the request changes nothing.
func (r ChangeRequest) Empty() bool {
	return !r.SetPassword && !r.UnsetPassword && r.NewKeyFilePath == "" && !r.UnsetKeyFile
}

// Reconfigure computes a new composite key from the current one and a
// change request. It is a pure transform: either a fully formed new
// credential is returned or an error, never a half-built one, and no
// storage is touched. Factors carried forward are shared with the old
// credential; the caller wipes the old credential only after the new
// one has been persisted.
//
// In a single pass over the existing factors, password and key file
// factors are dropped when they are being unset or replaced and
// carried forward otherwise. Challenge-response factors are always
// carried forward untouched, as is any factor of a kind this version
// does not recognize. Replacements are then appended, and the result
// is rejected if no factors remain.
func Reconfigure(old *CompositeKey, req ChangeRequest, secret SecretProvider, loadKeyFile KeyFileLoader) (*CompositeKey, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	next := NewCompositeKey()
	for _, f := range old.Factors() {
		switch f.Kind() {
		case KindPassword:
			if req.UnsetPassword || req.SetPassword {
				continue
			}
		case KindKeyFile:
			if req.UnsetKeyFile || req.NewKeyFilePath != "" {
				continue
			}
		}
		// Challenge-response factors and unrecognized kinds are never
		// implicitly altered by password or key file changes.
		if err := next.AddFactor(f); err != nil {
			return nil, err
		}
	}

	if req.SetPassword {
		password, err := secret()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPasswordCollection, err)
		}
		f := NewPasswordFactor(password)
		crypto.ClearBytes(password)
		if err := next.AddFactor(f); err != nil {
			f.Wipe()
			return nil, err
		}
	}

	if req.NewKeyFilePath != "" {
		f, err := loadKeyFile(req.NewKeyFilePath)
		if err != nil {
			return nil, &KeyFileLoadError{Path: req.NewKeyFilePath, Err: err}
		}
		if err := next.AddFactor(f); err != nil {
			f.Wipe()
			return nil, err
		}
	}

	if next.IsEmpty() {
		return nil, ErrNoFactorsRemain
	}

	return next, nil
}
