package keys

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"

	"github.com/crazycat36/keepassxc/internal/crypto"
)

// Kind identifies the type of an unlock factor.
type Kind int

const (
	KindPassword Kind = iota + 1
	KindKeyFile
	KindChallengeResponse
)

// Fixed identities for the singleton factor kinds. Challenge-response
// factors use a per-device identity instead, since several tokens may
// protect the same vault.
const (
	PasswordID = "password"
	KeyFileID  = "keyfile"
)

var (
	ErrDuplicatePassword = errors.New("credential already contains a password factor")
	ErrDuplicateKeyFile  = errors.New("credential already contains a key file factor")
	ErrDuplicateDevice   = errors.New("credential already contains a factor for this device")
)

func (k Kind) String() string {
	switch k {
	case KindPassword:
		return "password"
	case KindKeyFile:
		return "key file"
	case KindChallengeResponse:
		return "challenge-response"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Factor is a single unlock factor. Its secret material is owned
// exclusively by the factor and is never logged.
type Factor struct {
	kind      Kind
	id        string
	secret    []byte
	challenge []byte // challenge-response factors only
}

// NewPasswordFactor builds a password factor. The raw password is
// hashed immediately; the factor never retains the typed password.
func NewPasswordFactor(password []byte) *Factor {
	sum := sha256.Sum256(password)
	return &Factor{kind: KindPassword, id: PasswordID, secret: sum[:]}
}

// NewKeyFileFactor builds a key file factor from already-derived key
// material. The factor takes ownership of the slice.
func NewKeyFileFactor(material []byte) *Factor {
	return &Factor{kind: KindKeyFile, id: KeyFileID, secret: material}
}

// NewChallengeResponseFactor builds a hardware-token factor. The
// deviceID must be stable per device; challenge is the vault's stored
// challenge for that device and response the device's answer to it.
func NewChallengeResponseFactor(deviceID string, challenge, response []byte) *Factor {
	return &Factor{kind: KindChallengeResponse, id: deviceID, secret: response, challenge: challenge}
}

// NewRawFactor builds a factor of an arbitrary kind. It exists so that
// factor kinds introduced by newer versions can be carried through a
// reconfiguration without being understood.
func NewRawFactor(kind Kind, id string, secret []byte) *Factor {
	return &Factor{kind: kind, id: id, secret: secret}
}

func (f *Factor) Kind() Kind { return f.kind }
func (f *Factor) ID() string { return f.id }

// Raw returns the factor's key material. The slice is still owned by
// the factor; callers must not retain or modify it.
func (f *Factor) Raw() []byte { return f.secret }

// Challenge returns the stored challenge for a challenge-response
// factor, nil for other kinds.
func (f *Factor) Challenge() []byte { return f.challenge }

// Wipe clears the factor's secret material.
func (f *Factor) Wipe() {
	crypto.ClearBytes(f.secret)
	f.secret = nil
}

// CompositeKey is the ordered set of factors that together unlock a
// vault. Order is insertion order and carries no meaning, but stays
// deterministic so key derivation is reproducible.
type CompositeKey struct {
	factors []*Factor
}

// NewCompositeKey returns an empty composite key. A vault must never
// be persisted with an empty credential; Reconfigure and the creation
// flow both enforce that before any save.
func NewCompositeKey() *CompositeKey {
	return &CompositeKey{}
}

// AddFactor appends a factor, enforcing the uniqueness invariants: at
// most one password, at most one key file, distinct device identities
// for challenge-response factors.
func (ck *CompositeKey) AddFactor(f *Factor) error {
	for _, existing := range ck.factors {
		if existing.kind != f.kind {
			continue
		}
		switch f.kind {
		case KindPassword:
			return ErrDuplicatePassword
		case KindKeyFile:
			return ErrDuplicateKeyFile
		default:
			if existing.id == f.id {
				return fmt.Errorf("%w: %s", ErrDuplicateDevice, f.id)
			}
		}
	}
	ck.factors = append(ck.factors, f)
	return nil
}

// Factors returns the factor list. The returned slice is a copy; the
// factors themselves are shared.
func (ck *CompositeKey) Factors() []*Factor {
	out := make([]*Factor, len(ck.factors))
	copy(out, ck.factors)
	return out
}

// FactorByKind returns the first factor of the given kind, or nil.
func (ck *CompositeKey) FactorByKind(kind Kind) *Factor {
	for _, f := range ck.factors {
		if f.kind == kind {
			return f
		}
	}
	return nil
}

// ChallengeResponseFactors returns the hardware-token factors in
// insertion order.
func (ck *CompositeKey) ChallengeResponseFactors() []*Factor {
	var out []*Factor
	for _, f := range ck.factors {
		if f.kind == KindChallengeResponse {
			out = append(out, f)
		}
	}
	return out
}

// IsEmpty reports whether the credential has no factors.
func (ck *CompositeKey) IsEmpty() bool {
	return len(ck.factors) == 0
}

// Material derives the raw key material fed to the KDF. Factors are
// hashed in sorted (kind, identity) order rather than insertion order,
// so two credentials with the same factor set always derive the same
// key even if a reconfiguration reordered them.
func (ck *CompositeKey) Material() []byte {
	sorted := make([]*Factor, len(ck.factors))
	copy(sorted, ck.factors)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].kind != sorted[j].kind {
			return sorted[i].kind < sorted[j].kind
		}
		return sorted[i].id < sorted[j].id
	})

	h := sha256.New()
	for _, f := range sorted {
		h.Write(f.secret)
	}
	return h.Sum(nil)
}

// Equal reports whether two credentials hold the same factor set with
// the same material, ignoring order.
func (ck *CompositeKey) Equal(other *CompositeKey) bool {
	if len(ck.factors) != len(other.factors) {
		return false
	}
	return bytes.Equal(ck.Material(), other.Material())
}

// Wipe clears the secret material of every factor.
func (ck *CompositeKey) Wipe() {
	for _, f := range ck.factors {
		f.Wipe()
	}
}
