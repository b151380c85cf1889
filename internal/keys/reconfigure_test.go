package keys

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confirmedSecret(password string) SecretProvider {
	return func() ([]byte, error) {
		return []byte(password), nil
	}
}

func failingSecret(err error) SecretProvider {
	return func() ([]byte, error) {
		return nil, err
	}
}

func staticKeyFile(material []byte) KeyFileLoader {
	return func(path string) (*Factor, error) {
		return NewKeyFileFactor(append([]byte(nil), material...)), nil
	}
}

func failingKeyFile(err error) KeyFileLoader {
	return func(path string) (*Factor, error) {
		return nil, err
	}
}

func compositeOf(t *testing.T, factors ...*Factor) *CompositeKey {
	t.Helper()
	ck := NewCompositeKey()
	for _, f := range factors {
		require.NoError(t, ck.AddFactor(f))
	}
	return ck
}

func TestReconfigureNoOpReturnsEqualCredential(t *testing.T) {
	old := compositeOf(t,
		NewPasswordFactor([]byte("hunter2")),
		NewChallengeResponseFactor("device-1", []byte("challenge"), []byte("response")),
	)

	got, err := Reconfigure(old, ChangeRequest{}, nil, nil)
	require.NoError(t, err)
	assert.True(t, got.Equal(old))
	assert.Len(t, got.Factors(), 2)
}

func TestReconfigureMutualExclusionPassword(t *testing.T) {
	old := compositeOf(t, NewPasswordFactor([]byte("hunter2")))

	req := ChangeRequest{SetPassword: true, UnsetPassword: true}
	_, err := Reconfigure(old, req, confirmedSecret("x"), nil)
	assert.ErrorIs(t, err, ErrMutuallyExclusive)
	// The old credential is untouched.
	assert.Len(t, old.Factors(), 1)
}

func TestReconfigureMutualExclusionKeyFile(t *testing.T) {
	old := compositeOf(t, NewPasswordFactor([]byte("hunter2")))

	req := ChangeRequest{NewKeyFilePath: "vault.key", UnsetKeyFile: true}
	_, err := Reconfigure(old, req, nil, staticKeyFile([]byte("material")))
	assert.ErrorIs(t, err, ErrMutuallyExclusive)
}

// Scenario A: removing the only factor must be refused.
func TestReconfigureUnsetOnlyPasswordFails(t *testing.T) {
	old := compositeOf(t, NewPasswordFactor([]byte("hunter2")))

	_, err := Reconfigure(old, ChangeRequest{UnsetPassword: true}, nil, nil)
	assert.ErrorIs(t, err, ErrNoFactorsRemain)
}

// Scenario B: unsetting the password keeps the hardware token.
func TestReconfigureUnsetPasswordKeepsToken(t *testing.T) {
	tokenFactor := NewChallengeResponseFactor("device-1", []byte("challenge"), []byte("response"))
	old := compositeOf(t, NewPasswordFactor([]byte("hunter2")), tokenFactor)

	got, err := Reconfigure(old, ChangeRequest{UnsetPassword: true}, nil, nil)
	require.NoError(t, err)

	factors := got.Factors()
	require.Len(t, factors, 1)
	assert.Same(t, tokenFactor, factors[0])
}

// Scenario C: adding a password to a key-file-only vault.
func TestReconfigureSetPasswordKeepsKeyFile(t *testing.T) {
	fileFactor := NewKeyFileFactor([]byte("file-material-32-bytes-exactly!!"))
	old := compositeOf(t, fileFactor)

	got, err := Reconfigure(old, ChangeRequest{SetPassword: true}, confirmedSecret("s3cret"), nil)
	require.NoError(t, err)

	factors := got.Factors()
	require.Len(t, factors, 2)
	assert.Same(t, fileFactor, factors[0])
	assert.Equal(t, KindPassword, factors[1].Kind())
}

// Scenario D: a failed password collection aborts without partial results.
func TestReconfigurePasswordCollectionFailure(t *testing.T) {
	old := compositeOf(t, NewPasswordFactor([]byte("hunter2")))

	_, err := Reconfigure(old, ChangeRequest{SetPassword: true},
		failingSecret(errors.New("confirmation mismatch")), nil)
	assert.ErrorIs(t, err, ErrPasswordCollection)

	// The old credential still unlocks: material intact.
	require.Len(t, old.Factors(), 1)
	assert.NotEmpty(t, old.Factors()[0].Raw())
}

func TestReconfigureKeyFileLoadFailure(t *testing.T) {
	old := compositeOf(t, NewPasswordFactor([]byte("hunter2")))

	_, err := Reconfigure(old, ChangeRequest{NewKeyFilePath: "missing.key"},
		nil, failingKeyFile(errors.New("no such file")))

	var loadErr *KeyFileLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "missing.key", loadErr.Path)
}

func TestReconfigureReplacePassword(t *testing.T) {
	oldPassword := NewPasswordFactor([]byte("old"))
	old := compositeOf(t, oldPassword)

	got, err := Reconfigure(old, ChangeRequest{SetPassword: true}, confirmedSecret("new"), nil)
	require.NoError(t, err)

	factors := got.Factors()
	require.Len(t, factors, 1)
	assert.Equal(t, KindPassword, factors[0].Kind())
	assert.NotSame(t, oldPassword, factors[0])
	assert.NotEqual(t, oldPassword.Raw(), factors[0].Raw())
}

func TestReconfigureReplaceKeyFile(t *testing.T) {
	old := compositeOf(t,
		NewPasswordFactor([]byte("hunter2")),
		NewKeyFileFactor([]byte("old-material")),
	)

	newMaterial := []byte("new-material")
	got, err := Reconfigure(old, ChangeRequest{NewKeyFilePath: "new.key"},
		nil, staticKeyFile(newMaterial))
	require.NoError(t, err)

	factors := got.Factors()
	require.Len(t, factors, 2)
	assert.Equal(t, KindKeyFile, factors[1].Kind())
	assert.Equal(t, newMaterial, factors[1].Raw())
}

func TestReconfigureSwapBothFactors(t *testing.T) {
	old := compositeOf(t,
		NewPasswordFactor([]byte("old")),
		NewKeyFileFactor([]byte("old-material")),
		NewChallengeResponseFactor("device-1", []byte("c1"), []byte("r1")),
		NewChallengeResponseFactor("device-2", []byte("c2"), []byte("r2")),
	)

	req := ChangeRequest{SetPassword: true, NewKeyFilePath: "new.key"}
	got, err := Reconfigure(old, req, confirmedSecret("new"), staticKeyFile([]byte("new-material")))
	require.NoError(t, err)

	// Both tokens preserved, exactly one password, exactly one key file.
	assert.Len(t, got.Factors(), 4)
	assert.Len(t, got.ChallengeResponseFactors(), 2)

	passwords, keyFiles := 0, 0
	for _, f := range got.Factors() {
		switch f.Kind() {
		case KindPassword:
			passwords++
		case KindKeyFile:
			keyFiles++
		}
	}
	assert.Equal(t, 1, passwords)
	assert.Equal(t, 1, keyFiles)
}

func TestReconfigureTokensNeverTouched(t *testing.T) {
	t1 := NewChallengeResponseFactor("device-1", []byte("c1"), []byte("r1"))
	t2 := NewChallengeResponseFactor("device-2", []byte("c2"), []byte("r2"))

	requests := []ChangeRequest{
		{SetPassword: true},
		{UnsetPassword: true},
		{NewKeyFilePath: "new.key"},
		{UnsetKeyFile: true},
	}

	for _, req := range requests {
		old := compositeOf(t, NewPasswordFactor([]byte("p")), NewKeyFileFactor([]byte("m")), t1, t2)

		got, err := Reconfigure(old, req, confirmedSecret("new"), staticKeyFile([]byte("new")))
		require.NoError(t, err)

		tokens := got.ChallengeResponseFactors()
		require.Len(t, tokens, 2)
		assert.Same(t, t1, tokens[0])
		assert.Same(t, t2, tokens[1])
	}
}

func TestReconfigureUnknownKindCarriedForward(t *testing.T) {
	unknown := NewRawFactor(Kind(99), "future-factor", []byte("future-material"))
	old := compositeOf(t, NewPasswordFactor([]byte("p")), unknown)

	got, err := Reconfigure(old, ChangeRequest{UnsetPassword: true}, nil, nil)
	require.NoError(t, err)

	factors := got.Factors()
	require.Len(t, factors, 1)
	assert.Same(t, unknown, factors[0])
}

func TestChangeRequestEmpty(t *testing.T) {
	assert.True(t, ChangeRequest{}.Empty())
	assert.False(t, ChangeRequest{SetPassword: true}.Empty())
	assert.False(t, ChangeRequest{UnsetPassword: true}.Empty())
	assert.False(t, ChangeRequest{NewKeyFilePath: "k"}.Empty())
	assert.False(t, ChangeRequest{UnsetKeyFile: true}.Empty())
}
