package wizard

import (
	"bufio"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crazycat36/keepassxc/internal/keys"
)

func input(lines ...string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func staticSecret(secret string) keys.SecretProvider {
	return func() ([]byte, error) { return []byte(secret), nil }
}

func staticKeyFile(material []byte) keys.KeyFileLoader {
	return func(path string) (*keys.Factor, error) {
		return keys.NewKeyFileFactor(material), nil
	}
}

func TestMetadataStep(t *testing.T) {
	st := &State{Key: keys.NewCompositeKey()}
	step := &MetadataStep{Input: input("Work Secrets", "staging keys")}

	require.NoError(t, step.Run(st))
	assert.Equal(t, "Work Secrets", st.Info.Name)
	assert.Equal(t, "staging keys", st.Info.Description)
}

func TestMetadataStepDefaultsName(t *testing.T) {
	st := &State{Key: keys.NewCompositeKey()}
	step := &MetadataStep{Input: input("", ""), DefaultName: "prod.vault"}

	require.NoError(t, step.Run(st))
	assert.Equal(t, "prod.vault", st.Info.Name)
	assert.Empty(t, st.Info.Description)
}

func TestMetadataStepRejectsEmptyName(t *testing.T) {
	st := &State{Key: keys.NewCompositeKey()}
	step := &MetadataStep{Input: input("", "")}

	assert.Error(t, step.Run(st))
}

func TestEncryptionStep(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		def     uint32
		want    uint32
		wantErr bool
	}{
		{name: "explicit value", answer: "300000", want: 300000},
		{name: "empty uses default", answer: "", def: 250000, want: 250000},
		{name: "below minimum rejected", answer: "1000", wantErr: true},
		{name: "not a number rejected", answer: "lots", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &State{Key: keys.NewCompositeKey()}
			step := &EncryptionStep{Input: input(tt.answer), Default: tt.def}

			err := step.Run(st)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, st.Info.Iterations)
		})
	}
}

func TestMasterKeyStepPassword(t *testing.T) {
	st := &State{Key: keys.NewCompositeKey()}
	step := &MasterKeyStep{WantPassword: true, Secret: staticSecret("hunter2")}

	require.NoError(t, step.Run(st))
	f := st.Key.FactorByKind(keys.KindPassword)
	require.NotNil(t, f)
	assert.Len(t, f.Raw(), 32)
}

func TestMasterKeyStepPasswordCollectionFails(t *testing.T) {
	st := &State{Key: keys.NewCompositeKey()}
	step := &MasterKeyStep{
		WantPassword: true,
		Secret:       func() ([]byte, error) { return nil, errors.New("prompt aborted") },
	}

	err := step.Run(st)
	assert.ErrorIs(t, err, keys.ErrPasswordCollection)
	assert.True(t, st.Key.IsEmpty())
}

func TestMasterKeyStepKeyFileLoadFails(t *testing.T) {
	st := &State{Key: keys.NewCompositeKey()}
	step := &MasterKeyStep{
		KeyFilePath: "/nonexistent/key",
		LoadKeyFile: func(path string) (*keys.Factor, error) {
			return nil, errors.New("no such file")
		},
	}

	err := step.Run(st)
	var loadErr *keys.KeyFileLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "/nonexistent/key", loadErr.Path)
}

func TestMasterKeyStepAllFactors(t *testing.T) {
	st := &State{Key: keys.NewCompositeKey()}
	step := &MasterKeyStep{
		WantPassword: true,
		KeyFilePath:  "token.key",
		TokenFactors: []*keys.Factor{
			keys.NewChallengeResponseFactor("device-1", []byte("chal"), []byte("resp")),
		},
		Secret:      staticSecret("hunter2"),
		LoadKeyFile: staticKeyFile(make([]byte, 32)),
	}

	require.NoError(t, step.Run(st))
	assert.Len(t, st.Key.Factors(), 3)
}

func TestWizardRunsStepsInOrder(t *testing.T) {
	w := New(
		&MetadataStep{Input: input("My Vault", "")},
		&EncryptionStep{Input: input("200000")},
		&MasterKeyStep{WantPassword: true, Secret: staticSecret("hunter2")},
	)

	st, err := w.Run()
	require.NoError(t, err)
	assert.Equal(t, "My Vault", st.Info.Name)
	assert.Equal(t, uint32(200000), st.Info.Iterations)
	assert.False(t, st.Key.IsEmpty())
}

func TestWizardRejectsEmptyCredential(t *testing.T) {
	w := New(
		&MetadataStep{Input: input("My Vault", "")},
		&EncryptionStep{Input: input("")},
		&MasterKeyStep{},
	)

	_, err := w.Run()
	assert.ErrorIs(t, err, keys.ErrNoFactorsRemain)
}

func TestWizardStopsOnStepError(t *testing.T) {
	w := New(
		&MetadataStep{Input: input("", "")}, // empty name, no default
		&MasterKeyStep{WantPassword: true, Secret: staticSecret("hunter2")},
	)

	_, err := w.Run()
	assert.Error(t, err)
}
