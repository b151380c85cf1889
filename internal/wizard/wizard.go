// Package wizard drives the guided vault-creation sequence: a metadata
// step, an encryption-settings step and a master-key step, each
// validating its input before the next runs. The vault starts with an
// empty credential; the final validation refuses to finish until at
// least one unlock factor has been added.
package wizard

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/crazycat36/keepassxc/internal/crypto"
	"github.com/crazycat36/keepassxc/internal/keys"
	"github.com/crazycat36/keepassxc/internal/vault"
)

// State accumulates the configured vault across steps.
type State struct {
	Info vault.Info
	Key  *keys.CompositeKey
}

// Step is one page of the creation sequence.
type Step interface {
	Run(st *State) error
}

// Wizard runs steps in order and applies the terminal validation.
type Wizard struct {
	steps []Step
}

// New builds a wizard from the given steps.
func New(steps ...Step) *Wizard {
	return &Wizard{steps: steps}
}

// Run executes every step against a fresh state and returns the
// configured state. A credential with no factors is rejected: a vault
// persisted without unlock factors could never be opened again.
func (w *Wizard) Run() (*State, error) {
	st := &State{Key: keys.NewCompositeKey()}
	for _, step := range w.steps {
		if err := step.Run(st); err != nil {
			return nil, err
		}
	}
	if st.Key.IsEmpty() {
		return nil, keys.ErrNoFactorsRemain
	}
	return st, nil
}

// MetadataStep collects the vault name and description.
type MetadataStep struct {
	Input       *bufio.Reader
	DefaultName string
}

func (s *MetadataStep) Run(st *State) error {
	name, err := readLine(s.Input, fmt.Sprintf("Vault name [%s]: ", s.DefaultName))
	if err != nil {
		return err
	}
	if name == "" {
		name = s.DefaultName
	}
	if name == "" {
		return fmt.Errorf("vault name must not be empty")
	}

	description, err := readLine(s.Input, "Description (optional): ")
	if err != nil {
		return err
	}

	st.Info.Name = name
	st.Info.Description = description
	return nil
}

// MinIterations is the lowest accepted KDF iteration count.
const MinIterations = 100000

// EncryptionStep collects the KDF iteration count.
type EncryptionStep struct {
	Input   *bufio.Reader
	Default uint32
}

func (s *EncryptionStep) Run(st *State) error {
	def := s.Default
	if def == 0 {
		def = crypto.DefaultIters
	}

	answer, err := readLine(s.Input, fmt.Sprintf("KDF iterations [%d]: ", def))
	if err != nil {
		return err
	}
	if answer == "" {
		st.Info.Iterations = def
		return nil
	}

	iterations, err := strconv.ParseUint(answer, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid iteration count %q", answer)
	}
	if iterations < MinIterations {
		return fmt.Errorf("iteration count must be at least %d", MinIterations)
	}
	st.Info.Iterations = uint32(iterations)
	return nil
}

// MasterKeyStep collects the unlock factors. The password prompt and
// key file loading are injected so the step is testable without a
// terminal.
type MasterKeyStep struct {
	WantPassword bool
	KeyFilePath  string
	TokenFactors []*keys.Factor

	Secret      keys.SecretProvider
	LoadKeyFile keys.KeyFileLoader
}

func (s *MasterKeyStep) Run(st *State) error {
	if s.WantPassword {
		password, err := s.Secret()
		if err != nil {
			return fmt.Errorf("%w: %v", keys.ErrPasswordCollection, err)
		}
		f := keys.NewPasswordFactor(password)
		crypto.ClearBytes(password)
		if err := st.Key.AddFactor(f); err != nil {
			f.Wipe()
			return err
		}
	}

	if s.KeyFilePath != "" {
		f, err := s.LoadKeyFile(s.KeyFilePath)
		if err != nil {
			return &keys.KeyFileLoadError{Path: s.KeyFilePath, Err: err}
		}
		if err := st.Key.AddFactor(f); err != nil {
			f.Wipe()
			return err
		}
	}

	for _, f := range s.TokenFactors {
		if err := st.Key.AddFactor(f); err != nil {
			return err
		}
	}

	return nil
}

func readLine(r *bufio.Reader, promptText string) (string, error) {
	fmt.Fprint(os.Stderr, promptText)
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
