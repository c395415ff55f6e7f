package seed

import (
	"crypto/sha512"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"
)

// MnemonicEntropyBits gives a 24 word mnemonic.
const MnemonicEntropyBits = 256

// ErrInvalidMnemonic is returned for mnemonics failing the BIP39 checksum.
var ErrInvalidMnemonic = errors.New("invalid mnemonic")

type manager struct {
	seed        []byte
	mu          sync.RWMutex
	initialized bool
}

// NewManager creates an empty seed manager.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewManager() Manager {
	return &manager{}
}

// NewMnemonic generates a fresh 24 word BIP39 mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(MnemonicEntropyBits)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate entropy")
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate mnemonic")
	}

	return mnemonic, nil
}

// NormalizeMnemonic collapses whitespace so that mnemonics pasted from
// env files or terminals compare equal.
func NormalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(mnemonic), " ")
}

func (m *manager) Initialize(mnemonic string, passphrase string) error {
	mnemonic = NormalizeMnemonic(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return ErrInvalidMnemonic
	}

	// BIP39: seed = PBKDF2(mnemonic, "mnemonic" + passphrase, 2048, 64, SHA512)
	const (
		pbkdf2Iterations = 2048
		pbkdf2KeyLength  = 64
	)

	seed := pbkdf2.Key(
		[]byte(mnemonic),
		[]byte("mnemonic"+passphrase),
		pbkdf2Iterations,
		pbkdf2KeyLength,
		sha512.New,
	)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.zero()
	m.seed = seed
	m.initialized = true

	return nil
}

func (m *manager) GetSeed() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.initialized || m.seed == nil {
		return nil
	}

	seedCopy := make([]byte, len(m.seed))
	copy(seedCopy, m.seed)

	return seedCopy
}

func (m *manager) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.initialized
}

func (m *manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.zero()
	m.initialized = false
}

func (m *manager) zero() {
	for i := range m.seed {
		m.seed[i] = 0
	}
	m.seed = nil
}
