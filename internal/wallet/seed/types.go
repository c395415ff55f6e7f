package seed

// Manager holds the hot wallet seed in memory for the lifetime of the process.
type Manager interface {
	// Initialize validates the mnemonic and derives the seed from it.
	Initialize(mnemonic string, passphrase string) error

	// GetSeed returns a copy of the seed, nil before Initialize.
	GetSeed() []byte

	IsInitialized() bool

	// Clear zeroes the seed.
	Clear()
}
