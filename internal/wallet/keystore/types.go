package keystore

import "errors"

var (
	// ErrNotFound is returned when no keystore file exists at the configured path.
	ErrNotFound = errors.New("keystore not found")
	// ErrExists prevents overwriting an existing keystore.
	ErrExists = errors.New("keystore already exists")
	// ErrInvalidPassword means the MAC did not verify.
	ErrInvalidPassword = errors.New("invalid password: MAC mismatch")
)

// KeystoreJSON is the keystore v3 layout. The encrypted payload is the
// wallet mnemonic instead of a raw private key; Address records the hot
// wallet address derived at creation so unlocking can be verified.
//
//nolint:revive // KeystoreJSON is the standard name for the v3 JSON structure
type KeystoreJSON struct {
	Version int    `json:"version"`
	ID      string `json:"id"`
	Address string `json:"address,omitempty"`
	Crypto  struct {
		Ciphertext   string `json:"ciphertext"`
		CipherParams struct {
			IV string `json:"iv"`
		} `json:"cipherparams"`
		Cipher    string `json:"cipher"`
		KDF       string `json:"kdf"`
		KDFParams struct {
			DKLen int    `json:"dklen"`
			Salt  string `json:"salt"`
			N     int    `json:"n"`
			R     int    `json:"r"`
			P     int    `json:"p"`
		} `json:"kdfparams"`
		MAC string `json:"mac"`
	} `json:"crypto"`
}

// ScryptParams defines scrypt KDF parameters
type ScryptParams struct {
	DKLen int // Derived key length (32 bytes)
	N     int // CPU/memory cost parameter
	R     int // Block size parameter (8)
	P     int // Parallelization parameter
}

// DefaultScryptParams returns the standard keystore v3 scrypt parameters.
func DefaultScryptParams() ScryptParams {
	const (
		scryptDKLen = 32
		scryptN     = 262144 // 2^18
		scryptR     = 8
		scryptP     = 1
	)

	return ScryptParams{DKLen: scryptDKLen, N: scryptN, R: scryptR, P: scryptP}
}

// LightScryptParams trade strength for speed, for tests and throwaway keystores.
func LightScryptParams() ScryptParams {
	const (
		scryptDKLen = 32
		scryptN     = 4096 // 2^12
		scryptR     = 8
		scryptP     = 6
	)

	return ScryptParams{DKLen: scryptDKLen, N: scryptN, R: scryptR, P: scryptP}
}
