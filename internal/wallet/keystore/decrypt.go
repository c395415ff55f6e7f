package keystore

import (
	"crypto/subtle"
	"encoding/hex"

	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"
)

func decryptMnemonic(ks *KeystoreJSON, password string) (string, error) {
	if ks.Crypto.Cipher != cipherName || ks.Crypto.KDF != kdfName {
		return "", errors.Errorf("unsupported keystore: cipher %q kdf %q", ks.Crypto.Cipher, ks.Crypto.KDF)
	}

	salt, err := hex.DecodeString(ks.Crypto.KDFParams.Salt)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode salt")
	}

	//nolint:varnamelen // iv is a common abbreviation for initialization vector
	iv, err := hex.DecodeString(ks.Crypto.CipherParams.IV)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode IV")
	}

	ciphertext, err := hex.DecodeString(ks.Crypto.Ciphertext)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode ciphertext")
	}

	expectedMAC, err := hex.DecodeString(ks.Crypto.MAC)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode MAC")
	}

	params := ks.Crypto.KDFParams
	derivedKey, err := scrypt.Key([]byte(password), salt, params.N, params.R, params.P, params.DKLen)
	if err != nil {
		return "", errors.Wrap(err, "failed to derive key")
	}

	//nolint:mnd // keystore v3 uses a 32 byte derived key
	if len(derivedKey) < 32 {
		return "", errors.Errorf("derived key too short: %d bytes", len(derivedKey))
	}

	if subtle.ConstantTimeCompare(calculateMAC(derivedKey[16:32], ciphertext), expectedMAC) != 1 {
		return "", ErrInvalidPassword
	}

	plaintext, err := aes128CTR(derivedKey[:16], iv, ciphertext)
	if err != nil {
		return "", errors.Wrap(err, "failed to decrypt mnemonic")
	}

	return string(plaintext), nil
}
