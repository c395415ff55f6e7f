package keystore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github/chapool/go-withdrawer/internal/util"
)

const keystoreFileMode = 0o600

// Service stores the encrypted wallet mnemonic in a single keystore file.
type Service interface {
	// Create encrypts mnemonic with password and writes the keystore file.
	// wallet is recorded so Unlock can verify the derived address later.
	Create(ctx context.Context, mnemonic string, password string, wallet common.Address) (*KeystoreJSON, error)

	// Load reads the keystore file.
	Load(ctx context.Context) (*KeystoreJSON, error)

	// Decrypt returns the mnemonic stored in ks.
	Decrypt(ctx context.Context, ks *KeystoreJSON, password string) (string, error)

	Exists(ctx context.Context) (bool, error)

	Path() string
}

type service struct {
	path   string
	params ScryptParams
}

// NewService returns a keystore bound to the file at path.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(path string) Service {
	return &service{path: path, params: DefaultScryptParams()}
}

// NewServiceWithParams is NewService with custom scrypt cost.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewServiceWithParams(path string, params ScryptParams) Service {
	return &service{path: path, params: params}
}

func (s *service) Path() string {
	return s.path
}

func (s *service) Create(ctx context.Context, mnemonic string, password string, wallet common.Address) (*KeystoreJSON, error) {
	log := util.LogFromContext(ctx)

	exists, err := s.Exists(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check keystore existence")
	}
	if exists {
		return nil, errors.Wrapf(ErrExists, "%s", s.path)
	}

	ks, err := encryptMnemonic(mnemonic, password, s.params)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encrypt mnemonic")
		return nil, errors.Wrap(err, "failed to encrypt mnemonic")
	}
	ks.Address = wallet.Hex()

	data, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal keystore JSON")
	}

	if dir := filepath.Dir(s.path); dir != "" {
		//nolint:mnd // owner-only directory
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, errors.Wrap(err, "failed to create keystore directory")
		}
	}

	// O_EXCL so two concurrent creates cannot clobber each other
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, keystoreFileMode)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.Wrapf(ErrExists, "%s", s.path)
		}
		return nil, errors.Wrap(err, "failed to create keystore file")
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return nil, errors.Wrap(err, "failed to write keystore file")
	}

	log.Info().Str("path", s.path).Str("address", ks.Address).Msg("Keystore created")

	return ks, nil
}

func (s *service) Load(_ context.Context) (*KeystoreJSON, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "%s", s.path)
		}
		return nil, errors.Wrap(err, "failed to read keystore file")
	}

	var ks KeystoreJSON
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal keystore JSON")
	}

	if ks.Version != keystoreVersion {
		return nil, errors.Errorf("unsupported keystore version %d", ks.Version)
	}

	return &ks, nil
}

func (s *service) Decrypt(ctx context.Context, ks *KeystoreJSON, password string) (string, error) {
	mnemonic, err := decryptMnemonic(ks, password)
	if err != nil {
		util.LogFromContext(ctx).Error().Err(err).Msg("Failed to decrypt mnemonic")
		return "", errors.Wrap(err, "failed to decrypt mnemonic")
	}

	return mnemonic, nil
}

func (s *service) Exists(_ context.Context) (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}

	return false, errors.Wrap(err, "failed to stat keystore file")
}
