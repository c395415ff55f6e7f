// Package wallet unlocks the hot wallet key material at process start.
package wallet

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/internal/wallet/address"
	"github/chapool/go-withdrawer/internal/wallet/keystore"
	"github/chapool/go-withdrawer/internal/wallet/seed"
	"golang.org/x/term"
)

const minPasswordLength = 8

var (
	// ErrNoCredentials is fatal: the engine cannot sign without a seed.
	ErrNoCredentials = errors.New("no wallet credentials: set WALLET_MNEMONIC or create a keystore with `keystore create`")
	// ErrAddressMismatch means the keystore decrypted to a different wallet than recorded.
	ErrAddressMismatch = errors.New("derived address does not match keystore address")
)

// PasswordPrompt reads a secret from the operator.
type PasswordPrompt func(prompt string) (string, error)

// Unlock initializes seedManager from WALLET_MNEMONIC, or from the keystore
// file and its password, and returns the hot wallet address.
// The keystore password only decrypts the file; the BIP39 passphrase is
// always empty so both sources derive the same wallet.
func Unlock(
	ctx context.Context,
	cfg config.Wallet,
	seedManager seed.Manager,
	keystoreService keystore.Service,
	addressService address.Service,
	prompt PasswordPrompt,
) (common.Address, error) {
	log := log.With().Str("component", "wallet_init").Logger()

	if cfg.Mnemonic != "" {
		if err := seedManager.Initialize(cfg.Mnemonic, ""); err != nil {
			return common.Address{}, errors.Wrap(err, "failed to initialize seed from WALLET_MNEMONIC")
		}

		wallet, err := deriveWallet(ctx, seedManager, addressService, cfg.DerivationPath)
		if err != nil {
			return common.Address{}, err
		}

		log.Info().Str("address", wallet.Hex()).Msg("Wallet unlocked from environment mnemonic")

		return wallet, nil
	}

	exists, err := keystoreService.Exists(ctx)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to check keystore existence")
	}
	if !exists {
		return common.Address{}, errors.Wrapf(ErrNoCredentials, "keystore %s not found", keystoreService.Path())
	}

	//nolint:varnamelen // ks is a common abbreviation for keystore
	ks, err := keystoreService.Load(ctx)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to load keystore")
	}

	password := cfg.KeystorePassword
	if password == "" {
		if prompt == nil {
			return common.Address{}, errors.Wrap(ErrNoCredentials, "keystore password not set and no terminal available")
		}

		log.Info().Str("path", keystoreService.Path()).Msg("Keystore found. Please enter password to unlock...")

		password, err = prompt("Enter keystore password: ")
		if err != nil {
			return common.Address{}, errors.Wrap(err, "failed to read password")
		}
	}

	mnemonic, err := keystoreService.Decrypt(ctx, ks, password)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to decrypt keystore (invalid password?)")
	}

	if err := seedManager.Initialize(mnemonic, ""); err != nil {
		return common.Address{}, errors.Wrap(err, "failed to initialize seed manager")
	}

	wallet, err := deriveWallet(ctx, seedManager, addressService, cfg.DerivationPath)
	if err != nil {
		return common.Address{}, err
	}

	if ks.Address != "" && common.HexToAddress(ks.Address) != wallet {
		seedManager.Clear()
		return common.Address{}, errors.Wrapf(ErrAddressMismatch, "keystore has %s, derived %s", ks.Address, wallet.Hex())
	}

	log.Info().Str("address", wallet.Hex()).Msg("Wallet unlocked from keystore")

	return wallet, nil
}

// CreateKeystore encrypts a fresh 24 word mnemonic (or WALLET_MNEMONIC when
// set, to import an existing wallet) into the keystore file. The mnemonic is
// returned so the operator can back it up; it is never logged.
func CreateKeystore(
	ctx context.Context,
	cfg config.Wallet,
	keystoreService keystore.Service,
	addressService address.Service,
	prompt PasswordPrompt,
) (string, common.Address, error) {
	mnemonic := seed.NormalizeMnemonic(cfg.Mnemonic)
	if mnemonic == "" {
		var err error
		mnemonic, err = seed.NewMnemonic()
		if err != nil {
			return "", common.Address{}, err
		}
	}

	password := cfg.KeystorePassword
	if password == "" {
		if prompt == nil {
			return "", common.Address{}, errors.New("keystore password not set and no terminal available")
		}

		var err error
		password, err = prompt(fmt.Sprintf("Enter password for keystore (min %d characters): ", minPasswordLength))
		if err != nil {
			return "", common.Address{}, errors.Wrap(err, "failed to read password")
		}

		passwordConfirm, err := prompt("Confirm password: ")
		if err != nil {
			return "", common.Address{}, errors.Wrap(err, "failed to read password confirmation")
		}

		if password != passwordConfirm {
			return "", common.Address{}, errors.New("passwords do not match")
		}
	}

	if len(password) < minPasswordLength {
		return "", common.Address{}, errors.Errorf("password must be at least %d characters", minPasswordLength)
	}

	seedManager := seed.NewManager()
	defer seedManager.Clear()

	if err := seedManager.Initialize(mnemonic, ""); err != nil {
		return "", common.Address{}, errors.Wrap(err, "failed to initialize seed manager")
	}

	wallet, err := deriveWallet(ctx, seedManager, addressService, cfg.DerivationPath)
	if err != nil {
		return "", common.Address{}, err
	}

	if _, err := keystoreService.Create(ctx, mnemonic, password, wallet); err != nil {
		return "", common.Address{}, errors.Wrap(err, "failed to create keystore")
	}

	return mnemonic, wallet, nil
}

func deriveWallet(ctx context.Context, seedManager seed.Manager, addressService address.Service, path string) (common.Address, error) {
	if path == "" {
		path = address.DefaultPath
	}

	seedBytes := seedManager.GetSeed()
	defer clear(seedBytes)

	wallet, err := addressService.DeriveAddress(ctx, seedBytes, path)
	if err != nil {
		return common.Address{}, errors.Wrapf(err, "failed to derive wallet address at %s", path)
	}

	return wallet, nil
}

// TerminalPrompt reads a password from the controlling terminal without
// echoing it. It returns nil when stdin is not a terminal.
func TerminalPrompt() PasswordPrompt {
	fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit in int
	if !term.IsTerminal(fd) {
		return nil
	}

	//nolint:forbidigo // Password input requires direct terminal I/O
	return func(prompt string) (string, error) {
		fmt.Fprint(os.Stderr, prompt)

		passwordBytes, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", errors.Wrap(err, "failed to read password from terminal")
		}

		return string(passwordBytes), nil
	}
}
