package signer

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github/chapool/go-withdrawer/internal/wallet/address"
	"github/chapool/go-withdrawer/internal/wallet/seed"
)

var ErrAddressMismatch = errors.New("wallet address does not match derived key")

type service struct {
	seedManager    seed.Manager
	addressService address.Service
	derivationPath string
}

// NewService creates a signer for the key at derivationPath.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(seedManager seed.Manager, addressService address.Service, derivationPath string) Service {
	return &service{
		seedManager:    seedManager,
		addressService: addressService,
		derivationPath: derivationPath,
	}
}

func (s *service) Sign(ctx context.Context, wallet common.Address, digest []byte) ([]byte, error) {
	if len(digest) != common.HashLength {
		return nil, errors.Errorf("digest must be %d bytes, got %d", common.HashLength, len(digest))
	}

	seedBytes := s.seedManager.GetSeed()
	if seedBytes == nil {
		return nil, errors.New("seed not initialized")
	}
	defer zero(seedBytes)

	privateKey, err := s.addressService.DerivePrivateKey(ctx, seedBytes, s.derivationPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive private key")
	}
	defer zero(privateKey)

	ecdsaPrivateKey, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert private key to ECDSA")
	}

	if crypto.PubkeyToAddress(ecdsaPrivateKey.PublicKey) != wallet {
		return nil, errors.Wrapf(ErrAddressMismatch, "wallet %s", wallet.Hex())
	}

	signature, err := crypto.Sign(digest, ecdsaPrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign digest")
	}

	return signature, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
