package address

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Service derives the hot wallet key and the addresses owned by it.
type Service interface {
	// DeriveAddress derives the wallet address at a BIP44 path.
	DeriveAddress(ctx context.Context, seed []byte, path string) (common.Address, error)

	// DerivePrivateKey derives the raw private key at a BIP44 path.
	// WARNING: Caller must clear the private key after use
	DerivePrivateKey(ctx context.Context, seed []byte, path string) ([]byte, error)

	// AssetHoldingAddress returns the holding account of owner for the asset
	// whose master account is master.
	AssetHoldingAddress(master common.Address, owner common.Address) common.Address
}
