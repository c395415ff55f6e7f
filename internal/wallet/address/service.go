package address

import (
	"context"
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// holdingCodeHash stands in for the init code hash of the asset holding
// contract every master deploys for its owners.
var holdingCodeHash = crypto.Keccak256([]byte("asset-holding"))

type service struct{}

// NewService creates a new address service.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService() Service {
	return &service{}
}

func (s *service) DeriveAddress(ctx context.Context, seed []byte, path string) (common.Address, error) {
	privateKey, err := s.DerivePrivateKey(ctx, seed, path)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to derive private key")
	}

	defer func() {
		for i := range privateKey {
			privateKey[i] = 0
		}
	}()

	ecdsaPrivateKey, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to convert to ECDSA private key")
	}

	publicKeyECDSA, ok := ecdsaPrivateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return common.Address{}, errors.New("failed to cast public key to ECDSA")
	}

	return crypto.PubkeyToAddress(*publicKeyECDSA), nil
}

// AssetHoldingAddress is CREATE2(master, owner, keccak("asset-holding")).
func (s *service) AssetHoldingAddress(master common.Address, owner common.Address) common.Address {
	salt := common.BytesToHash(owner.Bytes())

	return crypto.CreateAddress2(master, salt, holdingCodeHash)
}
