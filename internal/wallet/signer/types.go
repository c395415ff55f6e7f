package signer

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Service signs digests with the hot wallet key. Key material is derived per
// call and never leaves this package.
type Service interface {
	// Sign returns a 65 byte secp256k1 signature [R || S || V] of digest.
	Sign(ctx context.Context, wallet common.Address, digest []byte) ([]byte, error)
}
