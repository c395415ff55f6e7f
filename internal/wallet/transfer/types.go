package transfer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// OpTransfer is the operation code of an asset transfer payload.
const OpTransfer uint32 = 0x0f8a7ea5

var (
	ErrUnknownOp         = errors.New("unknown payload operation")
	ErrSequenceMismatch  = errors.New("wallet sequence number does not match idempotency token")
	ErrTokenUnset        = errors.New("idempotency token is not assigned")
	ErrInvalidOrder      = errors.New("invalid transfer order")
	ErrInvalidSignature  = errors.New("invalid envelope signature")
	ErrSignerUnavailable = errors.New("signer is not available")
)

// Payload is the body carried to the wallet's asset holding account.
type Payload struct {
	Op              uint32
	Token           uint64
	Amount          *big.Int
	Destination     common.Address
	ResponseAddress common.Address
}

// Envelope is the signed message sent from the wallet.
type Envelope struct {
	Seqno     uint64
	From      common.Address
	To        common.Address
	Value     *big.Int
	Body      []byte
	Bounce    bool
	Signature []byte
}

// Order describes one transfer to build.
type Order struct {
	// Token is the request's idempotency token, nil when unassigned.
	Token *uint64
	// Seqno is the wallet sequence number observed in this tick.
	Seqno     uint64
	Amount    *big.Int
	Recipient common.Address
	// Wallet signs the envelope and receives the response.
	Wallet common.Address
	// Holding is the wallet's asset holding account, the message destination.
	Holding       common.Address
	AttachedValue *big.Int
}

// SignedTransfer is a fully formed transaction ready for submission.
type SignedTransfer struct {
	Raw       []byte
	Reference string
	Envelope  *Envelope
}

// Signer signs a 32 byte digest with the key of one wallet address.
type Signer interface {
	Sign(ctx context.Context, wallet common.Address, digest []byte) ([]byte, error)
}

// Service builds signed transfers.
type Service interface {
	Build(ctx context.Context, order Order) (*SignedTransfer, error)
}
