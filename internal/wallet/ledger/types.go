package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Gateway is read/write access to the remote ledger. Every read goes to the
// network; implementations must not cache sequence numbers or balances.
type Gateway interface {
	// GetSequenceNumber returns the wallet's current sequence number.
	GetSequenceNumber(ctx context.Context, wallet common.Address) (uint64, error)

	// GetBalance returns the native currency balance of address.
	GetBalance(ctx context.Context, address common.Address) (*big.Int, error)

	// GetAssetBalance returns the asset balance held by an asset holding account.
	GetAssetBalance(ctx context.Context, holding common.Address) (*big.Int, error)

	// GetRecentTransactions returns up to limit transactions of address, most recent first.
	GetRecentTransactions(ctx context.Context, address common.Address, limit int) ([]TransactionRecord, error)

	// SubmitSignedTransaction hands a signed transaction to the network. Success means
	// accepted for broadcast, not executed.
	SubmitSignedTransaction(ctx context.Context, raw []byte) error
}

// Effect is an outgoing sub-transfer produced by a transaction.
type Effect struct {
	Destination common.Address
	Amount      *big.Int
}

// TransactionRecord is a read-only view of one executed ledger transaction.
type TransactionRecord struct {
	// Source is the sender of the incoming message, zero for external messages.
	Source common.Address
	// Payload is the raw body of the incoming message.
	Payload []byte
	Effects []Effect
	// Reference identifies the transaction for audit logs.
	Reference   string
	LogicalTime uint64
}
