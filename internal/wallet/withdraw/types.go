package withdraw

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Status 提现请求状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Request 提现请求。Token 由序列号分配器写入一次，此后不可修改。
type Request struct {
	ID          string
	TokenKind   string
	Amount      *big.Int
	Destination common.Address
	// Token is the idempotency token, nil until assigned.
	Token       *uint64
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// NewRequest validates the input and creates a pending, tokenless request
// with a time ordered id.
func NewRequest(tokenKind string, amount *big.Int, destination common.Address) (*Request, error) {
	tokenKind = strings.TrimSpace(tokenKind)
	if tokenKind == "" {
		return nil, errors.Wrap(ErrInvalidRequest, "token kind is required")
	}

	if amount == nil || amount.Sign() <= 0 {
		return nil, errors.Wrap(ErrInvalidRequest, "amount must be positive")
	}

	if destination == (common.Address{}) {
		return nil, errors.Wrap(ErrInvalidRequest, "destination is required")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate request id")
	}

	return &Request{
		ID:          id.String(),
		TokenKind:   tokenKind,
		Amount:      new(big.Int).Set(amount),
		Destination: destination,
		Status:      StatusPending,
	}, nil
}

func (r *Request) HasToken() bool {
	return r.Token != nil
}

// Clone returns a deep copy of r.
func (r *Request) Clone() *Request {
	c := *r
	if r.Amount != nil {
		c.Amount = new(big.Int).Set(r.Amount)
	}
	if r.Token != nil {
		token := *r.Token
		c.Token = &token
	}
	if r.CompletedAt != nil {
		completedAt := *r.CompletedAt
		c.CompletedAt = &completedAt
	}

	return &c
}

// WithToken returns a copy of r carrying token.
func (r *Request) WithToken(token uint64) *Request {
	c := r.Clone()
	c.Token = &token

	return c
}

// Decision is the outcome of a single engine tick.
type Decision string

const (
	DecisionIdle              Decision = "idle"
	DecisionAssigned          Decision = "assigned"
	DecisionConfirmed         Decision = "confirmed"
	DecisionBounced           Decision = "bounced"
	DecisionStalled           Decision = "stalled"
	DecisionPending           Decision = "pending"
	DecisionInsufficientFee   Decision = "insufficient_fee"
	DecisionInsufficientAsset Decision = "insufficient_asset"
	DecisionSubmitted         Decision = "submitted"
	DecisionSequenceBehind    Decision = "sequence_behind"
)

// Decisions lists every decision, in the order of the state machine.
var Decisions = []Decision{
	DecisionIdle,
	DecisionAssigned,
	DecisionConfirmed,
	DecisionBounced,
	DecisionStalled,
	DecisionPending,
	DecisionInsufficientFee,
	DecisionInsufficientAsset,
	DecisionSubmitted,
	DecisionSequenceBehind,
}

// TickResult describes what a tick did to the queue head.
type TickResult struct {
	Decision   Decision
	RequestID  string
	Token      *uint64
	Seqno      uint64
	QueueDepth int
	// Reference is the ledger reference of a submitted, confirmed or bounced transfer.
	Reference string
}
