package transfer

import (
	"context"

	"github.com/pkg/errors"
	"github/chapool/go-withdrawer/internal/util"
)

type service struct {
	signer Signer
}

// NewService creates a transfer builder signing with signer.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(signer Signer) Service {
	return &service{signer: signer}
}

// Build encodes and signs the transfer described by order. The payload token
// is the order's idempotency token, and building only succeeds while the
// wallet sequence number still equals it. Equal orders give equal bytes.
func (s *service) Build(ctx context.Context, order Order) (*SignedTransfer, error) {
	if order.Token == nil {
		return nil, ErrTokenUnset
	}

	token := *order.Token
	if order.Seqno != token {
		return nil, errors.Wrapf(ErrSequenceMismatch, "seqno %d, token %d", order.Seqno, token)
	}

	if order.Amount == nil || order.Amount.Sign() <= 0 {
		return nil, errors.Wrap(ErrInvalidOrder, "amount must be positive")
	}

	if order.AttachedValue == nil || order.AttachedValue.Sign() < 0 {
		return nil, errors.Wrap(ErrInvalidOrder, "attached value must be non-negative")
	}

	body, err := EncodePayload(&Payload{
		Op:              OpTransfer,
		Token:           token,
		Amount:          order.Amount,
		Destination:     order.Recipient,
		ResponseAddress: order.Wallet,
	})
	if err != nil {
		return nil, err
	}

	envelope := &Envelope{
		Seqno:  order.Seqno,
		From:   order.Wallet,
		To:     order.Holding,
		Value:  order.AttachedValue,
		Body:   body,
		Bounce: true,
	}

	hash, err := envelope.SigningHash()
	if err != nil {
		return nil, err
	}

	signature, err := s.signer.Sign(ctx, order.Wallet, hash.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transfer")
	}
	envelope.Signature = signature

	raw, err := EncodeEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	util.LogFromContext(ctx).Debug().
		Str("reference", hash.Hex()).
		Str("destination", order.Recipient.Hex()).
		Msg("Built signed transfer")

	return &SignedTransfer{
		Raw:       raw,
		Reference: hash.Hex(),
		Envelope:  envelope,
	}, nil
}
