package withdraw

import (
	"context"

	"github.com/pkg/errors"
	"github/chapool/go-withdrawer/internal/util"
)

// sequenceReader reads the wallet's current sequence number from the ledger.
type sequenceReader interface {
	SequenceNumber(ctx context.Context) (uint64, error)
}

// allocator binds idempotency tokens to requests.
type allocator struct {
	queue  Queue
	wallet sequenceReader
}

func newAllocator(queue Queue, wallet sequenceReader) *allocator {
	return &allocator{queue: queue, wallet: wallet}
}

// Allocate returns req unchanged if it already has a token. Otherwise it
// reads the wallet sequence number, persists it as the token and returns the
// updated copy. On failure req keeps no token and nothing is stored.
func (a *allocator) Allocate(ctx context.Context, req *Request) (*Request, error) {
	if req.HasToken() {
		return req, nil
	}

	seqno, err := a.wallet.SequenceNumber(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read sequence number for token assignment")
	}

	assigned := req.WithToken(seqno)
	if err := a.queue.Persist(ctx, assigned); err != nil {
		return nil, errors.Wrap(err, "failed to persist idempotency token")
	}

	util.LogFromContext(ctx).Info().
		Uint64("token", seqno).
		Msg("Assigned idempotency token")

	return assigned, nil
}
