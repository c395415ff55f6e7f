// Package memqueue keeps withdrawal requests in process memory. It is not
// durable and only suits tests and dry runs.
package memqueue

import (
	"context"
	"sync"

	"github.com/dropbox/godropbox/time2"
	"github.com/pkg/errors"
	"github/chapool/go-withdrawer/internal/wallet/withdraw"
)

type Queue struct {
	mu        sync.Mutex
	clock     time2.Clock
	pending   []*withdraw.Request
	completed []*withdraw.Request
}

var _ withdraw.Store = (*Queue)(nil)

func New(clock time2.Clock) *Queue {
	if clock == nil {
		clock = time2.DefaultClock
	}

	return &Queue{clock: clock}
}

func (q *Queue) Enqueue(_ context.Context, req *withdraw.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.indexOf(req.ID) >= 0 {
		return errors.Errorf("request %s already enqueued", req.ID)
	}

	stored := req.Clone()
	now := q.clock.Now()
	stored.Status = withdraw.StatusPending
	stored.CreatedAt = now
	stored.UpdatedAt = now
	stored.CompletedAt = nil
	q.pending = append(q.pending, stored)

	return nil
}

func (q *Queue) PeekHead(_ context.Context) (*withdraw.Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil, withdraw.ErrQueueEmpty
	}

	return q.pending[0].Clone(), nil
}

func (q *Queue) Persist(_ context.Context, req *withdraw.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexOf(req.ID)
	if idx < 0 {
		return errors.Wrapf(withdraw.ErrNotFound, "request %s", req.ID)
	}

	stored := q.pending[idx]
	if stored.Token != nil {
		if req.Token == nil || *req.Token != *stored.Token {
			return errors.Wrapf(withdraw.ErrTokenConflict, "request %s has token %d", req.ID, *stored.Token)
		}
		return nil
	}

	if req.Token != nil {
		token := *req.Token
		stored.Token = &token
		stored.UpdatedAt = q.clock.Now()
	}

	return nil
}

func (q *Queue) RemoveHead(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return withdraw.ErrQueueEmpty
	}

	head := q.pending[0]
	if head.ID != id {
		return errors.Wrapf(withdraw.ErrHeadMismatch, "head is %s, not %s", head.ID, id)
	}

	now := q.clock.Now()
	head.Status = withdraw.StatusCompleted
	head.UpdatedAt = now
	head.CompletedAt = &now

	q.pending = q.pending[1:]
	q.completed = append(q.completed, head)

	return nil
}

func (q *Queue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pending), nil
}

func (q *Queue) List(_ context.Context, opts withdraw.ListOptions) ([]*withdraw.Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var all []*withdraw.Request
	switch opts.Status {
	case withdraw.StatusPending:
		all = q.pending
	case withdraw.StatusCompleted:
		all = q.completed
	default:
		all = append(append([]*withdraw.Request{}, q.completed...), q.pending...)
	}

	out := make([]*withdraw.Request, 0, len(all))
	for _, req := range all {
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
		out = append(out, req.Clone())
	}

	return out, nil
}

func (q *Queue) indexOf(id string) int {
	for i, req := range q.pending {
		if req.ID == id {
			return i
		}
	}

	return -1
}
