// Package redisqueue stores withdrawal requests in Redis. Pending ids live in
// a list in FIFO order, every request is a JSON record under its own key and
// state changes run as optimistic WATCH/MULTI transactions.
package redisqueue

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github/chapool/go-withdrawer/internal/wallet/withdraw"
)

const maxTxRetries = 10

type record struct {
	ID          string     `json:"id"`
	TokenKind   string     `json:"token_kind"`
	Amount      string     `json:"amount"`
	Destination string     `json:"destination"`
	Token       *uint64    `json:"token,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func toRecord(req *withdraw.Request) record {
	return record{
		ID:          req.ID,
		TokenKind:   req.TokenKind,
		Amount:      req.Amount.String(),
		Destination: req.Destination.Hex(),
		Token:       req.Token,
		Status:      string(req.Status),
		CreatedAt:   req.CreatedAt,
		UpdatedAt:   req.UpdatedAt,
		CompletedAt: req.CompletedAt,
	}
}

func (r record) request() (*withdraw.Request, error) {
	amount, ok := new(big.Int).SetString(r.Amount, 10)
	if !ok {
		return nil, errors.Errorf("request %s has malformed amount %q", r.ID, r.Amount)
	}

	return &withdraw.Request{
		ID:          r.ID,
		TokenKind:   r.TokenKind,
		Amount:      amount,
		Destination: common.HexToAddress(r.Destination),
		Token:       r.Token,
		Status:      withdraw.Status(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		CompletedAt: r.CompletedAt,
	}, nil
}

type Queue struct {
	client redis.UniversalClient
	clock  time2.Clock
	prefix string
}

var _ withdraw.Store = (*Queue)(nil)

func New(client redis.UniversalClient, prefix string, clock time2.Clock) *Queue {
	if clock == nil {
		clock = time2.DefaultClock
	}

	if prefix == "" {
		prefix = "withdrawer"
	}

	return &Queue{client: client, clock: clock, prefix: prefix}
}

func (q *Queue) pendingKey() string          { return q.prefix + ":pending" }
func (q *Queue) completedKey() string        { return q.prefix + ":completed" }
func (q *Queue) idsKey() string              { return q.prefix + ":ids" }
func (q *Queue) requestKey(id string) string { return q.prefix + ":request:" + id }

func (q *Queue) Enqueue(ctx context.Context, req *withdraw.Request) error {
	now := q.clock.Now().UTC()
	rec := toRecord(req)
	rec.Token = nil
	rec.Status = string(withdraw.StatusPending)
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.CompletedAt = nil

	raw, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "failed to encode request")
	}

	key := q.requestKey(req.ID)

	return q.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return errors.Errorf("request %s already enqueued", req.ID)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			pipe.RPush(ctx, q.pendingKey(), req.ID)
			pipe.ZAdd(ctx, q.idsKey(), redis.Z{Score: 0, Member: req.ID})
			return nil
		})

		return err
	}, key)
}

func (q *Queue) PeekHead(ctx context.Context) (*withdraw.Request, error) {
	id, err := q.client.LIndex(ctx, q.pendingKey(), 0).Result()
	if errors.Is(err, redis.Nil) {
		return nil, withdraw.ErrQueueEmpty
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read queue head")
	}

	rec, err := q.load(ctx, q.client, id)
	if err != nil {
		return nil, err
	}

	return rec.request()
}

func (q *Queue) Persist(ctx context.Context, req *withdraw.Request) error {
	key := q.requestKey(req.ID)

	return q.watch(ctx, func(tx *redis.Tx) error {
		rec, err := q.load(ctx, tx, req.ID)
		if err != nil {
			return err
		}

		if rec.Token != nil {
			if req.Token != nil && *req.Token == *rec.Token {
				return nil
			}
			return errors.Wrapf(withdraw.ErrTokenConflict, "request %s already holds token %d", req.ID, *rec.Token)
		}

		if req.Token == nil {
			return nil
		}

		token := *req.Token
		rec.Token = &token
		rec.UpdatedAt = q.clock.Now().UTC()

		raw, err := json.Marshal(rec)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			return nil
		})

		return err
	}, key)
}

func (q *Queue) RemoveHead(ctx context.Context, id string) error {
	key := q.requestKey(id)

	return q.watch(ctx, func(tx *redis.Tx) error {
		head, err := tx.LIndex(ctx, q.pendingKey(), 0).Result()
		if errors.Is(err, redis.Nil) {
			return withdraw.ErrQueueEmpty
		}
		if err != nil {
			return errors.Wrap(err, "failed to read queue head")
		}
		if head != id {
			return errors.Wrapf(withdraw.ErrHeadMismatch, "head is %s, not %s", head, id)
		}

		rec, err := q.load(ctx, tx, id)
		if err != nil {
			return err
		}

		now := q.clock.Now().UTC()
		rec.Status = string(withdraw.StatusCompleted)
		rec.UpdatedAt = now
		rec.CompletedAt = &now

		raw, err := json.Marshal(rec)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LPop(ctx, q.pendingKey())
			pipe.RPush(ctx, q.completedKey(), id)
			pipe.Set(ctx, key, raw, 0)
			return nil
		})

		return err
	}, q.pendingKey(), key)
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.pendingKey()).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to count pending requests")
	}

	return int(n), nil
}

func (q *Queue) List(ctx context.Context, opts withdraw.ListOptions) ([]*withdraw.Request, error) {
	stop := int64(-1)
	if opts.Limit > 0 {
		stop = int64(opts.Limit) - 1
	}

	var (
		ids []string
		err error
	)
	switch opts.Status {
	case withdraw.StatusPending:
		ids, err = q.client.LRange(ctx, q.pendingKey(), 0, stop).Result()
	case withdraw.StatusCompleted:
		ids, err = q.client.LRange(ctx, q.completedKey(), 0, stop).Result()
	default:
		ids, err = q.client.ZRange(ctx, q.idsKey(), 0, stop).Result()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to list request ids")
	}

	if len(ids) == 0 {
		return []*withdraw.Request{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = q.requestKey(id)
	}

	values, err := q.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load requests")
	}

	out := make([]*withdraw.Request, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			return nil, errors.Errorf("request %s is missing its record", ids[i])
		}

		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, errors.Wrapf(err, "failed to decode request %s", ids[i])
		}

		req, err := rec.request()
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}

	return out, nil
}

func (q *Queue) load(ctx context.Context, c redis.Cmdable, id string) (record, error) {
	raw, err := c.Get(ctx, q.requestKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return record{}, errors.Wrapf(withdraw.ErrNotFound, "request %s", id)
	}
	if err != nil {
		return record{}, errors.Wrapf(err, "failed to load request %s", id)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return record{}, errors.Wrapf(err, "failed to decode request %s", id)
	}

	return rec, nil
}

// watch runs fn inside WATCH on keys and retries when another client
// touched them before EXEC.
func (q *Queue) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for range maxTxRetries {
		err := q.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return err
	}

	return errors.Errorf("redis transaction on %v kept conflicting", keys)
}
