// Package sqlqueue stores withdrawal requests in the withdrawal_requests table.
// It works on PostgreSQL and SQLite; placeholders appear in ascending order
// and are never reused within a statement so both drivers bind them alike.
package sqlqueue

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/aarondl/sqlboiler/v4/boil"
	"github.com/aarondl/sqlboiler/v4/queries"
	"github.com/dropbox/godropbox/time2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github/chapool/go-withdrawer/internal/util/db"
	"github/chapool/go-withdrawer/internal/wallet/withdraw"
)

const columns = `id, token_kind, amount, destination_address, idempotency_token, status, created_at, updated_at, completed_at`

type requestRow struct {
	ID                 string     `boil:"id"`
	TokenKind          string     `boil:"token_kind"`
	Amount             string     `boil:"amount"`
	DestinationAddress string     `boil:"destination_address"`
	IdempotencyToken   null.Int64 `boil:"idempotency_token"`
	Status             string     `boil:"status"`
	CreatedAt          time.Time  `boil:"created_at"`
	UpdatedAt          time.Time  `boil:"updated_at"`
	CompletedAt        null.Time  `boil:"completed_at"`
}

func (r *requestRow) request() (*withdraw.Request, error) {
	amount, ok := new(big.Int).SetString(r.Amount, 10)
	if !ok {
		return nil, errors.Errorf("request %s has malformed amount %q", r.ID, r.Amount)
	}

	req := &withdraw.Request{
		ID:          r.ID,
		TokenKind:   r.TokenKind,
		Amount:      amount,
		Destination: common.HexToAddress(r.DestinationAddress),
		Status:      withdraw.Status(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}

	if r.IdempotencyToken.Valid {
		if r.IdempotencyToken.Int64 < 0 {
			return nil, errors.Errorf("request %s has negative token %d", r.ID, r.IdempotencyToken.Int64)
		}
		token := uint64(r.IdempotencyToken.Int64)
		req.Token = &token
	}

	if r.CompletedAt.Valid {
		completedAt := r.CompletedAt.Time.UTC()
		req.CompletedAt = &completedAt
	}

	return req, nil
}

type Queue struct {
	db    *sql.DB
	clock time2.Clock
}

var _ withdraw.Store = (*Queue)(nil)

func New(db *sql.DB, clock time2.Clock) *Queue {
	if clock == nil {
		clock = time2.DefaultClock
	}

	return &Queue{db: db, clock: clock}
}

func (q *Queue) now() time.Time {
	return q.clock.Now().UTC()
}

func (q *Queue) Enqueue(ctx context.Context, req *withdraw.Request) error {
	now := q.now()

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO withdrawal_requests (id, token_kind, amount, destination_address, idempotency_token, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULL, 'pending', $5, $6)`,
		req.ID, req.TokenKind, req.Amount.String(), req.Destination.Hex(), now, now,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to insert request %s", req.ID)
	}

	return nil
}

func findHead(ctx context.Context, exec boil.ContextExecutor) (*requestRow, error) {
	var row requestRow
	err := queries.Raw(`SELECT `+columns+` FROM withdrawal_requests WHERE status = 'pending' ORDER BY id ASC LIMIT 1`).
		Bind(ctx, exec, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, withdraw.ErrQueueEmpty
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query queue head")
	}

	return &row, nil
}

func findByID(ctx context.Context, exec boil.ContextExecutor, id string) (*requestRow, error) {
	var row requestRow
	err := queries.Raw(`SELECT `+columns+` FROM withdrawal_requests WHERE id = $1`, id).
		Bind(ctx, exec, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(withdraw.ErrNotFound, "request %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query request %s", id)
	}

	return &row, nil
}

func (q *Queue) PeekHead(ctx context.Context) (*withdraw.Request, error) {
	row, err := findHead(ctx, q.db)
	if err != nil {
		return nil, err
	}

	return row.request()
}

// Persist stores req's token if the request has none yet. The conditional
// update makes assignment a single atomic step.
func (q *Queue) Persist(ctx context.Context, req *withdraw.Request) error {
	return db.WithTransaction(ctx, q.db, func(tx boil.ContextExecutor) error {
		if req.Token != nil {
			// idempotency_token is a signed BIGINT
			if *req.Token > math.MaxInt64 {
				return errors.Wrapf(withdraw.ErrInvalidRequest, "token %d does not fit the idempotency_token column", *req.Token)
			}
			token := int64(*req.Token)
			res, err := tx.ExecContext(ctx, `
				UPDATE withdrawal_requests SET idempotency_token = $1, updated_at = $2
				WHERE id = $3 AND idempotency_token IS NULL`,
				token, q.now(), req.ID,
			)
			if err != nil {
				return errors.Wrapf(err, "failed to store token of request %s", req.ID)
			}

			affected, err := res.RowsAffected()
			if err != nil {
				return errors.Wrap(err, "failed to read affected rows")
			}
			if affected == 1 {
				return nil
			}
		}

		row, err := findByID(ctx, tx, req.ID)
		if err != nil {
			return err
		}

		if !row.IdempotencyToken.Valid {
			return nil
		}

		stored := row.IdempotencyToken.Int64
		if req.Token == nil || stored < 0 || uint64(stored) != *req.Token {
			return errors.Wrapf(withdraw.ErrTokenConflict, "request %s has token %d", req.ID, stored)
		}

		return nil
	})
}

func (q *Queue) RemoveHead(ctx context.Context, id string) error {
	return db.WithTransaction(ctx, q.db, func(tx boil.ContextExecutor) error {
		head, err := findHead(ctx, tx)
		if err != nil {
			return err
		}

		if head.ID != id {
			return errors.Wrapf(withdraw.ErrHeadMismatch, "head is %s, not %s", head.ID, id)
		}

		now := q.now()
		res, err := tx.ExecContext(ctx, `
			UPDATE withdrawal_requests SET status = 'completed', updated_at = $1, completed_at = $2
			WHERE id = $3 AND status = 'pending'`,
			now, now, id,
		)
		if err != nil {
			return errors.Wrapf(err, "failed to complete request %s", id)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "failed to read affected rows")
		}
		if affected != 1 {
			return errors.Wrapf(withdraw.ErrHeadMismatch, "request %s is no longer pending", id)
		}

		return nil
	})
}

type countRow struct {
	Count int `boil:"count"`
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	var row countRow
	if err := queries.Raw(`SELECT COUNT(*) AS count FROM withdrawal_requests WHERE status = 'pending'`).
		Bind(ctx, q.db, &row); err != nil {
		return 0, errors.Wrap(err, "failed to count pending requests")
	}

	return row.Count, nil
}

func (q *Queue) List(ctx context.Context, opts withdraw.ListOptions) ([]*withdraw.Request, error) {
	query := `SELECT ` + columns + ` FROM withdrawal_requests`
	var args []interface{}

	if opts.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(opts.Status))
	}

	query += ` ORDER BY id ASC`
	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, opts.Limit)
	}

	var rows []*requestRow
	if err := queries.Raw(query, args...).Bind(ctx, q.db, &rows); err != nil {
		return nil, errors.Wrap(err, "failed to list requests")
	}

	reqs := make([]*withdraw.Request, 0, len(rows))
	for _, row := range rows {
		req, err := row.request()
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}

	return reqs, nil
}
