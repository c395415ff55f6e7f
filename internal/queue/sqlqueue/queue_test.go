package sqlqueue_test

import (
	"context"
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-withdrawer/internal/queue/queuetest"
	"github/chapool/go-withdrawer/internal/queue/sqlqueue"
	"github/chapool/go-withdrawer/internal/test"
	"github/chapool/go-withdrawer/internal/wallet/withdraw"
)

func TestStoreContractSQLite(t *testing.T) {
	queuetest.RunStoreTests(t, func(t *testing.T) withdraw.Store {
		t.Helper()

		return sqlqueue.New(test.NewTestSQLite(t), nil)
	})
}

func TestStoreContractPostgres(t *testing.T) {
	queuetest.RunStoreTests(t, func(t *testing.T) withdraw.Store {
		t.Helper()

		return sqlqueue.New(test.NewTestDatabase(t), nil)
	})
}

func TestQueueSurvivesReopen(t *testing.T) {
	test.WithTestSQLite(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := time2.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

		first := sqlqueue.New(db, clock)
		req := queuetest.NewRequest(t, 42)
		require.NoError(t, first.Enqueue(ctx, req))
		require.NoError(t, first.Persist(ctx, req.WithToken(17)))

		second := sqlqueue.New(db, clock)
		head, err := second.PeekHead(ctx)
		require.NoError(t, err)
		assert.Equal(t, req.ID, head.ID)
		require.NotNil(t, head.Token)
		assert.Equal(t, uint64(17), *head.Token)
		assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), head.CreatedAt)

		err = second.Persist(ctx, req.WithToken(18))
		require.ErrorIs(t, err, withdraw.ErrTokenConflict)
	})
}

func TestTokenRangeFollowsBigintColumn(t *testing.T) {
	test.WithTestSQLite(t, func(db *sql.DB) {
		ctx := context.Background()
		queue := sqlqueue.New(db, nil)

		req := queuetest.NewRequest(t, 1)
		require.NoError(t, queue.Enqueue(ctx, req))

		err := queue.Persist(ctx, req.WithToken(math.MaxInt64+1))
		require.ErrorIs(t, err, withdraw.ErrInvalidRequest)

		head, err := queue.PeekHead(ctx)
		require.NoError(t, err)
		assert.Nil(t, head.Token)

		require.NoError(t, queue.Persist(ctx, req.WithToken(math.MaxInt64)))
		head, err = queue.PeekHead(ctx)
		require.NoError(t, err)
		require.NotNil(t, head.Token)
		assert.Equal(t, uint64(math.MaxInt64), *head.Token)
	})
}
