// Package queuetest holds the behaviour every withdraw.Store backend must share.
package queuetest

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-withdrawer/internal/wallet/withdraw"
)

// NewRequest builds a valid pending request for tests.
func NewRequest(t *testing.T, amount int64) *withdraw.Request {
	t.Helper()

	req, err := withdraw.NewRequest("ENERGY", big.NewInt(amount), common.HexToAddress("0xaaaa000000000000000000000000000000000001"))
	require.NoError(t, err)

	return req
}

// RunStoreTests runs the shared store contract against stores built by newStore.
// Each call of newStore must return an empty store.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) withdraw.Store) {
	t.Helper()

	t.Run("EmptyQueue", func(t *testing.T) { testEmptyQueue(t, newStore(t)) })
	t.Run("FIFO", func(t *testing.T) { testFIFO(t, newStore(t)) })
	t.Run("RemoveHeadOnlyRemovesHead", func(t *testing.T) { testRemoveHeadMismatch(t, newStore(t)) })
	t.Run("TokenIsImmutable", func(t *testing.T) { testTokenImmutable(t, newStore(t)) })
	t.Run("PersistOnlyStoresToken", func(t *testing.T) { testPersistOnlyToken(t, newStore(t)) })
	t.Run("PersistUnknownRequest", func(t *testing.T) { testPersistUnknown(t, newStore(t)) })
	t.Run("List", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("LargeAmounts", func(t *testing.T) { testLargeAmount(t, newStore(t)) })
}

func testEmptyQueue(t *testing.T, store withdraw.Store) {
	ctx := context.Background()

	_, err := store.PeekHead(ctx)
	require.ErrorIs(t, err, withdraw.ErrQueueEmpty)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	err = store.RemoveHead(ctx, "missing")
	require.Error(t, err)
}

func testFIFO(t *testing.T, store withdraw.Store) {
	ctx := context.Background()
	reqs := []*withdraw.Request{NewRequest(t, 1), NewRequest(t, 2), NewRequest(t, 3)}

	for _, req := range reqs {
		require.NoError(t, store.Enqueue(ctx, req))
	}

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for i, want := range reqs {
		head, err := store.PeekHead(ctx)
		require.NoError(t, err)
		assert.Equal(t, want.ID, head.ID)
		assert.Equal(t, want.TokenKind, head.TokenKind)
		assert.Equal(t, want.Destination, head.Destination)
		assert.Equal(t, 0, want.Amount.Cmp(head.Amount))
		assert.Nil(t, head.Token)
		assert.Equal(t, withdraw.StatusPending, head.Status)

		require.NoError(t, store.RemoveHead(ctx, head.ID))

		n, err := store.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, len(reqs)-i-1, n)
	}

	_, err = store.PeekHead(ctx)
	require.ErrorIs(t, err, withdraw.ErrQueueEmpty)
}

func testRemoveHeadMismatch(t *testing.T, store withdraw.Store) {
	ctx := context.Background()
	first, second := NewRequest(t, 1), NewRequest(t, 2)
	require.NoError(t, store.Enqueue(ctx, first))
	require.NoError(t, store.Enqueue(ctx, second))

	err := store.RemoveHead(ctx, second.ID)
	require.ErrorIs(t, err, withdraw.ErrHeadMismatch)

	head, err := store.PeekHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, head.ID)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func testTokenImmutable(t *testing.T, store withdraw.Store) {
	ctx := context.Background()
	req := NewRequest(t, 1)
	require.NoError(t, store.Enqueue(ctx, req))

	// zero is a valid sequence number
	require.NoError(t, store.Persist(ctx, req.WithToken(0)))

	head, err := store.PeekHead(ctx)
	require.NoError(t, err)
	require.NotNil(t, head.Token)
	assert.Equal(t, uint64(0), *head.Token)

	require.NoError(t, store.Persist(ctx, req.WithToken(0)))

	err = store.Persist(ctx, req.WithToken(1))
	require.ErrorIs(t, err, withdraw.ErrTokenConflict)

	err = store.Persist(ctx, req)
	require.ErrorIs(t, err, withdraw.ErrTokenConflict)

	head, err = store.PeekHead(ctx)
	require.NoError(t, err)
	require.NotNil(t, head.Token)
	assert.Equal(t, uint64(0), *head.Token)
}

func testPersistOnlyToken(t *testing.T, store withdraw.Store) {
	ctx := context.Background()
	req := NewRequest(t, 10)
	require.NoError(t, store.Enqueue(ctx, req))

	changed := req.WithToken(7)
	changed.Amount = big.NewInt(999)
	changed.Destination = common.HexToAddress("0x01")
	require.NoError(t, store.Persist(ctx, changed))

	head, err := store.PeekHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), head.Amount.Int64())
	assert.Equal(t, req.Destination, head.Destination)
	require.NotNil(t, head.Token)
	assert.Equal(t, uint64(7), *head.Token)
}

func testPersistUnknown(t *testing.T, store withdraw.Store) {
	err := store.Persist(context.Background(), NewRequest(t, 1).WithToken(1))
	require.ErrorIs(t, err, withdraw.ErrNotFound)
}

func testList(t *testing.T, store withdraw.Store) {
	ctx := context.Background()
	first, second, third := NewRequest(t, 1), NewRequest(t, 2), NewRequest(t, 3)
	for _, req := range []*withdraw.Request{first, second, third} {
		require.NoError(t, store.Enqueue(ctx, req))
	}

	require.NoError(t, store.Persist(ctx, first.WithToken(4)))
	require.NoError(t, store.RemoveHead(ctx, first.ID))

	all, err := store.List(ctx, withdraw.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, withdraw.StatusCompleted, all[0].Status)
	assert.NotNil(t, all[0].CompletedAt)
	require.NotNil(t, all[0].Token)
	assert.Equal(t, uint64(4), *all[0].Token)
	assert.Equal(t, second.ID, all[1].ID)
	assert.Equal(t, third.ID, all[2].ID)

	pending, err := store.List(ctx, withdraw.ListOptions{Status: withdraw.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, second.ID, pending[0].ID)
	assert.Nil(t, pending[0].CompletedAt)

	completed, err := store.List(ctx, withdraw.ListOptions{Status: withdraw.StatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, first.ID, completed[0].ID)

	limited, err := store.List(ctx, withdraw.ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func testLargeAmount(t *testing.T, store withdraw.Store) {
	ctx := context.Background()
	amount, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)

	req, err := withdraw.NewRequest("ENERGY", amount, common.HexToAddress("0xaaaa000000000000000000000000000000000001"))
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(ctx, req))

	head, err := store.PeekHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, amount.Cmp(head.Amount))
}
