package memqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-withdrawer/internal/queue/memqueue"
	"github/chapool/go-withdrawer/internal/queue/queuetest"
	"github/chapool/go-withdrawer/internal/wallet/withdraw"
)

func TestStoreContract(t *testing.T) {
	queuetest.RunStoreTests(t, func(_ *testing.T) withdraw.Store {
		return memqueue.New(nil)
	})
}

func TestTimestampsFollowClock(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := time2.NewMockClock(start)
	q := memqueue.New(clock)
	ctx := context.Background()

	req := queuetest.NewRequest(t, 1)
	require.NoError(t, q.Enqueue(ctx, req))

	clock.Advance(time.Minute)
	require.NoError(t, q.RemoveHead(ctx, req.ID))

	all, err := q.List(ctx, withdraw.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, start, all[0].CreatedAt)
	require.NotNil(t, all[0].CompletedAt)
	assert.Equal(t, start.Add(time.Minute), *all[0].CompletedAt)
}

func TestEnqueueRejectsDuplicates(t *testing.T) {
	q := memqueue.New(nil)
	req := queuetest.NewRequest(t, 1)

	require.NoError(t, q.Enqueue(context.Background(), req))
	require.Error(t, q.Enqueue(context.Background(), req))
}
