package ledger_test

import (
	"context"
	"math/big"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-withdrawer/internal/wallet/ledger"
)

var (
	testWallet  = common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")
	testHolding = common.HexToAddress("0xbbbb000000000000000000000000000000000002")
)

type testEffect struct {
	Destination common.Address `json:"destination"`
	Value       *hexutil.Big   `json:"value"`
}

type testInMessage struct {
	Source *common.Address `json:"source"`
	Body   hexutil.Bytes   `json:"body"`
}

type testTransaction struct {
	Hash        common.Hash    `json:"hash"`
	LogicalTime hexutil.Uint64 `json:"lt"`
	InMessage   *testInMessage `json:"inMessage"`
	OutMessages []testEffect   `json:"outMessages"`
}

type ledgerAPI struct {
	seqnoCalls int
	lastRaw    []byte
	lastLimit  uint64
}

func (api *ledgerAPI) GetSeqno(_ context.Context, wallet common.Address) (hexutil.Uint64, error) {
	api.seqnoCalls++
	if wallet != testWallet {
		return 0, errors.New("unknown account")
	}

	return 42, nil
}

func (api *ledgerAPI) GetBalance(_ context.Context, _ common.Address) (*hexutil.Big, error) {
	return (*hexutil.Big)(big.NewInt(1_000_000_000)), nil
}

func (api *ledgerAPI) GetAssetBalance(_ context.Context, _ common.Address) (*hexutil.Big, error) {
	return (*hexutil.Big)(big.NewInt(77)), nil
}

func (api *ledgerAPI) GetTransactions(_ context.Context, _ common.Address, limit hexutil.Uint64) ([]testTransaction, error) {
	api.lastLimit = uint64(limit)
	source := testWallet

	return []testTransaction{
		{
			Hash:        common.HexToHash("0x01"),
			LogicalTime: 10,
			InMessage:   &testInMessage{Source: &source, Body: []byte{0xc0}},
			OutMessages: []testEffect{{Destination: testHolding, Value: (*hexutil.Big)(big.NewInt(5))}},
		},
		{
			Hash:        common.HexToHash("0x02"),
			LogicalTime: 9,
			InMessage:   &testInMessage{},
		},
		{
			Hash:        common.HexToHash("0x03"),
			LogicalTime: 8,
		},
	}, nil
}

func (api *ledgerAPI) SendRawTransaction(_ context.Context, raw hexutil.Bytes) (common.Hash, error) {
	api.lastRaw = raw

	return common.HexToHash("0xabcdef"), nil
}

func newTestNode(t *testing.T) (*ledgerAPI, string) {
	t.Helper()

	api := &ledgerAPI{}
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("ledger", api))

	httpSrv := httptest.NewServer(srv)
	t.Cleanup(func() {
		httpSrv.Close()
		srv.Stop()
	})

	return api, httpSrv.URL
}

func deadURL(t *testing.T) string {
	t.Helper()

	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	return url
}

func TestClientReadsAndSubmits(t *testing.T) {
	api, url := newTestNode(t)
	ctx := context.Background()

	client, err := ledger.Dial(ctx, []string{url}, time.Second)
	require.NoError(t, err)
	defer client.Close()

	seqno, err := client.GetSequenceNumber(ctx, testWallet)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), seqno)

	balance, err := client.GetBalance(ctx, testWallet)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000_000), balance.Int64())

	assetBalance, err := client.GetAssetBalance(ctx, testHolding)
	require.NoError(t, err)
	assert.Equal(t, int64(77), assetBalance.Int64())

	records, err := client.GetRecentTransactions(ctx, testHolding, 20)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), api.lastLimit)
	require.Len(t, records, 3)
	assert.Equal(t, testWallet, records[0].Source)
	assert.Equal(t, []byte{0xc0}, records[0].Payload)
	assert.Equal(t, uint64(10), records[0].LogicalTime)
	assert.Equal(t, common.HexToHash("0x01").Hex(), records[0].Reference)
	require.Len(t, records[0].Effects, 1)
	assert.Equal(t, testHolding, records[0].Effects[0].Destination)
	assert.Equal(t, int64(5), records[0].Effects[0].Amount.Int64())
	assert.Equal(t, common.Address{}, records[1].Source)
	assert.Empty(t, records[2].Effects)

	require.NoError(t, client.SubmitSignedTransaction(ctx, []byte{1, 2, 3}))
	assert.Equal(t, []byte{1, 2, 3}, api.lastRaw)
}

func TestClientFailsOverOnTransportError(t *testing.T) {
	api, url := newTestNode(t)
	ctx := context.Background()

	client, err := ledger.Dial(ctx, []string{deadURL(t), url}, time.Second)
	require.NoError(t, err)
	defer client.Close()

	seqno, err := client.GetSequenceNumber(ctx, testWallet)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), seqno)
	assert.Equal(t, 1, api.seqnoCalls)
}

func TestClientDoesNotFailOverOnNodeError(t *testing.T) {
	first, firstURL := newTestNode(t)
	second, secondURL := newTestNode(t)
	ctx := context.Background()

	client, err := ledger.Dial(ctx, []string{firstURL, secondURL}, time.Second)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.GetSequenceNumber(ctx, common.HexToAddress("0x01"))
	require.Error(t, err)
	assert.Equal(t, 1, first.seqnoCalls)
	assert.Equal(t, 0, second.seqnoCalls)
}

func TestClientAllNodesDown(t *testing.T) {
	ctx := context.Background()

	client, err := ledger.Dial(ctx, []string{deadURL(t), deadURL(t)}, time.Second)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.GetBalance(ctx, testWallet)
	require.Error(t, err)
}

func TestDialRequiresURL(t *testing.T) {
	_, err := ledger.Dial(context.Background(), nil, time.Second)
	require.Error(t, err)
}

func TestGetRecentTransactionsRejectsBadLimit(t *testing.T) {
	_, url := newTestNode(t)

	client, err := ledger.Dial(context.Background(), []string{url}, time.Second)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.GetRecentTransactions(context.Background(), testHolding, 0)
	require.Error(t, err)
}
