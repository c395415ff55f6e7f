package withdrawals_test

import (
	"math/big"
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-withdrawer/internal/api"
	"github/chapool/go-withdrawer/internal/api/handlers/withdrawals"
	"github/chapool/go-withdrawer/internal/api/httperrors"
	"github/chapool/go-withdrawer/internal/test"
	"github/chapool/go-withdrawer/internal/wallet/ledger/ledgertest"
	"github/chapool/go-withdrawer/internal/wallet/withdraw"
)

const recipient = "0xaaaa000000000000000000000000000000000001"

func TestPostWithdrawal(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		payload := withdrawals.PostWithdrawalPayload{
			TokenKind: test.AssetKind,
			Amount:    "1.5",
			To:        recipient,
			Units:     true,
		}

		res := test.PerformRequest(t, s, "POST", "/api/v1/withdrawals", payload, nil)
		require.Equal(t, http.StatusCreated, res.Result().StatusCode)

		var created withdrawals.Withdrawal
		test.ParseResponseAndValidate(t, res, &created)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "1500000000", created.Amount)
		assert.Equal(t, "1.5", created.AmountUnits)
		assert.Equal(t, common.HexToAddress(recipient).Hex(), created.Destination)
		assert.Nil(t, created.Token)
		assert.Equal(t, string(withdraw.StatusPending), created.Status)

		head, err := s.Store.PeekHead(t.Context())
		require.NoError(t, err)
		assert.Equal(t, created.ID, head.ID)
	})
}

func TestPostWithdrawalRejects(t *testing.T) {
	tests := []struct {
		name     string
		payload  withdrawals.PostWithdrawalPayload
		wantType string
	}{
		{"unknown asset", withdrawals.PostWithdrawalPayload{TokenKind: "NOPE", Amount: "1", To: recipient}, httperrors.TypeUnknownAsset},
		{"bad address", withdrawals.PostWithdrawalPayload{TokenKind: test.AssetKind, Amount: "1", To: "not-an-address"}, httperrors.TypeInvalidRequest},
		{"zero amount", withdrawals.PostWithdrawalPayload{TokenKind: test.AssetKind, Amount: "0", To: recipient}, httperrors.TypeInvalidRequest},
		{"fractional base units", withdrawals.PostWithdrawalPayload{TokenKind: test.AssetKind, Amount: "1.5", To: recipient}, httperrors.TypeInvalidRequest},
		{"too many decimals", withdrawals.PostWithdrawalPayload{TokenKind: test.AssetKind, Amount: "0.0000000001", To: recipient, Units: true}, httperrors.TypeInvalidRequest},
	}

	test.WithTestServer(t, func(s *api.Server) {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				res := test.PerformRequest(t, s, "POST", "/api/v1/withdrawals", tt.payload, nil)
				require.Equal(t, http.StatusBadRequest, res.Result().StatusCode)

				var httpErr httperrors.HTTPError
				test.ParseResponseAndValidate(t, res, &httpErr)
				assert.Equal(t, tt.wantType, httpErr.Type)
			})
		}

		n, err := s.Store.Len(t.Context())
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestPostWithdrawalInvalidJSON(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRequest(t, s, "POST", "/api/v1/withdrawals", "just a string", nil)
		require.Equal(t, http.StatusBadRequest, res.Result().StatusCode)
	})
}

func TestGetWithdrawals(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		ctx := t.Context()

		first, err := s.EnqueueWithdrawal(ctx, test.AssetKind, "10", false, recipient)
		require.NoError(t, err)
		second, err := s.EnqueueWithdrawal(ctx, test.AssetKind, "20", false, recipient)
		require.NoError(t, err)

		require.NoError(t, s.Store.Persist(ctx, first.WithToken(3)))
		require.NoError(t, s.Store.RemoveHead(ctx, first.ID))

		res := test.PerformRequest(t, s, "GET", "/api/v1/withdrawals", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var list withdrawals.WithdrawalList
		test.ParseResponseAndValidate(t, res, &list)
		require.Len(t, list.Data, 2)
		assert.Equal(t, first.ID, list.Data[0].ID)
		assert.Equal(t, string(withdraw.StatusCompleted), list.Data[0].Status)
		require.NotNil(t, list.Data[0].Token)
		assert.Equal(t, uint64(3), *list.Data[0].Token)
		assert.Equal(t, second.ID, list.Data[1].ID)

		res = test.PerformRequest(t, s, "GET", "/api/v1/withdrawals?status=pending", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		list = withdrawals.WithdrawalList{}
		test.ParseResponseAndValidate(t, res, &list)
		require.Len(t, list.Data, 1)
		assert.Equal(t, second.ID, list.Data[0].ID)
	})
}

func TestGetWithdrawalsInvalidQuery(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		for _, path := range []string{
			"/api/v1/withdrawals?status=failed",
			"/api/v1/withdrawals?limit=0",
			"/api/v1/withdrawals?limit=abc",
		} {
			res := test.PerformRequest(t, s, "GET", path, nil, nil)
			assert.Equal(t, http.StatusBadRequest, res.Result().StatusCode, path)
		}
	})
}

func TestGetStatus(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRequest(t, s, "GET", "/api/v1/withdrawals/status", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var status withdrawals.Status
		test.ParseResponseAndValidate(t, res, &status)
		assert.False(t, status.EngineRunning)
		assert.Zero(t, status.QueueDepth)
	})

	sim := ledgertest.NewSimulator()
	sim.SetSequenceNumber(test.WalletAddress, 2)
	sim.SetBalance(test.WalletAddress, big.NewInt(900))

	test.WithTestServerEngine(t, sim, func(s *api.Server) {
		account, err := s.HotWallet.AssetAccount(test.AssetKind)
		require.NoError(t, err)
		sim.SetAssetBalance(account.Holding, big.NewInt(77))

		res := test.PerformRequest(t, s, "GET", "/api/v1/withdrawals/status", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var status withdrawals.Status
		test.ParseResponseAndValidate(t, res, &status)
		assert.True(t, status.EngineRunning)
		assert.Equal(t, test.WalletAddress.Hex(), status.Wallet)
		require.NotNil(t, status.Seqno)
		assert.Equal(t, uint64(2), *status.Seqno)
		assert.Equal(t, "900", status.Balance)
		require.Len(t, status.Assets, 1)
		assert.Equal(t, "77", status.Assets[0].Balance)
	})
}
