package scan_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-withdrawer/internal/wallet/ledger"
	"github/chapool/go-withdrawer/internal/wallet/ledger/ledgertest"
	"github/chapool/go-withdrawer/internal/wallet/scan"
	"github/chapool/go-withdrawer/internal/wallet/transfer"
)

var (
	wallet    = common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")
	holding   = common.HexToAddress("0xbbbb000000000000000000000000000000000002")
	recipient = common.HexToAddress("0xaaaa000000000000000000000000000000000001")
	stranger  = common.HexToAddress("0xcccc000000000000000000000000000000000003")
)

func payload(t *testing.T, op uint32, token uint64) []byte {
	t.Helper()

	b, err := rlp.EncodeToBytes(&transfer.Payload{
		Op:              op,
		Token:           token,
		Amount:          big.NewInt(100),
		Destination:     recipient,
		ResponseAddress: wallet,
	})
	require.NoError(t, err)

	return b
}

func effect(to common.Address) ledger.Effect {
	return ledger.Effect{Destination: to, Amount: big.NewInt(1)}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		effects []ledger.Effect
		want    scan.Result
	}{
		{"no effects", nil, scan.Bounced},
		{"single effect back to wallet", []ledger.Effect{effect(wallet)}, scan.Bounced},
		{"all effects back to wallet", []ledger.Effect{effect(wallet), effect(wallet)}, scan.Bounced},
		{"single effect to recipient", []ledger.Effect{effect(recipient)}, scan.Confirmed},
		{"recipient and excess", []ledger.Effect{effect(recipient), effect(wallet)}, scan.Confirmed},
		{"excess first", []ledger.Effect{effect(wallet), effect(recipient)}, scan.Confirmed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := ledgertest.NewSimulator()
			sim.AddRecord(holding, ledger.TransactionRecord{
				Source:    wallet,
				Payload:   payload(t, transfer.OpTransfer, 5),
				Effects:   tt.effects,
				Reference: "0xmatch",
			})

			outcome, err := scan.NewService(sim, 20).Check(context.Background(), holding, wallet, 5)
			require.NoError(t, err)
			assert.Equal(t, tt.want, outcome.Result)
			assert.Equal(t, "0xmatch", outcome.Reference)
		})
	}
}

func TestCheckSkipsUnrelatedRecords(t *testing.T) {
	sim := ledgertest.NewSimulator()
	sim.AddRecord(holding, ledger.TransactionRecord{
		Source:  wallet,
		Payload: payload(t, transfer.OpTransfer, 4),
		Effects: []ledger.Effect{effect(recipient)},
	})
	sim.AddRecord(holding, ledger.TransactionRecord{
		Source:  stranger,
		Payload: payload(t, transfer.OpTransfer, 5),
		Effects: []ledger.Effect{effect(recipient)},
	})
	sim.AddRecord(holding, ledger.TransactionRecord{Source: wallet, Payload: []byte("garbage")})
	sim.AddRecord(holding, ledger.TransactionRecord{Source: wallet, Payload: payload(t, 0x7362d09c, 5)})
	sim.AddRecord(holding, ledger.TransactionRecord{Source: wallet})

	outcome, err := scan.NewService(sim, 20).Check(context.Background(), holding, wallet, 5)
	require.NoError(t, err)
	assert.Equal(t, scan.NotFound, outcome.Result)
}

func TestCheckFirstMatchWins(t *testing.T) {
	sim := ledgertest.NewSimulator()
	sim.AddRecord(holding, ledger.TransactionRecord{
		Source:    wallet,
		Payload:   payload(t, transfer.OpTransfer, 5),
		Effects:   []ledger.Effect{effect(recipient)},
		Reference: "older",
	})
	sim.AddRecord(holding, ledger.TransactionRecord{
		Source:    wallet,
		Payload:   payload(t, transfer.OpTransfer, 5),
		Effects:   []ledger.Effect{effect(wallet)},
		Reference: "newer",
	})

	outcome, err := scan.NewService(sim, 20).Check(context.Background(), holding, wallet, 5)
	require.NoError(t, err)
	assert.Equal(t, scan.Bounced, outcome.Result)
	assert.Equal(t, "newer", outcome.Reference)
}

func TestCheckRespectsWindow(t *testing.T) {
	sim := ledgertest.NewSimulator()
	sim.AddRecord(holding, ledger.TransactionRecord{
		Source:  wallet,
		Payload: payload(t, transfer.OpTransfer, 5),
		Effects: []ledger.Effect{effect(recipient)},
	})
	for i := 0; i < 3; i++ {
		sim.AddRecord(holding, ledger.TransactionRecord{Source: stranger})
	}

	outcome, err := scan.NewService(sim, 3).Check(context.Background(), holding, wallet, 5)
	require.NoError(t, err)
	assert.Equal(t, scan.NotFound, outcome.Result)

	outcome, err = scan.NewService(sim, 4).Check(context.Background(), holding, wallet, 5)
	require.NoError(t, err)
	assert.Equal(t, scan.Confirmed, outcome.Result)
}

func TestCheckGatewayError(t *testing.T) {
	sim := ledgertest.NewSimulator()
	sim.FailNext(ledgertest.MethodGetRecentTransactions, ledgertest.ErrTransient)

	_, err := scan.NewService(sim, 20).Check(context.Background(), holding, wallet, 5)
	require.ErrorIs(t, err, ledgertest.ErrTransient)
}
