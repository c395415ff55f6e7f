package withdraw_test

import (
	"bytes"
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-withdrawer/internal/alert"
	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/internal/queue/memqueue"
	"github/chapool/go-withdrawer/internal/wallet/address"
	"github/chapool/go-withdrawer/internal/wallet/hotwallet"
	"github/chapool/go-withdrawer/internal/wallet/ledger/ledgertest"
	"github/chapool/go-withdrawer/internal/wallet/scan"
	"github/chapool/go-withdrawer/internal/wallet/seed"
	"github/chapool/go-withdrawer/internal/wallet/signer"
	"github/chapool/go-withdrawer/internal/wallet/transfer"
	"github/chapool/go-withdrawer/internal/wallet/withdraw"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

var (
	hotWalletAddress = common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")
	assetMaster      = common.HexToAddress("0x1000000000000000000000000000000000000001")
	recipient        = common.HexToAddress("0xaaaa000000000000000000000000000000000001")
	feeReserve       = big.NewInt(50_000_000)
)

type recordingAlerter struct {
	mu       sync.Mutex
	alerts   []alert.Alert
	attempts int
	// failures is the number of upcoming sends that fail.
	failures int
}

func (r *recordingAlerter) Send(_ context.Context, a alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts++
	if r.failures > 0 {
		r.failures--
		return errors.New("webhook unavailable")
	}

	r.alerts = append(r.alerts, a)
	return nil
}

func (r *recordingAlerter) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.attempts
}

func (r *recordingAlerter) Alerts() []alert.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]alert.Alert(nil), r.alerts...)
}

type fixture struct {
	sim       *ledgertest.Simulator
	queue     *memqueue.Queue
	alerter   *recordingAlerter
	hotWallet hotwallet.Service
	holding   common.Address
	seed      seed.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sim := ledgertest.NewSimulator()
	seedManager := seed.NewManager()
	require.NoError(t, seedManager.Initialize(testMnemonic, ""))

	hw, err := hotwallet.NewService(context.Background(), sim, seedManager, address.NewService(), config.Wallet{
		DerivationPath: address.DefaultPath,
		Assets: map[string]config.Asset{
			"ENERGY": {Master: assetMaster.Hex(), Decimals: 9},
		},
	})
	require.NoError(t, err)
	require.Equal(t, hotWalletAddress, hw.Wallet().Address)

	account, err := hw.AssetAccount("ENERGY")
	require.NoError(t, err)

	sim.SetSequenceNumber(hotWalletAddress, 5)
	sim.SetBalance(hotWalletAddress, big.NewInt(1_000_000_000))
	sim.SetAssetBalance(account.Holding, big.NewInt(10_000_000_000))

	return &fixture{
		sim:       sim,
		queue:     memqueue.New(nil),
		alerter:   &recordingAlerter{},
		hotWallet: hw,
		holding:   account.Holding,
		seed:      seedManager,
	}
}

func (f *fixture) engine(queue withdraw.Queue) withdraw.Service {
	if queue == nil {
		queue = f.queue
	}

	return withdraw.NewService(
		queue,
		f.hotWallet,
		scan.NewService(f.sim, 20),
		transfer.NewService(signer.NewService(f.seed, address.NewService(), address.DefaultPath)),
		f.sim,
		f.alerter,
		nil,
		withdraw.Config{FeeReserve: feeReserve, AttachedValue: big.NewInt(50_000_000)},
	)
}

func (f *fixture) enqueue(t *testing.T, amount int64) *withdraw.Request {
	t.Helper()

	req, err := withdraw.NewRequest("ENERGY", big.NewInt(amount), recipient)
	require.NoError(t, err)
	require.NoError(t, f.queue.Enqueue(context.Background(), req))

	return req
}

func (f *fixture) head(t *testing.T) *withdraw.Request {
	t.Helper()

	head, err := f.queue.PeekHead(context.Background())
	require.NoError(t, err)

	return head
}

func tick(t *testing.T, engine withdraw.Service, want withdraw.Decision) withdraw.TickResult {
	t.Helper()

	result, err := engine.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, result.Decision)

	return result
}

func TestScenarioHappyPath(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(nil)
	req := f.enqueue(t, 1_500_000_000)

	result := tick(t, engine, withdraw.DecisionAssigned)
	require.NotNil(t, result.Token)
	assert.Equal(t, uint64(5), *result.Token)
	assert.Equal(t, req.ID, result.RequestID)
	assert.Empty(t, f.sim.Submitted())
	require.NotNil(t, f.head(t).Token)
	assert.Equal(t, uint64(5), *f.head(t).Token)

	submitted := tick(t, engine, withdraw.DecisionSubmitted)
	require.Len(t, f.sim.Submitted(), 1)
	env := f.sim.Submitted()[0]
	assert.Equal(t, uint64(5), env.Seqno)
	assert.Equal(t, f.holding, env.To)
	payload, err := transfer.DecodePayload(env.Body)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), payload.Token)
	assert.Equal(t, recipient, payload.Destination)
	assert.Equal(t, hotWalletAddress, payload.ResponseAddress)

	// sequence number has not moved yet: same transfer again, nothing else changes
	again := tick(t, engine, withdraw.DecisionSubmitted)
	assert.Equal(t, submitted.Reference, again.Reference)
	require.Len(t, f.sim.Submitted(), 2)
	assert.Equal(t, f.sim.Submitted()[0], f.sim.Submitted()[1])
	assert.Equal(t, 0, f.sim.Calls(ledgertest.MethodGetRecentTransactions))

	assert.Equal(t, 1, f.sim.ExecutePending())

	confirmed := tick(t, engine, withdraw.DecisionConfirmed)
	assert.Equal(t, uint64(6), confirmed.Seqno)
	assert.Equal(t, submitted.Reference, confirmed.Reference)

	tick(t, engine, withdraw.DecisionIdle)
	assert.Equal(t, int64(8_500_000_000), f.sim.AssetBalanceOf(f.holding).Int64())

	completed, err := f.queue.List(context.Background(), withdraw.ListOptions{Status: withdraw.StatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, req.ID, completed[0].ID)
	assert.Empty(t, f.alerter.Alerts())
}

func TestScenarioInsufficientAsset(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(nil)
	f.sim.SetAssetBalance(f.holding, big.NewInt(100))
	f.enqueue(t, 101)

	tick(t, engine, withdraw.DecisionAssigned)

	for i := 0; i < 10; i++ {
		tick(t, engine, withdraw.DecisionInsufficientAsset)
		head := f.head(t)
		require.NotNil(t, head.Token)
		assert.Equal(t, uint64(5), *head.Token)
	}
	assert.Empty(t, f.sim.Submitted())

	// amount equal to the balance is enough
	f.sim.SetAssetBalance(f.holding, big.NewInt(101))
	tick(t, engine, withdraw.DecisionSubmitted)
}

func TestInsufficientFeeUsesStrictReserve(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(nil)
	f.sim.SetBalance(hotWalletAddress, feeReserve)
	f.enqueue(t, 1)

	tick(t, engine, withdraw.DecisionAssigned)
	tick(t, engine, withdraw.DecisionInsufficientFee)
	assert.Equal(t, 0, f.sim.Calls(ledgertest.MethodGetAssetBalance))
	assert.Empty(t, f.sim.Submitted())

	f.sim.SetBalance(hotWalletAddress, new(big.Int).Add(feeReserve, big.NewInt(1)))
	tick(t, engine, withdraw.DecisionSubmitted)
}

func TestScenarioBounce(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(nil)
	f.sim.BounceTo(recipient)
	req := f.enqueue(t, 1_000)

	tick(t, engine, withdraw.DecisionAssigned)
	tick(t, engine, withdraw.DecisionSubmitted)
	f.sim.ExecutePending()

	bounced := tick(t, engine, withdraw.DecisionBounced)
	assert.NotEmpty(t, bounced.Reference)

	alerts := f.alerter.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, alert.TypeBounced, alerts[0].Type)
	assert.Equal(t, req.ID, alerts[0].Fields["request_id"])
	assert.Equal(t, "5", alerts[0].Fields["token"])

	scans := f.sim.Calls(ledgertest.MethodGetRecentTransactions)
	for i := 0; i < 5; i++ {
		stalled := tick(t, engine, withdraw.DecisionStalled)
		assert.Equal(t, bounced.Reference, stalled.Reference)
	}
	assert.Equal(t, scans, f.sim.Calls(ledgertest.MethodGetRecentTransactions))
	assert.Len(t, f.sim.Submitted(), 1)
	assert.Len(t, f.alerter.Alerts(), 1)

	head := f.head(t)
	assert.Equal(t, req.ID, head.ID)
	require.NotNil(t, head.Token)
	assert.Equal(t, uint64(5), *head.Token)

	// a restarted engine re-scans once and reports the bounce again
	restarted := f.engine(nil)
	tick(t, restarted, withdraw.DecisionBounced)
	tick(t, restarted, withdraw.DecisionStalled)
	assert.Len(t, f.alerter.Alerts(), 2)
}

func TestBounceAlertIsRetriedUntilDelivered(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(nil)
	f.sim.BounceTo(recipient)
	req := f.enqueue(t, 1_000)
	f.alerter.failures = 2

	tick(t, engine, withdraw.DecisionAssigned)
	tick(t, engine, withdraw.DecisionSubmitted)
	f.sim.ExecutePending()

	bounced := tick(t, engine, withdraw.DecisionBounced)
	assert.Equal(t, 1, f.alerter.Attempts())
	assert.Empty(t, f.alerter.Alerts())

	scans := f.sim.Calls(ledgertest.MethodGetRecentTransactions)

	// second attempt fails as well, third one is delivered
	tick(t, engine, withdraw.DecisionStalled)
	assert.Equal(t, 2, f.alerter.Attempts())
	assert.Empty(t, f.alerter.Alerts())

	stalled := tick(t, engine, withdraw.DecisionStalled)
	assert.Equal(t, bounced.Reference, stalled.Reference)
	assert.Equal(t, 3, f.alerter.Attempts())
	alerts := f.alerter.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, alert.TypeBounced, alerts[0].Type)
	assert.Equal(t, req.ID, alerts[0].Fields["request_id"])
	assert.Equal(t, bounced.Reference, alerts[0].Fields["reference"])

	for i := 0; i < 5; i++ {
		tick(t, engine, withdraw.DecisionStalled)
	}
	assert.Equal(t, 3, f.alerter.Attempts())
	assert.Len(t, f.alerter.Alerts(), 1)
	assert.Equal(t, scans, f.sim.Calls(ledgertest.MethodGetRecentTransactions))
	assert.Len(t, f.sim.Submitted(), 1)
	assert.Equal(t, req.ID, f.head(t).ID)
}

func TestTickLogsEachFieldOnce(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(nil)
	f.enqueue(t, 1_000)

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	ctx := logger.WithContext(context.Background())

	step := func(want withdraw.Decision) {
		result, err := engine.Tick(ctx)
		require.NoError(t, err)
		require.Equal(t, want, result.Decision)
	}

	step(withdraw.DecisionAssigned)
	step(withdraw.DecisionSubmitted)
	f.sim.ExecutePending()
	step(withdraw.DecisionConfirmed)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		for _, field := range []string{`"token":`, `"request_id":`, `"token_kind":`, `"queue_depth":`} {
			assert.LessOrEqual(t, strings.Count(line, field), 1, "%s repeated in %s", field, line)
		}
	}
}

func TestScenarioTransientScanFailure(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(nil)
	req := f.enqueue(t, 1_000)

	tick(t, engine, withdraw.DecisionAssigned)
	tick(t, engine, withdraw.DecisionSubmitted)
	f.sim.ExecutePending()

	f.sim.FailNext(ledgertest.MethodGetRecentTransactions, ledgertest.ErrTransient)
	_, err := engine.Tick(context.Background())
	require.ErrorIs(t, err, ledgertest.ErrTransient)

	head := f.head(t)
	assert.Equal(t, req.ID, head.ID)
	require.NotNil(t, head.Token)
	assert.Equal(t, uint64(5), *head.Token)

	tick(t, engine, withdraw.DecisionConfirmed)
	tick(t, engine, withdraw.DecisionIdle)
}

func TestSequenceAheadNeverResubmits(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(nil)
	f.enqueue(t, 1_000)

	tick(t, engine, withdraw.DecisionAssigned)
	f.sim.SetSequenceNumber(hotWalletAddress, 6)

	for i := 0; i < 3; i++ {
		tick(t, engine, withdraw.DecisionPending)
	}
	assert.Empty(t, f.sim.Submitted())
	assert.Equal(t, 0, f.sim.Calls(ledgertest.MethodGetBalance))
}

func TestSequenceBehindWaits(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(nil)
	f.enqueue(t, 1_000)

	tick(t, engine, withdraw.DecisionAssigned)
	f.sim.SetSequenceNumber(hotWalletAddress, 4)

	tick(t, engine, withdraw.DecisionSequenceBehind)
	assert.Empty(t, f.sim.Submitted())
	assert.Equal(t, 0, f.sim.Calls(ledgertest.MethodGetRecentTransactions))
}

func TestAllocationFailureLeavesRequestTokenless(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(nil)
	f.enqueue(t, 1_000)

	f.sim.FailNext(ledgertest.MethodGetSequenceNumber, ledgertest.ErrTransient)
	_, err := engine.Tick(context.Background())
	require.ErrorIs(t, err, ledgertest.ErrTransient)
	assert.Nil(t, f.head(t).Token)

	tick(t, engine, withdraw.DecisionAssigned)
}

type failingPersistQueue struct {
	withdraw.Queue
}

func (failingPersistQueue) Persist(context.Context, *withdraw.Request) error {
	return errors.New("disk full")
}

func TestPersistFailureBlocksSubmission(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(failingPersistQueue{Queue: f.queue})
	f.enqueue(t, 1_000)

	for i := 0; i < 3; i++ {
		_, err := engine.Tick(context.Background())
		require.Error(t, err)
	}
	assert.Nil(t, f.head(t).Token)
	assert.Empty(t, f.sim.Submitted())
}

func TestTokenSurvivesSequenceChanges(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(nil)
	f.enqueue(t, 1_000)

	tick(t, engine, withdraw.DecisionAssigned)

	// someone else used the wallet; the token must not follow the sequence number
	f.sim.SetSequenceNumber(hotWalletAddress, 9)
	tick(t, engine, withdraw.DecisionPending)

	head := f.head(t)
	require.NotNil(t, head.Token)
	assert.Equal(t, uint64(5), *head.Token)
	assert.Empty(t, f.sim.Submitted())
}

func TestSubmitFailureIsRetriedNextTick(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(nil)
	f.enqueue(t, 1_000)

	tick(t, engine, withdraw.DecisionAssigned)

	f.sim.FailNext(ledgertest.MethodSubmitSignedTransaction, ledgertest.ErrTransient)
	_, err := engine.Tick(context.Background())
	require.ErrorIs(t, err, ledgertest.ErrTransient)

	tick(t, engine, withdraw.DecisionSubmitted)
	require.Len(t, f.sim.Submitted(), 1)
}

func TestUnknownAssetRaisesConfigAlert(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(nil)

	req, err := withdraw.NewRequest("MISSING", big.NewInt(1), recipient)
	require.NoError(t, err)
	require.NoError(t, f.queue.Enqueue(context.Background(), req))

	_, err = engine.Tick(context.Background())
	require.ErrorIs(t, err, withdraw.ErrUnknownAsset)
	assert.Nil(t, f.head(t).Token)

	alerts := f.alerter.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, alert.TypeConfig, alerts[0].Type)
}

func TestRequestsAreProcessedInOrder(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(nil)
	first := f.enqueue(t, 1_000)
	second := f.enqueue(t, 2_000)

	tick(t, engine, withdraw.DecisionAssigned)
	tick(t, engine, withdraw.DecisionSubmitted)
	f.sim.ExecutePending()
	confirmed := tick(t, engine, withdraw.DecisionConfirmed)
	assert.Equal(t, first.ID, confirmed.RequestID)

	assigned := tick(t, engine, withdraw.DecisionAssigned)
	assert.Equal(t, second.ID, assigned.RequestID)
	require.NotNil(t, assigned.Token)
	assert.Equal(t, uint64(6), *assigned.Token)

	tick(t, engine, withdraw.DecisionSubmitted)
	f.sim.ExecutePending()
	tick(t, engine, withdraw.DecisionConfirmed)
	tick(t, engine, withdraw.DecisionIdle)

	envs := f.sim.Submitted()
	require.Len(t, envs, 2)
	assert.Equal(t, uint64(5), envs[0].Seqno)
	assert.Equal(t, uint64(6), envs[1].Seqno)
}

func TestNewRequestValidation(t *testing.T) {
	_, err := withdraw.NewRequest("", big.NewInt(1), recipient)
	require.ErrorIs(t, err, withdraw.ErrInvalidRequest)

	_, err = withdraw.NewRequest("ENERGY", big.NewInt(0), recipient)
	require.ErrorIs(t, err, withdraw.ErrInvalidRequest)

	_, err = withdraw.NewRequest("ENERGY", big.NewInt(1), common.Address{})
	require.ErrorIs(t, err, withdraw.ErrInvalidRequest)

	first, err := withdraw.NewRequest("ENERGY", big.NewInt(1), recipient)
	require.NoError(t, err)
	second, err := withdraw.NewRequest("ENERGY", big.NewInt(1), recipient)
	require.NoError(t, err)
	assert.Less(t, first.ID, second.ID)
}
