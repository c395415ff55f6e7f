// Package ledgertest provides an in-memory ledger for tests.
package ledgertest

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github/chapool/go-withdrawer/internal/wallet/ledger"
	"github/chapool/go-withdrawer/internal/wallet/transfer"
)

// Gateway method names accepted by FailNext and Calls.
const (
	MethodGetSequenceNumber       = "GetSequenceNumber"
	MethodGetBalance              = "GetBalance"
	MethodGetAssetBalance         = "GetAssetBalance"
	MethodGetRecentTransactions   = "GetRecentTransactions"
	MethodSubmitSignedTransaction = "SubmitSignedTransaction"
)

// ErrTransient is a convenience error for injected failures.
var ErrTransient = errors.New("simulated transient failure")

// Simulator is an in-memory ledger. Submitted transactions stay pending until
// ExecutePending runs them, which advances the sender's sequence number and
// appends a record to the destination's history.
type Simulator struct {
	mu            sync.Mutex
	seqnos        map[common.Address]uint64
	balances      map[common.Address]*big.Int
	assetBalances map[common.Address]*big.Int
	history       map[common.Address][]ledger.TransactionRecord
	bounce        map[common.Address]bool
	failures      map[string][]error
	calls         map[string]int
	pending       [][]byte
	submitted     []*transfer.Envelope
	lt            uint64
}

var _ ledger.Gateway = (*Simulator)(nil)

func NewSimulator() *Simulator {
	return &Simulator{
		seqnos:        make(map[common.Address]uint64),
		balances:      make(map[common.Address]*big.Int),
		assetBalances: make(map[common.Address]*big.Int),
		history:       make(map[common.Address][]ledger.TransactionRecord),
		bounce:        make(map[common.Address]bool),
		failures:      make(map[string][]error),
		calls:         make(map[string]int),
	}
}

func (s *Simulator) SetSequenceNumber(wallet common.Address, seqno uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seqnos[wallet] = seqno
}

func (s *Simulator) SetBalance(address common.Address, balance *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[address] = new(big.Int).Set(balance)
}

func (s *Simulator) SetAssetBalance(holding common.Address, balance *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assetBalances[holding] = new(big.Int).Set(balance)
}

// BounceTo makes transfers to recipient get rejected and refunded.
func (s *Simulator) BounceTo(recipient common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bounce[recipient] = true
}

// FailNext makes the next call of method return err.
func (s *Simulator) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[method] = append(s.failures[method], err)
}

// AddRecord prepends rec to the history of address.
func (s *Simulator) AddRecord(address common.Address, rec ledger.TransactionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lt++
	if rec.LogicalTime == 0 {
		rec.LogicalTime = s.lt
	}
	s.history[address] = append([]ledger.TransactionRecord{rec}, s.history[address]...)
}

// Calls returns how often method was invoked, failed calls included.
func (s *Simulator) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[method]
}

// Submitted returns every envelope accepted by SubmitSignedTransaction.
func (s *Simulator) Submitted() []*transfer.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*transfer.Envelope(nil), s.submitted...)
}

func (s *Simulator) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.pending)
}

func (s *Simulator) AssetBalanceOf(holding common.Address) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.balanceOf(s.assetBalances, holding)
}

// begin records a call and pops an injected failure. Callers hold s.mu.
func (s *Simulator) begin(method string) error {
	s.calls[method]++

	queued := s.failures[method]
	if len(queued) == 0 {
		return nil
	}
	s.failures[method] = queued[1:]

	return queued[0]
}

func (s *Simulator) balanceOf(balances map[common.Address]*big.Int, address common.Address) *big.Int {
	if b, ok := balances[address]; ok {
		return new(big.Int).Set(b)
	}

	return new(big.Int)
}

func (s *Simulator) GetSequenceNumber(_ context.Context, wallet common.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.begin(MethodGetSequenceNumber); err != nil {
		return 0, err
	}

	return s.seqnos[wallet], nil
}

func (s *Simulator) GetBalance(_ context.Context, address common.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.begin(MethodGetBalance); err != nil {
		return nil, err
	}

	return s.balanceOf(s.balances, address), nil
}

func (s *Simulator) GetAssetBalance(_ context.Context, holding common.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.begin(MethodGetAssetBalance); err != nil {
		return nil, err
	}

	return s.balanceOf(s.assetBalances, holding), nil
}

func (s *Simulator) GetRecentTransactions(_ context.Context, address common.Address, limit int) ([]ledger.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.begin(MethodGetRecentTransactions); err != nil {
		return nil, err
	}

	records := s.history[address]
	if limit < len(records) {
		records = records[:limit]
	}

	return append([]ledger.TransactionRecord(nil), records...), nil
}

func (s *Simulator) SubmitSignedTransaction(_ context.Context, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.begin(MethodSubmitSignedTransaction); err != nil {
		return err
	}

	env, err := transfer.DecodeEnvelope(raw)
	if err != nil {
		return errors.Wrap(err, "rejected transaction")
	}

	sender, err := transfer.RecoverSender(env)
	if err != nil {
		return errors.Wrap(err, "rejected transaction")
	}

	if sender != env.From {
		return errors.New("rejected transaction: signature does not match sender")
	}

	s.submitted = append(s.submitted, env)
	s.pending = append(s.pending, append([]byte(nil), raw...))

	return nil
}

// ExecutePending runs all pending transactions in submission order and
// returns how many executed. Transactions whose sequence number no longer
// matches the sender's are dropped, as a real ledger would reject replays.
func (s *Simulator) ExecutePending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	executed := 0
	for _, raw := range s.pending {
		env, err := transfer.DecodeEnvelope(raw)
		if err != nil || env.Seqno != s.seqnos[env.From] {
			continue
		}

		s.seqnos[env.From]++
		s.debit(s.balances, env.From, env.Value)
		s.lt++

		rec := ledger.TransactionRecord{
			Source:      env.From,
			Payload:     env.Body,
			Reference:   env.Reference(),
			LogicalTime: s.lt,
		}

		payload, err := transfer.DecodePayload(env.Body)
		switch {
		case err != nil:
			// unknown body, the holding account keeps the value and sends nothing
		case s.bounce[payload.Destination] || s.balanceOf(s.assetBalances, env.To).Cmp(payload.Amount) < 0:
			rec.Effects = []ledger.Effect{{Destination: env.From, Amount: new(big.Int).Set(env.Value)}}
		default:
			s.debit(s.assetBalances, env.To, payload.Amount)
			rec.Effects = []ledger.Effect{
				{Destination: payload.Destination, Amount: new(big.Int).Set(payload.Amount)},
				{Destination: payload.ResponseAddress, Amount: new(big.Int)},
			}
		}

		s.history[env.To] = append([]ledger.TransactionRecord{rec}, s.history[env.To]...)
		executed++
	}
	s.pending = nil

	return executed
}

func (s *Simulator) debit(balances map[common.Address]*big.Int, address common.Address, amount *big.Int) {
	next := s.balanceOf(balances, address)
	next.Sub(next, amount)
	if next.Sign() < 0 {
		next.SetInt64(0)
	}
	balances[address] = next
}
