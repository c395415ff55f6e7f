//nolint:ireturn
package withdraw

import (
	"context"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github/chapool/go-withdrawer/internal/alert"
	"github/chapool/go-withdrawer/internal/util"
	"github/chapool/go-withdrawer/internal/wallet/hotwallet"
	"github/chapool/go-withdrawer/internal/wallet/ledger"
	"github/chapool/go-withdrawer/internal/wallet/scan"
	"github/chapool/go-withdrawer/internal/wallet/transfer"
)

// Service 提现引擎接口
type Service interface {
	// Tick makes exactly one decision for the current queue head.
	Tick(ctx context.Context) (TickResult, error)
}

// Config holds the engine's balance thresholds.
type Config struct {
	// FeeReserve must be strictly below the wallet's native balance before submitting.
	FeeReserve *big.Int
	// AttachedValue is the native value sent along with each transfer to pay for execution.
	AttachedValue *big.Int
}

type bounceKey struct {
	id    string
	token uint64
}

type bounceState struct {
	reference string
	// alerted is set once an operator alert has been delivered.
	alerted bool
}

type service struct {
	queue            Queue
	hotWalletService hotwallet.Service
	scanService      scan.Service
	transferService  transfer.Service
	gateway          ledger.Gateway
	alerter          alert.Alerter
	recorder         Recorder
	allocator        *allocator
	cfg              Config

	mu      sync.Mutex
	bounced map[bounceKey]*bounceState
}

// NewService 创建提现引擎
//
//nolint:ireturn // 返回接口类型是预期的设计
func NewService(
	queue Queue,
	hotWalletService hotwallet.Service,
	scanService scan.Service,
	transferService transfer.Service,
	gateway ledger.Gateway,
	alerter alert.Alerter,
	recorder Recorder,
	cfg Config,
) Service {
	if alerter == nil {
		alerter = alert.NoopAlerter{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if cfg.FeeReserve == nil {
		cfg.FeeReserve = new(big.Int)
	}
	if cfg.AttachedValue == nil {
		cfg.AttachedValue = new(big.Int)
	}

	return &service{
		queue:            queue,
		hotWalletService: hotWalletService,
		scanService:      scanService,
		transferService:  transferService,
		gateway:          gateway,
		alerter:          alerter,
		recorder:         recorder,
		allocator:        newAllocator(queue, hotWalletService),
		cfg:              cfg,
		bounced:          make(map[bounceKey]*bounceState),
	}
}

func (s *service) Tick(ctx context.Context) (TickResult, error) {
	start := time.Now()
	result, err := s.tick(ctx)
	s.recorder.TickDuration(time.Since(start))

	if err == nil {
		s.recorder.Decision(result.Decision)
	}

	return result, err
}

func (s *service) tick(ctx context.Context) (TickResult, error) {
	depth, err := s.queue.Len(ctx)
	if err != nil {
		return TickResult{}, errors.Wrap(err, "failed to read queue depth")
	}
	s.recorder.QueueDepth(depth)

	req, err := s.queue.PeekHead(ctx)
	if errors.Is(err, ErrQueueEmpty) {
		return TickResult{Decision: DecisionIdle}, nil
	}
	if err != nil {
		return TickResult{}, errors.Wrap(err, "failed to read queue head")
	}

	result := TickResult{RequestID: req.ID, Token: req.Token, QueueDepth: depth}

	logger := util.LogFromContext(ctx).With().
		Str("request_id", req.ID).
		Str("token_kind", req.TokenKind).
		Int("queue_depth", depth).
		Logger()
	ctx = logger.WithContext(ctx)

	account, err := s.hotWalletService.AssetAccount(req.TokenKind)
	if err != nil {
		_ = s.raise(ctx, alert.Alert{
			Type:    alert.TypeConfig,
			Key:     req.TokenKind,
			Title:   "Unknown token kind",
			Message: "withdrawal request references a token kind missing from the asset registry",
			Fields:  map[string]string{"request_id": req.ID, "token_kind": req.TokenKind},
		})
		return result, errors.Wrapf(err, "request %s", req.ID)
	}

	// 1. 分配幂等 token，本次 tick 结束
	if !req.HasToken() {
		assigned, err := s.allocator.Allocate(ctx, req)
		if err != nil {
			return result, err
		}
		result.Decision = DecisionAssigned
		result.Token = assigned.Token
		result.Seqno = *assigned.Token
		return result, nil
	}

	token := *req.Token
	logger = logger.With().Uint64("token", token).Logger()
	ctx = logger.WithContext(ctx)

	if state, ok := s.bounce(req.ID, token); ok {
		if !state.alerted {
			// 告警未送达，每个 tick 重试直到成功
			s.markAlerted(req.ID, token, s.raise(ctx, bounceAlert(req, state.reference)) == nil)
		}
		result.Decision = DecisionStalled
		result.Reference = state.reference
		return result, nil
	}

	seqno, err := s.hotWalletService.SequenceNumber(ctx)
	if err != nil {
		return result, err
	}
	result.Seqno = seqno

	switch {
	case seqno > token:
		// 2. 序列号已越过 token，只做确认扫描，绝不重新提交
		return s.confirm(ctx, req, account, result)
	case seqno == token:
		// 3. 尚未执行，检查余额后提交
		return s.submit(ctx, req, account, result)
	default:
		logger.Warn().
			Uint64("seqno", seqno).
			Msg("Ledger sequence number is behind the assigned token, waiting")
		result.Decision = DecisionSequenceBehind
		return result, nil
	}
}

func (s *service) confirm(ctx context.Context, req *Request, account hotwallet.AssetAccount, result TickResult) (TickResult, error) {
	log := util.LogFromContext(ctx)
	wallet := s.hotWalletService.Wallet()

	outcome, err := s.scanService.Check(ctx, account.Holding, wallet.Address, *req.Token)
	if err != nil {
		return result, err
	}
	result.Reference = outcome.Reference

	switch outcome.Result {
	case scan.Confirmed:
		if err := s.queue.RemoveHead(ctx, req.ID); err != nil {
			return result, errors.Wrap(err, "failed to remove confirmed request")
		}

		log.Info().
			Str("reference", outcome.Reference).
			Str("destination", req.Destination.Hex()).
			Str("amount", req.Amount.String()).
			Msg("Withdrawal confirmed")

		result.Decision = DecisionConfirmed
		result.QueueDepth--
		return result, nil

	case scan.Bounced:
		log.Error().
			Str("reference", outcome.Reference).
			Str("destination", req.Destination.Hex()).
			Msg("Withdrawal bounced, queue is stalled until an operator resolves it")

		err := s.raise(ctx, bounceAlert(req, outcome.Reference))
		s.rememberBounce(req.ID, *req.Token, &bounceState{reference: outcome.Reference, alerted: err == nil})

		result.Decision = DecisionBounced
		return result, nil

	default:
		log.Info().
			Uint64("seqno", result.Seqno).
			Msg("Transfer executed but not yet visible, waiting for confirmation")

		result.Decision = DecisionPending
		return result, nil
	}
}

func (s *service) submit(ctx context.Context, req *Request, account hotwallet.AssetAccount, result TickResult) (TickResult, error) {
	log := util.LogFromContext(ctx)

	balance, err := s.hotWalletService.Balance(ctx)
	if err != nil {
		return result, err
	}

	if s.cfg.FeeReserve.Cmp(balance) >= 0 {
		log.Warn().
			Str("balance", balance.String()).
			Str("fee_reserve", s.cfg.FeeReserve.String()).
			Msg("Not enough native balance to pay for the withdrawal")

		result.Decision = DecisionInsufficientFee
		return result, nil
	}

	assetBalance, err := s.hotWalletService.AssetBalance(ctx, account)
	if err != nil {
		return result, err
	}

	if req.Amount.Cmp(assetBalance) > 0 {
		log.Warn().
			Str("asset_balance", assetBalance.String()).
			Str("amount", req.Amount.String()).
			Msg("Not enough asset balance to process the withdrawal")

		result.Decision = DecisionInsufficientAsset
		return result, nil
	}

	wallet := s.hotWalletService.Wallet()
	signed, err := s.transferService.Build(ctx, transfer.Order{
		Token:         req.Token,
		Seqno:         result.Seqno,
		Amount:        req.Amount,
		Recipient:     req.Destination,
		Wallet:        wallet.Address,
		Holding:       account.Holding,
		AttachedValue: s.cfg.AttachedValue,
	})
	if err != nil {
		return result, errors.Wrap(err, "failed to build transfer")
	}

	// While seqno == token the same bytes are rebuilt and resubmitted every tick.
	// The ledger executes at most one message per sequence number, so a repeat
	// submission can never move funds twice.
	if err := s.gateway.SubmitSignedTransaction(ctx, signed.Raw); err != nil {
		return result, errors.Wrap(err, "failed to submit transfer")
	}

	log.Info().
		Str("reference", signed.Reference).
		Str("destination", req.Destination.Hex()).
		Str("amount", req.Amount.String()).
		Msg("Withdrawal submitted")

	result.Decision = DecisionSubmitted
	result.Reference = signed.Reference
	return result, nil
}

func bounceAlert(req *Request, reference string) alert.Alert {
	return alert.Alert{
		Type:    alert.TypeBounced,
		Key:     req.ID,
		Title:   "Withdrawal bounced",
		Message: "transfer was rejected and refunded to the hot wallet; processing is stalled",
		Fields: map[string]string{
			"request_id":  req.ID,
			"token":       strconv.FormatUint(*req.Token, 10),
			"token_kind":  req.TokenKind,
			"destination": req.Destination.Hex(),
			"amount":      req.Amount.String(),
			"reference":   reference,
		},
	}
}

func (s *service) bounce(id string, token uint64) (bounceState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.bounced[bounceKey{id: id, token: token}]
	if !ok {
		return bounceState{}, false
	}

	return *state, true
}

func (s *service) rememberBounce(id string, token uint64, state *bounceState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bounced[bounceKey{id: id, token: token}] = state
}

func (s *service) markAlerted(id string, token uint64, alerted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.bounced[bounceKey{id: id, token: token}]; ok {
		state.alerted = alerted
	}
}

// raise delivers a and returns the delivery error after logging it.
func (s *service) raise(ctx context.Context, a alert.Alert) error {
	err := s.alerter.Send(ctx, a)
	if err != nil {
		util.LogFromContext(ctx).Warn().Err(err).Str("alert_type", string(a.Type)).Msg("Failed to deliver alert")
	}

	return err
}
