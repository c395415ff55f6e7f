package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrGatewayUnavailable is returned while the circuit breaker is open.
var ErrGatewayUnavailable = errors.New("ledger gateway unavailable")

// GuardOptions configures NewGuardedGateway.
type GuardOptions struct {
	// RateLimitRPS caps outbound calls per second, zero disables the limiter.
	RateLimitRPS   float64
	RateLimitBurst int
	// ConsecutiveFailures trips the breaker, zero uses 5.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

type guardedGateway struct {
	next    Gateway
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewGuardedGateway wraps next with a rate limiter and a circuit breaker.
// Calls are made at most once; the engine's next tick is the retry.
//
//nolint:ireturn
func NewGuardedGateway(next Gateway, opts GuardOptions) Gateway {
	failures := opts.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}

	timeout := opts.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ledger-gateway",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// caller cancellation says nothing about the node
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Ledger gateway circuit breaker changed state")
		},
	})

	return &guardedGateway{
		next:    next,
		limiter: limiter,
		breaker: breaker,
	}
}

func (g *guardedGateway) do(ctx context.Context, fn func() (any, error)) (any, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "rate limiter")
		}
	}

	res, err := g.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Wrap(ErrGatewayUnavailable, err.Error())
	}

	return res, err
}

func (g *guardedGateway) GetSequenceNumber(ctx context.Context, wallet common.Address) (uint64, error) {
	res, err := g.do(ctx, func() (any, error) {
		return g.next.GetSequenceNumber(ctx, wallet)
	})
	if err != nil {
		return 0, err
	}

	return res.(uint64), nil //nolint:forcetypeassert
}

func (g *guardedGateway) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	res, err := g.do(ctx, func() (any, error) {
		return g.next.GetBalance(ctx, address)
	})
	if err != nil {
		return nil, err
	}

	return res.(*big.Int), nil //nolint:forcetypeassert
}

func (g *guardedGateway) GetAssetBalance(ctx context.Context, holding common.Address) (*big.Int, error) {
	res, err := g.do(ctx, func() (any, error) {
		return g.next.GetAssetBalance(ctx, holding)
	})
	if err != nil {
		return nil, err
	}

	return res.(*big.Int), nil //nolint:forcetypeassert
}

func (g *guardedGateway) GetRecentTransactions(ctx context.Context, address common.Address, limit int) ([]TransactionRecord, error) {
	res, err := g.do(ctx, func() (any, error) {
		return g.next.GetRecentTransactions(ctx, address, limit)
	})
	if err != nil {
		return nil, err
	}

	return res.([]TransactionRecord), nil //nolint:forcetypeassert
}

func (g *guardedGateway) SubmitSignedTransaction(ctx context.Context, raw []byte) error {
	_, err := g.do(ctx, func() (any, error) {
		return nil, g.next.SubmitSignedTransaction(ctx, raw)
	})

	return err
}
