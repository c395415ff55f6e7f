package scan

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github/chapool/go-withdrawer/internal/util"
	"github/chapool/go-withdrawer/internal/wallet/ledger"
	"github/chapool/go-withdrawer/internal/wallet/transfer"
)

// DefaultWindow is the number of recent records fetched per check.
const DefaultWindow = 20

type service struct {
	gateway ledger.Gateway
	window  int
}

// NewService 创建确认扫描服务
//
//nolint:ireturn
func NewService(gateway ledger.Gateway, window int) Service {
	if window <= 0 {
		window = DefaultWindow
	}

	return &service{
		gateway: gateway,
		window:  window,
	}
}

// Check fetches the most recent records of the holding account and returns the
// outcome of the first one sent by wallet that carries token. Records from
// other senders and records whose body is not a transfer payload are skipped.
func (s *service) Check(ctx context.Context, holding common.Address, wallet common.Address, token uint64) (Outcome, error) {
	log := util.LogFromContext(ctx)

	records, err := s.gateway.GetRecentTransactions(ctx, holding, s.window)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "failed to fetch holding account history")
	}

	log.Debug().
		Int("records", len(records)).
		Msg("Scanning holding account history")

	for _, rec := range records {
		if rec.Source != wallet {
			continue
		}

		payload, err := transfer.DecodePayload(rec.Payload)
		if err != nil {
			log.Trace().Err(err).Str("reference", rec.Reference).Msg("Skipping record without transfer payload")
			continue
		}

		if payload.Token != token {
			continue
		}

		return Outcome{
			Result:      classify(rec.Effects, wallet),
			Reference:   rec.Reference,
			LogicalTime: rec.LogicalTime,
		}, nil
	}

	return Outcome{Result: NotFound}, nil
}

// classify decides a matched record: funds leaving towards anyone other than
// the wallet confirm it, anything else is a bounce.
func classify(effects []ledger.Effect, wallet common.Address) Result {
	for _, effect := range effects {
		if effect.Destination != wallet {
			return Confirmed
		}
	}

	return Bounced
}
