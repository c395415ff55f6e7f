package api

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/internal/util"
	"github/chapool/go-withdrawer/internal/wallet/withdraw"
)

// EnqueueWithdrawal validates the input against the asset registry and
// appends a new request to the queue tail.
func (s *Server) EnqueueWithdrawal(ctx context.Context, tokenKind string, rawAmount string, units bool, to string) (*withdraw.Request, error) {
	assets, err := s.Assets()
	if err != nil {
		return nil, err
	}

	tokenKind = strings.TrimSpace(tokenKind)
	asset, ok := assets[tokenKind]
	if !ok {
		return nil, errors.Wrapf(withdraw.ErrUnknownAsset, "token kind %q", tokenKind)
	}

	if !common.IsHexAddress(to) {
		return nil, errors.Wrapf(withdraw.ErrInvalidRequest, "destination %q is not an address", to)
	}

	amount, err := withdraw.ParseAmount(rawAmount, asset.Decimals, units)
	if err != nil {
		return nil, err
	}

	req, err := withdraw.NewRequest(tokenKind, amount, common.HexToAddress(to))
	if err != nil {
		return nil, err
	}

	if err := s.Store.Enqueue(ctx, req); err != nil {
		return nil, errors.Wrap(err, "failed to enqueue withdrawal request")
	}

	util.LogFromContext(ctx).Info().
		Str("request_id", req.ID).
		Str("token_kind", req.TokenKind).
		Str("amount", req.Amount.String()).
		Str("destination", req.Destination.Hex()).
		Msg("Withdrawal request enqueued")

	return req, nil
}

// Assets returns the asset registry, loading it from WALLET_ASSETS_FILE on first use.
func (s *Server) Assets() (map[string]config.Asset, error) {
	if s.Config.Wallet.Assets != nil {
		return s.Config.Wallet.Assets, nil
	}

	assets, err := config.LoadAssets(s.Config.Wallet.AssetsFile)
	if err != nil {
		return nil, err
	}
	s.Config.Wallet.Assets = assets

	return assets, nil
}
