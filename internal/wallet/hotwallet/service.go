package hotwallet

import (
	"context"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/internal/wallet/address"
	"github/chapool/go-withdrawer/internal/wallet/ledger"
	"github/chapool/go-withdrawer/internal/wallet/seed"
)

type service struct {
	gateway ledger.Gateway
	wallet  HotWallet
	assets  map[string]AssetAccount
}

// NewService 派生热钱包地址并解析所有资产的持仓账户
//
//nolint:ireturn // 返回接口类型是预期的设计
func NewService(
	ctx context.Context,
	gateway ledger.Gateway,
	seedManager seed.Manager,
	addressService address.Service,
	cfg config.Wallet,
) (Service, error) {
	seedBytes := seedManager.GetSeed()
	if seedBytes == nil {
		return nil, errors.New("seed not initialized")
	}
	defer func() {
		for i := range seedBytes {
			seedBytes[i] = 0
		}
	}()

	addr, err := addressService.DeriveAddress(ctx, seedBytes, cfg.DerivationPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive hot wallet address")
	}

	return NewServiceForAddress(gateway, addressService, HotWallet{
		Address:        addr,
		DerivationPath: cfg.DerivationPath,
	}, cfg.Assets)
}

// NewServiceForAddress builds the service for an already known wallet address.
//
//nolint:ireturn // 返回接口类型是预期的设计
func NewServiceForAddress(
	gateway ledger.Gateway,
	addressService address.Service,
	wallet HotWallet,
	assets map[string]config.Asset,
) (Service, error) {
	if len(assets) == 0 {
		return nil, errors.New("no assets configured")
	}

	accounts := make(map[string]AssetAccount, len(assets))
	for kind, asset := range assets {
		if !common.IsHexAddress(asset.Master) {
			return nil, errors.Errorf("asset %s: missing or invalid master address", kind)
		}

		master := common.HexToAddress(asset.Master)
		holding := addressService.AssetHoldingAddress(master, wallet.Address)
		if asset.Holding != "" {
			holding = common.HexToAddress(asset.Holding)
		}

		accounts[kind] = AssetAccount{
			Kind:     kind,
			Master:   master,
			Owner:    wallet.Address,
			Holding:  holding,
			Decimals: asset.Decimals,
		}

		log.Info().
			Str("token_kind", kind).
			Str("holding", holding.Hex()).
			Msg("Resolved asset holding account")
	}

	log.Info().Str("address", wallet.Address.Hex()).Msg("Hot wallet ready")

	return &service{
		gateway: gateway,
		wallet:  wallet,
		assets:  accounts,
	}, nil
}

func (s *service) Wallet() HotWallet {
	return s.wallet
}

func (s *service) AssetAccount(kind string) (AssetAccount, error) {
	account, ok := s.assets[kind]
	if !ok {
		return AssetAccount{}, errors.Wrapf(ErrUnknownAsset, "token kind %q", kind)
	}

	return account, nil
}

func (s *service) AssetAccounts() []AssetAccount {
	accounts := make([]AssetAccount, 0, len(s.assets))
	for _, account := range s.assets {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Kind < accounts[j].Kind })

	return accounts
}

func (s *service) SequenceNumber(ctx context.Context) (uint64, error) {
	seqno, err := s.gateway.GetSequenceNumber(ctx, s.wallet.Address)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read wallet sequence number")
	}

	return seqno, nil
}

func (s *service) Balance(ctx context.Context) (*big.Int, error) {
	balance, err := s.gateway.GetBalance(ctx, s.wallet.Address)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read wallet balance")
	}

	return balance, nil
}

func (s *service) AssetBalance(ctx context.Context, account AssetAccount) (*big.Int, error) {
	balance, err := s.gateway.GetAssetBalance(ctx, account.Holding)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s balance", account.Kind)
	}

	return balance, nil
}
