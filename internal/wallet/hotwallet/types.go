package hotwallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// ErrUnknownAsset is returned for token kinds missing from the asset registry.
var ErrUnknownAsset = errors.New("unknown asset kind")

// HotWallet 热钱包账户
type HotWallet struct {
	Address        common.Address
	DerivationPath string
}

// AssetAccount 热钱包在某个资产下的持仓账户
type AssetAccount struct {
	Kind     string
	Master   common.Address
	Owner    common.Address
	Holding  common.Address
	Decimals int32
}

// Service 热钱包服务接口。余额与序列号每次都从链上读取，不做缓存。
type Service interface {
	// Wallet 返回热钱包账户
	Wallet() HotWallet

	// AssetAccount 返回指定资产的持仓账户
	AssetAccount(kind string) (AssetAccount, error)

	// AssetAccounts 返回所有已配置资产的持仓账户
	AssetAccounts() []AssetAccount

	// SequenceNumber 读取热钱包当前序列号
	SequenceNumber(ctx context.Context) (uint64, error)

	// Balance 读取热钱包原生币余额
	Balance(ctx context.Context) (*big.Int, error)

	// AssetBalance 读取持仓账户资产余额
	AssetBalance(ctx context.Context, account AssetAccount) (*big.Int, error)
}
