package scan

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Result 确认扫描结果
type Result int

const (
	// NotFound 在扫描窗口内还没有匹配的交易
	NotFound Result = iota
	// Confirmed 匹配交易至少有一个流出到热钱包以外的地址
	Confirmed
	// Bounced 匹配交易没有流出，或资金退回热钱包
	Bounced
)

func (r Result) String() string {
	switch r {
	case NotFound:
		return "not_found"
	case Confirmed:
		return "confirmed"
	case Bounced:
		return "bounced"
	default:
		return "unknown"
	}
}

// Outcome 扫描结果及匹配到的交易
type Outcome struct {
	Result      Result
	Reference   string
	LogicalTime uint64
}

// Service 确认扫描服务接口
type Service interface {
	// Check 在持仓账户的最近交易中查找热钱包以 token 发出的转账
	Check(ctx context.Context, holding common.Address, wallet common.Address, token uint64) (Outcome, error)
}
