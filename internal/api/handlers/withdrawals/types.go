package withdrawals

import (
	"time"

	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/internal/wallet/withdraw"
)

type PostWithdrawalPayload struct {
	TokenKind string `json:"token_kind"`
	Amount    string `json:"amount"`
	To        string `json:"to"`
	// Units interprets Amount in human units scaled by the asset decimals.
	Units bool `json:"units"`
}

type Withdrawal struct {
	ID          string     `json:"id"`
	TokenKind   string     `json:"token_kind"`
	Amount      string     `json:"amount"`
	AmountUnits string     `json:"amount_units,omitempty"`
	Destination string     `json:"destination"`
	Token       *uint64    `json:"token"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type WithdrawalList struct {
	Data []Withdrawal `json:"data"`
}

func toWithdrawal(req *withdraw.Request, assets map[string]config.Asset) Withdrawal {
	w := Withdrawal{
		ID:          req.ID,
		TokenKind:   req.TokenKind,
		Amount:      req.Amount.String(),
		Destination: req.Destination.Hex(),
		Token:       req.Token,
		Status:      string(req.Status),
		CreatedAt:   req.CreatedAt,
		UpdatedAt:   req.UpdatedAt,
		CompletedAt: req.CompletedAt,
	}

	if asset, ok := assets[req.TokenKind]; ok {
		w.AmountUnits = withdraw.FormatAmount(req.Amount, asset.Decimals)
	}

	return w
}
