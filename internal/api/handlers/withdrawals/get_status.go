package withdrawals

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github/chapool/go-withdrawer/internal/api"
	"github/chapool/go-withdrawer/internal/util"
)

type AssetStatus struct {
	TokenKind string `json:"token_kind"`
	Holding   string `json:"holding"`
	Balance   string `json:"balance,omitempty"`
	Error     string `json:"error,omitempty"`
}

type Status struct {
	QueueDepth    int           `json:"queue_depth"`
	EngineRunning bool          `json:"engine_running"`
	Wallet        string        `json:"wallet,omitempty"`
	Seqno         *uint64       `json:"seqno,omitempty"`
	Balance       string        `json:"balance,omitempty"`
	Assets        []AssetStatus `json:"assets,omitempty"`
}

func GetStatusRoute(s *api.Server) *echo.Route {
	return s.Router.Withdrawals.GET("/status", getStatusHandler(s))
}

// getStatusHandler reports the queue depth and, once the engine runs, fresh
// wallet balances read from the ledger.
func getStatusHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)

		depth, err := s.Store.Len(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to read queue depth")
			return err
		}

		status := Status{QueueDepth: depth, EngineRunning: s.EngineReady()}
		if !status.EngineRunning {
			return c.JSON(http.StatusOK, status)
		}

		status.Wallet = s.HotWallet.Wallet().Address.Hex()

		if seqno, err := s.HotWallet.SequenceNumber(ctx); err == nil {
			status.Seqno = &seqno
		} else {
			log.Warn().Err(err).Msg("Failed to read wallet sequence number")
		}

		if balance, err := s.HotWallet.Balance(ctx); err == nil {
			status.Balance = balance.String()
		} else {
			log.Warn().Err(err).Msg("Failed to read wallet balance")
		}

		for _, account := range s.HotWallet.AssetAccounts() {
			asset := AssetStatus{TokenKind: account.Kind, Holding: account.Holding.Hex()}
			if balance, err := s.HotWallet.AssetBalance(ctx, account); err == nil {
				asset.Balance = balance.String()
			} else {
				asset.Error = err.Error()
			}
			status.Assets = append(status.Assets, asset)
		}

		return c.JSON(http.StatusOK, status)
	}
}
