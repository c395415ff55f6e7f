package withdrawals

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github/chapool/go-withdrawer/internal/api"
	"github/chapool/go-withdrawer/internal/api/httperrors"
	"github/chapool/go-withdrawer/internal/util"
	"github/chapool/go-withdrawer/internal/wallet/withdraw"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func GetWithdrawalsRoute(s *api.Server) *echo.Route {
	return s.Router.Withdrawals.GET("", getWithdrawalsHandler(s))
}

func getWithdrawalsHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)

		opts := withdraw.ListOptions{Limit: defaultListLimit}

		switch status := withdraw.Status(c.QueryParam("status")); status {
		case "":
		case withdraw.StatusPending, withdraw.StatusCompleted:
			opts.Status = status
		default:
			return httperrors.ErrBadRequestInvalidQuery.WithDetail("status must be pending or completed")
		}

		if limitStr := c.QueryParam("limit"); limitStr != "" {
			limit, err := strconv.Atoi(limitStr)
			if err != nil || limit <= 0 || limit > maxListLimit {
				return httperrors.ErrBadRequestInvalidQuery.WithDetail("limit must be between 1 and 1000")
			}
			opts.Limit = limit
		}

		requests, err := s.Store.List(ctx, opts)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list withdrawal requests")
			return err
		}

		// 资产配置缺失时只返回最小单位金额
		assets, _ := s.Assets()

		response := WithdrawalList{Data: make([]Withdrawal, 0, len(requests))}
		for _, req := range requests {
			response.Data = append(response.Data, toWithdrawal(req, assets))
		}

		return c.JSON(http.StatusOK, response)
	}
}
