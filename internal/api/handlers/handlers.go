package handlers

import (
	"github.com/labstack/echo/v4"
	"github/chapool/go-withdrawer/internal/api"
	"github/chapool/go-withdrawer/internal/api/handlers/common"
	"github/chapool/go-withdrawer/internal/api/handlers/withdrawals"
)

func AttachAllRoutes(s *api.Server) {
	// attach our routes
	s.Router.Routes = append(s.Router.Routes, []*echo.Route{
		common.GetHealthyRoute(s),
		common.GetReadyRoute(s),
		common.GetVersionRoute(s),
		withdrawals.GetWithdrawalsRoute(s),
		withdrawals.PostWithdrawalRoute(s),
		withdrawals.GetStatusRoute(s),
	}...)
}
