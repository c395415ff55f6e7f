package common

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github/chapool/go-withdrawer/internal/api"
)

func GetHealthyRoute(s *api.Server) *echo.Route {
	return s.Router.Management.GET("/healthy", getHealthyHandler(s))
}

// Health check
// Returns an human readable string about the current service status.
// In addition to readiness probes, it checks that the ledger answers when the engine is running.
func getHealthyHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), probeTimeout)
		defer cancel()

		var str strings.Builder
		healthy := true

		if !s.Ready() {
			healthy = false
			str.WriteString("Server: not ready\n")
		} else if err := probeStore(ctx, s); err != nil {
			healthy = false
			fmt.Fprintf(&str, "Queue: %v\n", err)
		} else {
			depth, _ := s.Store.Len(ctx)
			fmt.Fprintf(&str, "Queue: %d pending\n", depth)
		}

		if s.EngineReady() {
			seqno, err := s.HotWallet.SequenceNumber(ctx)
			if err != nil {
				healthy = false
				fmt.Fprintf(&str, "Ledger: %v\n", err)
			} else {
				fmt.Fprintf(&str, "Ledger: wallet %s at seqno %d\n", s.HotWallet.Wallet().Address.Hex(), seqno)
			}
		} else {
			str.WriteString("Engine: not started\n")
		}

		if !healthy {
			return c.String(StatusNotReady, str.String())
		}

		return c.String(http.StatusOK, str.String())
	}
}
