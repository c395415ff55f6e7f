package common

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github/chapool/go-withdrawer/internal/api"
	"github/chapool/go-withdrawer/internal/util"
)

const (
	// StatusNotReady is returned by the probes while a dependency is missing or down.
	StatusNotReady = 521
	probeTimeout   = 2 * time.Second
)

func GetReadyRoute(s *api.Server) *echo.Route {
	return s.Router.Management.GET("/ready", getReadyHandler(s))
}

// Readiness check
// This endpoint returns 200 when our Service is ready to serve traffic (i.e. respond to queries).
// Does read-only probes apart from the general server ready state.
func getReadyHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), probeTimeout)
		defer cancel()

		if !s.Ready() {
			return c.String(StatusNotReady, "Not ready.")
		}

		if err := probeStore(ctx, s); err != nil {
			util.LogFromContext(ctx).Warn().Err(err).Msg("Readiness probe failed")
			return c.String(StatusNotReady, "Not ready.")
		}

		return c.String(http.StatusOK, "Ready.")
	}
}

func probeStore(ctx context.Context, s *api.Server) error {
	if s.DB != nil {
		if err := s.DB.PingContext(ctx); err != nil {
			return err
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}

	_, err := s.Store.Len(ctx)

	return err
}
