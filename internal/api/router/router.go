package router

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"github/chapool/go-withdrawer/internal/api"
	"github/chapool/go-withdrawer/internal/api/handlers"
	"github/chapool/go-withdrawer/internal/api/httperrors"
)

// Init builds the management server: probes under /-/, prometheus metrics
// and the withdrawal queue API under /api/v1.
func Init(s *api.Server) error {
	s.Echo = echo.New()

	s.Echo.Debug = false
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.HTTPErrorHandler = httperrors.HTTPErrorHandler

	s.Echo.Pre(echoMiddleware.RemoveTrailingSlash())
	s.Echo.Use(echoMiddleware.Recover())
	s.Echo.Use(echoMiddleware.RequestID())
	s.Echo.Use(requestLogger())

	s.Echo.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "withdrawer",
		Subsystem:  "http",
		Registerer: s.Metrics.Registry,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	s.Router = &api.Router{
		Routes:     nil,
		Root:       s.Echo.Group(""),
		Management: s.Echo.Group("/-"),
		APIV1:      s.Echo.Group("/api/v1"),
	}
	s.Router.Withdrawals = s.Router.APIV1.Group("/withdrawals")

	s.Router.Routes = append(s.Router.Routes,
		s.Echo.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
			Gatherer: s.Metrics.Registry,
		})),
	)

	handlers.AttachAllRoutes(s)

	log.Debug().Int("routes", len(s.Router.Routes)).Msg("Router initialized")

	return nil
}

// requestLogger attaches a request scoped zerolog logger to the context.
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := c.Response().Header().Get(echo.HeaderXRequestID)

			l := log.With().
				Str("http_request_id", id).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Logger()
			c.SetRequest(req.WithContext(l.WithContext(req.Context())))

			err := next(c)

			l.Debug().Int("status", c.Response().Status).Msg("Handled request")

			return err
		}
	}
}
