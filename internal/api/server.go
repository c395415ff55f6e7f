package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/dropbox/godropbox/time2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github/chapool/go-withdrawer/internal/alert"
	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/internal/metrics"
	"github/chapool/go-withdrawer/internal/wallet/address"
	"github/chapool/go-withdrawer/internal/wallet/hotwallet"
	"github/chapool/go-withdrawer/internal/wallet/keystore"
	"github/chapool/go-withdrawer/internal/wallet/ledger"
	"github/chapool/go-withdrawer/internal/wallet/seed"
	"github/chapool/go-withdrawer/internal/wallet/withdraw"

	// Import postgres and sqlite drivers for database/sql package
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

type Router struct {
	Routes      []*echo.Route
	Root        *echo.Group
	Management  *echo.Group
	APIV1       *echo.Group
	Withdrawals *echo.Group
}

// Server is a central struct keeping all the dependencies.
// It is initialized with wire, which handles making the new instances of the components
// in the right order. To add a new component, 3 steps are required:
// - declaring it in this struct
// - adding a provider function in providers.go
// - adding the provider's function name to the arguments of wire.Build() in wire.go
//
// Components labeled as `wire:"-"` will be skipped and have to be initialized after the InitNewServer* call.
// For more information about wire refer to https://pkg.go.dev/github.com/google/wire
type Server struct {
	// skip wire:
	// -> initialized with router.Init(s) function
	Echo   *echo.Echo `wire:"-"`
	Router *Router    `wire:"-"`
	// -> initialized with s.InitEngine(ctx, prompt) once the wallet is unlocked
	Gateway   ledger.Gateway    `wire:"-"`
	HotWallet hotwallet.Service `wire:"-"`
	Engine    withdraw.Service  `wire:"-"`
	Runner    *withdraw.Runner  `wire:"-"`

	Config   config.Server
	DB       *sql.DB               // nil unless QUEUE_BACKEND=sql
	Redis    redis.UniversalClient // nil unless QUEUE_BACKEND=redis
	Clock    time2.Clock
	Metrics  *metrics.Service
	Store    withdraw.Store
	Alerter  alert.Alerter
	Seed     seed.Manager
	Keystore keystore.Service
	Address  address.Service

	ledgerClient *ledger.Client
}

// newServerWithComponents is used by wire to initialize the server components.
// Components not listed here won't be handled by wire and should be initialized separately.
// Components which shouldn't be handled must be labeled `wire:"-"` in Server struct.
func newServerWithComponents(
	cfg config.Server,
	db *sql.DB,
	rdb redis.UniversalClient,
	clock time2.Clock,
	metrics *metrics.Service,
	store withdraw.Store,
	alerter alert.Alerter,
	seedManager seed.Manager,
	keystoreService keystore.Service,
	addressService address.Service,
) *Server {
	return &Server{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Clock:    clock,
		Metrics:  metrics,
		Store:    store,
		Alerter:  alerter,
		Seed:     seedManager,
		Keystore: keystoreService,
		Address:  addressService,
	}
}

func NewServer(config config.Server) *Server {
	s := &Server{
		Config: config,
	}

	return s
}

// Ready reports whether the components required to serve requests are set.
func (s *Server) Ready() bool {
	missing := ""
	switch {
	case s.Echo == nil:
		missing = "echo"
	case s.Router == nil:
		missing = "router"
	case s.Store == nil:
		missing = "store"
	case s.Metrics == nil:
		missing = "metrics"
	case s.Clock == nil:
		missing = "clock"
	}

	if missing != "" {
		log.Debug().Str("component", missing).Msg("Server is not fully initialized")
		return false
	}

	return true
}

// EngineReady reports whether the wallet is unlocked and the engine wired.
func (s *Server) EngineReady() bool {
	return s.Engine != nil && s.Runner != nil && s.HotWallet != nil && s.Gateway != nil
}

func (s *Server) Start() error {
	if !s.Ready() {
		return errors.New("server is not ready")
	}

	if err := s.Echo.Start(s.Config.Management.ListenAddress); err != nil {
		return fmt.Errorf("failed to start echo server: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) []error {
	log.Warn().Msg("Shutting down server")

	var errs []error

	if s.Echo != nil {
		log.Debug().Msg("Shutting down echo server")

		if err := s.Echo.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Failed to shutdown echo server")
			errs = append(errs, err)
		}
	}

	if s.ledgerClient != nil {
		log.Debug().Msg("Closing ledger RPC clients")
		s.ledgerClient.Close()
	}

	if s.Seed != nil {
		s.Seed.Clear()
	}

	if s.Redis != nil {
		log.Debug().Msg("Closing redis connection")

		if err := s.Redis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			log.Error().Err(err).Msg("Failed to close redis connection")
			errs = append(errs, err)
		}
	}

	if s.DB != nil {
		log.Debug().Msg("Closing database connection")

		if err := s.DB.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			log.Error().Err(err).Msg("Failed to close database connection")
			errs = append(errs, err)
		}
	}

	return errs
}
