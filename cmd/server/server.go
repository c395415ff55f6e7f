package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/go-withdrawer/internal/api"
	"github/chapool/go-withdrawer/internal/api/router"
	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/internal/util"
	"github/chapool/go-withdrawer/internal/wallet"
	"github/chapool/go-withdrawer/migrations"
)

const (
	migrateFlag     = "migrate"
	shutdownTimeout = 30 * time.Second
)

type Flags struct {
	ApplyMigrations bool
}

func New() *cobra.Command {
	var flags Flags

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Starts the withdrawal engine and the management server",
		Long: `Unlocks the hot wallet, then processes the withdrawal queue until
interrupted while serving probes, metrics and the queue API.`,
		Run: func(cmd *cobra.Command, _ []string) {
			runServer(cmd.Context(), flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.ApplyMigrations, migrateFlag, "m", false, "Apply migrations before starting (QUEUE_BACKEND=sql only)")

	return cmd
}

func runServer(ctx context.Context, flags Flags) {
	cfg := config.DefaultServiceConfigFromEnv()
	// a server keeps polling, new requests can arrive at any time
	cfg.Engine.ExitWhenEmpty = false

	util.ConfigureLogger(cfg.Logger.Level, cfg.Logger.PrettyPrintConsole)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := api.InitNewServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}

	if flags.ApplyMigrations && s.DB != nil {
		n, err := migrations.Apply(s.DB, cfg.Database.Driver)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		log.Info().Int("appliedMigrationsCount", n).Msg("Applied migrations")
	}

	if err := s.InitEngine(ctx, wallet.TerminalPrompt()); err != nil {
		s.Shutdown(context.Background())
		log.Fatal().Err(err).Msg("Failed to initialize withdrawal engine")
	}

	if err := router.Init(s); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize router")
	}

	if s.Config.Management.Enabled {
		go func() {
			log.Info().Str("addr", s.Config.Management.ListenAddress).Msg("Starting management server")
			if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Management server stopped")
				stop()
			}
		}()
	}

	if err := s.Runner.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Withdrawal runner stopped with error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if errs := s.Shutdown(shutdownCtx); len(errs) > 0 {
		log.Fatal().Errs("shutdownErrors", errs).Msg("Failed to gracefully shut down server")
	}

	log.Info().Msg("Server shut down")
}
