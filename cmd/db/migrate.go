package db

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/go-withdrawer/internal/api"
	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/internal/util/command"
	"github/chapool/go-withdrawer/migrations"
)

func newMigrate() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Executes all migrations which are not yet applied.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrateCmdFunc(cmd.Context())
		},
	}
}

func migrateCmdFunc(ctx context.Context) error {
	cfg := config.DefaultServiceConfigFromEnv()
	if cfg.Queue.Backend != api.QueueBackendSQL {
		return errors.Errorf("migrations only apply to QUEUE_BACKEND=%s, got %q", api.QueueBackendSQL, cfg.Queue.Backend)
	}

	return command.WithServer(ctx, cfg, func(_ context.Context, s *api.Server) error {
		n, err := migrations.Apply(s.DB, cfg.Database.Driver)
		if err != nil {
			log.Error().Err(err).Msg("Error while applying migrations")
			return errors.Wrap(err, "failed to apply migrations")
		}

		log.Info().Int("appliedMigrationsCount", n).Msg("Successfully applied migrations")

		return nil
	})
}
