package withdraw

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/go-withdrawer/internal/api"
	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/internal/util/command"
	"github/chapool/go-withdrawer/internal/wallet"
)

const followFlag = "follow"

func newRun() *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Processes the withdrawal queue",
		Long: `Processes queued withdrawals one at a time until the queue is empty.
With --follow it keeps polling for new requests until interrupted.
Interrupting waits for the tick in flight.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithdrawals(cmd.Context(), follow)
		},
	}

	cmd.Flags().BoolVarP(&follow, followFlag, "f", false, "Keep polling after the queue is drained")

	return cmd
}

func runWithdrawals(ctx context.Context, follow bool) error {
	cfg := config.DefaultServiceConfigFromEnv()
	if follow {
		cfg.Engine.ExitWhenEmpty = false
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return command.WithServer(ctx, cfg, func(ctx context.Context, s *api.Server) error {
		if err := s.InitEngine(ctx, wallet.TerminalPrompt()); err != nil {
			return errors.Wrap(err, "failed to initialize withdrawal engine")
		}

		if err := s.Runner.Run(ctx); err != nil {
			return err
		}

		depth, err := s.Store.Len(context.WithoutCancel(ctx))
		if err != nil {
			return errors.Wrap(err, "failed to read queue depth")
		}

		if depth == 0 {
			log.Info().Msg("All withdrawals processed")
		} else {
			log.Info().Int("queue_depth", depth).Msg("Stopped with pending withdrawals")
		}

		return nil
	})
}
