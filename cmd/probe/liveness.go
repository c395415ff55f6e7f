package probe

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github/chapool/go-withdrawer/internal/api"
	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/internal/util/command"
)

const livenessTimeout = 5 * time.Second

func newLiveness() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liveness",
		Short: "Runs liveness probes",
		Long: `Checks that the queue store answers.
Exits with a non-zero code if it does not.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			verbose, err := cmd.Flags().GetBool(verboseFlag)
			if err != nil {
				return err
			}

			return runLiveness(cmd.Context(), verbose)
		},
	}

	cmd.Flags().BoolP(verboseFlag, "v", false, "Show verbose output.")

	return cmd
}

func runLiveness(ctx context.Context, verbose bool) error {
	cfg := config.DefaultServiceConfigFromEnv()

	return command.WithServer(ctx, cfg, func(ctx context.Context, s *api.Server) error {
		ctx, cancel := context.WithTimeout(ctx, livenessTimeout)
		defer cancel()

		depth, err := s.Store.Len(ctx)
		if err != nil {
			return fmt.Errorf("queue store unreachable: %w", err)
		}

		if verbose {
			//nolint:forbidigo // probe output
			fmt.Fprintf(os.Stdout, "Queue (%s): %d pending\n", cfg.Queue.Backend, depth)
		}

		return nil
	})
}
