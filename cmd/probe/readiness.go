package probe

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github/chapool/go-withdrawer/internal/api"
	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/internal/util/command"
	"github/chapool/go-withdrawer/internal/wallet/ledger"
)

func newReadiness() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "readiness",
		Short: "Runs readiness probes",
		Long: `Validates the configuration, checks the queue store and that
every configured ledger node answers. Does not unlock the wallet.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			verbose, err := cmd.Flags().GetBool(verboseFlag)
			if err != nil {
				return err
			}

			return runReadiness(cmd.Context(), verbose)
		},
	}

	cmd.Flags().BoolP(verboseFlag, "v", false, "Show verbose output.")

	return cmd
}

//nolint:forbidigo // probe output
func runReadiness(ctx context.Context, verbose bool) error {
	cfg := config.DefaultServiceConfigFromEnv()
	if err := cfg.LoadAndValidate(); err != nil {
		return err
	}

	return command.WithServer(ctx, cfg, func(ctx context.Context, s *api.Server) error {
		ctx, cancel := context.WithTimeout(ctx, livenessTimeout)
		defer cancel()

		depth, err := s.Store.Len(ctx)
		if err != nil {
			return fmt.Errorf("queue store unreachable: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stdout, "Queue (%s): %d pending\n", cfg.Queue.Backend, depth)
		}

		for _, url := range cfg.Ledger.RPCURLs {
			client, err := ledger.Dial(ctx, []string{url}, cfg.Ledger.RequestTimeout)
			if err != nil {
				return fmt.Errorf("ledger node %s: %w", url, err)
			}

			// any account works, only reachability matters
			_, err = client.GetBalance(ctx, common.Address{})
			client.Close()
			if err != nil {
				return fmt.Errorf("ledger node %s: %w", url, err)
			}

			if verbose {
				fmt.Fprintf(os.Stdout, "Ledger node %s: ok\n", url)
			}
		}

		return nil
	})
}
