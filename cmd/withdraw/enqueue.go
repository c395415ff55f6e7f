package withdraw

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github/chapool/go-withdrawer/internal/api"
	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/internal/util/command"
)

type enqueueFlags struct {
	TokenKind string
	Amount    string
	To        string
	Units     bool
}

func newEnqueue() *cobra.Command {
	var flags enqueueFlags

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Appends a withdrawal request to the queue",
		Example: `  app withdraw enqueue --token-kind ENERGY --amount 1000000000 --to 0x...
  app withdraw enqueue --token-kind ENERGY --amount 1.5 --units --to 0x...`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEnqueue(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.TokenKind, "token-kind", "", "Asset kind as configured in the assets file")
	cmd.Flags().StringVar(&flags.Amount, "amount", "", "Amount in the asset's smallest unit")
	cmd.Flags().StringVar(&flags.To, "to", "", "Destination address")
	cmd.Flags().BoolVar(&flags.Units, "units", false, "Interpret --amount in human units scaled by the asset decimals")

	for _, name := range []string{"token-kind", "amount", "to"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}

	return cmd
}

func runEnqueue(ctx context.Context, flags enqueueFlags) error {
	cfg := config.DefaultServiceConfigFromEnv()

	return command.WithServer(ctx, cfg, func(ctx context.Context, s *api.Server) error {
		req, err := s.EnqueueWithdrawal(ctx, flags.TokenKind, flags.Amount, flags.Units, flags.To)
		if err != nil {
			return err
		}

		//nolint:forbidigo // the command prints the new request id
		fmt.Fprintln(os.Stdout, req.ID)

		return nil
	})
}
