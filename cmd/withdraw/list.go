package withdraw

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github/chapool/go-withdrawer/internal/api"
	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/internal/util/command"
	"github/chapool/go-withdrawer/internal/wallet/withdraw"
)

func newList() *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lists withdrawal requests in queue order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd.Context(), withdraw.ListOptions{Status: withdraw.Status(status), Limit: limit})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, completed)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of requests, 0 for all")

	return cmd
}

//nolint:forbidigo // the command prints a table
func runList(ctx context.Context, opts withdraw.ListOptions) error {
	cfg := config.DefaultServiceConfigFromEnv()

	return command.WithServer(ctx, cfg, func(ctx context.Context, s *api.Server) error {
		requests, err := s.Store.List(ctx, opts)
		if err != nil {
			return err
		}

		assets, _ := s.Assets()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tTOKEN\tKIND\tAMOUNT\tDESTINATION\tCREATED")

		for _, req := range requests {
			token := "-"
			if req.Token != nil {
				token = fmt.Sprintf("%d", *req.Token)
			}

			amount := req.Amount.String()
			if asset, ok := assets[req.TokenKind]; ok {
				amount = withdraw.FormatAmount(req.Amount, asset.Decimals)
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				req.ID, req.Status, token, req.TokenKind, amount, req.Destination.Hex(), req.CreatedAt.Format("2006-01-02 15:04:05"))
		}

		return w.Flush()
	})
}
