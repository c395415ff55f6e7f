package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/go-withdrawer/cmd/db"
	"github/chapool/go-withdrawer/cmd/env"
	"github/chapool/go-withdrawer/cmd/keystore"
	"github/chapool/go-withdrawer/cmd/probe"
	"github/chapool/go-withdrawer/cmd/server"
	"github/chapool/go-withdrawer/cmd/withdraw"
	"github/chapool/go-withdrawer/internal/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Version: config.GetFormattedBuildArgs(),
	Use:     "app",
	Short:   config.ModuleName,
	Long: fmt.Sprintf(`%v

Processes queued asset withdrawals from a hot wallet one at a time,
using the wallet sequence number as idempotency token.
Requires configuration through ENV.`, config.ModuleName),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	// attach the subcommands
	rootCmd.AddCommand(
		db.New(),
		env.New(),
		keystore.New(),
		probe.New(),
		server.New(),
		withdraw.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Failed to execute root command")
		os.Exit(1)
	}
}
