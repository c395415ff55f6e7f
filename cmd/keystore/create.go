package keystore

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/internal/util"
	"github/chapool/go-withdrawer/internal/wallet"
	"github/chapool/go-withdrawer/internal/wallet/address"
	"github/chapool/go-withdrawer/internal/wallet/keystore"
)

func newCreate() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Creates the encrypted keystore file",
		Long: `Generates a new 24 word mnemonic, or imports WALLET_MNEMONIC when set,
and encrypts it into WALLET_KEYSTORE_PATH. The password is read from
WALLET_KEYSTORE_PASSWORD or prompted for.

A generated mnemonic is printed exactly once. Write it down.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCreate(cmd.Context())
		},
	}
}

//nolint:forbidigo // the mnemonic must reach the operator
func runCreate(ctx context.Context) error {
	cfg := config.DefaultServiceConfigFromEnv()
	util.ConfigureLogger(cfg.Logger.Level, cfg.Logger.PrettyPrintConsole)

	generated := cfg.Wallet.Mnemonic == ""

	mnemonic, addr, err := wallet.CreateKeystore(ctx, cfg.Wallet, keystore.NewService(cfg.Wallet.KeystorePath), address.NewService(), wallet.TerminalPrompt())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Keystore: %s\nAddress:  %s\n", cfg.Wallet.KeystorePath, addr.Hex())
	if generated {
		fmt.Fprintf(os.Stdout, "\nMnemonic (back it up, it is not shown again):\n%s\n", mnemonic)
	}

	return nil
}
