package keystore

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/spf13/cobra"
	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/internal/util"
	"github/chapool/go-withdrawer/internal/wallet"
	"github/chapool/go-withdrawer/internal/wallet/address"
	"github/chapool/go-withdrawer/internal/wallet/keystore"
	"github/chapool/go-withdrawer/internal/wallet/seed"
)

func newAddress() *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Unlocks the wallet and prints its address and asset holding accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAddress(cmd.Context())
		},
	}
}

//nolint:forbidigo // the command prints addresses
func runAddress(ctx context.Context) error {
	cfg := config.DefaultServiceConfigFromEnv()
	util.ConfigureLogger(cfg.Logger.Level, cfg.Logger.PrettyPrintConsole)

	seedManager := seed.NewManager()
	defer seedManager.Clear()

	addressService := address.NewService()

	addr, err := wallet.Unlock(ctx, cfg.Wallet, seedManager, keystore.NewService(cfg.Wallet.KeystorePath), addressService, wallet.TerminalPrompt())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Wallet: %s (%s)\n", addr.Hex(), cfg.Wallet.DerivationPath)

	assets, err := config.LoadAssets(cfg.Wallet.AssetsFile)
	if err != nil {
		return nil //nolint:nilerr // holding accounts are optional output
	}

	for _, kind := range (config.Wallet{Assets: assets}).AssetKinds() {
		asset := assets[kind]
		holding := addressService.AssetHoldingAddress(common.HexToAddress(asset.Master), addr)
		if asset.Holding != "" {
			holding = common.HexToAddress(asset.Holding)
		}
		fmt.Fprintf(os.Stdout, "%s holding: %s\n", kind, holding.Hex())
	}

	return nil
}
