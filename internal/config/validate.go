package config

import (
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
)

// Validate reports configuration errors that must stop the process before
// the withdrawal loop starts.
func (c Server) Validate() error {
	err := vala.BeginValidation().Validate(
		vala.Not(vala.HasLen(c.Ledger.RPCURLs, 0, "LEDGER_RPC_URLS")),
		vala.StringNotEmpty(c.Wallet.DerivationPath, "WALLET_DERIVATION_PATH"),
		vala.GreaterThan(len(c.Wallet.Assets), 0, "WALLET_ASSETS_FILE (asset count)"),
		vala.GreaterThan(c.Engine.ScanWindow, 0, "ENGINE_SCAN_WINDOW"),
		vala.GreaterThan(int(c.Engine.TickInterval.Milliseconds()), 0, "ENGINE_TICK_INTERVAL"),
		vala.IsNotNil(c.Engine.FeeReserve, "ENGINE_FEE_RESERVE"),
		vala.IsNotNil(c.Engine.AttachedValue, "ENGINE_ATTACHED_VALUE"),
	).Check()
	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	for _, kind := range c.Wallet.AssetKinds() {
		if err := validateAsset(kind, c.Wallet.Assets[kind]); err != nil {
			return errors.Wrap(err, "invalid configuration")
		}
	}

	if c.Wallet.Mnemonic == "" && c.Wallet.KeystorePath == "" {
		return errors.New("invalid configuration: either WALLET_MNEMONIC or WALLET_KEYSTORE_PATH is required")
	}

	switch c.Queue.Backend {
	case "sql", "redis", "memory":
	default:
		return errors.Errorf("invalid configuration: unknown QUEUE_BACKEND %q", c.Queue.Backend)
	}

	return nil
}

// LoadAndValidate loads the asset registry referenced by the config and validates the result.
func (c *Server) LoadAndValidate() error {
	if c.Wallet.Assets == nil {
		assets, err := LoadAssets(c.Wallet.AssetsFile)
		if err != nil {
			return errors.Wrap(err, "invalid configuration")
		}
		c.Wallet.Assets = assets
	}

	return c.Validate()
}
