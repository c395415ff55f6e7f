package config

import (
	"os"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Asset describes one withdrawable token kind.
type Asset struct {
	// Master is the asset's issuing account; holding accounts are derived from it.
	Master string `toml:"master"`
	// Holding optionally pins the hot wallet's holding account instead of deriving it.
	Holding  string `toml:"holding"`
	Decimals int32  `toml:"decimals"`
}

type assetsFile struct {
	Assets map[string]Asset `toml:"assets"`
}

// LoadAssets reads the asset registry from a TOML file:
//
//	[assets.ENERGY]
//	master = "0x..."
//	decimals = 9
func LoadAssets(path string) (map[string]Asset, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "assets file %q is not readable", path)
	}

	var file assetsFile
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode assets file %q", path)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("unknown keys in assets file %q: %v", path, undecoded)
	}

	return file.Assets, nil
}

// AssetKinds returns the configured token kinds in a stable order.
func (w Wallet) AssetKinds() []string {
	kinds := make([]string, 0, len(w.Assets))
	for kind := range w.Assets {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	return kinds
}

func validateAsset(kind string, asset Asset) error {
	if !common.IsHexAddress(asset.Master) {
		return errors.Errorf("asset %s: master address %q is invalid", kind, asset.Master)
	}

	if asset.Holding != "" && !common.IsHexAddress(asset.Holding) {
		return errors.Errorf("asset %s: holding address %q is invalid", kind, asset.Holding)
	}

	//nolint:mnd // 36 decimals is far beyond any real asset
	if asset.Decimals < 0 || asset.Decimals > 36 {
		return errors.Errorf("asset %s: decimals %d out of range", kind, asset.Decimals)
	}

	return nil
}
