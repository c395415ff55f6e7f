package withdraw

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ParseAmount parses an integer amount in the asset's smallest unit or, with
// units set, a human amount such as "1.5" scaled by decimals.
func ParseAmount(raw string, decimals int32, units bool) (*big.Int, error) {
	raw = strings.TrimSpace(raw)

	if !units {
		amount, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidRequest, "amount %q is not an integer", raw)
		}
		return amount, nil
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidRequest, "amount %q is not a number", raw)
	}

	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, errors.Wrapf(ErrInvalidRequest, "amount %q has more than %d decimals", raw, decimals)
	}

	return scaled.BigInt(), nil
}

// FormatAmount renders amount in human units.
func FormatAmount(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}

	return decimal.NewFromBigInt(amount, -decimals).String()
}
