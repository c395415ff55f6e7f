package withdraw_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-withdrawer/internal/wallet/withdraw"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw      string
		decimals int32
		units    bool
		want     string
	}{
		{"1000", 9, false, "1000"},
		{" 42 ", 0, false, "42"},
		{"1.5", 9, true, "1500000000"},
		{"0.000000001", 9, true, "1"},
		{"123456789012345678901234567890", 0, true, "123456789012345678901234567890"},
		{"2", 18, true, "2000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := withdraw.ParseAmount(tt.raw, tt.decimals, tt.units)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseAmountRejects(t *testing.T) {
	for _, raw := range []string{"", "abc", "1.5"} {
		_, err := withdraw.ParseAmount(raw, 9, false)
		require.ErrorIs(t, err, withdraw.ErrInvalidRequest, raw)
	}

	_, err := withdraw.ParseAmount("0.0000000001", 9, true)
	require.ErrorIs(t, err, withdraw.ErrInvalidRequest)

	_, err = withdraw.ParseAmount("x", 9, true)
	require.ErrorIs(t, err, withdraw.ErrInvalidRequest)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1.5", withdraw.FormatAmount(big.NewInt(1_500_000_000), 9))
	assert.Equal(t, "0", withdraw.FormatAmount(nil, 9))
	assert.Equal(t, "7", withdraw.FormatAmount(big.NewInt(7), 0))
}
