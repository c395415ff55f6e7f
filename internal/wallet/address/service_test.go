package address_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-withdrawer/internal/wallet/address"
	"github/chapool/go-withdrawer/internal/wallet/seed"
)

func testSeed(t *testing.T) []byte {
	t.Helper()

	m := seed.NewManager()
	require.NoError(t, m.Initialize("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about", ""))

	return m.GetSeed()
}

func TestDeriveAddress(t *testing.T) {
	svc := address.NewService()

	addr, err := svc.DeriveAddress(context.Background(), testSeed(t), address.DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94"), addr)

	other, err := svc.DeriveAddress(context.Background(), testSeed(t), "m/44'/60'/0'/0/1")
	require.NoError(t, err)
	assert.NotEqual(t, addr, other)
}

func TestParsePath(t *testing.T) {
	indices, err := address.ParsePath("m/44'/60'/0'/0/7")
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x8000002c, 0x8000003c, 0x80000000, 0, 7}, indices)

	for _, bad := range []string{"", "m", "44'/60'", "m/abc", "m/44'//0", "m/4294967295"} {
		_, err := address.ParsePath(bad)
		assert.Error(t, err, bad)
	}
}

func TestAssetHoldingAddressIsDeterministic(t *testing.T) {
	svc := address.NewService()
	master := common.HexToAddress("0x1000000000000000000000000000000000000001")
	owner := common.HexToAddress("0x2000000000000000000000000000000000000002")

	first := svc.AssetHoldingAddress(master, owner)
	assert.Equal(t, first, svc.AssetHoldingAddress(master, owner))
	assert.NotEqual(t, first, svc.AssetHoldingAddress(master, common.HexToAddress("0x3000000000000000000000000000000000000003")))
	assert.NotEqual(t, first, svc.AssetHoldingAddress(owner, master))
}
