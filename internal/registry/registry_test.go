package registry_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nereus-fi/levengine/internal/registry"
	"github.com/nereus-fi/levengine/internal/types"
	"github.com/stretchr/testify/require"
)

func validConfig() types.LeverageTokenConfig {
	return types.LeverageTokenConfig{
		Address:  common.HexToAddress("0x1000000000000000000000000000000000000001"),
		ChainID:  8453,
		Symbol:   "wstETH3x",
		Decimals: 18,
		Collateral: types.Asset{
			Address:  common.HexToAddress("0x2000000000000000000000000000000000000002"),
			Symbol:   "wstETH",
			Decimals: 18,
		},
		Debt: types.Asset{
			Address:  common.HexToAddress("0x3000000000000000000000000000000000000003"),
			Symbol:   "WETH",
			Decimals: 18,
		},
		LensAddress: common.HexToAddress("0x4000000000000000000000000000000000000004"),
	}
}

func TestNewRejectsInvalidConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*types.LeverageTokenConfig)
	}{
		{"zero token address", func(c *types.LeverageTokenConfig) { c.Address = common.Address{} }},
		{"zero chain id", func(c *types.LeverageTokenConfig) { c.ChainID = 0 }},
		{"decimals too large", func(c *types.LeverageTokenConfig) { c.Decimals = 19 }},
		{"negative decimals", func(c *types.LeverageTokenConfig) { c.Decimals = -1 }},
		{"zero collateral address", func(c *types.LeverageTokenConfig) { c.Collateral.Address = common.Address{} }},
		{"zero debt address", func(c *types.LeverageTokenConfig) { c.Debt.Address = common.Address{} }},
		{"collateral decimals out of range", func(c *types.LeverageTokenConfig) { c.Collateral.Decimals = 19 }},
		{"zero lens address", func(c *types.LeverageTokenConfig) { c.LensAddress = common.Address{} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			_, err := registry.New(cfg)
			require.ErrorIs(t, err, registry.ErrInvalidConfig)
		})
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	cfg := validConfig()
	_, err := registry.New(cfg, cfg)
	require.ErrorIs(t, err, registry.ErrDuplicateToken)

	// Same address on different chains is not a duplicate.
	other := validConfig()
	other.ChainID = 1
	_, err = registry.New(cfg, other)
	require.NoError(t, err)
}

func TestLookup(t *testing.T) {
	cfg := validConfig()
	reg, err := registry.New(cfg)
	require.NoError(t, err)

	got, ok := reg.Lookup(cfg.ChainID, cfg.Address)
	require.True(t, ok)
	require.Equal(t, cfg.Symbol, got.Symbol)

	_, ok = reg.Lookup(cfg.ChainID, common.HexToAddress("0xdead000000000000000000000000000000000000"))
	require.False(t, ok)

	_, ok = reg.Lookup(999, cfg.Address)
	require.False(t, ok)
}

func TestByChainOrdering(t *testing.T) {
	a := validConfig()
	a.Address = common.HexToAddress("0xb000000000000000000000000000000000000001")
	b := validConfig()
	b.Address = common.HexToAddress("0xA000000000000000000000000000000000000001")

	reg, err := registry.New(a, b)
	require.NoError(t, err)

	configs := reg.ByChain(a.ChainID)
	require.Len(t, configs, 2)
	require.Equal(t, b.Address, configs[0].Address)
	require.Equal(t, a.Address, configs[1].Address)

	require.Nil(t, reg.ByChain(999))
}

func TestChains(t *testing.T) {
	a := validConfig()
	b := validConfig()
	b.ChainID = 1

	reg, err := registry.New(a, b)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 8453}, reg.Chains())
}
