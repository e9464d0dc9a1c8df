package registry

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/nereus-fi/levengine/internal/types"
)

// Base mainnet asset addresses.
var (
	baseWETH   = common.HexToAddress("0x4200000000000000000000000000000000000006")
	baseWeETH  = common.HexToAddress("0x04C0599Ae5A44757c0af6F9eC3b93da8976c150A")
	baseWstETH = common.HexToAddress("0xc1CBa3fCea344f92D9239c08C0568f6F2F0ee452")
	baseUSDC   = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
)

// DefaultTokens is the baseline leverage token table. Deployments can extend
// it, but entries are fixed for a given release.
var DefaultTokens = []types.LeverageTokenConfig{
	{
		Address:  common.HexToAddress("0x2d9bE75dE6505A9e9FC87Ac86bdE7B2e6EfBcbF5"),
		ChainID:  8453,
		Symbol:   "weETH3x",
		Decimals: 18,
		Collateral: types.Asset{
			Address:  baseWeETH,
			Symbol:   "weETH",
			Decimals: 18,
		},
		Debt: types.Asset{
			Address:  baseWETH,
			Symbol:   "WETH",
			Decimals: 18,
		},
		Swap: &types.SwapDescriptor{
			Adapter:    types.AdapterUniswapV3,
			PoolFeeBps: 5,
			Router:     common.HexToAddress("0x2626664c2603336E57B271c5C0b26F421741e481"),
		},
		APY: &types.APYConfig{
			PointsMultiplier: 3.0,
		},
		LensAddress: common.HexToAddress("0x38Ba21C6Bf31dF1b1798FCEd07B4e9b07C5ec3a8"),
	},
	{
		Address:  common.HexToAddress("0x9c6864105AEC23388C89600046213a44C384c831"),
		ChainID:  8453,
		Symbol:   "wstETH2x",
		Decimals: 18,
		Collateral: types.Asset{
			Address:  baseWstETH,
			Symbol:   "wstETH",
			Decimals: 18,
		},
		Debt: types.Asset{
			Address:  baseWETH,
			Symbol:   "WETH",
			Decimals: 18,
		},
		Swap: &types.SwapDescriptor{
			Adapter: types.AdapterVelora,
			Router:  common.HexToAddress("0x6A000F20005980200259B80c5102003040001068"),
		},
		LensAddress: common.HexToAddress("0x38Ba21C6Bf31dF1b1798FCEd07B4e9b07C5ec3a8"),
	},
	{
		Address:  common.HexToAddress("0x5F4d15d8C3f13bC7E405B87b3e0fA14B17c7E105"),
		ChainID:  8453,
		Symbol:   "wstETH-USDC2x",
		Decimals: 18,
		Collateral: types.Asset{
			Address:  baseWstETH,
			Symbol:   "wstETH",
			Decimals: 18,
		},
		Debt: types.Asset{
			Address:  baseUSDC,
			Symbol:   "USDC",
			Decimals: 6,
		},
		Swap: &types.SwapDescriptor{
			Adapter: types.AdapterLiFi,
			Router:  common.HexToAddress("0x1231DEB6f5749EF6cE6943a275A1D3E7486F4EaE"),
		},
		LensAddress: common.HexToAddress("0x38Ba21C6Bf31dF1b1798FCEd07B4e9b07C5ec3a8"),
	},
}

// Default builds the registry from DefaultTokens.
func Default() (*Registry, error) {
	return New(DefaultTokens...)
}
