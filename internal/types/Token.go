/*

This file contains the configuration types for leverage tokens: identity, the
collateral/debt pair backing a token, and the swap adapter wired to each leg.

*/

package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// Asset identifies an ERC20 asset on a specific chain.
type Asset struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals int            `json:"decimals"`
}

// AdapterType selects which swap backend serves a leg.
type AdapterType string

const (
	AdapterUniswapV3 AdapterType = "uniswapv3"
	AdapterVelora    AdapterType = "velora"
	AdapterLiFi      AdapterType = "lifi"
)

// SwapIntent specifies which side of a swap is fixed.
type SwapIntent string

const (
	IntentExactIn  SwapIntent = "exact-in"
	IntentExactOut SwapIntent = "exact-out"
)

// SwapDescriptor configures the adapter for one swap leg of a plan.
type SwapDescriptor struct {
	Adapter AdapterType `json:"adapter"`
	// PoolFeeBps is the fee tier for pool-router adapters (uniswapv3), in bps.
	PoolFeeBps int `json:"pool_fee_bps,omitempty"`
	// Router is the on-chain router the adapter's calls are addressed to.
	Router common.Address `json:"router"`
}

// APYConfig holds optional yield-display configuration for a token.
type APYConfig struct {
	PointsMultiplier float64 `json:"points_multiplier,omitempty"`
}

// LeverageTokenConfig is the static per-chain configuration of one leverage
// token. Resolved once per chain and never mutated afterwards.
type LeverageTokenConfig struct {
	Address    common.Address  `json:"address"`
	ChainID    uint64          `json:"chain_id"`
	Symbol     string          `json:"symbol"`
	Decimals   int             `json:"decimals"`
	Collateral Asset           `json:"collateral"`
	Debt       Asset           `json:"debt"`
	Swap       *SwapDescriptor `json:"swap,omitempty"`
	APY        *APYConfig      `json:"apy,omitempty"`
	// LensAddress is the preview/simulate entry point for this token.
	LensAddress common.Address `json:"lens_address"`
}

// SameAssetPair reports whether the token's collateral and debt are the same
// asset, in which case no swap leg is needed for mint or redeem.
func (c LeverageTokenConfig) SameAssetPair() bool {
	return c.Collateral.Address == c.Debt.Address
}
