/*

This file contains the plan value objects produced by the mint and redeem
planners, and the quote shape shared with the swap adapters. All of these are
computed fresh per request and never mutated after construction.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// Call is one step of an atomically-composed transaction, executed through a
// single multicall-style entry point.
type Call struct {
	Target common.Address `json:"target"`
	Data   []byte         `json:"data"`
	Value  sdkmath.Int    `json:"value"`
}

// Quote is the result of one swap leg. Out is the computed (non-fixed) side:
// the output amount for an exact-in quote, the required input amount for an
// exact-out quote. Quotes are produced fresh per request and never reused
// across differing input amounts.
type Quote struct {
	Out            sdkmath.Int    `json:"out"`
	ApprovalTarget common.Address `json:"approval_target"`
	Calls          []Call         `json:"calls"`
}

// LeverageState is the token's current leverage ratio window, read at a
// pinned block number. Ratios are decimal multiples (2.0 = 2x).
type LeverageState struct {
	Target float64 `json:"target"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// MintPlan is the full plan to open a position from a desired equity amount.
// Invariant: MinShares <= PreviewShares; FlashLoanAmount is derived from the
// target leverage state, never user-supplied.
type MintPlan struct {
	EquityInCollateral sdkmath.Int `json:"equity_in_collateral"`
	FlashLoanAmount    sdkmath.Int `json:"flash_loan_amount"`
	PreviewShares      sdkmath.Int `json:"preview_shares"`
	MinShares          sdkmath.Int `json:"min_shares"`
	ExpectedExcessDebt sdkmath.Int `json:"expected_excess_debt"`
	BlockNumber        uint64      `json:"block_number"`
	Calls              []Call      `json:"calls"`
}

// RedeemPlan is the full plan to close (or partially close) a position.
// Invariant: MinCollateralForSender <= PreviewCollateralForSender.
type RedeemPlan struct {
	SharesToRedeem             sdkmath.Int `json:"shares_to_redeem"`
	PreviewCollateralForSender sdkmath.Int `json:"preview_collateral_for_sender"`
	MinCollateralForSender     sdkmath.Int `json:"min_collateral_for_sender"`
	PreviewExcessDebt          sdkmath.Int `json:"preview_excess_debt"`
	MinExcessDebt              sdkmath.Int `json:"min_excess_debt"`
	CollateralToDebtQuote      *Quote      `json:"collateral_to_debt_quote,omitempty"`
	// USD figures are populated only when a price and decimals are supplied.
	// GuaranteedUSD is computed from the floored minimum amount.
	ExpectedUSD   float64 `json:"expected_usd,omitempty"`
	GuaranteedUSD float64 `json:"guaranteed_usd,omitempty"`
	BlockNumber   uint64  `json:"block_number"`
	Calls         []Call  `json:"calls"`
}

// Receipt is the outcome of a written transaction.
type Receipt struct {
	TxHash  common.Hash `json:"tx_hash"`
	Success bool        `json:"success"`
	GasUsed uint64      `json:"gas_used"`
}
