/*

This file contains the aggregated yield value object. A result is always
replaced wholesale on refresh, never partially mutated.

*/

package types

import "github.com/ethereum/go-ethereum/common"

// Yield source names used as keys of AggregatedAPY.Errors.
const (
	SourceLeverageRatios = "leverageRatios"
	SourceStakingAPR     = "stakingAPR"
	SourceBorrowRate     = "borrowRate"
	SourceRewardsAPR     = "rewardsAPR"
)

// RewardToken is one entry of an optional per-reward-token breakdown.
type RewardToken struct {
	Address common.Address `json:"address"`
	Symbol  string         `json:"symbol"`
	APR     float64        `json:"apr"`
}

// AggregatedAPY is the composite yield figure for one leverage token. All
// rate fields are decimal fractions (0.05 = 5%). BorrowRate carries a
// negative sign: borrowing is a cost. Points are tracked separately and are
// not part of TotalAPY.
type AggregatedAPY struct {
	Token          common.Address   `json:"token"`
	TargetLeverage float64          `json:"target_leverage"`
	StakingYield   float64          `json:"staking_yield"`
	RestakingYield float64          `json:"restaking_yield"`
	BorrowRate     float64          `json:"borrow_rate"`
	RewardsAPR     float64          `json:"rewards_apr"`
	Points         float64          `json:"points"`
	TotalAPY       float64          `json:"total_apy"`
	Utilization    float64          `json:"utilization,omitempty"`
	RewardTokens   []RewardToken    `json:"reward_tokens,omitempty"`
	Errors         map[string]error `json:"-"`
}
