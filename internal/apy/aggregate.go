/*

This file contains the yield aggregator: four independent data fetches per
token merged into one composite APY figure. Every source may fail without
aborting the others; a failed source contributes zero and records its error
under the source name. Results are replaced wholesale, never patched.

*/

package apy

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nereus-fi/levengine/internal/logger"
	"github.com/nereus-fi/levengine/internal/registry"
	"github.com/nereus-fi/levengine/internal/types"
)

// LeverageRatioSource reports the token's current target leverage as a
// decimal multiple (3.0 = 3x).
type LeverageRatioSource interface {
	TargetLeverage(ctx context.Context, cfg types.LeverageTokenConfig) (float64, error)
}

// StakingSource reports the collateral's base staking and restaking APRs as
// decimal fractions (0.04 = 4%).
type StakingSource interface {
	StakingAPR(ctx context.Context, cfg types.LeverageTokenConfig) (staking, restaking float64, err error)
}

// BorrowSource reports the debt market's borrow APY (decimal fraction) and
// utilization.
type BorrowSource interface {
	BorrowRate(ctx context.Context, cfg types.LeverageTokenConfig) (apy, utilization float64, err error)
}

// RewardsSource reports the token's rewards APR (decimal fraction) and an
// optional per-reward-token breakdown.
type RewardsSource interface {
	RewardsAPR(ctx context.Context, cfg types.LeverageTokenConfig) (apr float64, breakdown []types.RewardToken, err error)
}

// Aggregator merges the four yield sources for registered tokens.
type Aggregator struct {
	registry *registry.Registry
	ratios   LeverageRatioSource
	staking  StakingSource
	borrow   BorrowSource
	rewards  RewardsSource
}

// New creates an aggregator over the given registry and sources.
func New(reg *registry.Registry, ratios LeverageRatioSource, staking StakingSource, borrow BorrowSource, rewards RewardsSource) *Aggregator {
	return &Aggregator{
		registry: reg,
		ratios:   ratios,
		staking:  staking,
		borrow:   borrow,
		rewards:  rewards,
	}
}

// ForTokens computes the composite APY for each input token. Tokens without
// a registered configuration are silently omitted from the result.
func (a *Aggregator) ForTokens(ctx context.Context, chainID uint64, tokens []common.Address) []types.AggregatedAPY {
	results := make([]types.AggregatedAPY, 0, len(tokens))
	for _, token := range tokens {
		cfg, ok := a.registry.Lookup(chainID, token)
		if !ok {
			continue
		}
		results = append(results, a.ForToken(ctx, cfg))
	}
	return results
}

// ForToken computes the composite APY for one token. The four fetches run
// concurrently; each failure zeroes only its own contribution.
func (a *Aggregator) ForToken(ctx context.Context, cfg types.LeverageTokenConfig) types.AggregatedAPY {
	apyLogger := logger.GetForComponent("yield_aggregator")

	var (
		wg sync.WaitGroup

		targetLeverage        float64
		stakingAPR, restakingAPR float64
		borrowAPY, utilization   float64
		rewardsAPR               float64
		rewardTokens             []types.RewardToken

		ratiosErr, stakingErr, borrowErr, rewardsErr error
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		defer recoverInto(&ratiosErr)
		targetLeverage, ratiosErr = a.ratios.TargetLeverage(ctx, cfg)
	}()
	go func() {
		defer wg.Done()
		defer recoverInto(&stakingErr)
		stakingAPR, restakingAPR, stakingErr = a.staking.StakingAPR(ctx, cfg)
	}()
	go func() {
		defer wg.Done()
		defer recoverInto(&borrowErr)
		borrowAPY, utilization, borrowErr = a.borrow.BorrowRate(ctx, cfg)
	}()
	go func() {
		defer wg.Done()
		defer recoverInto(&rewardsErr)
		rewardsAPR, rewardTokens, rewardsErr = a.rewards.RewardsAPR(ctx, cfg)
	}()
	wg.Wait()

	// A failed fetch contributes zero, never a stale or partial value.
	if ratiosErr != nil {
		targetLeverage = 0
		apyLogger.Warn().Err(ratiosErr).Str("token", cfg.Address.Hex()).Msg("Leverage ratio fetch failed")
	}
	if stakingErr != nil {
		stakingAPR, restakingAPR = 0, 0
		apyLogger.Warn().Err(stakingErr).Str("token", cfg.Address.Hex()).Msg("Staking APR fetch failed")
	}
	if borrowErr != nil {
		borrowAPY, utilization = 0, 0
		apyLogger.Warn().Err(borrowErr).Str("token", cfg.Address.Hex()).Msg("Borrow rate fetch failed")
	}
	if rewardsErr != nil {
		rewardsAPR, rewardTokens = 0, nil
		apyLogger.Warn().Err(rewardsErr).Str("token", cfg.Address.Hex()).Msg("Rewards APR fetch failed")
	}

	result := compose(cfg, targetLeverage, stakingAPR, restakingAPR, borrowAPY, utilization, rewardsAPR, rewardTokens)
	result.Errors = map[string]error{
		types.SourceLeverageRatios: ratiosErr,
		types.SourceStakingAPR:     stakingErr,
		types.SourceBorrowRate:     borrowErr,
		types.SourceRewardsAPR:     rewardsErr,
	}
	return result
}

// compose applies the leverage-amplified yield formula. All rates are
// decimal fractions; borrowing always enters as a negative term. When the
// target leverage is zero every leverage-scaled term is zero and only the
// rewards APR may remain.
func compose(
	cfg types.LeverageTokenConfig,
	targetLeverage, stakingAPR, restakingAPR, borrowAPY, utilization, rewardsAPR float64,
	rewardTokens []types.RewardToken,
) types.AggregatedAPY {

	stakingYield := stakingAPR * targetLeverage
	restakingYield := restakingAPR * targetLeverage

	borrowRate := 0.0
	if targetLeverage > 0 {
		borrowRate = -borrowAPY * (targetLeverage - 1)
	}

	points := 0.0
	if cfg.APY != nil && targetLeverage > 0 {
		points = cfg.APY.PointsMultiplier * targetLeverage
	}

	return types.AggregatedAPY{
		Token:          cfg.Address,
		TargetLeverage: targetLeverage,
		StakingYield:   stakingYield,
		RestakingYield: restakingYield,
		BorrowRate:     borrowRate,
		RewardsAPR:     rewardsAPR,
		Points:         points,
		TotalAPY:       stakingYield + restakingYield + rewardsAPR + borrowRate,
		Utilization:    utilization,
		RewardTokens:   rewardTokens,
	}
}

// HasBreakdownError reports whether any per-source error is recorded on the
// result. An empty or all-nil map is not an error state.
func HasBreakdownError(result types.AggregatedAPY) bool {
	for _, err := range result.Errors {
		if err != nil {
			return true
		}
	}
	return false
}

// recoverInto normalizes a panicking source into a recorded error so one
// misbehaving provider cannot take down the whole refresh.
func recoverInto(dst *error) {
	if r := recover(); r != nil {
		if err, ok := r.(error); ok {
			*dst = fmt.Errorf("source panicked: %w", err)
			return
		}
		*dst = fmt.Errorf("source panicked: %v", r)
	}
}
