package planner

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/nereus-fi/levengine/internal/chain"
	"github.com/nereus-fi/levengine/internal/logger"
	"github.com/nereus-fi/levengine/internal/percent"
	"github.com/nereus-fi/levengine/internal/swap"
	"github.com/nereus-fi/levengine/internal/types"
)

// RedeemParams are the inputs of one redeem plan.
type RedeemParams struct {
	ChainID uint64
	Token   common.Address
	// SharesToRedeem must be positive; use RedeemEnabled to gate disabled
	// inputs before calling the planner.
	SharesToRedeem sdkmath.Int
	SlippageBps    int
	Sender         common.Address
	// Quote converts redeemed collateral into debt to repay the position's
	// shortfall. Required only when debt and collateral assets differ and
	// the preview reports debt to repay.
	Quote QuoteFunc
	// Intent is the price intent of the bound adapter. Empty defaults to
	// exact-output.
	Intent types.SwapIntent
	// CollateralPriceUSD, when positive, enables the USD payout figures.
	CollateralPriceUSD float64
	// BlockNumber pins all reads of this plan; 0 pins to the current head.
	BlockNumber uint64
}

// RedeemEnabled reports whether a share input should trigger planning at
// all. Zero or absent shares mean the control is disabled, not an error.
func RedeemEnabled(shares sdkmath.Int) bool {
	return !shares.IsNil() && shares.IsPositive()
}

// PlanRedeem computes the full plan to close (or partially close) a position
// from a desired share count. Quote failures propagate as the planner's
// rejection; no partial plan is ever returned.
func (p *Planner) PlanRedeem(ctx context.Context, params RedeemParams) (*types.RedeemPlan, error) {
	redeemLogger := logger.GetForComponent("redeem_planner")

	if !RedeemEnabled(params.SharesToRedeem) {
		return nil, errors.Join(ErrPlanning, ErrInvalidShares)
	}
	if params.SlippageBps < 0 || params.SlippageBps > percent.MaxBps {
		return nil, errors.Join(ErrPlanning, ErrInvalidSlippage)
	}

	cfg, reader, blockNumber, err := p.resolveToken(ctx, params.ChainID, params.Token, params.BlockNumber)
	if err != nil {
		return nil, err
	}
	lens := chain.NewLens(reader, cfg.LensAddress)

	preview, err := lens.PreviewRedeem(ctx, params.Token, params.SharesToRedeem, blockNumber)
	if err != nil {
		return nil, errors.Join(ErrPlanning, err)
	}

	var (
		collateralSpent = sdkmath.ZeroInt()
		swapQuote       *types.Quote
		swapCalls       []types.Call
	)

	if preview.DebtToRepay.IsPositive() && !cfg.SameAssetPair() {
		if params.Quote == nil {
			return nil, errors.Join(ErrPlanning, ErrQuoteRequired)
		}
		quote, spent, err := p.planRedeemSwapLeg(ctx, lens, cfg, params, preview.DebtToRepay, blockNumber)
		if err != nil {
			return nil, err
		}
		swapQuote = &quote
		collateralSpent = spent
		swapCalls = withApproval(quote, cfg.Collateral.Address, spent)
	}

	collateralForSender := preview.Collateral.Sub(collateralSpent)
	if collateralForSender.IsNegative() {
		return nil, errors.Join(ErrPlanning, ErrInsufficientProceeds,
			fmt.Errorf("redeemed %s collateral, swap leg needs %s", preview.Collateral, collateralSpent))
	}

	minCollateralForSender, err := percent.MinAfterSlippage(collateralForSender, params.SlippageBps)
	if err != nil {
		return nil, errors.Join(ErrPlanning, err)
	}
	minExcessDebt, err := percent.MinAfterSlippage(preview.ExcessDebt, params.SlippageBps)
	if err != nil {
		return nil, errors.Join(ErrPlanning, err)
	}

	if err := validateNonNegative(collateralForSender, minCollateralForSender, preview.ExcessDebt, minExcessDebt); err != nil {
		return nil, err
	}

	redeemCall := types.Call{
		Target: cfg.LensAddress,
		Data: chain.EncodeCall(chain.SelectorRedeem,
			chain.EncodeAddress(params.Token),
			chain.EncodeUint256(params.SharesToRedeem),
			chain.EncodeUint256(minCollateralForSender),
		),
		Value: sdkmath.ZeroInt(),
	}

	// Redemption releases the collateral first; the swap leg then repays the
	// outstanding debt from the proceeds.
	calls := make([]types.Call, 0, len(swapCalls)+1)
	calls = append(calls, redeemCall)
	calls = append(calls, swapCalls...)

	plan := &types.RedeemPlan{
		SharesToRedeem:             params.SharesToRedeem,
		PreviewCollateralForSender: collateralForSender,
		MinCollateralForSender:     minCollateralForSender,
		PreviewExcessDebt:          preview.ExcessDebt,
		MinExcessDebt:              minExcessDebt,
		CollateralToDebtQuote:      swapQuote,
		BlockNumber:                blockNumber,
		Calls:                      calls,
	}

	// USD figures when a price is supplied; guaranteed uses the worst-case
	// floored minimum amount.
	if params.CollateralPriceUSD > 0 {
		expected, err := percent.BaseUnitsToFloat(collateralForSender, cfg.Collateral.Decimals)
		if err != nil {
			return nil, errors.Join(ErrPlanning, err)
		}
		guaranteed, err := percent.BaseUnitsToFloat(minCollateralForSender, cfg.Collateral.Decimals)
		if err != nil {
			return nil, errors.Join(ErrPlanning, err)
		}
		plan.ExpectedUSD = expected * params.CollateralPriceUSD
		plan.GuaranteedUSD = guaranteed * params.CollateralPriceUSD
	}

	redeemLogger.Info().
		Str("token", params.Token.Hex()).
		Str("shares", params.SharesToRedeem.String()).
		Str("collateralForSender", collateralForSender.String()).
		Str("minCollateralForSender", minCollateralForSender.String()).
		Uint64("block", blockNumber).
		Msg("Redeem plan assembled")

	return plan, nil
}

// planRedeemSwapLeg quotes the collateral-to-debt conversion covering the
// position's debt shortfall and reports how much collateral the swap
// consumes.
func (p *Planner) planRedeemSwapLeg(
	ctx context.Context,
	lens *chain.Lens,
	cfg types.LeverageTokenConfig,
	params RedeemParams,
	debtToRepay sdkmath.Int,
	blockNumber uint64,
) (types.Quote, sdkmath.Int, error) {

	intent := params.Intent
	if intent == "" {
		intent = types.IntentExactOut
	}

	switch intent {
	case types.IntentExactOut:
		quote, err := params.Quote(ctx, swap.Request{
			TokenIn:     cfg.Collateral.Address,
			TokenOut:    cfg.Debt.Address,
			Amount:      debtToRepay,
			Intent:      types.IntentExactOut,
			SlippageBps: params.SlippageBps,
			Sender:      params.Sender,
		})
		if err != nil {
			return types.Quote{}, sdkmath.ZeroInt(), errors.Join(ErrPlanning, ErrQuoteFailed, err)
		}
		// Out is the collateral input the swap consumes.
		return quote, quote.Out, nil

	case types.IntentExactIn:
		collateralIn, err := lens.ConvertDebtToCollateral(ctx, params.Token, debtToRepay, blockNumber)
		if err != nil {
			return types.Quote{}, sdkmath.ZeroInt(), errors.Join(ErrPlanning, err)
		}
		quote, err := params.Quote(ctx, swap.Request{
			TokenIn:     cfg.Collateral.Address,
			TokenOut:    cfg.Debt.Address,
			Amount:      collateralIn,
			Intent:      types.IntentExactIn,
			SlippageBps: params.SlippageBps,
			Sender:      params.Sender,
		})
		if err != nil {
			return types.Quote{}, sdkmath.ZeroInt(), errors.Join(ErrPlanning, ErrQuoteFailed, err)
		}
		minOut, err := percent.MinAfterSlippage(debtToRepay, params.SlippageBps)
		if err != nil {
			return types.Quote{}, sdkmath.ZeroInt(), errors.Join(ErrPlanning, err)
		}
		if quote.Out.LT(minOut) {
			return types.Quote{}, sdkmath.ZeroInt(), errors.Join(ErrPlanning, ErrQuoteShortfall,
				fmt.Errorf("quoted %s debt, need at least %s", quote.Out, minOut))
		}
		return quote, collateralIn, nil

	default:
		return types.Quote{}, sdkmath.ZeroInt(), errors.Join(ErrPlanning,
			fmt.Errorf("unknown swap intent %q", intent))
	}
}
