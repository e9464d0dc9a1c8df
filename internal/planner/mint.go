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

// ratioOne is 1x leverage in the on-chain 1e18 fixed-point scale.
var ratioOne = sdkmath.NewInt(1_000_000_000_000_000_000)

// MintParams are the inputs of one mint plan.
type MintParams struct {
	ChainID uint64
	Token   common.Address
	// EquityInCollateral is the user-contributed value, in collateral base
	// units. Must be positive.
	EquityInCollateral sdkmath.Int
	SlippageBps        int
	Sender             common.Address
	// Quote converts flash-loaned debt into collateral. Required only when
	// the token's debt and collateral assets differ.
	Quote QuoteFunc
	// Intent is the price intent of the bound adapter (exact-in/exact-out).
	Intent types.SwapIntent
	// BlockNumber pins all reads of this plan; 0 pins to the current head.
	BlockNumber uint64
}

// PlanMint computes the full plan to open a position from a desired equity
// amount. Quote failures propagate as the planner's rejection; no partial
// plan is ever returned.
func (p *Planner) PlanMint(ctx context.Context, params MintParams) (*types.MintPlan, error) {
	mintLogger := logger.GetForComponent("mint_planner")

	if params.EquityInCollateral.IsNil() || !params.EquityInCollateral.IsPositive() {
		return nil, errors.Join(ErrPlanning, ErrInvalidEquity)
	}
	if params.SlippageBps < 0 || params.SlippageBps > percent.MaxBps {
		return nil, errors.Join(ErrPlanning, ErrInvalidSlippage)
	}

	cfg, reader, blockNumber, err := p.resolveToken(ctx, params.ChainID, params.Token, params.BlockNumber)
	if err != nil {
		return nil, err
	}
	lens := chain.NewLens(reader, cfg.LensAddress)

	ratios, err := lens.LeverageState(ctx, params.Token, blockNumber)
	if err != nil {
		return nil, errors.Join(ErrPlanning, ErrLeverageState, err)
	}

	// The swap leg must produce equity * (target - 1) collateral so the
	// final position sits at target leverage.
	collateralFromSwap := params.EquityInCollateral.
		Mul(ratios.Target.Sub(ratioOne)).
		Quo(ratioOne)

	var (
		flashLoanAmount = sdkmath.ZeroInt()
		swapCalls       []types.Call
	)

	switch {
	case cfg.SameAssetPair() || collateralFromSwap.IsZero():
		// Same-asset pair: the flash loan is already denominated in
		// collateral, no swap leg needed.
		flashLoanAmount = collateralFromSwap

	case params.Quote == nil:
		return nil, errors.Join(ErrPlanning, ErrQuoteRequired)

	default:
		flashLoanAmount, swapCalls, err = p.planMintSwapLeg(ctx, lens, cfg, params, collateralFromSwap, blockNumber)
		if err != nil {
			return nil, err
		}
	}

	totalCollateral := params.EquityInCollateral.Add(collateralFromSwap)
	preview, err := lens.PreviewMint(ctx, params.Token, totalCollateral, blockNumber)
	if err != nil {
		return nil, errors.Join(ErrPlanning, err)
	}

	minShares, err := percent.MinAfterSlippage(preview.Shares, params.SlippageBps)
	if err != nil {
		return nil, errors.Join(ErrPlanning, err)
	}

	if err := validateNonNegative(flashLoanAmount, preview.Shares, minShares, preview.ExcessDebt); err != nil {
		return nil, err
	}

	mintCall := types.Call{
		Target: cfg.LensAddress,
		Data: chain.EncodeCall(chain.SelectorMint,
			chain.EncodeAddress(params.Token),
			chain.EncodeUint256(params.EquityInCollateral),
			chain.EncodeUint256(minShares),
		),
		Value: sdkmath.ZeroInt(),
	}

	calls := make([]types.Call, 0, len(swapCalls)+1)
	calls = append(calls, swapCalls...)
	calls = append(calls, mintCall)

	mintLogger.Info().
		Str("token", params.Token.Hex()).
		Str("equity", params.EquityInCollateral.String()).
		Str("flashLoan", flashLoanAmount.String()).
		Str("previewShares", preview.Shares.String()).
		Str("minShares", minShares.String()).
		Uint64("block", blockNumber).
		Msg("Mint plan assembled")

	return &types.MintPlan{
		EquityInCollateral: params.EquityInCollateral,
		FlashLoanAmount:    flashLoanAmount,
		PreviewShares:      preview.Shares,
		MinShares:          minShares,
		ExpectedExcessDebt: preview.ExcessDebt,
		BlockNumber:        blockNumber,
		Calls:              calls,
	}, nil
}

// planMintSwapLeg sizes the flash loan and builds the debt-to-collateral
// swap calls. Exact-out adapters size the loan from the quote itself;
// exact-in adapters size it from the protocol oracle and then verify the
// quoted output covers the required collateral.
func (p *Planner) planMintSwapLeg(
	ctx context.Context,
	lens *chain.Lens,
	cfg types.LeverageTokenConfig,
	params MintParams,
	collateralFromSwap sdkmath.Int,
	blockNumber uint64,
) (sdkmath.Int, []types.Call, error) {

	intent := params.Intent
	if intent == "" {
		intent = types.IntentExactOut
	}

	switch intent {
	case types.IntentExactOut:
		quote, err := params.Quote(ctx, swap.Request{
			TokenIn:     cfg.Debt.Address,
			TokenOut:    cfg.Collateral.Address,
			Amount:      collateralFromSwap,
			Intent:      types.IntentExactOut,
			SlippageBps: params.SlippageBps,
			Sender:      params.Sender,
		})
		if err != nil {
			return sdkmath.ZeroInt(), nil, errors.Join(ErrPlanning, ErrQuoteFailed, err)
		}
		// Out is the required debt input: exactly the flash loan to take.
		return quote.Out, withApproval(quote, cfg.Debt.Address, quote.Out), nil

	case types.IntentExactIn:
		flashLoan, err := lens.ConvertCollateralToDebt(ctx, params.Token, collateralFromSwap, blockNumber)
		if err != nil {
			return sdkmath.ZeroInt(), nil, errors.Join(ErrPlanning, err)
		}
		quote, err := params.Quote(ctx, swap.Request{
			TokenIn:     cfg.Debt.Address,
			TokenOut:    cfg.Collateral.Address,
			Amount:      flashLoan,
			Intent:      types.IntentExactIn,
			SlippageBps: params.SlippageBps,
			Sender:      params.Sender,
		})
		if err != nil {
			return sdkmath.ZeroInt(), nil, errors.Join(ErrPlanning, ErrQuoteFailed, err)
		}
		// A quoted output below the required collateral would leave the
		// position under target leverage; refuse rather than under-deliver.
		minOut, err := percent.MinAfterSlippage(collateralFromSwap, params.SlippageBps)
		if err != nil {
			return sdkmath.ZeroInt(), nil, errors.Join(ErrPlanning, err)
		}
		if quote.Out.LT(minOut) {
			return sdkmath.ZeroInt(), nil, errors.Join(ErrPlanning, ErrQuoteShortfall,
				fmt.Errorf("quoted %s, need at least %s", quote.Out, minOut))
		}
		return flashLoan, withApproval(quote, cfg.Debt.Address, flashLoan), nil

	default:
		return sdkmath.ZeroInt(), nil, errors.Join(ErrPlanning,
			fmt.Errorf("unknown swap intent %q", intent))
	}
}
