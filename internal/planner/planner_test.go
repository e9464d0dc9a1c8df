package planner_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/nereus-fi/levengine/internal/chain"
	"github.com/nereus-fi/levengine/internal/planner"
	"github.com/nereus-fi/levengine/internal/registry"
	"github.com/nereus-fi/levengine/internal/swap"
	"github.com/nereus-fi/levengine/internal/types"
	"github.com/stretchr/testify/require"
)

var (
	tokenAddr      = common.HexToAddress("0x1000000000000000000000000000000000000001")
	collateralAddr = common.HexToAddress("0x2000000000000000000000000000000000000002")
	debtAddr       = common.HexToAddress("0x3000000000000000000000000000000000000003")
	lensAddr       = common.HexToAddress("0x4000000000000000000000000000000000000004")
	routerAddr     = common.HexToAddress("0x5000000000000000000000000000000000000005")
	senderAddr     = common.HexToAddress("0x6000000000000000000000000000000000000006")
)

// oneX is 1x leverage in the on-chain 1e18 fixed-point scale.
var oneX = sdkmath.NewInt(1_000_000_000_000_000_000)

func ratio(multiple int64) sdkmath.Int {
	return oneX.Mul(sdkmath.NewInt(multiple))
}

func words(ws ...sdkmath.Int) []byte {
	var out []byte
	for _, w := range ws {
		out = append(out, chain.EncodeUint256(w)...)
	}
	return out
}

// fakeLens answers the lens contract's ABI with canned state: a fixed
// leverage window, 1:1 mint shares, 1:1 oracle conversions, and a
// configurable redeem outcome.
type fakeLens struct {
	chainID        uint64
	head           uint64
	targetLeverage sdkmath.Int
	redeemDebt     sdkmath.Int
}

func (f *fakeLens) Call(ctx context.Context, to common.Address, data []byte, blockNumber uint64) ([]byte, error) {
	if len(data) < 4 {
		return nil, errors.New("calldata too short")
	}
	selector := data[:4]

	switch {
	case bytes.Equal(selector, chain.SelectorLeverageState):
		return words(f.targetLeverage, ratio(2), ratio(4)), nil

	case bytes.Equal(selector, chain.SelectorPreviewMint):
		collateral, err := chain.DecodeWord(data[4:], 1)
		if err != nil {
			return nil, err
		}
		// 1:1 share price, no excess debt.
		return words(collateral, sdkmath.ZeroInt()), nil

	case bytes.Equal(selector, chain.SelectorToDebt), bytes.Equal(selector, chain.SelectorFromDebt):
		amount, err := chain.DecodeWord(data[4:], 1)
		if err != nil {
			return nil, err
		}
		// 1:1 oracle price.
		return words(amount), nil

	case bytes.Equal(selector, chain.SelectorPreviewRedeem):
		shares, err := chain.DecodeWord(data[4:], 1)
		if err != nil {
			return nil, err
		}
		return words(shares, f.redeemDebt, sdkmath.ZeroInt()), nil

	default:
		return nil, fmt.Errorf("unexpected selector %x", selector)
	}
}

func (f *fakeLens) BlockNumber(ctx context.Context) (uint64, error) { return f.head, nil }

func (f *fakeLens) ChainID() uint64 { return f.chainID }

func tokenConfig(sameAsset bool) types.LeverageTokenConfig {
	debt := types.Asset{Address: debtAddr, Symbol: "WETH", Decimals: 18}
	if sameAsset {
		debt = types.Asset{Address: collateralAddr, Symbol: "wstETH", Decimals: 18}
	}
	return types.LeverageTokenConfig{
		Address:    tokenAddr,
		ChainID:    8453,
		Symbol:     "wstETH3x",
		Decimals:   18,
		Collateral: types.Asset{Address: collateralAddr, Symbol: "wstETH", Decimals: 18},
		Debt:       debt,
		Swap: &types.SwapDescriptor{
			Adapter:    types.AdapterUniswapV3,
			PoolFeeBps: 30,
			Router:     routerAddr,
		},
		LensAddress: lensAddr,
	}
}

func newTestPlanner(t *testing.T, cfg types.LeverageTokenConfig, lens *fakeLens) *planner.Planner {
	t.Helper()
	reg, err := registry.New(cfg)
	require.NoError(t, err)
	return planner.New(reg, map[uint64]chain.Reader{cfg.ChainID: lens})
}

func TestPlanMintSameAssetPair(t *testing.T) {
	cfg := tokenConfig(true)
	lens := &fakeLens{chainID: cfg.ChainID, head: 123, targetLeverage: ratio(3)}
	p := newTestPlanner(t, cfg, lens)

	plan, err := p.PlanMint(context.Background(), planner.MintParams{
		ChainID:            cfg.ChainID,
		Token:              tokenAddr,
		EquityInCollateral: sdkmath.NewInt(1000),
		SlippageBps:        50,
		Sender:             senderAddr,
	})
	require.NoError(t, err)

	// 3x target: the flash loan supplies equity * (3 - 1), no swap leg.
	require.Equal(t, sdkmath.NewInt(2000), plan.FlashLoanAmount)
	require.Equal(t, sdkmath.NewInt(3000), plan.PreviewShares)
	require.Equal(t, sdkmath.NewInt(2985), plan.MinShares)
	require.True(t, plan.MinShares.LTE(plan.PreviewShares))
	require.Equal(t, uint64(123), plan.BlockNumber)

	// Only the mint call itself, addressed to the lens entry point.
	require.Len(t, plan.Calls, 1)
	require.Equal(t, lensAddr, plan.Calls[0].Target)
	require.True(t, bytes.HasPrefix(plan.Calls[0].Data, chain.SelectorMint))
}

func TestPlanMintExactOutSwapLeg(t *testing.T) {
	cfg := tokenConfig(false)
	lens := &fakeLens{chainID: cfg.ChainID, head: 123, targetLeverage: ratio(3)}
	p := newTestPlanner(t, cfg, lens)

	var captured swap.Request
	quote := func(ctx context.Context, req swap.Request) (types.Quote, error) {
		captured = req
		return types.Quote{
			Out:            sdkmath.NewInt(2100),
			ApprovalTarget: routerAddr,
			Calls: []types.Call{{
				Target: routerAddr,
				Data:   []byte{0xde, 0xad, 0xbe, 0xef},
				Value:  sdkmath.ZeroInt(),
			}},
		}, nil
	}

	plan, err := p.PlanMint(context.Background(), planner.MintParams{
		ChainID:            cfg.ChainID,
		Token:              tokenAddr,
		EquityInCollateral: sdkmath.NewInt(1000),
		SlippageBps:        50,
		Sender:             senderAddr,
		Quote:              quote,
		Intent:             types.IntentExactOut,
	})
	require.NoError(t, err)

	// The quote asks for exactly the collateral the swap must produce.
	require.Equal(t, cfg.Debt.Address, captured.TokenIn)
	require.Equal(t, cfg.Collateral.Address, captured.TokenOut)
	require.Equal(t, sdkmath.NewInt(2000), captured.Amount)
	require.Equal(t, types.IntentExactOut, captured.Intent)

	// Exact-out: the quoted input amount is the flash loan, byte for byte.
	require.Equal(t, sdkmath.NewInt(2100), plan.FlashLoanAmount)

	// Approval is prepended for the debt asset, then the swap, then the mint.
	require.Len(t, plan.Calls, 3)
	require.Equal(t, cfg.Debt.Address, plan.Calls[0].Target)
	require.True(t, bytes.HasPrefix(plan.Calls[0].Data, chain.SelectorApprove))
	require.Equal(t, routerAddr, plan.Calls[1].Target)
	require.True(t, bytes.HasPrefix(plan.Calls[2].Data, chain.SelectorMint))
}

func TestPlanMintExactInShortfall(t *testing.T) {
	cfg := tokenConfig(false)
	lens := &fakeLens{chainID: cfg.ChainID, head: 123, targetLeverage: ratio(3)}
	p := newTestPlanner(t, cfg, lens)

	// The oracle sizes the loan at 2000 debt; the quote delivers only 1500
	// collateral against a 2000 minimum. Under-delivery must be refused.
	quote := func(ctx context.Context, req swap.Request) (types.Quote, error) {
		return types.Quote{Out: sdkmath.NewInt(1500), ApprovalTarget: routerAddr}, nil
	}

	_, err := p.PlanMint(context.Background(), planner.MintParams{
		ChainID:            cfg.ChainID,
		Token:              tokenAddr,
		EquityInCollateral: sdkmath.NewInt(1000),
		SlippageBps:        0,
		Quote:              quote,
		Intent:             types.IntentExactIn,
	})
	require.ErrorIs(t, err, planner.ErrQuoteShortfall)
	require.ErrorIs(t, err, planner.ErrPlanning)
}

func TestPlanMintQuoteFailurePropagates(t *testing.T) {
	cfg := tokenConfig(false)
	lens := &fakeLens{chainID: cfg.ChainID, head: 123, targetLeverage: ratio(3)}
	p := newTestPlanner(t, cfg, lens)

	quoteErr := errors.New("aggregator 502")
	quote := func(ctx context.Context, req swap.Request) (types.Quote, error) {
		return types.Quote{}, quoteErr
	}

	_, err := p.PlanMint(context.Background(), planner.MintParams{
		ChainID:            cfg.ChainID,
		Token:              tokenAddr,
		EquityInCollateral: sdkmath.NewInt(1000),
		Quote:              quote,
	})
	require.ErrorIs(t, err, planner.ErrQuoteFailed)
	require.ErrorIs(t, err, quoteErr)
}

func TestPlanMintRejectsBadInputs(t *testing.T) {
	cfg := tokenConfig(false)
	lens := &fakeLens{chainID: cfg.ChainID, head: 123, targetLeverage: ratio(3)}
	p := newTestPlanner(t, cfg, lens)
	ctx := context.Background()

	_, err := p.PlanMint(ctx, planner.MintParams{
		ChainID: cfg.ChainID, Token: tokenAddr,
		EquityInCollateral: sdkmath.ZeroInt(),
	})
	require.ErrorIs(t, err, planner.ErrInvalidEquity)

	_, err = p.PlanMint(ctx, planner.MintParams{
		ChainID: cfg.ChainID, Token: tokenAddr,
		EquityInCollateral: sdkmath.NewInt(1000),
		SlippageBps:        10001,
	})
	require.ErrorIs(t, err, planner.ErrInvalidSlippage)

	_, err = p.PlanMint(ctx, planner.MintParams{
		ChainID: cfg.ChainID,
		Token:   common.HexToAddress("0xdead000000000000000000000000000000000000"),
		EquityInCollateral: sdkmath.NewInt(1000),
	})
	require.ErrorIs(t, err, planner.ErrUnknownToken)

	_, err = p.PlanMint(ctx, planner.MintParams{
		ChainID: cfg.ChainID, Token: tokenAddr,
		EquityInCollateral: sdkmath.NewInt(1000),
	})
	require.ErrorIs(t, err, planner.ErrQuoteRequired)
}

func TestPlanMintMissingClient(t *testing.T) {
	cfg := tokenConfig(true)
	cfg.ChainID = 1
	reg, err := registry.New(cfg)
	require.NoError(t, err)
	p := planner.New(reg, map[uint64]chain.Reader{})

	_, err = p.PlanMint(context.Background(), planner.MintParams{
		ChainID: 1, Token: tokenAddr,
		EquityInCollateral: sdkmath.NewInt(1000),
	})
	require.ErrorIs(t, err, planner.ErrMissingClient)
}

func TestPlanMintSlippageInvariant(t *testing.T) {
	cfg := tokenConfig(true)
	lens := &fakeLens{chainID: cfg.ChainID, head: 123, targetLeverage: ratio(3)}
	p := newTestPlanner(t, cfg, lens)

	for _, bps := range []int{0, 1, 50, 500, 9999, 10000} {
		plan, err := p.PlanMint(context.Background(), planner.MintParams{
			ChainID:            cfg.ChainID,
			Token:              tokenAddr,
			EquityInCollateral: sdkmath.NewInt(999_999),
			SlippageBps:        bps,
		})
		require.NoError(t, err, "bps=%d", bps)
		require.True(t, plan.MinShares.LTE(plan.PreviewShares), "bps=%d", bps)
		require.False(t, plan.MinShares.IsNegative(), "bps=%d", bps)
	}
}

func TestRedeemEnabled(t *testing.T) {
	require.False(t, planner.RedeemEnabled(sdkmath.Int{}))
	require.False(t, planner.RedeemEnabled(sdkmath.ZeroInt()))
	require.False(t, planner.RedeemEnabled(sdkmath.NewInt(-1)))
	require.True(t, planner.RedeemEnabled(sdkmath.NewInt(1)))
}

func TestPlanRedeemNoDebt(t *testing.T) {
	cfg := tokenConfig(false)
	lens := &fakeLens{
		chainID:        cfg.ChainID,
		head:           123,
		targetLeverage: ratio(3),
		redeemDebt:     sdkmath.ZeroInt(),
	}
	p := newTestPlanner(t, cfg, lens)

	plan, err := p.PlanRedeem(context.Background(), planner.RedeemParams{
		ChainID:        cfg.ChainID,
		Token:          tokenAddr,
		SharesToRedeem: sdkmath.NewInt(1000),
		SlippageBps:    100,
		Sender:         senderAddr,
	})
	require.NoError(t, err)

	require.Equal(t, sdkmath.NewInt(1000), plan.PreviewCollateralForSender)
	require.Equal(t, sdkmath.NewInt(990), plan.MinCollateralForSender)
	require.True(t, plan.MinCollateralForSender.LTE(plan.PreviewCollateralForSender))
	require.Nil(t, plan.CollateralToDebtQuote)

	require.Len(t, plan.Calls, 1)
	require.True(t, bytes.HasPrefix(plan.Calls[0].Data, chain.SelectorRedeem))
}

func TestPlanRedeemWithSwapLeg(t *testing.T) {
	cfg := tokenConfig(false)
	lens := &fakeLens{
		chainID:        cfg.ChainID,
		head:           123,
		targetLeverage: ratio(3),
		redeemDebt:     sdkmath.NewInt(300),
	}
	p := newTestPlanner(t, cfg, lens)

	var captured swap.Request
	quote := func(ctx context.Context, req swap.Request) (types.Quote, error) {
		captured = req
		// The swap consumes 310 collateral to produce the 300 debt owed.
		return types.Quote{
			Out:            sdkmath.NewInt(310),
			ApprovalTarget: routerAddr,
			Calls: []types.Call{{
				Target: routerAddr,
				Data:   []byte{0xca, 0xfe, 0xba, 0xbe},
				Value:  sdkmath.ZeroInt(),
			}},
		}, nil
	}

	plan, err := p.PlanRedeem(context.Background(), planner.RedeemParams{
		ChainID:        cfg.ChainID,
		Token:          tokenAddr,
		SharesToRedeem: sdkmath.NewInt(1000),
		SlippageBps:    0,
		Quote:          quote,
		Intent:         types.IntentExactOut,
	})
	require.NoError(t, err)

	require.Equal(t, cfg.Collateral.Address, captured.TokenIn)
	require.Equal(t, cfg.Debt.Address, captured.TokenOut)
	require.Equal(t, sdkmath.NewInt(300), captured.Amount)

	// 1000 redeemed, 310 consumed by the debt repayment swap.
	require.Equal(t, sdkmath.NewInt(690), plan.PreviewCollateralForSender)
	require.NotNil(t, plan.CollateralToDebtQuote)

	// Redeem releases the collateral first, then the swap repays the debt.
	require.True(t, bytes.HasPrefix(plan.Calls[0].Data, chain.SelectorRedeem))
	require.Len(t, plan.Calls, 3)
	require.True(t, bytes.HasPrefix(plan.Calls[1].Data, chain.SelectorApprove))
}

func TestPlanRedeemInsufficientProceeds(t *testing.T) {
	cfg := tokenConfig(false)
	lens := &fakeLens{
		chainID:        cfg.ChainID,
		head:           123,
		targetLeverage: ratio(3),
		redeemDebt:     sdkmath.NewInt(300),
	}
	p := newTestPlanner(t, cfg, lens)

	// The swap would consume more collateral than the redemption releases.
	quote := func(ctx context.Context, req swap.Request) (types.Quote, error) {
		return types.Quote{Out: sdkmath.NewInt(2000), ApprovalTarget: routerAddr}, nil
	}

	_, err := p.PlanRedeem(context.Background(), planner.RedeemParams{
		ChainID:        cfg.ChainID,
		Token:          tokenAddr,
		SharesToRedeem: sdkmath.NewInt(1000),
		Quote:          quote,
	})
	require.ErrorIs(t, err, planner.ErrInsufficientProceeds)
}

func TestPlanRedeemUSDFigures(t *testing.T) {
	cfg := tokenConfig(false)
	cfg.Collateral.Decimals = 6
	lens := &fakeLens{
		chainID:        cfg.ChainID,
		head:           123,
		targetLeverage: ratio(3),
		redeemDebt:     sdkmath.ZeroInt(),
	}
	p := newTestPlanner(t, cfg, lens)

	plan, err := p.PlanRedeem(context.Background(), planner.RedeemParams{
		ChainID:            cfg.ChainID,
		Token:              tokenAddr,
		SharesToRedeem:     sdkmath.NewInt(1_000_000),
		SlippageBps:        100,
		CollateralPriceUSD: 2,
	})
	require.NoError(t, err)

	// 1.0 collateral at $2; the guaranteed figure uses the floored minimum.
	require.InDelta(t, 2.0, plan.ExpectedUSD, 1e-9)
	require.InDelta(t, 1.98, plan.GuaranteedUSD, 1e-9)
	require.Less(t, plan.GuaranteedUSD, plan.ExpectedUSD)
}

func TestPlanRedeemRejectsDisabledShares(t *testing.T) {
	cfg := tokenConfig(false)
	lens := &fakeLens{chainID: cfg.ChainID, head: 123, targetLeverage: ratio(3)}
	p := newTestPlanner(t, cfg, lens)

	_, err := p.PlanRedeem(context.Background(), planner.RedeemParams{
		ChainID:        cfg.ChainID,
		Token:          tokenAddr,
		SharesToRedeem: sdkmath.ZeroInt(),
	})
	require.ErrorIs(t, err, planner.ErrInvalidShares)
}
