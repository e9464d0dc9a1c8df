package chain

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// Error definitions for zero-tolerance error handling
var (
	ErrLeverageStateUnavailable = errors.New("leverage state unavailable")
	ErrPreviewFailed            = errors.New("preview call failed")
)

// ratioScale is the fixed-point scale of on-chain leverage ratios.
var ratioScale = sdkmath.NewInt(1_000_000_000_000_000_000)

// Lens wraps the token's preview/simulate entry point. Every method takes
// the pinned block number so one plan sees one consistent snapshot.
type Lens struct {
	reader Reader
	lens   common.Address
}

// NewLens binds a lens contract address to a chain reader.
func NewLens(reader Reader, lens common.Address) *Lens {
	return &Lens{reader: reader, lens: lens}
}

// LeverageRatios is the raw on-chain leverage window, 1e18-scaled.
type LeverageRatios struct {
	Target sdkmath.Int
	Min    sdkmath.Int
	Max    sdkmath.Int
}

// TargetFloat renders the target ratio as a decimal multiple (3.0 = 3x).
func (r LeverageRatios) TargetFloat() float64 {
	return ratioToFloat(r.Target)
}

func ratioToFloat(n sdkmath.Int) float64 {
	whole := n.Quo(ratioScale)
	frac := n.Mod(ratioScale)
	return float64(whole.Int64()) + float64(frac.Int64())/1e18
}

// LeverageState reads the token's target/min/max leverage ratios at the
// pinned block number.
func (l *Lens) LeverageState(ctx context.Context, token common.Address, blockNumber uint64) (LeverageRatios, error) {
	data := EncodeCall(SelectorLeverageState, EncodeAddress(token))
	result, err := l.reader.Call(ctx, l.lens, data, blockNumber)
	if err != nil {
		return LeverageRatios{}, errors.Join(ErrLeverageStateUnavailable, err)
	}

	target, err := DecodeWord(result, 0)
	if err != nil {
		return LeverageRatios{}, errors.Join(ErrLeverageStateUnavailable, err)
	}
	min, err := DecodeWord(result, 1)
	if err != nil {
		return LeverageRatios{}, errors.Join(ErrLeverageStateUnavailable, err)
	}
	max, err := DecodeWord(result, 2)
	if err != nil {
		return LeverageRatios{}, errors.Join(ErrLeverageStateUnavailable, err)
	}

	if target.IsZero() || target.LT(ratioScale) {
		return LeverageRatios{}, fmt.Errorf("%w: target ratio %s below 1x", ErrLeverageStateUnavailable, target)
	}

	return LeverageRatios{Target: target, Min: min, Max: max}, nil
}

// MintPreview is the simulated outcome of minting with a given total
// collateral amount.
type MintPreview struct {
	Shares     sdkmath.Int
	ExcessDebt sdkmath.Int
}

// PreviewMint simulates a mint at the pinned block number.
func (l *Lens) PreviewMint(ctx context.Context, token common.Address, totalCollateral sdkmath.Int, blockNumber uint64) (MintPreview, error) {
	data := EncodeCall(SelectorPreviewMint, EncodeAddress(token), EncodeUint256(totalCollateral))
	result, err := l.reader.Call(ctx, l.lens, data, blockNumber)
	if err != nil {
		return MintPreview{}, errors.Join(ErrPreviewFailed, err)
	}

	shares, err := DecodeWord(result, 0)
	if err != nil {
		return MintPreview{}, errors.Join(ErrPreviewFailed, err)
	}
	excessDebt, err := DecodeWord(result, 1)
	if err != nil {
		return MintPreview{}, errors.Join(ErrPreviewFailed, err)
	}

	return MintPreview{Shares: shares, ExcessDebt: excessDebt}, nil
}

// ConvertCollateralToDebt values a collateral amount in the debt asset using
// the protocol's oracle, at the pinned block number.
func (l *Lens) ConvertCollateralToDebt(ctx context.Context, token common.Address, collateral sdkmath.Int, blockNumber uint64) (sdkmath.Int, error) {
	data := EncodeCall(SelectorToDebt, EncodeAddress(token), EncodeUint256(collateral))
	result, err := l.reader.Call(ctx, l.lens, data, blockNumber)
	if err != nil {
		return sdkmath.ZeroInt(), errors.Join(ErrPreviewFailed, err)
	}
	out, err := DecodeWord(result, 0)
	if err != nil {
		return sdkmath.ZeroInt(), errors.Join(ErrPreviewFailed, err)
	}
	return out, nil
}

// ConvertDebtToCollateral values a debt amount in the collateral asset using
// the protocol's oracle, at the pinned block number.
func (l *Lens) ConvertDebtToCollateral(ctx context.Context, token common.Address, debt sdkmath.Int, blockNumber uint64) (sdkmath.Int, error) {
	data := EncodeCall(SelectorFromDebt, EncodeAddress(token), EncodeUint256(debt))
	result, err := l.reader.Call(ctx, l.lens, data, blockNumber)
	if err != nil {
		return sdkmath.ZeroInt(), errors.Join(ErrPreviewFailed, err)
	}
	out, err := DecodeWord(result, 0)
	if err != nil {
		return sdkmath.ZeroInt(), errors.Join(ErrPreviewFailed, err)
	}
	return out, nil
}

// RedeemPreview is the simulated outcome of redeeming a share amount.
type RedeemPreview struct {
	Collateral  sdkmath.Int
	DebtToRepay sdkmath.Int
	ExcessDebt  sdkmath.Int
}

// PreviewRedeem simulates a redemption at the pinned block number.
func (l *Lens) PreviewRedeem(ctx context.Context, token common.Address, shares sdkmath.Int, blockNumber uint64) (RedeemPreview, error) {
	data := EncodeCall(SelectorPreviewRedeem, EncodeAddress(token), EncodeUint256(shares))
	result, err := l.reader.Call(ctx, l.lens, data, blockNumber)
	if err != nil {
		return RedeemPreview{}, errors.Join(ErrPreviewFailed, err)
	}

	collateral, err := DecodeWord(result, 0)
	if err != nil {
		return RedeemPreview{}, errors.Join(ErrPreviewFailed, err)
	}
	debtToRepay, err := DecodeWord(result, 1)
	if err != nil {
		return RedeemPreview{}, errors.Join(ErrPreviewFailed, err)
	}
	excessDebt, err := DecodeWord(result, 2)
	if err != nil {
		return RedeemPreview{}, errors.Join(ErrPreviewFailed, err)
	}

	return RedeemPreview{Collateral: collateral, DebtToRepay: debtToRepay, ExcessDebt: excessDebt}, nil
}
