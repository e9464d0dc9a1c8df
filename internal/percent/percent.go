/*

This file contains the shared percent/basis-point model used by the planners
and by user-facing amount inputs: free-text percent parsing with a safe
fallback, slippage floors on base-unit integers, and percent-of-balance
amounts that never exceed the true balance.

*/

package percent

import (
	"errors"
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

const (
	// MaxBps is 100% expressed in basis points.
	MaxBps = 10000
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidBps      = errors.New("basis points out of range")
	ErrInvalidDecimals = errors.New("decimals out of range")
	ErrInvalidAmount   = errors.New("amount is invalid")
)

// ParseSlippage converts a free-text percent string into basis points.
// The displayed string is left as typed; only the derived bps is made safe:
// empty input is 0 bps, negative or non-numeric input falls back to
// fallbackBps, values above 100% clamp to MaxBps. Valid percents convert via
// round(percent * 100), rounding half up.
func ParseSlippage(s string, fallbackBps int) int {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0
	}

	pct, err := decimal.NewFromString(trimmed)
	if err != nil || pct.IsNegative() {
		return fallbackBps
	}
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		return MaxBps
	}

	// decimal.Round rounds half away from zero; input is non-negative here,
	// so this is round-half-up.
	bps := pct.Mul(decimal.NewFromInt(100)).Round(0)
	return int(bps.IntPart())
}

// MinAfterSlippage computes floor(amount * (MaxBps - bps) / MaxBps) in base
// units. The floor keeps the bound conservative for any bps in [0, MaxBps].
func MinAfterSlippage(amount sdkmath.Int, bps int) (sdkmath.Int, error) {
	if bps < 0 || bps > MaxBps {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d", ErrInvalidBps, bps)
	}
	if amount.IsNil() || amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrInvalidAmount
	}
	return amount.Mul(sdkmath.NewInt(int64(MaxBps - bps))).Quo(sdkmath.NewInt(MaxBps)), nil
}

// FromBalance computes an amount string from a percentage of an available
// balance. For exactly 100% the balance string is returned unchanged, so a
// full withdrawal never loses dust to rounding. Any other percentage floors
// in integer base units before converting back to a display string, so the
// result can never exceed the true balance.
func FromBalance(pct float64, balance string, decimals int) (string, error) {
	if decimals < 0 || decimals > 18 {
		return "", fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidDecimals, decimals)
	}
	if pct < 0 || pct > 100 {
		return "", fmt.Errorf("percentage must be within [0, 100], got %f", pct)
	}

	if pct == 100 {
		return balance, nil
	}

	baseUnits, err := ToBaseUnits(balance, decimals)
	if err != nil {
		return "", err
	}

	// floor(balance_base_units * pct / 100), with pct scaled to an integer
	// ratio first so the division is exact integer arithmetic.
	pctDec := decimal.NewFromFloat(pct)
	num := sdkmath.NewIntFromBigInt(pctDec.Shift(4).Truncate(0).BigInt())
	scaled := baseUnits.Mul(num).Quo(sdkmath.NewInt(100).Mul(sdkmath.NewInt(10000)))

	return FromBaseUnits(scaled, decimals), nil
}

// ToBaseUnits parses a display amount string into integer base units,
// truncating any precision beyond the asset's decimals.
func ToBaseUnits(amount string, decimals int) (sdkmath.Int, error) {
	if decimals < 0 || decimals > 18 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidDecimals, decimals)
	}
	dec, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if dec.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: negative amount %q", ErrInvalidAmount, amount)
	}
	shifted := dec.Shift(int32(decimals)).Truncate(0)
	return sdkmath.NewIntFromBigInt(shifted.BigInt()), nil
}

// FromBaseUnits renders integer base units as a display amount string with
// trailing zeros trimmed.
func FromBaseUnits(amount sdkmath.Int, decimals int) string {
	dec := decimal.NewFromBigInt(amount.BigInt(), -int32(decimals))
	return dec.String()
}

// BaseUnitsToFloat converts base units to a float64 for USD display math.
// Not suitable for on-chain amounts; display only.
func BaseUnitsToFloat(amount sdkmath.Int, decimals int) (float64, error) {
	if decimals < 0 || decimals > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidDecimals, decimals)
	}
	if amount.IsNil() {
		return 0, ErrInvalidAmount
	}
	f, _ := decimal.NewFromBigInt(amount.BigInt(), -int32(decimals)).Float64()
	return f, nil
}
