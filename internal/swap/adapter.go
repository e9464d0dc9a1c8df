/*

This file contains the uniform swap adapter capability: one Quote method
implemented by several interchangeable backends. The orchestrator dispatches
on the configured adapter type, not on structural shape.

*/

package swap

import (
	"context"
	"errors"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/nereus-fi/levengine/internal/types"
)

// Typed configuration errors. The orchestrator classifies these into the
// missing-chain-config status; adapters must return them (wrapped is fine)
// instead of encoding the condition in a message.
var (
	ErrNoPoolConfig    = errors.New("no pool configuration for chain")
	ErrNoWrappedNative = errors.New("no wrapped native asset mapping for chain")
	ErrQuoteFailed     = errors.New("quote request failed")
	ErrInvalidRequest  = errors.New("quote request is invalid")
)

// Request describes one swap leg to be quoted.
type Request struct {
	TokenIn     common.Address
	TokenOut    common.Address
	Amount      sdkmath.Int
	Intent      types.SwapIntent
	SlippageBps int
	Sender      common.Address
}

// Adapter is one swap backend. Quote performs the network work lazily; a
// quote is produced fresh per request and never cached across differing
// amounts.
type Adapter interface {
	Quote(ctx context.Context, req Request) (types.Quote, error)
}

// IntentFor resolves the price intent a given adapter type requires.
// Exact-output is the default when no adapter-specific mapping exists.
func IntentFor(adapter types.AdapterType) types.SwapIntent {
	switch adapter {
	case types.AdapterUniswapV3:
		return types.IntentExactOut
	case types.AdapterVelora, types.AdapterLiFi:
		return types.IntentExactIn
	default:
		return types.IntentExactOut
	}
}

func validateRequest(req Request) error {
	if req.TokenIn == (common.Address{}) || req.TokenOut == (common.Address{}) {
		return errors.Join(ErrInvalidRequest, errors.New("token address is zero"))
	}
	if req.TokenIn == req.TokenOut {
		return errors.Join(ErrInvalidRequest, errors.New("token in and out are identical"))
	}
	if req.Amount.IsNil() || !req.Amount.IsPositive() {
		return errors.Join(ErrInvalidRequest, errors.New("amount must be positive"))
	}
	if req.SlippageBps < 0 || req.SlippageBps > 10000 {
		return errors.Join(ErrInvalidRequest, errors.New("slippage bps out of range"))
	}
	return nil
}
