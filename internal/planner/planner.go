/*

This file contains the shared planner scaffolding: error definitions, the
planner's dependencies, and the helpers common to the mint and redeem paths.
Each plan is a fresh, immutable value object; all chain reads of one plan are
pinned to a single block number so multiple calls see one consistent
snapshot.

*/

package planner

import (
	"bytes"
	"context"
	"errors"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/nereus-fi/levengine/internal/chain"
	"github.com/nereus-fi/levengine/internal/registry"
	"github.com/nereus-fi/levengine/internal/swap"
	"github.com/nereus-fi/levengine/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrPlanning             = errors.New("planning failed")
	ErrInvalidEquity        = errors.New("equity must be positive")
	ErrInvalidShares        = errors.New("shares must be positive")
	ErrInvalidSlippage      = errors.New("slippage bps out of range")
	ErrUnknownToken         = errors.New("leverage token not registered")
	ErrMissingClient        = errors.New("no chain client for target chain")
	ErrQuoteRequired        = errors.New("quote function required for swap leg")
	ErrQuoteFailed          = errors.New("quote request rejected")
	ErrQuoteShortfall       = errors.New("quoted output below required amount")
	ErrNegativeAmount       = errors.New("plan would contain a negative amount")
	ErrLeverageState        = errors.New("leverage state unavailable")
	ErrInsufficientProceeds = errors.New("redeemed collateral cannot cover debt repayment")
)

// QuoteFunc requests one swap leg. Planners never cache quotes across
// differing amounts.
type QuoteFunc func(ctx context.Context, req swap.Request) (types.Quote, error)

// Planner builds mint and redeem plans from registry configuration and
// pinned-block chain reads. It holds no mutable state.
type Planner struct {
	registry *registry.Registry
	readers  map[uint64]chain.Reader
}

// New creates a planner over the given registry and chain clients.
func New(reg *registry.Registry, readers map[uint64]chain.Reader) *Planner {
	return &Planner{registry: reg, readers: readers}
}

// resolveToken looks up the token config and its chain reader, and pins the
// block number when the caller did not.
func (p *Planner) resolveToken(ctx context.Context, chainID uint64, token common.Address, blockNumber uint64) (types.LeverageTokenConfig, chain.Reader, uint64, error) {
	cfg, ok := p.registry.Lookup(chainID, token)
	if !ok {
		return types.LeverageTokenConfig{}, nil, 0, errors.Join(ErrPlanning, ErrUnknownToken)
	}
	reader, ok := p.readers[chainID]
	if !ok {
		return types.LeverageTokenConfig{}, nil, 0, errors.Join(ErrPlanning, ErrMissingClient)
	}
	if blockNumber == 0 {
		head, err := reader.BlockNumber(ctx)
		if err != nil {
			return types.LeverageTokenConfig{}, nil, 0, errors.Join(ErrPlanning, err)
		}
		blockNumber = head
	}
	return cfg, reader, blockNumber, nil
}

// withApproval prepends an ERC20 approval for the quote's spender unless the
// adapter already included one for the same token.
func withApproval(quote types.Quote, token common.Address, amount sdkmath.Int) []types.Call {
	for _, call := range quote.Calls {
		if call.Target == token && len(call.Data) >= 4 && bytes.Equal(call.Data[:4], chain.SelectorApprove) {
			return quote.Calls
		}
	}
	approve := types.Call{
		Target: token,
		Data:   chain.EncodeApprove(quote.ApprovalTarget, amount),
		Value:  sdkmath.ZeroInt(),
	}
	return append([]types.Call{approve}, quote.Calls...)
}

func validateNonNegative(amounts ...sdkmath.Int) error {
	for _, a := range amounts {
		if a.IsNil() || a.IsNegative() {
			return errors.Join(ErrPlanning, ErrNegativeAmount)
		}
	}
	return nil
}
