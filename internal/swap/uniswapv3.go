package swap

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/nereus-fi/levengine/internal/chain"
	"github.com/nereus-fi/levengine/internal/logger"
	"github.com/nereus-fi/levengine/internal/types"
	"github.com/rs/zerolog"
)

// quoterByChain maps a chain id to its QuoterV2 deployment. A chain absent
// from this table cannot serve pool-router quotes.
var quoterByChain = map[uint64]common.Address{
	1:     common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e"),
	8453:  common.HexToAddress("0x3d4e44Eb1374240CE5F1B871ab261CD16335B76a"),
	42161: common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e"),
}

// UniswapV3 quotes through the on-chain QuoterV2 and emits SwapRouter02
// calldata. It is the constant-product pool router backend.
type UniswapV3 struct {
	reader chain.Reader
	quoter common.Address
	router common.Address
	feePpm uint32
	logger zerolog.Logger
}

// NewUniswapV3 constructs the pool-router adapter. Construction is
// synchronous and performs no network I/O.
func NewUniswapV3(reader chain.Reader, desc types.SwapDescriptor) (*UniswapV3, error) {
	quoter, ok := quoterByChain[reader.ChainID()]
	if !ok {
		return nil, fmt.Errorf("%w: chain %d has no quoter deployment", ErrNoPoolConfig, reader.ChainID())
	}
	if desc.PoolFeeBps <= 0 {
		return nil, fmt.Errorf("%w: pool fee tier not configured", ErrNoPoolConfig)
	}
	return &UniswapV3{
		reader: reader,
		quoter: quoter,
		router: desc.Router,
		// Uniswap fee tiers are parts-per-million; descriptor carries bps.
		feePpm: uint32(desc.PoolFeeBps) * 100,
		logger: logger.GetForComponent("uniswapv3_adapter"),
	}, nil
}

// Quote prices one leg through QuoterV2 and assembles router calldata.
// Exact-out quotes return the required input amount in Out; exact-in quotes
// return the output amount.
func (u *UniswapV3) Quote(ctx context.Context, req Request) (types.Quote, error) {
	if err := validateRequest(req); err != nil {
		return types.Quote{}, err
	}

	var quoteSelector, swapSelector []byte
	switch req.Intent {
	case types.IntentExactOut:
		quoteSelector = chain.SelectorQuoteExactOutputSingle
		swapSelector = chain.SelectorExactOutputSingle
	case types.IntentExactIn:
		quoteSelector = chain.SelectorQuoteExactInputSingle
		swapSelector = chain.SelectorExactInputSingle
	default:
		return types.Quote{}, fmt.Errorf("%w: unknown intent %q", ErrInvalidRequest, req.Intent)
	}

	quoteData := chain.EncodeCall(quoteSelector,
		chain.EncodeAddress(req.TokenIn),
		chain.EncodeAddress(req.TokenOut),
		chain.EncodeUint256(req.Amount),
		chain.EncodeUint24(u.feePpm),
		chain.EncodeUint256(sdkmath.ZeroInt()), // sqrtPriceLimitX96: no limit
	)

	result, err := u.reader.Call(ctx, u.quoter, quoteData, 0)
	if err != nil {
		return types.Quote{}, errors.Join(ErrQuoteFailed, err)
	}
	out, err := chain.DecodeWord(result, 0)
	if err != nil {
		return types.Quote{}, errors.Join(ErrQuoteFailed, err)
	}

	// The swap call bounds the non-fixed side by the quoted amount adjusted
	// for slippage: a maximum input for exact-out, a minimum output for
	// exact-in.
	var bound sdkmath.Int
	if req.Intent == types.IntentExactOut {
		bound = out.Mul(sdkmath.NewInt(int64(10000 + req.SlippageBps))).Quo(sdkmath.NewInt(10000))
	} else {
		bound = out.Mul(sdkmath.NewInt(int64(10000 - req.SlippageBps))).Quo(sdkmath.NewInt(10000))
	}

	swapData := chain.EncodeCall(swapSelector,
		chain.EncodeAddress(req.TokenIn),
		chain.EncodeAddress(req.TokenOut),
		chain.EncodeUint24(u.feePpm),
		chain.EncodeAddress(req.Sender),
		chain.EncodeUint256(req.Amount),
		chain.EncodeUint256(bound),
		chain.EncodeUint256(sdkmath.ZeroInt()),
	)

	approveAmount := req.Amount
	if req.Intent == types.IntentExactOut {
		approveAmount = bound
	}

	u.logger.Debug().
		Str("tokenIn", req.TokenIn.Hex()).
		Str("tokenOut", req.TokenOut.Hex()).
		Str("amount", req.Amount.String()).
		Str("out", out.String()).
		Str("intent", string(req.Intent)).
		Msg("Pool router quote completed")

	return types.Quote{
		Out:            out,
		ApprovalTarget: u.router,
		Calls: []types.Call{
			{
				Target: req.TokenIn,
				Data:   chain.EncodeApprove(u.router, approveAmount),
				Value:  sdkmath.ZeroInt(),
			},
			{
				Target: u.router,
				Data:   swapData,
				Value:  sdkmath.ZeroInt(),
			},
		},
	}, nil
}
