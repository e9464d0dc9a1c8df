package swap

import (
	"bytes"
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/nereus-fi/levengine/internal/chain"
	"github.com/nereus-fi/levengine/internal/types"
	"github.com/stretchr/testify/require"
)

type stubReader struct {
	chainID uint64
	call    func(ctx context.Context, to common.Address, data []byte, blockNumber uint64) ([]byte, error)
}

func (s *stubReader) Call(ctx context.Context, to common.Address, data []byte, blockNumber uint64) ([]byte, error) {
	return s.call(ctx, to, data, blockNumber)
}

func (s *stubReader) BlockNumber(ctx context.Context) (uint64, error) { return 1, nil }

func (s *stubReader) ChainID() uint64 { return s.chainID }

func TestNewUniswapV3RequiresChainConfig(t *testing.T) {
	desc := types.SwapDescriptor{Adapter: types.AdapterUniswapV3, PoolFeeBps: 30}

	_, err := NewUniswapV3(&stubReader{chainID: 999}, desc)
	require.ErrorIs(t, err, ErrNoPoolConfig)

	desc.PoolFeeBps = 0
	_, err = NewUniswapV3(&stubReader{chainID: 1}, desc)
	require.ErrorIs(t, err, ErrNoPoolConfig)
}

func TestUniswapV3QuoteExactOut(t *testing.T) {
	tokenIn := common.HexToAddress("0x1000000000000000000000000000000000000001")
	tokenOut := common.HexToAddress("0x2000000000000000000000000000000000000002")
	router := common.HexToAddress("0x3000000000000000000000000000000000000003")

	var capturedData []byte
	reader := &stubReader{
		chainID: 1,
		call: func(ctx context.Context, to common.Address, data []byte, blockNumber uint64) ([]byte, error) {
			capturedData = data
			// QuoterV2 reports the required input amount.
			return chain.EncodeUint256(sdkmath.NewInt(1000)), nil
		},
	}

	adapter, err := NewUniswapV3(reader, types.SwapDescriptor{
		Adapter:    types.AdapterUniswapV3,
		PoolFeeBps: 30,
		Router:     router,
	})
	require.NoError(t, err)

	quote, err := adapter.Quote(context.Background(), Request{
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		Amount:      sdkmath.NewInt(500),
		Intent:      types.IntentExactOut,
		SlippageBps: 100,
	})
	require.NoError(t, err)

	require.Equal(t, sdkmath.NewInt(1000), quote.Out)
	require.Equal(t, router, quote.ApprovalTarget)
	require.True(t, bytes.HasPrefix(capturedData, chain.SelectorQuoteExactOutputSingle))

	// Exact-out bounds the input side: approval covers out * 1.01.
	require.Len(t, quote.Calls, 2)
	approve := quote.Calls[0]
	require.Equal(t, tokenIn, approve.Target)
	require.True(t, bytes.HasPrefix(approve.Data, chain.SelectorApprove))
	wantApprove := chain.EncodeApprove(router, sdkmath.NewInt(1010))
	require.Equal(t, wantApprove, approve.Data)

	swapCall := quote.Calls[1]
	require.Equal(t, router, swapCall.Target)
	require.True(t, bytes.HasPrefix(swapCall.Data, chain.SelectorExactOutputSingle))
}

func TestUniswapV3QuoteExactIn(t *testing.T) {
	tokenIn := common.HexToAddress("0x1000000000000000000000000000000000000001")
	tokenOut := common.HexToAddress("0x2000000000000000000000000000000000000002")
	router := common.HexToAddress("0x3000000000000000000000000000000000000003")

	reader := &stubReader{
		chainID: 8453,
		call: func(ctx context.Context, to common.Address, data []byte, blockNumber uint64) ([]byte, error) {
			require.True(t, bytes.HasPrefix(data, chain.SelectorQuoteExactInputSingle))
			return chain.EncodeUint256(sdkmath.NewInt(2000)), nil
		},
	}

	adapter, err := NewUniswapV3(reader, types.SwapDescriptor{
		Adapter:    types.AdapterUniswapV3,
		PoolFeeBps: 5,
		Router:     router,
	})
	require.NoError(t, err)

	quote, err := adapter.Quote(context.Background(), Request{
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		Amount:      sdkmath.NewInt(1000),
		Intent:      types.IntentExactIn,
		SlippageBps: 50,
	})
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(2000), quote.Out)

	// Exact-in approves exactly the fixed input amount.
	require.Len(t, quote.Calls, 2)
	wantApprove := chain.EncodeApprove(router, sdkmath.NewInt(1000))
	require.Equal(t, wantApprove, quote.Calls[0].Data)
	require.True(t, bytes.HasPrefix(quote.Calls[1].Data, chain.SelectorExactInputSingle))
}

func TestUniswapV3QuoteRejectsInvalidRequest(t *testing.T) {
	reader := &stubReader{chainID: 1, call: func(ctx context.Context, to common.Address, data []byte, blockNumber uint64) ([]byte, error) {
		t.Fatal("no network call expected for an invalid request")
		return nil, nil
	}}
	adapter, err := NewUniswapV3(reader, types.SwapDescriptor{Adapter: types.AdapterUniswapV3, PoolFeeBps: 30})
	require.NoError(t, err)

	_, err = adapter.Quote(context.Background(), Request{
		TokenIn:  common.HexToAddress("0x1000000000000000000000000000000000000001"),
		TokenOut: common.HexToAddress("0x1000000000000000000000000000000000000001"),
		Amount:   sdkmath.NewInt(1),
		Intent:   types.IntentExactIn,
	})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestNewVeloraRequiresWrappedNative(t *testing.T) {
	desc := types.SwapDescriptor{Adapter: types.AdapterVelora}
	_, err := NewVelora(999, "https://api.example.com", desc, 0)
	require.ErrorIs(t, err, ErrNoWrappedNative)

	_, err = NewVelora(1, "https://api.example.com", desc, 0)
	require.NoError(t, err)
}
