package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nereus-fi/levengine/internal/chain"
	"github.com/nereus-fi/levengine/internal/orchestrator"
	"github.com/nereus-fi/levengine/internal/types"
	"github.com/stretchr/testify/require"
)

type stubReader struct {
	chainID uint64
}

func (s *stubReader) Call(ctx context.Context, to common.Address, data []byte, blockNumber uint64) ([]byte, error) {
	return nil, nil
}

func (s *stubReader) BlockNumber(ctx context.Context) (uint64, error) { return 1, nil }

func (s *stubReader) ChainID() uint64 { return s.chainID }

func newTestOrchestrator(chainIDs ...uint64) *orchestrator.Orchestrator {
	readers := make(map[uint64]chain.Reader, len(chainIDs))
	for _, id := range chainIDs {
		readers[id] = &stubReader{chainID: id}
	}
	return orchestrator.New(orchestrator.Config{
		Readers:      readers,
		VeloraBase:   "https://velora.example.com",
		LiFiBase:     "https://lifi.example.com",
		QuoteTimeout: 10 * time.Second,
	})
}

var testRouter = common.HexToAddress("0x9000000000000000000000000000000000000009")

func TestResolveNotRequiredWinsOverEverything(t *testing.T) {
	o := newTestOrchestrator()

	// RequiresQuote false short-circuits even with every other input absent.
	res := o.Resolve(orchestrator.ResolveParams{
		ChainID:       999,
		RequiresQuote: false,
	})
	require.Equal(t, orchestrator.StatusNotRequired, res.Status)
	require.Nil(t, res.Adapter)
	require.NoError(t, res.Err)
}

func TestResolveMissingConfig(t *testing.T) {
	o := newTestOrchestrator(1)
	res := o.Resolve(orchestrator.ResolveParams{
		ChainID:       1,
		RouterAddress: testRouter,
		Swap:          nil,
		RequiresQuote: true,
	})
	require.Equal(t, orchestrator.StatusMissingConfig, res.Status)
}

func TestResolveMissingRouter(t *testing.T) {
	o := newTestOrchestrator(1)
	res := o.Resolve(orchestrator.ResolveParams{
		ChainID:       1,
		Swap:          &types.SwapDescriptor{Adapter: types.AdapterUniswapV3, PoolFeeBps: 30},
		RequiresQuote: true,
	})
	require.Equal(t, orchestrator.StatusMissingRouter, res.Status)
}

func TestResolveMissingClient(t *testing.T) {
	o := newTestOrchestrator(1)
	res := o.Resolve(orchestrator.ResolveParams{
		ChainID:       42161,
		RouterAddress: testRouter,
		Swap:          &types.SwapDescriptor{Adapter: types.AdapterUniswapV3, PoolFeeBps: 30},
		RequiresQuote: true,
	})
	require.Equal(t, orchestrator.StatusMissingClient, res.Status)
}

func TestResolveMissingChainConfig(t *testing.T) {
	// Chain 7 has a client but no quoter deployment; the adapter's typed
	// configuration error classifies, not the message text.
	o := newTestOrchestrator(7)
	res := o.Resolve(orchestrator.ResolveParams{
		ChainID:       7,
		RouterAddress: testRouter,
		Swap:          &types.SwapDescriptor{Adapter: types.AdapterUniswapV3, PoolFeeBps: 30},
		RequiresQuote: true,
	})
	require.Equal(t, orchestrator.StatusMissingChainConfig, res.Status)
	require.Error(t, res.Err)

	// Same taxonomy for a missing wrapped-native mapping.
	res = o.Resolve(orchestrator.ResolveParams{
		ChainID:       7,
		RouterAddress: testRouter,
		Swap:          &types.SwapDescriptor{Adapter: types.AdapterVelora},
		RequiresQuote: true,
	})
	require.Equal(t, orchestrator.StatusMissingChainConfig, res.Status)
}

func TestResolveReady(t *testing.T) {
	o := newTestOrchestrator(1)

	res := o.Resolve(orchestrator.ResolveParams{
		ChainID:       1,
		RouterAddress: testRouter,
		Swap:          &types.SwapDescriptor{Adapter: types.AdapterUniswapV3, PoolFeeBps: 30},
		RequiresQuote: true,
	})
	require.Equal(t, orchestrator.StatusReady, res.Status)
	require.NotNil(t, res.Adapter)
	require.Equal(t, types.IntentExactOut, res.Intent)

	res = o.Resolve(orchestrator.ResolveParams{
		ChainID:       1,
		RouterAddress: testRouter,
		Swap:          &types.SwapDescriptor{Adapter: types.AdapterVelora},
		RequiresQuote: true,
	})
	require.Equal(t, orchestrator.StatusReady, res.Status)
	require.Equal(t, types.IntentExactIn, res.Intent)

	res = o.Resolve(orchestrator.ResolveParams{
		ChainID:       1,
		RouterAddress: testRouter,
		Swap:          &types.SwapDescriptor{Adapter: types.AdapterLiFi},
		RequiresQuote: true,
	})
	require.Equal(t, orchestrator.StatusReady, res.Status)
	require.Equal(t, types.IntentExactIn, res.Intent)
}

func TestResolveUnknownAdapterIsError(t *testing.T) {
	o := newTestOrchestrator(1)
	res := o.Resolve(orchestrator.ResolveParams{
		ChainID:       1,
		RouterAddress: testRouter,
		Swap:          &types.SwapDescriptor{Adapter: types.AdapterType("teleport")},
		RequiresQuote: true,
	})
	require.Equal(t, orchestrator.StatusError, res.Status)
	require.Error(t, res.Err)
}

func TestResolveIsDeterministic(t *testing.T) {
	// Identical inputs resolve to identical statuses; resolution state only
	// changes when the inputs change.
	o := newTestOrchestrator(1)
	params := orchestrator.ResolveParams{
		ChainID:       1,
		RouterAddress: testRouter,
		Swap:          &types.SwapDescriptor{Adapter: types.AdapterUniswapV3, PoolFeeBps: 30},
		RequiresQuote: true,
	}
	first := o.Resolve(params)
	for i := 0; i < 5; i++ {
		require.Equal(t, first.Status, o.Resolve(params).Status)
	}
}
