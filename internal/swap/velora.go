package swap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/nereus-fi/levengine/internal/logger"
	"github.com/nereus-fi/levengine/internal/types"
	"github.com/rs/zerolog"
)

// nativeAsset is the pseudo-address aggregator APIs use for the chain's
// native asset.
var nativeAsset = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// wrappedNativeByChain maps a chain id to its canonical wrapped native
// asset. Native-asset legs are rewritten onto the wrapped asset before
// quoting; a chain missing from this table cannot serve them.
var wrappedNativeByChain = map[uint64]common.Address{
	1:     common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
	8453:  common.HexToAddress("0x4200000000000000000000000000000000000006"),
	42161: common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"),
}

// Velora is the aggregator-API-backed router adapter.
type Velora struct {
	chainID    uint64
	apiBase    string
	router     common.Address
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewVelora constructs the aggregator adapter. Construction is synchronous
// and performs no network I/O; the chain must have a wrapped-native mapping
// even when the first request is ERC20-only, because routing through the
// native asset is part of the backend's search space.
func NewVelora(chainID uint64, apiBase string, desc types.SwapDescriptor, timeout time.Duration) (*Velora, error) {
	if _, ok := wrappedNativeByChain[chainID]; !ok {
		return nil, fmt.Errorf("%w: chain %d", ErrNoWrappedNative, chainID)
	}
	return &Velora{
		chainID:    chainID,
		apiBase:    apiBase,
		router:     desc.Router,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.GetForComponent("velora_adapter"),
	}, nil
}

type veloraQuoteResponse struct {
	DestAmount string `json:"destAmount"`
	To         string `json:"to"`
	Data       string `json:"data"`
	Value      string `json:"value"`
	Spender    string `json:"tokenTransferProxy"`
}

// Quote prices one exact-in leg through the aggregator API and returns the
// transaction payload it built.
func (v *Velora) Quote(ctx context.Context, req Request) (types.Quote, error) {
	if err := validateRequest(req); err != nil {
		return types.Quote{}, err
	}
	if req.Intent != types.IntentExactIn {
		return types.Quote{}, fmt.Errorf("%w: aggregator backend quotes exact-in only", ErrInvalidRequest)
	}

	tokenIn := v.resolveNative(req.TokenIn)
	tokenOut := v.resolveNative(req.TokenOut)

	params := url.Values{}
	params.Set("network", fmt.Sprintf("%d", v.chainID))
	params.Set("srcToken", tokenIn.Hex())
	params.Set("destToken", tokenOut.Hex())
	params.Set("amount", req.Amount.String())
	params.Set("side", "SELL")
	params.Set("slippage", fmt.Sprintf("%d", req.SlippageBps))
	params.Set("userAddress", req.Sender.Hex())

	endpoint := v.apiBase + "/swap?" + params.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.Quote{}, errors.Join(ErrQuoteFailed, err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(httpReq)
	if err != nil {
		return types.Quote{}, errors.Join(ErrQuoteFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Quote{}, errors.Join(ErrQuoteFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.Quote{}, fmt.Errorf("%w: aggregator returned %d: %s", ErrQuoteFailed, resp.StatusCode, string(body))
	}

	var quoteResp veloraQuoteResponse
	if err := json.Unmarshal(body, &quoteResp); err != nil {
		return types.Quote{}, errors.Join(ErrQuoteFailed, err)
	}

	out, ok := sdkmath.NewIntFromString(quoteResp.DestAmount)
	if !ok || out.IsNegative() {
		return types.Quote{}, fmt.Errorf("%w: malformed destAmount %q", ErrQuoteFailed, quoteResp.DestAmount)
	}

	callData, err := hexutil.Decode(quoteResp.Data)
	if err != nil {
		return types.Quote{}, fmt.Errorf("%w: malformed tx data: %w", ErrQuoteFailed, err)
	}
	value := sdkmath.ZeroInt()
	if quoteResp.Value != "" && quoteResp.Value != "0" {
		value, ok = sdkmath.NewIntFromString(quoteResp.Value)
		if !ok {
			return types.Quote{}, fmt.Errorf("%w: malformed tx value %q", ErrQuoteFailed, quoteResp.Value)
		}
	}

	approvalTarget := v.router
	if quoteResp.Spender != "" {
		approvalTarget = common.HexToAddress(quoteResp.Spender)
	}

	v.logger.Debug().
		Str("tokenIn", req.TokenIn.Hex()).
		Str("tokenOut", req.TokenOut.Hex()).
		Str("amount", req.Amount.String()).
		Str("out", out.String()).
		Msg("Aggregator quote completed")

	return types.Quote{
		Out:            out,
		ApprovalTarget: approvalTarget,
		Calls: []types.Call{
			{
				Target: common.HexToAddress(quoteResp.To),
				Data:   callData,
				Value:  value,
			},
		},
	}, nil
}

func (v *Velora) resolveNative(token common.Address) common.Address {
	if token == nativeAsset {
		return wrappedNativeByChain[v.chainID]
	}
	return token
}
