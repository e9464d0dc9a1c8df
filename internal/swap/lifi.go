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

// LiFi is the cross-venue router adapter: it searches multiple venues through
// one quote API and returns the winning route's transaction payload.
type LiFi struct {
	chainID    uint64
	apiBase    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewLiFi constructs the cross-venue adapter. Construction is synchronous and
// performs no network I/O.
func NewLiFi(chainID uint64, apiBase string, timeout time.Duration) *LiFi {
	return &LiFi{
		chainID:    chainID,
		apiBase:    apiBase,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.GetForComponent("lifi_adapter"),
	}
}

type lifiQuoteResponse struct {
	Estimate struct {
		ToAmount      string `json:"toAmount"`
		ApprovalAddr  string `json:"approvalAddress"`
		FromAmountUSD string `json:"fromAmountUSD"`
	} `json:"estimate"`
	TransactionRequest struct {
		To    string `json:"to"`
		Data  string `json:"data"`
		Value string `json:"value"`
	} `json:"transactionRequest"`
}

// Quote prices one exact-in leg across venues and returns the route's
// transaction payload.
func (l *LiFi) Quote(ctx context.Context, req Request) (types.Quote, error) {
	if err := validateRequest(req); err != nil {
		return types.Quote{}, err
	}
	if req.Intent != types.IntentExactIn {
		return types.Quote{}, fmt.Errorf("%w: cross-venue backend quotes exact-in only", ErrInvalidRequest)
	}

	params := url.Values{}
	params.Set("fromChain", fmt.Sprintf("%d", l.chainID))
	params.Set("toChain", fmt.Sprintf("%d", l.chainID))
	params.Set("fromToken", req.TokenIn.Hex())
	params.Set("toToken", req.TokenOut.Hex())
	params.Set("fromAmount", req.Amount.String())
	params.Set("fromAddress", req.Sender.Hex())
	params.Set("slippage", fmt.Sprintf("%.4f", float64(req.SlippageBps)/10000))

	endpoint := l.apiBase + "/quote?" + params.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.Quote{}, errors.Join(ErrQuoteFailed, err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return types.Quote{}, errors.Join(ErrQuoteFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Quote{}, errors.Join(ErrQuoteFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.Quote{}, fmt.Errorf("%w: quote API returned %d: %s", ErrQuoteFailed, resp.StatusCode, string(body))
	}

	var quoteResp lifiQuoteResponse
	if err := json.Unmarshal(body, &quoteResp); err != nil {
		return types.Quote{}, errors.Join(ErrQuoteFailed, err)
	}

	out, ok := sdkmath.NewIntFromString(quoteResp.Estimate.ToAmount)
	if !ok || out.IsNegative() {
		return types.Quote{}, fmt.Errorf("%w: malformed toAmount %q", ErrQuoteFailed, quoteResp.Estimate.ToAmount)
	}

	callData, err := hexutil.Decode(quoteResp.TransactionRequest.Data)
	if err != nil {
		return types.Quote{}, fmt.Errorf("%w: malformed tx data: %w", ErrQuoteFailed, err)
	}

	value := sdkmath.ZeroInt()
	if v := quoteResp.TransactionRequest.Value; v != "" && v != "0x0" && v != "0" {
		parsed, err := hexutil.DecodeBig(v)
		if err != nil {
			return types.Quote{}, fmt.Errorf("%w: malformed tx value %q", ErrQuoteFailed, v)
		}
		value = sdkmath.NewIntFromBigInt(parsed)
	}

	l.logger.Debug().
		Str("tokenIn", req.TokenIn.Hex()).
		Str("tokenOut", req.TokenOut.Hex()).
		Str("amount", req.Amount.String()).
		Str("out", out.String()).
		Msg("Cross-venue quote completed")

	return types.Quote{
		Out:            out,
		ApprovalTarget: common.HexToAddress(quoteResp.Estimate.ApprovalAddr),
		Calls: []types.Call{
			{
				Target: common.HexToAddress(quoteResp.TransactionRequest.To),
				Data:   callData,
				Value:  value,
			},
		},
	}, nil
}
