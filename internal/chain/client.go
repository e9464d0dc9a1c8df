package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/nereus-fi/levengine/internal/logger"
	"github.com/rs/zerolog"
)

const (
	rpcTimeout = 20 * time.Second
)

// Error definitions for zero-tolerance error handling
var (
	ErrRPCFailure     = errors.New("rpc request failed")
	ErrCallReverted   = errors.New("call reverted")
	ErrNoEndpoints    = errors.New("no rpc endpoints configured")
	ErrReceiptTimeout = errors.New("timed out waiting for receipt")
)

// Reader is the read/simulate side of the chain boundary. All reads of one
// plan must use the same block number for a consistent snapshot.
type Reader interface {
	// Call executes a read-only contract call, pinned to blockNumber when
	// non-zero ("latest" otherwise), returning the raw ABI-encoded result.
	Call(ctx context.Context, to common.Address, data []byte, blockNumber uint64) ([]byte, error)
	// BlockNumber returns the current head block number.
	BlockNumber(ctx context.Context) (uint64, error)
	// ChainID reports which chain this reader is bound to.
	ChainID() uint64
}

// Writer is the write side of the chain boundary.
type Writer interface {
	// Send broadcasts a signed transaction payload and returns its hash.
	Send(ctx context.Context, rawTx []byte) (common.Hash, error)
	// WaitForReceipt polls until the transaction is mined or ctx expires.
	WaitForReceipt(ctx context.Context, hash common.Hash) (ReceiptStatus, error)
}

// ReceiptStatus is the terminal outcome of a mined transaction.
type ReceiptStatus struct {
	Success bool
	GasUsed uint64
}

// Client speaks Ethereum JSON-RPC over HTTP. The first endpoint is primary;
// the rest are fallbacks tried in order.
type Client struct {
	chainID    uint64
	urls       []string
	httpClient *http.Client
	requestID  atomic.Int64
	logger     zerolog.Logger
}

// NewClient creates a JSON-RPC client for one chain.
func NewClient(chainID uint64, urls []string) (*Client, error) {
	if len(urls) == 0 {
		return nil, ErrNoEndpoints
	}
	return &Client{
		chainID:    chainID,
		urls:       urls,
		httpClient: &http.Client{Timeout: rpcTimeout},
		logger:     logger.GetForComponent("chain_client"),
	}, nil
}

// ChainID reports which chain this client is bound to.
func (c *Client) ChainID() uint64 {
	return c.chainID
}

// --- JSON-RPC wire structures ---

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// Call executes eth_call against the pinned block.
func (c *Client) Call(ctx context.Context, to common.Address, data []byte, blockNumber uint64) ([]byte, error) {
	block := "latest"
	if blockNumber > 0 {
		block = hexutil.EncodeUint64(blockNumber)
	}

	params := []any{
		map[string]string{
			"to":   to.Hex(),
			"data": hexutil.Encode(data),
		},
		block,
	}

	raw, err := c.execute(ctx, "eth_call", params)
	if err != nil {
		return nil, err
	}

	var hexResult string
	if err := json.Unmarshal(raw, &hexResult); err != nil {
		return nil, fmt.Errorf("%w: malformed eth_call result: %w", ErrRPCFailure, err)
	}
	return hexutil.Decode(hexResult)
}

// BlockNumber returns the current head block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	raw, err := c.execute(ctx, "eth_blockNumber", []any{})
	if err != nil {
		return 0, err
	}
	var hexResult string
	if err := json.Unmarshal(raw, &hexResult); err != nil {
		return 0, fmt.Errorf("%w: malformed eth_blockNumber result: %w", ErrRPCFailure, err)
	}
	return hexutil.DecodeUint64(hexResult)
}

// NonceAt returns the account's next nonce including pending transactions.
func (c *Client) NonceAt(ctx context.Context, account common.Address) (uint64, error) {
	raw, err := c.execute(ctx, "eth_getTransactionCount", []any{account.Hex(), "pending"})
	if err != nil {
		return 0, err
	}
	var hexResult string
	if err := json.Unmarshal(raw, &hexResult); err != nil {
		return 0, fmt.Errorf("%w: malformed nonce result: %w", ErrRPCFailure, err)
	}
	return hexutil.DecodeUint64(hexResult)
}

// GasPrice returns the current gas price.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	raw, err := c.execute(ctx, "eth_gasPrice", []any{})
	if err != nil {
		return nil, err
	}
	var hexResult string
	if err := json.Unmarshal(raw, &hexResult); err != nil {
		return nil, fmt.Errorf("%w: malformed gas price result: %w", ErrRPCFailure, err)
	}
	price, err := hexutil.DecodeBig(hexResult)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed gas price result: %w", ErrRPCFailure, err)
	}
	return price, nil
}

// EstimateGas estimates the gas needed for a transaction.
func (c *Client) EstimateGas(ctx context.Context, from, to common.Address, data []byte, value *big.Int) (uint64, error) {
	call := map[string]string{
		"from": from.Hex(),
		"to":   to.Hex(),
		"data": hexutil.Encode(data),
	}
	if value != nil && value.Sign() > 0 {
		call["value"] = hexutil.EncodeBig(value)
	}

	raw, err := c.execute(ctx, "eth_estimateGas", []any{call})
	if err != nil {
		return 0, err
	}
	var hexResult string
	if err := json.Unmarshal(raw, &hexResult); err != nil {
		return 0, fmt.Errorf("%w: malformed gas estimate result: %w", ErrRPCFailure, err)
	}
	return hexutil.DecodeUint64(hexResult)
}

// Send broadcasts a signed transaction.
func (c *Client) Send(ctx context.Context, rawTx []byte) (common.Hash, error) {
	raw, err := c.execute(ctx, "eth_sendRawTransaction", []any{hexutil.Encode(rawTx)})
	if err != nil {
		return common.Hash{}, err
	}
	var hexHash string
	if err := json.Unmarshal(raw, &hexHash); err != nil {
		return common.Hash{}, fmt.Errorf("%w: malformed send result: %w", ErrRPCFailure, err)
	}
	return common.HexToHash(hexHash), nil
}

type rpcReceipt struct {
	Status  string `json:"status"`
	GasUsed string `json:"gasUsed"`
}

// WaitForReceipt polls eth_getTransactionReceipt until the transaction is
// mined or the context expires.
func (c *Client) WaitForReceipt(ctx context.Context, hash common.Hash) (ReceiptStatus, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		raw, err := c.execute(ctx, "eth_getTransactionReceipt", []any{hash.Hex()})
		if err == nil && string(raw) != "null" {
			var receipt rpcReceipt
			if err := json.Unmarshal(raw, &receipt); err != nil {
				return ReceiptStatus{}, fmt.Errorf("%w: malformed receipt: %w", ErrRPCFailure, err)
			}
			gasUsed, _ := hexutil.DecodeUint64(receipt.GasUsed)
			return ReceiptStatus{
				Success: receipt.Status == "0x1",
				GasUsed: gasUsed,
			}, nil
		}

		select {
		case <-ctx.Done():
			return ReceiptStatus{}, errors.Join(ErrReceiptTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// execute runs one JSON-RPC request across the configured endpoints.
func (c *Client) execute(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	var lastErr error
	for _, url := range c.urls {
		result, err := c.doRequest(ctx, url, req)
		if err != nil {
			lastErr = err
			c.logger.Debug().Err(err).Str("url", url).Str("method", method).Msg("RPC endpoint failed, trying next")
			continue
		}
		return result, nil
	}
	return nil, errors.Join(ErrRPCFailure, lastErr)
}

func (c *Client) doRequest(ctx context.Context, url string, req rpcRequest) (json.RawMessage, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON-RPC request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBodyBytes, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON-RPC response: %w", err)
	}

	if rpcResp.Error != nil {
		// Execution reverts come back as a distinct error class so callers
		// can tell a bad simulation from a transport failure.
		if rpcResp.Error.Code == 3 || rpcResp.Error.Code == -32000 {
			return nil, fmt.Errorf("%w: %s", ErrCallReverted, rpcResp.Error.Message)
		}
		return nil, fmt.Errorf("RPC error: %s (code %d)", rpcResp.Error.Message, rpcResp.Error.Code)
	}

	return rpcResp.Result, nil
}
