// Package pricing fetches spot USD prices for ERC20 assets. Prices feed the
// expected/guaranteed USD figures on redeem plans and are advisory only; a
// missing price never blocks a plan.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ErrPriceUnavailable indicates the API returned no price for an asset.
var ErrPriceUnavailable = errors.New("price unavailable")

// Client fetches USD prices from the price API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a price client against the given API base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type priceResponse struct {
	Prices map[string]float64 `json:"prices"`
}

// USDPrices returns spot USD prices keyed by asset address. Assets the API
// does not know are absent from the map; callers decide whether that is
// fatal.
func (c *Client) USDPrices(ctx context.Context, chainID uint64, assets []common.Address) (map[common.Address]float64, error) {
	if len(assets) == 0 {
		return map[common.Address]float64{}, nil
	}

	hexes := make([]string, 0, len(assets))
	for _, asset := range assets {
		hexes = append(hexes, asset.Hex())
	}
	endpoint := fmt.Sprintf("%s/v1/prices?chainId=%d&assets=%s", c.baseURL, chainID, strings.Join(hexes, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var parsed priceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	prices := make(map[common.Address]float64, len(parsed.Prices))
	for addr, price := range parsed.Prices {
		if !common.IsHexAddress(addr) || price <= 0 {
			continue
		}
		prices[common.HexToAddress(addr)] = price
	}
	return prices, nil
}

// USDPrice returns the price of a single asset, or ErrPriceUnavailable.
func (c *Client) USDPrice(ctx context.Context, chainID uint64, asset common.Address) (float64, error) {
	prices, err := c.USDPrices(ctx, chainID, []common.Address{asset})
	if err != nil {
		return 0, err
	}
	price, ok := prices[asset]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrPriceUnavailable, asset.Hex())
	}
	return price, nil
}
