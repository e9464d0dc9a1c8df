package apy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nereus-fi/levengine/internal/chain"
	"github.com/nereus-fi/levengine/internal/types"
)

// ErrMissingReader indicates no RPC reader is configured for the token's chain.
var ErrMissingReader = errors.New("no chain reader for token's chain")

const sourceHTTPTimeout = 15 * time.Second

// ChainRatioSource reads the target leverage directly from the lens contract.
type ChainRatioSource struct {
	readers map[uint64]chain.Reader
}

// NewChainRatioSource creates a ratio source over the given per-chain readers.
func NewChainRatioSource(readers map[uint64]chain.Reader) *ChainRatioSource {
	return &ChainRatioSource{readers: readers}
}

// TargetLeverage returns the token's current target leverage as a decimal
// multiple. Latest block; ratio reads are not part of any pinned plan.
func (s *ChainRatioSource) TargetLeverage(ctx context.Context, cfg types.LeverageTokenConfig) (float64, error) {
	reader, ok := s.readers[cfg.ChainID]
	if !ok {
		return 0, fmt.Errorf("%w: chain %d", ErrMissingReader, cfg.ChainID)
	}
	lens := chain.NewLens(reader, cfg.LensAddress)
	ratios, err := lens.LeverageState(ctx, cfg.Address, 0)
	if err != nil {
		return 0, err
	}
	return ratios.TargetFloat(), nil
}

// StakingAPRClient fetches base staking and restaking APRs from the yield API.
type StakingAPRClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewStakingAPRClient creates a client against the given API base URL.
func NewStakingAPRClient(baseURL string) *StakingAPRClient {
	return &StakingAPRClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: sourceHTTPTimeout,
		},
	}
}

type stakingAPRResponse struct {
	StakingAPR   float64 `json:"stakingApr"`
	RestakingAPR float64 `json:"restakingApr"`
}

// StakingAPR returns the collateral asset's staking and restaking APRs as
// decimal fractions. The API reports percentages.
func (c *StakingAPRClient) StakingAPR(ctx context.Context, cfg types.LeverageTokenConfig) (float64, float64, error) {
	endpoint := fmt.Sprintf("%s/v1/apr?chainId=%d&asset=%s", c.baseURL, cfg.ChainID, cfg.Collateral.Address.Hex())

	var parsed stakingAPRResponse
	if err := fetchJSON(ctx, c.httpClient, endpoint, &parsed); err != nil {
		return 0, 0, fmt.Errorf("staking APR for %s: %w", cfg.Collateral.Symbol, err)
	}
	return parsed.StakingAPR / 100, parsed.RestakingAPR / 100, nil
}

// BorrowMarketClient fetches the debt market's borrow APY and utilization
// from the lending markets API.
type BorrowMarketClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewBorrowMarketClient creates a client against the given API base URL.
func NewBorrowMarketClient(baseURL string) *BorrowMarketClient {
	return &BorrowMarketClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: sourceHTTPTimeout,
		},
	}
}

type borrowMarketResponse struct {
	BorrowAPY   float64 `json:"borrowApy"`
	Utilization float64 `json:"utilization"`
}

// BorrowRate returns the debt asset's variable borrow APY as a decimal
// fraction and the market utilization in [0, 1].
func (c *BorrowMarketClient) BorrowRate(ctx context.Context, cfg types.LeverageTokenConfig) (float64, float64, error) {
	endpoint := fmt.Sprintf("%s/v1/markets?chainId=%d&asset=%s", c.baseURL, cfg.ChainID, cfg.Debt.Address.Hex())

	var parsed borrowMarketResponse
	if err := fetchJSON(ctx, c.httpClient, endpoint, &parsed); err != nil {
		return 0, 0, fmt.Errorf("borrow rate for %s: %w", cfg.Debt.Symbol, err)
	}
	return parsed.BorrowAPY / 100, parsed.Utilization, nil
}

// RewardsClient fetches incentive campaign APRs for a leverage token.
type RewardsClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRewardsClient creates a client against the given API base URL.
func NewRewardsClient(baseURL string) *RewardsClient {
	return &RewardsClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: sourceHTTPTimeout,
		},
	}
}

type rewardsResponse struct {
	APR    float64 `json:"apr"`
	Tokens []struct {
		Address string  `json:"address"`
		Symbol  string  `json:"symbol"`
		APR     float64 `json:"apr"`
	} `json:"tokens"`
}

// RewardsAPR returns the token's total rewards APR as a decimal fraction and
// the per-reward-token breakdown. A token with no active campaigns yields
// zero APR and an empty breakdown, not an error.
func (c *RewardsClient) RewardsAPR(ctx context.Context, cfg types.LeverageTokenConfig) (float64, []types.RewardToken, error) {
	endpoint := fmt.Sprintf("%s/v1/rewards?chainId=%d&token=%s", c.baseURL, cfg.ChainID, cfg.Address.Hex())

	var parsed rewardsResponse
	if err := fetchJSON(ctx, c.httpClient, endpoint, &parsed); err != nil {
		return 0, nil, fmt.Errorf("rewards APR for %s: %w", cfg.Symbol, err)
	}

	breakdown := make([]types.RewardToken, 0, len(parsed.Tokens))
	for _, token := range parsed.Tokens {
		breakdown = append(breakdown, types.RewardToken{
			Address: common.HexToAddress(token.Address),
			Symbol:  token.Symbol,
			APR:     token.APR / 100,
		})
	}
	return parsed.APR / 100, breakdown, nil
}

// fetchJSON performs a GET and decodes the JSON body into dst. Non-2xx
// statuses are errors.
func fetchJSON(ctx context.Context, client *http.Client, endpoint string, dst any) error {
	if _, err := url.Parse(endpoint); err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
