/*

This file contains the leverage token registry: static per-chain token
configuration, looked up by address and never mutated after construction.

*/

package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nereus-fi/levengine/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrDuplicateToken = errors.New("token already registered")
	ErrInvalidConfig  = errors.New("token configuration is invalid")
)

// Registry holds the resolved per-chain leverage token configurations.
type Registry struct {
	byChain map[uint64]map[common.Address]types.LeverageTokenConfig
}

// New builds a registry from a fixed set of token configs. The registry is
// immutable afterwards.
func New(configs ...types.LeverageTokenConfig) (*Registry, error) {
	r := &Registry{byChain: make(map[uint64]map[common.Address]types.LeverageTokenConfig)}
	for _, cfg := range configs {
		if err := validate(cfg); err != nil {
			return nil, err
		}
		chain, ok := r.byChain[cfg.ChainID]
		if !ok {
			chain = make(map[common.Address]types.LeverageTokenConfig)
			r.byChain[cfg.ChainID] = chain
		}
		if _, exists := chain[cfg.Address]; exists {
			return nil, fmt.Errorf("%w: %s on chain %d", ErrDuplicateToken, cfg.Address.Hex(), cfg.ChainID)
		}
		chain[cfg.Address] = cfg
	}
	return r, nil
}

func validate(cfg types.LeverageTokenConfig) error {
	if cfg.Address == (common.Address{}) {
		return errors.Join(ErrInvalidConfig, errors.New("token address is zero"))
	}
	if cfg.ChainID == 0 {
		return errors.Join(ErrInvalidConfig, errors.New("chain id is zero"))
	}
	if cfg.Decimals < 0 || cfg.Decimals > 18 {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("decimals out of range: %d", cfg.Decimals))
	}
	if cfg.Collateral.Address == (common.Address{}) || cfg.Debt.Address == (common.Address{}) {
		return errors.Join(ErrInvalidConfig, errors.New("collateral/debt asset address is zero"))
	}
	if cfg.Collateral.Decimals < 0 || cfg.Collateral.Decimals > 18 ||
		cfg.Debt.Decimals < 0 || cfg.Debt.Decimals > 18 {
		return errors.Join(ErrInvalidConfig, errors.New("asset decimals out of range"))
	}
	if cfg.LensAddress == (common.Address{}) {
		return errors.Join(ErrInvalidConfig, errors.New("lens address is zero"))
	}
	return nil
}

// Lookup returns the config for a token address on a chain. The boolean is
// false for unknown tokens; an unknown token is not an error.
func (r *Registry) Lookup(chainID uint64, address common.Address) (types.LeverageTokenConfig, bool) {
	chain, ok := r.byChain[chainID]
	if !ok {
		return types.LeverageTokenConfig{}, false
	}
	cfg, ok := chain[address]
	return cfg, ok
}

// ByChain returns all tokens registered on a chain, ordered by address for
// deterministic iteration.
func (r *Registry) ByChain(chainID uint64) []types.LeverageTokenConfig {
	chain, ok := r.byChain[chainID]
	if !ok {
		return nil
	}
	configs := make([]types.LeverageTokenConfig, 0, len(chain))
	for _, cfg := range chain {
		configs = append(configs, cfg)
	}
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].Address.Hex() < configs[j].Address.Hex()
	})
	return configs
}

// Chains returns every chain id with at least one registered token.
func (r *Registry) Chains() []uint64 {
	ids := make([]uint64, 0, len(r.byChain))
	for id := range r.byChain {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
