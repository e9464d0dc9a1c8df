/*

This file contains the quote orchestrator. Given a chain, a router, and a
swap descriptor it resolves which adapter and which price intent a leg
requires, binds the adapter to the chain's read client, and classifies every
failure mode into a fixed status taxonomy. Construction is synchronous and
performs no network I/O; the returned adapter does that lazily.

*/

package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nereus-fi/levengine/internal/chain"
	"github.com/nereus-fi/levengine/internal/logger"
	"github.com/nereus-fi/levengine/internal/swap"
	"github.com/nereus-fi/levengine/internal/types"
	"github.com/rs/zerolog"
)

// Status is the terminal resolution state of one quote leg. It only changes
// when the inputs change.
type Status string

const (
	StatusNotRequired        Status = "not-required"
	StatusMissingConfig      Status = "missing-config"
	StatusMissingRouter      Status = "missing-router"
	StatusMissingClient      Status = "missing-client"
	StatusMissingChainConfig Status = "missing-chain-config"
	StatusReady              Status = "ready"
	StatusError              Status = "error"
)

// Resolution is the orchestrator's answer for one leg. Adapter and Intent
// are populated only when Status is ready.
type Resolution struct {
	Status  Status
	Intent  types.SwapIntent
	Adapter swap.Adapter
	Err     error
}

// ResolveParams are the inputs of one resolution.
type ResolveParams struct {
	ChainID       uint64
	RouterAddress common.Address
	Swap          *types.SwapDescriptor
	SlippageBps   int
	RequiresQuote bool
}

// Orchestrator resolves swap adapters against a set of chain read clients.
type Orchestrator struct {
	readers      map[uint64]chain.Reader
	veloraBase   string
	lifiBase     string
	quoteTimeout time.Duration
	logger       zerolog.Logger
}

// Config wires the orchestrator's external collaborators.
type Config struct {
	Readers      map[uint64]chain.Reader
	VeloraBase   string
	LiFiBase     string
	QuoteTimeout time.Duration
}

// New creates an orchestrator bound to the given chain clients.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		readers:      cfg.Readers,
		veloraBase:   cfg.VeloraBase,
		lifiBase:     cfg.LiFiBase,
		quoteTimeout: cfg.QuoteTimeout,
		logger:       logger.GetForComponent("quote_orchestrator"),
	}
}

// Resolve classifies the leg and, when everything needed is present, returns
// a ready adapter bound to the resolved chain client. Precedence: a leg that
// requires no quote is not-required regardless of other inputs, and a missing
// descriptor or router overrides any would-be ready state.
func (o *Orchestrator) Resolve(params ResolveParams) (res Resolution) {
	// Adapter constructors are not expected to panic, but a non-error throw
	// value must still surface as a proper error, not a crash.
	defer func() {
		if r := recover(); r != nil {
			res = Resolution{Status: StatusError, Err: normalizePanic(r)}
		}
	}()

	if !params.RequiresQuote {
		return Resolution{Status: StatusNotRequired}
	}
	if params.Swap == nil {
		return Resolution{Status: StatusMissingConfig}
	}
	if params.RouterAddress == (common.Address{}) {
		return Resolution{Status: StatusMissingRouter}
	}

	reader, ok := o.readers[params.ChainID]
	if !ok {
		return Resolution{Status: StatusMissingClient}
	}

	adapter, err := o.buildAdapter(reader, params)
	if err != nil {
		if errors.Is(err, swap.ErrNoPoolConfig) || errors.Is(err, swap.ErrNoWrappedNative) {
			o.logger.Debug().Err(err).Uint64("chainId", params.ChainID).Msg("Adapter missing chain configuration")
			return Resolution{Status: StatusMissingChainConfig, Err: err}
		}
		return Resolution{Status: StatusError, Err: err}
	}

	return Resolution{
		Status:  StatusReady,
		Intent:  swap.IntentFor(params.Swap.Adapter),
		Adapter: adapter,
	}
}

func (o *Orchestrator) buildAdapter(reader chain.Reader, params ResolveParams) (swap.Adapter, error) {
	desc := *params.Swap
	desc.Router = params.RouterAddress

	switch desc.Adapter {
	case types.AdapterUniswapV3:
		return swap.NewUniswapV3(reader, desc)
	case types.AdapterVelora:
		return swap.NewVelora(params.ChainID, o.veloraBase, desc, o.quoteTimeout)
	case types.AdapterLiFi:
		return swap.NewLiFi(params.ChainID, o.lifiBase, o.quoteTimeout), nil
	default:
		return nil, fmt.Errorf("unknown adapter type %q", desc.Adapter)
	}
}

// normalizePanic coerces any recovered value into a proper error with a
// stable message.
func normalizePanic(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("adapter construction panicked: %w", err)
	}
	return fmt.Errorf("adapter construction panicked: %v", r)
}
