package apy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nereus-fi/levengine/internal/logger"
	"github.com/nereus-fi/levengine/internal/query"
	"github.com/nereus-fi/levengine/internal/registry"
	"github.com/nereus-fi/levengine/internal/state"
	"github.com/nereus-fi/levengine/internal/types"
)

// Refresher drives the background yield refresh loop. Each cycle recomputes
// every registered token's composite APY, replaces the cached value, and
// persists a snapshot. A failing token degrades that token only.
type Refresher struct {
	logger     zerolog.Logger
	aggregator *Aggregator
	registry   *registry.Registry
	store      *query.Store
	staleFor   time.Duration
}

// NewRefresher creates a refresher over the aggregator and cache.
func NewRefresher(aggregator *Aggregator, reg *registry.Registry, store *query.Store, staleFor time.Duration) *Refresher {
	return &Refresher{
		logger:     logger.GetForComponent("apy_refresher"),
		aggregator: aggregator,
		registry:   reg,
		store:      store,
		staleFor:   staleFor,
	}
}

// RunLoop runs refresh cycles at the given interval until ctx is cancelled.
// The first cycle runs immediately.
func (r *Refresher) RunLoop(ctx context.Context, interval time.Duration) {
	r.logger.Info().Dur("interval", interval).Msg("Starting APY refresh loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("APY refresh loop stopped due to context cancellation")
			return
		case <-ticker.C:
			r.RunCycle(ctx)
		}
	}
}

// RunCycle refreshes every registered token once. The cycle ID ties the logs
// and persisted snapshots of one pass together.
func (r *Refresher) RunCycle(ctx context.Context) {
	cycleStart := time.Now()
	cycleID := uuid.New()
	cycleLogger := r.logger.With().Str("cycle_id", cycleID.String()).Logger()

	cycleLogger.Info().Msg("--- Starting APY refresh cycle ---")

	if state.DB != nil {
		if cycle, err := state.IncrementCycle(); err != nil {
			cycleLogger.Warn().Err(err).Msg("Failed to advance refresh counter")
		} else {
			cycleLogger = cycleLogger.With().Int("cycle", cycle).Logger()
		}
	}

	var refreshed, withErrors int
	for _, chainID := range r.registry.Chains() {
		for _, cfg := range r.registry.ByChain(chainID) {
			result := r.refreshToken(ctx, cfg)
			refreshed++
			if HasBreakdownError(result) {
				withErrors++
			}

			if state.DB != nil {
				if err := state.SaveAPYSnapshot(cycleID, chainID, cfg.Symbol, result); err != nil {
					cycleLogger.Warn().Err(err).Str("token", cfg.Address.Hex()).Msg("Failed to persist APY snapshot")
				}
			}
		}
	}

	cycleLogger.Info().
		Int("tokens", refreshed).
		Int("withSourceErrors", withErrors).
		Str("duration", time.Since(cycleStart).String()).
		Msg("--- APY refresh cycle completed ---")
}

// refreshToken recomputes one token's APY and replaces the cached value.
func (r *Refresher) refreshToken(ctx context.Context, cfg types.LeverageTokenConfig) types.AggregatedAPY {
	result := r.aggregator.ForToken(ctx, cfg)

	if r.store != nil {
		key := query.APYKey(cfg.ChainID, cfg.Address)
		r.store.Invalidate(ctx, key)
		// Seed the cache so reads between cycles are served without refetching.
		if _, err := r.store.Get(ctx, key, func(context.Context) (any, error) {
			return result, nil
		}, query.Options{StaleFor: r.staleFor}); err != nil {
			r.logger.Debug().Err(err).Str("token", cfg.Address.Hex()).Msg("Failed to seed APY cache")
		}
	}

	return result
}
