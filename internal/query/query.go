/*

This file contains the keyed query store backing planners, the APY refresher
and the web layer. It memoizes async fetches with a staleness window,
collapses concurrent fetches for the same key into one flight, and discards
superseded results by generation so a slow fetch never overwrites a newer
one. Invalidation actively refetches rather than just dropping the entry.

*/

package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/nereus-fi/levengine/internal/logger"
)

// ErrStoreClosed indicates the store has been shut down.
var ErrStoreClosed = errors.New("query store is closed")

// Key identifies one cached query. Keys embed every input that affects the
// result, so a changed input is a different key.
type Key string

// TokenStateKey caches a leverage token's on-chain state.
func TokenStateKey(chainID uint64, token common.Address) Key {
	return Key(fmt.Sprintf("token-state:%d:%s", chainID, token.Hex()))
}

// CollateralKey caches a collateral asset's market data.
func CollateralKey(chainID uint64, asset common.Address) Key {
	return Key(fmt.Sprintf("collateral:%d:%s", chainID, asset.Hex()))
}

// ListingKey caches the token listing for a chain.
func ListingKey(chainID uint64) Key {
	return Key(fmt.Sprintf("listing:%d", chainID))
}

// ProtocolTVLKey caches the protocol-wide TVL figure.
func ProtocolTVLKey(chainID uint64) Key {
	return Key(fmt.Sprintf("protocol-tvl:%d", chainID))
}

// UserPositionsKey caches one user's open positions.
func UserPositionsKey(chainID uint64, user common.Address) Key {
	return Key(fmt.Sprintf("user-positions:%d:%s", chainID, user.Hex()))
}

// APYKey caches one token's aggregated yield breakdown.
func APYKey(chainID uint64, token common.Address) Key {
	return Key(fmt.Sprintf("apy:%d:%s", chainID, token.Hex()))
}

// Fetcher computes a fresh value for a key.
type Fetcher func(ctx context.Context) (any, error)

// Options tunes one query's caching behavior.
type Options struct {
	// StaleFor is how long a cached value is served without refetching.
	// Zero means always refetch.
	StaleFor time.Duration
}

type entry struct {
	value     any
	fetchedAt time.Time
}

type flight struct {
	done  chan struct{}
	value any
	err   error
}

// Store is the shared query cache. Safe for concurrent use.
type Store struct {
	cache *ristretto.Cache

	mu       sync.Mutex
	closed   bool
	inflight map[Key]*flight
	gens     map[Key]uint64
	fetchers map[Key]Fetcher
}

// NewStore creates a query store with a bounded in-memory cache.
func NewStore() (*Store, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 24,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}
	return &Store{
		cache:    cache,
		inflight: make(map[Key]*flight),
		gens:     make(map[Key]uint64),
		fetchers: make(map[Key]Fetcher),
	}, nil
}

// Get returns the cached value for key if it is fresher than opts.StaleFor,
// otherwise runs fetch. Concurrent callers for the same key share one fetch.
// A fetch that completes after the key was invalidated is discarded and the
// newer value wins.
func (s *Store) Get(ctx context.Context, key Key, fetch Fetcher, opts Options) (any, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}

	// Remember the fetcher so Invalidate can actively refetch.
	s.fetchers[key] = fetch

	if cached, ok := s.cache.Get(string(key)); ok {
		if ent, ok := cached.(entry); ok && opts.StaleFor > 0 && time.Since(ent.fetchedAt) < opts.StaleFor {
			s.mu.Unlock()
			return ent.value, nil
		}
	}

	if inflight, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		select {
		case <-inflight.done:
			return inflight.value, inflight.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	current := &flight{done: make(chan struct{})}
	s.inflight[key] = current
	generation := s.gens[key]
	s.mu.Unlock()

	value, err := fetch(ctx)

	s.mu.Lock()
	if s.inflight[key] == current {
		delete(s.inflight, key)
	}
	// Store only if the key was not invalidated while fetching.
	if err == nil && s.gens[key] == generation && !s.closed {
		s.cache.Set(string(key), entry{value: value, fetchedAt: time.Now()}, 1)
	}
	s.mu.Unlock()

	current.value = value
	current.err = err
	close(current.done)
	return value, err
}

// Peek returns the cached value without fetching, regardless of staleness.
func (s *Store) Peek(key Key) (any, bool) {
	cached, ok := s.cache.Get(string(key))
	if !ok {
		return nil, false
	}
	ent, ok := cached.(entry)
	if !ok {
		return nil, false
	}
	return ent.value, true
}

// Invalidate drops the given keys and actively refetches each one that has a
// known fetcher. Fetch failures during refetch leave the key empty; the next
// Get will retry.
func (s *Store) Invalidate(ctx context.Context, keys ...Key) {
	queryLogger := logger.GetForComponent("query_store")

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	refetch := make(map[Key]Fetcher, len(keys))
	for _, key := range keys {
		s.gens[key]++
		s.cache.Del(string(key))
		if fetch, ok := s.fetchers[key]; ok {
			refetch[key] = fetch
		}
	}
	s.mu.Unlock()

	for key, fetch := range refetch {
		if _, err := s.Get(ctx, key, fetch, Options{}); err != nil {
			queryLogger.Debug().Err(err).Str("key", string(key)).Msg("Refetch after invalidation failed")
		}
	}
}

// Close releases the underlying cache. Subsequent Gets fail.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cache.Close()
}
