package proxy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"daoquery/internal/querier"
	"daoquery/internal/upstream"
)

// ErrUnknownChain is returned for a chain ID without a configured pool
var ErrUnknownChain = errors.New("unknown chain")

// Router routes smart queries to the endpoint pool of their chain.
// It implements querier.Transport.
type Router struct {
	pools map[string]*upstream.Pool
	mu    sync.RWMutex
}

// NewRouter creates a new Router
func NewRouter() *Router {
	return &Router{
		pools: make(map[string]*upstream.Pool),
	}
}

// AddPool adds a pool to the router
func (r *Router) AddPool(pool *upstream.Pool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools[pool.ChainID()] = pool
}

// GetPool returns the pool for the given chain
func (r *Router) GetPool(chainID string) (*upstream.Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pool, ok := r.pools[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownChain, chainID)
	}
	return pool, nil
}

// HasPool returns true if a pool exists for the given chain
func (r *Router) HasPool(chainID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.pools[chainID]
	return ok
}

// GetAllPools returns all registered pools
func (r *Router) GetAllPools() []*upstream.Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pools := make([]*upstream.Pool, 0, len(r.pools))
	for _, pool := range r.pools {
		pools = append(pools, pool)
	}
	return pools
}

// ChainIDs returns all registered chain IDs, sorted
func (r *Router) ChainIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.pools))
	for id := range r.pools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Call implements querier.Transport
func (r *Router) Call(ctx context.Context, params querier.Params, operation string, msg json.RawMessage) (json.RawMessage, error) {
	pool, err := r.GetPool(params.ChainID)
	if err != nil {
		return nil, err
	}
	return pool.Call(ctx, params, operation, msg)
}

// LogStats logs the endpoint counters of every pool
func (r *Router) LogStats() {
	for _, pool := range r.GetAllPools() {
		pool.LogStats()
	}
}

// CloseAll closes all pools
func (r *Router) CloseAll() {
	for _, pool := range r.GetAllPools() {
		pool.Close()
	}
}
