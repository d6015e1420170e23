package upstream

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"daoquery/internal/config"
	"daoquery/internal/querier"
)

// Pool represents the endpoints of a single chain
type Pool struct {
	chainID   string
	endpoints []*Endpoint
	selector  Selector
	logger    zerolog.Logger
	mu        sync.RWMutex
}

// NewPool creates a new Pool from a chain configuration
func NewPool(chainCfg config.ChainConfig, globalCfg *config.Config, logger zerolog.Logger) *Pool {
	poolLogger := logger.With().Str("chain", chainCfg.ChainID).Logger()

	endpoints := make([]*Endpoint, 0, len(chainCfg.Endpoints))
	for _, epCfg := range chainCfg.Endpoints {
		endpoints = append(endpoints, NewEndpointFromConfig(epCfg, globalCfg, poolLogger))
	}

	return NewPoolWithEndpoints(chainCfg.ChainID, endpoints, poolLogger)
}

// NewPoolWithEndpoints creates a Pool from already constructed endpoints
func NewPoolWithEndpoints(chainID string, endpoints []*Endpoint, logger zerolog.Logger) *Pool {
	return &Pool{
		chainID:   chainID,
		endpoints: endpoints,
		logger:    logger,
	}
}

// ChainID returns the chain this pool serves
func (p *Pool) ChainID() string {
	return p.chainID
}

// SetSelector sets the endpoint selector
func (p *Pool) SetSelector(selector Selector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selector = selector
}

// GetAll returns all endpoints
func (p *Pool) GetAll() []*Endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*Endpoint, len(p.endpoints))
	copy(result, p.endpoints)
	return result
}

// GetMain returns main endpoints
func (p *Pool) GetMain() []*Endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*Endpoint, 0, len(p.endpoints))
	for _, e := range p.endpoints {
		if e.IsMain() {
			result = append(result, e)
		}
	}
	return result
}

// GetFallback returns fallback endpoints
func (p *Pool) GetFallback() []*Endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*Endpoint, 0)
	for _, e := range p.endpoints {
		if e.IsFallback() {
			result = append(result, e)
		}
	}
	return result
}

// next picks an endpoint via the selector, or the first endpoint if none is set
func (p *Pool) next() *Endpoint {
	p.mu.RLock()
	selector := p.selector
	p.mu.RUnlock()

	if selector != nil {
		return selector.Next(nil)
	}
	all := p.GetAll()
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// Call executes a smart query on one endpoint. Failures are returned as-is;
// retrying on another endpoint is left to the caller.
func (p *Pool) Call(ctx context.Context, params querier.Params, operation string, msg json.RawMessage) (json.RawMessage, error) {
	endpoint := p.next()
	if endpoint == nil {
		return nil, fmt.Errorf("no endpoint available for chain %s", p.chainID)
	}

	query, err := querier.SmartQuery(operation, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	data, err := endpoint.SmartQuery(ctx, params.ContractAddress, query)
	if err != nil {
		p.logger.Debug().
			Err(err).
			Str("endpoint", endpoint.Name()).
			Str("contract", params.ContractAddress).
			Str("operation", operation).
			Msg("smart query failed")
		return nil, err
	}

	p.logger.Debug().
		Str("endpoint", endpoint.Name()).
		Str("contract", params.ContractAddress).
		Str("operation", operation).
		Msg("smart query")

	return data, nil
}

// LogStats logs and resets the per-endpoint request counters
func (p *Pool) LogStats() {
	for _, e := range p.GetAll() {
		requests := e.Status().SwapRequestCount()
		failures := e.Status().SwapFailureCount()
		if requests == 0 && failures == 0 {
			continue
		}
		p.logger.Info().
			Str("endpoint", e.Name()).
			Uint64("requests", requests).
			Uint64("failures", failures).
			Msg("endpoint stats")
	}
}

// Close closes all endpoint connections
func (p *Pool) Close() {
	for _, e := range p.GetAll() {
		e.Close()
	}
	p.logger.Info().Msg("pool closed")
}
