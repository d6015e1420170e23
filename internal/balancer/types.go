package balancer

import "daoquery/internal/upstream"

// Selector is the interface for selecting an endpoint; same as upstream.Selector for compatibility
type Selector = upstream.Selector

// EndpointProvider provides access to the endpoints of a chain
type EndpointProvider interface {
	// GetMain returns main endpoints
	GetMain() []*upstream.Endpoint

	// GetFallback returns fallback endpoints
	GetFallback() []*upstream.Endpoint
}
