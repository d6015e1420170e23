package upstream

import (
	"sync/atomic"
	"time"

	"daoquery/internal/config"
)

// Role represents the endpoint role
type Role string

const (
	RoleMain     Role = "main"
	RoleFallback Role = "fallback"
)

// RoleFromConfig converts config.Role to upstream.Role
func RoleFromConfig(r config.Role) Role {
	switch r {
	case config.RoleFallback:
		return RoleFallback
	default:
		return RoleMain
	}
}

// Selector picks the endpoint that serves the next query.
// Endpoints named in exclude are skipped.
type Selector interface {
	Next(exclude map[string]bool) *Endpoint
}

// Status holds request counters of an endpoint
type Status struct {
	requestCount atomic.Uint64
	failureCount atomic.Uint64
	lastFailure  atomic.Int64 // unix nano
}

// NewStatus creates a new Status
func NewStatus() *Status {
	return &Status{}
}

// IncrementRequestCount increments the request counter
func (s *Status) IncrementRequestCount() {
	s.requestCount.Add(1)
}

// SwapRequestCount returns the current request count and resets it to zero
func (s *Status) SwapRequestCount() uint64 {
	return s.requestCount.Swap(0)
}

// RecordFailure increments the failure counter and remembers when it happened
func (s *Status) RecordFailure() {
	s.failureCount.Add(1)
	s.lastFailure.Store(time.Now().UnixNano())
}

// SwapFailureCount returns the current failure count and resets it to zero
func (s *Status) SwapFailureCount() uint64 {
	return s.failureCount.Swap(0)
}

// GetLastFailureTime returns the time of the last failed request
func (s *Status) GetLastFailureTime() time.Time {
	ns := s.lastFailure.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
