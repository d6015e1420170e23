package balancer

import (
	"sync"

	"daoquery/internal/upstream"
)

// WeightedRoundRobin implements weighted round-robin load balancing
type WeightedRoundRobin struct {
	provider      EndpointProvider
	mu            sync.Mutex
	currentIndex  int
	currentWeight int
}

// NewWeightedRoundRobin creates a new WeightedRoundRobin balancer
func NewWeightedRoundRobin(provider EndpointProvider) *WeightedRoundRobin {
	return &WeightedRoundRobin{
		provider:      provider,
		currentIndex:  -1,
		currentWeight: 0,
	}
}

// Next returns the next endpoint using weighted round-robin algorithm.
// Main endpoints are preferred; fallback endpoints are used only when
// every main endpoint is excluded.
func (wrr *WeightedRoundRobin) Next(exclude map[string]bool) *upstream.Endpoint {
	wrr.mu.Lock()
	defer wrr.mu.Unlock()

	endpoints := wrr.getAvailable(exclude)
	if len(endpoints) == 0 {
		return nil
	}

	if len(endpoints) == 1 {
		return endpoints[0]
	}

	gcd := gcdWeights(endpoints)
	maxWeight := maxWeight(endpoints)

	for {
		wrr.currentIndex = (wrr.currentIndex + 1) % len(endpoints)

		if wrr.currentIndex == 0 {
			wrr.currentWeight = wrr.currentWeight - gcd
			if wrr.currentWeight <= 0 {
				wrr.currentWeight = maxWeight
			}
		}

		e := endpoints[wrr.currentIndex]
		if e.Weight() >= wrr.currentWeight {
			return e
		}
	}
}

// getAvailable returns main endpoints if any remain, otherwise fallback
func (wrr *WeightedRoundRobin) getAvailable(exclude map[string]bool) []*upstream.Endpoint {
	main := filterExcluded(wrr.provider.GetMain(), exclude)
	if len(main) > 0 {
		return main
	}
	return filterExcluded(wrr.provider.GetFallback(), exclude)
}

// Reset resets the balancer state
func (wrr *WeightedRoundRobin) Reset() {
	wrr.mu.Lock()
	defer wrr.mu.Unlock()

	wrr.currentIndex = -1
	wrr.currentWeight = 0
}

// filterExcluded removes excluded endpoints from the list
func filterExcluded(endpoints []*upstream.Endpoint, exclude map[string]bool) []*upstream.Endpoint {
	if len(exclude) == 0 {
		return endpoints
	}

	result := make([]*upstream.Endpoint, 0, len(endpoints))
	for _, e := range endpoints {
		if !exclude[e.Name()] {
			result = append(result, e)
		}
	}
	return result
}

// gcdWeights calculates the GCD of all endpoint weights
func gcdWeights(endpoints []*upstream.Endpoint) int {
	if len(endpoints) == 0 {
		return 1
	}

	result := endpoints[0].Weight()
	for i := 1; i < len(endpoints); i++ {
		result = gcd(result, endpoints[i].Weight())
	}
	return result
}

// maxWeight returns the maximum weight among endpoints
func maxWeight(endpoints []*upstream.Endpoint) int {
	max := 0
	for _, e := range endpoints {
		if e.Weight() > max {
			max = e.Weight()
		}
	}
	return max
}

// gcd calculates the greatest common divisor
func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
