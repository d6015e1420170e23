package cache

import "sync/atomic"

// Stats is a snapshot of cache counters
type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Coalesced     uint64 `json:"coalesced"`
	Failures      uint64 `json:"failures"`
	Invalidations uint64 `json:"invalidations"`
}

type counters struct {
	hits          atomic.Uint64
	misses        atomic.Uint64
	coalesced     atomic.Uint64
	failures      atomic.Uint64
	invalidations atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Coalesced:     c.coalesced.Load(),
		Failures:      c.failures.Load(),
		Invalidations: c.invalidations.Load(),
	}
}

func (c *counters) swap() Stats {
	return Stats{
		Hits:          c.hits.Swap(0),
		Misses:        c.misses.Swap(0),
		Coalesced:     c.coalesced.Swap(0),
		Failures:      c.failures.Swap(0),
		Invalidations: c.invalidations.Swap(0),
	}
}
