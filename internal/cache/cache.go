// Package cache memoizes contract query results per (operation, contract, args).
//
// Concurrent requests for the same key share a single in-flight remote call.
// Results, including failures, stay cached until their key is invalidated,
// one of their dependency tokens is invalidated, they are evicted by the LRU
// bound, or they outlive the optional TTL.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"daoquery/internal/querier"
)

// Options configures a Cache
type Options struct {
	// Size is the number of resolved entries kept
	Size int
	// TTL expires resolved entries; 0 keeps them until invalidated or evicted
	TTL time.Duration
	// FetchTimeout bounds each detached remote call; 0 means no deadline
	FetchTimeout time.Duration
}

// Cache is a memoizing, coalescing read-through cache over a querier.Transport
type Cache struct {
	transport querier.Transport
	opts      Options
	logger    zerolog.Logger

	mu       sync.Mutex
	inflight map[Key]*Entry
	resolved *lru.Cache[Key, *Entry]
	tokens   map[Token]map[Key]struct{}

	listenersMu    sync.RWMutex
	listeners      map[uint64]func(Token)
	nextListenerID uint64

	stats counters

	closeChan chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a cache that fetches misses through transport
func New(transport querier.Transport, opts Options, logger zerolog.Logger) (*Cache, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if opts.Size <= 0 {
		return nil, fmt.Errorf("cache size must be positive")
	}

	c := &Cache{
		transport: transport,
		opts:      opts,
		logger:    logger.With().Str("component", "cache").Logger(),
		inflight:  make(map[Key]*Entry),
		tokens:    make(map[Token]map[Key]struct{}),
		listeners: make(map[uint64]func(Token)),
		closeChan: make(chan struct{}),
	}

	resolved, err := lru.NewWithEvict[Key, *Entry](opts.Size, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.resolved = resolved

	if opts.TTL > 0 {
		c.wg.Add(1)
		go c.cleanupLoop()
	}

	return c, nil
}

// Get returns the entry for key, starting a fetch if there is none.
// deps are registered as invalidation tokens for the entry. An existing
// entry, pending or resolved, is returned without a new remote call.
func (c *Cache) Get(ctx context.Context, key Key, deps ...Token) *Entry {
	c.mu.Lock()

	if e, ok := c.inflight[key]; ok {
		c.register(e, deps)
		c.mu.Unlock()
		c.stats.coalesced.Add(1)
		return e
	}

	if e, ok := c.resolved.Get(key); ok {
		if !e.expired(c.opts.TTL, time.Now()) {
			c.register(e, deps)
			c.mu.Unlock()
			c.stats.hits.Add(1)
			return e
		}
		c.resolved.Remove(key)
	}

	e := newEntry(key)
	c.inflight[key] = e
	c.register(e, deps)
	c.mu.Unlock()

	c.stats.misses.Add(1)
	c.logger.Debug().
		Str("operation", key.Operation).
		Str("contract", key.Contract.String()).
		Str("key", key.Hash()).
		Msg("cache miss")

	go c.fetch(context.WithoutCancel(ctx), e)

	return e
}

// Fetch is Get followed by Wait
func (c *Cache) Fetch(ctx context.Context, key Key, deps ...Token) (json.RawMessage, error) {
	return c.Get(ctx, key, deps...).Wait(ctx)
}

// Peek returns the entry for key without fetching
func (c *Cache) Peek(key Key) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.inflight[key]; ok {
		return e, true
	}
	e, ok := c.resolved.Peek(key)
	if !ok || e.expired(c.opts.TTL, time.Now()) {
		return nil, false
	}
	return e, true
}

// Invalidate drops every entry registered against token. Pending entries
// are detached: their waiters still receive the result but it is not stored,
// so the next Get issues a fresh remote call. Until the detached call
// returns, that key briefly has two remote calls in flight.
func (c *Cache) Invalidate(token Token) int {
	c.mu.Lock()
	keys := c.tokens[token]
	dropped := 0
	for key := range keys {
		if c.dropLocked(key) {
			dropped++
		}
	}
	delete(c.tokens, token)
	c.mu.Unlock()

	c.stats.invalidations.Add(1)
	c.logger.Debug().
		Str("token", string(token)).
		Int("dropped", dropped).
		Msg("invalidated token")

	c.notify(token)
	return dropped
}

// InvalidateKey drops a single entry; this is how a failed entry is retried
func (c *Cache) InvalidateKey(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropLocked(key)
}

// OnInvalidate registers fn to be called after each Invalidate.
// The returned function removes the listener.
func (c *Cache) OnInvalidate(fn func(Token)) func() {
	c.listenersMu.Lock()
	id := c.nextListenerID
	c.nextListenerID++
	c.listeners[id] = fn
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

// Len returns the number of pending plus resolved entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight) + c.resolved.Len()
}

// Stats returns the counters accumulated since the last SwapStats
func (c *Cache) Stats() Stats {
	return c.stats.snapshot()
}

// SwapStats returns the counters and resets them to zero
func (c *Cache) SwapStats() Stats {
	return c.stats.swap()
}

// Close stops the cleanup goroutine
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
	})
	c.wg.Wait()
}

// fetch performs the remote call for e and publishes the outcome
func (c *Cache) fetch(ctx context.Context, e *Entry) {
	if c.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.FetchTimeout)
		defer cancel()
	}

	key := e.key
	var value json.RawMessage
	client, err := querier.NewClient(c.transport, key.Contract)
	if err == nil {
		value, err = client.QueryRaw(ctx, key.Operation, key.RawArgs())
	} else {
		err = querier.NewRemoteQueryError(key.Contract, key.Operation, err)
	}
	if err != nil {
		c.stats.failures.Add(1)
		c.logger.Debug().
			Err(err).
			Str("key", key.Hash()).
			Msg("fetch failed")
	}

	c.mu.Lock()
	if current, ok := c.inflight[key]; ok && current == e {
		delete(c.inflight, key)
	}
	e.resolve(value, err)
	if !e.detached {
		c.resolved.Add(key, e)
	}
	c.mu.Unlock()
}

// register indexes e under each token; c.mu must be held
func (c *Cache) register(e *Entry, deps []Token) {
	for _, token := range deps {
		if _, ok := e.deps[token]; ok {
			continue
		}
		e.deps[token] = struct{}{}
		keys, ok := c.tokens[token]
		if !ok {
			keys = make(map[Key]struct{})
			c.tokens[token] = keys
		}
		keys[e.key] = struct{}{}
	}
}

// unindex removes e from the token index; c.mu must be held
func (c *Cache) unindex(e *Entry) {
	for token := range e.deps {
		keys, ok := c.tokens[token]
		if !ok {
			continue
		}
		delete(keys, e.key)
		if len(keys) == 0 {
			delete(c.tokens, token)
		}
	}
}

// dropLocked removes key from the pending set or the LRU; c.mu must be held
func (c *Cache) dropLocked(key Key) bool {
	if e, ok := c.inflight[key]; ok {
		delete(c.inflight, key)
		e.detached = true
		c.unindex(e)
		return true
	}
	return c.resolved.Remove(key)
}

// onEvict runs inside LRU operations, which only happen with c.mu held
func (c *Cache) onEvict(_ Key, e *Entry) {
	c.unindex(e)
}

// notify calls the invalidation listeners outside c.mu
func (c *Cache) notify(token Token) {
	c.listenersMu.RLock()
	fns := make([]func(Token), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(token)
	}
}

// cleanupLoop periodically removes expired entries
func (c *Cache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.TTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeChan:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

// removeExpired removes all expired entries from the LRU
func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for _, key := range c.resolved.Keys() {
		e, ok := c.resolved.Peek(key)
		if ok && e.expired(c.opts.TTL, now) {
			c.resolved.Remove(key)
		}
	}
}
