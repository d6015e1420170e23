package cache

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// State is the lifecycle state of an entry
type State int

const (
	// StatePending - the remote call is in flight
	StatePending State = iota
	// StateResolved - the remote call returned a value
	StateResolved
	// StateFailed - the remote call returned an error
	StateFailed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Entry is the memoized result of one query. All callers asking for the
// same key while the fetch is in flight share one Entry.
type Entry struct {
	key  Key
	deps map[Token]struct{} // guarded by Cache.mu

	done       chan struct{}
	value      json.RawMessage
	err        error
	resolvedAt time.Time

	// detached is set when the entry was invalidated while pending;
	// its result is delivered to waiters but never stored. Guarded by Cache.mu.
	detached bool
}

func newEntry(key Key) *Entry {
	return &Entry{
		key:  key,
		deps: make(map[Token]struct{}),
		done: make(chan struct{}),
	}
}

// Key returns the entry key
func (e *Entry) Key() Key {
	return e.key
}

// Done is closed once the entry is resolved or failed
func (e *Entry) Done() <-chan struct{} {
	return e.done
}

// State returns the current state
func (e *Entry) State() State {
	select {
	case <-e.done:
		if e.err != nil {
			return StateFailed
		}
		return StateResolved
	default:
		return StatePending
	}
}

// Wait blocks until the entry resolves or ctx is done.
// Giving up on ctx does not cancel the underlying fetch.
func (e *Entry) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-e.done:
		return e.value, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the value and error without blocking.
// ok is false while the entry is pending.
func (e *Entry) Result() (value json.RawMessage, err error, ok bool) {
	select {
	case <-e.done:
		return e.value, e.err, true
	default:
		return nil, nil, false
	}
}

// ResolvedAt returns when the entry left the pending state
func (e *Entry) ResolvedAt() time.Time {
	select {
	case <-e.done:
		return e.resolvedAt
	default:
		return time.Time{}
	}
}

// resolve stores the outcome and releases waiters; called once
func (e *Entry) resolve(value json.RawMessage, err error) {
	e.value = value
	e.err = err
	e.resolvedAt = time.Now()
	close(e.done)
}

// expired reports whether a resolved entry is older than ttl
func (e *Entry) expired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	select {
	case <-e.done:
		return now.Sub(e.resolvedAt) > ttl
	default:
		return false
	}
}
