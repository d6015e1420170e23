// Package drafts persists in-progress user documents with a debounce.
//
// Documents are serialized as JSON strings into a Store. A Debouncer
// coalesces rapid edits so only the last document of a burst is written;
// a Manager keeps one Debouncer per draft ID.
package drafts

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDraftNotFound is returned when nothing was ever saved for a draft
	ErrDraftNotFound = errors.New("draft not found")
	// ErrInvalidDraftID is returned for an empty draft ID
	ErrInvalidDraftID = errors.New("invalid draft id")
)

// Store is a string key/value storage surface
type Store interface {
	// Read returns the value for key; found is false when the key is absent
	Read(ctx context.Context, key string) (value string, found bool, err error)
	Write(ctx context.Context, key, value string) error
}

// PersistenceWriteError reports a failed write. It is logged and dropped;
// the in-memory document is unaffected.
type PersistenceWriteError struct {
	Key string
	Err error
}

// Error implements the error interface
func (e *PersistenceWriteError) Error() string {
	return fmt.Sprintf("persist draft %s: %v", e.Key, e.Err)
}

// Unwrap returns the underlying cause
func (e *PersistenceWriteError) Unwrap() error {
	return e.Err
}

// MemoryStore keeps values in a map
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Read implements Store
func (s *MemoryStore) Read(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Write implements Store
func (s *MemoryStore) Write(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}
