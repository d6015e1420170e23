package drafts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// emptyDocument is written when a draft is cleared
var emptyDocument = json.RawMessage("null")

// Manager owns one debouncer per draft ID with a pending document.
// Documents are opaque JSON. A debouncer is dropped once its write settles.
type Manager struct {
	store     Store
	delay     time.Duration
	keyPrefix string
	logger    zerolog.Logger

	mu         sync.Mutex
	debouncers map[string]*Debouncer[json.RawMessage]
	// failures of debouncers already dropped
	settledFailures uint64
}

// NewManager creates a manager storing drafts under keyPrefix+id
func NewManager(store Store, delay time.Duration, keyPrefix string, logger zerolog.Logger) *Manager {
	return &Manager{
		store:      store,
		delay:      delay,
		keyPrefix:  keyPrefix,
		logger:     logger,
		debouncers: make(map[string]*Debouncer[json.RawMessage]),
	}
}

// newDebouncer creates a debouncer for id that removes itself once idle
func (m *Manager) newDebouncer(id string) *Debouncer[json.RawMessage] {
	d := New(m.store, m.keyPrefix+id, m.delay, emptyDocument, m.logger)
	d.onIdle = func() { m.release(id, d) }
	return d
}

// lookup returns the live debouncer for id, if any
func (m *Manager) lookup(id string) *Debouncer[json.RawMessage] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debouncers[id]
}

// release drops d when it is still the debouncer of id and has nothing pending
func (m *Manager) release(id string, d *Debouncer[json.RawMessage]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.debouncers[id] == d {
		if _, pending := d.Pending(); pending {
			return
		}
		delete(m.debouncers, id)
	}
	m.settledFailures += d.failures.Swap(0)
}

// Save schedules doc to be written after the idle delay
func (m *Manager) Save(id string, doc json.RawMessage) error {
	if id == "" {
		return ErrInvalidDraftID
	}
	if !json.Valid(doc) {
		return fmt.Errorf("draft %s: document is not valid JSON", id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.debouncers[id]
	if !ok {
		d = m.newDebouncer(id)
		m.debouncers[id] = d
	}
	// scheduled under m.mu so release never drops a debouncer about to hold a document
	d.Schedule(append(json.RawMessage(nil), doc...))
	return nil
}

// Load returns the latest document for id, pending or stored
func (m *Manager) Load(ctx context.Context, id string) (json.RawMessage, error) {
	if id == "" {
		return nil, ErrInvalidDraftID
	}
	if d := m.lookup(id); d != nil {
		if doc, ok := d.Pending(); ok {
			return doc, nil
		}
	}

	doc, found, err := readDocument[json.RawMessage](ctx, m.store, m.keyPrefix+id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	return doc, nil
}

// Clear cancels any pending save and resets the stored draft
func (m *Manager) Clear(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidDraftID
	}
	d := m.lookup(id)
	if d == nil {
		d = m.newDebouncer(id)
	}
	return d.CancelAndClear(ctx)
}

// Flush writes every pending draft now
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	debouncers := make([]*Debouncer[json.RawMessage], 0, len(m.debouncers))
	for _, d := range m.debouncers {
		debouncers = append(debouncers, d)
	}
	m.mu.Unlock()

	var errs []error
	for _, d := range debouncers {
		if err := d.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close flushes every pending draft
func (m *Manager) Close(ctx context.Context) error {
	return m.Flush(ctx)
}

// Active returns the number of drafts with a live debouncer
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.debouncers)
}

// Failures returns the number of failed writes across all drafts
func (m *Manager) Failures() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.settledFailures
	for _, d := range m.debouncers {
		total += d.Failures()
	}
	return total
}
