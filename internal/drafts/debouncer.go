package drafts

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// DefaultDelay is the idle time before a scheduled document is written
const DefaultDelay = 10 * time.Second

// writeTimeout bounds a write started by the timer
const writeTimeout = 5 * time.Second

// Debouncer writes the last document scheduled within an idle window.
// Each Schedule restarts the window; when it elapses without another
// Schedule the pending document is serialized and written once.
type Debouncer[T any] struct {
	store      Store
	key        string
	delay      time.Duration
	defaultDoc T
	logger     zerolog.Logger

	mu         sync.Mutex
	pending    *T
	timer      *time.Timer
	generation uint64

	// writeMu orders writes the same way mu orders the decisions to write
	writeMu sync.Mutex

	failures atomic.Uint64

	// onIdle runs without locks after a write leaves nothing pending
	onIdle func()
}

// New creates a debouncer persisting documents under key.
// A non-positive delay uses DefaultDelay.
func New[T any](store Store, key string, delay time.Duration, defaultDoc T, logger zerolog.Logger) *Debouncer[T] {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer[T]{
		store:      store,
		key:        key,
		delay:      delay,
		defaultDoc: defaultDoc,
		logger:     logger.With().Str("component", "drafts").Str("key", key).Logger(),
	}
}

// Key returns the storage key
func (d *Debouncer[T]) Key() string {
	return d.key
}

// Schedule replaces the pending document and restarts the idle timer
func (d *Debouncer[T]) Schedule(doc T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = &doc
	d.generation++
	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.generation
	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(gen)
	})
}

// Pending returns the document waiting to be written, if any
func (d *Debouncer[T]) Pending() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		var zero T
		return zero, false
	}
	return *d.pending, true
}

// CancelAndClear drops any pending document and writes the default
// document in its place
func (d *Debouncer[T]) CancelAndClear(ctx context.Context) error {
	d.mu.Lock()
	d.cancelLocked()
	d.writeMu.Lock()
	d.mu.Unlock()

	err := d.write(ctx, d.defaultDoc)
	d.writeMu.Unlock()
	d.idle()
	return err
}

// Flush writes the pending document now. It does nothing when no
// document is pending.
func (d *Debouncer[T]) Flush(ctx context.Context) error {
	d.mu.Lock()
	if d.pending == nil {
		d.mu.Unlock()
		return nil
	}
	doc := *d.pending
	d.cancelLocked()
	d.writeMu.Lock()
	d.mu.Unlock()

	err := d.write(ctx, doc)
	d.writeMu.Unlock()
	d.idle()
	return err
}

// stop drops any pending document without writing
func (d *Debouncer[T]) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

// Load returns the stored document, or the default when none was stored
func (d *Debouncer[T]) Load(ctx context.Context) (T, error) {
	doc, found, err := d.read(ctx)
	if err != nil || !found {
		return d.defaultDoc, err
	}
	return doc, nil
}

// Failures returns how many writes failed
func (d *Debouncer[T]) Failures() uint64 {
	return d.failures.Load()
}

func (d *Debouncer[T]) read(ctx context.Context) (T, bool, error) {
	return readDocument[T](ctx, d.store, d.key)
}

// readDocument reads and decodes the document stored under key
func readDocument[T any](ctx context.Context, store Store, key string) (T, bool, error) {
	var doc T
	raw, found, err := store.Read(ctx, key)
	if err != nil {
		return doc, false, fmt.Errorf("failed to read draft %s: %w", key, err)
	}
	if !found {
		return doc, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return doc, false, fmt.Errorf("failed to decode draft %s: %w", key, err)
	}
	return doc, true, nil
}

// idle reports a settled write to the owner, if any
func (d *Debouncer[T]) idle() {
	if d.onIdle != nil {
		d.onIdle()
	}
}

// fire runs on the timer goroutine
func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.generation || d.pending == nil {
		d.mu.Unlock()
		return
	}
	doc := *d.pending
	d.pending = nil
	d.timer = nil
	d.writeMu.Lock()
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	_ = d.write(ctx, doc)
	cancel()
	d.writeMu.Unlock()
	d.idle()
}

// cancelLocked stops the timer and forgets the pending document; d.mu must be held
func (d *Debouncer[T]) cancelLocked() {
	d.generation++
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// write serializes and stores doc; d.writeMu must be held
func (d *Debouncer[T]) write(ctx context.Context, doc T) error {
	data, err := json.Marshal(doc)
	if err == nil {
		err = d.store.Write(ctx, d.key, string(data))
	}
	if err != nil {
		werr := &PersistenceWriteError{Key: d.key, Err: err}
		d.failures.Add(1)
		d.logger.Warn().Err(werr).Msg("draft write dropped")
		return werr
	}

	d.logger.Debug().Int("bytes", len(data)).Msg("draft written")
	return nil
}
