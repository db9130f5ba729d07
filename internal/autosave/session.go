// Package autosave batches local edits to a document and writes them after a
// quiet period.
package autosave

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultDebounce is the quiet period after the last edit before saving.
const DefaultDebounce = time.Second

// ErrClosed is returned by Edit after Close.
var ErrClosed = errors.New("autosave session closed")

// SaveFunc writes doc and returns the stored form.
type SaveFunc[T any] func(ctx context.Context, doc T) (T, error)

// Session holds the local copy of one document. Edits inside the debounce
// window collapse into one write of the final state. A failed save keeps the
// local edits so the next edit or SaveNow retries them.
type Session[T any] struct {
	save    SaveFunc[T]
	delay   time.Duration
	timeout time.Duration
	logger  *slog.Logger
	onError func(error)
	onSaved func(T)

	mu     sync.Mutex
	local  T
	dirty  bool
	gen    uint64
	timer  *time.Timer
	closed bool
	last   error

	saveMu sync.Mutex
}

type Option[T any] func(*Session[T])

// WithDebounce sets the quiet period. Non-positive values keep the default.
func WithDebounce[T any](d time.Duration) Option[T] {
	return func(s *Session[T]) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithTimeout bounds each background save.
func WithTimeout[T any](d time.Duration) Option[T] {
	return func(s *Session[T]) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// OnError registers a callback for failed saves.
func OnError[T any](fn func(error)) Option[T] {
	return func(s *Session[T]) { s.onError = fn }
}

// OnSaved registers a callback receiving the stored document after each save.
func OnSaved[T any](fn func(T)) Option[T] {
	return func(s *Session[T]) { s.onSaved = fn }
}

func WithLogger[T any](l *slog.Logger) Option[T] {
	return func(s *Session[T]) {
		if l != nil {
			s.logger = l
		}
	}
}

// New starts a session from initial, the document as last loaded.
func New[T any](initial T, save SaveFunc[T], opts ...Option[T]) *Session[T] {
	s := &Session[T]{
		save:    save,
		delay:   DefaultDebounce,
		timeout: 30 * time.Second,
		logger:  slog.Default(),
		local:   initial,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Edit applies fn to the local document and (re)schedules a save. fn must
// return a new value rather than mutate shared state in its argument.
func (s *Session[T]) Edit(fn func(T) T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.local = fn(s.local)
	s.dirty = true
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.fire)
	return nil
}

// Local returns the current local document, including unsaved edits.
func (s *Session[T]) Local() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

// Pending reports whether there are edits not yet written.
func (s *Session[T]) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Err returns the error of the most recent save, nil after a success.
func (s *Session[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// SaveNow cancels any scheduled save and writes the local document once,
// whether or not it changed.
func (s *Session[T]) SaveNow(ctx context.Context) error {
	s.stopTimer()
	return s.flush(ctx, true)
}

// Close cancels the timer and writes pending edits, if any. Later edits fail
// with ErrClosed.
func (s *Session[T]) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stopTimer()
	return s.flush(ctx, false)
}

func (s *Session[T]) stopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session[T]) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	// errors are reported through OnError and Err
	_ = s.flush(ctx, false)
}

// flush writes the local document. Without force it is a no-op when nothing
// is pending, which covers a timer firing after SaveNow already wrote.
func (s *Session[T]) flush(ctx context.Context, force bool) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if !s.dirty && !force {
		s.mu.Unlock()
		return nil
	}
	snapshot, gen := s.local, s.gen
	s.mu.Unlock()

	saved, err := s.save(ctx, snapshot)

	s.mu.Lock()
	s.last = err
	if err == nil && s.gen == gen {
		s.local = saved
		s.dirty = false
	}
	onError, onSaved := s.onError, s.onSaved
	s.mu.Unlock()

	if err != nil {
		s.logger.WarnContext(ctx, "Autosave failed, keeping local edits", "error", err)
		if onError != nil {
			onError(err)
		}
		return err
	}
	if onSaved != nil {
		onSaved(saved)
	}
	return nil
}
