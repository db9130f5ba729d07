// Package store serves the singleton dashboard and budget documents on top of
// a persistence.Repository, falling back to process memory when the primary
// repository fails.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"kpiboard/internal/persistence"
	"kpiboard/internal/persistence/memory"
)

// readTimeout bounds the shared read, which runs detached from any single
// caller's context.
const readTimeout = 10 * time.Second

// ErrBackendUnavailable marks primary repository failures that were served
// from the in-memory fallback.
var ErrBackendUnavailable = errors.New("document backend unavailable")

// Snapshot is a document together with the metadata of the record it was
// read from or written to.
type Snapshot[T any] struct {
	Doc     T
	ID      string
	Version int64
	Created bool
	Durable bool
}

type options struct {
	fallback persistence.Repository
	durable  bool
	logger   *slog.Logger
}

type Option func(*options)

// WithFallback sets the repository used when the primary fails. Defaults to a
// fresh memory.Repository.
func WithFallback(repo persistence.Repository) Option {
	return func(o *options) { o.fallback = repo }
}

// NonDurable marks the primary repository as process-local.
func NonDurable() Option {
	return func(o *options) { o.durable = false }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

type Store[T any] struct {
	schema     Schema[T]
	primary    persistence.Repository
	fallback   persistence.Repository
	configured bool
	durable    atomic.Bool
	group      singleflight.Group
	logger     *slog.Logger
}

func New[T any](schema Schema[T], primary persistence.Repository, opts ...Option) *Store[T] {
	o := options{durable: true, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fallback == nil {
		o.fallback = memory.New()
	}
	s := &Store[T]{
		schema:     schema,
		primary:    primary,
		fallback:   o.fallback,
		configured: o.durable,
		logger:     o.logger.With("component", "store", "kind", schema.Kind),
	}
	s.durable.Store(o.durable)
	return s
}

// Kind returns the document kind served by the store.
func (s *Store[T]) Kind() string { return s.schema.Kind }

// Durable reports whether the last operation reached the durable repository.
// It is advisory only.
func (s *Store[T]) Durable() bool { return s.durable.Load() }

// Ping checks the primary repository.
func (s *Store[T]) Ping(ctx context.Context) error { return s.primary.Ping(ctx) }

// Read returns the current document, creating it from the default on first
// access. Concurrent first reads share one repository call.
func (s *Store[T]) Read(ctx context.Context) (T, error) {
	snap, err := s.ReadSnapshot(ctx)
	return snap.Doc, err
}

func (s *Store[T]) ReadSnapshot(ctx context.Context) (Snapshot[T], error) {
	ch := s.group.DoChan("read", func() (interface{}, error) {
		// Callers joining this flight must not inherit the first caller's
		// cancellation.
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), readTimeout)
		defer cancel()

		defaults, err := json.Marshal(s.schema.Default())
		if err != nil {
			return nil, fmt.Errorf("marshal default %s document: %w", s.schema.Kind, err)
		}
		rec, durable, err := s.run(readCtx, "find_or_create", func(repo persistence.Repository) (persistence.Record, error) {
			return repo.FindOrCreate(readCtx, s.schema.Kind, defaults)
		})
		if err != nil {
			return nil, err
		}
		return s.decode(rec, durable)
	})

	var zero Snapshot[T]
	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("read %s document: %w", s.schema.Kind, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(Snapshot[T]), nil
	}
}

// Replace validates candidate and overwrites the whole document. A validation
// failure is returned untouched and nothing is written.
func (s *Store[T]) Replace(ctx context.Context, candidate []byte) (T, error) {
	snap, err := s.ReplaceSnapshot(ctx, candidate)
	return snap.Doc, err
}

func (s *Store[T]) ReplaceSnapshot(ctx context.Context, candidate []byte) (Snapshot[T], error) {
	return s.write(ctx, candidate, false)
}

// MergeSnapshot is ReplaceSnapshot for a document produced by merging a
// partial update onto the stored one. Derived fields are recomputed through
// the schema's Reconcile before saving.
func (s *Store[T]) MergeSnapshot(ctx context.Context, merged []byte) (Snapshot[T], error) {
	return s.write(ctx, merged, true)
}

func (s *Store[T]) write(ctx context.Context, candidate []byte, reconcile bool) (Snapshot[T], error) {
	var zero Snapshot[T]
	doc, err := s.schema.Decode(candidate)
	if err != nil {
		return zero, err
	}
	if reconcile && s.schema.Reconcile != nil {
		doc = s.schema.Reconcile(doc)
	}
	canonical, err := json.Marshal(doc)
	if err != nil {
		return zero, fmt.Errorf("marshal %s document: %w", s.schema.Kind, err)
	}

	rec, durable, err := s.run(ctx, "save", func(repo persistence.Repository) (persistence.Record, error) {
		return repo.Save(ctx, s.schema.Kind, canonical)
	})
	if err != nil {
		return zero, err
	}
	s.logger.InfoContext(ctx, "Document replaced",
		"id", rec.ID,
		"version", rec.Version,
		"created", rec.Created,
		"durable", durable)

	return Snapshot[T]{
		Doc:     doc,
		ID:      rec.ID,
		Version: rec.Version,
		Created: rec.Created,
		Durable: durable,
	}, nil
}

// run executes op against the primary repository, retrying it once against
// the fallback when the primary fails. A cancelled or expired context is the
// caller giving up, not a backend outage, and is returned as is.
func (s *Store[T]) run(ctx context.Context, name string, op func(persistence.Repository) (persistence.Record, error)) (persistence.Record, bool, error) {
	rec, err := op(s.primary)
	if err == nil {
		s.durable.Store(s.configured)
		return rec, s.configured, nil
	}
	if cerr := ctx.Err(); cerr != nil && !errors.Is(err, cerr) {
		err = fmt.Errorf("%w: %w", cerr, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return persistence.Record{}, false, fmt.Errorf("%s %s document: %w", name, s.schema.Kind, err)
	}

	s.logger.WarnContext(ctx, "Primary repository failed, using in-memory fallback",
		"operation", name,
		"error", fmt.Errorf("%w: %v", ErrBackendUnavailable, err))
	s.durable.Store(false)

	rec, ferr := op(s.fallback)
	if ferr != nil {
		return persistence.Record{}, false, fmt.Errorf("%s %s document: %w", name, s.schema.Kind, errors.Join(err, ferr))
	}
	return rec, false, nil
}

func (s *Store[T]) decode(rec persistence.Record, durable bool) (Snapshot[T], error) {
	doc, err := s.schema.Decode(rec.Data)
	if err != nil {
		return Snapshot[T]{}, fmt.Errorf("decode stored %s document %s: %w", s.schema.Kind, rec.ID, err)
	}
	return Snapshot[T]{
		Doc:     doc,
		ID:      rec.ID,
		Version: rec.Version,
		Created: rec.Created,
		Durable: durable,
	}, nil
}
