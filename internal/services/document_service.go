// Package services orchestrates document reads and writes across the store
// and the change-notification publisher.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"kpiboard/internal/amqp"
	applog "kpiboard/internal/log"
	"kpiboard/internal/store"
	"kpiboard/internal/validation"
)

// Publisher announces replaced documents.
type Publisher interface {
	PublishDocumentReplaced(ctx context.Context, msg *amqp.DocumentReplacedMessage) error
}

// DocumentService reads, patches and replaces one singleton document kind.
type DocumentService[T any] struct {
	store     *store.Store[T]
	publisher Publisher
	logger    *applog.Logger
	events    *applog.StructuredLogger
	listeners []func(kind string)
}

// NewDocumentService wires a store with an optional publisher (nil disables
// notifications).
func NewDocumentService[T any](s *store.Store[T], publisher Publisher, logger *slog.Logger) *DocumentService[T] {
	l := applog.Wrap(logger, applog.ComponentDocuments).With(applog.FieldKind, s.Kind())
	return &DocumentService[T]{
		store:     s,
		publisher: publisher,
		logger:    l,
		events:    applog.NewStructuredLogger(l),
	}
}

// OnReplace registers fn to run after every successful write.
func (s *DocumentService[T]) OnReplace(fn func(kind string)) {
	s.listeners = append(s.listeners, fn)
}

func (s *DocumentService[T]) Kind() string { return s.store.Kind() }

func (s *DocumentService[T]) Durable() bool { return s.store.Durable() }

func (s *DocumentService[T]) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

// Read returns the current document, creating the default on first access.
func (s *DocumentService[T]) Read(ctx context.Context) (store.Snapshot[T], error) {
	snap, err := s.store.ReadSnapshot(ctx)
	if err != nil {
		return snap, fmt.Errorf("read %s: %w", s.Kind(), err)
	}
	return snap, nil
}

// Patch deep-merges body onto the current document, then validates and
// replaces the whole document. Line item totals follow the merged monthly
// actuals, so a patch never leaves them stale.
func (s *DocumentService[T]) Patch(ctx context.Context, body []byte) (store.Snapshot[T], error) {
	var zero store.Snapshot[T]
	current, err := s.store.ReadSnapshot(ctx)
	if err != nil {
		return zero, fmt.Errorf("read %s for patch: %w", s.Kind(), err)
	}
	raw, err := json.Marshal(current.Doc)
	if err != nil {
		return zero, fmt.Errorf("marshal current %s: %w", s.Kind(), err)
	}
	merged, err := MergePatch(raw, body, s.Kind())
	if err != nil {
		return zero, err
	}
	return s.write(ctx, merged, s.store.MergeSnapshot)
}

// Replace validates body as a whole document and overwrites the stored one.
func (s *DocumentService[T]) Replace(ctx context.Context, body []byte) (store.Snapshot[T], error) {
	return s.write(ctx, body, s.store.ReplaceSnapshot)
}

func (s *DocumentService[T]) write(ctx context.Context, body []byte, save func(context.Context, []byte) (store.Snapshot[T], error)) (store.Snapshot[T], error) {
	snap, err := save(ctx, body)
	if err != nil {
		var failure *validation.Failure
		if errors.As(err, &failure) {
			s.logger.WarnContext(ctx, "Document rejected by validation",
				applog.FieldOperation, applog.OpValidate,
				applog.FieldViolations, len(failure.Violations))
			return snap, err
		}
		return snap, fmt.Errorf("replace %s: %w", s.Kind(), err)
	}

	s.events.LogDocumentReplaced(ctx, s.Kind(), snap.ID, snap.Version, snap.Durable)
	for _, fn := range s.listeners {
		fn(s.Kind())
	}
	s.publish(ctx, snap.ID, snap.Version)
	return snap, nil
}

// publish never fails the write; the document is already stored.
func (s *DocumentService[T]) publish(ctx context.Context, id string, version int64) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not configured, skipping change notification")
		return
	}
	msg := amqp.NewDocumentReplacedMessage(s.Kind(), id, version)
	if err := s.publisher.PublishDocumentReplaced(ctx, msg); err != nil {
		s.events.LogError(ctx, "Failed to publish change notification", err, applog.ErrorTypeNetwork, applog.OpPublish,
			applog.NewFields().WithDocument(s.Kind(), id, version, s.Durable()))
	}
}
