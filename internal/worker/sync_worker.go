// Package worker mirrors stored documents into Google Sheets, driven by
// change notifications and a periodic full sync.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"kpiboard/internal/amqp"
	"kpiboard/internal/core"
	"kpiboard/internal/persistence"
	"kpiboard/internal/sheets"
	"kpiboard/internal/validation"
)

// RecordLoader reads the stored record of a document kind.
type RecordLoader interface {
	Load(ctx context.Context, kind string) (persistence.Record, bool, error)
}

// SyncWorker copies the budget and dashboard records into a DocumentMirror.
// A record version is mirrored at most once.
type SyncWorker struct {
	records  RecordLoader
	mirror   sheets.DocumentMirror
	calendar core.FiscalCalendar

	mu       sync.Mutex
	mirrored map[string]int64
}

func NewSyncWorker(records RecordLoader, mirror sheets.DocumentMirror, calendar core.FiscalCalendar) *SyncWorker {
	return &SyncWorker{
		records:  records,
		mirror:   mirror,
		calendar: calendar,
		mirrored: make(map[string]int64),
	}
}

// HandleDocumentReplaced processes a single change notification from AMQP.
func (w *SyncWorker) HandleDocumentReplaced(ctx context.Context, msg *amqp.DocumentReplacedMessage) error {
	slog.InfoContext(ctx, "Processing document replaced message",
		"id", msg.ID,
		"kind", msg.Kind,
		"version", msg.Version)

	if w.alreadyMirrored(msg.Kind, msg.Version) {
		slog.InfoContext(ctx, "Document version already mirrored, skipping",
			"kind", msg.Kind,
			"version", msg.Version)
		return nil
	}
	if _, err := w.syncKind(ctx, msg.Kind); err != nil {
		return fmt.Errorf("sync %s: %w", msg.Kind, err)
	}
	return nil
}

// SyncAll mirrors both documents concurrently. It is the backup path for
// missed notifications and runs at startup and on every tick.
func (w *SyncWorker) SyncAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, kind := range []string{core.KindBudget, core.KindDashboard} {
		g.Go(func() error {
			if _, err := w.syncKind(ctx, kind); err != nil {
				return fmt.Errorf("sync %s: %w", kind, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// syncKind loads, validates and mirrors one record. It reports whether a
// write to the mirror happened.
func (w *SyncWorker) syncKind(ctx context.Context, kind string) (bool, error) {
	rec, ok, err := w.records.Load(ctx, kind)
	if err != nil {
		return false, fmt.Errorf("load record: %w", err)
	}
	if !ok {
		slog.InfoContext(ctx, "No stored record to mirror", "kind", kind)
		return false, nil
	}
	if w.alreadyMirrored(kind, rec.Version) {
		return false, nil
	}

	switch kind {
	case core.KindBudget:
		doc, err := validation.Budget(rec.Data)
		if err != nil {
			return false, fmt.Errorf("validate stored budget: %w", err)
		}
		if err := w.mirror.MirrorBudget(ctx, doc, w.calendar); err != nil {
			return false, fmt.Errorf("mirror budget: %w", err)
		}
	case core.KindDashboard:
		doc, err := validation.Dashboard(rec.Data)
		if err != nil {
			return false, fmt.Errorf("validate stored dashboard: %w", err)
		}
		if err := w.mirror.MirrorDashboard(ctx, doc); err != nil {
			return false, fmt.Errorf("mirror dashboard: %w", err)
		}
	default:
		return false, fmt.Errorf("unknown document kind %q", kind)
	}

	w.markMirrored(kind, rec.Version)
	slog.InfoContext(ctx, "Successfully mirrored document",
		"kind", kind,
		"id", rec.ID,
		"version", rec.Version)
	return true, nil
}

func (w *SyncWorker) alreadyMirrored(kind string, version int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.mirrored[kind]
	return ok && v >= version
}

func (w *SyncWorker) markMirrored(kind string, version int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if version > w.mirrored[kind] {
		w.mirrored[kind] = version
	}
}
