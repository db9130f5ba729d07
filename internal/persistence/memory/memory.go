// Package memory is a process-local persistence.Repository. Data does not
// survive a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"kpiboard/internal/persistence"
)

type Repository struct {
	mu      sync.Mutex
	records map[string]persistence.Record
	now     func() time.Time
}

func New() *Repository {
	return &Repository{
		records: make(map[string]persistence.Record),
		now:     time.Now,
	}
}

// FindOrCreate implements persistence.Repository
func (r *Repository) FindOrCreate(_ context.Context, kind string, defaults []byte) (persistence.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[kind]; ok {
		return copyRecord(rec), nil
	}
	rec := r.insert(kind, defaults)
	rec.Created = true
	return rec, nil
}

// Save implements persistence.Repository
func (r *Repository) Save(_ context.Context, kind string, data []byte) (persistence.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[kind]
	if !ok {
		out := r.insert(kind, data)
		out.Created = true
		return out, nil
	}
	rec.Data = append([]byte(nil), data...)
	rec.Version++
	rec.UpdatedAt = r.now().UTC()
	r.records[kind] = rec
	return copyRecord(rec), nil
}

// Load implements persistence.Repository
func (r *Repository) Load(_ context.Context, kind string) (persistence.Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[kind]
	if !ok {
		return persistence.Record{}, false, nil
	}
	return copyRecord(rec), true, nil
}

// Ping implements persistence.Repository
func (r *Repository) Ping(context.Context) error { return nil }

func (r *Repository) insert(kind string, data []byte) persistence.Record {
	rec := persistence.Record{
		ID:        uuid.NewString(),
		Kind:      kind,
		Data:      append([]byte(nil), data...),
		Version:   1,
		UpdatedAt: r.now().UTC(),
	}
	r.records[kind] = rec
	return copyRecord(rec)
}

func copyRecord(rec persistence.Record) persistence.Record {
	rec.Data = append([]byte(nil), rec.Data...)
	return rec
}
