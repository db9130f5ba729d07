// Package persistence defines the storage capability behind the document
// store. Each document kind is a singleton record.
package persistence

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by implementations that look up a missing record.
var ErrNotFound = errors.New("document not found")

// Record is the stored form of one singleton document.
type Record struct {
	ID        string
	Kind      string
	Data      []byte
	Version   int64
	Created   bool // the call that returned this record inserted it
	UpdatedAt time.Time
}

// Repository persists one JSON record per document kind.
type Repository interface {
	// FindOrCreate returns the record of kind, inserting defaults first if
	// none exists. Concurrent callers never produce two records.
	FindOrCreate(ctx context.Context, kind string, defaults []byte) (Record, error)
	// Save overwrites the record of kind, creating it if absent.
	Save(ctx context.Context, kind string, data []byte) (Record, error)
	// Load returns the record of kind and whether it exists.
	Load(ctx context.Context, kind string) (Record, bool, error)
	Ping(ctx context.Context) error
}
