// Package storage is the SQLite implementation of persistence.Repository.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"kpiboard/internal/persistence"
)

type SQLiteRepository struct {
	db            *sql.DB
	queries       *Queries
	schemaVersion uint
	now           func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer connection serializes transactions instead of
	// surfacing SQLITE_BUSY to callers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:            db,
		queries:       New(db),
		schemaVersion: version,
		now:           time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SchemaVersion returns the migration version applied at open.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schemaVersion
}

// FindOrCreate implements persistence.Repository. The insert and the read run
// in one transaction; the UNIQUE(kind) constraint keeps a concurrent creator in
// another process from adding a second row.
func (r *SQLiteRepository) FindOrCreate(ctx context.Context, kind string, defaults []byte) (persistence.Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.Record{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	inserted, err := q.InsertDocumentIfAbsent(ctx, InsertDocumentParams{
		ID:        uuid.NewString(),
		Kind:      kind,
		Data:      string(defaults),
		CreatedAt: r.now().UnixMilli(),
	})
	if err != nil {
		return persistence.Record{}, fmt.Errorf("insert default %s document: %w", kind, err)
	}

	doc, err := q.GetDocumentByKind(ctx, kind)
	if err != nil {
		return persistence.Record{}, fmt.Errorf("get %s document: %w", kind, err)
	}

	if err := tx.Commit(); err != nil {
		return persistence.Record{}, fmt.Errorf("commit transaction: %w", err)
	}

	rec := toRecord(doc)
	rec.Created = inserted == 1
	if rec.Created {
		slog.InfoContext(ctx, "Default document created", "kind", kind, "id", rec.ID)
	}
	return rec, nil
}

// Save implements persistence.Repository
func (r *SQLiteRepository) Save(ctx context.Context, kind string, data []byte) (persistence.Record, error) {
	doc, err := r.queries.UpsertDocument(ctx, UpsertDocumentParams{
		ID:        uuid.NewString(),
		Kind:      kind,
		Data:      string(data),
		UpdatedAt: r.now().UnixMilli(),
	})
	if err != nil {
		return persistence.Record{}, fmt.Errorf("upsert %s document: %w", kind, err)
	}

	rec := toRecord(doc)
	rec.Created = doc.Version == 1

	slog.InfoContext(ctx, "Document saved to SQLite",
		"kind", kind,
		"id", rec.ID,
		"version", rec.Version,
		"created", rec.Created,
		"bytes", len(data))

	return rec, nil
}

// Load implements persistence.Repository
func (r *SQLiteRepository) Load(ctx context.Context, kind string) (persistence.Record, bool, error) {
	doc, err := r.queries.GetDocumentByKind(ctx, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Record{}, false, nil
	}
	if err != nil {
		return persistence.Record{}, false, fmt.Errorf("get %s document: %w", kind, err)
	}
	return toRecord(doc), true, nil
}

// Ping implements persistence.Repository
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Count returns the number of rows stored for kind; it is at most one.
func (r *SQLiteRepository) Count(ctx context.Context, kind string) (int64, error) {
	n, err := r.queries.CountDocuments(ctx, kind)
	if err != nil {
		return 0, fmt.Errorf("count %s documents: %w", kind, err)
	}
	return n, nil
}

func toRecord(doc Document) persistence.Record {
	return persistence.Record{
		ID:        doc.ID,
		Kind:      doc.Kind,
		Data:      []byte(doc.Data),
		Version:   doc.Version,
		UpdatedAt: time.UnixMilli(doc.UpdatedAt).UTC(),
	}
}
