package storage

import "context"

const insertDocumentIfAbsent = `
INSERT INTO documents (id, kind, data, version, created_at, updated_at)
VALUES (?, ?, ?, 1, ?, ?)
ON CONFLICT (kind) DO NOTHING
`

type InsertDocumentParams struct {
	ID        string
	Kind      string
	Data      string
	CreatedAt int64
}

// InsertDocumentIfAbsent returns the number of inserted rows (0 or 1).
func (q *Queries) InsertDocumentIfAbsent(ctx context.Context, arg InsertDocumentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertDocumentIfAbsent,
		arg.ID,
		arg.Kind,
		arg.Data,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getDocumentByKind = `
SELECT id, kind, data, version, created_at, updated_at
FROM documents
WHERE kind = ?
`

func (q *Queries) GetDocumentByKind(ctx context.Context, kind string) (Document, error) {
	row := q.db.QueryRowContext(ctx, getDocumentByKind, kind)
	var i Document
	err := row.Scan(
		&i.ID,
		&i.Kind,
		&i.Data,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertDocument = `
INSERT INTO documents (id, kind, data, version, created_at, updated_at)
VALUES (?, ?, ?, 1, ?, ?)
ON CONFLICT (kind) DO UPDATE SET
    data = excluded.data,
    version = documents.version + 1,
    updated_at = excluded.updated_at
RETURNING id, kind, data, version, created_at, updated_at
`

type UpsertDocumentParams struct {
	ID        string
	Kind      string
	Data      string
	UpdatedAt int64
}

// UpsertDocument overwrites the row of kind. ID is only used when the row is
// inserted; an existing row keeps its id and gets its version bumped.
func (q *Queries) UpsertDocument(ctx context.Context, arg UpsertDocumentParams) (Document, error) {
	row := q.db.QueryRowContext(ctx, upsertDocument,
		arg.ID,
		arg.Kind,
		arg.Data,
		arg.UpdatedAt,
		arg.UpdatedAt,
	)
	var i Document
	err := row.Scan(
		&i.ID,
		&i.Kind,
		&i.Data,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const countDocuments = `SELECT COUNT(*) FROM documents WHERE kind = ?`

func (q *Queries) CountDocuments(ctx context.Context, kind string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countDocuments, kind)
	var count int64
	err := row.Scan(&count)
	return count, err
}
