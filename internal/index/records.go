package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soreine/mentis/internal/apperr"
	"github.com/soreine/mentis/internal/mention"
)

// Record kinds.
const (
	RecordNote     = "note"
	RecordBookmark = "bookmark"
)

// Record is a source record as seen by the engine: identity, scope, and
// the fields resolution matches against. Content itself is owned by the
// CRUD layer and never stored here.
type Record struct {
	ID        string    `json:"id"`
	Scope     string    `json:"scope"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	Deleted   bool      `json:"deleted"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Collection is a named group of records addressable by slug.
type Collection struct {
	ID      string `json:"id"`
	Scope   string `json:"scope"`
	Slug    string `json:"slug"`
	Name    string `json:"name"`
	Deleted bool   `json:"deleted"`
}

// UpsertRecord inserts or replaces a record. A missing ID is assigned a
// fresh UUID. The normalized title column is maintained here so lookups
// stay case-insensitive.
func (db *DB) UpsertRecord(ctx context.Context, r Record) (Record, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO records (id, scope, kind, title, title_norm, url, deleted, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			scope      = excluded.scope,
			kind       = excluded.kind,
			title      = excluded.title,
			title_norm = excluded.title_norm,
			url        = excluded.url,
			deleted    = excluded.deleted,
			updated_at = excluded.updated_at
	`, r.ID, r.Scope, r.Kind, r.Title, mention.NormalizeTitle(r.Title), r.URL, r.Deleted, r.UpdatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("index: upsert record: %w", err)
	}
	return r, nil
}

// GetRecord returns a record by id, including soft-deleted ones.
func (db *DB) GetRecord(ctx context.Context, id string) (*Record, error) {
	var r Record
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, scope, kind, title, url, deleted, updated_at
		FROM records WHERE id = ?
	`, id).Scan(&r.ID, &r.Scope, &r.Kind, &r.Title, &r.URL, &r.Deleted, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get record: %w", err)
	}
	return &r, nil
}

// SetRecordDeleted flips the soft-delete flag. Index rows are untouched:
// readers filter deleted sources and flag deleted targets at query time.
func (db *DB) SetRecordDeleted(ctx context.Context, id string, deleted bool) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE records SET deleted = ?, updated_at = ? WHERE id = ?`,
		deleted, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("index: set record deleted: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// HardDeleteRecord removes a record row and all its outgoing ref rows in
// one transaction. Incoming refs from other sources are left in place and
// surface as missing on their next read.
func (db *DB) HardDeleteRecord(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.ExecContext(ctx, `DELETE FROM refs WHERE source_id = ?`, id); err != nil {
		return fmt.Errorf("index: purge refs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete record: %w", err)
	}
	return tx.Commit()
}

// UpsertCollection inserts or replaces a collection, normalizing its slug.
func (db *DB) UpsertCollection(ctx context.Context, c Collection) (Collection, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Slug = mention.NormalizeSlug(c.Slug)
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO collections (id, scope, slug, name, deleted)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			scope   = excluded.scope,
			slug    = excluded.slug,
			name    = excluded.name,
			deleted = excluded.deleted
	`, c.ID, c.Scope, c.Slug, c.Name, c.Deleted)
	if err != nil {
		return Collection{}, fmt.Errorf("index: upsert collection: %w", err)
	}
	return c, nil
}

// FindRecords returns non-deleted records in scope whose normalized title
// matches, restricted to the given record kind.
func (db *DB) FindRecords(ctx context.Context, scope, kind, titleNorm string) ([]Record, error) {
	return db.queryRecords(ctx, `
		SELECT id, scope, kind, title, url, deleted, updated_at
		FROM records
		WHERE scope = ? AND kind = ? AND title_norm = ? AND deleted = 0
	`, scope, kind, titleNorm)
}

// FindRecordsByURL returns non-deleted bookmark records in scope with the
// given URL.
func (db *DB) FindRecordsByURL(ctx context.Context, scope, url string) ([]Record, error) {
	return db.queryRecords(ctx, `
		SELECT id, scope, kind, title, url, deleted, updated_at
		FROM records
		WHERE scope = ? AND kind = ? AND url = ? AND deleted = 0
	`, scope, RecordBookmark, url)
}

// FindCollection returns the non-deleted collection with the given slug in
// scope, or nil when there is none.
func (db *DB) FindCollection(ctx context.Context, scope, slug string) (*Collection, error) {
	var c Collection
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, scope, slug, name, deleted
		FROM collections
		WHERE scope = ? AND slug = ? AND deleted = 0
	`, scope, slug).Scan(&c.ID, &c.Scope, &c.Slug, &c.Name, &c.Deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: find collection: %w", err)
	}
	return &c, nil
}

func (db *DB) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Scope, &r.Kind, &r.Title, &r.URL, &r.Deleted, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
