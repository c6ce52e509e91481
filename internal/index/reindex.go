package index

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/soreine/mentis/internal/mention"
)

// Entry is one persisted ref row: a resolved (or dangling) mention owned
// by a single source record.
type Entry struct {
	SourceID string       `json:"source_id"`
	Scope    string       `json:"scope"`
	Kind     mention.Kind `json:"kind"`
	Key      string       `json:"target_key"`
	// TargetID is empty for tags, dates, and dangling mentions.
	TargetID string `json:"target_id,omitempty"`
	Raw      string `json:"raw_text"`
}

// ReindexStats reports the outcome of one reindex.
type ReindexStats struct {
	Created int `json:"created"`
	Kept    int `json:"kept"`
}

// Reindex atomically replaces every ref row owned by sourceID with the
// given set. Concurrent readers never observe a torn state: the delete
// and inserts share one transaction. Kept counts rows identical to the
// previous set, Created the rest.
func (db *DB) Reindex(ctx context.Context, sourceID string, entries []Entry) (ReindexStats, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return ReindexStats{}, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	old, err := loadEntrySet(ctx, tx, sourceID)
	if err != nil {
		return ReindexStats{}, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM refs WHERE source_id = ?`, sourceID); err != nil {
		return ReindexStats{}, fmt.Errorf("index: clear refs: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO refs (source_id, scope, kind, target_key, target_id, raw_text)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return ReindexStats{}, fmt.Errorf("index: prepare ref insert: %w", err)
	}
	defer stmt.Close()

	var stats ReindexStats
	for _, e := range entries {
		var target any
		if e.TargetID != "" {
			target = e.TargetID
		}
		if _, err := stmt.ExecContext(ctx, sourceID, e.Scope, string(e.Kind), e.Key, target, e.Raw); err != nil {
			return ReindexStats{}, fmt.Errorf("index: insert ref: %w", err)
		}
		if _, ok := old[entryFingerprint(e)]; ok {
			stats.Kept++
		} else {
			stats.Created++
		}
	}

	if err := tx.Commit(); err != nil {
		return ReindexStats{}, fmt.Errorf("index: commit reindex: %w", err)
	}
	return stats, nil
}

// PurgeSource removes every ref row owned by sourceID.
func (db *DB) PurgeSource(ctx context.Context, sourceID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM refs WHERE source_id = ?`, sourceID); err != nil {
		return fmt.Errorf("index: purge source: %w", err)
	}
	return nil
}

// OutgoingRef is an Entry enriched with a read-time missing flag.
type OutgoingRef struct {
	Entry
	// Missing is true when the row is dangling or its target has been
	// deleted since the row was written. Tags and dates never go missing.
	Missing bool `json:"missing"`
}

// OutgoingReferences returns every ref row owned by sourceID in insertion
// order. Targets are re-checked at read time so that deleting a record
// flags, but does not rewrite, rows pointing at it.
func (db *DB) OutgoingReferences(ctx context.Context, sourceID string) ([]OutgoingRef, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT e.scope, e.kind, e.target_key, COALESCE(e.target_id, ''), e.raw_text,
			CASE
				WHEN e.kind IN ('tag', 'date') THEN 0
				WHEN e.target_id IS NULL THEN 1
				WHEN e.kind = 'collection' THEN
					CASE WHEN c.id IS NULL OR c.deleted = 1 THEN 1 ELSE 0 END
				ELSE
					CASE WHEN r.id IS NULL OR r.deleted = 1 THEN 1 ELSE 0 END
			END
		FROM refs e
		LEFT JOIN records r ON r.id = e.target_id
		LEFT JOIN collections c ON c.id = e.target_id
		WHERE e.source_id = ?
		ORDER BY e.rowid
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("index: outgoing refs: %w", err)
	}
	defer rows.Close()

	var out []OutgoingRef
	for rows.Next() {
		var ref OutgoingRef
		var kind string
		if err := rows.Scan(&ref.Scope, &kind, &ref.Key, &ref.TargetID, &ref.Raw, &ref.Missing); err != nil {
			return nil, err
		}
		ref.SourceID = sourceID
		ref.Kind = mention.Kind(kind)
		out = append(out, ref)
	}
	return out, rows.Err()
}

func loadEntrySet(ctx context.Context, tx *sql.Tx, sourceID string) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT scope, kind, target_key, COALESCE(target_id, ''), raw_text
		FROM refs WHERE source_id = ?
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("index: load refs: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var e Entry
		var kind string
		if err := rows.Scan(&e.Scope, &kind, &e.Key, &e.TargetID, &e.Raw); err != nil {
			return nil, err
		}
		e.Kind = mention.Kind(kind)
		out[entryFingerprint(e)] = struct{}{}
	}
	return out, rows.Err()
}

func entryFingerprint(e Entry) string {
	return e.Scope + "\x00" + string(e.Kind) + "\x00" + e.Key + "\x00" + e.TargetID + "\x00" + e.Raw
}
