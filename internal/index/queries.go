package index

import (
	"context"
	"fmt"

	"github.com/soreine/mentis/internal/mention"
)

// Backlink is one reverse-lookup result: a source that mentions the
// queried target.
type Backlink struct {
	SourceID string       `json:"source_id"`
	Kind     mention.Kind `json:"kind"`
	Raw      string       `json:"raw_text"`
}

// BacklinksForRecord returns the sources whose refs resolved to the given
// record id. Deleted sources are excluded; a source mentioning the target
// several times backlinks once.
func (db *DB) BacklinksForRecord(ctx context.Context, recordID string) ([]Backlink, error) {
	return db.queryBacklinks(ctx, `
		SELECT e.source_id, e.kind, e.raw_text
		FROM refs e
		JOIN records s ON s.id = e.source_id
		WHERE e.target_id = ? AND s.deleted = 0
		ORDER BY e.rowid
	`, recordID)
}

// BacklinksForDate returns the sources mentioning the given ISO date.
// Dates need no resolution, so the lookup is keyed on the date string.
func (db *DB) BacklinksForDate(ctx context.Context, isoDate string) ([]Backlink, error) {
	return db.queryBacklinks(ctx, `
		SELECT e.source_id, e.kind, e.raw_text
		FROM refs e
		JOIN records s ON s.id = e.source_id
		WHERE e.kind = 'date' AND e.target_key = ? AND s.deleted = 0
		ORDER BY e.rowid
	`, isoDate)
}

// BacklinksForCollection returns the sources whose refs resolved to the
// collection with the given slug in scope. Mentions written before the
// collection existed stay dangling until their source is re-saved, so
// they do not appear here.
func (db *DB) BacklinksForCollection(ctx context.Context, scope, slug string) ([]Backlink, error) {
	c, err := db.FindCollection(ctx, scope, mention.NormalizeSlug(slug))
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}
	return db.BacklinksForRecord(ctx, c.ID)
}

func (db *DB) queryBacklinks(ctx context.Context, query string, args ...any) ([]Backlink, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var out []Backlink
	for rows.Next() {
		var b Backlink
		var kind string
		if err := rows.Scan(&b.SourceID, &kind, &b.Raw); err != nil {
			return nil, err
		}
		if _, ok := seen[b.SourceID]; ok {
			continue
		}
		seen[b.SourceID] = struct{}{}
		b.Kind = mention.Kind(kind)
		out = append(out, b)
	}
	return out, rows.Err()
}

// TagCount is one aggregated tag with its distinct-source usage count.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Tags returns every tag used by non-deleted records in scope, counting
// distinct sources rather than occurrences, ordered by count descending
// then tag ascending.
func (db *DB) Tags(ctx context.Context, scope string) ([]TagCount, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT e.target_key, COUNT(DISTINCT e.source_id) AS n
		FROM refs e
		JOIN records s ON s.id = e.source_id
		WHERE e.kind = 'tag' AND e.scope = ? AND s.deleted = 0
		GROUP BY e.target_key
		ORDER BY n DESC, e.target_key ASC
	`, scope)
	if err != nil {
		return nil, fmt.Errorf("index: tags: %w", err)
	}
	defer rows.Close()

	var out []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// RecordsByTag returns the ids of non-deleted records in scope tagged
// with the given tag.
func (db *DB) RecordsByTag(ctx context.Context, scope, tag string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT DISTINCT e.source_id
		FROM refs e
		JOIN records s ON s.id = e.source_id
		WHERE e.kind = 'tag' AND e.scope = ? AND e.target_key = ? AND s.deleted = 0
		ORDER BY e.source_id
	`, scope, mention.NormalizeTag(tag))
	if err != nil {
		return nil, fmt.Errorf("index: records by tag: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
