package index

import "context"

// Store defines the full set of index operations. Consumers should depend
// on this interface (or the narrower ones in internal/resolve) rather than
// the concrete *DB type to facilitate testing with fakes.
type Store interface {
	// Registry (read side is what resolution matches against).
	UpsertRecord(ctx context.Context, r Record) (Record, error)
	GetRecord(ctx context.Context, id string) (*Record, error)
	SetRecordDeleted(ctx context.Context, id string, deleted bool) error
	HardDeleteRecord(ctx context.Context, id string) error
	UpsertCollection(ctx context.Context, c Collection) (Collection, error)
	FindRecords(ctx context.Context, scope, kind, titleNorm string) ([]Record, error)
	FindRecordsByURL(ctx context.Context, scope, url string) ([]Record, error)
	FindCollection(ctx context.Context, scope, slug string) (*Collection, error)

	// Ref rows.
	Reindex(ctx context.Context, sourceID string, entries []Entry) (ReindexStats, error)
	PurgeSource(ctx context.Context, sourceID string) error
	OutgoingReferences(ctx context.Context, sourceID string) ([]OutgoingRef, error)

	// Reverse lookups and aggregation.
	BacklinksForRecord(ctx context.Context, recordID string) ([]Backlink, error)
	BacklinksForDate(ctx context.Context, isoDate string) ([]Backlink, error)
	BacklinksForCollection(ctx context.Context, scope, slug string) ([]Backlink, error)
	Tags(ctx context.Context, scope string) ([]TagCount, error)
	RecordsByTag(ctx context.Context, scope, tag string) ([]string, error)

	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
