// Package resolve matches extracted mentions against the records and
// collections of one owner scope, producing the ref rows to persist.
// An unmatched mention is not an error: it becomes a dangling row that
// still renders from its raw text.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/soreine/mentis/internal/index"
	"github.com/soreine/mentis/internal/mention"
)

// RecordSource is the read-only record lookup surface the resolver needs.
type RecordSource interface {
	FindRecords(ctx context.Context, scope, kind, titleNorm string) ([]index.Record, error)
	FindRecordsByURL(ctx context.Context, scope, url string) ([]index.Record, error)
}

// CollectionSource is the read-only collection lookup surface.
type CollectionSource interface {
	FindCollection(ctx context.Context, scope, slug string) (*index.Collection, error)
}

// Resolver turns mentions into index entries for one scope at a time.
type Resolver struct {
	records     RecordSource
	collections CollectionSource
}

// New creates a Resolver over the given lookup sources.
func New(records RecordSource, collections CollectionSource) *Resolver {
	return &Resolver{records: records, collections: collections}
}

// Resolve produces one entry per mention, in order. Lookups respect ctx:
// when its deadline expires mid-resolution, the affected mentions degrade
// to dangling instead of failing the whole batch. Any other storage error
// is a hard failure.
func (r *Resolver) Resolve(ctx context.Context, scope string, mentions []mention.Mention) ([]index.Entry, error) {
	entries := make([]index.Entry, 0, len(mentions))
	for _, m := range mentions {
		e := index.Entry{Scope: scope, Kind: m.Kind, Key: m.Key, Raw: m.Raw}

		switch m.Kind {
		case mention.KindTag:
			// Tags are not records; pass through unresolved.
		case mention.KindDate:
			// The ISO date itself is the target key; dates always exist.
		case mention.KindNote:
			id, err := r.resolveNote(ctx, scope, m)
			if err != nil {
				if !timedOut(err) {
					return nil, err
				}
			} else {
				e.TargetID = id
			}
		case mention.KindCard:
			id, err := r.resolveCard(ctx, scope, m)
			if err != nil {
				if !timedOut(err) {
					return nil, err
				}
			} else {
				e.TargetID = id
			}
		case mention.KindCollection:
			id, err := r.resolveCollection(ctx, scope, m)
			if err != nil {
				if !timedOut(err) {
					return nil, err
				}
			} else {
				e.TargetID = id
			}
		default:
			return nil, fmt.Errorf("resolve: unhandled mention kind %q", m.Kind)
		}

		entries = append(entries, e)
	}
	return entries, nil
}

func (r *Resolver) resolveNote(ctx context.Context, scope string, m mention.Mention) (string, error) {
	cands, err := r.records.FindRecords(ctx, scope, index.RecordNote, m.Key)
	if err != nil {
		return "", fmt.Errorf("resolve: note lookup: %w", err)
	}
	return pickRecord(cands, m.Raw), nil
}

// resolveCard handles both forms of a card mention: quoted titles match
// bookmark titles, URL-shaped keys match bookmark URLs.
func (r *Resolver) resolveCard(ctx context.Context, scope string, m mention.Mention) (string, error) {
	var (
		cands []index.Record
		err   error
	)
	if isURLKey(m.Key) {
		cands, err = r.records.FindRecordsByURL(ctx, scope, m.Key)
	} else {
		cands, err = r.records.FindRecords(ctx, scope, index.RecordBookmark, m.Key)
	}
	if err != nil {
		return "", fmt.Errorf("resolve: card lookup: %w", err)
	}
	return pickRecord(cands, m.Raw), nil
}

func (r *Resolver) resolveCollection(ctx context.Context, scope string, m mention.Mention) (string, error) {
	c, err := r.collections.FindCollection(ctx, scope, m.Key)
	if err != nil {
		return "", fmt.Errorf("resolve: collection lookup: %w", err)
	}
	if c == nil {
		return "", nil
	}
	return c.ID, nil
}

// pickRecord implements the documented tie-break for multiple same-title
// matches: an exact case-sensitive title match wins, otherwise the most
// recently updated candidate. Zero candidates mean dangling.
func pickRecord(cands []index.Record, raw string) string {
	if len(cands) == 0 {
		return ""
	}
	want := strings.TrimSpace(raw)

	var exact []index.Record
	for _, c := range cands {
		if c.Title == want {
			exact = append(exact, c)
		}
	}
	if len(exact) > 0 {
		cands = exact
	}

	best := cands[0]
	for _, c := range cands[1:] {
		if c.UpdatedAt.After(best.UpdatedAt) {
			best = c
		}
	}
	return best.ID
}

func isURLKey(key string) bool {
	return strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://")
}

func timedOut(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
