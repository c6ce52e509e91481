package engine

import (
	"context"
	"fmt"

	"github.com/soreine/mentis/internal/index"
)

// Target identifies what to find backlinks for: exactly one of RecordID,
// Date, or CollectionSlug must be set. Scope is required for collection
// targets, which are addressed by slug within an owner scope.
type Target struct {
	RecordID       string
	Date           string
	CollectionSlug string
	Scope          string
}

func (t Target) validate() error {
	set := 0
	if t.RecordID != "" {
		set++
	}
	if t.Date != "" {
		set++
	}
	if t.CollectionSlug != "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("engine: exactly one of record, date, or collection must be set")
	}
	if t.CollectionSlug != "" && t.Scope == "" {
		return fmt.Errorf("engine: collection targets require a scope")
	}
	return nil
}

// Backlinks returns the sources mentioning the given target, excluding
// deleted sources and de-duplicated by source.
func (e *Engine) Backlinks(ctx context.Context, t Target) ([]index.Backlink, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	switch {
	case t.RecordID != "":
		return e.store.BacklinksForRecord(ctx, t.RecordID)
	case t.Date != "":
		return e.store.BacklinksForDate(ctx, t.Date)
	default:
		return e.store.BacklinksForCollection(ctx, t.Scope, t.CollectionSlug)
	}
}

// Tags returns the tag usage counts for a scope.
func (e *Engine) Tags(ctx context.Context, scope string) ([]index.TagCount, error) {
	return e.store.Tags(ctx, scope)
}

// RecordsByTag returns the ids of records in scope carrying the tag.
func (e *Engine) RecordsByTag(ctx context.Context, scope, tag string) ([]string, error) {
	return e.store.RecordsByTag(ctx, scope, tag)
}

// OutgoingReferences returns a source's own ref rows, dangling ones
// included, with their read-time missing flags.
func (e *Engine) OutgoingReferences(ctx context.Context, sourceID string) ([]index.OutgoingRef, error) {
	return e.store.OutgoingReferences(ctx, sourceID)
}
