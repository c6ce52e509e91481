package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/soreine/mentis/internal/index"
	"github.com/soreine/mentis/internal/mention"
)

type fakeSource struct {
	records     map[string][]index.Record // keyed by kind + "\x00" + titleNorm
	byURL       map[string][]index.Record
	collections map[string]*index.Collection // keyed by slug
	err         error
}

func (f *fakeSource) FindRecords(ctx context.Context, scope, kind, titleNorm string) ([]index.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.records[kind+"\x00"+titleNorm], nil
}

func (f *fakeSource) FindRecordsByURL(ctx context.Context, scope, url string) ([]index.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.byURL[url], nil
}

func (f *fakeSource) FindCollection(ctx context.Context, scope, slug string) (*index.Collection, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.collections[slug], nil
}

func newFake() *fakeSource {
	return &fakeSource{
		records:     make(map[string][]index.Record),
		byURL:       make(map[string][]index.Record),
		collections: make(map[string]*index.Collection),
	}
}

func TestResolve_NoteMatch(t *testing.T) {
	src := newFake()
	src.records[index.RecordNote+"\x00project plan"] = []index.Record{{ID: "n1", Title: "Project Plan"}}

	r := New(src, src)
	entries, err := r.Resolve(context.Background(), "u1", []mention.Mention{
		{Kind: mention.KindNote, Raw: "Project Plan", Key: "project plan"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(entries) != 1 || entries[0].TargetID != "n1" {
		t.Errorf("entries = %+v, want resolved to n1", entries)
	}
}

func TestResolve_UnmatchedIsDanglingNotError(t *testing.T) {
	r := New(newFake(), newFake())
	entries, err := r.Resolve(context.Background(), "u1", []mention.Mention{
		{Kind: mention.KindNote, Raw: "Ghost", Key: "ghost"},
		{Kind: mention.KindCollection, Raw: "nope", Key: "nope"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for _, e := range entries {
		if e.TargetID != "" {
			t.Errorf("entry %+v should be dangling", e)
		}
	}
}

func TestResolve_ExactCaseWinsOverRecency(t *testing.T) {
	old := time.Now().Add(-time.Hour)
	src := newFake()
	src.records[index.RecordNote+"\x00plan"] = []index.Record{
		{ID: "newer", Title: "PLAN", UpdatedAt: time.Now()},
		{ID: "exact", Title: "Plan", UpdatedAt: old},
	}

	r := New(src, src)
	entries, err := r.Resolve(context.Background(), "u1", []mention.Mention{
		{Kind: mention.KindNote, Raw: "Plan", Key: "plan"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if entries[0].TargetID != "exact" {
		t.Errorf("target = %q, want exact case match to win", entries[0].TargetID)
	}
}

func TestResolve_MostRecentWithoutExactMatch(t *testing.T) {
	src := newFake()
	src.records[index.RecordNote+"\x00plan"] = []index.Record{
		{ID: "older", Title: "pLaN", UpdatedAt: time.Now().Add(-time.Hour)},
		{ID: "newer", Title: "PLAN", UpdatedAt: time.Now()},
	}

	r := New(src, src)
	entries, err := r.Resolve(context.Background(), "u1", []mention.Mention{
		{Kind: mention.KindNote, Raw: "plan", Key: "plan"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if entries[0].TargetID != "newer" {
		t.Errorf("target = %q, want most recently updated", entries[0].TargetID)
	}
}

func TestResolve_CardByURL(t *testing.T) {
	src := newFake()
	src.byURL["https://example.com"] = []index.Record{{ID: "b1", Kind: index.RecordBookmark}}

	r := New(src, src)
	entries, err := r.Resolve(context.Background(), "u1", []mention.Mention{
		{Kind: mention.KindCard, Raw: "https://example.com", Key: "https://example.com"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if entries[0].TargetID != "b1" {
		t.Errorf("target = %q, want b1", entries[0].TargetID)
	}
}

func TestResolve_DateNeedsNoLookup(t *testing.T) {
	src := newFake()
	src.err = errors.New("db down") // would fail any lookup

	r := New(src, src)
	entries, err := r.Resolve(context.Background(), "u1", []mention.Mention{
		{Kind: mention.KindDate, Raw: "2025-03-10", Key: "2025-03-10"},
		{Kind: mention.KindTag, Raw: "urgent", Key: "urgent"},
	})
	if err != nil {
		t.Fatalf("dates and tags must not touch storage: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.TargetID != "" {
			t.Errorf("entry %+v should carry no target id", e)
		}
	}
}

func TestResolve_CollectionMatch(t *testing.T) {
	src := newFake()
	src.collections["reading-list"] = &index.Collection{ID: "c1", Slug: "reading-list"}

	r := New(src, src)
	entries, err := r.Resolve(context.Background(), "u1", []mention.Mention{
		{Kind: mention.KindCollection, Raw: "reading-list", Key: "reading-list"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if entries[0].TargetID != "c1" {
		t.Errorf("target = %q, want c1", entries[0].TargetID)
	}
}

func TestResolve_TimeoutDegradesToDangling(t *testing.T) {
	src := newFake()
	src.records[index.RecordNote+"\x00plan"] = []index.Record{{ID: "n1", Title: "plan"}}

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	r := New(src, src)
	entries, err := r.Resolve(ctx, "u1", []mention.Mention{
		{Kind: mention.KindNote, Raw: "plan", Key: "plan"},
		{Kind: mention.KindTag, Raw: "keep", Key: "keep"},
	})
	if err != nil {
		t.Fatalf("timeout must not fail the batch: %v", err)
	}
	if entries[0].TargetID != "" {
		t.Errorf("timed-out lookup should dangle, got %q", entries[0].TargetID)
	}
	if len(entries) != 2 {
		t.Errorf("len = %d, want both entries kept", len(entries))
	}
}

func TestResolve_StorageErrorIsHardFailure(t *testing.T) {
	src := newFake()
	src.err = errors.New("disk io failure")

	r := New(src, src)
	_, err := r.Resolve(context.Background(), "u1", []mention.Mention{
		{Kind: mention.KindNote, Raw: "plan", Key: "plan"},
	})
	if err == nil {
		t.Fatal("storage failure should propagate")
	}
}
