package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/soreine/mentis/internal/index"
	"github.com/soreine/mentis/internal/mention"
	"github.com/soreine/mentis/internal/testutil"
)

func testEngine(t *testing.T) (*Engine, index.Store) {
	t.Helper()
	db := testutil.TestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(db, 5*time.Second, logger), db
}

func mustCommit(t *testing.T, eng *Engine, sourceID, scope, text string) index.ReindexStats {
	t.Helper()
	stats, err := eng.OnContentCommitted(context.Background(), sourceID, scope, text)
	if err != nil {
		t.Fatalf("OnContentCommitted: %v", err)
	}
	return stats
}

func TestCommitRoundTrip(t *testing.T) {
	eng, db := testEngine(t)
	ctx := context.Background()

	plan, err := db.UpsertRecord(ctx, index.Record{Scope: "u1", Kind: index.RecordNote, Title: "Project Plan"})
	if err != nil {
		t.Fatal(err)
	}
	src, err := db.UpsertRecord(ctx, index.Record{Scope: "u1", Kind: index.RecordNote, Title: "Daily"})
	if err != nil {
		t.Fatal(err)
	}

	stats := mustCommit(t, eng, src.ID, "u1", `Meet @2025-03-10 about [[Project Plan]] #urgent`)
	if stats.Created != 3 {
		t.Errorf("created = %d, want 3", stats.Created)
	}

	refs, err := eng.OutgoingReferences(ctx, src.ID)
	if err != nil {
		t.Fatalf("OutgoingReferences: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("refs = %+v, want 3", refs)
	}
	byKind := map[mention.Kind]index.OutgoingRef{}
	for _, r := range refs {
		byKind[r.Kind] = r
	}
	if got := byKind[mention.KindNote]; got.TargetID != plan.ID || got.Missing {
		t.Errorf("note ref = %+v, want resolved to %s", got, plan.ID)
	}
	if got := byKind[mention.KindDate]; got.Key != "2025-03-10" || got.Missing {
		t.Errorf("date ref = %+v", got)
	}
	if got := byKind[mention.KindTag]; got.Key != "urgent" {
		t.Errorf("tag ref = %+v", got)
	}

	bl, err := eng.Backlinks(ctx, Target{RecordID: plan.ID})
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 1 || bl[0].SourceID != src.ID {
		t.Errorf("backlinks = %+v, want one from %s", bl, src.ID)
	}

	tags, err := eng.Tags(ctx, "u1")
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	if len(tags) != 1 || tags[0].Tag != "urgent" || tags[0].Count != 1 {
		t.Errorf("tags = %+v", tags)
	}
}

func TestCommitRemovingMentionDropsBacklink(t *testing.T) {
	eng, db := testEngine(t)
	ctx := context.Background()

	target, _ := db.UpsertRecord(ctx, index.Record{Scope: "u1", Kind: index.RecordNote, Title: "Target"})
	src, _ := db.UpsertRecord(ctx, index.Record{Scope: "u1", Kind: index.RecordNote, Title: "Source"})

	mustCommit(t, eng, src.ID, "u1", `See [[Target]] for details`)
	if bl, _ := eng.Backlinks(ctx, Target{RecordID: target.ID}); len(bl) != 1 {
		t.Fatalf("backlinks = %+v, want 1", bl)
	}

	mustCommit(t, eng, src.ID, "u1", `Nothing to see here`)
	if bl, _ := eng.Backlinks(ctx, Target{RecordID: target.ID}); len(bl) != 0 {
		t.Errorf("backlinks after edit = %+v, want none", bl)
	}
}

func TestResolutionIsWriteTimeOnly(t *testing.T) {
	eng, db := testEngine(t)
	ctx := context.Background()

	src, _ := db.UpsertRecord(ctx, index.Record{Scope: "u1", Kind: index.RecordNote, Title: "Source"})
	mustCommit(t, eng, src.ID, "u1", `Waiting on [[Future Note]]`)

	refs, _ := eng.OutgoingReferences(ctx, src.ID)
	if len(refs) != 1 || !refs[0].Missing {
		t.Fatalf("refs = %+v, want one dangling ref", refs)
	}

	// Creating the target later does not rewrite the existing row.
	future, _ := db.UpsertRecord(ctx, index.Record{Scope: "u1", Kind: index.RecordNote, Title: "Future Note"})
	if bl, _ := eng.Backlinks(ctx, Target{RecordID: future.ID}); len(bl) != 0 {
		t.Errorf("backlinks = %+v, want none before re-save", bl)
	}

	// Re-saving the source picks it up.
	mustCommit(t, eng, src.ID, "u1", `Waiting on [[Future Note]]`)
	if bl, _ := eng.Backlinks(ctx, Target{RecordID: future.ID}); len(bl) != 1 {
		t.Errorf("backlinks after re-save = %+v, want one", bl)
	}
}

func TestHardDeletePurgesOutgoingKeepsIncoming(t *testing.T) {
	eng, db := testEngine(t)
	ctx := context.Background()

	a, _ := db.UpsertRecord(ctx, index.Record{Scope: "u1", Kind: index.RecordNote, Title: "A"})
	b, _ := db.UpsertRecord(ctx, index.Record{Scope: "u1", Kind: index.RecordNote, Title: "B"})
	mustCommit(t, eng, a.ID, "u1", `Links to [[B]]`)
	mustCommit(t, eng, b.ID, "u1", `Links to [[A]]`)

	if err := eng.OnSourceHardDeleted(ctx, a.ID); err != nil {
		t.Fatalf("OnSourceHardDeleted: %v", err)
	}
	if err := db.HardDeleteRecord(ctx, a.ID); err != nil {
		t.Fatalf("HardDeleteRecord: %v", err)
	}

	if refs, _ := eng.OutgoingReferences(ctx, a.ID); len(refs) != 0 {
		t.Errorf("deleted source still has refs: %+v", refs)
	}
	refs, _ := eng.OutgoingReferences(ctx, b.ID)
	if len(refs) != 1 || !refs[0].Missing {
		t.Errorf("refs = %+v, want one ref flagged missing", refs)
	}
}

// blockingStore delays FindRecords until released, simulating a slow
// resolver lookup for the first commit of a racing pair.
type blockingStore struct {
	index.Store
	entered chan struct{}
	release chan struct{}
	armed   bool
}

func (s *blockingStore) FindRecords(ctx context.Context, scope, kind, titleNorm string) ([]index.Record, error) {
	if s.armed {
		s.armed = false
		close(s.entered)
		<-s.release
	}
	return s.Store.FindRecords(ctx, scope, kind, titleNorm)
}

func TestSlowEarlyCommitIsSuperseded(t *testing.T) {
	db := testutil.TestDB(t)
	store := &blockingStore{
		Store:   db,
		entered: make(chan struct{}),
		release: make(chan struct{}),
		armed:   true,
	}
	eng := New(store, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	src, _ := db.UpsertRecord(ctx, index.Record{Scope: "u1", Kind: index.RecordNote, Title: "Source"})

	// S1 starts first and stalls inside resolution.
	done := make(chan struct{})
	go func() {
		defer close(done)
		stats, err := eng.OnContentCommitted(ctx, src.ID, "u1", `Old draft [[X]]`)
		if err != nil {
			t.Errorf("superseded commit errored: %v", err)
		}
		if stats.Created != 0 || stats.Kept != 0 {
			t.Errorf("superseded commit reported stats %+v", stats)
		}
	}()
	<-store.entered

	// S2 completes while S1 is stalled.
	mustCommit(t, eng, src.ID, "u1", `New draft [[Y]]`)

	close(store.release)
	<-done

	refs, err := eng.OutgoingReferences(ctx, src.ID)
	if err != nil {
		t.Fatalf("OutgoingReferences: %v", err)
	}
	if len(refs) != 1 || refs[0].Key != "y" {
		t.Errorf("refs = %+v, want only Y's mention", refs)
	}
}

func TestCommitRequiresSourceID(t *testing.T) {
	eng, _ := testEngine(t)
	if _, err := eng.OnContentCommitted(context.Background(), "", "u1", "text"); err == nil {
		t.Fatal("expected error for empty source id")
	}
}

func TestBacklinkTargetValidation(t *testing.T) {
	eng, _ := testEngine(t)
	ctx := context.Background()

	cases := []Target{
		{},
		{RecordID: "a", Date: "2025-03-10"},
		{CollectionSlug: "reading"},
	}
	for _, tc := range cases {
		if _, err := eng.Backlinks(ctx, tc); err == nil {
			t.Errorf("Backlinks(%+v) succeeded, want error", tc)
		}
	}
}
