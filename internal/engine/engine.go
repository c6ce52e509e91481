// Package engine orchestrates the reference index: it reacts to content
// commits and hard deletes from the owning CRUD layer and serves the
// backlink, tag, and outgoing-reference queries.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soreine/mentis/internal/extract"
	"github.com/soreine/mentis/internal/index"
	"github.com/soreine/mentis/internal/resolve"
)

// Engine wires extraction, resolution, and the index writer together.
//
// Writes for one source are logically ordered: each commit takes a
// sequence number up front, and a commit whose number is no longer the
// newest by the time it reaches the index is dropped. A slow early save
// can therefore never clobber a fast later one, regardless of which
// finishes its I/O first. Unrelated sources proceed fully in parallel.
type Engine struct {
	store    index.Store
	resolver *resolve.Resolver
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	sources map[string]*sourceState
}

type sourceState struct {
	commit   sync.Mutex // serializes index commits for one source
	latest   uint64     // newest sequence handed out (guarded by Engine.mu)
	inflight int        // guarded by Engine.mu
}

// New creates an Engine over the given store. resolveTimeout bounds the
// lookup phase of each commit; zero means no bound.
func New(store index.Store, resolveTimeout time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		resolver: resolve.New(store, store),
		timeout:  resolveTimeout,
		logger:   logger,
		sources:  make(map[string]*sourceState),
	}
}

// OnContentCommitted recomputes the ref rows for sourceID from text. It is
// meant to be called synchronously after the owning content write commits;
// a caller that aborts its write must simply not call it.
//
// Lookups that exceed the resolve timeout degrade the affected mentions to
// dangling rows. Any other storage failure aborts the whole operation and
// leaves the previous rows untouched.
func (e *Engine) OnContentCommitted(ctx context.Context, sourceID, scope, text string) (index.ReindexStats, error) {
	if sourceID == "" {
		return index.ReindexStats{}, fmt.Errorf("engine: source id is required")
	}

	st, seq := e.begin(sourceID)
	defer e.finish(sourceID, st)

	mentions := extract.Extract(text)

	rctx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	entries, err := e.resolver.Resolve(rctx, scope, mentions)
	if err != nil {
		return index.ReindexStats{}, err
	}

	st.commit.Lock()
	defer st.commit.Unlock()
	if !e.isLatest(st, seq) {
		// A newer save for this source started while we were resolving;
		// applying ours now would reintroduce stale content.
		e.logger.Debug("engine: commit superseded",
			slog.String("source_id", sourceID), slog.Uint64("seq", seq))
		return index.ReindexStats{}, nil
	}

	stats, err := e.store.Reindex(ctx, sourceID, entries)
	if err != nil {
		return index.ReindexStats{}, err
	}
	e.logger.Debug("engine: reindexed",
		slog.String("source_id", sourceID),
		slog.Int("created", stats.Created),
		slog.Int("kept", stats.Kept))
	return stats, nil
}

// OnSourceHardDeleted purges every outgoing ref row of sourceID. The purge
// participates in the same per-source ordering as commits, so an in-flight
// reindex cannot resurrect rows after the delete.
func (e *Engine) OnSourceHardDeleted(ctx context.Context, sourceID string) error {
	st, _ := e.begin(sourceID)
	defer e.finish(sourceID, st)

	st.commit.Lock()
	defer st.commit.Unlock()
	return e.store.PurgeSource(ctx, sourceID)
}

func (e *Engine) begin(sourceID string) (*sourceState, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.sources[sourceID]
	if st == nil {
		st = &sourceState{}
		e.sources[sourceID] = st
	}
	st.inflight++
	st.latest++
	return st, st.latest
}

func (e *Engine) finish(sourceID string, st *sourceState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st.inflight--
	if st.inflight == 0 {
		delete(e.sources, sourceID)
	}
}

func (e *Engine) isLatest(st *sourceState, seq uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return st.latest == seq
}
