package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/soreine/mentis/internal/apperr"
	"github.com/soreine/mentis/internal/engine"
	"github.com/soreine/mentis/internal/index"
)

// Handler holds API route handlers.
type Handler struct {
	engine *engine.Engine
	store  index.Store
}

// NewHandler creates a new Handler.
func NewHandler(eng *engine.Engine, store index.Store) *Handler {
	return &Handler{engine: eng, store: store}
}

// UpsertRecord handles POST /records: registers or updates a source
// record in the resolution registry.
func (h *Handler) UpsertRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req UpsertRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	rec, err := h.store.UpsertRecord(r.Context(), index.Record{
		ID:      req.ID,
		Scope:   req.Scope,
		Kind:    req.Kind,
		Title:   req.Title,
		URL:     req.URL,
		Deleted: req.Deleted,
	})
	if err != nil {
		slog.Error("upsert record failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpsertCollection handles POST /collections.
func (h *Handler) UpsertCollection(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req UpsertCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	col, err := h.store.UpsertCollection(r.Context(), index.Collection{
		ID:      req.ID,
		Scope:   req.Scope,
		Slug:    req.Slug,
		Name:    req.Name,
		Deleted: req.Deleted,
	})
	if err != nil {
		slog.Error("upsert collection failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, col)
}

// CommitContent handles PUT /sources/{id}/content: the commit hook the
// CRUD layer calls after a content write lands. The record must already
// be registered; its scope bounds all resolution.
func (h *Handler) CommitContent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	id := chi.URLParam(r, "id")

	rec, err := h.store.GetRecord(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("unknown source record"))
			return
		}
		slog.Error("get record failed", slog.String("source_id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	var req CommitContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	stats, err := h.engine.OnContentCommitted(r.Context(), id, rec.Scope, req.Content)
	if err != nil {
		slog.Error("reindex failed", slog.String("source_id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, CommitContentResponse{
		SourceID: id,
		Created:  stats.Created,
		Kept:     stats.Kept,
	})
}

// DeleteSource handles DELETE /sources/{id}: hard-deletes a record and
// purges its outgoing refs. Rows in other sources that pointed at it are
// left alone and surface as missing on their next read.
func (h *Handler) DeleteSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.store.GetRecord(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("get record failed", slog.String("source_id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	if err := h.engine.OnSourceHardDeleted(r.Context(), id); err != nil {
		slog.Error("purge refs failed", slog.String("source_id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if err := h.store.HardDeleteRecord(r.Context(), id); err != nil {
		slog.Error("delete record failed", slog.String("source_id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Backlinks handles GET /backlinks?record=|date=|collection=&scope=.
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := engine.Target{
		RecordID:       q.Get("record"),
		Date:           q.Get("date"),
		CollectionSlug: q.Get("collection"),
		Scope:          q.Get("scope"),
	}
	if target.Date != "" {
		if err := validation.Validate(target.Date, validation.Date("2006-01-02")); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("date must be YYYY-MM-DD"))
			return
		}
	}

	bl, err := h.engine.Backlinks(r.Context(), target)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if bl == nil {
		bl = []index.Backlink{}
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Backlinks: bl})
}

// Tags handles GET /tags?scope=.
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("scope is required"))
		return
	}
	tags, err := h.engine.Tags(r.Context(), scope)
	if err != nil {
		slog.Error("tags failed", slog.String("scope", scope), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if tags == nil {
		tags = []index.TagCount{}
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

// RecordsByTag handles GET /tags/{tag}/records?scope=.
func (h *Handler) RecordsByTag(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("scope is required"))
		return
	}
	tag := chi.URLParam(r, "tag")
	ids, err := h.engine.RecordsByTag(r.Context(), scope, tag)
	if err != nil {
		slog.Error("records by tag failed", slog.String("tag", tag), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, RecordsByTagResponse{Records: ids})
}

// References handles GET /sources/{id}/references: a source's outgoing
// reference panel, dangling entries flagged as missing.
func (h *Handler) References(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	refs, err := h.engine.OutgoingReferences(r.Context(), id)
	if err != nil {
		slog.Error("references failed", slog.String("source_id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if refs == nil {
		refs = []index.OutgoingRef{}
	}
	writeJSON(w, http.StatusOK, ReferencesResponse{References: refs})
}
