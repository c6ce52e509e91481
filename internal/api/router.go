package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/soreine/mentis/internal/engine"
	"github.com/soreine/mentis/internal/index"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(eng *engine.Engine, store index.Store, authEnabled bool, token string) chi.Router {
	h := NewHandler(eng, store)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Registry (collaborator surface).
	r.Post("/records", h.UpsertRecord)
	r.Post("/collections", h.UpsertCollection)

	// Write hooks.
	r.Put("/sources/{id}/content", h.CommitContent)
	r.Delete("/sources/{id}", h.DeleteSource)

	// Queries.
	r.Get("/backlinks", h.Backlinks)
	r.Get("/tags", h.Tags)
	r.Get("/tags/{tag}/records", h.RecordsByTag)
	r.Get("/sources/{id}/references", h.References)

	return r
}
