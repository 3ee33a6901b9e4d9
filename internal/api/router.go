package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ignite/internal/thoughtservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *thoughtservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/thoughts", h.ListThoughts)
	r.Post("/thoughts", h.SaveThought)
	r.Get("/thoughts/unsynced", h.UnsyncedThoughts)
	r.Get("/thoughts/{id}", h.GetThought)

	r.Get("/search", h.Search)
	r.Get("/stats", h.Stats)

	r.Get("/sync", h.SyncStatus)
	r.Post("/sync", h.SyncNow)
	r.Delete("/sync/error", h.ClearSyncError)

	r.Post("/lifecycle/{event}", h.Lifecycle)
	r.Post("/session/signout", h.SignOut)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
