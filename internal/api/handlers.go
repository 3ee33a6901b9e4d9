package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ignite/internal/thoughtservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *thoughtservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *thoughtservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListThoughts handles GET /api/thoughts.
//
//	@Summary		List thoughts newest first
//	@Tags			thoughts
//	@Produce		json
//	@Param			limit	query		int	false	"Page size"
//	@Success		200		{object}	ThoughtListResponse
//	@Security		BearerAuth
//	@Router			/thoughts [get]
func (h *Handler) ListThoughts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.svc.List(r.Context(), limit)
	if err != nil {
		writeError(w, "list thoughts", err)
		return
	}
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, ThoughtListResponse{Thoughts: items, Stats: stats})
}

// SaveThought handles POST /api/thoughts.
//
//	@Summary		Save a thought locally and sync it in the background
//	@Tags			thoughts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SaveThoughtRequest	true	"Thought to save"
//	@Success		201		{object}	models.Thought
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/thoughts [post]
func (h *Handler) SaveThought(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req SaveThoughtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	t, err := h.svc.Save(r.Context(), req.Content)
	if err != nil {
		writeError(w, "save thought", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// UnsyncedThoughts handles GET /api/thoughts/unsynced.
func (h *Handler) UnsyncedThoughts(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Unsynced(r.Context())
	if err != nil {
		writeError(w, "unsynced thoughts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"thoughts": items})
}

// GetThought handles GET /api/thoughts/{id}.
func (h *Handler) GetThought(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("id must be an integer"))
		return
	}
	t, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "get thought", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Search handles GET /api/search.
//
//	@Summary		Search thought content
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), thoughtservice.SearchQuery{
		Query: r.URL.Query().Get("q"),
		Limit: limit,
	})
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Stats handles GET /api/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// SyncStatus handles GET /api/sync.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context())
	if err != nil {
		writeError(w, "sync status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// SyncNow handles POST /api/sync. It runs a full merge and waits for it.
//
//	@Summary		Merge with the remote file now
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	merge.Result
//	@Failure		403	{object}	errResponse	"Remote refused the credential"
//	@Failure		409	{object}	errResponse	"A merge is already running"
//	@Failure		412	{object}	errResponse	"Offline or not signed in"
//	@Failure		502	{object}	errResponse	"Remote unavailable"
//	@Security		BearerAuth
//	@Router			/sync [post]
func (h *Handler) SyncNow(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Sync(r.Context())
	if err != nil {
		writeError(w, "sync", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ClearSyncError handles DELETE /api/sync/error.
func (h *Handler) ClearSyncError(w http.ResponseWriter, _ *http.Request) {
	h.svc.ClearSyncError()
	w.WriteHeader(http.StatusNoContent)
}

// Lifecycle handles POST /api/lifecycle/{event}.
func (h *Handler) Lifecycle(w http.ResponseWriter, r *http.Request) {
	event := chi.URLParam(r, "event")
	if !h.svc.Lifecycle(event) {
		writeJSON(w, http.StatusBadRequest, errorBody("event must be online, offline or visible"))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// SignOut handles POST /api/session/signout.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SignOut(r.Context()); err != nil {
		// Local state is already cleared; the revoke call is best effort.
		writeJSON(w, http.StatusOK, map[string]any{"signed_in": false, "warning": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signed_in": false})
}
