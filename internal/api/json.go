package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ignite/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error      string `json:"error"`
	Kind       string `json:"kind,omitempty"`
	Permission bool   `json:"permission,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps a service error onto a status code. Sync faults carry
// their kind so clients can tell "reauthorize" from "retry later".
func writeError(w http.ResponseWriter, op string, err error) {
	var verr validation.Errors
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody(verr.Error()))
		return
	case errors.Is(err, apperr.ErrEmptyContent):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	case errors.Is(err, apperr.ErrMergeInProgress):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
		return
	}

	kind := apperr.KindOf(err)
	body := errResponse{Error: err.Error(), Kind: string(kind)}
	switch {
	case kind == apperr.KindAuth, errors.Is(err, apperr.ErrOffline):
		writeJSON(w, http.StatusPreconditionFailed, body)
	case kind == apperr.KindPermission:
		body.Permission = true
		writeJSON(w, http.StatusForbidden, body)
	case kind == apperr.KindTransient:
		writeJSON(w, http.StatusBadGateway, body)
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
