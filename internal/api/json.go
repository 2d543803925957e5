package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/codestash/internal/apperr"
)

// Error codes carried in errResponse.Code.
const (
	codeBadRequest   = "bad_request"
	codeUnauthorized = "unauthorized"
	codeNotFound     = "not_found"
	codeConflict     = "conflict"
	codeCannotRender = "cannot_display"
	codeUpstream     = "upstream_unavailable"
	codeInternal     = "internal"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	Code  string `json:"code" example:"not_found" validate:"required"`
}

func errorBody(code, msg string) errResponse {
	return errResponse{Error: msg, Code: code}
}

// writeError maps domain errors to HTTP responses. Only unexpected failures
// are logged.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(codeNotFound, "not found"))
	case errors.Is(err, apperr.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody(codeBadRequest, err.Error()))
	case errors.Is(err, apperr.ErrAlreadyExists), errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody(codeConflict, "conflict"))
	case errors.Is(err, apperr.ErrUnsupportedSymbology):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(codeCannotRender, "unsupported symbology"))
	case errors.Is(err, apperr.ErrEncoding):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(codeCannotRender, "payload cannot be encoded"))
	case errors.Is(err, apperr.ErrTransport):
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody(codeUpstream, "image service unavailable"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody(codeInternal, "internal error"))
	}
}
