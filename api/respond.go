package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/rtclab/traineetracker/internal/ledger"
	"github.com/rtclab/traineetracker/internal/repository/sqlite"
)

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the error taxonomy onto status codes: authorization 403,
// validation 400, not-found 404, integrity and uniqueness conflicts 409,
// anything else 500 with the detail kept out of the response body.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotAuthorized):
		writeJSON(w, errorResponse{Error: err.Error()}, http.StatusForbidden)
	case errors.Is(err, ledger.ErrValidation):
		writeJSON(w, errorResponse{Error: err.Error()}, http.StatusBadRequest)
	case errors.Is(err, ledger.ErrNotFound):
		writeJSON(w, errorResponse{Error: err.Error()}, http.StatusNotFound)
	case errors.Is(err, ledger.ErrIntegrity):
		writeJSON(w, errorResponse{Error: err.Error()}, http.StatusConflict)
	case errors.Is(err, sqlite.ErrDuplicate):
		writeJSON(w, errorResponse{Error: err.Error()}, http.StatusConflict)
	default:
		logger.Error("internal error", slog.Any("err", err))
		writeJSON(w, errorResponse{Error: "internal server error"}, http.StatusInternalServerError)
	}
}
