package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"divvy/internal/core"
	"divvy/internal/ledger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= 500 {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusForError maps domain errors onto the API contract: unknown groups
// are 404, over-settlements conflict with ledger state and are 409, every
// other domain validation failure is 422.
func statusForError(err error) int {
	var over *core.OverSettlementError
	switch {
	case errors.Is(err, core.ErrGroupNotFound),
		errors.Is(err, core.ErrExpenseNotFound):
		return http.StatusNotFound
	case errors.As(err, &over):
		return http.StatusConflict
	case core.IsValidation(err),
		errors.Is(err, ledger.ErrNoParticipants):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
