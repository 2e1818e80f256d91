package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/doctor-day-scheduling/internal/command"
	"github.com/hackgods/doctor-day-scheduling/internal/day"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason, details string) {
	writeJSON(w, status, ErrorResponse{Error: reason, Details: details})
}

// writeCommandError maps a failed command to its HTTP status.
func writeCommandError(w http.ResponseWriter, err error) {
	if de, ok := day.AsError(err); ok {
		writeError(w, de.Kind.HTTPStatus(), de.Reason, de.Message)
		return
	}
	switch {
	case errors.Is(err, command.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, "concurrency_conflict", "the day changed concurrently, please retry")
	case errors.Is(err, day.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
