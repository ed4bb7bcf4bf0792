package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fintrackhq/fintrack/internal/repository"
	"github.com/fintrackhq/fintrack/internal/validation"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondServiceError maps domain errors onto transport status codes.
// Anything unrecognized is a server fault: logged in full, reported
// without detail.
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	var fieldErr *validation.FieldError
	if errors.As(err, &fieldErr) {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: fieldErr.Error(), Field: fieldErr.Field})
		return
	}

	if errors.Is(err, repository.ErrGoalNotFound) {
		respondError(w, http.StatusNotFound, "Goal not found")
		return
	}

	slog.Error(fallback, "error", err)
	respondError(w, http.StatusInternalServerError, fallback)
}

// decodeJSON reads a request body into v. Bodies are capped at 1MB.
func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(v)
}
