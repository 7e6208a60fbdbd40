package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/abhisek/sous/internal/progress"
	"github.com/abhisek/sous/internal/skills"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("encode response", slog.Any("err", err))
	}
}

// writeError maps engine errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var (
		nf *progress.NotFoundError
		iv *progress.InvariantViolation
		pe *progress.PersistenceError
	)
	switch {
	case errors.As(err, &nf):
		writeJSON(w, errorResponse{Error: nf.Error()}, http.StatusNotFound)
	case errors.As(err, &iv):
		writeJSON(w, errorResponse{Error: iv.Error(), Field: iv.Field}, http.StatusUnprocessableEntity)
	case errors.As(err, &pe):
		logger.Warn("persistence failure", slog.Any("err", err))
		writeJSON(w, errorResponse{Error: "storage unavailable, change was not saved"}, http.StatusServiceUnavailable)
	case errors.Is(err, skills.ErrNoRecommender):
		writeJSON(w, errorResponse{Error: err.Error()}, http.StatusServiceUnavailable)
	default:
		logger.Error("request failed", slog.Any("err", err))
		writeJSON(w, errorResponse{Error: "internal error"}, http.StatusInternalServerError)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, errorResponse{Error: "invalid request: " + err.Error()}, http.StatusBadRequest)
		return false
	}
	return true
}
