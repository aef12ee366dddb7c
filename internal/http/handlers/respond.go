// Package handlers holds the JSON endpoints served next to the webhook.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rafamhanel/web-app-agenda/internal/apperrors"
	"github.com/rafamhanel/web-app-agenda/internal/appointments"
	"github.com/rafamhanel/web-app-agenda/internal/users"
	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps domain errors to status codes: validation 400, not found
// 404, conflict 409, everything else 500.
func writeError(w http.ResponseWriter, logger *logging.Logger, err error) {
	var verr *apperrors.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request", "fields": verr.Fields})
	case errors.Is(err, users.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
	case errors.Is(err, appointments.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "appointment not found"})
	case errors.Is(err, appointments.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "time slot unavailable"})
	default:
		logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "processing failed"})
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		verr := apperrors.NewValidationError()
		verr.Add("body", "invalid JSON")
		return verr
	}
	return nil
}
