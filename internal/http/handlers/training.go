package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rafamhanel/web-app-agenda/internal/apperrors"
	"github.com/rafamhanel/web-app-agenda/internal/assistant"
	"github.com/rafamhanel/web-app-agenda/internal/users"
	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

// UserGetter confirms the professional exists.
type UserGetter interface {
	Get(ctx context.Context, id string) (*users.User, error)
}

type TrainingHandler struct {
	users  UserGetter
	store  assistant.ExampleStore
	logger *logging.Logger
}

func NewTrainingHandler(directory UserGetter, store assistant.ExampleStore, logger *logging.Logger) *TrainingHandler {
	if directory == nil || store == nil {
		panic("handlers: users and example store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TrainingHandler{users: directory, store: store, logger: logger}
}

type trainingRequest struct {
	Examples []assistant.TrainingExample `json:"examples"`
}

// Add handles POST /users/{userID}/training-examples. The body is either
// {"examples": [...]} or a bare array of {message, response}.
func (h *TrainingHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if _, err := h.users.Get(r.Context(), userID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	var raw json.RawMessage
	if err := decodeJSON(r, &raw); err != nil {
		writeError(w, h.logger, err)
		return
	}
	examples, err := parseExamples(raw)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := assistant.ValidateExamples(examples); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.store.Add(r.Context(), userID, examples); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("training examples stored", "user_id", userID, "count", len(examples))
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "stored": len(examples)})
}

func parseExamples(raw json.RawMessage) ([]assistant.TrainingExample, error) {
	trimmed := bytes.TrimSpace(raw)
	var examples []assistant.TrainingExample
	var err error
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &examples)
	} else {
		var req trainingRequest
		err = json.Unmarshal(trimmed, &req)
		examples = req.Examples
	}
	if err != nil {
		verr := apperrors.NewValidationError()
		verr.Add("examples", "must be a list of {message, response}")
		return nil, verr
	}
	return examples, nil
}
