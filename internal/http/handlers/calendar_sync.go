package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

// Syncer imports a professional's calendar into the ledger.
type Syncer interface {
	Sync(ctx context.Context, userID string) (int, error)
}

type CalendarSyncHandler struct {
	syncer Syncer
	logger *logging.Logger
}

func NewCalendarSyncHandler(syncer Syncer, logger *logging.Logger) *CalendarSyncHandler {
	if syncer == nil {
		panic("handlers: syncer required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CalendarSyncHandler{syncer: syncer, logger: logger}
}

// Sync handles POST /users/{userID}/calendar/sync.
func (h *CalendarSyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	n, err := h.syncer.Sync(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "synced": n})
}
