package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/rafamhanel/web-app-agenda/internal/apperrors"
	"github.com/rafamhanel/web-app-agenda/internal/conversation"
	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

// InboundHandler runs one conversation cycle.
type InboundHandler interface {
	HandleInbound(ctx context.Context, msg conversation.InboundMessage) (*conversation.Result, error)
}

// AutomationHandler lets the dashboard push a client message through the same
// cycle the webhook uses.
type AutomationHandler struct {
	inbound InboundHandler
	logger  *logging.Logger
}

func NewAutomationHandler(inbound InboundHandler, logger *logging.Logger) *AutomationHandler {
	if inbound == nil {
		panic("handlers: inbound handler required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AutomationHandler{inbound: inbound, logger: logger}
}

type processRequest struct {
	UserID      string `json:"userId"`
	ClientPhone string `json:"clientPhone"`
	Message     string `json:"message"`
}

type processResponse struct {
	Success            bool   `json:"success"`
	Response           string `json:"response"`
	Action             string `json:"action"`
	AppointmentCreated bool   `json:"appointmentCreated"`
	AppointmentID      string `json:"appointmentId,omitempty"`
}

// Process handles POST /automation/process.
func (h *AutomationHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	verr := apperrors.NewValidationError()
	for field, value := range map[string]string{"userId": req.UserID, "clientPhone": req.ClientPhone, "message": req.Message} {
		if strings.TrimSpace(value) == "" {
			verr.Add(field, "required")
		}
	}
	if err := verr.OrNil(); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.inbound.HandleInbound(r.Context(), conversation.InboundMessage{
		UserID:      req.UserID,
		ClientPhone: req.ClientPhone,
		Text:        req.Message,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := processResponse{Success: true, Response: res.Reply, Action: string(res.Action)}
	if res.Appointment != nil {
		out.AppointmentCreated = true
		out.AppointmentID = res.Appointment.ID
	}
	writeJSON(w, http.StatusOK, out)
}
