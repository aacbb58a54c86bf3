package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cadenzahq/cadenza/internal/engine"
	"github.com/cadenzahq/cadenza/internal/util"
	"github.com/cadenzahq/cadenza/pkg/cadenza/core"
	"github.com/cadenzahq/cadenza/pkg/cadenza/models"
)

// EventsController is the HTTP face of the trigger entry point.
type EventsController struct {
	Manager *engine.Manager
}

func NewEventsController(manager *engine.Manager) *EventsController {
	return &EventsController{Manager: manager}
}

func (c *EventsController) handleNotifyEvent(w http.ResponseWriter, r *http.Request) {
	event, err := util.DecodeJSONBody[models.EventNotification](r)
	if err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if event.AutomationID == "" || event.RecipientID == "" {
		http.Error(w, "automationId and recipientId are required", http.StatusBadRequest)
		return
	}

	resp, err := c.Manager.NotifyEvent(r.Context(), event)
	if err != nil {
		if errors.Is(err, engine.ErrAutomationNotFound) {
			http.Error(w, "automation not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, core.ErrRecipientNotFound) {
			http.Error(w, "recipient not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to process event", "automation_id", event.AutomationID,
			"recipient_id", event.RecipientID, "error", err)
		http.Error(w, "failed to process event", http.StatusInternalServerError)
		return
	}

	status := http.StatusCreated
	if resp.Skipped {
		status = http.StatusOK
	}
	util.WriteJSONResponse(w, status, resp)
}
