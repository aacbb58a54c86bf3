package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/cadenzahq/cadenza/internal/repository"
	"github.com/cadenzahq/cadenza/internal/util"
	"github.com/cadenzahq/cadenza/pkg/cadenza/core"
	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
)

// RecipientsController holds dependencies for recipient HTTP endpoints.
type RecipientsController struct {
	Recipients *repository.RecipientRepository
}

func NewRecipientsController(recipients *repository.RecipientRepository) *RecipientsController {
	return &RecipientsController{Recipients: recipients}
}

func (c *RecipientsController) handleCreateRecipient(w http.ResponseWriter, r *http.Request) {
	rcp, err := util.DecodeJSONBody[domain.Recipient](r)
	if err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if rcp.Email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}
	if rcp.ID == "" {
		rcp.ID = uuid.NewString()
	}

	if err := c.Recipients.Save(r.Context(), &rcp); err != nil {
		slog.Error("Failed to save recipient", "error", err)
		http.Error(w, "failed to save recipient", http.StatusInternalServerError)
		return
	}
	util.WriteJSONResponse(w, http.StatusCreated, rcp)
}

func (c *RecipientsController) handleGetRecipient(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	rcp, err := c.Recipients.GetRecipient(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrRecipientNotFound) {
			http.Error(w, "recipient not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to load recipient", "recipient_id", id, "error", err)
		http.Error(w, "failed to load recipient", http.StatusInternalServerError)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, rcp)
}
