package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cadenzahq/cadenza/internal/engine"
	"github.com/cadenzahq/cadenza/internal/util"
	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
	"github.com/cadenzahq/cadenza/pkg/cadenza/models"
)

// AutomationsController holds dependencies for definition HTTP endpoints.
type AutomationsController struct {
	Registry *engine.DefinitionRegistry
	Manager  *engine.Manager
}

func NewAutomationsController(registry *engine.DefinitionRegistry, manager *engine.Manager) *AutomationsController {
	return &AutomationsController{Registry: registry, Manager: manager}
}

func (c *AutomationsController) handleRegisterAutomation(w http.ResponseWriter, r *http.Request) {
	def, err := util.DecodeJSONBody[domain.Automation](r)
	if err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	registered, err := c.Registry.Register(&def)
	if err != nil {
		slog.Error("Failed to register automation", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	util.WriteJSONResponse(w, http.StatusCreated, models.RegisterAutomationResponse{
		ID:      registered.ID,
		Version: registered.Version,
	})
}

func (c *AutomationsController) handleListAutomations(w http.ResponseWriter, r *http.Request) {
	defs, err := c.Registry.All()
	if err != nil {
		slog.Error("Failed to list automations", "error", err)
		http.Error(w, "failed to list automations", http.StatusInternalServerError)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, defs)
}

func (c *AutomationsController) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	def, err := c.Registry.Latest(id)
	if err != nil {
		http.Error(w, "automation not found", http.StatusNotFound)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, def)
}

func (c *AutomationsController) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	req, err := util.DecodeJSONBody[models.UpdateStatusRequest](r)
	if err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	if err := c.Registry.UpdateStatus(id, req.Status); err != nil {
		if errors.Is(err, engine.ErrAutomationNotFound) {
			http.Error(w, "automation not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to update automation status", "automation_id", id, "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *AutomationsController) handleGetStats(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	stats, err := c.Manager.Stats(id)
	if err != nil {
		if errors.Is(err, engine.ErrAutomationNotFound) {
			http.Error(w, "automation not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to load automation stats", "automation_id", id, "error", err)
		http.Error(w, "failed to load stats", http.StatusInternalServerError)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, stats)
}
