package controllers

import (
	"log/slog"
	"net/http"

	"github.com/cadenzahq/cadenza/internal/engine"
	"github.com/cadenzahq/cadenza/internal/util"
)

// RunnersController exposes registered engine instances.
type RunnersController struct {
	Manager *engine.Manager
}

func NewRunnersController(manager *engine.Manager) *RunnersController {
	return &RunnersController{Manager: manager}
}

func (c *RunnersController) handleGetRunners(w http.ResponseWriter, r *http.Request) {
	runners, err := c.Manager.ListRunners(50)
	if err != nil {
		slog.Error("Failed to list runners", "error", err)
		http.Error(w, "failed to list runners", http.StatusInternalServerError)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, runners)
}
