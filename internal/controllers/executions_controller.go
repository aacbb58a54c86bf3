package controllers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cadenzahq/cadenza/internal/engine"
	"github.com/cadenzahq/cadenza/internal/util"
	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
	"github.com/cadenzahq/cadenza/pkg/cadenza/models"
)

// ExecutionsController holds dependencies for execution HTTP endpoints.
type ExecutionsController struct {
	Manager    *engine.Manager
	Deliveries engine.DeliveryRepo
}

func NewExecutionsController(manager *engine.Manager, deliveries engine.DeliveryRepo) *ExecutionsController {
	return &ExecutionsController{Manager: manager, Deliveries: deliveries}
}

func (c *ExecutionsController) handleGetExecutionById(w http.ResponseWriter, r *http.Request) {
	id, ok := executionID(w, r)
	if !ok {
		return
	}
	exec, err := c.Manager.GetExecution(id)
	if err != nil {
		http.Error(w, "execution not found", http.StatusNotFound)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, mapExecutionToApiExecution(exec))
}

func (c *ExecutionsController) handleSearchExecutions(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.SearchExecutionsRequest](r)
	if err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if req.Limit <= 0 || req.Limit > 500 {
		req.Limit = 100
	}

	execs, err := c.Manager.SearchExecutions(req)
	if err != nil {
		slog.Error("Failed to search executions", "error", err)
		http.Error(w, "failed to search executions", http.StatusInternalServerError)
		return
	}

	results := make([]models.ExecutionApiResponse, 0, len(*execs))
	for i := range *execs {
		results = append(results, mapExecutionToApiExecution(&(*execs)[i]))
	}
	util.WriteJSONResponse(w, http.StatusOK, results)
}

func (c *ExecutionsController) handleStopExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := executionID(w, r)
	if !ok {
		return
	}
	exec, err := c.Manager.GetExecution(id)
	if err != nil {
		http.Error(w, "execution not found", http.StatusNotFound)
		return
	}
	if exec.Status.Terminal() {
		http.Error(w, "execution already terminal", http.StatusConflict)
		return
	}
	if err := c.Manager.StopExecution(id); err != nil {
		slog.Error("Failed to stop execution", "execution_id", id, "error", err)
		http.Error(w, "failed to stop execution", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *ExecutionsController) handleGetDeliveries(w http.ResponseWriter, r *http.Request) {
	id, ok := executionID(w, r)
	if !ok {
		return
	}
	records, err := c.Deliveries.FindByExecution(id)
	if err != nil {
		slog.Error("Failed to load deliveries", "execution_id", id, "error", err)
		http.Error(w, "failed to load deliveries", http.StatusInternalServerError)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, records)
}

func executionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := r.PathValue("id")
	if idStr == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return 0, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "id is an integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func mapExecutionToApiExecution(e *domain.Execution) models.ExecutionApiResponse {
	resp := models.ExecutionApiResponse{
		ID:                e.ID,
		AutomationID:      e.AutomationID,
		AutomationVersion: e.AutomationVersion,
		RecipientID:       e.RecipientID,
		Status:            string(e.Status),
		ActionIndex:       e.ActionIndex,
		Created:           e.Created,
		Context:           e.Context,
	}
	if e.Started.Valid {
		t := e.Started.Time
		resp.Started = &t
	}
	if e.Completed.Valid {
		t := e.Completed.Time
		resp.Completed = &t
	}
	if e.NextWakeAt.Valid {
		t := e.NextWakeAt.Time
		resp.NextWakeAt = &t
	}
	if e.ErrorDetail.Valid {
		resp.ErrorDetail = e.ErrorDetail.String
	}
	return resp
}
