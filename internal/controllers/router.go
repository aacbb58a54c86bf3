package controllers

import "net/http"

// RegisterRoutes wires the HTTP routes for this controller.
func (c *AutomationsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/automations", c.handleRegisterAutomation)
	mux.HandleFunc("GET /api/automations", c.handleListAutomations)
	mux.HandleFunc("GET /api/automations/{id}", c.handleGetAutomation)
	mux.HandleFunc("POST /api/automations/{id}/status", c.handleUpdateStatus)
	mux.HandleFunc("GET /api/automations/{id}/stats", c.handleGetStats)
}

func (c *EventsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/events", c.handleNotifyEvent)
}

func (c *ExecutionsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/executions/{id}", c.handleGetExecutionById)
	mux.HandleFunc("POST /api/executions/search", c.handleSearchExecutions)
	mux.HandleFunc("POST /api/executions/{id}/stop", c.handleStopExecution)
	mux.HandleFunc("GET /api/executions/{id}/deliveries", c.handleGetDeliveries)
}

func (c *RecipientsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/recipients", c.handleCreateRecipient)
	mux.HandleFunc("GET /api/recipients/{id}", c.handleGetRecipient)
}

func (c *RunnersController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/runners", c.handleGetRunners)
}
