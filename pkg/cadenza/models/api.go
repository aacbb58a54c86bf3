package models

import (
	"time"

	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
)

// EventNotification is the payload of the trigger entry point. Context is
// free-form event data carried into the execution context.
type EventNotification struct {
	AutomationID string            `json:"automationId"`
	RecipientID  string            `json:"recipientId"`
	Context      map[string]string `json:"context,omitempty"`
}

// EventResponse reports the outcome of a notifyEvent call. Skipped is true
// when no execution was created and that is not an error (inactive
// automation, unmatched conditions, re-trigger ceiling, already running).
type EventResponse struct {
	ExecutionID int64  `json:"executionId,omitempty"`
	Skipped     bool   `json:"skipped"`
	Reason      string `json:"reason,omitempty"`
}

// RegisterAutomationResponse is returned on successful registration.
type RegisterAutomationResponse struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
}

// UpdateStatusRequest changes an automation's lifecycle status.
type UpdateStatusRequest struct {
	Status domain.AutomationStatus `json:"status"`
}

// AutomationStatsResponse surfaces the aggregator's counters.
type AutomationStatsResponse struct {
	ID                   string  `json:"id"`
	Triggered            int64   `json:"triggered"`
	Completed            int64   `json:"completed"`
	AvgCompletionMinutes float64 `json:"avgCompletionMinutes"`
	ConversionRate       float64 `json:"conversionRate"`
}

// ExecutionApiResponse is the API mapping of an execution row.
type ExecutionApiResponse struct {
	ID                int64             `json:"id"`
	AutomationID      string            `json:"automationId"`
	AutomationVersion int               `json:"automationVersion"`
	RecipientID       string            `json:"recipientId"`
	Status            string            `json:"status"`
	ActionIndex       int               `json:"actionIndex"`
	Created           time.Time         `json:"created"`
	Started           *time.Time        `json:"started,omitempty"`
	Completed         *time.Time        `json:"completed,omitempty"`
	NextWakeAt        *time.Time        `json:"nextWakeAt,omitempty"`
	Context           map[string]string `json:"context,omitempty"`
	ErrorDetail       string            `json:"errorDetail,omitempty"`
}

// SearchExecutionsRequest filters the execution search endpoint.
type SearchExecutionsRequest struct {
	AutomationID string `json:"automationId,omitempty"`
	RecipientID  string `json:"recipientId,omitempty"`
	Status       string `json:"status,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}
