package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cadenzahq/cadenza/internal/config"
	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
	"github.com/cadenzahq/cadenza/pkg/cadenza/models"
)

// NotifyEvent is the trigger entry point. It evaluates eligibility against
// the latest definition version and, when everything matches, creates one
// pending execution due immediately. Ineligibility that is not an error
// (inactive automation, unmatched conditions, ceiling, already running)
// comes back as a skipped response, not an error.
func (m *Manager) NotifyEvent(ctx context.Context, event models.EventNotification) (*models.EventResponse, error) {
	def, err := m.Definitions.Latest(event.AutomationID)
	if err != nil {
		return nil, err
	}

	if def.Status != domain.StatusActive {
		slog.InfoContext(ctx, "Skipping event, automation not active",
			"automation_id", def.ID, "status", def.Status)
		return &models.EventResponse{Skipped: true, Reason: "automation is not active"}, nil
	}

	rcp, err := m.Recipients.GetRecipient(ctx, event.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("recipient %s: %w", event.RecipientID, err)
	}

	if !EvaluateConditions(def.Trigger.Conditions, rcp, event.Context) {
		slog.InfoContext(ctx, "Skipping event, trigger conditions not met",
			"automation_id", def.ID, "recipient_id", rcp.ID)
		return &models.EventResponse{Skipped: true, Reason: "trigger conditions not met"}, nil
	}

	if def.Trigger.MaxTriggerCount > 0 {
		prior, err := m.Executions.CountTerminal(def.ID, rcp.ID)
		if err != nil {
			return nil, err
		}
		if prior >= def.Trigger.MaxTriggerCount {
			slog.InfoContext(ctx, "Skipping event, trigger ceiling reached",
				"automation_id", def.ID, "recipient_id", rcp.ID, "prior_runs", prior)
			return &models.EventResponse{Skipped: true, Reason: "trigger ceiling reached"}, nil
		}
	}

	if !def.Policy.AllowConcurrent {
		active, err := m.Executions.HasActive(def.ID, rcp.ID)
		if err != nil {
			return nil, err
		}
		if active {
			slog.InfoContext(ctx, "Skipping event, execution already active",
				"automation_id", def.ID, "recipient_id", rcp.ID)
			return &models.EventResponse{Skipped: true, Reason: "execution already active"}, nil
		}
	}

	now := m.clock.Now()
	exec := &domain.Execution{
		AutomationID:      def.ID,
		AutomationVersion: def.Version,
		RecipientID:       rcp.ID,
		Status:            domain.ExecutionPending,
		ActionIndex:       0,
		EngineGroup:       config.GetSystemSettingString(config.ENGINE_GROUP),
		Created:           now,
		Modified:          now,
		Context:           event.Context,
	}
	exec.NextWakeAt.Time = now
	exec.NextWakeAt.Valid = true

	id, err := m.Executions.Save(exec)
	if err != nil {
		return nil, fmt.Errorf("create execution: %w", err)
	}

	if err := m.Definitions.automations.IncrementTriggered(def.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to increment triggered counter",
			"automation_id", def.ID, "error", err)
	}

	slog.InfoContext(ctx, "Execution triggered", "execution_id", id,
		"automation_id", def.ID, "automation_version", def.Version, "recipient_id", rcp.ID)
	m.Wakeup()

	return &models.EventResponse{ExecutionID: id}, nil
}

// actionTimeout returns the per-action execution bound.
func actionTimeout() time.Duration {
	d, err := time.ParseDuration(config.GetSystemSettingString(config.ENGINE_ACTION_TIMEOUT))
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
