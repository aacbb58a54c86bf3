package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cadenzahq/cadenza/internal/actions"
	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
)

// RunExecution drives one claimed execution forward until it terminates or
// suspends. The database row is re-read before every action so operator
// stops take effect mid-run, and the cursor is only advanced after an action
// completes, so a crash replays the current action rather than skipping it.
func RunExecution(ctx context.Context, m *Manager, execID int64, workerID string) {
	exec, err := m.Executions.FindByID(execID)
	if err != nil {
		slog.ErrorContext(ctx, "Error loading execution", "execution_id", execID, "error", err, "worker_id", workerID)
		return
	}
	if exec.Status.Terminal() {
		_ = m.Executions.ClearClaim(exec.ID)
		return
	}

	if exec.Status == domain.ExecutionPending {
		if err := m.Executions.MarkRunning(exec.ID); err != nil {
			slog.ErrorContext(ctx, "Error marking execution running", "execution_id", exec.ID, "error", err, "worker_id", workerID)
			return
		}
	}

	def, err := m.Definitions.Version(exec.AutomationID, exec.AutomationVersion)
	if err != nil {
		slog.ErrorContext(ctx, "Error loading pinned automation version",
			"execution_id", exec.ID, "automation_id", exec.AutomationID,
			"automation_version", exec.AutomationVersion, "error", err, "worker_id", workerID)
		_ = m.Executions.MarkFailed(exec.ID, "automation version not found: "+err.Error())
		return
	}

	for {
		exec, err = m.Executions.FindByID(execID)
		if err != nil {
			slog.ErrorContext(ctx, "Error re-reading execution", "execution_id", execID, "error", err, "worker_id", workerID)
			return
		}
		if exec.Status.Terminal() {
			slog.InfoContext(ctx, "Execution terminated externally", "execution_id", exec.ID, "status", exec.Status, "worker_id", workerID)
			return
		}

		idx := exec.ActionIndex
		if idx >= len(def.Actions) {
			completeExecution(ctx, m, exec, def, workerID)
			return
		}
		action := def.Actions[idx]

		rcp, err := m.Recipients.GetRecipient(ctx, exec.RecipientID)
		if err != nil {
			slog.ErrorContext(ctx, "Error loading recipient", "execution_id", exec.ID,
				"recipient_id", exec.RecipientID, "error", err, "worker_id", workerID)
			_ = m.Executions.MarkFailed(exec.ID, "recipient lookup failed: "+err.Error())
			return
		}

		if !EvaluateConditions(action.Conditions, rcp, exec.Context) {
			slog.InfoContext(ctx, "Action gate false, skipping action", "execution_id", exec.ID,
				"action_id", action.ID, "action_index", idx, "worker_id", workerID)
			if err := m.Executions.UpdateCursor(exec.ID, idx+1, nil); err != nil {
				slog.ErrorContext(ctx, "Error advancing cursor past skipped action", "execution_id", exec.ID, "error", err, "worker_id", workerID)
				return
			}
			continue
		}

		switch action.Kind {
		case domain.ActionHalt:
			slog.InfoContext(ctx, "Halt action reached, stopping execution", "execution_id", exec.ID,
				"action_id", action.ID, "worker_id", workerID)
			if err := m.Executions.MarkStopped(exec.ID); err != nil {
				slog.ErrorContext(ctx, "Error stopping execution", "execution_id", exec.ID, "error", err, "worker_id", workerID)
			}
			return

		case domain.ActionWait:
			wake := m.clock.Now().Add(time.Duration(action.WaitMinutes) * time.Minute)
			slog.InfoContext(ctx, "Wait action, suspending execution", "execution_id", exec.ID,
				"action_id", action.ID, "wake_at", wake, "worker_id", workerID)
			if err := m.Executions.UpdateCursor(exec.ID, idx+1, &wake); err != nil {
				slog.ErrorContext(ctx, "Error suspending execution", "execution_id", exec.ID, "error", err, "worker_id", workerID)
			}
			return

		case domain.ActionSendMessage:
			if deferred := m.deferForPolicy(ctx, exec, def, workerID); deferred {
				return
			}
		}

		if failed := m.dispatchAction(ctx, exec, &action, rcp, workerID); failed {
			return
		}

		var wake *time.Time
		if action.DelayMinutes > 0 {
			w := m.clock.Now().Add(time.Duration(action.DelayMinutes) * time.Minute)
			wake = &w
		}
		if err := m.Executions.UpdateCursor(exec.ID, idx+1, wake); err != nil {
			slog.ErrorContext(ctx, "Error advancing cursor", "execution_id", exec.ID, "error", err, "worker_id", workerID)
			return
		}
		if wake != nil {
			slog.InfoContext(ctx, "Execution suspended after action", "execution_id", exec.ID,
				"action_id", action.ID, "wake_at", *wake, "worker_id", workerID)
			return
		}
	}
}

// deferForPolicy suspends the execution without advancing the index when the
// policy forbids sending right now. Returns true when a defer happened.
func (m *Manager) deferForPolicy(ctx context.Context, exec *domain.Execution, def *domain.Automation, workerID string) bool {
	now := m.clock.Now()

	if def.Policy.QuietHoursAt(now) {
		wake := def.Policy.QuietHoursEndAfter(now)
		slog.InfoContext(ctx, "Quiet hours, deferring send", "execution_id", exec.ID,
			"wake_at", wake, "worker_id", workerID)
		if err := m.Executions.Suspend(exec.ID, wake); err != nil {
			slog.ErrorContext(ctx, "Error deferring for quiet hours", "execution_id", exec.ID, "error", err, "worker_id", workerID)
		}
		return true
	}

	if def.Policy.MaxMessagesPerDay > 0 {
		count, err := m.Deliveries.CountSince(exec.RecipientID, now.Add(-24*time.Hour))
		if err != nil {
			slog.ErrorContext(ctx, "Error counting recent deliveries", "execution_id", exec.ID, "error", err, "worker_id", workerID)
			return false
		}
		if count >= def.Policy.MaxMessagesPerDay {
			wake := now.Add(60 * time.Minute)
			slog.InfoContext(ctx, "Daily message cap reached, deferring send", "execution_id", exec.ID,
				"recipient_id", exec.RecipientID, "sent_last_24h", count, "wake_at", wake, "worker_id", workerID)
			if err := m.Executions.Suspend(exec.ID, wake); err != nil {
				slog.ErrorContext(ctx, "Error deferring for daily cap", "execution_id", exec.ID, "error", err, "worker_id", workerID)
			}
			return true
		}
	}
	return false
}

// dispatchAction runs one action under the per-action timeout and persists
// any context mutation. Returns true when the execution was marked failed.
func (m *Manager) dispatchAction(ctx context.Context, exec *domain.Execution, action *domain.Action, rcp *domain.Recipient, workerID string) bool {
	executor, ok := m.Actions.Resolve(action.Kind)
	if !ok {
		_ = m.Executions.MarkFailed(exec.ID, "no executor for action kind "+string(action.Kind))
		return true
	}

	before, _ := json.Marshal(exec.Context)

	actionCtx, cancel := context.WithTimeout(ctx, actionTimeout())
	defer cancel()

	slog.InfoContext(ctx, "Executing action", "execution_id", exec.ID, "action_id", action.ID,
		"kind", action.Kind, "action_index", exec.ActionIndex, "worker_id", workerID)
	err := executor.Execute(actionCtx, &actions.Request{Execution: exec, Action: action, Recipient: rcp})
	if err != nil {
		slog.ErrorContext(ctx, "Action failed", "execution_id", exec.ID, "action_id", action.ID,
			"kind", action.Kind, "error", err, "worker_id", workerID)
		_ = m.Executions.MarkFailed(exec.ID, "action "+action.ID+" failed: "+err.Error())
		return true
	}

	after, _ := json.Marshal(exec.Context)
	if string(before) != string(after) {
		if err := m.Executions.SaveContext(exec.ID, string(after)); err != nil {
			slog.ErrorContext(ctx, "Error saving execution context", "execution_id", exec.ID, "error", err, "worker_id", workerID)
		}
	}
	return false
}

func completeExecution(ctx context.Context, m *Manager, exec *domain.Execution, def *domain.Automation, workerID string) {
	if err := m.Executions.MarkCompleted(exec.ID); err != nil {
		slog.ErrorContext(ctx, "Error completing execution", "execution_id", exec.ID, "error", err, "worker_id", workerID)
		return
	}

	started := exec.Created
	if exec.Started.Valid {
		started = exec.Started.Time
	}
	minutes := m.clock.Now().Sub(started).Minutes()
	if err := m.Definitions.automations.RecordCompletion(def.ID, minutes); err != nil {
		slog.ErrorContext(ctx, "Error recording completion stats", "automation_id", def.ID, "error", err, "worker_id", workerID)
	}
	slog.InfoContext(ctx, "Execution completed", "execution_id", exec.ID,
		"automation_id", def.ID, "duration_minutes", minutes, "worker_id", workerID)
}
