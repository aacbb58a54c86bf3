package engine

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/cadenzahq/cadenza/internal/actions"
	"github.com/cadenzahq/cadenza/internal/config"
	"github.com/cadenzahq/cadenza/pkg/cadenza/core"
	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
	"github.com/cadenzahq/cadenza/pkg/cadenza/models"
)

var executionQueue chan *domain.Execution // Initialized in StartEngine using system setting

// Manager owns the polling loop, the worker pool and the trigger entry point.
// One Manager runs per engine instance; instances in the same engine group
// share the execution table and coordinate through claims.
type Manager struct {
	Definitions *DefinitionRegistry
	Executions  ExecutionRepo
	Deliveries  DeliveryRepo
	Recipients  core.RecipientStore
	Actions     *actions.Registry

	runnerRepo RunnerRepo
	runnerID   int64
	wakeup     chan struct{}
	clock      core.Clock
}

func NewManager(definitions *DefinitionRegistry, executions ExecutionRepo, deliveries DeliveryRepo,
	recipients core.RecipientStore, actionRegistry *actions.Registry, runnerRepo RunnerRepo, clock core.Clock) *Manager {
	return &Manager{
		Definitions: definitions,
		Executions:  executions,
		Deliveries:  deliveries,
		Recipients:  recipients,
		Actions:     actionRegistry,
		runnerRepo:  runnerRepo,
		wakeup:      make(chan struct{}, 1),
		clock:       clock,
	}
}

// SearchExecutions delegates to the repository for the API layer.
func (m *Manager) SearchExecutions(req models.SearchExecutionsRequest) (*[]domain.Execution, error) {
	return m.Executions.Search(req)
}

// GetExecution exposes a single execution row for the API layer.
func (m *Manager) GetExecution(id int64) (*domain.Execution, error) {
	return m.Executions.FindByID(id)
}

// StopExecution terminates a run administratively. The runner notices the
// terminal status at its next check point.
func (m *Manager) StopExecution(id int64) error {
	return m.Executions.MarkStopped(id)
}

// ListRunners returns recent runner instances ordered by last heartbeat.
func (m *Manager) ListRunners(limit int) ([]*domain.Runner, error) {
	return m.runnerRepo.RunnersByLastActive(limit)
}

// StartEngine starts polling for due executions at the given interval. It
// blocks until the context is cancelled.
func (m *Manager) StartEngine(ctx context.Context, pollInterval time.Duration) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	registerRunnerInstance(ctx, m)

	go startExecutionRepairService(ctx, m)

	queueSize := config.GetSystemSettingInteger(config.ENGINE_BATCH_SIZE)
	if queueSize <= 0 {
		queueSize = 10 // fallback default
	}
	executionQueue = make(chan *domain.Execution, queueSize)

	workers := config.GetSystemSettingInteger(config.ENGINE_WORKER_SIZE)
	slog.Info("Starting automation engine", "workers", workers, "queue_size", queueSize)
	for i := 0; i < workers; i++ {
		go Worker(ctx, i, m, executionQueue)
	}

	slog.Info("Automation engine started", "poll_interval", pollInterval.String())

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Automation engine stopping due to context cancel")
			return
		case <-ticker.C:
			m.pollAndRunExecutions(ctx)
		case <-m.wakeup:
			m.pollAndRunExecutions(ctx)
		}
	}
}

// startExecutionRepairService finds executions claimed by runners that
// stopped heartbeating and makes them due again.
func startExecutionRepairService(ctx context.Context, m *Manager) {
	dur, _ := time.ParseDuration(config.GetSystemSettingString(config.ENGINE_STUCK_EXECUTIONS_INTERVAL))
	ticker := time.NewTicker(dur)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Execution repair service stopping due to context cancel")
			return
		case <-ticker.C:
			stuck, err := m.Executions.FindStuckExecutions(
				config.GetSystemSettingInteger(config.ENGINE_STUCK_EXECUTIONS_REPAIR_AFTER_MINUTES),
				config.GetSystemSettingString(config.ENGINE_GROUP),
				100)
			if err != nil {
				slog.Error("Error finding stuck executions", "error", err)
				continue
			}
			for _, e := range *stuck {
				slog.Warn("Repairing stuck execution", "execution_id", e.ID,
					"automation_id", e.AutomationID, "action_index", e.ActionIndex,
					"previous_runner", e.ClaimedBy.Int64)
				if released := m.Executions.ReleaseStuck(e.ID, e.Modified); !released {
					slog.Info("Stuck execution moved on before repair", "execution_id", e.ID)
				}
			}
		}
	}
}

func registerRunnerInstance(ctx context.Context, m *Manager) {
	name := config.GetSystemSettingString(config.RUNNER_NAME)
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			name = "automation-engine"
		} else {
			name = hostname
		}
	}
	rn := &domain.Runner{Name: name, Started: time.Now(), LastActive: time.Now()}
	id, err := m.runnerRepo.Save(rn)
	if err != nil {
		slog.Error("Failed to register runner", "error", err)
		return
	}
	m.runnerID = id
	slog.Info("Registered runner", "runner_id", id, "name", name)
	hb := time.NewTicker(30 * time.Second)
	go func(runnerID int64) {
		for range hb.C {
			if err := m.runnerRepo.UpdateLastActive(runnerID, time.Now()); err != nil {
				slog.Error("Failed to update runner last_active", "runner_id", runnerID, "error", err)
			} else {
				slog.Debug("Updated runner last_active", "runner_id", runnerID)
			}
		}
	}(id)
}

// pollAndRunExecutions queries for due executions, claims them and feeds the
// worker pool. A claim that fails means another runner got there first.
func (m *Manager) pollAndRunExecutions(ctx context.Context) {
	slog.Debug("Polling for due executions")

	if len(executionQueue) >= config.GetSystemSettingInteger(config.ENGINE_BATCH_SIZE) {
		slog.Warn("execution queue full, skipping poll, possibly long running actions")
		return
	}

	due, err := m.Executions.FindDueExecutions(
		config.GetSystemSettingInteger(config.ENGINE_BATCH_SIZE),
		config.GetSystemSettingString(config.ENGINE_GROUP),
	)
	if err != nil {
		slog.Error("Error fetching due executions", "error", err)
		return
	}

	for i := range *due {
		e := (*due)[i]
		claimed := m.Executions.ClaimExecution(e.ID, m.runnerID, e.Modified)
		if !claimed {
			slog.InfoContext(ctx, "Unable to claim execution, picked up by another runner",
				"execution_id", e.ID, "automation_id", e.AutomationID)
			continue
		}
		slog.InfoContext(ctx, "Queueing execution", "execution_id", e.ID,
			"automation_id", e.AutomationID, "recipient_id", e.RecipientID)
		executionQueue <- &e
	}
}

// Wakeup nudges the polling loop without waiting for the next tick.
func (m *Manager) Wakeup() {
	select {
	case m.wakeup <- struct{}{}:
	default:
	}
}
