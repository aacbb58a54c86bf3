package engine

import (
	"time"

	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
	"github.com/cadenzahq/cadenza/pkg/cadenza/models"
)

// ExecutionRepo defines the interface for execution persistence, matching
// repository.ExecutionRepository.
type ExecutionRepo interface {
	Save(e *domain.Execution) (int64, error)
	FindByID(id int64) (*domain.Execution, error)
	FindDueExecutions(size int, engineGroup string) (*[]domain.Execution, error)
	ClaimExecution(id int64, runnerID int64, modified time.Time) bool
	ClearClaim(id int64) error
	MarkRunning(id int64) error
	UpdateCursor(id int64, actionIndex int, wake *time.Time) error
	Suspend(id int64, wake time.Time) error
	MarkCompleted(id int64) error
	MarkFailed(id int64, detail string) error
	MarkStopped(id int64) error
	SaveContext(id int64, contextJSON string) error
	CountTerminal(automationID, recipientID string) (int, error)
	HasActive(automationID, recipientID string) (bool, error)
	FindStuckExecutions(cutoffMinutes int, engineGroup string, limit int) (*[]domain.Execution, error)
	ReleaseStuck(id int64, modified time.Time) bool
	Search(req models.SearchExecutionsRequest) (*[]domain.Execution, error)
}

// AutomationRepo defines the interface for automation definition persistence.
type AutomationRepo interface {
	SaveVersion(a *domain.Automation) error
	UpdateStatus(id string, status domain.AutomationStatus) error
	FindLatest(id string) (*domain.Automation, error)
	FindVersion(id string, version int) (*domain.Automation, error)
	FindAllLatest() (*[]domain.Automation, error)
	IncrementTriggered(id string) error
	RecordCompletion(id string, minutes float64) error
}

// DeliveryRepo defines the interface for the delivery audit log.
type DeliveryRepo interface {
	Record(d *domain.DeliveryRecord) (string, error)
	Sent(executionID int64, actionID string) (bool, error)
	CountSince(recipientID string, since time.Time) (int, error)
	FindByExecution(executionID int64) (*[]domain.DeliveryRecord, error)
}

// RunnerRepo defines the interface for runner registration and heartbeats.
type RunnerRepo interface {
	Save(rn *domain.Runner) (int64, error)
	UpdateLastActive(id int64, ts time.Time) error
	RunnersByLastActive(limit int) ([]*domain.Runner, error)
}
