package domain

import (
	"database/sql"
	"time"
)

// ExecutionStatus is the lifecycle state of one recipient's run.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionStopped   ExecutionStatus = "stopped"
)

// Terminal reports whether the status admits no further processing.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed || s == ExecutionStopped
}

// Execution is one recipient's run through one automation version. The
// database row is the source of truth: ActionIndex only ever increases within
// a run, NextWakeAt holds the persisted resume time while suspended, and
// Modified is the optimistic-lock token used when a runner claims the row.
type Execution struct {
	ID                int64
	AutomationID      string
	AutomationVersion int
	RecipientID       string
	Status            ExecutionStatus
	ActionIndex       int
	EngineGroup       string
	Created           time.Time
	Modified          time.Time
	Started           sql.NullTime
	Completed         sql.NullTime
	NextWakeAt        sql.NullTime
	ClaimedBy         sql.NullInt64
	Context           map[string]string
	ErrorDetail       sql.NullString
}
