package repository

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/cadenzahq/cadenza/pkg/cadenza/core"
	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
	"github.com/cadenzahq/cadenza/pkg/cadenza/models"
)

// ExecutionRepository persists execution rows. The row is the durable state
// of the state machine: action_index and next_wake_at always move in a single
// statement so a crash between "advance" and "suspend" cannot replay a
// side-effecting action.
type ExecutionRepository struct {
	db    *sql.DB
	clock core.Clock
}

func NewExecutionRepository(db *sql.DB, clock core.Clock) *ExecutionRepository {
	return &ExecutionRepository{db: db, clock: clock}
}

const executionColumns = ` id, automation_id, automation_version, recipient_id, status, action_index,
		created, modified, started, completed, next_wake_at, claimed_by, engine_group, context, error_detail `

func scanExecution(row interface{ Scan(...any) error }) (*domain.Execution, error) {
	var e domain.Execution
	var contextJSON string
	err := row.Scan(
		&e.ID,
		&e.AutomationID,
		&e.AutomationVersion,
		&e.RecipientID,
		&e.Status,
		&e.ActionIndex,
		&e.Created,
		&e.Modified,
		&e.Started,
		&e.Completed,
		&e.NextWakeAt,
		&e.ClaimedBy,
		&e.EngineGroup,
		&contextJSON,
		&e.ErrorDetail,
	)
	if err != nil {
		return nil, err
	}
	e.Context = map[string]string{}
	if contextJSON != "" && contextJSON != "null" {
		if err := json.Unmarshal([]byte(contextJSON), &e.Context); err != nil {
			slog.Error("Error parsing execution context", "execution_id", e.ID, "error", err)
		}
	}
	return &e, nil
}

func (r *ExecutionRepository) Save(e *domain.Execution) (int64, error) {
	contextJSON, err := json.Marshal(e.Context)
	if err != nil {
		return 0, err
	}
	vals := []interface{}{
		e.AutomationID,
		e.AutomationVersion,
		e.RecipientID,
		string(e.Status),
		e.ActionIndex,
		formatDateInDatabase(e.Created),
		formatDateInDatabase(e.Modified),
		formatDateInDatabaseNull(e.NextWakeAt),
		e.EngineGroup,
		string(contextJSON),
	}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	base := `INSERT INTO executions (
		automation_id, automation_version, recipient_id, status, action_index,
		created, modified, next_wake_at, engine_group, context
	) VALUES (` + strings.Join(pps, ", ") + `)`
	if supportsReturning() {
		query := base + " RETURNING id"
		err = r.db.QueryRow(query, vals...).Scan(&e.ID)
	} else {
		res, e2 := r.db.Exec(base, vals...)
		if e2 != nil {
			err = e2
		} else {
			id, e3 := res.LastInsertId()
			if e3 != nil {
				err = e3
			} else {
				e.ID = id
			}
		}
	}
	return e.ID, err
}

func formatDateInDatabaseNull(t sql.NullTime) interface{} {
	if !t.Valid {
		return nil
	}
	return formatDateInDatabase(t.Time)
}

func (r *ExecutionRepository) FindByID(id int64) (*domain.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions WHERE id = ` + placeholder(1) + `
	`
	return scanExecution(r.db.QueryRow(query, id))
}

// FindDueExecutions returns unclaimed executions whose persisted wake time
// has arrived, oldest due first. This is the scheduler's only scan.
func (r *ExecutionRepository) FindDueExecutions(size int, engineGroup string) (*[]domain.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE ` + dateBeforeNow("next_wake_at", r.clock) + `
		  AND status IN ('pending', 'running')
		  AND claimed_by IS NULL
		  AND engine_group = ` + placeholder(1) + `
		ORDER BY next_wake_at ASC
		LIMIT ` + placeholder(2) + `
	`
	rows, err := r.db.Query(query, engineGroup, size)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []domain.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, *e)
	}
	return &executions, rows.Err()
}

// ClaimExecution takes the per-execution lock by compare-and-set on the
// modified timestamp. A false return means another runner won the row; the
// caller simply skips it.
func (r *ExecutionRepository) ClaimExecution(id int64, runnerID int64, modified time.Time) bool {
	query := `
		UPDATE executions
		SET claimed_by = ` + placeholder(1) + `, next_wake_at = NULL, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + ` AND modified = ` + placeholder(3) + `
		  AND status IN ('pending', 'running') AND claimed_by IS NULL
	`
	result, err := r.db.Exec(query, runnerID, id, formatDateInDatabase(modified))
	if err != nil {
		slog.Error("Failed to claim execution", "error", err, "execution_id", id, "runner_id", runnerID)
		return false
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false
	}
	return rowsAffected == 1
}

// ClearClaim releases the per-execution lock.
func (r *ExecutionRepository) ClearClaim(id int64) error {
	query := `
		UPDATE executions
		SET claimed_by = NULL, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(1) + `
	`
	_, err := r.db.Exec(query, id)
	return err
}

// MarkRunning flips pending to running and stamps the start time once.
func (r *ExecutionRepository) MarkRunning(id int64) error {
	query := `
		UPDATE executions
		SET status = 'running', started = ` + nowFunc(r.clock) + `, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(1) + ` AND status = 'pending'
	`
	_, err := r.db.Exec(query, id)
	return err
}

// UpdateCursor advances the action index and persists the suspend point in
// one statement. A non-nil wake suspends the execution and releases the
// claim so any runner may resume it; a nil wake leaves the execution
// runnable in this invocation only.
func (r *ExecutionRepository) UpdateCursor(id int64, actionIndex int, wake *time.Time) error {
	var query string
	var err error
	if wake != nil {
		query = `
		UPDATE executions
		SET action_index = ` + placeholder(1) + `, next_wake_at = ` + placeholder(2) + `,
		    claimed_by = NULL, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(3) + `
		`
		_, err = r.db.Exec(query, actionIndex, formatDateInDatabase(*wake), id)
	} else {
		query = `
		UPDATE executions
		SET action_index = ` + placeholder(1) + `, next_wake_at = NULL, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + `
		`
		_, err = r.db.Exec(query, actionIndex, id)
	}
	return err
}

// Suspend persists a wake time without touching the index, for policy defers
// (quiet hours, daily cap) and releases the claim so any runner may resume.
func (r *ExecutionRepository) Suspend(id int64, wake time.Time) error {
	query := `
		UPDATE executions
		SET next_wake_at = ` + placeholder(1) + `, claimed_by = NULL, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + `
	`
	_, err := r.db.Exec(query, formatDateInDatabase(wake), id)
	return err
}

// MarkCompleted terminates the execution successfully.
func (r *ExecutionRepository) MarkCompleted(id int64) error {
	query := `
		UPDATE executions
		SET status = 'completed', completed = ` + nowFunc(r.clock) + `, next_wake_at = NULL,
		    claimed_by = NULL, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(1) + `
	`
	_, err := r.db.Exec(query, id)
	return err
}

// MarkFailed terminates the execution with error detail for operator
// inspection. Failures are not retried by the engine.
func (r *ExecutionRepository) MarkFailed(id int64, detail string) error {
	query := `
		UPDATE executions
		SET status = 'failed', completed = ` + nowFunc(r.clock) + `, next_wake_at = NULL,
		    claimed_by = NULL, error_detail = ` + placeholder(1) + `, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + `
	`
	_, err := r.db.Exec(query, detail, id)
	return err
}

// MarkStopped terminates the execution administratively (halt action or
// operator stop).
func (r *ExecutionRepository) MarkStopped(id int64) error {
	query := `
		UPDATE executions
		SET status = 'stopped', completed = ` + nowFunc(r.clock) + `, next_wake_at = NULL,
		    claimed_by = NULL, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(1) + ` AND status IN ('pending', 'running')
	`
	_, err := r.db.Exec(query, id)
	return err
}

// SaveContext persists the execution's context map.
func (r *ExecutionRepository) SaveContext(id int64, contextJSON string) error {
	query := `
		UPDATE executions
		SET context = ` + placeholder(1) + `, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + `
	`
	_, err := r.db.Exec(query, contextJSON, id)
	return err
}

// CountTerminal counts finished runs of one recipient through one automation,
// for the re-trigger ceiling.
func (r *ExecutionRepository) CountTerminal(automationID, recipientID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM executions
		WHERE automation_id = ` + placeholder(1) + ` AND recipient_id = ` + placeholder(2) + `
		  AND status IN ('completed', 'failed', 'stopped')
	`
	var n int
	err := r.db.QueryRow(query, automationID, recipientID).Scan(&n)
	return n, err
}

// HasActive reports whether a pending or running execution already exists for
// the (automation, recipient) pair.
func (r *ExecutionRepository) HasActive(automationID, recipientID string) (bool, error) {
	query := `
		SELECT COUNT(*) FROM executions
		WHERE automation_id = ` + placeholder(1) + ` AND recipient_id = ` + placeholder(2) + `
		  AND status IN ('pending', 'running')
	`
	var n int
	err := r.db.QueryRow(query, automationID, recipientID).Scan(&n)
	return n > 0, err
}

// FindStuckExecutions returns claimed executions whose runner stopped
// heartbeating. These are crash leftovers to repair.
func (r *ExecutionRepository) FindStuckExecutions(cutoffMinutes int, engineGroup string, limit int) (*[]domain.Execution, error) {
	cutoff := r.clock.Now().UTC().Add(-time.Duration(cutoffMinutes) * time.Minute)
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE modified < ` + placeholder(1) + `
		  AND status IN ('pending', 'running')
		  AND claimed_by IS NOT NULL
		  AND engine_group = ` + placeholder(2) + `
		  AND claimed_by NOT IN (
		      SELECT id FROM runners WHERE last_active > ` + placeholder(3) + `
		  )
		ORDER BY modified ASC
		LIMIT ` + placeholder(4) + `
	`
	rows, err := r.db.Query(query, formatDateInDatabase(cutoff), engineGroup, formatDateInDatabase(cutoff), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []domain.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, *e)
	}
	return &executions, rows.Err()
}

// ReleaseStuck clears a dead runner's claim and makes the execution due now,
// guarded by the modified token so a live runner is never preempted.
func (r *ExecutionRepository) ReleaseStuck(id int64, modified time.Time) bool {
	query := `
		UPDATE executions
		SET claimed_by = NULL, next_wake_at = ` + nowFunc(r.clock) + `, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(1) + ` AND modified = ` + placeholder(2) + `
	`
	result, err := r.db.Exec(query, id, formatDateInDatabase(modified))
	if err != nil {
		return false
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false
	}
	return rowsAffected == 1
}

// Search returns executions matching the request filters, newest first.
func (r *ExecutionRepository) Search(req models.SearchExecutionsRequest) (*[]domain.Execution, error) {
	var clauses []string
	var args []interface{}
	if req.AutomationID != "" {
		args = append(args, req.AutomationID)
		clauses = append(clauses, "automation_id = "+placeholder(len(args)))
	}
	if req.RecipientID != "" {
		args = append(args, req.RecipientID)
		clauses = append(clauses, "recipient_id = "+placeholder(len(args)))
	}
	if req.Status != "" {
		args = append(args, req.Status)
		clauses = append(clauses, "status = "+placeholder(len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	limitPh := placeholder(len(args))
	args = append(args, req.Offset)
	offsetPh := placeholder(len(args))

	query := `
		SELECT ` + executionColumns + `
		FROM executions` + where + `
		ORDER BY id DESC
		LIMIT ` + limitPh + ` OFFSET ` + offsetPh

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []domain.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, *e)
	}
	return &executions, rows.Err()
}
