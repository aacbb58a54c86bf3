package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cadenzahq/cadenza/pkg/cadenza/core"
	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
)

// AutomationRepository persists versioned automation definitions. Each Save
// writes a new (id, version) row; the definition content of a stored version
// is never updated, so in-flight executions can keep reading the version they
// pinned at creation.
type AutomationRepository struct {
	db    *sql.DB
	clock core.Clock
}

func NewAutomationRepository(db *sql.DB, clock core.Clock) *AutomationRepository {
	return &AutomationRepository{db: db, clock: clock}
}

const automationColumns = ` id, version, name, description, status, trigger_def, actions, policy,
		created, updated, triggered, completed, avg_completion_minutes `

func (r *AutomationRepository) scan(row interface{ Scan(...any) error }) (*domain.Automation, error) {
	var a domain.Automation
	var triggerJSON, actionsJSON, policyJSON string
	err := row.Scan(
		&a.ID,
		&a.Version,
		&a.Name,
		&a.Description,
		&a.Status,
		&triggerJSON,
		&actionsJSON,
		&policyJSON,
		&a.Created,
		&a.Updated,
		&a.Triggered,
		&a.Completed,
		&a.AvgCompletionMinutes,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(triggerJSON), &a.Trigger); err != nil {
		return nil, fmt.Errorf("parse trigger of automation %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(actionsJSON), &a.Actions); err != nil {
		return nil, fmt.Errorf("parse actions of automation %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(policyJSON), &a.Policy); err != nil {
		return nil, fmt.Errorf("parse policy of automation %s: %w", a.ID, err)
	}
	return &a, nil
}

// SaveVersion inserts a new version row for the automation. The caller is
// responsible for setting Version to max(existing)+1; registration serializes
// writers so two concurrent saves of the same id cannot race past the
// primary key.
func (r *AutomationRepository) SaveVersion(a *domain.Automation) error {
	triggerJSON, err := json.Marshal(a.Trigger)
	if err != nil {
		return err
	}
	actionsJSON, err := json.Marshal(a.Actions)
	if err != nil {
		return err
	}
	policyJSON, err := json.Marshal(a.Policy)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO automations (
			id, version, name, description, status, trigger_def, actions, policy,
			created, updated, triggered, completed, avg_completion_minutes
		) VALUES (
			` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` + placeholder(5) + `,
			` + placeholder(6) + `, ` + placeholder(7) + `, ` + placeholder(8) + `, ` + placeholder(9) + `, ` + placeholder(10) + `,
			` + placeholder(11) + `, ` + placeholder(12) + `, ` + placeholder(13) + `
		)`
	_, err = r.db.Exec(query,
		a.ID,
		a.Version,
		a.Name,
		a.Description,
		string(a.Status),
		string(triggerJSON),
		string(actionsJSON),
		string(policyJSON),
		formatDateInDatabase(a.Created),
		formatDateInDatabase(a.Updated),
		a.Triggered,
		a.Completed,
		a.AvgCompletionMinutes,
	)
	return err
}

// UpdateStatus flips the lifecycle status on the latest version of an
// automation. Stored older versions keep their status; they are unreachable
// for triggering anyway.
func (r *AutomationRepository) UpdateStatus(id string, status domain.AutomationStatus) error {
	query := `
		UPDATE automations
		SET status = ` + placeholder(1) + `, updated = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + `
		  AND version = (SELECT MAX(version) FROM (SELECT version FROM automations WHERE id = ` + placeholder(3) + `) v)
	`
	_, err := r.db.Exec(query, string(status), id, id)
	return err
}

// FindLatest returns the highest stored version of the automation id.
func (r *AutomationRepository) FindLatest(id string) (*domain.Automation, error) {
	query := `
		SELECT ` + automationColumns + `
		FROM automations
		WHERE id = ` + placeholder(1) + `
		ORDER BY version DESC
		LIMIT 1
	`
	return r.scan(r.db.QueryRow(query, id))
}

// FindVersion returns one exact stored version.
func (r *AutomationRepository) FindVersion(id string, version int) (*domain.Automation, error) {
	query := `
		SELECT ` + automationColumns + `
		FROM automations
		WHERE id = ` + placeholder(1) + ` AND version = ` + placeholder(2) + `
	`
	return r.scan(r.db.QueryRow(query, id, version))
}

// FindAllLatest returns the newest version of every automation, ordered by id.
func (r *AutomationRepository) FindAllLatest() (*[]domain.Automation, error) {
	query := `
		SELECT ` + automationColumns + `
		FROM automations a
		WHERE version = (SELECT MAX(version) FROM automations b WHERE b.id = a.id)
		ORDER BY id
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	defs := make([]domain.Automation, 0)
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &defs, nil
}

// IncrementTriggered bumps the triggered counter on every version row of the
// id so the total survives re-registration.
func (r *AutomationRepository) IncrementTriggered(id string) error {
	query := `
		UPDATE automations
		SET triggered = triggered + 1
		WHERE id = ` + placeholder(1) + `
	`
	_, err := r.db.Exec(query, id)
	return err
}

// RecordCompletion bumps the completed counter and folds the run's duration
// into the running average, in one statement per version row.
func (r *AutomationRepository) RecordCompletion(id string, minutes float64) error {
	query := `
		UPDATE automations
		SET avg_completion_minutes = (avg_completion_minutes * completed + ` + placeholder(1) + `) / (completed + 1),
		    completed = completed + 1
		WHERE id = ` + placeholder(2) + `
	`
	_, err := r.db.Exec(query, minutes, id)
	return err
}
