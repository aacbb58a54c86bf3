package repository

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cadenzahq/cadenza/pkg/cadenza/core"
	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
)

// DeliveryRepository is the append-only send audit log. The unique
// (execution_id, action_id) key is what makes a redelivered wake-up safe: a
// step that already sent is detected before the transport is called again.
type DeliveryRepository struct {
	db    *sql.DB
	clock core.Clock
}

func NewDeliveryRepository(db *sql.DB, clock core.Clock) *DeliveryRepository {
	return &DeliveryRepository{db: db, clock: clock}
}

// Record inserts one delivery record and returns its id.
func (r *DeliveryRepository) Record(d *domain.DeliveryRecord) (string, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	query := `
		INSERT INTO deliveries (id, execution_id, action_id, recipient_id, subject, sent_at)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `,
		        ` + placeholder(4) + `, ` + placeholder(5) + `, ` + nowFunc(r.clock) + `)
	`
	_, err := r.db.Exec(query, d.ID, d.ExecutionID, d.ActionID, d.RecipientID, d.Subject)
	if err != nil {
		slog.Error("Failed to record delivery", "error", err, "execution_id", d.ExecutionID, "action_id", d.ActionID)
	}
	return d.ID, err
}

// Sent reports whether this execution already delivered this action.
func (r *DeliveryRepository) Sent(executionID int64, actionID string) (bool, error) {
	query := `
		SELECT COUNT(*) FROM deliveries
		WHERE execution_id = ` + placeholder(1) + ` AND action_id = ` + placeholder(2) + `
	`
	var n int
	err := r.db.QueryRow(query, executionID, actionID).Scan(&n)
	return n > 0, err
}

// CountSince counts messages delivered to the recipient after the cutoff,
// for the per-recipient daily cap.
func (r *DeliveryRepository) CountSince(recipientID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM deliveries
		WHERE recipient_id = ` + placeholder(1) + ` AND sent_at > ` + placeholder(2) + `
	`
	var n int
	err := r.db.QueryRow(query, recipientID, formatDateInDatabase(since)).Scan(&n)
	return n, err
}

// FindByExecution returns the delivery log of one execution, oldest first.
func (r *DeliveryRepository) FindByExecution(executionID int64) (*[]domain.DeliveryRecord, error) {
	query := `
		SELECT id, execution_id, action_id, recipient_id, subject, sent_at
		FROM deliveries
		WHERE execution_id = ` + placeholder(1) + `
		ORDER BY sent_at ASC
	`
	rows, err := r.db.Query(query, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.DeliveryRecord
	for rows.Next() {
		var d domain.DeliveryRecord
		if err := rows.Scan(&d.ID, &d.ExecutionID, &d.ActionID, &d.RecipientID, &d.Subject, &d.SentAt); err != nil {
			return nil, err
		}
		records = append(records, d)
	}
	return &records, rows.Err()
}
