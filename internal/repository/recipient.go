package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cadenzahq/cadenza/pkg/cadenza/core"
	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
)

// RecipientRepository is the SQL-backed recipient store. Tag and field
// mutations run as read-modify-write inside a transaction so concurrent
// executions of different automations never clobber each other's writes.
type RecipientRepository struct {
	db    *sql.DB
	clock core.Clock
}

func NewRecipientRepository(db *sql.DB, clock core.Clock) *RecipientRepository {
	return &RecipientRepository{db: db, clock: clock}
}

const recipientColumns = ` id, email, first_name, last_name, tags, fields, engagement_score, created, modified `

func scanRecipient(row interface{ Scan(...any) error }) (*domain.Recipient, error) {
	var rcp domain.Recipient
	var tagsJSON, fieldsJSON string
	err := row.Scan(
		&rcp.ID,
		&rcp.Email,
		&rcp.FirstName,
		&rcp.LastName,
		&tagsJSON,
		&fieldsJSON,
		&rcp.EngagementScore,
		&rcp.Created,
		&rcp.Modified,
	)
	if err != nil {
		return nil, err
	}
	rcp.Tags = []string{}
	rcp.Fields = map[string]string{}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &rcp.Tags); err != nil {
			return nil, fmt.Errorf("parse tags of recipient %s: %w", rcp.ID, err)
		}
	}
	if fieldsJSON != "" {
		if err := json.Unmarshal([]byte(fieldsJSON), &rcp.Fields); err != nil {
			return nil, fmt.Errorf("parse fields of recipient %s: %w", rcp.ID, err)
		}
	}
	return &rcp, nil
}

func (r *RecipientRepository) GetRecipient(ctx context.Context, id string) (*domain.Recipient, error) {
	query := `
		SELECT ` + recipientColumns + `
		FROM recipients WHERE id = ` + placeholder(1) + `
	`
	rcp, err := scanRecipient(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrRecipientNotFound
	}
	return rcp, err
}

func (r *RecipientRepository) Save(ctx context.Context, rcp *domain.Recipient) error {
	tagsJSON, err := json.Marshal(rcp.Tags)
	if err != nil {
		return err
	}
	fieldsJSON, err := json.Marshal(rcp.Fields)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO recipients (id, email, first_name, last_name, tags, fields, engagement_score, created, modified)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `,
		        ` + placeholder(5) + `, ` + placeholder(6) + `, ` + placeholder(7) + `, ` + nowFunc(r.clock) + `, ` + nowFunc(r.clock) + `)
	`
	_, err = r.db.ExecContext(ctx, query, rcp.ID, rcp.Email, rcp.FirstName, rcp.LastName,
		string(tagsJSON), string(fieldsJSON), rcp.EngagementScore)
	return err
}

// AddTag adds the tag to the recipient's set; adding an existing tag is a
// no-op, not an error.
func (r *RecipientRepository) AddTag(ctx context.Context, id string, tag string) error {
	return r.mutateTags(ctx, id, func(tags []string) []string {
		for _, t := range tags {
			if t == tag {
				return tags
			}
		}
		return append(tags, tag)
	})
}

// RemoveTag removes the tag; removing an absent tag is a no-op.
func (r *RecipientRepository) RemoveTag(ctx context.Context, id string, tag string) error {
	return r.mutateTags(ctx, id, func(tags []string) []string {
		out := tags[:0]
		for _, t := range tags {
			if t != tag {
				out = append(out, t)
			}
		}
		return out
	})
}

func (r *RecipientRepository) mutateTags(ctx context.Context, id string, mutate func([]string) []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var tagsJSON string
	query := `SELECT tags FROM recipients WHERE id = ` + placeholder(1) + forUpdate()
	if err := tx.QueryRowContext(ctx, query, id).Scan(&tagsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrRecipientNotFound
		}
		return err
	}
	tags := []string{}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
			return fmt.Errorf("parse tags of recipient %s: %w", id, err)
		}
	}
	updated, err := json.Marshal(mutate(tags))
	if err != nil {
		return err
	}
	update := `
		UPDATE recipients
		SET tags = ` + placeholder(1) + `, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + `
	`
	if _, err := tx.ExecContext(ctx, update, string(updated), id); err != nil {
		return err
	}
	return tx.Commit()
}

// SetField sets one named field on the recipient.
func (r *RecipientRepository) SetField(ctx context.Context, id string, field string, value string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var fieldsJSON string
	query := `SELECT fields FROM recipients WHERE id = ` + placeholder(1) + forUpdate()
	if err := tx.QueryRowContext(ctx, query, id).Scan(&fieldsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrRecipientNotFound
		}
		return err
	}
	fields := map[string]string{}
	if fieldsJSON != "" {
		if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
			return fmt.Errorf("parse fields of recipient %s: %w", id, err)
		}
	}
	fields[field] = value
	updated, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	update := `
		UPDATE recipients
		SET fields = ` + placeholder(1) + `, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + `
	`
	if _, err := tx.ExecContext(ctx, update, string(updated), id); err != nil {
		return err
	}
	return tx.Commit()
}
