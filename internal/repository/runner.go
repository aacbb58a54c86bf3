package repository

import (
	"database/sql"
	"strings"
	"time"

	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
)

// RunnerRepository provides persistence for the runners table.
type RunnerRepository struct {
	db *sql.DB
}

func NewRunnerRepository(db *sql.DB) *RunnerRepository {
	return &RunnerRepository{db: db}
}

// Save inserts a new runner row and returns its ID.
func (r *RunnerRepository) Save(rn *domain.Runner) (int64, error) {
	started := rn.Started
	if started.IsZero() {
		started = time.Now()
	}
	lastActive := rn.LastActive
	if lastActive.IsZero() {
		lastActive = started
	}
	vals := []interface{}{rn.Name, formatDateInDatabase(started), formatDateInDatabase(lastActive)}
	pps := []string{placeholder(1), placeholder(2), placeholder(3)}
	base := `INSERT INTO runners (name, started, last_active) VALUES (` + strings.Join(pps, ", ") + `)`
	if supportsReturning() {
		query := base + " RETURNING id"
		if err := r.db.QueryRow(query, vals...).Scan(&rn.ID); err != nil {
			return 0, err
		}
	} else {
		res, err := r.db.Exec(base, vals...)
		if err != nil {
			return 0, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}
		rn.ID = id
	}
	rn.Started = started
	rn.LastActive = lastActive
	return rn.ID, nil
}

// UpdateLastActive sets last_active for the runner id to the provided timestamp.
func (r *RunnerRepository) UpdateLastActive(id int64, ts time.Time) error {
	query := `UPDATE runners SET last_active = ` + placeholder(1) + ` WHERE id = ` + placeholder(2)
	_, err := r.db.Exec(query, formatDateInDatabase(ts), id)
	return err
}

// RunnersByLastActive returns runners ordered by most recent heartbeat.
func (r *RunnerRepository) RunnersByLastActive(limit int) ([]*domain.Runner, error) {
	query := `
		SELECT id, name, started, last_active
		FROM runners
		ORDER BY last_active DESC
		LIMIT ` + placeholder(1) + `
	`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runners []*domain.Runner
	for rows.Next() {
		var rn domain.Runner
		if err := rows.Scan(&rn.ID, &rn.Name, &rn.Started, &rn.LastActive); err != nil {
			return nil, err
		}
		runners = append(runners, &rn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runners, nil
}
