package database

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"fieldops-backend/internal/models"
)

// EventFilter narrows ListEvents. Zero values mean "any".
type EventFilter struct {
	TaskID   string
	DriverID string
	Since    int64
	Limit    int
}

func insertEvents(tx *sqlx.Tx, events []models.Event) error {
	for _, e := range events {
		env, err := models.NewEnvelope(e)
		if err != nil {
			return fmt.Errorf("failed to encode %s event: %w", e.Type(), err)
		}
		_, err = tx.NamedExec(`
			INSERT INTO domain_events (id, type, task_id, driver_id, occurred_at, data)
			VALUES (:id, :type, :task_id, :driver_id, :occurred_at, :data)
		`, env)
		if err != nil {
			return fmt.Errorf("failed to insert %s event: %w", e.Type(), err)
		}
	}
	return nil
}

// ListEvents returns stored envelopes oldest first
func ListEvents(db sqlx.Queryer, f EventFilter) ([]models.EventEnvelope, error) {
	var (
		clauses []string
		args    []interface{}
	)
	if f.TaskID != "" {
		args = append(args, f.TaskID)
		clauses = append(clauses, fmt.Sprintf("task_id = $%d", len(args)))
	}
	if f.DriverID != "" {
		args = append(args, f.DriverID)
		clauses = append(clauses, fmt.Sprintf("driver_id = $%d", len(args)))
	}
	if f.Since > 0 {
		args = append(args, f.Since)
		clauses = append(clauses, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}

	query := `SELECT id, type, task_id, driver_id, occurred_at, data FROM domain_events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY occurred_at ASC, id ASC"

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	envelopes := []models.EventEnvelope{}
	if err := sqlx.Select(db, &envelopes, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return envelopes, nil
}
