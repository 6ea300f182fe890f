package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"fieldops-backend/internal/models"
)

// GetAttendanceSession returns the driver's session for a shift day, or ErrNotFound
func GetAttendanceSession(db sqlx.Queryer, driverID, date string) (*models.AttendanceSession, error) {
	var doc []byte
	err := sqlx.Get(db, &doc, `SELECT document FROM attendance_sessions WHERE driver_id = $1 AND date = $2`, driverID, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance session: %w", err)
	}

	var s models.AttendanceSession
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("failed to decode attendance session: %w", err)
	}
	return &s, nil
}

// GetOpenAttendanceSession returns the driver's most recent CHECKED_IN session, or ErrNotFound
func GetOpenAttendanceSession(db sqlx.Queryer, driverID string) (*models.AttendanceSession, error) {
	var doc []byte
	err := sqlx.Get(db, &doc, `
		SELECT document FROM attendance_sessions
		WHERE driver_id = $1 AND status = 'CHECKED_IN'
		ORDER BY date DESC
		LIMIT 1
	`, driverID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open attendance session: %w", err)
	}

	var s models.AttendanceSession
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("failed to decode attendance session: %w", err)
	}
	return &s, nil
}

// ListOpenAttendanceSessions returns every CHECKED_IN session, oldest first
func ListOpenAttendanceSessions(db sqlx.Queryer) ([]models.AttendanceSession, error) {
	var docs [][]byte
	err := sqlx.Select(db, &docs, `SELECT document FROM attendance_sessions WHERE status = 'CHECKED_IN' ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list open sessions: %w", err)
	}

	sessions := make([]models.AttendanceSession, 0, len(docs))
	for _, doc := range docs {
		var s models.AttendanceSession
		if err := json.Unmarshal(doc, &s); err != nil {
			return nil, fmt.Errorf("failed to decode attendance session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// SaveAttendanceSession inserts (Version 0) or updates the session together with its events.
// Updates only succeed when the stored version still equals s.Version; on success s.Version is bumped.
func SaveAttendanceSession(db *sqlx.DB, s *models.AttendanceSession, events []models.Event) error {
	next := *s
	next.Version = s.Version + 1
	doc, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode attendance session: %w", err)
	}

	err = withTx(db, func(tx *sqlx.Tx) error {
		if s.Version == 0 {
			res, err := tx.Exec(`
				INSERT INTO attendance_sessions (id, driver_id, date, status, document, version, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (driver_id, date) DO NOTHING
			`, next.ID, next.DriverID, next.Date, next.Status, doc, next.Version, next.CreatedAt, next.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert attendance session: %w", err)
			}
			// zero rows: someone else opened the same driver-day first
			if err := expectOneRow(res); err != nil {
				return err
			}
		} else {
			res, err := tx.Exec(`
				UPDATE attendance_sessions
				SET status = $1, document = $2, version = $3, updated_at = $4
				WHERE id = $5 AND version = $6
			`, next.Status, doc, next.Version, next.UpdatedAt, next.ID, s.Version)
			if err != nil {
				return fmt.Errorf("failed to update attendance session: %w", err)
			}
			if err := expectOneRow(res); err != nil {
				return err
			}
		}
		return insertEvents(tx, events)
	})
	if err != nil {
		return err
	}

	s.Version = next.Version
	return nil
}

// GetTransportTask returns a task by id, or ErrNotFound
func GetTransportTask(db sqlx.Queryer, taskID string) (*models.TransportTask, error) {
	var doc []byte
	err := sqlx.Get(db, &doc, `SELECT document FROM transport_tasks WHERE id = $1`, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transport task: %w", err)
	}

	var t models.TransportTask
	if err := json.Unmarshal(doc, &t); err != nil {
		return nil, fmt.Errorf("failed to decode transport task: %w", err)
	}
	return &t, nil
}

// ListDriverTasks returns a driver's tasks, newest first. Completed tasks are skipped unless includeCompleted.
func ListDriverTasks(db sqlx.Queryer, driverID string, includeCompleted bool) ([]models.TransportTask, error) {
	query := `SELECT document FROM transport_tasks WHERE driver_id = $1`
	if !includeCompleted {
		query += ` AND status != 'completed'`
	}
	query += ` ORDER BY created_at DESC`

	var docs [][]byte
	if err := sqlx.Select(db, &docs, query, driverID); err != nil {
		return nil, fmt.Errorf("failed to list driver tasks: %w", err)
	}

	tasks := make([]models.TransportTask, 0, len(docs))
	for _, doc := range docs {
		var t models.TransportTask
		if err := json.Unmarshal(doc, &t); err != nil {
			return nil, fmt.Errorf("failed to decode transport task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// SaveTransportTask inserts (Version 0) or updates the task together with its events,
// with the same version check as SaveAttendanceSession
func SaveTransportTask(db *sqlx.DB, t *models.TransportTask, events []models.Event) error {
	next := t.Clone()
	next.Version = t.Version + 1
	doc, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode transport task: %w", err)
	}

	err = withTx(db, func(tx *sqlx.Tx) error {
		if t.Version == 0 {
			_, err := tx.Exec(`
				INSERT INTO transport_tasks (id, driver_id, status, document, version, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, next.ID, next.DriverID, next.Status, doc, next.Version, next.CreatedAt, next.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert transport task: %w", err)
			}
		} else {
			res, err := tx.Exec(`
				UPDATE transport_tasks
				SET status = $1, document = $2, version = $3, updated_at = $4
				WHERE id = $5 AND version = $6
			`, next.Status, doc, next.Version, next.UpdatedAt, next.ID, t.Version)
			if err != nil {
				return fmt.Errorf("failed to update transport task: %w", err)
			}
			if err := expectOneRow(res); err != nil {
				return err
			}
		}
		return insertEvents(tx, events)
	})
	if err != nil {
		return err
	}

	t.Version = next.Version
	return nil
}

func expectOneRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return ErrVersionConflict
	}
	return nil
}
