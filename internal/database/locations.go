package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"fieldops-backend/internal/models"
)

// UpsertDriverLocation stores the driver's latest position (exactly one row per driver)
func UpsertDriverLocation(db sqlx.Queryer, loc *models.DriverLocation, now int64) error {
	err := db.QueryRowx(`
		INSERT INTO driver_current_location (
			driver_id, latitude, longitude, heading, speed, accuracy, timestamp, is_connected, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8)
		ON CONFLICT (driver_id)
		DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			heading = EXCLUDED.heading,
			speed = EXCLUDED.speed,
			accuracy = EXCLUDED.accuracy,
			timestamp = EXCLUDED.timestamp,
			is_connected = TRUE,
			updated_at = EXCLUDED.updated_at
		RETURNING updated_at
	`, loc.DriverID, loc.Latitude, loc.Longitude, loc.Heading, loc.Speed, loc.Accuracy, loc.Timestamp, now).Scan(&loc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save driver location: %w", err)
	}
	return nil
}

// GetDriverLocation returns the last stored position, or ErrNotFound
func GetDriverLocation(db sqlx.Queryer, driverID string) (*models.DriverLocation, error) {
	var loc models.DriverLocation
	err := sqlx.Get(db, &loc, `
		SELECT driver_id, latitude, longitude, heading, speed, accuracy, timestamp, updated_at
		FROM driver_current_location
		WHERE driver_id = $1
	`, driverID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get driver location: %w", err)
	}
	return &loc, nil
}

// MarkDriverDisconnected keeps the last position but flags the driver as offline.
// updated_at is left alone so the position still ages out.
func MarkDriverDisconnected(db sqlx.Execer, driverID string) error {
	_, err := db.Exec(`UPDATE driver_current_location SET is_connected = FALSE WHERE driver_id = $1`, driverID)
	if err != nil {
		return fmt.Errorf("failed to mark driver disconnected: %w", err)
	}
	return nil
}
