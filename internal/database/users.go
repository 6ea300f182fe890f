package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"fieldops-backend/internal/models"
)

func GetUserByEmail(db sqlx.Queryer, email string) (*models.User, error) {
	var user models.User
	err := sqlx.Get(db, &user, `SELECT * FROM users WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func GetUserByID(db sqlx.Queryer, id string) (*models.User, error) {
	var user models.User
	err := sqlx.Get(db, &user, `SELECT * FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetUserIDsByRole returns the ids of every user with the given role
func GetUserIDsByRole(db sqlx.Queryer, role string) ([]string, error) {
	var ids []string
	if err := sqlx.Select(db, &ids, `SELECT id FROM users WHERE role = $1 ORDER BY id`, role); err != nil {
		return nil, fmt.Errorf("failed to list %s users: %w", role, err)
	}
	return ids, nil
}

// InsertUser creates a user; ErrEmailTaken when the email is already registered
func InsertUser(db sqlx.Ext, user *models.User) error {
	res, err := sqlx.NamedExec(db, `
		INSERT INTO users (id, email, password, name, role, assigned_vehicle_id, created_at, updated_at)
		VALUES (:id, :email, :password, :name, :role, :assigned_vehicle_id, :created_at, :updated_at)
		ON CONFLICT (email) DO NOTHING
	`, user)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrEmailTaken
	}
	return nil
}
