package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"fieldops-backend/internal/models"
)

// UpsertFCMToken registers a device token; a token moving to another user is reassigned
func UpsertFCMToken(db sqlx.Ext, token *models.FCMToken) error {
	if token.DeviceType == "" {
		token.DeviceType = "android"
	}
	_, err := sqlx.NamedExec(db, `
		INSERT INTO fcm_tokens (user_id, token, device_type, created_at, updated_at)
		VALUES (:user_id, :token, :device_type, :created_at, :updated_at)
		ON CONFLICT (token) DO UPDATE SET
			user_id = excluded.user_id,
			device_type = excluded.device_type,
			updated_at = excluded.updated_at
	`, token)
	if err != nil {
		return fmt.Errorf("failed to register FCM token: %w", err)
	}
	return nil
}

// GetFCMTokensForUsers returns every registered token belonging to any of userIDs
func GetFCMTokensForUsers(db *sqlx.DB, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT token FROM fcm_tokens WHERE user_id IN (?) ORDER BY updated_at DESC`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build token query: %w", err)
	}

	var tokens []string
	if err := db.Select(&tokens, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get FCM tokens: %w", err)
	}
	return tokens, nil
}

// DeleteFCMTokens forgets tokens that FCM no longer accepts
func DeleteFCMTokens(db *sqlx.DB, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM fcm_tokens WHERE token IN (?)`, tokens)
	if err != nil {
		return fmt.Errorf("failed to build token delete: %w", err)
	}
	if _, err := db.Exec(db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to delete FCM tokens: %w", err)
	}
	return nil
}
