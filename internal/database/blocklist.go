package database

import (
	"context"
	"fmt"

	"innoviahub/internal/models"
)

// IsBlocked reports whether the user is on the booking blocklist.
func (db *DB) IsBlocked(ctx context.Context, userID string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blocked_users WHERE user_id = ?`, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check blocklist: %w", err)
	}
	return count > 0, nil
}

// BlockUser adds or refreshes a blocklist entry.
func (db *DB) BlockUser(ctx context.Context, userID, reason, blockedBy string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO blocked_users (user_id, reason, blocked_by)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET reason = excluded.reason, blocked_by = excluded.blocked_by`,
		userID, reason, blockedBy,
	)
	if err != nil {
		return fmt.Errorf("block user: %w", err)
	}
	return nil
}

// UnblockUser removes a blocklist entry.
func (db *DB) UnblockUser(ctx context.Context, userID string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM blocked_users WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("unblock user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListBlockedUsers returns every blocklist entry, newest first.
func (db *DB) ListBlockedUsers(ctx context.Context) ([]models.BlockedUser, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id, reason, blocked_by, created_at
		FROM blocked_users ORDER BY created_at DESC, user_id`)
	if err != nil {
		return nil, fmt.Errorf("list blocked users: %w", err)
	}
	defer rows.Close()

	var out []models.BlockedUser
	for rows.Next() {
		var b models.BlockedUser
		if err := rows.Scan(&b.UserID, &b.Reason, &b.BlockedBy, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
