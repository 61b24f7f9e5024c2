package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"innoviahub/internal/models"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// FindActiveReservation returns the active reservation holding the slot,
// or models.ErrNotFound when the slot is free.
func (db *DB) FindActiveReservation(ctx context.Context, key models.SlotKey) (*models.Reservation, error) {
	var r models.Reservation
	err := db.QueryRowContext(ctx, `
		SELECT id, resource_id, user_id, date, timeslot, status, created_at
		FROM reservations
		WHERE resource_id = ? AND date(date) = ? AND timeslot = ? AND status = 'active'`,
		key.ResourceID, key.Date, string(key.Timeslot),
	).Scan(&r.ID, &r.ResourceID, &r.UserID, &r.Date, &r.Timeslot, &r.Status, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find active reservation: %w", err)
	}
	return &r, nil
}

// InsertReservationIfAbsent inserts the reservation unless the slot is
// already held. The unique active-slot index makes the check-and-insert a
// single atomic statement; a constraint violation means a concurrent
// request won the slot and is reported as models.ErrConflict.
func (db *DB) InsertReservationIfAbsent(ctx context.Context, r *models.Reservation) error {
	now := time.Now()
	result, err := db.ExecContext(ctx, `
		INSERT INTO reservations (resource_id, user_id, date, timeslot, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ResourceID, r.UserID, r.Date, string(r.Timeslot), models.StatusActive, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrConflict
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return models.ErrTimeout
		}
		return fmt.Errorf("insert reservation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last id: %w", err)
	}
	r.ID = id
	r.Status = models.StatusActive
	r.CreatedAt = now
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	// Fallback for wrapped driver errors.
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

// GetReservation returns a reservation by ID.
func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	var r models.Reservation
	err := db.QueryRowContext(ctx, `
		SELECT id, resource_id, user_id, date, timeslot, status, created_at
		FROM reservations WHERE id = ?`,
		id,
	).Scan(&r.ID, &r.ResourceID, &r.UserID, &r.Date, &r.Timeslot, &r.Status, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return &r, nil
}

// UpdateReservationStatus transitions a reservation out of its current
// status. Returns false when the row was not in fromStatus anymore, so a
// concurrent transition never silently double-applies.
func (db *DB) UpdateReservationStatus(ctx context.Context, id int64, fromStatus, toStatus string) (bool, error) {
	result, err := db.ExecContext(ctx, `
		UPDATE reservations SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		toStatus, time.Now(), id, fromStatus,
	)
	if err != nil {
		return false, fmt.Errorf("update reservation status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ListUserReservations returns all reservations owned by the user, newest first.
func (db *DB) ListUserReservations(ctx context.Context, userID string) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, resource_id, user_id, date, timeslot, status, created_at
		FROM reservations WHERE user_id = ?
		ORDER BY date DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list user reservations: %w", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

// ListReservations returns every reservation, newest first (admin view).
func (db *DB) ListReservations(ctx context.Context) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, resource_id, user_id, date, timeslot, status, created_at
		FROM reservations ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

// ListUpcomingReservations returns active reservations on days inside the
// window that have not had a reminder sent. The caller narrows further by
// slot start time; days are the finest granularity stored here.
func (db *DB) ListUpcomingReservations(ctx context.Context, from, until time.Time) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, resource_id, user_id, date, timeslot, status, created_at
		FROM reservations
		WHERE status = 'active' AND reminder_sent = 0
			AND date(date) >= ? AND date(date) <= ?
		ORDER BY date, id`,
		from.Format(models.DateLayout), until.Format(models.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("list upcoming reservations: %w", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

// MarkReminderSent flips the reminder flag. Returns false when the flag was
// already set, so concurrent sweeps never double-send.
func (db *DB) MarkReminderSent(ctx context.Context, id int64) (bool, error) {
	result, err := db.ExecContext(ctx, `
		UPDATE reservations SET reminder_sent = 1, updated_at = ?
		WHERE id = ? AND reminder_sent = 0`,
		time.Now(), id,
	)
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// DeleteReservation physically removes a reservation. Administrative purge
// only; normal lifecycle never deletes rows.
func (db *DB) DeleteReservation(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
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

func scanReservations(rows *sql.Rows) ([]models.Reservation, error) {
	var out []models.Reservation
	for rows.Next() {
		var r models.Reservation
		if err := rows.Scan(&r.ID, &r.ResourceID, &r.UserID, &r.Date, &r.Timeslot, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
