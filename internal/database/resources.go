package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"innoviahub/internal/models"
)

// ListResources returns active resources in catalog order, with IsBooked
// derived from active reservations for the given day.
func (db *DB) ListResources(ctx context.Context, date time.Time) ([]models.Resource, error) {
	day := date.Format(models.DateLayout)
	rows, err := db.QueryContext(ctx, `
		SELECT r.id, r.name, r.resource_type_id,
		       EXISTS (
		           SELECT 1 FROM reservations b
		           WHERE b.resource_id = r.id AND date(b.date) = ? AND b.status = 'active'
		       ) AS is_booked
		FROM resources r
		WHERE r.is_active = 1
		ORDER BY r.sort_order, r.id`,
		day,
	)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var resources []models.Resource
	for rows.Next() {
		var r models.Resource
		if err := rows.Scan(&r.ID, &r.Name, &r.ResourceTypeID, &r.IsBooked); err != nil {
			return nil, err
		}
		resources = append(resources, r)
	}
	return resources, rows.Err()
}

// GetResource returns a resource by ID, active or not.
func (db *DB) GetResource(ctx context.Context, id int64) (*models.Resource, error) {
	var r models.Resource
	err := db.QueryRowContext(ctx,
		`SELECT id, name, resource_type_id FROM resources WHERE id = ?`, id,
	).Scan(&r.ID, &r.Name, &r.ResourceTypeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	return &r, nil
}

// SeedResources inserts resource types and resources if missing. Used at
// startup so a fresh database is immediately bookable.
func (db *DB) SeedResources(ctx context.Context, types []models.ResourceType, resources []models.Resource) error {
	for _, t := range types {
		if _, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO resource_types (id, name) VALUES (?, ?)`,
			t.ID, t.Name,
		); err != nil {
			return fmt.Errorf("seed resource type %q: %w", t.Name, err)
		}
	}
	for i, r := range resources {
		if _, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO resources (name, resource_type_id, sort_order) VALUES (?, ?, ?)`,
			r.Name, r.ResourceTypeID, i,
		); err != nil {
			return fmt.Errorf("seed resource %q: %w", r.Name, err)
		}
	}
	return nil
}
