package service

import (
	"context"
	"time"

	"innoviahub/internal/models"
)

// Repository is the storage surface the reservation engine depends on.
// The engine only needs these signatures, not any particular engine;
// InsertReservationIfAbsent must be atomic with respect to the active-slot
// invariant.
type Repository interface {
	FindActiveReservation(ctx context.Context, key models.SlotKey) (*models.Reservation, error)
	InsertReservationIfAbsent(ctx context.Context, r *models.Reservation) error
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id int64, fromStatus, toStatus string) (bool, error)
	ListUserReservations(ctx context.Context, userID string) ([]models.Reservation, error)
	ListReservations(ctx context.Context) ([]models.Reservation, error)
	DeleteReservation(ctx context.Context, id int64) error
	GetResource(ctx context.Context, id int64) (*models.Resource, error)
}

// AccessChecker gates booking attempts on the blocklist.
type AccessChecker interface {
	IsBlocked(ctx context.Context, userID string) (bool, error)
}

// CacheInvalidator drops derived availability caches after commits.
type CacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// Clock is injected so lifecycle checks are testable.
type Clock func() time.Time
