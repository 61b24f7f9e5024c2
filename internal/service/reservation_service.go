package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"innoviahub/internal/events"
	"innoviahub/internal/metrics"
	"innoviahub/internal/models"

	"github.com/rs/zerolog"
)

// EventPublisher decouples the engine from the notifier fan-out.
type EventPublisher interface {
	Publish(eventType string, payload any)
}

// ReservationService is the booking reservation engine and lifecycle
// manager. It decides whether a (resource, date, timeslot) request may be
// granted, enforces single-winner semantics per slot key, persists the
// outcome and publishes slot events after commit.
type ReservationService struct {
	repo          Repository
	bus           EventPublisher
	cache         CacheInvalidator
	access        AccessChecker
	locks         *slotLocks
	commitTimeout time.Duration
	now           Clock
	logger        *zerolog.Logger
}

// NewReservationService constructs the engine. cache may be nil.
func NewReservationService(repo Repository, bus EventPublisher, cache CacheInvalidator, commitTimeout time.Duration, logger *zerolog.Logger) *ReservationService {
	if commitTimeout <= 0 {
		commitTimeout = 5 * time.Second
	}
	return &ReservationService{
		repo:          repo,
		bus:           bus,
		cache:         cache,
		locks:         newSlotLocks(),
		commitTimeout: commitTimeout,
		now:           time.Now,
		logger:        logger,
	}
}

// SetClock overrides the time source (tests).
func (s *ReservationService) SetClock(now Clock) { s.now = now }

// UseAccessChecker enables blocklist enforcement on Reserve.
func (s *ReservationService) UseAccessChecker(access AccessChecker) { s.access = access }

// Reserve validates and commits a booking for the given slot. Exactly one
// of any set of concurrent calls for the same slot key succeeds; the rest
// fail with models.ErrConflict.
func (s *ReservationService) Reserve(ctx context.Context, userID string, resourceID int64, dateStr, slotStr string) (*models.Reservation, error) {
	if userID == "" {
		metrics.IncReservationRejected("invalid_argument")
		return nil, fmt.Errorf("%w: user id is required", models.ErrInvalidArgument)
	}

	if s.access != nil {
		blocked, err := s.access.IsBlocked(ctx, userID)
		if err != nil {
			return nil, err
		}
		if blocked {
			metrics.IncReservationRejected("blocked")
			return nil, fmt.Errorf("%w: user is blocked from booking", models.ErrForbidden)
		}
	}

	if _, err := s.repo.GetResource(ctx, resourceID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			metrics.IncReservationRejected("not_found")
			return nil, fmt.Errorf("%w: resource %d", models.ErrNotFound, resourceID)
		}
		return nil, err
	}

	date, slot, err := s.validateSlot(dateStr, slotStr)
	if err != nil {
		metrics.IncReservationRejected("invalid_argument")
		return nil, err
	}

	key := models.NewSlotKey(resourceID, date, slot)

	// Conflict check and insert are one atomic unit per slot key. The
	// unique active-slot index in storage backstops the same invariant.
	unlock := s.locks.Lock(key.String())
	defer unlock()

	commitCtx, cancel := context.WithTimeout(ctx, s.commitTimeout)
	defer cancel()

	existing, err := s.repo.FindActiveReservation(commitCtx, key)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, s.mapStorageErr(err)
	}
	if existing != nil {
		metrics.IncReservationRejected("conflict")
		return nil, fmt.Errorf("%w: slot %s", models.ErrConflict, key)
	}

	reservation := &models.Reservation{
		ResourceID: resourceID,
		UserID:     userID,
		Date:       date,
		Timeslot:   slot,
	}
	if err := s.repo.InsertReservationIfAbsent(commitCtx, reservation); err != nil {
		if errors.Is(err, models.ErrConflict) {
			metrics.IncReservationRejected("conflict")
			return nil, fmt.Errorf("%w: slot %s", models.ErrConflict, key)
		}
		return nil, s.mapStorageErr(err)
	}

	metrics.IncReservationCreated()
	s.afterCommit(ctx, models.SlotEvent{Key: key, Booked: true, ReservationID: reservation.ID}, events.TypeReservationCreated)

	s.logger.Info().Str("slot", key.String()).Str("user", userID).
		Int64("reservation", reservation.ID).Msg("reservation created")
	return reservation, nil
}

// Cancel transitions an active reservation to canceled. The requester
// must own the reservation or be an admin; reservations whose slot window
// has elapsed count as completed and are never cancellable.
func (s *ReservationService) Cancel(ctx context.Context, requesterID string, reservationID int64, isAdmin bool) error {
	reservation, err := s.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return err
	}

	if reservation.UserID != requesterID && !isAdmin {
		return fmt.Errorf("%w: reservation %d belongs to another user", models.ErrForbidden, reservationID)
	}
	if reservation.Status != models.StatusActive {
		return fmt.Errorf("%w: reservation is %s", models.ErrInvalidState, reservation.Status)
	}
	if reservation.Elapsed(s.now()) {
		return fmt.Errorf("%w: reservation is completed", models.ErrInvalidState)
	}

	key := reservation.SlotKey()
	unlock := s.locks.Lock(key.String())
	defer unlock()

	commitCtx, cancel := context.WithTimeout(ctx, s.commitTimeout)
	defer cancel()

	ok, err := s.repo.UpdateReservationStatus(commitCtx, reservationID, models.StatusActive, models.StatusCanceled)
	if err != nil {
		return s.mapStorageErr(err)
	}
	if !ok {
		// Lost a race with another transition.
		return fmt.Errorf("%w: reservation is no longer active", models.ErrInvalidState)
	}

	metrics.IncReservationCanceled()
	s.afterCommit(ctx, models.SlotEvent{Key: key, Booked: false, ReservationID: reservationID}, events.TypeReservationCanceled)

	s.logger.Info().Str("slot", key.String()).Int64("reservation", reservationID).
		Bool("admin", isAdmin).Msg("reservation canceled")
	return nil
}

// Purge physically deletes a reservation. Distinct destructive admin
// operation; the normal lifecycle only flips statuses.
func (s *ReservationService) Purge(ctx context.Context, reservationID int64, isAdmin bool) error {
	if !isAdmin {
		return fmt.Errorf("%w: purge requires admin", models.ErrForbidden)
	}

	reservation, err := s.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return err
	}

	key := reservation.SlotKey()
	unlock := s.locks.Lock(key.String())
	defer unlock()

	commitCtx, cancel := context.WithTimeout(ctx, s.commitTimeout)
	defer cancel()

	if err := s.repo.DeleteReservation(commitCtx, reservationID); err != nil {
		return s.mapStorageErr(err)
	}

	if reservation.Status == models.StatusActive {
		// Purging an active reservation frees its slot.
		s.afterCommit(ctx, models.SlotEvent{Key: key, Booked: false, ReservationID: reservationID}, events.TypeReservationCanceled)
	}

	s.logger.Info().Int64("reservation", reservationID).Msg("reservation purged")
	return nil
}

// ListUserReservations returns the user's reservations with elapsed
// active slots reported as completed.
func (s *ReservationService) ListUserReservations(ctx context.Context, userID string) ([]models.Reservation, error) {
	reservations, err := s.repo.ListUserReservations(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.withEffectiveStatus(reservations), nil
}

// ListReservations returns every reservation (admin view).
func (s *ReservationService) ListReservations(ctx context.Context) ([]models.Reservation, error) {
	reservations, err := s.repo.ListReservations(ctx)
	if err != nil {
		return nil, err
	}
	return s.withEffectiveStatus(reservations), nil
}

func (s *ReservationService) withEffectiveStatus(reservations []models.Reservation) []models.Reservation {
	now := s.now()
	for i := range reservations {
		reservations[i].Status = reservations[i].EffectiveStatus(now)
	}
	return reservations
}

func (s *ReservationService) validateSlot(dateStr, slotStr string) (time.Time, models.Timeslot, error) {
	date, err := time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: invalid date %q; expected YYYY-MM-DD", models.ErrInvalidArgument, dateStr)
	}

	slot, err := models.ParseTimeslot(slotStr)
	if err != nil {
		return time.Time{}, "", err
	}

	_, end := slot.Window(date)
	if end.Before(s.now()) {
		return time.Time{}, "", fmt.Errorf("%w: slot is in the past", models.ErrInvalidArgument)
	}
	return date, slot, nil
}

// afterCommit runs the post-commit fan-out: cache invalidation and event
// publication. Still inside the slot's critical section, so observers see
// a key's transitions in commit order; handlers must not block.
func (s *ReservationService) afterCommit(ctx context.Context, event models.SlotEvent, eventType string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	s.bus.Publish(eventType, event)
}

func (s *ReservationService) mapStorageErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrTimeout, err)
	}
	return err
}
