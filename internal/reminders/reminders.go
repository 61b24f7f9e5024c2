// Package reminders notifies users shortly before their booked slot
// starts. Delivery is at-most-once: the sent flag is flipped before the
// publish, so a lost notice is never retried across restarts. Clients
// reconcile from their bookings list.
package reminders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"innoviahub/internal/metrics"
	"innoviahub/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Notice is the reminder payload delivered to the user's notification
// channel.
type Notice struct {
	ReservationID int64           `json:"reservation_id"`
	UserID        string          `json:"user_id"`
	ResourceID    int64           `json:"resource_id"`
	Date          string          `json:"date"`
	Timeslot      models.Timeslot `json:"timeslot"`
	StartsAt      time.Time       `json:"starts_at"`
}

// Store is the storage surface the reminder sweep reads and updates.
type Store interface {
	ListUpcomingReservations(ctx context.Context, from, until time.Time) ([]models.Reservation, error)
	// MarkReminderSent must be a compare-and-set on the sent flag so two
	// sweeps never claim the same reservation.
	MarkReminderSent(ctx context.Context, id int64) (bool, error)
}

// Publisher delivers notices to users.
type Publisher interface {
	PublishReminder(ctx context.Context, notice Notice) error
}

// Config holds reminder sweep settings.
type Config struct {
	// CheckInterval is how often to sweep for upcoming slots.
	CheckInterval time.Duration
	// LeadTime is how far before the slot start a reminder fires.
	LeadTime time.Duration
	// MaxConcurrent limits parallel publishes per sweep.
	MaxConcurrent int
	// SendsPerSec throttles outbound notices.
	SendsPerSec float64
}

// DefaultConfig returns the default sweep settings.
func DefaultConfig() Config {
	return Config{
		CheckInterval: 5 * time.Minute,
		LeadTime:      time.Hour,
		MaxConcurrent: 10,
		SendsPerSec:   20,
	}
}

var retryDelays = []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}

// Service runs the periodic reminder sweep.
type Service struct {
	config    Config
	store     Store
	publisher Publisher
	limiter   *rate.Limiter
	now       func() time.Time
	logger    *zerolog.Logger
}

// NewService constructs the reminder service.
func NewService(config Config, store Store, publisher Publisher, logger *zerolog.Logger) *Service {
	if config.CheckInterval <= 0 {
		config.CheckInterval = 5 * time.Minute
	}
	if config.LeadTime <= 0 {
		config.LeadTime = time.Hour
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	if config.SendsPerSec <= 0 {
		config.SendsPerSec = 20
	}
	return &Service{
		config:    config,
		store:     store,
		publisher: publisher,
		limiter:   rate.NewLimiter(rate.Limit(config.SendsPerSec), 1),
		now:       time.Now,
		logger:    logger,
	}
}

// SetClock overrides the time source (tests).
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Run sweeps immediately, then on every tick until ctx is done.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info().
		Dur("check_interval", s.config.CheckInterval).
		Dur("lead_time", s.config.LeadTime).
		Msg("reminder service started")

	s.Sweep(ctx)

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("reminder service stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep finds reservations whose slot starts within the lead time and
// publishes one reminder each.
func (s *Service) Sweep(ctx context.Context) {
	now := s.now()
	// The window spans a day boundary when sweeping near midnight.
	reservations, err := s.store.ListUpcomingReservations(ctx, now, now.Add(s.config.LeadTime))
	if err != nil {
		s.logger.Error().Err(err).Msg("list upcoming reservations")
		return
	}

	due := reservations[:0]
	for _, r := range reservations {
		start, _ := r.Timeslot.Window(r.Date)
		if start.After(now) && start.Sub(now) <= s.config.LeadTime {
			due = append(due, r)
		}
	}
	if len(due) == 0 {
		return
	}

	s.logger.Debug().Int("count", len(due)).Msg("reservations due for reminders")

	sem := make(chan struct{}, s.config.MaxConcurrent)
	var wg sync.WaitGroup
	for _, r := range due {
		claimed, err := s.store.MarkReminderSent(ctx, r.ID)
		if err != nil {
			s.logger.Error().Err(err).Int64("reservation", r.ID).Msg("claim reminder")
			continue
		}
		if !claimed {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(r models.Reservation) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.send(ctx, r); err != nil {
				metrics.IncReminderFailed()
				s.logger.Error().Err(err).
					Int64("reservation", r.ID).Str("user", r.UserID).
					Msg("send reminder")
				return
			}
			metrics.IncReminderSent()
		}(r)
	}
	wg.Wait()
}

// send publishes the notice with rate limiting and bounded retries.
func (s *Service) send(ctx context.Context, r models.Reservation) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	start, _ := r.Timeslot.Window(r.Date)
	notice := Notice{
		ReservationID: r.ID,
		UserID:        r.UserID,
		ResourceID:    r.ResourceID,
		Date:          r.Date.Format(models.DateLayout),
		Timeslot:      r.Timeslot,
		StartsAt:      start,
	}

	var lastErr error
	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		if lastErr = s.publisher.PublishReminder(ctx, notice); lastErr == nil {
			s.logger.Info().
				Int64("reservation", r.ID).Str("user", r.UserID).
				Time("starts_at", start).Msg("reminder sent")
			return nil
		}
		if attempt == len(retryDelays) {
			break
		}
		select {
		case <-time.After(retryDelays[attempt]):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
