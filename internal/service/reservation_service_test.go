package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"innoviahub/internal/events"
	"innoviahub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo is an in-memory Repository with the same atomicity contract as
// the sqlite store: InsertReservationIfAbsent is a single atomic
// check-and-insert guarded by the active-slot invariant.
type memRepo struct {
	mu           sync.Mutex
	nextID       int64
	reservations map[int64]*models.Reservation
	resources    map[int64]*models.Resource
}

func newMemRepo(resourceIDs ...int64) *memRepo {
	r := &memRepo{
		reservations: make(map[int64]*models.Reservation),
		resources:    make(map[int64]*models.Resource),
	}
	for _, id := range resourceIDs {
		r.resources[id] = &models.Resource{ID: id, Name: fmt.Sprintf("Resource %d", id), ResourceTypeID: 1}
	}
	return r
}

func (m *memRepo) findActiveLocked(key models.SlotKey) *models.Reservation {
	for _, r := range m.reservations {
		if r.Status == models.StatusActive && r.SlotKey() == key {
			return r
		}
	}
	return nil
}

func (m *memRepo) FindActiveReservation(_ context.Context, key models.SlotKey) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r := m.findActiveLocked(key); r != nil {
		copied := *r
		return &copied, nil
	}
	return nil, models.ErrNotFound
}

func (m *memRepo) InsertReservationIfAbsent(_ context.Context, r *models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing := m.findActiveLocked(r.SlotKey()); existing != nil {
		return models.ErrConflict
	}
	m.nextID++
	r.ID = m.nextID
	r.Status = models.StatusActive
	r.CreatedAt = time.Now()
	copied := *r
	m.reservations[r.ID] = &copied
	return nil
}

func (m *memRepo) GetReservation(_ context.Context, id int64) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (m *memRepo) UpdateReservationStatus(_ context.Context, id int64, fromStatus, toStatus string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok || r.Status != fromStatus {
		return false, nil
	}
	r.Status = toStatus
	return true, nil
}

func (m *memRepo) ListUserReservations(_ context.Context, userID string) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reservation
	for _, r := range m.reservations {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memRepo) ListReservations(_ context.Context) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reservation
	for _, r := range m.reservations {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memRepo) DeleteReservation(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reservations[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.reservations, id)
	return nil
}

func (m *memRepo) GetResource(_ context.Context, id int64) (*models.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resources[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(eventType string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, events.Event{Type: eventType, Payload: payload})
}

func (b *recordingBus) all() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.Event(nil), b.events...)
}

func newTestService(repo Repository) (*ReservationService, *recordingBus) {
	bus := &recordingBus{}
	logger := zerolog.New(io.Discard)
	svc := NewReservationService(repo, bus, nil, 5*time.Second, &logger)
	return svc, bus
}

func futureDate() string {
	return time.Now().AddDate(0, 0, 7).Format(models.DateLayout)
}

func TestReserve_Validation(t *testing.T) {
	repo := newMemRepo(1)
	svc, _ := newTestService(repo)
	ctx := context.Background()

	t.Run("UnknownResource", func(t *testing.T) {
		_, err := svc.Reserve(ctx, "user-1", 99, futureDate(), "FM")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("MalformedDate", func(t *testing.T) {
		_, err := svc.Reserve(ctx, "user-1", 1, "10-10-2025", "FM")
		assert.ErrorIs(t, err, models.ErrInvalidArgument)
	})

	t.Run("UnknownTimeslot", func(t *testing.T) {
		_, err := svc.Reserve(ctx, "user-1", 1, futureDate(), "morning")
		assert.ErrorIs(t, err, models.ErrInvalidArgument)
	})

	t.Run("PastSlot", func(t *testing.T) {
		past := time.Now().AddDate(0, 0, -2).Format(models.DateLayout)
		_, err := svc.Reserve(ctx, "user-1", 1, past, "FM")
		assert.ErrorIs(t, err, models.ErrInvalidArgument)
	})

	t.Run("MissingUser", func(t *testing.T) {
		_, err := svc.Reserve(ctx, "", 1, futureDate(), "FM")
		assert.ErrorIs(t, err, models.ErrInvalidArgument)
	})
}

type staticBlocklist map[string]bool

func (b staticBlocklist) IsBlocked(_ context.Context, userID string) (bool, error) {
	return b[userID], nil
}

func TestReserve_BlockedUser(t *testing.T) {
	repo := newMemRepo(1)
	svc, bus := newTestService(repo)
	svc.UseAccessChecker(staticBlocklist{"banned": true})
	ctx := context.Background()

	_, err := svc.Reserve(ctx, "banned", 1, futureDate(), "FM")
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Empty(t, bus.all(), "rejected reserve must not publish events")

	// Other users are unaffected.
	_, err = svc.Reserve(ctx, "user-1", 1, futureDate(), "FM")
	assert.NoError(t, err)
}

func TestReserve_CommitAndConflict(t *testing.T) {
	repo := newMemRepo(1)
	svc, bus := newTestService(repo)
	ctx := context.Background()
	date := futureDate()

	first, err := svc.Reserve(ctx, "user-1", 1, date, "FM")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, first.Status)
	assert.NotZero(t, first.ID)

	// Same slot again conflicts, regardless of requester.
	_, err = svc.Reserve(ctx, "user-2", 1, date, "FM")
	assert.ErrorIs(t, err, models.ErrConflict)

	// The other half-day slot is independent.
	_, err = svc.Reserve(ctx, "user-2", 1, date, "EF")
	assert.NoError(t, err)

	published := bus.all()
	require.Len(t, published, 2)
	assert.Equal(t, events.TypeReservationCreated, published[0].Type)
	event := published[0].Payload.(models.SlotEvent)
	assert.True(t, event.Booked)
	assert.Equal(t, first.SlotKey(), event.Key)
}

func TestReserve_ConcurrentSingleWinner(t *testing.T) {
	repo := newMemRepo(1)
	svc, bus := newTestService(repo)
	ctx := context.Background()
	date := futureDate()

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.Reserve(ctx, fmt.Sprintf("user-%d", n), 1, date, "FM")
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, models.ErrConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, successes, "exactly one concurrent reserve must win")
	assert.Equal(t, attempts-1, conflicts)
	assert.Len(t, bus.all(), 1, "only the winner publishes an event")
}

func TestCancel_Lifecycle(t *testing.T) {
	repo := newMemRepo(1)
	svc, bus := newTestService(repo)
	ctx := context.Background()
	date := futureDate()

	reservation, err := svc.Reserve(ctx, "owner", 1, date, "FM")
	require.NoError(t, err)

	t.Run("NonOwnerForbidden", func(t *testing.T) {
		err := svc.Cancel(ctx, "stranger", reservation.ID, false)
		assert.ErrorIs(t, err, models.ErrForbidden)

		stored, err := repo.GetReservation(ctx, reservation.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusActive, stored.Status, "failed cancel must leave the reservation active")
	})

	t.Run("OwnerCancels", func(t *testing.T) {
		err := svc.Cancel(ctx, "owner", reservation.ID, false)
		assert.NoError(t, err)

		published := bus.all()
		last := published[len(published)-1]
		assert.Equal(t, events.TypeReservationCanceled, last.Type)
		assert.False(t, last.Payload.(models.SlotEvent).Booked)
	})

	t.Run("SlotBookableAgainAfterCancel", func(t *testing.T) {
		_, err := svc.Reserve(ctx, "someone-else", 1, date, "FM")
		assert.NoError(t, err)
	})

	t.Run("AlreadyCanceled", func(t *testing.T) {
		err := svc.Cancel(ctx, "owner", reservation.ID, false)
		assert.ErrorIs(t, err, models.ErrInvalidState)
	})

	t.Run("NonExistent", func(t *testing.T) {
		err := svc.Cancel(ctx, "owner", 9999, false)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestCancel_AdminOverride(t *testing.T) {
	repo := newMemRepo(1)
	svc, _ := newTestService(repo)
	ctx := context.Background()

	reservation, err := svc.Reserve(ctx, "owner", 1, futureDate(), "EF")
	require.NoError(t, err)

	assert.NoError(t, svc.Cancel(ctx, "admin-user", reservation.ID, true))
}

func TestCancel_CompletedReservation(t *testing.T) {
	repo := newMemRepo(1)
	svc, _ := newTestService(repo)
	ctx := context.Background()

	reservation, err := svc.Reserve(ctx, "owner", 1, futureDate(), "FM")
	require.NoError(t, err)

	// Move the clock past the slot window; the reservation now counts as
	// completed and must not be cancellable.
	svc.SetClock(func() time.Time { return time.Now().AddDate(0, 0, 14) })

	err = svc.Cancel(ctx, "owner", reservation.ID, false)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	listed, err := svc.ListUserReservations(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, models.StatusCompleted, listed[0].Status)
}

func TestPurge(t *testing.T) {
	repo := newMemRepo(1)
	svc, bus := newTestService(repo)
	ctx := context.Background()
	date := futureDate()

	reservation, err := svc.Reserve(ctx, "owner", 1, date, "FM")
	require.NoError(t, err)

	t.Run("NonAdminForbidden", func(t *testing.T) {
		err := svc.Purge(ctx, reservation.ID, false)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("AdminPurgesActive", func(t *testing.T) {
		require.NoError(t, svc.Purge(ctx, reservation.ID, true))

		_, err := repo.GetReservation(ctx, reservation.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)

		// Purging an active reservation frees the slot.
		last := bus.all()[len(bus.all())-1]
		assert.Equal(t, events.TypeReservationCanceled, last.Type)

		_, err = svc.Reserve(ctx, "someone-else", 1, date, "FM")
		assert.NoError(t, err)
	})

	t.Run("MissingReservation", func(t *testing.T) {
		err := svc.Purge(ctx, 12345, true)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

// stallRepo parks the selected storage calls until their context expires,
// simulating a wedged database connection.
type stallRepo struct {
	*memRepo
	stallFind   bool
	stallInsert bool
	stallDelete bool
}

func (s *stallRepo) FindActiveReservation(ctx context.Context, key models.SlotKey) (*models.Reservation, error) {
	if s.stallFind {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.memRepo.FindActiveReservation(ctx, key)
}

func (s *stallRepo) InsertReservationIfAbsent(ctx context.Context, r *models.Reservation) error {
	if s.stallInsert {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.memRepo.InsertReservationIfAbsent(ctx, r)
}

func (s *stallRepo) DeleteReservation(ctx context.Context, id int64) error {
	if s.stallDelete {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.memRepo.DeleteReservation(ctx, id)
}

func newTimeoutService(repo Repository) (*ReservationService, *recordingBus) {
	bus := &recordingBus{}
	logger := zerolog.New(io.Discard)
	svc := NewReservationService(repo, bus, nil, 50*time.Millisecond, &logger)
	return svc, bus
}

func TestReserve_StorageTimeout(t *testing.T) {
	ctx := context.Background()
	date := futureDate()

	t.Run("LookupStalls", func(t *testing.T) {
		repo := &stallRepo{memRepo: newMemRepo(1), stallFind: true}
		svc, bus := newTimeoutService(repo)

		_, err := svc.Reserve(ctx, "user-1", 1, date, "FM")
		assert.ErrorIs(t, err, models.ErrTimeout)

		stored, err := repo.memRepo.ListReservations(ctx)
		require.NoError(t, err)
		assert.Empty(t, stored, "timed-out reserve must not commit")
		assert.Empty(t, bus.all(), "timed-out reserve must not publish events")
	})

	t.Run("InsertStalls", func(t *testing.T) {
		repo := &stallRepo{memRepo: newMemRepo(1), stallInsert: true}
		svc, bus := newTimeoutService(repo)

		_, err := svc.Reserve(ctx, "user-1", 1, date, "FM")
		assert.ErrorIs(t, err, models.ErrTimeout)

		stored, err := repo.memRepo.ListReservations(ctx)
		require.NoError(t, err)
		assert.Empty(t, stored)
		assert.Empty(t, bus.all())
	})

	t.Run("SlotStaysBookable", func(t *testing.T) {
		mem := newMemRepo(1)
		repo := &stallRepo{memRepo: mem, stallInsert: true}
		svc, _ := newTimeoutService(repo)

		_, err := svc.Reserve(ctx, "user-1", 1, date, "FM")
		require.ErrorIs(t, err, models.ErrTimeout)

		// The same slot succeeds once storage recovers.
		repo.stallInsert = false
		_, err = svc.Reserve(ctx, "user-2", 1, date, "FM")
		assert.NoError(t, err)
	})
}

func TestPurge_StorageTimeout(t *testing.T) {
	ctx := context.Background()
	mem := newMemRepo(1)

	svc, _ := newTestService(mem)
	reservation, err := svc.Reserve(ctx, "owner", 1, futureDate(), "FM")
	require.NoError(t, err)

	stalled, bus := newTimeoutService(&stallRepo{memRepo: mem, stallDelete: true})
	err = stalled.Purge(ctx, reservation.ID, true)
	assert.ErrorIs(t, err, models.ErrTimeout)

	stored, err := mem.GetReservation(ctx, reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, stored.Status, "timed-out purge must leave the reservation intact")
	assert.Empty(t, bus.all())
}

func TestReserve_RoundTrip(t *testing.T) {
	repo := newMemRepo(2)
	svc, _ := newTestService(repo)
	ctx := context.Background()
	date := futureDate()

	reservation, err := svc.Reserve(ctx, "user-1", 2, date, "FM")
	require.NoError(t, err)

	found, err := repo.FindActiveReservation(ctx, reservation.SlotKey())
	require.NoError(t, err)
	assert.Equal(t, reservation.ID, found.ID)
	assert.Equal(t, models.StatusActive, found.Status)

	require.NoError(t, svc.Cancel(ctx, "user-1", reservation.ID, false))

	_, err = repo.FindActiveReservation(ctx, reservation.SlotKey())
	assert.ErrorIs(t, err, models.ErrNotFound)
}
