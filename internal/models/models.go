package models

import (
	"errors"
	"fmt"
	"time"
)

// Per-request failure kinds. Callers classify with errors.Is; the HTTP
// layer maps them to status codes.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrConflict          = errors.New("slot already booked")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidState      = errors.New("invalid reservation state")
	ErrTimeout           = errors.New("storage commit timed out")
	ErrOracleUnavailable = errors.New("oracle unavailable")
)

// Timeslot is one of the two fixed half-day booking slots.
// The codes are the only values the assistant oracle is allowed to emit.
type Timeslot string

const (
	TimeslotMorning   Timeslot = "FM" // 08:00-12:00
	TimeslotAfternoon Timeslot = "EF" // 12:00-16:00
)

const DateLayout = "2006-01-02"

// ParseTimeslot validates a timeslot code.
func ParseTimeslot(s string) (Timeslot, error) {
	switch Timeslot(s) {
	case TimeslotMorning, TimeslotAfternoon:
		return Timeslot(s), nil
	}
	return "", fmt.Errorf("%w: unknown timeslot %q", ErrInvalidArgument, s)
}

// Window returns the concrete start and end of the slot on the given day.
func (t Timeslot) Window(date time.Time) (start, end time.Time) {
	y, m, d := date.Date()
	switch t {
	case TimeslotMorning:
		start = time.Date(y, m, d, 8, 0, 0, 0, date.Location())
	default:
		start = time.Date(y, m, d, 12, 0, 0, 0, date.Location())
	}
	return start, start.Add(4 * time.Hour)
}

// ResourceType categorizes bookable resources (desk, room, equipment).
type ResourceType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Resource is a bookable physical resource. IsBooked is derived from
// active reservations when listing, never stored.
type Resource struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	ResourceTypeID int64  `json:"resource_type_id"`
	IsBooked       bool   `json:"is_booked"`
}

// Reservation statuses.
const (
	StatusActive    = "active"
	StatusCanceled  = "canceled"
	StatusCompleted = "completed"
)

// Reservation occupies one resource for one half-day slot.
type Reservation struct {
	ID         int64     `json:"id"`
	ResourceID int64     `json:"resource_id"`
	UserID     string    `json:"user_id"`
	Date       time.Time `json:"date"` // calendar day, time part zero
	Timeslot   Timeslot  `json:"timeslot"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// SlotKey returns the conflict/locking identity of the reservation.
func (r *Reservation) SlotKey() SlotKey {
	return NewSlotKey(r.ResourceID, r.Date, r.Timeslot)
}

// Elapsed reports whether the reservation's slot window is fully in the
// past. Elapsed active reservations count as completed; this is derived
// at request time, never by a background sweep.
func (r *Reservation) Elapsed(now time.Time) bool {
	_, end := r.Timeslot.Window(r.Date)
	return end.Before(now)
}

// EffectiveStatus folds slot elapsement into the stored status.
func (r *Reservation) EffectiveStatus(now time.Time) string {
	if r.Status == StatusActive && r.Elapsed(now) {
		return StatusCompleted
	}
	return r.Status
}

// SlotKey is the composite identity (resource, date, timeslot) governing
// conflict exclusivity. Derived, never stored.
type SlotKey struct {
	ResourceID int64    `json:"resource_id"`
	Date       string   `json:"date"` // YYYY-MM-DD
	Timeslot   Timeslot `json:"timeslot"`
}

// NewSlotKey derives the key from a resource and a calendar day.
func NewSlotKey(resourceID int64, date time.Time, slot Timeslot) SlotKey {
	return SlotKey{ResourceID: resourceID, Date: date.Format(DateLayout), Timeslot: slot}
}

// String renders the canonical lock/event identity.
func (k SlotKey) String() string {
	return fmt.Sprintf("%d:%s:%s", k.ResourceID, k.Date, k.Timeslot)
}

// BlockedUser is a blocklist entry barring a user from booking.
type BlockedUser struct {
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason"`
	BlockedBy string    `json:"blocked_by"`
	CreatedAt time.Time `json:"created_at"`
}

// SlotEvent is broadcast to observers whenever a slot's occupancy changes.
type SlotEvent struct {
	Key           SlotKey `json:"key"`
	Booked        bool    `json:"booked"`
	ReservationID int64   `json:"reservation_id"`
}
