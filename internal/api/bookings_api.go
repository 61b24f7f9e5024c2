package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"innoviahub/internal/metrics"
)

// CreateBookingRequest is the request body for POST /api/bookings.
type CreateBookingRequest struct {
	ResourceID int64  `json:"resource_id"`
	Date       string `json:"date"`     // Format: YYYY-MM-DD
	Timeslot   string `json:"timeslot"` // "FM" or "EF"
}

// handleListResources returns the catalog snapshot.
// GET /api/resources
func (s *HTTPServer) handleListResources(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("resources")

	resources, err := s.catalog.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": resources})
}

// handleCreateBooking reserves a slot for the calling user.
// POST /api/bookings
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_booking")

	userID, _ := identity(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req CreateBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reservation, err := s.engine.Reserve(r.Context(), userID, req.ResourceID, req.Date, req.Timeslot)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservation)
}

// handleListBookings returns every reservation (admin view).
// GET /api/bookings
func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_bookings")

	_, isAdmin := identity(r)
	if !isAdmin {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	reservations, err := s.engine.ListReservations(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": reservations})
}

// handleListMyBookings returns the calling user's reservations.
// GET /api/bookings/my
func (s *HTTPServer) handleListMyBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_my_bookings")

	userID, _ := identity(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	reservations, err := s.engine.ListUserReservations(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": reservations})
}

// handleCancelBooking cancels an active reservation.
// POST /api/bookings/{id}/cancel
func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel_booking")

	userID, isAdmin := identity(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	if err := s.engine.Cancel(r.Context(), userID, id, isAdmin); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handlePurgeBooking physically deletes a reservation (admin only).
// DELETE /api/bookings/{id}
func (s *HTTPServer) handlePurgeBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("purge_booking")

	_, isAdmin := identity(r)

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	if err := s.engine.Purge(r.Context(), id, isAdmin); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
