package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"innoviahub/internal/access"
	"innoviahub/internal/assistant"
	"innoviahub/internal/models"
	"innoviahub/internal/notify"
	"innoviahub/internal/service"

	"github.com/rs/zerolog"
)

// Identity headers. Authentication itself is handled upstream; the API
// trusts these the way the original trusted its token middleware.
const (
	headerUserID  = "X-User-ID"
	headerIsAdmin = "X-Is-Admin"
)

const shutdownTimeout = 3 * time.Second

// Catalog is the resource listing surface the API exposes.
type Catalog interface {
	List(ctx context.Context) ([]models.Resource, error)
}

// HTTPServer serves the booking JSON API.
type HTTPServer struct {
	engine  *service.ReservationService
	catalog Catalog
	bridge  *assistant.Bridge
	hub     *notify.Hub
	access  *access.Service
	logger  *zerolog.Logger
	server  *http.Server
}

// NewHTTPServer wires the API routes.
func NewHTTPServer(port int, engine *service.ReservationService, catalog Catalog, bridge *assistant.Bridge, hub *notify.Hub, accessSvc *access.Service, logger *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		engine:  engine,
		catalog: catalog,
		bridge:  bridge,
		hub:     hub,
		access:  accessSvc,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/resources", s.handleListResources)
	mux.HandleFunc("POST /api/bookings", s.handleCreateBooking)
	mux.HandleFunc("GET /api/bookings", s.handleListBookings)
	mux.HandleFunc("GET /api/bookings/my", s.handleListMyBookings)
	mux.HandleFunc("POST /api/bookings/{id}/cancel", s.handleCancelBooking)
	mux.HandleFunc("DELETE /api/bookings/{id}", s.handlePurgeBooking)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("POST /api/admin/blocks", s.handleBlockUser)
	mux.HandleFunc("DELETE /api/admin/blocks/{userID}", s.handleUnblockUser)
	mux.HandleFunc("GET /api/admin/blocks", s.handleListBlockedUsers)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	return s
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler exposes the mux for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps the error taxonomy to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, models.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, models.ErrOracleUnavailable):
		status = http.StatusBadGateway
	}
	writeError(w, status, err.Error())
}

func identity(r *http.Request) (userID string, isAdmin bool) {
	return r.Header.Get(headerUserID), r.Header.Get(headerIsAdmin) == "true"
}
