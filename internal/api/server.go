// Package api exposes availability and booking over JSON HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ptportal/internal/service"

	"github.com/rs/zerolog"
)

// Options configures the HTTP server.
type Options struct {
	Address      string
	FacilityName string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RatePerSec   float64
	RateBurst    int
	AdminKeys    []string
}

// HTTPServer serves the public and admin API.
type HTTPServer struct {
	svc          *service.AvailabilityService
	log          zerolog.Logger
	server       *http.Server
	limiter      *ipRateLimiter
	adminKeys    map[string]struct{}
	facilityName string
}

func NewHTTPServer(opts Options, svc *service.AvailabilityService, logger *zerolog.Logger) *HTTPServer {
	if opts.Address == "" {
		opts.Address = ":8080"
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	s := &HTTPServer{
		svc:          svc,
		log:          logger.With().Str("component", "api").Logger(),
		limiter:      newIPRateLimiter(opts.RatePerSec, opts.RateBurst),
		adminKeys:    make(map[string]struct{}, len(opts.AdminKeys)),
		facilityName: opts.FacilityName,
	}
	for _, k := range opts.AdminKeys {
		s.adminKeys[k] = struct{}{}
	}

	s.server = &http.Server{
		Addr:              opts.Address,
		Handler:           s.routes(),
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      opts.WriteTimeout,
	}
	return s
}

func (s *HTTPServer) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/availability", s.instrument("availability", s.handleAvailability))
	mux.Handle("GET /api/availability/export", s.instrument("availability_export", s.handleAvailabilityExport))
	mux.Handle("GET /api/session-types", s.instrument("session_types", s.handleSessionTypes))

	mux.Handle("POST /api/bookings", s.instrument("booking_create", s.handleCreateBooking))
	mux.Handle("GET /api/bookings/{id}", s.instrument("booking_get", s.requireAdmin(s.handleGetBooking)))
	mux.Handle("PATCH /api/bookings/{id}", s.instrument("booking_status", s.requireAdmin(s.handleUpdateBookingStatus)))
	mux.Handle("DELETE /api/bookings/{id}", s.instrument("booking_cancel", s.requireAdmin(s.handleCancelBooking)))

	mux.Handle("GET /api/exceptions", s.instrument("exceptions_list", s.requireAdmin(s.handleListExceptions)))
	mux.Handle("POST /api/exceptions", s.instrument("exception_create", s.requireAdmin(s.handleCreateException)))
	mux.Handle("DELETE /api/exceptions/{id}", s.instrument("exception_delete", s.requireAdmin(s.handleDeleteException)))

	return s.withRequestID(s.withAccessLog(s.withRecovery(s.withRateLimit(mux))))
}

// Handler returns the full middleware-wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors to HTTP status codes.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRange), errors.Is(err, service.ErrInvalidBooking):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSessionTypeNotFound),
		errors.Is(err, service.ErrBookingNotFound),
		errors.Is(err, service.ErrExceptionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSlotUnavailable), errors.Is(err, service.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
