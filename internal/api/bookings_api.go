package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"ptportal/internal/service"
)

// CreateBookingRequest is the body of POST /api/bookings.
type CreateBookingRequest struct {
	SessionTypeID int64     `json:"session_type_id"`
	Start         time.Time `json:"start"` // RFC 3339
	AthleteName   string    `json:"athlete_name"`
	AthleteEmail  string    `json:"athlete_email,omitempty"`
}

// UpdateStatusRequest is the body of PATCH /api/bookings/{id}.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// handleCreateBooking books an offered slot.
// POST /api/bookings
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, err := s.svc.Book(r.Context(), service.BookingRequest{
		SessionTypeID: req.SessionTypeID,
		Start:         req.Start,
		AthleteName:   req.AthleteName,
		AthleteEmail:  req.AthleteEmail,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// handleGetBooking returns one booking.
// GET /api/bookings/{id}
func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	booking, err := s.svc.Booking(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// handleCancelBooking cancels a booking.
// DELETE /api/bookings/{id}
func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	booking, err := s.svc.Cancel(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// handleUpdateBookingStatus confirms, completes or marks a booking as a no-show.
// PATCH /api/bookings/{id}
func (s *HTTPServer) handleUpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	var req UpdateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	booking, err := s.svc.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}
