package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"ptportal/internal/availability"
	"ptportal/internal/db"
	"ptportal/internal/events"
	"ptportal/internal/metrics"
	"ptportal/internal/model"
)

var (
	ErrInvalidBooking   = errors.New("invalid booking")
	ErrSlotUnavailable  = errors.New("slot is not available")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrAlreadyCancelled = errors.New("booking already cancelled")
)

// BookingRequest asks for one session starting at Start.
type BookingRequest struct {
	SessionTypeID int64
	Start         time.Time
	AthleteName   string
	AthleteEmail  string
}

func (r *BookingRequest) validate() error {
	r.AthleteName = strings.TrimSpace(r.AthleteName)
	r.AthleteEmail = strings.TrimSpace(r.AthleteEmail)
	if r.AthleteName == "" {
		return fmt.Errorf("%w: athlete_name is required", ErrInvalidBooking)
	}
	if r.AthleteEmail != "" {
		if _, err := mail.ParseAddress(r.AthleteEmail); err != nil {
			return fmt.Errorf("%w: athlete_email is not a valid address", ErrInvalidBooking)
		}
	}
	if r.Start.IsZero() {
		return fmt.Errorf("%w: start is required", ErrInvalidBooking)
	}
	return nil
}

// Book reserves the slot starting at req.Start. The start must be a slot the
// resolver offers right now; the store re-checks capacity on insert.
func (s *AvailabilityService) Book(ctx context.Context, req BookingRequest) (*model.Booking, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	sessionType, err := s.sessionType(ctx, req.SessionTypeID)
	if err != nil {
		return nil, err
	}

	day := model.DateOf(req.Start.In(s.resolver.Location()))
	slots, err := s.resolve(ctx, day, day, sessionType, s.now())
	if err != nil {
		return nil, err
	}

	slot, ok := availability.FindSlot(slots, req.Start)
	if !ok || !slot.Available {
		metrics.IncBookingCreated("conflict")
		return nil, ErrSlotUnavailable
	}

	booking := &model.Booking{
		SessionTypeID: sessionType.ID,
		AthleteName:   req.AthleteName,
		AthleteEmail:  req.AthleteEmail,
		StartTime:     slot.Start,
		EndTime:       slot.End,
		Status:        model.StatusPending,
	}
	if err := s.store.CreateBooking(ctx, booking, sessionType.MaxAthletes); err != nil {
		if errors.Is(err, db.ErrNotAvailable) {
			metrics.IncBookingCreated("conflict")
			return nil, ErrSlotUnavailable
		}
		metrics.IncBookingCreated("error")
		return nil, fmt.Errorf("create booking: %w", err)
	}

	metrics.IncBookingCreated("created")
	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("session_type_id", booking.SessionTypeID).
		Time("start", booking.StartTime).
		Msg("Booking created")

	s.publish(events.Event{Type: events.BookingCreated, BookingID: booking.ID, Start: booking.StartTime})
	return booking, nil
}

// Cancel marks a booking cancelled, freeing its place.
func (s *AvailabilityService) Cancel(ctx context.Context, id int64) (*model.Booking, error) {
	booking, err := s.store.CancelBooking(ctx, id)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return nil, fmt.Errorf("%w: %d", ErrBookingNotFound, id)
	case errors.Is(err, db.ErrAlreadyCancelled):
		return booking, ErrAlreadyCancelled
	case err != nil:
		return nil, fmt.Errorf("cancel booking: %w", err)
	}

	metrics.IncBookingCancelled()
	s.logger.Info().Int64("booking_id", id).Msg("Booking cancelled")
	s.publish(events.Event{Type: events.BookingCancelled, BookingID: id, Start: booking.StartTime})
	return booking, nil
}

// Booking returns a booking by ID.
func (s *AvailabilityService) Booking(ctx context.Context, id int64) (*model.Booking, error) {
	booking, err := s.store.GetBooking(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrBookingNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return booking, nil
}

// UpdateStatus moves a booking through its lifecycle (confirm, complete, no-show).
// Cancelling goes through Cancel. Reactivating a booking whose slot has since
// filled up is ErrSlotUnavailable.
func (s *AvailabilityService) UpdateStatus(ctx context.Context, id int64, status string) (*model.Booking, error) {
	if !model.IsValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidBooking, status)
	}
	if status == model.StatusCancelled {
		return s.Cancel(ctx, id)
	}

	if err := s.store.UpdateBookingStatus(ctx, id, status); err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			return nil, fmt.Errorf("%w: %d", ErrBookingNotFound, id)
		case errors.Is(err, db.ErrNotAvailable):
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("update booking status: %w", err)
	}

	booking, err := s.Booking(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("booking_id", id).Str("status", status).Msg("Booking status updated")
	s.publish(events.Event{Type: events.BookingUpdated, BookingID: id, Start: booking.StartTime, Detail: status})
	return booking, nil
}
