package service

import (
	"context"
	"errors"
	"fmt"

	"ptportal/internal/db"
	"ptportal/internal/events"
	"ptportal/internal/model"
)

var ErrExceptionNotFound = errors.New("exception not found")

// Exceptions lists dated exceptions in [start, end].
func (s *AvailabilityService) Exceptions(ctx context.Context, start, end model.Date) ([]model.AvailabilityException, error) {
	if err := ValidateRange(start, end); err != nil {
		return nil, err
	}
	list, err := s.store.ListExceptions(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}
	if list == nil {
		list = []model.AvailabilityException{}
	}
	return list, nil
}

// Blackout closes a whole date when start is nil, otherwise the single slot
// starting at *start on that date.
func (s *AvailabilityService) Blackout(ctx context.Context, date model.Date, start *model.ClockTime, reason string) (*model.AvailabilityException, error) {
	if date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidRange)
	}

	var (
		exc *model.AvailabilityException
		err error
	)
	if start == nil {
		exc, err = s.store.SetDayOff(ctx, date, reason)
	} else {
		exc, err = s.store.SetTimeBlackout(ctx, date, *start, reason)
	}
	if err != nil {
		return nil, fmt.Errorf("save exception: %w", err)
	}

	s.logger.Info().
		Str("date", date.String()).
		Bool("whole_day", start == nil).
		Str("reason", reason).
		Msg("Blackout added")
	s.publish(events.Event{Type: events.ScheduleChanged, Detail: "blackout " + date.String()})
	return exc, nil
}

// DeleteException removes a blackout.
func (s *AvailabilityService) DeleteException(ctx context.Context, id int64) error {
	if err := s.store.DeleteException(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrExceptionNotFound, id)
		}
		return fmt.Errorf("delete exception: %w", err)
	}
	s.publish(events.Event{Type: events.ScheduleChanged, Detail: fmt.Sprintf("exception %d removed", id)})
	return nil
}
