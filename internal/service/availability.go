package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ptportal/internal/availability"
	"ptportal/internal/cache"
	"ptportal/internal/db"
	"ptportal/internal/events"
	"ptportal/internal/metrics"
	"ptportal/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// MaxRangeDays is the longest span a single availability query may cover.
const MaxRangeDays = 90

var (
	ErrInvalidRange        = errors.New("invalid date range")
	ErrSessionTypeNotFound = errors.New("session type not found")
)

// Store is the record store the service reads and writes.
type Store interface {
	GetSchedulingSettings(ctx context.Context) (model.SchedulingSettings, error)
	ListActiveTemplates(ctx context.Context) ([]model.AvailabilityTemplate, error)
	ListExceptions(ctx context.Context, from, to model.Date) ([]model.AvailabilityException, error)
	ListActiveBookings(ctx context.Context, from, to time.Time) ([]model.Booking, error)

	ListSessionTypes(ctx context.Context, activeOnly bool) ([]model.SessionType, error)
	GetSessionType(ctx context.Context, id int64) (*model.SessionType, error)

	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	CreateBooking(ctx context.Context, b *model.Booking, maxAthletes int) error
	CancelBooking(ctx context.Context, id int64) (*model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, status string) error

	SetDayOff(ctx context.Context, date model.Date, reason string) (*model.AvailabilityException, error)
	SetTimeBlackout(ctx context.Context, date model.Date, start model.ClockTime, reason string) (*model.AvailabilityException, error)
	DeleteException(ctx context.Context, id int64) error
}

// Query selects the slots to compute. SessionTypeID 0 uses the default session type.
type Query struct {
	Start         model.Date
	End           model.Date
	SessionTypeID int64
}

// Result is the outcome of an availability query.
type Result struct {
	Slots       []model.TimeSlot
	SessionType model.SessionType
	Cached      bool
}

// AvailabilityService fetches schedule data, resolves slots and manages bookings.
type AvailabilityService struct {
	store    Store
	resolver *availability.Resolver
	cache    *cache.SlotCache
	bus      *events.Bus
	now      func() time.Time
	logger   zerolog.Logger
}

// NewAvailabilityService wires the service. slotCache and bus may be nil.
// When a bus is given the service subscribes to invalidate cached slots on
// every booking or schedule change.
func NewAvailabilityService(
	store Store,
	resolver *availability.Resolver,
	slotCache *cache.SlotCache,
	bus *events.Bus,
	logger *zerolog.Logger,
) *AvailabilityService {
	if slotCache == nil {
		slotCache = cache.NewSlotCache(nil, 0, logger)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &AvailabilityService{
		store:    store,
		resolver: resolver,
		cache:    slotCache,
		bus:      bus,
		now:      time.Now,
		logger:   logger.With().Str("component", "availability").Logger(),
	}
	if bus != nil {
		bus.Subscribe(s.invalidateCache,
			events.BookingCreated, events.BookingCancelled, events.BookingUpdated, events.ScheduleChanged)
	}
	return s
}

// SetClock replaces the time source used for notice and window limits.
func (s *AvailabilityService) SetClock(now func() time.Time) {
	s.now = now
}

// Location returns the facility time zone.
func (s *AvailabilityService) Location() *time.Location {
	return s.resolver.Location()
}

// ValidateRange checks a requested date range.
func ValidateRange(start, end model.Date) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidRange)
	}
	if start.After(end) {
		return fmt.Errorf("%w: start must be before or equal to end", ErrInvalidRange)
	}
	if start.DaysUntil(end) > MaxRangeDays {
		return fmt.Errorf("%w: range exceeds maximum of %d days", ErrInvalidRange, MaxRangeDays)
	}
	return nil
}

// Availability returns every slot in [q.Start, q.End] for the chosen session type.
func (s *AvailabilityService) Availability(ctx context.Context, q Query) (*Result, error) {
	if err := ValidateRange(q.Start, q.End); err != nil {
		return nil, err
	}

	sessionType, err := s.sessionType(ctx, q.SessionTypeID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	key := cache.Key{Start: q.Start, End: q.End, SessionTypeID: sessionType.ID, Now: now}
	slots, gen, ok := s.cache.Get(ctx, key)
	if ok {
		metrics.IncCacheHit()
		return &Result{Slots: slots, SessionType: sessionType, Cached: true}, nil
	}
	if s.cache.Enabled() {
		metrics.IncCacheMiss()
	}

	slots, err = s.resolve(ctx, q.Start, q.End, sessionType, now)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, gen, key, slots)
	return &Result{Slots: slots, SessionType: sessionType}, nil
}

// SessionTypes lists the active session types.
func (s *AvailabilityService) SessionTypes(ctx context.Context) ([]model.SessionType, error) {
	types, err := s.store.ListSessionTypes(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list session types: %w", err)
	}
	if types == nil {
		types = []model.SessionType{}
	}
	return types, nil
}

func (s *AvailabilityService) sessionType(ctx context.Context, id int64) (model.SessionType, error) {
	if id == 0 {
		return model.DefaultSessionType(), nil
	}
	st, err := s.store.GetSessionType(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return model.SessionType{}, fmt.Errorf("%w: %d", ErrSessionTypeNotFound, id)
	}
	if err != nil {
		return model.SessionType{}, fmt.Errorf("get session type: %w", err)
	}
	if !st.IsActive {
		return model.SessionType{}, fmt.Errorf("%w: %d", ErrSessionTypeNotFound, id)
	}
	return *st, nil
}

// resolve reads the four input collections in parallel and runs the resolver.
func (s *AvailabilityService) resolve(ctx context.Context, start, end model.Date, st model.SessionType, now time.Time) ([]model.TimeSlot, error) {
	began := time.Now()
	loc := s.resolver.Location()

	var (
		settings   model.SchedulingSettings
		templates  []model.AvailabilityTemplate
		exceptions []model.AvailabilityException
		bookings   []model.Booking
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		settings, err = s.store.GetSchedulingSettings(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		templates, err = s.store.ListActiveTemplates(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		exceptions, err = s.store.ListExceptions(gctx, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		// Slots never run past midnight, so the day after end bounds them.
		bookings, err = s.store.ListActiveBookings(gctx, start.In(loc), end.AddDays(1).In(loc))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch schedule: %w", err)
	}

	slots := s.resolver.Resolve(availability.Request{
		RangeStart:      start,
		RangeEnd:        end,
		DurationMinutes: st.DurationMinutes,
		MaxAthletes:     st.MaxAthletes,
		Settings:        settings,
		Templates:       templates,
		Exceptions:      exceptions,
		Bookings:        bookings,
		Now:             now,
	})

	metrics.ObserveResolve(time.Since(began), len(slots))
	s.logger.Debug().
		Str("start", start.String()).
		Str("end", end.String()).
		Int64("session_type_id", st.ID).
		Int("templates", len(templates)).
		Int("exceptions", len(exceptions)).
		Int("bookings", len(bookings)).
		Int("slots", len(slots)).
		Msg("Resolved availability")
	return slots, nil
}

func (s *AvailabilityService) invalidateCache(e events.Event) error {
	// Detached from any request; the bus runs handlers synchronously.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Str("event", e.Type).Msg("Failed to invalidate slot cache")
		return err
	}
	return nil
}

func (s *AvailabilityService) publish(e events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(e); err != nil {
		s.logger.Warn().Err(err).Str("event", e.Type).Msg("Event handler failed")
	}
}
