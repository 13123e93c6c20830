// Package availability turns weekly templates, dated exceptions and existing
// bookings into the list of bookable session slots.
package availability

import (
	"time"

	"ptportal/internal/model"
)

// Request holds everything a single resolution needs. All collections are
// already fetched by the caller; nil collections are treated as empty.
type Request struct {
	RangeStart      model.Date
	RangeEnd        model.Date
	DurationMinutes int
	MaxAthletes     int

	Settings   model.SchedulingSettings
	Templates  []model.AvailabilityTemplate
	Exceptions []model.AvailabilityException
	Bookings   []model.Booking

	// Now is the reference instant for notice and window limits.
	Now time.Time
}

// Resolver computes slots in a fixed facility location.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	loc *time.Location
}

// NewResolver creates a resolver for the facility time zone.
func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{loc: loc}
}

// Location returns the facility time zone.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve returns slots ordered by day, then template, then start time.
func (r *Resolver) Resolve(req Request) []model.TimeSlot {
	duration := req.DurationMinutes
	if duration <= 0 {
		duration = model.DefaultDurationMinutes
	}
	capacity := req.MaxAthletes
	if capacity <= 0 {
		capacity = model.DefaultMaxAthletes
	}
	slotLen := time.Duration(duration) * time.Minute

	now := req.Now.In(r.loc)
	minStart := now.Add(req.Settings.MinNotice())
	maxStart := now.Add(req.Settings.Window())

	last := req.RangeEnd
	if windowEnd := model.DateOf(maxStart); windowEnd.Before(last) {
		last = windowEnd
	}

	exceptions := indexExceptions(req.Exceptions)
	slots := make([]model.TimeSlot, 0)

	for day := req.RangeStart; !day.After(last); day = day.AddDays(1) {
		dayExceptions := exceptions[day]
		if closedAllDay(dayExceptions) {
			continue
		}

		weekday := day.Weekday()
		for _, tpl := range req.Templates {
			if !tpl.IsActive || tpl.DayOfWeek != weekday {
				continue
			}

			windowEnd := day.At(tpl.EndTime, r.loc)
			for cursor := day.At(tpl.StartTime, r.loc); !cursor.Add(slotLen).After(windowEnd); cursor = cursor.Add(slotLen) {
				if cursor.Before(minStart) || cursor.After(maxStart) {
					continue
				}
				if blackedOutAt(dayExceptions, model.ClockOf(cursor)) {
					continue
				}

				end := cursor.Add(slotLen)
				count := countOverlapping(req.Bookings, cursor, end)
				slots = append(slots, model.TimeSlot{
					Start:        cursor,
					End:          end,
					Available:    count < capacity,
					BookingCount: count,
					MaxAthletes:  capacity,
				})
			}
		}
	}

	return slots
}

func indexExceptions(exceptions []model.AvailabilityException) map[model.Date][]model.AvailabilityException {
	byDate := make(map[model.Date][]model.AvailabilityException, len(exceptions))
	for _, e := range exceptions {
		byDate[e.ExceptionDate] = append(byDate[e.ExceptionDate], e)
	}
	return byDate
}

// closedAllDay wins over any other exception on the same date.
func closedAllDay(exceptions []model.AvailabilityException) bool {
	for _, e := range exceptions {
		if e.IsWholeDayBlackout() {
			return true
		}
	}
	return false
}

func blackedOutAt(exceptions []model.AvailabilityException, at model.ClockTime) bool {
	for _, e := range exceptions {
		if e.IsTimeBlackout() && *e.StartTime == at {
			return true
		}
	}
	return false
}

func countOverlapping(bookings []model.Booking, start, end time.Time) int {
	count := 0
	for i := range bookings {
		if bookings[i].IsActive() && bookings[i].Overlaps(start, end) {
			count++
		}
	}
	return count
}
