package model

import "time"

// SchedulingSettings holds the booking-window knobs. There is exactly one row.
type SchedulingSettings struct {
	BookingWindowDays     int       `json:"bookingWindowDays"`
	MinBookingNoticeHours int       `json:"minBookingNoticeHours"`
	UpdatedAt             time.Time `json:"updatedAt,omitempty"`
}

// MinNotice is the minimum lead time before a slot may start.
func (s SchedulingSettings) MinNotice() time.Duration {
	return time.Duration(s.MinBookingNoticeHours) * time.Hour
}

// Window is how far ahead bookings are allowed.
func (s SchedulingSettings) Window() time.Duration {
	return time.Duration(s.BookingWindowDays) * 24 * time.Hour
}

// AvailabilityTemplate is a recurring open window on a weekday.
type AvailabilityTemplate struct {
	ID        int64        `json:"id"`
	DayOfWeek time.Weekday `json:"dayOfWeek"` // 0-6, Sunday first
	StartTime ClockTime    `json:"startTime"`
	EndTime   ClockTime    `json:"endTime"`
	IsActive  bool         `json:"isActive"`
}

// AvailabilityException overrides a single calendar date.
// A nil StartTime means the whole day.
type AvailabilityException struct {
	ID            int64      `json:"id"`
	ExceptionDate Date       `json:"exceptionDate"`
	StartTime     *ClockTime `json:"startTime"`
	IsAvailable   bool       `json:"isAvailable"`
	Reason        string     `json:"reason,omitempty"`
}

// IsWholeDayBlackout reports whether the exception closes its entire date.
func (e AvailabilityException) IsWholeDayBlackout() bool {
	return !e.IsAvailable && e.StartTime == nil
}

// IsTimeBlackout reports whether the exception removes a single start time.
func (e AvailabilityException) IsTimeBlackout() bool {
	return !e.IsAvailable && e.StartTime != nil
}

const (
	DefaultDurationMinutes = 60
	DefaultMaxAthletes     = 1
)

// SessionType defines slot length and capacity.
type SessionType struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"durationMinutes"`
	MaxAthletes     int    `json:"maxAthletes"`
	IsActive        bool   `json:"isActive"`
}

// DefaultSessionType is used when the caller does not select one.
func DefaultSessionType() SessionType {
	return SessionType{
		Name:            "default",
		DurationMinutes: DefaultDurationMinutes,
		MaxAthletes:     DefaultMaxAthletes,
		IsActive:        true,
	}
}

// Duration returns the slot length.
func (s SessionType) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// TimeSlot is a bookable candidate. It is never persisted.
type TimeSlot struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Available    bool      `json:"available"`
	BookingCount int       `json:"bookingCount"`
	MaxAthletes  int       `json:"maxAthletes"`
}
