package model

import "time"

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
	StatusNoShow    = "no_show"
)

// ActiveStatuses are the statuses that occupy capacity.
var ActiveStatuses = []string{StatusPending, StatusConfirmed}

// Booking is a reserved session.
type Booking struct {
	ID            int64     `json:"id"`
	SessionTypeID int64     `json:"sessionTypeId"`
	AthleteName   string    `json:"athleteName"`
	AthleteEmail  string    `json:"athleteEmail,omitempty"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// IsActive reports whether the booking counts toward slot occupancy.
func (b *Booking) IsActive() bool {
	return IsActiveStatus(b.Status)
}

// Duration returns the booked interval length.
func (b *Booking) Duration() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}

// Overlaps uses half-open [start, end) semantics.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && b.EndTime.After(start)
}

func IsActiveStatus(status string) bool {
	for _, s := range ActiveStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsValidStatus reports whether status is one of the known booking statuses.
func IsValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	default:
		return false
	}
}
