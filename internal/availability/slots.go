package availability

import (
	"time"

	"ptportal/internal/model"
)

// AvailableOnly returns slots that still have capacity.
func AvailableOnly(slots []model.TimeSlot) []model.TimeSlot {
	available := make([]model.TimeSlot, 0, len(slots))
	for _, s := range slots {
		if s.Available {
			available = append(available, s)
		}
	}
	return available
}

// FindSlot returns the first slot starting exactly at start.
func FindSlot(slots []model.TimeSlot, start time.Time) (model.TimeSlot, bool) {
	for _, s := range slots {
		if s.Start.Equal(start) {
			return s, true
		}
	}
	return model.TimeSlot{}, false
}

// DaySlots is the slot list of one calendar day.
type DaySlots struct {
	Date  model.Date
	Slots []model.TimeSlot
}

// GroupByDay splits an ordered slot list by local calendar day.
func GroupByDay(slots []model.TimeSlot, loc *time.Location) []DaySlots {
	var days []DaySlots
	for _, s := range slots {
		d := model.DateOf(s.Start.In(loc))
		if len(days) == 0 || days[len(days)-1].Date != d {
			days = append(days, DaySlots{Date: d})
		}
		last := &days[len(days)-1]
		last.Slots = append(last.Slots, s)
	}
	return days
}
