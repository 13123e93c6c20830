package availability

import (
	"testing"
	"time"
	_ "time/tzdata"

	"ptportal/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var facility = time.FixedZone("facility", -5*3600)

// 2026-03-09 is a Monday.
var monday = model.MustDate("2026-03-09")

func at(d model.Date, clock string) time.Time {
	return d.At(model.MustClock(clock), facility)
}

func mondayTemplate(start, end string) model.AvailabilityTemplate {
	return model.AvailabilityTemplate{
		DayOfWeek: time.Monday,
		StartTime: model.MustClock(start),
		EndTime:   model.MustClock(end),
		IsActive:  true,
	}
}

func baseRequest() Request {
	return Request{
		RangeStart:      monday,
		RangeEnd:        monday,
		DurationMinutes: 60,
		MaxAthletes:     1,
		Settings:        model.SchedulingSettings{BookingWindowDays: 30, MinBookingNoticeHours: 0},
		Templates:       []model.AvailabilityTemplate{mondayTemplate("09:00", "12:00")},
		Now:             at(model.MustDate("2026-03-01"), "08:00"),
	}
}

func starts(slots []model.TimeSlot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Start.In(facility).Format("2006-01-02 15:04")
	}
	return out
}

func TestResolve_ScenarioA_PlainTemplate(t *testing.T) {
	slots := NewResolver(facility).Resolve(baseRequest())

	require.Len(t, slots, 3)
	assert.Equal(t, []string{"2026-03-09 09:00", "2026-03-09 10:00", "2026-03-09 11:00"}, starts(slots))
	for _, s := range slots {
		assert.True(t, s.Available)
		assert.Zero(t, s.BookingCount)
		assert.Equal(t, 1, s.MaxAthletes)
		assert.Equal(t, time.Hour, s.End.Sub(s.Start))
	}
}

func TestResolve_ScenarioB_BookedSlot(t *testing.T) {
	req := baseRequest()
	req.Bookings = []model.Booking{{
		StartTime: at(monday, "10:00"),
		EndTime:   at(monday, "11:00"),
		Status:    model.StatusConfirmed,
	}}

	slots := NewResolver(facility).Resolve(req)

	require.Len(t, slots, 3)
	assert.True(t, slots[0].Available)
	assert.Equal(t, 1, slots[1].BookingCount)
	assert.False(t, slots[1].Available)
	assert.True(t, slots[2].Available)
	assert.Zero(t, slots[2].BookingCount)
}

func TestResolve_ScenarioC_WholeDayBlackout(t *testing.T) {
	req := baseRequest()
	req.Exceptions = []model.AvailabilityException{{ExceptionDate: monday, IsAvailable: false}}

	assert.Empty(t, NewResolver(facility).Resolve(req))
}

func TestResolve_ScenarioD_TimeBlackout(t *testing.T) {
	req := baseRequest()
	ten := model.MustClock("10:00:00")
	req.Exceptions = []model.AvailabilityException{{ExceptionDate: monday, StartTime: &ten, IsAvailable: false}}

	slots := NewResolver(facility).Resolve(req)

	assert.Equal(t, []string{"2026-03-09 09:00", "2026-03-09 11:00"}, starts(slots))
}

func TestResolve_ScenarioE_PartialWindowDropped(t *testing.T) {
	req := baseRequest()
	req.Templates = []model.AvailabilityTemplate{mondayTemplate("09:00", "09:50")}

	assert.Empty(t, NewResolver(facility).Resolve(req))
}

func TestResolve_TrailingPartialSlotDropped(t *testing.T) {
	req := baseRequest()
	req.Templates = []model.AvailabilityTemplate{mondayTemplate("09:00", "11:30")}

	slots := NewResolver(facility).Resolve(req)

	assert.Equal(t, []string{"2026-03-09 09:00", "2026-03-09 10:00"}, starts(slots))
	assert.False(t, slots[1].End.After(at(monday, "11:30")))
}

func TestResolve_WholeDayBlackoutWinsOverOtherExceptions(t *testing.T) {
	req := baseRequest()
	ten := model.MustClock("10:00")
	req.Exceptions = []model.AvailabilityException{
		{ExceptionDate: monday, StartTime: &ten, IsAvailable: true},
		{ExceptionDate: monday, IsAvailable: false},
	}

	assert.Empty(t, NewResolver(facility).Resolve(req))
}

func TestResolve_AvailableExceptionsHaveNoEffect(t *testing.T) {
	req := baseRequest()
	ten := model.MustClock("10:00")
	req.Exceptions = []model.AvailabilityException{
		{ExceptionDate: monday, IsAvailable: true},
		{ExceptionDate: monday, StartTime: &ten, IsAvailable: true},
	}

	assert.Len(t, NewResolver(facility).Resolve(req), 3)
}

func TestResolve_TimeBlackoutOnlyMatchesExactStart(t *testing.T) {
	req := baseRequest()
	off := model.MustClock("10:30")
	req.Exceptions = []model.AvailabilityException{{ExceptionDate: monday, StartTime: &off, IsAvailable: false}}

	assert.Len(t, NewResolver(facility).Resolve(req), 3)
}

func TestResolve_ExceptionOnOtherDateIgnored(t *testing.T) {
	req := baseRequest()
	req.Exceptions = []model.AvailabilityException{{ExceptionDate: monday.AddDays(7), IsAvailable: false}}

	assert.Len(t, NewResolver(facility).Resolve(req), 3)
}

func TestResolve_MultipleTemplatesProcessedIndependently(t *testing.T) {
	req := baseRequest()
	req.Templates = []model.AvailabilityTemplate{
		mondayTemplate("09:00", "11:00"),
		mondayTemplate("14:00", "16:00"),
		mondayTemplate("10:30", "11:30"),
	}

	slots := NewResolver(facility).Resolve(req)

	assert.Equal(t, []string{
		"2026-03-09 09:00", "2026-03-09 10:00",
		"2026-03-09 14:00", "2026-03-09 15:00",
		"2026-03-09 10:30",
	}, starts(slots))
}

func TestResolve_InactiveAndOtherWeekdayTemplatesSkipped(t *testing.T) {
	req := baseRequest()
	inactive := mondayTemplate("13:00", "14:00")
	inactive.IsActive = false
	tuesday := mondayTemplate("09:00", "10:00")
	tuesday.DayOfWeek = time.Tuesday
	req.Templates = append(req.Templates, inactive, tuesday)

	assert.Len(t, NewResolver(facility).Resolve(req), 3)
}

func TestResolve_MinimumNotice(t *testing.T) {
	req := baseRequest()
	req.Now = at(monday, "07:30")
	req.Settings.MinBookingNoticeHours = 3

	slots := NewResolver(facility).Resolve(req)

	// 10:30 is the earliest allowed start.
	assert.Equal(t, []string{"2026-03-09 11:00"}, starts(slots))
}

func TestResolve_BookingWindowLimitsDays(t *testing.T) {
	req := baseRequest()
	req.Now = at(model.MustDate("2026-03-02"), "10:00")
	req.Settings.BookingWindowDays = 14
	req.RangeStart = model.MustDate("2026-03-02")
	req.RangeEnd = model.MustDate("2026-03-30")

	slots := NewResolver(facility).Resolve(req)

	// Mondays 03-02 (10:00 onward), 03-09 and 03-16 (only up to 10:00) are inside the window.
	assert.Equal(t, []string{
		"2026-03-02 10:00", "2026-03-02 11:00",
		"2026-03-09 09:00", "2026-03-09 10:00", "2026-03-09 11:00",
		"2026-03-16 09:00", "2026-03-16 10:00",
	}, starts(slots))
	maxStart := req.Now.Add(req.Settings.Window())
	for _, s := range slots {
		assert.False(t, s.Start.After(maxStart))
	}
}

func TestResolve_CapacityCounting(t *testing.T) {
	req := baseRequest()
	req.MaxAthletes = 2
	req.Bookings = []model.Booking{
		{StartTime: at(monday, "09:00"), EndTime: at(monday, "10:00"), Status: model.StatusPending},
		{StartTime: at(monday, "09:30"), EndTime: at(monday, "10:30"), Status: model.StatusConfirmed},
		{StartTime: at(monday, "09:00"), EndTime: at(monday, "10:00"), Status: model.StatusCancelled},
		{StartTime: at(monday, "11:00"), EndTime: at(monday, "12:00"), Status: model.StatusCompleted},
	}

	slots := NewResolver(facility).Resolve(req)

	require.Len(t, slots, 3)
	assert.Equal(t, 2, slots[0].BookingCount)
	assert.False(t, slots[0].Available)
	assert.Equal(t, 1, slots[1].BookingCount)
	assert.True(t, slots[1].Available)
	assert.Equal(t, 0, slots[2].BookingCount)
	assert.Equal(t, 2, slots[2].MaxAthletes)
}

func TestResolve_Defaults(t *testing.T) {
	req := baseRequest()
	req.DurationMinutes = 0
	req.MaxAthletes = 0

	slots := NewResolver(facility).Resolve(req)

	require.Len(t, slots, 3)
	assert.Equal(t, 1, slots[0].MaxAthletes)
	assert.Equal(t, time.Hour, slots[0].End.Sub(slots[0].Start))
}

func TestResolve_EmptyInputs(t *testing.T) {
	req := baseRequest()
	req.Templates = nil

	slots := NewResolver(facility).Resolve(req)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)
}

func TestResolve_InvertedRangeYieldsNothing(t *testing.T) {
	req := baseRequest()
	req.RangeStart = monday.AddDays(1)

	assert.Empty(t, NewResolver(facility).Resolve(req))
}

func TestResolve_Properties(t *testing.T) {
	req := Request{
		RangeStart:      model.MustDate("2026-03-01"),
		RangeEnd:        model.MustDate("2026-03-31"),
		DurationMinutes: 45,
		MaxAthletes:     2,
		Settings:        model.SchedulingSettings{BookingWindowDays: 21, MinBookingNoticeHours: 26},
		Now:             at(model.MustDate("2026-03-03"), "13:10"),
	}
	for _, wd := range []time.Weekday{time.Monday, time.Wednesday, time.Friday, time.Saturday} {
		req.Templates = append(req.Templates,
			model.AvailabilityTemplate{DayOfWeek: wd, StartTime: model.MustClock("06:00"), EndTime: model.MustClock("10:00"), IsActive: true},
			model.AvailabilityTemplate{DayOfWeek: wd, StartTime: model.MustClock("17:15"), EndTime: model.MustClock("20:00"), IsActive: true},
		)
	}
	blackout := model.MustDate("2026-03-13")
	req.Exceptions = []model.AvailabilityException{{ExceptionDate: blackout, IsAvailable: false}}
	req.Bookings = []model.Booking{
		{StartTime: at(model.MustDate("2026-03-06"), "06:00"), EndTime: at(model.MustDate("2026-03-06"), "07:30"), Status: model.StatusConfirmed},
		{StartTime: at(model.MustDate("2026-03-06"), "06:30"), EndTime: at(model.MustDate("2026-03-06"), "07:00"), Status: model.StatusPending},
		{StartTime: at(model.MustDate("2026-03-09"), "17:15"), EndTime: at(model.MustDate("2026-03-09"), "18:00"), Status: model.StatusNoShow},
	}

	r := NewResolver(facility)
	slots := r.Resolve(req)
	require.NotEmpty(t, slots)

	minStart := req.Now.Add(req.Settings.MinNotice())
	maxStart := req.Now.Add(req.Settings.Window())
	for i, s := range slots {
		assert.Equal(t, 45*time.Minute, s.End.Sub(s.Start))
		assert.False(t, s.Start.Before(minStart), "slot %s before notice", s.Start)
		assert.False(t, s.Start.After(maxStart), "slot %s past window", s.Start)

		day := model.DateOf(s.Start.In(facility))
		assert.False(t, day.Before(req.RangeStart))
		assert.False(t, day.After(req.RangeEnd))
		assert.NotEqual(t, blackout, day)

		expected := 0
		for j := range req.Bookings {
			if req.Bookings[j].IsActive() && req.Bookings[j].Overlaps(s.Start, s.End) {
				expected++
			}
		}
		assert.Equal(t, expected, s.BookingCount)
		assert.Equal(t, s.BookingCount < 2, s.Available)

		if i > 0 && model.DateOf(slots[i-1].Start.In(facility)) != day {
			assert.True(t, slots[i-1].Start.Before(s.Start), "days must ascend")
		}
	}

	assert.Equal(t, slots, r.Resolve(req), "same inputs must give identical output")
}

func TestGroupByDay(t *testing.T) {
	req := baseRequest()
	req.RangeEnd = monday.AddDays(7)

	days := GroupByDay(NewResolver(facility).Resolve(req), facility)

	require.Len(t, days, 2)
	assert.Equal(t, monday, days[0].Date)
	assert.Equal(t, monday.AddDays(7), days[1].Date)
	assert.Len(t, days[1].Slots, 3)
}

func TestAvailableOnlyAndFindSlot(t *testing.T) {
	req := baseRequest()
	req.Bookings = []model.Booking{{
		StartTime: at(monday, "09:00"),
		EndTime:   at(monday, "10:00"),
		Status:    model.StatusConfirmed,
	}}
	slots := NewResolver(facility).Resolve(req)

	available := AvailableOnly(slots)
	assert.Len(t, available, 2)

	s, ok := FindSlot(slots, at(monday, "09:00"))
	require.True(t, ok)
	assert.False(t, s.Available)

	_, ok = FindSlot(slots, at(monday, "09:30"))
	assert.False(t, ok)
}

func sundayTemplate(start, end string) model.AvailabilityTemplate {
	return model.AvailabilityTemplate{
		DayOfWeek: time.Sunday,
		StartTime: model.MustClock(start),
		EndTime:   model.MustClock(end),
		IsActive:  true,
	}
}

// Slots are walked in elapsed time from the window's local start to its local
// end, so a DST switch changes how many fit rather than their length.
func TestResolve_FallBackRepeatsWallClockHour(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2026-11-01 01:00 happens twice: first EDT (-4), then EST (-5).
	fallBack := model.MustDate("2026-11-01")
	req := Request{
		RangeStart:      fallBack,
		RangeEnd:        fallBack,
		DurationMinutes: 60,
		MaxAthletes:     1,
		Settings:        model.SchedulingSettings{BookingWindowDays: 30},
		Templates:       []model.AvailabilityTemplate{sundayTemplate("00:00", "03:00")},
		Now:             time.Date(2026, 10, 20, 9, 0, 0, 0, newYork),
	}
	utc := func(hour int) time.Time { return time.Date(2026, 11, 1, hour, 0, 0, 0, time.UTC) }

	slots := NewResolver(newYork).Resolve(req)

	require.Len(t, slots, 4)
	wantUTC := []time.Time{utc(4), utc(5), utc(6), utc(7)}
	wantLocal := []string{"00:00 EDT", "01:00 EDT", "01:00 EST", "02:00 EST"}
	for i, s := range slots {
		assert.True(t, s.Start.Equal(wantUTC[i]), "slot %d starts at %s", i, s.Start.UTC())
		assert.Equal(t, wantLocal[i], s.Start.In(newYork).Format("15:04 MST"))
		assert.Equal(t, time.Hour, s.End.Sub(s.Start))
	}

	// A booking in the second 01:00 only occupies that slot.
	req.Bookings = []model.Booking{{StartTime: utc(6), EndTime: utc(7), Status: model.StatusConfirmed}}
	slots = NewResolver(newYork).Resolve(req)
	require.Len(t, slots, 4)
	assert.True(t, slots[1].Available)
	assert.Equal(t, 1, slots[2].BookingCount)
	assert.False(t, slots[2].Available)

	// A time blackout matches wall-clock time, so both 01:00 slots go.
	one := model.MustClock("01:00")
	req.Bookings = nil
	req.Exceptions = []model.AvailabilityException{{ExceptionDate: fallBack, StartTime: &one}}
	slots = NewResolver(newYork).Resolve(req)
	require.Len(t, slots, 2)
	assert.True(t, slots[0].Start.Equal(utc(4)))
	assert.True(t, slots[1].Start.Equal(utc(7)))
}

func TestResolve_SpringForwardSkipsMissingHour(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2026-03-08 02:00-03:00 does not exist locally.
	springForward := model.MustDate("2026-03-08")
	req := Request{
		RangeStart:      springForward,
		RangeEnd:        springForward,
		DurationMinutes: 60,
		MaxAthletes:     1,
		Settings:        model.SchedulingSettings{BookingWindowDays: 30},
		Templates:       []model.AvailabilityTemplate{sundayTemplate("01:00", "04:00")},
		Now:             time.Date(2026, 3, 1, 9, 0, 0, 0, newYork),
	}

	slots := NewResolver(newYork).Resolve(req)

	require.Len(t, slots, 2)
	assert.Equal(t, "01:00 EST", slots[0].Start.In(newYork).Format("15:04 MST"))
	assert.Equal(t, "03:00 EDT", slots[1].Start.In(newYork).Format("15:04 MST"))
	assert.True(t, slots[1].End.Equal(time.Date(2026, 3, 8, 4, 0, 0, 0, newYork)))
}
