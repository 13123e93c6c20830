package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ptportal/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSchedule = `
settings:
  booking_window_days: 14
  min_booking_notice_hours: 2
session_types:
  - id: 1
    name: "Strength"
  - id: 2
    name: "Group"
    duration_minutes: 45
    max_athletes: 4
    is_active: false
templates:
  - days: [1, 3]
    start_time: 09:00
    end_time: "12:00"
holidays:
  - date: 2026-12-25
    name: "Christmas Day"
`

func TestLoadScheduleConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "schedule.yaml", sampleSchedule)

	cfg, err := LoadScheduleConfig(path)
	require.NoError(t, err)

	settings := cfg.SchedulingSettings()
	assert.Equal(t, 14, settings.BookingWindowDays)
	assert.Equal(t, 2, settings.MinBookingNoticeHours)

	types := cfg.SessionTypeModels()
	require.Len(t, types, 2)
	assert.Equal(t, model.DefaultDurationMinutes, types[0].DurationMinutes)
	assert.Equal(t, model.DefaultMaxAthletes, types[0].MaxAthletes)
	assert.True(t, types[0].IsActive)
	assert.Equal(t, 45, types[1].DurationMinutes)
	assert.Equal(t, 4, types[1].MaxAthletes)
	assert.False(t, types[1].IsActive)

	templates := cfg.TemplateModels()
	require.Len(t, templates, 2)
	assert.Equal(t, time.Monday, templates[0].DayOfWeek)
	assert.Equal(t, time.Wednesday, templates[1].DayOfWeek)
	assert.Equal(t, model.MustClock("09:00"), templates[0].StartTime)
	assert.Equal(t, model.MustClock("12:00"), templates[0].EndTime)

	ok, name := cfg.IsHoliday(model.MustDate("2026-12-25"))
	assert.True(t, ok)
	assert.Equal(t, "Christmas Day", name)
	ok, _ = cfg.IsHoliday(model.MustDate("2026-12-24"))
	assert.False(t, ok)

	assert.Equal(t, "ScheduleConfig: 2 session types, 2 templates, 1 holidays", cfg.String())
}

func TestLoadScheduleConfig_DefaultWindow(t *testing.T) {
	path := writeFile(t, t.TempDir(), "schedule.yaml", "session_types: []\n")

	cfg, err := LoadScheduleConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Settings.BookingWindowDays)
	assert.Equal(t, 0, cfg.Settings.MinBookingNoticeHours)
}

func TestLoadScheduleConfig_ZeroWindowIsKept(t *testing.T) {
	dir := t.TempDir()

	closed, err := LoadScheduleConfig(writeFile(t, dir, "closed.yaml", "settings:\n  booking_window_days: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, closed.Settings.BookingWindowDays)
	assert.Zero(t, closed.SchedulingSettings().Window())

	noticeOnly, err := LoadScheduleConfig(writeFile(t, dir, "notice.yaml", "settings:\n  min_booking_notice_hours: 6\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultBookingWindowDays, noticeOnly.Settings.BookingWindowDays)
	assert.Equal(t, 6, noticeOnly.Settings.MinBookingNoticeHours)
}

func TestScheduleConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "negative window",
			yaml:    "settings:\n  booking_window_days: -1\n",
			wantErr: "booking_window_days cannot be negative",
		},
		{
			name:    "negative notice",
			yaml:    "settings:\n  min_booking_notice_hours: -3\n",
			wantErr: "min_booking_notice_hours cannot be negative",
		},
		{
			name:    "missing id",
			yaml:    "session_types:\n  - name: A\n",
			wantErr: "session_types[0]: id must be positive",
		},
		{
			name:    "duplicate id",
			yaml:    "session_types:\n  - id: 1\n    name: A\n  - id: 1\n    name: B\n",
			wantErr: "session_types[1]: duplicate id 1",
		},
		{
			name:    "duplicate name",
			yaml:    "session_types:\n  - id: 1\n    name: A\n  - id: 2\n    name: A\n",
			wantErr: "session_types[1]: duplicate name 'A'",
		},
		{
			name:    "invalid day",
			yaml:    "templates:\n  - days: [7]\n    start_time: \"09:00\"\n    end_time: \"10:00\"\n",
			wantErr: "templates[0]: invalid day 7",
		},
		{
			name:    "empty window",
			yaml:    "templates:\n  - days: [1]\n    start_time: \"10:00\"\n    end_time: \"10:00\"\n",
			wantErr: "templates[0]: end_time must be after start_time",
		},
		{
			name:    "bad clock",
			yaml:    "templates:\n  - days: [1]\n    start_time: \"25:00\"\n    end_time: \"26:00\"\n",
			wantErr: "parse schedule config",
		},
		{
			name:    "bad date",
			yaml:    "holidays:\n  - date: \"2026-13-01\"\n",
			wantErr: "parse schedule config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "schedule.yaml", tt.yaml)
			_, err := LoadScheduleConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWatchSchedule(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "schedule.yaml", sampleSchedule)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		updates []*ScheduleConfig
	)
	err := WatchSchedule(ctx, path, 10*time.Millisecond, func(cfg *ScheduleConfig) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, cfg)
	}, nil)
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, updates, 1, "initial load should call onUpdate")
	mu.Unlock()

	updated := sampleSchedule + "  - date: 2026-12-31\n    name: \"New Year's Eve\"\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(updates) == 2 && len(updates[1].Holidays) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatchSchedule_InvalidInitial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	err := WatchSchedule(context.Background(), path, time.Second, nil, nil)
	assert.Error(t, err)
}
