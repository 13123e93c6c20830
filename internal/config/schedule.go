package config

import (
	"fmt"
	"os"
	"time"

	"ptportal/internal/model"

	"gopkg.in/yaml.v3"
)

// DefaultBookingWindowDays applies when schedule.yaml leaves
// booking_window_days unset. An explicit 0 is kept.
const DefaultBookingWindowDays = 30

// SettingsConfig mirrors the scheduling_settings row.
type SettingsConfig struct {
	BookingWindowDays     int `yaml:"booking_window_days"`
	MinBookingNoticeHours int `yaml:"min_booking_notice_hours"`
}

// SessionTypeConfig represents a single session type.
type SessionTypeConfig struct {
	ID              int64  `yaml:"id"`
	Name            string `yaml:"name"`
	DurationMinutes int    `yaml:"duration_minutes"`
	MaxAthletes     int    `yaml:"max_athletes"`
	IsActive        *bool  `yaml:"is_active,omitempty"`
}

// TemplateConfig is a weekly open window. Days uses 0=Sun..6=Sat so one
// entry can cover several weekdays.
type TemplateConfig struct {
	Days      []int           `yaml:"days"`
	StartTime model.ClockTime `yaml:"start_time"`
	EndTime   model.ClockTime `yaml:"end_time"`
}

// HolidayConfig closes the facility for a whole date.
type HolidayConfig struct {
	Date model.Date `yaml:"date"`
	Name string     `yaml:"name"`
}

// ScheduleConfig is the root of schedule.yaml.
type ScheduleConfig struct {
	Settings     SettingsConfig      `yaml:"settings"`
	SessionTypes []SessionTypeConfig `yaml:"session_types"`
	Templates    []TemplateConfig    `yaml:"templates"`
	Holidays     []HolidayConfig     `yaml:"holidays"`
}

// LoadScheduleConfig loads and validates schedule.yaml.
func LoadScheduleConfig(path string) (*ScheduleConfig, error) {
	if path == "" {
		path = "configs/schedule.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule config: %w", err)
	}

	// Keys absent from the file keep these values.
	cfg := ScheduleConfig{Settings: SettingsConfig{BookingWindowDays: DefaultBookingWindowDays}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse schedule config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate schedule config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *ScheduleConfig) Validate() error {
	if c.Settings.BookingWindowDays < 0 {
		return fmt.Errorf("settings.booking_window_days cannot be negative")
	}
	if c.Settings.MinBookingNoticeHours < 0 {
		return fmt.Errorf("settings.min_booking_notice_hours cannot be negative")
	}

	ids := make(map[int64]bool)
	names := make(map[string]bool)
	for i, st := range c.SessionTypes {
		if st.ID <= 0 {
			return fmt.Errorf("session_types[%d]: id must be positive, got %d", i, st.ID)
		}
		if ids[st.ID] {
			return fmt.Errorf("session_types[%d]: duplicate id %d", i, st.ID)
		}
		ids[st.ID] = true

		if st.Name == "" {
			return fmt.Errorf("session_types[%d]: name is required", i)
		}
		if names[st.Name] {
			return fmt.Errorf("session_types[%d]: duplicate name '%s'", i, st.Name)
		}
		names[st.Name] = true

		if st.DurationMinutes < 0 {
			return fmt.Errorf("session_types[%d]: duration_minutes cannot be negative", i)
		}
		if st.MaxAthletes < 0 {
			return fmt.Errorf("session_types[%d]: max_athletes cannot be negative", i)
		}
	}

	for i, tpl := range c.Templates {
		if len(tpl.Days) == 0 {
			return fmt.Errorf("templates[%d]: days is required", i)
		}
		for _, d := range tpl.Days {
			if d < 0 || d > 6 {
				return fmt.Errorf("templates[%d]: invalid day %d, must be 0-6 (0=Sun, 6=Sat)", i, d)
			}
		}
		if tpl.EndTime <= tpl.StartTime {
			return fmt.Errorf("templates[%d]: end_time must be after start_time", i)
		}
	}

	for i, h := range c.Holidays {
		if h.Date.IsZero() {
			return fmt.Errorf("holidays[%d]: date is required", i)
		}
	}

	return nil
}

func (c *ScheduleConfig) applyDefaults() {
	for i := range c.SessionTypes {
		if c.SessionTypes[i].DurationMinutes == 0 {
			c.SessionTypes[i].DurationMinutes = model.DefaultDurationMinutes
		}
		if c.SessionTypes[i].MaxAthletes == 0 {
			c.SessionTypes[i].MaxAthletes = model.DefaultMaxAthletes
		}
	}
}

// SchedulingSettings converts the settings block to the model type.
func (c *ScheduleConfig) SchedulingSettings() model.SchedulingSettings {
	return model.SchedulingSettings{
		BookingWindowDays:     c.Settings.BookingWindowDays,
		MinBookingNoticeHours: c.Settings.MinBookingNoticeHours,
	}
}

// SessionTypeModels converts session types; omitted is_active means active.
func (c *ScheduleConfig) SessionTypeModels() []model.SessionType {
	result := make([]model.SessionType, 0, len(c.SessionTypes))
	for _, st := range c.SessionTypes {
		active := st.IsActive == nil || *st.IsActive
		result = append(result, model.SessionType{
			ID:              st.ID,
			Name:            st.Name,
			DurationMinutes: st.DurationMinutes,
			MaxAthletes:     st.MaxAthletes,
			IsActive:        active,
		})
	}
	return result
}

// TemplateModels expands multi-day entries into one template per weekday.
func (c *ScheduleConfig) TemplateModels() []model.AvailabilityTemplate {
	var result []model.AvailabilityTemplate
	for _, tpl := range c.Templates {
		for _, d := range tpl.Days {
			result = append(result, model.AvailabilityTemplate{
				DayOfWeek: time.Weekday(d),
				StartTime: tpl.StartTime,
				EndTime:   tpl.EndTime,
				IsActive:  true,
			})
		}
	}
	return result
}

// IsHoliday checks if a date is a configured holiday.
func (c *ScheduleConfig) IsHoliday(date model.Date) (bool, string) {
	for _, h := range c.Holidays {
		if h.Date == date {
			return true, h.Name
		}
	}
	return false, ""
}

// String returns a summary of the configuration.
func (c *ScheduleConfig) String() string {
	return fmt.Sprintf("ScheduleConfig: %d session types, %d templates, %d holidays",
		len(c.SessionTypes), len(c.TemplateModels()), len(c.Holidays))
}
