package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ClockTime is a local wall-clock time of day, stored as seconds since midnight.
type ClockTime int

const secondsPerDay = 24 * 60 * 60

// ParseClock accepts "HH:MM" and "HH:MM:SS".
func ParseClock(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time format: %q", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	second := 0
	if len(parts) == 3 {
		second, err = strconv.Atoi(parts[2])
		if err != nil || second < 0 || second > 59 {
			return 0, fmt.Errorf("invalid second in %q", s)
		}
	}

	c := ClockTime(hour*3600 + minute*60 + second)
	if c > secondsPerDay {
		return 0, fmt.Errorf("time out of range: %q", s)
	}
	return c, nil
}

// MustClock is ParseClock for literals in tests and fixtures.
func MustClock(s string) ClockTime {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockOf returns the wall-clock time of t in t's location.
func ClockOf(t time.Time) ClockTime {
	h, m, s := t.Clock()
	return ClockTime(h*3600 + m*60 + s)
}

func (c ClockTime) HMS() (hour, minute, second int) {
	v := int(c)
	return v / 3600, (v % 3600) / 60, v % 60
}

func (c ClockTime) Add(d time.Duration) ClockTime {
	return c + ClockTime(d/time.Second)
}

// String renders HH:MM, or HH:MM:SS when seconds are set.
func (c ClockTime) String() string {
	h, m, s := c.HMS()
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// UnmarshalYAML reads the raw scalar so unquoted values are not retagged.
func (c *ClockTime) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseClock(value.Value)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c ClockTime) Value() (driver.Value, error) {
	h, m, s := c.HMS()
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s), nil
}

func (c *ClockTime) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseClock(v)
		if err != nil {
			return err
		}
		*c = parsed
	case []byte:
		parsed, err := ParseClock(string(v))
		if err != nil {
			return err
		}
		*c = parsed
	default:
		return fmt.Errorf("cannot scan %T into ClockTime", src)
	}
	return nil
}
