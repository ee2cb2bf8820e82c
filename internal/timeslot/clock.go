package timeslot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Clock is a wall-clock time of day in minutes since midnight.
type Clock int

const (
	Hour Clock = 60
	day  Clock = 24 * Hour
)

// optional minutes, optional case-insensitive AM/PM marker
var clockPattern = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*([AaPp][Mm])?$`)

// ParseClock accepts "2 PM", "2:30 pm", "9AM", "14:00" and "9".
// Without a marker the hour is read on a 24-hour clock.
func ParseClock(s string) (Clock, error) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}

	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if minute > 59 {
		return 0, fmt.Errorf("invalid time %q: minute out of range", s)
	}

	switch strings.ToUpper(m[3]) {
	case "AM":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("invalid time %q: hour out of range", s)
		}
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("invalid time %q: hour out of range", s)
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour > 23 {
			return 0, fmt.Errorf("invalid time %q: hour out of range", s)
		}
	}

	return Clock(hour*60 + minute), nil
}

// MustParseClock is for literals in tests and seed data.
func MustParseClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// SameTime compares two stored time strings after parsing both. A parse
// failure on either side counts as "different".
func SameTime(a, b string) bool {
	ca, err := ParseClock(a)
	if err != nil {
		return false
	}
	cb, err := ParseClock(b)
	if err != nil {
		return false
	}
	return ca == cb
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

// String formats as "9:00 AM", the layout written to the stores.
func (c Clock) String() string {
	h := c.Hour() % 24
	marker := "AM"
	if h >= 12 {
		marker = "PM"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, c.Minute(), marker)
}

// Canonical formats as "09:00".
func (c Clock) Canonical() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On returns the instant of c on the given calendar date in loc.
func (c Clock) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour(), c.Minute(), 0, 0, loc)
}
