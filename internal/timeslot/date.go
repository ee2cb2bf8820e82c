package timeslot

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// ParseDate returns the calendar date at midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// DateOf strips the wall-clock part of t, keeping its local calendar date.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

func SameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// InPast reports whether date lies strictly before the calendar day of now.
func InPast(date, now time.Time) bool {
	return DateOf(date).Before(DateOf(now))
}

// Key identifies a slot: doctor, calendar date and parsed start time.
// Appointments and availability rows are matched through it.
type Key struct {
	DoctorID string
	Date     time.Time
	Start    Clock
}

func NewKey(doctorID string, date time.Time, start string) (Key, error) {
	c, err := ParseClock(start)
	if err != nil {
		return Key{}, err
	}
	return Key{DoctorID: doctorID, Date: DateOf(date), Start: c}, nil
}

func (k Key) Equal(o Key) bool {
	return k.DoctorID == o.DoctorID && SameDate(k.Date, o.Date) && k.Start == o.Start
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.DoctorID, FormatDate(k.Date), k.Start.Canonical())
}
