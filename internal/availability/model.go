package availability

import (
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusBusy      Status = "BUSY"
	StatusBooked    Status = "BOOKED"
)

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusAvailable, StatusBusy, StatusBooked:
		return st, nil
	}
	return "", fmt.Errorf("unknown availability status %q", s)
}

// Submittable reports whether a clinician may declare this status directly.
// BOOKED is only ever set by confirming an appointment.
func (s Status) Submittable() bool {
	switch s {
	case StatusAvailable, StatusBusy:
		return true
	case StatusBooked:
		return false
	}
	return false
}

// Slot is one stored availability row. It has no id of its own; doctor,
// date and start time identify it.
type Slot struct {
	DoctorID  string
	Date      time.Time
	StartTime string
	EndTime   string
	Status    Status
}

func (s Slot) Interval() (timeslot.Interval, error) {
	return timeslot.NewInterval(s.StartTime, s.EndTime)
}

func (s Slot) Key() (timeslot.Key, error) {
	return timeslot.NewKey(s.DoctorID, s.Date, s.StartTime)
}

// Matches reports whether the slot sits at key, comparing times through
// the shared parser.
func (s Slot) Matches(key timeslot.Key) bool {
	k, err := s.Key()
	if err != nil {
		return false
	}
	return k.Equal(key)
}

type SubmitRequest struct {
	DoctorID  string
	Date      time.Time
	StartTime string
	EndTime   string
	Status    Status
}

// EditRequest leaves a field unchanged when its pointer is nil.
type EditRequest struct {
	DoctorID     string
	Date         time.Time
	StartTime    string
	NewStartTime *string
	NewEndTime   *string
	NewStatus    *Status
}

// Range is a run of contiguous same-status slots.
type Range struct {
	Start  timeslot.Clock
	End    timeslot.Clock
	Status Status
}

type Day struct {
	Date   time.Time
	Ranges []Range
}
