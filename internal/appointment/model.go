package appointment

import (
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

// Status transitions:
//
//	SCHEDULED -> CONFIRMED -> COMPLETED
//	SCHEDULED -> DECLINED
//	SCHEDULED -> CANCELLED
//	CONFIRMED -> CANCELLED
//	SCHEDULED -> COMPLETED (outcome recorded without confirmation)
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusConfirmed Status = "CONFIRMED"
	StatusDeclined  Status = "DECLINED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusScheduled, StatusConfirmed, StatusDeclined, StatusCancelled, StatusCompleted:
		return st, nil
	}
	return "", fmt.Errorf("unknown appointment status %q", s)
}

func (s Status) Terminal() bool {
	switch s {
	case StatusDeclined, StatusCancelled, StatusCompleted:
		return true
	case StatusScheduled, StatusConfirmed:
		return false
	}
	return true
}

func (s Status) CanTransitionTo(to Status) bool {
	switch s {
	case StatusScheduled:
		switch to {
		case StatusConfirmed, StatusDeclined, StatusCancelled, StatusCompleted:
			return true
		case StatusScheduled:
			return false
		}
	case StatusConfirmed:
		switch to {
		case StatusCancelled, StatusCompleted:
			return true
		case StatusScheduled, StatusConfirmed, StatusDeclined:
			return false
		}
	case StatusDeclined, StatusCancelled, StatusCompleted:
		return false
	}
	return false
}

type Appointment struct {
	ID            string
	PatientID     string
	DoctorID      string
	Status        Status
	Date          time.Time
	StartTime     string
	OutcomeRecord string
}

// Key locates the availability slot this appointment occupies.
func (a Appointment) Key() (timeslot.Key, error) {
	return timeslot.NewKey(a.DoctorID, a.Date, a.StartTime)
}

func (a Appointment) Matches(key timeslot.Key) bool {
	k, err := a.Key()
	if err != nil {
		return false
	}
	return k.Equal(key)
}

type DispenseStatus string

const (
	DispensePending   DispenseStatus = "PENDING"
	DispenseDispensed DispenseStatus = "DISPENSED"
)

func ParseDispenseStatus(s string) (DispenseStatus, error) {
	st := DispenseStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case DispensePending, DispenseDispensed:
		return st, nil
	}
	return "", fmt.Errorf("unknown dispense status %q", s)
}

type Medication struct {
	Name     string
	Status   DispenseStatus
	Quantity int
}

// Outcome is the clinical summary attached to a completed appointment.
// At most one exists per appointment.
type Outcome struct {
	AppointmentID     string
	Date              time.Time
	ServiceType       string
	ConsultationNotes string
	Medications       []Medication
	FinalOutcome      string
}

type BookRequest struct {
	DoctorID  string
	PatientID string
	Date      time.Time
	StartTime string
}

type OutcomeRequest struct {
	AppointmentID     string
	ServiceType       string
	Medications       []Medication
	ConsultationNotes string
	FinalOutcome      string
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *string
	Payload       []byte
	CreatedAt     time.Time
}

// MonthSchedule is a doctor's month: days holding a confirmed appointment
// and every appointment that was not cancelled, in chronological order.
type MonthSchedule struct {
	DoctorID      string
	Year          int
	Month         time.Month
	ConfirmedDays []int
	Appointments  []Appointment
}

func (s MonthSchedule) Empty() bool {
	return len(s.ConfirmedDays) == 0 && len(s.Appointments) == 0
}
