package appointment

import (
	"context"
)

// Repository contains all store interactions needed by the manager.
type Repository interface {
	ListAppointments(ctx context.Context) ([]Appointment, error)
	ListAppointmentsByDoctor(ctx context.Context, doctorID string) ([]Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID string) ([]Appointment, error)
	GetAppointmentByID(ctx context.Context, id string) (*Appointment, error)

	CreateAppointment(ctx context.Context, a Appointment) error

	// UpdateAppointmentStatus only changes a row still in status from.
	UpdateAppointmentStatus(ctx context.Context, id string, from, to Status) (*Appointment, error)

	GetOutcome(ctx context.Context, appointmentID string) (*Outcome, error)

	// RecordOutcome stores o and completes the appointment in one write.
	RecordOutcome(ctx context.Context, o Outcome, from Status) (*Appointment, error)
}

// EventRecorder receives the activity log of status transitions.
type EventRecorder interface {
	InsertEvent(ctx context.Context, ev EventLog) error
}
