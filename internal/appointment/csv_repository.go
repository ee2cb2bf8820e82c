package appointment

import (
	"context"
	"sync"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/tabular"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

var (
	appointmentHeader = []string{"appointmentId", "patientId", "doctorId", "status", "date", "startTime", "outcomeRecordText"}
	outcomeHeader     = []string{"appointmentId", "date", "serviceType", "consultationNotes",
		"medicineNames", "medicineStatuses", "quantities", "finalOutcomeText"}
)

// CSVRepository keeps appointments and outcomes in two sheets under one
// data directory.
type CSVRepository struct {
	mu           sync.Mutex
	appointments *tabular.Table
	outcomes     *tabular.Table
}

func NewCSVRepository(dir string) (*CSVRepository, error) {
	appts, err := tabular.Open(dir, "appointments.csv", appointmentHeader)
	if err != nil {
		return nil, apperr.Store("open appointments table", err)
	}
	outcomes, err := tabular.Open(dir, "outcomes.csv", outcomeHeader)
	if err != nil {
		return nil, apperr.Store("open outcomes table", err)
	}
	return &CSVRepository{appointments: appts, outcomes: outcomes}, nil
}

func encodeAppointment(a Appointment) []string {
	return []string{a.ID, a.PatientID, a.DoctorID, string(a.Status), timeslot.FormatDate(a.Date), a.StartTime, a.OutcomeRecord}
}

func decodeAppointment(row []string) (Appointment, error) {
	st, err := ParseStatus(row[3])
	if err != nil {
		return Appointment{}, err
	}
	date, err := timeslot.ParseDate(row[4])
	if err != nil {
		return Appointment{}, err
	}
	return Appointment{
		ID:            row[0],
		PatientID:     row[1],
		DoctorID:      row[2],
		Status:        st,
		Date:          date,
		StartTime:     row[5],
		OutcomeRecord: row[6],
	}, nil
}

func encodeOutcome(o Outcome) []string {
	names, statuses, quantities := encodeMedications(o.Medications)
	return []string{o.AppointmentID, timeslot.FormatDate(o.Date), o.ServiceType, o.ConsultationNotes,
		names, statuses, quantities, o.FinalOutcome}
}

func decodeOutcome(row []string) (Outcome, error) {
	date, err := timeslot.ParseDate(row[1])
	if err != nil {
		return Outcome{}, err
	}
	meds, err := decodeMedications(row[4], row[5], row[6])
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		AppointmentID:     row[0],
		Date:              date,
		ServiceType:       row[2],
		ConsultationNotes: row[3],
		Medications:       meds,
		FinalOutcome:      row[7],
	}, nil
}

func (r *CSVRepository) ListAppointments(_ context.Context) ([]Appointment, error) {
	rows, err := r.appointments.ReadAll()
	if err != nil {
		return nil, apperr.Store("read appointments", err)
	}
	out := make([]Appointment, 0, len(rows))
	for _, row := range rows {
		a, err := decodeAppointment(row)
		if err != nil {
			return nil, apperr.Store("decode appointment row", err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *CSVRepository) filter(ctx context.Context, keep func(Appointment) bool) ([]Appointment, error) {
	all, err := r.ListAppointments(ctx)
	if err != nil {
		return nil, err
	}
	var out []Appointment
	for _, a := range all {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *CSVRepository) ListAppointmentsByDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	return r.filter(ctx, func(a Appointment) bool { return a.DoctorID == doctorID })
}

func (r *CSVRepository) ListAppointmentsByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	return r.filter(ctx, func(a Appointment) bool { return a.PatientID == patientID })
}

func (r *CSVRepository) GetAppointmentByID(ctx context.Context, id string) (*Appointment, error) {
	found, err := r.filter(ctx, func(a Appointment) bool { return a.ID == id })
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, apperr.NotFound("get appointment", "appointment %s not found", id)
	}
	return &found[0], nil
}

func (r *CSVRepository) CreateAppointment(_ context.Context, a Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.appointments.Swap(func(rows [][]string) ([][]string, error) {
		for _, row := range rows {
			if row[0] == a.ID {
				return nil, apperr.Conflict("create appointment", "appointment %s already exists", a.ID)
			}
		}
		return append(rows, encodeAppointment(a)), nil
	})
	if err != nil {
		return storeErr("create appointment", err)
	}
	return nil
}

func (r *CSVRepository) UpdateAppointmentStatus(_ context.Context, id string, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.transition(id, from, func(a *Appointment) { a.Status = to })
}

// transition rewrites the appointment row only while it is still in status
// from.
func (r *CSVRepository) transition(id string, from Status, apply func(*Appointment)) (*Appointment, error) {
	const op = "update appointment status"

	var updated *Appointment
	err := r.appointments.Swap(func(rows [][]string) ([][]string, error) {
		for i, row := range rows {
			if row[0] != id {
				continue
			}
			a, err := decodeAppointment(row)
			if err != nil {
				return nil, err
			}
			if a.Status != from {
				return nil, apperr.InvalidTransition(op, "appointment %s is %s, expected %s", id, a.Status, from)
			}
			apply(&a)
			rows[i] = encodeAppointment(a)
			updated = &a
			return rows, nil
		}
		return nil, apperr.NotFound(op, "appointment %s not found", id)
	})
	if err != nil {
		return nil, storeErr(op, err)
	}
	return updated, nil
}

func (r *CSVRepository) GetOutcome(_ context.Context, appointmentID string) (*Outcome, error) {
	rows, err := r.outcomes.ReadAll()
	if err != nil {
		return nil, apperr.Store("read outcomes", err)
	}
	for _, row := range rows {
		if row[0] != appointmentID {
			continue
		}
		o, err := decodeOutcome(row)
		if err != nil {
			return nil, apperr.Store("decode outcome row", err)
		}
		return &o, nil
	}
	return nil, apperr.NotFound("get outcome", "no outcome for appointment %s", appointmentID)
}

// RecordOutcome appends the outcome row, then completes the appointment. If
// the appointment rewrite fails the outcomes sheet is put back as it was.
func (r *CSVRepository) RecordOutcome(_ context.Context, o Outcome, from Status) (*Appointment, error) {
	const op = "record outcome"

	r.mu.Lock()
	defer r.mu.Unlock()

	var previous [][]string
	err := r.outcomes.Swap(func(rows [][]string) ([][]string, error) {
		for _, row := range rows {
			if row[0] == o.AppointmentID {
				return nil, apperr.DuplicateOutcome(op, "appointment %s already has an outcome", o.AppointmentID)
			}
		}
		previous = rows
		next := make([][]string, 0, len(rows)+1)
		next = append(next, rows...)
		return append(next, encodeOutcome(o)), nil
	})
	if err != nil {
		return nil, storeErr(op, err)
	}

	a, err := r.transition(o.AppointmentID, from, func(a *Appointment) {
		a.Status = StatusCompleted
		a.OutcomeRecord = o.FinalOutcome
	})
	if err != nil {
		if rerr := r.outcomes.Rewrite(previous); rerr != nil {
			return nil, apperr.Store(op, rerr)
		}
		return nil, err
	}
	return a, nil
}

// storeErr keeps business errors raised inside a swap and wraps the rest.
func storeErr(op string, err error) error {
	if apperr.IsBusiness(err) {
		return err
	}
	return apperr.Store(op, err)
}
