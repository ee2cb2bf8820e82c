package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

const uniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, patient_id, doctor_id, status, appointment_date, start_time, outcome_record`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.Status,
		&a.Date,
		&a.StartTime,
		&a.OutcomeRecord,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanOutcome(row pgx.Row) (*Outcome, error) {
	var (
		o                           Outcome
		names, statuses, quantities string
	)
	err := row.Scan(
		&o.AppointmentID,
		&o.Date,
		&o.ServiceType,
		&o.ConsultationNotes,
		&names,
		&statuses,
		&quantities,
		&o.FinalOutcome,
	)
	if err != nil {
		return nil, err
	}
	meds, err := decodeMedications(names, statuses, quantities)
	if err != nil {
		return nil, err
	}
	o.Medications = meds
	return &o, nil
}

func (r *PgRepository) list(ctx context.Context, query string, args ...any) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Store("list appointments", err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, apperr.Store("scan appointment", err)
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list appointments", err)
	}
	return result, nil
}

func (r *PgRepository) ListAppointments(ctx context.Context) ([]Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		ORDER BY seq
	`)
}

func (r *PgRepository) ListAppointmentsByDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		ORDER BY seq
	`, doctorID)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY seq
	`, patientID)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	a, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("get appointment", "appointment %s not found", id)
	}
	if err != nil {
		return nil, apperr.Store("get appointment", err)
	}
	return a, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, status, appointment_date, start_time, outcome_record, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	`, a.ID, a.PatientID, a.DoctorID, a.Status, a.Date, a.StartTime, a.OutcomeRecord)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperr.Conflict("create appointment", "appointment %s already exists", a.ID)
		}
		return apperr.Store("create appointment", err)
	}
	return nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id string, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	a, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.missedUpdate(ctx, "update appointment status", id, from)
	}
	if err != nil {
		return nil, apperr.Store("update appointment status", err)
	}
	return a, nil
}

// missedUpdate tells apart a vanished row from one whose status moved on.
func (r *PgRepository) missedUpdate(ctx context.Context, op, id string, from Status) error {
	var current Status
	err := r.pool.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(op, "appointment %s not found", id)
	}
	if err != nil {
		return apperr.Store(op, err)
	}
	return apperr.InvalidTransition(op, "appointment %s is %s, expected %s", id, current, from)
}

func (r *PgRepository) GetOutcome(ctx context.Context, appointmentID string) (*Outcome, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT appointment_id, outcome_date, service_type, consultation_notes,
		       medicine_names, medicine_statuses, quantities, final_outcome
		FROM appointment_outcomes
		WHERE appointment_id = $1
	`, appointmentID)
	o, err := scanOutcome(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("get outcome", "no outcome for appointment %s", appointmentID)
	}
	if err != nil {
		return nil, apperr.Store("get outcome", err)
	}
	return o, nil
}

func (r *PgRepository) RecordOutcome(ctx context.Context, o Outcome, from Status) (*Appointment, error) {
	const op = "record outcome"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Store(op, err)
	}
	defer tx.Rollback(ctx)

	names, statuses, quantities := encodeMedications(o.Medications)
	_, err = tx.Exec(ctx, `
		INSERT INTO appointment_outcomes (appointment_id, outcome_date, service_type, consultation_notes,
		                                  medicine_names, medicine_statuses, quantities, final_outcome, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	`, o.AppointmentID, o.Date, o.ServiceType, o.ConsultationNotes, names, statuses, quantities, o.FinalOutcome)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, apperr.DuplicateOutcome(op, "appointment %s already has an outcome", o.AppointmentID)
		}
		return nil, apperr.Store(op, err)
	}

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    outcome_record = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, o.AppointmentID, StatusCompleted, from, o.FinalOutcome)
	a, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.missedUpdate(ctx, op, o.AppointmentID, from)
	}
	if err != nil {
		return nil, apperr.Store(op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Store(op, err)
	}
	return a, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return apperr.Store("insert event log", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
