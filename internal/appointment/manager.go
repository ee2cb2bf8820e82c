package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/doctorcache"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentDeclined  = "APPOINTMENT_DECLINED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
)

// SlotSync is what the appointment side needs from availability.
type SlotSync interface {
	IsOpen(ctx context.Context, key timeslot.Key) (bool, error)
	MarkBooked(ctx context.Context, key timeslot.Key) error
	MarkAvailable(ctx context.Context, key timeslot.Key) error
}

type Manager struct {
	repo           Repository
	slots          SlotSync
	events         EventRecorder
	cache          *doctorcache.Cache[Appointment]
	metrics        *metrics.Metrics
	log            zerolog.Logger
	now            func() time.Time
	revertOnCancel bool
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func WithEvents(ev EventRecorder) Option {
	return func(m *Manager) { m.events = ev }
}

func WithCache(c *doctorcache.Cache[Appointment]) Option {
	return func(m *Manager) { m.cache = c }
}

// WithRevertOnCancel controls whether cancelling a confirmed appointment
// releases its slot back to AVAILABLE.
func WithRevertOnCancel(revert bool) Option {
	return func(m *Manager) { m.revertOnCancel = revert }
}

func NewManager(repo Repository, slots SlotSync, log zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		repo:           repo,
		slots:          slots,
		cache:          doctorcache.New[Appointment](),
		log:            log.With().Str("component", "appointments").Logger(),
		now:            time.Now,
		revertOnCancel: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load returns the doctor's appointments in stored order. The first call
// reads the store; later calls are served from cache until a mutation or
// Invalidate.
func (m *Manager) Load(ctx context.Context, doctorID string) ([]Appointment, error) {
	return m.cache.Load(ctx, doctorID, m.loader(doctorID))
}

func (m *Manager) Reload(ctx context.Context, doctorID string) ([]Appointment, error) {
	return m.cache.Reload(ctx, doctorID, m.loader(doctorID))
}

func (m *Manager) Invalidate(doctorID string) {
	m.cache.Invalidate(doctorID)
}

// All reads every appointment straight from the store.
func (m *Manager) All(ctx context.Context) ([]Appointment, error) {
	appts, err := m.repo.ListAppointments(ctx)
	if err != nil {
		return nil, fmt.Errorf("load all appointments: %w", err)
	}
	return appts, nil
}

func (m *Manager) loader(doctorID string) func(context.Context) ([]Appointment, error) {
	return func(ctx context.Context) ([]Appointment, error) {
		appts, err := m.repo.ListAppointmentsByDoctor(ctx, doctorID)
		if err != nil {
			return nil, fmt.Errorf("load appointments for %s: %w", doctorID, err)
		}
		return appts, nil
	}
}

func (m *Manager) Get(ctx context.Context, id string) (*Appointment, error) {
	if id == "" {
		return nil, apperr.Validation("get appointment", "appointment id is required")
	}
	a, err := m.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return a, nil
}

func (m *Manager) ListByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	if patientID == "" {
		return nil, apperr.Validation("list appointments", "patient id is required")
	}
	appts, err := m.repo.ListAppointmentsByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appts, nil
}

// Book requests an AVAILABLE slot for a patient. The appointment starts as
// SCHEDULED and waits for the doctor's review.
func (m *Manager) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	const op = "book appointment"

	if req.DoctorID == "" || req.PatientID == "" {
		return nil, apperr.Validation(op, "doctor id and patient id are required")
	}
	if req.Date.IsZero() {
		return nil, apperr.Validation(op, "date is required")
	}
	if timeslot.InPast(req.Date, m.now()) {
		return nil, apperr.Validation(op, "date %s is in the past", timeslot.FormatDate(req.Date))
	}
	key, err := timeslot.NewKey(req.DoctorID, req.Date, req.StartTime)
	if err != nil {
		return nil, apperr.Validation(op, "%v", err)
	}

	open, err := m.slots.IsOpen(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check slot %s: %w", key, err)
	}
	if !open {
		return nil, apperr.Conflict(op, "slot %s is not available", key)
	}

	appts, err := m.Reload(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	for _, a := range appts {
		if a.PatientID == req.PatientID && !a.Status.Terminal() && a.Matches(key) {
			return nil, apperr.Conflict(op, "patient %s already holds appointment %s for %s", req.PatientID, a.ID, key)
		}
	}

	a := Appointment{
		ID:        uuid.NewString(),
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Status:    StatusScheduled,
		Date:      timeslot.DateOf(req.Date),
		StartTime: strings.TrimSpace(req.StartTime),
	}
	if err := m.repo.CreateAppointment(ctx, a); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	m.cache.Invalidate(req.DoctorID)
	m.metrics.Transition(string(StatusScheduled))

	m.logEvent(ctx, a.ID, EventAppointmentBooked, map[string]any{
		"doctor_id":  a.DoctorID,
		"patient_id": a.PatientID,
		"slot":       key.String(),
	})

	return &a, nil
}

// Accept confirms a SCHEDULED appointment and marks its slot BOOKED.
func (m *Manager) Accept(ctx context.Context, id string) (*Appointment, error) {
	const op = "accept appointment"

	a, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Status.CanTransitionTo(StatusConfirmed) {
		return nil, apperr.InvalidTransition(op, "appointment %s is %s", a.ID, a.Status)
	}
	key, err := a.Key()
	if err != nil {
		return nil, apperr.Validation(op, "appointment %s has unreadable time %q", a.ID, a.StartTime)
	}

	appts, err := m.Reload(ctx, a.DoctorID)
	if err != nil {
		return nil, err
	}
	for _, other := range appts {
		if other.ID != a.ID && other.Status == StatusConfirmed && other.Matches(key) {
			return nil, apperr.Conflict(op, "slot %s is already confirmed for appointment %s", key, other.ID)
		}
	}

	updated, err := m.repo.UpdateAppointmentStatus(ctx, a.ID, StatusScheduled, StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}
	m.cache.Invalidate(a.DoctorID)

	if err := m.slots.MarkBooked(ctx, key); err != nil {
		if !errors.Is(err, apperr.ErrConsistency) {
			m.rollback(ctx, a.ID, StatusConfirmed, StatusScheduled)
			return nil, fmt.Errorf("book slot %s: %w", key, err)
		}
		m.warnInconsistent("accept", key, err)
	}

	m.metrics.Transition(string(StatusConfirmed))
	m.logEvent(ctx, a.ID, EventAppointmentConfirmed, map[string]any{"slot": key.String()})

	return updated, nil
}

// Decline rejects a SCHEDULED appointment. The slot was never booked, so
// availability is left alone.
func (m *Manager) Decline(ctx context.Context, id string) (*Appointment, error) {
	a, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Status.CanTransitionTo(StatusDeclined) {
		return nil, apperr.InvalidTransition("decline appointment", "appointment %s is %s", a.ID, a.Status)
	}

	updated, err := m.repo.UpdateAppointmentStatus(ctx, a.ID, a.Status, StatusDeclined)
	if err != nil {
		return nil, fmt.Errorf("decline appointment: %w", err)
	}
	m.cache.Invalidate(a.DoctorID)
	m.metrics.Transition(string(StatusDeclined))
	m.logEvent(ctx, a.ID, EventAppointmentDeclined, map[string]any{})

	return updated, nil
}

// Cancel moves a SCHEDULED or CONFIRMED appointment to CANCELLED. With
// revert-on-cancel a confirmed appointment's slot goes back to AVAILABLE.
func (m *Manager) Cancel(ctx context.Context, id string) (*Appointment, error) {
	a, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.cancel(ctx, a, m.revertOnCancel, "patient")
}

// CancelForSlot cancels the appointment occupying key because the doctor
// revoked the slot. The slot is not released; the caller is rewriting it.
// The returned undo restores the previous status and is meant for a caller
// whose own slot write failed.
func (m *Manager) CancelForSlot(ctx context.Context, key timeslot.Key) (func(context.Context) error, error) {
	a, err := m.FindBySlot(ctx, key)
	if err != nil {
		return nil, err
	}
	if a.Status.Terminal() {
		return nil, apperr.NotFound("cancel for slot", "no active appointment at %s", key)
	}
	prev := a.Status
	if _, err := m.cancel(ctx, a, false, "slot_revoked"); err != nil {
		return nil, err
	}

	undo := func(ctx context.Context) error {
		defer m.cache.Invalidate(a.DoctorID)
		if err := m.rollback(ctx, a.ID, StatusCancelled, prev); err != nil {
			return fmt.Errorf("restore appointment %s: %w", a.ID, err)
		}
		m.log.Warn().Str("appointment_id", a.ID).Str("slot", key.String()).Msg("slot revocation undone")
		return nil
	}
	return undo, nil
}

func (m *Manager) cancel(ctx context.Context, a *Appointment, release bool, reason string) (*Appointment, error) {
	if !a.Status.CanTransitionTo(StatusCancelled) {
		return nil, apperr.InvalidTransition("cancel appointment", "appointment %s is %s", a.ID, a.Status)
	}
	wasConfirmed := a.Status == StatusConfirmed

	updated, err := m.repo.UpdateAppointmentStatus(ctx, a.ID, a.Status, StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}
	m.cache.Invalidate(a.DoctorID)

	if wasConfirmed && release {
		key, kerr := a.Key()
		if kerr == nil {
			err = m.slots.MarkAvailable(ctx, key)
		}
		switch {
		case kerr != nil:
			m.log.Warn().Err(kerr).Str("appointment_id", a.ID).Msg("cannot release slot of appointment with unreadable time")
		case errors.Is(err, apperr.ErrConsistency):
			m.warnInconsistent("cancel", key, err)
		case err != nil:
			m.rollback(ctx, a.ID, StatusCancelled, a.Status)
			m.cache.Invalidate(a.DoctorID)
			return nil, fmt.Errorf("release slot %s: %w", key, err)
		}
	}

	m.metrics.Transition(string(StatusCancelled))
	m.logEvent(ctx, a.ID, EventAppointmentCancelled, map[string]any{
		"reason":        reason,
		"was_confirmed": wasConfirmed,
	})

	return updated, nil
}

// FindBySlot returns the appointment at key, comparing times through the
// shared parser. A CONFIRMED match wins over earlier non-confirmed ones.
func (m *Manager) FindBySlot(ctx context.Context, key timeslot.Key) (*Appointment, error) {
	appts, err := m.Reload(ctx, key.DoctorID)
	if err != nil {
		return nil, err
	}

	var first *Appointment
	for i := range appts {
		a := appts[i]
		if !a.Matches(key) {
			continue
		}
		if a.Status == StatusConfirmed {
			return &a, nil
		}
		if first == nil {
			first = &a
		}
	}
	if first == nil {
		return nil, apperr.NotFound("find appointment", "no appointment at %s", key)
	}
	return first, nil
}

// RecordOutcome stores the clinical summary and completes the appointment.
func (m *Manager) RecordOutcome(ctx context.Context, req OutcomeRequest) (*Outcome, error) {
	const op = "record outcome"

	if err := validateOutcome(req); err != nil {
		return nil, err
	}

	a, err := m.Get(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}

	existing, err := m.repo.GetOutcome(ctx, a.ID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("check outcome: %w", err)
	}
	if existing != nil {
		return nil, apperr.DuplicateOutcome(op, "appointment %s already has an outcome", a.ID)
	}

	if !a.Status.CanTransitionTo(StatusCompleted) {
		return nil, apperr.InvalidTransition(op, "appointment %s is %s", a.ID, a.Status)
	}

	o := Outcome{
		AppointmentID:     a.ID,
		Date:              a.Date,
		ServiceType:       strings.TrimSpace(req.ServiceType),
		ConsultationNotes: req.ConsultationNotes,
		Medications:       req.Medications,
		FinalOutcome:      req.FinalOutcome,
	}
	if _, err := m.repo.RecordOutcome(ctx, o, a.Status); err != nil {
		return nil, fmt.Errorf("record outcome: %w", err)
	}
	m.cache.Invalidate(a.DoctorID)
	m.metrics.Transition(string(StatusCompleted))
	m.logEvent(ctx, a.ID, EventAppointmentCompleted, map[string]any{
		"service_type": o.ServiceType,
		"medications":  len(o.Medications),
	})

	return &o, nil
}

func validateOutcome(req OutcomeRequest) error {
	const op = "record outcome"

	if req.AppointmentID == "" {
		return apperr.Validation(op, "appointment id is required")
	}
	if strings.TrimSpace(req.ServiceType) == "" {
		return apperr.Validation(op, "service type is required")
	}
	if strings.TrimSpace(req.FinalOutcome) == "" {
		return apperr.Validation(op, "final outcome is required")
	}
	for i, med := range req.Medications {
		if strings.TrimSpace(med.Name) == "" {
			return apperr.Validation(op, "medication %d has no name", i+1)
		}
		if strings.Contains(med.Name, ",") {
			return apperr.Validation(op, "medication name %q must not contain a comma", med.Name)
		}
		if _, err := ParseDispenseStatus(string(med.Status)); err != nil {
			return apperr.Validation(op, "medication %q: %v", med.Name, err)
		}
		if med.Quantity <= 0 {
			return apperr.Validation(op, "medication %q quantity must be positive", med.Name)
		}
	}
	return nil
}

// rollback reverts a status write whose paired slot write failed. It runs
// even when ctx is already cancelled.
func (m *Manager) rollback(ctx context.Context, id string, from, to Status) error {
	_, err := m.repo.UpdateAppointmentStatus(context.WithoutCancel(ctx), id, from, to)
	if err != nil {
		m.metrics.Inconsistent("rollback")
		m.log.Error().Err(err).Str("appointment_id", id).Str("to", string(to)).Msg("failed to roll back status")
	}
	return err
}

func (m *Manager) warnInconsistent(source string, key timeslot.Key, err error) {
	m.metrics.Inconsistent(source)
	m.log.Warn().Err(err).Str("doctor_id", key.DoctorID).Str("date", timeslot.FormatDate(key.Date)).
		Str("time", key.Start.String()).Msg("slot and appointment out of sync")
}

func (m *Manager) logEvent(ctx context.Context, appointmentID, eventType string, payload map[string]any) {
	if m.events == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		m.log.Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     m.now(),
	}

	if err := m.events.InsertEvent(ctx, ev); err != nil {
		m.log.Error().Err(err).Str("event", eventType).Str("appointment_id", appointmentID).Msg("failed to insert event log")
	}
}
