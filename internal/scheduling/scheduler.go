// Package scheduling is the entry point for every schedule operation. It
// owns the availability and appointment managers, wires them to each other
// and runs each mutation under the doctor's lock.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

// ErrScheduleBusy means another process holds the doctor's lock. Retry.
var ErrScheduleBusy = errors.New("doctor schedule is busy")

type settings struct {
	now            func() time.Time
	metrics        *metrics.Metrics
	events         appointment.EventRecorder
	revertOnCancel bool
}

type Option func(*settings)

func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

func WithEvents(ev appointment.EventRecorder) Option {
	return func(s *settings) { s.events = ev }
}

func WithRevertOnCancel(revert bool) Option {
	return func(s *settings) { s.revertOnCancel = revert }
}

type Scheduler struct {
	slots   *availability.Manager
	appts   *appointment.Manager
	locker  Locker
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// slotCanceller lets availability reach the appointment manager, which is
// only built after it.
type slotCanceller struct {
	appts *appointment.Manager
}

func (c *slotCanceller) CancelForSlot(ctx context.Context, key timeslot.Key) (func(context.Context) error, error) {
	return c.appts.CancelForSlot(ctx, key)
}

func New(slotRepo availability.Repository, apptRepo appointment.Repository, locker Locker, log zerolog.Logger, opts ...Option) *Scheduler {
	cfg := settings{now: time.Now, revertOnCancel: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	canceller := &slotCanceller{}
	slots := availability.NewManager(slotRepo, canceller, log,
		availability.WithClock(cfg.now),
		availability.WithMetrics(cfg.metrics),
	)

	apptOpts := []appointment.Option{
		appointment.WithClock(cfg.now),
		appointment.WithMetrics(cfg.metrics),
		appointment.WithRevertOnCancel(cfg.revertOnCancel),
	}
	if cfg.events != nil {
		apptOpts = append(apptOpts, appointment.WithEvents(cfg.events))
	}
	appts := appointment.NewManager(apptRepo, slots, log, apptOpts...)
	canceller.appts = appts

	return &Scheduler{
		slots:   slots,
		appts:   appts,
		locker:  locker,
		metrics: cfg.metrics,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// mutate runs fn under the doctor's lock. Both caches for the doctor are
// dropped afterwards so the next read sees what was persisted, even when fn
// failed halfway.
func (s *Scheduler) mutate(ctx context.Context, op, doctorID string, fn func(ctx context.Context) error) error {
	start := time.Now()
	defer s.metrics.Observe(op, start)

	err := s.locker.WithDoctorLock(ctx, doctorID, func(ctx context.Context) error {
		defer s.slots.Invalidate(doctorID)
		defer s.appts.Invalidate(doctorID)
		return fn(ctx)
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		s.metrics.Contended()
		s.log.Info().Str("doctor_id", doctorID).Str("operation", op).Msg("doctor lock held elsewhere")
		return fmt.Errorf("%s for doctor %s: %w", op, doctorID, ErrScheduleBusy)
	}
	return err
}

func (s *Scheduler) SubmitAvailability(ctx context.Context, req availability.SubmitRequest) ([]availability.Slot, error) {
	var out []availability.Slot
	err := s.mutate(ctx, "submit_availability", req.DoctorID, func(ctx context.Context) error {
		var err error
		out, err = s.slots.Submit(ctx, req)
		return err
	})
	return out, err
}

func (s *Scheduler) EditAvailability(ctx context.Context, req availability.EditRequest) (availability.Slot, error) {
	var out availability.Slot
	err := s.mutate(ctx, "edit_availability", req.DoctorID, func(ctx context.Context) error {
		var err error
		out, err = s.slots.Edit(ctx, req)
		return err
	})
	return out, err
}

func (s *Scheduler) Availability(ctx context.Context, doctorID string) ([]availability.Day, error) {
	return s.slots.View(ctx, doctorID)
}

func (s *Scheduler) Slots(ctx context.Context, doctorID string) ([]availability.Slot, error) {
	return s.slots.Slots(ctx, doctorID)
}

func (s *Scheduler) RenderAvailability(ctx context.Context, w io.Writer, doctorID string) error {
	days, err := s.slots.View(ctx, doctorID)
	if err != nil {
		return err
	}
	return availability.Render(w, days)
}

func (s *Scheduler) Book(ctx context.Context, req appointment.BookRequest) (*appointment.Appointment, error) {
	var out *appointment.Appointment
	err := s.mutate(ctx, "book", req.DoctorID, func(ctx context.Context) error {
		var err error
		out, err = s.appts.Book(ctx, req)
		return err
	})
	return out, err
}

// transition resolves the appointment's doctor first so the right lock is
// taken, then lets the manager re-read and decide under it.
func (s *Scheduler) transition(ctx context.Context, op, id string, fn func(ctx context.Context) (*appointment.Appointment, error)) (*appointment.Appointment, error) {
	a, err := s.appts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var out *appointment.Appointment
	err = s.mutate(ctx, op, a.DoctorID, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

func (s *Scheduler) Accept(ctx context.Context, id string) (*appointment.Appointment, error) {
	return s.transition(ctx, "accept", id, func(ctx context.Context) (*appointment.Appointment, error) {
		return s.appts.Accept(ctx, id)
	})
}

func (s *Scheduler) Decline(ctx context.Context, id string) (*appointment.Appointment, error) {
	return s.transition(ctx, "decline", id, func(ctx context.Context) (*appointment.Appointment, error) {
		return s.appts.Decline(ctx, id)
	})
}

func (s *Scheduler) Cancel(ctx context.Context, id string) (*appointment.Appointment, error) {
	return s.transition(ctx, "cancel", id, func(ctx context.Context) (*appointment.Appointment, error) {
		return s.appts.Cancel(ctx, id)
	})
}

func (s *Scheduler) RecordOutcome(ctx context.Context, req appointment.OutcomeRequest) (*appointment.Outcome, error) {
	var out *appointment.Outcome
	_, err := s.transition(ctx, "record_outcome", req.AppointmentID, func(ctx context.Context) (*appointment.Appointment, error) {
		var err error
		out, err = s.appts.RecordOutcome(ctx, req)
		return nil, err
	})
	return out, err
}

func (s *Scheduler) Appointment(ctx context.Context, id string) (*appointment.Appointment, error) {
	return s.appts.Get(ctx, id)
}

func (s *Scheduler) Appointments(ctx context.Context, doctorID string) ([]appointment.Appointment, error) {
	return s.appts.Load(ctx, doctorID)
}

func (s *Scheduler) PatientAppointments(ctx context.Context, patientID string) ([]appointment.Appointment, error) {
	return s.appts.ListByPatient(ctx, patientID)
}

func (s *Scheduler) Pending(ctx context.Context, doctorID string) ([]appointment.Appointment, error) {
	return s.appts.Pending(ctx, doctorID)
}

func (s *Scheduler) Schedule(ctx context.Context, doctorID string, year int, month time.Month) (appointment.MonthSchedule, error) {
	return s.appts.Schedule(ctx, doctorID, year, month)
}

func (s *Scheduler) RenderSchedule(ctx context.Context, w io.Writer, doctorID string, year int, month time.Month) error {
	sched, err := s.appts.Schedule(ctx, doctorID, year, month)
	if err != nil {
		return err
	}
	return appointment.RenderMonth(w, sched)
}

// Invalidate drops both cached views of the doctor's schedule.
func (s *Scheduler) Invalidate(doctorID string) {
	s.slots.Invalidate(doctorID)
	s.appts.Invalidate(doctorID)
}
