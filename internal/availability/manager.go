package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/doctorcache"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

// AppointmentCanceller is what the availability side needs from
// appointments: revoking the booking that occupies a slot. The returned
// undo restores the booking if the slot write that follows fails.
type AppointmentCanceller interface {
	CancelForSlot(ctx context.Context, key timeslot.Key) (undo func(context.Context) error, err error)
}

type Manager struct {
	repo    Repository
	appts   AppointmentCanceller
	cache   *doctorcache.Cache[Slot]
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func WithCache(c *doctorcache.Cache[Slot]) Option {
	return func(m *Manager) { m.cache = c }
}

func NewManager(repo Repository, appts AppointmentCanceller, log zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		repo:  repo,
		appts: appts,
		cache: doctorcache.New[Slot](),
		log:   log.With().Str("component", "availability").Logger(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Slots returns the doctor's slots in stored order, from cache when loaded.
func (m *Manager) Slots(ctx context.Context, doctorID string) ([]Slot, error) {
	return m.cache.Load(ctx, doctorID, m.loader(doctorID))
}

// Refresh rereads the doctor's slots from the store.
func (m *Manager) Refresh(ctx context.Context, doctorID string) ([]Slot, error) {
	return m.cache.Reload(ctx, doctorID, m.loader(doctorID))
}

func (m *Manager) Invalidate(doctorID string) {
	m.cache.Invalidate(doctorID)
}

// AllSlots reads every doctor's slots straight from the store.
func (m *Manager) AllSlots(ctx context.Context) ([]Slot, error) {
	slots, err := m.repo.ListAllSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load all availability: %w", err)
	}
	return slots, nil
}

func (m *Manager) loader(doctorID string) func(context.Context) ([]Slot, error) {
	return func(ctx context.Context) ([]Slot, error) {
		slots, err := m.repo.ListSlots(ctx, doctorID)
		if err != nil {
			return nil, fmt.Errorf("load availability for %s: %w", doctorID, err)
		}
		return slots, nil
	}
}

// Submit validates a window, rejects it when it overlaps any existing slot
// on that date, and otherwise stores its hourly decomposition in one write.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) ([]Slot, error) {
	const op = "submit availability"

	if req.DoctorID == "" {
		return nil, apperr.Validation(op, "doctor id is required")
	}
	if req.Date.IsZero() {
		return nil, apperr.Validation(op, "date is required")
	}
	if timeslot.InPast(req.Date, m.now()) {
		return nil, apperr.Validation(op, "date %s is in the past", timeslot.FormatDate(req.Date))
	}
	if !req.Status.Submittable() {
		return nil, apperr.Validation(op, "status must be %s or %s, got %q", StatusAvailable, StatusBusy, req.Status)
	}
	window, err := timeslot.NewInterval(req.StartTime, req.EndTime)
	if err != nil {
		return nil, apperr.Validation(op, "%v", err)
	}

	existing, err := m.Refresh(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}

	for _, s := range m.sameDate(existing, req.Date) {
		iv, err := s.Interval()
		if err != nil {
			m.log.Warn().Err(err).Str("doctor_id", s.DoctorID).Str("date", timeslot.FormatDate(s.Date)).
				Msg("skipping unparseable slot in overlap check")
			continue
		}
		if window.Overlaps(iv) {
			m.metrics.Conflict()
			return nil, apperr.Conflict(op, "%s overlaps existing %s slot %s on %s",
				window, s.Status, iv, timeslot.FormatDate(s.Date))
		}
	}

	date := timeslot.DateOf(req.Date)
	var slots []Slot
	for _, piece := range window.Hourly() {
		slots = append(slots, Slot{
			DoctorID:  req.DoctorID,
			Date:      date,
			StartTime: piece.Start.String(),
			EndTime:   piece.End.String(),
			Status:    req.Status,
		})
	}

	if err := m.repo.AppendSlots(ctx, slots); err != nil {
		return nil, fmt.Errorf("append availability: %w", err)
	}
	m.cache.Invalidate(req.DoctorID)
	m.metrics.SlotsWritten(len(slots))

	m.log.Info().Str("doctor_id", req.DoctorID).Str("date", timeslot.FormatDate(date)).
		Str("window", window.String()).Int("slots", len(slots)).Msg("availability submitted")

	return slots, nil
}

// Edit changes one slot located by its current start time. Setting a BOOKED
// slot to BUSY first cancels the appointment occupying it.
func (m *Manager) Edit(ctx context.Context, req EditRequest) (Slot, error) {
	const op = "edit availability"

	key, err := timeslot.NewKey(req.DoctorID, req.Date, req.StartTime)
	if err != nil {
		return Slot{}, apperr.Validation(op, "%v", err)
	}

	slots, err := m.Refresh(ctx, req.DoctorID)
	if err != nil {
		return Slot{}, err
	}

	current, ok := find(slots, key)
	if !ok {
		return Slot{}, apperr.NotFound(op, "no slot for %s", key)
	}

	updated := current
	if req.NewStartTime != nil {
		updated.StartTime = *req.NewStartTime
	}
	if req.NewEndTime != nil {
		updated.EndTime = *req.NewEndTime
	}
	if req.NewStatus != nil {
		if !req.NewStatus.Submittable() {
			return Slot{}, apperr.Validation(op, "status must be %s or %s, got %q", StatusAvailable, StatusBusy, *req.NewStatus)
		}
		updated.Status = *req.NewStatus
	}

	iv, err := updated.Interval()
	if err != nil {
		return Slot{}, apperr.Validation(op, "%v", err)
	}
	if iv.Duration() > timeslot.Hour {
		return Slot{}, apperr.Validation(op, "slot %s is longer than one hour", iv)
	}
	updated.StartTime = iv.Start.String()
	updated.EndTime = iv.End.String()

	for _, s := range m.sameDate(slots, req.Date) {
		if s.Matches(key) {
			continue
		}
		other, err := s.Interval()
		if err != nil {
			continue
		}
		if iv.Overlaps(other) {
			return Slot{}, apperr.Conflict(op, "%s overlaps existing slot %s", iv, other)
		}
	}

	revoking := current.Status == StatusBooked && updated.Status == StatusBusy
	moved := !updated.Matches(key) || !timeslot.SameTime(current.EndTime, updated.EndTime)
	if current.Status == StatusBooked && updated.Status == StatusBooked && moved {
		return Slot{}, apperr.Conflict(op, "slot %s is booked; revoke it before changing its times", key)
	}

	var undo func(context.Context) error
	if revoking {
		u, err := m.appts.CancelForSlot(ctx, key)
		if err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				return Slot{}, fmt.Errorf("cancel booking for %s: %w", key, err)
			}
			m.metrics.Inconsistent("edit_booked_slot")
			m.log.Warn().Str("slot", key.String()).Msg("booked slot has no appointment to cancel")
		}
		undo = u
	}

	if err := m.repo.UpdateSlot(ctx, current, updated); err != nil {
		if undo != nil {
			if uerr := undo(context.WithoutCancel(ctx)); uerr != nil {
				m.metrics.Inconsistent("edit_booked_slot")
				m.log.Error().Err(uerr).Str("slot", key.String()).Msg("booked slot left with a cancelled appointment")
			}
		}
		return Slot{}, fmt.Errorf("update availability: %w", err)
	}
	m.cache.Invalidate(req.DoctorID)

	m.log.Info().Str("slot", key.String()).Str("from", string(current.Status)).
		Str("to", string(updated.Status)).Bool("revoked", revoking).Msg("availability edited")

	return updated, nil
}

// IsOpen reports whether the slot at key can be requested. A missing slot
// is apperr.ErrNotFound.
func (m *Manager) IsOpen(ctx context.Context, key timeslot.Key) (bool, error) {
	slots, err := m.Refresh(ctx, key.DoctorID)
	if err != nil {
		return false, err
	}
	s, ok := find(slots, key)
	if !ok {
		return false, apperr.NotFound("check slot", "no slot for %s", key)
	}
	return s.Status == StatusAvailable, nil
}

// MarkBooked flips the slot at key to BOOKED after its appointment was
// confirmed. A missing slot yields an apperr.ErrConsistency error that
// callers log instead of failing.
func (m *Manager) MarkBooked(ctx context.Context, key timeslot.Key) error {
	return m.setStatus(ctx, key, StatusBooked)
}

// MarkAvailable releases the slot at key after its booking was cancelled.
func (m *Manager) MarkAvailable(ctx context.Context, key timeslot.Key) error {
	return m.setStatus(ctx, key, StatusAvailable)
}

func (m *Manager) setStatus(ctx context.Context, key timeslot.Key, status Status) error {
	slots, err := m.Refresh(ctx, key.DoctorID)
	if err != nil {
		return err
	}

	current, ok := find(slots, key)
	if !ok {
		return apperr.Consistency("sync slot", "no slot matches %s", key)
	}
	if current.Status == status {
		return nil
	}

	updated := current
	updated.Status = status
	if err := m.repo.UpdateSlot(ctx, current, updated); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Consistency("sync slot", "slot %s vanished during update", key)
		}
		return fmt.Errorf("sync slot %s: %w", key, err)
	}
	m.cache.Invalidate(key.DoctorID)

	m.log.Debug().Str("slot", key.String()).Str("status", string(status)).Msg("slot synchronized")
	return nil
}

func (m *Manager) sameDate(slots []Slot, date time.Time) []Slot {
	var out []Slot
	for _, s := range slots {
		if timeslot.SameDate(s.Date, date) {
			out = append(out, s)
		}
	}
	return out
}

func find(slots []Slot, key timeslot.Key) (Slot, bool) {
	for _, s := range slots {
		if s.Matches(key) {
			return s, true
		}
	}
	return Slot{}, false
}
