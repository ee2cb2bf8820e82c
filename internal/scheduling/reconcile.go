package scheduling

import (
	"context"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

const (
	FindingMissingSlot    = "confirmed_without_slot"
	FindingSlotNotBooked  = "confirmed_slot_not_booked"
	FindingOrphanedBooked = "booked_without_confirmed"
)

// Finding is one slot/appointment pair that disagrees.
type Finding struct {
	Kind          string `json:"kind"`
	Slot          string `json:"slot"`
	AppointmentID string `json:"appointment_id,omitempty"`
	SlotStatus    string `json:"slot_status,omitempty"`
}

type Report struct {
	CheckedAt    time.Time `json:"checked_at"`
	Slots        int       `json:"slots"`
	Appointments int       `json:"appointments"`
	Findings     []Finding `json:"findings"`
}

func (r Report) Clean() bool { return len(r.Findings) == 0 }

// Reconcile compares every CONFIRMED appointment with its slot and every
// BOOKED slot with its appointments. It only reports.
func (s *Scheduler) Reconcile(ctx context.Context) (Report, error) {
	start := time.Now()
	defer s.metrics.Observe("reconcile", start)

	slots, err := s.slots.AllSlots(ctx)
	if err != nil {
		return Report{}, err
	}
	appts, err := s.appts.All(ctx)
	if err != nil {
		return Report{}, err
	}

	report := Report{CheckedAt: start, Slots: len(slots), Appointments: len(appts)}

	for _, a := range appts {
		if a.Status != appointment.StatusConfirmed {
			continue
		}
		key, err := a.Key()
		if err != nil {
			s.log.Warn().Err(err).Str("appointment_id", a.ID).Msg("confirmed appointment has unreadable time")
			continue
		}
		slot, ok := slotAt(slots, key)
		switch {
		case !ok:
			report.Findings = append(report.Findings, Finding{Kind: FindingMissingSlot, Slot: key.String(), AppointmentID: a.ID})
		case slot.Status != availability.StatusBooked:
			report.Findings = append(report.Findings, Finding{
				Kind: FindingSlotNotBooked, Slot: key.String(), AppointmentID: a.ID, SlotStatus: string(slot.Status),
			})
		}
	}

	for _, sl := range slots {
		if sl.Status != availability.StatusBooked {
			continue
		}
		key, err := sl.Key()
		if err != nil {
			continue
		}
		if !occupiedAt(appts, key) {
			report.Findings = append(report.Findings, Finding{
				Kind: FindingOrphanedBooked, Slot: key.String(), SlotStatus: string(sl.Status),
			})
		}
	}

	for _, f := range report.Findings {
		s.metrics.Inconsistent("reconcile")
		s.log.Warn().Str("kind", f.Kind).Str("slot", f.Slot).Str("appointment_id", f.AppointmentID).
			Msg("schedule inconsistency")
	}
	return report, nil
}

func slotAt(slots []availability.Slot, key timeslot.Key) (availability.Slot, bool) {
	for _, sl := range slots {
		if sl.Matches(key) {
			return sl, true
		}
	}
	return availability.Slot{}, false
}

// occupiedAt reports whether a confirmed or completed appointment holds key.
// A completed visit keeps its slot BOOKED.
func occupiedAt(appts []appointment.Appointment, key timeslot.Key) bool {
	for _, a := range appts {
		if (a.Status == appointment.StatusConfirmed || a.Status == appointment.StatusCompleted) && a.Matches(key) {
			return true
		}
	}
	return false
}
