package availability

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

// View groups the doctor's slots by date and merges contiguous slots of the
// same status into ranges. It works on a loaded snapshot and never writes.
func (m *Manager) View(ctx context.Context, doctorID string) ([]Day, error) {
	slots, err := m.Slots(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return m.summarize(slots), nil
}

type parsedSlot struct {
	date time.Time
	iv   timeslot.Interval
	st   Status
}

func (m *Manager) summarize(slots []Slot) []Day {
	var parsed []parsedSlot
	for _, s := range slots {
		iv, err := s.Interval()
		if err != nil {
			m.log.Warn().Err(err).Str("doctor_id", s.DoctorID).Str("date", timeslot.FormatDate(s.Date)).
				Msg("unparseable slot left out of view")
			continue
		}
		parsed = append(parsed, parsedSlot{date: timeslot.DateOf(s.Date), iv: iv, st: s.Status})
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		if !parsed[i].date.Equal(parsed[j].date) {
			return parsed[i].date.Before(parsed[j].date)
		}
		return parsed[i].iv.Start < parsed[j].iv.Start
	})

	var days []Day
	for _, p := range parsed {
		if len(days) == 0 || !days[len(days)-1].Date.Equal(p.date) {
			days = append(days, Day{Date: p.date})
		}
		d := &days[len(days)-1]

		if n := len(d.Ranges); n > 0 {
			last := &d.Ranges[n-1]
			if last.Status == p.st && last.End == p.iv.Start {
				last.End = p.iv.End
				continue
			}
		}
		d.Ranges = append(d.Ranges, Range{Start: p.iv.Start, End: p.iv.End, Status: p.st})
	}
	return days
}

// Render writes the view as text, one line per range.
func Render(w io.Writer, days []Day) error {
	if len(days) == 0 {
		_, err := fmt.Fprintln(w, "No availability recorded.")
		return err
	}
	for _, d := range days {
		if _, err := fmt.Fprintf(w, "%s (%s)\n", timeslot.FormatDate(d.Date), d.Date.Weekday()); err != nil {
			return err
		}
		for _, r := range d.Ranges {
			if _, err := fmt.Fprintf(w, "  %-9s from %s to %s\n", r.Status, r.Start, r.End); err != nil {
				return err
			}
		}
	}
	return nil
}
