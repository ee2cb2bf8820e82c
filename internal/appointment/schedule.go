package appointment

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

// Pending returns the doctor's SCHEDULED appointments dated in the current
// calendar month, in stored order.
func (m *Manager) Pending(ctx context.Context, doctorID string) ([]Appointment, error) {
	if doctorID == "" {
		return nil, apperr.Validation("pending appointments", "doctor id is required")
	}
	appts, err := m.Load(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	today := timeslot.DateOf(m.now())
	var out []Appointment
	for _, a := range appts {
		if a.Status != StatusScheduled {
			continue
		}
		if a.Date.Year() == today.Year() && a.Date.Month() == today.Month() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Manager) Schedule(ctx context.Context, doctorID string, year int, month time.Month) (MonthSchedule, error) {
	const op = "month schedule"

	if doctorID == "" {
		return MonthSchedule{}, apperr.Validation(op, "doctor id is required")
	}
	if month < time.January || month > time.December {
		return MonthSchedule{}, apperr.Validation(op, "month %d out of range", month)
	}
	if year < 1 {
		return MonthSchedule{}, apperr.Validation(op, "year %d out of range", year)
	}

	appts, err := m.Load(ctx, doctorID)
	if err != nil {
		return MonthSchedule{}, err
	}
	return BuildMonth(doctorID, year, month, appts), nil
}

// BuildMonth selects the appointments of one month. Appointments whose
// start time does not parse are listed after the parseable ones of the
// same day.
func BuildMonth(doctorID string, year int, month time.Month, appts []Appointment) MonthSchedule {
	s := MonthSchedule{DoctorID: doctorID, Year: year, Month: month}

	confirmed := map[int]bool{}
	for _, a := range appts {
		if a.Date.Year() != year || a.Date.Month() != month {
			continue
		}
		if a.Status == StatusConfirmed {
			confirmed[a.Date.Day()] = true
		}
		if a.Status != StatusCancelled {
			s.Appointments = append(s.Appointments, a)
		}
	}
	for day := range confirmed {
		s.ConfirmedDays = append(s.ConfirmedDays, day)
	}
	sort.Ints(s.ConfirmedDays)

	sort.SliceStable(s.Appointments, func(i, j int) bool {
		a, b := s.Appointments[i], s.Appointments[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		ca, errA := timeslot.ParseClock(a.StartTime)
		cb, errB := timeslot.ParseClock(b.StartTime)
		switch {
		case errA != nil:
			return false
		case errB != nil:
			return true
		}
		return ca < cb
	})
	return s
}

// RenderMonth writes a calendar grid with confirmed days starred, then the
// month's listing.
func RenderMonth(w io.Writer, s MonthSchedule) error {
	title := fmt.Sprintf("%s %d", s.Month, s.Year)
	if s.Empty() {
		_, err := fmt.Fprintf(w, "%s: nothing to show.\n", title)
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (doctor %s)\n", title, s.DoctorID)
	b.WriteString(" Sun  Mon  Tue  Wed  Thu  Fri  Sat\n")

	marked := make(map[int]bool, len(s.ConfirmedDays))
	for _, d := range s.ConfirmedDays {
		marked[d] = true
	}

	first := time.Date(s.Year, s.Month, 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()
	col := int(first.Weekday())
	b.WriteString(strings.Repeat("     ", col))
	for day := 1; day <= days; day++ {
		mark := " "
		if marked[day] {
			mark = "*"
		}
		fmt.Fprintf(&b, " %2d%s ", day, mark)
		col++
		if col == 7 && day != days {
			b.WriteString("\n")
			col = 0
		}
	}
	b.WriteString("\n* confirmed appointment\n\n")

	if len(s.Appointments) == 0 {
		b.WriteString("No appointments listed.\n")
	}
	for _, a := range s.Appointments {
		fmt.Fprintf(&b, "%s %-8s %-10s patient %s (%s)\n",
			timeslot.FormatDate(a.Date), a.StartTime, a.Status, a.PatientID, a.ID)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
