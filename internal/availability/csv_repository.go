package availability

import (
	"context"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/tabular"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

// Column order matches the existing availability sheet.
var csvHeader = []string{"doctorId", "date", "startTime", "endTime", "status"}

type CSVRepository struct {
	table *tabular.Table
}

func NewCSVRepository(dir string) (*CSVRepository, error) {
	t, err := tabular.Open(dir, "availability.csv", csvHeader)
	if err != nil {
		return nil, apperr.Store("open availability table", err)
	}
	return &CSVRepository{table: t}, nil
}

func encodeSlot(s Slot) []string {
	return []string{s.DoctorID, timeslot.FormatDate(s.Date), s.StartTime, s.EndTime, string(s.Status)}
}

func decodeSlot(row []string) (Slot, error) {
	date, err := timeslot.ParseDate(row[1])
	if err != nil {
		return Slot{}, err
	}
	st, err := ParseStatus(row[4])
	if err != nil {
		return Slot{}, err
	}
	return Slot{DoctorID: row[0], Date: date, StartTime: row[2], EndTime: row[3], Status: st}, nil
}

func (r *CSVRepository) ListAllSlots(_ context.Context) ([]Slot, error) {
	rows, err := r.table.ReadAll()
	if err != nil {
		return nil, apperr.Store("read availability", err)
	}
	slots := make([]Slot, 0, len(rows))
	for _, row := range rows {
		s, err := decodeSlot(row)
		if err != nil {
			return nil, apperr.Store("decode availability row", err)
		}
		slots = append(slots, s)
	}
	return slots, nil
}

func (r *CSVRepository) ListSlots(ctx context.Context, doctorID string) ([]Slot, error) {
	all, err := r.ListAllSlots(ctx)
	if err != nil {
		return nil, err
	}
	var out []Slot
	for _, s := range all {
		if s.DoctorID == doctorID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *CSVRepository) AppendSlots(_ context.Context, slots []Slot) error {
	rows := make([][]string, 0, len(slots))
	for _, s := range slots {
		rows = append(rows, encodeSlot(s))
	}
	if err := r.table.Append(rows...); err != nil {
		return apperr.Store("append availability", err)
	}
	return nil
}

func (r *CSVRepository) UpdateSlot(_ context.Context, current, updated Slot) error {
	date := timeslot.FormatDate(current.Date)
	done := false
	n, err := r.table.Update(
		func(row []string) bool {
			if done {
				return false
			}
			done = row[0] == current.DoctorID && row[1] == date && row[2] == current.StartTime
			return done
		},
		func([]string) []string { return encodeSlot(updated) },
	)
	if err != nil {
		return apperr.Store("update availability", err)
	}
	if n == 0 {
		return apperr.NotFound("update slot", "no slot %s %s %s", current.DoctorID, date, current.StartTime)
	}
	return nil
}
