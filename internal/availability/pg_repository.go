package availability

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const slotColumns = `doctor_id, available_date, start_time, end_time, status`

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(
		&s.DoctorID,
		&s.Date,
		&s.StartTime,
		&s.EndTime,
		&s.Status,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PgRepository) listSlots(ctx context.Context, query string, args ...any) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Store("list slots", err)
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, apperr.Store("scan slot", err)
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list slots", err)
	}
	return result, nil
}

func (r *PgRepository) ListSlots(ctx context.Context, doctorID string) ([]Slot, error) {
	return r.listSlots(ctx, `
		SELECT `+slotColumns+`
		FROM availability
		WHERE doctor_id = $1
		ORDER BY seq
	`, doctorID)
}

func (r *PgRepository) ListAllSlots(ctx context.Context) ([]Slot, error) {
	return r.listSlots(ctx, `
		SELECT `+slotColumns+`
		FROM availability
		ORDER BY seq
	`)
}

func (r *PgRepository) AppendSlots(ctx context.Context, slots []Slot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperr.Store("begin append slots", err)
	}
	defer tx.Rollback(ctx)

	for _, s := range slots {
		_, err := tx.Exec(ctx, `
			INSERT INTO availability (doctor_id, available_date, start_time, end_time, status, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())
		`, s.DoctorID, s.Date, s.StartTime, s.EndTime, s.Status)
		if err != nil {
			return apperr.Store("insert slot", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Store("commit append slots", err)
	}
	return nil
}

func (r *PgRepository) UpdateSlot(ctx context.Context, current, updated Slot) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE availability
		SET start_time = $4,
		    end_time = $5,
		    status = $6,
		    updated_at = now()
		WHERE seq = (
			SELECT seq FROM availability
			WHERE doctor_id = $1 AND available_date = $2 AND start_time = $3
			ORDER BY seq
			LIMIT 1
		)
	`, current.DoctorID, current.Date, current.StartTime, updated.StartTime, updated.EndTime, updated.Status)
	if err != nil {
		return apperr.Store("update slot", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("update slot", "no slot %s %s %s", current.DoctorID, current.Date.Format("2006-01-02"), current.StartTime)
	}
	return nil
}
