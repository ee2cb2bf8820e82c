package availability

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/db"
)

func newPgRepo(t *testing.T) *PgRepository {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, dsn, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewPgRepository(pool)
}

func TestPgRepository_AppendListUpdate(t *testing.T) {
	repo := newPgRepo(t)
	ctx := context.Background()

	doctorID := "D-" + uuid.NewString()[:8]
	d := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.AppendSlots(ctx, []Slot{
		{DoctorID: doctorID, Date: d, StartTime: "9:00 AM", EndTime: "10:00 AM", Status: StatusAvailable},
		{DoctorID: doctorID, Date: d, StartTime: "10:00 AM", EndTime: "11:00 AM", Status: StatusAvailable},
		{DoctorID: doctorID, Date: d, StartTime: "11:00 PM", EndTime: "12:00 AM", Status: StatusBusy},
	}))

	slots, err := repo.ListSlots(ctx, doctorID)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, "9:00 AM", slots[0].StartTime, "insertion order is kept")
	assert.Equal(t, "12:00 AM", slots[2].EndTime)

	booked := slots[1]
	booked.Status = StatusBooked
	require.NoError(t, repo.UpdateSlot(ctx, slots[1], booked))

	slots, err = repo.ListSlots(ctx, doctorID)
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, slots[0].Status)
	assert.Equal(t, StatusBooked, slots[1].Status)

	missing := Slot{DoctorID: doctorID, Date: d, StartTime: "3:00 PM"}
	err = repo.UpdateSlot(ctx, missing, missing)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPgRepository_AppendIsAllOrNothing(t *testing.T) {
	repo := newPgRepo(t)
	ctx := context.Background()

	doctorID := "D-" + uuid.NewString()[:8]
	d := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)
	err := repo.AppendSlots(ctx, []Slot{
		{DoctorID: doctorID, Date: d, StartTime: "9:00 AM", EndTime: "10:00 AM", Status: StatusAvailable},
		{DoctorID: doctorID, Date: d, StartTime: "10:00 AM", EndTime: "11:00 AM", Status: Status("HOLIDAY")},
	})
	assert.ErrorIs(t, err, apperr.ErrStore)

	slots, err := repo.ListSlots(ctx, doctorID)
	require.NoError(t, err)
	assert.Empty(t, slots)
}
