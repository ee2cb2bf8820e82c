package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/config"
)

func TestBuild_CSVWithRedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Config{
		StoreBackend:       config.StoreCSV,
		DataDir:            t.TempDir(),
		LockBackend:        config.LockRedis,
		RedisAddr:          mr.Addr(),
		LockTTL:            time.Second,
		RevertSlotOnCancel: true,
	}

	a, err := Build(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.PgPool)
	require.NotNil(t, a.Redis)

	_, err = a.Scheduler.SubmitAvailability(context.Background(), availability.SubmitRequest{
		DoctorID:  "D1",
		Date:      time.Now().AddDate(0, 0, 1),
		StartTime: "9 AM",
		EndTime:   "10 AM",
		Status:    availability.StatusAvailable,
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("lock:doctor:D1"), "lock released after the mutation")

	families, err := a.Registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["clinic_availability_slots_created_total"])
}

func TestBuild_UnknownBackend(t *testing.T) {
	_, err := Build(context.Background(), config.Config{StoreBackend: "sqlite"}, zerolog.Nop())
	assert.Error(t, err)
}
