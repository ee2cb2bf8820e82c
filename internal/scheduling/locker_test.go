package scheduling

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (l *LocalLocker) entries() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func TestLocalLocker_SerializesPerDoctor(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var wg sync.WaitGroup
	inside := map[string]int{}
	var mu sync.Mutex
	overlapped := false

	for i := 0; i < 40; i++ {
		doctorID := fmt.Sprintf("D%d", i%4)
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithDoctorLock(ctx, doctorID, func(context.Context) error {
				mu.Lock()
				inside[doctorID]++
				if inside[doctorID] > 1 {
					overlapped = true
				}
				mu.Unlock()

				mu.Lock()
				inside[doctorID]--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.False(t, overlapped)
	assert.Zero(t, l.entries(), "idle doctors keep no lock entry")
}

func TestLocalLocker_ForgetsDoctorsAfterUse(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.NoError(t, l.WithDoctorLock(ctx, fmt.Sprintf("D%d", i), func(context.Context) error {
			assert.Equal(t, 1, l.entries())
			return nil
		}))
	}
	assert.Zero(t, l.entries())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := l.WithDoctorLock(cancelled, "D1", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, l.entries())
}
