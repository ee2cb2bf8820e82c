package scheduling

import (
	"context"
	"sync"
)

// Locker serializes mutations of one doctor's schedule.
type Locker interface {
	WithDoctorLock(ctx context.Context, doctorID string, fn func(ctx context.Context) error) error
}

// LocalLocker is an in-process Locker. Callers for the same doctor wait
// their turn; it is meant for a single process such as the CLI. A doctor's
// entry lives only while someone holds or waits for it.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*doctorLock
}

type doctorLock struct {
	sync.Mutex
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: map[string]*doctorLock{}}
}

func (l *LocalLocker) WithDoctorLock(ctx context.Context, doctorID string, fn func(ctx context.Context) error) error {
	dl := l.acquire(doctorID)
	defer l.release(doctorID, dl)

	dl.Lock()
	defer dl.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

func (l *LocalLocker) acquire(doctorID string) *doctorLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	dl, ok := l.locks[doctorID]
	if !ok {
		dl = &doctorLock{}
		l.locks[doctorID] = dl
	}
	dl.refs++
	return dl
}

func (l *LocalLocker) release(doctorID string, dl *doctorLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	dl.refs--
	if dl.refs == 0 {
		delete(l.locks, doctorID)
	}
}
