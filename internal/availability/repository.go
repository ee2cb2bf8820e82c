package availability

import "context"

// Repository is the availability side of the record store.
type Repository interface {
	ListSlots(ctx context.Context, doctorID string) ([]Slot, error)
	ListAllSlots(ctx context.Context) ([]Slot, error)

	// AppendSlots writes all slots or none.
	AppendSlots(ctx context.Context, slots []Slot) error

	// UpdateSlot replaces the first row whose doctor, date and stored start
	// string equal current's. Returns an apperr.ErrNotFound error otherwise.
	UpdateSlot(ctx context.Context, current, updated Slot) error
}
