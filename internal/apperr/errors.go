package apperr

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrConflict          = errors.New("conflict")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDuplicateOutcome  = errors.New("duplicate outcome")
	ErrStore             = errors.New("store io error")
	ErrConsistency       = errors.New("consistency warning")
)

// Error carries a kind plus enough detail for a caller to re-prompt a human.
type Error struct {
	Kind   error
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newf(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}

func Validation(op, format string, args ...any) error {
	return newf(ErrValidation, op, format, args...)
}

func Conflict(op, format string, args ...any) error {
	return newf(ErrConflict, op, format, args...)
}

func NotFound(op, format string, args ...any) error {
	return newf(ErrNotFound, op, format, args...)
}

func InvalidTransition(op, format string, args ...any) error {
	return newf(ErrInvalidTransition, op, format, args...)
}

func DuplicateOutcome(op, format string, args ...any) error {
	return newf(ErrDuplicateOutcome, op, format, args...)
}

func Consistency(op, format string, args ...any) error {
	return newf(ErrConsistency, op, format, args...)
}

// Store marks err as a persistence failure without hiding it: errors.Unwrap
// still returns the driver or filesystem error.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Kind == ErrStore {
		return err
	}
	return &Error{Kind: ErrStore, Op: op, Err: err}
}

// IsBusiness reports whether err was decided before any write happened.
func IsBusiness(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicateOutcome)
}
