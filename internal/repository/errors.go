// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrCapacityExceeded signals that a check-and-reserve could
// not be satisfied, while ErrForbidden indicates that the current user
// is not authorized to act on a resource owned by someone else.
package repository

import (
	"errors"
	"fmt"
)

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of
// conflicting state, such as allocating devices to an order whose
// reservations were never confirmed. Handlers should translate this
// into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrOrderNotFound is returned when a rental order does not exist.
var ErrOrderNotFound = errors.New("order not found")

// ErrModelNotFound is returned when a device model does not exist.
// Availability queries never raise it (an unknown model simply has
// zero units); order creation does.
var ErrModelNotFound = errors.New("device model not found")

// ErrCapacityExceeded is the sentinel matched by errors.Is when a
// CapacityError is returned from the atomic check-and-reserve.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// CapacityError reports which model fell short during check-and-reserve
// and by how much, so the orchestration layer can surface a precise
// "not enough units available" response.
type CapacityError struct {
	DeviceModelID uint64
	Requested     uint32
	Available     uint32
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exceeded for model %d: requested %d, available %d",
		e.DeviceModelID, e.Requested, e.Available)
}

// Is makes errors.Is(err, ErrCapacityExceeded) succeed for CapacityError
// values.
func (e *CapacityError) Is(target error) bool { return target == ErrCapacityExceeded }
