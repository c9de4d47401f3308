package service

import (
	"context"
	"time"
)

// ModelInventory supplies the physical stock total for a device model.
// An unknown model reports zero units.
type ModelInventory interface {
	TotalUnits(ctx context.Context, modelID uint64) (uint32, error)
}

// CalendarCounter counts hard capacity: BOOKED/ACTIVE calendar entries
// for the model whose window overlaps the queried one.
type CalendarCounter interface {
	CountOverlapping(ctx context.Context, modelID uint64, start, end time.Time) (uint32, error)
}

// ReservedCounter sums soft capacity: active, unexpired reservation
// quantities for the model whose window overlaps the queried one.
type ReservedCounter interface {
	SumActiveQuantity(ctx context.Context, modelID uint64, start, end, now time.Time) (uint32, error)
}

// AvailabilityService computes how many units of a device model can
// still be rented for a window.  The check is deliberately pessimistic:
// in-flight holds count as fully consumed capacity, so concurrent order
// creation can under-report availability but never oversell.
type AvailabilityService struct {
	models       ModelInventory
	calendar     CalendarCounter
	reservations ReservedCounter
	now          func() time.Time
}

// NewAvailabilityService constructs an AvailabilityService.  All
// dependencies must be non-nil.
func NewAvailabilityService(models ModelInventory, calendar CalendarCounter, reservations ReservedCounter) *AvailabilityService {
	if models == nil || calendar == nil || reservations == nil {
		panic("nil dependency passed to NewAvailabilityService")
	}
	return &AvailabilityService{
		models:       models,
		calendar:     calendar,
		reservations: reservations,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// GetAvailableCountByModel returns
//
//	max(totalUnits - overlappingBookedOrActive - overlappingActiveReserved, 0)
//
// for the model and the half-open window [start,end).  A degenerate
// window (start >= end) returns 0 immediately: no capacity is ever
// granted for an empty interval.  The call is read-only and never
// returns a negative count; an unknown model has zero total units and
// therefore zero availability.
func (s *AvailabilityService) GetAvailableCountByModel(ctx context.Context, modelID uint64, start, end time.Time) (uint32, error) {
	if modelID == 0 || !start.Before(end) {
		return 0, nil
	}
	total, err := s.models.TotalUnits(ctx, modelID)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	booked, err := s.calendar.CountOverlapping(ctx, modelID, start, end)
	if err != nil {
		return 0, err
	}
	reserved, err := s.reservations.SumActiveQuantity(ctx, modelID, start, end, s.now())
	if err != nil {
		return 0, err
	}
	if consumed := booked + reserved; consumed < total {
		return total - consumed, nil
	}
	return 0, nil
}
