package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/rentora/device-booking/internal/model"
	"github.com/rentora/device-booking/internal/repository"
)

// memStore is an in-memory stand-in for the SQL repositories.  It
// implements ReservationStore for the lifecycle manager and the three
// read interfaces the availability calculator depends on, mirroring the
// semantics of the SQL queries (half-open overlap, expiration filter,
// guarded vs. override updates).
type memStore struct {
	totals       map[uint64]uint32 // model -> total units
	bookings     []hardBooking
	reservations []*model.Reservation
	nextID       uint64
}

// hardBooking is one capacity-consuming calendar entry, flattened to
// the model level for the fake.
type hardBooking struct {
	ModelID uint64
	Start   time.Time
	End     time.Time
	Status  string
}

func newMemStore() *memStore {
	return &memStore{totals: make(map[uint64]uint32)}
}

func (s *memStore) TotalUnits(_ context.Context, modelID uint64) (uint32, error) {
	return s.totals[modelID], nil
}

func (s *memStore) CountOverlapping(_ context.Context, modelID uint64, start, end time.Time) (uint32, error) {
	if !start.Before(end) {
		return 0, nil
	}
	var n uint32
	for _, b := range s.bookings {
		if b.ModelID != modelID {
			continue
		}
		if b.Status != model.CalendarBooked && b.Status != model.CalendarActive {
			continue
		}
		if model.WindowsOverlap(b.Start, b.End, start, end) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) SumActiveQuantity(_ context.Context, modelID uint64, start, end, now time.Time) (uint32, error) {
	if !start.Before(end) {
		return 0, nil
	}
	var total uint32
	for _, r := range s.reservations {
		if r.DeviceModelID != modelID || !r.Active(now) {
			continue
		}
		if model.WindowsOverlap(r.StartTime, r.EndTime, start, end) {
			total += r.ReservedQuantity
		}
	}
	return total, nil
}

func (s *memStore) CheckAndReserveTx(ctx context.Context, _ *sql.Tx, res []model.Reservation, now time.Time) error {
	requested := make(map[uint64]uint32)
	for _, rv := range res {
		requested[rv.DeviceModelID] += rv.ReservedQuantity
	}
	start, end := res[0].StartTime, res[0].EndTime
	for modelID, want := range requested {
		booked, _ := s.CountOverlapping(ctx, modelID, start, end)
		reserved, _ := s.SumActiveQuantity(ctx, modelID, start, end, now)
		available := uint32(0)
		if consumed := booked + reserved; s.totals[modelID] > consumed {
			available = s.totals[modelID] - consumed
		}
		if want > available {
			return &repository.CapacityError{DeviceModelID: modelID, Requested: want, Available: available}
		}
	}
	for _, rv := range res {
		s.nextID++
		cp := rv
		cp.ID = s.nextID
		s.reservations = append(s.reservations, &cp)
	}
	return nil
}

func (s *memStore) TransitionByOrder(_ context.Context, orderID uint64, allowedFrom []string, to string, expiresAt *time.Time) (int64, error) {
	allowed := make(map[string]bool, len(allowedFrom))
	for _, st := range allowedFrom {
		allowed[st] = true
	}
	var n int64
	for _, r := range s.reservations {
		if r.OrderID != orderID || !allowed[r.Status] {
			continue
		}
		r.Status = to
		r.ExpirationTime = nil
		if expiresAt != nil {
			e := *expiresAt
			r.ExpirationTime = &e
		}
		n++
	}
	return n, nil
}

func (s *memStore) ForceTransitionByOrder(_ context.Context, orderID uint64, to string) (int64, error) {
	var n int64
	for _, r := range s.reservations {
		if r.OrderID != orderID {
			continue
		}
		r.Status = to
		r.ExpirationTime = nil
		n++
	}
	return n, nil
}

func (s *memStore) ForceTransitionByOrderTx(ctx context.Context, _ *sql.Tx, orderID uint64, to string) (int64, error) {
	return s.ForceTransitionByOrder(ctx, orderID, to)
}

func (s *memStore) ExpireDue(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for _, r := range s.reservations {
		if r.Status != model.ReservationPendingReview && r.Status != model.ReservationUnderReview {
			continue
		}
		if r.ExpirationTime != nil && r.ExpirationTime.Before(now) {
			r.Status = model.ReservationExpired
			n++
		}
	}
	return n, nil
}

func (s *memStore) ListByOrder(_ context.Context, orderID uint64) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.OrderID == orderID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// statusesByOrder collects the current status of every reservation of
// an order, in creation order.
func (s *memStore) statusesByOrder(orderID uint64) []string {
	var out []string
	for _, r := range s.reservations {
		if r.OrderID == orderID {
			out = append(out, r.Status)
		}
	}
	return out
}
