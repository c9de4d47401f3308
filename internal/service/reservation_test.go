package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rentora/device-booking/internal/model"
	"github.com/rentora/device-booking/internal/repository"
)

func newLifecycle(store *memStore, now time.Time) *ReservationService {
	svc := NewReservationService(store, nil, 15*time.Minute, 6*time.Hour)
	svc.now = func() time.Time { return now }
	return svc
}

func order(id uint64, start, end time.Time) model.RentalOrder {
	return model.RentalOrder{ID: id, CustomerID: 1, StartTime: start, EndTime: end, Status: model.OrderPending}
}

func TestCreatePendingReservationsSetsStatusAndTTL(t *testing.T) {
	store := newMemStore()
	store.totals[1] = 5
	store.totals[2] = 5
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	svc := newLifecycle(store, now)

	details := []model.OrderDetail{
		{ID: 11, OrderID: 1, DeviceModelID: 1, Quantity: 2},
		{ID: 12, OrderID: 1, DeviceModelID: 2, Quantity: 1},
	}
	err := svc.CreatePendingReservationsTx(context.Background(), nil, order(1, day(10), day(15)), details)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	res, _ := store.ListByOrder(context.Background(), 1)
	if len(res) != 2 {
		t.Fatalf("Expected 2 reservations, got %d", len(res))
	}
	wantExp := now.Add(15 * time.Minute)
	for _, r := range res {
		if r.Status != model.ReservationPendingReview {
			t.Errorf("Expected status PENDING_REVIEW, got %s", r.Status)
		}
		if r.ExpirationTime == nil || !r.ExpirationTime.Equal(wantExp) {
			t.Errorf("Expected expiration %v, got %v", wantExp, r.ExpirationTime)
		}
		if !r.StartTime.Equal(day(10)) || !r.EndTime.Equal(day(15)) {
			t.Errorf("Expected window [%v, %v), got [%v, %v)", day(10), day(15), r.StartTime, r.EndTime)
		}
	}
}

func TestCreatePendingReservationsSkipsEmptyLines(t *testing.T) {
	store := newMemStore()
	store.totals[1] = 5
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	svc := newLifecycle(store, now)

	details := []model.OrderDetail{
		{ID: 11, OrderID: 1, DeviceModelID: 1, Quantity: 0},
		{ID: 12, OrderID: 1, DeviceModelID: 0, Quantity: 3},
		{ID: 13, OrderID: 1, DeviceModelID: 1, Quantity: 1},
	}
	if err := svc.CreatePendingReservationsTx(context.Background(), nil, order(1, day(10), day(15)), details); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	res, _ := store.ListByOrder(context.Background(), 1)
	if len(res) != 1 {
		t.Fatalf("Expected 1 reservation, got %d", len(res))
	}
	if res[0].OrderDetailID != 13 {
		t.Errorf("Expected detail 13, got %d", res[0].OrderDetailID)
	}
}

func TestCreatePendingReservationsDegenerateWindowNoOp(t *testing.T) {
	store := newMemStore()
	store.totals[1] = 5
	svc := newLifecycle(store, day(5))

	details := []model.OrderDetail{{ID: 11, OrderID: 1, DeviceModelID: 1, Quantity: 2}}
	if err := svc.CreatePendingReservationsTx(context.Background(), nil, order(1, day(15), day(10)), details); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := svc.CreatePendingReservationsTx(context.Background(), nil, order(1, day(10), day(10)), details); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(store.reservations) != 0 {
		t.Errorf("Expected no reservations, got %d", len(store.reservations))
	}
}

func TestCreatePendingReservationsCapacityExceeded(t *testing.T) {
	store := newMemStore()
	store.totals[1] = 3
	store.totals[2] = 3
	svc := newLifecycle(store, day(5))

	// First order takes 2 of model 1.
	err := svc.CreatePendingReservationsTx(context.Background(), nil, order(1, day(10), day(15)),
		[]model.OrderDetail{{ID: 11, OrderID: 1, DeviceModelID: 1, Quantity: 2}})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// Second order wants 2 of model 1 plus 1 of model 2; only 1 of
	// model 1 is left, so the whole set must be refused.
	err = svc.CreatePendingReservationsTx(context.Background(), nil, order(2, day(12), day(14)),
		[]model.OrderDetail{
			{ID: 21, OrderID: 2, DeviceModelID: 1, Quantity: 2},
			{ID: 22, OrderID: 2, DeviceModelID: 2, Quantity: 1},
		})
	if !errors.Is(err, repository.ErrCapacityExceeded) {
		t.Fatalf("Expected capacity error, got: %v", err)
	}
	var capErr *repository.CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("Expected *repository.CapacityError, got: %v", err)
	}
	if capErr.DeviceModelID != 1 || capErr.Requested != 2 || capErr.Available != 1 {
		t.Errorf("Expected model 1 requested 2 available 1, got %+v", capErr)
	}
	if res, _ := store.ListByOrder(context.Background(), 2); len(res) != 0 {
		t.Errorf("Expected no partial reservations, got %d", len(res))
	}
}

func TestMoveToUnderReviewResetsTTLAndRevivesExpired(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	lapsed := now.Add(-time.Minute)
	store.reservations = []*model.Reservation{
		{ID: 1, OrderID: 1, DeviceModelID: 1, ReservedQuantity: 1, Status: model.ReservationPendingReview, ExpirationTime: &lapsed},
		{ID: 2, OrderID: 1, DeviceModelID: 1, ReservedQuantity: 1, Status: model.ReservationExpired},
		{ID: 3, OrderID: 1, DeviceModelID: 1, ReservedQuantity: 1, Status: model.ReservationCancelled},
		{ID: 4, OrderID: 2, DeviceModelID: 1, ReservedQuantity: 1, Status: model.ReservationPendingReview},
	}
	svc := newLifecycle(store, now)

	if err := svc.MoveToUnderReview(context.Background(), 1); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	wantExp := now.Add(6 * time.Hour)
	for _, r := range store.reservations[:2] {
		if r.Status != model.ReservationUnderReview {
			t.Errorf("Reservation %d: expected UNDER_REVIEW, got %s", r.ID, r.Status)
		}
		if r.ExpirationTime == nil || !r.ExpirationTime.Equal(wantExp) {
			t.Errorf("Reservation %d: expected expiration %v, got %v", r.ID, wantExp, r.ExpirationTime)
		}
	}
	if store.reservations[2].Status != model.ReservationCancelled {
		t.Errorf("Cancelled reservation must stay CANCELLED, got %s", store.reservations[2].Status)
	}
	if store.reservations[3].Status != model.ReservationPendingReview {
		t.Errorf("Other order must be untouched, got %s", store.reservations[3].Status)
	}
}

func TestMarkConfirmedClearsTTLAndGuardsCancelled(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	exp := now.Add(time.Hour)
	store.reservations = []*model.Reservation{
		{ID: 1, OrderID: 1, DeviceModelID: 1, ReservedQuantity: 1, Status: model.ReservationUnderReview, ExpirationTime: &exp},
		{ID: 2, OrderID: 1, DeviceModelID: 1, ReservedQuantity: 1, Status: model.ReservationCancelled},
	}
	svc := newLifecycle(store, now)

	if err := svc.MarkConfirmed(context.Background(), 1); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if store.reservations[0].Status != model.ReservationConfirmed {
		t.Errorf("Expected CONFIRMED, got %s", store.reservations[0].Status)
	}
	if store.reservations[0].ExpirationTime != nil {
		t.Errorf("Expected expiration cleared, got %v", store.reservations[0].ExpirationTime)
	}
	if store.reservations[1].Status != model.ReservationCancelled {
		t.Errorf("Cancelled reservation must stay CANCELLED, got %s", store.reservations[1].Status)
	}
}

func TestCancelReservationsOverridesAnyState(t *testing.T) {
	store := newMemStore()
	store.reservations = []*model.Reservation{
		{ID: 1, OrderID: 1, DeviceModelID: 1, ReservedQuantity: 1, Status: model.ReservationPendingReview},
		{ID: 2, OrderID: 1, DeviceModelID: 1, ReservedQuantity: 1, Status: model.ReservationConfirmed},
		{ID: 3, OrderID: 1, DeviceModelID: 1, ReservedQuantity: 1, Status: model.ReservationExpired},
	}
	svc := newLifecycle(store, day(5))

	if err := svc.CancelReservations(context.Background(), 1); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	for _, st := range store.statusesByOrder(1) {
		if st != model.ReservationCancelled {
			t.Errorf("Expected CANCELLED, got %s", st)
		}
	}
}

func TestExpireReservationsSweepIsIdempotent(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	lapsed := now.Add(-time.Minute)
	live := now.Add(time.Hour)
	store.reservations = []*model.Reservation{
		{ID: 1, OrderID: 1, DeviceModelID: 1, ReservedQuantity: 1, Status: model.ReservationPendingReview, ExpirationTime: &lapsed},
		{ID: 2, OrderID: 1, DeviceModelID: 1, ReservedQuantity: 1, Status: model.ReservationUnderReview, ExpirationTime: &lapsed},
		{ID: 3, OrderID: 2, DeviceModelID: 1, ReservedQuantity: 1, Status: model.ReservationPendingReview, ExpirationTime: &live},
		{ID: 4, OrderID: 2, DeviceModelID: 1, ReservedQuantity: 1, Status: model.ReservationConfirmed},
		{ID: 5, OrderID: 3, DeviceModelID: 1, ReservedQuantity: 1, Status: model.ReservationCancelled, ExpirationTime: &lapsed},
	}
	svc := newLifecycle(store, now)

	n, err := svc.ExpireReservations(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 expired, got %d", n)
	}
	if store.reservations[0].Status != model.ReservationExpired || store.reservations[1].Status != model.ReservationExpired {
		t.Errorf("Expected lapsed holds EXPIRED, got %s / %s", store.reservations[0].Status, store.reservations[1].Status)
	}
	if store.reservations[2].Status != model.ReservationPendingReview {
		t.Errorf("Live hold must be untouched, got %s", store.reservations[2].Status)
	}
	if store.reservations[3].Status != model.ReservationConfirmed {
		t.Errorf("Confirmed reservation must be untouched, got %s", store.reservations[3].Status)
	}
	if store.reservations[4].Status != model.ReservationCancelled {
		t.Errorf("Cancelled reservation must not be resurrected, got %s", store.reservations[4].Status)
	}

	// Second sweep on the same state is a no-op.
	n, err = svc.ExpireReservations(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 on the second sweep, got %d", n)
	}
}

func TestCountActiveReservedQuantityTTLWindow(t *testing.T) {
	store := newMemStore()
	store.totals[1] = 5
	created := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	svc := newLifecycle(store, created)

	err := svc.CreatePendingReservationsTx(context.Background(), nil, order(1, day(10), day(15)),
		[]model.OrderDetail{{ID: 11, OrderID: 1, DeviceModelID: 1, Quantity: 2}})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// 10 minutes in: the 15-minute hold still counts.
	svc.now = func() time.Time { return created.Add(10 * time.Minute) }
	got, err := svc.CountActiveReservedQuantity(context.Background(), 1, day(10), day(15))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got != 2 {
		t.Errorf("Expected 2 at T+10m, got %d", got)
	}

	// 16 minutes in: lapsed, not yet swept, must already be inactive.
	svc.now = func() time.Time { return created.Add(16 * time.Minute) }
	got, err = svc.CountActiveReservedQuantity(context.Background(), 1, day(10), day(15))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got != 0 {
		t.Errorf("Expected 0 at T+16m, got %d", got)
	}
}

func TestCountActiveReservedQuantityDegenerateInputs(t *testing.T) {
	store := newMemStore()
	svc := newLifecycle(store, day(5))

	if got, _ := svc.CountActiveReservedQuantity(context.Background(), 0, day(10), day(15)); got != 0 {
		t.Errorf("Expected 0 for missing model, got %d", got)
	}
	if got, _ := svc.CountActiveReservedQuantity(context.Background(), 1, day(15), day(10)); got != 0 {
		t.Errorf("Expected 0 for reversed window, got %d", got)
	}
}

// Full scenario: 3 units of one model, competing orders, cancellation
// freeing capacity, and a confirmed order consuming it across
// overlapping query windows.
func TestReservationAndAvailabilityEndToEnd(t *testing.T) {
	store := newMemStore()
	store.totals[1] = 3
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	lifecycle := newLifecycle(store, now)
	availability := newAvailability(store, now)
	ctx := context.Background()

	avail := func(start, end time.Time) uint32 {
		t.Helper()
		got, err := availability.GetAvailableCountByModel(ctx, 1, start, end)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		return got
	}

	// Order A holds 2 of 3 units for [Jan 10, Jan 15).
	err := lifecycle.CreatePendingReservationsTx(ctx, nil, order(1, day(10), day(15)),
		[]model.OrderDetail{{ID: 11, OrderID: 1, DeviceModelID: 1, Quantity: 2}})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got := avail(day(10), day(15)); got != 1 {
		t.Errorf("Expected 1 after order A, got %d", got)
	}

	// Order B wants 2 units for an overlapping window and is refused.
	err = lifecycle.CreatePendingReservationsTx(ctx, nil, order(2, day(12), day(17)),
		[]model.OrderDetail{{ID: 21, OrderID: 2, DeviceModelID: 1, Quantity: 2}})
	if !errors.Is(err, repository.ErrCapacityExceeded) {
		t.Fatalf("Expected capacity error for order B, got: %v", err)
	}

	// Cancelling order A restores all 3 units.
	if err := lifecycle.CancelReservations(ctx, 1); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got := avail(day(10), day(15)); got != 3 {
		t.Errorf("Expected 3 after cancelling order A, got %d", got)
	}

	// Order C holds 2 units for [Jan 12, Jan 20) and is confirmed with
	// devices allocated, so capacity moves to the calendar.
	err = lifecycle.CreatePendingReservationsTx(ctx, nil, order(3, day(12), day(20)),
		[]model.OrderDetail{{ID: 31, OrderID: 3, DeviceModelID: 1, Quantity: 2}})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := lifecycle.MoveToUnderReview(ctx, 3); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := lifecycle.MarkConfirmed(ctx, 3); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	store.bookings = append(store.bookings,
		hardBooking{ModelID: 1, Start: day(12), End: day(20), Status: model.CalendarBooked},
		hardBooking{ModelID: 1, Start: day(12), End: day(20), Status: model.CalendarBooked},
	)

	if got := avail(day(10), day(15)); got != 1 {
		t.Errorf("Expected 1 for overlapping query, got %d", got)
	}
	if got := avail(day(20), day(25)); got != 3 {
		t.Errorf("Expected 3 for disjoint query, got %d", got)
	}
}
