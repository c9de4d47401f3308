package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/rentora/device-booking/internal/model"
)

// ReservationStore is the persistence surface the lifecycle manager
// drives.  Guarded transitions and the cancellation override are two
// distinct operations so the "cancellation always wins" invariant stays
// visible and independently testable.
type ReservationStore interface {
	// CheckAndReserveTx atomically verifies availability and inserts
	// the pending set inside the given transaction, returning a
	// capacity error on shortfall.
	CheckAndReserveTx(ctx context.Context, tx *sql.Tx, res []model.Reservation, now time.Time) error
	// TransitionByOrder updates only rows whose status is in
	// allowedFrom and reports how many it touched.
	TransitionByOrder(ctx context.Context, orderID uint64, allowedFrom []string, to string, expiresAt *time.Time) (int64, error)
	// ForceTransitionByOrder updates every row of the order
	// unconditionally.
	ForceTransitionByOrder(ctx context.Context, orderID uint64, to string) (int64, error)
	// ForceTransitionByOrderTx is the same override inside an existing
	// transaction.
	ForceTransitionByOrderTx(ctx context.Context, tx *sql.Tx, orderID uint64, to string) (int64, error)
	// ListByOrder returns the order's reservations.
	ListByOrder(ctx context.Context, orderID uint64) ([]model.Reservation, error)
	// ExpireDue bulk-moves lapsed active rows to EXPIRED.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
	// SumActiveQuantity sums active, unexpired reserved quantities
	// overlapping a window.
	SumActiveQuantity(ctx context.Context, modelID uint64, start, end, now time.Time) (uint32, error)
}

// ReservationService manages the soft-hold lifecycle:
//
//	PENDING_REVIEW --(review)--> UNDER_REVIEW --(accept)--> CONFIRMED
//	      |                            |
//	      +----(sweep, TTL lapsed)-----+--> EXPIRED
//	      +----(order cancelled, any state)--> CANCELLED
//
// CONFIRMED carries no TTL and holds capacity until the order lifecycle
// cancels or completes it elsewhere.
type ReservationService struct {
	store      ReservationStore
	db         *sql.DB       // nil in tests; only CreatePendingReservations needs it
	pendingTTL time.Duration // TTL applied at creation (PENDING_REVIEW)
	reviewTTL  time.Duration // TTL applied when review starts (UNDER_REVIEW)
	now        func() time.Time
}

// NewReservationService constructs a ReservationService.  db may be nil
// when every caller supplies its own transaction.
func NewReservationService(store ReservationStore, db *sql.DB, pendingTTL, reviewTTL time.Duration) *ReservationService {
	if store == nil {
		panic("nil store passed to NewReservationService")
	}
	if pendingTTL <= 0 {
		pendingTTL = 15 * time.Minute
	}
	if reviewTTL <= 0 {
		reviewTTL = 6 * time.Hour
	}
	return &ReservationService{
		store:      store,
		db:         db,
		pendingTTL: pendingTTL,
		reviewTTL:  reviewTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// buildPending turns an order's line items into PENDING_REVIEW
// reservation rows with expiration = now + pendingTTL.  Line items with
// zero quantity or no model are skipped.  A degenerate order window
// yields nothing.
func (s *ReservationService) buildPending(order model.RentalOrder, details []model.OrderDetail) []model.Reservation {
	if !order.StartTime.Before(order.EndTime) || len(details) == 0 {
		return nil
	}
	exp := s.now().Add(s.pendingTTL)
	out := make([]model.Reservation, 0, len(details))
	for _, d := range details {
		if d.Quantity == 0 || d.DeviceModelID == 0 {
			continue
		}
		e := exp
		out = append(out, model.Reservation{
			DeviceModelID:    d.DeviceModelID,
			OrderID:          order.ID,
			OrderDetailID:    d.ID,
			StartTime:        order.StartTime,
			EndTime:          order.EndTime,
			ReservedQuantity: d.Quantity,
			Status:           model.ReservationPendingReview,
			ExpirationTime:   &e,
		})
	}
	return out
}

// CreatePendingReservationsTx creates the order's pending holds inside
// an existing transaction, so they commit or roll back together with
// the order rows the caller has inserted.  The availability check and
// the insert happen atomically (see ReservationStore.CheckAndReserveTx);
// shortfall surfaces as an error matching repository.ErrCapacityExceeded
// and nothing is inserted.  A degenerate window or an empty detail list
// is a no-op.
func (s *ReservationService) CreatePendingReservationsTx(ctx context.Context, tx *sql.Tx, order model.RentalOrder, details []model.OrderDetail) error {
	pending := s.buildPending(order, details)
	if len(pending) == 0 {
		return nil
	}
	return s.store.CheckAndReserveTx(ctx, tx, pending, s.now())
}

// CreatePendingReservations is the standalone variant for callers with
// no surrounding transaction: it opens one, delegates to
// CreatePendingReservationsTx and commits.
func (s *ReservationService) CreatePendingReservations(ctx context.Context, order model.RentalOrder, details []model.OrderDetail) error {
	pending := s.buildPending(order, details)
	if len(pending) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := s.store.CheckAndReserveTx(ctx, tx, pending, s.now()); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// MoveToUnderReview marks the order's reservations as being reviewed by
// staff and resets their TTL to now + reviewTTL.  The allowed source
// set includes EXPIRED so a manual review action revives a hold that
// lapsed just before the staff member acted rather than hard-failing;
// product has not yet confirmed whether that revival is intended.
// Unknown orders are a silent no-op.
func (s *ReservationService) MoveToUnderReview(ctx context.Context, orderID uint64) error {
	exp := s.now().Add(s.reviewTTL)
	_, err := s.store.TransitionByOrder(ctx, orderID,
		[]string{model.ReservationPendingReview, model.ReservationUnderReview, model.ReservationExpired},
		model.ReservationUnderReview, &exp)
	return err
}

// MarkConfirmed finalizes the order's reservations: status CONFIRMED,
// TTL cleared, capacity held until the order lifecycle releases it.
// Cancelled or expired rows are not resurrected; they are outside the
// allowed source set.  Unknown orders are a silent no-op.
func (s *ReservationService) MarkConfirmed(ctx context.Context, orderID uint64) error {
	_, err := s.store.TransitionByOrder(ctx, orderID,
		[]string{model.ReservationPendingReview, model.ReservationUnderReview, model.ReservationConfirmed},
		model.ReservationConfirmed, nil)
	return err
}

// CancelReservations forces every reservation of the order to CANCELLED
// regardless of current state.  This is an override, not a guarded
// transition: order deletion and replacement must never be blocked by
// an unexpected reservation state.  Unknown orders are a silent no-op.
func (s *ReservationService) CancelReservations(ctx context.Context, orderID uint64) error {
	_, err := s.store.ForceTransitionByOrder(ctx, orderID, model.ReservationCancelled)
	return err
}

// ForceCancelTx is CancelReservations inside an existing transaction,
// for orchestration paths that cancel and recreate holds atomically
// (order update) or cancel as part of order deletion.
func (s *ReservationService) ForceCancelTx(ctx context.Context, tx *sql.Tx, orderID uint64) (int64, error) {
	return s.store.ForceTransitionByOrderTx(ctx, tx, orderID, model.ReservationCancelled)
}

// ListByOrder returns the order's reservations for display.  An
// unknown order yields an empty slice.
func (s *ReservationService) ListByOrder(ctx context.Context, orderID uint64) ([]model.Reservation, error) {
	return s.store.ListByOrder(ctx, orderID)
}

// ExpireReservations sweeps all active reservations whose expiration
// has passed to EXPIRED and returns how many it moved.  Safe to call
// repeatedly and concurrently with transitions; re-running on an empty
// result set is a no-op.
func (s *ReservationService) ExpireReservations(ctx context.Context) (int64, error) {
	return s.store.ExpireDue(ctx, s.now())
}

// CountActiveReservedQuantity sums the reserved quantities of active,
// unexpired holds on the model whose window overlaps [start,end).
// Returns 0 for a degenerate window or a missing model ID.
func (s *ReservationService) CountActiveReservedQuantity(ctx context.Context, modelID uint64, start, end time.Time) (uint32, error) {
	if modelID == 0 || !start.Before(end) {
		return 0, nil
	}
	return s.store.SumActiveQuantity(ctx, modelID, start, end, s.now())
}
