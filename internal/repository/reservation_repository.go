package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rentora/device-booking/internal/model"
)

// ReservationRepo provides data access to the reservations table: the
// quantity-level soft holds that consume capacity between order creation
// and physical device allocation.  All timestamps are stored in UTC.
//
// Status changes go through exactly two operations: TransitionByOrder
// (guarded, touches only rows whose current status is in an allowed
// set) and ForceTransitionByOrder (override, used for cancellation so
// it can never be blocked by an unexpected state).  Nothing else
// mutates reservation rows.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the provided database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle so orchestration code can open
// transactions spanning orders, details and reservations.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

// dt formats a timestamp the way MySQL DATETIME columns expect it.
func dt(t time.Time) string { return t.UTC().Format("2006-01-02 15:04:05") }

// placeholders returns "?,?,..." with n entries for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// CreateMultipleTx inserts reservation rows within the provided
// transaction.  Each reservation must carry its model, order, detail,
// window, quantity, status and (nullable) expiration.  The caller is
// responsible for committing or rolling back.  Passing an empty slice
// has no effect and returns nil.
func (r *ReservationRepo) CreateMultipleTx(ctx context.Context, tx *sql.Tx, res []model.Reservation) error {
	if len(res) == 0 {
		return nil
	}
	query := `INSERT INTO reservations
		(device_model_id, order_id, order_detail_id, start_time, end_time, reserved_quantity, status, expiration_time) VALUES `
	args := make([]interface{}, 0, len(res)*8)
	for i, rv := range res {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?, ?)"
		var exp interface{}
		if rv.ExpirationTime != nil {
			exp = dt(*rv.ExpirationTime)
		}
		args = append(args, rv.DeviceModelID, rv.OrderID, rv.OrderDetailID,
			dt(rv.StartTime), dt(rv.EndTime), rv.ReservedQuantity, rv.Status, exp)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// CheckAndReserveTx performs the availability check and the reservation
// insert as one atomic step inside the supplied transaction, closing
// the oversell window between "read available" and "write hold".  For
// every device model referenced by the pending set it:
//
//   1. locks the device_models row with SELECT ... FOR UPDATE, so
//      concurrent check-and-reserve calls for the same model serialize;
//   2. counts hard capacity (BOOKED/ACTIVE calendar entries overlapping
//      the window) and soft capacity (active, unexpired reservations
//      overlapping the window);
//   3. compares the remainder against the quantity requested here.
//
// On shortfall it returns a *CapacityError for the first model that
// cannot be satisfied and inserts nothing.  A model with no catalog row
// has zero units and always fails.  The caller owns the transaction.
func (r *ReservationRepo) CheckAndReserveTx(ctx context.Context, tx *sql.Tx, res []model.Reservation, now time.Time) error {
	if len(res) == 0 {
		return nil
	}
	// Aggregate the requested quantity per model; the same model may
	// appear in several line items.  Lock in ascending model order so
	// two orders touching the same models cannot deadlock.
	requested := make(map[uint64]uint32)
	order := make([]uint64, 0, len(res))
	for _, rv := range res {
		if _, seen := requested[rv.DeviceModelID]; !seen {
			order = append(order, rv.DeviceModelID)
		}
		requested[rv.DeviceModelID] += rv.ReservedQuantity
	}
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && order[j] < order[j-1]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
	start, end := res[0].StartTime, res[0].EndTime
	for _, modelID := range order {
		var total uint32
		err := tx.QueryRowContext(ctx,
			`SELECT total_units FROM device_models WHERE id = ? FOR UPDATE`,
			modelID,
		).Scan(&total)
		if err == sql.ErrNoRows {
			return &CapacityError{DeviceModelID: modelID, Requested: requested[modelID], Available: 0}
		}
		if err != nil {
			return err
		}
		booked, err := countOverlappingBookings(ctx, tx, modelID, start, end)
		if err != nil {
			return err
		}
		reserved, err := sumActiveQuantity(ctx, tx, modelID, start, end, now)
		if err != nil {
			return err
		}
		available := uint32(0)
		if consumed := booked + reserved; total > consumed {
			available = total - consumed
		}
		if requested[modelID] > available {
			return &CapacityError{DeviceModelID: modelID, Requested: requested[modelID], Available: available}
		}
	}
	return r.CreateMultipleTx(ctx, tx, res)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sumActiveQuantity sums reserved_quantity over reservations on the
// model that are in an active status, overlap [start,end) and have not
// lapsed.  Filtering on expiration_time directly (not just status)
// means holds past their TTL stop counting immediately, without
// waiting for the next sweep.
func sumActiveQuantity(ctx context.Context, q querier, modelID uint64, start, end, now time.Time) (uint32, error) {
	const query = `SELECT COALESCE(SUM(reserved_quantity), 0)
			   FROM reservations
			   WHERE device_model_id = ?
				 AND status IN ('PENDING_REVIEW','UNDER_REVIEW')
				 AND start_time < ? AND ? < end_time
				 AND (expiration_time IS NULL OR expiration_time > ?)`
	var total uint32
	err := q.QueryRowContext(ctx, query, modelID, dt(end), dt(start), dt(now)).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// SumActiveQuantity answers "how many units of this model are soft-held
// for any window overlapping [start,end) right now".  A degenerate
// window returns 0: no capacity is ever consumed by nothing.
func (r *ReservationRepo) SumActiveQuantity(ctx context.Context, modelID uint64, start, end, now time.Time) (uint32, error) {
	if !start.Before(end) {
		return 0, nil
	}
	return sumActiveQuantity(ctx, r.db, modelID, start, end, now)
}

// TransitionByOrder is the guarded bulk update: it moves all of the
// order's reservations whose current status is in allowedFrom to the
// target status, setting expiration_time to expiresAt (nil clears the
// TTL).  It returns the number of rows affected; zero is not an error.
func (r *ReservationRepo) TransitionByOrder(ctx context.Context, orderID uint64, allowedFrom []string, to string, expiresAt *time.Time) (int64, error) {
	if len(allowedFrom) == 0 {
		return 0, nil
	}
	query := `UPDATE reservations
			  SET status = ?, expiration_time = ?, updated_at = UTC_TIMESTAMP()
			  WHERE order_id = ? AND status IN (` + placeholders(len(allowedFrom)) + `)`
	var exp interface{}
	if expiresAt != nil {
		exp = dt(*expiresAt)
	}
	args := make([]interface{}, 0, len(allowedFrom)+3)
	args = append(args, to, exp, orderID)
	for _, s := range allowedFrom {
		args = append(args, s)
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ForceTransitionByOrder is the override update: every reservation
// belonging to the order is moved to the target status regardless of
// its current state, and its expiration is cleared.  Cancellation uses
// this so an order deletion is never blocked by an unexpected
// reservation state.
func (r *ReservationRepo) ForceTransitionByOrder(ctx context.Context, orderID uint64, to string) (int64, error) {
	const query = `UPDATE reservations
			   SET status = ?, expiration_time = NULL, updated_at = UTC_TIMESTAMP()
			   WHERE order_id = ?`
	result, err := r.db.ExecContext(ctx, query, to, orderID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ForceTransitionByOrderTx is ForceTransitionByOrder inside an existing
// transaction, for orchestration paths that cancel and recreate holds
// atomically (order update).
func (r *ReservationRepo) ForceTransitionByOrderTx(ctx context.Context, tx *sql.Tx, orderID uint64, to string) (int64, error) {
	const query = `UPDATE reservations
			   SET status = ?, expiration_time = NULL, updated_at = UTC_TIMESTAMP()
			   WHERE order_id = ?`
	result, err := tx.ExecContext(ctx, query, to, orderID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ExpireDue moves every active reservation whose expiration has passed
// to EXPIRED.  The predicate is evaluated in a single conditional
// UPDATE, so the sweep is idempotent and safe to run concurrently with
// transitions: a row confirmed or cancelled in between no longer
// matches the status filter and is left alone.
func (r *ReservationRepo) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE reservations
			   SET status = 'EXPIRED', updated_at = UTC_TIMESTAMP()
			   WHERE status IN ('PENDING_REVIEW','UNDER_REVIEW')
				 AND expiration_time IS NOT NULL
				 AND expiration_time < ?`
	result, err := r.db.ExecContext(ctx, query, dt(now))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListByOrder returns all reservations belonging to an order, oldest
// first.  An unknown order yields an empty slice, not an error.
func (r *ReservationRepo) ListByOrder(ctx context.Context, orderID uint64) ([]model.Reservation, error) {
	const query = `SELECT id, device_model_id, order_id, order_detail_id, start_time, end_time,
					  reserved_quantity, status, expiration_time, created_at, updated_at
			   FROM reservations
			   WHERE order_id = ?
			   ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		var rv model.Reservation
		var exp sql.NullTime
		if err := rows.Scan(&rv.ID, &rv.DeviceModelID, &rv.OrderID, &rv.OrderDetailID,
			&rv.StartTime, &rv.EndTime, &rv.ReservedQuantity, &rv.Status,
			&exp, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
			return nil, err
		}
		if exp.Valid {
			t := exp.Time
			rv.ExpirationTime = &t
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}
