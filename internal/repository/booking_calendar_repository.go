package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/rentora/device-booking/internal/model"
)

// BookingCalendarRepo provides data access to the booking_calendar
// table: the hard, device-level commitments created once physical units
// are allocated to an order.  Only BOOKED and ACTIVE rows consume
// capacity.
type BookingCalendarRepo struct {
	db *sql.DB
}

// NewBookingCalendarRepo returns a new BookingCalendarRepo bound to the provided database.
func NewBookingCalendarRepo(db *sql.DB) *BookingCalendarRepo { return &BookingCalendarRepo{db: db} }

// countOverlappingBookings counts capacity-consuming calendar entries
// for the model whose window overlaps [start,end).  Calendar rows are
// device-level, so the device table maps them back to their model.
func countOverlappingBookings(ctx context.Context, q querier, modelID uint64, start, end time.Time) (uint32, error) {
	const query = `SELECT COUNT(*)
			   FROM booking_calendar bc
			   JOIN devices d ON d.id = bc.device_id
			   WHERE d.device_model_id = ?
				 AND bc.status IN ('BOOKED','ACTIVE')
				 AND bc.start_time < ? AND ? < bc.end_time`
	var n uint32
	if err := q.QueryRowContext(ctx, query, modelID, dt(end), dt(start)).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// CountOverlapping returns how many devices of the model are booked or
// out for any window overlapping [start,end).  A degenerate window
// returns 0.
func (r *BookingCalendarRepo) CountOverlapping(ctx context.Context, modelID uint64, start, end time.Time) (uint32, error) {
	if !start.Before(end) {
		return 0, nil
	}
	return countOverlappingBookings(ctx, r.db, modelID, start, end)
}

// DeviceHasOverlapTx reports whether the device already has a BOOKED or
// ACTIVE entry overlapping [start,end).  Allocation checks this before
// inserting, enforcing the one-device-one-window invariant.
func (r *BookingCalendarRepo) DeviceHasOverlapTx(ctx context.Context, tx *sql.Tx, deviceID uint64, start, end time.Time) (bool, error) {
	const query = `SELECT EXISTS (
				   SELECT 1 FROM booking_calendar
				   WHERE device_id = ?
					 AND status IN ('BOOKED','ACTIVE')
					 AND start_time < ? AND ? < end_time)`
	var exists bool
	if err := tx.QueryRowContext(ctx, query, deviceID, dt(end), dt(start)).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// CreateBulkTx inserts calendar entries in one statement within the
// provided transaction.  Each entry must carry device, order, window
// and status.  Passing an empty slice has no effect and returns nil.
func (r *BookingCalendarRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, entries []model.BookingCalendarEntry) error {
	if len(entries) == 0 {
		return nil
	}
	query := `INSERT INTO booking_calendar (device_id, order_id, start_time, end_time, status) VALUES `
	args := make([]interface{}, 0, len(entries)*5)
	for i, e := range entries {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, e.DeviceID, e.OrderID, dt(e.StartTime), dt(e.EndTime), e.Status)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// UpdateStatusByOrderTx advances all of the order's calendar entries
// currently in status from to status to, returning the affected row
// count.  Handover moves BOOKED to ACTIVE; return moves ACTIVE to
// RETURNED.
func (r *BookingCalendarRepo) UpdateStatusByOrderTx(ctx context.Context, tx *sql.Tx, orderID uint64, from, to string) (int64, error) {
	const query = `UPDATE booking_calendar
			   SET status = ?, updated_at = UTC_TIMESTAMP()
			   WHERE order_id = ? AND status = ?`
	result, err := tx.ExecContext(ctx, query, to, orderID, from)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CancelByOrderTx force-cancels every non-terminal calendar entry of
// the order.  Used when an order is deleted or its detail set replaced;
// like reservation cancellation this is an override, not a guarded
// transition.
func (r *BookingCalendarRepo) CancelByOrderTx(ctx context.Context, tx *sql.Tx, orderID uint64) (int64, error) {
	const query = `UPDATE booking_calendar
			   SET status = 'CANCELLED', updated_at = UTC_TIMESTAMP()
			   WHERE order_id = ? AND status IN ('BOOKED','ACTIVE')`
	result, err := tx.ExecContext(ctx, query, orderID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteByOrderTx removes all calendar entries of the order.  Used when
// the order itself is deleted.
func (r *BookingCalendarRepo) DeleteByOrderTx(ctx context.Context, tx *sql.Tx, orderID uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM booking_calendar WHERE order_id = ?`, orderID)
	return err
}

// ListByOrder returns the order's calendar entries, oldest first.
func (r *BookingCalendarRepo) ListByOrder(ctx context.Context, orderID uint64) ([]model.BookingCalendarEntry, error) {
	const query = `SELECT id, device_id, order_id, start_time, end_time, status, created_at, updated_at
			   FROM booking_calendar
			   WHERE order_id = ?
			   ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.BookingCalendarEntry
	for rows.Next() {
		var e model.BookingCalendarEntry
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.OrderID, &e.StartTime, &e.EndTime,
			&e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
