package repository

import (
	"context"
	"database/sql"

	"github.com/rentora/device-booking/internal/model"
)

// OrderRepo persists rental orders and their line items.  Order
// lifecycle state lives here; capacity state lives in the reservation
// and booking calendar repositories.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the provided database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// DB exposes the underlying handle for transaction orchestration.
func (r *OrderRepo) DB() *sql.DB { return r.db }

// CreateTx inserts a new order within the provided transaction and
// populates its generated ID.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.RentalOrder) error {
	const query = `INSERT INTO rental_orders (customer_id, start_time, end_time, status) VALUES (?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, query, o.CustomerID, dt(o.StartTime), dt(o.EndTime), o.Status)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	return nil
}

// CreateDetailsBulkTx inserts line items in one statement and populates
// their generated IDs.  MySQL assigns consecutive IDs for a multi-row
// insert, so the first LastInsertId anchors the whole batch.
func (r *OrderRepo) CreateDetailsBulkTx(ctx context.Context, tx *sql.Tx, details []model.OrderDetail) error {
	if len(details) == 0 {
		return nil
	}
	query := `INSERT INTO order_details (order_id, device_model_id, quantity) VALUES `
	args := make([]interface{}, 0, len(details)*3)
	for i, d := range details {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, d.OrderID, d.DeviceModelID, d.Quantity)
	}
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	first, err := result.LastInsertId()
	if err != nil {
		return err
	}
	for i := range details {
		details[i].ID = uint64(first) + uint64(i)
	}
	return nil
}

// GetByID fetches an order.  Returns ErrOrderNotFound when it does not exist.
func (r *OrderRepo) GetByID(ctx context.Context, orderID uint64) (model.RentalOrder, error) {
	var o model.RentalOrder
	err := r.db.QueryRowContext(ctx,
		`SELECT id, customer_id, start_time, end_time, status, created_at, updated_at
		 FROM rental_orders WHERE id = ?`, orderID).
		Scan(&o.ID, &o.CustomerID, &o.StartTime, &o.EndTime, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.RentalOrder{}, ErrOrderNotFound
	}
	if err != nil {
		return model.RentalOrder{}, err
	}
	return o, nil
}

// GetByIDTx is GetByID inside an existing transaction, locking the
// order row so concurrent lifecycle actions on the same order serialize.
func (r *OrderRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, orderID uint64) (model.RentalOrder, error) {
	var o model.RentalOrder
	err := tx.QueryRowContext(ctx,
		`SELECT id, customer_id, start_time, end_time, status, created_at, updated_at
		 FROM rental_orders WHERE id = ? FOR UPDATE`, orderID).
		Scan(&o.ID, &o.CustomerID, &o.StartTime, &o.EndTime, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.RentalOrder{}, ErrOrderNotFound
	}
	if err != nil {
		return model.RentalOrder{}, err
	}
	return o, nil
}

// ListDetails returns the order's line items, oldest first.
func (r *OrderRepo) ListDetails(ctx context.Context, orderID uint64) ([]model.OrderDetail, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, device_model_id, quantity, created_at
		 FROM order_details WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.OrderDetail
	for rows.Next() {
		var d model.OrderDetail
		if err := rows.Scan(&d.ID, &d.OrderID, &d.DeviceModelID, &d.Quantity, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetDetailTx fetches one line item within a transaction.  Returns
// sql.ErrNoRows untouched; allocation maps it to a validation error.
func (r *OrderRepo) GetDetailTx(ctx context.Context, tx *sql.Tx, detailID uint64) (model.OrderDetail, error) {
	var d model.OrderDetail
	err := tx.QueryRowContext(ctx,
		`SELECT id, order_id, device_model_id, quantity, created_at
		 FROM order_details WHERE id = ?`, detailID).
		Scan(&d.ID, &d.OrderID, &d.DeviceModelID, &d.Quantity, &d.CreatedAt)
	return d, err
}

// UpdateStatus sets the order's status.
func (r *OrderRepo) UpdateStatus(ctx context.Context, orderID uint64, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE rental_orders SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
		status, orderID)
	return err
}

// UpdateStatusTx sets the order's status within a transaction.
func (r *OrderRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, orderID uint64, status string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE rental_orders SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
		status, orderID)
	return err
}

// UpdateWindowTx replaces the order's rental window within a transaction.
func (r *OrderRepo) UpdateWindowTx(ctx context.Context, tx *sql.Tx, o model.RentalOrder) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE rental_orders SET start_time = ?, end_time = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
		dt(o.StartTime), dt(o.EndTime), o.ID)
	return err
}

// DeleteDetailsByOrderTx removes all line items of the order.  Used by
// the cancel-then-recreate update path and by order deletion.
func (r *OrderRepo) DeleteDetailsByOrderTx(ctx context.Context, tx *sql.Tx, orderID uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM order_details WHERE order_id = ?`, orderID)
	return err
}

// DeleteTx removes the order row itself.
func (r *OrderRepo) DeleteTx(ctx context.Context, tx *sql.Tx, orderID uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM rental_orders WHERE id = ?`, orderID)
	return err
}

// ListByCustomer returns a customer's orders, newest first.
func (r *OrderRepo) ListByCustomer(ctx context.Context, customerID uint64) ([]model.RentalOrder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, customer_id, start_time, end_time, status, created_at, updated_at
		 FROM rental_orders WHERE customer_id = ? ORDER BY id DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.RentalOrder
	for rows.Next() {
		var o model.RentalOrder
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.StartTime, &o.EndTime, &o.Status,
			&o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
