package model

import "time"

// Rental order statuses.  The order lifecycle is owned by the
// orchestration layer; reservations and calendar entries follow it.
const (
	OrderPending     = "PENDING"
	OrderUnderReview = "UNDER_REVIEW"
	OrderConfirmed   = "CONFIRMED"
	OrderActive      = "ACTIVE"
	OrderCompleted   = "COMPLETED"
	OrderCancelled   = "CANCELLED"
	OrderRejected    = "REJECTED"
)

// RentalOrder groups the line items a customer rents for one window.
// StartTime/EndTime form the rental window shared by all of the order's
// reservations and calendar entries.
type RentalOrder struct {
	ID         uint64    // rental_orders.id
	CustomerID uint64    // rental_orders.customer_id
	StartTime  time.Time // rental_orders.start_time
	EndTime    time.Time // rental_orders.end_time
	Status     string    // rental_orders.status
	CreatedAt  time.Time // rental_orders.created_at
	UpdatedAt  time.Time // rental_orders.updated_at
}

// OrderDetail is one line item: a quantity of one device model.
type OrderDetail struct {
	ID            uint64    // order_details.id
	OrderID       uint64    // order_details.order_id
	DeviceModelID uint64    // order_details.device_model_id
	Quantity      uint32    // order_details.quantity
	CreatedAt     time.Time // order_details.created_at
}
