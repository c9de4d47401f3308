package model

import "time"

// Reservation statuses.  Only PENDING_REVIEW and UNDER_REVIEW consume
// soft capacity ("active" reservations); those two are also the only
// statuses subject to the expiry sweep.  CONFIRMED carries no expiration
// and is excluded from the soft-capacity sum: once an order is confirmed
// and devices are allocated, calendar entries carry the capacity.
// CANCELLED and EXPIRED consume nothing.
const (
	ReservationPendingReview = "PENDING_REVIEW"
	ReservationUnderReview   = "UNDER_REVIEW"
	ReservationConfirmed     = "CONFIRMED"
	ReservationCancelled     = "CANCELLED"
	ReservationExpired       = "EXPIRED"
)

// ActiveReservationStatuses lists the capacity-consuming, sweepable
// statuses.  Queries that compute soft capacity filter on this set.
var ActiveReservationStatuses = []string{ReservationPendingReview, ReservationUnderReview}

// Reservation is a quantity-level, time-bounded soft hold against a
// device model, created when an order is placed and before physical
// devices are assigned.  Holds in PENDING_REVIEW or UNDER_REVIEW lapse
// at ExpirationTime and are moved to EXPIRED by the sweep.
//
// Fields:
//  ID               – primary key identifier.
//  DeviceModelID    – model whose capacity is held.
//  OrderID          – order that owns this hold.
//  OrderDetailID    – order line item the hold secures.
//  StartTime        – start of the rental window (inclusive).
//  EndTime          – end of the rental window (exclusive).
//  ReservedQuantity – number of units held; always positive.
//  Status           – one of the Reservation* constants above.
//  ExpirationTime   – when the hold lapses; nil means no TTL (CONFIRMED).
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last transition timestamp.
type Reservation struct {
	ID               uint64     // reservations.id
	DeviceModelID    uint64     // reservations.device_model_id
	OrderID          uint64     // reservations.order_id
	OrderDetailID    uint64     // reservations.order_detail_id
	StartTime        time.Time  // reservations.start_time
	EndTime          time.Time  // reservations.end_time
	ReservedQuantity uint32     // reservations.reserved_quantity
	Status           string     // reservations.status
	ExpirationTime   *time.Time // reservations.expiration_time (nullable)
	CreatedAt        time.Time  // reservations.created_at
	UpdatedAt        time.Time  // reservations.updated_at
}

// Active reports whether the reservation consumes soft capacity at the
// given instant: status must be PENDING_REVIEW or UNDER_REVIEW and the
// expiration, when set, must still be in the future.  A lapsed but not
// yet swept hold is therefore already inactive.
func (r *Reservation) Active(now time.Time) bool {
	if r.Status != ReservationPendingReview && r.Status != ReservationUnderReview {
		return false
	}
	return r.ExpirationTime == nil || r.ExpirationTime.After(now)
}
