// Package queue defines message payloads exchanged over the message broker.
package queue

// ReservedItem is one confirmed line item inside an event payload.
type ReservedItem struct {
	DeviceModelID uint64 `json:"device_model_id"`
	ModelName     string `json:"model_name"`
	Quantity      uint32 `json:"quantity"`
}

// ReservationConfirmedEvent is published when staff accept an order and
// its reservations move to CONFIRMED.  It carries enough information
// for downstream consumers to log, notify, or trigger contract
// generation without querying the primary database.
type ReservationConfirmedEvent struct {
	OrderID     uint64         `json:"order_id"`
	CustomerID  uint64         `json:"customer_id"`
	StartTime   string         `json:"start_time"`
	EndTime     string         `json:"end_time"`
	Items       []ReservedItem `json:"items"`
	ConfirmedAt string         `json:"confirmed_at"`
}
