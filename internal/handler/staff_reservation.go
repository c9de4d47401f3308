package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rentora/device-booking/internal/model"
	"github.com/rentora/device-booking/internal/queue"
	"github.com/rentora/device-booking/internal/repository"
	"github.com/rentora/device-booking/internal/service"
	queuepublisher "github.com/rentora/device-booking/internal/service/queue_publisher"
)

// StaffHandler exposes the reservation lifecycle to staff: moving
// orders through review, confirming or rejecting them, and the
// physical side of fulfilment (device allocation, handover, return).
// Role enforcement happens in middleware; every method here assumes a
// STAFF caller.
type StaffHandler struct {
	OrderRepo    *repository.OrderRepo
	ModelRepo    *repository.DeviceModelRepo
	CalendarRepo *repository.BookingCalendarRepo
	Reservations *service.ReservationService
}

// NewStaffHandler constructs a StaffHandler.  All dependencies must be
// non-nil.
func NewStaffHandler(orders *repository.OrderRepo, models *repository.DeviceModelRepo, calendar *repository.BookingCalendarRepo, reservations *service.ReservationService) *StaffHandler {
	if orders == nil || models == nil || calendar == nil || reservations == nil {
		panic("nil dependency passed to NewStaffHandler")
	}
	return &StaffHandler{
		OrderRepo:    orders,
		ModelRepo:    models,
		CalendarRepo: calendar,
		Reservations: reservations,
	}
}

// orderFromPath resolves the :id path parameter to an order, writing
// the error response itself when resolution fails.
func (h *StaffHandler) orderFromPath(c echo.Context) (model.RentalOrder, bool) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
		return model.RentalOrder{}, false
	}
	order, err := h.OrderRepo.GetByID(c.Request().Context(), orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			_ = c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		} else {
			_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		return model.RentalOrder{}, false
	}
	return order, true
}

// StartReview handles POST /v1/orders/:id/review.  The order's
// reservations move to UNDER_REVIEW with a fresh 6 hour TTL; holds that
// expired moments before the staff member acted are revived rather than
// hard-failed.
func (h *StaffHandler) StartReview(c echo.Context) error {
	order, ok := h.orderFromPath(c)
	if !ok {
		return nil
	}
	ctx := c.Request().Context()
	if err := h.Reservations.MoveToUnderReview(ctx, order.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update reservations"})
	}
	if err := h.OrderRepo.UpdateStatus(ctx, order.ID, model.OrderUnderReview); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update order"})
	}
	return c.JSON(http.StatusOK, echo.Map{"order_id": order.ID, "status": model.OrderUnderReview})
}

// Confirm handles POST /v1/orders/:id/confirm.  Reservations move to
// CONFIRMED with their TTL cleared, the order is accepted, and a
// reservation.confirmed event is published for downstream consumers.
// Publishing is best-effort: a broker outage must not fail the
// confirmation.
func (h *StaffHandler) Confirm(c echo.Context) error {
	order, ok := h.orderFromPath(c)
	if !ok {
		return nil
	}
	ctx := c.Request().Context()
	if err := h.Reservations.MarkConfirmed(ctx, order.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to confirm reservations"})
	}
	if err := h.OrderRepo.UpdateStatus(ctx, order.ID, model.OrderConfirmed); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update order"})
	}
	go h.publishConfirmed(order)
	return c.JSON(http.StatusOK, echo.Map{"order_id": order.ID, "status": model.OrderConfirmed})
}

// publishConfirmed assembles and publishes the confirmation event.  It
// runs detached from the request; errors are logged inside the
// publisher.
func (h *StaffHandler) publishConfirmed(order model.RentalOrder) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	details, err := h.OrderRepo.ListDetails(ctx, order.ID)
	if err != nil {
		log.Printf("confirm-event: load details failed for order %d: %v", order.ID, err)
		return
	}
	items := make([]queue.ReservedItem, 0, len(details))
	for _, d := range details {
		name := ""
		if m, err := h.ModelRepo.GetByID(ctx, d.DeviceModelID); err == nil {
			name = m.Name
		}
		items = append(items, queue.ReservedItem{
			DeviceModelID: d.DeviceModelID,
			ModelName:     name,
			Quantity:      d.Quantity,
		})
	}
	_ = queuepublisher.PublishReservationConfirmed(ctx, queue.ReservationConfirmedEvent{
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		StartTime:   order.StartTime.Format(time.RFC3339),
		EndTime:     order.EndTime.Format(time.RFC3339),
		Items:       items,
		ConfirmedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// Reject handles POST /v1/orders/:id/reject.  Every reservation of the
// order is force-cancelled (override, never blocked by state) and the
// order is marked REJECTED.
func (h *StaffHandler) Reject(c echo.Context) error {
	order, ok := h.orderFromPath(c)
	if !ok {
		return nil
	}
	ctx := c.Request().Context()
	if err := h.Reservations.CancelReservations(ctx, order.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel reservations"})
	}
	if err := h.OrderRepo.UpdateStatus(ctx, order.ID, model.OrderRejected); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update order"})
	}
	return c.JSON(http.StatusOK, echo.Map{"order_id": order.ID, "status": model.OrderRejected})
}

type allocationReq struct {
	Allocations []struct {
		OrderDetailID uint64   `json:"order_detail_id"`
		DeviceIDs     []uint64 `json:"device_ids"`
	} `json:"allocations"`
}

// Allocate handles POST /v1/orders/:id/allocate.  Once an order is
// confirmed, staff assign physical units to each line item; each
// assignment becomes a BOOKED calendar entry spanning the order window.
// The device count must match the line item quantity, every device must
// be an available unit of the line item's model, and a device already
// committed to an overlapping window is rejected with 409.
func (h *StaffHandler) Allocate(c echo.Context) error {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	var req allocationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(req.Allocations) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "allocations is required"})
	}

	ctx := c.Request().Context()
	tx, err := h.OrderRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	order, err := h.OrderRepo.GetByIDTx(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if order.Status != model.OrderConfirmed {
		return c.JSON(http.StatusConflict, echo.Map{"error": "order must be confirmed before allocation"})
	}

	var entries []model.BookingCalendarEntry
	for _, a := range req.Allocations {
		detail, err := h.OrderRepo.GetDetailTx(ctx, tx, a.OrderDetailID)
		if err != nil || detail.OrderID != orderID {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown order detail"})
		}
		if uint32(len(a.DeviceIDs)) != detail.Quantity {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error":           "device count must match line item quantity",
				"order_detail_id": detail.ID,
			})
		}
		valid, err := h.ModelRepo.DevicesForModelTx(ctx, tx, detail.DeviceModelID, a.DeviceIDs)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to resolve devices"})
		}
		if len(valid) != len(a.DeviceIDs) {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error":           "some devices are unknown, unavailable or belong to another model",
				"order_detail_id": detail.ID,
			})
		}
		for _, deviceID := range a.DeviceIDs {
			overlap, err := h.CalendarRepo.DeviceHasOverlapTx(ctx, tx, deviceID, order.StartTime, order.EndTime)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check device calendar"})
			}
			if overlap {
				return c.JSON(http.StatusConflict, echo.Map{
					"error":     "device already committed for an overlapping window",
					"device_id": deviceID,
				})
			}
			entries = append(entries, model.BookingCalendarEntry{
				DeviceID:  deviceID,
				OrderID:   orderID,
				StartTime: order.StartTime,
				EndTime:   order.EndTime,
				Status:    model.CalendarBooked,
			})
		}
	}
	if err := h.CalendarRepo.CreateBulkTx(ctx, tx, entries); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create calendar entries"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.JSON(http.StatusCreated, echo.Map{"order_id": orderID, "allocated": len(entries)})
}

// Handover handles POST /v1/orders/:id/handover: the customer picks the
// devices up, BOOKED calendar entries become ACTIVE and the order
// follows.  An order with nothing allocated cannot be handed over.
func (h *StaffHandler) Handover(c echo.Context) error {
	return h.advanceCalendar(c, model.CalendarBooked, model.CalendarActive, model.OrderActive,
		"no booked devices to hand over")
}

// Return handles POST /v1/orders/:id/return: devices come back, ACTIVE
// entries become RETURNED and the order completes, releasing hard
// capacity.
func (h *StaffHandler) Return(c echo.Context) error {
	return h.advanceCalendar(c, model.CalendarActive, model.CalendarReturned, model.OrderCompleted,
		"no active devices to return")
}

func (h *StaffHandler) advanceCalendar(c echo.Context, from, to, orderStatus, emptyMsg string) error {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	ctx := c.Request().Context()
	tx, err := h.OrderRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := h.OrderRepo.GetByIDTx(ctx, tx, orderID); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	moved, err := h.CalendarRepo.UpdateStatusByOrderTx(ctx, tx, orderID, from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update calendar"})
	}
	if moved == 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": emptyMsg})
	}
	if err := h.OrderRepo.UpdateStatusTx(ctx, tx, orderID, orderStatus); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update order"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.JSON(http.StatusOK, echo.Map{"order_id": orderID, "status": orderStatus, "devices": moved})
}
