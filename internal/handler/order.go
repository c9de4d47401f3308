package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rentora/device-booking/internal/model"
	"github.com/rentora/device-booking/internal/repository"
	"github.com/rentora/device-booking/internal/service"
)

// OrderHandler implements the order orchestration boundary around the
// availability core.  Order creation and update run their row inserts
// and the check-and-reserve step in one transaction, so an order can
// never be persisted with only part of its reservation set, and two
// concurrent requests for the same model serialize on the model row
// lock instead of overselling.
type OrderHandler struct {
	OrderRepo    *repository.OrderRepo
	ModelRepo    *repository.DeviceModelRepo
	CalendarRepo *repository.BookingCalendarRepo
	Reservations *service.ReservationService
}

// NewOrderHandler constructs an OrderHandler.  All dependencies must be
// non-nil.
func NewOrderHandler(orders *repository.OrderRepo, models *repository.DeviceModelRepo, calendar *repository.BookingCalendarRepo, reservations *service.ReservationService) *OrderHandler {
	if orders == nil || models == nil || calendar == nil || reservations == nil {
		panic("nil dependency passed to NewOrderHandler")
	}
	return &OrderHandler{
		OrderRepo:    orders,
		ModelRepo:    models,
		CalendarRepo: calendar,
		Reservations: reservations,
	}
}

type orderItemReq struct {
	DeviceModelID uint64 `json:"device_model_id"`
	Quantity      uint32 `json:"quantity"`
}

type orderReq struct {
	StartTime string         `json:"start_time"`
	EndTime   string         `json:"end_time"`
	Items     []orderItemReq `json:"items"`
}

// validateItems checks quantities and resolves every referenced model,
// returning the line items to persist.  Validation failures carry a
// client-facing message.
func (h *OrderHandler) validateItems(c echo.Context, items []orderItemReq) ([]model.OrderDetail, string) {
	if len(items) == 0 {
		return nil, "items is required"
	}
	ctx := c.Request().Context()
	details := make([]model.OrderDetail, 0, len(items))
	for _, it := range items {
		if it.DeviceModelID == 0 || it.Quantity == 0 {
			return nil, "each item needs a device_model_id and a positive quantity"
		}
		if _, err := h.ModelRepo.GetByID(ctx, it.DeviceModelID); err != nil {
			if errors.Is(err, repository.ErrModelNotFound) {
				return nil, "unknown device model " + strconv.FormatUint(it.DeviceModelID, 10)
			}
			return nil, "database error"
		}
		details = append(details, model.OrderDetail{
			DeviceModelID: it.DeviceModelID,
			Quantity:      it.Quantity,
		})
	}
	return details, ""
}

// capacityResponse maps a CapacityError to the 409 payload the client
// uses to show which model fell short.
func capacityResponse(c echo.Context, err error) error {
	var capErr *repository.CapacityError
	if errors.As(err, &capErr) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":           "not enough units available",
			"device_model_id": capErr.DeviceModelID,
			"requested":       capErr.Requested,
			"available":       capErr.Available,
		})
	}
	return c.JSON(http.StatusConflict, echo.Map{"error": "not enough units available"})
}

// CreateOrder handles POST /v1/orders.  It validates the window and
// line items, then persists the order, its details and its
// PENDING_REVIEW reservations in one transaction.  If any model lacks
// capacity the whole order is rejected with 409; there is no partial
// acceptance of line items.
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req orderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	start, end, err := parseWindow(req.StartTime, req.EndTime)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if !start.Before(end) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_time must be before end_time"})
	}
	details, msg := h.validateItems(c, req.Items)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
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

	order := model.RentalOrder{
		CustomerID: userID,
		StartTime:  start,
		EndTime:    end,
		Status:     model.OrderPending,
	}
	if err := h.OrderRepo.CreateTx(ctx, tx, &order); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create order"})
	}
	for i := range details {
		details[i].OrderID = order.ID
	}
	if err := h.OrderRepo.CreateDetailsBulkTx(ctx, tx, details); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create order details"})
	}
	if err := h.Reservations.CreatePendingReservationsTx(ctx, tx, order, details); err != nil {
		if errors.Is(err, repository.ErrCapacityExceeded) {
			return capacityResponse(c, err)
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reserve capacity"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.JSON(http.StatusCreated, echo.Map{
		"order_id":   order.ID,
		"status":     order.Status,
		"start_time": start.Format(time.RFC3339),
		"end_time":   end.Format(time.RFC3339),
	})
}

// UpdateOrder handles PUT /v1/orders/:id.  Update is modeled as
// cancel-then-recreate, not in-place mutation: the old reservations are
// force-cancelled, the detail set replaced, and a fresh pending set
// check-and-reserved, all in one transaction.  On a capacity shortfall
// everything rolls back and the order keeps its previous state.
func (h *OrderHandler) UpdateOrder(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	var req orderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	start, end, err := parseWindow(req.StartTime, req.EndTime)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if !start.Before(end) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_time must be before end_time"})
	}
	details, msg := h.validateItems(c, req.Items)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
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
	if order.CustomerID != userID && !isStaff(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	switch order.Status {
	case model.OrderActive, model.OrderCompleted, model.OrderCancelled:
		return c.JSON(http.StatusConflict, echo.Map{"error": "order can no longer be updated"})
	}

	if _, err := h.Reservations.ForceCancelTx(ctx, tx, orderID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel reservations"})
	}
	if err := h.OrderRepo.DeleteDetailsByOrderTx(ctx, tx, orderID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to replace order details"})
	}
	order.StartTime, order.EndTime = start, end
	if err := h.OrderRepo.UpdateWindowTx(ctx, tx, order); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update order"})
	}
	for i := range details {
		details[i].OrderID = orderID
	}
	if err := h.OrderRepo.CreateDetailsBulkTx(ctx, tx, details); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create order details"})
	}
	if err := h.Reservations.CreatePendingReservationsTx(ctx, tx, order, details); err != nil {
		if errors.Is(err, repository.ErrCapacityExceeded) {
			return capacityResponse(c, err)
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reserve capacity"})
	}
	if err := h.OrderRepo.UpdateStatusTx(ctx, tx, orderID, model.OrderPending); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update order"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.JSON(http.StatusOK, echo.Map{
		"order_id": orderID,
		"status":   model.OrderPending,
	})
}

// DeleteOrder handles DELETE /v1/orders/:id.  Reservations are
// force-cancelled first, calendar entries cleared, then details and the
// order row removed.  Cancellation is an override and always succeeds;
// deleting a non-existent order yields 404.
func (h *OrderHandler) DeleteOrder(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
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

	order, err := h.OrderRepo.GetByIDTx(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if order.CustomerID != userID && !isStaff(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	if _, err := h.Reservations.ForceCancelTx(ctx, tx, orderID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel reservations"})
	}
	if err := h.CalendarRepo.DeleteByOrderTx(ctx, tx, orderID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to clear calendar"})
	}
	if err := h.OrderRepo.DeleteDetailsByOrderTx(ctx, tx, orderID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete order details"})
	}
	if err := h.OrderRepo.DeleteTx(ctx, tx, orderID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete order"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.NoContent(http.StatusNoContent)
}

// ListMyOrders handles GET /v1/my-orders.
func (h *OrderHandler) ListMyOrders(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orders, err := h.OrderRepo.ListByCustomer(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load orders"})
	}
	items := make([]echo.Map, 0, len(orders))
	for _, o := range orders {
		items = append(items, orderView(o))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetOrder handles GET /v1/orders/:id, returning the order, its line
// items and its current reservation states.  Customers see only their
// own orders; staff see all.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	ctx := c.Request().Context()
	order, err := h.OrderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if order.CustomerID != userID && !isStaff(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	details, err := h.OrderRepo.ListDetails(ctx, orderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load order details"})
	}
	reservations, err := h.Reservations.ListByOrder(ctx, orderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
	}
	detailViews := make([]echo.Map, 0, len(details))
	for _, d := range details {
		detailViews = append(detailViews, echo.Map{
			"id":              d.ID,
			"device_model_id": d.DeviceModelID,
			"quantity":        d.Quantity,
		})
	}
	resViews := make([]echo.Map, 0, len(reservations))
	for _, r := range reservations {
		v := echo.Map{
			"id":                r.ID,
			"device_model_id":   r.DeviceModelID,
			"order_detail_id":   r.OrderDetailID,
			"reserved_quantity": r.ReservedQuantity,
			"status":            r.Status,
		}
		if r.ExpirationTime != nil {
			v["expiration_time"] = r.ExpirationTime.Format(time.RFC3339)
		}
		resViews = append(resViews, v)
	}
	view := orderView(order)
	view["items"] = detailViews
	view["reservations"] = resViews
	return c.JSON(http.StatusOK, echo.Map{"item": view})
}

func orderView(o model.RentalOrder) echo.Map {
	return echo.Map{
		"id":         o.ID,
		"status":     o.Status,
		"start_time": o.StartTime.Format(time.RFC3339),
		"end_time":   o.EndTime.Format(time.RFC3339),
	}
}
