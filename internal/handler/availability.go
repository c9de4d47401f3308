package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rentora/device-booking/internal/service"
)

// AvailabilityHandler exposes the availability calculator to browsing
// clients.  The endpoint is read-only and intentionally forgiving: an
// unknown model or a degenerate window reports zero availability rather
// than an error, since callers query it defensively.
type AvailabilityHandler struct {
	Availability *service.AvailabilityService
}

// NewAvailabilityHandler constructs an AvailabilityHandler.
func NewAvailabilityHandler(availability *service.AvailabilityService) *AvailabilityHandler {
	if availability == nil {
		panic("nil service passed to NewAvailabilityHandler")
	}
	return &AvailabilityHandler{Availability: availability}
}

// GetAvailability handles GET /v1/device-models/:id/availability.  The
// start and end query parameters are RFC3339 timestamps forming the
// half-open rental window [start,end).  The response reports how many
// units of the model can still be rented for that window.
func (h *AvailabilityHandler) GetAvailability(c echo.Context) error {
	modelID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || modelID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid device model id"})
	}
	start, end, err := parseWindow(c.QueryParam("start"), c.QueryParam("end"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	available, err := h.Availability.GetAvailableCountByModel(c.Request().Context(), modelID, start, end)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute availability"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"device_model_id": modelID,
		"start":           start.Format(time.RFC3339),
		"end":             end.Format(time.RFC3339),
		"available":       available,
	})
}
