package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// getUserID extracts the user_id stored by the JWT middleware and
// converts it to uint64.  JWT claim numbers arrive as float64 after
// JSON decoding, so several representations are accepted.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// isStaff reports whether the authenticated user carries the STAFF role.
func isStaff(c echo.Context) bool {
	role, _ := c.Get("role").(string)
	return role == "STAFF"
}

// parseWindow parses RFC3339 start/end strings into UTC timestamps.
// Both must be present and well-formed; the caller decides what a
// degenerate (start >= end) window means.
func parseWindow(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid start_time")
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid end_time")
	}
	return start.UTC(), end.UTC(), nil
}
