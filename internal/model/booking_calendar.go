package model

import "time"

// BookingCalendar statuses.  BOOKED and ACTIVE consume hard capacity;
// RETURNED and CANCELLED release the device.
const (
	CalendarBooked    = "BOOKED"
	CalendarActive    = "ACTIVE"
	CalendarReturned  = "RETURNED"
	CalendarCancelled = "CANCELLED"
)

// BookingCalendarEntry commits one physical device to one order for an
// interval.  Entries are created when devices are allocated to an
// order's line items and advance to ACTIVE on handover and RETURNED on
// completion.  A device must not have two BOOKED/ACTIVE entries with
// overlapping [StartTime, EndTime) windows.
//
// Fields:
//  ID        – primary key identifier.
//  DeviceID  – the physical unit committed.
//  OrderID   – order the device is committed to.
//  StartTime – start of the rental window (inclusive).
//  EndTime   – end of the rental window (exclusive).
//  Status    – one of the Calendar* constants above.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last status change timestamp.
type BookingCalendarEntry struct {
	ID        uint64    // booking_calendar.id
	DeviceID  uint64    // booking_calendar.device_id
	OrderID   uint64    // booking_calendar.order_id
	StartTime time.Time // booking_calendar.start_time
	EndTime   time.Time // booking_calendar.end_time
	Status    string    // booking_calendar.status
	CreatedAt time.Time // booking_calendar.created_at
	UpdatedAt time.Time // booking_calendar.updated_at
}

// WindowsOverlap implements the half-open interval overlap predicate
// used throughout the availability queries: [s1,e1) and [s2,e2) overlap
// iff s1 < e2 && s2 < e1.  Touching intervals do not overlap.
func WindowsOverlap(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}
