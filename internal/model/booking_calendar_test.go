package model

import (
	"testing"
	"time"
)

func d(day int) time.Time {
	return time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC)
}

func TestWindowsOverlap(t *testing.T) {
	cases := []struct {
		name           string
		s1, e1, s2, e2 time.Time
		want           bool
	}{
		{"partial overlap", d(1), d(3), d(2), d(4), true},
		{"containment", d(1), d(10), d(3), d(5), true},
		{"identical", d(1), d(3), d(1), d(3), true},
		{"touching endpoints", d(1), d(3), d(3), d(5), false},
		{"touching reversed", d(3), d(5), d(1), d(3), false},
		{"disjoint", d(1), d(3), d(4), d(5), false},
	}
	for _, tc := range cases {
		if got := WindowsOverlap(tc.s1, tc.e1, tc.s2, tc.e2); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
		// The predicate is symmetric.
		if got := WindowsOverlap(tc.s2, tc.e2, tc.s1, tc.e1); got != tc.want {
			t.Errorf("%s (swapped): expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestReservationActive(t *testing.T) {
	now := d(10)
	future := d(11)
	past := d(9)

	cases := []struct {
		name   string
		status string
		exp    *time.Time
		want   bool
	}{
		{"pending with future TTL", ReservationPendingReview, &future, true},
		{"under review with future TTL", ReservationUnderReview, &future, true},
		{"pending lapsed", ReservationPendingReview, &past, false},
		{"pending without TTL", ReservationPendingReview, nil, true},
		{"confirmed", ReservationConfirmed, nil, false},
		{"cancelled", ReservationCancelled, &future, false},
		{"expired", ReservationExpired, &past, false},
	}
	for _, tc := range cases {
		r := Reservation{Status: tc.status, ExpirationTime: tc.exp}
		if got := r.Active(now); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
