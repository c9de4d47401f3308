package service

import (
	"context"
	"log"
	"time"
)

// ReservationExpirer is the strategy the sweeper drives.  The poll-based
// sweep is a deliberate simplification; a TTL index or delayed queue can
// replace it behind this interface without touching the lifecycle
// manager.
type ReservationExpirer interface {
	ExpireReservations(ctx context.Context) (int64, error)
}

// Sweeper periodically expires lapsed reservations so stale holds stop
// depressing availability.  The job is stateless and idempotent: a
// failed or missed tick just means some holds stay "active" a few
// minutes longer, and the next tick self-heals.
type Sweeper struct {
	expirer  ReservationExpirer
	interval time.Duration
}

// NewSweeper constructs a Sweeper.  A non-positive interval falls back
// to the 5 minute default.
func NewSweeper(expirer ReservationExpirer, interval time.Duration) *Sweeper {
	if expirer == nil {
		panic("nil expirer passed to NewSweeper")
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{expirer: expirer, interval: interval}
}

// Run blocks, sweeping once per interval until ctx is cancelled.  Any
// sweep failure is logged and swallowed; the ticker loop must keep
// running.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	log.Printf("sweeper: started, interval=%s", s.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("sweeper: stopped: %v", ctx.Err())
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("sweeper: recovered from panic: %v", p)
		}
	}()
	n, err := s.expirer.ExpireReservations(ctx)
	if err != nil {
		log.Printf("sweeper: expire failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("sweeper: expired %d reservations", n)
	}
}
