// Package scheduler contains the long-lived background tasks of the numbering engine
package scheduler

import (
	"context"
	"log"
	"time"

	businessflow "github.com/sitearc/docnum/business_flow"
	"github.com/sitearc/docnum/utils"
)

// ReservationSweeper periodically cancels RESERVED reservations whose expiry
// has passed. It is the only background mutation in the engine; the update
// predicate in the repository makes overlapping runs harmless.
type ReservationSweeper struct {
	reservations businessflow.ReservationFlow
	logger       *log.Logger
	interval     time.Duration
}

// NewReservationSweeper creates a new reservation sweeper
func NewReservationSweeper(reservations businessflow.ReservationFlow, logger *log.Logger, interval time.Duration) *ReservationSweeper {
	if interval <= 0 {
		interval = utils.ReservationSweepInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ReservationSweeper{
		reservations: reservations,
		logger:       logger,
		interval:     interval,
	}
}

// Start launches the sweep loop and returns a cancel func that stops it.
func (s *ReservationSweeper) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *ReservationSweeper) runOnce(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cancelled, err := s.reservations.SweepExpired(sweepCtx)
	if err != nil {
		s.logger.Printf("sweeper: expiry sweep failed: %v", err)
		return
	}
	if cancelled > 0 {
		s.logger.Printf("sweeper: cancelled %d expired reservations", cancelled)
	}
}
