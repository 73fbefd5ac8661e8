// Package scheduler runs the periodic Deadline Scheduler named in spec.md
// §5: a ticker that calls core.Core.DeadlineTick on a fixed period, never
// overlapping a tick still in flight.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is the tick period spec.md §5 specifies for deadline
// sweeps.
const DefaultInterval = 30 * time.Second

// Ticker is the subset of Core the scheduler depends on.
type Ticker interface {
	DeadlineTick(ctx context.Context)
}

// Scheduler drives Ticker.DeadlineTick on a fixed interval.
type Scheduler struct {
	tick     Ticker
	interval time.Duration
	log      *slog.Logger
}

// New returns a Scheduler over tick. interval defaults to DefaultInterval
// if zero.
func New(tick Ticker, interval time.Duration, log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{tick: tick, interval: interval, log: log}
}

// Run blocks until ctx is cancelled, calling DeadlineTick once per
// interval. If a tick is still running when the next one is due, the next
// one is skipped rather than run concurrently — DeadlineTick is never
// re-entered.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	running := make(chan struct{}, 1)
	running <- struct{}{}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case <-running:
				go func() {
					defer func() { running <- struct{}{} }()
					s.tick.DeadlineTick(ctx)
				}()
			default:
				s.log.Warn("scheduler: previous deadline_tick still running, skipping this tick")
			}
		}
	}
}
