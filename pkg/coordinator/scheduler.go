package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultScanInterval is the default duration between scheduled runs
	DefaultScanInterval = 1 * time.Hour

	// MinScanInterval is the minimum allowed interval to avoid hammering the
	// source platform
	MinScanInterval = 1 * time.Minute
)

// Scheduler triggers the coordinator on a fixed interval. A tick that lands
// while a run is still active is dropped by the coordinator's guard.
type Scheduler struct {
	coordinator *Coordinator
	logger      *logrus.Logger
	interval    time.Duration
	ticker      *time.Ticker
	stopped     chan struct{}
}

// NewScheduler creates a new Scheduler instance
func NewScheduler(c *Coordinator, interval time.Duration, logger *logrus.Logger) (*Scheduler, error) {
	if c == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	if interval < MinScanInterval {
		return nil, fmt.Errorf("interval must be at least %v, got %v", MinScanInterval, interval)
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Scheduler{
		coordinator: c,
		logger:      logger,
		interval:    interval,
		ticker:      time.NewTicker(interval),
		stopped:     make(chan struct{}),
	}, nil
}

// Run blocks, triggering a scan on every tick until the context is canceled
// or Stop is called.
func (s *Scheduler) Run(ctx context.Context) error {
	log := s.logger.WithField("task", "scheduler")
	log.WithField("interval", s.interval.String()).Info("Starting scan scheduler")

	for {
		select {
		case <-ctx.Done():
			log.Info("Context cancelled, stopping scheduler")
			return ctx.Err()
		case <-s.stopped:
			log.Info("Scheduler stopped")
			return nil
		case <-s.ticker.C:
			s.coordinator.Trigger(ctx)
		}
	}
}

// Stop halts the scheduler loop.
func (s *Scheduler) Stop() {
	s.ticker.Stop()
	close(s.stopped)
}
