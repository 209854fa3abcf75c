// Package scheduler runs periodic maintenance jobs of the card ledger.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Expirer marks cards that are past their expiry date as expired.
type Expirer interface {
	ExpireCards(ctx context.Context, now time.Time) (int64, error)
}

// Scheduler runs the card expiry sweep on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	expirer Expirer
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Scheduler that runs the expiry sweep on spec, a standard
// cron expression or a descriptor such as "@daily".
func New(spec string, expirer Expirer, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		expirer: expirer,
		timeout: time.Minute,
		logger:  logger.With("component", "scheduler"),
		now:     time.Now,
	}
	if _, err := s.cron.AddFunc(spec, s.RunExpiry); err != nil {
		return nil, fmt.Errorf("invalid expiry schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", "entries", len(s.cron.Entries()))
}

// Stop halts the schedule and waits for a running job to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.logger.Info("Scheduler stopped")
}

// RunExpiry performs one expiry sweep.
func (s *Scheduler) RunExpiry() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	n, err := s.expirer.ExpireCards(ctx, s.now())
	if err != nil {
		s.logger.Error("Card expiry sweep failed", "error", err)
		return
	}
	s.logger.Info("Card expiry sweep finished", "expired", n)
}
