// Package scheduler decides when fetch cycles run: on a fixed interval or
// at a fixed local time once per day, with a staleness check at startup so
// a restart never waits a full period behind a stale artifact.
package scheduler

import (
	"context"
	"time"

	"motorpool/paddock/internal/config"
	"motorpool/paddock/internal/fetcher"
	"motorpool/paddock/internal/logging"
)

// Scheduler triggers fetch cycles. Manual triggers go straight to the
// fetcher, which serializes cycles itself.
type Scheduler struct {
	fetcher *fetcher.Fetcher
	store   *config.Store
}

// New creates a scheduler
func New(f *fetcher.Fetcher, store *config.Store) *Scheduler {
	return &Scheduler{fetcher: f, store: store}
}

// Start blocks until ctx is cancelled, running cycles per the polling
// config. Mode and timing are re-read before every wait, so a settings
// change takes effect at the next wake-up without a restart.
func (s *Scheduler) Start(ctx context.Context) {
	cfg := s.store.Snapshot()
	logging.Info("Scheduler started",
		"mode", cfg.Polling.Mode,
		"interval_seconds", cfg.Polling.IntervalSeconds,
		"fixed_time", cfg.Polling.FixedTime)

	if wait := s.initialWait(); wait > 0 {
		logging.Info("Cache artifact still fresh, delaying first fetch", "wait", wait.String())
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.nextWait(time.Now())):
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if err := s.fetcher.RunCycle(ctx); err != nil {
		logging.Error("Scheduled fetch cycle failed", "error", err.Error())
	}
}

// initialWait is zero when the artifact is missing or older than one
// period, otherwise the remainder of the current period.
func (s *Scheduler) initialWait() time.Duration {
	cfg := s.store.Snapshot()

	mod, ok := s.fetcher.Cache().ModTime()
	if !ok {
		return 0
	}

	staleAfter := time.Duration(cfg.Polling.IntervalSeconds) * time.Second
	if cfg.Polling.Mode == "fixed_time" {
		staleAfter = 24 * time.Hour
	}

	age := time.Since(mod)
	if age >= staleAfter {
		return 0
	}
	if cfg.Polling.Mode == "fixed_time" {
		return s.nextWait(time.Now())
	}
	return staleAfter - age
}

// nextWait is the time until the next scheduled cycle. An unparseable
// fixed_time falls back to interval scheduling.
func (s *Scheduler) nextWait(now time.Time) time.Duration {
	cfg := s.store.Snapshot()

	if cfg.Polling.Mode == "fixed_time" {
		if at, err := time.Parse("15:04", cfg.Polling.FixedTime); err == nil {
			next := time.Date(now.Year(), now.Month(), now.Day(),
				at.Hour(), at.Minute(), 0, 0, now.Location())
			if !next.After(now) {
				next = next.AddDate(0, 0, 1)
			}
			return next.Sub(now)
		}
		logging.Warn("Invalid fixed_time, falling back to interval",
			"fixed_time", cfg.Polling.FixedTime)
	}

	return time.Duration(cfg.Polling.IntervalSeconds) * time.Second
}
