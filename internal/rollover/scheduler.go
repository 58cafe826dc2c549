package rollover

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const lastRunKey = "rollover_last_run"

// Runner starts a new day for everyone. The tracker implements it.
type Runner interface {
	StartNewDay(ctx context.Context, assignee string) (Report, error)
}

// Settings remembers the last day the scheduler ran.
type Settings interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// ParseTimeOfDay reads "HH:MM" as an offset from midnight.
func ParseTimeOfDay(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: want HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Scheduler calls StartNewDay once per calendar day after a fixed time of
// day. The last run date is persisted, so a restart never runs the same day
// twice.
type Scheduler struct {
	runner   Runner
	settings Settings
	at       time.Duration
	interval time.Duration
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type SchedulerOption func(*Scheduler)

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

func WithLocation(loc *time.Location) SchedulerOption {
	return func(s *Scheduler) { s.loc = loc }
}

func WithCheckInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.interval = d }
}

func NewScheduler(runner Runner, settings Settings, at time.Duration, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		runner:   runner,
		settings: settings,
		at:       at,
		interval: time.Minute,
		loc:      time.Local,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the check loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.logger.Info("rollover scheduler started", "at", s.at, "interval", s.interval)

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Tick(ctx); err != nil {
					s.logger.Error("scheduled rollover", "error", err)
				}
			}
		}
	}()
}

// Stop cancels the loop and waits for a running tick.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Tick runs the rollover when today's time has passed and today has not run
// yet. With no recorded run it only records today, so a first start in the
// middle of the day does not roll anything over.
func (s *Scheduler) Tick(ctx context.Context) (bool, error) {
	now := s.now().In(s.loc)
	today := now.Format(time.DateOnly)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	if now.Before(midnight.Add(s.at)) {
		return false, nil
	}

	last, ok, err := s.settings.Get(ctx, lastRunKey)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, s.settings.Set(ctx, lastRunKey, today)
	}
	// DateOnly strings compare in calendar order.
	if last >= today {
		return false, nil
	}

	rep, err := s.runner.StartNewDay(ctx, "")
	if err != nil {
		return false, fmt.Errorf("start new day: %w", err)
	}
	if err := s.settings.Set(ctx, lastRunKey, today); err != nil {
		return true, err
	}
	s.logger.Info("scheduled rollover ran", "day", today, "changed", len(rep.Changed))
	return true, nil
}
