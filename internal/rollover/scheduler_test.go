package rollover

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	calls int
	err   error
}

func (r *countingRunner) StartNewDay(ctx context.Context, assignee string) (Report, error) {
	r.calls++
	return Report{}, r.err
}

type memSettings map[string]string

func (m memSettings) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m memSettings) Set(ctx context.Context, key, value string) error {
	m[key] = value
	return nil
}

func newTestScheduler(runner Runner, settings Settings, at time.Duration, now *time.Time) *Scheduler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewScheduler(runner, settings, at, logger,
		WithLocation(time.UTC),
		WithSchedulerClock(func() time.Time { return *now }),
	)
}

func TestParseTimeOfDay(t *testing.T) {
	d, err := ParseTimeOfDay("06:30")
	require.NoError(t, err)
	assert.Equal(t, 6*time.Hour+30*time.Minute, d)

	_, err = ParseTimeOfDay("6.30am")
	assert.Error(t, err)
}

func TestSchedulerFirstTickOnlyRecords(t *testing.T) {
	runner := &countingRunner{}
	settings := memSettings{}
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	s := newTestScheduler(runner, settings, 0, &now)

	ran, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, 0, runner.calls)
	assert.Equal(t, "2026-03-14", settings[lastRunKey])
}

func TestSchedulerRunsOncePerDay(t *testing.T) {
	runner := &countingRunner{}
	settings := memSettings{lastRunKey: "2026-03-13"}
	now := time.Date(2026, 3, 14, 5, 0, 0, 0, time.UTC)
	s := newTestScheduler(runner, settings, 6*time.Hour, &now)
	ctx := context.Background()

	ran, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, ran, "before the configured time")

	now = now.Add(time.Hour)
	ran, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, "2026-03-14", settings[lastRunKey])

	now = now.Add(3 * time.Hour)
	ran, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, 1, runner.calls)

	now = time.Date(2026, 3, 15, 6, 1, 0, 0, time.UTC)
	ran, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 2, runner.calls)
}

func TestSchedulerFailedRunRetries(t *testing.T) {
	runner := &countingRunner{err: errors.New("disk full")}
	settings := memSettings{lastRunKey: "2026-03-13"}
	now := time.Date(2026, 3, 14, 1, 0, 0, 0, time.UTC)
	s := newTestScheduler(runner, settings, 0, &now)

	_, err := s.Tick(context.Background())
	require.Error(t, err)
	assert.Equal(t, "2026-03-13", settings[lastRunKey])

	runner.err = nil
	ran, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 2, runner.calls)
}

func TestSchedulerStartStop(t *testing.T) {
	runner := &countingRunner{}
	now := time.Date(2026, 3, 14, 1, 0, 0, 0, time.UTC)
	s := newTestScheduler(runner, memSettings{}, 0, &now)

	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop()
	s.Stop()
}

type signalRunner struct{ ran chan struct{} }

func (r signalRunner) StartNewDay(ctx context.Context, assignee string) (Report, error) {
	select {
	case r.ran <- struct{}{}:
	default:
	}
	return Report{}, nil
}

func TestSchedulerLoopRuns(t *testing.T) {
	runner := signalRunner{ran: make(chan struct{}, 1)}
	settings := memSettings{lastRunKey: "2026-03-13"}
	now := time.Date(2026, 3, 14, 1, 0, 0, 0, time.UTC)
	s := NewScheduler(runner, settings, 0, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithLocation(time.UTC),
		WithSchedulerClock(func() time.Time { return now }),
		WithCheckInterval(5*time.Millisecond),
	)

	s.Start(context.Background())
	defer s.Stop()

	select {
	case <-runner.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never ran")
	}
	s.Stop()
	assert.Equal(t, "2026-03-14", settings[lastRunKey])
}
