package config

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/simplechores/internal/model"
)

const DefaultPollInterval = 5 * time.Second

// Callback receives every newly detected snapshot.
type Callback func(snap *model.Snapshot) error

// Watcher polls the Store's source and reloads it when the modification
// marker moves.
type Watcher struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	callbacks []Callback
	cancel    context.CancelFunc
	done      chan struct{}
	rejected  time.Time
}

func NewWatcher(store *Store, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

func (w *Watcher) RegisterCallback(cb Callback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start begins polling. Calling it while already running does nothing.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	done := w.done
	w.mu.Unlock()

	w.logger.Info("config watcher started", "interval", w.interval)

	go func() {
		defer close(done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.Check()
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight check to finish. It is
// safe to call when not running.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	w.cancel = nil
	w.done = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
		w.logger.Info("config watcher stopped")
	}
}

// Running reports whether the poll loop is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

// Check runs one poll iteration. It reports whether callbacks were invoked.
func (w *Watcher) Check() bool {
	mod, changed, err := w.store.Changed()
	if err != nil {
		w.logger.Error("check config source", "error", err)
		return false
	}
	if !changed {
		return false
	}

	w.mu.Lock()
	seen := !w.rejected.IsZero() && w.rejected.Equal(mod)
	w.mu.Unlock()
	if seen {
		return false
	}

	prev := w.store.Current()
	snap, err := w.store.Load()
	if err != nil {
		w.mu.Lock()
		w.rejected = mod
		w.mu.Unlock()
		w.logger.Error("reload config, keeping previous", "error", err)
		return false
	}

	if prev.Equal(snap) {
		w.logger.Debug("config touched without changes")
		return false
	}

	w.logger.Info("config changed", "chores", len(snap.Chores), "privileges", len(snap.Privileges))
	w.dispatch(snap)
	return true
}

func (w *Watcher) dispatch(snap *model.Snapshot) {
	w.mu.Lock()
	callbacks := make([]Callback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	for i, cb := range callbacks {
		if err := invoke(cb, snap); err != nil {
			w.logger.Error("config callback failed", "callback", i, "error", err)
		}
	}
}

func invoke(cb Callback, snap *model.Snapshot) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panic: %v", r)
		}
	}()
	return cb(snap)
}
