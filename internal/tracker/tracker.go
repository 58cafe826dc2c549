// Package tracker ties the configuration, the live registry, the points
// ledger and the privilege engine together behind one lock. Every command
// and every watcher-driven reload runs through it.
package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dukerupert/simplechores/internal/config"
	"github.com/dukerupert/simplechores/internal/model"
	"github.com/dukerupert/simplechores/internal/points"
	"github.com/dukerupert/simplechores/internal/privilege"
	"github.com/dukerupert/simplechores/internal/registry"
	"github.com/dukerupert/simplechores/internal/rollover"
	"github.com/dukerupert/simplechores/internal/store"
	"github.com/dukerupert/simplechores/internal/websocket"
)

// Broadcaster receives change notifications. *websocket.Hub implements it.
type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(websocket.Message) {}

type options struct {
	now          func() time.Time
	pollInterval time.Duration
}

type Option func(*options)

// WithClock replaces time.Now for privilege timers.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithPollInterval sets how often the config watcher polls.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

type Tracker struct {
	mu sync.Mutex

	config     *config.Store
	watcher    *config.Watcher
	reg        *registry.Registry
	ledger     *points.Ledger
	privileges *privilege.Engine
	rollover   *rollover.Processor
	states     *store.ChoreStateStore
	events     *store.LedgerStore
	hub        Broadcaster
	logger     *slog.Logger
}

// New wires the tracker over an opened database and a config store. hub may
// be nil.
func New(cfg *config.Store, db *sql.DB, hub Broadcaster, logger *slog.Logger, opts ...Option) *Tracker {
	o := options{now: time.Now, pollInterval: config.DefaultPollInterval}
	for _, opt := range opts {
		opt(&o)
	}
	if hub == nil {
		hub = nopBroadcaster{}
	}

	reg := registry.New()
	states := store.NewChoreStateStore(db)
	events := store.NewLedgerStore(db)
	ledger := points.NewLedger(events, reg, logger.With("component", "points"))
	engine := privilege.NewEngine(reg, store.NewPrivilegeStateStore(db), logger.With("component", "privilege"), privilege.WithClock(o.now))

	t := &Tracker{
		config:     cfg,
		watcher:    config.NewWatcher(cfg, o.pollInterval, logger.With("component", "watcher")),
		reg:        reg,
		ledger:     ledger,
		privileges: engine,
		rollover:   rollover.NewProcessor(reg, ledger, states, engine, logger.With("component", "rollover")),
		states:     states,
		events:     events,
		hub:        hub,
		logger:     logger,
	}
	t.watcher.RegisterCallback(t.onConfigChange)
	return t
}

// Start loads the configuration and persisted state, reconciles, and starts
// watching the configuration for external edits.
func (t *Tracker) Start(ctx context.Context) error {
	snap, err := t.config.Load()
	if err != nil {
		return err
	}

	t.mu.Lock()
	if err := t.ledger.Load(ctx); err != nil {
		t.mu.Unlock()
		return err
	}
	err = t.applyLocked(ctx, snap)
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("apply config: %w", err)
	}

	t.watcher.Start(ctx)
	return nil
}

// Stop stops the config watcher and waits for an in-flight reload.
func (t *Tracker) Stop() {
	t.watcher.Stop()
}

// CheckConfig runs one watcher poll immediately.
func (t *Tracker) CheckConfig() bool {
	return t.watcher.Check()
}

func (t *Tracker) onConfigChange(snap *model.Snapshot) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.applyLocked(context.Background(), snap)
}

// applyLocked reconciles the registry against snap, restores persisted
// state for new entities, drops the state of removed ones and re-derives the
// privileges the change can affect.
func (t *Tracker) applyLocked(ctx context.Context, snap *model.Snapshot) error {
	prevDefs := make(map[model.Key]model.PrivilegeDefinition)
	for _, p := range t.reg.Privileges() {
		prevDefs[p.Key] = p.Def
	}

	ch := t.reg.ApplySnapshot(snap)
	var errs []error

	affected := make(map[string]bool)
	if len(ch.Chores.Added) > 0 {
		records, err := t.states.LoadChoreStates(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		byKey := make(map[model.Key]model.ChoreRecord, len(records))
		for _, r := range records {
			byKey[r.Key] = r
		}
		for _, c := range ch.Chores.Added {
			r, ok := byKey[c.Key]
			if !ok || !t.reg.RestoreChore(c.Key, r.State, r.MissAccrued) {
				affected[c.Key.Assignee] = true
			}
		}
	}
	for _, c := range ch.Chores.Removed {
		affected[c.Key.Assignee] = true
		if err := t.states.DeleteChoreState(ctx, c.Key); err != nil {
			errs = append(errs, err)
		}
	}

	fresh, err := t.privileges.Restore(ctx, ch.Privileges.Added)
	if err != nil {
		errs = append(errs, err)
	}
	if err := t.privileges.Forget(ctx, ch.Privileges.Removed); err != nil {
		errs = append(errs, err)
	}

	var keys []model.Key
	for _, p := range fresh {
		keys = append(keys, p.Key)
	}
	for _, p := range ch.Privileges.Updated {
		if prev, ok := prevDefs[p.Key]; ok && !prev.Equal(p.Def) {
			keys = append(keys, p.Key)
		}
	}
	for a := range affected {
		for _, p := range t.reg.PrivilegesFor(a) {
			keys = append(keys, p.Key)
		}
	}
	slices.SortFunc(keys, compareKeys)
	keys = slices.Compact(keys)

	changed, err := t.privileges.EvaluateKeys(ctx, keys)
	if err != nil {
		errs = append(errs, err)
	}
	t.notifyPrivileges(changed)

	t.logger.Info("config applied",
		"chores_added", len(ch.Chores.Added),
		"chores_removed", len(ch.Chores.Removed),
		"privileges_added", len(ch.Privileges.Added),
		"privileges_removed", len(ch.Privileges.Removed),
	)
	t.notify(websocket.EntityConfig, "applied", "", "", map[string]any{
		"chores":     len(snap.Chores),
		"privileges": len(snap.Privileges),
	})
	return errors.Join(errs...)
}

func compareKeys(a, b model.Key) int {
	if a.Assignee != b.Assignee {
		if a.Assignee < b.Assignee {
			return -1
		}
		return 1
	}
	switch {
	case a.Slug < b.Slug:
		return -1
	case a.Slug > b.Slug:
		return 1
	}
	return 0
}

func (t *Tracker) notify(entity, action, assignee, slug string, extra map[string]any) {
	t.hub.Broadcast(websocket.NewMessage(entity, action, assignee, slug, extra))
}

func (t *Tracker) notifyPrivileges(keys []model.Key) {
	for _, k := range keys {
		p, ok := t.reg.Privilege(k)
		if !ok {
			continue
		}
		t.notify(websocket.EntityPrivilege, "changed", k.Assignee, k.Slug, map[string]any{"state": p.State})
	}
}

// Config returns the active configuration snapshot.
func (t *Tracker) Config() *model.Snapshot {
	return t.config.Current()
}

// choreKey resolves a chore command target, naming the slug alone when it
// does not exist at all.
func (t *Tracker) choreKey(assignee, slug string) (model.Key, error) {
	key := model.Key{Assignee: assignee, Slug: model.NormalizeSlug(slug)}
	if _, ok := t.reg.Chore(key); ok {
		return key, nil
	}
	if _, ok := t.config.Current().Chore(key.Slug); !ok {
		return key, &model.NotFoundError{Kind: model.KindChore, Slug: key.Slug}
	}
	return key, &model.NotFoundError{Kind: model.KindChore, Assignee: assignee, Slug: key.Slug}
}

func (t *Tracker) privilegeKey(assignee, slug string) (model.Key, error) {
	key := model.Key{Assignee: assignee, Slug: model.NormalizeSlug(slug)}
	if _, ok := t.reg.Privilege(key); ok {
		return key, nil
	}
	if _, ok := t.config.Current().Privilege(key.Slug); !ok {
		return key, &model.NotFoundError{Kind: model.KindPrivilege, Slug: key.Slug}
	}
	return key, &model.NotFoundError{Kind: model.KindPrivilege, Assignee: assignee, Slug: key.Slug}
}

// knownAssignee accepts assignees with entities or a ledger balance.
func (t *Tracker) knownAssignee(assignee string) error {
	if assignee == "" {
		return &model.ValidationError{Field: "assignee", Reason: "assignee is required"}
	}
	if t.reg.HasAssignee(assignee) || slices.Contains(t.ledger.Assignees(), assignee) {
		return nil
	}
	return &model.NotFoundError{Kind: model.KindAssignee, Assignee: assignee}
}
