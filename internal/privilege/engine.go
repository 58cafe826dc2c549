package privilege

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/simplechores/internal/model"
	"github.com/dukerupert/simplechores/internal/registry"
)

// Store persists privilege state across restarts.
type Store interface {
	LoadPrivilegeStates(ctx context.Context) ([]model.PrivilegeRecord, error)
	SavePrivilegeState(ctx context.Context, r model.PrivilegeRecord) error
	DeletePrivilegeState(ctx context.Context, key model.Key) error
}

// Engine is the only writer of privilege state and timers. It is not safe
// for concurrent use; the caller serializes access.
type Engine struct {
	reg    *registry.Registry
	chores ChoreSource
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(reg *registry.Registry, store Store, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		reg:    reg,
		chores: reg,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) lookup(key model.Key) (*registry.Privilege, error) {
	p, ok := e.reg.Privilege(key)
	if !ok {
		return nil, &model.NotFoundError{Kind: model.KindPrivilege, Assignee: key.Assignee, Slug: key.Slug}
	}
	return p, nil
}

func (e *Engine) input(p *registry.Privilege) Input {
	return Input{
		Behavior:       p.Def.Behavior,
		State:          p.State,
		DisableUntil:   p.DisableUntil,
		LinkedComplete: LinkedComplete(e.chores, p.Key.Assignee, p.Def.LinkedChores),
	}
}

// apply persists the new state first and only then updates the entity.
func (e *Engine) apply(ctx context.Context, p *registry.Privilege, state model.PrivilegeState, until *time.Time) error {
	rec := model.PrivilegeRecord{Key: p.Key, State: state, DisableUntil: until}
	if err := e.store.SavePrivilegeState(ctx, rec); err != nil {
		return fmt.Errorf("persist privilege %s: %w", p.Key, err)
	}
	p.State = state
	p.DisableUntil = until
	return nil
}

func (e *Engine) recompute(ctx context.Context, p *registry.Privilege, force bool) (bool, error) {
	d := Recompute(e.input(p), e.now(), force)
	if !d.Changed {
		return false, nil
	}
	if err := e.apply(ctx, p, d.State, d.DisableUntil); err != nil {
		return false, err
	}
	e.logger.Debug("privilege recomputed", "key", p.Key.String(), "state", d.State)
	return true, nil
}

func status(p *registry.Privilege) model.PrivilegeStatus {
	st := model.PrivilegeStatus{
		Slug:     p.Def.Slug,
		Name:     p.Def.Name,
		Icon:     p.Def.Icon,
		Behavior: p.Def.Behavior,
		State:    p.State,
	}
	if p.DisableUntil != nil {
		until := *p.DisableUntil
		st.DisableUntil = &until
	}
	return st
}

// State reads a privilege, resolving an expired temporary disable first.
func (e *Engine) State(ctx context.Context, key model.Key) (model.PrivilegeStatus, error) {
	p, err := e.lookup(key)
	if err != nil {
		return model.PrivilegeStatus{}, err
	}
	if _, err := e.recompute(ctx, p, false); err != nil {
		return model.PrivilegeStatus{}, err
	}
	return status(p), nil
}

// Statuses resolves and returns every privilege of assignee.
func (e *Engine) Statuses(ctx context.Context, assignee string) ([]model.PrivilegeStatus, error) {
	var out []model.PrivilegeStatus
	for _, p := range e.reg.PrivilegesFor(assignee) {
		if _, err := e.recompute(ctx, p, false); err != nil {
			return nil, err
		}
		out = append(out, status(p))
	}
	return out, nil
}

// Enable sets the privilege enabled regardless of behavior and clears any
// timer.
func (e *Engine) Enable(ctx context.Context, key model.Key) error {
	return e.set(ctx, key, model.PrivilegeEnabled)
}

// Disable sets the privilege disabled regardless of behavior and clears any
// timer.
func (e *Engine) Disable(ctx context.Context, key model.Key) error {
	return e.set(ctx, key, model.PrivilegeDisabled)
}

func (e *Engine) set(ctx context.Context, key model.Key, state model.PrivilegeState) error {
	p, err := e.lookup(key)
	if err != nil {
		return err
	}
	if _, err := e.recompute(ctx, p, false); err != nil {
		return err
	}
	if p.State == state && p.DisableUntil == nil {
		return nil
	}
	if err := e.apply(ctx, p, state, nil); err != nil {
		return err
	}
	e.logger.Info("privilege set", "key", key.String(), "state", state)
	return nil
}

// TemporarilyDisable disables the privilege until now+d.
func (e *Engine) TemporarilyDisable(ctx context.Context, key model.Key, d time.Duration) (time.Time, error) {
	if d <= 0 {
		return time.Time{}, &model.ValidationError{Field: "duration", Reason: fmt.Sprintf("duration must be positive, got %s", d)}
	}
	p, err := e.lookup(key)
	if err != nil {
		return time.Time{}, err
	}
	until := e.now().Add(d)
	if err := e.apply(ctx, p, model.PrivilegeTemporarilyDisabled, &until); err != nil {
		return time.Time{}, err
	}
	e.logger.Info("privilege temporarily disabled", "key", key.String(), "until", until)
	return until, nil
}

// AdjustTemporaryDisable shifts a running timer by delta. A deadline that
// lands in the past ends the disable immediately. The returned status
// reflects the outcome.
func (e *Engine) AdjustTemporaryDisable(ctx context.Context, key model.Key, delta time.Duration) (model.PrivilegeStatus, error) {
	p, err := e.lookup(key)
	if err != nil {
		return model.PrivilegeStatus{}, err
	}
	if _, err := e.recompute(ctx, p, false); err != nil {
		return model.PrivilegeStatus{}, err
	}
	if p.State != model.PrivilegeTemporarilyDisabled || p.DisableUntil == nil {
		return model.PrivilegeStatus{}, &model.ValidationError{
			Field:  "state",
			Reason: fmt.Sprintf("privilege %q for assignee %q is not temporarily disabled", key.Slug, key.Assignee),
		}
	}

	until := p.DisableUntil.Add(delta)
	in := e.input(p)
	in.DisableUntil = &until
	d := Recompute(in, e.now(), false)
	if err := e.apply(ctx, p, d.State, d.DisableUntil); err != nil {
		return model.PrivilegeStatus{}, err
	}
	e.logger.Info("privilege timer adjusted", "key", key.String(), "delta", delta, "state", p.State)
	return status(p), nil
}

// Evaluate derives every automatic privilege of assignee from current chore
// state. It returns the keys whose state changed.
func (e *Engine) Evaluate(ctx context.Context, assignee string) ([]model.Key, error) {
	return e.evaluate(ctx, e.reg.PrivilegesFor(assignee))
}

// EvaluateAll runs Evaluate for every privilege.
func (e *Engine) EvaluateAll(ctx context.Context) ([]model.Key, error) {
	return e.evaluate(ctx, e.reg.Privileges())
}

// EvaluateKeys derives only the given privileges.
func (e *Engine) EvaluateKeys(ctx context.Context, keys []model.Key) ([]model.Key, error) {
	var ps []*registry.Privilege
	for _, k := range keys {
		if p, ok := e.reg.Privilege(k); ok {
			ps = append(ps, p)
		}
	}
	return e.evaluate(ctx, ps)
}

func (e *Engine) evaluate(ctx context.Context, ps []*registry.Privilege) ([]model.Key, error) {
	var changed []model.Key
	for _, p := range ps {
		ok, err := e.recompute(ctx, p, true)
		if err != nil {
			return changed, err
		}
		if ok {
			changed = append(changed, p.Key)
		}
	}
	return changed, nil
}

// Restore applies persisted state to entities and returns the entities that
// had none.
func (e *Engine) Restore(ctx context.Context, entities []*registry.Privilege) ([]*registry.Privilege, error) {
	if len(entities) == 0 {
		return nil, nil
	}
	records, err := e.store.LoadPrivilegeStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore privileges: %w", err)
	}
	byKey := make(map[model.Key]model.PrivilegeRecord, len(records))
	for _, r := range records {
		byKey[r.Key] = r
	}

	var fresh []*registry.Privilege
	for _, p := range entities {
		r, ok := byKey[p.Key]
		if !ok || !r.State.Valid() {
			fresh = append(fresh, p)
			continue
		}
		p.State = r.State
		p.DisableUntil = nil
		if r.State == model.PrivilegeTemporarilyDisabled && r.DisableUntil != nil {
			until := *r.DisableUntil
			p.DisableUntil = &until
		}
	}
	return fresh, nil
}

// Forget deletes the persisted state of removed entities.
func (e *Engine) Forget(ctx context.Context, entities []*registry.Privilege) error {
	for _, p := range entities {
		if err := e.store.DeletePrivilegeState(ctx, p.Key); err != nil {
			return fmt.Errorf("forget privilege %s: %w", p.Key, err)
		}
	}
	return nil
}
