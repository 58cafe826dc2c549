package tracker

import (
	"context"
	"time"

	"github.com/dukerupert/simplechores/internal/config"
	"github.com/dukerupert/simplechores/internal/model"
	"github.com/dukerupert/simplechores/internal/websocket"
)

// PrivilegeState reads one privilege, ending an expired timer first.
func (t *Tracker) PrivilegeState(ctx context.Context, assignee, slug string) (model.PrivilegeStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key, err := t.privilegeKey(assignee, slug)
	if err != nil {
		return model.PrivilegeStatus{}, err
	}
	before := t.stateOf(key)
	st, err := t.privileges.State(ctx, key)
	if err != nil {
		return st, err
	}
	if st.State != before {
		t.notifyPrivileges([]model.Key{key})
	}
	return st, nil
}

func (t *Tracker) stateOf(key model.Key) model.PrivilegeState {
	if p, ok := t.reg.Privilege(key); ok {
		return p.State
	}
	return ""
}

func (t *Tracker) EnablePrivilege(ctx context.Context, assignee, slug string) (model.PrivilegeStatus, error) {
	return t.setPrivilege(ctx, assignee, slug, true)
}

func (t *Tracker) DisablePrivilege(ctx context.Context, assignee, slug string) (model.PrivilegeStatus, error) {
	return t.setPrivilege(ctx, assignee, slug, false)
}

func (t *Tracker) setPrivilege(ctx context.Context, assignee, slug string, enabled bool) (model.PrivilegeStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key, err := t.privilegeKey(assignee, slug)
	if err != nil {
		return model.PrivilegeStatus{}, err
	}
	if enabled {
		err = t.privileges.Enable(ctx, key)
	} else {
		err = t.privileges.Disable(ctx, key)
	}
	if err != nil {
		return model.PrivilegeStatus{}, err
	}
	t.notifyPrivileges([]model.Key{key})
	return t.privileges.State(ctx, key)
}

// TemporarilyDisablePrivilege disables the privilege for d.
func (t *Tracker) TemporarilyDisablePrivilege(ctx context.Context, assignee, slug string, d time.Duration) (model.PrivilegeStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key, err := t.privilegeKey(assignee, slug)
	if err != nil {
		return model.PrivilegeStatus{}, err
	}
	if _, err := t.privileges.TemporarilyDisable(ctx, key, d); err != nil {
		return model.PrivilegeStatus{}, err
	}
	t.notifyPrivileges([]model.Key{key})
	return t.privileges.State(ctx, key)
}

// AdjustTemporaryDisable shifts a running timer by delta.
func (t *Tracker) AdjustTemporaryDisable(ctx context.Context, assignee, slug string, delta time.Duration) (model.PrivilegeStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key, err := t.privilegeKey(assignee, slug)
	if err != nil {
		return model.PrivilegeStatus{}, err
	}
	st, err := t.privileges.AdjustTemporaryDisable(ctx, key, delta)
	if err != nil {
		return st, err
	}
	t.notifyPrivileges([]model.Key{key})
	return st, nil
}

func (t *Tracker) CreatePrivilege(ctx context.Context, def model.PrivilegeDefinition) (model.PrivilegeDefinition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap, err := t.config.CreatePrivilege(def)
	if err != nil {
		return model.PrivilegeDefinition{}, err
	}
	if err := t.applyLocked(ctx, snap); err != nil {
		return model.PrivilegeDefinition{}, err
	}
	created, _ := snap.Privilege(model.NormalizeSlug(def.Slug))
	t.notify(websocket.EntityPrivilege, "created", "", created.Slug, nil)
	return created, nil
}

func (t *Tracker) UpdatePrivilege(ctx context.Context, slug string, upd config.PrivilegeUpdate) (model.PrivilegeDefinition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap, err := t.config.UpdatePrivilege(slug, upd)
	if err != nil {
		return model.PrivilegeDefinition{}, err
	}
	if err := t.applyLocked(ctx, snap); err != nil {
		return model.PrivilegeDefinition{}, err
	}
	updated, _ := snap.Privilege(model.NormalizeSlug(slug))
	t.notify(websocket.EntityPrivilege, "updated", "", updated.Slug, nil)
	return updated, nil
}

func (t *Tracker) DeletePrivilege(ctx context.Context, slug string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap, err := t.config.DeletePrivilege(slug)
	if err != nil {
		return err
	}
	if err := t.applyLocked(ctx, snap); err != nil {
		return err
	}
	t.notify(websocket.EntityPrivilege, "deleted", "", model.NormalizeSlug(slug), nil)
	return nil
}
