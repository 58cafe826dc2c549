package tracker

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/dukerupert/simplechores/internal/config"
	"github.com/dukerupert/simplechores/internal/model"
	"github.com/dukerupert/simplechores/internal/rollover"
	"github.com/dukerupert/simplechores/internal/websocket"
)

// MarkResult describes one chore transition.
type MarkResult struct {
	Key         model.Key        `json:"key"`
	From        model.ChoreState `json:"from"`
	To          model.ChoreState `json:"to"`
	PointsDelta int              `json:"points_delta"`
	Total       int              `json:"total"`
}

// MarkChore moves one assignee's chore to state, applying the completion
// edge to the ledger and re-deriving the assignee's privileges.
func (t *Tracker) MarkChore(ctx context.Context, assignee, slug string, state model.ChoreState) (MarkResult, error) {
	if !state.Valid() {
		return MarkResult{}, &model.ValidationError{Field: "state", Reason: fmt.Sprintf("unknown chore state %q", state)}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	key, err := t.choreKey(assignee, slug)
	if err != nil {
		return MarkResult{}, err
	}
	res, err := t.markLocked(ctx, key, state)
	if err != nil {
		return res, err
	}
	c, _ := t.reg.Chore(key)
	if err := t.states.SaveChoreState(ctx, model.ChoreRecord{Key: key, State: c.State, MissAccrued: c.MissAccrued}); err != nil {
		return res, fmt.Errorf("persist chore state: %w", err)
	}
	if err := t.evaluateLocked(ctx, assignee); err != nil {
		return res, err
	}
	return res, nil
}

// MarkChoreAll marks the chore for every assignee. Failures are reported
// per assignee in a *model.BatchError; the other assignees still move.
func (t *Tracker) MarkChoreAll(ctx context.Context, slug string, state model.ChoreState) ([]MarkResult, error) {
	if !state.Valid() {
		return nil, &model.ValidationError{Field: "state", Reason: fmt.Sprintf("unknown chore state %q", state)}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	slug = model.NormalizeSlug(slug)
	assignees := t.reg.ChoreAssignees(slug)
	if len(assignees) == 0 {
		return nil, &model.NotFoundError{Kind: model.KindChore, Slug: slug}
	}

	failures := make(map[string]error)
	var results []MarkResult
	var records []model.ChoreRecord
	for _, a := range assignees {
		key := model.Key{Assignee: a, Slug: slug}
		res, err := t.markLocked(ctx, key, state)
		if err != nil {
			failures[a] = err
			continue
		}
		results = append(results, res)
		c, _ := t.reg.Chore(key)
		records = append(records, model.ChoreRecord{Key: key, State: c.State, MissAccrued: c.MissAccrued})
	}

	if err := t.states.SaveChoreStates(ctx, records); err != nil {
		return results, fmt.Errorf("persist chore states: %w", err)
	}
	for _, r := range results {
		if err := t.evaluateLocked(ctx, r.Key.Assignee); err != nil {
			failures[r.Key.Assignee] = err
		}
	}
	if len(failures) > 0 {
		return results, &model.BatchError{Failures: failures}
	}
	return results, nil
}

// markLocked applies the ledger edge first so a failed write leaves the
// chore where it was.
func (t *Tracker) markLocked(ctx context.Context, key model.Key, state model.ChoreState) (MarkResult, error) {
	c, ok := t.reg.Chore(key)
	if !ok {
		return MarkResult{}, &model.NotFoundError{Kind: model.KindChore, Assignee: key.Assignee, Slug: key.Slug}
	}
	res := MarkResult{Key: key, From: c.State, To: state}

	delta, err := t.ledger.RecordTransition(ctx, key.Assignee, c.Def.Points, c.State, state)
	if err != nil {
		return res, fmt.Errorf("record points: %w", err)
	}
	if _, err := t.reg.SetChoreState(key, state); err != nil {
		return res, err
	}
	res.PointsDelta = delta
	res.Total = t.ledger.Balance(key.Assignee).Total

	t.logger.Info("chore marked", "assignee", key.Assignee, "slug", key.Slug, "from", res.From, "to", state, "delta", delta)
	t.notify(websocket.EntityChore, "marked", key.Assignee, key.Slug, map[string]any{
		"from":  res.From,
		"state": state,
	})
	if delta != 0 {
		t.notify(websocket.EntityPoints, "changed", key.Assignee, "", map[string]any{"total": res.Total})
	}
	return res, nil
}

func (t *Tracker) evaluateLocked(ctx context.Context, assignee string) error {
	changed, err := t.privileges.Evaluate(ctx, assignee)
	t.notifyPrivileges(changed)
	if err != nil {
		return fmt.Errorf("evaluate privileges: %w", err)
	}
	return nil
}

// CreateChore saves a new chore and reconciles immediately.
func (t *Tracker) CreateChore(ctx context.Context, def model.ChoreDefinition) (model.ChoreDefinition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap, err := t.config.CreateChore(def)
	if err != nil {
		return model.ChoreDefinition{}, err
	}
	if err := t.applyLocked(ctx, snap); err != nil {
		return model.ChoreDefinition{}, err
	}
	created, _ := snap.Chore(model.NormalizeSlug(def.Slug))
	t.notify(websocket.EntityChore, "created", "", created.Slug, nil)
	return created, nil
}

func (t *Tracker) UpdateChore(ctx context.Context, slug string, upd config.ChoreUpdate) (model.ChoreDefinition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap, err := t.config.UpdateChore(slug, upd)
	if err != nil {
		return model.ChoreDefinition{}, err
	}
	if err := t.applyLocked(ctx, snap); err != nil {
		return model.ChoreDefinition{}, err
	}
	updated, _ := snap.Chore(model.NormalizeSlug(slug))
	t.notify(websocket.EntityChore, "updated", "", updated.Slug, nil)
	return updated, nil
}

func (t *Tracker) DeleteChore(ctx context.Context, slug string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap, err := t.config.DeleteChore(slug)
	if err != nil {
		return err
	}
	if err := t.applyLocked(ctx, snap); err != nil {
		return err
	}
	t.notify(websocket.EntityChore, "deleted", "", model.NormalizeSlug(slug), nil)
	return nil
}

// ResetCompleted moves completed chores to not requested without moving
// points. An empty assignee covers everyone.
func (t *Tracker) ResetCompleted(ctx context.Context, assignee string) (rollover.Report, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rep, err := t.rollover.ResetCompleted(ctx, assignee)
	t.notifyReport("reset", assignee, rep)
	return rep, err
}

// StartNewDay runs the daily rollover. An empty assignee covers everyone.
func (t *Tracker) StartNewDay(ctx context.Context, assignee string) (rollover.Report, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rep, err := t.rollover.StartNewDay(ctx, assignee)
	t.notifyReport("rollover", assignee, rep)
	return rep, err
}

func (t *Tracker) notifyReport(action, assignee string, rep rollover.Report) {
	for _, k := range rep.Changed {
		st, _ := t.reg.ChoreState(k.Assignee, k.Slug)
		t.notify(websocket.EntityChore, "marked", k.Assignee, k.Slug, map[string]any{"state": st})
	}
	for _, a := range slices.Sorted(maps.Keys(rep.Missed)) {
		t.notify(websocket.EntityPoints, "changed", a, "", map[string]any{"missed": t.ledger.Balance(a).Missed})
	}
	t.notifyPrivileges(rep.Privileges)
	t.notify(websocket.EntitySummary, action, assignee, "", map[string]any{"changed": len(rep.Changed)})
}
