package tracker

import (
	"context"
	"slices"

	"github.com/dukerupert/simplechores/internal/model"
	"github.com/dukerupert/simplechores/internal/websocket"
)

// Summary builds the dashboard view of one assignee. Chore lists hold chore
// names in configuration order.
func (t *Tracker) Summary(ctx context.Context, assignee string) (model.Summary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.knownAssignee(assignee); err != nil {
		return model.Summary{}, err
	}
	return t.summaryLocked(ctx, assignee)
}

// Summaries returns one summary per known assignee, sorted by name.
func (t *Tracker) Summaries(ctx context.Context) ([]model.Summary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	assignees := t.reg.Assignees()
	for _, a := range t.ledger.Assignees() {
		if !slices.Contains(assignees, a) {
			assignees = append(assignees, a)
		}
	}
	slices.Sort(assignees)

	out := make([]model.Summary, 0, len(assignees))
	for _, a := range assignees {
		s, err := t.summaryLocked(ctx, a)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// RefreshSummary rebuilds the summary and pushes it to listeners.
func (t *Tracker) RefreshSummary(ctx context.Context, assignee string) (model.Summary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.knownAssignee(assignee); err != nil {
		return model.Summary{}, err
	}
	s, err := t.summaryLocked(ctx, assignee)
	if err != nil {
		return s, err
	}
	t.notify(websocket.EntitySummary, "refreshed", assignee, "", map[string]any{
		"pending_count": s.PendingCount,
		"total":         s.Total,
		"possible":      s.Possible,
	})
	return s, nil
}

func (t *Tracker) summaryLocked(ctx context.Context, assignee string) (model.Summary, error) {
	b := t.ledger.Balance(assignee)
	s := model.Summary{
		Assignee:     assignee,
		Pending:      []string{},
		Complete:     []string{},
		NotRequested: []string{},
		All:          []string{},
		Total:        b.Total,
		Earned:       b.Earned,
		Missed:       b.Missed,
		Possible:     t.ledger.PointsPossible(assignee),
	}
	for _, c := range t.reg.ChoresFor(assignee) {
		s.All = append(s.All, c.Def.Name)
		switch c.State {
		case model.ChorePending:
			s.Pending = append(s.Pending, c.Def.Name)
		case model.ChoreComplete:
			s.Complete = append(s.Complete, c.Def.Name)
		default:
			s.NotRequested = append(s.NotRequested, c.Def.Name)
		}
	}
	s.PendingCount = len(s.Pending)
	s.TotalChores = len(s.All)

	before := make(map[model.Key]model.PrivilegeState)
	for _, p := range t.reg.PrivilegesFor(assignee) {
		before[p.Key] = p.State
	}
	statuses, err := t.privileges.Statuses(ctx, assignee)
	if err != nil {
		return s, err
	}
	var expired []model.Key
	for _, p := range t.reg.PrivilegesFor(assignee) {
		if before[p.Key] != p.State {
			expired = append(expired, p.Key)
		}
	}
	t.notifyPrivileges(expired)

	s.Privileges = statuses
	if s.Privileges == nil {
		s.Privileges = []model.PrivilegeStatus{}
	}
	return s, nil
}
