package tracker

import (
	"context"
	"fmt"

	"github.com/dukerupert/simplechores/internal/model"
	"github.com/dukerupert/simplechores/internal/store"
	"github.com/dukerupert/simplechores/internal/websocket"
)

const defaultHistoryLimit = 50

// Balance returns the assignee's counters.
func (t *Tracker) Balance(assignee string) (model.Balance, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.knownAssignee(assignee); err != nil {
		return model.Balance{}, err
	}
	return t.ledger.Balance(assignee), nil
}

// AdjustPoints moves the assignee's free running total by delta. Earned and
// missed are left alone.
func (t *Tracker) AdjustPoints(ctx context.Context, assignee string, delta int) (model.Balance, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.knownAssignee(assignee); err != nil {
		return model.Balance{}, err
	}
	if _, err := t.ledger.AddPoints(ctx, assignee, delta); err != nil {
		return model.Balance{}, fmt.Errorf("adjust points: %w", err)
	}
	b := t.ledger.Balance(assignee)
	t.logger.Info("points adjusted", "assignee", assignee, "delta", delta, "total", b.Total)
	t.notify(websocket.EntityPoints, "changed", assignee, "", map[string]any{"total": b.Total})
	return b, nil
}

// ResetPoints clears earned and missed, and total when resetTotal is set. An
// empty assignee covers everyone.
func (t *Tracker) ResetPoints(ctx context.Context, assignee string, resetTotal bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var assignees []string
	if assignee != "" {
		if err := t.knownAssignee(assignee); err != nil {
			return err
		}
		assignees = []string{assignee}
	}
	if err := t.ledger.Reset(ctx, assignees, resetTotal); err != nil {
		return fmt.Errorf("reset points: %w", err)
	}
	t.logger.Info("points reset", "assignee", assignee, "reset_total", resetTotal)
	t.notify(websocket.EntityPoints, "reset", assignee, "", map[string]any{"reset_total": resetTotal})
	return nil
}

// History lists the newest ledger events for assignee, optionally only those
// of one counter.
func (t *Tracker) History(ctx context.Context, assignee string, counter model.Counter, limit int) ([]model.LedgerEvent, error) {
	t.mu.Lock()
	err := t.knownAssignee(assignee)
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if counter != "" && !counter.Valid() {
		return nil, &model.ValidationError{Field: "counter", Reason: fmt.Sprintf("unknown counter %q (want total, earned or missed)", counter)}
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	events, err := t.events.ListEvents(ctx, store.EventQuery{Assignee: assignee, Counter: counter, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list ledger events: %w", err)
	}
	if events == nil {
		events = []model.LedgerEvent{}
	}
	return events, nil
}
