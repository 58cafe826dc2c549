// Package points keeps the per-assignee point counters.
package points

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/simplechores/internal/model"
)

// Store persists balances and the audit trail. SaveBalance must be safe to
// call concurrently.
type Store interface {
	LoadBalances(ctx context.Context) ([]model.Balance, error)
	SaveBalance(ctx context.Context, b model.Balance) error
	AppendEvent(ctx context.Context, e *model.LedgerEvent) error
}

// ChoreSource gives read access to live chore state.
type ChoreSource interface {
	PendingPoints(assignee string) int
	Assignees() []string
}

// Ledger caches balances in memory and writes every change through to the
// Store before it becomes visible. A failed write leaves the cached balance
// untouched.
type Ledger struct {
	store  Store
	chores ChoreSource
	logger *slog.Logger

	mu       sync.RWMutex
	balances map[string]model.Balance
	order    []string
}

func NewLedger(store Store, chores ChoreSource, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:    store,
		chores:   chores,
		logger:   logger,
		balances: make(map[string]model.Balance),
	}
}

// Load replaces the cache with the stored balances.
func (l *Ledger) Load(ctx context.Context) error {
	balances, err := l.store.LoadBalances(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = make(map[string]model.Balance, len(balances))
	l.order = l.order[:0]
	for _, b := range balances {
		l.setLocked(b)
	}
	return nil
}

func (l *Ledger) setLocked(b model.Balance) {
	if _, ok := l.balances[b.Assignee]; !ok {
		l.order = append(l.order, b.Assignee)
	}
	l.balances[b.Assignee] = b
}

func (l *Ledger) getLocked(assignee string) model.Balance {
	if b, ok := l.balances[assignee]; ok {
		return b
	}
	return model.Balance{Assignee: assignee}
}

// Balance returns the counters of assignee; unknown assignees read as zero.
func (l *Ledger) Balance(assignee string) model.Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.getLocked(assignee)
}

// Balances returns every known balance in first-seen order.
func (l *Ledger) Balances() []model.Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Balance, 0, len(l.order))
	for _, a := range l.order {
		out = append(out, l.balances[a])
	}
	return out
}

// Assignees returns every assignee the ledger has a balance for.
func (l *Ledger) Assignees() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.order)
}

// PointsPossible is earned + missed + the points of every pending chore.
// It is computed from live chore state on each call.
func (l *Ledger) PointsPossible(assignee string) int {
	b := l.Balance(assignee)
	return b.Earned + b.Missed + l.chores.PendingPoints(assignee)
}

func (l *Ledger) update(ctx context.Context, assignee, reason string, fn func(*model.Balance)) (model.Balance, error) {
	if assignee == "" {
		return model.Balance{}, &model.ValidationError{Field: "assignee", Reason: "assignee is required"}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.getLocked(assignee)
	next := prev
	fn(&next)
	if err := l.store.SaveBalance(ctx, next); err != nil {
		return prev, err
	}
	l.setLocked(next)
	l.audit(ctx, prev, next, reason)
	return next, nil
}

// AddPoints moves total by delta and returns the new total.
func (l *Ledger) AddPoints(ctx context.Context, assignee string, delta int) (int, error) {
	b, err := l.update(ctx, assignee, "adjust", func(b *model.Balance) { b.Total += delta })
	return b.Total, err
}

func (l *Ledger) SetPoints(ctx context.Context, assignee string, value int) error {
	_, err := l.update(ctx, assignee, "set", func(b *model.Balance) { b.Total = value })
	return err
}

func (l *Ledger) AddEarned(ctx context.Context, assignee string, delta int) (int, error) {
	b, err := l.update(ctx, assignee, "adjust", func(b *model.Balance) { b.Earned += delta })
	return b.Earned, err
}

func (l *Ledger) SetEarned(ctx context.Context, assignee string, value int) error {
	_, err := l.update(ctx, assignee, "set", func(b *model.Balance) { b.Earned = value })
	return err
}

func (l *Ledger) AddMissed(ctx context.Context, assignee string, delta int) (int, error) {
	b, err := l.update(ctx, assignee, "adjust", func(b *model.Balance) { b.Missed += delta })
	return b.Missed, err
}

func (l *Ledger) SetMissed(ctx context.Context, assignee string, value int) error {
	_, err := l.update(ctx, assignee, "set", func(b *model.Balance) { b.Missed = value })
	return err
}

// RecordTransition applies the completion edge rule for a chore worth
// points: entering complete awards total and earned, leaving complete
// reverses the award, any other transition is ignored. It returns the delta
// applied.
func (l *Ledger) RecordTransition(ctx context.Context, assignee string, points int, from, to model.ChoreState) (int, error) {
	var delta int
	switch {
	case to == model.ChoreComplete && from != model.ChoreComplete:
		delta = points
	case from == model.ChoreComplete && to != model.ChoreComplete:
		delta = -points
	}
	if delta == 0 {
		return 0, nil
	}

	reason := fmt.Sprintf("chore %s -> %s", from, to)
	_, err := l.update(ctx, assignee, reason, func(b *model.Balance) {
		b.Total += delta
		b.Earned += delta
	})
	if err != nil {
		return 0, err
	}
	return delta, nil
}

// AccrueMissed adds each assignee's amount to its missed counter and returns
// the assignees whose write landed. Writes run concurrently and are all
// awaited; an assignee whose write failed keeps its previous balance.
func (l *Ledger) AccrueMissed(ctx context.Context, missed map[string]int) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	assignees := make([]string, 0, len(missed))
	for a, pts := range missed {
		if pts != 0 {
			assignees = append(assignees, a)
		}
	}
	slices.Sort(assignees)

	next := make([]model.Balance, len(assignees))
	for i, a := range assignees {
		next[i] = l.getLocked(a)
		next[i].Missed += missed[a]
	}
	return l.commitBatchLocked(ctx, next, "rollover")
}

// Reset zeroes earned and missed, and total when resetTotal is set, for the
// given assignees. With no assignees it covers every ledger assignee plus
// every assignee that currently has chores.
func (l *Ledger) Reset(ctx context.Context, assignees []string, resetTotal bool) error {
	if len(assignees) == 0 {
		assignees = l.Assignees()
		for _, a := range l.chores.Assignees() {
			if !slices.Contains(assignees, a) {
				assignees = append(assignees, a)
			}
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := make([]model.Balance, 0, len(assignees))
	for _, a := range assignees {
		b := l.getLocked(a)
		b.Earned, b.Missed = 0, 0
		if resetTotal {
			b.Total = 0
		}
		next = append(next, b)
	}
	_, err := l.commitBatchLocked(ctx, next, "reset")
	return err
}

func (l *Ledger) commitBatchLocked(ctx context.Context, next []model.Balance, reason string) ([]string, error) {
	saved := make([]bool, len(next))
	var g errgroup.Group
	for i, b := range next {
		g.Go(func() error {
			if err := l.store.SaveBalance(ctx, b); err != nil {
				return err
			}
			saved[i] = true
			return nil
		})
	}
	err := g.Wait()

	var committed []string
	for i, b := range next {
		if !saved[i] {
			continue
		}
		prev := l.getLocked(b.Assignee)
		l.setLocked(b)
		l.audit(ctx, prev, b, reason)
		committed = append(committed, b.Assignee)
	}
	if err != nil {
		return committed, fmt.Errorf("%s batch: %w", reason, err)
	}
	return committed, nil
}

// audit appends one event per counter that moved. The balance is already
// persisted, so a failed append is logged rather than returned.
func (l *Ledger) audit(ctx context.Context, prev, next model.Balance, reason string) {
	changes := []struct {
		counter   model.Counter
		old, next int
	}{
		{model.CounterTotal, prev.Total, next.Total},
		{model.CounterEarned, prev.Earned, next.Earned},
		{model.CounterMissed, prev.Missed, next.Missed},
	}
	for _, c := range changes {
		if c.old == c.next {
			continue
		}
		e := &model.LedgerEvent{
			Assignee: next.Assignee,
			Counter:  c.counter,
			Delta:    c.next - c.old,
			Value:    c.next,
			Reason:   reason,
		}
		if err := l.store.AppendEvent(ctx, e); err != nil {
			l.logger.Error("append ledger event", "assignee", next.Assignee, "counter", c.counter, "error", err)
		}
	}
}
