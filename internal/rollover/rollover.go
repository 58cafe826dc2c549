// Package rollover runs the start-of-day batch: missed points for work left
// pending, then completed chores move on according to their frequency.
package rollover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dukerupert/simplechores/internal/model"
	"github.com/dukerupert/simplechores/internal/privilege"
	"github.com/dukerupert/simplechores/internal/registry"
)

// Ledger is the part of the points ledger the rollover drives.
type Ledger interface {
	AccrueMissed(ctx context.Context, missed map[string]int) ([]string, error)
}

// StateStore persists chore runtime state in batches.
type StateStore interface {
	SaveChoreStates(ctx context.Context, records []model.ChoreRecord) error
}

// Evaluator re-derives automatic privileges.
type Evaluator interface {
	Evaluate(ctx context.Context, assignee string) ([]model.Key, error)
}

var _ Evaluator = (*privilege.Engine)(nil)

// Report describes what one run did.
type Report struct {
	Missed     map[string]int `json:"missed"`
	Changed    []model.Key    `json:"changed"`
	Privileges []model.Key    `json:"privileges"`
}

type Processor struct {
	reg        *registry.Registry
	ledger     Ledger
	states     StateStore
	privileges Evaluator
	logger     *slog.Logger
}

func NewProcessor(reg *registry.Registry, ledger Ledger, states StateStore, privileges Evaluator, logger *slog.Logger) *Processor {
	return &Processor{
		reg:        reg,
		ledger:     ledger,
		states:     states,
		privileges: privileges,
		logger:     logger,
	}
}

func (p *Processor) chores(assignee string) ([]*registry.Chore, error) {
	if assignee != "" && !p.reg.HasAssignee(assignee) {
		return nil, &model.NotFoundError{Kind: model.KindAssignee, Assignee: assignee}
	}
	return p.reg.ChoresFor(assignee), nil
}

// StartNewDay accrues missed points for every pending chore whose current
// pending episode has not been counted yet, then moves completed chores on:
// manual ones to not requested, daily ones back to pending. Once chores are
// left alone. An empty assignee covers everyone.
func (p *Processor) StartNewDay(ctx context.Context, assignee string) (Report, error) {
	chores, err := p.chores(assignee)
	if err != nil {
		return Report{}, err
	}
	chores = slices.DeleteFunc(chores, func(c *registry.Chore) bool {
		return c.Def.Frequency == model.FrequencyOnce
	})

	rep := Report{Missed: make(map[string]int)}
	for _, c := range chores {
		if c.State == model.ChorePending && !c.MissAccrued && c.Def.Points > 0 {
			rep.Missed[c.Key.Assignee] += c.Def.Points
		}
	}

	committed, err := p.ledger.AccrueMissed(ctx, rep.Missed)
	var records []model.ChoreRecord
	for _, c := range chores {
		if c.State == model.ChorePending && !c.MissAccrued && slices.Contains(committed, c.Key.Assignee) {
			p.reg.MarkMissAccrued(c.Key)
			records = append(records, record(c))
		}
	}
	if saveErr := p.states.SaveChoreStates(ctx, records); saveErr != nil {
		err = errors.Join(err, saveErr)
	}
	if err != nil {
		return rep, fmt.Errorf("accrue missed points: %w", err)
	}

	records = records[:0]
	affected := make(map[string]bool)
	for _, c := range chores {
		if c.State != model.ChoreComplete {
			continue
		}
		var next model.ChoreState
		switch c.Def.Frequency {
		case model.FrequencyManual:
			next = model.ChoreNotRequested
		case model.FrequencyDaily:
			next = model.ChorePending
		default:
			continue
		}
		if _, err := p.reg.SetChoreState(c.Key, next); err != nil {
			return rep, err
		}
		rep.Changed = append(rep.Changed, c.Key)
		records = append(records, record(c))
		affected[c.Key.Assignee] = true
	}
	if err := p.states.SaveChoreStates(ctx, records); err != nil {
		return rep, fmt.Errorf("persist rollover: %w", err)
	}

	if err := p.evaluate(ctx, affected, &rep); err != nil {
		return rep, err
	}

	p.logger.Info("new day started", "assignee", assignee, "missed", rep.Missed, "changed", len(rep.Changed))
	return rep, nil
}

// ResetCompleted moves every completed chore to not requested without
// touching points. An empty assignee covers everyone.
func (p *Processor) ResetCompleted(ctx context.Context, assignee string) (Report, error) {
	chores, err := p.chores(assignee)
	if err != nil {
		return Report{}, err
	}

	var rep Report
	var records []model.ChoreRecord
	affected := make(map[string]bool)
	for _, c := range chores {
		if c.State != model.ChoreComplete {
			continue
		}
		if _, err := p.reg.SetChoreState(c.Key, model.ChoreNotRequested); err != nil {
			return rep, err
		}
		rep.Changed = append(rep.Changed, c.Key)
		records = append(records, record(c))
		affected[c.Key.Assignee] = true
	}
	if err := p.states.SaveChoreStates(ctx, records); err != nil {
		return rep, fmt.Errorf("persist reset: %w", err)
	}

	if err := p.evaluate(ctx, affected, &rep); err != nil {
		return rep, err
	}
	p.logger.Info("completed chores reset", "assignee", assignee, "changed", len(rep.Changed))
	return rep, nil
}

func (p *Processor) evaluate(ctx context.Context, affected map[string]bool, rep *Report) error {
	assignees := make([]string, 0, len(affected))
	for a := range affected {
		assignees = append(assignees, a)
	}
	slices.Sort(assignees)
	for _, a := range assignees {
		changed, err := p.privileges.Evaluate(ctx, a)
		rep.Privileges = append(rep.Privileges, changed...)
		if err != nil {
			return fmt.Errorf("evaluate privileges for %s: %w", a, err)
		}
	}
	return nil
}

func record(c *registry.Chore) model.ChoreRecord {
	return model.ChoreRecord{Key: c.Key, State: c.State, MissAccrued: c.MissAccrued}
}
