// Package privilege derives and tracks privilege state.
package privilege

import (
	"time"

	"github.com/dukerupert/simplechores/internal/model"
)

// Input is everything Recompute looks at for one privilege.
type Input struct {
	Behavior     model.PrivilegeBehavior
	State        model.PrivilegeState
	DisableUntil *time.Time
	// LinkedComplete is the current result of the linked chore rule.
	LinkedComplete bool
}

// Decision is the state a privilege should hold after Recompute.
type Decision struct {
	State        model.PrivilegeState
	DisableUntil *time.Time
	Changed      bool
}

// Recompute is the single place where timer expiry and automatic derivation
// are decided.
//
// A temporary disable whose deadline is still ahead wins over everything.
// Once expired the timer is cleared and the privilege is derived again:
// automatic privileges from LinkedComplete, manual ones back to enabled.
// Without an expiry, automatic privileges are derived only when force is
// set, which is how a chore change reaches them; reads leave manual
// overrides alone.
func Recompute(in Input, now time.Time, force bool) Decision {
	d := Decision{State: in.State, DisableUntil: in.DisableUntil}

	if in.State == model.PrivilegeTemporarilyDisabled {
		if in.DisableUntil != nil && now.Before(*in.DisableUntil) {
			return d
		}
		d.DisableUntil = nil
		d.Changed = true
		if in.Behavior != model.BehaviorAutomatic {
			d.State = model.PrivilegeEnabled
			return d
		}
		d.State = derive(in.LinkedComplete)
		return d
	}

	if in.Behavior != model.BehaviorAutomatic || !force {
		return d
	}
	if next := derive(in.LinkedComplete); next != in.State || in.DisableUntil != nil {
		d.State = next
		d.DisableUntil = nil
		d.Changed = true
	}
	return d
}

func derive(linkedComplete bool) model.PrivilegeState {
	if linkedComplete {
		return model.PrivilegeEnabled
	}
	return model.PrivilegeDisabled
}

// ChoreSource reads live chore state.
type ChoreSource interface {
	ChoreState(assignee, slug string) (model.ChoreState, bool)
	ChoreStates(assignee string) []model.ChoreState
}

// LinkedComplete evaluates the linked chore rule for one assignee. With
// linked chores, every one of them must be complete for this assignee.
// Without, no chore may be pending and at least one must be complete.
func LinkedComplete(chores ChoreSource, assignee string, linked []string) bool {
	if len(linked) > 0 {
		for _, slug := range linked {
			st, ok := chores.ChoreState(assignee, slug)
			if !ok || st != model.ChoreComplete {
				return false
			}
		}
		return true
	}

	anyComplete := false
	for _, st := range chores.ChoreStates(assignee) {
		switch st {
		case model.ChorePending:
			return false
		case model.ChoreComplete:
			anyComplete = true
		}
	}
	return anyComplete
}
