package model

import (
	"fmt"
	"slices"
	"strings"
)

const DefaultPrivilegeIcon = "mdi:star"

type PrivilegeBehavior string

const (
	BehaviorAutomatic PrivilegeBehavior = "automatic"
	BehaviorManual    PrivilegeBehavior = "manual"
)

func (b PrivilegeBehavior) Valid() bool {
	return b == BehaviorAutomatic || b == BehaviorManual
}

func ParseBehavior(s string) (PrivilegeBehavior, error) {
	b := PrivilegeBehavior(strings.ToLower(strings.TrimSpace(s)))
	if !b.Valid() {
		return "", &ValidationError{Field: "behavior", Reason: fmt.Sprintf("unknown behavior %q (want automatic or manual)", s)}
	}
	return b, nil
}

type PrivilegeState string

const (
	PrivilegeEnabled             PrivilegeState = "enabled"
	PrivilegeDisabled            PrivilegeState = "disabled"
	PrivilegeTemporarilyDisabled PrivilegeState = "temporarily_disabled"
)

func (s PrivilegeState) Valid() bool {
	switch s {
	case PrivilegeEnabled, PrivilegeDisabled, PrivilegeTemporarilyDisabled:
		return true
	}
	return false
}

func (s PrivilegeState) Label() string {
	switch s {
	case PrivilegeEnabled:
		return "Enabled"
	case PrivilegeTemporarilyDisabled:
		return "Temporarily Disabled"
	default:
		return "Disabled"
	}
}

// PrivilegeDefinition is a privilege as declared in the configuration
// document. LinkedChores hold chore slugs that must resolve within the same
// Snapshot.
type PrivilegeDefinition struct {
	Name         string            `json:"name" yaml:"name"`
	Slug         string            `json:"slug" yaml:"slug"`
	Icon         string            `json:"icon" yaml:"icon"`
	Behavior     PrivilegeBehavior `json:"behavior" yaml:"behavior"`
	LinkedChores []string          `json:"linked_chores" yaml:"linked_chores"`
	Assignees    []string          `json:"assignees" yaml:"assignees"`
}

func (p PrivilegeDefinition) ID() string { return p.Slug }

func (p PrivilegeDefinition) AssignedTo() []string { return p.Assignees }

func (p PrivilegeDefinition) LinksChore(slug string) bool {
	return slices.Contains(p.LinkedChores, slug)
}

func (p PrivilegeDefinition) Clone() PrivilegeDefinition {
	p.LinkedChores = slices.Clone(p.LinkedChores)
	p.Assignees = slices.Clone(p.Assignees)
	return p
}

func (p PrivilegeDefinition) Equal(o PrivilegeDefinition) bool {
	return p.Name == o.Name &&
		p.Slug == o.Slug &&
		p.Icon == o.Icon &&
		p.Behavior == o.Behavior &&
		slices.Equal(p.LinkedChores, o.LinkedChores) &&
		slices.Equal(p.Assignees, o.Assignees)
}
