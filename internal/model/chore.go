package model

import (
	"fmt"
	"slices"
	"strings"
)

const DefaultChoreIcon = "mdi:clipboard-list-outline"

// Frequency controls what the daily rollover does with a completed chore.
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyManual Frequency = "manual"
	FrequencyOnce   Frequency = "once"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyManual, FrequencyOnce:
		return true
	}
	return false
}

// ParseFrequency accepts any casing of daily, manual or once.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", &ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q (want daily, manual or once)", s)}
	}
	return f, nil
}

type ChoreState string

const (
	ChoreNotRequested ChoreState = "not_requested"
	ChorePending      ChoreState = "pending"
	ChoreComplete     ChoreState = "complete"
)

func (s ChoreState) Valid() bool {
	switch s {
	case ChoreNotRequested, ChorePending, ChoreComplete:
		return true
	}
	return false
}

// Label is the human readable form shown on dashboards.
func (s ChoreState) Label() string {
	switch s {
	case ChorePending:
		return "Pending"
	case ChoreComplete:
		return "Complete"
	default:
		return "Not Requested"
	}
}

// ParseChoreState accepts both the stored form ("not_requested") and the
// label form ("Not Requested").
func ParseChoreState(s string) (ChoreState, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	st := ChoreState(norm)
	if !st.Valid() {
		return "", &ValidationError{Field: "state", Reason: fmt.Sprintf("unknown chore state %q", s)}
	}
	return st, nil
}

// ChoreDefinition is one chore as declared in the configuration document.
// Values are immutable once part of a published Snapshot.
type ChoreDefinition struct {
	Name        string    `json:"name" yaml:"name"`
	Slug        string    `json:"slug" yaml:"slug"`
	Description string    `json:"description" yaml:"description"`
	Frequency   Frequency `json:"frequency" yaml:"frequency"`
	Assignees   []string  `json:"assignees" yaml:"assignees"`
	Icon        string    `json:"icon" yaml:"icon"`
	Points      int       `json:"points" yaml:"points"`
}

func (c ChoreDefinition) ID() string { return c.Slug }

func (c ChoreDefinition) AssignedTo() []string { return c.Assignees }

func (c ChoreDefinition) HasAssignee(assignee string) bool {
	return slices.Contains(c.Assignees, assignee)
}

func (c ChoreDefinition) Clone() ChoreDefinition {
	c.Assignees = slices.Clone(c.Assignees)
	return c
}

func (c ChoreDefinition) Equal(o ChoreDefinition) bool {
	return c.Name == o.Name &&
		c.Slug == o.Slug &&
		c.Description == o.Description &&
		c.Frequency == o.Frequency &&
		c.Icon == o.Icon &&
		c.Points == o.Points &&
		slices.Equal(c.Assignees, o.Assignees)
}
