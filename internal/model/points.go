package model

import "time"

// Balance is one assignee's ledger row. Total is a free running balance;
// Earned and Missed are period counters cleared by a reset.
type Balance struct {
	Assignee string `json:"assignee"`
	Total    int    `json:"total"`
	Earned   int    `json:"earned"`
	Missed   int    `json:"missed"`
}

// Counter names one of the three ledger columns.
type Counter string

const (
	CounterTotal  Counter = "total"
	CounterEarned Counter = "earned"
	CounterMissed Counter = "missed"
)

func (c Counter) Valid() bool {
	switch c {
	case CounterTotal, CounterEarned, CounterMissed:
		return true
	}
	return false
}

// LedgerEvent is an append-only audit record of one counter mutation.
type LedgerEvent struct {
	ID        string    `json:"id"`
	Assignee  string    `json:"assignee"`
	Counter   Counter   `json:"counter"`
	Delta     int       `json:"delta"`
	Value     int       `json:"value"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

type PrivilegeStatus struct {
	Slug         string            `json:"slug"`
	Name         string            `json:"name"`
	Icon         string            `json:"icon"`
	Behavior     PrivilegeBehavior `json:"behavior"`
	State        PrivilegeState    `json:"state"`
	DisableUntil *time.Time        `json:"disable_until,omitempty"`
}

// Summary is the per-assignee dashboard view. Possible is derived from live
// chore state on every read.
type Summary struct {
	Assignee     string            `json:"assignee"`
	PendingCount int               `json:"pending_count"`
	Pending      []string          `json:"pending"`
	Complete     []string          `json:"complete"`
	NotRequested []string          `json:"not_requested"`
	All          []string          `json:"all"`
	TotalChores  int               `json:"total_chores"`
	Total        int               `json:"total"`
	Earned       int               `json:"earned"`
	Missed       int               `json:"missed"`
	Possible     int               `json:"possible"`
	Privileges   []PrivilegeStatus `json:"privileges"`
}
