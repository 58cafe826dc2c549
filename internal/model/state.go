package model

import "time"

// ChoreRecord is the persisted runtime state of one chore entity.
type ChoreRecord struct {
	Key         Key        `json:"key"`
	State       ChoreState `json:"state"`
	MissAccrued bool       `json:"miss_accrued"`
}

// PrivilegeRecord is the persisted runtime state of one privilege entity.
type PrivilegeRecord struct {
	Key          Key            `json:"key"`
	State        PrivilegeState `json:"state"`
	DisableUntil *time.Time     `json:"disable_until,omitempty"`
}
