package registry

import (
	"time"

	"github.com/dukerupert/simplechores/internal/model"
)

// Chore is the live state of one chore for one assignee. MissAccrued marks a
// pending episode whose points were already counted as missed by a rollover.
type Chore struct {
	Key         model.Key
	Def         model.ChoreDefinition
	State       model.ChoreState
	MissAccrued bool
}

func NewChore(key model.Key, def model.ChoreDefinition) *Chore {
	return &Chore{Key: key, Def: def, State: model.ChoreNotRequested}
}

func (c *Chore) EntityKey() model.Key                    { return c.Key }
func (c *Chore) SetDefinition(def model.ChoreDefinition) { c.Def = def }

// Privilege is the live state of one privilege for one assignee.
// DisableUntil is set only while State is temporarily disabled.
type Privilege struct {
	Key          model.Key
	Def          model.PrivilegeDefinition
	State        model.PrivilegeState
	DisableUntil *time.Time
}

func NewPrivilege(key model.Key, def model.PrivilegeDefinition) *Privilege {
	return &Privilege{Key: key, Def: def, State: model.PrivilegeDisabled}
}

func (p *Privilege) EntityKey() model.Key                        { return p.Key }
func (p *Privilege) SetDefinition(def model.PrivilegeDefinition) { p.Def = def }

// Changes reports what one ApplySnapshot did to each entity set.
type Changes struct {
	Chores     Result[*Chore]
	Privileges Result[*Privilege]
}

// Empty reports whether membership did not change.
func (c Changes) Empty() bool {
	return len(c.Chores.Added) == 0 && len(c.Chores.Removed) == 0 &&
		len(c.Privileges.Added) == 0 && len(c.Privileges.Removed) == 0
}

// Registry holds both entity sets. It is not safe for concurrent use; the
// caller serializes access.
type Registry struct {
	chores     []*Chore
	choreIdx   map[model.Key]*Chore
	privileges []*Privilege
	privIdx    map[model.Key]*Privilege
}

func New() *Registry {
	return &Registry{
		choreIdx: make(map[model.Key]*Chore),
		privIdx:  make(map[model.Key]*Privilege),
	}
}

// ApplySnapshot reconciles both entity sets against snap.
func (r *Registry) ApplySnapshot(snap *model.Snapshot) Changes {
	if snap == nil {
		snap = &model.Snapshot{}
	}
	ch := Changes{
		Chores:     Reconcile(r.chores, snap.Chores, NewChore),
		Privileges: Reconcile(r.privileges, snap.Privileges, NewPrivilege),
	}

	r.chores = ch.Chores.Entities
	r.choreIdx = make(map[model.Key]*Chore, len(r.chores))
	for _, c := range r.chores {
		r.choreIdx[c.Key] = c
	}
	r.privileges = ch.Privileges.Entities
	r.privIdx = make(map[model.Key]*Privilege, len(r.privileges))
	for _, p := range r.privileges {
		r.privIdx[p.Key] = p
	}
	return ch
}

func (r *Registry) Chore(key model.Key) (*Chore, bool) {
	c, ok := r.choreIdx[key]
	return c, ok
}

func (r *Registry) Privilege(key model.Key) (*Privilege, bool) {
	p, ok := r.privIdx[key]
	return p, ok
}

func (r *Registry) Chores() []*Chore { return append([]*Chore(nil), r.chores...) }

func (r *Registry) Privileges() []*Privilege { return append([]*Privilege(nil), r.privileges...) }

// ChoresFor returns the assignee's chores; an empty assignee matches all.
func (r *Registry) ChoresFor(assignee string) []*Chore {
	var out []*Chore
	for _, c := range r.chores {
		if assignee == "" || c.Key.Assignee == assignee {
			out = append(out, c)
		}
	}
	return out
}

// PrivilegesFor returns the assignee's privileges; an empty assignee matches
// all.
func (r *Registry) PrivilegesFor(assignee string) []*Privilege {
	var out []*Privilege
	for _, p := range r.privileges {
		if assignee == "" || p.Key.Assignee == assignee {
			out = append(out, p)
		}
	}
	return out
}

// ChoreAssignees returns every assignee of the chore slug in snapshot order.
func (r *Registry) ChoreAssignees(slug string) []string {
	var out []string
	for _, c := range r.chores {
		if c.Key.Slug == slug {
			out = append(out, c.Key.Assignee)
		}
	}
	return out
}

// Assignees returns every assignee with at least one entity, chores first.
func (r *Registry) Assignees() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(a string) {
		if _, ok := seen[a]; !ok {
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	for _, c := range r.chores {
		add(c.Key.Assignee)
	}
	for _, p := range r.privileges {
		add(p.Key.Assignee)
	}
	return out
}

// HasAssignee reports whether any entity belongs to assignee.
func (r *Registry) HasAssignee(assignee string) bool {
	for _, c := range r.chores {
		if c.Key.Assignee == assignee {
			return true
		}
	}
	for _, p := range r.privileges {
		if p.Key.Assignee == assignee {
			return true
		}
	}
	return false
}

// ChoreState reads a chore's state through the registry so other
// components never hold entity pointers.
func (r *Registry) ChoreState(assignee, slug string) (model.ChoreState, bool) {
	c, ok := r.choreIdx[model.Key{Assignee: assignee, Slug: slug}]
	if !ok {
		return "", false
	}
	return c.State, true
}

// ChoreStates returns the states of every chore of assignee.
func (r *Registry) ChoreStates(assignee string) []model.ChoreState {
	var out []model.ChoreState
	for _, c := range r.chores {
		if c.Key.Assignee == assignee {
			out = append(out, c.State)
		}
	}
	return out
}

// PendingPoints sums the points of the assignee's pending chores.
func (r *Registry) PendingPoints(assignee string) int {
	total := 0
	for _, c := range r.chores {
		if c.Key.Assignee == assignee && c.State == model.ChorePending {
			total += c.Def.Points
		}
	}
	return total
}

// SetChoreState moves a chore to state and returns the state it left. Any
// transition starts a new pending episode.
func (r *Registry) SetChoreState(key model.Key, state model.ChoreState) (model.ChoreState, error) {
	if !state.Valid() {
		return "", &model.ValidationError{Field: "state", Reason: "unknown chore state " + string(state)}
	}
	c, ok := r.choreIdx[key]
	if !ok {
		return "", &model.NotFoundError{Kind: model.KindChore, Assignee: key.Assignee, Slug: key.Slug}
	}
	from := c.State
	if from != state {
		c.State = state
		c.MissAccrued = false
	}
	return from, nil
}

// MarkMissAccrued records that the current pending episode of key has been
// counted as missed.
func (r *Registry) MarkMissAccrued(key model.Key) {
	if c, ok := r.choreIdx[key]; ok {
		c.MissAccrued = true
	}
}

// RestoreChore applies persisted runtime state to an entity.
func (r *Registry) RestoreChore(key model.Key, state model.ChoreState, missAccrued bool) bool {
	c, ok := r.choreIdx[key]
	if !ok || !state.Valid() {
		return false
	}
	c.State = state
	c.MissAccrued = missAccrued && state == model.ChorePending
	return true
}
