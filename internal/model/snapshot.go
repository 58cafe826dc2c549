package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Snapshot is one validated configuration document. Treat it as immutable
// once published: edits produce a new Snapshot.
type Snapshot struct {
	Chores     []ChoreDefinition     `json:"chores" yaml:"chores"`
	Privileges []PrivilegeDefinition `json:"privileges" yaml:"privileges"`
}

// Key identifies a runtime entity. It is the only identity an entity has;
// definition values from earlier snapshots are never used to look one up.
type Key struct {
	Assignee string `json:"assignee"`
	Slug     string `json:"slug"`
}

func (k Key) String() string { return k.Assignee + "/" + k.Slug }

func (s *Snapshot) Chore(slug string) (ChoreDefinition, bool) {
	for _, c := range s.Chores {
		if c.Slug == slug {
			return c, true
		}
	}
	return ChoreDefinition{}, false
}

func (s *Snapshot) Privilege(slug string) (PrivilegeDefinition, bool) {
	for _, p := range s.Privileges {
		if p.Slug == slug {
			return p, true
		}
	}
	return PrivilegeDefinition{}, false
}

func (s *Snapshot) ChoresFor(assignee string) []ChoreDefinition {
	var out []ChoreDefinition
	for _, c := range s.Chores {
		if c.HasAssignee(assignee) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Snapshot) PrivilegesFor(assignee string) []PrivilegeDefinition {
	var out []PrivilegeDefinition
	for _, p := range s.Privileges {
		if slices.Contains(p.Assignees, assignee) {
			out = append(out, p)
		}
	}
	return out
}

// Assignees returns every assignee named by a chore or privilege, in first
// appearance order.
func (s *Snapshot) Assignees() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(names []string) {
		for _, a := range names {
			if _, ok := seen[a]; ok {
				continue
			}
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	for _, c := range s.Chores {
		add(c.Assignees)
	}
	for _, p := range s.Privileges {
		add(p.Assignees)
	}
	return out
}

func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return &Snapshot{}
	}
	out := &Snapshot{
		Chores:     make([]ChoreDefinition, len(s.Chores)),
		Privileges: make([]PrivilegeDefinition, len(s.Privileges)),
	}
	for i, c := range s.Chores {
		out.Chores[i] = c.Clone()
	}
	for i, p := range s.Privileges {
		out.Privileges[i] = p.Clone()
	}
	return out
}

// Equal reports deep equality. A nil snapshot equals an empty one.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil {
		s = &Snapshot{}
	}
	if o == nil {
		o = &Snapshot{}
	}
	return slices.EqualFunc(s.Chores, o.Chores, ChoreDefinition.Equal) &&
		slices.EqualFunc(s.Privileges, o.Privileges, PrivilegeDefinition.Equal)
}

// Normalize applies field defaults and canonical slug/assignee forms in
// place. It does not validate.
func (s *Snapshot) Normalize() {
	for i := range s.Chores {
		c := &s.Chores[i]
		c.Name = strings.TrimSpace(c.Name)
		c.Slug = NormalizeSlug(c.Slug)
		c.Assignees = normalizeAssignees(c.Assignees)
		if c.Icon == "" {
			c.Icon = DefaultChoreIcon
		}
		c.Frequency = Frequency(strings.ToLower(strings.TrimSpace(string(c.Frequency))))
	}
	for i := range s.Privileges {
		p := &s.Privileges[i]
		p.Name = strings.TrimSpace(p.Name)
		p.Slug = NormalizeSlug(p.Slug)
		p.Assignees = normalizeAssignees(p.Assignees)
		if p.Icon == "" {
			p.Icon = DefaultPrivilegeIcon
		}
		if p.Behavior == "" {
			p.Behavior = BehaviorAutomatic
		}
		p.Behavior = PrivilegeBehavior(strings.ToLower(strings.TrimSpace(string(p.Behavior))))
		linked := make([]string, 0, len(p.LinkedChores))
		for _, l := range p.LinkedChores {
			linked = append(linked, NormalizeSlug(l))
		}
		p.LinkedChores = linked
	}
	if s.Chores == nil {
		s.Chores = []ChoreDefinition{}
	}
	if s.Privileges == nil {
		s.Privileges = []PrivilegeDefinition{}
	}
}

func normalizeAssignees(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		out = append(out, strings.TrimSpace(a))
	}
	return out
}

// Validate checks the snapshot as a whole and returns every problem found,
// joined. A nil return means the snapshot may be published.
func (s *Snapshot) Validate() error {
	var errs []error

	choreSlugs := make(map[string]struct{}, len(s.Chores))
	for i, c := range s.Chores {
		where := fmt.Sprintf("chores[%d]", i)
		if c.Name == "" {
			errs = append(errs, &ValidationError{Field: where + ".name", Reason: "name is required"})
		}
		if c.Slug == "" {
			errs = append(errs, &ValidationError{Field: where + ".slug", Reason: "slug cannot be empty"})
		} else if _, dup := choreSlugs[c.Slug]; dup {
			errs = append(errs, &DuplicateError{Kind: KindChore, Slug: c.Slug})
		} else {
			choreSlugs[c.Slug] = struct{}{}
		}
		if !c.Frequency.Valid() {
			errs = append(errs, &ValidationError{Field: where + ".frequency", Reason: fmt.Sprintf("unknown frequency %q", c.Frequency)})
		}
		if c.Points < 0 {
			errs = append(errs, &ValidationError{Field: where + ".points", Reason: "points must be >= 0"})
		}
		if err := validateAssignees(where, c.Assignees); err != nil {
			errs = append(errs, err)
		}
	}

	privSlugs := make(map[string]struct{}, len(s.Privileges))
	for i, p := range s.Privileges {
		where := fmt.Sprintf("privileges[%d]", i)
		if p.Name == "" {
			errs = append(errs, &ValidationError{Field: where + ".name", Reason: "name is required"})
		}
		if p.Slug == "" {
			errs = append(errs, &ValidationError{Field: where + ".slug", Reason: "slug cannot be empty"})
		} else if _, dup := privSlugs[p.Slug]; dup {
			errs = append(errs, &DuplicateError{Kind: KindPrivilege, Slug: p.Slug})
		} else {
			privSlugs[p.Slug] = struct{}{}
		}
		if !p.Behavior.Valid() {
			errs = append(errs, &ValidationError{Field: where + ".behavior", Reason: fmt.Sprintf("unknown behavior %q", p.Behavior)})
		}
		if err := validateAssignees(where, p.Assignees); err != nil {
			errs = append(errs, err)
		}
		for _, l := range p.LinkedChores {
			if _, ok := choreSlugs[l]; !ok {
				errs = append(errs, &ValidationError{
					Field:  where + ".linked_chores",
					Reason: fmt.Sprintf("privilege %q links to non-existent chore %q", p.Slug, l),
				})
			}
		}
	}

	return errors.Join(errs...)
}

func validateAssignees(where string, assignees []string) error {
	if len(assignees) == 0 {
		return &ValidationError{Field: where + ".assignees", Reason: "at least one assignee is required"}
	}
	seen := make(map[string]struct{}, len(assignees))
	for _, a := range assignees {
		if a == "" {
			return &ValidationError{Field: where + ".assignees", Reason: "assignee cannot be empty"}
		}
		if _, dup := seen[a]; dup {
			return &ValidationError{Field: where + ".assignees", Reason: fmt.Sprintf("assignee %q listed twice", a)}
		}
		seen[a] = struct{}{}
	}
	return nil
}
