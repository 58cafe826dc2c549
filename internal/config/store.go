package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dukerupert/simplechores/internal/model"
)

// Store holds the active snapshot and the modification marker last seen on
// its Source. A failed Load or Save never replaces the active snapshot.
type Store struct {
	source Source
	logger *slog.Logger

	mu       sync.RWMutex
	current  *model.Snapshot
	marker   time.Time
	markerOK bool
}

func NewStore(source Source, logger *slog.Logger) *Store {
	return &Store{
		source:  source,
		logger:  logger,
		current: &model.Snapshot{Chores: []model.ChoreDefinition{}, Privileges: []model.PrivilegeDefinition{}},
	}
}

func (s *Store) name() string {
	if n, ok := s.source.(interface{ Name() string }); ok {
		return n.Name()
	}
	return ""
}

// Load reads and validates the document. A missing document loads as an
// empty snapshot.
func (s *Store) Load() (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mod, ok, err := s.source.ModTime()
	if err != nil {
		return nil, &model.ConfigLoadError{Path: s.name(), Reason: "stat source", Err: err}
	}

	data, err := s.source.Read()
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("config source missing, using empty config", "path", s.name())
		s.current = &model.Snapshot{Chores: []model.ChoreDefinition{}, Privileges: []model.PrivilegeDefinition{}}
		s.marker, s.markerOK = time.Time{}, false
		return s.current, nil
	}
	if err != nil {
		return nil, &model.ConfigLoadError{Path: s.name(), Reason: "read source", Err: err}
	}

	snap, err := Parse(data)
	if err != nil {
		var cle *model.ConfigLoadError
		if errors.As(err, &cle) {
			cle.Path = s.name()
		}
		return nil, err
	}

	s.current = snap
	s.marker, s.markerOK = mod, ok
	s.logger.Info("config loaded", "path", s.name(), "chores", len(snap.Chores), "privileges", len(snap.Privileges))
	return snap, nil
}

// Save validates, encodes and writes snap, then makes it the active
// snapshot. The marker is refreshed so the watcher does not re-detect the
// write.
func (s *Store) Save(snap *model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(snap)
}

func (s *Store) saveLocked(snap *model.Snapshot) error {
	next := snap.Clone()
	next.Normalize()
	if err := next.Validate(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	data, err := Encode(next)
	if err != nil {
		return err
	}
	if err := s.source.Write(data); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	mod, ok, err := s.source.ModTime()
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	s.current = next
	s.marker, s.markerOK = mod, ok
	return nil
}

// Current returns the active snapshot. Callers must not mutate it.
func (s *Store) Current() *model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Changed reports whether the source's modification marker differs from
// the one recorded by the last successful Load or Save. mod is the marker
// observed now.
func (s *Store) Changed() (mod time.Time, changed bool, err error) {
	mod, ok, err := s.source.ModTime()
	if err != nil {
		return time.Time{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return mod, ok != s.markerOK || !mod.Equal(s.marker), nil
}

// edit applies fn to a copy of the active snapshot and saves the result.
func (s *Store) edit(fn func(*model.Snapshot) error) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := s.saveLocked(next); err != nil {
		return nil, err
	}
	return s.current, nil
}

// ChoreUpdate carries the fields to change; nil leaves a field as is.
type ChoreUpdate struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Frequency   *model.Frequency `json:"frequency,omitempty"`
	Assignees   []string         `json:"assignees,omitempty"`
	Icon        *string          `json:"icon,omitempty"`
	Points      *int             `json:"points,omitempty"`
}

type PrivilegeUpdate struct {
	Name         *string                  `json:"name,omitempty"`
	Icon         *string                  `json:"icon,omitempty"`
	Behavior     *model.PrivilegeBehavior `json:"behavior,omitempty"`
	LinkedChores []string                 `json:"linked_chores,omitempty"`
	Assignees    []string                 `json:"assignees,omitempty"`
}

func (s *Store) CreateChore(def model.ChoreDefinition) (*model.Snapshot, error) {
	def = def.Clone()
	def.Slug = model.NormalizeSlug(def.Slug)
	if def.Slug == "" {
		return nil, &model.ValidationError{Field: "slug", Reason: "slug cannot be empty"}
	}
	return s.edit(func(next *model.Snapshot) error {
		if _, ok := next.Chore(def.Slug); ok {
			return &model.DuplicateError{Kind: model.KindChore, Slug: def.Slug}
		}
		next.Chores = append(next.Chores, def)
		return nil
	})
}

func (s *Store) UpdateChore(slug string, upd ChoreUpdate) (*model.Snapshot, error) {
	slug = model.NormalizeSlug(slug)
	return s.edit(func(next *model.Snapshot) error {
		i := slices.IndexFunc(next.Chores, func(c model.ChoreDefinition) bool { return c.Slug == slug })
		if i < 0 {
			return &model.NotFoundError{Kind: model.KindChore, Slug: slug}
		}
		c := &next.Chores[i]
		if upd.Name != nil {
			c.Name = *upd.Name
		}
		if upd.Description != nil {
			c.Description = *upd.Description
		}
		if upd.Frequency != nil {
			c.Frequency = *upd.Frequency
		}
		if upd.Assignees != nil {
			c.Assignees = slices.Clone(upd.Assignees)
		}
		if upd.Icon != nil {
			c.Icon = *upd.Icon
		}
		if upd.Points != nil {
			c.Points = *upd.Points
		}
		return nil
	})
}

// DeleteChore refuses to remove a chore still linked by a privilege.
func (s *Store) DeleteChore(slug string) (*model.Snapshot, error) {
	slug = model.NormalizeSlug(slug)
	return s.edit(func(next *model.Snapshot) error {
		i := slices.IndexFunc(next.Chores, func(c model.ChoreDefinition) bool { return c.Slug == slug })
		if i < 0 {
			return &model.NotFoundError{Kind: model.KindChore, Slug: slug}
		}
		for _, p := range next.Privileges {
			if p.LinksChore(slug) {
				return &model.ValidationError{
					Field:  "slug",
					Reason: fmt.Sprintf("chore %q is linked by privilege %q", slug, p.Slug),
				}
			}
		}
		next.Chores = slices.Delete(next.Chores, i, i+1)
		return nil
	})
}

func (s *Store) CreatePrivilege(def model.PrivilegeDefinition) (*model.Snapshot, error) {
	def = def.Clone()
	def.Slug = model.NormalizeSlug(def.Slug)
	if def.Slug == "" {
		return nil, &model.ValidationError{Field: "slug", Reason: "slug cannot be empty"}
	}
	return s.edit(func(next *model.Snapshot) error {
		if _, ok := next.Privilege(def.Slug); ok {
			return &model.DuplicateError{Kind: model.KindPrivilege, Slug: def.Slug}
		}
		next.Privileges = append(next.Privileges, def)
		return nil
	})
}

func (s *Store) UpdatePrivilege(slug string, upd PrivilegeUpdate) (*model.Snapshot, error) {
	slug = model.NormalizeSlug(slug)
	return s.edit(func(next *model.Snapshot) error {
		i := slices.IndexFunc(next.Privileges, func(p model.PrivilegeDefinition) bool { return p.Slug == slug })
		if i < 0 {
			return &model.NotFoundError{Kind: model.KindPrivilege, Slug: slug}
		}
		p := &next.Privileges[i]
		if upd.Name != nil {
			p.Name = *upd.Name
		}
		if upd.Icon != nil {
			p.Icon = *upd.Icon
		}
		if upd.Behavior != nil {
			p.Behavior = *upd.Behavior
		}
		if upd.LinkedChores != nil {
			p.LinkedChores = slices.Clone(upd.LinkedChores)
		}
		if upd.Assignees != nil {
			p.Assignees = slices.Clone(upd.Assignees)
		}
		return nil
	})
}

func (s *Store) DeletePrivilege(slug string) (*model.Snapshot, error) {
	slug = model.NormalizeSlug(slug)
	return s.edit(func(next *model.Snapshot) error {
		i := slices.IndexFunc(next.Privileges, func(p model.PrivilegeDefinition) bool { return p.Slug == slug })
		if i < 0 {
			return &model.NotFoundError{Kind: model.KindPrivilege, Slug: slug}
		}
		next.Privileges = slices.Delete(next.Privileges, i, i+1)
		return nil
	})
}
