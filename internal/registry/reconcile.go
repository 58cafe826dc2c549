// Package registry owns the live chore and privilege entities and keeps
// them in line with the active configuration snapshot.
package registry

import "github.com/dukerupert/simplechores/internal/model"

// Definition is a configured item that fans out to one entity per assignee.
type Definition interface {
	ID() string
	AssignedTo() []string
}

// Entity is a live runtime object identified only by its key.
type Entity[D Definition] interface {
	EntityKey() model.Key
	SetDefinition(def D)
}

// Result lists the reconciled entity set in snapshot order plus the
// membership changes relative to the old set.
type Result[E any] struct {
	Entities []E
	Added    []E
	Removed  []E
	Updated  []E
}

// Reconcile diffs old against defs. Entities whose key survives keep their
// object, and with it their runtime state, but receive the new definition.
// New keys are built with create. Entities are ordered by definition order
// then assignee order; removals keep their old relative order.
func Reconcile[D Definition, E Entity[D]](old []E, defs []D, create func(model.Key, D) E) Result[E] {
	existing := make(map[model.Key]E, len(old))
	for _, e := range old {
		existing[e.EntityKey()] = e
	}

	var res Result[E]
	expected := make(map[model.Key]struct{})
	for _, def := range defs {
		for _, assignee := range def.AssignedTo() {
			key := model.Key{Assignee: assignee, Slug: def.ID()}
			if _, dup := expected[key]; dup {
				continue
			}
			expected[key] = struct{}{}

			if e, ok := existing[key]; ok {
				e.SetDefinition(def)
				res.Entities = append(res.Entities, e)
				res.Updated = append(res.Updated, e)
				continue
			}
			e := create(key, def)
			res.Entities = append(res.Entities, e)
			res.Added = append(res.Added, e)
		}
	}

	for _, e := range old {
		if _, ok := expected[e.EntityKey()]; !ok {
			res.Removed = append(res.Removed, e)
		}
	}
	return res
}
