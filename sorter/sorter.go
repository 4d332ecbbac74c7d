package sorter

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/syssam/cayenne/exp"
	"github.com/syssam/cayenne/mapping"
)

// ErrCycle is returned when objects of a reflexive entity reference each
// other in a cycle and cannot be ordered.
var ErrCycle = errors.New("sorter: dependency cycle")

// EntitySorter orders entities and objects so that inserts never violate a
// foreign key: referenced rows are inserted before the rows referencing
// them, and deleted after them.
//
// The sorter indexes its data maps lazily on first use and again after
// SetDataMaps. It is safe for concurrent use.
type EntitySorter struct {
	mu        sync.Mutex
	maps      []*mapping.DataMap
	dirty     bool
	index     map[string]int
	reflexive map[string][]*mapping.Relationship
}

// New returns a sorter for the entities of the given data maps.
func New(maps ...*mapping.DataMap) *EntitySorter {
	s := &EntitySorter{}
	s.SetDataMaps(maps...)
	return s
}

// SetDataMaps replaces the data maps and marks the sorter for reindexing.
func (s *EntitySorter) SetDataMaps(maps ...*mapping.DataMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maps = slices.Clone(maps)
	s.dirty = true
}

// Index returns the position of the entity in insert order, or -1 when
// the entity is unknown.
func (s *EntitySorter) Index(entity string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reindex()
	if i, ok := s.index[entity]; ok {
		return i
	}
	return -1
}

// IsReflexive reports whether the entity has a foreign key to itself.
func (s *EntitySorter) IsReflexive(entity string) bool {
	return len(s.ReflexiveRelationships(entity)) > 0
}

// ReflexiveRelationships returns the relationships of the entity that
// point back to it and carry a foreign key.
func (s *EntitySorter) ReflexiveRelationships(entity string) []*mapping.Relationship {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reindex()
	return slices.Clone(s.reflexive[entity])
}

// SortEntities sorts entity names in place. In insert order referenced
// entities come first; delete order is the exact reverse. Unknown entities
// go last in insert order, by name.
func (s *EntitySorter) SortEntities(entities []string, deleteOrder bool) {
	s.mu.Lock()
	s.reindex()
	index := s.index
	s.mu.Unlock()

	rank := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		return len(index)
	}
	sort.SliceStable(entities, func(i, j int) bool {
		a, b := entities[i], entities[j]
		if deleteOrder {
			a, b = b, a
		}
		if ra, rb := rank(a), rank(b); ra != rb {
			return ra < rb
		}
		return a < b
	})
}

// SortObjectsForEntity orders the objects of one entity in place so that
// masters precede the objects referencing them through a reflexive
// relationship, or follow them in delete order. Masters are read with the
// relationship name as an object path. Objects of a non-reflexive entity
// are left untouched.
func SortObjectsForEntity[T comparable](s *EntitySorter, entity string, objects []T, deleteOrder bool) error {
	rels := s.ReflexiveRelationships(entity)
	if len(rels) == 0 || len(objects) < 2 {
		return nil
	}
	pos := make(map[T]int, len(objects))
	for i, o := range objects {
		pos[o] = i
	}
	// dependents[i] lists the objects whose master is objects[i].
	dependents := make([][]int, len(objects))
	indegree := make([]int, len(objects))
	for i, o := range objects {
		for _, rel := range rels {
			v, err := exp.Evaluate(exp.ObjPath(rel.Name), o)
			if err != nil {
				return fmt.Errorf("sorter: reading %s: %w", rel, err)
			}
			master, ok := v.(T)
			if !ok {
				continue
			}
			if j, ok := pos[master]; ok {
				if j == i {
					return fmt.Errorf("%w: %s object references itself through %s", ErrCycle, entity, rel.Name)
				}
				dependents[j] = append(dependents[j], i)
				indegree[i]++
			}
		}
	}
	order := make([]int, 0, len(objects))
	var ready []int
	for i := range objects {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	for len(ready) > 0 {
		slices.Sort(ready)
		i := ready[0]
		ready = ready[1:]
		order = append(order, i)
		for _, d := range dependents[i] {
			if indegree[d]--; indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	if len(order) != len(objects) {
		return fmt.Errorf("%w: sorting objects of %s", ErrCycle, entity)
	}
	sorted := make([]T, len(objects))
	for k, i := range order {
		sorted[k] = objects[i]
	}
	if deleteOrder {
		slices.Reverse(sorted)
	}
	copy(objects, sorted)
	return nil
}

// reindex rebuilds the entity order when the sorter is dirty. It must be
// called with s.mu held.
func (s *EntitySorter) reindex() {
	if !s.dirty && s.index != nil {
		return
	}
	g := buildDigraph(s.maps)
	order := g.sort()
	s.index = make(map[string]int, len(order))
	for i, n := range order {
		s.index[g.nodes[n].name] = i
	}
	s.reflexive = g.reflexive
	s.dirty = false
	slog.Debug("sorter: indexed entities", "count", len(order))
}
