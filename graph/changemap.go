package graph

import (
	"maps"
	"slices"
	"sort"

	"github.com/syssam/cayenne"
)

// Arc is one end of a relationship change.
type Arc struct {
	Name   string
	Target any
}

// ObjectChange is the merged change of one node since the last commit.
type ObjectChange struct {
	ID    any
	State cayenne.PersistenceState // New, Modified or Deleted

	// Snapshot holds the value each changed property had before its first
	// change. Properties holds the latest values.
	Snapshot   map[string]any
	Properties map[string]any

	ArcsAdded   []Arc
	ArcsRemoved []Arc

	seq uint64
}

// Empty reports whether a modified node has no remaining changes.
func (c *ObjectChange) Empty() bool {
	return c.State == cayenne.Modified && len(c.Properties) == 0 &&
		len(c.ArcsAdded) == 0 && len(c.ArcsRemoved) == 0
}

// Clone returns a deep copy of the change.
func (c *ObjectChange) Clone() *ObjectChange {
	cp := *c
	cp.Snapshot = maps.Clone(c.Snapshot)
	cp.Properties = maps.Clone(c.Properties)
	cp.ArcsAdded = slices.Clone(c.ArcsAdded)
	cp.ArcsRemoved = slices.Clone(c.ArcsRemoved)
	return &cp
}

// Added returns the targets added to the named arc.
func (c *ObjectChange) Added(arc string) []any {
	return arcTargets(c.ArcsAdded, arc)
}

// Removed returns the targets removed from the named arc.
func (c *ObjectChange) Removed(arc string) []any {
	return arcTargets(c.ArcsRemoved, arc)
}

func arcTargets(arcs []Arc, name string) []any {
	var targets []any
	for _, a := range arcs {
		if a.Name == name {
			targets = append(targets, a.Target)
		}
	}
	return targets
}

// ChangeMap merges graph events into one ObjectChange per node. It
// implements ChangeHandler. A ChangeMap is not safe for concurrent use;
// Manager serializes access to the one it owns.
type ChangeMap struct {
	changes map[any]*ObjectChange
	seq     uint64
}

// NewChangeMap returns an empty change map.
func NewChangeMap() *ChangeMap {
	return &ChangeMap{changes: make(map[any]*ObjectChange)}
}

// Len returns the number of changed nodes.
func (m *ChangeMap) Len() int { return len(m.changes) }

// Get returns the change of a node.
func (m *ChangeMap) Get(id any) (*ObjectChange, bool) {
	c, ok := m.changes[id]
	return c, ok
}

// Changes returns copies of all changes in the order the nodes were first
// changed.
func (m *ChangeMap) Changes() []*ObjectChange {
	out := make([]*ObjectChange, 0, len(m.changes))
	for _, c := range m.changes {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Clear removes all changes.
func (m *ChangeMap) Clear() {
	clear(m.changes)
}

func (m *ChangeMap) entry(id any) *ObjectChange {
	c, ok := m.changes[id]
	if !ok {
		m.seq++
		c = &ObjectChange{ID: id, State: cayenne.Modified, seq: m.seq}
		m.changes[id] = c
	}
	return c
}

func (m *ChangeMap) dropIfEmpty(c *ObjectChange) {
	if c.Empty() {
		delete(m.changes, c.ID)
	}
}

// NodeIDChanged moves the change of a node to its new id and rewrites every
// arc that referenced the old id.
func (m *ChangeMap) NodeIDChanged(id, newID any) {
	if id == newID {
		return
	}
	if c, ok := m.changes[id]; ok {
		delete(m.changes, id)
		c.ID = newID
		m.changes[newID] = c
	}
	for _, c := range m.changes {
		rekeyArcs(c.ArcsAdded, id, newID)
		rekeyArcs(c.ArcsRemoved, id, newID)
	}
}

func rekeyArcs(arcs []Arc, id, newID any) {
	for i := range arcs {
		if arcs[i].Target == id {
			arcs[i].Target = newID
		}
	}
}

// NodeCreated marks a node as new. A node deleted and created again within
// one unit of work becomes modified.
func (m *ChangeMap) NodeCreated(id any) {
	c, ok := m.changes[id]
	if ok && c.State == cayenne.Deleted {
		c.State = cayenne.Modified
		m.dropIfEmpty(c)
		return
	}
	m.entry(id).State = cayenne.New
}

// NodeRemoved marks a node as deleted. Deleting a new node cancels its
// change entirely, together with the arcs other nodes had to it.
func (m *ChangeMap) NodeRemoved(id any) {
	c := m.entry(id)
	if c.State != cayenne.New {
		c.State = cayenne.Deleted
		return
	}
	delete(m.changes, id)
	for _, other := range m.changes {
		other.ArcsAdded = slices.DeleteFunc(other.ArcsAdded, func(a Arc) bool { return a.Target == id })
		other.ArcsRemoved = slices.DeleteFunc(other.ArcsRemoved, func(a Arc) bool { return a.Target == id })
		m.dropIfEmpty(other)
	}
}

// NodePropertyChanged records a property change keeping the first old
// value. A property of an existing node set back to its snapshot value is
// no longer a change.
func (m *ChangeMap) NodePropertyChanged(id any, property string, oldValue, newValue any) {
	c := m.entry(id)
	if c.Snapshot == nil {
		c.Snapshot = make(map[string]any)
		c.Properties = make(map[string]any)
	}
	if _, ok := c.Snapshot[property]; !ok {
		c.Snapshot[property] = oldValue
	}
	c.Properties[property] = newValue
	if c.State != cayenne.New && SameValue(c.Snapshot[property], newValue) {
		delete(c.Snapshot, property)
		delete(c.Properties, property)
		m.dropIfEmpty(c)
	}
}

// ArcCreated records a new arc, cancelling a pending removal of the same arc.
func (m *ChangeMap) ArcCreated(id, targetID any, arc string) {
	c := m.entry(id)
	a := Arc{Name: arc, Target: targetID}
	if i := slices.Index(c.ArcsRemoved, a); i >= 0 {
		c.ArcsRemoved = slices.Delete(c.ArcsRemoved, i, i+1)
		m.dropIfEmpty(c)
		return
	}
	if !slices.Contains(c.ArcsAdded, a) {
		c.ArcsAdded = append(c.ArcsAdded, a)
	}
}

// ArcDeleted records a removed arc, cancelling a pending creation of the
// same arc.
func (m *ChangeMap) ArcDeleted(id, targetID any, arc string) {
	c := m.entry(id)
	a := Arc{Name: arc, Target: targetID}
	if i := slices.Index(c.ArcsAdded, a); i >= 0 {
		c.ArcsAdded = slices.Delete(c.ArcsAdded, i, i+1)
		m.dropIfEmpty(c)
		return
	}
	if !slices.Contains(c.ArcsRemoved, a) {
		c.ArcsRemoved = append(c.ArcsRemoved, a)
	}
}
