package graph

import (
	"sort"
	"sync"
)

// Manager is an object graph manager. It keeps the registry of nodes by
// id and records every change event it receives, both merged per node in a
// ChangeMap and verbatim in an ordered diff log that can be rolled back.
//
// Manager implements ChangeHandler and is safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	nodes   map[any]registered
	seq     uint64
	changes *ChangeMap
	log     []Diff
}

type registered struct {
	node any
	seq  uint64
}

// NewManager returns an empty graph manager.
func NewManager() *Manager {
	return &Manager{
		nodes:   make(map[any]registered),
		changes: NewChangeMap(),
	}
}

// RegisterNode registers a node under the given id, replacing any node
// registered under the same id.
func (m *Manager) RegisterNode(id, node any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.nodes[id]; ok {
		r.node = node
		m.nodes[id] = r
		return
	}
	m.seq++
	m.nodes[id] = registered{node: node, seq: m.seq}
}

// UnregisterNode removes a node from the registry and returns it.
func (m *Manager) UnregisterNode(id any) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.nodes[id]
	delete(m.nodes, id)
	return r.node, ok
}

// Node returns the node registered under id.
func (m *Manager) Node(id any) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.nodes[id]
	return r.node, ok
}

// Nodes returns all registered nodes in registration order.
func (m *Manager) Nodes() []any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rs := make([]registered, 0, len(m.nodes))
	for _, r := range m.nodes {
		rs = append(rs, r)
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].seq < rs[j].seq })
	nodes := make([]any, len(rs))
	for i, r := range rs {
		nodes[i] = r.node
	}
	return nodes
}

// Len returns the number of registered nodes.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// HasChanges reports whether there are uncommitted changes.
func (m *Manager) HasChanges() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.changes.Len() > 0
}

// Changes returns the recorded diffs in the order they happened.
func (m *Manager) Changes() *CompoundDiff {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return NewCompoundDiff(m.log...)
}

// ChangeMap returns a copy of the merged changes.
func (m *Manager) ChangeMap() *ChangeMap {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := &ChangeMap{changes: make(map[any]*ObjectChange, m.changes.Len()), seq: m.changes.seq}
	for id, c := range m.changes.changes {
		cp.changes[id] = c.Clone()
	}
	return cp
}

// ObjectChanges returns the merged changes in first-change order.
func (m *Manager) ObjectChanges() []*ObjectChange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.changes.Changes()
}

// ObjectChange returns a copy of the merged change of one node.
func (m *Manager) ObjectChange(id any) (*ObjectChange, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.changes.Get(id)
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Reset forgets all recorded changes, typically after a successful commit.
// Registered nodes are kept.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

func (m *Manager) reset() {
	m.changes.Clear()
	m.log = nil
}

// Rollback forgets all recorded changes and replays their inverse in
// reverse order to h, which is expected to restore node state. Id changes
// are also reverted in the registry. h may be nil.
func (m *Manager) Rollback(h ChangeHandler) {
	m.mu.Lock()
	log := m.log
	m.reset()
	m.mu.Unlock()
	NewCompoundDiff(log...).Undo(&rollback{m: m, h: h})
}

// Record applies d to the manager.
func (m *Manager) Record(d Diff) {
	d.Apply(m)
}

func (m *Manager) record(d Diff) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, d)
	d.Apply(m.changes)
}

// NodeIDChanged records an id change and moves the node registration to
// the new id.
func (m *Manager) NodeIDChanged(id, newID any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rekey(id, newID)
	d := NodeIDChange{ID: id, NewID: newID}
	m.log = append(m.log, d)
	d.Apply(m.changes)
}

func (m *Manager) rekey(id, newID any) {
	if r, ok := m.nodes[id]; ok && id != newID {
		delete(m.nodes, id)
		m.nodes[newID] = r
	}
}

// NodeCreated records a node creation.
func (m *Manager) NodeCreated(id any) {
	m.record(NodeCreate{ID: id})
}

// NodeRemoved records a node deletion.
func (m *Manager) NodeRemoved(id any) {
	m.record(NodeDelete{ID: id})
}

// NodePropertyChanged records a property change.
func (m *Manager) NodePropertyChanged(id any, property string, oldValue, newValue any) {
	m.record(NodePropertyChange{ID: id, Property: property, Old: oldValue, New: newValue})
}

// ArcCreated records a new arc.
func (m *Manager) ArcCreated(id, targetID any, arc string) {
	m.record(ArcCreate{ID: id, Target: targetID, Arc: arc})
}

// ArcDeleted records a removed arc.
func (m *Manager) ArcDeleted(id, targetID any, arc string) {
	m.record(ArcDelete{ID: id, Target: targetID, Arc: arc})
}

// rollback reverts registry id changes and forwards every event.
type rollback struct {
	m *Manager
	h ChangeHandler
}

func (r *rollback) NodeIDChanged(id, newID any) {
	r.m.mu.Lock()
	r.m.rekey(id, newID)
	r.m.mu.Unlock()
	if r.h != nil {
		r.h.NodeIDChanged(id, newID)
	}
}

func (r *rollback) NodeCreated(id any) {
	if r.h != nil {
		r.h.NodeCreated(id)
	}
}

func (r *rollback) NodeRemoved(id any) {
	if r.h != nil {
		r.h.NodeRemoved(id)
	}
}

func (r *rollback) NodePropertyChanged(id any, property string, oldValue, newValue any) {
	if r.h != nil {
		r.h.NodePropertyChanged(id, property, oldValue, newValue)
	}
}

func (r *rollback) ArcCreated(id, targetID any, arc string) {
	if r.h != nil {
		r.h.ArcCreated(id, targetID, arc)
	}
}

func (r *rollback) ArcDeleted(id, targetID any, arc string) {
	if r.h != nil {
		r.h.ArcDeleted(id, targetID, arc)
	}
}

var (
	_ ChangeHandler = (*Manager)(nil)
	_ ChangeHandler = (*ChangeMap)(nil)
	_ Diff          = (*CompoundDiff)(nil)
)
