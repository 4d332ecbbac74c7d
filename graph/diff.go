package graph

import (
	"reflect"
	"time"
)

// ChangeHandler receives object graph change events. Node and target ids are
// comparable values identifying nodes, and arcs are named by the
// relationship they belong to.
type ChangeHandler interface {
	// NodeIDChanged is called when a node changes its id, for instance when a
	// temporary id is replaced by a permanent one after insert.
	NodeIDChanged(nodeID, newID any)
	// NodeCreated is called when a new node is added to the graph.
	NodeCreated(nodeID any)
	// NodeRemoved is called when a node is deleted from the graph.
	NodeRemoved(nodeID any)
	// NodePropertyChanged is called when a simple property of a node changes.
	NodePropertyChanged(nodeID any, property string, oldValue, newValue any)
	// ArcCreated is called when a relationship between two nodes is set.
	ArcCreated(nodeID, targetID any, arc string)
	// ArcDeleted is called when a relationship between two nodes is unset.
	ArcDeleted(nodeID, targetID any, arc string)
}

// Diff is a reversible change of an object graph.
type Diff interface {
	// Apply replays the change to the handler.
	Apply(ChangeHandler)
	// Undo replays the inverse change to the handler.
	Undo(ChangeHandler)
	// IsNoop reports whether applying the diff changes nothing.
	IsNoop() bool
}

type (
	// NodeCreate records the creation of a node.
	NodeCreate struct {
		ID any
	}

	// NodeDelete records the deletion of a node.
	NodeDelete struct {
		ID any
	}

	// NodeIDChange records a change of node identity.
	NodeIDChange struct {
		ID    any
		NewID any
	}

	// NodePropertyChange records a property value change.
	NodePropertyChange struct {
		ID       any
		Property string
		Old      any
		New      any
	}

	// ArcCreate records a new relationship between two nodes.
	ArcCreate struct {
		ID     any
		Target any
		Arc    string
	}

	// ArcDelete records a removed relationship between two nodes.
	ArcDelete struct {
		ID     any
		Target any
		Arc    string
	}
)

func (d NodeCreate) Apply(h ChangeHandler) { h.NodeCreated(d.ID) }
func (d NodeCreate) Undo(h ChangeHandler)  { h.NodeRemoved(d.ID) }
func (NodeCreate) IsNoop() bool            { return false }

func (d NodeDelete) Apply(h ChangeHandler) { h.NodeRemoved(d.ID) }
func (d NodeDelete) Undo(h ChangeHandler)  { h.NodeCreated(d.ID) }
func (NodeDelete) IsNoop() bool            { return false }

func (d NodeIDChange) Apply(h ChangeHandler) { h.NodeIDChanged(d.ID, d.NewID) }
func (d NodeIDChange) Undo(h ChangeHandler)  { h.NodeIDChanged(d.NewID, d.ID) }
func (d NodeIDChange) IsNoop() bool          { return d.ID == d.NewID }

func (d NodePropertyChange) Apply(h ChangeHandler) {
	h.NodePropertyChanged(d.ID, d.Property, d.Old, d.New)
}

func (d NodePropertyChange) Undo(h ChangeHandler) {
	h.NodePropertyChanged(d.ID, d.Property, d.New, d.Old)
}

func (d NodePropertyChange) IsNoop() bool { return SameValue(d.Old, d.New) }

func (d ArcCreate) Apply(h ChangeHandler) { h.ArcCreated(d.ID, d.Target, d.Arc) }
func (d ArcCreate) Undo(h ChangeHandler)  { h.ArcDeleted(d.ID, d.Target, d.Arc) }
func (ArcCreate) IsNoop() bool            { return false }

func (d ArcDelete) Apply(h ChangeHandler) { h.ArcDeleted(d.ID, d.Target, d.Arc) }
func (d ArcDelete) Undo(h ChangeHandler)  { h.ArcCreated(d.ID, d.Target, d.Arc) }
func (ArcDelete) IsNoop() bool            { return false }

// CompoundDiff is an ordered list of diffs. It is applied in order and
// undone in reverse order.
type CompoundDiff struct {
	diffs []Diff
}

// NewCompoundDiff returns a compound diff of the given diffs.
func NewCompoundDiff(diffs ...Diff) *CompoundDiff {
	c := &CompoundDiff{}
	for _, d := range diffs {
		c.Add(d)
	}
	return c
}

// Add appends a diff. Nested compound diffs are flattened.
func (c *CompoundDiff) Add(d Diff) {
	if nested, ok := d.(*CompoundDiff); ok {
		c.diffs = append(c.diffs, nested.diffs...)
		return
	}
	if d != nil {
		c.diffs = append(c.diffs, d)
	}
}

// Diffs returns the diffs in application order.
func (c *CompoundDiff) Diffs() []Diff {
	return append([]Diff(nil), c.diffs...)
}

// Len returns the number of diffs.
func (c *CompoundDiff) Len() int { return len(c.diffs) }

// Apply applies every diff in order.
func (c *CompoundDiff) Apply(h ChangeHandler) {
	for _, d := range c.diffs {
		d.Apply(h)
	}
}

// Undo undoes every diff in reverse order.
func (c *CompoundDiff) Undo(h ChangeHandler) {
	for i := len(c.diffs) - 1; i >= 0; i-- {
		c.diffs[i].Undo(h)
	}
}

// IsNoop reports whether every diff is a no-op.
func (c *CompoundDiff) IsNoop() bool {
	for _, d := range c.diffs {
		if !d.IsNoop() {
			return false
		}
	}
	return true
}

// SameValue reports whether two property values are the same. Times are
// compared as instants and nil pointers equal nil.
func SameValue(a, b any) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
