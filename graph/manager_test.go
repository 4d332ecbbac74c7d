package graph_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cayenne"
	"github.com/syssam/cayenne/graph"
)

// events records the events a handler receives.
type events struct {
	log []string
}

func (e *events) NodeIDChanged(id, newID any) {
	e.log = append(e.log, fmt.Sprintf("id %v->%v", id, newID))
}

func (e *events) NodeCreated(id any) {
	e.log = append(e.log, fmt.Sprintf("create %v", id))
}

func (e *events) NodeRemoved(id any) {
	e.log = append(e.log, fmt.Sprintf("remove %v", id))
}

func (e *events) NodePropertyChanged(id any, property string, oldValue, newValue any) {
	e.log = append(e.log, fmt.Sprintf("set %v.%s %v->%v", id, property, oldValue, newValue))
}

func (e *events) ArcCreated(id, targetID any, arc string) {
	e.log = append(e.log, fmt.Sprintf("link %v.%s %v", id, arc, targetID))
}

func (e *events) ArcDeleted(id, targetID any, arc string) {
	e.log = append(e.log, fmt.Sprintf("unlink %v.%s %v", id, arc, targetID))
}

func TestDiffs(t *testing.T) {
	d := graph.NewCompoundDiff(
		graph.NodeCreate{ID: 1},
		graph.NodePropertyChange{ID: 1, Property: "name", Old: nil, New: "x"},
		graph.NewCompoundDiff(graph.ArcCreate{ID: 1, Target: 2, Arc: "toArtist"}),
		graph.NodeIDChange{ID: 1, NewID: 10},
	)
	require.Equal(t, 4, d.Len())
	assert.False(t, d.IsNoop())

	var applied, undone events
	d.Apply(&applied)
	d.Undo(&undone)
	assert.Equal(t, []string{
		"create 1",
		"set 1.name <nil>->x",
		"link 1.toArtist 2",
		"id 1->10",
	}, applied.log)
	assert.Equal(t, []string{
		"id 10->1",
		"unlink 1.toArtist 2",
		"set 1.name x-><nil>",
		"remove 1",
	}, undone.log)
}

func TestDiffIsNoop(t *testing.T) {
	var nilPtr *int
	assert.True(t, graph.NodePropertyChange{Old: nil, New: nilPtr}.IsNoop())
	assert.True(t, graph.NodePropertyChange{Old: []byte("a"), New: []byte("a")}.IsNoop())
	assert.False(t, graph.NodePropertyChange{Old: 1, New: int64(1)}.IsNoop())
	assert.True(t, graph.NodeIDChange{ID: 1, NewID: 1}.IsNoop())
	assert.False(t, graph.NodeDelete{ID: 1}.IsNoop())
	assert.True(t, graph.NewCompoundDiff().IsNoop())
}

func TestManagerRegistry(t *testing.T) {
	m := graph.NewManager()
	m.RegisterNode("b", "node b")
	m.RegisterNode("a", "node a")
	m.RegisterNode("b", "node b2")

	n, ok := m.Node("b")
	require.True(t, ok)
	assert.Equal(t, "node b2", n)
	assert.Equal(t, []any{"node b2", "node a"}, m.Nodes())
	assert.Equal(t, 2, m.Len())

	n, ok = m.UnregisterNode("b")
	assert.True(t, ok)
	assert.Equal(t, "node b2", n)
	_, ok = m.Node("b")
	assert.False(t, ok)
}

func TestManagerRecord(t *testing.T) {
	m := graph.NewManager()
	assert.False(t, m.HasChanges())

	m.NodeCreated("t1")
	m.NodePropertyChanged("t1", "name", nil, "x")
	m.NodePropertyChanged(1, "name", "a", "b")
	m.Record(graph.ArcCreate{ID: 1, Target: "t1", Arc: "paintings"})

	assert.True(t, m.HasChanges())
	assert.Equal(t, 4, m.Changes().Len())

	changes := m.ObjectChanges()
	require.Len(t, changes, 2)
	assert.Equal(t, "t1", changes[0].ID)
	assert.Equal(t, cayenne.New, changes[0].State)
	assert.Equal(t, 1, changes[1].ID)
	assert.Equal(t, []any{"t1"}, changes[1].Added("paintings"))

	c, ok := m.ObjectChange(1)
	require.True(t, ok)
	assert.Equal(t, "a", c.Snapshot["name"])
	assert.Equal(t, 2, m.ChangeMap().Len())

	m.Reset()
	assert.False(t, m.HasChanges())
	assert.Zero(t, m.Changes().Len())
}

func TestManagerNodeIDChanged(t *testing.T) {
	m := graph.NewManager()
	m.RegisterNode("t1", "painting")
	m.NodeCreated("t1")
	m.ArcCreated(1, "t1", "paintings")

	m.NodeIDChanged("t1", 42)

	_, ok := m.Node("t1")
	assert.False(t, ok)
	n, ok := m.Node(42)
	require.True(t, ok)
	assert.Equal(t, "painting", n)

	c, ok := m.ObjectChange(42)
	require.True(t, ok)
	assert.Equal(t, cayenne.New, c.State)
	c, ok = m.ObjectChange(1)
	require.True(t, ok)
	assert.Equal(t, []any{42}, c.Added("paintings"))
}

func TestManagerRollback(t *testing.T) {
	m := graph.NewManager()
	m.RegisterNode("t1", "painting")
	m.NodeCreated("t1")
	m.NodePropertyChanged(1, "name", "a", "b")
	m.NodeIDChanged("t1", 42)
	m.NodeRemoved(7)

	var h events
	m.Rollback(&h)
	assert.Equal(t, []string{
		"create 7",
		"id 42->t1",
		"set 1.name b->a",
		"remove t1",
	}, h.log)
	assert.False(t, m.HasChanges())
	_, ok := m.Node("t1")
	assert.True(t, ok, "registration follows the reverted id")

	m.NodeCreated(1)
	m.Rollback(nil)
	assert.False(t, m.HasChanges())
}

func TestManagerConcurrent(t *testing.T) {
	m := graph.NewManager()
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RegisterNode(i, i)
			m.NodeCreated(i)
			m.NodePropertyChanged(i, "n", nil, i)
			_ = m.ObjectChanges()
			_ = m.HasChanges()
		}()
	}
	wg.Wait()
	assert.Equal(t, 16, m.Len())
	assert.Len(t, m.ObjectChanges(), 16)
	assert.Equal(t, 32, m.Changes().Len())
}
