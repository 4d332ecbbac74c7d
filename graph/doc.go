// Package graph tracks changes of an object graph.
//
// Nodes are identified by comparable ids and connected by named arcs. Every
// change is described by a Diff that can be applied to or undone on a
// ChangeHandler:
//
//	NodeCreate{ID}                        a node was created
//	NodeDelete{ID}                        a node was deleted
//	NodeIDChange{ID, NewID}               a node changed identity
//	NodePropertyChange{ID, Property, ...} a property value changed
//	ArcCreate{ID, Target, Arc}            a relationship was set
//	ArcDelete{ID, Target, Arc}            a relationship was unset
//
// # Manager
//
// A Manager registers nodes by id and records every event it receives:
//
//	m := graph.NewManager()
//	m.RegisterNode(id, obj)
//	m.NodeCreated(id)
//	m.NodePropertyChanged(id, "name", nil, "Picasso")
//
//	for _, c := range m.ObjectChanges() {
//	    // c.State is New, Modified or Deleted
//	}
//
// Events are merged per node in a ChangeMap: repeated property changes keep
// the first old value, an arc created and deleted again cancels out, and a
// node created and deleted in the same unit of work disappears. When a
// temporary id is replaced after insert, NodeIDChanged moves the change
// entry, the registration and every arc pointing at the node.
//
// Rollback replays the inverse of the recorded diffs in reverse order so
// the caller can restore node state.
package graph
