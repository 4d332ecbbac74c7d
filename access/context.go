package access

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/syssam/cayenne"
	"github.com/syssam/cayenne/graph"
	"github.com/syssam/cayenne/mapping"
)

// ErrDeleteDenied is returned by Delete when a relationship with the deny
// delete rule still has targets.
var ErrDeleteDenied = errors.New("access: delete denied")

// DataContext is an object context: it registers the objects of one unit
// of work, records their changes in a graph.Manager and commits them in
// one transaction. Many contexts may work concurrently on one domain, but
// a DataContext itself is not safe for concurrent use.
type DataContext struct {
	domain *DataDomain
	graph  *graph.Manager
}

func newContext(d *DataDomain) *DataContext {
	return &DataContext{domain: d, graph: graph.NewManager()}
}

// Domain returns the domain the context belongs to.
func (c *DataContext) Domain() *DataDomain { return c.domain }

// NewObject creates and registers a new object of the named entity.
func (c *DataContext) NewObject(entity string) (*DataObject, error) {
	e, err := c.domain.entity(entity)
	if err != nil {
		return nil, err
	}
	o := NewDataObject(e)
	if err := c.Register(o); err != nil {
		return nil, err
	}
	return o, nil
}

// Register makes a transient object new in this context. Its attribute
// values set so far are recorded as changes.
func (c *DataContext) Register(o *DataObject) error {
	if o.state != cayenne.Transient || o.context != nil {
		return fmt.Errorf("%w: registering %s object", cayenne.ErrInvalidState, o.state)
	}
	if e := c.domain.dataMap.Entity(o.entity.Name); e != o.entity {
		return fmt.Errorf("access: %s is not mapped by the domain", o.entity.Name)
	}
	o.id = cayenne.NewTemporaryID(o.entity.Name)
	o.state = cayenne.New
	o.context = c
	c.graph.RegisterNode(o.id, o)
	c.graph.NodeCreated(o.id)
	for _, a := range o.entity.Attributes {
		if v, ok := o.values[a.Name]; ok && v != nil {
			c.graph.NodePropertyChanged(o.id, a.Name, nil, v)
		}
	}
	return nil
}

// Object returns the registered object with the id.
func (c *DataContext) Object(id cayenne.ObjectID) (*DataObject, bool) {
	n, ok := c.graph.Node(id)
	if !ok {
		return nil, false
	}
	return n.(*DataObject), true
}

// Objects returns the registered objects in registration order. Deleted
// objects are included until committed.
func (c *DataContext) Objects() []*DataObject {
	nodes := c.graph.Nodes()
	objs := make([]*DataObject, 0, len(nodes))
	for _, n := range nodes {
		if o := n.(*DataObject); o.state != cayenne.Transient {
			objs = append(objs, o)
		}
	}
	return objs
}

// HasChanges reports whether the context has uncommitted changes.
func (c *DataContext) HasChanges() bool {
	return c.graph.HasChanges()
}

// Changes returns the uncommitted changes merged per object.
func (c *DataContext) Changes() []*graph.ObjectChange {
	return c.graph.ObjectChanges()
}

func (c *DataContext) own(o *DataObject) error {
	if o == nil {
		return errors.New("access: nil object")
	}
	if o.context != c {
		return fmt.Errorf("%w: %s is not registered in this context", cayenne.ErrInvalidState, o)
	}
	if o.state == cayenne.Deleted {
		return fmt.Errorf("%w: %s is deleted", cayenne.ErrInvalidState, o)
	}
	return nil
}

// touch marks a committed object as modified.
func touch(o *DataObject) {
	if o.state == cayenne.Committed || o.state == cayenne.Hollow {
		o.state = cayenne.Modified
	}
}

// Set changes the value of an attribute.
func (c *DataContext) Set(o *DataObject, name string, value any) error {
	if err := c.own(o); err != nil {
		return err
	}
	if o.entity.Attribute(name) == nil {
		return fmt.Errorf("access: %w: attribute %q of %s", mapping.ErrUnknownProperty, name, o.entity.Name)
	}
	old := o.values[name]
	if graph.SameValue(old, value) {
		return nil
	}
	o.values[name] = value
	touch(o)
	c.graph.NodePropertyChanged(o.id, name, old, value)
	return nil
}

func (c *DataContext) relationship(o *DataObject, name string, toMany bool) (*mapping.Relationship, error) {
	if err := c.own(o); err != nil {
		return nil, err
	}
	rel := o.entity.Relationship(name)
	switch {
	case rel == nil:
		return nil, fmt.Errorf("access: %w: relationship %q of %s", mapping.ErrUnknownProperty, name, o.entity.Name)
	case rel.ToMany != toMany:
		return nil, fmt.Errorf("access: %s is not a to-%s relationship", rel, map[bool]string{true: "many", false: "one"}[toMany])
	}
	return rel, nil
}

func (c *DataContext) checkTarget(rel *mapping.Relationship, target *DataObject) error {
	if err := c.own(target); err != nil {
		return err
	}
	if target.entity.Name != rel.Target {
		return fmt.Errorf("access: %s can not point to %s", rel, target.entity.Name)
	}
	return nil
}

// SetToOne sets the target of a to-one relationship. A nil target unsets
// it. The reverse relationship is updated too.
func (c *DataContext) SetToOne(o *DataObject, name string, target *DataObject) error {
	rel, err := c.relationship(o, name, false)
	if err != nil {
		return err
	}
	if target != nil {
		if err := c.checkTarget(rel, target); err != nil {
			return err
		}
	}
	old := o.toOne[name]
	if old == target {
		return nil
	}
	if old != nil {
		c.unlink(o, rel, old)
	}
	if target != nil {
		c.link(o, rel, target)
	}
	return nil
}

// AddToMany adds a target to a to-many relationship. The reverse
// relationship is updated too.
func (c *DataContext) AddToMany(o *DataObject, name string, target *DataObject) error {
	rel, err := c.relationship(o, name, true)
	if err != nil {
		return err
	}
	if err := c.checkTarget(rel, target); err != nil {
		return err
	}
	if !slices.Contains(o.toMany[name], target) {
		c.link(o, rel, target)
	}
	return nil
}

// RemoveToMany removes a target from a to-many relationship. The reverse
// relationship is updated too.
func (c *DataContext) RemoveToMany(o *DataObject, name string, target *DataObject) error {
	rel, err := c.relationship(o, name, true)
	if err != nil {
		return err
	}
	if target == nil || !slices.Contains(o.toMany[name], target) {
		return nil
	}
	c.unlink(o, rel, target)
	return nil
}

// link connects o and target through rel and its reverse relationship. A
// to-one reverse pointing elsewhere is unlinked first.
func (c *DataContext) link(o *DataObject, rel *mapping.Relationship, target *DataObject) {
	rev := rel.Reverse()
	if rev != nil && !rev.ToMany {
		if prev := target.toOne[rev.Name]; prev != nil && prev != o {
			c.unlink(target, rev, prev)
		}
	}
	o.attach(rel, target)
	touch(o)
	c.graph.ArcCreated(o.id, target.id, rel.Name)
	if rev != nil {
		target.attach(rev, o)
		touch(target)
		c.graph.ArcCreated(target.id, o.id, rev.Name)
	}
}

// unlink disconnects o and target through rel and its reverse.
func (c *DataContext) unlink(o *DataObject, rel *mapping.Relationship, target *DataObject) {
	o.detach(rel, target)
	touch(o)
	c.graph.ArcDeleted(o.id, target.id, rel.Name)
	if rev := rel.Reverse(); rev != nil {
		target.detach(rev, o)
		touch(target)
		c.graph.ArcDeleted(target.id, o.id, rev.Name)
	}
}

// Delete marks an object for deletion and applies the delete rules of its
// relationships: cascade deletes the targets, deny fails while targets
// exist, and the other rules unlink them. Targets of cascade, deny and
// nullify relationships that are not registered yet are read from the
// database first. Deleting a new object cancels its insert.
func (c *DataContext) Delete(ctx context.Context, o *DataObject) error {
	if o != nil && o.context == c && o.state == cayenne.Deleted {
		return nil
	}
	if err := c.own(o); err != nil {
		return err
	}
	var (
		order   []*DataObject
		deleted = make(map[*DataObject]bool)
	)
	var collect func(*DataObject) error
	collect = func(x *DataObject) error {
		if deleted[x] || x.state == cayenne.Deleted {
			return nil
		}
		deleted[x] = true
		order = append(order, x)
		for _, rel := range x.entity.Relationships {
			if rel.DeleteRule == mapping.NoAction {
				continue
			}
			if err := c.resolve(ctx, []*DataObject{x}, rel); err != nil {
				return err
			}
			if rel.DeleteRule != mapping.Cascade {
				continue
			}
			for _, t := range x.related(rel) {
				if err := collect(t); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := collect(o); err != nil {
		return err
	}
	for _, x := range order {
		for _, rel := range x.entity.Relationships {
			if rel.DeleteRule != mapping.Deny {
				continue
			}
			for _, t := range x.related(rel) {
				if !deleted[t] {
					return fmt.Errorf("%w: %s still has %s %s", ErrDeleteDenied, x, rel.Name, t)
				}
			}
		}
	}
	for _, x := range order {
		for _, rel := range x.entity.Relationships {
			for _, t := range x.related(rel) {
				if !deleted[t] {
					c.unlink(x, rel, t)
				}
			}
		}
		if x.state == cayenne.New {
			x.state = cayenne.Transient
		} else {
			x.state = cayenne.Deleted
		}
		c.graph.NodeRemoved(x.id)
	}
	return nil
}

// Rollback discards all uncommitted changes and restores the objects to
// their committed state. New objects become transient.
func (c *DataContext) Rollback() {
	c.graph.Rollback(&restorer{c: c})
	c.settle()
}

// settle moves the registered objects to their state after a commit or
// rollback and forgets transient ones.
func (c *DataContext) settle() {
	for _, n := range c.graph.Nodes() {
		o := n.(*DataObject)
		switch {
		case o.state == cayenne.Transient || o.id.IsTemporary():
			c.graph.UnregisterNode(o.id)
			o.state, o.context = cayenne.Transient, nil
		case o.state != cayenne.Hollow:
			o.state = cayenne.Committed
		}
	}
}

// restorer replays undone changes onto the objects.
type restorer struct {
	c *DataContext
}

func (r *restorer) object(id any) *DataObject {
	n, ok := r.c.graph.Node(id)
	if !ok {
		return nil
	}
	return n.(*DataObject)
}

func (r *restorer) NodeIDChanged(_, newID any) {
	if o := r.object(newID); o != nil {
		o.id = newID.(cayenne.ObjectID)
	}
}

func (r *restorer) NodeCreated(id any) {
	if o := r.object(id); o != nil {
		o.state = cayenne.Committed
	}
}

func (r *restorer) NodeRemoved(id any) {
	if o := r.object(id); o != nil {
		o.state = cayenne.Transient
	}
}

func (r *restorer) NodePropertyChanged(id any, property string, _, newValue any) {
	if o := r.object(id); o != nil {
		if newValue == nil {
			delete(o.values, property)
		} else {
			o.values[property] = newValue
		}
	}
}

func (r *restorer) ArcCreated(id, targetID any, arc string) {
	o, t := r.object(id), r.object(targetID)
	if o == nil || t == nil {
		return
	}
	if rel := o.entity.Relationship(arc); rel != nil {
		o.attach(rel, t)
	}
}

func (r *restorer) ArcDeleted(id, targetID any, arc string) {
	o, t := r.object(id), r.object(targetID)
	if o == nil || t == nil {
		return
	}
	if rel := o.entity.Relationship(arc); rel != nil {
		o.detach(rel, t)
	}
}

var _ graph.ChangeHandler = (*restorer)(nil)
