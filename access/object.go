package access

import (
	"fmt"
	"maps"
	"slices"

	"github.com/syssam/cayenne"
	"github.com/syssam/cayenne/exp"
	"github.com/syssam/cayenne/mapping"
)

// DataObject is a generic persistent object: the attribute values of one
// entity row plus its relationships to other objects. DataObjects are
// changed through the DataContext that owns them.
//
// DataObject implements exp.PropertyReader, so expressions can be
// evaluated against it in memory.
type DataObject struct {
	id      cayenne.ObjectID
	entity  *mapping.Entity
	state   cayenne.PersistenceState
	values  map[string]any
	toOne   map[string]*DataObject
	toMany  map[string][]*DataObject
	context *DataContext

	// resolved holds the relationships whose targets were read in full.
	resolved map[string]bool
}

// NewDataObject returns a transient object of the entity. It becomes
// persistent when registered with a DataContext.
func NewDataObject(e *mapping.Entity) *DataObject {
	return &DataObject{
		entity: e,
		values: make(map[string]any),
		toOne:  make(map[string]*DataObject),
		toMany: make(map[string][]*DataObject),

		resolved: make(map[string]bool),
	}
}

// ObjectID returns the id of the object.
func (o *DataObject) ObjectID() cayenne.ObjectID { return o.id }

// Entity returns the mapped entity of the object.
func (o *DataObject) Entity() *mapping.Entity { return o.entity }

// State returns the persistence state of the object.
func (o *DataObject) State() cayenne.PersistenceState { return o.state }

// Context returns the context owning the object, or nil.
func (o *DataObject) Context() *DataContext { return o.context }

// Get returns the value of an attribute, or nil.
func (o *DataObject) Get(name string) any { return o.values[name] }

// Values returns a copy of the attribute values.
func (o *DataObject) Values() map[string]any { return maps.Clone(o.values) }

// ToOne returns the target of a to-one relationship, or nil.
func (o *DataObject) ToOne(name string) *DataObject { return o.toOne[name] }

// ToMany returns the targets of a to-many relationship known to the
// context.
func (o *DataObject) ToMany(name string) []*DataObject { return slices.Clone(o.toMany[name]) }

// ReadProperty implements exp.PropertyReader. To-one relationships read as
// the target object or nil, to-many relationships as a slice of objects.
func (o *DataObject) ReadProperty(name string) (any, error) {
	if v, ok := o.values[name]; ok {
		return v, nil
	}
	if o.entity.Attribute(name) != nil {
		return nil, nil
	}
	rel := o.entity.Relationship(name)
	switch {
	case rel == nil:
		return nil, fmt.Errorf("%w: %q of %s", exp.ErrUnknownProperty, name, o.entity.Name)
	case rel.ToMany:
		targets := o.toMany[name]
		out := make([]any, len(targets))
		for i, t := range targets {
			out[i] = t
		}
		return out, nil
	}
	if t := o.toOne[name]; t != nil {
		return t, nil
	}
	return nil, nil
}

// String implements fmt.Stringer.
func (o *DataObject) String() string {
	return fmt.Sprintf("%s%v[%s]", o.entity.Name, o.id, o.state)
}

// related returns the current targets of a relationship.
func (o *DataObject) related(rel *mapping.Relationship) []*DataObject {
	if rel.ToMany {
		return slices.Clone(o.toMany[rel.Name])
	}
	if t := o.toOne[rel.Name]; t != nil {
		return []*DataObject{t}
	}
	return nil
}

// attach adds target to a relationship in memory.
func (o *DataObject) attach(rel *mapping.Relationship, target *DataObject) {
	if !rel.ToMany {
		o.toOne[rel.Name] = target
		return
	}
	if !slices.Contains(o.toMany[rel.Name], target) {
		o.toMany[rel.Name] = append(o.toMany[rel.Name], target)
	}
}

// detach removes target from a relationship in memory.
func (o *DataObject) detach(rel *mapping.Relationship, target *DataObject) {
	if !rel.ToMany {
		if o.toOne[rel.Name] == target {
			delete(o.toOne, rel.Name)
		}
		return
	}
	o.toMany[rel.Name] = slices.DeleteFunc(o.toMany[rel.Name], func(t *DataObject) bool { return t == target })
}

// keyValue returns the value of a column of the object the way a foreign
// key referencing it reads it. Columns of uncommitted objects are not
// known yet.
func (o *DataObject) keyValue(column string) (any, bool) {
	a := o.entity.AttributeForColumn(column)
	if a == nil {
		return nil, false
	}
	if v, ok := o.values[a.Name]; ok && v != nil {
		return v, true
	}
	if o.id.IsTemporary() || !a.PrimaryKey {
		return nil, false
	}
	if pks := o.entity.PrimaryKeys(); len(pks) == 1 {
		return o.id.Key(), true
	}
	return nil, false
}

var _ exp.PropertyReader = (*DataObject)(nil)
