package mapping

import (
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/cayenne/schema/field"
)

type (
	// DataMap is a named set of mapped entities.
	DataMap struct {
		Name     string    `yaml:"name"`
		Entities []*Entity `yaml:"entities"`
	}

	// Entity maps a persistent class to a table.
	Entity struct {
		Name          string          `yaml:"name"`
		Table         string          `yaml:"table,omitempty"`
		Schema        string          `yaml:"schema,omitempty"`
		Attributes    []*Attribute    `yaml:"attributes"`
		Relationships []*Relationship `yaml:"relationships,omitempty"`

		dataMap *DataMap
	}

	// Attribute maps a property to a column.
	Attribute struct {
		Name       string     `yaml:"name"`
		Column     string     `yaml:"column,omitempty"`
		Type       field.Type `yaml:"type"`
		Length     int        `yaml:"length,omitempty"`
		Scale      int        `yaml:"scale,omitempty"`
		PrimaryKey bool       `yaml:"primaryKey,omitempty"`
		Generated  bool       `yaml:"generated,omitempty"`
		Mandatory  bool       `yaml:"mandatory,omitempty"`
		// UsedForLocking adds the committed value of the attribute to the
		// row qualifier of updates and deletes.
		UsedForLocking bool `yaml:"usedForLocking,omitempty"`

		entity *Entity
	}

	// Relationship connects two entities through one or more column joins.
	Relationship struct {
		Name          string     `yaml:"name"`
		Target        string     `yaml:"target"`
		ToMany        bool       `yaml:"toMany,omitempty"`
		ToDependentPK bool       `yaml:"toDependentPK,omitempty"`
		DeleteRule    DeleteRule `yaml:"deleteRule,omitempty"`
		Joins         []Join     `yaml:"joins,omitempty"`

		entity *Entity
	}

	// Join pairs a source column with a target column.
	Join struct {
		Source string `yaml:"source"`
		Target string `yaml:"target"`
	}
)

// DeleteRule tells what happens to related objects when an object is
// deleted.
type DeleteRule string

// Delete rules.
const (
	NoAction DeleteRule = ""
	Nullify  DeleteRule = "nullify"
	Cascade  DeleteRule = "cascade"
	Deny     DeleteRule = "deny"
)

// Valid reports whether r is a known delete rule.
func (r DeleteRule) Valid() bool {
	switch r {
	case NoAction, Nullify, Cascade, Deny:
		return true
	}
	return false
}

// New returns a linked DataMap.
func New(name string, entities ...*Entity) *DataMap {
	m := &DataMap{Name: name, Entities: entities}
	m.Link()
	return m
}

// Link sets the back references from entities, attributes and
// relationships to their owners. It must be called after the DataMap is
// modified by hand; New, Parse and Load call it.
func (m *DataMap) Link() {
	for _, e := range m.Entities {
		e.dataMap = m
		for _, a := range e.Attributes {
			a.entity = e
		}
		for _, r := range e.Relationships {
			r.entity = e
		}
	}
}

// Entity returns the entity with the given name or nil.
func (m *DataMap) Entity(name string) *Entity {
	for _, e := range m.Entities {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// EntityForTable returns the entity mapped to the table or nil. Table
// names compare case-insensitively.
func (m *DataMap) EntityForTable(table string) *Entity {
	for _, e := range m.Entities {
		if strings.EqualFold(e.Table, table) || strings.EqualFold(e.QualifiedTable(), table) {
			return e
		}
	}
	return nil
}

// Index returns the declaration index of the named entity or -1.
func (m *DataMap) Index(name string) int {
	return slices.IndexFunc(m.Entities, func(e *Entity) bool { return e.Name == name })
}

// EntityNames returns the entity names in declaration order.
func (m *DataMap) EntityNames() []string {
	names := make([]string, len(m.Entities))
	for i, e := range m.Entities {
		names[i] = e.Name
	}
	return names
}

// DataMap returns the owning DataMap.
func (e *Entity) DataMap() *DataMap { return e.dataMap }

// QualifiedTable returns the table name prefixed with the schema if any.
func (e *Entity) QualifiedTable() string {
	if e.Schema == "" {
		return e.Table
	}
	return e.Schema + "." + e.Table
}

// Attribute returns the named attribute or nil.
func (e *Entity) Attribute(name string) *Attribute {
	for _, a := range e.Attributes {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// AttributeForColumn returns the attribute mapped to the column or nil.
// Column names compare case-insensitively.
func (e *Entity) AttributeForColumn(column string) *Attribute {
	for _, a := range e.Attributes {
		if strings.EqualFold(a.Column, column) {
			return a
		}
	}
	return nil
}

// Relationship returns the named relationship or nil.
func (e *Entity) Relationship(name string) *Relationship {
	for _, r := range e.Relationships {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// PrimaryKeys returns the primary key attributes in declaration order.
func (e *Entity) PrimaryKeys() []*Attribute {
	var pks []*Attribute
	for _, a := range e.Attributes {
		if a.PrimaryKey {
			pks = append(pks, a)
		}
	}
	return pks
}

// LockingAttributes returns the non key attributes used for optimistic
// locking.
func (e *Entity) LockingAttributes() []*Attribute {
	var out []*Attribute
	for _, a := range e.Attributes {
		if a.UsedForLocking && !a.PrimaryKey {
			out = append(out, a)
		}
	}
	return out
}

// Columns returns the column names in declaration order.
func (e *Entity) Columns() []string {
	cols := make([]string, len(e.Attributes))
	for i, a := range e.Attributes {
		cols[i] = a.Column
	}
	return cols
}

// ToOne returns the to-one relationships in declaration order.
func (e *Entity) ToOne() []*Relationship {
	var rels []*Relationship
	for _, r := range e.Relationships {
		if !r.ToMany {
			rels = append(rels, r)
		}
	}
	return rels
}

// String implements fmt.Stringer.
func (e *Entity) String() string { return e.Name }

// Entity returns the owning entity.
func (a *Attribute) Entity() *Entity { return a.entity }

// String implements fmt.Stringer.
func (a *Attribute) String() string {
	if a.entity == nil {
		return a.Name
	}
	return a.entity.Name + "." + a.Name
}

// SourceEntity returns the entity the relationship belongs to.
func (r *Relationship) SourceEntity() *Entity { return r.entity }

// TargetEntity returns the entity the relationship points to or nil.
func (r *Relationship) TargetEntity() *Entity {
	if r.entity == nil || r.entity.dataMap == nil {
		return nil
	}
	return r.entity.dataMap.Entity(r.Target)
}

// Reverse returns the relationship of the target entity whose joins mirror
// this one, or nil.
func (r *Relationship) Reverse() *Relationship {
	return r.ReverseIn(r.TargetEntity())
}

// ReverseIn is Reverse with the target entity resolved by the caller, for
// relationships pointing into another DataMap.
func (r *Relationship) ReverseIn(target *Entity) *Relationship {
	if target == nil || r.entity == nil {
		return nil
	}
	for _, rr := range target.Relationships {
		if rr.Target == r.entity.Name && rr != r && mirrors(r.Joins, rr.Joins) {
			return rr
		}
	}
	return nil
}

func mirrors(a, b []Join) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	for _, j := range a {
		if !slices.ContainsFunc(b, func(k Join) bool {
			return strings.EqualFold(j.Source, k.Target) && strings.EqualFold(j.Target, k.Source)
		}) {
			return false
		}
	}
	return true
}

// ToPK reports whether every join points at a primary key column of the
// target, i.e. the source holds the foreign key.
func (r *Relationship) ToPK() bool {
	return r.toPK(r.TargetEntity())
}

func (r *Relationship) toPK(target *Entity) bool {
	if target == nil || len(r.Joins) == 0 {
		return false
	}
	for _, j := range r.Joins {
		a := target.AttributeForColumn(j.Target)
		if a == nil || !a.PrimaryKey {
			return false
		}
	}
	return true
}

// ToMasterPK reports whether the reverse relationship is a to-dependent-PK
// relationship, i.e. the source primary key is derived from the target's.
func (r *Relationship) ToMasterPK() bool {
	rev := r.Reverse()
	return rev != nil && rev.ToDependentPK
}

// ForeignKey reports whether the source side of the relationship holds the
// foreign key columns and must be inserted after the target.
func (r *Relationship) ForeignKey() bool {
	return r.ForeignKeyTo(r.TargetEntity())
}

// ForeignKeyTo is ForeignKey against an explicitly resolved target.
func (r *Relationship) ForeignKeyTo(target *Entity) bool {
	if r.ToDependentPK || target == nil {
		return false
	}
	if !r.ToMany && r.toPK(target) {
		return true
	}
	rev := r.ReverseIn(target)
	return rev != nil && rev.ToDependentPK
}

// String implements fmt.Stringer.
func (r *Relationship) String() string {
	if r.entity == nil {
		return r.Name
	}
	return r.entity.Name + "." + r.Name
}

// Step is one relationship hop of a resolved path.
type Step struct {
	Relationship *Relationship
	Outer        bool
}

// Resolved is a path resolved against an entity. Attribute is nil when the
// path ends with a relationship.
type Resolved struct {
	Steps     []Step
	Attribute *Attribute
	Entity    *Entity
}

// Last returns the last relationship step, if any.
func (r *Resolved) Last() (Step, bool) {
	if len(r.Steps) == 0 {
		return Step{}, false
	}
	return r.Steps[len(r.Steps)-1], true
}

// ToMany reports whether any step is a to-many relationship.
func (r *Resolved) ToMany() bool {
	return slices.ContainsFunc(r.Steps, func(s Step) bool { return s.Relationship.ToMany })
}

// Resolve resolves a dotted object path such as "toArtist.artistName" or
// "paintings+.paintingTitle", where a trailing "+" marks an outer join.
func (e *Entity) Resolve(path string) (*Resolved, error) {
	return e.resolve(path, (*Entity).Attribute)
}

// ResolveDB resolves a dotted db path whose last component is a column
// name, such as "toArtist.ARTIST_NAME".
func (e *Entity) ResolveDB(path string) (*Resolved, error) {
	return e.resolve(path, (*Entity).AttributeForColumn)
}

func (e *Entity) resolve(path string, attr func(*Entity, string) *Attribute) (*Resolved, error) {
	if path == "" {
		return nil, fmt.Errorf("mapping: empty path on %s", e.Name)
	}
	res := &Resolved{Entity: e}
	parts := strings.Split(path, ".")
	for i, part := range parts {
		name, outer := strings.CutSuffix(part, "+")
		last := i == len(parts)-1
		if last && !outer {
			if a := attr(res.Entity, name); a != nil {
				res.Attribute = a
				return res, nil
			}
		}
		rel := res.Entity.Relationship(name)
		if rel == nil {
			return nil, fmt.Errorf("mapping: %w: %q in path %q of %s", ErrUnknownProperty, name, path, e.Name)
		}
		target := rel.TargetEntity()
		if target == nil {
			return nil, fmt.Errorf("mapping: %w: %q of relationship %s", ErrUnknownEntity, rel.Target, rel)
		}
		res.Steps = append(res.Steps, Step{Relationship: rel, Outer: outer})
		res.Entity = target
	}
	return res, nil
}
