package mapping

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownEntity is returned when an entity name does not resolve.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrUnknownProperty is returned when a path component does not resolve.
	ErrUnknownProperty = errors.New("unknown property")
)

// Problem is a single validation finding.
type Problem struct {
	Entity   string
	Property string
	Message  string
}

func (p Problem) String() string {
	switch {
	case p.Entity == "":
		return p.Message
	case p.Property == "":
		return p.Entity + ": " + p.Message
	}
	return p.Entity + "." + p.Property + ": " + p.Message
}

// ValidationResult collects the errors and warnings found by Validate.
type ValidationResult struct {
	Errors   []Problem
	Warnings []Problem
}

// OK reports whether no errors were found.
func (r *ValidationResult) OK() bool { return len(r.Errors) == 0 }

// Err returns the errors as a single error, or nil.
func (r *ValidationResult) Err() error {
	if r.OK() {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, p := range r.Errors {
		msgs[i] = p.String()
	}
	return fmt.Errorf("mapping: invalid data map: %s", strings.Join(msgs, "; "))
}

func (r *ValidationResult) errorf(entity, property, format string, args ...any) {
	r.Errors = append(r.Errors, Problem{Entity: entity, Property: property, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) warnf(entity, property, format string, args ...any) {
	r.Warnings = append(r.Warnings, Problem{Entity: entity, Property: property, Message: fmt.Sprintf(format, args...)})
}

// Validate checks the DataMap for consistency.
func (m *DataMap) Validate() *ValidationResult {
	m.Link()
	r := &ValidationResult{}
	if m.Name == "" {
		r.warnf("", "", "data map has no name")
	}
	names := make(map[string]bool)
	tables := make(map[string]string)
	for _, e := range m.Entities {
		switch {
		case e.Name == "":
			r.errorf("", "", "entity without name")
			continue
		case names[e.Name]:
			r.errorf(e.Name, "", "duplicate entity name")
		}
		names[e.Name] = true
		if e.Table == "" {
			r.errorf(e.Name, "", "no table")
		} else if other, ok := tables[strings.ToUpper(e.QualifiedTable())]; ok {
			r.warnf(e.Name, "", "table %s is also mapped by %s", e.QualifiedTable(), other)
		} else {
			tables[strings.ToUpper(e.QualifiedTable())] = e.Name
		}
		validateAttributes(r, e)
		validateRelationships(r, e)
	}
	return r
}

func validateAttributes(r *ValidationResult, e *Entity) {
	if len(e.PrimaryKeys()) == 0 {
		r.errorf(e.Name, "", "no primary key")
	}
	names := make(map[string]bool)
	columns := make(map[string]bool)
	for _, a := range e.Attributes {
		if a.Name == "" {
			r.errorf(e.Name, "", "attribute without name")
			continue
		}
		if names[a.Name] {
			r.errorf(e.Name, a.Name, "duplicate attribute")
		}
		names[a.Name] = true
		if a.Column == "" {
			r.errorf(e.Name, a.Name, "no column")
		} else if columns[strings.ToUpper(a.Column)] {
			r.errorf(e.Name, a.Name, "column %s is mapped twice", a.Column)
		}
		columns[strings.ToUpper(a.Column)] = true
		if !a.Type.Valid() {
			r.errorf(e.Name, a.Name, "no type")
		}
		if a.Length < 0 || a.Scale < 0 {
			r.errorf(e.Name, a.Name, "negative length or scale")
		}
		if a.Generated && !a.PrimaryKey {
			r.warnf(e.Name, a.Name, "generated attribute is not a primary key")
		}
		if e.Relationship(a.Name) != nil {
			r.errorf(e.Name, a.Name, "attribute and relationship share a name")
		}
	}
}

func validateRelationships(r *ValidationResult, e *Entity) {
	names := make(map[string]bool)
	for _, rel := range e.Relationships {
		if rel.Name == "" {
			r.errorf(e.Name, "", "relationship without name")
			continue
		}
		if names[rel.Name] {
			r.errorf(e.Name, rel.Name, "duplicate relationship")
		}
		names[rel.Name] = true
		if !rel.DeleteRule.Valid() {
			r.errorf(e.Name, rel.Name, "unknown delete rule %q", rel.DeleteRule)
		}
		target := rel.TargetEntity()
		if target == nil {
			r.errorf(e.Name, rel.Name, "unknown target entity %q", rel.Target)
			continue
		}
		if len(rel.Joins) == 0 {
			r.errorf(e.Name, rel.Name, "no joins")
			continue
		}
		for _, j := range rel.Joins {
			if e.AttributeForColumn(j.Source) == nil {
				r.errorf(e.Name, rel.Name, "join source column %s not found in %s", j.Source, e.Name)
			}
			if target.AttributeForColumn(j.Target) == nil {
				r.errorf(e.Name, rel.Name, "join target column %s not found in %s", j.Target, target.Name)
			}
		}
		if rel.ToDependentPK {
			if rel.ToMany {
				r.errorf(e.Name, rel.Name, "to-many relationship cannot be to dependent PK")
			}
			for _, j := range rel.Joins {
				src, dst := e.AttributeForColumn(j.Source), target.AttributeForColumn(j.Target)
				if src != nil && dst != nil && (!src.PrimaryKey || !dst.PrimaryKey) {
					r.errorf(e.Name, rel.Name, "to dependent PK join %s -> %s is not between primary keys", j.Source, j.Target)
				}
			}
		}
		if rel.Reverse() == nil {
			r.warnf(e.Name, rel.Name, "no reverse relationship")
		}
	}
}
