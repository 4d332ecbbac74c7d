package access

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/cayenne"
	"github.com/syssam/cayenne/exp"
	"github.com/syssam/cayenne/graph"
	"github.com/syssam/cayenne/mapping"
)

// Related returns the targets of a relationship of o, reading the ones
// not yet registered from the database first.
func (c *DataContext) Related(ctx context.Context, o *DataObject, name string) ([]*DataObject, error) {
	if err := c.own(o); err != nil {
		return nil, err
	}
	rel := o.entity.Relationship(name)
	if rel == nil {
		return nil, fmt.Errorf("access: %w: relationship %q of %s", mapping.ErrUnknownProperty, name, o.entity.Name)
	}
	if err := c.resolve(ctx, []*DataObject{o}, rel); err != nil {
		return nil, err
	}
	return o.related(rel), nil
}

// prefetch resolves a dotted relationship path for the objects of one
// entity, hop by hop.
func (c *DataContext) prefetch(ctx context.Context, objs []*DataObject, path string) error {
	for name := range strings.SplitSeq(path, ".") {
		if len(objs) == 0 {
			return nil
		}
		rel := objs[0].entity.Relationship(name)
		if rel == nil {
			return fmt.Errorf("access: %w: prefetch %q of %s", mapping.ErrUnknownProperty, path, objs[0].entity.Name)
		}
		if err := c.resolve(ctx, objs, rel); err != nil {
			return err
		}
		var next []*DataObject
		seen := make(map[*DataObject]bool)
		for _, o := range objs {
			for _, t := range o.related(rel) {
				if !seen[t] {
					seen[t] = true
					next = append(next, t)
				}
			}
		}
		objs = next
	}
	return nil
}

// resolve reads the targets of rel for the stored objects among objs in
// one select and links them in memory. Relationships resolved before and
// to-one relationships already set are skipped. Nothing is recorded as a
// change:
// targets with uncommitted changes keep their state, and a to-one
// relationship already set or changed in the context is left alone.
func (c *DataContext) resolve(ctx context.Context, objs []*DataObject, rel *mapping.Relationship) error {
	target, err := c.domain.entity(rel.Target)
	if err != nil {
		return err
	}
	if len(rel.Joins) == 0 || len(target.PrimaryKeys()) == 0 {
		return nil
	}
	var (
		srcs  []*DataObject
		keys  []cayenne.ObjectID
		quals []exp.Expression
		seen  = make(map[cayenne.ObjectID]bool)
	)
	for _, o := range objs {
		switch {
		case o.id.IsTemporary(), o.state == cayenne.Transient, o.resolved[rel.Name]:
			continue
		case !rel.ToMany && o.toOne[rel.Name] != nil:
			continue
		}
		vals, ok := joinValues(o, rel.Joins, true)
		if !ok {
			continue
		}
		k := joinKey(vals)
		srcs, keys = append(srcs, o), append(keys, k)
		if seen[k] {
			continue
		}
		seen[k] = true
		and := make([]exp.Expression, len(rel.Joins))
		for i, j := range rel.Joins {
			and[i] = exp.MatchDbExp(j.Target, vals[i])
		}
		quals = append(quals, exp.And(and...))
	}
	if len(quals) == 0 {
		return nil
	}
	rows, err := c.query(ctx, target, SelectQuery{Entity: target.Name, Qualifier: exp.Or(quals...)})
	if err != nil {
		return err
	}
	found := make(map[cayenne.ObjectID][]*DataObject)
	for _, row := range rows {
		t, err := c.materialize(target, row)
		if err != nil {
			return err
		}
		if t.state != cayenne.Committed {
			continue
		}
		vals, ok := joinValues(t, rel.Joins, false)
		if !ok {
			continue
		}
		k := joinKey(vals)
		found[k] = append(found[k], t)
	}
	rev := rel.Reverse()
	for i, o := range srcs {
		o.resolved[rel.Name] = true
		for _, t := range found[keys[i]] {
			if !rel.ToMany && (o.toOne[rel.Name] != nil || c.arcChanged(o, rel.Name)) {
				continue
			}
			o.attach(rel, t)
			if rev != nil && (rev.ToMany || t.toOne[rev.Name] == nil) {
				t.attach(rev, o)
			}
		}
	}
	c.domain.logger.DebugContext(ctx, "access: resolved relationship", "relationship", rel.String(), "objects", len(srcs), "rows", len(rows))
	return nil
}

// joinValues returns the values of the join columns on the source or the
// target side.
func joinValues(o *DataObject, joins []mapping.Join, source bool) ([]any, bool) {
	vals := make([]any, len(joins))
	for i, j := range joins {
		col := j.Target
		if source {
			col = j.Source
		}
		v, ok := o.keyValue(col)
		if !ok {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}

// joinKey folds join values into a comparable key, normalized the way
// object ids are.
func joinKey(vals []any) cayenne.ObjectID {
	m := make(map[string]any, len(vals))
	for i, v := range vals {
		m[strconv.Itoa(i)] = v
	}
	return cayenne.NewCompositeID("", m)
}

// arcChanged reports whether the context recorded a change of the named
// relationship of o.
func (c *DataContext) arcChanged(o *DataObject, name string) bool {
	ch, ok := c.graph.ObjectChange(o.id)
	if !ok {
		return false
	}
	for _, arcs := range [][]graph.Arc{ch.ArcsAdded, ch.ArcsRemoved} {
		for _, a := range arcs {
			if a.Name == name {
				return true
			}
		}
	}
	return false
}
