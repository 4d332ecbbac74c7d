package access

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/syssam/cayenne"
	"github.com/syssam/cayenne/dialect/sql"
	"github.com/syssam/cayenne/dialect/sql/adapter"
	"github.com/syssam/cayenne/exp"
	"github.com/syssam/cayenne/mapping"
)

// SelectQuery selects the objects of one entity.
type SelectQuery struct {
	Entity    string
	Qualifier exp.Expression
	Params    map[string]any
	Orderings []adapter.Ordering
	Limit     int
	Offset    int
	// Cache serves the rows from the shared query cache of the domain.
	Cache bool
	// InMemory evaluates the query against the objects registered in the
	// context instead of the database.
	InMemory bool
	// Prefetches lists relationship paths, like "paintings.toGallery",
	// whose targets are read along with the result, one select per hop.
	Prefetches []string
}

// Select runs the query and returns the matching objects registered in the
// context. Rows of objects the context already holds refresh them unless
// they have uncommitted changes. Objects deleted in the context are left
// out.
func (c *DataContext) Select(ctx context.Context, q SelectQuery) ([]*DataObject, error) {
	e, err := c.domain.entity(q.Entity)
	if err != nil {
		return nil, err
	}
	if q.InMemory {
		return c.selectInMemory(e, q)
	}
	if len(e.PrimaryKeys()) == 0 {
		return nil, fmt.Errorf("access: %s has no primary key", e.Name)
	}
	rows, err := c.rows(ctx, e, q)
	if err != nil {
		return nil, err
	}
	objs := make([]*DataObject, 0, len(rows))
	for _, row := range rows {
		o, err := c.materialize(e, row)
		if err != nil {
			return nil, err
		}
		if o.state != cayenne.Deleted {
			objs = append(objs, o)
		}
	}
	for _, path := range q.Prefetches {
		if err := c.prefetch(ctx, objs, path); err != nil {
			return nil, err
		}
	}
	return objs, nil
}

// SelectOne runs the query and returns its only object. It fails with
// cayenne.ErrNotFound or cayenne.ErrNotSingular otherwise.
func (c *DataContext) SelectOne(ctx context.Context, q SelectQuery) (*DataObject, error) {
	objs, err := c.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	switch len(objs) {
	case 0:
		var id any
		if q.Qualifier != nil {
			id = q.Qualifier.String()
		}
		return nil, cayenne.NewNotFoundError(q.Entity, id)
	case 1:
		return objs[0], nil
	default:
		return nil, cayenne.NewNotSingularError(q.Entity, len(objs))
	}
}

// ObjectForPK returns the object with the single column primary key
// value, from the context when registered and from the database
// otherwise.
func (c *DataContext) ObjectForPK(ctx context.Context, entity string, pk any) (*DataObject, error) {
	e, err := c.domain.entity(entity)
	if err != nil {
		return nil, err
	}
	pks := e.PrimaryKeys()
	if len(pks) != 1 {
		return nil, fmt.Errorf("access: %s does not have a single column primary key", e.Name)
	}
	if o, ok := c.Object(cayenne.NewObjectID(e.Name, pk)); ok && o.state != cayenne.Deleted {
		return o, nil
	}
	o, err := c.SelectOne(ctx, SelectQuery{
		Entity:    e.Name,
		Qualifier: exp.MatchDbExp(pks[0].Column, pk),
	})
	if cayenne.IsNotFound(err) {
		return nil, cayenne.NewNotFoundError(e.Name, pk)
	}
	return o, err
}

// cacheKey returns the query cache key of q.
func (c *DataContext) cacheKey(q SelectQuery) (cayenne.CacheKey, error) {
	key := cayenne.CacheKey{
		Entity:  q.Entity,
		Dialect: c.domain.adapter.Name,
		Limit:   q.Limit,
		Offset:  q.Offset,
	}
	if q.Qualifier != nil {
		e, err := exp.Params(q.Qualifier, q.Params, false)
		if err != nil {
			return key, err
		}
		if e != nil {
			key.Qualifier = e.String()
		}
	}
	order := make([]string, len(q.Orderings))
	for i, o := range q.Orderings {
		order[i] = o.Path
		if o.IgnoreCase {
			order[i] = "upper(" + order[i] + ")"
		}
		if o.Desc {
			order[i] += " desc"
		}
	}
	key.OrderBy = strings.Join(order, ",")
	return key, nil
}

// rows returns the raw column values of the selected rows.
func (c *DataContext) rows(ctx context.Context, e *mapping.Entity, q SelectQuery) ([][]any, error) {
	d := c.domain
	if !q.Cache || d.cache == nil {
		return c.query(ctx, e, q)
	}
	k, err := c.cacheKey(q)
	if err != nil {
		return nil, err
	}
	key := k.String()
	switch b, err := d.cache.Get(ctx, key); {
	case err != nil:
		d.logger.WarnContext(ctx, "access: reading query cache", "key", key, "error", err)
	case b != nil:
		rows, err := decodeRows(b)
		if err == nil {
			d.logger.DebugContext(ctx, "access: query cache hit", "key", key, "rows", len(rows))
			return rows, nil
		}
		d.logger.WarnContext(ctx, "access: decoding cached rows", "key", key, "error", err)
	}
	v, err, _ := d.loads.Do(key, func() (any, error) {
		rows, err := c.query(ctx, e, q)
		if err != nil {
			return nil, err
		}
		b, err := encodeRows(rows)
		if err != nil {
			return nil, err
		}
		if err := d.cache.Set(ctx, key, b, d.cacheTTL); err != nil {
			d.logger.WarnContext(ctx, "access: writing query cache", "key", key, "error", err)
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([][]any), nil
}

func (c *DataContext) query(ctx context.Context, e *mapping.Entity, q SelectQuery) ([][]any, error) {
	stmt, err := c.domain.adapter.SelectSQL(adapter.SelectSpec{
		Entity:    e,
		Qualifier: q.Qualifier,
		Params:    q.Params,
		Orderings: q.Orderings,
		Limit:     q.Limit,
		Offset:    q.Offset,
	})
	if err != nil {
		return nil, err
	}
	rows, err := sql.QueryStatement(ctx, c.domain.driver, stmt)
	if err != nil {
		return nil, fmt.Errorf("access: select %s: %w", e.Name, err)
	}
	return sql.ScanValues(rows, len(e.Attributes))
}

// materialize registers the object of a row, or refreshes the registered
// one when it has no uncommitted changes.
func (c *DataContext) materialize(e *mapping.Entity, row []any) (*DataObject, error) {
	values := make(map[string]any, len(e.Attributes))
	for i, a := range e.Attributes {
		v, err := columnValue(a, row[i])
		if err != nil {
			return nil, err
		}
		if v != nil {
			values[a.Name] = v
		}
	}
	id, err := idOf(e, values)
	if err != nil {
		return nil, err
	}
	o, ok := c.Object(id)
	switch {
	case !ok:
		o = NewDataObject(e)
		o.id, o.state, o.context = id, cayenne.Committed, c
		c.graph.RegisterNode(id, o)
	case o.state == cayenne.Committed || o.state == cayenne.Hollow:
		o.state = cayenne.Committed
	default:
		return o, nil
	}
	o.values = values
	for _, rel := range e.ToOne() {
		if !rel.ForeignKey() || !rel.ToPK() {
			continue
		}
		tid, ok := foreignID(rel, values)
		if !ok {
			delete(o.toOne, rel.Name)
			continue
		}
		if t, ok := c.Object(tid); ok {
			o.toOne[rel.Name] = t
		} else if cur := o.toOne[rel.Name]; cur != nil && cur.id != tid {
			delete(o.toOne, rel.Name)
		}
	}
	return o, nil
}

// idOf returns the permanent id of the object holding values.
func idOf(e *mapping.Entity, values map[string]any) (cayenne.ObjectID, error) {
	pks := e.PrimaryKeys()
	key := make(map[string]any, len(pks))
	for _, pk := range pks {
		v, ok := values[pk.Name]
		if !ok {
			return cayenne.ObjectID{}, fmt.Errorf("access: %s row without primary key %s", e.Name, pk.Column)
		}
		key[pk.Column] = v
	}
	return cayenne.NewCompositeID(e.Name, key), nil
}

// foreignID returns the id of the target of a foreign key relationship
// read from the source values.
func foreignID(rel *mapping.Relationship, values map[string]any) (cayenne.ObjectID, bool) {
	src := rel.SourceEntity()
	key := make(map[string]any, len(rel.Joins))
	for _, j := range rel.Joins {
		a := src.AttributeForColumn(j.Source)
		if a == nil {
			return cayenne.ObjectID{}, false
		}
		v, ok := values[a.Name]
		if !ok {
			return cayenne.ObjectID{}, false
		}
		key[j.Target] = v
	}
	return cayenne.NewCompositeID(rel.Target, key), true
}

// selectInMemory evaluates q against the registered objects.
func (c *DataContext) selectInMemory(e *mapping.Entity, q SelectQuery) ([]*DataObject, error) {
	var objs []*DataObject
	for _, o := range c.Objects() {
		if o.entity == e && o.state != cayenne.Deleted {
			objs = append(objs, o)
		}
	}
	if q.Qualifier != nil {
		qual, err := exp.Params(q.Qualifier, q.Params, false)
		if err != nil {
			return nil, err
		}
		if objs, err = exp.Filter(qual, objs); err != nil {
			return nil, err
		}
	}
	if err := sortObjects(objs, q.Orderings); err != nil {
		return nil, err
	}
	if q.Offset > 0 {
		objs = objs[min(q.Offset, len(objs)):]
	}
	if q.Limit > 0 && len(objs) > q.Limit {
		objs = objs[:q.Limit]
	}
	return objs, nil
}

// sortObjects orders objects by the orderings, nulls first.
func sortObjects(objs []*DataObject, orderings []adapter.Ordering) error {
	if len(orderings) == 0 || len(objs) < 2 {
		return nil
	}
	fold := cases.Fold()
	keys := make([][]any, len(objs))
	for i, o := range objs {
		keys[i] = make([]any, len(orderings))
		for j, ord := range orderings {
			v, err := exp.Evaluate(exp.ObjPath(ord.Path), o)
			if err != nil {
				return err
			}
			if s, ok := v.(string); ok && ord.IgnoreCase {
				v = fold.String(s)
			}
			keys[i][j] = v
		}
	}
	idx := make([]int, len(objs))
	for i := range idx {
		idx[i] = i
	}
	var errs []error
	sort.SliceStable(idx, func(a, b int) bool {
		for j, ord := range orderings {
			n, err := exp.Compare(keys[idx[a]][j], keys[idx[b]][j])
			if err != nil {
				errs = append(errs, err)
				return false
			}
			if n == 0 {
				continue
			}
			if ord.Desc {
				return n > 0
			}
			return n < 0
		}
		return false
	})
	if len(errs) > 0 {
		return fmt.Errorf("access: ordering objects: %w", errs[0])
	}
	sorted := make([]*DataObject, len(objs))
	for k, i := range idx {
		sorted[k] = objs[i]
	}
	copy(objs, sorted)
	return nil
}
