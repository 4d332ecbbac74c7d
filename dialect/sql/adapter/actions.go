package adapter

import (
	"fmt"
	"strings"

	"github.com/syssam/cayenne/dialect/sql"
	"github.com/syssam/cayenne/exp"
	"github.com/syssam/cayenne/mapping"
)

// Ordering sorts selected rows by a path. A "db:" prefix marks a DB path.
type Ordering struct {
	Path       string
	Desc       bool
	IgnoreCase bool
}

// Asc returns an ascending ordering.
func Asc(path string) Ordering { return Ordering{Path: path} }

// Desc returns a descending ordering.
func Desc(path string) Ordering { return Ordering{Path: path, Desc: true} }

func (o Ordering) expr() *exp.Path {
	if p, ok := strings.CutPrefix(o.Path, "db:"); ok {
		return exp.DbPath(p)
	}
	return exp.ObjPath(o.Path)
}

// SelectSpec describes a select of the rows of one entity.
type SelectSpec struct {
	Entity    *mapping.Entity
	Qualifier exp.Expression
	Params    map[string]any
	Orderings []Ordering
	Limit     int
	Offset    int
	ForUpdate bool
}

// SelectSQL builds the select of all columns of the entity matching the
// qualifier.
func (a *Adapter) SelectSQL(spec SelectSpec) (*sql.Statement, error) {
	e := spec.Entity
	if e == nil {
		return nil, fmt.Errorf("adapter: select without entity")
	}
	t := a.NewTranslator(e).WithParams(spec.Params)
	where, err := t.Translate(spec.Qualifier)
	if err != nil {
		return nil, err
	}
	root := sql.Table(e.Table).Schema(e.Schema).As(RootAlias)
	columns := make([]string, len(e.Attributes))
	for i, attr := range e.Attributes {
		columns[i] = root.C(attr.Column)
	}
	sel := a.builder().Select(columns...).From(root)
	var extra []*sql.Predicate
	for _, o := range spec.Orderings {
		op, alias, err := t.path(o.expr())
		if err != nil {
			return nil, t.errorf(o.expr(), err)
		}
		if o.IgnoreCase {
			op = op.Wrap("UPPER(", ")")
		}
		if alias != RootAlias || o.IgnoreCase {
			extra = append(extra, sql.P(func(b *sql.Builder) { b.Join(op.SQL) }))
		}
		desc := o.Desc
		sel.OrderByExpr(sql.P(func(b *sql.Builder) {
			b.Join(op.SQL)
			if desc {
				b.WriteString(" DESC")
			}
		}))
	}
	for _, j := range t.Joins() {
		if j.Outer {
			sel.LeftJoin(j.Table())
		} else {
			sel.Join(j.Table())
		}
		sel.OnP(j.On())
	}
	if t.Distinct() {
		// Ordered expressions must be selected by a DISTINCT select.
		sel.Distinct().AppendSelectExpr(extra...)
	}
	sel.Where(where).Limit(spec.Limit).Offset(spec.Offset).Paginate(a.paginator())
	if spec.ForUpdate {
		sel.ForUpdate()
	}
	return sel.Build()
}

// InsertStatement is the insert of one row.
type InsertStatement struct {
	*sql.Statement
	// Generated lists the generated primary key columns the insert left to
	// the database.
	Generated []*mapping.Attribute
	// Returning reports whether the statement returns the generated columns.
	Returning bool
	// IdentityQuery, when set, reads the generated key after the insert
	// ran on the same connection.
	IdentityQuery string
}

// InsertSQL builds the insert of one row. Values are keyed by column name.
func (a *Adapter) InsertSQL(e *mapping.Entity, values map[string]any) (*InsertStatement, error) {
	ins := a.builder().Insert(e.Table).Schema(e.Schema)
	var (
		row []any
		out = &InsertStatement{}
	)
	for _, attr := range e.Attributes {
		v, ok := values[attr.Column]
		if !ok {
			if attr.PrimaryKey && attr.Generated {
				out.Generated = append(out.Generated, attr)
			}
			continue
		}
		ins.Columns(attr.Column)
		row = append(row, sql.Binding{Value: v, Type: attr.Type, Column: attr.Column})
	}
	if err := checkColumns(e, values, len(row)); err != nil {
		return nil, err
	}
	if len(row) == 0 {
		ins.Default()
	} else {
		ins.Values(row...)
	}
	if len(out.Generated) > 0 {
		switch a.Keys {
		case KeysReturning:
			cols := make([]string, len(out.Generated))
			for i, attr := range out.Generated {
				cols[i] = attr.Column
			}
			ins.Returning(cols...)
			out.Returning = sql.SupportsReturning(a.Name)
		case KeysNone:
			return nil, fmt.Errorf("adapter: %s can not read back the generated key %s of %s", a.Name, out.Generated[0].Column, e.Name)
		case KeysIdentityQuery:
			out.IdentityQuery = a.IdentityQuery
		}
		if !out.Returning && len(out.Generated) > 1 {
			return nil, fmt.Errorf("adapter: %s can read back one generated key, %s has %d", a.Name, e.Name, len(out.Generated))
		}
	}
	stmt, err := ins.Build()
	if err != nil {
		return nil, err
	}
	out.Statement = stmt
	return out, nil
}

// UpdateSQL builds the update of one row identified by its primary key.
// Values and key are keyed by column name; a nil value sets NULL. Key may
// also hold the expected values of locking attributes, where nil expects
// NULL.
func (a *Adapter) UpdateSQL(e *mapping.Entity, values, key map[string]any) (*sql.Statement, error) {
	upd := a.builder().Update(e.Table).Schema(e.Schema)
	n := 0
	for _, attr := range e.Attributes {
		v, ok := values[attr.Column]
		if !ok {
			continue
		}
		n++
		if v == nil {
			upd.SetNull(attr.Column)
			continue
		}
		upd.Set(attr.Column, sql.Binding{Value: v, Type: attr.Type, Column: attr.Column})
	}
	if err := checkColumns(e, values, n); err != nil {
		return nil, err
	}
	where, err := keyPredicate(e, key)
	if err != nil {
		return nil, err
	}
	return upd.Where(where).Build()
}

// DeleteSQL builds the delete of one row identified by its primary key and
// the expected values of its locking attributes.
func (a *Adapter) DeleteSQL(e *mapping.Entity, key map[string]any) (*sql.Statement, error) {
	where, err := keyPredicate(e, key)
	if err != nil {
		return nil, err
	}
	return a.builder().Delete(e.Table).Schema(e.Schema).Where(where).Build()
}

func keyPredicate(e *mapping.Entity, key map[string]any) (*sql.Predicate, error) {
	pks := e.PrimaryKeys()
	if len(pks) == 0 {
		return nil, fmt.Errorf("adapter: %s has no primary key", e.Name)
	}
	ps := make([]*sql.Predicate, len(pks))
	for i, pk := range pks {
		v, ok := key[pk.Column]
		if !ok || isNil(v) {
			return nil, fmt.Errorf("adapter: missing primary key %s of %s", pk.Column, e.Name)
		}
		ps[i] = sql.EQ(pk.Column, sql.Binding{Value: v, Type: pk.Type, Column: pk.Column})
	}
	for _, a := range e.LockingAttributes() {
		v, ok := key[a.Column]
		switch {
		case !ok:
		case isNil(v):
			ps = append(ps, sql.IsNull(a.Column))
		default:
			ps = append(ps, sql.EQ(a.Column, sql.Binding{Value: v, Type: a.Type, Column: a.Column}))
		}
	}
	return sql.And(ps...), nil
}

// checkColumns fails when values hold columns the entity does not map.
func checkColumns(e *mapping.Entity, values map[string]any, used int) error {
	if used == len(values) {
		return nil
	}
	for col := range values {
		if e.AttributeForColumn(col) == nil || e.AttributeForColumn(col).Column != col {
			return fmt.Errorf("adapter: %s has no column %s", e.Name, col)
		}
	}
	return nil
}
