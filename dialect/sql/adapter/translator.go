package adapter

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/syssam/cayenne"
	"github.com/syssam/cayenne/dialect/sql"
	"github.com/syssam/cayenne/exp"
	"github.com/syssam/cayenne/mapping"
)

// ErrUnboundParam is returned when an expression references a parameter
// that has no value.
var ErrUnboundParam = errors.New("adapter: unbound parameter")

// RootAlias is the alias of the root table of a translated select.
const RootAlias = "t0"

// Join is a table joined to resolve a relationship path.
type Join struct {
	Path         string // relationship path, "+" marking outer steps
	Relationship *mapping.Relationship
	Outer        bool
	Alias        string
	Parent       string // alias of the source table
}

// Table returns the joined table reference.
func (j Join) Table() *sql.SelectTable {
	target := j.Relationship.TargetEntity()
	return sql.Table(target.Table).Schema(target.Schema).As(j.Alias)
}

// On returns the join condition.
func (j Join) On() *sql.Predicate {
	ps := make([]*sql.Predicate, len(j.Relationship.Joins))
	for i, jn := range j.Relationship.Joins {
		ps[i] = sql.ColumnsEQ(j.Parent+"."+jn.Source, j.Alias+"."+jn.Target)
	}
	return sql.And(ps...)
}

// QualifierTranslator lowers expressions rooted at one entity to SQL
// conditions. It implements exp.Visitor for every node type and records
// the joins that paths require, so one translator serves a whole select.
// A translator is not safe for concurrent use.
type QualifierTranslator struct {
	adapter  *Adapter
	root     *mapping.Entity
	rules    Rules
	params   map[string]any
	joins    []Join
	byPath   map[string]int
	distinct bool
	b        *sql.Builder
}

// NewTranslator returns a translator for expressions rooted at entity.
func (a *Adapter) NewTranslator(root *mapping.Entity) *QualifierTranslator {
	return &QualifierTranslator{
		adapter: a,
		root:    root,
		rules:   a.Rules(),
		byPath:  make(map[string]int),
	}
}

// WithParams sets the values of named parameters.
func (t *QualifierTranslator) WithParams(params map[string]any) *QualifierTranslator {
	t.params = params
	return t
}

// Joins returns the joins in first-use order.
func (t *QualifierTranslator) Joins() []Join {
	return append([]Join(nil), t.joins...)
}

// Distinct reports whether a translated path crossed a to-many
// relationship, so the select must remove duplicate rows.
func (t *QualifierTranslator) Distinct() bool { return t.distinct }

func (t *QualifierTranslator) newBuilder() *sql.Builder {
	return sql.NewBuilder(t.adapter.Name).SetQuote(t.adapter.Quote)
}

// Translate lowers a condition to a predicate. A nil expression yields a
// nil predicate.
func (t *QualifierTranslator) Translate(e exp.Expression) (*sql.Predicate, error) {
	if e == nil {
		return nil, nil
	}
	b, err := t.render(e)
	if err != nil {
		return nil, t.errorf(e, err)
	}
	return sql.P(func(out *sql.Builder) {
		if e.Op() == exp.OpOr {
			out.Wrap(func(out *sql.Builder) { out.Join(b) })
			return
		}
		out.Join(b)
	}), nil
}

// Column lowers a path to a column operand, adding the joins it needs.
func (t *QualifierTranslator) Column(p *exp.Path) (Operand, error) {
	o, _, err := t.path(p)
	if err != nil {
		return Operand{}, t.errorf(p, err)
	}
	return o, nil
}

func (t *QualifierTranslator) errorf(e exp.Expression, err error) error {
	var te *cayenne.TranslationError
	if errors.As(err, &te) {
		return err
	}
	return &cayenne.TranslationError{Dialect: t.adapter.Name, Expr: e.String(), Err: err}
}

// render visits e into a new builder.
func (t *QualifierTranslator) render(e exp.Expression) (*sql.Builder, error) {
	saved := t.b
	t.b = t.newBuilder()
	defer func() { t.b = saved }()
	if err := e.Accept(t); err != nil {
		return nil, err
	}
	return t.b, nil
}

// operand renders e as an operand. Values are bound with the type of the
// column hint.
func (t *QualifierTranslator) operand(e exp.Expression, hint *mapping.Attribute) (Operand, error) {
	switch e := e.(type) {
	case *exp.Path:
		o, _, err := t.path(e)
		return o, err
	case *exp.Scalar:
		return t.bound(e.Value(), hint)
	case *exp.Param:
		v, err := t.param(e)
		if err != nil {
			return Operand{}, err
		}
		return t.bound(v, hint)
	}
	b, err := t.render(e)
	if err != nil {
		return Operand{}, err
	}
	if compound(e) {
		w := t.newBuilder()
		w.Wrap(func(w *sql.Builder) { w.Join(b) })
		b = w
	}
	return Operand{SQL: b}, nil
}

// compound reports whether e needs parentheses when used as an operand.
func compound(e exp.Expression) bool {
	switch e.(type) {
	case *exp.Path, *exp.Scalar, *exp.Param, *exp.List, *exp.Bool:
		return false
	}
	return true
}

func (t *QualifierTranslator) bound(v any, hint *mapping.Attribute) (Operand, error) {
	v, err := value(v)
	if err != nil {
		return Operand{}, err
	}
	b := t.newBuilder()
	bd := sql.Binding{Value: v}
	if hint != nil {
		bd.Type, bd.Column = hint.Type, hint.Column
	}
	b.Bind(bd)
	return Operand{SQL: b}, nil
}

func (t *QualifierTranslator) param(p *exp.Param) (any, error) {
	v, ok := t.params[p.Name()]
	if !ok {
		return nil, fmt.Errorf("%w: $%s", ErrUnboundParam, p.Name())
	}
	return v, nil
}

// identified is implemented by persistent objects.
type identified interface {
	ObjectID() cayenne.ObjectID
}

// value converts objects and object ids compared with relationship paths
// to their primary key value.
func value(v any) (any, error) {
	if o, ok := v.(identified); ok && !isNil(o) {
		v = o.ObjectID()
	}
	id, ok := v.(cayenne.ObjectID)
	if !ok {
		return v, nil
	}
	switch id.Key().(type) {
	case cayenne.TempKey:
		return nil, fmt.Errorf("adapter: %s is not committed and has no primary key", id)
	case cayenne.CompositeKey:
		return nil, fmt.Errorf("adapter: %s has a compound primary key", id)
	}
	return id.Key(), nil
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

// isNull reports whether e is the NULL value.
func (t *QualifierTranslator) isNull(e exp.Expression) bool {
	switch e := e.(type) {
	case *exp.Scalar:
		return e.IsNull()
	case *exp.Param:
		v, ok := t.params[e.Name()]
		return ok && isNil(v)
	}
	return false
}

// path resolves a path to a column, joining the relationships it crosses.
// It returns the operand and the alias of the column's table.
func (t *QualifierTranslator) path(p *exp.Path) (Operand, string, error) {
	var (
		res *mapping.Resolved
		err error
	)
	if p.IsDB() {
		res, err = t.root.ResolveDB(p.Path())
	} else {
		res, err = t.root.Resolve(p.Path())
	}
	if err != nil {
		return Operand{}, "", err
	}
	steps, attr := res.Steps, res.Attribute
	if attr == nil {
		// The path ends with a relationship and is compared with the key of
		// the target. A to-one relationship reads its own foreign key.
		last := steps[len(steps)-1]
		rel := last.Relationship
		switch pks := rel.TargetEntity().PrimaryKeys(); {
		case len(pks) != 1:
			return Operand{}, "", fmt.Errorf("adapter: relationship %s has a compound key", rel)
		case !rel.ToMany && !last.Outer && len(rel.Joins) == 1:
			steps = steps[:len(steps)-1]
			attr = rel.SourceEntity().AttributeForColumn(rel.Joins[0].Source)
		default:
			attr = pks[0]
		}
		if attr == nil {
			return Operand{}, "", fmt.Errorf("adapter: join column of %s is not mapped", rel)
		}
	}
	alias := RootAlias
	var key strings.Builder
	for _, s := range steps {
		if key.Len() > 0 {
			key.WriteByte('.')
		}
		key.WriteString(s.Relationship.Name)
		if s.Outer {
			key.WriteByte('+')
		}
		alias = t.join(key.String(), s, alias)
	}
	b := t.newBuilder()
	b.Ident(alias + "." + attr.Column)
	return Operand{SQL: b, Attr: attr}, alias, nil
}

func (t *QualifierTranslator) join(key string, s mapping.Step, parent string) string {
	if i, ok := t.byPath[key]; ok {
		return t.joins[i].Alias
	}
	if s.Relationship.ToMany {
		t.distinct = true
	}
	j := Join{
		Path:         key,
		Relationship: s.Relationship,
		Outer:        s.Outer,
		Alias:        "t" + strconv.Itoa(len(t.joins)+1),
		Parent:       parent,
	}
	t.byPath[key] = len(t.joins)
	t.joins = append(t.joins, j)
	return j.Alias
}

// VisitPath writes the column of the path.
func (t *QualifierTranslator) VisitPath(p *exp.Path) error {
	o, _, err := t.path(p)
	if err != nil {
		return err
	}
	t.b.Join(o.SQL)
	return nil
}

// VisitScalar writes an untyped parameter.
func (t *QualifierTranslator) VisitScalar(s *exp.Scalar) error {
	o, err := t.bound(s.Value(), nil)
	if err != nil {
		return err
	}
	t.b.Join(o.SQL)
	return nil
}

// VisitList writes a parenthesized list of parameters.
func (t *QualifierTranslator) VisitList(l *exp.List) error {
	return t.list(l.Items(), nil)
}

func (t *QualifierTranslator) list(items []exp.Expression, hint *mapping.Attribute) error {
	ops := make([]Operand, len(items))
	for i, item := range items {
		o, err := t.operand(item, hint)
		if err != nil {
			return err
		}
		ops[i] = o
	}
	t.b.Wrap(func(b *sql.Builder) {
		for i, o := range ops {
			if i > 0 {
				b.Comma()
			}
			b.Join(o.SQL)
		}
	})
	return nil
}

// VisitParam writes the bound value of the parameter.
func (t *QualifierTranslator) VisitParam(p *exp.Param) error {
	o, err := t.operand(p, nil)
	if err != nil {
		return err
	}
	t.b.Join(o.SQL)
	return nil
}

// VisitBool writes an always true or always false condition.
func (t *QualifierTranslator) VisitBool(b *exp.Bool) error {
	if b.Value() {
		t.b.WriteString("1=1")
	} else {
		t.b.WriteString("1=0")
	}
	return nil
}

// VisitUnary writes NOT or an arithmetic negation.
func (t *QualifierTranslator) VisitUnary(u *exp.UnaryExpr) error {
	if u.Op() == exp.OpNot {
		x, err := t.render(u.X())
		if err != nil {
			return err
		}
		t.b.WriteString("NOT ").Wrap(func(b *sql.Builder) { b.Join(x) })
		return nil
	}
	x, err := t.operand(u.X(), nil)
	if err != nil {
		return err
	}
	t.b.WriteString(u.Op().SQL()).Join(x.SQL)
	return nil
}

// VisitBinary writes a comparison or an arithmetic operation.
func (t *QualifierTranslator) VisitBinary(e *exp.BinaryExpr) error {
	if op := e.Op(); op == exp.OpEQ || op == exp.OpNEQ {
		if ln, rn := t.isNull(e.L()), t.isNull(e.R()); ln || rn {
			return t.nullCheck(op, e.L(), e.R(), ln, rn)
		}
	}
	l, r, err := t.operands(e.L(), e.R())
	if err != nil {
		return err
	}
	if e.Op().IsComparison() {
		t.rules.Compare(t.b, Comparison{Op: e.Op(), L: l, R: r})
		return nil
	}
	t.b.Join(l.SQL).WriteByte(' ').WriteString(e.Op().SQL()).WriteByte(' ').Join(r.SQL)
	return nil
}

// nullCheck writes IS [NOT] NULL for a comparison with NULL. NULL equals
// NULL, as it does in memory.
func (t *QualifierTranslator) nullCheck(op exp.Op, l, r exp.Expression, ln, rn bool) error {
	if ln && rn {
		if op == exp.OpEQ {
			t.b.WriteString("1=1")
		} else {
			t.b.WriteString("1=0")
		}
		return nil
	}
	x := l
	if ln {
		x = r
	}
	o, err := t.operand(x, nil)
	if err != nil {
		return err
	}
	t.b.Join(o.SQL)
	if op == exp.OpEQ {
		t.b.WriteString(" IS NULL")
	} else {
		t.b.WriteString(" IS NOT NULL")
	}
	return nil
}

// operands renders two operands. Paths are resolved first so a value on
// either side is bound with the type of the column on the other.
func (t *QualifierTranslator) operands(l, r exp.Expression) (lo, ro Operand, err error) {
	if _, ok := r.(*exp.Path); ok {
		if _, ok := l.(*exp.Path); !ok {
			if ro, err = t.operand(r, nil); err != nil {
				return
			}
			lo, err = t.operand(l, ro.Attr)
			return
		}
	}
	if lo, err = t.operand(l, nil); err != nil {
		return
	}
	ro, err = t.operand(r, lo.Attr)
	return
}

// VisitNary writes a conjunction or disjunction. Nested disjunctions are
// parenthesized.
func (t *QualifierTranslator) VisitNary(n *exp.NaryExpr) error {
	for i, x := range n.Operands() {
		b, err := t.render(x)
		if err != nil {
			return err
		}
		if i > 0 {
			t.b.WriteByte(' ').WriteString(n.Op().SQL()).WriteByte(' ')
		}
		if x.Op() == exp.OpOr || x.Op() == exp.OpAnd {
			t.b.Wrap(func(out *sql.Builder) { out.Join(b) })
		} else {
			t.b.Join(b)
		}
	}
	return nil
}

// VisitBetween writes [NOT] BETWEEN.
func (t *QualifierTranslator) VisitBetween(e *exp.BetweenExpr) error {
	x, err := t.operand(e.X(), nil)
	if err != nil {
		return err
	}
	lo, err := t.operand(e.Lower(), x.Attr)
	if err != nil {
		return err
	}
	hi, err := t.operand(e.Upper(), x.Attr)
	if err != nil {
		return err
	}
	t.b.Join(x.SQL).WriteByte(' ').WriteString(e.Op().SQL()).WriteByte(' ').
		Join(lo.SQL).WriteString(" AND ").Join(hi.SQL)
	return nil
}

// VisitIn writes [NOT] IN. An empty set is always false for IN and always
// true for NOT IN.
func (t *QualifierTranslator) VisitIn(e *exp.InExpr) error {
	var items []exp.Expression
	switch set := e.Set().(type) {
	case *exp.List:
		items = set.Items()
	case *exp.Param:
		v, err := t.param(set)
		if err != nil {
			return err
		}
		items = expand(v)
	default:
		items = []exp.Expression{set}
	}
	if len(items) == 0 {
		if e.Negated() {
			t.b.WriteString("1=1")
		} else {
			t.b.WriteString("1=0")
		}
		return nil
	}
	x, err := t.operand(e.X(), nil)
	if err != nil {
		return err
	}
	t.b.Join(x.SQL).WriteByte(' ').WriteString(e.Op().SQL()).WriteByte(' ')
	return t.list(items, x.Attr)
}

// expand turns a slice parameter into value nodes.
func expand(v any) []exp.Expression {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []exp.Expression{exp.Value(v)}
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return []exp.Expression{exp.Value(v)}
	}
	items := make([]exp.Expression, rv.Len())
	for i := range items {
		items[i] = exp.Value(rv.Index(i).Interface())
	}
	return items
}

// VisitLike writes a pattern match through the dialect rules.
func (t *QualifierTranslator) VisitLike(e *exp.LikeExpr) error {
	x, err := t.operand(e.X(), nil)
	if err != nil {
		return err
	}
	p, err := t.operand(e.Pattern(), x.Attr)
	if err != nil {
		return err
	}
	t.rules.Like(t.b, Match{
		X:          x,
		Pattern:    p,
		Negated:    e.Negated(),
		IgnoreCase: e.IgnoreCase(),
		Escape:     e.Escape(),
	})
	return nil
}

var _ exp.Visitor = (*QualifierTranslator)(nil)
