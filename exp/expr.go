package exp

import (
	"reflect"
	"strings"
)

// Expression is an immutable node of an expression tree. The set of node
// types is closed: every Expression is one of *Path, *Scalar, *List, *Param,
// *Bool, *UnaryExpr, *BinaryExpr, *NaryExpr, *BetweenExpr, *InExpr or *LikeExpr.
type Expression interface {
	// Op returns the node kind.
	Op() Op
	// Accept dispatches to the Visitor method of the node type.
	Accept(Visitor) error
	// String encodes the expression in the syntax accepted by Parse.
	String() string
	node()
}

type (
	// Path references a property of an object (ObjPath) or a column of the
	// root table (DbPath). Segments are separated by dots, and a segment
	// ending in "+" requests an outer join.
	Path struct {
		op   Op
		path string
	}

	// Segment is one step of a path.
	Segment struct {
		Name  string
		Outer bool
	}

	// Scalar is a literal value. A nil value is SQL NULL.
	Scalar struct {
		value any
	}

	// List is a parenthesized list of scalars and parameters, used by IN.
	List struct {
		items []Expression
	}

	// Param is a named parameter, substituted by Params.
	Param struct {
		name string
	}

	// Bool is the TRUE or FALSE condition.
	Bool struct {
		value bool
	}

	// UnaryExpr is NOT or arithmetic negation.
	UnaryExpr struct {
		op Op
		x  Expression
	}

	// BinaryExpr is a comparison or an arithmetic operation.
	BinaryExpr struct {
		op   Op
		l, r Expression
	}

	// NaryExpr is a conjunction or disjunction.
	NaryExpr struct {
		op Op
		xs []Expression
	}

	// BetweenExpr is [NOT] BETWEEN.
	BetweenExpr struct {
		not       bool
		x, lo, hi Expression
	}

	// InExpr is [NOT] IN. The set is either a *List or a *Param bound to a slice.
	InExpr struct {
		not bool
		x   Expression
		set Expression
	}

	// LikeExpr is [NOT] LIKE with an optional case folding and escape char.
	LikeExpr struct {
		op      Op
		x       Expression
		pattern Expression
		escape  rune
	}
)

var (
	trueExp  = &Bool{value: true}
	falseExp = &Bool{value: false}
)

func (*Path) node()        {}
func (*Scalar) node()      {}
func (*List) node()        {}
func (*Param) node()       {}
func (*Bool) node()        {}
func (*UnaryExpr) node()   {}
func (*BinaryExpr) node()  {}
func (*NaryExpr) node()    {}
func (*BetweenExpr) node() {}
func (*InExpr) node()      {}
func (*LikeExpr) node()    {}

// ObjPath returns an object path expression, for example "artist.name".
// An "obj:" prefix is accepted and removed.
func ObjPath(path string) *Path {
	return &Path{op: OpObjPath, path: strings.TrimPrefix(path, "obj:")}
}

// DbPath returns a path expression over table columns and foreign keys,
// for example "toArtist.ARTIST_NAME". A "db:" prefix is accepted and removed.
func DbPath(path string) *Path {
	return &Path{op: OpDbPath, path: strings.TrimPrefix(path, "db:")}
}

// Op returns OpObjPath or OpDbPath.
func (p *Path) Op() Op { return p.op }

// Path returns the dotted path without a prefix.
func (p *Path) Path() string { return p.path }

// IsDB reports if the path is a DB path.
func (p *Path) IsDB() bool { return p.op == OpDbPath }

// Segments splits the path into its steps.
func (p *Path) Segments() []Segment {
	parts := strings.Split(p.path, ".")
	segs := make([]Segment, len(parts))
	for i, s := range parts {
		segs[i] = Segment{Name: strings.TrimSuffix(s, "+"), Outer: strings.HasSuffix(s, "+")}
	}
	return segs
}

// Dot returns a path extended by the given segment.
func (p *Path) Dot(name string) *Path {
	return &Path{op: p.op, path: p.path + "." + name}
}

// Outer returns the path with its last segment marked as an outer join.
func (p *Path) Outer() *Path {
	if strings.HasSuffix(p.path, "+") {
		return p
	}
	return &Path{op: p.op, path: p.path + "+"}
}

// EQ returns "p = v".
func (p *Path) EQ(v any) Expression { return EQ(p, v) }

// NEQ returns "p != v".
func (p *Path) NEQ(v any) Expression { return NEQ(p, v) }

// LT returns "p < v".
func (p *Path) LT(v any) Expression { return LT(p, v) }

// LTE returns "p <= v".
func (p *Path) LTE(v any) Expression { return LTE(p, v) }

// GT returns "p > v".
func (p *Path) GT(v any) Expression { return GT(p, v) }

// GTE returns "p >= v".
func (p *Path) GTE(v any) Expression { return GTE(p, v) }

// IsNull returns "p = null".
func (p *Path) IsNull() Expression { return EQ(p, nil) }

// IsNotNull returns "p != null".
func (p *Path) IsNotNull() Expression { return NEQ(p, nil) }

// Like returns "p like pattern".
func (p *Path) Like(pattern any) *LikeExpr { return Like(p, pattern) }

// LikeIgnoreCase returns "p likeIgnoreCase pattern".
func (p *Path) LikeIgnoreCase(pattern any) *LikeExpr { return LikeIgnoreCase(p, pattern) }

// In returns "p in (vs...)".
func (p *Path) In(vs ...any) *InExpr { return In(p, vs...) }

// NotIn returns "p not in (vs...)".
func (p *Path) NotIn(vs ...any) *InExpr { return NotIn(p, vs...) }

// Between returns "p between lo and hi".
func (p *Path) Between(lo, hi any) *BetweenExpr { return Between(p, lo, hi) }

// Value returns a scalar literal.
func Value(v any) *Scalar { return &Scalar{value: v} }

// Op returns OpScalar.
func (*Scalar) Op() Op { return OpScalar }

// Value returns the literal value.
func (s *Scalar) Value() any { return s.value }

// IsNull reports if the scalar is NULL.
func (s *Scalar) IsNull() bool { return isNil(s.value) }

// ListOf returns a list of the given values. A single slice argument is
// expanded into its elements.
func ListOf(vs ...any) *List {
	if len(vs) == 1 {
		if items, ok := asCollection(vs[0]); ok {
			vs = items
		}
	}
	items := make([]Expression, len(vs))
	for i, v := range vs {
		items[i] = operand(v)
	}
	return &List{items: items}
}

// Op returns OpList.
func (*List) Op() Op { return OpList }

// Len returns the number of items.
func (l *List) Len() int { return len(l.items) }

// Items returns the list items.
func (l *List) Items() []Expression { return append([]Expression(nil), l.items...) }

// P returns a named parameter.
func P(name string) *Param { return &Param{name: strings.TrimPrefix(name, "$")} }

// Op returns OpParam.
func (*Param) Op() Op { return OpParam }

// Name returns the parameter name.
func (p *Param) Name() string { return p.name }

// True returns the condition that always holds.
func True() *Bool { return trueExp }

// False returns the condition that never holds.
func False() *Bool { return falseExp }

// Op returns OpTrue or OpFalse.
func (b *Bool) Op() Op {
	if b.value {
		return OpTrue
	}
	return OpFalse
}

// Value returns the boolean value.
func (b *Bool) Value() bool { return b.value }

// Not returns the negation of x.
func Not(x Expression) *UnaryExpr { return &UnaryExpr{op: OpNot, x: x} }

// Neg returns the arithmetic negation of v.
func Neg(v any) *UnaryExpr { return &UnaryExpr{op: OpNegate, x: operand(v)} }

// Op returns OpNot or OpNegate.
func (u *UnaryExpr) Op() Op { return u.op }

// X returns the operand.
func (u *UnaryExpr) X() Expression { return u.x }

func binary(op Op, l, r any) *BinaryExpr {
	return &BinaryExpr{op: op, l: operand(l), r: operand(r)}
}

// EQ returns "l = r".
func EQ(l, r any) *BinaryExpr { return binary(OpEQ, l, r) }

// NEQ returns "l != r".
func NEQ(l, r any) *BinaryExpr { return binary(OpNEQ, l, r) }

// LT returns "l < r".
func LT(l, r any) *BinaryExpr { return binary(OpLT, l, r) }

// LTE returns "l <= r".
func LTE(l, r any) *BinaryExpr { return binary(OpLTE, l, r) }

// GT returns "l > r".
func GT(l, r any) *BinaryExpr { return binary(OpGT, l, r) }

// GTE returns "l >= r".
func GTE(l, r any) *BinaryExpr { return binary(OpGTE, l, r) }

// Add returns "l + r".
func Add(l, r any) *BinaryExpr { return binary(OpAdd, l, r) }

// Sub returns "l - r".
func Sub(l, r any) *BinaryExpr { return binary(OpSub, l, r) }

// Mul returns "l * r".
func Mul(l, r any) *BinaryExpr { return binary(OpMul, l, r) }

// Div returns "l / r".
func Div(l, r any) *BinaryExpr { return binary(OpDiv, l, r) }

// Binary returns a comparison or arithmetic node for op.
// It panics if op is not binary.
func Binary(op Op, l, r any) *BinaryExpr {
	if !op.IsComparison() && !op.IsArithmetic() {
		panic("exp: " + op.String() + " is not a binary operator")
	}
	return binary(op, l, r)
}

// Op returns the operator.
func (b *BinaryExpr) Op() Op { return b.op }

// L returns the left operand.
func (b *BinaryExpr) L() Expression { return b.l }

// R returns the right operand.
func (b *BinaryExpr) R() Expression { return b.r }

// And joins xs with AND. Nil operands are skipped, nested conjunctions are
// flattened. And of a single operand returns that operand and And of none
// returns nil.
func And(xs ...Expression) Expression { return join(OpAnd, xs) }

// Or joins xs with OR, following the same rules as And.
func Or(xs ...Expression) Expression { return join(OpOr, xs) }

func join(op Op, xs []Expression) Expression {
	flat := make([]Expression, 0, len(xs))
	for _, x := range xs {
		switch x := x.(type) {
		case nil:
		case *NaryExpr:
			if x == nil {
				continue
			}
			if x.op == op {
				flat = append(flat, x.xs...)
				continue
			}
			flat = append(flat, x)
		default:
			if isNil(x) {
				continue
			}
			flat = append(flat, x)
		}
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	}
	return &NaryExpr{op: op, xs: flat}
}

// Op returns OpAnd or OpOr.
func (n *NaryExpr) Op() Op { return n.op }

// Operands returns the joined conditions.
func (n *NaryExpr) Operands() []Expression { return append([]Expression(nil), n.xs...) }

// Between returns "x between lo and hi".
func Between(x, lo, hi any) *BetweenExpr {
	return &BetweenExpr{x: operand(x), lo: operand(lo), hi: operand(hi)}
}

// NotBetween returns "x not between lo and hi".
func NotBetween(x, lo, hi any) *BetweenExpr {
	b := Between(x, lo, hi)
	b.not = true
	return b
}

// Op returns OpBetween or OpNotBetween.
func (b *BetweenExpr) Op() Op {
	if b.not {
		return OpNotBetween
	}
	return OpBetween
}

// X returns the tested value.
func (b *BetweenExpr) X() Expression { return b.x }

// Lower returns the lower bound.
func (b *BetweenExpr) Lower() Expression { return b.lo }

// Upper returns the upper bound.
func (b *BetweenExpr) Upper() Expression { return b.hi }

// Negated reports if this is NOT BETWEEN.
func (b *BetweenExpr) Negated() bool { return b.not }

// In returns "x in (vs...)". A single *Param argument is kept as a parameter
// to be bound to a slice later.
func In(x any, vs ...any) *InExpr {
	return &InExpr{x: operand(x), set: setOperand(vs)}
}

// NotIn returns "x not in (vs...)".
func NotIn(x any, vs ...any) *InExpr {
	in := In(x, vs...)
	in.not = true
	return in
}

func setOperand(vs []any) Expression {
	if len(vs) == 1 {
		switch v := vs[0].(type) {
		case *Param:
			return v
		case *List:
			return v
		}
	}
	return ListOf(vs...)
}

// Op returns OpIn or OpNotIn.
func (in *InExpr) Op() Op {
	if in.not {
		return OpNotIn
	}
	return OpIn
}

// X returns the tested value.
func (in *InExpr) X() Expression { return in.x }

// Set returns the *List or *Param the value is tested against.
func (in *InExpr) Set() Expression { return in.set }

// Negated reports if this is NOT IN.
func (in *InExpr) Negated() bool { return in.not }

func like(op Op, x, pattern any) *LikeExpr {
	return &LikeExpr{op: op, x: operand(x), pattern: operand(pattern)}
}

// Like returns "x like pattern".
func Like(x, pattern any) *LikeExpr { return like(OpLike, x, pattern) }

// NotLike returns "x not like pattern".
func NotLike(x, pattern any) *LikeExpr { return like(OpNotLike, x, pattern) }

// LikeIgnoreCase returns "x likeIgnoreCase pattern".
func LikeIgnoreCase(x, pattern any) *LikeExpr { return like(OpLikeIgnoreCase, x, pattern) }

// NotLikeIgnoreCase returns "x not likeIgnoreCase pattern".
func NotLikeIgnoreCase(x, pattern any) *LikeExpr { return like(OpNotLikeIgnoreCase, x, pattern) }

// WithEscape returns a copy of the node using c as the pattern escape char.
func (l *LikeExpr) WithEscape(c rune) *LikeExpr {
	cp := *l
	cp.escape = c
	return &cp
}

// Op returns the LIKE variant.
func (l *LikeExpr) Op() Op { return l.op }

// X returns the matched value.
func (l *LikeExpr) X() Expression { return l.x }

// Pattern returns the pattern operand.
func (l *LikeExpr) Pattern() Expression { return l.pattern }

// Escape returns the escape char, or 0 when none is set.
func (l *LikeExpr) Escape() rune { return l.escape }

// IgnoreCase reports if matching folds case.
func (l *LikeExpr) IgnoreCase() bool { return l.op == OpLikeIgnoreCase || l.op == OpNotLikeIgnoreCase }

// Negated reports if this is a NOT LIKE variant.
func (l *LikeExpr) Negated() bool { return l.op == OpNotLike || l.op == OpNotLikeIgnoreCase }

// MatchExp returns "path = v" for an object path.
func MatchExp(path string, v any) Expression { return EQ(ObjPath(path), v) }

// NoMatchExp returns "path != v" for an object path.
func NoMatchExp(path string, v any) Expression { return NEQ(ObjPath(path), v) }

// MatchDbExp returns "db:path = v".
func MatchDbExp(path string, v any) Expression { return EQ(DbPath(path), v) }

// LessExp returns "path < v".
func LessExp(path string, v any) Expression { return LT(ObjPath(path), v) }

// GreaterExp returns "path > v".
func GreaterExp(path string, v any) Expression { return GT(ObjPath(path), v) }

// LikeExp returns "path like pattern".
func LikeExp(path string, pattern string) Expression { return Like(ObjPath(path), pattern) }

// LikeIgnoreCaseExp returns "path likeIgnoreCase pattern".
func LikeIgnoreCaseExp(path string, pattern string) Expression {
	return LikeIgnoreCase(ObjPath(path), pattern)
}

// InExp returns "path in (vs...)".
func InExp(path string, vs ...any) Expression { return In(ObjPath(path), vs...) }

// BetweenExp returns "path between lo and hi".
func BetweenExp(path string, lo, hi any) Expression { return Between(ObjPath(path), lo, hi) }

// AndExp joins a and b with AND, skipping nils.
func AndExp(a, b Expression) Expression { return And(a, b) }

// OrExp joins a and b with OR, skipping nils.
func OrExp(a, b Expression) Expression { return Or(a, b) }

// NotExp negates e. Negatable conditions flip their operator instead of
// being wrapped, so "a = 1" becomes "a != 1" and NOT(x) becomes x.
func NotExp(e Expression) Expression {
	switch e := e.(type) {
	case nil:
		return nil
	case *UnaryExpr:
		if e.op == OpNot {
			return e.x
		}
	case *BinaryExpr:
		if e.op == OpEQ || e.op == OpNEQ {
			op, _ := e.op.Negate()
			return &BinaryExpr{op: op, l: e.l, r: e.r}
		}
	case *BetweenExpr:
		cp := *e
		cp.not = !cp.not
		return &cp
	case *InExpr:
		cp := *e
		cp.not = !cp.not
		return &cp
	case *LikeExpr:
		cp := *e
		cp.op, _ = cp.op.Negate()
		return &cp
	case *Bool:
		if e.value {
			return falseExp
		}
		return trueExp
	}
	return Not(e)
}

// operand converts a Go value into an expression node.
func operand(v any) Expression {
	if e, ok := v.(Expression); ok && !isNil(e) {
		return e
	}
	return Value(v)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// Children returns the direct operands of e.
func Children(e Expression) []Expression {
	switch e := e.(type) {
	case *List:
		return e.Items()
	case *UnaryExpr:
		return []Expression{e.x}
	case *BinaryExpr:
		return []Expression{e.l, e.r}
	case *NaryExpr:
		return e.Operands()
	case *BetweenExpr:
		return []Expression{e.x, e.lo, e.hi}
	case *InExpr:
		return []Expression{e.x, e.set}
	case *LikeExpr:
		return []Expression{e.x, e.pattern}
	}
	return nil
}
