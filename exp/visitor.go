package exp

import (
	"reflect"
)

// Visitor has one method per node type. Implementations decide themselves
// whether and in which order to visit the operands of a node, which lets
// SQL translators write tokens between them.
type Visitor interface {
	VisitPath(*Path) error
	VisitScalar(*Scalar) error
	VisitList(*List) error
	VisitParam(*Param) error
	VisitBool(*Bool) error
	VisitUnary(*UnaryExpr) error
	VisitBinary(*BinaryExpr) error
	VisitNary(*NaryExpr) error
	VisitBetween(*BetweenExpr) error
	VisitIn(*InExpr) error
	VisitLike(*LikeExpr) error
}

func (p *Path) Accept(v Visitor) error        { return v.VisitPath(p) }
func (s *Scalar) Accept(v Visitor) error      { return v.VisitScalar(s) }
func (l *List) Accept(v Visitor) error        { return v.VisitList(l) }
func (p *Param) Accept(v Visitor) error       { return v.VisitParam(p) }
func (b *Bool) Accept(v Visitor) error        { return v.VisitBool(b) }
func (u *UnaryExpr) Accept(v Visitor) error   { return v.VisitUnary(u) }
func (b *BinaryExpr) Accept(v Visitor) error  { return v.VisitBinary(b) }
func (n *NaryExpr) Accept(v Visitor) error    { return v.VisitNary(n) }
func (b *BetweenExpr) Accept(v Visitor) error { return v.VisitBetween(b) }
func (in *InExpr) Accept(v Visitor) error     { return v.VisitIn(in) }
func (l *LikeExpr) Accept(v Visitor) error    { return v.VisitLike(l) }

// Traverse walks the tree in depth-first pre-order, calling fn for every
// node. If fn returns false the operands of that node are skipped.
func Traverse(e Expression, fn func(Expression) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, c := range Children(e) {
		Traverse(c, fn)
	}
}

// Paths returns every path referenced by e, in traversal order.
func Paths(e Expression) []*Path {
	var paths []*Path
	Traverse(e, func(n Expression) bool {
		if p, ok := n.(*Path); ok {
			paths = append(paths, p)
		}
		return true
	})
	return paths
}

// Transform returns a new tree built bottom-up by applying fn to every node
// after its operands were transformed. Returning the node unchanged keeps
// it. Returning nil prunes it: a pruned operand of AND/OR is dropped, and
// any other node with a pruned operand is pruned as well.
func Transform(e Expression, fn func(Expression) Expression) Expression {
	var walk func(Expression) (Expression, error)
	walk = func(n Expression) (Expression, error) {
		rebuilt, err := mapChildren(n, walk)
		if err != nil || rebuilt == nil {
			return nil, err
		}
		return fn(rebuilt), nil
	}
	out, _ := walk(e)
	return out
}

// mapChildren rebuilds e with every operand replaced by f(operand).
// The original node is returned when no operand changed.
func mapChildren(e Expression, f func(Expression) (Expression, error)) (Expression, error) {
	if e == nil {
		return nil, nil
	}
	children := Children(e)
	if len(children) == 0 {
		return e, nil
	}
	mapped := make([]Expression, len(children))
	changed := false
	for i, c := range children {
		m, err := f(c)
		if err != nil {
			return nil, err
		}
		mapped[i] = m
		if m != c {
			changed = true
		}
	}
	if !changed {
		return e, nil
	}
	switch e := e.(type) {
	case *NaryExpr:
		return join(e.op, mapped), nil
	case *List:
		items := make([]Expression, 0, len(mapped))
		for _, m := range mapped {
			if m != nil {
				items = append(items, m)
			}
		}
		return &List{items: items}, nil
	}
	for _, m := range mapped {
		if m == nil {
			return nil, nil
		}
	}
	switch e := e.(type) {
	case *UnaryExpr:
		return &UnaryExpr{op: e.op, x: mapped[0]}, nil
	case *BinaryExpr:
		return &BinaryExpr{op: e.op, l: mapped[0], r: mapped[1]}, nil
	case *BetweenExpr:
		return &BetweenExpr{not: e.not, x: mapped[0], lo: mapped[1], hi: mapped[2]}, nil
	case *InExpr:
		return &InExpr{not: e.not, x: mapped[0], set: mapped[1]}, nil
	case *LikeExpr:
		return &LikeExpr{op: e.op, x: mapped[0], pattern: mapped[1], escape: e.escape}, nil
	}
	return e, nil
}

// Equal reports whether a and b are structurally equal. Scalars holding
// numbers are compared numerically, so Value(1) equals Value(int64(1)).
func Equal(a, b Expression) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Op() != b.Op() {
		return false
	}
	switch a := a.(type) {
	case *Path:
		return a.path == b.(*Path).path
	case *Scalar:
		return scalarEqual(a.value, b.(*Scalar).value)
	case *Param:
		return a.name == b.(*Param).name
	case *Bool:
		return true
	case *LikeExpr:
		if a.escape != b.(*LikeExpr).escape {
			return false
		}
	}
	ac, bc := Children(a), Children(b)
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if !Equal(ac[i], bc[i]) {
			return false
		}
	}
	return true
}

func scalarEqual(a, b any) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	if x, ok := toDecimal(a); ok {
		if y, ok := toDecimal(b); ok {
			return x.Equal(y)
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}
