package exp

import (
	"fmt"
)

// Params returns a copy of e with named parameters replaced by the values in
// params. A value that is itself an Expression is inserted as is, and a
// slice bound to the set of an IN becomes its list.
//
// An unbound parameter is an error wrapping ErrMissingParam unless
// pruneMissing is set. In that case the condition holding the parameter is
// removed, and AND/OR nodes left with one operand collapse into it. When
// everything is pruned Params returns a nil Expression.
func Params(e Expression, params map[string]any, pruneMissing bool) (Expression, error) {
	var sub func(Expression) (Expression, error)
	sub = func(n Expression) (Expression, error) {
		switch n := n.(type) {
		case *Param:
			v, ok := params[n.name]
			if !ok {
				if pruneMissing {
					return nil, nil
				}
				return nil, fmt.Errorf("%w: $%s", ErrMissingParam, n.name)
			}
			return operand(v), nil
		case *InExpr:
			p, ok := n.set.(*Param)
			if !ok {
				break
			}
			x, err := sub(n.x)
			if err != nil || x == nil {
				return nil, err
			}
			v, ok := params[p.name]
			if !ok {
				if pruneMissing {
					return nil, nil
				}
				return nil, fmt.Errorf("%w: $%s", ErrMissingParam, p.name)
			}
			set, isExp := v.(Expression)
			if !isExp {
				set = ListOf(v)
			}
			return &InExpr{not: n.not, x: x, set: set}, nil
		}
		return mapChildren(n, sub)
	}
	return sub(e)
}

// ParamNames returns the distinct parameter names used by e in order of
// first appearance.
func ParamNames(e Expression) []string {
	var (
		names []string
		seen  = make(map[string]bool)
	)
	Traverse(e, func(n Expression) bool {
		if p, ok := n.(*Param); ok && !seen[p.name] {
			seen[p.name] = true
			names = append(names, p.name)
		}
		return true
	})
	return names
}
