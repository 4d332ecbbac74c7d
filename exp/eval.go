package exp

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrMissingParam is returned when a parameter has no bound value.
	ErrMissingParam = errors.New("exp: missing parameter")
	// ErrUnknownProperty is returned when an object has no property of the
	// requested name.
	ErrUnknownProperty = errors.New("exp: unknown property")
	// ErrDivisionByZero is returned by in-memory division by zero.
	ErrDivisionByZero = errors.New("exp: division by zero")
)

// PropertyReader is implemented by objects that expose their properties by
// name. To-one properties return the related object (or nil) and to-many
// properties return a slice of related objects.
type PropertyReader interface {
	ReadProperty(name string) (any, error)
}

// collection is the value of a path that crossed a to-many relationship.
// Conditions over a collection hold if they hold for any element.
type collection []any

// Evaluate computes the value of e against obj. Conditions return bool,
// paths return the property value and arithmetic returns int64 or
// decimal.Decimal. A path that crosses a to-many relationship returns a
// []any with one entry per reached value.
func Evaluate(e Expression, obj any) (any, error) {
	v, err := eval(e, obj)
	if c, ok := v.(collection); ok {
		return []any(c), err
	}
	return v, err
}

// Match reports whether obj satisfies the condition e. A nil condition
// matches everything.
func Match(e Expression, obj any) (bool, error) {
	if e == nil {
		return true, nil
	}
	v, err := eval(e, obj)
	if err != nil {
		return false, err
	}
	return truth(v), nil
}

// Filter returns the objects that satisfy e, keeping their order.
func Filter[T any](e Expression, objects []T) ([]T, error) {
	var out []T
	for _, o := range objects {
		ok, err := Match(e, o)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, o)
		}
	}
	return out, nil
}

// First returns the first object that satisfies e.
func First[T any](e Expression, objects []T) (T, bool, error) {
	var zero T
	for _, o := range objects {
		ok, err := Match(e, o)
		if err != nil {
			return zero, false, err
		}
		if ok {
			return o, true, nil
		}
	}
	return zero, false, nil
}

func eval(e Expression, obj any) (any, error) {
	switch e := e.(type) {
	case *Path:
		if e.IsDB() {
			return nil, fmt.Errorf("exp: db path %q can not be evaluated in memory", e.path)
		}
		return readPath(obj, e)
	case *Scalar:
		return e.value, nil
	case *Param:
		return nil, fmt.Errorf("%w: $%s", ErrMissingParam, e.name)
	case *Bool:
		return e.value, nil
	case *List:
		items := make([]any, len(e.items))
		for i, x := range e.items {
			v, err := eval(x, obj)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil
	case *UnaryExpr:
		v, err := eval(e.x, obj)
		if err != nil {
			return nil, err
		}
		if e.op == OpNot {
			return !truth(v), nil
		}
		return negate(v)
	case *NaryExpr:
		for _, x := range e.xs {
			v, err := eval(x, obj)
			if err != nil {
				return nil, err
			}
			t := truth(v)
			if e.op == OpAnd && !t {
				return false, nil
			}
			if e.op == OpOr && t {
				return true, nil
			}
		}
		return e.op == OpAnd, nil
	case *BinaryExpr:
		l, err := eval(e.l, obj)
		if err != nil {
			return nil, err
		}
		r, err := eval(e.r, obj)
		if err != nil {
			return nil, err
		}
		if e.op.IsArithmetic() {
			return arithmetic(e.op, l, r)
		}
		return anyMatch(l, func(l any) (bool, error) {
			return anyMatch(r, func(r any) (bool, error) {
				return comparison(e.op, l, r)
			})
		})
	case *BetweenExpr:
		return evalBetween(e, obj)
	case *InExpr:
		return evalIn(e, obj)
	case *LikeExpr:
		return evalLike(e, obj)
	}
	return nil, fmt.Errorf("exp: unexpected expression %T", e)
}

func evalBetween(e *BetweenExpr, obj any) (any, error) {
	x, err := eval(e.x, obj)
	if err != nil {
		return nil, err
	}
	lo, err := eval(e.lo, obj)
	if err != nil {
		return nil, err
	}
	hi, err := eval(e.hi, obj)
	if err != nil {
		return nil, err
	}
	ok, err := anyMatch(x, func(x any) (bool, error) {
		if isNil(x) || isNil(lo) || isNil(hi) {
			return false, nil
		}
		c1, err := compareValues(lo, x)
		if err != nil {
			return false, err
		}
		c2, err := compareValues(x, hi)
		if err != nil {
			return false, err
		}
		return c1 <= 0 && c2 <= 0, nil
	})
	return ok != e.not, err
}

func evalIn(e *InExpr, obj any) (any, error) {
	x, err := eval(e.x, obj)
	if err != nil {
		return nil, err
	}
	set, err := eval(e.set, obj)
	if err != nil {
		return nil, err
	}
	items, ok := set.([]any)
	if !ok {
		return nil, fmt.Errorf("exp: IN expects a list, got %T", set)
	}
	found, err := anyMatch(x, func(x any) (bool, error) {
		for _, it := range items {
			if valuesEqual(x, it) {
				return true, nil
			}
		}
		return false, nil
	})
	return found != e.not, err
}

func evalLike(e *LikeExpr, obj any) (any, error) {
	x, err := eval(e.x, obj)
	if err != nil {
		return nil, err
	}
	p, err := eval(e.pattern, obj)
	if err != nil {
		return nil, err
	}
	pattern, ok := toString(p)
	if !ok {
		if isNil(p) {
			return e.Negated(), nil
		}
		return nil, fmt.Errorf("exp: LIKE pattern must be a string, got %T", p)
	}
	matched, err := anyMatch(x, func(x any) (bool, error) {
		return likeMatch(x, pattern, e.escape, e.IgnoreCase())
	})
	return matched != e.Negated(), err
}

// anyMatch applies fn to v, or to each element when v is a collection.
func anyMatch(v any, fn func(any) (bool, error)) (bool, error) {
	c, ok := v.(collection)
	if !ok {
		return fn(v)
	}
	for _, x := range c {
		matched, err := fn(x)
		if err != nil || matched {
			return matched, err
		}
	}
	return false, nil
}

func comparison(op Op, l, r any) (bool, error) {
	switch op {
	case OpEQ:
		return valuesEqual(l, r), nil
	case OpNEQ:
		return !valuesEqual(l, r), nil
	}
	if isNil(l) || isNil(r) {
		return false, nil
	}
	c, err := compareValues(l, r)
	if err != nil {
		return false, err
	}
	switch op {
	case OpLT:
		return c < 0, nil
	case OpLTE:
		return c <= 0, nil
	case OpGT:
		return c > 0, nil
	case OpGTE:
		return c >= 0, nil
	}
	return false, fmt.Errorf("exp: %s is not a comparison", op)
}

func arithmetic(op Op, l, r any) (any, error) {
	if isNil(l) || isNil(r) {
		return nil, nil
	}
	if _, ok := l.(collection); ok {
		return nil, fmt.Errorf("exp: arithmetic over a to-many path")
	}
	if _, ok := r.(collection); ok {
		return nil, fmt.Errorf("exp: arithmetic over a to-many path")
	}
	x, ok := numericOperand(l)
	if !ok {
		return nil, fmt.Errorf("exp: %s: %T is not a number", op, l)
	}
	y, ok := numericOperand(r)
	if !ok {
		return nil, fmt.Errorf("exp: %s: %T is not a number", op, r)
	}
	var d decimal.Decimal
	switch op {
	case OpAdd:
		d = x.Add(y)
	case OpSub:
		d = x.Sub(y)
	case OpMul:
		d = x.Mul(y)
	case OpDiv:
		if y.IsZero() {
			return nil, ErrDivisionByZero
		}
		d = x.Div(y)
	}
	if isInteger(l) && isInteger(r) && op != OpDiv {
		return d.IntPart(), nil
	}
	return d, nil
}

func negate(v any) (any, error) {
	if isNil(v) {
		return nil, nil
	}
	d, ok := numericOperand(v)
	if !ok {
		return nil, fmt.Errorf("exp: negate: %T is not a number", v)
	}
	if isInteger(v) {
		return d.Neg().IntPart(), nil
	}
	return d.Neg(), nil
}

func isInteger(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// truth converts an evaluation result to a boolean: nil is false, numbers
// are true when not zero and any other non-nil value is true.
func truth(v any) bool {
	if isNil(v) {
		return false
	}
	if b, ok := toBool(v); ok {
		return b
	}
	if c, ok := v.(collection); ok {
		for _, x := range c {
			if truth(x) {
				return true
			}
		}
		return false
	}
	if d, ok := toDecimal(v); ok {
		return !d.IsZero()
	}
	return true
}

// readPath reads a dotted object path. Once a to-many step is crossed the
// result becomes a collection of every value reached.
func readPath(obj any, p *Path) (any, error) {
	cur := []any{obj}
	many := false
	for _, seg := range p.Segments() {
		next := make([]any, 0, len(cur))
		for _, o := range cur {
			if isNil(o) {
				if !many {
					next = append(next, nil)
				}
				continue
			}
			v, err := readProperty(o, seg.Name)
			if err != nil {
				return nil, err
			}
			if items, ok := asCollection(v); ok {
				many = true
				next = append(next, items...)
				continue
			}
			next = append(next, v)
		}
		cur = next
	}
	if many {
		return collection(cur), nil
	}
	return cur[0], nil
}

// readProperty reads one property from a PropertyReader, a map with string
// keys or a struct. Struct fields match the `cay` tag first, then the field
// name with the first letter folded.
func readProperty(obj any, name string) (any, error) {
	switch o := obj.(type) {
	case PropertyReader:
		return o.ReadProperty(name)
	case map[string]any:
		return o[name], nil
	}
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		v := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, nil
		}
		return v.Interface(), nil
	case reflect.Struct:
		if f, ok := structField(rv, name); ok {
			return f.Interface(), nil
		}
	}
	return nil, fmt.Errorf("%w: %q of %T", ErrUnknownProperty, name, obj)
}

func structField(rv reflect.Value, name string) (reflect.Value, bool) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if tag, _, _ := strings.Cut(f.Tag.Get("cay"), ","); tag == name {
			return rv.Field(i), true
		}
	}
	if f := rv.FieldByName(name); f.IsValid() && f.CanInterface() {
		return f, true
	}
	if name != "" {
		exported := strings.ToUpper(name[:1]) + name[1:]
		if sf, ok := t.FieldByName(exported); ok && sf.IsExported() {
			return rv.FieldByIndex(sf.Index), true
		}
	}
	return reflect.Value{}, false
}

// asCollection expands slices and arrays, except byte slices, into []any.
func asCollection(v any) ([]any, bool) {
	switch v := v.(type) {
	case nil, []byte, string:
		return nil, false
	case []any:
		return v, true
	case collection:
		return v, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}
