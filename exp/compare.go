package exp

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrIncomparable is returned by ordering comparisons of values that have no
// common order, such as a string and a boolean.
var ErrIncomparable = errors.New("exp: incomparable values")

// toDecimal converts any Go number, or a decimal, to decimal.Decimal.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch v := v.(type) {
	case decimal.Decimal:
		return v, true
	case *decimal.Decimal:
		if v == nil {
			return decimal.Decimal{}, false
		}
		return *v, true
	case decimal.NullDecimal:
		return v.Decimal, v.Valid
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case int32:
		return decimal.NewFromInt32(v), true
	case float64:
		return decimal.NewFromFloat(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(rv.Uint()), 0), true
	case reflect.Float32, reflect.Float64:
		return decimal.NewFromFloat(rv.Float()), true
	}
	return decimal.Decimal{}, false
}

// toString returns the string form of string kinds.
func toString(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

func toBool(v any) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Bool {
		return rv.Bool(), true
	}
	return false, false
}

func toTime(v any) (time.Time, bool) {
	switch v := v.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v != nil {
			return *v, true
		}
	}
	return time.Time{}, false
}

// compareValues orders two non-null values. Numbers compare numerically,
// a numeric string compared with a number is converted first, strings compare
// lexically and times chronologically.
func compareValues(a, b any) (int, error) {
	if x, ok := toDecimal(a); ok {
		if y, ok := numericOperand(b); ok {
			return x.Cmp(y), nil
		}
		return 0, incomparable(a, b)
	}
	if y, ok := toDecimal(b); ok {
		if x, ok := numericOperand(a); ok {
			return x.Cmp(y), nil
		}
		return 0, incomparable(a, b)
	}
	if x, ok := toString(a); ok {
		if y, ok := toString(b); ok {
			return strings.Compare(x, y), nil
		}
		return 0, incomparable(a, b)
	}
	if x, ok := toTime(a); ok {
		if y, ok := toTime(b); ok {
			return x.Compare(y), nil
		}
	}
	return 0, incomparable(a, b)
}

func numericOperand(v any) (decimal.Decimal, bool) {
	if d, ok := toDecimal(v); ok {
		return d, true
	}
	if s, ok := toString(v); ok {
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		return d, err == nil
	}
	return decimal.Decimal{}, false
}

func incomparable(a, b any) error {
	return fmt.Errorf("%w: %T and %T", ErrIncomparable, a, b)
}

// valuesEqual implements in-memory "=": two nulls are equal, a null is never
// equal to a non-null, and values with no common order fall back to deep
// equality.
func valuesEqual(a, b any) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	if x, ok := toBool(a); ok {
		y, ok := toBool(b)
		return ok && x == y
	}
	if _, ok := toBool(b); ok {
		return false
	}
	if c, err := compareValues(a, b); err == nil {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two values the way in-memory conditions do. Null sorts
// before any other value.
func Compare(a, b any) (int, error) {
	switch an, bn := isNil(a), isNil(b); {
	case an && bn:
		return 0, nil
	case an:
		return -1, nil
	case bn:
		return 1, nil
	}
	if x, ok := toBool(a); ok {
		if y, ok := toBool(b); ok {
			switch {
			case x == y:
				return 0, nil
			case !x:
				return -1, nil
			}
			return 1, nil
		}
	}
	return compareValues(a, b)
}
