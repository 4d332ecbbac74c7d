package access

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/syssam/cayenne/mapping"
	"github.com/syssam/cayenne/schema/field"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// columnValue converts a value read from a driver or the cache to the Go
// type of the attribute: int64, float64, decimal.Decimal, string, bool,
// time.Time, uuid.UUID or []byte.
func columnValue(a *mapping.Attribute, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok && a.Type != field.TypeBytes && a.Type != field.TypeBlob && a.Type != field.TypeUUID {
		v = string(b)
	}
	switch a.Type {
	case field.TypeInt, field.TypeInt64:
		return toInt64(a, v)
	case field.TypeFloat64:
		switch v := v.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case string:
			return strconv.ParseFloat(strings.TrimSpace(v), 64)
		}
		n, err := toInt64(a, v)
		return float64(n), err
	case field.TypeDecimal:
		switch v := v.(type) {
		case decimal.Decimal:
			return v, nil
		case string:
			return decimal.NewFromString(strings.TrimSpace(v))
		case float64:
			return decimal.NewFromFloat(v), nil
		case float32:
			return decimal.NewFromFloat32(v), nil
		}
		n, err := toInt64(a, v)
		return decimal.NewFromInt(n), err
	case field.TypeBool:
		switch v := v.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(strings.TrimSpace(v))
		}
		n, err := toInt64(a, v)
		return n != 0, err
	case field.TypeDate, field.TypeTime:
		switch v := v.(type) {
		case time.Time:
			return v, nil
		case string:
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, v); err == nil {
					return t, nil
				}
			}
		}
	case field.TypeUUID:
		switch v := v.(type) {
		case uuid.UUID:
			return v, nil
		case string:
			return uuid.Parse(v)
		case []byte:
			if len(v) == 16 {
				return uuid.FromBytes(v)
			}
			return uuid.ParseBytes(v)
		}
	case field.TypeBytes, field.TypeBlob:
		switch v := v.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
	default:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	}
	return nil, fmt.Errorf("access: cannot convert %T to %s of %s", v, a.Type, a)
}

func toInt64(a *mapping.Attribute, v any) (int64, error) {
	switch v := v.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("access: %d overflows %s", v, a)
		}
		return int64(v), nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	}
	return 0, fmt.Errorf("access: cannot convert %T to %s of %s", v, a.Type, a)
}
