package cayenne

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TempKey is the key of an object that was not inserted yet.
type TempKey uuid.UUID

// String returns the canonical UUID text.
func (k TempKey) String() string {
	return uuid.UUID(k).String()
}

// DecimalKey is the canonical form of a non-integral decimal key.
type DecimalKey string

// CompositeKey is the canonical form of a multi-column primary key.
type CompositeKey string

// ObjectID identifies a persistent object: the entity name plus either a
// temporary key or the primary key value. ObjectIDs are comparable and are
// used directly as map keys by the object graph.
type ObjectID struct {
	entity string
	key    any
}

// NewTemporaryID returns a new temporary id for an object of the entity.
func NewTemporaryID(entity string) ObjectID {
	return ObjectID{entity: entity, key: TempKey(uuid.New())}
}

// NewObjectID returns a permanent id for a single-column primary key.
// Integer kinds and integral decimals are normalized to int64, other
// decimals to a DecimalKey and times to UTC, so that ids read back from
// different drivers compare equal.
func NewObjectID(entity string, key any) ObjectID {
	return ObjectID{entity: entity, key: normalizeKey(key)}
}

// NewCompositeID returns a permanent id for a multi-column primary key.
func NewCompositeID(entity string, values map[string]any) ObjectID {
	if len(values) == 1 {
		for _, v := range values {
			return NewObjectID(entity, v)
		}
	}
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s=%v", n, normalizeKey(values[n]))
	}
	return ObjectID{entity: entity, key: CompositeKey(strings.Join(parts, ","))}
}

// Entity returns the entity name.
func (id ObjectID) Entity() string { return id.entity }

// Key returns the key value: a TempKey, a CompositeKey or the primary key.
func (id ObjectID) Key() any { return id.key }

// IsZero reports whether id is the zero ObjectID.
func (id ObjectID) IsZero() bool { return id.entity == "" && id.key == nil }

// IsTemporary reports whether the id was generated for a new object.
func (id ObjectID) IsTemporary() bool {
	_, ok := id.key.(TempKey)
	return ok
}

// String returns a human readable representation.
func (id ObjectID) String() string {
	if id.IsTemporary() {
		return fmt.Sprintf("<%s:temp:%s>", id.entity, id.key)
	}
	return fmt.Sprintf("<%s:%v>", id.entity, id.key)
}

func normalizeKey(v any) any {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint:
		return normalizeKey(uint64(v))
	case uint64:
		if v > math.MaxInt64 {
			return v
		}
		return int64(v)
	case []byte:
		return string(v)
	case decimal.Decimal:
		if v.IsInteger() && v.GreaterThanOrEqual(minInt64) && v.LessThanOrEqual(maxInt64) {
			return v.IntPart()
		}
		return DecimalKey(v.String())
	case *decimal.Decimal:
		if v == nil {
			return nil
		}
		return normalizeKey(*v)
	case time.Time:
		return v.UTC().Round(0)
	}
	return v
}

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)
