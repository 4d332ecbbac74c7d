package field

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Type is the logical column type of a mapped attribute. The set follows the
// JDBC type families the translators care about: a dialect may treat CHAR,
// LONGVARCHAR and CLOB columns differently from plain VARCHAR.
type Type uint8

// Column types.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeInt
	TypeInt64
	TypeFloat64
	TypeDecimal
	TypeString
	TypeChar
	TypeLongVarchar
	TypeClob
	TypeBytes
	TypeBlob
	TypeDate
	TypeTime
	TypeUUID
	endTypes
)

var typeNames = [...]string{
	TypeInvalid:     "invalid",
	TypeBool:        "bool",
	TypeInt:         "int",
	TypeInt64:       "int64",
	TypeFloat64:     "float64",
	TypeDecimal:     "decimal",
	TypeString:      "string",
	TypeChar:        "char",
	TypeLongVarchar: "longvarchar",
	TypeClob:        "clob",
	TypeBytes:       "bytes",
	TypeBlob:        "blob",
	TypeDate:        "date",
	TypeTime:        "time",
	TypeUUID:        "uuid",
}

// String returns the lowercase name of the type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Valid reports if the given type is a known type.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < endTypes
}

// Numeric reports if the given type is a numeric type.
func (t Type) Numeric() bool {
	switch t {
	case TypeInt, TypeInt64, TypeFloat64, TypeDecimal:
		return true
	}
	return false
}

// Textual reports if the given type holds character data.
func (t Type) Textual() bool {
	switch t {
	case TypeString, TypeChar, TypeLongVarchar, TypeClob:
		return true
	}
	return false
}

// LOB reports if the given type is a large object type.
func (t Type) LOB() bool {
	return t == TypeClob || t == TypeBlob
}

// ParseType parses a type name. Common SQL spellings are accepted as aliases.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bool", "boolean", "bit":
		return TypeBool, nil
	case "int", "integer", "smallint", "tinyint":
		return TypeInt, nil
	case "int64", "bigint", "long":
		return TypeInt64, nil
	case "float64", "float", "double", "real":
		return TypeFloat64, nil
	case "decimal", "numeric":
		return TypeDecimal, nil
	case "string", "varchar", "nvarchar":
		return TypeString, nil
	case "char", "nchar":
		return TypeChar, nil
	case "longvarchar", "text":
		return TypeLongVarchar, nil
	case "clob", "nclob":
		return TypeClob, nil
	case "bytes", "varbinary", "binary":
		return TypeBytes, nil
	case "blob":
		return TypeBlob, nil
	case "date":
		return TypeDate, nil
	case "time", "timestamp", "datetime":
		return TypeTime, nil
	case "uuid":
		return TypeUUID, nil
	}
	return TypeInvalid, fmt.Errorf("field: unknown type %q", s)
}

// MarshalYAML implements yaml.Marshaler.
func (t Type) MarshalYAML() (any, error) {
	return t.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Type) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}
