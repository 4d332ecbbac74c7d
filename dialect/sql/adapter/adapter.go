package adapter

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/syssam/cayenne/dialect"
	"github.com/syssam/cayenne/dialect/sql"
	"github.com/syssam/cayenne/schema/field"
)

// KeyStrategy tells how generated primary keys are read back after an
// insert.
type KeyStrategy uint8

const (
	// KeysReturning appends a RETURNING clause to the insert.
	KeysReturning KeyStrategy = iota
	// KeysLastInsertID reads sql.Result.LastInsertId. Only a single
	// generated column is supported.
	KeysLastInsertID
	// KeysIdentityQuery runs the IdentityQuery of the adapter on the same
	// connection after the insert. Only a single generated column is
	// supported.
	KeysIdentityQuery
	// KeysNone means generated keys can not be read back; inserts must
	// carry their primary key values.
	KeysNone
)

// String implements fmt.Stringer.
func (k KeyStrategy) String() string {
	switch k {
	case KeysReturning:
		return "returning"
	case KeysLastInsertID:
		return "last insert id"
	case KeysIdentityQuery:
		return "identity query"
	case KeysNone:
		return "none"
	}
	return "KeyStrategy(" + strconv.Itoa(int(k)) + ")"
}

// MaxVarchar is the cast length used by the DB2 and Derby adapters for
// columns without a length.
const MaxVarchar = 32672

// Adapter is the strategy lowering expressions and row operations to the
// SQL of one database.
type Adapter struct {
	// Name is the dialect name, one of the dialect package constants.
	Name string
	// Quote enables identifier quoting.
	Quote bool
	// Decorators rewrite the base lowering rules, in order.
	Decorators []Decorator
	// Paginator renders limits and offsets. Nil means the default
	// paginator of the dialect.
	Paginator sql.Paginator
	// Keys is the generated key strategy.
	Keys KeyStrategy
	// IdentityQuery reads the last generated key of the session, for
	// KeysIdentityQuery.
	IdentityQuery string
	// Types overrides column type names used in DDL.
	Types map[field.Type]string

	once  sync.Once
	rules Rules
}

// Rules returns the decorated lowering rules of the adapter.
func (a *Adapter) Rules() Rules {
	a.once.Do(func() {
		a.rules = Decorate(baseRules(), a.Decorators...)
	})
	return a.rules
}

func (a *Adapter) paginator() sql.Paginator {
	if a.Paginator != nil {
		return a.Paginator
	}
	return sql.DefaultPaginator(a.Name)
}

// builder returns the statement builder for the adapter's dialect.
func (a *Adapter) builder() *sql.DialectBuilder {
	d := sql.Dialect(a.Name)
	if a.Quote {
		d = d.Quoted()
	}
	return d
}

// TypeName returns the column type used in DDL for an attribute type.
func (a *Adapter) TypeName(t field.Type, length, scale int) string {
	name, ok := a.Types[t]
	if !ok {
		name = defaultTypes[t]
	}
	switch t {
	case field.TypeString, field.TypeChar:
		if length <= 0 {
			length = 255
		}
		return name + "(" + strconv.Itoa(length) + ")"
	case field.TypeDecimal:
		if length > 0 {
			return name + "(" + strconv.Itoa(length) + "," + strconv.Itoa(max(scale, 0)) + ")"
		}
	}
	return name
}

var defaultTypes = map[field.Type]string{
	field.TypeBool:        "BOOLEAN",
	field.TypeInt:         "INTEGER",
	field.TypeInt64:       "BIGINT",
	field.TypeFloat64:     "DOUBLE PRECISION",
	field.TypeDecimal:     "DECIMAL",
	field.TypeString:      "VARCHAR",
	field.TypeChar:        "CHAR",
	field.TypeLongVarchar: "LONG VARCHAR",
	field.TypeClob:        "CLOB",
	field.TypeBytes:       "VARBINARY(255)",
	field.TypeBlob:        "BLOB",
	field.TypeDate:        "DATE",
	field.TypeTime:        "TIMESTAMP",
	field.TypeUUID:        "CHAR(36)",
}

// Built-in adapters.
var (
	Postgres = &Adapter{
		Name:       dialect.Postgres,
		Decorators: []Decorator{ILikeIgnoreCase},
		Keys:       KeysReturning,
		Types: map[field.Type]string{
			field.TypeLongVarchar: "TEXT",
			field.TypeClob:        "TEXT",
			field.TypeBytes:       "BYTEA",
			field.TypeBlob:        "BYTEA",
			field.TypeUUID:        "UUID",
		},
	}
	MySQL = &Adapter{
		Name: dialect.MySQL,
		Keys: KeysLastInsertID,
		Types: map[field.Type]string{
			field.TypeFloat64:     "DOUBLE",
			field.TypeLongVarchar: "MEDIUMTEXT",
			field.TypeClob:        "LONGTEXT",
			field.TypeBlob:        "LONGBLOB",
			field.TypeTime:        "DATETIME",
		},
	}
	SQLite = &Adapter{
		Name: dialect.SQLite,
		Keys: KeysReturning,
		Types: map[field.Type]string{
			field.TypeLongVarchar: "TEXT",
			field.TypeClob:        "TEXT",
			field.TypeFloat64:     "REAL",
		},
	}
	Oracle = &Adapter{
		Name: dialect.Oracle,
		Keys: KeysNone,
		Types: map[field.Type]string{
			field.TypeBool:        "NUMBER(1)",
			field.TypeInt:         "NUMBER(10)",
			field.TypeInt64:       "NUMBER(19)",
			field.TypeFloat64:     "BINARY_DOUBLE",
			field.TypeDecimal:     "NUMBER",
			field.TypeString:      "VARCHAR2",
			field.TypeLongVarchar: "LONG",
			field.TypeBytes:       "RAW(255)",
		},
	}
	DB2 = &Adapter{
		Name:          dialect.DB2,
		Decorators:    []Decorator{CastLike(MaxVarchar, field.TypeChar, field.TypeLongVarchar, field.TypeClob)},
		Keys:          KeysIdentityQuery,
		IdentityQuery: "SELECT IDENTITY_VAL_LOCAL() FROM SYSIBM.SYSDUMMY1",
		Types: map[field.Type]string{
			field.TypeBool:    "SMALLINT",
			field.TypeFloat64: "DOUBLE",
		},
	}
	Derby = &Adapter{
		Name:          dialect.Derby,
		Decorators:    []Decorator{CastClobEquality(MaxVarchar)},
		Keys:          KeysIdentityQuery,
		IdentityQuery: "VALUES IDENTITY_VAL_LOCAL()",
		Types: map[field.Type]string{
			field.TypeFloat64: "DOUBLE",
		},
	}
	SQLServer = &Adapter{
		Name:          dialect.SQLServer,
		Decorators:    []Decorator{TrimChar},
		Keys:          KeysIdentityQuery,
		IdentityQuery: "SELECT @@IDENTITY",
		Types: map[field.Type]string{
			field.TypeBool:        "BIT",
			field.TypeFloat64:     "FLOAT",
			field.TypeLongVarchar: "TEXT",
			field.TypeClob:        "NVARCHAR(MAX)",
			field.TypeBlob:        "VARBINARY(MAX)",
			field.TypeTime:        "DATETIME2",
			field.TypeUUID:        "UNIQUEIDENTIFIER",
		},
	}
	Sybase = &Adapter{
		Name:          dialect.Sybase,
		Decorators:    []Decorator{TrimChar},
		Keys:          KeysIdentityQuery,
		IdentityQuery: "SELECT @@IDENTITY",
		Types: map[field.Type]string{
			field.TypeBool:        "BIT",
			field.TypeFloat64:     "FLOAT",
			field.TypeLongVarchar: "TEXT",
			field.TypeClob:        "TEXT",
			field.TypeBlob:        "IMAGE",
			field.TypeTime:        "DATETIME",
		},
	}
	HSQLDB = &Adapter{
		Name:          dialect.HSQLDB,
		Keys:          KeysIdentityQuery,
		IdentityQuery: "CALL IDENTITY()",
		Types: map[field.Type]string{
			field.TypeFloat64: "DOUBLE",
		},
	}
)

var registry = struct {
	sync.RWMutex
	adapters map[string]*Adapter
}{
	adapters: map[string]*Adapter{},
}

func init() {
	for _, a := range []*Adapter{Postgres, MySQL, SQLite, Oracle, DB2, Derby, SQLServer, Sybase, HSQLDB} {
		Register(a)
	}
}

// Register adds an adapter to the registry, replacing any adapter with the
// same name.
func Register(a *Adapter) {
	registry.Lock()
	defer registry.Unlock()
	registry.adapters[a.Name] = a
}

// Lookup returns the adapter for a dialect or database/sql driver name.
func Lookup(name string) (*Adapter, error) {
	registry.RLock()
	defer registry.RUnlock()
	if a, ok := registry.adapters[name]; ok {
		return a, nil
	}
	if a, ok := registry.adapters[dialect.Normalize(name)]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("adapter: unknown dialect %q", name)
}

// Names returns the registered adapter names, sorted.
func Names() []string {
	registry.RLock()
	defer registry.RUnlock()
	return slices.Sorted(maps.Keys(registry.adapters))
}
