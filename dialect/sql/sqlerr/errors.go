// Package sqlerr classifies database errors returned by the SQL drivers.
package sqlerr

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/syssam/cayenne"
)

// Kind is the kind of constraint a database error violated.
type Kind uint8

// Constraint kinds.
const (
	None Kind = iota
	Unique
	ForeignKey
	Check
	NotNull
)

var kindNames = [...]string{
	None:       "none",
	Unique:     "unique",
	ForeignKey: "foreign key",
	Check:      "check",
	NotNull:    "not null",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[None]
}

// IsConstraintError returns true if the error resulted from a database
// constraint violation.
func IsConstraintError(err error) bool {
	return cayenne.IsConstraintError(err) || Classify(err) != None
}

// IsUniqueConstraintError reports if the error resulted from a uniqueness
// constraint violation, e.g. a duplicate primary key.
func IsUniqueConstraintError(err error) bool { return Classify(err) == Unique }

// IsForeignKeyConstraintError reports if the error resulted from a foreign
// key constraint violation, e.g. a missing parent row.
func IsForeignKeyConstraintError(err error) bool { return Classify(err) == ForeignKey }

// IsCheckConstraintError reports if the error resulted from a check
// constraint violation.
func IsCheckConstraintError(err error) bool { return Classify(err) == Check }

// Wrap returns err as a cayenne.ConstraintError when it is a constraint
// violation, and err otherwise.
func Wrap(err error) error {
	if err == nil || cayenne.IsConstraintError(err) {
		return err
	}
	if k := Classify(err); k != None {
		return cayenne.NewConstraintError(k.String()+": "+err.Error(), err)
	}
	return err
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlBadNull                = 1048
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// SQLite extended result codes for constraint violations.
const (
	sqliteCheck      = 275
	sqliteForeignKey = 787
	sqliteNotNull    = 1299
	sqlitePrimaryKey = 1555
	sqliteUnique     = 2067
)

// sqlStateError is implemented by pgx errors and other drivers reporting
// SQLSTATE codes.
type sqlStateError interface {
	SQLState() string
}

// codeError is implemented by modernc.org/sqlite errors.
type codeError interface {
	Code() int
}

// Classify returns the kind of constraint the error violated, or None.
func Classify(err error) Kind {
	if err == nil {
		return None
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pgKind(string(pe.Code))
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDuplicateEntry:
			return Unique
		case mysqlForeignKeyParent, mysqlForeignKeyChild:
			return ForeignKey
		case mysqlCheckConstraintViolate:
			return Check
		case mysqlBadNull:
			return NotNull
		}
		return None
	}
	if e, ok := asError[sqlStateError](err); ok {
		if k := pgKind(e.SQLState()); k != None {
			return k
		}
	}
	if e, ok := asError[codeError](err); ok {
		switch e.Code() {
		case sqliteUnique, sqlitePrimaryKey:
			return Unique
		case sqliteForeignKey:
			return ForeignKey
		case sqliteCheck:
			return Check
		case sqliteNotNull:
			return NotNull
		}
	}
	// Fallback to string matching for drivers that don't expose codes.
	msg := err.Error()
	switch {
	case containsAny(msg, "Error 1062", "violates unique constraint", "UNIQUE constraint failed"):
		return Unique
	case containsAny(msg, "Error 1451", "Error 1452", "violates foreign key constraint", "FOREIGN KEY constraint failed"):
		return ForeignKey
	case containsAny(msg, "Error 3819", "violates check constraint", "CHECK constraint failed"):
		return Check
	case containsAny(msg, "Error 1048", "violates not-null constraint", "NOT NULL constraint failed"):
		return NotNull
	}
	return None
}

func pgKind(code string) Kind {
	switch code {
	case pgUniqueViolation:
		return Unique
	case pgForeignKeyViolation:
		return ForeignKey
	case pgCheckViolation:
		return Check
	case pgNotNullViolation:
		return NotNull
	}
	return None
}

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
