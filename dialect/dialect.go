package dialect

import (
	"context"
	"strings"
)

// Database dialects.
const (
	Postgres  = "postgres"
	MySQL     = "mysql"
	SQLite    = "sqlite"
	Oracle    = "oracle"
	DB2       = "db2"
	Derby     = "derby"
	SQLServer = "sqlserver"
	Sybase    = "sybase"
	HSQLDB    = "hsqldb"
)

// Dialects lists the known dialects.
var Dialects = []string{Postgres, MySQL, SQLite, Oracle, DB2, Derby, SQLServer, Sybase, HSQLDB}

// Normalize maps a database/sql driver name to its dialect, e.g. "pgx" and
// "postgresql" to Postgres or "sqlite3" to SQLite. Unknown names are
// returned as is.
func Normalize(name string) string {
	n := strings.ToLower(name)
	switch {
	case n == "pgx" || strings.HasPrefix(n, "postgres"):
		return Postgres
	case strings.HasPrefix(n, SQLite):
		return SQLite
	case n == "mssql" || n == "azuresql":
		return SQLServer
	case n == "godror" || n == "oci8":
		return Oracle
	}
	for _, d := range Dialects {
		if strings.HasPrefix(n, d) {
			return d
		}
	}
	return name
}

// ExecQuerier wraps the two database operations.
type ExecQuerier interface {
	// Exec executes a query that does not return records. For example, in SQL, INSERT or UPDATE.
	// It scans the result into the pointer v. For SQL drivers, it is dialect/sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows, typically a SELECT in SQL.
	// It scans the result into the pointer v. For SQL drivers, it is *dialect/sql.Rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for object
// contexts to talk to a database.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

type nopTx struct {
	Driver
}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

// NopTx returns a Tx with a no-op Commit / Rollback methods wrapping
// the given driver.
func NopTx(d Driver) Tx {
	return nopTx{d}
}
