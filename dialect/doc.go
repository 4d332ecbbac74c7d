// Package dialect defines the database driver contract and the names of
// the supported SQL dialects.
//
// A Driver executes statements and opens transactions:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// Dialect names select the SQL flavor used by translators:
//
//	dialect.Postgres  = "postgres"
//	dialect.MySQL     = "mysql"
//	dialect.SQLite    = "sqlite"
//	dialect.Oracle    = "oracle"
//	dialect.DB2       = "db2"
//	dialect.Derby     = "derby"
//	dialect.SQLServer = "sqlserver"
//	dialect.Sybase    = "sybase"
//	dialect.HSQLDB    = "hsqldb"
//
// The database/sql implementation lives in dialect/sql:
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
package dialect
