package schema

import (
	"context"
	stdsql "database/sql"
	"fmt"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/cayenne/dialect"
)

// Inspect reads the tables of the current schema of a database. The name
// is a dialect or database/sql driver name.
func Inspect(ctx context.Context, db *stdsql.DB, name string) ([]*schema.Table, error) {
	var (
		drv migrate.Driver
		err error
	)
	switch n := dialect.Normalize(name); n {
	case dialect.Postgres:
		drv, err = postgres.Open(db)
	case dialect.MySQL:
		drv, err = mysql.Open(db)
	case dialect.SQLite:
		drv, err = sqlite.Open(db)
	default:
		return nil, fmt.Errorf("schema: inspecting %s databases is not supported", n)
	}
	if err != nil {
		return nil, fmt.Errorf("schema: open %s: %w", name, err)
	}
	s, err := drv.InspectSchema(ctx, "", nil)
	if err != nil {
		return nil, fmt.Errorf("schema: inspect: %w", err)
	}
	return s.Tables, nil
}
