// Package sql provides the SQL statement builders and the database/sql
// driver used by object contexts.
//
// Statements are built with a fluent API and rendered for a dialect:
//
//	a := sql.Table("ARTIST").As("t0")
//	p := sql.Table("PAINTING").As("t1")
//	stmt, err := sql.Dialect(dialect.Postgres).
//	    Select(a.C("ARTIST_ID"), a.C("ARTIST_NAME")).
//	    Distinct().
//	    From(a).
//	    Join(p).On(a.C("ARTIST_ID"), p.C("ARTIST_ID")).
//	    Where(sql.GT(p.C("ESTIMATED_PRICE"), 100)).
//	    Limit(10).
//	    Build()
//
// Parameters are recorded as Bindings, carrying the value together with
// the type and name of the column it is compared with. Placeholders are
// written when the statement is rendered: "$n" for PostgreSQL, ":n" for
// Oracle, "@pn" for SQL Server and Sybase, "?" elsewhere.
//
// # Pagination
//
// Limit and Offset are rendered by a Paginator. Each dialect has a default
// one (LIMIT/OFFSET, ROWNUM sub-selects, FETCH FIRST, OFFSET/FETCH NEXT),
// which Selector.Paginate overrides.
//
// # Drivers
//
// Driver adapts a *database/sql.DB to dialect.Driver. StatsDriver and
// DebugDriver wrap it with query statistics and logging.
package sql
