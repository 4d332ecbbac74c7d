// Package schema creates and checks the tables of a DataMap.
//
// A Generator builds atlas tables from the mapped entities and renders
// CREATE TABLE statements through the atlas planner of PostgreSQL, MySQL
// and SQLite. Other dialects get statements rendered with the type names
// of their adapter:
//
//	g, err := schema.NewGenerator(m, adapter.Postgres)
//	if err != nil {
//		return err
//	}
//	if err := g.Create(ctx, drv); err != nil {
//		return err
//	}
//
// ValidateDiff compares an inspected database with the generated tables
// and reports the changes that would lose data.
package schema
