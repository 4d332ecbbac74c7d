// Package adapter lowers qualifier expressions and row operations to the
// SQL of a specific database.
//
// An Adapter bundles the lowering Rules of a dialect with its paginator
// and generated key strategy. Rules start as standard SQL and are rewritten
// by Decorators, so dialect quirks compose:
//
//	a := &adapter.Adapter{
//		Name:       dialect.HSQLDB,
//		Decorators: []adapter.Decorator{adapter.TrimChar, adapter.CastLike(255, field.TypeClob)},
//	}
//
// A QualifierTranslator visits an expression rooted at one entity, joining
// the relationships its paths cross:
//
//	t := adapter.Postgres.NewTranslator(m.Entity("Artist"))
//	p, err := t.Translate(exp.ObjPath("paintings.paintingTitle").Like("A%"))
package adapter
