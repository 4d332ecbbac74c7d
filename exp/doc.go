// Package exp implements immutable expression trees used as query
// qualifiers and in-memory filters.
//
// Trees are built with the constructors of this package or parsed from text:
//
//	e := exp.And(
//		exp.ObjPath("artistName").Like("P%"),
//		exp.GT(exp.ObjPath("paintings.estimatedPrice"), 1000),
//	)
//	e.String() // artistName like "P%" and paintings.estimatedPrice > 1000
//
//	same, _ := exp.Parse(e.String())
//	exp.Equal(e, same) // true
//
// The same tree is evaluated against Go values with Match and Filter,
// encoded as EJBQL, and lowered to SQL by the translators of the
// dialect/sql/adapter package through the Visitor interface.
package exp
