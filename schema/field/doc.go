// Package field defines the logical column types used by mapped attributes.
//
// Translators and the schema generator consult the type of a column when
// lowering an expression or a table definition:
//
//	field.TypeChar.Textual()   // true
//	field.TypeClob.LOB()       // true
//	field.ParseType("bigint")  // field.TypeInt64
//
// Types marshal to and from YAML by name, so DataMap files can write
// `type: varchar` or `type: clob` directly.
package field
