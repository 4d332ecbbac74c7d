// Package cayenne holds the types shared by every layer of the object
// persistence core: object identity (ObjectID), persistence states, the
// shared query cache contract and the error values returned by queries and
// commits.
//
// The work itself happens in the sub-packages:
//
//	exp                    expression trees, in-memory evaluation, parsing
//	graph                  object graph diffs and the change map
//	sorter                 foreign key ordering of entities and objects
//	mapping                DataMap metadata loaded from YAML
//	dialect/sql/adapter    per-database qualifier translators and pagination
//	access                 object contexts, selects and transactional commits
package cayenne
