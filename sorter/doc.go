// Package sorter orders entities and objects for commit.
//
// Entities of the mapped data maps form a referential graph where an entity
// holding a foreign key depends on the entity it references. The sorter
// contracts cycles of that graph into components and sorts the components
// topologically, breaking ties by declaration order, so the result is the
// same on every run:
//
//	s := sorter.New(dataMap)
//	names := []string{"Painting", "Artist"}
//	s.SortEntities(names, false) // [Artist Painting]
//	s.SortEntities(names, true)  // [Painting Artist]
//
// Objects of an entity that references itself are ordered with
// SortObjectsForEntity.
package sorter
