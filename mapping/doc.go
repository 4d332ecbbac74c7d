// Package mapping describes how persistent entities map to database tables.
//
// A DataMap holds entities; each entity has attributes mapped to columns and
// relationships to other entities, expressed as column joins. DataMaps are
// usually loaded from YAML:
//
//	name: gallery
//	entities:
//	  - name: Painting
//	    attributes:
//	      - {name: paintingId, type: bigint, primaryKey: true, generated: true}
//	      - {name: paintingTitle, type: varchar, length: 255}
//	      - {name: artistId, type: bigint}
//	    relationships:
//	      - {name: toArtist, target: Artist}
//
// Missing table and column names default to upper-case underscored names
// (PAINTING, PAINTING_TITLE) and simple joins are inferred from primary
// keys, see ApplyDefaults.
//
// Paths used in expressions are resolved with Entity.Resolve and
// Entity.ResolveDB.
package mapping
