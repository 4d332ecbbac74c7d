// Package fixture provides the gallery data map shared by tests: artists,
// their paintings, galleries and exhibits.
package fixture

import (
	_ "embed"

	"github.com/syssam/cayenne/mapping"
)

//go:embed artist.yaml
var artistYAML []byte

// YAML returns the source of the gallery data map.
func YAML() []byte {
	return append([]byte(nil), artistYAML...)
}

// DataMap returns a fresh copy of the gallery data map.
func DataMap() *mapping.DataMap {
	m, err := mapping.Parse(artistYAML)
	if err != nil {
		panic(err)
	}
	return m
}
