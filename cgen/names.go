package cgen

import (
	"strings"

	"github.com/go-openapi/inflect"
)

var acronyms = map[string]string{
	"api":  "API",
	"html": "HTML",
	"http": "HTTP",
	"id":   "ID",
	"ip":   "IP",
	"json": "JSON",
	"sql":  "SQL",
	"url":  "URL",
	"uuid": "UUID",
	"xml":  "XML",
}

// pascal returns the exported Go name of a mapping name, e.g. "ArtistID"
// for "artistId".
func pascal(s string) string {
	words := strings.Split(inflect.Underscore(s), "_")
	var b strings.Builder
	for _, w := range words {
		if w == "" {
			continue
		}
		if a, ok := acronyms[w]; ok {
			b.WriteString(a)
			continue
		}
		b.WriteString(strings.ToUpper(w[:1]) + w[1:])
	}
	return b.String()
}

// fileName returns the name of the file generated for an entity, e.g.
// "painting_info.go".
func fileName(entity string) string {
	return inflect.Underscore(entity) + ".go"
}

// packageDir returns the name of the package holding the names of an
// entity, e.g. "paintinginfo".
func packageDir(entity string) string {
	return strings.ToLower(strings.ReplaceAll(inflect.Underscore(entity), "_", ""))
}
