package cgen

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cayenne/internal/fixture"
	"github.com/syssam/cayenne/mapping"
	"github.com/syssam/cayenne/schema/field"
)

func TestNames(t *testing.T) {
	for in, want := range map[string]string{
		"artistId":       "ArtistID",
		"artistName":     "ArtistName",
		"toPaintingInfo": "ToPaintingInfo",
		"imageUrl":       "ImageURL",
		"uuid":           "UUID",
	} {
		assert.Equal(t, want, pascal(in), in)
	}
	assert.Equal(t, "painting_info.go", fileName("PaintingInfo"))
	assert.Equal(t, "paintinginfo", packageDir("PaintingInfo"))
	assert.Equal(t, "artistexhibit", packageDir("ArtistExhibit"))
}

func TestNew(t *testing.T) {
	_, err := New(nil, "model")
	require.Error(t, err)
	_, err = New(fixture.DataMap(), "")
	require.Error(t, err)
	g, err := New(fixture.DataMap(), filepath.Join("internal", "model"), WithWorkers(2))
	require.NoError(t, err)
	assert.Equal(t, "model", g.pkg)
	assert.Equal(t, 2, g.workers)
	g, err = New(fixture.DataMap(), "out", WithPackage("gallery"), WithWorkers(0))
	require.NoError(t, err)
	assert.Equal(t, "gallery", g.pkg)
	assert.Positive(t, g.workers)
}

func TestEntityFile(t *testing.T) {
	m := fixture.DataMap()
	g, err := New(m, "model")
	require.NoError(t, err)
	f, err := g.EntityFile(m.Entity("Painting"))
	require.NoError(t, err)
	src := fmt.Sprintf("%#v", f)

	assert.Contains(t, src, "// Code generated by cayenne. DO NOT EDIT.")
	assert.Contains(t, src, "package model")
	for _, re := range []string{
		`PaintingID\s+int64\s+` + "`json:\"paintingId\"`",
		`PaintingTitle\s+string\s+` + "`json:\"paintingTitle\"`",
		`PaintingDescription\s+\*string\s+` + "`json:\"paintingDescription,omitempty\"`",
		`EstimatedPrice\s+\*decimal\.Decimal`,
		`func \(x \*Painting\) ReadProperty\(name string\) \(any, error\)`,
		`func PaintingFrom\(r exp\.PropertyReader\) \(\*Painting, error\)`,
		`x\.PaintingTitle, _, err = read\[string\]\(r, "paintingTitle"\)`,
		`v, ok, err := read\[decimal\.Decimal\]\(r, "estimatedPrice"\)`,
	} {
		assert.Regexp(t, regexp.MustCompile(re), src)
	}

	f, err = g.EntityFile(m.Entity("PaintingInfo"))
	require.NoError(t, err)
	src = fmt.Sprintf("%#v", f)
	assert.Regexp(t, `ImageBlob\s+\[\]byte`, src, "byte slices are never pointers")

	f, err = g.EntityFile(m.Entity("Exhibit"))
	require.NoError(t, err)
	assert.Regexp(t, `OpeningDate\s+time\.Time`, fmt.Sprintf("%#v", f))
}

func TestEntityFileNullable(t *testing.T) {
	e := &mapping.Entity{Name: "Note", Attributes: []*mapping.Attribute{
		{Name: "text", Column: "TEXT", Type: field.TypeString},
	}}
	g, err := New(&mapping.DataMap{Name: "notes", Entities: []*mapping.Entity{e}}, "model")
	require.NoError(t, err)
	f, err := g.EntityFile(e)
	require.NoError(t, err)
	assert.NotContains(t, fmt.Sprintf("%#v", f), "var err error", "no field is assigned directly")
}

func TestEntityFileClash(t *testing.T) {
	e := &mapping.Entity{Name: "Note", Attributes: []*mapping.Attribute{
		{Name: "noteId", Column: "NOTE_ID", Type: field.TypeInt64},
		{Name: "note_id", Column: "NOTE_ID2", Type: field.TypeInt64},
	}}
	g, err := New(&mapping.DataMap{Entities: []*mapping.Entity{e}}, "model")
	require.NoError(t, err)
	_, err = g.EntityFile(e)
	require.Error(t, err)
	_, err = g.PackageFile(e)
	require.Error(t, err)
}

func TestPackageFile(t *testing.T) {
	m := fixture.DataMap()
	g, err := New(m, "model")
	require.NoError(t, err)
	f, err := g.PackageFile(m.Entity("Artist"))
	require.NoError(t, err)
	src := fmt.Sprintf("%#v", f)
	assert.Contains(t, src, "// Package artist holds the names and property paths of the Artist entity.")
	assert.Contains(t, src, "package artist")
	for _, re := range []string{
		`EntityName\s+= "Artist"`,
		`Table\s+= "ARTIST"`,
		`ColumnArtistName\s+= "ARTIST_NAME"`,
		`ArtistName\s+= exp\.ObjPath\("artistName"\)`,
		`Paintings\s+= exp\.ObjPath\("paintings"\)`,
	} {
		assert.Regexp(t, regexp.MustCompile(re), src)
	}
}

func TestGenerate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "model")
	g, err := New(fixture.DataMap(), dir, WithWorkers(3))
	require.NoError(t, err)
	require.NoError(t, g.Generate(context.Background()))

	files := []string{
		"cayenne.go",
		"artist.go", filepath.Join("artist", "artist.go"),
		"painting_info.go", filepath.Join("paintinginfo", "paintinginfo.go"),
		"artist_exhibit.go", filepath.Join("artistexhibit", "artistexhibit.go"),
	}
	fset := token.NewFileSet()
	for _, name := range files {
		path := filepath.Join(dir, name)
		src, err := os.ReadFile(path)
		require.NoError(t, err, name)
		_, err = parser.ParseFile(fset, path, src, parser.AllErrors)
		require.NoError(t, err, name)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 13, "helper, six classes and six packages")
}

func TestGenerateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g, err := New(fixture.DataMap(), filepath.Join(t.TempDir(), "model"))
	require.NoError(t, err)
	require.ErrorIs(t, g.Generate(ctx), context.Canceled)
}
