package adapter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cayenne/dialect"
	"github.com/syssam/cayenne/dialect/sql"
	"github.com/syssam/cayenne/exp"
	"github.com/syssam/cayenne/internal/fixture"
	"github.com/syssam/cayenne/mapping"
	"github.com/syssam/cayenne/schema/field"
)

func golden(stmt *sql.Statement) []byte {
	var b strings.Builder
	b.WriteString(stmt.SQL)
	b.WriteByte('\n')
	for i, bd := range stmt.Bindings {
		fmt.Fprintf(&b, "%d: %v %s %s\n", i+1, bd.Value, bd.Type, bd.Column)
	}
	return []byte(b.String())
}

func TestSelectSQLPagination(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	spec := SelectSpec{
		Entity: fixture.DataMap().Entity("Painting"),
		Qualifier: exp.And(
			exp.ObjPath("toArtist.artistName").LikeIgnoreCase("d%"),
			exp.ObjPath("estimatedPrice").GT(100),
		),
		Orderings: []Ordering{Asc("paintingTitle")},
		Limit:     10,
		Offset:    20,
	}
	for _, name := range []string{
		dialect.Postgres, dialect.MySQL, dialect.SQLite, dialect.Oracle,
		dialect.SQLServer, dialect.DB2, dialect.Derby,
	} {
		t.Run(name, func(t *testing.T) {
			a, err := Lookup(name)
			require.NoError(t, err)
			stmt, err := a.SelectSQL(spec)
			require.NoError(t, err)
			g.Assert(t, "select_"+name, golden(stmt))
		})
	}
}

func TestSelectSQL(t *testing.T) {
	m := fixture.DataMap()
	t.Run("all rows", func(t *testing.T) {
		stmt, err := MySQL.SelectSQL(SelectSpec{Entity: m.Entity("Gallery")})
		require.NoError(t, err)
		assert.Equal(t, "SELECT t0.GALLERY_ID, t0.GALLERY_NAME FROM GALLERY t0", stmt.SQL)
		assert.Nil(t, stmt.Args())
	})
	t.Run("distinct", func(t *testing.T) {
		stmt, err := MySQL.SelectSQL(SelectSpec{
			Entity:    m.Entity("Artist"),
			Qualifier: exp.ObjPath("paintings.paintingTitle").Like("a%"),
			Orderings: []Ordering{
				Desc("paintings.estimatedPrice"),
				{Path: "artistName", IgnoreCase: true},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "SELECT DISTINCT t0.ARTIST_ID, t0.ARTIST_NAME, t0.DATE_OF_BIRTH, t1.ESTIMATED_PRICE, UPPER(t0.ARTIST_NAME) "+
			"FROM ARTIST t0 JOIN PAINTING t1 ON t0.ARTIST_ID = t1.ARTIST_ID "+
			"WHERE t1.PAINTING_TITLE LIKE ? ORDER BY t1.ESTIMATED_PRICE DESC, UPPER(t0.ARTIST_NAME)", stmt.SQL)
		assert.Equal(t, []any{"a%"}, stmt.Args())
	})
	t.Run("outer join ordering", func(t *testing.T) {
		stmt, err := Postgres.SelectSQL(SelectSpec{
			Entity:    m.Entity("Painting"),
			Orderings: []Ordering{Asc("toGallery+.galleryName"), Desc("db:PAINTING_ID")},
		})
		require.NoError(t, err)
		assert.Equal(t, "SELECT t0.PAINTING_ID, t0.PAINTING_TITLE, t0.PAINTING_DESCRIPTION, t0.ESTIMATED_PRICE, t0.ARTIST_ID, t0.GALLERY_ID "+
			"FROM PAINTING t0 LEFT JOIN GALLERY t1 ON t0.GALLERY_ID = t1.GALLERY_ID "+
			"ORDER BY t1.GALLERY_NAME, t0.PAINTING_ID DESC", stmt.SQL)
	})
	t.Run("parameters", func(t *testing.T) {
		stmt, err := Postgres.SelectSQL(SelectSpec{
			Entity:    m.Entity("Gallery"),
			Qualifier: exp.ObjPath("galleryId").EQ(exp.P("id")),
			Params:    map[string]any{"id": 4},
			ForUpdate: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "SELECT t0.GALLERY_ID, t0.GALLERY_NAME FROM GALLERY t0 WHERE t0.GALLERY_ID = $1 FOR UPDATE", stmt.SQL)
		assert.Equal(t, []sql.Binding{{Value: 4, Type: field.TypeInt64, Column: "GALLERY_ID"}}, stmt.Bindings)
	})
	t.Run("unordered offset", func(t *testing.T) {
		stmt, err := SQLServer.SelectSQL(SelectSpec{Entity: m.Entity("Gallery"), Offset: 5})
		require.NoError(t, err)
		assert.Equal(t, "SELECT t0.GALLERY_ID, t0.GALLERY_NAME FROM GALLERY t0 ORDER BY (SELECT NULL) OFFSET 5 ROWS", stmt.SQL)
	})
	t.Run("offset only", func(t *testing.T) {
		stmt, err := MySQL.SelectSQL(SelectSpec{Entity: m.Entity("Gallery"), Offset: 5})
		require.NoError(t, err)
		assert.Equal(t, "SELECT t0.GALLERY_ID, t0.GALLERY_NAME FROM GALLERY t0 LIMIT 18446744073709551615 OFFSET 5", stmt.SQL)
	})
	t.Run("custom paginator", func(t *testing.T) {
		a := &Adapter{Name: dialect.HSQLDB, Paginator: sql.FetchFirst}
		stmt, err := a.SelectSQL(SelectSpec{Entity: m.Entity("Gallery"), Limit: 3})
		require.NoError(t, err)
		assert.Equal(t, "SELECT t0.GALLERY_ID, t0.GALLERY_NAME FROM GALLERY t0 FETCH FIRST 3 ROWS ONLY", stmt.SQL)
	})
	t.Run("errors", func(t *testing.T) {
		_, err := MySQL.SelectSQL(SelectSpec{})
		require.Error(t, err)
		_, err = MySQL.SelectSQL(SelectSpec{Entity: m.Entity("Gallery"), Orderings: []Ordering{Asc("nope")}})
		require.Error(t, err)
	})
}

func TestInsertSQL(t *testing.T) {
	artist := fixture.DataMap().Entity("Artist")
	t.Run("returning", func(t *testing.T) {
		ins, err := Postgres.InsertSQL(artist, map[string]any{"ARTIST_NAME": "Dali"})
		require.NoError(t, err)
		assert.Equal(t, "INSERT INTO ARTIST (ARTIST_NAME) VALUES ($1) RETURNING ARTIST_ID", ins.SQL)
		assert.True(t, ins.Returning)
		require.Len(t, ins.Generated, 1)
		assert.Equal(t, "ARTIST_ID", ins.Generated[0].Column)
		assert.Equal(t, []sql.Binding{{Value: "Dali", Type: field.TypeString, Column: "ARTIST_NAME"}}, ins.Bindings)
	})
	t.Run("last insert id", func(t *testing.T) {
		ins, err := MySQL.InsertSQL(artist, map[string]any{"ARTIST_NAME": "Dali", "DATE_OF_BIRTH": "1904-05-11"})
		require.NoError(t, err)
		assert.Equal(t, "INSERT INTO ARTIST (ARTIST_NAME, DATE_OF_BIRTH) VALUES (?, ?)", ins.SQL)
		assert.False(t, ins.Returning)
		assert.Len(t, ins.Generated, 1)
	})
	t.Run("explicit key", func(t *testing.T) {
		ins, err := Postgres.InsertSQL(artist, map[string]any{"ARTIST_ID": 5, "ARTIST_NAME": "Dali"})
		require.NoError(t, err)
		assert.Equal(t, "INSERT INTO ARTIST (ARTIST_ID, ARTIST_NAME) VALUES ($1, $2)", ins.SQL)
		assert.Empty(t, ins.Generated)
		assert.False(t, ins.Returning)
	})
	t.Run("defaults", func(t *testing.T) {
		ins, err := MySQL.InsertSQL(artist, nil)
		require.NoError(t, err)
		assert.Equal(t, "INSERT INTO ARTIST VALUES ()", ins.SQL)
		ins, err = SQLite.InsertSQL(artist, nil)
		require.NoError(t, err)
		assert.Equal(t, "INSERT INTO ARTIST DEFAULT VALUES RETURNING ARTIST_ID", ins.SQL)
	})
	t.Run("unknown column", func(t *testing.T) {
		_, err := MySQL.InsertSQL(artist, map[string]any{"NICKNAME": "x"})
		require.Error(t, err)
	})
	t.Run("identity query", func(t *testing.T) {
		for _, a := range []*Adapter{SQLServer, Sybase, DB2, Derby, HSQLDB} {
			ins, err := a.InsertSQL(artist, map[string]any{"ARTIST_NAME": "Dali"})
			require.NoError(t, err, a.Name)
			assert.Equal(t, KeysIdentityQuery, a.Keys, a.Name)
			assert.NotEmpty(t, ins.IdentityQuery, a.Name)
			assert.False(t, ins.Returning, a.Name)
		}
		ins, err := MySQL.InsertSQL(artist, map[string]any{"ARTIST_NAME": "Dali"})
		require.NoError(t, err)
		assert.Empty(t, ins.IdentityQuery)
	})
	t.Run("no key read back", func(t *testing.T) {
		_, err := Oracle.InsertSQL(artist, map[string]any{"ARTIST_NAME": "Dali"})
		require.EqualError(t, err, "adapter: oracle can not read back the generated key ARTIST_ID of Artist")
		ins, err := Oracle.InsertSQL(artist, map[string]any{"ARTIST_ID": 5, "ARTIST_NAME": "Dali"})
		require.NoError(t, err)
		assert.Empty(t, ins.Generated)
		assert.Equal(t, "none", KeysNone.String())
	})
	t.Run("several generated keys", func(t *testing.T) {
		pair := &mapping.Entity{Name: "Pair", Table: "PAIR", Attributes: []*mapping.Attribute{
			{Name: "a", Column: "A", Type: field.TypeInt64, PrimaryKey: true, Generated: true},
			{Name: "b", Column: "B", Type: field.TypeInt64, PrimaryKey: true, Generated: true},
		}}
		mapping.New("pairs", pair)
		_, err := MySQL.InsertSQL(pair, nil)
		require.Error(t, err)
		ins, err := Postgres.InsertSQL(pair, nil)
		require.NoError(t, err)
		assert.True(t, ins.Returning)
	})
}

func TestUpdateDeleteSQL(t *testing.T) {
	m := fixture.DataMap()
	painting := m.Entity("Painting")
	stmt, err := MySQL.UpdateSQL(painting,
		map[string]any{"PAINTING_TITLE": "Sunflowers", "ESTIMATED_PRICE": nil},
		map[string]any{"PAINTING_ID": 3},
	)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE PAINTING SET PAINTING_TITLE = ?, ESTIMATED_PRICE = NULL WHERE PAINTING_ID = ?", stmt.SQL)
	assert.Equal(t, []any{"Sunflowers", 3}, stmt.Args())

	_, err = MySQL.UpdateSQL(painting, map[string]any{"PAINTING_TITLE": "x"}, nil)
	require.Error(t, err, "missing key")
	_, err = MySQL.UpdateSQL(painting, nil, map[string]any{"PAINTING_ID": 3})
	require.Error(t, err, "nothing to set")

	stmt, err = Postgres.DeleteSQL(m.Entity("ArtistExhibit"), map[string]any{"ARTIST_ID": 1, "EXHIBIT_ID": 2})
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM ARTIST_EXHIBIT WHERE ARTIST_ID = $1 AND EXHIBIT_ID = $2", stmt.SQL)
	assert.Equal(t, []any{1, 2}, stmt.Args())

	_, err = Postgres.DeleteSQL(m.Entity("ArtistExhibit"), map[string]any{"ARTIST_ID": 1})
	require.Error(t, err)
}

func TestUpdateDeleteSQLLocking(t *testing.T) {
	painting := fixture.DataMap().Entity("Painting")
	painting.Attribute("paintingTitle").UsedForLocking = true
	painting.Attribute("estimatedPrice").UsedForLocking = true
	require.Len(t, painting.LockingAttributes(), 2)

	stmt, err := MySQL.UpdateSQL(painting,
		map[string]any{"PAINTING_TITLE": "Sunflowers"},
		map[string]any{"PAINTING_ID": 3, "PAINTING_TITLE": "Irises", "ESTIMATED_PRICE": nil},
	)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE PAINTING SET PAINTING_TITLE = ? WHERE PAINTING_ID = ? AND PAINTING_TITLE = ? AND ESTIMATED_PRICE IS NULL", stmt.SQL)
	assert.Equal(t, []any{"Sunflowers", 3, "Irises"}, stmt.Args())

	stmt, err = Postgres.DeleteSQL(painting, map[string]any{"PAINTING_ID": 3, "PAINTING_TITLE": "Irises"})
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM PAINTING WHERE PAINTING_ID = $1 AND PAINTING_TITLE = $2", stmt.SQL, "locking columns missing from the key are not checked")
	assert.Equal(t, []any{3, "Irises"}, stmt.Args())
}
