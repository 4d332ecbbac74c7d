package cli

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/cayenne/internal/fixture"
)

// run executes the cayenne command with the fixture data map.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gallery.yaml")
	require.NoError(t, os.WriteFile(path, fixture.YAML(), 0o600))
	return runWith(t, append([]string{"-m", path}, args...)...)
}

func runWith(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootFormat(t *testing.T) {
	_, err := run(t, "sort", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
}

func TestTranslate(t *testing.T) {
	out, err := run(t, "translate", "Gallery", "galleryId = $id", "--param", "id=4", "--ejbql")
	require.NoError(t, err)
	assert.Equal(t, "SELECT t0.GALLERY_ID, t0.GALLERY_NAME FROM GALLERY t0 WHERE t0.GALLERY_ID = $1\n"+
		"1: 4 int64 GALLERY_ID\n"+
		"Gallery.galleryId = :id\n", out)

	out, err = run(t, "translate", "Gallery", "--dialect", "mysql", "--order", "-~galleryName", "--limit", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "ORDER BY UPPER(t0.GALLERY_NAME) DESC LIMIT 2")

	out, err = run(t, "--format", "json", "translate", "Painting", `paintingTitle like "S%"`, "-d", "sqlite")
	require.NoError(t, err)
	var resp struct {
		Status string      `json:"status"`
		Data   Translation `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Bindings, 1)
	assert.Equal(t, "S%", resp.Data.Bindings[0].Value)
	assert.Equal(t, "PAINTING_TITLE", resp.Data.Bindings[0].Column)

	t.Run("errors", func(t *testing.T) {
		for _, args := range [][]string{
			{"translate", "Nope"},
			{"translate", "Gallery", "galleryId ="},
			{"translate", "Gallery", "--dialect", "informix"},
			{"translate", "Gallery", "nope = 1"},
		} {
			_, err := run(t, args...)
			require.Error(t, err, args)
			assert.Equal(t, ExitCommandError, GetExitCode(err), args)
		}
	})
}

func TestParamValues(t *testing.T) {
	assert.Nil(t, paramValues(nil))
	assert.Equal(t, map[string]any{
		"n": int64(3),
		"f": 2.5,
		"b": true,
		"s": "Dali",
	}, paramValues(map[string]string{"n": "3", "f": "2.5", "b": "true", "s": "Dali"}))
}

func TestSort(t *testing.T) {
	out, err := run(t, "sort", "ArtistExhibit", "Gallery", "Painting", "Artist")
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	require.Len(t, lines, 4)
	index := func(name string) int {
		for i, l := range lines {
			if string(l) == name {
				return i
			}
		}
		return -1
	}
	assert.Less(t, index("Artist"), index("Painting"))
	assert.Less(t, index("Gallery"), index("Painting"))
	assert.Less(t, index("Artist"), index("ArtistExhibit"))

	out, err = run(t, "--format", "json", "sort", "--delete")
	require.NoError(t, err)
	var resp struct {
		Data []string `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 6)
	pos := make(map[string]int)
	for i, name := range resp.Data {
		pos[name] = i
	}
	assert.Less(t, pos["Painting"], pos["Artist"])
	assert.Less(t, pos["PaintingInfo"], pos["Painting"])
	assert.Less(t, pos["ArtistExhibit"], pos["Exhibit"])

	_, err = run(t, "sort", "Nope")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	out, err := run(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "6 entities, no errors")

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: broken
entities:
  - name: Note
    table: NOTE
    attributes:
      - name: text
        type: string
    relationships:
      - name: author
        target: Person
`), 0o600))
	out, err = runWith(t, "-m", path, "validate")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "error: Note.author:")

	_, err = runWith(t, "-m", filepath.Join(t.TempDir(), "missing.yaml"), "validate")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDDL(t *testing.T) {
	out, err := run(t, "ddl", "--dialect", "oracle", "--foreign-keys=false")
	require.NoError(t, err)
	assert.Contains(t, out, "CREATE TABLE GALLERY (GALLERY_ID NUMBER(19) NOT NULL, GALLERY_NAME VARCHAR2(100) NOT NULL, PRIMARY KEY (GALLERY_ID));\n")
	assert.NotContains(t, out, "FOREIGN KEY")

	out, err = run(t, "ddl", "--drop", "-d", "sqlserver")
	require.NoError(t, err)
	assert.Equal(t, "DROP TABLE ARTIST_EXHIBIT;\n", out[:len("DROP TABLE ARTIST_EXHIBIT;\n")])

	_, err = run(t, "ddl", "--apply")
	require.Error(t, err)
}

func TestDDLApply(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "gallery.db")
	out, err := run(t, "ddl", "--apply", "--driver", "sqlite", "--dsn", dsn)
	require.NoError(t, err)
	assert.Equal(t, "applied 6 tables\n", out)

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type = 'table'").Scan(&n))
	assert.Equal(t, 6, n)
}

func TestDDLCheck(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "gallery.db")
	_, err := run(t, "ddl", "--check")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	_, err = run(t, "ddl", "--check", "--apply", "--driver", "sqlite", "--dsn", dsn)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = run(t, "ddl", "--apply", "--driver", "sqlite", "--dsn", dsn)
	require.NoError(t, err)
	out, err := run(t, "ddl", "--check", "--driver", "sqlite", "--dsn", dsn)
	require.NoError(t, err, out)
	assert.NotContains(t, out, "Errors:")

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec("CREATE TABLE SCULPTURE (SCULPTURE_ID INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	_, err = db.Exec("ALTER TABLE ARTIST ADD COLUMN NICKNAME TEXT")
	require.NoError(t, err)

	out, err = run(t, "ddl", "--check", "--driver", "sqlite", "--dsn", dsn)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "SCULPTURE: table will be dropped")
	assert.Contains(t, out, "ARTIST.NICKNAME: column will be dropped")

	out, err = run(t, "--format", "json", "ddl", "--check", "--driver", "sqlite", "--dsn", dsn)
	require.Error(t, err)
	var resp struct {
		Status string       `json:"status"`
		Data   SchemaReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.InSync)
	assert.Len(t, resp.Data.Errors, 2)
}

func TestCgen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "model")
	out, err := run(t, "cgen", dir, "--workers", "2")
	require.NoError(t, err)
	assert.Equal(t, "generated 6 entities into "+dir+"\n", out)
	_, err = os.Stat(filepath.Join(dir, "painting", "painting.go"))
	require.NoError(t, err)
}
