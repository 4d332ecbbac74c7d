package schema

import (
	"testing"

	"ariga.io/atlas/sql/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func table(name string, cols ...*schema.Column) *schema.Table {
	t := schema.NewTable(name).AddColumns(cols...)
	if len(cols) > 0 {
		t.SetPrimaryKey(schema.NewPrimaryKey(cols[0]))
	}
	return t
}

func varchar(name string, size int, null bool) *schema.Column {
	return schema.NewColumn(name).SetType(&schema.StringType{T: "varchar", Size: size}).SetNull(null)
}

func bigint(name string) *schema.Column {
	return schema.NewColumn(name).SetType(&schema.IntegerType{T: "bigint"})
}

func TestValidateDiff(t *testing.T) {
	current := []*schema.Table{
		table("ARTIST", bigint("ARTIST_ID"), varchar("ARTIST_NAME", 255, true), varchar("NICK", 10, true)),
		table("LEGACY", bigint("ID")),
	}
	desired := []*schema.Table{
		table("artist", bigint("ARTIST_ID"), varchar("artist_name", 100, false), varchar("BIO", 10, false)),
	}
	res := ValidateDiff(current, desired)
	require.True(t, res.HasErrors())
	assert.True(t, res.HasBreakingChanges())

	var errs, warns []string
	for _, e := range res.Errors {
		errs = append(errs, e.Error())
	}
	for _, w := range res.Warnings {
		warns = append(warns, w.Error())
	}
	assert.ElementsMatch(t, []string{
		"ARTIST.NICK: column will be dropped",
		"ARTIST.artist_name: column changing from NULL to NOT NULL may fail if column has NULL values",
		"LEGACY: table will be dropped",
	}, errs)
	assert.ElementsMatch(t, []string{
		"ARTIST.BIO: new NOT NULL column without default value may fail if table has data",
		"ARTIST.artist_name: column type changing from varchar(255) to varchar(100)",
		"ARTIST.artist_name: column size reducing from 255 to 100 may truncate data",
	}, warns)

	res = ValidateDiff(current, desired, AllowDropTable(), AllowDropColumn(), AllowNullToNotNull())
	assert.False(t, res.HasErrors(), res.String())
	assert.Len(t, res.Warnings, 6)
}

func TestValidateDiffIndexes(t *testing.T) {
	cur := table("T", bigint("ID"), bigint("X"))
	cur.AddIndexes(schema.NewIndex("T_X").AddColumns(cur.Columns[1]))
	want := table("T", bigint("ID"), bigint("X"))

	res := ValidateDiff([]*schema.Table{cur}, []*schema.Table{want})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, `T: index "T_X" will be dropped`, res.Errors[0].Error())

	res = ValidateDiff([]*schema.Table{cur}, []*schema.Table{want}, AllowDropIndex())
	assert.False(t, res.HasErrors())
	assert.Equal(t, "Warnings:\n  - T: index \"T_X\" will be dropped\n", res.String())
}

func TestValidateTables(t *testing.T) {
	a := table("A", bigint("ID"), bigint("ID"))
	b := schema.NewTable("B").AddColumns(bigint("A_ID"))
	ghost := schema.NewTable("GHOST")
	b.AddForeignKeys(schema.NewForeignKey("B_A_FK").SetTable(b).SetRefTable(ghost).AddColumns(b.Columns[0]))

	res := ValidateTables([]*schema.Table{a, b})
	assert.Len(t, res.Errors, 3)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "B: table has no primary key", res.Warnings[0].Error())
	assert.Equal(t, "No issues found", ValidateTables(nil).String())
}
