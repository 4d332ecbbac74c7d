package exp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cayenne/exp"
)

func TestParams(t *testing.T) {
	e := exp.MustParse(`a = $x and b = $y`)

	t.Run("Bind", func(t *testing.T) {
		bound, err := exp.Params(e, map[string]any{"x": 1, "y": "z"}, false)
		require.NoError(t, err)
		assert.Equal(t, `a = 1 and b = "z"`, bound.String())
		assert.Equal(t, `a = $x and b = $y`, e.String())
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := exp.Params(e, map[string]any{"x": 1}, false)
		assert.ErrorIs(t, err, exp.ErrMissingParam)
	})

	t.Run("Prune", func(t *testing.T) {
		bound, err := exp.Params(e, map[string]any{"x": 1}, true)
		require.NoError(t, err)
		assert.Equal(t, `a = 1`, bound.String())
	})

	t.Run("PruneAll", func(t *testing.T) {
		bound, err := exp.Params(e, nil, true)
		require.NoError(t, err)
		assert.Nil(t, bound)
	})

	t.Run("PruneNested", func(t *testing.T) {
		nested := exp.MustParse(`(a = $x or not (b = $y)) and c + $z > 1`)
		bound, err := exp.Params(nested, map[string]any{"x": nil}, true)
		require.NoError(t, err)
		assert.Equal(t, `a = null`, bound.String())
	})

	t.Run("InList", func(t *testing.T) {
		in := exp.MustParse(`id in $ids and name not in $names`)
		bound, err := exp.Params(in, map[string]any{
			"ids":   []int{1, 2},
			"names": []string{"x"},
		}, false)
		require.NoError(t, err)
		assert.Equal(t, `id in (1,2) and name not in ("x")`, bound.String())

		ok, err := exp.Match(bound, map[string]any{"id": 2, "name": "y"})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Expression", func(t *testing.T) {
		bound, err := exp.Params(exp.MustParse(`a = $x`), map[string]any{"x": exp.ObjPath("b")}, false)
		require.NoError(t, err)
		assert.Equal(t, `a = b`, bound.String())
	})
}

func TestParamNames(t *testing.T) {
	e := exp.MustParse(`a = $x or b in $ids or c = $x`)
	assert.Equal(t, []string{"x", "ids"}, exp.ParamNames(e))
	assert.Empty(t, exp.ParamNames(exp.True()))
}

func TestEJBQL(t *testing.T) {
	tests := []struct {
		name string
		e    exp.Expression
		s    string
	}{
		{
			name: "null and quoting",
			e:    exp.And(exp.MatchExp("artistName", "O'Neil"), exp.NoMatchExp("dateOfBirth", nil)),
			s:    `a.artistName = 'O''Neil' and a.dateOfBirth is not null`,
		},
		{
			name: "ignore case",
			e:    exp.LikeIgnoreCaseExp("artistName", "p%"),
			s:    `upper(a.artistName) like upper('p%')`,
		},
		{
			name: "not like",
			e:    exp.NotLike(exp.ObjPath("artistName"), "p%"),
			s:    `a.artistName not like 'p%'`,
		},
		{
			name: "parameter",
			e:    exp.InExp("id", exp.P("ids")),
			s:    `a.id in :ids`,
		},
		{
			name: "list",
			e:    exp.InExp("artistName", "x", "y"),
			s:    `a.artistName in ('x', 'y')`,
		},
		{
			name: "not equal",
			e:    exp.Not(exp.Or(exp.NoMatchExp("x", 1), exp.ObjPath("toArtist+.y").IsNull())),
			s:    `not (a.x <> 1 or a.toArtist.y is null)`,
		},
		{
			name: "bool",
			e:    exp.Or(exp.False(), exp.BetweenExp("price", 1, 2)),
			s:    `1 = 0 or a.price between 1 and 2`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := exp.EJBQL(tt.e, "a")
			require.NoError(t, err)
			assert.Equal(t, tt.s, s)
		})
	}

	_, err := exp.EJBQL(exp.MatchDbExp("ARTIST_ID", 1), "a")
	assert.Error(t, err)
}
