package exp_test

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cayenne/exp"
)

func TestString(t *testing.T) {
	tests := []struct {
		E exp.Expression
		S string
	}{
		{
			E: exp.And(
				exp.ObjPath("artistName").Like("P%"),
				exp.GT(exp.ObjPath("paintings.estimatedPrice"), 1000),
			),
			S: `artistName like "P%" and paintings.estimatedPrice > 1000`,
		},
		{
			E: exp.Or(
				exp.MatchExp("a", 1),
				exp.And(exp.MatchExp("b", "x"), exp.NoMatchExp("c", nil)),
			),
			S: `a = 1 or b = "x" and c != null`,
		},
		{
			E: exp.And(exp.Or(exp.MatchExp("a", 1), exp.MatchExp("b", 2)), exp.MatchExp("c", 3)),
			S: `(a = 1 or b = 2) and c = 3`,
		},
		{
			E: exp.Not(exp.MatchExp("name", "x")),
			S: `not (name = "x")`,
		},
		{
			E: exp.In(exp.ObjPath("id"), 1, 2, 3),
			S: `id in (1,2,3)`,
		},
		{
			E: exp.NotIn(exp.ObjPath("id"), exp.P("ids")),
			S: `id not in $ids`,
		},
		{
			E: exp.Between(exp.DbPath("PRICE"), 10, 20.5),
			S: `db:PRICE between 10 and 20.5`,
		},
		{
			E: exp.Mul(exp.Add(exp.ObjPath("a"), 1), 2),
			S: `(a + 1) * 2`,
		},
		{
			E: exp.Sub(exp.ObjPath("a"), exp.Sub(exp.ObjPath("b"), 1)),
			S: `a - (b - 1)`,
		},
		{
			E: exp.Neg(exp.ObjPath("x")),
			S: `-x`,
		},
		{
			E: exp.Neg(exp.Add(1, 2)),
			S: `-(1 + 2)`,
		},
		{
			E: exp.LikeIgnoreCase(exp.ObjPath("name"), "a%").WithEscape('!'),
			S: `name likeIgnoreCase "a%" escape "!"`,
		},
		{
			E: exp.NotLike(exp.ObjPath("name"), "a%"),
			S: `name not like "a%"`,
		},
		{
			E: exp.True(),
			S: `true`,
		},
		{
			E: exp.MatchExp("quote", `say "hi"`),
			S: `quote = "say \"hi\""`,
		},
		{
			E: exp.GT(exp.ObjPath("a"), -5),
			S: `a > -5`,
		},
		{
			E: exp.ObjPath("toArtist").Outer().Dot("name").IsNull(),
			S: `toArtist+.name = null`,
		},
	}
	for i := range tests {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			assert.Equal(t, tests[i].S, tests[i].E.String())
		})
	}
}

func TestOp(t *testing.T) {
	assert.Equal(t, "=", exp.OpEQ.SQL())
	assert.Equal(t, "<>", exp.OpNEQ.SQL())
	assert.Equal(t, "!=", exp.OpNEQ.String())
	assert.Equal(t, "LIKE", exp.OpLikeIgnoreCase.SQL())
	assert.Equal(t, "NOT BETWEEN", exp.OpNotBetween.SQL())
	assert.Equal(t, "1=0", exp.OpFalse.SQL())
	assert.Empty(t, exp.OpObjPath.SQL())
	assert.Equal(t, "invalid", exp.Op(200).String())

	neg, ok := exp.OpLike.Negate()
	assert.True(t, ok)
	assert.Equal(t, exp.OpNotLike, neg)
	_, ok = exp.OpAdd.Negate()
	assert.False(t, ok)

	assert.True(t, exp.OpGTE.IsComparison())
	assert.True(t, exp.OpDiv.IsArithmetic())
	assert.True(t, exp.OpNotIn.IsCondition())
	assert.False(t, exp.OpAdd.IsCondition())
}

func TestJoin(t *testing.T) {
	a, b, c := exp.MatchExp("a", 1), exp.MatchExp("b", 2), exp.MatchExp("c", 3)

	assert.Nil(t, exp.And())
	assert.Nil(t, exp.Or(nil, nil))
	assert.Same(t, a, exp.And(nil, a))
	assert.Same(t, a, exp.AndExp(a, nil))

	e := exp.And(exp.And(a, b), c)
	n, ok := e.(*exp.NaryExpr)
	require.True(t, ok)
	assert.Len(t, n.Operands(), 3)
	assert.Equal(t, exp.OpAnd, n.Op())

	e = exp.OrExp(exp.And(a, b), c)
	assert.Equal(t, `a = 1 and b = 2 or c = 3`, e.String())
}

func TestNotExp(t *testing.T) {
	tests := []struct {
		E exp.Expression
		S string
	}{
		{E: exp.MatchExp("a", 1), S: `a != 1`},
		{E: exp.Not(exp.MatchExp("a", 1)), S: `a = 1`},
		{E: exp.InExp("a", 1, 2), S: `a not in (1,2)`},
		{E: exp.BetweenExp("a", 1, 2), S: `a not between 1 and 2`},
		{E: exp.LikeIgnoreCaseExp("a", "x%"), S: `a not likeIgnoreCase "x%"`},
		{E: exp.LessExp("a", 1), S: `not (a < 1)`},
		{E: exp.True(), S: `false`},
	}
	for i := range tests {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			assert.Equal(t, tests[i].S, exp.NotExp(tests[i].E).String())
		})
	}
	assert.Nil(t, exp.NotExp(nil))
}

func TestPath(t *testing.T) {
	p := exp.ObjPath("obj:toArtist+.paintings.title")
	assert.Equal(t, "toArtist+.paintings.title", p.Path())
	assert.False(t, p.IsDB())
	assert.Equal(t, []exp.Segment{
		{Name: "toArtist", Outer: true},
		{Name: "paintings"},
		{Name: "title"},
	}, p.Segments())

	d := exp.DbPath("db:ARTIST_ID")
	assert.True(t, d.IsDB())
	assert.Equal(t, exp.OpDbPath, d.Op())
	assert.Equal(t, "db:ARTIST_ID", d.String())

	paths := exp.Paths(exp.And(exp.MatchExp("a", 1), exp.InExp("b.c", exp.P("x"))))
	require.Len(t, paths, 2)
	assert.Equal(t, "a", paths[0].Path())
	assert.Equal(t, "b.c", paths[1].Path())
}

func TestEqual(t *testing.T) {
	assert.True(t, exp.Equal(exp.MatchExp("a", 1), exp.MatchExp("a", int64(1))))
	assert.True(t, exp.Equal(exp.MatchExp("a", 1.5), exp.MatchExp("a", 1.50)))
	assert.False(t, exp.Equal(exp.MatchExp("a", 1), exp.MatchExp("a", "1")))
	assert.False(t, exp.Equal(exp.MatchExp("a", 1), exp.NoMatchExp("a", 1)))
	assert.False(t, exp.Equal(exp.MatchExp("a", 1), exp.MatchDbExp("a", 1)))
	assert.False(t, exp.Equal(exp.LikeExp("a", "x"), exp.Like(exp.ObjPath("a"), "x").WithEscape('!')))
	assert.True(t, exp.Equal(nil, nil))
	assert.False(t, exp.Equal(exp.True(), nil))
}

// recorder visits every node and records its kind.
type recorder struct {
	kinds []string
}

func (r *recorder) all(xs ...exp.Expression) error {
	for _, x := range xs {
		if err := x.Accept(r); err != nil {
			return err
		}
	}
	return nil
}

func (r *recorder) add(k string) { r.kinds = append(r.kinds, k) }

func (r *recorder) VisitPath(p *exp.Path) error {
	r.add("path:" + p.Path())
	return nil
}

func (r *recorder) VisitScalar(s *exp.Scalar) error {
	r.add(fmt.Sprint("scalar:", s.Value()))
	return nil
}

func (r *recorder) VisitList(l *exp.List) error {
	r.add("list")
	return r.all(l.Items()...)
}

func (r *recorder) VisitParam(p *exp.Param) error {
	r.add("param:" + p.Name())
	return nil
}

func (r *recorder) VisitBool(b *exp.Bool) error {
	r.add(b.Op().String())
	return nil
}

func (r *recorder) VisitUnary(u *exp.UnaryExpr) error {
	r.add(u.Op().String())
	return r.all(u.X())
}

func (r *recorder) VisitBinary(b *exp.BinaryExpr) error {
	r.add(b.Op().String())
	return r.all(b.L(), b.R())
}

func (r *recorder) VisitNary(n *exp.NaryExpr) error {
	r.add(n.Op().String())
	return r.all(n.Operands()...)
}

func (r *recorder) VisitBetween(b *exp.BetweenExpr) error {
	r.add(b.Op().String())
	return r.all(b.X(), b.Lower(), b.Upper())
}

func (r *recorder) VisitIn(in *exp.InExpr) error {
	r.add(in.Op().String())
	return r.all(in.X(), in.Set())
}

func (r *recorder) VisitLike(l *exp.LikeExpr) error {
	r.add(l.Op().String())
	return r.all(l.X(), l.Pattern())
}

func TestAccept(t *testing.T) {
	e := exp.MustParse(`a = 1 and not (b in ("x", $y)) or c between -d and 2 or e likeIgnoreCase "f%" or true`)
	r := &recorder{}
	require.NoError(t, e.Accept(r))
	assert.Equal(t, strings.Join([]string{
		"or", "and", "=", "path:a", "scalar:1",
		"not", "in", "path:b", "list", "scalar:x", "param:y",
		"between", "path:c", "-", "path:d", "scalar:2",
		"likeIgnoreCase", "path:e", "scalar:f%",
		"true",
	}, " "), strings.Join(r.kinds, " "))
}

func TestTraverse(t *testing.T) {
	e := exp.MustParse(`a = 1 and (b = 2 or c = 3)`)
	var visited []string
	exp.Traverse(e, func(n exp.Expression) bool {
		visited = append(visited, n.Op().String())
		return n.Op() != exp.OpOr
	})
	assert.Equal(t, []string{"and", "=", "objpath", "scalar", "or"}, visited)
}

func TestTransform(t *testing.T) {
	e := exp.MustParse(`a = 1 and b = 2`)

	upper := exp.Transform(e, func(n exp.Expression) exp.Expression {
		if p, ok := n.(*exp.Path); ok {
			return exp.DbPath(strings.ToUpper(p.Path()))
		}
		return n
	})
	assert.Equal(t, `db:A = 1 and db:B = 2`, upper.String())
	assert.Equal(t, `a = 1 and b = 2`, e.String(), "source tree is immutable")

	pruned := exp.Transform(e, func(n exp.Expression) exp.Expression {
		if p, ok := n.(*exp.Path); ok && p.Path() == "b" {
			return nil
		}
		return n
	})
	assert.Equal(t, `a = 1`, pruned.String())

	same := exp.Transform(e, func(n exp.Expression) exp.Expression { return n })
	assert.Same(t, e, same)
}

func TestBinary(t *testing.T) {
	assert.Equal(t, `price >= 10`, exp.Binary(exp.OpGTE, exp.ObjPath("price"), 10).String())
	assert.Equal(t, `a * 2`, exp.Binary(exp.OpMul, exp.ObjPath("a"), 2).String())
	assert.Panics(t, func() { exp.Binary(exp.OpAnd, true, false) })
}
