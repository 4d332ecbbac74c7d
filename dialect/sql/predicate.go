package sql

import (
	"strings"
)

// Predicate is a WHERE or ON condition. It is rendered lazily so that the
// dialect of the enclosing statement applies.
type Predicate struct {
	op  string // "AND" or "OR" for compound predicates
	fns []func(*Builder)
}

// P creates a predicate from builder functions.
//
//	P(func(b *Builder) {
//	    b.Ident("name").WriteString(" = ").Arg("a8m")
//	})
func P(fns ...func(*Builder)) *Predicate {
	return &Predicate{fns: fns}
}

// ExprP creates a predicate from raw SQL text with "?" parameter marks.
//
//	ExprP("age > ? AND age < ?", 18, 65)
func ExprP(expr string, args ...any) *Predicate {
	return P(func(b *Builder) {
		parts := strings.Split(expr, "?")
		for i, part := range parts {
			b.WriteString(part)
			if i < len(parts)-1 && i < len(args) {
				b.Arg(args[i])
			}
		}
	})
}

// Append adds a builder function to the predicate.
func (p *Predicate) Append(f func(*Builder)) *Predicate {
	p.fns = append(p.fns, f)
	return p
}

func (p *Predicate) build(b *Builder) *Builder {
	for _, f := range p.fns {
		f(b)
	}
	return b
}

// Query renders the predicate alone.
func (p *Predicate) Query() (string, []any) {
	return p.build(&Builder{}).Query()
}

func compare(col, op string, v any) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteByte(' ').WriteString(op).WriteByte(' ').Arg(v)
	})
}

// EQ returns a "=" predicate.
func EQ(col string, v any) *Predicate { return compare(col, "=", v) }

// NEQ returns a "<>" predicate.
func NEQ(col string, v any) *Predicate { return compare(col, "<>", v) }

// LT returns a "<" predicate.
func LT(col string, v any) *Predicate { return compare(col, "<", v) }

// LTE returns a "<=" predicate.
func LTE(col string, v any) *Predicate { return compare(col, "<=", v) }

// GT returns a ">" predicate.
func GT(col string, v any) *Predicate { return compare(col, ">", v) }

// GTE returns a ">=" predicate.
func GTE(col string, v any) *Predicate { return compare(col, ">=", v) }

// ColumnsEQ returns a predicate comparing two columns, as used in join
// conditions.
func ColumnsEQ(col1, col2 string) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col1).WriteString(" = ").Ident(col2)
	})
}

// IsNull returns an "IS NULL" predicate.
func IsNull(col string) *Predicate {
	return P(func(b *Builder) { b.Ident(col).WriteString(" IS NULL") })
}

// NotNull returns an "IS NOT NULL" predicate.
func NotNull(col string) *Predicate {
	return P(func(b *Builder) { b.Ident(col).WriteString(" IS NOT NULL") })
}

// In returns an "IN" predicate. An empty list is always false.
func In(col string, args ...any) *Predicate {
	return P(func(b *Builder) {
		if len(args) == 0 {
			b.WriteString("1=0")
			return
		}
		b.Ident(col).WriteString(" IN ").Wrap(func(b *Builder) { b.Args(args...) })
	})
}

// NotIn returns a "NOT IN" predicate. An empty list is always true.
func NotIn(col string, args ...any) *Predicate {
	return P(func(b *Builder) {
		if len(args) == 0 {
			b.WriteString("1=1")
			return
		}
		b.Ident(col).WriteString(" NOT IN ").Wrap(func(b *Builder) { b.Args(args...) })
	})
}

// Like returns a "LIKE" predicate.
func Like(col, pattern string) *Predicate { return compare(col, "LIKE", pattern) }

// Contains returns a predicate matching values containing sub.
func Contains(col, sub string) *Predicate { return likeEscaped(col, "%", sub, "%") }

// HasPrefix returns a predicate matching values starting with prefix.
func HasPrefix(col, prefix string) *Predicate { return likeEscaped(col, "", prefix, "%") }

// HasSuffix returns a predicate matching values ending with suffix.
func HasSuffix(col, suffix string) *Predicate { return likeEscaped(col, "%", suffix, "") }

var likeEscaper = strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)

func likeEscaped(col, before, s, after string) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" LIKE ").Arg(before + likeEscaper.Replace(s) + after)
		if strings.ContainsAny(s, `!%_`) {
			b.WriteString(` ESCAPE '!'`)
		}
	})
}

// Not negates a predicate.
func Not(p *Predicate) *Predicate {
	return P(func(b *Builder) {
		b.WriteString("NOT ").Wrap(func(b *Builder) { p.build(b) })
	})
}

// And joins predicates with AND. Nil predicates are skipped.
func And(preds ...*Predicate) *Predicate {
	return junction("AND", preds)
}

// Or joins predicates with OR. Nil predicates are skipped.
func Or(preds ...*Predicate) *Predicate {
	return junction("OR", preds)
}

func junction(op string, preds []*Predicate) *Predicate {
	var ps []*Predicate
	for _, p := range preds {
		if p != nil {
			ps = append(ps, p)
		}
	}
	switch len(ps) {
	case 0:
		return nil
	case 1:
		return ps[0]
	}
	j := &Predicate{op: op}
	j.fns = append(j.fns, func(b *Builder) {
		for i, p := range ps {
			if i > 0 {
				b.WriteString(" " + op + " ")
			}
			// OR binds looser than AND.
			if p.op == "OR" && op == "AND" {
				b.Wrap(func(b *Builder) { p.build(b) })
			} else {
				p.build(b)
			}
		}
	})
	return j
}
