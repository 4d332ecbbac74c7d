package adapter

import (
	"slices"
	"strconv"

	"github.com/syssam/cayenne/dialect/sql"
	"github.com/syssam/cayenne/exp"
	"github.com/syssam/cayenne/mapping"
	"github.com/syssam/cayenne/schema/field"
)

// Operand is a rendered operand of a condition. Attr is the mapped column
// the operand reads, or nil for values and computed operands.
type Operand struct {
	SQL  *sql.Builder
	Attr *mapping.Attribute
}

// Type returns the column type of the operand, or field.TypeInvalid.
func (o Operand) Type() field.Type {
	if o.Attr == nil {
		return field.TypeInvalid
	}
	return o.Attr.Type
}

// Wrap returns the operand rendered between prefix and suffix, keeping its
// bindings and attribute.
func (o Operand) Wrap(prefix, suffix string) Operand {
	b := o.SQL.Child()
	b.WriteString(prefix).Join(o.SQL).WriteString(suffix)
	return Operand{SQL: b, Attr: o.Attr}
}

// Comparison is a binary condition with =, <>, <, <=, > or >=. NULL
// comparisons never reach the rules.
type Comparison struct {
	Op   exp.Op
	L, R Operand
}

// Match is a [NOT] LIKE condition.
type Match struct {
	X, Pattern Operand
	Negated    bool
	IgnoreCase bool
	Escape     rune
}

// Rules are the lowering steps that vary between dialects. Each rule
// writes one condition into b.
type Rules struct {
	Compare func(b *sql.Builder, c Comparison)
	Like    func(b *sql.Builder, m Match)
}

// Decorator rewrites some of the rules and delegates the rest.
type Decorator func(Rules) Rules

// baseRules renders conditions as standard SQL. Case-insensitive LIKE
// compares upper-cased operands.
func baseRules() Rules {
	r := Rules{
		Compare: func(b *sql.Builder, c Comparison) {
			b.Join(c.L.SQL).WriteByte(' ').WriteString(c.Op.SQL()).WriteByte(' ').Join(c.R.SQL)
		},
		Like: func(b *sql.Builder, m Match) {
			b.Join(m.X.SQL)
			if m.Negated {
				b.WriteString(" NOT")
			}
			b.WriteString(" LIKE ").Join(m.Pattern.SQL)
			if m.Escape != 0 {
				b.WriteString(" ESCAPE '").WriteString(string(m.Escape)).WriteByte('\'')
			}
		},
	}
	return UpperLikeIgnoreCase(r)
}

// Decorate applies decorators to the rules in order, so the last one is
// the outermost.
func Decorate(r Rules, ds ...Decorator) Rules {
	for _, d := range ds {
		r = d(r)
	}
	return r
}

// UpperLikeIgnoreCase writes case-insensitive LIKE as
// "UPPER(x) LIKE UPPER(pattern)".
func UpperLikeIgnoreCase(next Rules) Rules {
	like := next.Like
	next.Like = func(b *sql.Builder, m Match) {
		if m.IgnoreCase {
			m.X = m.X.Wrap("UPPER(", ")")
			m.Pattern = m.Pattern.Wrap("UPPER(", ")")
			m.IgnoreCase = false
		}
		like(b, m)
	}
	return next
}

// ILikeIgnoreCase writes case-insensitive LIKE with the ILIKE operator.
func ILikeIgnoreCase(next Rules) Rules {
	like := next.Like
	next.Like = func(b *sql.Builder, m Match) {
		if !m.IgnoreCase {
			like(b, m)
			return
		}
		b.Join(m.X.SQL)
		if m.Negated {
			b.WriteString(" NOT")
		}
		b.WriteString(" ILIKE ").Join(m.Pattern.SQL)
		if m.Escape != 0 {
			b.WriteString(" ESCAPE '").WriteString(string(m.Escape)).WriteByte('\'')
		}
	}
	return next
}

// CastLike casts columns of the given types to VARCHAR before matching
// them with LIKE. The cast length is the attribute length, or size when
// the attribute has none.
func CastLike(size int, types ...field.Type) Decorator {
	return func(next Rules) Rules {
		like := next.Like
		next.Like = func(b *sql.Builder, m Match) {
			if m.X.Attr != nil && slices.Contains(types, m.X.Type()) {
				m.X = cast(m.X, size)
			}
			like(b, m)
		}
		return next
	}
}

// CastClobEquality casts both sides of = and <> to VARCHAR when either
// side is a CLOB column.
func CastClobEquality(size int) Decorator {
	return func(next Rules) Rules {
		compare := next.Compare
		next.Compare = func(b *sql.Builder, c Comparison) {
			if (c.Op == exp.OpEQ || c.Op == exp.OpNEQ) && (c.L.Type() == field.TypeClob || c.R.Type() == field.TypeClob) {
				c.L, c.R = cast(c.L, size), cast(c.R, size)
			}
			compare(b, c)
		}
		return next
	}
}

// TrimChar trims trailing blanks of CHAR columns compared with = or <>.
func TrimChar(next Rules) Rules {
	compare := next.Compare
	next.Compare = func(b *sql.Builder, c Comparison) {
		if c.Op == exp.OpEQ || c.Op == exp.OpNEQ {
			if c.L.Type() == field.TypeChar {
				c.L = c.L.Wrap("RTRIM(", ")")
			}
			if c.R.Type() == field.TypeChar {
				c.R = c.R.Wrap("RTRIM(", ")")
			}
		}
		compare(b, c)
	}
	return next
}

func cast(o Operand, size int) Operand {
	if o.Attr != nil && o.Attr.Length > 0 {
		size = o.Attr.Length
	}
	return o.Wrap("CAST(", " AS VARCHAR("+strconv.Itoa(size)+"))")
}
