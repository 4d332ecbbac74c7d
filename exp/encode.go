package exp

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// encoder writes the expression syntax, or EJBQL when ejbql is set.
type encoder struct {
	strings.Builder
	ejbql bool
	root  string
	err   error
}

func format(e Expression) string {
	var enc encoder
	enc.expr(e, 0)
	return enc.String()
}

// EJBQL encodes e as an EJBQL conditional expression. Object paths are
// prefixed with the root identification variable, for example
// EJBQL(MatchExp("artistName", "X"), "a") returns "a.artistName = 'X'".
// DB paths have no EJBQL form and produce an error.
func EJBQL(e Expression, root string) (string, error) {
	enc := encoder{ejbql: true, root: root}
	enc.expr(e, 0)
	if enc.err != nil {
		return "", enc.err
	}
	return enc.String(), nil
}

func (p *Path) String() string        { return format(p) }
func (s *Scalar) String() string      { return format(s) }
func (l *List) String() string        { return format(l) }
func (p *Param) String() string       { return format(p) }
func (b *Bool) String() string        { return format(b) }
func (u *UnaryExpr) String() string   { return format(u) }
func (b *BinaryExpr) String() string  { return format(b) }
func (n *NaryExpr) String() string    { return format(n) }
func (b *BetweenExpr) String() string { return format(b) }
func (in *InExpr) String() string     { return format(in) }
func (l *LikeExpr) String() string    { return format(l) }

// expr writes e, wrapped in parentheses when its precedence is lower
// than min.
func (enc *encoder) expr(e Expression, min int) {
	if e == nil {
		enc.WriteString("null")
		return
	}
	prec := e.Op().precedence()
	if prec < min {
		enc.WriteByte('(')
		defer enc.WriteByte(')')
	}
	switch e := e.(type) {
	case *Path:
		enc.path(e)
	case *Scalar:
		enc.scalar(e.value)
	case *Param:
		if enc.ejbql {
			enc.WriteString(":" + e.name)
		} else {
			enc.WriteString("$" + e.name)
		}
	case *Bool:
		switch {
		case enc.ejbql && e.value:
			enc.WriteString("1 = 1")
		case enc.ejbql:
			enc.WriteString("1 = 0")
		default:
			enc.WriteString(e.Op().String())
		}
	case *List:
		enc.WriteByte('(')
		for i, x := range e.items {
			if i > 0 {
				enc.WriteByte(',')
				if enc.ejbql {
					enc.WriteByte(' ')
				}
			}
			enc.expr(x, precLeaf)
		}
		enc.WriteByte(')')
	case *UnaryExpr:
		if e.op == OpNot {
			enc.WriteString("not (")
			enc.expr(e.x, 0)
			enc.WriteByte(')')
			return
		}
		enc.WriteByte('-')
		switch e.x.(type) {
		case *Path, *Param:
			enc.expr(e.x, precLeaf)
		default:
			enc.WriteByte('(')
			enc.expr(e.x, 0)
			enc.WriteByte(')')
		}
	case *NaryExpr:
		for i, x := range e.xs {
			if i > 0 {
				enc.WriteString(" " + e.op.String() + " ")
			}
			enc.expr(x, prec+1)
		}
	case *BinaryExpr:
		enc.binary(e, prec)
	case *BetweenExpr:
		enc.expr(e.x, precAdd)
		enc.WriteString(" " + e.Op().String() + " ")
		enc.expr(e.lo, precAdd)
		enc.WriteString(" and ")
		enc.expr(e.hi, precAdd)
	case *InExpr:
		enc.expr(e.x, precAdd)
		enc.WriteString(" " + e.Op().String() + " ")
		if l, ok := e.set.(*List); ok {
			enc.expr(l, 0)
		} else {
			enc.expr(e.set, precLeaf)
		}
	case *LikeExpr:
		enc.like(e)
	}
}

func (enc *encoder) binary(e *BinaryExpr, prec int) {
	if enc.ejbql && e.op.IsComparison() {
		if s, ok := e.r.(*Scalar); ok && s.IsNull() && (e.op == OpEQ || e.op == OpNEQ) {
			enc.expr(e.l, precAdd)
			if e.op == OpEQ {
				enc.WriteString(" is null")
			} else {
				enc.WriteString(" is not null")
			}
			return
		}
	}
	if e.op.IsComparison() {
		enc.expr(e.l, precAdd)
	} else {
		enc.expr(e.l, prec)
	}
	op := e.op.String()
	if enc.ejbql && e.op == OpNEQ {
		op = "<>"
	}
	enc.WriteString(" " + op + " ")
	if e.op.IsComparison() {
		enc.expr(e.r, precAdd)
	} else {
		enc.expr(e.r, prec+1)
	}
}

func (enc *encoder) like(e *LikeExpr) {
	if enc.ejbql && e.IgnoreCase() {
		enc.WriteString("upper(")
		enc.expr(e.x, 0)
		enc.WriteString(")")
		if e.Negated() {
			enc.WriteString(" not")
		}
		enc.WriteString(" like upper(")
		enc.expr(e.pattern, 0)
		enc.WriteString(")")
	} else {
		enc.expr(e.x, precAdd)
		op := e.op.String()
		if enc.ejbql {
			op = strings.ToLower(e.op.SQL())
		}
		enc.WriteString(" " + op + " ")
		enc.expr(e.pattern, precAdd)
	}
	if e.escape != 0 {
		enc.WriteString(" escape ")
		enc.scalar(string(e.escape))
	}
}

func (enc *encoder) path(p *Path) {
	if !enc.ejbql {
		if p.IsDB() {
			enc.WriteString("db:")
		} else if _, ok := keywords[strings.ToLower(p.path)]; ok {
			enc.WriteString("obj:")
		}
		enc.WriteString(p.path)
		return
	}
	if p.IsDB() {
		if enc.err == nil {
			enc.err = fmt.Errorf("exp: db path %q has no EJBQL form", p.path)
		}
		return
	}
	if enc.root != "" {
		enc.WriteString(enc.root + ".")
	}
	enc.WriteString(strings.ReplaceAll(p.path, "+", ""))
}

func (enc *encoder) scalar(v any) {
	if isNil(v) {
		enc.WriteString("null")
		return
	}
	switch v := v.(type) {
	case string:
		enc.quote(v)
	case bool:
		enc.WriteString(strconv.FormatBool(v))
	case int:
		enc.WriteString(strconv.Itoa(v))
	case int64:
		enc.WriteString(strconv.FormatInt(v, 10))
	case float64:
		enc.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	case float32:
		enc.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	case decimal.Decimal:
		enc.WriteString(v.String())
	case time.Time:
		enc.quote(v.Format(time.RFC3339Nano))
	case fmt.Stringer:
		enc.quote(v.String())
	default:
		if d, ok := toDecimal(v); ok {
			enc.WriteString(d.String())
			return
		}
		if s, ok := toString(v); ok {
			enc.quote(s)
			return
		}
		if b, ok := toBool(v); ok {
			enc.WriteString(strconv.FormatBool(b))
			return
		}
		enc.quote(fmt.Sprint(v))
	}
}

// quote writes a string literal: double quoted with backslash escapes, or
// single quoted with doubled quotes for EJBQL.
func (enc *encoder) quote(s string) {
	if enc.ejbql {
		enc.WriteString("'" + strings.ReplaceAll(s, "'", "''") + "'")
		return
	}
	enc.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			enc.WriteByte('\\')
			enc.WriteRune(r)
		case '\n':
			enc.WriteString(`\n`)
		case '\t':
			enc.WriteString(`\t`)
		case '\r':
			enc.WriteString(`\r`)
		default:
			enc.WriteRune(r)
		}
	}
	enc.WriteByte('"')
}
