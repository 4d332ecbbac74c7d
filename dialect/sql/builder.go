package sql

import (
	"errors"
	"strconv"
	"strings"

	"github.com/syssam/cayenne/dialect"
	"github.com/syssam/cayenne/schema/field"
)

// Querier wraps the basic Query method implemented by every builder.
type Querier interface {
	// Query returns the statement text and its arguments.
	Query() (string, []any)
}

// Binding is a statement parameter together with the type and name of the
// column it is compared with or assigned to. The type is TypeInvalid when
// unknown.
type Binding struct {
	Value  any
	Type   field.Type
	Column string
}

// Statement is a rendered statement with its bindings.
type Statement struct {
	SQL      string
	Bindings []Binding
}

// Args returns the binding values in order.
func (s *Statement) Args() []any {
	if len(s.Bindings) == 0 {
		return nil
	}
	args := make([]any, len(s.Bindings))
	for i, b := range s.Bindings {
		args[i] = b.Value
	}
	return args
}

// Query implements Querier.
func (s *Statement) Query() (string, []any) { return s.SQL, s.Args() }

// placeholder marks a parameter in the raw text until Query renders it in
// the style of the dialect. It never occurs in identifiers or keywords,
// and values are always bound.
const placeholder = '\x00'

// Builder is the builder for the other statement builders. It accumulates
// statement text and parameter bindings; placeholders are numbered when the
// statement is rendered, so fragments built separately can be joined in
// any order.
type Builder struct {
	sb       *strings.Builder
	dialect  string
	quote    bool
	bindings []Binding
	errs     []error
}

// NewBuilder returns a builder for the given dialect.
func NewBuilder(dialect string) *Builder {
	return &Builder{dialect: dialect}
}

func (b *Builder) buf() *strings.Builder {
	if b.sb == nil {
		b.sb = &strings.Builder{}
	}
	return b.sb
}

// SetDialect sets the builder dialect.
func (b *Builder) SetDialect(dialect string) *Builder {
	b.dialect = dialect
	return b
}

// Dialect returns the dialect of the builder.
func (b *Builder) Dialect() string { return b.dialect }

// SetQuote enables or disables quoting of identifiers written with Ident.
func (b *Builder) SetQuote(quote bool) *Builder {
	b.quote = quote
	return b
}

// Quoting reports whether identifiers are quoted.
func (b *Builder) Quoting() bool { return b.quote }

// Child returns an empty builder with the same dialect and quoting.
func (b *Builder) Child() *Builder {
	return &Builder{dialect: b.dialect, quote: b.quote}
}

// WriteString writes a string to the builder.
func (b *Builder) WriteString(s string) *Builder {
	b.buf().WriteString(s)
	return b
}

// WriteByte writes a byte to the builder.
func (b *Builder) WriteByte(c byte) *Builder {
	b.buf().WriteByte(c)
	return b
}

// Pad adds a space if the builder is not empty and does not end with one.
func (b *Builder) Pad() *Builder {
	if s := b.buf().String(); s != "" && !strings.HasSuffix(s, " ") && !strings.HasSuffix(s, "(") {
		b.WriteByte(' ')
	}
	return b
}

// Comma writes a comma and a space.
func (b *Builder) Comma() *Builder {
	return b.WriteString(", ")
}

// Len returns the length of the raw text.
func (b *Builder) Len() int { return b.buf().Len() }

// Quote quotes an identifier in the style of the dialect, part by part for
// qualified names. "*" and already quoted parts are left alone.
func (b *Builder) Quote(ident string) string {
	if !b.quote {
		return ident
	}
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = b.quotePart(p)
	}
	return strings.Join(parts, ".")
}

func (b *Builder) quotePart(p string) string {
	if p == "*" || p == "" {
		return p
	}
	switch b.dialect {
	case dialect.MySQL:
		if strings.HasPrefix(p, "`") {
			return p
		}
		return "`" + strings.ReplaceAll(p, "`", "``") + "`"
	case dialect.SQLServer, dialect.Sybase:
		if strings.HasPrefix(p, "[") {
			return p
		}
		return "[" + strings.ReplaceAll(p, "]", "]]") + "]"
	}
	if strings.HasPrefix(p, `"`) {
		return p
	}
	return `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
}

// Ident writes an identifier, quoted when quoting is enabled.
func (b *Builder) Ident(s string) *Builder {
	return b.WriteString(b.Quote(s))
}

// IdentComma writes identifiers separated by commas.
func (b *Builder) IdentComma(s ...string) *Builder {
	for i, ident := range s {
		if i > 0 {
			b.Comma()
		}
		b.Ident(ident)
	}
	return b
}

// Arg writes a parameter placeholder and records the value. A Binding
// value is recorded as is.
func (b *Builder) Arg(v any) *Builder {
	if bd, ok := v.(Binding); ok {
		return b.Bind(bd)
	}
	return b.Bind(Binding{Value: v})
}

// Bind writes a parameter placeholder and records the binding.
func (b *Builder) Bind(bd Binding) *Builder {
	b.bindings = append(b.bindings, bd)
	return b.WriteByte(placeholder)
}

// Args writes comma separated parameters.
func (b *Builder) Args(vs ...any) *Builder {
	for i, v := range vs {
		if i > 0 {
			b.Comma()
		}
		b.Arg(v)
	}
	return b
}

// Join appends the text and bindings of another builder or statement.
func (b *Builder) Join(q Querier) *Builder {
	switch q := q.(type) {
	case *Builder:
		b.WriteString(q.buf().String())
		b.bindings = append(b.bindings, q.bindings...)
		b.errs = append(b.errs, q.errs...)
		return b
	case fragment:
		return b.Join(q.build(b.Child()))
	}
	query, args := q.Query()
	b.WriteString(query)
	for _, a := range args {
		b.bindings = append(b.bindings, Binding{Value: a})
	}
	return b
}

// JoinComma appends several queries separated by commas.
func (b *Builder) JoinComma(qs ...Querier) *Builder {
	for i, q := range qs {
		if i > 0 {
			b.Comma()
		}
		b.Join(q)
	}
	return b
}

// Wrap writes f's output in parentheses.
func (b *Builder) Wrap(f func(*Builder)) *Builder {
	b.WriteByte('(')
	f(b)
	return b.WriteByte(')')
}

// AddError records an error. The first error is reported by Err.
func (b *Builder) AddError(err error) *Builder {
	if err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Err returns the errors recorded while building, joined.
func (b *Builder) Err() error {
	return errors.Join(b.errs...)
}

// Bindings returns the recorded bindings in placeholder order.
func (b *Builder) Bindings() []Binding {
	return append([]Binding(nil), b.bindings...)
}

// Query returns the rendered text and the argument values.
func (b *Builder) Query() (string, []any) {
	s := b.Statement()
	return s.SQL, s.Args()
}

// String returns the rendered text.
func (b *Builder) String() string {
	return b.render()
}

// Statement returns the rendered statement and its bindings.
func (b *Builder) Statement() *Statement {
	return &Statement{SQL: b.render(), Bindings: b.Bindings()}
}

// Build returns the rendered statement, or the errors recorded while
// building.
func (b *Builder) Build() (*Statement, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}
	return b.Statement(), nil
}

func (b *Builder) render() string {
	raw := b.buf().String()
	if !strings.ContainsRune(raw, placeholder) {
		return raw
	}
	var (
		out strings.Builder
		n   int
	)
	out.Grow(len(raw) + 2*len(b.bindings))
	for i := 0; i < len(raw); i++ {
		if raw[i] != placeholder {
			out.WriteByte(raw[i])
			continue
		}
		n++
		switch b.dialect {
		case dialect.Postgres:
			out.WriteByte('$')
			out.WriteString(strconv.Itoa(n))
		case dialect.Oracle:
			out.WriteByte(':')
			out.WriteString(strconv.Itoa(n))
		case dialect.SQLServer, dialect.Sybase:
			out.WriteString("@p")
			out.WriteString(strconv.Itoa(n))
		default:
			out.WriteByte('?')
		}
	}
	return out.String()
}

// fragment is implemented by statement builders that render into a
// builder, so they can be nested without renumbering.
type fragment interface {
	Querier
	build(*Builder) *Builder
}

// DialectBuilder prefixes all root builders with the dialect.
type DialectBuilder struct {
	dialect string
	quote   bool
}

// Dialect returns a DialectBuilder for the given dialect.
//
//	Dialect(dialect.Postgres).Select("id").From(Table("users"))
func Dialect(name string) *DialectBuilder {
	return &DialectBuilder{dialect: name}
}

// Quoted enables identifier quoting for the builders created by d.
func (d *DialectBuilder) Quoted() *DialectBuilder {
	return &DialectBuilder{dialect: d.dialect, quote: true}
}

// Select creates a Selector for the configured dialect.
func (d *DialectBuilder) Select(columns ...string) *Selector {
	s := Select(columns...)
	s.dialect, s.quote = d.dialect, d.quote
	return s
}

// Insert creates an InsertBuilder for the configured dialect.
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	i := Insert(table)
	i.dialect, i.quote = d.dialect, d.quote
	return i
}

// Update creates an UpdateBuilder for the configured dialect.
func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	u := Update(table)
	u.dialect, u.quote = d.dialect, d.quote
	return u
}

// Delete creates a DeleteBuilder for the configured dialect.
func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	del := Delete(table)
	del.dialect, del.quote = d.dialect, d.quote
	return del
}
