package sql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/cayenne/dialect"
)

// SelectTable is a table reference in a FROM or JOIN clause.
type SelectTable struct {
	name   string
	schema string
	alias  string
}

// Table returns a table reference.
func Table(name string) *SelectTable {
	return &SelectTable{name: name}
}

// Schema sets the schema of the table.
func (t *SelectTable) Schema(name string) *SelectTable {
	t.schema = name
	return t
}

// As sets the table alias.
func (t *SelectTable) As(alias string) *SelectTable {
	t.alias = alias
	return t
}

// Name returns the table name.
func (t *SelectTable) Name() string { return t.name }

// Alias returns the alias, or the name when there is none.
func (t *SelectTable) Alias() string {
	if t.alias != "" {
		return t.alias
	}
	return t.name
}

// C returns a column qualified by the table alias or name.
func (t *SelectTable) C(column string) string {
	return t.Alias() + "." + column
}

func (t *SelectTable) ref(b *Builder) {
	if t.schema != "" {
		b.Ident(t.schema).WriteByte('.')
	}
	b.Ident(t.name)
	if t.alias != "" {
		b.WriteByte(' ').Ident(t.alias)
	}
}

type join struct {
	kind  string
	table *SelectTable
	on    *Predicate
}

// Selector is a builder for the SELECT statement.
type Selector struct {
	dialect   string
	quote     bool
	distinct  bool
	columns   []string
	exprs     []*Predicate
	from      *SelectTable
	joins     []join
	where     *Predicate
	order     []orderTerm
	limit     int
	offset    int
	paginator Paginator
	forUpdate bool
}

// Select returns a Selector for the given columns.
func Select(columns ...string) *Selector {
	return &Selector{columns: columns}
}

// SetDialect sets the dialect of the selector.
func (s *Selector) SetDialect(name string) *Selector {
	s.dialect = name
	return s
}

// Dialect returns the dialect of the selector.
func (s *Selector) Dialect() string { return s.dialect }

// Select appends columns to the projection.
func (s *Selector) Select(columns ...string) *Selector {
	s.columns = append(s.columns, columns...)
	return s
}

// AppendSelectExpr appends expressions rendered by predicates, such as
// function calls, to the projection.
func (s *Selector) AppendSelectExpr(exprs ...*Predicate) *Selector {
	s.exprs = append(s.exprs, exprs...)
	return s
}

// SelectedColumns returns the projected columns.
func (s *Selector) SelectedColumns() []string {
	return append([]string(nil), s.columns...)
}

// Distinct adds DISTINCT to the projection.
func (s *Selector) Distinct() *Selector {
	s.distinct = true
	return s
}

// From sets the source table.
func (s *Selector) From(t *SelectTable) *Selector {
	s.from = t
	return s
}

// Table returns the source table.
func (s *Selector) Table() *SelectTable { return s.from }

// Join appends an inner join.
func (s *Selector) Join(t *SelectTable) *Selector {
	s.joins = append(s.joins, join{kind: "JOIN", table: t})
	return s
}

// LeftJoin appends a left outer join.
func (s *Selector) LeftJoin(t *SelectTable) *Selector {
	s.joins = append(s.joins, join{kind: "LEFT JOIN", table: t})
	return s
}

// On adds an equality of two columns to the condition of the last join.
func (s *Selector) On(col1, col2 string) *Selector {
	return s.OnP(ColumnsEQ(col1, col2))
}

// OnP adds a predicate to the condition of the last join.
func (s *Selector) OnP(p *Predicate) *Selector {
	if len(s.joins) == 0 {
		return s
	}
	j := &s.joins[len(s.joins)-1]
	j.on = And(j.on, p)
	return s
}

// Where adds a predicate, joined with AND to the existing ones.
func (s *Selector) Where(p *Predicate) *Selector {
	s.where = And(s.where, p)
	return s
}

type orderTerm struct {
	column string
	expr   *Predicate
}

// OrderBy appends ordering terms, such as "t0.NAME" or "t0.NAME DESC".
func (s *Selector) OrderBy(terms ...string) *Selector {
	for _, t := range terms {
		s.order = append(s.order, orderTerm{column: t})
	}
	return s
}

// OrderByExpr appends ordering terms rendered by predicates, such as
// "UPPER(t0.NAME) DESC".
func (s *Selector) OrderByExpr(exprs ...*Predicate) *Selector {
	for _, e := range exprs {
		s.order = append(s.order, orderTerm{expr: e})
	}
	return s
}

// Ordered reports whether the selector has an ORDER BY clause.
func (s *Selector) Ordered() bool { return len(s.order) > 0 }

// Limit limits the number of rows. Zero means no limit.
func (s *Selector) Limit(n int) *Selector {
	s.limit = n
	return s
}

// Offset skips rows.
func (s *Selector) Offset(n int) *Selector {
	s.offset = n
	return s
}

// Paginate sets the paginator used to render Limit and Offset. By default
// the paginator of the dialect is used.
func (s *Selector) Paginate(p Paginator) *Selector {
	s.paginator = p
	return s
}

// ForUpdate locks the selected rows.
func (s *Selector) ForUpdate() *Selector {
	s.forUpdate = true
	return s
}

// Query returns the statement and its arguments.
func (s *Selector) Query() (string, []any) {
	return s.build(s.builder()).Query()
}

// Build returns the statement with its bindings.
func (s *Selector) Build() (*Statement, error) {
	return s.build(s.builder()).Build()
}

func (s *Selector) builder() *Builder {
	return &Builder{dialect: s.dialect, quote: s.quote}
}

func (s *Selector) build(b *Builder) *Builder {
	body := b.Child()
	body.WriteString("SELECT ")
	if s.distinct {
		body.WriteString("DISTINCT ")
	}
	switch {
	case len(s.columns) == 0 && len(s.exprs) == 0:
		body.WriteByte('*')
	default:
		body.IdentComma(s.columns...)
		for i, e := range s.exprs {
			if i > 0 || len(s.columns) > 0 {
				body.Comma()
			}
			e.build(body)
		}
	}
	if s.from == nil {
		body.AddError(errors.New("sql: select without FROM table"))
	} else {
		body.WriteString(" FROM ")
		s.from.ref(body)
	}
	for _, j := range s.joins {
		body.WriteByte(' ').WriteString(j.kind).WriteByte(' ')
		j.table.ref(body)
		if j.on != nil {
			body.WriteString(" ON ")
			j.on.build(body)
		}
	}
	if s.where != nil {
		body.WriteString(" WHERE ")
		s.where.build(body)
	}
	if len(s.order) > 0 {
		body.WriteString(" ORDER BY ")
		for i, o := range s.order {
			if i > 0 {
				body.Comma()
			}
			if o.expr != nil {
				o.expr.build(body)
				continue
			}
			col, dir, ok := strings.Cut(o.column, " ")
			body.Ident(col)
			if ok {
				body.WriteByte(' ').WriteString(dir)
			}
		}
	}
	if s.limit > 0 || s.offset > 0 {
		p := s.paginator
		if p == nil {
			p = DefaultPaginator(s.dialect)
		}
		p.Paginate(b, body, Window{Limit: s.limit, Offset: s.offset, Ordered: len(s.order) > 0})
	} else {
		b.Join(body)
	}
	if s.forUpdate {
		b.WriteString(" FOR UPDATE")
	}
	return b
}

// InsertBuilder is a builder for the INSERT statement.
type InsertBuilder struct {
	dialect   string
	quote     bool
	table     string
	schema    string
	columns   []string
	values    [][]any
	defaults  bool
	returning []string
}

// Insert returns an InsertBuilder for the table.
func Insert(table string) *InsertBuilder {
	return &InsertBuilder{table: table}
}

// Schema sets the schema of the table.
func (i *InsertBuilder) Schema(name string) *InsertBuilder {
	i.schema = name
	return i
}

// Columns sets the inserted columns.
func (i *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	i.columns = append(i.columns, columns...)
	return i
}

// Values appends a row of values. Values may be Bindings.
func (i *InsertBuilder) Values(values ...any) *InsertBuilder {
	i.values = append(i.values, values)
	return i
}

// Default inserts a row with default values only.
func (i *InsertBuilder) Default() *InsertBuilder {
	i.defaults = true
	return i
}

// Returning adds a RETURNING clause on dialects that support it.
func (i *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	i.returning = columns
	return i
}

// SupportsReturning reports whether the dialect can return generated
// columns from an INSERT.
func SupportsReturning(name string) bool {
	return name == dialect.Postgres || name == dialect.SQLite
}

// Query returns the statement and its arguments.
func (i *InsertBuilder) Query() (string, []any) {
	return i.build(&Builder{dialect: i.dialect, quote: i.quote}).Query()
}

// Build returns the statement with its bindings.
func (i *InsertBuilder) Build() (*Statement, error) {
	return i.build(&Builder{dialect: i.dialect, quote: i.quote}).Build()
}

func (i *InsertBuilder) build(b *Builder) *Builder {
	b.WriteString("INSERT INTO ")
	if i.schema != "" {
		b.Ident(i.schema).WriteByte('.')
	}
	b.Ident(i.table)
	switch {
	case i.defaults && len(i.columns) == 0:
		if i.dialect == dialect.MySQL {
			b.WriteString(" VALUES ()")
		} else {
			b.WriteString(" DEFAULT VALUES")
		}
	case len(i.values) == 0:
		b.AddError(fmt.Errorf("sql: insert into %s without values", i.table))
	default:
		b.WriteString(" (").IdentComma(i.columns...).WriteString(") VALUES ")
		for k, row := range i.values {
			if len(row) != len(i.columns) {
				b.AddError(fmt.Errorf("sql: insert into %s: %d values for %d columns", i.table, len(row), len(i.columns)))
			}
			if k > 0 {
				b.Comma()
			}
			b.Wrap(func(b *Builder) { b.Args(row...) })
		}
	}
	if len(i.returning) > 0 && SupportsReturning(i.dialect) {
		b.WriteString(" RETURNING ").IdentComma(i.returning...)
	}
	return b
}

// UpdateBuilder is a builder for the UPDATE statement.
type UpdateBuilder struct {
	dialect string
	quote   bool
	table   string
	schema  string
	columns []string
	values  []any
	where   *Predicate
}

// Update returns an UpdateBuilder for the table.
func Update(table string) *UpdateBuilder {
	return &UpdateBuilder{table: table}
}

// Schema sets the schema of the table.
func (u *UpdateBuilder) Schema(name string) *UpdateBuilder {
	u.schema = name
	return u
}

// Set sets a column to a value. The value may be a Binding.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.columns = append(u.columns, column)
	u.values = append(u.values, v)
	return u
}

// SetNull sets a column to NULL.
func (u *UpdateBuilder) SetNull(column string) *UpdateBuilder {
	return u.Set(column, nil)
}

// Empty reports whether no column is set.
func (u *UpdateBuilder) Empty() bool { return len(u.columns) == 0 }

// Where adds a predicate, joined with AND to the existing ones.
func (u *UpdateBuilder) Where(p *Predicate) *UpdateBuilder {
	u.where = And(u.where, p)
	return u
}

// Query returns the statement and its arguments.
func (u *UpdateBuilder) Query() (string, []any) {
	return u.build(&Builder{dialect: u.dialect, quote: u.quote}).Query()
}

// Build returns the statement with its bindings.
func (u *UpdateBuilder) Build() (*Statement, error) {
	return u.build(&Builder{dialect: u.dialect, quote: u.quote}).Build()
}

func (u *UpdateBuilder) build(b *Builder) *Builder {
	b.WriteString("UPDATE ")
	if u.schema != "" {
		b.Ident(u.schema).WriteByte('.')
	}
	b.Ident(u.table).WriteString(" SET ")
	if u.Empty() {
		b.AddError(fmt.Errorf("sql: update of %s without columns", u.table))
	}
	for i, c := range u.columns {
		if i > 0 {
			b.Comma()
		}
		b.Ident(c).WriteString(" = ")
		if u.values[i] == nil {
			b.WriteString("NULL")
			continue
		}
		b.Arg(u.values[i])
	}
	if u.where != nil {
		b.WriteString(" WHERE ")
		u.where.build(b)
	}
	return b
}

// DeleteBuilder is a builder for the DELETE statement.
type DeleteBuilder struct {
	dialect string
	quote   bool
	table   string
	schema  string
	where   *Predicate
}

// Delete returns a DeleteBuilder for the table.
func Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{table: table}
}

// Schema sets the schema of the table.
func (d *DeleteBuilder) Schema(name string) *DeleteBuilder {
	d.schema = name
	return d
}

// Where adds a predicate, joined with AND to the existing ones.
func (d *DeleteBuilder) Where(p *Predicate) *DeleteBuilder {
	d.where = And(d.where, p)
	return d
}

// Query returns the statement and its arguments.
func (d *DeleteBuilder) Query() (string, []any) {
	return d.build(&Builder{dialect: d.dialect, quote: d.quote}).Query()
}

// Build returns the statement with its bindings.
func (d *DeleteBuilder) Build() (*Statement, error) {
	return d.build(&Builder{dialect: d.dialect, quote: d.quote}).Build()
}

func (d *DeleteBuilder) build(b *Builder) *Builder {
	b.WriteString("DELETE FROM ")
	if d.schema != "" {
		b.Ident(d.schema).WriteByte('.')
	}
	b.Ident(d.table)
	if d.where != nil {
		b.WriteString(" WHERE ")
		d.where.build(b)
	}
	return b
}
