package sql

import (
	"strconv"

	"github.com/syssam/cayenne/dialect"
)

// Window is the requested page of a select.
type Window struct {
	Limit   int // zero means unlimited
	Offset  int
	Ordered bool // the statement has an ORDER BY clause
}

// Paginator writes the body of a select into b, decorated so that only the
// rows in the window are returned.
type Paginator interface {
	Paginate(b, body *Builder, w Window)
}

// PaginatorFunc adapts a function to the Paginator interface.
type PaginatorFunc func(b, body *Builder, w Window)

// Paginate implements Paginator.
func (f PaginatorFunc) Paginate(b, body *Builder, w Window) { f(b, body, w) }

// maxUnsignedLimit is the documented way of expressing "no limit" in MySQL.
const maxUnsignedLimit = "18446744073709551615"

// LimitOffset appends LIMIT and OFFSET clauses. Without a limit, the
// dialect's way of expressing an offset alone is used.
var LimitOffset = PaginatorFunc(func(b, body *Builder, w Window) {
	b.Join(body)
	switch {
	case w.Limit > 0:
		b.WriteString(" LIMIT ").WriteString(strconv.Itoa(w.Limit))
	case b.dialect == dialect.MySQL:
		b.WriteString(" LIMIT " + maxUnsignedLimit)
	case b.dialect == dialect.SQLite:
		b.WriteString(" LIMIT -1")
	}
	if w.Offset > 0 {
		b.WriteString(" OFFSET ").WriteString(strconv.Itoa(w.Offset))
	}
})

// RowNum wraps the select in two sub-selects filtering on ROWNUM.
var RowNum = PaginatorFunc(func(b, body *Builder, w Window) {
	if w.Limit == 0 && w.Offset == 0 {
		b.Join(body)
		return
	}
	b.WriteString("SELECT * FROM (SELECT tid.*, ROWNUM rnum FROM (")
	b.Join(body)
	b.WriteString(") tid")
	if w.Limit > 0 {
		b.WriteString(" WHERE ROWNUM <= ").WriteString(strconv.Itoa(w.Offset + w.Limit))
	}
	b.WriteString(") WHERE rnum > ").WriteString(strconv.Itoa(w.Offset))
})

// FetchFirst appends the standard OFFSET and FETCH clauses.
var FetchFirst = PaginatorFunc(func(b, body *Builder, w Window) {
	b.Join(body)
	fetch(b, w)
})

// OffsetFetch appends OFFSET and FETCH NEXT clauses for dialects that
// require both, after an ORDER BY. Unordered selects get a neutral ordering.
var OffsetFetch = PaginatorFunc(func(b, body *Builder, w Window) {
	b.Join(body)
	if !w.Ordered {
		b.WriteString(" ORDER BY (SELECT NULL)")
	}
	b.WriteString(" OFFSET ").WriteString(strconv.Itoa(w.Offset)).WriteString(" ROWS")
	if w.Limit > 0 {
		b.WriteString(" FETCH NEXT ").WriteString(strconv.Itoa(w.Limit)).WriteString(" ROWS ONLY")
	}
})

func fetch(b *Builder, w Window) {
	if w.Offset > 0 {
		b.WriteString(" OFFSET ").WriteString(strconv.Itoa(w.Offset)).WriteString(" ROWS")
	}
	if w.Limit > 0 {
		if w.Offset > 0 {
			b.WriteString(" FETCH NEXT ")
		} else {
			b.WriteString(" FETCH FIRST ")
		}
		b.WriteString(strconv.Itoa(w.Limit)).WriteString(" ROWS ONLY")
	}
}

// DefaultPaginator returns the paginator used by a dialect.
func DefaultPaginator(name string) Paginator {
	switch name {
	case dialect.Oracle:
		return RowNum
	case dialect.DB2, dialect.Derby:
		return FetchFirst
	case dialect.SQLServer, dialect.Sybase:
		return OffsetFetch
	default:
		return LimitOffset
	}
}
