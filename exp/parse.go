package exp

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// ParseError describes a syntax error and its byte offset in the input.
type ParseError struct {
	Pos int
	Msg string
}

// Error returns the error string.
func (e *ParseError) Error() string {
	return fmt.Sprintf("exp: parse error at offset %d: %s", e.Pos, e.Msg)
}

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokPath
	tokDbPath
	tokString
	tokInt
	tokDecimal
	tokParam
	tokLParen
	tokRParen
	tokComma
	tokOp
	tokKeyword
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

var keywords = map[string]string{
	"and":            "and",
	"or":             "or",
	"not":            "not",
	"like":           "like",
	"likeignorecase": "likeIgnoreCase",
	"in":             "in",
	"between":        "between",
	"null":           "null",
	"true":           "true",
	"false":          "false",
	"escape":         "escape",
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) errorf(pos int, format string, args ...any) error {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		r, w := utf8.DecodeRuneInString(l.src[l.pos:])
		if !unicode.IsSpace(r) {
			break
		}
		l.pos += w
	}
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}
	c := l.src[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case c == ',':
		l.pos++
		return token{kind: tokComma, text: ",", pos: start}, nil
	case c == '"' || c == '\'':
		s, err := l.quoted(c)
		return token{kind: tokString, text: s, pos: start}, err
	case c == '$':
		l.pos++
		name := l.ident(false)
		if name == "" {
			return token{}, l.errorf(start, "parameter name expected after $")
		}
		return token{kind: tokParam, text: name, pos: start}, nil
	case c >= '0' && c <= '9':
		return l.number(), nil
	case strings.ContainsRune("=!<>+-*/&|", rune(c)):
		return l.operator()
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	if !isIdentStart(r) {
		return token{}, l.errorf(start, "unexpected character %q", r)
	}
	word := l.ident(true)
	if kw, ok := keywords[strings.ToLower(word)]; ok {
		return token{kind: tokKeyword, text: kw, pos: start}, nil
	}
	if (word == "db" || word == "obj") && l.pos < len(l.src) && l.src[l.pos] == ':' {
		l.pos++
		path := l.ident(true)
		if path == "" {
			return token{}, l.errorf(start, "path expected after %s:", word)
		}
		if word == "db" {
			return token{kind: tokDbPath, text: path, pos: start}, nil
		}
		word = path
	}
	return token{kind: tokPath, text: word, pos: start}, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

// ident scans a name. Paths may contain dots, and a "+" directly followed
// by a dot marks an outer join segment.
func (l *lexer) ident(path bool) string {
	start := l.pos
	for l.pos < len(l.src) {
		r, w := utf8.DecodeRuneInString(l.src[l.pos:])
		switch {
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
		case path && r == '.':
		case path && r == '+' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '.':
		default:
			return l.src[start:l.pos]
		}
		l.pos += w
	}
	return l.src[start:l.pos]
}

func (l *lexer) number() token {
	start := l.pos
	kind := tokInt
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '.' && kind == tokInt && l.pos+1 < len(l.src) && l.src[l.pos+1] >= '0' && l.src[l.pos+1] <= '9' {
			kind = tokDecimal
		} else if c < '0' || c > '9' {
			break
		}
		l.pos++
	}
	return token{kind: kind, text: l.src[start:l.pos], pos: start}
}

func (l *lexer) operator() (token, error) {
	start := l.pos
	for _, op := range []string{"==", "!=", "<>", "<=", ">=", "&&", "||", "=", "<", ">", "+", "-", "*", "/", "!"} {
		if strings.HasPrefix(l.src[l.pos:], op) {
			l.pos += len(op)
			return token{kind: tokOp, text: op, pos: start}, nil
		}
	}
	return token{}, l.errorf(start, "unexpected character %q", l.src[l.pos])
}

// quoted scans a string literal delimited by q. Backslash escapes \n, \t,
// \r and any escaped char stand for themselves.
func (l *lexer) quoted(q byte) (string, error) {
	start := l.pos
	l.pos++
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case q:
			l.pos++
			return b.String(), nil
		case '\\':
			if l.pos+1 >= len(l.src) {
				return "", l.errorf(start, "unterminated string")
			}
			l.pos++
			switch e := l.src[l.pos]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
		}
		l.pos++
	}
	return "", l.errorf(start, "unterminated string")
}

type parser struct {
	lex  lexer
	tok  token
	peek *token
}

// Parse parses the expression syntax produced by Expression.String, for
// example:
//
//	artistName like "A%" and paintings.estimatedPrice > 1000
//	db:ARTIST_ID in $ids or not (dateOfBirth = null)
func Parse(s string) (Expression, error) {
	p := &parser{lex: lexer{src: s}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	e, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.errorf("unexpected %q", p.tok.text)
	}
	return e, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Expression {
	e, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return e
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Pos: p.tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) advance() error {
	if p.peek != nil {
		p.tok, p.peek = *p.peek, nil
		return nil
	}
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) lookahead() (token, error) {
	if p.peek == nil {
		t, err := p.lex.next()
		if err != nil {
			return token{}, err
		}
		p.peek = &t
	}
	return *p.peek, nil
}

func (p *parser) is(kind tokenKind, texts ...string) bool {
	if p.tok.kind != kind {
		return false
	}
	if len(texts) == 0 {
		return true
	}
	for _, t := range texts {
		if p.tok.text == t {
			return true
		}
	}
	return false
}

func (p *parser) expect(kind tokenKind, text string) error {
	if !p.is(kind, text) {
		if p.tok.kind == tokEOF {
			return p.errorf("expected %q, got end of input", text)
		}
		return p.errorf("expected %q, got %q", text, p.tok.text)
	}
	return p.advance()
}

func (p *parser) or() (Expression, error) {
	x, err := p.and()
	if err != nil {
		return nil, err
	}
	xs := []Expression{x}
	for p.is(tokKeyword, "or") || p.is(tokOp, "||") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		y, err := p.and()
		if err != nil {
			return nil, err
		}
		xs = append(xs, y)
	}
	if len(xs) == 1 {
		return x, nil
	}
	return &NaryExpr{op: OpOr, xs: xs}, nil
}

func (p *parser) and() (Expression, error) {
	x, err := p.not()
	if err != nil {
		return nil, err
	}
	xs := []Expression{x}
	for p.is(tokKeyword, "and") || p.is(tokOp, "&&") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		y, err := p.not()
		if err != nil {
			return nil, err
		}
		xs = append(xs, y)
	}
	if len(xs) == 1 {
		return x, nil
	}
	return &NaryExpr{op: OpAnd, xs: xs}, nil
}

func (p *parser) not() (Expression, error) {
	if p.is(tokKeyword, "not") || p.is(tokOp, "!") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.not()
		if err != nil {
			return nil, err
		}
		return Not(x), nil
	}
	return p.condition()
}

var comparisonOps = map[string]Op{
	"=":  OpEQ,
	"==": OpEQ,
	"!=": OpNEQ,
	"<>": OpNEQ,
	"<":  OpLT,
	"<=": OpLTE,
	">":  OpGT,
	">=": OpGTE,
}

func (p *parser) condition() (Expression, error) {
	x, err := p.additive()
	if err != nil {
		return nil, err
	}
	if p.tok.kind == tokOp {
		if op, ok := comparisonOps[p.tok.text]; ok {
			if err := p.advance(); err != nil {
				return nil, err
			}
			y, err := p.additive()
			if err != nil {
				return nil, err
			}
			return &BinaryExpr{op: op, l: x, r: y}, nil
		}
	}
	negated := false
	if p.is(tokKeyword, "not") {
		next, err := p.lookahead()
		if err != nil {
			return nil, err
		}
		if next.kind == tokKeyword && (next.text == "like" || next.text == "likeIgnoreCase" || next.text == "in" || next.text == "between") {
			negated = true
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	switch {
	case p.is(tokKeyword, "like", "likeIgnoreCase"):
		return p.like(x, negated)
	case p.is(tokKeyword, "in"):
		return p.in(x, negated)
	case p.is(tokKeyword, "between"):
		return p.between(x, negated)
	}
	if s, ok := x.(*Scalar); ok {
		if b, ok := s.value.(bool); ok {
			if b {
				return True(), nil
			}
			return False(), nil
		}
	}
	return x, nil
}

func (p *parser) like(x Expression, negated bool) (Expression, error) {
	op := OpLike
	if p.tok.text == "likeIgnoreCase" {
		op = OpLikeIgnoreCase
	}
	if negated {
		op, _ = op.Negate()
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	pattern, err := p.additive()
	if err != nil {
		return nil, err
	}
	l := &LikeExpr{op: op, x: x, pattern: pattern}
	if p.is(tokKeyword, "escape") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokString || utf8.RuneCountInString(p.tok.text) != 1 {
			return nil, p.errorf("escape expects a single char string")
		}
		l.escape, _ = utf8.DecodeRuneInString(p.tok.text)
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (p *parser) in(x Expression, negated bool) (Expression, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	in := &InExpr{not: negated, x: x}
	if p.tok.kind == tokParam {
		in.set = P(p.tok.text)
		return in, p.advance()
	}
	if err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	list := &List{}
	for !p.is(tokRParen) {
		if len(list.items) > 0 {
			if err := p.expect(tokComma, ","); err != nil {
				return nil, err
			}
		}
		item, err := p.unary()
		if err != nil {
			return nil, err
		}
		list.items = append(list.items, item)
	}
	in.set = list
	return in, p.advance()
}

func (p *parser) between(x Expression, negated bool) (Expression, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	lo, err := p.additive()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokKeyword, "and"); err != nil {
		return nil, err
	}
	hi, err := p.additive()
	if err != nil {
		return nil, err
	}
	return &BetweenExpr{not: negated, x: x, lo: lo, hi: hi}, nil
}

func (p *parser) additive() (Expression, error) {
	x, err := p.multiplicative()
	if err != nil {
		return nil, err
	}
	for p.is(tokOp, "+", "-") {
		op := OpAdd
		if p.tok.text == "-" {
			op = OpSub
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		y, err := p.multiplicative()
		if err != nil {
			return nil, err
		}
		x = &BinaryExpr{op: op, l: x, r: y}
	}
	return x, nil
}

func (p *parser) multiplicative() (Expression, error) {
	x, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.is(tokOp, "*", "/") {
		op := OpMul
		if p.tok.text == "/" {
			op = OpDiv
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		y, err := p.unary()
		if err != nil {
			return nil, err
		}
		x = &BinaryExpr{op: op, l: x, r: y}
	}
	return x, nil
}

func (p *parser) unary() (Expression, error) {
	if !p.is(tokOp, "-") {
		return p.primary()
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind == tokInt || p.tok.kind == tokDecimal {
		p.tok.text = "-" + p.tok.text
		return p.primary()
	}
	x, err := p.unary()
	if err != nil {
		return nil, err
	}
	return &UnaryExpr{op: OpNegate, x: x}, nil
}

func (p *parser) primary() (Expression, error) {
	t := p.tok
	var e Expression
	switch t.kind {
	case tokPath:
		e = ObjPath(t.text)
	case tokDbPath:
		e = DbPath(t.text)
	case tokString:
		e = Value(t.text)
	case tokParam:
		e = P(t.text)
	case tokInt:
		if n, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			e = Value(n)
			break
		}
		d, err := decimal.NewFromString(t.text)
		if err != nil {
			return nil, p.errorf("invalid number %q", t.text)
		}
		e = Value(d)
	case tokDecimal:
		d, err := decimal.NewFromString(t.text)
		if err != nil {
			return nil, p.errorf("invalid number %q", t.text)
		}
		e = Value(d)
	case tokKeyword:
		switch t.text {
		case "null":
			e = Value(nil)
		case "true":
			e = Value(true)
		case "false":
			e = Value(false)
		default:
			return nil, p.errorf("unexpected %q", t.text)
		}
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.or()
		if err != nil {
			return nil, err
		}
		return inner, p.expect(tokRParen, ")")
	case tokEOF:
		return nil, p.errorf("unexpected end of input")
	default:
		return nil, p.errorf("unexpected %q", t.text)
	}
	return e, p.advance()
}
