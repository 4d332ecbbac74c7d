package exp

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

type likeKey struct {
	pattern    string
	escape     rune
	ignoreCase bool
}

// compiled LIKE patterns, shared by all evaluations.
var likeCache sync.Map

// likeRegexp converts a SQL LIKE pattern into an anchored regular
// expression: "%" matches any sequence, "_" one char, and the escape char
// makes the following char literal.
func likeRegexp(pattern string, escape rune, ignoreCase bool) (*regexp.Regexp, error) {
	key := likeKey{pattern: pattern, escape: escape, ignoreCase: ignoreCase}
	if re, ok := likeCache.Load(key); ok {
		return re.(*regexp.Regexp), nil
	}
	if ignoreCase {
		pattern = foldCase(pattern)
	}
	var b strings.Builder
	b.WriteString(`(?s)^`)
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case escape != 0 && r == escape:
			escaped = true
		case r == '%':
			b.WriteString(".*")
		case r == '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		return nil, fmt.Errorf("exp: LIKE pattern %q ends with escape char", pattern)
	}
	b.WriteByte('$')
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("exp: LIKE pattern %q: %w", pattern, err)
	}
	likeCache.Store(key, re)
	return re, nil
}

// foldCase applies Unicode case folding. A Caser is not safe for concurrent
// use, so one is created per call.
func foldCase(s string) string {
	return cases.Fold().String(s)
}

func likeMatch(v any, pattern string, escape rune, ignoreCase bool) (bool, error) {
	if isNil(v) {
		return false, nil
	}
	s, ok := toString(v)
	if !ok {
		s = fmt.Sprint(v)
	}
	re, err := likeRegexp(pattern, escape, ignoreCase)
	if err != nil {
		return false, err
	}
	if ignoreCase {
		s = foldCase(s)
	}
	return re.MatchString(s), nil
}
