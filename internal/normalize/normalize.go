// Package normalize produces the canonical search form of extracted page text.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// isCombiningMark reports whether r is in the Combining Diacritical Marks
// block (U+0300..U+036F).
func isCombiningMark(r rune) bool {
	return r >= 0x0300 && r <= 0x036F
}

// Text returns s decomposed (NFD), stripped of combining diacritical marks
// and lowercased. Text(Text(s)) == Text(s).
func Text(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.Predicate(isCombiningMark)))
	out, _, err := transform.String(t, s)
	if err != nil {
		// transform only fails on invalid state; fall back to the raw input
		out = s
	}
	return strings.ToLower(out)
}

// isSpace matches the ECMAScript whitespace and line terminator set: Unicode
// White_Space (minus NEL) plus the byte order mark.
func isSpace(r rune) bool {
	switch r {
	case '\uFEFF':
		return true
	case '\u0085':
		return false
	}
	return unicode.IsSpace(r)
}

// CollapseWhitespace replaces every whitespace run with a single space and
// trims both ends. NBSP, ideographic space and the line/paragraph separators
// count as whitespace.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.FieldsFunc(s, isSpace), " ")
}
