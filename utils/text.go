package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases s and strips diacritics so "Diagnóstico" and "DIAGNOSTICO" compare equal.
func Fold(s string) string {
	// transform.Chain is stateful, build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// Slug folds s and collapses spaces, dashes and underscores into single underscores.
func Slug(s string) string {
	f := Fold(s)
	var b strings.Builder
	sep := false
	for _, r := range f {
		switch {
		case r == ' ' || r == '-' || r == '_' || r == '\t':
			sep = b.Len() > 0
		default:
			if sep {
				b.WriteByte('_')
				sep = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LikePattern returns a lower-cased LIKE pattern matching term anywhere.
func LikePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
}
