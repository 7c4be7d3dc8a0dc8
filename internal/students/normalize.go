package students

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldName lowercases a name and strips diacritics so "Jiří" matches "jiri".
func foldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.Join(strings.Fields(out), " "))
}

// matches reports whether query hits the student's name or registration number.
func matches(name, registration, query string) bool {
	q := foldName(query)
	if q == "" {
		return true
	}
	return strings.Contains(foldName(name), q) || strings.Contains(strings.ToLower(registration), q)
}
