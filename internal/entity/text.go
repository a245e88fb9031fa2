package entity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var queryCleaner = strings.NewReplacer("\t", " ", "\n", " ", "\r", "")

// NormalizeQuery strips control whitespace from raw user input.
func NormalizeQuery(text string) string {
	return strings.TrimSpace(queryCleaner.Replace(text))
}

// NormalizeText folds case and removes diacritics so "Électricité" and "electricite" compare equal.
func NormalizeText(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		out = text
	}
	return strings.ToLower(strings.Join(strings.Fields(out), " "))
}
