package entity

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Locale is a BCP 47 tag as stored on applications and sentences ("en", "fr-CA").
type Locale string

const (
	LocaleUnspecified Locale = ""
	LocaleEnglish     Locale = "en"
	LocaleFrench      Locale = "fr"
)

// ParseLocale canonicalizes an arbitrary tag. Unparseable input yields LocaleUnspecified.
func ParseLocale(code string) Locale {
	code = strings.TrimSpace(code)
	if code == "" {
		return LocaleUnspecified
	}
	tag, err := language.Parse(code)
	if err != nil {
		return LocaleUnspecified
	}
	return Locale(tag.String())
}

// Code returns the tag without defaulting.
func (l Locale) Code() string {
	return strings.TrimSpace(string(l))
}

// Language returns the base language subtag ("fr" for "fr-CA").
func (l Locale) Language() string {
	tag, err := language.Parse(l.Code())
	if err != nil {
		return strings.ToLower(l.Code())
	}
	base, _ := tag.Base()
	return base.String()
}

// SortLocales returns a sorted copy so fallbacks stay deterministic.
func SortLocales(in []Locale) []Locale {
	out := append([]Locale(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
