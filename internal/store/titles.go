package store

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var titleStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeTitle reduces a title to a lowercase alphanumeric form for
// matching. Diacritics are stripped and common romanization differences
// collapsed so "Shōnen", "Shounen", and "shonen" compare equal.
func NormalizeTitle(title string) string {
	if title == "" {
		return ""
	}

	stripped, _, err := transform.String(titleStripper, title)
	if err != nil {
		stripped = title
	}
	stripped = strings.ToLower(stripped)
	stripped = strings.ReplaceAll(stripped, "&", "and")
	stripped = strings.ReplaceAll(stripped, "ou", "o")
	stripped = strings.ReplaceAll(stripped, "uu", "u")

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
