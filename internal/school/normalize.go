package school

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName standardizes a school name for matching by:
//  1. Decomposing and dropping combining marks (diacritics)
//  2. Converting to lowercase
//  3. Dropping every rune that is not a letter or digit
//
// Letters with no canonical decomposition, such as ø, ł and ß, are kept rather
// than transliterated, as are letters of non-Latin scripts.
func NormalizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
