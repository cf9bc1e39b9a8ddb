package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize turns a title into its comparison key: NFKC-folded (full-width
// and compatibility forms), lower-cased, with everything that is not a
// letter or number removed. Whitespace and punctuation are dropped
// entirely, so "Cooking Show  Ep.1!" and "cooking show ep1" share a key.
//
// Both local and remote titles go through this one function.
func Normalize(title string) string {
	if title == "" {
		return ""
	}

	// Unicode normalization (NFKC) to fold width/compatibility forms (full‑width, etc.)
	s := norm.NFKC.String(title)

	// Casers are stateful, so one per call.
	s = cases.Lower(language.Und).String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
