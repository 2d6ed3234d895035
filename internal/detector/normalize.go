package detector

import (
	"strings"
	"unicode"
)

// Normalize canonicalizes memory content for comparison: trim, Unicode
// case-fold, and collapse internal whitespace runs to single spaces.
func Normalize(content string) string {
	var b strings.Builder
	b.Grow(len(content))

	inSpace := false
	for _, r := range strings.TrimSpace(content) {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace {
			b.WriteRune(' ')
			inSpace = false
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Tokenize splits normalized content into word tokens on non-letter/digit
// boundaries. Input is expected to already be normalized.
func Tokenize(normalized string) []string {
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TokenSet returns the unique tokens of normalized content.
func TokenSet(normalized string) map[string]struct{} {
	tokens := Tokenize(normalized)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
