package bionic

import (
	"math"
	"regexp"
	"strings"
)

// Word patterns per boundary policy. Words are runs of Unicode letters and
// combining marks; a joining character (apostrophe or hyphen, depending on
// policy) only counts as part of a word when it sits between letters, so
// quoted words and dashes keep their surrounding punctuation untouched.
var wordPatterns = map[BoundaryPolicy]*regexp.Regexp{
	BoundaryApostropheInclusive: regexp.MustCompile(`[\p{L}\p{M}](?:['` + "’" + `\p{L}\p{M}]*[\p{L}\p{M}])?`),
	BoundarySplitAll:            regexp.MustCompile(`[\p{L}\p{M}]+`),
	BoundaryHyphenInclusive:     regexp.MustCompile(`[\p{L}\p{M}](?:['` + "’" + `\-\p{L}\p{M}]*[\p{L}\p{M}])?`),
}

// EmboldenText rewrites plain character data so that each word's leading
// characters are wrapped in <b>…</b>. The input must not contain markup;
// everything that is not a word (whitespace, punctuation, digit runs)
// passes through verbatim, and stripping the inserted <b> tags from the
// output reproduces the input exactly.
//
// The bolded prefix length depends on word length in runes: one character
// for words up to three characters, two up to six, three up to nine, and
// ceil(length × MinBoldFraction) beyond that.
func EmboldenText(text string, opts *Options) string {
	if text == "" || strings.TrimSpace(text) == "" {
		return text
	}

	pattern := wordPatterns[opts.boundary()]
	fraction := opts.boldFraction()

	return pattern.ReplaceAllStringFunc(text, func(word string) string {
		return emboldenWord(word, fraction)
	})
}

// emboldenWord wraps the leading prefix of a single word in <b> tags.
func emboldenWord(word string, fraction float64) string {
	runes := []rune(word)
	n := boldPrefixLen(len(runes), fraction)

	var b strings.Builder
	b.Grow(len(word) + len("<b></b>"))
	b.WriteString("<b>")
	b.WriteString(string(runes[:n]))
	b.WriteString("</b>")
	b.WriteString(string(runes[n:]))
	return b.String()
}

// boldPrefixLen returns the number of leading runes to embolden for a word
// of the given length.
func boldPrefixLen(length int, fraction float64) int {
	switch {
	case length <= 0:
		return 0
	case length <= 3:
		return 1
	case length <= 6:
		return 2
	case length <= 9:
		return 3
	}
	n := int(math.Ceil(float64(length) * fraction))
	if n < 1 {
		n = 1
	}
	if n > length {
		n = length
	}
	return n
}
