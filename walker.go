package bionic

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// entityPattern matches named and numeric character references in raw
// character data. Entities are treated as opaque non-word tokens: the
// walker never decodes them, so character data round-trips byte-for-byte.
var entityPattern = regexp.MustCompile(`&(?:#[0-9]+|#[xX][0-9a-fA-F]+|[a-zA-Z][a-zA-Z0-9]*);`)

// TransformDocument rewrites the character data of an HTML/XHTML document
// so that each word carries a bolded prefix, leaving all markup untouched.
// Tags, attributes, comments, doctypes and entity references are emitted
// byte-for-byte; only text outside excluded regions is rewritten.
//
// Excluded tags (script, style, pre, code, existing <b>/<strong> wrappers,
// and the rest of Options.ExcludedTags) guard their entire subtree: a
// per-tag depth counter is incremented on open and decremented on a
// matching close, and text passes through verbatim while any counter is
// positive. Since emphasis wrappers are excluded, feeding the output back
// in produces no further change inside already-emboldened spans.
//
// The tokenizer is tolerant of malformed markup; unparseable regions are
// emitted unchanged as text or bogus-comment tokens rather than failing
// the document.
func TransformDocument(markup []byte, opts *Options) ([]byte, error) {
	excluded := opts.excludedTagSet()
	tokenizer := html.NewTokenizer(bytes.NewReader(markup))

	var out bytes.Buffer
	out.Grow(len(markup) + len(markup)/4)

	// Exclusion depth per tag name, plus the sum over all tags.
	depth := make(map[string]int)
	total := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			err := tokenizer.Err()
			if errors.Is(err, io.EOF) {
				// A truncated trailing construct (e.g. an unterminated
				// tag) is left in the raw buffer; emit it unchanged.
				out.Write(tokenizer.Raw())
				return out.Bytes(), nil
			}
			return nil, fmt.Errorf("bionic: tokenize document: %w", err)

		case html.StartTagToken:
			// Raw must be written before TagName: TagName lowercases the
			// tag name in the tokenizer's buffer in place.
			out.Write(tokenizer.Raw())
			name, _ := tokenizer.TagName()
			if n := string(name); excluded[n] {
				depth[n]++
				total++
			}

		case html.EndTagToken:
			out.Write(tokenizer.Raw())
			name, _ := tokenizer.TagName()
			if n := string(name); excluded[n] && depth[n] > 0 {
				depth[n]--
				total--
			}

		case html.TextToken:
			raw := tokenizer.Raw()
			if total > 0 {
				out.Write(raw)
				continue
			}
			out.Write(emboldenRawText(raw, opts))

		default:
			// Self-closing tags, comments, doctypes: verbatim. A
			// self-closing excluded tag has no content, so depth is
			// unaffected.
			out.Write(tokenizer.Raw())
		}
	}
}

// emboldenRawText applies the word transform to one raw text token.
// The token is split at entity references, each entity is emitted
// verbatim, and only the plain segments between them are emboldened.
// An entity adjacent to letters therefore acts as a word boundary.
func emboldenRawText(raw []byte, opts *Options) []byte {
	s := string(raw)
	if strings.TrimSpace(s) == "" {
		return raw
	}

	locs := entityPattern.FindAllStringIndex(s, -1)
	if locs == nil {
		return []byte(EmboldenText(s, opts))
	}

	var b strings.Builder
	b.Grow(len(s) + len(s)/4)
	prev := 0
	for _, loc := range locs {
		b.WriteString(EmboldenText(s[prev:loc[0]], opts))
		b.WriteString(s[loc[0]:loc[1]])
		prev = loc[1]
	}
	b.WriteString(EmboldenText(s[prev:], opts))
	return []byte(b.String())
}
