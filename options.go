package bionic

import (
	"fmt"
	"log/slog"
)

// BoundaryPolicy controls how hyphens and apostrophes affect word splitting
// during emboldening. The policy changes the measured word length and
// therefore the bolded prefix length.
type BoundaryPolicy int

const (
	// BoundaryApostropheInclusive treats internal apostrophes as part of a
	// word ("don't" is one 5-letter word) while hyphens split
	// ("well-known" is two words). This is the default.
	BoundaryApostropheInclusive BoundaryPolicy = iota

	// BoundarySplitAll splits words on both apostrophes and hyphens.
	BoundarySplitAll

	// BoundaryHyphenInclusive treats internal hyphens and apostrophes as
	// part of a word ("well-known" is one 10-letter word).
	BoundaryHyphenInclusive
)

// String returns the canonical name of the policy, as accepted by
// ParseBoundaryPolicy.
func (p BoundaryPolicy) String() string {
	switch p {
	case BoundarySplitAll:
		return "split-all"
	case BoundaryHyphenInclusive:
		return "hyphen-inclusive"
	default:
		return "apostrophe-inclusive"
	}
}

// ParseBoundaryPolicy converts a policy name into a BoundaryPolicy.
func ParseBoundaryPolicy(s string) (BoundaryPolicy, error) {
	switch s {
	case "", "apostrophe-inclusive":
		return BoundaryApostropheInclusive, nil
	case "split-all":
		return BoundarySplitAll, nil
	case "hyphen-inclusive":
		return BoundaryHyphenInclusive, nil
	}
	return 0, fmt.Errorf("bionic: unknown word boundary policy %q", s)
}

// FailurePolicy controls what the converter does when one document cannot
// be transformed.
type FailurePolicy int

const (
	// FailSkip copies the failed document through unmodified and records
	// a warning. This is the default.
	FailSkip FailurePolicy = iota

	// FailAbort stops the whole conversion on the first document failure.
	FailAbort
)

// String returns the canonical name of the policy, as accepted by
// ParseFailurePolicy.
func (p FailurePolicy) String() string {
	if p == FailAbort {
		return "abort"
	}
	return "skip"
}

// ParseFailurePolicy converts a policy name into a FailurePolicy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "skip":
		return FailSkip, nil
	case "abort":
		return FailAbort, nil
	}
	return 0, fmt.Errorf("bionic: unknown failure policy %q", s)
}

// ProgressEvent describes one completed package entry. Events are emitted
// in entry order, exactly once per entry, never concurrently.
type ProgressEvent struct {
	// Done is the number of entries written so far, including this one.
	Done int

	// Total is the total number of entries in the package.
	Total int

	// Entry is the ZIP-internal path of the entry just written.
	Entry string

	// Transformed reports whether the entry was emboldened (true) or
	// copied through unchanged (false).
	Transformed bool
}

// defaultMinBoldFraction is the bolded fraction for words of ten or more
// characters, rounded up.
const defaultMinBoldFraction = 0.5

// DefaultExcludedTags lists the tags whose content is never transformed.
// script, style, pre, code, svg and math carry non-prose content; b and
// strong are existing strong-emphasis wrappers, and skipping them is what
// makes the transform idempotent; title and textarea hold text that must
// stay verbatim.
var DefaultExcludedTags = []string{
	"script", "style", "pre", "code", "svg", "math",
	"b", "strong", "title", "textarea",
}

// Options configures the emboldening transform and the converter.
// The zero value (and a nil *Options) means defaults.
type Options struct {
	// MinBoldFraction is the fraction of a long word (ten or more
	// characters) to embolden, rounded up. Zero means 0.5.
	MinBoldFraction float64

	// ExcludedTags is the set of tag names whose content passes through
	// unmodified. Nil means DefaultExcludedTags.
	ExcludedTags []string

	// WordBoundary selects how hyphens and apostrophes split words.
	WordBoundary BoundaryPolicy

	// Workers is the number of documents transformed concurrently.
	// Values below 2 mean sequential processing. Output entry order is
	// independent of Workers.
	Workers int

	// OnError selects the per-document failure policy.
	OnError FailurePolicy

	// Progress, when non-nil, is invoked once per completed entry.
	Progress func(ProgressEvent)

	// Logger, when non-nil, receives structured log records for recovered
	// failures and skipped documents. The converter never logs progress.
	Logger *slog.Logger
}

// DefaultOptions returns an Options populated with the default
// configuration.
func DefaultOptions() *Options {
	return &Options{
		MinBoldFraction: defaultMinBoldFraction,
		ExcludedTags:    append([]string(nil), DefaultExcludedTags...),
		WordBoundary:    BoundaryApostropheInclusive,
		OnError:         FailSkip,
	}
}

// boldFraction returns the configured long-word fraction, falling back to
// the default for zero or out-of-range values.
func (o *Options) boldFraction() float64 {
	if o == nil || o.MinBoldFraction <= 0 || o.MinBoldFraction > 1 {
		return defaultMinBoldFraction
	}
	return o.MinBoldFraction
}

// excludedTagSet returns the excluded tag names as a lowercase lookup set.
func (o *Options) excludedTagSet() map[string]bool {
	tags := DefaultExcludedTags
	if o != nil && o.ExcludedTags != nil {
		tags = o.ExcludedTags
	}
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[lowerASCII(t)] = true
	}
	return set
}

// boundary returns the configured word boundary policy.
func (o *Options) boundary() BoundaryPolicy {
	if o == nil {
		return BoundaryApostropheInclusive
	}
	return o.WordBoundary
}

// logger returns the configured logger, or a discard logger.
func (o *Options) logger() *slog.Logger {
	if o == nil || o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// lowerASCII lowercases ASCII letters in s without allocating for strings
// that are already lowercase. Tag names are ASCII.
func lowerASCII(s string) string {
	lower := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			lower = false
			break
		}
	}
	if lower {
		return s
	}
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
