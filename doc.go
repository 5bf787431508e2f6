// Package bionic converts ePub books into their Bionic Reading form:
// each word's leading characters are emboldened to create visual fixation
// points, while the package structure, metadata, navigation, and all
// markup are preserved exactly.
//
// # Converting a book
//
// Use [Converter.ConvertFile] to convert a file on disk:
//
//	conv := bionic.NewConverter(nil)
//	if err := conv.ConvertFile(ctx, "book.epub", "book_bionic.epub"); err != nil {
//	    log.Fatal(err)
//	}
//
// Every ZIP entry of the output matches the input in name and order; only
// content documents (identified by their OPF manifest media type, or by
// file extension when no manifest is usable) are rewritten. DRM-protected
// files are rejected with [ErrDRMProtected].
//
// # The transform
//
// [TransformDocument] rewrites one HTML/XHTML document. It walks the
// markup with a streaming tokenizer, emits every tag byte-for-byte, and
// passes each text run through [EmboldenText], which wraps the leading
// portion of each word in <b> tags. The bolded length follows word
// length: one character for words up to three characters, two up to six,
// three up to nine, and half the word (rounded up) beyond that.
//
// Content inside script, style, pre, code, svg, math, and existing
// emphasis wrappers is never touched, which also makes the transform
// idempotent: converting an already-converted document changes nothing
// inside previously emboldened spans.
//
// # Options
//
// [Options] controls the long-word bold fraction, the excluded tag set,
// the word boundary policy for hyphens and apostrophes, document-level
// parallelism, the per-document failure policy, and progress reporting.
// A nil *Options means defaults.
//
// # Error handling
//
//   - [ErrDRMProtected] – the input is DRM encrypted
//   - [ErrInvalidEPub] – the input is not a ZIP archive
//   - [ErrUnsupportedEncoding] – a document is not UTF-8
//
// Per-document failures are wrapped in [DocumentError]; whether a failed
// document is copied through unmodified or aborts the run is decided by
// [Options.OnError], never by the transform itself.
package bionic
