package bionic

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// Converter rewrites the content documents of an ePub package into their
// Bionic Reading form while copying every other entry through
// byte-faithfully, in the original entry order.
type Converter struct {
	opts *Options
}

// NewConverter returns a Converter using the given options. A nil opts
// means DefaultOptions.
func NewConverter(opts *Options) *Converter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Converter{opts: opts}
}

// ConvertFile converts the ePub at inPath and writes the result to
// outPath. An existing output file is overwritten; a partial output file
// is removed on failure.
func (c *Converter) ConvertFile(ctx context.Context, inPath, outPath string) error {
	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("bionic: open %s: %w", inPath, err)
	}
	defer in.Close()

	st, err := in.Stat()
	if err != nil {
		return fmt.Errorf("bionic: stat %s: %w", inPath, err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("bionic: create %s: %w", outPath, err)
	}

	if err := c.Convert(ctx, in, st.Size(), out); err != nil {
		out.Close()
		os.Remove(outPath)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("bionic: close %s: %w", outPath, err)
	}
	return nil
}

// Convert reads an ePub from r and writes the converted package to w.
//
// Entries are written strictly in input order. The "mimetype" entry and
// all non-document entries are copied with their original compressed
// bytes; document entries are transformed and recompressed. When
// Options.Workers is above one, documents are transformed concurrently
// but collection and writing still follow input order. The context is
// checked between entries; conversion never stops mid-document.
func (c *Converter) Convert(ctx context.Context, r io.ReaderAt, size int64, w io.Writer) error {
	pkg, err := NewPackageReader(r, size)
	if err != nil {
		return err
	}
	for _, warn := range pkg.Warnings() {
		c.opts.logger().Warn("package warning", "warning", warn)
	}

	entries := pkg.entries()
	results := make([]entryResult, len(entries))

	if c.opts != nil && c.opts.Workers > 1 {
		if err := c.transformAll(ctx, pkg, entries, results); err != nil {
			return err
		}
	}

	zw := zip.NewWriter(w)
	total := len(entries)
	for i, f := range entries {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return fmt.Errorf("bionic: conversion aborted: %w", err)
		}

		res := results[i]
		if !res.done && pkg.IsDocument(f.Name) {
			res = c.transformEntry(f)
		}

		transformed := false
		switch {
		case res.done && res.err == nil:
			hdr := &zip.FileHeader{
				Name:     f.Name,
				Method:   zip.Deflate,
				Modified: f.Modified,
				Comment:  f.Comment,
			}
			fw, err := zw.CreateHeader(hdr)
			if err != nil {
				zw.Close()
				return fmt.Errorf("bionic: write entry %s: %w", f.Name, err)
			}
			if _, err := fw.Write(res.data); err != nil {
				zw.Close()
				return fmt.Errorf("bionic: write entry %s: %w", f.Name, err)
			}
			transformed = true

		case res.done && res.err != nil:
			if c.failurePolicy() == FailAbort {
				zw.Close()
				return res.err
			}
			c.opts.logger().Warn("document passed through unmodified",
				"entry", f.Name, "error", res.err)
			if err := zw.Copy(f); err != nil {
				zw.Close()
				return fmt.Errorf("bionic: copy entry %s: %w", f.Name, err)
			}

		default:
			// Non-document entry: raw compressed copy, byte-faithful.
			if err := zw.Copy(f); err != nil {
				zw.Close()
				return fmt.Errorf("bionic: copy entry %s: %w", f.Name, err)
			}
		}

		if c.opts != nil && c.opts.Progress != nil {
			c.opts.Progress(ProgressEvent{
				Done:        i + 1,
				Total:       total,
				Entry:       f.Name,
				Transformed: transformed,
			})
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("bionic: finalize archive: %w", err)
	}
	return nil
}

// entryResult is the outcome of transforming one document entry.
// done is false for entries that were never candidates.
type entryResult struct {
	data []byte
	err  error
	done bool
}

// transformAll transforms all document entries concurrently, bounded by
// Options.Workers, filling results by entry index so the writer can emit
// them in input order. With FailAbort the first failure cancels the group.
func (c *Converter) transformAll(ctx context.Context, pkg *Package, entries []*zip.File, results []entryResult) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)

	for i, f := range entries {
		if !pkg.IsDocument(f.Name) {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = c.transformEntry(f)
			if results[i].err != nil && c.failurePolicy() == FailAbort {
				return results[i].err
			}
			return nil
		})
	}
	return g.Wait()
}

// transformEntry reads one document entry and applies the transform.
// Failures are wrapped in a DocumentError carrying the entry name.
func (c *Converter) transformEntry(f *zip.File) entryResult {
	data, err := readZipFile(f)
	if err != nil {
		return entryResult{err: &DocumentError{Entry: f.Name, Kind: "read", Err: err}, done: true}
	}

	if err := checkEncoding(data); err != nil {
		return entryResult{err: &DocumentError{Entry: f.Name, Kind: "unsupported-encoding", Err: err}, done: true}
	}

	out, err := TransformDocument(data, c.opts)
	if err != nil {
		return entryResult{err: &DocumentError{Entry: f.Name, Kind: "transform", Err: err}, done: true}
	}
	return entryResult{data: out, done: true}
}

// failurePolicy returns the configured per-document failure policy.
func (c *Converter) failurePolicy() FailurePolicy {
	if c.opts == nil {
		return FailSkip
	}
	return c.opts.OnError
}

// declaredEncodingPattern matches the encoding declared in an XML
// declaration or a meta charset attribute near the top of a document.
var declaredEncodingPattern = regexp.MustCompile(`(?i)(?:encoding=["']|charset=["']?)([a-z0-9._\-]+)`)

// checkEncoding verifies the document bytes can be transformed in place:
// the transform operates on UTF-8 text, so UTF-16 content or documents
// declaring a non-UTF-8 encoding whose bytes are not valid UTF-8 are
// rejected with ErrUnsupportedEncoding.
func checkEncoding(data []byte) error {
	if len(data) >= 2 {
		if (data[0] == 0xFE && data[1] == 0xFF) || (data[0] == 0xFF && data[1] == 0xFE) {
			return fmt.Errorf("%w: UTF-16 byte order mark", ErrUnsupportedEncoding)
		}
	}

	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if m := declaredEncodingPattern.FindSubmatch(head); m != nil {
		enc := strings.ToLower(string(m[1]))
		switch enc {
		case "utf-8", "utf8", "us-ascii", "ascii":
		default:
			if strings.HasPrefix(enc, "utf-16") || strings.HasPrefix(enc, "utf-32") {
				return fmt.Errorf("%w: declared encoding %q", ErrUnsupportedEncoding, enc)
			}
			// Other declared encodings are tolerated as long as the bytes
			// are valid UTF-8 (ASCII-compatible content is common).
			if !utf8.Valid(data) {
				return fmt.Errorf("%w: declared encoding %q", ErrUnsupportedEncoding, enc)
			}
			return nil
		}
	}

	if !utf8.Valid(stripBOM(data)) {
		return fmt.Errorf("%w: content is not valid UTF-8", ErrUnsupportedEncoding)
	}
	return nil
}
