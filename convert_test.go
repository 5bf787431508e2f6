package bionic

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// convertBytes runs a full conversion over an in-memory archive.
func convertBytes(t *testing.T, opts *Options, input []byte) []byte {
	t.Helper()
	var out bytes.Buffer
	conv := NewConverter(opts)
	if err := conv.Convert(context.Background(), bytes.NewReader(input), int64(len(input)), &out); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	return out.Bytes()
}

func TestConvert_TransformsDocuments(t *testing.T) {
	input := buildZipBytes(t, testEPubEntries(
		xhtmlDoc("<p>Hello world</p>"),
		xhtmlDoc("<p>Another chapter entirely</p>"),
	))
	out := openZip(t, convertBytes(t, nil, input))

	ch1 := readEntry(t, out, "OEBPS/chapter1.xhtml")
	if !strings.Contains(ch1, "<b>He</b>llo <b>wo</b>rld") {
		t.Errorf("chapter1 not transformed: %s", ch1)
	}
	ch2 := readEntry(t, out, "OEBPS/chapter2.xhtml")
	if !strings.Contains(ch2, "<b>Ano</b>ther <b>cha</b>pter <b>ent</b>irely") {
		t.Errorf("chapter2 not transformed: %s", ch2)
	}
}

func TestConvert_NonDocumentEntriesByteIdentical(t *testing.T) {
	input := buildZipBytes(t, testEPubEntries(xhtmlDoc("<p>x</p>"), xhtmlDoc("<p>y</p>")))
	out := openZip(t, convertBytes(t, nil, input))

	for _, name := range []string{"mimetype", "META-INF/container.xml", "OEBPS/content.opf", "OEBPS/toc.ncx", "OEBPS/style.css"} {
		in := readEntry(t, openZip(t, input), name)
		got := readEntry(t, out, name)
		if got != in {
			t.Errorf("entry %s modified:\n got: %s\nwant: %s", name, got, in)
		}
	}
}

func TestConvert_PreservesEntryOrderAndMimetype(t *testing.T) {
	input := buildZipBytes(t, testEPubEntries(xhtmlDoc("<p>x</p>"), xhtmlDoc("<p>y</p>")))
	inZip := openZip(t, input)
	out := openZip(t, convertBytes(t, nil, input))

	if len(out.File) != len(inZip.File) {
		t.Fatalf("entry count changed: got %d, want %d", len(out.File), len(inZip.File))
	}
	for i := range inZip.File {
		if out.File[i].Name != inZip.File[i].Name {
			t.Errorf("entry %d = %s, want %s", i, out.File[i].Name, inZip.File[i].Name)
		}
	}
	if out.File[0].Name != "mimetype" {
		t.Errorf("first entry = %s, want mimetype", out.File[0].Name)
	}
	if out.File[0].Method != zip.Store {
		t.Errorf("mimetype method = %d, want Store", out.File[0].Method)
	}
}

func TestConvert_SkipPolicyPassesBadDocumentThrough(t *testing.T) {
	bad := "<p>broken \xff\xfe bytes</p>"
	entries := testEPubEntries(xhtmlDoc("<p>fine text</p>"), bad)
	input := buildZipBytes(t, entries)

	out := openZip(t, convertBytes(t, nil, input)) // default FailSkip

	if got := readEntry(t, out, "OEBPS/chapter2.xhtml"); got != bad {
		t.Errorf("bad document was not passed through verbatim: %q", got)
	}
	if got := readEntry(t, out, "OEBPS/chapter1.xhtml"); !strings.Contains(got, "<b>fi</b>ne") {
		t.Errorf("good document not transformed: %s", got)
	}
}

func TestConvert_AbortPolicySurfacesDocumentError(t *testing.T) {
	bad := "<p>broken \xff\xfe bytes</p>"
	input := buildZipBytes(t, testEPubEntries(xhtmlDoc("<p>fine</p>"), bad))

	opts := DefaultOptions()
	opts.OnError = FailAbort
	conv := NewConverter(opts)
	err := conv.Convert(context.Background(), bytes.NewReader(input), int64(len(input)), &bytes.Buffer{})
	if !errors.Is(err, ErrUnsupportedEncoding) {
		t.Fatalf("Convert error = %v, want ErrUnsupportedEncoding", err)
	}
	var de *DocumentError
	if !errors.As(err, &de) {
		t.Fatalf("Convert error is not a DocumentError: %v", err)
	}
	if de.Entry != "OEBPS/chapter2.xhtml" || de.Kind != "unsupported-encoding" {
		t.Errorf("DocumentError = %+v", de)
	}
}

func TestConvert_Progress(t *testing.T) {
	entries := testEPubEntries(xhtmlDoc("<p>one</p>"), xhtmlDoc("<p>two</p>"))
	input := buildZipBytes(t, entries)

	var events []ProgressEvent
	opts := DefaultOptions()
	opts.Progress = func(ev ProgressEvent) { events = append(events, ev) }
	convertBytes(t, opts, input)

	if len(events) != len(entries) {
		t.Fatalf("progress events = %d, want %d", len(events), len(entries))
	}
	for i, ev := range events {
		if ev.Done != i+1 || ev.Total != len(entries) {
			t.Errorf("event %d = %+v", i, ev)
		}
		if ev.Entry != entries[i].name {
			t.Errorf("event %d entry = %s, want %s", i, ev.Entry, entries[i].name)
		}
		isDoc := strings.HasSuffix(ev.Entry, ".xhtml")
		if ev.Transformed != isDoc {
			t.Errorf("event %d Transformed = %v for %s", i, ev.Transformed, ev.Entry)
		}
	}
}

func TestConvert_ParallelMatchesSequential(t *testing.T) {
	input := buildZipBytes(t, testEPubEntries(
		xhtmlDoc("<p>Parallel workers must not reorder anything at all.</p>"),
		xhtmlDoc("<p>Each document is transformed independently of the others.</p>"),
	))

	seq := openZip(t, convertBytes(t, nil, input))

	opts := DefaultOptions()
	opts.Workers = 4
	par := openZip(t, convertBytes(t, opts, input))

	if len(par.File) != len(seq.File) {
		t.Fatalf("entry count mismatch: %d vs %d", len(par.File), len(seq.File))
	}
	for i := range seq.File {
		name := seq.File[i].Name
		if par.File[i].Name != name {
			t.Fatalf("entry %d order mismatch: %s vs %s", i, par.File[i].Name, name)
		}
		if readEntry(t, par, name) != readEntry(t, seq, name) {
			t.Errorf("entry %s differs between parallel and sequential runs", name)
		}
	}
}

func TestConvert_Cancelled(t *testing.T) {
	input := buildZipBytes(t, testEPubEntries(xhtmlDoc("<p>x</p>"), xhtmlDoc("<p>y</p>")))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conv := NewConverter(nil)
	err := conv.Convert(ctx, bytes.NewReader(input), int64(len(input)), &bytes.Buffer{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Convert error = %v, want context.Canceled", err)
	}
}

func TestConvert_RejectsNonZip(t *testing.T) {
	junk := []byte("this is not a zip archive")
	conv := NewConverter(nil)
	err := conv.Convert(context.Background(), bytes.NewReader(junk), int64(len(junk)), &bytes.Buffer{})
	if !errors.Is(err, ErrInvalidEPub) {
		t.Errorf("Convert error = %v, want ErrInvalidEPub", err)
	}
}

func TestConvert_IdempotentAcrossRuns(t *testing.T) {
	input := buildZipBytes(t, testEPubEntries(xhtmlDoc("<p>Hello world</p>"), xhtmlDoc("<p>more words</p>")))
	first := convertBytes(t, nil, input)
	second := openZip(t, convertBytes(t, nil, first))

	ch1 := readEntry(t, second, "OEBPS/chapter1.xhtml")
	if strings.Contains(ch1, "<b><b>") {
		t.Errorf("second conversion nested emphasis: %s", ch1)
	}
	if !strings.Contains(ch1, "<b>He</b>") {
		t.Errorf("second conversion damaged existing emphasis: %s", ch1)
	}
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "book.epub")
	outPath := filepath.Join(dir, "book_bionic.epub")

	input := buildZipBytes(t, testEPubEntries(xhtmlDoc("<p>Hello world</p>"), xhtmlDoc("<p>two</p>")))
	if err := os.WriteFile(inPath, input, 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	conv := NewConverter(nil)
	if err := conv.ConvertFile(context.Background(), inPath, outPath); err != nil {
		t.Fatalf("ConvertFile: %v", err)
	}

	zrc, err := zip.OpenReader(outPath)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer zrc.Close()
	ch1 := readEntry(t, &zrc.Reader, "OEBPS/chapter1.xhtml")
	if !strings.Contains(ch1, "<b>He</b>llo") {
		t.Errorf("output not transformed: %s", ch1)
	}
}

func TestConvertFile_MissingInput(t *testing.T) {
	dir := t.TempDir()
	conv := NewConverter(nil)
	err := conv.ConvertFile(context.Background(), filepath.Join(dir, "nope.epub"), filepath.Join(dir, "out.epub"))
	if err == nil {
		t.Fatal("ConvertFile succeeded on missing input")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "out.epub")); statErr == nil {
		t.Errorf("partial output left behind")
	}
}

func TestCheckEncoding(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"plain utf-8", "<p>héllo</p>", false},
		{"declared utf-8", `<?xml version="1.0" encoding="UTF-8"?><p>hi</p>`, false},
		{"utf-16 bom", "\xfe\xff\x00h", true},
		{"utf-16 le bom", "\xff\xfe h", true},
		{"declared utf-16", `<?xml version="1.0" encoding="UTF-16"?><p>hi</p>`, true},
		{"invalid utf-8 bytes", "<p>\xff\xfe</p>", true},
		{"declared latin-1 with ascii body", `<?xml version="1.0" encoding="ISO-8859-1"?><p>plain ascii</p>`, false},
		{"declared latin-1 with non-utf8 body", "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><p>caf\xe9</p>", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkEncoding([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("checkEncoding(%q) error = %v, wantErr %v", tt.data, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnsupportedEncoding) {
				t.Errorf("checkEncoding error %v is not ErrUnsupportedEncoding", err)
			}
		})
	}
}
