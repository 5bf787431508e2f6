package bionic

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
)

// zipEntry is one entry of an in-memory test archive. Order matters for
// the converter, so test archives are built from slices, not maps.
type zipEntry struct {
	name    string
	content string
}

// buildZipBytes creates an in-memory ZIP archive from entries, in order.
// A "mimetype" entry is stored uncompressed, as the ePub spec requires.
func buildZipBytes(t *testing.T, entries []zipEntry) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		if e.name == "mimetype" {
			hdr.Method = zip.Store
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("buildZipBytes: create %s: %v", e.name, err)
		}
		if _, err := io.WriteString(fw, e.content); err != nil {
			t.Fatalf("buildZipBytes: write %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("buildZipBytes: close writer: %v", err)
	}
	return buf.Bytes()
}

// openZip opens an in-memory ZIP archive for inspection.
func openZip(t *testing.T, data []byte) *zip.Reader {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("openZip: %v", err)
	}
	return zr
}

// readEntry returns the decompressed content of a named ZIP entry.
func readEntry(t *testing.T, zr *zip.Reader, name string) string {
	t.Helper()
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				t.Fatalf("readEntry: open %s: %v", name, err)
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("readEntry: read %s: %v", name, err)
			}
			return string(data)
		}
	}
	t.Fatalf("readEntry: %s not in archive", name)
	return ""
}

// testOPF builds a minimal OPF declaring the given manifest items as
// "id→href media-type" triples.
const testContainerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const testOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>A Test Book</dc:title>
    <dc:creator opf:role="aut">Jane Writer</dc:creator>
    <dc:language>en</dc:language>
    <dc:identifier id="bookid" opf:scheme="ISBN">978-0-00-000000-0</dc:identifier>
    <dc:publisher>Test Press</dc:publisher>
    <dc:date>2024-01-01</dc:date>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="css" href="style.css" media-type="text/css"/>
    <item id="ch1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="chapter2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="ch1"/>
    <itemref idref="ch2"/>
  </spine>
</package>`

const testNCX = `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
    <navPoint id="np1" playOrder="1"><navLabel><text>One</text></navLabel><content src="chapter1.xhtml"/></navPoint>
  </navMap>
</ncx>`

const testCSS = "body { font-family: serif; }\n"

// testEPubEntries assembles a complete two-chapter test book. Chapter
// content is supplied by the caller so individual tests control the text
// being transformed.
func testEPubEntries(chapter1, chapter2 string) []zipEntry {
	return []zipEntry{
		{"mimetype", "application/epub+zip"},
		{"META-INF/container.xml", testContainerXML},
		{"OEBPS/content.opf", testOPF},
		{"OEBPS/toc.ncx", testNCX},
		{"OEBPS/style.css", testCSS},
		{"OEBPS/chapter1.xhtml", chapter1},
		{"OEBPS/chapter2.xhtml", chapter2},
	}
}

// xhtmlDoc wraps body content in a minimal XHTML document.
func xhtmlDoc(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>Chapter</title></head><body>` + body + `</body></html>`
}
