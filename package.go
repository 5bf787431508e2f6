package bionic

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// expectedMimetype is the required content of the "mimetype" entry.
const expectedMimetype = "application/epub+zip"

// containerPath is the well-known location of container.xml.
const containerPath = "META-INF/container.xml"

// markupMediaTypes are the manifest media types that identify transformable
// content documents. Everything else is copied through untouched.
var markupMediaTypes = map[string]bool{
	"application/xhtml+xml": true,
	"text/html":             true,
}

// markupExtensions is the fallback rule used when no usable OPF manifest
// exists: entries with these extensions are treated as content documents.
var markupExtensions = []string{".xhtml", ".html", ".htm"}

// Metadata holds the Dublin Core fields shown by package inspection.
type Metadata struct {
	// Version is the ePub specification version (e.g., "2.0", "3.0").
	Version string

	// Title is the primary dc:title value.
	Title string

	// Authors contains the dc:creator display names.
	Authors []string

	// Language is the first dc:language value.
	Language string

	// Identifier is the first dc:identifier value (ISBN, UUID, URI).
	Identifier string

	// Publisher is the dc:publisher value.
	Publisher string

	// Date is the dc:date value as a raw string.
	Date string

	// Description is the dc:description value.
	Description string
}

// Document describes one transformable content document in the package.
type Document struct {
	// Path is the ZIP-internal path of the entry.
	Path string

	// MediaType is the declared manifest media type, or "" when the
	// document was discovered by file extension.
	MediaType string

	// ID is the manifest item ID, or "" for extension-discovered entries.
	ID string
}

// Package is a read handle on an ePub archive with its content documents
// identified. Use OpenPackage or NewPackageReader to create one.
//
// A Package is not safe for concurrent use by multiple goroutines.
type Package struct {
	zip      *zip.Reader
	closer   io.Closer // non-nil only when created via OpenPackage
	opfPath  string
	metadata Metadata
	docs     map[string]Document // ZIP path → document
	byExt    bool                // extension fallback in effect
	warnings []string
}

// OpenPackage opens an ePub file at the given path. The caller must call
// Close when done.
func OpenPackage(path string) (*Package, error) {
	zrc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("bionic: open %s: %w", path, ErrInvalidEPub)
	}

	p, err := initPackage(&zrc.Reader, zrc)
	if err != nil {
		zrc.Close()
		return nil, err
	}
	return p, nil
}

// NewPackageReader creates a Package from an io.ReaderAt with the given
// size. The caller owns the lifetime of r.
func NewPackageReader(r io.ReaderAt, size int64) (*Package, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("bionic: open zip: %w", ErrInvalidEPub)
	}
	return initPackage(zr, nil)
}

// initPackage validates the mimetype, rejects DRM, and runs document
// discovery. Container/OPF problems degrade to extension-based discovery
// with a warning; only DRM is fatal here.
func initPackage(zr *zip.Reader, closer io.Closer) (*Package, error) {
	p := &Package{
		zip:    zr,
		closer: closer,
		docs:   make(map[string]Document),
	}

	p.validateMimetype()

	fontObfuscation, err := checkDRM(zr)
	if err != nil {
		return nil, err
	}
	if fontObfuscation {
		p.warnings = append(p.warnings, "font obfuscation detected; obfuscated fonts are copied as-is")
	}

	if err := p.discover(); err != nil {
		p.warnings = append(p.warnings, fmt.Sprintf("manifest unusable (%v); falling back to extension-based discovery", err))
		p.discoverByExtension()
	}

	return p, nil
}

// validateMimetype checks that the first ZIP entry is "mimetype" with the
// expected content. Deviations are warnings; many real ePubs get this wrong.
func (p *Package) validateMimetype() {
	if len(p.zip.File) == 0 {
		p.warnings = append(p.warnings, "empty ZIP archive")
		return
	}
	first := p.zip.File[0]
	if first.Name != "mimetype" {
		p.warnings = append(p.warnings, "first ZIP entry is not \"mimetype\"")
		return
	}
	data, err := readZipFile(first)
	if err != nil {
		p.warnings = append(p.warnings, fmt.Sprintf("cannot read mimetype entry: %v", err))
		return
	}
	if strings.TrimSpace(string(data)) != expectedMimetype {
		p.warnings = append(p.warnings, fmt.Sprintf("unexpected mimetype: %q", string(data)))
	}
}

// discover locates the OPF via container.xml and classifies manifest items
// by media type.
func (p *Package) discover() error {
	opfPath, err := findOPFPath(p.zip)
	if err != nil {
		return err
	}
	p.opfPath = opfPath

	opfFile := findFileInsensitive(p.zip, opfPath)
	if opfFile == nil {
		return fmt.Errorf("OPF %s: %w", opfPath, ErrFileNotFound)
	}
	data, err := readZipFile(opfFile)
	if err != nil {
		return fmt.Errorf("read OPF: %w", err)
	}

	pkg, err := parseOPF(data)
	if err != nil {
		return err
	}
	p.metadata = extractMetadata(pkg)

	for _, item := range pkg.Manifest.Items {
		if !markupMediaTypes[strings.TrimSpace(strings.ToLower(item.MediaType))] {
			continue
		}
		resolved := resolveRelativePath(opfPath, item.Href)
		if resolved == "" {
			p.warnings = append(p.warnings, fmt.Sprintf("manifest item %s has unusable href %q", item.ID, item.Href))
			continue
		}
		p.docs[resolved] = Document{Path: resolved, MediaType: item.MediaType, ID: item.ID}
	}

	if len(p.docs) == 0 {
		return fmt.Errorf("manifest declares no markup documents")
	}
	return nil
}

// discoverByExtension classifies entries by file extension, matching the
// behaviour expected for packages without a readable manifest.
func (p *Package) discoverByExtension() {
	p.byExt = true
	p.docs = make(map[string]Document)
	for _, f := range p.zip.File {
		if hasMarkupExtension(f.Name) {
			p.docs[f.Name] = Document{Path: f.Name}
		}
	}
}

// hasMarkupExtension reports whether name ends in a markup-family file
// extension, case-insensitively.
func hasMarkupExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range markupExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Close releases resources held by the Package. Close is idempotent.
func (p *Package) Close() error {
	if p.closer != nil {
		err := p.closer.Close()
		p.closer = nil
		return err
	}
	return nil
}

// Metadata returns the extracted package metadata. Fields are empty when
// discovery fell back to extensions.
func (p *Package) Metadata() Metadata {
	md := p.metadata
	md.Authors = append([]string(nil), p.metadata.Authors...)
	return md
}

// Warnings returns non-fatal problems noted while opening the package.
func (p *Package) Warnings() []string {
	return append([]string(nil), p.warnings...)
}

// OPFPath returns the ZIP-internal path of the OPF file, or "" when none
// was found.
func (p *Package) OPFPath() string {
	return p.opfPath
}

// Documents returns the transformable content documents in ZIP entry order.
func (p *Package) Documents() []Document {
	out := make([]Document, 0, len(p.docs))
	for _, f := range p.zip.File {
		if d, ok := p.docs[f.Name]; ok {
			out = append(out, d)
		}
	}
	return out
}

// DiscoveredByExtension reports whether document discovery fell back to
// matching file extensions because no usable manifest was found.
func (p *Package) DiscoveredByExtension() bool {
	return p.byExt
}

// IsDocument reports whether the named ZIP entry is a transformable
// content document.
func (p *Package) IsDocument(name string) bool {
	_, ok := p.docs[name]
	return ok
}

// entries exposes the raw ZIP entries in archive order.
func (p *Package) entries() []*zip.File {
	return p.zip.File
}

// ---------------------------------------------------------------------------
// container.xml and OPF parsing
// ---------------------------------------------------------------------------

// containerXML models META-INF/container.xml.
type containerXML struct {
	XMLName   xml.Name `xml:"container"`
	RootFiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

// findOPFPath locates the OPF path, preferring container.xml and falling
// back to scanning for a ".opf" entry.
func findOPFPath(zr *zip.Reader) (string, error) {
	if f := findFileInsensitive(zr, containerPath); f != nil {
		data, err := readZipFile(f)
		if err != nil {
			return "", fmt.Errorf("read container.xml: %w", err)
		}
		var c containerXML
		if err := xml.Unmarshal(stripBOM(data), &c); err != nil {
			return "", fmt.Errorf("parse container.xml: %w", err)
		}
		var fallback string
		for _, rf := range c.RootFiles {
			full := strings.TrimSpace(rf.FullPath)
			if full == "" {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(rf.MediaType), "application/oebps-package+xml") {
				return full, nil
			}
			if fallback == "" {
				fallback = full
			}
		}
		if fallback != "" {
			return fallback, nil
		}
		// container.xml exists but is useless; fall through to the scan.
	}

	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".opf") {
			return f.Name, nil
		}
	}
	return "", fmt.Errorf("no OPF file: %w", ErrFileNotFound)
}

// opfPackage models the subset of the OPF <package> element the converter
// needs: metadata for inspection and the manifest for discovery.
type opfPackage struct {
	XMLName  xml.Name `xml:"package"`
	Version  string   `xml:"version,attr"`
	Metadata struct {
		Titles       []string `xml:"http://purl.org/dc/elements/1.1/ title"`
		Creators     []string `xml:"http://purl.org/dc/elements/1.1/ creator"`
		Languages    []string `xml:"http://purl.org/dc/elements/1.1/ language"`
		Identifiers  []string `xml:"http://purl.org/dc/elements/1.1/ identifier"`
		Publishers   []string `xml:"http://purl.org/dc/elements/1.1/ publisher"`
		Dates        []string `xml:"http://purl.org/dc/elements/1.1/ date"`
		Descriptions []string `xml:"http://purl.org/dc/elements/1.1/ description"`
	} `xml:"metadata"`
	Manifest struct {
		Items []opfManifestItem `xml:"item"`
	} `xml:"manifest"`
}

// opfManifestItem is a single <item> in the OPF manifest.
type opfManifestItem struct {
	ID        string `xml:"id,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
}

// parseOPF parses OPF file content.
func parseOPF(data []byte) (*opfPackage, error) {
	data = stripBOM(numericizeNamedEntities(data))

	var pkg opfPackage
	if err := xml.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("parse OPF: %w", err)
	}
	if pkg.Version == "" {
		pkg.Version = "2.0"
	}
	return &pkg, nil
}

// extractMetadata flattens the parsed OPF metadata into the public
// Metadata struct, taking the first non-empty value of single-valued
// fields.
func extractMetadata(pkg *opfPackage) Metadata {
	md := Metadata{Version: pkg.Version}
	om := &pkg.Metadata

	md.Title = firstNonEmpty(om.Titles)
	md.Language = firstNonEmpty(om.Languages)
	md.Identifier = firstNonEmpty(om.Identifiers)
	md.Publisher = firstNonEmpty(om.Publishers)
	md.Date = firstNonEmpty(om.Dates)
	md.Description = firstNonEmpty(om.Descriptions)
	for _, c := range om.Creators {
		if v := strings.TrimSpace(c); v != "" {
			md.Authors = append(md.Authors, v)
		}
	}
	return md
}

// firstNonEmpty returns the first value in vals with non-whitespace
// content, trimmed.
func firstNonEmpty(vals []string) string {
	for _, v := range vals {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}

// namedEntityRefs maps HTML named entities commonly found in OPF metadata
// to numeric references. encoding/xml only understands the five XML
// entities, so the rest are rewritten before parsing.
var namedEntityRefs = map[string]string{
	"nbsp": "&#160;", "mdash": "&#8212;", "ndash": "&#8211;", "hellip": "&#8230;",
	"lsquo": "&#8216;", "rsquo": "&#8217;", "ldquo": "&#8220;", "rdquo": "&#8221;",
	"copy": "&#169;", "reg": "&#174;", "trade": "&#8482;",
	"eacute": "&#233;", "egrave": "&#232;", "ecirc": "&#234;", "euml": "&#235;",
	"agrave": "&#224;", "auml": "&#228;", "ouml": "&#246;", "uuml": "&#252;",
	"ntilde": "&#241;", "ccedil": "&#231;", "laquo": "&#171;", "raquo": "&#187;",
}

var namedEntityPattern = regexp.MustCompile(`(?i)&([a-z]+);`)

// numericizeNamedEntities rewrites known HTML named entities as numeric
// character references so encoding/xml can parse OPF files that use them.
// Unknown names and the XML built-ins are left alone.
func numericizeNamedEntities(data []byte) []byte {
	return namedEntityPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := strings.ToLower(string(match[1 : len(match)-1]))
		switch name {
		case "amp", "lt", "gt", "quot", "apos":
			return match
		}
		if num, ok := namedEntityRefs[name]; ok {
			return []byte(num)
		}
		return match
	})
}
