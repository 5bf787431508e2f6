package bionic

import (
	"archive/zip"
	"encoding/xml"
	"strings"
)

// encryptionFilePath is the standard path for the encryption descriptor.
const encryptionFilePath = "META-INF/encryption.xml"

// sinfFilePath marks Apple FairPlay DRM.
const sinfFilePath = "META-INF/sinf.xml"

// Font obfuscation algorithm URIs. Obfuscated fonts are not DRM; the
// converter copies them through untouched.
var fontObfuscationAlgorithms = map[string]bool{
	"http://www.idpf.org/2008/embedding": true,
	"http://ns.adobe.com/pdf/enc#RC":     true,
}

// drmSignatures are namespace prefixes of known DRM schemes.
var drmSignatures = []string{
	"http://ns.adobe.com/adept",      // Adobe ADEPT
	"http://readium.org/2014/01/lcp", // Readium LCP
}

type xmlEncryption struct {
	XMLName       xml.Name `xml:"encryption"`
	EncryptedData []struct {
		EncryptionMethod struct {
			Algorithm string `xml:"Algorithm,attr"`
		} `xml:"EncryptionMethod"`
		KeyInfo struct {
			InnerXML string `xml:",innerxml"`
		} `xml:"KeyInfo"`
	} `xml:"EncryptedData"`
}

// checkDRM inspects META-INF/encryption.xml (if present) and decides
// whether the package is DRM-protected. There is no point emboldening an
// encrypted book, so DRM is rejected up front rather than producing a
// broken output archive.
//
// Returns:
//   - (false, nil)             – no encryption, or no encryption.xml
//   - (true,  nil)             – only font obfuscation entries
//   - (false, ErrDRMProtected) – real DRM detected
func checkDRM(zr *zip.Reader) (fontObfuscation bool, err error) {
	if findFileInsensitive(zr, sinfFilePath) != nil {
		return false, ErrDRMProtected
	}

	f := findFileInsensitive(zr, encryptionFilePath)
	if f == nil {
		return false, nil
	}

	data, err := readZipFile(f)
	if err != nil {
		return false, err
	}

	var enc xmlEncryption
	if err := xml.Unmarshal(stripBOM(data), &enc); err != nil {
		// Unparseable encryption descriptor: assume the worst.
		return false, ErrDRMProtected
	}

	for _, ed := range enc.EncryptedData {
		algo := ed.EncryptionMethod.Algorithm
		if fontObfuscationAlgorithms[algo] {
			fontObfuscation = true
			continue
		}
		if isDRMSignature(algo) || isDRMSignature(ed.KeyInfo.InnerXML) {
			return false, ErrDRMProtected
		}
		// Any other encrypted entry is treated as DRM.
		return false, ErrDRMProtected
	}

	return fontObfuscation, nil
}

// isDRMSignature reports whether s contains a known DRM namespace.
func isDRMSignature(s string) bool {
	for _, sig := range drmSignatures {
		if strings.Contains(s, sig) {
			return true
		}
	}
	return false
}
