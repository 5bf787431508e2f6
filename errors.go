package bionic

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the bionic package.
var (
	// ErrDRMProtected indicates the input ePub is protected by DRM
	// (e.g., Adobe ADEPT, Apple FairPlay, Readium LCP) and cannot be converted.
	ErrDRMProtected = errors.New("bionic: file is DRM protected")

	// ErrInvalidEPub indicates the input is not a valid ePub
	// (e.g., not a ZIP archive at all).
	ErrInvalidEPub = errors.New("bionic: invalid ePub file")

	// ErrFileNotFound indicates a requested entry does not exist
	// in the ePub archive.
	ErrFileNotFound = errors.New("bionic: file not found in archive")

	// ErrUnsupportedEncoding indicates a content document is not encoded
	// in UTF-8 and cannot be transformed without transcoding.
	ErrUnsupportedEncoding = errors.New("bionic: unsupported document encoding")
)

// DocumentError reports a per-document failure during conversion. The
// converter never aborts a whole package because one document failed; it
// surfaces a DocumentError and lets the configured failure policy decide
// whether the entry is copied through unmodified or the run stops.
type DocumentError struct {
	// Entry is the ZIP-internal path of the failed document.
	Entry string

	// Kind classifies the failure (e.g., "read", "unsupported-encoding",
	// "transform").
	Kind string

	// Err is the underlying cause.
	Err error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("bionic: document %s: %s: %v", e.Entry, e.Kind, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}
