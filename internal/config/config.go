// Package config loads the optional YAML options file for the converter
// CLI and merges it into bionic.Options. Flags given on the command line
// take precedence over the file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	bionic "github.com/proudgenius/bionic-reading-epub-converter"
)

// File models the converter's YAML configuration file.
type File struct {
	// BoldFraction is the bolded fraction for words of ten or more
	// characters. Zero means the default (0.5).
	BoldFraction float64 `yaml:"bold_fraction"`

	// ExcludedTags replaces the default excluded tag set when non-empty.
	ExcludedTags []string `yaml:"excluded_tags"`

	// WordBoundary is one of "apostrophe-inclusive", "split-all",
	// "hyphen-inclusive".
	WordBoundary string `yaml:"word_boundary"`

	// Workers is the number of documents transformed concurrently.
	Workers int `yaml:"workers"`

	// OnError is "skip" or "abort".
	OnError string `yaml:"on_error"`
}

// Load reads and validates a configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &f, nil
}

func (f *File) validate() error {
	if f.BoldFraction < 0 || f.BoldFraction > 1 {
		return fmt.Errorf("bold_fraction %v out of range (0, 1]", f.BoldFraction)
	}
	if f.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if _, err := bionic.ParseBoundaryPolicy(f.WordBoundary); err != nil {
		return err
	}
	if _, err := bionic.ParseFailurePolicy(f.OnError); err != nil {
		return err
	}
	return nil
}

// Apply copies the file's settings onto opts. Zero values in the file
// leave the corresponding option untouched.
func (f *File) Apply(opts *bionic.Options) {
	if f.BoldFraction > 0 {
		opts.MinBoldFraction = f.BoldFraction
	}
	if len(f.ExcludedTags) > 0 {
		opts.ExcludedTags = append([]string(nil), f.ExcludedTags...)
	}
	if f.WordBoundary != "" {
		policy, _ := bionic.ParseBoundaryPolicy(f.WordBoundary)
		opts.WordBoundary = policy
	}
	if f.Workers > 0 {
		opts.Workers = f.Workers
	}
	if f.OnError != "" {
		policy, _ := bionic.ParseFailurePolicy(f.OnError)
		opts.OnError = policy
	}
}
