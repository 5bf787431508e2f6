// Command bionic-convert converts ePub files to Bionic Reading format:
// the leading characters of each word are emboldened while the book's
// structure, metadata, and navigation are preserved.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	bionic "github.com/proudgenius/bionic-reading-epub-converter"
	"github.com/proudgenius/bionic-reading-epub-converter/internal/config"
	"github.com/proudgenius/bionic-reading-epub-converter/internal/tui"
)

const version = "1.0.0"

// CLI defines the command-line interface for bionic-convert.
var CLI struct {
	LogLevel string `name:"log-level" default:"warn" enum:"debug,info,warn,error" help:"Log level (debug|info|warn|error)"`
	Config   string `name:"config" short:"c" type:"path" help:"Path to a YAML options file"`

	Convert ConvertCmd `cmd:"" default:"withargs" help:"Convert an ePub to Bionic Reading format"`
	Inspect InspectCmd `cmd:"" help:"Show package metadata and the documents that would be transformed"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// ConvertCmd converts one ePub file.
type ConvertCmd struct {
	Input  string `arg:"" type:"existingfile" help:"Input ePub file"`
	Output string `arg:"" optional:"" help:"Output ePub file (default: <input>_bionic.epub)"`

	Workers      int      `short:"w" default:"1" help:"Documents transformed concurrently"`
	OnError      string   `help:"Per-document failure policy (skip|abort, default skip)"`
	BoldFraction float64  `default:"0" help:"Bolded fraction for words of 10+ characters (default 0.5)"`
	Exclude      []string `help:"Tags whose content is never transformed (replaces the default set)"`
	WordBoundary string   `help:"Word splitting policy for hyphens and apostrophes (apostrophe-inclusive|split-all|hyphen-inclusive, default apostrophe-inclusive)"`
	TUI          bool     `help:"Show an interactive progress UI"`
	Quiet        bool     `short:"q" help:"Suppress progress output"`
}

func (c *ConvertCmd) Run(logger *slog.Logger) error {
	opts, err := buildOptions(logger, c)
	if err != nil {
		return err
	}

	output := c.Output
	if output == "" {
		output = defaultOutputPath(c.Input)
	}

	if c.TUI {
		return tui.Run(c.Input, output, opts)
	}

	if !c.Quiet {
		opts.Progress = func(ev bionic.ProgressEvent) {
			pct := ev.Done * 100 / ev.Total
			fmt.Fprintf(os.Stderr, "\r%3d%%  %-60s", pct, truncate(ev.Entry, 60))
		}
	}

	conv := bionic.NewConverter(opts)
	if err := conv.ConvertFile(context.Background(), c.Input, output); err != nil {
		if !c.Quiet {
			fmt.Fprintln(os.Stderr)
		}
		return err
	}
	if !c.Quiet {
		fmt.Fprintln(os.Stderr)
	}
	fmt.Printf("Converted to: %s\n", output)
	return nil
}

// InspectCmd prints package metadata and discovered content documents.
type InspectCmd struct {
	Input string `arg:"" type:"existingfile" help:"Input ePub file"`
}

func (c *InspectCmd) Run(logger *slog.Logger) error {
	pkg, err := bionic.OpenPackage(c.Input)
	if err != nil {
		return err
	}
	defer pkg.Close()

	md := pkg.Metadata()
	if md.Title != "" {
		fmt.Printf("Title:      %s\n", md.Title)
	}
	if len(md.Authors) > 0 {
		fmt.Printf("Authors:    %s\n", strings.Join(md.Authors, ", "))
	}
	if md.Language != "" {
		fmt.Printf("Language:   %s\n", md.Language)
	}
	if md.Identifier != "" {
		fmt.Printf("Identifier: %s\n", md.Identifier)
	}
	if md.Publisher != "" {
		fmt.Printf("Publisher:  %s\n", md.Publisher)
	}
	if md.Version != "" {
		fmt.Printf("ePub:       %s\n", md.Version)
	}

	docs := pkg.Documents()
	if pkg.DiscoveredByExtension() {
		fmt.Printf("\nDocuments (%d, by file extension):\n", len(docs))
	} else {
		fmt.Printf("\nDocuments (%d):\n", len(docs))
	}
	for _, d := range docs {
		if d.MediaType != "" {
			fmt.Printf("  %s  (%s)\n", d.Path, d.MediaType)
		} else {
			fmt.Printf("  %s\n", d.Path)
		}
	}

	for _, w := range pkg.Warnings() {
		logger.Warn("package warning", "warning", w)
	}
	return nil
}

// VersionCmd prints the tool version.
type VersionCmd struct{}

func (c *VersionCmd) Run(*slog.Logger) error {
	fmt.Printf("bionic-convert %s\n", version)
	return nil
}

// buildOptions merges defaults, the optional config file, and command
// line flags, in that order of precedence. OnError and WordBoundary carry
// no kong default; an unset flag stays empty and leaves the config file's
// value in place.
func buildOptions(logger *slog.Logger, c *ConvertCmd) (*bionic.Options, error) {
	opts := bionic.DefaultOptions()
	opts.Logger = logger

	if CLI.Config != "" {
		f, err := config.Load(CLI.Config)
		if err != nil {
			return nil, err
		}
		f.Apply(opts)
	}

	if c.BoldFraction > 0 {
		opts.MinBoldFraction = c.BoldFraction
	}
	if len(c.Exclude) > 0 {
		opts.ExcludedTags = c.Exclude
	}
	if c.WordBoundary != "" {
		policy, err := bionic.ParseBoundaryPolicy(c.WordBoundary)
		if err != nil {
			return nil, err
		}
		opts.WordBoundary = policy
	}
	if c.Workers > 1 {
		opts.Workers = c.Workers
	}
	if c.OnError != "" {
		policy, err := bionic.ParseFailurePolicy(c.OnError)
		if err != nil {
			return nil, err
		}
		opts.OnError = policy
	}
	return opts, nil
}

// defaultOutputPath derives "<stem>_bionic<ext>" next to the input file.
func defaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_bionic" + ext
}

// truncate shortens long entry names for one-line progress output.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-(max-3):]
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("bionic-convert"),
		kong.Description("Convert ePub books to Bionic Reading format."),
		kong.UsageOnError(),
	)
	logger := newLogger(CLI.LogLevel)
	ctx.FatalIfErrorf(ctx.Run(logger))
}
