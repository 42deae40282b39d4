// Package pipeline solves documents and renders the result.
//
// This package implements the solve → render pipeline shared by the CLI
// (anchorstack solve) and the HTTP API, so both produce identical layouts
// for the same document and options.
//
// # Architecture
//
// The pipeline consists of two stages:
//
//  1. Solve: run the document through a scheduler on an in-memory host and
//     collect the published positions as a [sink.Layout]
//  2. Render: turn the layout into artifacts (JSON, SVG, PNG, PDF)
//
// Solved layouts are cached by document content hash and the options that
// change the result. Artifacts are not cached.
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	result, err := runner.Execute(ctx, doc, pipeline.Options{
//	    Formats: []string{pipeline.FormatSVG},
//	})
//	if err != nil {
//	    return err
//	}
//	svg := result.Artifacts[pipeline.FormatSVG]
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/anchorstack/pkg/anchor"
	"github.com/matzehuels/anchorstack/pkg/cache"
	"github.com/matzehuels/anchorstack/pkg/document"
	errs "github.com/matzehuels/anchorstack/pkg/errors"
	"github.com/matzehuels/anchorstack/pkg/render/sink"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultWidth is the default SVG width in pixels.
	DefaultWidth = 640.0

	// DefaultScale is the default PNG scale factor.
	DefaultScale = 2.0
)

// Format constants for output formats.
const (
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatPDF  = "pdf"
	FormatJSON = "json"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatSVG:  true,
	FormatPNG:  true,
	FormatPDF:  true,
	FormatJSON: true,
}

// =============================================================================
// Options
// =============================================================================

// Options contains all configuration for a pipeline run.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Solve options. Nil fields fall back to the document.
	Gap      *float64 `json:"gap,omitempty"`
	Selected *string  `json:"selected,omitempty"`
	Refresh  bool     `json:"refresh,omitempty"`

	// Render options
	Formats []string `json:"formats,omitempty"`
	Width   float64  `json:"width,omitempty"`
	Scale   float64  `json:"scale,omitempty"`
	Labels  *bool    `json:"labels,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Layout is the solved document.
	Layout sink.Layout

	// DocHash is the content hash of the canonical document.
	DocHash string

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	CardCount    int
	StackedCount int
	SolveTime    time.Duration
	RenderTime   time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	SolveHit bool // Whether the layout came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errs.New(errs.ErrCodeInvalidFormat, "invalid format: %q (must be one of: svg, png, pdf, json)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// Validate checks the options and applies render defaults.
func (o *Options) Validate() error {
	if o.Gap != nil {
		if err := errs.ValidateGap(*o.Gap); err != nil {
			return err
		}
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if o.Width < 0 {
		return errs.New(errs.ErrCodeInvalidInput, "width must be >= 0, got %g", o.Width)
	}
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Scale == 0 {
		o.Scale = DefaultScale
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// GapFor returns the gap to solve doc with.
func (o *Options) GapFor(doc *document.Document) float64 {
	if o.Gap != nil {
		return *o.Gap
	}
	return doc.GapOr(anchor.DefaultGap)
}

// SelectedFor returns the selection to solve doc with.
func (o *Options) SelectedFor(doc *document.Document) string {
	if o.Selected != nil {
		return *o.Selected
	}
	return doc.Selected
}

// SolveKeyOpts returns cache key options for solving doc.
func (o *Options) SolveKeyOpts(doc *document.Document) cache.SolveKeyOpts {
	return cache.SolveKeyOpts{
		Gap:      o.GapFor(doc),
		Selected: o.SelectedFor(doc),
	}
}

// SVGOptions returns the sink options for SVG based formats.
func (o *Options) SVGOptions() []sink.SVGOption {
	opts := []sink.SVGOption{sink.WithWidth(o.Width)}
	if o.Labels != nil && !*o.Labels {
		opts = append(opts, sink.WithoutLabels())
	}
	return opts
}
