// Package pipeline provides the core legalization pipeline.
//
// This package implements the complete parse → legalize → render pipeline
// that can be used by CLI and API components. By centralizing this logic,
// we ensure consistent behavior across all entry points and avoid code
// duplication.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Parse: Build the program representation from a TOML manifest
//  2. Legalize: Assign pipeline levels and resolve bypass paths
//  3. Render: Generate output in various formats (DOT, SVG, PNG, JSON)
//
// Each stage can be run independently or as part of the complete pipeline.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    ManifestPath: "model.toml",
//	    Formats:      []string{"svg"},
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
package pipeline

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mhersch/flowlevel/pkg/cache"
	"github.com/mhersch/flowlevel/pkg/errors"
	"github.com/mhersch/flowlevel/pkg/legalize"
	"github.com/mhersch/flowlevel/pkg/prog"
	"github.com/mhersch/flowlevel/pkg/report"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultMinGran is the default merge granularity: every level becomes
	// its own pipeline stage.
	DefaultMinGran = 1
)

// Format constants for output formats.
const (
	FormatDOT  = "dot"
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatJSON = "json"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatDOT:  true,
	FormatSVG:  true,
	FormatPNG:  true,
	FormatJSON: true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the legalization pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Parse options
	ManifestPath string `json:"manifest_path,omitempty"` // Manifest file on disk
	Manifest     string `json:"manifest,omitempty"`      // Inline manifest content
	Refresh      bool   `json:"refresh,omitempty"`

	// Legalize options
	Merge   bool `json:"merge,omitempty"` // Merge levels instead of inserting copies
	MinGran int  `json:"min_gran,omitempty"`
	Workers int  `json:"workers,omitempty"` // Concurrent region legalization

	// Render options
	Formats  []string `json:"formats,omitempty"`
	Region   string   `json:"region,omitempty"` // Region to render (default: first)
	Detailed bool     `json:"detailed,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Program is the parsed (and, on a legalize cache miss, legalized)
	// program.
	Program *prog.Program

	// Report is the legalization result.
	Report *report.Report

	// ReportHash is the content hash of the serialized report.
	ReportHash string

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Regions      int
	Nodes        int
	ParseTime    time.Duration
	LegalizeTime time.Duration
	RenderTime   time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	LegalizeHit bool // Whether the report came from cache
	RenderHit   bool // Whether all artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: dot, svg, png, json)", format)
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

// ValidateAndSetDefaults checks required fields and applies defaults for the
// full pipeline. This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForParse(); err != nil {
		return err
	}
	o.SetLegalizeDefaults()
	o.SetRenderDefaults()
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidateForParse checks required fields for parsing.
func (o *Options) ValidateForParse() error {
	if o.Manifest == "" && o.ManifestPath == "" {
		return fmt.Errorf("manifest or manifest_path is required")
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// SetLegalizeDefaults sets default values for legalization.
func (o *Options) SetLegalizeDefaults() {
	if o.MinGran < 1 {
		o.MinGran = DefaultMinGran
	}
	if o.Workers < 1 {
		o.Workers = runtime.NumCPU()
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// SetRenderDefaults sets default values for rendering.
func (o *Options) SetRenderDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatJSON}
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// LegalizeOptions returns the per-region legalization options.
func (o *Options) LegalizeOptions() legalize.Options {
	return legalize.Options{
		InsertCopy: !o.Merge,
		MinGran:    o.MinGran,
	}
}

// ReportKeyOpts returns cache key options for the legalize stage.
func (o *Options) ReportKeyOpts() cache.ReportKeyOpts {
	return cache.ReportKeyOpts{
		InsertCopy: !o.Merge,
		MinGran:    o.MinGran,
	}
}

// ArtifactKeyOpts returns cache key options for artifact rendering.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		Format:   format,
		Region:   o.Region,
		Detailed: o.Detailed,
	}
}
