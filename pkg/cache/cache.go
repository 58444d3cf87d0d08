package cache

import (
	"context"
	"time"
)

// Default TTLs per cached artifact class. Parsed programs change with their
// manifest, so they live longest; rendered artifacts are cheap to rebuild.
const (
	TTLProgram  = 7 * 24 * time.Hour
	TTLReport   = 24 * time.Hour
	TTLArtifact = 24 * time.Hour
)

// Cache is the storage interface shared by all backends. Implementations
// must be safe for concurrent use.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key
	// was present; an expired or corrupt entry reads as a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A ttl of zero means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer generates cache keys for the pipeline's stages. Keys embed every
// input that affects the stage's output, so a change in options never
// serves a stale result.
type Keyer interface {
	// ProgramKey identifies a parsed program by its manifest content hash.
	ProgramKey(manifestHash string) string

	// ReportKey identifies a legalization result for one program under
	// one set of options.
	ReportKey(programHash string, opts ReportKeyOpts) string

	// ArtifactKey identifies a rendered artifact for one report.
	ArtifactKey(reportHash string, opts ArtifactKeyOpts) string
}

// ReportKeyOpts are the legalization inputs that shape a report.
type ReportKeyOpts struct {
	InsertCopy bool
	MinGran    int
}

// ArtifactKeyOpts are the rendering inputs that shape an artifact.
type ArtifactKeyOpts struct {
	Format   string
	Region   string
	Detailed bool
}

// DefaultKeyer generates hash-based keys with stable prefixes.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// ProgramKey generates a key for parsed program caching.
func (k *DefaultKeyer) ProgramKey(manifestHash string) string {
	return stageKey("program", manifestHash)
}

// ReportKey generates a key for legalization result caching.
func (k *DefaultKeyer) ReportKey(programHash string, opts ReportKeyOpts) string {
	return stageKey("report", programHash, opts.InsertCopy, opts.MinGran)
}

// ArtifactKey generates a key for rendered artifact caching.
func (k *DefaultKeyer) ArtifactKey(reportHash string, opts ArtifactKeyOpts) string {
	return stageKey("artifact", reportHash, opts.Format, opts.Region, opts.Detailed)
}
