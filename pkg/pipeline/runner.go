package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mhersch/flowlevel/pkg/cache"
	"github.com/mhersch/flowlevel/pkg/errors"
	"github.com/mhersch/flowlevel/pkg/legalize"
	"github.com/mhersch/flowlevel/pkg/observability"
	"github.com/mhersch/flowlevel/pkg/prog"
	"github.com/mhersch/flowlevel/pkg/render"
	"github.com/mhersch/flowlevel/pkg/report"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete parse → legalize → render pipeline with caching.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	result := &Result{
		Artifacts: make(map[string][]byte),
	}

	// Stage 1: Parse
	parseStart := time.Now()
	observability.Pipeline().OnParseStart(ctx, opts.ManifestPath)
	p, manifestHash, err := r.Parse(ctx, opts)
	if err != nil {
		observability.Pipeline().OnParseComplete(ctx, opts.ManifestPath, 0, time.Since(parseStart), err)
		return nil, fmt.Errorf("parse: %w", err)
	}
	result.Program = p
	result.Stats.ParseTime = time.Since(parseStart)
	result.Stats.Regions = len(p.Regions)
	for _, region := range p.Regions {
		result.Stats.Nodes += region.NodeCount()
	}
	observability.Pipeline().OnParseComplete(ctx, p.Name, result.Stats.Nodes, result.Stats.ParseTime, nil)

	r.Logger.Info("parsed manifest",
		"program", p.Name,
		"regions", result.Stats.Regions,
		"nodes", result.Stats.Nodes,
		"duration", result.Stats.ParseTime)

	// Stage 2: Legalize
	legalizeStart := time.Now()
	observability.Pipeline().OnLegalizeStart(ctx, p.Name, len(p.Regions))
	rep, legalizeHit, err := r.LegalizeWithCacheInfo(ctx, p, manifestHash, opts)
	observability.Pipeline().OnLegalizeComplete(ctx, p.Name, time.Since(legalizeStart), err)
	if err != nil {
		return nil, fmt.Errorf("legalize: %w", err)
	}
	result.Report = rep
	result.Stats.LegalizeTime = time.Since(legalizeStart)
	result.CacheInfo.LegalizeHit = legalizeHit

	// Compute report hash for cache keys and API responses
	var repBuf bytes.Buffer
	if err := report.WriteJSON(rep, &repBuf); err == nil {
		result.ReportHash = cache.Hash(repBuf.Bytes())
	}

	r.Logger.Info("legalized program",
		"regions", len(rep.Regions),
		"cached", legalizeHit,
		"duration", result.Stats.LegalizeTime)

	// Stage 3: Render
	renderStart := time.Now()
	observability.Pipeline().OnRenderStart(ctx, opts.Formats)
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, rep, result.ReportHash, p, opts)
	observability.Pipeline().OnRenderComplete(ctx, opts.Formats, time.Since(renderStart), err)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"cached", renderHit,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// Parse builds the program from the manifest given in opts and returns it
// together with the manifest content hash used for cache keys.
func (r *Runner) Parse(ctx context.Context, opts Options) (*prog.Program, string, error) {
	if err := opts.ValidateForParse(); err != nil {
		return nil, "", err
	}

	data := []byte(opts.Manifest)
	if opts.Manifest == "" {
		var err error
		data, err = os.ReadFile(opts.ManifestPath)
		if err != nil {
			return nil, "", err
		}
	}

	p, err := prog.ParseManifest(data)
	if err != nil {
		return nil, "", err
	}
	return p, cache.Hash(data), nil
}

// LegalizeWithCacheInfo legalizes every region of p and returns the report
// plus cache hit info. On a cache hit the report is served from cache and
// the program itself is left unlegalized. Independent regions are processed
// concurrently, up to opts.Workers at a time.
func (r *Runner) LegalizeWithCacheInfo(ctx context.Context, p *prog.Program, manifestHash string, opts Options) (*report.Report, bool, error) {
	opts.SetLegalizeDefaults()
	r.applyLogger(&opts)

	programKey := r.Keyer.ProgramKey(manifestHash)
	cacheKey := r.Keyer.ReportKey(programKey, opts.ReportKeyOpts())

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			rep, err := report.ReadJSON(bytes.NewReader(data))
			if err == nil {
				observability.Cache().OnCacheHit(ctx, "report")
				return rep, true, nil // Cache hit
			}
		}
		observability.Cache().OnCacheMiss(ctx, "report")
	}

	if err := r.legalizeRegions(ctx, p, opts); err != nil {
		return nil, false, err
	}
	rep := report.FromProgram(p, opts.LegalizeOptions())

	// Cache the result
	var buf bytes.Buffer
	if err := report.WriteJSON(rep, &buf); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, buf.Bytes(), cache.TTLReport)
		observability.Cache().OnCacheSet(ctx, "report", buf.Len())
	}

	return rep, false, nil // Cache miss
}

// Legalize is a convenience wrapper that calls LegalizeWithCacheInfo and
// discards the cache hit info.
func (r *Runner) Legalize(ctx context.Context, p *prog.Program, manifestHash string, opts Options) (*report.Report, error) {
	rep, _, err := r.LegalizeWithCacheInfo(ctx, p, manifestHash, opts)
	return rep, err
}

// legalizeRegions runs legalization over all regions with a bounded worker
// pool. The first error wins; remaining regions still complete.
func (r *Runner) legalizeRegions(ctx context.Context, p *prog.Program, opts Options) error {
	lopts := opts.LegalizeOptions()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, opts.Workers)
	for _, region := range p.Regions {
		wg.Add(1)
		sem <- struct{}{}
		go func(region *prog.Region) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := legalize.Run(region, lopts); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("region %q: %w", region.Name(), err)
				}
				mu.Unlock()
			}
		}(region)
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// RenderWithCacheInfo generates artifacts with caching and returns cache
// hit info. If the report came from cache and the program carries no level
// annotations, graph formats trigger a local re-legalization.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, rep *report.Report, reportHash string, p *prog.Program, opts Options) (map[string][]byte, bool, error) {
	opts.SetRenderDefaults()
	if err := ValidateFormats(opts.Formats); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	// Try to get all formats from cache
	allCached := true
	artifacts := make(map[string][]byte)

	for _, format := range opts.Formats {
		cacheKey := r.Keyer.ArtifactKey(reportHash, opts.ArtifactKeyOpts(format))
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			artifacts[format] = data
		} else {
			allCached = false
			break
		}
	}

	if allCached && len(artifacts) == len(opts.Formats) {
		observability.Cache().OnCacheHit(ctx, "artifact")
		return artifacts, true, nil // All artifacts from cache
	}
	observability.Cache().OnCacheMiss(ctx, "artifact")

	rendered, err := r.renderFormats(ctx, rep, p, opts)
	if err != nil {
		return nil, false, err
	}

	// Cache each format
	for format, data := range rendered {
		cacheKey := r.Keyer.ArtifactKey(reportHash, opts.ArtifactKeyOpts(format))
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLArtifact)
		observability.Cache().OnCacheSet(ctx, "artifact", len(data))
	}

	return rendered, false, nil // Cache miss
}

func (r *Runner) renderFormats(ctx context.Context, rep *report.Report, p *prog.Program, opts Options) (map[string][]byte, error) {
	artifacts := make(map[string][]byte, len(opts.Formats))

	var region *prog.Region
	needsRegion := false
	for _, format := range opts.Formats {
		if format != FormatJSON {
			needsRegion = true
		}
	}
	if needsRegion {
		var err error
		region, err = r.renderRegion(p, opts)
		if err != nil {
			return nil, err
		}
	}

	for _, format := range opts.Formats {
		switch format {
		case FormatJSON:
			var buf bytes.Buffer
			if err := report.WriteJSON(rep, &buf); err != nil {
				return nil, err
			}
			artifacts[format] = buf.Bytes()
		case FormatDOT:
			dot := render.ToDOT(region, render.Options{Detailed: opts.Detailed})
			artifacts[format] = []byte(dot)
		case FormatSVG:
			dot := render.ToDOT(region, render.Options{Detailed: opts.Detailed})
			svg, err := render.RenderSVG(ctx, dot)
			if err != nil {
				return nil, err
			}
			artifacts[format] = svg
		case FormatPNG:
			dot := render.ToDOT(region, render.Options{Detailed: opts.Detailed})
			png, err := render.RenderPNG(ctx, dot)
			if err != nil {
				return nil, err
			}
			artifacts[format] = png
		}
	}
	return artifacts, nil
}

// renderRegion selects the region to draw and makes sure it carries level
// annotations.
func (r *Runner) renderRegion(p *prog.Program, opts Options) (*prog.Region, error) {
	if len(p.Regions) == 0 {
		return nil, fmt.Errorf("program has no regions")
	}
	region := p.Regions[0]
	if opts.Region != "" {
		region = nil
		for _, cand := range p.Regions {
			if cand.Name() == opts.Region {
				region = cand
				break
			}
		}
		if region == nil {
			return nil, errors.New(errors.ErrCodeInvalidRegion, "unknown region %q", opts.Region)
		}
	}
	if !region.Flag(legalize.FlagLegalized) {
		opts.SetLegalizeDefaults()
		if err := legalize.Run(region, opts.LegalizeOptions()); err != nil {
			return nil, err
		}
	}
	return region, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
