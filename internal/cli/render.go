package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mhersch/flowlevel/pkg/pipeline"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output     string   // output file path or base path for multiple formats
	formats    []string // output formats: "dot", "svg", "png", "json"
	region     string   // region to render (first region if empty)
	detailed   bool     // include level and buffer details in node labels
	insertCopy bool     // resolve bypasses by inserting copy nodes
	minGran    int      // minimum merge granularity
	noCache    bool     // disable caches
	refresh    bool     // recompute even on cache hits
}

// newRenderCmd creates the render command for generating level diagrams.
// It legalizes the manifest and emits the scheduled region in one or more
// formats. Graphviz formats (svg, png) show pipeline levels as ranks.
func newRenderCmd() *cobra.Command {
	var formatsStr string
	opts := renderOpts{insertCopy: true, minGran: pipeline.DefaultMinGran}

	cmd := &cobra.Command{
		Use:   "render <manifest.toml>",
		Short: "Render a legalized program as a level diagram",
		Long: `Legalize a dataflow manifest and render the result.

Formats:
  dot   Graphviz source with one rank per pipeline level
  svg   rendered diagram (requires no external graphviz binary)
  png   rasterized diagram
  json  the legalization report

Examples:
  flowlevel render design.toml
  flowlevel render design.toml -f dot,svg -o out/design
  flowlevel render design.toml --region main --detailed`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			if err := pipeline.ValidateFormats(opts.formats); err != nil {
				return err
			}
			applyRenderConfig(cmd, &opts)
			return runRender(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), dot, png, json (comma-separated)")
	cmd.Flags().StringVar(&opts.region, "region", "", "region to render (default: first region)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show levels and buffer accesses in node labels")
	cmd.Flags().BoolVar(&opts.insertCopy, "insert-copy", opts.insertCopy, "insert copy buffers instead of merging levels")
	cmd.Flags().IntVar(&opts.minGran, "min-gran", opts.minGran, "minimum merge granularity (with --insert-copy=false)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caches")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "recompute even if cached artifacts exist")

	return cmd
}

// applyRenderConfig fills unset flags from the config file.
func applyRenderConfig(cmd *cobra.Command, opts *renderOpts) {
	cfg := configFromContext(cmd.Context())
	if !cmd.Flags().Changed("insert-copy") {
		opts.insertCopy = cfg.insertCopy()
	}
	if !cmd.Flags().Changed("min-gran") && cfg.Legalize.MinGran > 0 {
		opts.minGran = cfg.Legalize.MinGran
	}
}

// runRender executes the pipeline with the requested formats and writes every
// artifact to disk. A spinner covers the graphviz rendering, which can take a
// moment on large programs.
func runRender(ctx context.Context, input string, opts *renderOpts) error {
	logger := loggerFromContext(ctx)
	logger.Infof("Rendering %s", input)

	runner, err := newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	pipeOpts := pipeline.Options{
		ManifestPath: input,
		Merge:        !opts.insertCopy,
		MinGran:      opts.minGran,
		Refresh:      opts.refresh,
		Formats:      opts.formats,
		Region:       opts.region,
		Detailed:     opts.detailed,
	}

	spinner := newSpinnerWithContext(ctx, "Legalizing and rendering...")
	spinner.Start()
	result, err := runner.Execute(ctx, pipeOpts)
	if err != nil {
		spinner.StopWithError("Rendering failed")
		return err
	}
	spinner.Stop()

	if err := writeArtifacts(result, input, opts); err != nil {
		return err
	}
	printStats(result.Stats.Nodes, maxLevels(result.Report), result.CacheInfo.RenderHit)
	return nil
}

// writeArtifacts writes each rendered format to its own file. With a single
// format the explicit --output path is used verbatim; with several, file
// names derive from the base path plus the format extension.
func writeArtifacts(result *pipeline.Result, input string, opts *renderOpts) error {
	if len(opts.formats) == 1 && opts.output != "" {
		return writeArtifact(result.Artifacts[opts.formats[0]], opts.output)
	}

	base := basePath(opts.output, input)
	for _, format := range opts.formats {
		path := fmt.Sprintf("%s.%s", base, format)
		if err := writeArtifact(result.Artifacts[format], path); err != nil {
			return fmt.Errorf("%s: %w", format, err)
		}
	}
	return nil
}

// writeArtifact writes one artifact to path and prints the output line.
func writeArtifact(data []byte, path string) error {
	out, err := openOutput(path)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := out.Write(data); err != nil {
		return err
	}
	printFile(path)
	return nil
}
