package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mhersch/flowlevel/pkg/pipeline"
	"github.com/mhersch/flowlevel/pkg/report"
	"github.com/mhersch/flowlevel/pkg/store"
)

// legalizeOpts holds the command-line flags for the legalize command.
type legalizeOpts struct {
	insertCopy bool   // resolve bypasses by inserting copy nodes
	minGran    int    // minimum merge granularity
	workers    int    // concurrent region legalization
	output     string // output file path (stdout if empty)
	noCache    bool   // disable the report cache
	refresh    bool   // recompute even on a cache hit
	storeURI   string // archive the report to this MongoDB URI
}

// newLegalizeCmd creates the legalize command. It runs the full legalization
// pass over a manifest and emits the level assignment as a JSON report.
func newLegalizeCmd() *cobra.Command {
	opts := legalizeOpts{insertCopy: true, minGran: pipeline.DefaultMinGran}

	cmd := &cobra.Command{
		Use:   "legalize <manifest.toml>",
		Short: "Assign pipeline levels to a dataflow program",
		Long: `Legalize a dataflow program: assign every node to a pipeline level so
data only flows between adjacent levels.

Bypass paths (data skipping levels) are resolved either by inserting copy
buffers on the intermediate levels (default) or by merging levels together
(--insert-copy=false, tune with --min-gran).

Examples:
  flowlevel legalize design.toml
  flowlevel legalize design.toml -o report.json
  flowlevel legalize design.toml --insert-copy=false --min-gran 2
  flowlevel legalize design.toml --store-uri mongodb://localhost:27017`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyLegalizeConfig(cmd, &opts)
			return runLegalize(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().BoolVar(&opts.insertCopy, "insert-copy", opts.insertCopy, "insert copy buffers instead of merging levels")
	cmd.Flags().IntVar(&opts.minGran, "min-gran", opts.minGran, "minimum merge granularity (with --insert-copy=false)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "concurrent region workers (0 = number of CPUs)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the report cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "recompute even if a cached report exists")
	cmd.Flags().StringVar(&opts.storeURI, "store-uri", "", "archive the report to this MongoDB URI")

	return cmd
}

// applyLegalizeConfig fills unset flags from the config file. Flags that the
// user set explicitly always win.
func applyLegalizeConfig(cmd *cobra.Command, opts *legalizeOpts) {
	cfg := configFromContext(cmd.Context())
	if !cmd.Flags().Changed("insert-copy") {
		opts.insertCopy = cfg.insertCopy()
	}
	if !cmd.Flags().Changed("min-gran") && cfg.Legalize.MinGran > 0 {
		opts.minGran = cfg.Legalize.MinGran
	}
	if !cmd.Flags().Changed("store-uri") {
		opts.storeURI = cfg.Store.MongoURI
	}
}

// pipelineOptions converts the flags into pipeline options for a JSON run.
func (o *legalizeOpts) pipelineOptions(path string) pipeline.Options {
	return pipeline.Options{
		ManifestPath: path,
		Merge:        !o.insertCopy,
		MinGran:      o.minGran,
		Workers:      o.workers,
		Refresh:      o.refresh,
		Formats:      []string{pipeline.FormatJSON},
	}
}

// runLegalize executes the pipeline and writes the report JSON.
func runLegalize(ctx context.Context, path string, opts *legalizeOpts) error {
	logger := loggerFromContext(ctx)
	logger.Infof("Legalizing %s", path)

	runner, err := newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	prg := newProgress(logger)
	result, err := runner.Execute(ctx, opts.pipelineOptions(path))
	if err != nil {
		return err
	}
	prg.done(fmt.Sprintf("Legalized %d regions with %d nodes", result.Stats.Regions, result.Stats.Nodes))

	out, err := openOutput(opts.output)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := out.Write(result.Artifacts[pipeline.FormatJSON]); err != nil {
		return err
	}

	if opts.output != "" {
		printSuccess("Wrote report to %s", opts.output)
		printStats(result.Stats.Nodes, maxLevels(result.Report), result.CacheInfo.LegalizeHit)
	}

	if opts.storeURI != "" {
		if err := archiveReport(ctx, opts.storeURI, result.Report); err != nil {
			return fmt.Errorf("archive report: %w", err)
		}
		printSuccess("Archived report %s", result.Report.ID)
	}
	return nil
}

// archiveReport writes the report to the MongoDB archive.
func archiveReport(ctx context.Context, uri string, rep *report.Report) error {
	s, err := store.NewMongoStore(ctx, uri)
	if err != nil {
		return err
	}
	defer s.Close(ctx)
	return s.Put(ctx, rep)
}

// maxLevels returns the deepest level count across the report's regions.
func maxLevels(rep *report.Report) int {
	levels := int64(0)
	for _, region := range rep.Regions {
		if region.Stats.Levels > levels {
			levels = region.Stats.Levels
		}
	}
	return int(levels)
}
