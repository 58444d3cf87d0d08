package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mhersch/flowlevel/pkg/legalize"
	"github.com/mhersch/flowlevel/pkg/pipeline"
	"github.com/mhersch/flowlevel/pkg/report"
)

// parseOpts holds the command-line flags for the parse command.
type parseOpts struct {
	output string // output file path (stdout if empty)
}

// newParseCmd creates the parse command. It builds the program from a TOML
// manifest and dumps it as JSON without assigning levels, which is useful
// for inspecting what the legalizer will see.
func newParseCmd() *cobra.Command {
	var opts parseOpts

	cmd := &cobra.Command{
		Use:   "parse <manifest.toml>",
		Short: "Parse a dataflow manifest into a program dump",
		Long: `Parse a TOML dataflow manifest and dump the program as JSON.

The dump lists every region with its nodes, buffer accesses, and value uses,
but no pipeline levels. Run "flowlevel legalize" to assign levels.

Examples:
  flowlevel parse design.toml
  flowlevel parse design.toml -o program.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")

	return cmd
}

// runParse parses the manifest at path and writes the program dump.
func runParse(ctx context.Context, path string, opts *parseOpts) error {
	logger := loggerFromContext(ctx)
	logger.Infof("Parsing %s", path)

	runner, err := newRunner(ctx, true)
	if err != nil {
		return err
	}
	defer runner.Close()

	prg := newProgress(logger)
	p, _, err := runner.Parse(ctx, pipeline.Options{ManifestPath: path})
	if err != nil {
		return err
	}

	nodes := 0
	for _, region := range p.Regions {
		nodes += region.NodeCount()
	}
	prg.done(fmt.Sprintf("Parsed %d regions with %d nodes", len(p.Regions), nodes))

	rep := report.FromProgram(p, legalize.Options{InsertCopy: true, MinGran: pipeline.DefaultMinGran})

	out, err := openOutput(opts.output)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := report.WriteJSON(rep, out); err != nil {
		return err
	}
	if opts.output != "" {
		logger.Infof("Wrote program to %s", opts.output)
	}
	return nil
}
