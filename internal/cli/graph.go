package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/landmetrics/eftrich/pkg/pipeline"
)

// graphOpts holds the command-line flags for the graph command.
type graphOpts struct {
	radii     []float64
	force     bool
	workspace string
	output    string
}

// graphCommand creates the graph command, which previews the task
// dependency graph a run would execute without running it.
func (c *CLI) graphCommand() *cobra.Command {
	opts := graphOpts{workspace: pipeline.DefaultWorkspace, output: "graph.dot"}

	cmd := &cobra.Command{
		Use:   "graph <pattern>...",
		Short: "Export the run's task dependency graph",
		Long: `Build the full task graph for the given inputs and radii and write it
as Graphviz DOT, or as a rendered SVG when the output file ends in .svg.
Category discovery reads the inputs; no other work runs.

Examples:
  eftrich graph landcover.nc --radius 300
  eftrich graph 'rasters/*.nc' -r 300 -r 1000 -o plan.svg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.exportGraph(cmd, args, &opts)
		},
	}

	cmd.Flags().Float64SliceVarP(&opts.radii, "radius", "r", nil, "search radius in projected units (repeatable)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "bypass the radius/raster-extent sanity check")
	cmd.Flags().StringVarP(&opts.workspace, "workspace", "w", opts.workspace, "workspace the plan would write into")
	cmd.Flags().StringVarP(&opts.output, "output", "o", opts.output, "output file (.dot or .svg)")

	return cmd
}

func (c *CLI) exportGraph(cmd *cobra.Command, patterns []string, opts *graphOpts) error {
	ctx := withLogger(cmd.Context(), c.Logger)

	inputs, err := pipeline.ExpandPatterns(patterns)
	if err != nil {
		return err
	}

	runner := pipeline.NewRunner(nil, c.Logger)
	pr := newProgress(c.Logger)
	sp := newSpinnerWithContext(ctx, "Planning task graph...")
	sp.Start()
	dot, err := runner.Plan(ctx, pipeline.Options{
		Inputs:    inputs,
		Radii:     opts.radii,
		Force:     opts.force,
		Workspace: opts.workspace,
		Logger:    c.Logger,
	})
	sp.Stop()
	if err != nil {
		return err
	}
	pr.done("Planned task graph")

	data := []byte(dot)
	if filepath.Ext(opts.output) == ".svg" {
		data, err = pipeline.RenderSVG(ctx, dot)
		if err != nil {
			return err
		}
	}
	if err := os.WriteFile(opts.output, data, 0644); err != nil {
		return err
	}

	printSuccess("Exported task graph for %d raster(s)", len(inputs))
	printFile(opts.output)
	return nil
}
