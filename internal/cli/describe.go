package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/yzhliu/nnvm/internal/dot"
	"github.com/yzhliu/nnvm/internal/graphio"
)

// describeCommand builds the "describe" subcommand: print a graph's
// structure as DOT, optionally rendering it to an SVG file.
func (c *CLI) describeCommand() *cobra.Command {
	var (
		svgPath  string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "describe <graph.json>",
		Short: "Print a graph description as Graphviz DOT, or render it to SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.describeGraph(cmd.Context(), args[0], svgPath, detailed)
		},
	}

	cmd.Flags().StringVar(&svgPath, "svg", "", "render to this SVG path instead of printing DOT")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include node attributes in node labels")

	return cmd
}

func (c *CLI) describeGraph(ctx context.Context, inputPath, svgPath string, detailed bool) error {
	g, attrs, err := graphio.ReadGraphFile(inputPath)
	if err != nil {
		return errors.Wrapf(err, "load graph %s", inputPath)
	}

	opts := dot.Options{Detailed: detailed}
	if attrs != nil {
		opts.Layouts = attrs.Layout
	}
	dotText, err := dot.ToDOT(g, opts)
	if err != nil {
		return errors.Wrap(err, "render DOT")
	}

	if svgPath == "" {
		fmt.Fprint(os.Stdout, dotText)
		return nil
	}

	svg, err := dot.RenderSVG(ctx, dotText)
	if err != nil {
		return errors.Wrap(err, "render SVG")
	}
	c.Logger.Info("rendered graph", "nodes", len(g.Nodes), "output", svgPath)
	return os.WriteFile(svgPath, svg, 0o644)
}
