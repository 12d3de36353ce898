package cli

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/yzhliu/nnvm/internal/graphio"
	"github.com/yzhliu/nnvm/internal/pipeline"
	"github.com/yzhliu/nnvm/op/nn"
)

// runCommand builds the "run" subcommand: load a graph, execute a
// pipeline config over it, and write the result back out.
func (c *CLI) runCommand() *cobra.Command {
	var configPath, outputPath string

	cmd := &cobra.Command{
		Use:   "run <graph.json>",
		Short: "Run a configured pipeline of passes over a graph description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPipeline(cmd.Context(), args[0], configPath, outputPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a pipeline TOML config (required)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output graph JSON path (default: stdout)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func (c *CLI) runPipeline(ctx context.Context, inputPath, configPath, outputPath string) error {
	src, attrs, err := graphio.ReadGraphFile(inputPath)
	if err != nil {
		return errors.Wrapf(err, "load graph %s", inputPath)
	}

	cfg, err := pipeline.LoadConfigFile(configPath)
	if err != nil {
		return err
	}

	registry, err := nn.NewRegistry()
	if err != nil {
		return errors.Wrap(err, "build operator registry")
	}

	runner := pipeline.NewRunner(registry, c.Logger)
	result, err := runner.Execute(ctx, src, attrs, cfg)
	if err != nil {
		return errors.Wrap(err, "run pipeline")
	}

	c.Logger.Info("pipeline complete", "stages", len(cfg.Stages), "nodes", len(result.Graph.Nodes))

	if outputPath == "" {
		return graphio.WriteGraph(result.Graph, result.Attrs, os.Stdout)
	}
	return graphio.WriteGraphFile(result.Graph, result.Attrs, outputPath)
}
