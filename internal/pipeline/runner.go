// Package pipeline sequences passes.SimplifyInference, passes.PrePack and
// passes.LayoutTransform according to a Config, the way internal/cli's
// run command executes a pipeline TOML file against a loaded graph.
//
// PrePack's output layout vector feeds directly into a following
// layout_transform stage's attrs.Layout hints, since LayoutTransform needs
// no Shape or DType. simplify_inference is not similarly composable with a
// following pre_pack: passes.SimplifyInference mints a fresh NodeID for
// every node it touches (transform.Transform's mirroring model), so the old
// Shape/DType vectors no longer index the rewritten graph's edges. The
// Runner drops Shape and DType after a simplify_inference stage rather
// than carry stale, silently-misaligned attributes forward; a following
// pre_pack stage fails loudly with a MissingAttributeError as soon as it
// reaches a node whose operator has a weight-prepack rule (e.g. conv2d),
// instead of corrupting data.
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/yzhliu/nnvm/graph"
	"github.com/yzhliu/nnvm/layout"
	"github.com/yzhliu/nnvm/op"
	"github.com/yzhliu/nnvm/passes"
)

// Runner executes a Config's stages over a graph, logging each stage's
// timing and resulting node/edge counts.
type Runner struct {
	Registry *op.Registry
	Logger   *log.Logger
}

// NewRunner constructs a Runner. A nil logger defaults to one that
// discards output.
func NewRunner(registry *op.Registry, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Runner{Registry: registry, Logger: logger}
}

// Result is the outcome of running a Config's stages over a graph.
type Result struct {
	Graph   *graph.Graph
	Attrs   *graph.Attributes
	Layouts []layout.Layout
}

// Execute runs cfg.Stages in order over src/attrs, threading each stage's
// rewritten graph and attributes into the next.
func (r *Runner) Execute(ctx context.Context, src *graph.Graph, attrs *graph.Attributes, cfg Config) (*Result, error) {
	if attrs == nil {
		attrs = &graph.Attributes{}
	}
	result := &Result{Graph: src, Attrs: attrs}

	for _, stage := range cfg.Stages {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "pipeline")
		}

		start := time.Now()
		nodesIn := len(result.Graph.Nodes)
		if err := r.runStage(stage, result); err != nil {
			return nil, errors.Wrapf(err, "pipeline: stage %q", stage.Name)
		}

		edgeCount := 0
		if ig, err := graph.Index(result.Graph); err == nil {
			edgeCount = ig.NumEdges()
		}
		r.Logger.Info("ran pipeline stage",
			"stage", stage.Name,
			"nodes", len(result.Graph.Nodes),
			"edges", edgeCount,
			"duration", time.Since(start))
		r.Logger.Debug("pass detail",
			"stage", stage.Name,
			"nodes_in", nodesIn,
			"nodes_out", len(result.Graph.Nodes),
			"transform_nodes_inserted", countLayoutTransformNodes(result.Graph))
	}

	return result, nil
}

func (r *Runner) runStage(stage StageConfig, result *Result) error {
	switch stage.Name {
	case StageSimplifyInference:
		g, err := passes.SimplifyInference(result.Graph, result.Attrs)
		if err != nil {
			return err
		}
		result.Graph = g
		result.Attrs = &graph.Attributes{LayoutInputs: result.Attrs.LayoutInputs}
		result.Layouts = nil
		return nil

	case StagePrePack:
		g, layouts, err := passes.PrePack(result.Graph, result.Attrs, r.Registry)
		if err != nil {
			return err
		}
		result.Graph, result.Layouts = g, layouts
		result.Attrs = &graph.Attributes{Layout: layouts, LayoutInputs: result.Attrs.LayoutInputs}
		return nil

	case StageLayoutTransform:
		layoutInputs, err := r.resolveLayoutInputs(stage, result.Attrs)
		if err != nil {
			return err
		}
		g, layouts, err := passes.LayoutTransform(result.Graph, result.Attrs, layoutInputs, r.Registry)
		if err != nil {
			return err
		}
		result.Graph, result.Layouts = g, layouts
		result.Attrs = &graph.Attributes{Layout: layouts, LayoutInputs: layoutInputs}
		return nil

	default:
		return errors.Errorf("unknown stage %q", stage.Name)
	}
}

func countLayoutTransformNodes(g *graph.Graph) int {
	count := 0
	for _, n := range g.Nodes {
		if n.Op == "__layout_transform__" {
			count++
		}
	}
	return count
}

func (r *Runner) resolveLayoutInputs(stage StageConfig, attrs *graph.Attributes) ([]layout.Layout, error) {
	if len(stage.LayoutInputs) > 0 {
		out := make([]layout.Layout, len(stage.LayoutInputs))
		for i, name := range stage.LayoutInputs {
			parsed, err := layout.Parse(name)
			if err != nil {
				return nil, errors.Wrap(err, "stage layout_inputs")
			}
			out[i] = parsed
		}
		return out, nil
	}
	if attrs != nil && attrs.LayoutInputs != nil {
		return attrs.LayoutInputs, nil
	}
	return nil, errors.New("layout_transform stage requires layout_inputs, from the stage config or attrs.LayoutInputs")
}
