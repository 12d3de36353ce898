package passes

import (
	"github.com/pkg/errors"

	"github.com/yzhliu/nnvm/graph"
	"github.com/yzhliu/nnvm/layout"
	"github.com/yzhliu/nnvm/op"
	"github.com/yzhliu/nnvm/transform"
)

// PrePack invokes each operator's registered weight-prepack rewrite
// (spec.md §4.5), replacing nodes whose registry entry exposes one with
// the sub-DAG it returns. Nodes with no such capability, or whose
// WeightPrepack declines to rewrite (returns a nil Replacement), pass
// through unchanged.
//
// TensorInfo handed to WeightPrepack is read from attrs — the shape and
// dtype the *source* graph carried before rewriting, since weight-prepack
// decisions depend on the layout seen prior to any PrePack-introduced
// reshaping.
//
// PrePack returns, alongside the rewritten graph, a fresh per-edge layout
// vector that preserves attrs' layout for every edge whose producing node
// was not replaced; edges internal to an injected sub-DAG are left
// layout.Undef, to be resolved by a subsequent LayoutTransform run.
func PrePack(src *graph.Graph, attrs *graph.Attributes, registry *op.Registry) (*graph.Graph, []layout.Layout, error) {
	ig, err := graph.Index(src)
	if err != nil {
		return nil, nil, errors.Wrap(err, "pre_pack")
	}

	preserved := make(map[graph.NodeID][]layout.Layout, ig.NumNodes())

	recordOutputLayouts := func(id graph.NodeID, clone *graph.Node) {
		outs := make([]layout.Layout, clone.NumOutputs)
		for o := range outs {
			if e, ok := ig.EdgeOf(id, o); ok {
				outs[o] = attrs.LayoutOf(e)
			}
		}
		preserved[clone.ID] = outs
	}

	rewrite := func(id graph.NodeID, clone *graph.Node) (*transform.Replacement, error) {
		rule, lookupErr := registry.Lookup(clone.Op)
		if lookupErr != nil || rule.WeightPrepack == nil {
			recordOutputLayouts(id, clone)
			return nil, nil
		}

		idx, ok := ig.IndexOf(id)
		if !ok {
			return nil, errors.Errorf("pre_pack: node %q not found in indexed graph", clone.Name)
		}
		inputEdges := ig.InputEdges(idx)
		infos := make([]op.TensorInfo, len(inputEdges))
		for i, e := range inputEdges {
			shape, err := attrs.ShapeOf(e, "pre_pack")
			if err != nil {
				return nil, err
			}
			dtype, err := attrs.DTypeOf(e, "pre_pack")
			if err != nil {
				return nil, err
			}
			infos[i] = op.TensorInfo{Shape: shape, DType: dtype}
		}

		replacement, err := rule.WeightPrepack(clone.Attrs, clone.Inputs, infos)
		if err != nil {
			return nil, errors.Wrapf(err, "weight_prepack for node %q (op %q)", clone.Name, clone.Op)
		}
		if replacement == nil {
			recordOutputLayouts(id, clone)
			return nil, nil
		}
		return replacement, nil
	}

	out, err := transform.Transform(src, rewrite)
	if err != nil {
		return nil, nil, err
	}

	outIg, err := graph.Index(out)
	if err != nil {
		return nil, nil, errors.Wrap(err, "pre_pack")
	}

	layouts := make([]layout.Layout, outIg.NumEdges())
	for nodeID, outs := range preserved {
		for o, l := range outs {
			if e, ok := outIg.EdgeOf(nodeID, o); ok {
				layouts[e] = l
			}
		}
	}
	// Variable nodes never pass through rewrite (Transform clones them
	// directly), so their layouts are preserved positionally instead:
	// Transform keeps src.Inputs and out.Inputs in the same order.
	for i, srcVar := range src.Inputs {
		srcEdge, ok := ig.EdgeOf(srcVar, 0)
		if !ok {
			continue
		}
		dstEdge, ok := outIg.EdgeOf(out.Inputs[i], 0)
		if !ok {
			continue
		}
		layouts[dstEdge] = attrs.LayoutOf(srcEdge)
	}

	return out, layouts, nil
}
