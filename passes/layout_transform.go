package passes

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/yzhliu/nnvm/graph"
	"github.com/yzhliu/nnvm/internal/utils"
	"github.com/yzhliu/nnvm/layout"
	"github.com/yzhliu/nnvm/op"
	"github.com/yzhliu/nnvm/op/nn"
)

// LayoutTransform propagates layout descriptors through src and inserts
// __layout_transform__ nodes wherever a producer's layout does not match
// what its consumer requires (spec.md §4.6). Unlike SimplifyInference and
// PrePack, it is not expressed atop package transform: its per-node rule
// depends on the layouts *arriving* at each input before any rewrite, and
// on a running produced_layout table keyed by node identity, neither of
// which transform.Transform's mirror-of-outputs model exposes directly.
//
// layoutInputs gives the requested layout of each of src.Inputs, in order.
// attrs.Layout, if non-nil, supplies hints from a previous LayoutTransform
// run: prevInHint for each input, and a starting point for produceOut.
//
// Returns the rewritten graph together with a fresh per-edge layout
// vector (indexed by the returned graph's edge IDs) recording every
// node's produced output layouts.
func LayoutTransform(src *graph.Graph, attrs *graph.Attributes, layoutInputs []layout.Layout, registry *op.Registry) (*graph.Graph, []layout.Layout, error) {
	ig, err := graph.Index(src)
	if err != nil {
		return nil, nil, errors.Wrap(err, "layout_transform")
	}

	inputIndex := make(map[graph.NodeID]int, len(src.Inputs))
	for i, v := range src.Inputs {
		inputIndex[v] = i
	}

	mirror := make([]graph.NodeID, ig.NumNodes())
	newLayouts := make(map[graph.NodeID][]layout.Layout, ig.NumNodes())
	newNodes := make([]*graph.Node, 0, ig.NumNodes())
	transformNameCount := make(map[string]int)

	for i := 0; i < ig.NumNodes(); i++ {
		n := ig.NodeAt(i)

		if n.IsVariable() {
			clone := graph.CloneNode(n, nil)
			idx, ok := inputIndex[n.ID]
			if !ok {
				return nil, nil, errors.Errorf("layout_transform: variable %q is not a declared graph input", n.Name)
			}
			if idx >= len(layoutInputs) {
				return nil, nil, errors.Errorf("layout_transform: layout_inputs is missing an entry for input %q", n.Name)
			}
			newLayouts[clone.ID] = []layout.Layout{layoutInputs[idx]}
			mirror[i] = clone.ID
			newNodes = append(newNodes, clone)
			continue
		}

		inputEdges := ig.InputEdges(i)

		requestIn := make([]layout.Layout, len(n.Inputs))
		for j, in := range n.Inputs {
			srcIdx, ok := ig.IndexOf(in.Node)
			if !ok {
				return nil, nil, errors.Errorf("layout_transform: node %q references an unknown producer", n.Name)
			}
			requestIn[j] = newLayouts[mirror[srcIdx]][in.Output]
		}
		// producerLayouts records what actually arrives at each input,
		// before the operator rule is given a chance to request something
		// different.
		producerLayouts := make([]layout.Layout, len(requestIn))
		copy(producerLayouts, requestIn)

		prevInHint := make([]layout.Layout, len(n.Inputs))
		for j := range prevInHint {
			prevInHint[j] = layout.Undef
		}
		produceOut := make([]layout.Layout, n.NumOutputs)
		for j := range produceOut {
			produceOut[j] = layout.Undef
		}
		if attrs != nil && attrs.Layout != nil {
			for j, e := range inputEdges {
				prevInHint[j] = attrs.LayoutOf(e)
			}
			for o := range produceOut {
				if e, ok := ig.EdgeOf(n.ID, o); ok {
					produceOut[o] = attrs.LayoutOf(e)
				}
			}
		}

		rule, err := registry.Lookup(n.Op)
		if err != nil {
			return nil, nil, errors.Wrap(err, "layout_transform")
		}
		if rule.InferLayout == nil {
			return nil, nil, &graph.InferenceFailureError{Node: n.Name, Op: n.Op, Message: "operator has no InferLayout rule registered"}
		}
		ok, err := rule.InferLayout(n.Attrs, requestIn, prevInHint, produceOut)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "layout inference for node %q (op %q)", n.Name, n.Op)
		}
		if !ok {
			return nil, nil, &graph.InferenceFailureError{Node: n.Name, Op: n.Op, Message: "layout inference declined"}
		}
		for _, l := range requestIn {
			if l.IsDefined() && !l.IsComplete() {
				return nil, nil, &graph.InferenceFailureError{Node: n.Name, Op: n.Op, Message: "generated an incomplete input layout " + l.Name()}
			}
		}
		for _, l := range produceOut {
			if l.IsDefined() && !l.IsComplete() {
				return nil, nil, &graph.InferenceFailureError{Node: n.Name, Op: n.Op, Message: "generated an incomplete output layout " + l.Name()}
			}
		}

		newInputs := make([]graph.Input, len(n.Inputs))
		extra := make([]*graph.Node, 0)
		for j, in := range n.Inputs {
			srcIdx, _ := ig.IndexOf(in.Node)
			newIn := graph.Input{Node: mirror[srcIdx], Output: in.Output, Version: in.Version}

			produce := producerLayouts[j]
			request := requestIn[j]
			if produce.IsDefined() && !produce.Equal(request) {
				// Producer names may originate from an externally loaded
				// graph description (internal/graphio) and carry
				// characters that don't belong in a generated node name.
				producerName := utils.NormalizeIdentifier(ig.NodeAt(srcIdx).Name)
				base := fmt.Sprintf("%s_%s", producerName, request.Name())
				name := base
				if count, used := transformNameCount[base]; used {
					name = fmt.Sprintf("%s_%d", base, count)
				}
				transformNameCount[base]++

				tnode := nn.LayoutTransformNode(name, newIn, produce, request)
				newLayouts[tnode.ID] = []layout.Layout{request}
				extra = append(extra, tnode)
				newIn = graph.Input{Node: tnode.ID, Output: 0}
			}
			newInputs[j] = newIn
		}

		clone := graph.CloneNode(n, newInputs)
		newLayouts[clone.ID] = produceOut
		mirror[i] = clone.ID
		newNodes = append(newNodes, extra...)
		newNodes = append(newNodes, clone)
	}

	newInputsList := make([]graph.NodeID, len(src.Inputs))
	for i, v := range src.Inputs {
		idx, ok := ig.IndexOf(v)
		if !ok {
			return nil, nil, errors.Errorf("layout_transform: graph input %q not found", v)
		}
		newInputsList[i] = mirror[idx]
	}
	newOutputs := make([]graph.Input, len(src.Outputs))
	for i, o := range src.Outputs {
		idx, ok := ig.IndexOf(o.Node)
		if !ok {
			return nil, nil, errors.Errorf("layout_transform: graph output references an unknown node")
		}
		newOutputs[i] = graph.Input{Node: mirror[idx], Output: o.Output, Version: o.Version}
	}

	out := graph.NewGraph(newNodes, newInputsList, newOutputs)

	outIg, err := graph.Index(out)
	if err != nil {
		return nil, nil, errors.Wrap(err, "layout_transform")
	}
	layouts := make([]layout.Layout, outIg.NumEdges())
	for nodeID, outs := range newLayouts {
		for o, l := range outs {
			if e, ok := outIg.EdgeOf(nodeID, o); ok {
				layouts[e] = l
			}
		}
	}

	return out, layouts, nil
}
