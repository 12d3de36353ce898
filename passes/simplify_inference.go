// Package passes implements the three concrete rewriting passes composed
// from package transform and package layout: SimplifyInference, PrePack,
// and LayoutTransform (spec.md §4.4-§4.6).
package passes

import (
	"github.com/pkg/errors"

	"github.com/yzhliu/nnvm/graph"
	"github.com/yzhliu/nnvm/op/nn"
	"github.com/yzhliu/nnvm/transform"
)

// SimplifyInference rewrites batch_norm (training form) into its
// algebraically equivalent affine form and drops dropout to an identity on
// its data input, per spec.md §4.4. Every other operator passes through
// unchanged. attrs supplies the source graph's shape and (optionally)
// layout vectors, read only to size the batch-norm expansion and to
// choose between the plain and blocked-NCHWc rewrite.
func SimplifyInference(src *graph.Graph, attrs *graph.Attributes) (*graph.Graph, error) {
	ig, err := graph.Index(src)
	if err != nil {
		return nil, errors.Wrap(err, "simplify_inference")
	}

	rewrite := func(id graph.NodeID, clone *graph.Node) (*transform.Replacement, error) {
		switch clone.Op {
		case "batch_norm":
			return simplifyBatchNorm(id, clone, ig, attrs)
		case "dropout":
			return simplifyDropout(clone), nil
		default:
			return nil, nil
		}
	}

	return transform.Transform(src, rewrite)
}

// simplifyDropout replaces dropout(x) with identity on x and __undef__ on
// the mask output.
func simplifyDropout(clone *graph.Node) *transform.Replacement {
	undef := nn.Undef(clone.Name + "_mask_undef")
	return &transform.Replacement{
		Nodes: []*graph.Node{undef},
		Outputs: []graph.Input{
			clone.Inputs[0],
			{Node: undef.ID, Output: 0},
		},
	}
}

func boolAttr(attrs map[string]any, key string, fallback bool) bool {
	v, ok := attrs[key]
	if !ok {
		return fallback
	}
	b, ok := v.(bool)
	if !ok {
		return fallback
	}
	return b
}

// simplifyBatchNorm builds the affine-form replacement for
// batch_norm(data, gamma, beta, mean, var). clone's inputs have already
// been rewired to the mirrored replacements of its dependencies, so the
// sub-DAG built here wires directly off them.
func simplifyBatchNorm(id graph.NodeID, clone *graph.Node, ig *graph.IndexedGraph, attrs *graph.Attributes) (*transform.Replacement, error) {
	data, gamma, beta, mean, variance := clone.Inputs[0], clone.Inputs[1], clone.Inputs[2], clone.Inputs[3], clone.Inputs[4]

	epsilon := 1e-5
	if v, err := nn.FloatAttr(clone.Attrs, "epsilon"); err == nil {
		epsilon = v
	}
	axis := 1
	if v, err := nn.IntAttr(clone.Attrs, "axis"); err == nil {
		axis = v
	}
	useScale := boolAttr(clone.Attrs, "scale", true)
	useCenter := boolAttr(clone.Attrs, "center", true)

	idx, ok := ig.IndexOf(id)
	if !ok {
		return nil, errors.Errorf("simplify_inference: batch_norm node %q not found in indexed graph", clone.Name)
	}
	dataEdge := ig.InputEdges(idx)[0]
	dshape, err := attrs.ShapeOf(dataEdge, "simplify_inference")
	if err != nil {
		return nil, err
	}
	ndim := len(dshape)
	if axis < 0 || axis >= ndim {
		return nil, errors.Errorf("simplify_inference: batch_norm %q axis %d out of range for rank %d", clone.Name, axis, ndim)
	}

	outEdge, _ := ig.EdgeOf(id, 0)
	outLayout := attrs.LayoutOf(outEdge)
	blockFactor := outLayout.Factor('C')
	blocked := outLayout.IsDefined() && blockFactor > 0

	name := clone.Name
	nodes := make([]*graph.Node, 0, 12)
	add := func(n *graph.Node) graph.Input {
		nodes = append(nodes, n)
		return graph.Input{Node: n.ID, Output: 0}
	}

	varEps := add(nn.AddScalar(name+"_add_eps", variance, epsilon))
	sqrtVar := add(nn.Sqrt(name+"_sqrt", varEps))
	invStd := add(nn.RDivScalar(name+"_rdiv_one", sqrtVar, 1.0))

	scale := invStd
	if useScale {
		scale = add(nn.ElemwiseMul(name+"_mul_gamma", invStd, gamma))
	}

	meanScale := add(nn.ElemwiseMul(name+"_mean_scale", mean, scale))
	shift := add(nn.Negative(name+"_neg_mean_scale", meanScale))
	if useCenter {
		shift = add(nn.ElemwiseAdd(name+"_add_beta", shift, beta))
	}

	if blocked {
		scale = add(nn.BNReorder(name+"_scale_bnreorder", scale, int(blockFactor)))
		scale = add(nn.ExpandDims(name+"_scale_expand", scale, 1, 2))
		shift = add(nn.BNReorder(name+"_shift_bnreorder", shift, int(blockFactor)))
		shift = add(nn.ExpandDims(name+"_shift_expand", shift, 1, 2))
	} else {
		scale = expandToMatchAxis(add, name+"_scale", scale, axis, ndim)
		shift = expandToMatchAxis(add, name+"_shift", shift, axis, ndim)
	}

	mul := add(nn.BroadcastMul(name+"_a_mul_data", data, scale))
	out := add(nn.BroadcastAdd(name+"_a_add_b", mul, shift))

	meanUndef := add(nn.Undef(name + "_mean_undef"))
	varUndef := add(nn.Undef(name + "_var_undef"))

	return &transform.Replacement{
		Nodes:   nodes,
		Outputs: []graph.Input{out, meanUndef, varUndef},
	}, nil
}

// expandToMatchAxis reshapes a 1-D parameter vector of length C (the size
// of the data's axis-th dimension) into a rank-ndim shape with C at
// position axis and 1 everywhere else, via two expand_dims insertions: one
// prepending axis leading 1s, one appending the remaining trailing 1s.
// Right-aligned broadcasting against a rank-ndim shape then lines up
// position-for-position, matching axis exactly.
func expandToMatchAxis(add func(*graph.Node) graph.Input, name string, x graph.Input, axis, ndim int) graph.Input {
	out := x
	if axis > 0 {
		out = add(nn.ExpandDims(name+"_expand_lead", out, 0, axis))
	}
	trailing := ndim - axis - 1
	if trailing > 0 {
		out = add(nn.ExpandDims(name+"_expand_trail", out, axis+1, trailing))
	}
	return out
}
