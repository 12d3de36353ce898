package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yzhliu/nnvm/graph"
	"github.com/yzhliu/nnvm/layout"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func buildBatchNormGraph(attrsMap map[string]any) *graph.Graph {
	data := graph.NewVariable("data")
	gamma := graph.NewVariable("gamma")
	beta := graph.NewVariable("beta")
	mean := graph.NewVariable("mean")
	variance := graph.NewVariable("var")

	bn := graph.NewNode("bn", "batch_norm", attrsMap, []graph.Input{
		{Node: data.ID}, {Node: gamma.ID}, {Node: beta.ID}, {Node: mean.ID}, {Node: variance.ID},
	}, 3)

	return graph.NewGraph(
		[]*graph.Node{data, gamma, beta, mean, variance, bn},
		[]graph.NodeID{data.ID, gamma.ID, beta.ID, mean.ID, variance.ID},
		[]graph.Input{{Node: bn.ID, Output: 0}, {Node: bn.ID, Output: 1}, {Node: bn.ID, Output: 2}},
	)
}

func edgeOf(t *testing.T, ig *graph.IndexedGraph, id graph.NodeID) graph.EdgeID {
	t.Helper()
	e, ok := ig.EdgeOf(id, 0)
	require.True(t, ok)
	return e
}

func TestSimplifyBatchNormPlain(t *testing.T) {
	src := buildBatchNormGraph(map[string]any{"epsilon": 1e-5, "axis": 1, "scale": true, "center": true})

	ig := must(graph.Index(src))
	attrs := &graph.Attributes{Shape: make([]layout.Shape, ig.NumEdges())}
	attrs.Shape[edgeOf(t, ig, src.Inputs[0])] = layout.Shape{1, 64, 56, 56}
	attrs.Shape[edgeOf(t, ig, src.Inputs[1])] = layout.Shape{64}
	attrs.Shape[edgeOf(t, ig, src.Inputs[2])] = layout.Shape{64}
	attrs.Shape[edgeOf(t, ig, src.Inputs[3])] = layout.Shape{64}
	attrs.Shape[edgeOf(t, ig, src.Inputs[4])] = layout.Shape{64}

	out, err := SimplifyInference(src, attrs)
	require.NoError(t, err)
	require.Len(t, out.Outputs, 3)

	for _, n := range out.Nodes {
		assert.NotEqual(t, "batch_norm", n.Op)
	}

	var expandCount int
	for _, n := range out.Nodes {
		if n.Op == "expand_dims" {
			expandCount++
		}
		assert.NotEqual(t, "bn_reorder", n.Op, "plain variant must not use bn_reorder")
	}
	assert.Equal(t, 4, expandCount, "two expand_dims each for scale and shift (axis=1, ndim=4)")

	outNodes := make(map[graph.NodeID]*graph.Node, len(out.Nodes))
	for _, n := range out.Nodes {
		outNodes[n.ID] = n
	}
	assert.Equal(t, "__undef__", outNodes[out.Outputs[1].Node].Op)
	assert.Equal(t, "__undef__", outNodes[out.Outputs[2].Node].Op)
	assert.Equal(t, "broadcast_add", outNodes[out.Outputs[0].Node].Op)
}

func TestSimplifyBatchNormNoScaleNoCenter(t *testing.T) {
	src := buildBatchNormGraph(map[string]any{"epsilon": 1e-5, "axis": 1, "scale": false, "center": false})

	ig := must(graph.Index(src))
	attrs := &graph.Attributes{Shape: make([]layout.Shape, ig.NumEdges())}
	attrs.Shape[edgeOf(t, ig, src.Inputs[0])] = layout.Shape{1, 64, 56, 56}
	for _, v := range src.Inputs[1:] {
		attrs.Shape[edgeOf(t, ig, v)] = layout.Shape{64}
	}

	out, err := SimplifyInference(src, attrs)
	require.NoError(t, err)

	var sawGammaMul, sawBetaAdd bool
	for _, n := range out.Nodes {
		if n.Op == "elemwise_mul" && n.Name == "bn_mul_gamma" {
			sawGammaMul = true
		}
		if n.Op == "elemwise_add" && n.Name == "bn_add_beta" {
			sawBetaAdd = true
		}
	}
	assert.False(t, sawGammaMul, "scale=false must skip the gamma multiply")
	assert.False(t, sawBetaAdd, "center=false must skip the beta add")
}

func TestSimplifyBatchNormBlockedNCHWc(t *testing.T) {
	src := buildBatchNormGraph(map[string]any{"epsilon": 1e-5, "axis": 1, "scale": true, "center": true})

	ig := must(graph.Index(src))
	attrs := &graph.Attributes{
		Shape:  make([]layout.Shape, ig.NumEdges()),
		Layout: make([]layout.Layout, ig.NumEdges()),
	}
	attrs.Shape[edgeOf(t, ig, src.Inputs[0])] = layout.Shape{1, 4, 56, 56, 16}
	for _, v := range src.Inputs[1:] {
		attrs.Shape[edgeOf(t, ig, v)] = layout.Shape{64}
	}
	bnOutEdge, ok := ig.EdgeOf(src.Outputs[0].Node, 0)
	require.True(t, ok)
	attrs.Layout[bnOutEdge] = must(layout.Parse("NCHW16c"))

	out, err := SimplifyInference(src, attrs)
	require.NoError(t, err)

	var sawBNReorder bool
	for _, n := range out.Nodes {
		if n.Op == "bn_reorder" {
			sawBNReorder = true
			assert.Equal(t, 16, n.Attrs["bn"])
		}
	}
	assert.True(t, sawBNReorder, "blocked output layout must select the bn_reorder variant")
}

func TestSimplifyDropout(t *testing.T) {
	x := graph.NewVariable("x")
	dropout := graph.NewNode("do", "dropout", nil, []graph.Input{{Node: x.ID}}, 2)
	src := graph.NewGraph(
		[]*graph.Node{x, dropout},
		[]graph.NodeID{x.ID},
		[]graph.Input{{Node: dropout.ID, Output: 0}, {Node: dropout.ID, Output: 1}},
	)

	out, err := SimplifyInference(src, &graph.Attributes{})
	require.NoError(t, err)
	require.Len(t, out.Outputs, 2)

	byID := make(map[graph.NodeID]*graph.Node, len(out.Nodes))
	for _, n := range out.Nodes {
		byID[n.ID] = n
	}
	assert.Equal(t, "", byID[out.Outputs[0].Node].Op, "dropout's data output becomes the identity on x")
	assert.Equal(t, "__undef__", byID[out.Outputs[1].Node].Op)
}

func TestSimplifyInferencePassesOtherOpsThrough(t *testing.T) {
	x := graph.NewVariable("x")
	relu := graph.NewNode("r", "relu", nil, []graph.Input{{Node: x.ID}}, 1)
	src := graph.NewGraph([]*graph.Node{x, relu}, []graph.NodeID{x.ID}, []graph.Input{{Node: relu.ID, Output: 0}})

	out, err := SimplifyInference(src, &graph.Attributes{})
	require.NoError(t, err)
	require.Len(t, out.Nodes, 2)

	byID := make(map[graph.NodeID]*graph.Node, len(out.Nodes))
	for _, n := range out.Nodes {
		byID[n.ID] = n
	}
	assert.Equal(t, "relu", byID[out.Outputs[0].Node].Op)
}
