package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yzhliu/nnvm/graph"
	"github.com/yzhliu/nnvm/layout"
	"github.com/yzhliu/nnvm/op/nn"
)

func TestLayoutTransformInsertsTransformOnMismatch(t *testing.T) {
	data := graph.NewVariable("data")
	weight := graph.NewVariable("weight")
	conv := graph.NewNode("conv", "conv2d", map[string]any{
		"channels": 128, "kernel_size": []any{3, 3}, "layout": "NCHW16c",
	}, []graph.Input{{Node: data.ID}, {Node: weight.ID}}, 1)

	src := graph.NewGraph(
		[]*graph.Node{data, weight, conv},
		[]graph.NodeID{data.ID, weight.ID},
		[]graph.Input{{Node: conv.ID, Output: 0}},
	)

	registry := must(nn.NewRegistry())
	layoutInputs := []layout.Layout{must(layout.Parse("NCHW")), must(layout.Parse("OIHW"))}

	out, layouts, err := LayoutTransform(src, &graph.Attributes{}, layoutInputs, registry)
	require.NoError(t, err)

	var sawTransform bool
	for _, n := range out.Nodes {
		if n.Op == "__layout_transform__" {
			sawTransform = true
			assert.Equal(t, "NCHW", n.Attrs["src_layout"])
			assert.Equal(t, "NCHW16c", n.Attrs["dst_layout"])
		}
	}
	assert.True(t, sawTransform, "conv2d requesting NCHW16c while data arrives as NCHW must insert a transform")

	outIg := must(graph.Index(out))
	convEdge, ok := outIg.EdgeOf(out.Outputs[0].Node, 0)
	require.True(t, ok)
	assert.Equal(t, "NCHW16c", layouts[convEdge].Name())
}

func TestLayoutTransformNoInsertionWhenAlreadyMatching(t *testing.T) {
	data := graph.NewVariable("data")
	relu := graph.NewNode("relu", "relu", nil, []graph.Input{{Node: data.ID}}, 1)

	src := graph.NewGraph(
		[]*graph.Node{data, relu},
		[]graph.NodeID{data.ID},
		[]graph.Input{{Node: relu.ID, Output: 0}},
	)

	registry := must(nn.NewRegistry())
	layoutInputs := []layout.Layout{must(layout.Parse("NCHW"))}

	out, _, err := LayoutTransform(src, &graph.Attributes{}, layoutInputs, registry)
	require.NoError(t, err)

	for _, n := range out.Nodes {
		assert.NotEqual(t, "__layout_transform__", n.Op, "a passthrough op requesting its producer's own layout must not trigger a transform")
	}
}

func TestLayoutTransformDisambiguatesRepeatedTransforms(t *testing.T) {
	data := graph.NewVariable("data")
	weight1 := graph.NewVariable("weight1")
	weight2 := graph.NewVariable("weight2")
	conv1 := graph.NewNode("conv1", "conv2d", map[string]any{
		"channels": 64, "kernel_size": []any{3, 3}, "layout": "NCHW8c",
	}, []graph.Input{{Node: data.ID}, {Node: weight1.ID}}, 1)
	conv2 := graph.NewNode("conv2", "conv2d", map[string]any{
		"channels": 64, "kernel_size": []any{3, 3}, "layout": "NCHW8c",
	}, []graph.Input{{Node: data.ID}, {Node: weight2.ID}}, 1)

	src := graph.NewGraph(
		[]*graph.Node{data, weight1, weight2, conv1, conv2},
		[]graph.NodeID{data.ID, weight1.ID, weight2.ID},
		[]graph.Input{{Node: conv1.ID, Output: 0}, {Node: conv2.ID, Output: 0}},
	)

	registry := must(nn.NewRegistry())
	layoutInputs := []layout.Layout{must(layout.Parse("NCHW")), must(layout.Parse("OIHW")), must(layout.Parse("OIHW"))}

	out, _, err := LayoutTransform(src, &graph.Attributes{}, layoutInputs, registry)
	require.NoError(t, err)

	var names []string
	for _, n := range out.Nodes {
		if n.Op == "__layout_transform__" {
			names = append(names, n.Name)
		}
	}
	require.Len(t, names, 2, "each conv pulling data through the same requested layout shares one base name but must stay distinct")
	assert.NotEqual(t, names[0], names[1])
}

func TestLayoutTransformNormalizesProducerNameInTransformNode(t *testing.T) {
	data := graph.NewVariable("conv 1.weight")
	weight := graph.NewVariable("weight")
	conv := graph.NewNode("conv", "conv2d", map[string]any{
		"channels": 128, "kernel_size": []any{3, 3}, "layout": "NCHW16c",
	}, []graph.Input{{Node: data.ID}, {Node: weight.ID}}, 1)

	src := graph.NewGraph(
		[]*graph.Node{data, weight, conv},
		[]graph.NodeID{data.ID, weight.ID},
		[]graph.Input{{Node: conv.ID, Output: 0}},
	)

	registry := must(nn.NewRegistry())
	layoutInputs := []layout.Layout{must(layout.Parse("NCHW")), must(layout.Parse("OIHW"))}

	out, _, err := LayoutTransform(src, &graph.Attributes{}, layoutInputs, registry)
	require.NoError(t, err)

	var sawNormalizedName bool
	for _, n := range out.Nodes {
		if n.Op == "__layout_transform__" {
			sawNormalizedName = true
			assert.NotContains(t, n.Name, " ")
			assert.NotContains(t, n.Name, ".")
		}
	}
	assert.True(t, sawNormalizedName)
}
