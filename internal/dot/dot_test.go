package dot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yzhliu/nnvm/graph"
)

func TestToDOTIncludesNodesAndEdges(t *testing.T) {
	x := graph.NewVariable("x")
	relu := graph.NewNode("relu", "relu", nil, []graph.Input{{Node: x.ID}}, 1)
	g := graph.NewGraph([]*graph.Node{x, relu}, []graph.NodeID{x.ID}, []graph.Input{{Node: relu.ID, Output: 0}})

	out, err := ToDOT(g, Options{})
	require.NoError(t, err)
	assert.Contains(t, out, "digraph G")
	assert.Contains(t, out, "relu")
	assert.Contains(t, out, "->")
}

func TestToDOTDetailedIncludesAttrs(t *testing.T) {
	x := graph.NewVariable("x")
	conv := graph.NewNode("conv", "conv2d", map[string]any{"channels": 64}, []graph.Input{{Node: x.ID}, {Node: x.ID}}, 1)
	g := graph.NewGraph([]*graph.Node{x, conv}, []graph.NodeID{x.ID}, []graph.Input{{Node: conv.ID, Output: 0}})

	out, err := ToDOT(g, Options{Detailed: true})
	require.NoError(t, err)
	assert.Contains(t, out, "channels=64")
}

func TestToDOTRendersLayoutTransformNodesDashed(t *testing.T) {
	x := graph.NewVariable("x")
	xform := graph.NewNode("x_NCHW16c", "__layout_transform__", map[string]any{
		"src_layout": "NCHW", "dst_layout": "NCHW16c",
	}, []graph.Input{{Node: x.ID}}, 1)
	g := graph.NewGraph([]*graph.Node{x, xform}, []graph.NodeID{x.ID}, []graph.Input{{Node: xform.ID, Output: 0}})

	out, err := ToDOT(g, Options{})
	require.NoError(t, err)

	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, xform.ID.String()) && strings.Contains(line, "label=") {
			assert.Contains(t, line, "dashed")
			return
		}
	}
	t.Fatal("did not find the __layout_transform__ node's DOT line")
}
