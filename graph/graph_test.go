package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func must[T any](value T, err error) T {
	if err != nil {
		panic(err)
	}
	return value
}

// buildChain builds data -> relu -> relu2, a simple three-node chain.
func buildChain() *Graph {
	data := NewVariable("data")
	relu1 := NewNode("relu1", "relu", nil, []Input{{Node: data.ID, Output: 0}}, 1)
	relu2 := NewNode("relu2", "relu", nil, []Input{{Node: relu1.ID, Output: 0}}, 1)
	return NewGraph(
		[]*Node{data, relu1, relu2},
		[]NodeID{data.ID},
		[]Input{{Node: relu2.ID, Output: 0}},
	)
}

func TestIndexTopologicalOrder(t *testing.T) {
	g := buildChain()
	ig := must(Index(g))
	require.Equal(t, 3, ig.NumNodes())
	require.Equal(t, 3, ig.NumEdges())

	// Producers appear before consumers.
	pos := make(map[string]int, 3)
	for i := 0; i < ig.NumNodes(); i++ {
		pos[ig.NodeAt(i).Name] = i
	}
	assert.Less(t, pos["data"], pos["relu1"])
	assert.Less(t, pos["relu1"], pos["relu2"])
}

func TestIndexEachNodeOnce(t *testing.T) {
	g := buildChain()
	ig := must(Index(g))
	seen := make(map[NodeID]bool)
	for i := 0; i < ig.NumNodes(); i++ {
		id := ig.NodeAt(i).ID
		assert.False(t, seen[id], "node visited twice")
		seen[id] = true
	}
}

func TestIndexDetectsCycle(t *testing.T) {
	a := NewNode("a", "op", nil, nil, 1)
	b := NewNode("b", "op", nil, []Input{{Node: a.ID}}, 1)
	// Close the cycle by rewriting a's inputs after construction.
	a.Inputs = []Input{{Node: b.ID}}
	g := NewGraph([]*Node{a, b}, nil, nil)
	_, err := Index(g)
	require.Error(t, err)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestIndexDetectsDanglingEdge(t *testing.T) {
	phantom := NewNode("phantom", "", nil, nil, 1)
	consumer := NewNode("consumer", "relu", nil, []Input{{Node: phantom.ID}}, 1)
	g := NewGraph([]*Node{consumer}, nil, nil)
	_, err := Index(g)
	require.Error(t, err)
	var danglingErr *DanglingEdgeError
	require.ErrorAs(t, err, &danglingErr)
}

func TestOutputEdges(t *testing.T) {
	g := buildChain()
	ig := must(Index(g))
	edges := must(ig.OutputEdges())
	require.Len(t, edges, 1)

	relu2Idx, ok := ig.IndexOf(g.Nodes[2].ID)
	require.True(t, ok)
	wantEdge, ok := ig.EdgeOf(ig.NodeAt(relu2Idx).ID, 0)
	require.True(t, ok)
	assert.Equal(t, wantEdge, edges[0])
}

func TestCloneNodePreservesAttrsCopiesMap(t *testing.T) {
	src := NewNode("n", "op", map[string]any{"axis": 1}, nil, 1)
	clone := CloneNode(src, []Input{{Node: src.ID}})
	clone.Attrs["axis"] = 2
	assert.Equal(t, 1, src.Attrs["axis"])
	assert.NotEqual(t, src.ID, clone.ID)
}
