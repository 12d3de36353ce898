package graph

import "github.com/pkg/errors"

// Graph is an immutable DAG of nodes. Inputs lists the graph's variable
// nodes in declaration order (the order Attributes.LayoutInputs and a
// caller's positional argument list are indexed by); Outputs lists the
// graph's exposed result edges.
//
// Graphs are built once and never mutated; every pass in this module
// returns a new Graph rather than editing one in place.
type Graph struct {
	Nodes   []*Node
	Inputs  []NodeID
	Outputs []Input
}

// NewGraph constructs a Graph from its nodes, ordered inputs and outputs.
// It performs no validation; call Index to validate structure (acyclic,
// no dangling edges) and obtain a topologically ordered view.
func NewGraph(nodes []*Node, inputs []NodeID, outputs []Input) *Graph {
	return &Graph{Nodes: nodes, Inputs: inputs, Outputs: outputs}
}

// edgeKey identifies one output slot of one node.
type edgeKey struct {
	node   NodeID
	output int
}

// IndexedGraph is a read-only, dense flattening of a Graph: nodes in
// topological order with dense IDs [0, NumNodes), and edges with dense IDs
// [0, NumEdges) assigned in the order their producing node is visited. An
// IndexedGraph borrows from the Graph it was built from and must not
// outlive it.
type IndexedGraph struct {
	g *Graph

	order     []*Node
	nodeIndex map[NodeID]int

	edgeOf     map[edgeKey]EdgeID
	edgeKeys   []edgeKey
	inputEdges [][]EdgeID // inputEdges[i] are the input edge IDs of order[i]
}

// Index builds an IndexedGraph from g, detecting cycles and dangling edges
// via a standard white/gray/black DFS.
func Index(g *Graph) (*IndexedGraph, error) {
	byID := make(map[NodeID]*Node, len(g.Nodes))
	for _, n := range g.Nodes {
		byID[n.ID] = n
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[NodeID]int, len(g.Nodes))
	order := make([]*Node, 0, len(g.Nodes))

	var visit func(n *Node) error
	visit = func(n *Node) error {
		switch color[n.ID] {
		case black:
			return nil
		case gray:
			return &CycleError{Node: n.Name}
		}
		color[n.ID] = gray
		for _, in := range n.Inputs {
			up, ok := byID[in.Node]
			if !ok {
				return &DanglingEdgeError{Node: n.Name, Message: "input references an unknown node"}
			}
			if in.Output < 0 || in.Output >= up.NumOutputs {
				return &DanglingEdgeError{Node: n.Name, Message: "input output index out of range for producer " + up.Name}
			}
			if err := visit(up); err != nil {
				return err
			}
		}
		color[n.ID] = black
		order = append(order, n)
		return nil
	}

	for _, n := range g.Nodes {
		if err := visit(n); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	ig := &IndexedGraph{
		g:         g,
		order:     order,
		nodeIndex: make(map[NodeID]int, len(order)),
		edgeOf:    make(map[edgeKey]EdgeID, len(order)),
	}
	ig.inputEdges = make([][]EdgeID, len(order))
	for i, n := range order {
		ig.nodeIndex[n.ID] = i
		base := len(ig.edgeKeys)
		for o := 0; o < n.NumOutputs; o++ {
			k := edgeKey{n.ID, o}
			ig.edgeOf[k] = EdgeID(base + o)
			ig.edgeKeys = append(ig.edgeKeys, k)
		}
		edges := make([]EdgeID, len(n.Inputs))
		for j, in := range n.Inputs {
			edges[j] = ig.edgeOf[edgeKey{in.Node, in.Output}]
		}
		ig.inputEdges[i] = edges
	}
	return ig, nil
}

// NumNodes returns the number of nodes in the indexed view.
func (ig *IndexedGraph) NumNodes() int { return len(ig.order) }

// NumEdges returns the number of distinct output edges in the indexed view.
func (ig *IndexedGraph) NumEdges() int { return len(ig.edgeKeys) }

// NodeAt returns the node at dense topological position i.
func (ig *IndexedGraph) NodeAt(i int) *Node { return ig.order[i] }

// IndexOf returns the dense position of node id, or (-1, false) if absent.
func (ig *IndexedGraph) IndexOf(id NodeID) (int, bool) {
	i, ok := ig.nodeIndex[id]
	return i, ok
}

// EdgeOf returns the edge ID for output index output of node id.
func (ig *IndexedGraph) EdgeOf(id NodeID, output int) (EdgeID, bool) {
	e, ok := ig.edgeOf[edgeKey{id, output}]
	return e, ok
}

// InputEdges returns the input edge IDs of the node at dense position i,
// in input order.
func (ig *IndexedGraph) InputEdges(i int) []EdgeID { return ig.inputEdges[i] }

// OutputEdges returns the graph's exposed output edge IDs, in the order
// listed by Graph.Outputs.
func (ig *IndexedGraph) OutputEdges() ([]EdgeID, error) {
	out := make([]EdgeID, len(ig.g.Outputs))
	for i, o := range ig.g.Outputs {
		e, ok := ig.EdgeOf(o.Node, o.Output)
		if !ok {
			return nil, &DanglingEdgeError{Node: "<graph output>", Message: "output references an unknown node or output index"}
		}
		out[i] = e
	}
	return out, nil
}

// Graph returns the underlying Graph this view was built from.
func (ig *IndexedGraph) Graph() *Graph { return ig.g }
