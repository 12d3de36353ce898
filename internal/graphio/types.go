// Package graphio is the on-disk JSON serialization of a graph.Graph and
// its graph.Attributes, used by internal/cli to load a graph description
// and write back the result of running a pipeline over it.
package graphio

// Document is the canonical on-disk format: a flat node list plus the
// per-edge attribute vectors a pass needs, all addressed by node name
// rather than graph.NodeID (which is only meaningful within one process).
//
// Document requires every node to have a unique, non-empty Name; ToGraph
// rejects a document that does not.
type Document struct {
	Nodes        []Node     `json:"nodes"`
	Inputs       []string   `json:"inputs"`
	Outputs      []EdgeRef  `json:"outputs"`
	LayoutInputs []string   `json:"layout_inputs,omitempty"`
	Shapes       []ShapeRef `json:"shapes,omitempty"`
	DTypes       []DTypeRef `json:"dtypes,omitempty"`
	Layouts      []LayoutRef `json:"layouts,omitempty"`
}

// Node is one graph.Node, with its inputs referencing producers by name
// instead of NodeID. A Node with an empty Op is a variable.
type Node struct {
	Name       string         `json:"name"`
	Op         string         `json:"op,omitempty"`
	Attrs      map[string]any `json:"attrs,omitempty"`
	Inputs     []EdgeRef      `json:"inputs,omitempty"`
	NumOutputs int            `json:"num_outputs"`
}

// EdgeRef names one output slot of one node: the node by name, and which
// of its declared outputs.
type EdgeRef struct {
	Node   string `json:"node"`
	Output int    `json:"output,omitempty"`
}

// ShapeRef attaches a shape to the edge named by EdgeRef.
type ShapeRef struct {
	EdgeRef
	Shape []int64 `json:"shape"`
}

// DTypeRef attaches a dtype name (as returned by utils.DType.String) to
// the edge named by EdgeRef.
type DTypeRef struct {
	EdgeRef
	DType string `json:"dtype"`
}

// LayoutRef attaches a canonical layout name to the edge named by EdgeRef.
type LayoutRef struct {
	EdgeRef
	Layout string `json:"layout"`
}
