// Package graph implements the DAG-based intermediate representation over
// which the layout/operator/transform/passes packages operate: nodes with
// operator identity and an attribute bag, typed input edges, and a
// read-only indexed view that assigns dense topological IDs to nodes and
// edges.
package graph

import "github.com/google/uuid"

// NodeID is a stable, opaque handle identifying a node for the lifetime of
// the graph it belongs to. It replaces the bare-pointer identity used as a
// map key in the original C++ implementation.
type NodeID = uuid.UUID

// EdgeID is a dense identifier for a tensor edge, meaningful only within
// one IndexedGraph snapshot.
type EdgeID int

// Input is a typed reference to one output of an upstream node: the
// producer's identity, which of its declared outputs, and a version
// counter reserved for future in-place mutation tracking (unused by any
// pass today, carried for parity with the source's edge triple).
type Input struct {
	Node    NodeID
	Output  int
	Version int
}

// Node is a single operation (or, if Op is empty, a graph input/variable)
// in the IR: an attribute bag, an ordered list of input edges, and a
// declared output arity.
type Node struct {
	ID   NodeID
	Name string

	// Op is the operator name looked up in the operator registry. An empty
	// Op denotes a variable: a graph input with no producer.
	Op string

	// Attrs is the node's parsed attribute bag. Unrecognized keys are kept
	// opaquely (copied verbatim by CloneNode) even though only the
	// operator's registered attribute parser understands their meaning.
	Attrs map[string]any

	Inputs []Input

	// NumOutputs is the node's declared output arity.
	NumOutputs int
}

// IsVariable reports whether n is a graph input rather than an operation.
func (n *Node) IsVariable() bool { return n.Op == "" }

// NewNode constructs a fresh node with a newly allocated identity. attrs
// may be nil, in which case an empty map is allocated.
func NewNode(name, op string, attrs map[string]any, inputs []Input, numOutputs int) *Node {
	if attrs == nil {
		attrs = make(map[string]any)
	}
	return &Node{
		ID:         uuid.New(),
		Name:       name,
		Op:         op,
		Attrs:      attrs,
		Inputs:     inputs,
		NumOutputs: numOutputs,
	}
}

// NewVariable constructs a single-output graph input node.
func NewVariable(name string) *Node {
	return NewNode(name, "", nil, nil, 1)
}

// CloneNode returns a shallow clone of src with a fresh identity, src's
// attributes copied, and its input edges replaced by inputs. Used by the
// graph transformer to rewrite a node's inputs to point at its mirrored
// dependencies without mutating the source graph.
func CloneNode(src *Node, inputs []Input) *Node {
	attrs := make(map[string]any, len(src.Attrs))
	for k, v := range src.Attrs {
		attrs[k] = v
	}
	return &Node{
		ID:         uuid.New(),
		Name:       src.Name,
		Op:         src.Op,
		Attrs:      attrs,
		Inputs:     inputs,
		NumOutputs: src.NumOutputs,
	}
}
