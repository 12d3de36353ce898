package graph

import "fmt"

// MissingAttributeError reports that a pass required an attribute vector
// (shape, dtype, layout, layout_inputs) that was not attached to the graph.
type MissingAttributeError struct {
	Attribute string
	Pass      string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("%s: missing required attribute %q", e.Pass, e.Attribute)
}

// InferenceFailureError reports that an operator's infer_shape, infer_type
// or infer_layout callback returned false, an error, or an incomplete
// layout where a complete one was required.
type InferenceFailureError struct {
	Node    string
	Op      string
	Message string
}

func (e *InferenceFailureError) Error() string {
	return fmt.Sprintf("inference failed at node %q (op %q): %s", e.Node, e.Op, e.Message)
}

// CycleError reports that the input graph is not a DAG.
type CycleError struct {
	Node string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected involving node %q", e.Node)
}

// DanglingEdgeError reports that a node's input refers to a node or output
// index that does not exist in the graph.
type DanglingEdgeError struct {
	Node    string
	Message string
}

func (e *DanglingEdgeError) Error() string {
	return fmt.Sprintf("dangling input edge at node %q: %s", e.Node, e.Message)
}
