// Package transform implements the generic bottom-up graph rewriter used
// by the SimplifyInference and PrePack passes in package passes: it walks a graph in
// topological order, lets a caller-supplied rule replace each non-variable
// node with a sub-DAG, and remaps the inputs of every dependent through a
// mirror table from source node identity to its replacement outputs.
package transform

import (
	"github.com/pkg/errors"

	"github.com/yzhliu/nnvm/graph"
)

// Replacement is the sub-DAG a RewriteFunc returns in place of the node it
// was invoked on. Nodes is the set of new nodes introduced (it does not
// need to include the node the rule was handed; the rule is free to
// discard it entirely, as SimplifyInference does for batch_norm). Outputs
// must have exactly as many entries as the original node's declared
// output arity, each referencing one output slot of a node in Nodes (or of
// an input the rule was handed, for pass-through outputs such as
// dropout's identity on its data input).
type Replacement struct {
	Nodes   []*graph.Node
	Outputs []graph.Input
}

// RewriteFunc is invoked once per non-variable source node, in topological
// order, with the node's identity and a clone of it whose inputs have
// already been rewritten to point at the mirrored replacements of its
// dependencies. It returns nil to leave the node unchanged (the clone
// becomes the node's sole replacement), or a Replacement to substitute a
// different sub-DAG.
type RewriteFunc func(id graph.NodeID, clone *graph.Node) (*Replacement, error)

// Transform walks src in topological order and applies rule to every
// non-variable node, producing a new Graph. Variable (input) nodes are
// always carried through as-is (cloned, never rewritten) since a
// RewriteFunc has nothing upstream of a variable to rewire.
//
// Transform guarantees: every source node is visited exactly once, in an
// order where all of its inputs have already been visited; no node in the
// output graph references a node from src; and rule's returned output
// count must match the source node's declared arity, or Transform fails
// with *ArityMismatchError.
func Transform(src *graph.Graph, rule RewriteFunc) (*graph.Graph, error) {
	ig, err := graph.Index(src)
	if err != nil {
		return nil, errors.Wrap(err, "transform")
	}

	mirror := make(map[graph.NodeID][]graph.Input, ig.NumNodes())
	newNodes := make([]*graph.Node, 0, ig.NumNodes())

	for i := 0; i < ig.NumNodes(); i++ {
		n := ig.NodeAt(i)

		inputs := make([]graph.Input, len(n.Inputs))
		for j, in := range n.Inputs {
			mirrored := mirror[in.Node]
			inputs[j] = mirrored[in.Output]
		}
		clone := graph.CloneNode(n, inputs)

		if n.IsVariable() {
			mirror[n.ID] = []graph.Input{{Node: clone.ID, Output: 0}}
			newNodes = append(newNodes, clone)
			continue
		}

		replacement, err := rule(n.ID, clone)
		if err != nil {
			return nil, errors.Wrapf(err, "rewriting node %q (op %q)", n.Name, n.Op)
		}
		if replacement == nil {
			newNodes = append(newNodes, clone)
			outputs := make([]graph.Input, n.NumOutputs)
			for o := range outputs {
				outputs[o] = graph.Input{Node: clone.ID, Output: o}
			}
			mirror[n.ID] = outputs
			continue
		}

		if len(replacement.Outputs) != n.NumOutputs {
			return nil, &ArityMismatchError{Node: n.Name, Op: n.Op, Want: n.NumOutputs, Got: len(replacement.Outputs)}
		}
		newNodes = append(newNodes, replacement.Nodes...)
		mirror[n.ID] = replacement.Outputs
	}

	inputs := make([]graph.NodeID, len(src.Inputs))
	for i, v := range src.Inputs {
		inputs[i] = mirror[v][0].Node
	}
	outputs := make([]graph.Input, len(src.Outputs))
	for i, o := range src.Outputs {
		outputs[i] = mirror[o.Node][o.Output]
	}

	return graph.NewGraph(newNodes, inputs, outputs), nil
}
