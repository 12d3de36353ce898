package graphio

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/yzhliu/nnvm/graph"
	"github.com/yzhliu/nnvm/internal/utils"
	"github.com/yzhliu/nnvm/layout"
)

// ToGraph builds a graph.Graph and its graph.Attributes from doc. The
// returned Attributes' Shape/DType/Layout vectors are indexed by the
// returned graph's own edge IDs, obtained by re-running graph.Index.
func ToGraph(doc Document) (*graph.Graph, *graph.Attributes, error) {
	if len(doc.Nodes) == 0 {
		return nil, nil, errors.New("graphio: document has no nodes")
	}

	byName := make(map[string]*graph.Node, len(doc.Nodes))
	seenNames := utils.MakeSet[string](len(doc.Nodes))
	nodes := make([]*graph.Node, len(doc.Nodes))
	for i, n := range doc.Nodes {
		if n.Name == "" {
			return nil, nil, errors.Errorf("graphio: node %d has no name", i)
		}
		if seenNames.Has(n.Name) {
			return nil, nil, errors.Errorf("graphio: duplicate node name %q", n.Name)
		}
		seenNames.Insert(n.Name)
		attrs := n.Attrs
		if attrs == nil {
			attrs = make(map[string]any)
		}
		gn := &graph.Node{ID: uuid.New(), Name: n.Name, Op: n.Op, Attrs: attrs, NumOutputs: n.NumOutputs}
		nodes[i] = gn
		byName[n.Name] = gn
	}

	resolve := func(ref EdgeRef) (graph.Input, error) {
		n, ok := byName[ref.Node]
		if !ok {
			return graph.Input{}, errors.Errorf("graphio: reference to unknown node %q", ref.Node)
		}
		return graph.Input{Node: n.ID, Output: ref.Output}, nil
	}

	for i, n := range doc.Nodes {
		inputs := make([]graph.Input, len(n.Inputs))
		for j, ref := range n.Inputs {
			in, err := resolve(ref)
			if err != nil {
				return nil, nil, err
			}
			inputs[j] = in
		}
		nodes[i].Inputs = inputs
	}

	inputIDs := make([]graph.NodeID, len(doc.Inputs))
	for i, name := range doc.Inputs {
		n, ok := byName[name]
		if !ok {
			return nil, nil, errors.Errorf("graphio: graph input references unknown node %q", name)
		}
		inputIDs[i] = n.ID
	}
	outputs := make([]graph.Input, len(doc.Outputs))
	for i, ref := range doc.Outputs {
		out, err := resolve(ref)
		if err != nil {
			return nil, nil, err
		}
		outputs[i] = out
	}

	g := graph.NewGraph(nodes, inputIDs, outputs)
	ig, err := graph.Index(g)
	if err != nil {
		return nil, nil, errors.Wrap(err, "graphio")
	}

	attrs := &graph.Attributes{
		Shape: make([]layout.Shape, ig.NumEdges()),
		DType: make([]utils.DType, ig.NumEdges()),
		Layout: make([]layout.Layout, ig.NumEdges()),
	}

	edgeOf := func(ref EdgeRef) (graph.EdgeID, error) {
		n, ok := byName[ref.Node]
		if !ok {
			return 0, errors.Errorf("graphio: attribute references unknown node %q", ref.Node)
		}
		e, ok := ig.EdgeOf(n.ID, ref.Output)
		if !ok {
			return 0, errors.Errorf("graphio: node %q has no output %d", ref.Node, ref.Output)
		}
		return e, nil
	}

	for _, s := range doc.Shapes {
		e, err := edgeOf(s.EdgeRef)
		if err != nil {
			return nil, nil, err
		}
		attrs.Shape[e] = layout.Shape(s.Shape)
	}
	for _, d := range doc.DTypes {
		e, err := edgeOf(d.EdgeRef)
		if err != nil {
			return nil, nil, err
		}
		dt, err := utils.ParseDType(d.DType)
		if err != nil {
			return nil, nil, errors.Wrap(err, "graphio")
		}
		attrs.DType[e] = dt
	}
	for _, l := range doc.Layouts {
		e, err := edgeOf(l.EdgeRef)
		if err != nil {
			return nil, nil, err
		}
		parsed, err := layout.Parse(l.Layout)
		if err != nil {
			return nil, nil, errors.Wrap(err, "graphio")
		}
		attrs.Layout[e] = parsed
	}

	if doc.LayoutInputs != nil {
		attrs.LayoutInputs = make([]layout.Layout, len(doc.LayoutInputs))
		for i, name := range doc.LayoutInputs {
			if name == "" {
				continue
			}
			parsed, err := layout.Parse(name)
			if err != nil {
				return nil, nil, errors.Wrap(err, "graphio")
			}
			attrs.LayoutInputs[i] = parsed
		}
	}

	return g, attrs, nil
}

// FromGraph serializes g and attrs into a Document keyed by node name.
// g must have unique, non-empty node names, since EdgeRef addressing
// depends on names round-tripping; FromGraph errors otherwise.
func FromGraph(g *graph.Graph, attrs *graph.Attributes) (Document, error) {
	seen := utils.MakeSet[string](len(g.Nodes))
	byID := make(map[graph.NodeID]*graph.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.Name == "" {
			return Document{}, errors.New("graphio: cannot serialize a node with an empty name")
		}
		if seen.Has(n.Name) {
			return Document{}, errors.Errorf("graphio: cannot serialize duplicate node name %q", n.Name)
		}
		seen.Insert(n.Name)
		byID[n.ID] = n
	}

	ref := func(in graph.Input) EdgeRef {
		return EdgeRef{Node: byID[in.Node].Name, Output: in.Output}
	}

	doc := Document{Nodes: make([]Node, len(g.Nodes))}
	for i, n := range g.Nodes {
		inputs := make([]EdgeRef, len(n.Inputs))
		for j, in := range n.Inputs {
			inputs[j] = ref(in)
		}
		doc.Nodes[i] = Node{Name: n.Name, Op: n.Op, Attrs: n.Attrs, Inputs: inputs, NumOutputs: n.NumOutputs}
	}
	doc.Inputs = make([]string, len(g.Inputs))
	for i, id := range g.Inputs {
		doc.Inputs[i] = byID[id].Name
	}
	doc.Outputs = make([]EdgeRef, len(g.Outputs))
	for i, o := range g.Outputs {
		doc.Outputs[i] = ref(o)
	}

	if attrs == nil {
		return doc, nil
	}

	ig, err := graph.Index(g)
	if err != nil {
		return Document{}, errors.Wrap(err, "graphio")
	}
	for i := 0; i < ig.NumNodes(); i++ {
		n := ig.NodeAt(i)
		for o := 0; o < n.NumOutputs; o++ {
			e, ok := ig.EdgeOf(n.ID, o)
			if !ok {
				continue
			}
			edgeRef := EdgeRef{Node: n.Name, Output: o}
			if int(e) < len(attrs.Shape) && attrs.Shape[e] != nil {
				doc.Shapes = append(doc.Shapes, ShapeRef{EdgeRef: edgeRef, Shape: []int64(attrs.Shape[e])})
			}
			if int(e) < len(attrs.DType) {
				doc.DTypes = append(doc.DTypes, DTypeRef{EdgeRef: edgeRef, DType: attrs.DType[e].String()})
			}
			if int(e) < len(attrs.Layout) && attrs.Layout[e].IsDefined() {
				doc.Layouts = append(doc.Layouts, LayoutRef{EdgeRef: edgeRef, Layout: attrs.Layout[e].Name()})
			}
		}
	}
	if attrs.LayoutInputs != nil {
		doc.LayoutInputs = make([]string, len(attrs.LayoutInputs))
		for i, l := range attrs.LayoutInputs {
			doc.LayoutInputs[i] = l.Name()
		}
	}

	return doc, nil
}
