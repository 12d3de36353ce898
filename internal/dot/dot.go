// Package dot renders a graph.Graph as Graphviz DOT text and, via
// goccy/go-graphviz, as SVG — used by internal/cli's describe command to
// let a user inspect a graph without reading its raw JSON.
package dot

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/pkg/errors"

	"github.com/yzhliu/nnvm/graph"
	"github.com/yzhliu/nnvm/layout"
)

// Options configures DOT rendering.
type Options struct {
	// Detailed adds each node's attribute bag to its label. When false,
	// only the node name and op name (or "var" for a variable) are shown.
	Detailed bool

	// Layouts, if non-nil, is a per-edge layout vector (indexed by an
	// IndexedGraph built from the same Graph) used to annotate each edge
	// with its layout name.
	Layouts []layout.Layout
}

// ToDOT converts g to Graphviz DOT format. When opts.Layouts is set, g is
// re-indexed internally to resolve edge IDs for the annotation; edges whose
// ID falls past the end of Layouts, or whose layout is undefined, are
// labeled with their output index instead, and no error is reported. The
// length of Layouts is not checked against g's edge count.
func ToDOT(g *graph.Graph, opts Options) (string, error) {
	var ig *graph.IndexedGraph
	if opts.Layouts != nil {
		indexed, err := graph.Index(g)
		if err != nil {
			return "", errors.Wrap(err, "dot")
		}
		ig = indexed
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n\n")

	for _, n := range g.Nodes {
		label := nodeLabel(n, opts.Detailed)
		fillcolor := "white"
		if n.IsVariable() {
			fillcolor = "lightyellow"
		}
		style := "rounded,filled"
		if n.Op == "__layout_transform__" {
			style = "rounded,filled,dashed"
		}
		fmt.Fprintf(&buf, "  %q [label=%q, fillcolor=%s, style=%q];\n", n.ID, label, fillcolor, style)
	}

	buf.WriteString("\n")
	for _, n := range g.Nodes {
		for _, in := range n.Inputs {
			edgeLabel := fmt.Sprintf("%d", in.Output)
			if ig != nil {
				if e, ok := ig.EdgeOf(in.Node, in.Output); ok && int(e) < len(opts.Layouts) && opts.Layouts[e].IsDefined() {
					edgeLabel = opts.Layouts[e].Name()
				}
			}
			fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", in.Node, n.ID, edgeLabel)
		}
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

func nodeLabel(n *graph.Node, detailed bool) string {
	op := n.Op
	if n.IsVariable() {
		op = "var"
	}
	label := fmt.Sprintf("%s\n%s", n.Name, op)
	if !detailed || len(n.Attrs) == 0 {
		return label
	}

	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, n.Attrs[k]))
	}
	return label + "\n" + strings.Join(parts, "\n")
}

// RenderSVG renders DOT text to SVG using Graphviz.
func RenderSVG(ctx context.Context, dotText string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "dot: init graphviz")
	}
	defer gv.Close()

	parsed, err := graphviz.ParseBytes([]byte(dotText))
	if err != nil {
		return nil, errors.Wrap(err, "dot: parse")
	}
	defer parsed.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, parsed, graphviz.SVG, &buf); err != nil {
		return nil, errors.Wrap(err, "dot: render")
	}
	return buf.Bytes(), nil
}
