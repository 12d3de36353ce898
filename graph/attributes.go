package graph

import (
	"github.com/yzhliu/nnvm/internal/utils"
	"github.com/yzhliu/nnvm/layout"
)

// Attributes bundles the per-edge parallel arrays a pass is invoked with.
// The caller owns Shape and DType; Layout is produced by LayoutTransform
// and consumed (as hints) by PrePack and later LayoutTransform runs;
// LayoutInputs gives the caller-requested layout of each graph input, in
// the order Graph.Inputs lists them.
//
// All slices other than LayoutInputs are indexed by EdgeID, so they must
// be sized to an IndexedGraph's NumEdges() before being read by a pass.
type Attributes struct {
	Shape        []layout.Shape
	DType        []utils.DType
	Layout       []layout.Layout
	LayoutInputs []layout.Layout
}

// ShapeOf returns the shape attached to e, or an error if Shape is absent
// or too short.
func (a *Attributes) ShapeOf(e EdgeID, pass string) (layout.Shape, error) {
	if a == nil || a.Shape == nil {
		return nil, &MissingAttributeError{Attribute: "shape", Pass: pass}
	}
	if int(e) >= len(a.Shape) {
		return nil, &MissingAttributeError{Attribute: "shape", Pass: pass}
	}
	return a.Shape[e], nil
}

// DTypeOf returns the dtype attached to e, or an error if DType is absent.
func (a *Attributes) DTypeOf(e EdgeID, pass string) (utils.DType, error) {
	if a == nil || a.DType == nil {
		return 0, &MissingAttributeError{Attribute: "dtype", Pass: pass}
	}
	if int(e) >= len(a.DType) {
		return 0, &MissingAttributeError{Attribute: "dtype", Pass: pass}
	}
	return a.DType[e], nil
}

// LayoutOf returns the layout attached to e, or layout.Undef if the Layout
// vector is absent or unset for that edge (spec.md treats a missing prior
// layout as a hint, not a hard error).
func (a *Attributes) LayoutOf(e EdgeID) layout.Layout {
	if a == nil || a.Layout == nil || int(e) >= len(a.Layout) {
		return layout.Undef
	}
	return a.Layout[e]
}
