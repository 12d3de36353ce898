package nn

import (
	"github.com/pkg/errors"

	"github.com/yzhliu/nnvm/graph"
	"github.com/yzhliu/nnvm/internal/utils"
	"github.com/yzhliu/nnvm/layout"
	"github.com/yzhliu/nnvm/op"
)

func FloatAttr(attrs map[string]any, key string) (float64, error) {
	v, ok := attrs[key]
	if !ok {
		return 0, errors.Errorf("missing attribute %q", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	default:
		return 0, errors.Errorf("attribute %q has unexpected type %T", key, v)
	}
}

func IntAttr(attrs map[string]any, key string) (int, error) {
	v, ok := attrs[key]
	if !ok {
		return 0, errors.Errorf("missing attribute %q", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, errors.Errorf("attribute %q has unexpected type %T", key, v)
	}
}

func identityAttrParser(raw map[string]any) (map[string]any, error) {
	if raw == nil {
		return map[string]any{}, nil
	}
	return raw, nil
}

// unaryRule returns a Rule for a unary operator whose output shape/dtype
// equal its input's.
func unaryRule(name string) *op.Rule {
	return &op.Rule{
		Name:       name,
		Arity:      op.FixedArity(1),
		AttrParser: identityAttrParser,
		InferShape: func(_ map[string]any, inputs []layout.Shape) ([]layout.Shape, error) {
			return []layout.Shape{inputs[0].Clone()}, nil
		},
		InferType: func(_ map[string]any, inputs []utils.DType) ([]utils.DType, error) {
			return []utils.DType{inputs[0]}, nil
		},
		InferLayout: func(_ map[string]any, requestIn, prevInHint, produceOut []layout.Layout) (bool, error) {
			return passthroughLayout(requestIn, prevInHint, produceOut)
		},
	}
}

// binaryElementwiseRule returns a Rule for a strict elementwise binary
// operator (equal shapes required, no broadcasting).
func binaryElementwiseRule(name string) *op.Rule {
	return &op.Rule{
		Name:       name,
		Arity:      op.FixedArity(1),
		AttrParser: identityAttrParser,
		InferShape: func(_ map[string]any, inputs []layout.Shape) ([]layout.Shape, error) {
			s, err := sameShape(name, inputs[0], inputs[1])
			if err != nil {
				return nil, err
			}
			return []layout.Shape{s}, nil
		},
		InferType: func(_ map[string]any, inputs []utils.DType) ([]utils.DType, error) {
			d, err := sameDType(name, inputs[0], inputs[1])
			if err != nil {
				return nil, err
			}
			return []utils.DType{d}, nil
		},
		InferLayout: func(_ map[string]any, requestIn, prevInHint, produceOut []layout.Layout) (bool, error) {
			return binaryElementwiseLayout(requestIn, prevInHint, produceOut)
		},
	}
}

// broadcastRule returns a Rule for a broadcasting binary operator.
func broadcastRule(name string) *op.Rule {
	return &op.Rule{
		Name:       name,
		Arity:      op.FixedArity(1),
		AttrParser: identityAttrParser,
		InferShape: func(_ map[string]any, inputs []layout.Shape) ([]layout.Shape, error) {
			s, err := broadcastShapes(name, inputs[0], inputs[1])
			if err != nil {
				return nil, err
			}
			return []layout.Shape{s}, nil
		},
		InferType: func(_ map[string]any, inputs []utils.DType) ([]utils.DType, error) {
			d, err := sameDType(name, inputs[0], inputs[1])
			if err != nil {
				return nil, err
			}
			return []utils.DType{d}, nil
		},
		InferLayout: func(_ map[string]any, requestIn, prevInHint, produceOut []layout.Layout) (bool, error) {
			return binaryElementwiseLayout(requestIn, prevInHint, produceOut)
		},
	}
}

// scalarRule returns a Rule for a unary operator parameterized by a single
// float "scalar" attribute (e.g. __add_scalar__, __rdiv_scalar__).
func scalarRule(name string) *op.Rule {
	rule := unaryRule(name)
	rule.AttrParser = func(raw map[string]any) (map[string]any, error) {
		if _, err := FloatAttr(raw, "scalar"); err != nil {
			return nil, errors.Wrapf(err, "parsing %s attrs", name)
		}
		return raw, nil
	}
	return rule
}

func expandDimsRule() *op.Rule {
	return &op.Rule{
		Name:       "expand_dims",
		Arity:      op.FixedArity(1),
		AttrParser: identityAttrParser,
		InferShape: func(attrs map[string]any, inputs []layout.Shape) ([]layout.Shape, error) {
			axis, err := IntAttr(attrs, "axis")
			if err != nil {
				return nil, err
			}
			numNewaxis, err := IntAttr(attrs, "num_newaxis")
			if err != nil {
				return nil, err
			}
			in := inputs[0]
			if axis < 0 || axis > len(in) {
				return nil, errors.Errorf("expand_dims: axis %d out of range for rank %d", axis, len(in))
			}
			out := make(layout.Shape, 0, len(in)+numNewaxis)
			out = append(out, in[:axis]...)
			for i := 0; i < numNewaxis; i++ {
				out = append(out, 1)
			}
			out = append(out, in[axis:]...)
			return []layout.Shape{out}, nil
		},
		InferType: func(_ map[string]any, inputs []utils.DType) ([]utils.DType, error) {
			return []utils.DType{inputs[0]}, nil
		},
		InferLayout: func(_ map[string]any, requestIn, prevInHint, produceOut []layout.Layout) (bool, error) {
			// expand_dims changes rank, so the input layout (if any) cannot
			// simply carry over; treat it as layout-opaque.
			produceOut[0] = layout.Undef
			return true, nil
		},
	}
}

func bnReorderRule() *op.Rule {
	return &op.Rule{
		Name: "bn_reorder",
		Arity: op.FixedArity(1),
		AttrParser: func(raw map[string]any) (map[string]any, error) {
			if _, err := IntAttr(raw, "bn"); err != nil {
				return nil, errors.Wrap(err, "parsing bn_reorder attrs")
			}
			return raw, nil
		},
		InferShape: func(attrs map[string]any, inputs []layout.Shape) ([]layout.Shape, error) {
			bn, err := IntAttr(attrs, "bn")
			if err != nil {
				return nil, err
			}
			in := inputs[0]
			if len(in) != 1 {
				return nil, errors.Errorf("bn_reorder: expected a 1-D input, got rank %d", len(in))
			}
			if bn <= 0 || in[0]%int64(bn) != 0 {
				return nil, errors.Errorf("bn_reorder: block size %d does not divide channel count %d", bn, in[0])
			}
			return []layout.Shape{{in[0] / int64(bn), int64(bn)}}, nil
		},
		InferType: func(_ map[string]any, inputs []utils.DType) ([]utils.DType, error) {
			return []utils.DType{inputs[0]}, nil
		},
		InferLayout: func(_ map[string]any, requestIn, prevInHint, produceOut []layout.Layout) (bool, error) {
			produceOut[0] = layout.Undef
			return true, nil
		},
	}
}

func undefRule() *op.Rule {
	return &op.Rule{
		Name:       "__undef__",
		Arity:      op.FixedArity(1),
		AttrParser: identityAttrParser,
		InferShape: func(_ map[string]any, _ []layout.Shape) ([]layout.Shape, error) {
			return []layout.Shape{nil}, nil
		},
		InferType: func(_ map[string]any, _ []utils.DType) ([]utils.DType, error) {
			return []utils.DType{0}, nil
		},
	}
}

// layoutTransformRule registers the core's own __layout_transform__
// operator (spec.md §6): one input, one output, attributes src_layout and
// dst_layout. Its shape inference is layout.ConvertShape itself.
func layoutTransformRule() *op.Rule {
	return &op.Rule{
		Name:  "__layout_transform__",
		Arity: op.FixedArity(1),
		AttrParser: func(raw map[string]any) (map[string]any, error) {
			for _, key := range []string{"src_layout", "dst_layout"} {
				if _, ok := raw[key]; !ok {
					return nil, errors.Errorf("__layout_transform__: missing attribute %q", key)
				}
			}
			return raw, nil
		},
		InferShape: func(attrs map[string]any, inputs []layout.Shape) ([]layout.Shape, error) {
			src, err := layout.Parse(attrs["src_layout"].(string))
			if err != nil {
				return nil, err
			}
			dst, err := layout.Parse(attrs["dst_layout"].(string))
			if err != nil {
				return nil, err
			}
			out, err := layout.ConvertShape(inputs[0], src, dst)
			if err != nil {
				return nil, err
			}
			return []layout.Shape{out}, nil
		},
		InferType: func(_ map[string]any, inputs []utils.DType) ([]utils.DType, error) {
			return []utils.DType{inputs[0]}, nil
		},
		InferLayout: func(attrs map[string]any, requestIn, prevInHint, produceOut []layout.Layout) (bool, error) {
			dst, err := layout.Parse(attrs["dst_layout"].(string))
			if err != nil {
				return false, err
			}
			produceOut[0] = dst
			return true, nil
		},
	}
}

// --- node-building helpers used by passes to assemble rewrites ---

func node(name, opName string, attrs map[string]any, inputs ...graph.Input) *graph.Node {
	return graph.NewNode(name, opName, attrs, inputs, 1)
}

// AddScalar builds an __add_scalar__ node: x + scalar.
func AddScalar(name string, x graph.Input, scalar float64) *graph.Node {
	return node(name, "__add_scalar__", map[string]any{"scalar": scalar}, x)
}

// RDivScalar builds a __rdiv_scalar__ node: scalar / x.
func RDivScalar(name string, x graph.Input, scalar float64) *graph.Node {
	return node(name, "__rdiv_scalar__", map[string]any{"scalar": scalar}, x)
}

// Negative builds a negative node: -x.
func Negative(name string, x graph.Input) *graph.Node {
	return node(name, "negative", nil, x)
}

// Sqrt builds a sqrt node.
func Sqrt(name string, x graph.Input) *graph.Node {
	return node(name, "sqrt", nil, x)
}

// ElemwiseMul builds an elemwise_mul node: equal-shape a * b.
func ElemwiseMul(name string, a, b graph.Input) *graph.Node {
	return node(name, "elemwise_mul", nil, a, b)
}

// ElemwiseAdd builds an elemwise_add node: equal-shape a + b.
func ElemwiseAdd(name string, a, b graph.Input) *graph.Node {
	return node(name, "elemwise_add", nil, a, b)
}

// BroadcastMul builds a broadcast_mul node.
func BroadcastMul(name string, a, b graph.Input) *graph.Node {
	return node(name, "broadcast_mul", nil, a, b)
}

// BroadcastAdd builds a broadcast_add node.
func BroadcastAdd(name string, a, b graph.Input) *graph.Node {
	return node(name, "broadcast_add", nil, a, b)
}

// ExpandDims builds an expand_dims node inserting numNewaxis size-1 axes
// starting at position axis.
func ExpandDims(name string, x graph.Input, axis, numNewaxis int) *graph.Node {
	return node(name, "expand_dims", map[string]any{"axis": axis, "num_newaxis": numNewaxis}, x)
}

// BNReorder builds a bn_reorder node reshaping a 1-D tensor of size C into
// (C/bn, bn).
func BNReorder(name string, x graph.Input, bn int) *graph.Node {
	return node(name, "bn_reorder", map[string]any{"bn": bn}, x)
}

// Undef builds a sentinel __undef__ node standing in for an output that
// must no longer be read.
func Undef(name string) *graph.Node {
	return node(name, "__undef__", nil)
}

// LayoutTransformNode builds a __layout_transform__ node converting its
// input from src to dst.
func LayoutTransformNode(name string, x graph.Input, src, dst layout.Layout) *graph.Node {
	return node(name, "__layout_transform__", map[string]any{
		"src_layout": src.Name(),
		"dst_layout": dst.Name(),
	}, x)
}
