package nn

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/yzhliu/nnvm/graph"
	"github.com/yzhliu/nnvm/internal/utils"
	"github.com/yzhliu/nnvm/layout"
	"github.com/yzhliu/nnvm/op"
	"github.com/yzhliu/nnvm/transform"
)

func IntListAttr(attrs map[string]any, key string, n int, fallback int) ([]int, error) {
	v, ok := attrs[key]
	if !ok {
		out := make([]int, n)
		for i := range out {
			out[i] = fallback
		}
		return out, nil
	}
	switch l := v.(type) {
	case []int:
		if len(l) != n {
			return nil, errors.Errorf("attribute %q must have length %d", key, n)
		}
		return l, nil
	case []any:
		if len(l) != n {
			return nil, errors.Errorf("attribute %q must have length %d", key, n)
		}
		out := make([]int, n)
		for i, e := range l {
			f, ok := e.(float64)
			if !ok {
				return nil, errors.Errorf("attribute %q element %d has unexpected type %T", key, i, e)
			}
			out[i] = int(f)
		}
		return out, nil
	default:
		return nil, errors.Errorf("attribute %q has unexpected type %T", key, v)
	}
}

func conv2DAttrParser(raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	if _, ok := out["layout"]; !ok {
		out["layout"] = "NCHW"
	}
	if _, err := IntAttr(out, "channels"); err != nil {
		return nil, errors.Wrap(err, "parsing conv2d attrs")
	}
	if _, err := IntListAttr(out, "kernel_size", 2, 0); err != nil {
		return nil, errors.Wrap(err, "parsing conv2d attrs")
	}
	return out, nil
}

// conv2DRule registers a 2-D convolution over a fixed "NCHW"-family
// layout declared by its "layout" attribute; its InferLayout always
// requests that declared layout regardless of the producer's, and its
// output layout is the "out_layout" attribute if set (modeling a pass
// that has already pinned a blocked output layout such as "NCHW16c").
func conv2DRule() *op.Rule {
	return &op.Rule{
		Name:       "conv2d",
		Arity:      op.FixedArity(1),
		AttrParser: conv2DAttrParser,
		InferShape: func(attrs map[string]any, inputs []layout.Shape) ([]layout.Shape, error) {
			data := inputs[0]
			if len(data) != 4 {
				return nil, errors.Errorf("conv2d: expected a rank-4 data input, got rank %d", len(data))
			}
			channels, err := IntAttr(attrs, "channels")
			if err != nil {
				return nil, err
			}
			kernel, err := IntListAttr(attrs, "kernel_size", 2, 0)
			if err != nil {
				return nil, err
			}
			strides, err := IntListAttr(attrs, "strides", 2, 1)
			if err != nil {
				return nil, err
			}
			padding, err := IntListAttr(attrs, "padding", 2, 0)
			if err != nil {
				return nil, err
			}
			n, _, h, w := data[0], data[1], data[2], data[3]
			hOut := (h+2*int64(padding[0])-int64(kernel[0]))/int64(strides[0]) + 1
			wOut := (w+2*int64(padding[1])-int64(kernel[1]))/int64(strides[1]) + 1
			return []layout.Shape{{n, int64(channels), hOut, wOut}}, nil
		},
		InferType: func(_ map[string]any, inputs []utils.DType) ([]utils.DType, error) {
			return []utils.DType{inputs[0]}, nil
		},
		InferLayout: func(attrs map[string]any, requestIn, prevInHint, produceOut []layout.Layout) (bool, error) {
			declared, err := layout.Parse(attrs["layout"].(string))
			if err != nil {
				return false, err
			}
			requestIn[0] = declared
			out := declared
			if outLayoutName, ok := attrs["out_layout"]; ok {
				out, err = layout.Parse(outLayoutName.(string))
				if err != nil {
					return false, err
				}
			}
			produceOut[0] = out
			return true, nil
		},
		WeightPrepack: conv2DWeightPrepack,
	}
}

// conv2DWeightPrepack demonstrates spec.md §4.5's weight-prepacking
// rewrite: when attrs requests a channel block factor, the node's weight
// input (index 1) is routed through a __layout_transform__ that reorders
// it from "OIHW" into a blocked "OIHW<bn>i<bn>o" layout, and the
// convolution itself is cloned with an out_layout attribute recording the
// packed form. Returns nil (no rewrite) when weight_pack_block is unset.
func conv2DWeightPrepack(attrs map[string]any, inputs []graph.Input, infos []op.TensorInfo) (*transform.Replacement, error) {
	raw, ok := attrs["weight_pack_block"]
	if !ok {
		return nil, nil
	}
	bn, err := IntAttr(map[string]any{"weight_pack_block": raw}, "weight_pack_block")
	if err != nil {
		return nil, errors.Wrap(err, "conv2d weight prepack")
	}
	if bn <= 0 {
		return nil, errors.Errorf("conv2d weight prepack: weight_pack_block must be positive, got %d", bn)
	}
	if len(inputs) != 2 || len(infos) != 2 {
		return nil, errors.Errorf("conv2d weight prepack: expected 2 inputs, got %d", len(inputs))
	}
	if len(infos[1].Shape) != 4 {
		return nil, errors.Errorf("conv2d weight prepack: expected a rank-4 weight, got rank %d", len(infos[1].Shape))
	}

	srcLayout := layout.MustParse("OIHW")
	dstLayout := layout.MustParse(fmt.Sprintf("OIHW%di%do", bn, bn))

	weightPack := LayoutTransformNode(fmt.Sprintf("%s_weight_pack", srcLayout.Name()), inputs[1], srcLayout, dstLayout)

	packedAttrs := make(map[string]any, len(attrs)+1)
	for k, v := range attrs {
		packedAttrs[k] = v
	}
	packedAttrs["out_layout"] = dstLayout.Name()
	delete(packedAttrs, "weight_pack_block")

	packedConv := graph.NewNode("conv2d_packed", "conv2d", packedAttrs,
		[]graph.Input{inputs[0], {Node: weightPack.ID, Output: 0}}, 1)

	return &transform.Replacement{
		Nodes:   []*graph.Node{weightPack, packedConv},
		Outputs: []graph.Input{{Node: packedConv.ID, Output: 0}},
	}, nil
}

func reluRule() *op.Rule {
	return &op.Rule{
		Name:       "relu",
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
