package nn

import (
	"github.com/pkg/errors"

	"github.com/yzhliu/nnvm/internal/utils"
	"github.com/yzhliu/nnvm/layout"
	"github.com/yzhliu/nnvm/op"
)

func batchNormAttrParser(raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	if _, ok := out["epsilon"]; !ok {
		out["epsilon"] = 1e-5
	}
	if _, ok := out["axis"]; !ok {
		out["axis"] = 1
	}
	if _, ok := out["scale"]; !ok {
		out["scale"] = true
	}
	if _, ok := out["center"]; !ok {
		out["center"] = true
	}
	if _, err := FloatAttr(out, "epsilon"); err != nil {
		return nil, errors.Wrap(err, "parsing batch_norm attrs")
	}
	if _, err := IntAttr(out, "axis"); err != nil {
		return nil, errors.Wrap(err, "parsing batch_norm attrs")
	}
	return out, nil
}

// batchNormRule registers batch_norm(data, gamma, beta, moving_mean,
// moving_var) with 3 outputs (out, running_mean, running_var), matching
// the training-form signature SimplifyInference unpacks (spec.md §4.4).
func batchNormRule() *op.Rule {
	return &op.Rule{
		Name:       "batch_norm",
		Arity:      op.FixedArity(3),
		AttrParser: batchNormAttrParser,
		InferShape: func(_ map[string]any, inputs []layout.Shape) ([]layout.Shape, error) {
			if len(inputs) != 5 {
				return nil, errors.Errorf("batch_norm: expected 5 inputs, got %d", len(inputs))
			}
			data, gamma := inputs[0], inputs[3]
			return []layout.Shape{data.Clone(), gamma.Clone(), gamma.Clone()}, nil
		},
		InferType: func(_ map[string]any, inputs []utils.DType) ([]utils.DType, error) {
			return []utils.DType{inputs[0], inputs[0], inputs[0]}, nil
		},
		InferLayout: func(_ map[string]any, requestIn, prevInHint, produceOut []layout.Layout) (bool, error) {
			produceOut[0] = requestIn[0]
			produceOut[1] = layout.Undef
			produceOut[2] = layout.Undef
			return true, nil
		},
	}
}

func dropoutAttrParser(raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	if _, ok := out["p"]; !ok {
		out["p"] = 0.5
	}
	if _, err := FloatAttr(out, "p"); err != nil {
		return nil, errors.Wrap(err, "parsing dropout attrs")
	}
	return out, nil
}

// dropoutRule registers dropout(x) with 2 outputs (y, mask).
// SimplifyInference replaces it with identity on x and __undef__ on mask.
func dropoutRule() *op.Rule {
	return &op.Rule{
		Name:       "dropout",
		Arity:      op.FixedArity(2),
		AttrParser: dropoutAttrParser,
		InferShape: func(_ map[string]any, inputs []layout.Shape) ([]layout.Shape, error) {
			return []layout.Shape{inputs[0].Clone(), inputs[0].Clone()}, nil
		},
		InferType: func(_ map[string]any, inputs []utils.DType) ([]utils.DType, error) {
			return []utils.DType{inputs[0], inputs[0]}, nil
		},
		InferLayout: func(_ map[string]any, requestIn, prevInHint, produceOut []layout.Layout) (bool, error) {
			produceOut[0] = requestIn[0]
			produceOut[1] = layout.Undef
			return true, nil
		},
	}
}
