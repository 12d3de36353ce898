package nn

import "github.com/yzhliu/nnvm/op"

// RegisterAll populates r with every built-in operator rule this module
// ships: the two SimplifyInference targets (batch_norm, dropout), the
// elementwise helpers the SimplifyInference affine rewrite and the
// blocked batch-norm variant are built from, conv2d (with weight
// pre-packing and a fixed declared layout) and relu, and the core's own
// __undef__ and __layout_transform__ operators.
func RegisterAll(r *op.Registry) error {
	rules := []*op.Rule{
		batchNormRule(),
		dropoutRule(),
		conv2DRule(),
		reluRule(),
		unaryRule("negative"),
		unaryRule("sqrt"),
		scalarRule("__add_scalar__"),
		scalarRule("__rdiv_scalar__"),
		binaryElementwiseRule("elemwise_mul"),
		binaryElementwiseRule("elemwise_add"),
		broadcastRule("broadcast_mul"),
		broadcastRule("broadcast_add"),
		expandDimsRule(),
		bnReorderRule(),
		undefRule(),
		layoutTransformRule(),
	}
	for _, rule := range rules {
		if err := r.Register(rule); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a fresh registry with every built-in rule
// registered, the default starting point for a pipeline.
func NewRegistry() (*op.Registry, error) {
	r := op.NewRegistry()
	if err := RegisterAll(r); err != nil {
		return nil, err
	}
	return r, nil
}
