// Package nn registers the built-in operator rules (arity, attribute
// parsing, shape/type/layout inference, and weight pre-packing) that the
// SimplifyInference, PrePack and LayoutTransform passes rewrite graphs
// against, and exposes node-building helpers for the small elementwise
// operators those passes assemble affine rewrites out of.
package nn

import (
	"github.com/pkg/errors"

	"github.com/yzhliu/nnvm/internal/utils"
	"github.com/yzhliu/nnvm/layout"
)

func sameShape(name string, shapes ...layout.Shape) (layout.Shape, error) {
	if len(shapes) == 0 {
		return nil, errors.Errorf("%s: no inputs", name)
	}
	first := shapes[0]
	for _, s := range shapes[1:] {
		if !s.Equal(first) {
			return nil, errors.Errorf("%s: input shapes disagree: %v vs %v", name, first, s)
		}
	}
	return first.Clone(), nil
}

func sameDType(name string, dtypes ...utils.DType) (utils.DType, error) {
	if len(dtypes) == 0 {
		return 0, errors.Errorf("%s: no inputs", name)
	}
	first := dtypes[0]
	for _, d := range dtypes[1:] {
		if d != first {
			return 0, errors.Errorf("%s: input dtypes disagree: %s vs %s", name, first, d)
		}
	}
	return first, nil
}

// broadcastShapes implements numpy-style broadcasting: shapes are aligned
// from the right, and at each position the sizes must be equal or one of
// them must be 1.
func broadcastShapes(name string, a, b layout.Shape) (layout.Shape, error) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make(layout.Shape, n)
	for i := 0; i < n; i++ {
		var da, db int64 = 1, 1
		if idx := len(a) - n + i; idx >= 0 {
			da = a[idx]
		}
		if idx := len(b) - n + i; idx >= 0 {
			db = b[idx]
		}
		switch {
		case da == db:
			out[i] = da
		case da == 1:
			out[i] = db
		case db == 1:
			out[i] = da
		default:
			return nil, errors.Errorf("%s: shapes %v and %v are not broadcast-compatible", name, a, b)
		}
	}
	return out, nil
}

// passthroughLayout copies the producer layout of the single input to the
// single output, the rule shared by every elementwise unary operator
// (spec.md §4.6: "elementwise unary and reduce ops copy input layout to
// output").
func passthroughLayout(requestIn, _, produceOut []layout.Layout) (bool, error) {
	produceOut[0] = requestIn[0]
	return true, nil
}

// binaryElementwiseLayout implements spec.md §4.6's tie-break for
// elementwise binary ops: undef on one side adopts the other; equal sides
// pass through; otherwise prefer lhs if rhs converts to it, else rhs if
// lhs converts to it, else fail.
func binaryElementwiseLayout(requestIn, _, produceOut []layout.Layout) (bool, error) {
	lhs, rhs := requestIn[0], requestIn[1]
	var result layout.Layout
	switch {
	case !lhs.IsDefined():
		result = rhs
	case !rhs.IsDefined():
		result = lhs
	case lhs.Equal(rhs):
		result = lhs
	case rhs.Convertible(lhs):
		result = lhs
	case lhs.Convertible(rhs):
		result = rhs
	default:
		return false, nil
	}
	requestIn[0] = result
	requestIn[1] = result
	produceOut[0] = result
	return true, nil
}
