// Package op defines the operator registry: a read-only mapping from
// operator name to its rule set (arity, attribute parsing, shape/type/
// layout inference, optional weight pre-packing, optional compute).
package op

import (
	"github.com/pkg/errors"

	"github.com/yzhliu/nnvm/graph"
	"github.com/yzhliu/nnvm/internal/utils"
	"github.com/yzhliu/nnvm/layout"
	"github.com/yzhliu/nnvm/transform"
)

// TensorInfo is the shape/dtype pair a rule's inference callbacks exchange
// about one tensor edge.
type TensorInfo struct {
	Shape layout.Shape
	DType utils.DType
}

// ArityFunc returns the number of outputs a node with the given attributes
// declares. Every built-in operator uses FixedArity; an ArityFunc may also
// vary the count by attribute.
type ArityFunc func(attrs map[string]any) (int, error)

// FixedArity returns an ArityFunc that always reports n, regardless of
// attrs.
func FixedArity(n int) ArityFunc {
	return func(map[string]any) (int, error) { return n, nil }
}

// AttrParser validates and normalizes a raw attribute bag (as decoded from
// e.g. JSON) into the typed form the rest of the rule set expects.
type AttrParser func(raw map[string]any) (map[string]any, error)

// InferShapeFunc computes output shapes from input shapes and attrs.
type InferShapeFunc func(attrs map[string]any, inputs []layout.Shape) ([]layout.Shape, error)

// InferTypeFunc computes output dtypes from input dtypes and attrs.
type InferTypeFunc func(attrs map[string]any, inputs []utils.DType) ([]utils.DType, error)

// InferLayoutFunc implements the per-operator layout inference rule
// described in spec.md §4.6. requestIn arrives prefilled with the layout
// produced by each input's upstream node; the rule may overwrite entries
// with the layout it requires. prevInHint and produceOut arrive prefilled
// with layouts from a previous LayoutTransform run (or layout.Undef) and
// are free to be read or written. The rule must leave every entry either
// layout.Undef or a complete layout, and return false only when no valid
// assignment exists.
type InferLayoutFunc func(attrs map[string]any, requestIn, prevInHint, produceOut []layout.Layout) (bool, error)

// WeightPrepackFunc implements an operator's weight-prepacking rewrite
// (spec.md §4.5): given the node's attributes, its (already-rewritten)
// input edges, and the TensorInfo the parent graph originally attached to
// those edges before rewriting, it returns a replacement sub-DAG, or nil
// to leave the node unchanged.
type WeightPrepackFunc func(attrs map[string]any, inputs []graph.Input, infos []TensorInfo) (*transform.Replacement, error)

// ComputeFunc would evaluate the operator numerically; no pass in this
// module invokes it; runtime execution is out of scope. The capability is
// modeled so the registry's shape mirrors the source's, and so a future
// execution layer has somewhere to plug in.
type ComputeFunc func(attrs map[string]any, inputs []TensorInfo) ([]TensorInfo, error)

// Rule is the full capability set the registry stores for one operator
// name. Arity, AttrParser, InferShape and InferType are required;
// InferLayout, WeightPrepack and Compute are optional (nil means
// "unsupported").
type Rule struct {
	Name          string
	Arity         ArityFunc
	AttrParser    AttrParser
	InferShape    InferShapeFunc
	InferType     InferTypeFunc
	InferLayout   InferLayoutFunc
	WeightPrepack WeightPrepackFunc
	Compute       ComputeFunc
}

// Registry is a process-wide, read-mostly map from operator name to Rule.
// It is meant to be fully populated during program initialization (via
// Register) and treated as frozen afterwards; reads require no locking.
// Each pass takes a *Registry explicitly rather than reaching for a
// package-level singleton, so tests can inject a scoped registry.
type Registry struct {
	rules map[string]*Rule
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]*Rule)}
}

// Register adds rule under rule.Name. It fails if the name is already
// registered or the rule is missing a required capability.
func (r *Registry) Register(rule *Rule) error {
	if rule.Name == "" {
		return errors.New("operator rule must have a non-empty name")
	}
	if _, exists := r.rules[rule.Name]; exists {
		return errors.Errorf("operator %q already registered", rule.Name)
	}
	if rule.Arity == nil || rule.AttrParser == nil || rule.InferShape == nil || rule.InferType == nil {
		return errors.Errorf("operator %q is missing a required capability (arity/attr_parser/infer_shape/infer_type)", rule.Name)
	}
	r.rules[rule.Name] = rule
	return nil
}

// Lookup returns the rule registered for op, or an error if none exists.
func (r *Registry) Lookup(op string) (*Rule, error) {
	rule, ok := r.rules[op]
	if !ok {
		return nil, errors.Errorf("operator %q is not registered", op)
	}
	return rule, nil
}

// Has reports whether op is registered.
func (r *Registry) Has(op string) bool {
	_, ok := r.rules[op]
	return ok
}
