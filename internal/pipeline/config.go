package pipeline

// StageName identifies one of the pipeline's three registered pass
// stages, as spelled in a TOML pipeline config's [[stage]] name field.
type StageName string

const (
	StageSimplifyInference StageName = "simplify_inference"
	StagePrePack           StageName = "pre_pack"
	StageLayoutTransform   StageName = "layout_transform"
)

// StageConfig describes one step of a Config, as loaded from TOML:
//
//	[[stage]]
//	name = "layout_transform"
//	layout_inputs = ["NCHW", "OIHW"]
type StageConfig struct {
	Name StageName `toml:"name"`

	// LayoutInputs gives the requested layout name for each of the
	// graph's declared inputs, in Graph.Inputs order. Only meaningful
	// for StageLayoutTransform; if empty there, the Runner falls back
	// to the caller-supplied Attributes.LayoutInputs.
	LayoutInputs []string `toml:"layout_inputs,omitempty"`
}

// Config is an ordered list of stages to run in sequence, the unit a
// pipeline TOML file describes.
type Config struct {
	Stages []StageConfig `toml:"stage"`
}
