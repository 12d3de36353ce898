package utils

import "fmt"

// DType is the fixed tensor element-type enumeration shared by every
// per-edge dtype attribute vector in the graph IR.
type DType int

const (
	Float32 DType = iota
	Float64
	Float16
	Uint8
	Int32
	Int8
	Int64
	Int16
	Uint16
	Uint32
	Uint64
)

var dtypeNames = [...]string{
	Float32: "float32",
	Float64: "float64",
	Float16: "float16",
	Uint8:   "uint8",
	Int32:   "int32",
	Int8:    "int8",
	Int64:   "int64",
	Int16:   "int16",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Uint64:  "uint64",
}

// String implements fmt.Stringer.
func (d DType) String() string {
	if d < 0 || int(d) >= len(dtypeNames) {
		return fmt.Sprintf("DType(%d)", int(d))
	}
	return dtypeNames[d]
}

// Valid reports whether d is one of the fixed known codes.
func (d DType) Valid() bool { return d >= 0 && int(d) < len(dtypeNames) }

// ParseDType looks up the DType named by s, the inverse of String.
func ParseDType(s string) (DType, error) {
	for d, name := range dtypeNames {
		if name == s {
			return DType(d), nil
		}
	}
	return 0, fmt.Errorf("unknown dtype %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d DType) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DType) UnmarshalText(text []byte) error {
	parsed, err := ParseDType(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
