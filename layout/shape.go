package layout

// Shape is an ordered sequence of nonnegative dimension sizes. Its length
// equals the axis count of the layout describing it.
type Shape []int64

// Clone returns a copy of s.
func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// Equal reports whether s and other have the same length and elements.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Product returns the product of all dimensions of s (1 for an empty shape).
func (s Shape) Product() int64 {
	p := int64(1)
	for _, d := range s {
		p *= d
	}
	return p
}

// ConvertShape reinterprets src (described by srcLayout) as the equivalent
// shape under dstLayout, per the per-axis factor arithmetic in the layout
// algebra: for each major axis present in srcLayout, the full extent
// (major size times minor block factor, if any) is redistributed between
// dstLayout's major and minor slots for that axis.
//
// ConvertShape returns src unchanged if srcLayout and dstLayout are equal.
// It fails with *IncompatibleLayoutError if either layout is undefined or
// srcLayout is not convertible to dstLayout, and with *InvariantError if a
// declared minor factor disagrees with the shape it describes, or if
// dstLayout's block factor does not evenly divide the full axis extent.
func ConvertShape(src Shape, srcLayout, dstLayout Layout) (Shape, error) {
	if srcLayout.Equal(dstLayout) {
		return src.Clone(), nil
	}
	if !srcLayout.IsDefined() || !dstLayout.IsDefined() {
		return nil, &IncompatibleLayoutError{
			Src: srcLayout.Name(), Dst: dstLayout.Name(),
			Message: "undefined layout",
		}
	}
	if !srcLayout.Convertible(dstLayout) {
		return nil, &IncompatibleLayoutError{
			Src: srcLayout.Name(), Dst: dstLayout.Name(),
			Message: "major axis sets differ",
		}
	}
	if len(src) != srcLayout.Ndim() {
		return nil, &InvariantError{
			Op:      "ConvertShape",
			Message: "shape rank does not match source layout ndim",
		}
	}

	dst := make(Shape, dstLayout.Ndim())
	for axis := byte('A'); axis <= 'Z'; axis++ {
		if !srcLayout.Contains(axis) {
			continue
		}
		sMajPos := srcLayout.PosMajor(axis)
		sMinPos := srcLayout.PosMinor(axis)
		sFactor := srcLayout.Factor(axis)

		sMajor := src[sMajPos]
		minorExtent := int64(1)
		if sMinPos >= 0 {
			minorExtent = src[sMinPos]
			if sFactor > 0 && int64(sFactor) != minorExtent {
				return nil, &InvariantError{
					Op:      "ConvertShape",
					Message: "declared minor factor does not match shape for axis " + string(axis),
				}
			}
		}
		fullSize := sMajor * minorExtent

		dMajPos := dstLayout.PosMajor(axis)
		dMinPos := dstLayout.PosMinor(axis)
		dFactor := dstLayout.Factor(axis)

		if dMinPos >= 0 {
			if dFactor <= 0 {
				return nil, &InvariantError{
					Op:      "ConvertShape",
					Message: "destination minor axis " + string(axis) + " has no concrete factor",
				}
			}
			if int64(dFactor) > fullSize || fullSize%int64(dFactor) != 0 {
				return nil, &InvariantError{
					Op:      "ConvertShape",
					Message: "block factor of " + dstLayout.Name() + " for axis " + string(axis) + " does not evenly divide its extent",
				}
			}
			dst[dMajPos] = fullSize / int64(dFactor)
			dst[dMinPos] = int64(dFactor)
		} else {
			dst[dMajPos] = fullSize
		}
	}
	return dst, nil
}
