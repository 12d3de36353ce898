// Package layout implements the small symbolic language over axis letters
// and block factors used to describe tensor memory layouts (e.g. "NCHW16c"),
// together with convertibility, completion, and shape-reinterpretation rules.
//
// A layout string is a sequence of tokens, each either an uppercase "major"
// axis letter (A-Z) or a lowercase "minor" axis letter (a-z) preceded by a
// block factor (a positive integer, or "_" for an unspecified/symbolic
// factor). A minor axis 'x' denotes a blocked sub-dimension of its major
// counterpart 'X', which must appear earlier in the string. The reserved
// literal "__undef__" denotes the undefined layout.
package layout

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const undefName = "__undef__"

const numAxisLetters = 26

// Undef is the sentinel undefined layout. It compares equal only to itself.
var Undef = Layout{name: undefName}

// Layout is an immutable value describing the memory layout of a tensor: an
// ordered sequence of axis letters plus, for each of the 26 possible axis
// letters, its major position, minor position, and minor block factor.
//
// The zero value is not a valid Layout; use Parse or Undef.
type Layout struct {
	name string

	// axes is the simplified axis sequence in layout order, e.g. "NCHWc" for
	// "NCHW16c". Nil for Undef.
	axes []byte

	// majorPos[c-'A'] is the position of major axis c in axes, or -1.
	majorPos [numAxisLetters]int8
	// minorPos[c-'a'] is the position of minor axis c in axes, or -1.
	minorPos [numAxisLetters]int8
	// minorFactor[c-'a'] is 0 if axis c has no minor, -1 if symbolic, >0 if concrete.
	minorFactor [numAxisLetters]int32
}

// IsMajorAxis reports whether c is an uppercase axis letter (A-Z).
func IsMajorAxis(c byte) bool { return c >= 'A' && c <= 'Z' }

// IsMinorAxis reports whether c is a lowercase axis letter (a-z).
func IsMinorAxis(c byte) bool { return c >= 'a' && c <= 'z' }

// ToMajorAxis returns the major (uppercase) letter for c's axis family.
func ToMajorAxis(c byte) byte {
	if IsMinorAxis(c) {
		return c - 'a' + 'A'
	}
	return c
}

// ToMinorAxis returns the minor (lowercase) letter for c's axis family.
func ToMinorAxis(c byte) byte {
	if IsMajorAxis(c) {
		return c - 'A' + 'a'
	}
	return c
}

func familyIndex(c byte) int {
	if IsMajorAxis(c) {
		return int(c - 'A')
	}
	return int(c - 'a')
}

// Parse parses a layout string into a Layout.
//
// It fails with a *ParseError when: a digit sequence is not immediately
// followed by a lowercase letter; a lowercase letter appears without a
// preceding factor; any letter appears twice; a minor letter appears
// without its major counterpart anywhere in the string; or any character
// outside the grammar appears. The reserved literal "__undef__" always
// parses to Undef.
func Parse(s string) (Layout, error) {
	if s == undefName {
		return Undef, nil
	}
	if s == "" {
		return Layout{}, &ParseError{Layout: s, Reason: errEmptyLayout}
	}

	var l Layout
	for i := range l.majorPos {
		l.majorPos[i] = -1
		l.minorPos[i] = -1
	}
	l.axes = make([]byte, 0, len(s))

	const noFactor = -2
	factor := noFactor
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			d := int(c - '0')
			switch factor {
			case noFactor:
				factor = d
			case -1:
				return Layout{}, &ParseError{Layout: s, Reason: errInvalidCharacter}
			default:
				factor = factor*10 + d
			}
		case c == '_':
			if factor != noFactor {
				return Layout{}, &ParseError{Layout: s, Reason: errInvalidCharacter}
			}
			factor = -1
		case IsMajorAxis(c):
			if factor != noFactor {
				return Layout{}, &ParseError{Layout: s, Reason: errDanglingFactor}
			}
			idx := familyIndex(c)
			if l.majorPos[idx] >= 0 {
				return Layout{}, &ParseError{Layout: s, Reason: errDuplicateAxis}
			}
			l.majorPos[idx] = int8(len(l.axes))
			l.axes = append(l.axes, c)
		case IsMinorAxis(c):
			if factor == noFactor {
				return Layout{}, &ParseError{Layout: s, Reason: errMinorWithoutFactor}
			}
			idx := familyIndex(c)
			if l.minorPos[idx] >= 0 {
				return Layout{}, &ParseError{Layout: s, Reason: errDuplicateAxis}
			}
			l.minorPos[idx] = int8(len(l.axes))
			l.minorFactor[idx] = int32(factor)
			l.axes = append(l.axes, c)
			factor = noFactor
		default:
			return Layout{}, &ParseError{Layout: s, Reason: errInvalidCharacter}
		}
	}
	if factor != noFactor {
		return Layout{}, &ParseError{Layout: s, Reason: errDanglingFactor}
	}
	if len(l.axes) == 0 {
		return Layout{}, &ParseError{Layout: s, Reason: errEmptyLayout}
	}
	for _, axis := range l.axes {
		if IsMinorAxis(axis) && l.majorPos[familyIndex(axis)] < 0 {
			return Layout{}, &ParseError{Layout: s, Reason: errMinorWithoutMajor}
		}
	}

	l.name = l.serialize()
	return l, nil
}

// MustParse parses s, panicking on error. Intended for package-level
// constants and tests where the layout string is known to be valid.
func MustParse(s string) Layout {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}

func (l Layout) serialize() string {
	if len(l.axes) == 0 {
		return undefName
	}
	var sb strings.Builder
	sb.Grow(len(l.axes) * 3)
	for _, axis := range l.axes {
		if IsMinorAxis(axis) {
			f := l.minorFactor[familyIndex(axis)]
			if f == -1 {
				sb.WriteByte('_')
			} else {
				sb.WriteString(strconv.FormatInt(int64(f), 10))
			}
		}
		sb.WriteByte(axis)
	}
	return sb.String()
}

// Name returns the canonical layout name, or "__undef__" for Undef.
func (l Layout) Name() string { return l.name }

// String implements fmt.Stringer.
func (l Layout) String() string { return l.name }

// IsDefined reports whether l is not the undefined layout.
func (l Layout) IsDefined() bool { return l.name != "" && l.name != undefName }

// Equal reports whether l and other denote the same canonical layout.
// Undef compares equal only to Undef.
func (l Layout) Equal(other Layout) bool { return l.name == other.name }

// Ndim returns the number of axes (length of the simplified sequence).
func (l Layout) Ndim() int { return len(l.axes) }

// Contains reports whether axis (major or minor) occurs in l.
func (l Layout) Contains(axis byte) bool {
	if !l.IsDefined() {
		return false
	}
	if IsMajorAxis(axis) {
		return l.majorPos[familyIndex(axis)] >= 0
	}
	if IsMinorAxis(axis) {
		return l.minorPos[familyIndex(axis)] >= 0
	}
	return false
}

// PosMajor returns the sequence index of the major occurrence of axis's
// family, or -1 if absent.
func (l Layout) PosMajor(axis byte) int {
	if !l.IsDefined() {
		return -1
	}
	return int(l.majorPos[familyIndex(axis)])
}

// PosMinor returns the sequence index of the minor occurrence of axis's
// family, or -1 if absent.
func (l Layout) PosMinor(axis byte) int {
	if !l.IsDefined() {
		return -1
	}
	return int(l.minorPos[familyIndex(axis)])
}

// Factor returns the block factor of the minor axis in axis's family: 0 if
// none, -1 if unspecified/symbolic, >0 if concrete.
func (l Layout) Factor(axis byte) int32 {
	if !l.IsDefined() {
		return 0
	}
	return l.minorFactor[familyIndex(axis)]
}

// At returns the token (factor-prefixed for minor axes) at sequence
// position i, e.g. "16c" or "N".
func (l Layout) At(i int) string {
	axis := l.axes[i]
	if IsMinorAxis(axis) {
		f := l.minorFactor[familyIndex(axis)]
		if f == -1 {
			return "_" + string(axis)
		}
		return strconv.FormatInt(int64(f), 10) + string(axis)
	}
	return string(axis)
}

// Convertible reports whether l and to are both defined and share the same
// set of major axis letters. Block factors and axis order may differ.
func (l Layout) Convertible(to Layout) bool {
	if !l.IsDefined() || !to.IsDefined() {
		return false
	}
	for i := 0; i < numAxisLetters; i++ {
		if (l.majorPos[i] >= 0) != (to.majorPos[i] >= 0) {
			return false
		}
	}
	return true
}

// Compatible reports whether l and other have equal simplified axis
// sequences, ignoring factor values.
func (l Layout) Compatible(other Layout) bool {
	if len(l.axes) != len(other.axes) {
		return false
	}
	for i := range l.axes {
		if l.axes[i] != other.axes[i] {
			return false
		}
	}
	return true
}

// IsComplete reports whether l is defined and has no symbolic (-1) factor
// remaining.
func (l Layout) IsComplete() bool {
	if !l.IsDefined() {
		return false
	}
	for _, axis := range l.axes {
		if IsMinorAxis(axis) && l.minorFactor[familyIndex(axis)] == -1 {
			return false
		}
	}
	return true
}

// CompleteAxisFactor returns a Layout identical to l except that every
// symbolic (-1) factor is replaced by k and the canonical name rebuilt. It
// is a no-op (returns l unchanged) if l is already complete or k<=0.
func (l Layout) CompleteAxisFactor(k int32) Layout {
	if k <= 0 || l.IsComplete() || !l.IsDefined() {
		return l
	}
	out := l
	out.axes = append([]byte(nil), l.axes...)
	for _, axis := range out.axes {
		if IsMinorAxis(axis) {
			idx := familyIndex(axis)
			if out.minorFactor[idx] == -1 {
				out.minorFactor[idx] = k
			}
		}
	}
	out.name = out.serialize()
	return out
}

// Sublayout returns the substring of the axis sequence [pos, pos+ln) with
// factors preserved. Returns Undef if the range is out of bounds.
func (l Layout) Sublayout(pos, ln int) Layout {
	if pos < 0 || ln < 0 || pos+ln > len(l.axes) {
		return Undef
	}
	var out Layout
	for i := range out.majorPos {
		out.majorPos[i] = -1
		out.minorPos[i] = -1
	}
	out.axes = append([]byte(nil), l.axes[pos:pos+ln]...)
	for i, axis := range out.axes {
		idx := familyIndex(axis)
		if IsMajorAxis(axis) {
			out.majorPos[idx] = int8(i)
		} else {
			out.minorPos[idx] = int8(i)
			out.minorFactor[idx] = l.minorFactor[idx]
		}
	}
	out.name = out.serialize()
	return out
}

// Split returns a new layout identical to l except that a minor axis x
// (the lowercase of axis) is inserted at sequence position pos with block
// factor n. It requires that axis is a major letter present in l and that
// its minor counterpart is absent.
func (l Layout) Split(axis byte, pos int, n int32) (Layout, error) {
	if !IsMajorAxis(axis) {
		return Layout{}, &InvariantError{Op: "Split", Message: "axis to split must be a major axis letter"}
	}
	if !l.Contains(axis) {
		return Layout{}, &InvariantError{Op: "Split", Message: "axis " + string(axis) + " not present in " + l.name}
	}
	minor := ToMinorAxis(axis)
	if l.Contains(minor) {
		return Layout{}, &InvariantError{Op: "Split", Message: "axis " + string(axis) + " already split in " + l.name}
	}
	if n <= 0 {
		return Layout{}, &InvariantError{Op: "Split", Message: "split size must be positive"}
	}
	if pos < 0 || pos > len(l.axes) {
		return Layout{}, &InvariantError{Op: "Split", Message: "insert position out of range"}
	}

	var sb strings.Builder
	for i := 0; i <= len(l.axes); i++ {
		if i == pos {
			sb.WriteString(strconv.FormatInt(int64(n), 10))
			sb.WriteByte(minor)
		}
		if i == len(l.axes) {
			break
		}
		sb.WriteString(l.At(i))
	}
	return Parse(sb.String())
}

// Concat returns the textual concatenation of l and other's names,
// re-parsed. It fails if the result contains a duplicate axis letter.
func (l Layout) Concat(other Layout) (Layout, error) {
	return Parse(l.name + other.name)
}

// MarshalText implements encoding.TextMarshaler so a Layout serializes to
// its canonical name, e.g. in JSON or TOML attribute payloads.
func (l Layout) MarshalText() ([]byte, error) { return []byte(l.name), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Layout) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return errors.Wrap(err, "unmarshal layout")
	}
	*l = parsed
	return nil
}
