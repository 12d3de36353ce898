package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func must[T any](value T, err error) T {
	if err != nil {
		panic(err)
	}
	return value
}

func TestParse(t *testing.T) {
	t.Run("simple majors", func(t *testing.T) {
		l := must(Parse("NCHW"))
		assert.Equal(t, 4, l.Ndim())
		assert.Equal(t, "NCHW", l.Name())
		assert.True(t, l.Contains('N'))
		assert.Equal(t, 1, l.PosMajor('C'))
	})

	t.Run("with minor block", func(t *testing.T) {
		l := must(Parse("NCHW16c"))
		assert.Equal(t, 5, l.Ndim())
		assert.Equal(t, 1, l.PosMajor('C'))
		assert.Equal(t, 4, l.PosMinor('C'))
		assert.EqualValues(t, 16, l.Factor('C'))
	})

	t.Run("symbolic factor", func(t *testing.T) {
		l := must(Parse("NCHW_c"))
		assert.EqualValues(t, -1, l.Factor('C'))
		assert.False(t, l.IsComplete())
	})

	t.Run("undef literal", func(t *testing.T) {
		l := must(Parse("__undef__"))
		assert.True(t, l.Equal(Undef))
		assert.False(t, l.IsDefined())
	})

	t.Run("round trips through serialize", func(t *testing.T) {
		for _, s := range []string{"NCHW", "NCHW16c", "NCHW_c", "NCW8c4w"} {
			l := must(Parse(s))
			assert.Equal(t, s, l.Name())
			l2 := must(Parse(l.Name()))
			assert.True(t, l.Equal(l2))
		}
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := Parse("")
		require.Error(t, err)
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
	})

	t.Run("rejects dangling factor", func(t *testing.T) {
		_, err := Parse("NCHW16")
		require.Error(t, err)
	})

	t.Run("rejects minor without factor", func(t *testing.T) {
		_, err := Parse("NCHWc")
		require.Error(t, err)
	})

	t.Run("rejects duplicate axis", func(t *testing.T) {
		_, err := Parse("NCHWN")
		require.Error(t, err)
	})

	t.Run("rejects minor without major", func(t *testing.T) {
		_, err := Parse("NHW16c")
		require.Error(t, err)
	})

	t.Run("rejects invalid character", func(t *testing.T) {
		_, err := Parse("NCH-W")
		require.Error(t, err)
	})
}

func TestConvertible(t *testing.T) {
	nchw := must(Parse("NCHW"))
	nhwc := must(Parse("NHWC"))
	nchwc := must(Parse("NCHW16c"))
	ncdhw := must(Parse("NCDHW"))

	assert.True(t, nchw.Convertible(nhwc))
	assert.True(t, nchw.Convertible(nchwc))
	assert.False(t, nchw.Convertible(ncdhw))
	assert.False(t, nchw.Convertible(Undef))
}

func TestCompatible(t *testing.T) {
	a := must(Parse("NCHW16c"))
	b := must(Parse("NCHW8c"))
	assert.True(t, a.Compatible(b))

	c := must(Parse("NHWC"))
	assert.False(t, a.Compatible(c))
}

func TestCompleteAxisFactor(t *testing.T) {
	l := must(Parse("NCHW_c"))
	completed := l.CompleteAxisFactor(8)
	assert.Equal(t, "NCHW8c", completed.Name())
	assert.True(t, completed.IsComplete())

	// already-complete layout is unaffected.
	nc := must(Parse("NCHW16c"))
	assert.Equal(t, "NCHW16c", nc.CompleteAxisFactor(4).Name())
}

func TestSublayout(t *testing.T) {
	l := must(Parse("NCHW16c"))
	sub := l.Sublayout(1, 2)
	assert.Equal(t, "CH", sub.Name())

	outOfRange := l.Sublayout(3, 10)
	assert.True(t, outOfRange.Equal(Undef))
}

func TestSplit(t *testing.T) {
	l := must(Parse("NCHW"))
	split := must(l.Split('C', 4, 16))
	assert.Equal(t, "NCHW16c", split.Name())

	_, err := l.Split('c', 0, 16)
	require.Error(t, err)

	_, err = l.Split('N', 0, 0)
	require.Error(t, err)

	already := must(Parse("NCHW16c"))
	_, err = already.Split('C', 1, 4)
	require.Error(t, err)
}

func TestConcat(t *testing.T) {
	a := must(Parse("NC"))
	b := must(Parse("HW"))
	joined := must(a.Concat(b))
	assert.Equal(t, "NCHW", joined.Name())

	_, err := a.Concat(a)
	require.Error(t, err)
}

func TestMarshalText(t *testing.T) {
	l := must(Parse("NCHW16c"))
	text := must(l.MarshalText())
	assert.Equal(t, "NCHW16c", string(text))

	var l2 Layout
	require.NoError(t, l2.UnmarshalText([]byte("NHWC")))
	assert.Equal(t, "NHWC", l2.Name())

	var l3 Layout
	require.Error(t, l3.UnmarshalText([]byte("bad-layout")))
}
