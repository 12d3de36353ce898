package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertShapeIdentity(t *testing.T) {
	nchw := must(Parse("NCHW"))
	s := Shape{1, 64, 56, 56}
	out := must(ConvertShape(s, nchw, nchw))
	assert.True(t, s.Equal(out))
}

func TestConvertShapeBlocking(t *testing.T) {
	nchw := must(Parse("NCHW"))
	nchw16c := must(Parse("NCHW16c"))

	out := must(ConvertShape(Shape{1, 64, 56, 56}, nchw, nchw16c))
	assert.Equal(t, Shape{1, 4, 56, 56, 16}, out)

	back := must(ConvertShape(out, nchw16c, nchw))
	assert.Equal(t, Shape{1, 64, 56, 56}, back)
}

func TestConvertShapeProductPreserved(t *testing.T) {
	nchw := must(Parse("NCHW"))
	nchw8c := must(Parse("NCHW8c"))
	s := Shape{2, 32, 28, 28}
	out := must(ConvertShape(s, nchw, nchw8c))
	assert.Equal(t, s.Product(), out.Product())
}

func TestConvertShapeNonDivisible(t *testing.T) {
	nchw := must(Parse("NCHW"))
	nchw7c := must(Parse("NCHW7c"))
	_, err := ConvertShape(Shape{1, 64, 56, 56}, nchw, nchw7c)
	require.Error(t, err)
}

func TestConvertShapeIncompatible(t *testing.T) {
	nchw := must(Parse("NCHW"))
	ncdhw := must(Parse("NCDHW"))
	assert.False(t, nchw.Convertible(ncdhw))

	_, err := ConvertShape(Shape{1, 64, 56, 56}, nchw, ncdhw)
	require.Error(t, err)
	var ie *IncompatibleLayoutError
	require.ErrorAs(t, err, &ie)
}

func TestConvertShapeUndefined(t *testing.T) {
	nchw := must(Parse("NCHW"))
	_, err := ConvertShape(Shape{1, 64, 56, 56}, nchw, Undef)
	require.Error(t, err)
}
