package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDTypeRoundTrip(t *testing.T) {
	for d := Float32; d <= Uint64; d++ {
		parsed, err := ParseDType(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, parsed)
	}
}

func TestParseDTypeUnknown(t *testing.T) {
	_, err := ParseDType("bfloat16")
	assert.Error(t, err)
}
