package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesResetOnPut(t *testing.T) {
	bp := NewSlices[byte](16)

	buf := bp.Get(0)
	*buf = append(*buf, "hello"...)
	bp.Put(buf)

	again := bp.Get(0)
	assert.Len(t, *again, 0)
}

func TestFloatsGetLength(t *testing.T) {
	var fp *Floats = NewSlices[float64](4)

	small := fp.Get(2)
	require.Len(t, *small, 2)
	fp.Put(small)

	large := fp.Get(64)
	require.Len(t, *large, 64)
	assert.GreaterOrEqual(t, cap(*large), 64)
	fp.Put(large)
}
