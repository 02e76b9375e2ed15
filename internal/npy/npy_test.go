package npy

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Captured endpoint input and output, as written by numpy.save.
const (
	capturedInput  = "k05VTVBZAQB2AHsnZGVzY3InOiAnPGY4JywgJ2ZvcnRyYW5fb3JkZXInOiBGYWxzZSwgJ3NoYXBlJzogKDEsIDIzKSwgfSAgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgIArmXIqryr7LP+ZciqvKvss/3AcgtYmT7D/cByC1iZPsP9wHILWJk+w/uRluwOeHYT+Y3ZOHhVroPx2s/3OYL7c/fjUHCObooT8AAAAAAAAAAGEyVTAqqUM/wOyePCzUij8w+grSjEWDPyKJXkax3JI/MPoK0oxFgz/mXIqryr7LPyKJXkax3JI/MPoK0oxFgz/MJYbydMrRPyKJXkax3JI/IoleRrHckj8AAAAAAADwPx2s/3OYL7c/"
	capturedOutput = "k05VTVBZAQB2AHsnZGVzY3InOiAnPGY4JywgJ2ZvcnRyYW5fb3JkZXInOiBGYWxzZSwgJ3NoYXBlJzogKDEsKSwgfSAgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgIAoAAAAAAADwPw=="
)

func TestDecodeCapturedInput(t *testing.T) {
	a, err := DecodeBase64(capturedInput)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 23}, a.Shape)
	require.Len(t, a.Data, 23)
	assert.InDelta(t, 0.21676, a.Data[0], 1e-12)
	assert.InDelta(t, 0.89301, a.Data[2], 1e-12)
	assert.InDelta(t, 0.27798198, a.Data[18], 1e-8)
	assert.Equal(t, 1.0, a.Data[21])
}

func TestDecodeCapturedOutput(t *testing.T) {
	a, err := DecodeBase64(capturedOutput)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, a.Shape)
	assert.Equal(t, []float64{1}, a.Data)
}

func TestEncodeMatchesNumpy(t *testing.T) {
	a, err := DecodeBase64(capturedInput)
	require.NoError(t, err)

	again, err := EncodeBase64(a)
	require.NoError(t, err)
	assert.Equal(t, capturedInput, again)

	out, err := EncodeBase64(Array{Shape: []int{1}, Data: []float64{1}})
	require.NoError(t, err)
	assert.Equal(t, capturedOutput, out)
}

func TestHeaderIsAligned(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Row([]float64{0.5, 0.25})))

	data := buf.Bytes()
	headerLen := int(data[8]) | int(data[9])<<8
	assert.Zero(t, (10+headerLen)%64)
	assert.Equal(t, byte('\n'), data[10+headerLen-1])
	assert.Len(t, data, 10+headerLen+16)
}

func TestWriteShapeMismatch(t *testing.T) {
	err := Write(&bytes.Buffer{}, Array{Shape: []int{2, 2}, Data: []float64{1}})
	assert.Error(t, err)
}

func TestReadRejects(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("not an npy file")))
	assert.True(t, errors.Is(err, ErrFormat))

	_, err = Read(bytes.NewReader(nil))
	assert.Error(t, err)

	_, err = DecodeBase64("%%%")
	assert.Error(t, err)
}

func TestEmptyRow(t *testing.T) {
	s, err := EncodeBase64(Row(nil))
	require.NoError(t, err)

	a, err := DecodeBase64(s)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, a.Shape)
	assert.Empty(t, a.Data)
}

func rawHeader(major byte, header string) []byte {
	var buf bytes.Buffer
	buf.Write(magic)
	buf.Write([]byte{major, 0})
	if major == 1 {
		_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	} else {
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(header)))
	}
	buf.WriteString(header)
	return buf.Bytes()
}

func TestReadRejectsOversizedShapes(t *testing.T) {
	tests := []struct {
		name  string
		shape string
	}{
		{name: "product overflows to negative", shape: "(4611686018427387904, 3)"},
		{name: "product wraps to zero", shape: "(4611686018427387904, 4)"},
		{name: "huge without overflow", shape: "(1000000, 1000000)"},
		{name: "one dimension past limit", shape: "(16777217,)"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			header := "{'descr': '<f8', 'fortran_order': False, 'shape': " + tc.shape + ", }\n"
			require.NotPanics(t, func() {
				_, err := Read(bytes.NewReader(rawHeader(1, header)))
				assert.True(t, errors.Is(err, ErrFormat), "got %v", err)
			})
		})
	}
}

func TestReadTruncatedData(t *testing.T) {
	header := "{'descr': '<f8', 'fortran_order': False, 'shape': (4096, 4096), }\n"
	payload := append(rawHeader(1, header), make([]byte, 64)...)

	_, err := Read(bytes.NewReader(payload))
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestReadZeroDimension(t *testing.T) {
	header := "{'descr': '<f8', 'fortran_order': False, 'shape': (0, 4611686018427387904), }\n"

	a, err := Read(bytes.NewReader(rawHeader(1, header)))
	require.NoError(t, err)
	assert.Empty(t, a.Data)
}

func TestReadRejectsHugeHeaderLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(magic)
	buf.Write([]byte{2, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint32(math.MaxUint32))

	_, err := Read(&buf)
	assert.True(t, errors.Is(err, ErrFormat))
}

func TestReadFloat32(t *testing.T) {
	header := "{'descr': '<f4', 'fortran_order': False, 'shape': (2,), }\n"
	payload := rawHeader(1, header)
	payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(0.5))
	payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(-2))

	a, err := Read(bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -2}, a.Data)
}
