// Package npy reads and writes little-endian float64 arrays in the NumPy
// .npy format, version 1.0 and 2.0, as produced by numpy.save.
package npy

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ContentType is the MIME type used for .npy payloads.
const ContentType = "application/x-npy"

var magic = []byte("\x93NUMPY")

const (
	alignment = 64
	// maxHeaderLen bounds the header of version 2.0 and 3.0 files.
	maxHeaderLen = 1 << 16
	// readChunk is the number of elements decoded per read.
	readChunk = 1 << 12
)

// MaxElements is the largest element count Read accepts.
const MaxElements = 1 << 24

// ErrFormat reports a payload that is not a supported .npy array.
var ErrFormat = errors.New("npy: unsupported format")

// Array is a dense C-ordered array.
type Array struct {
	Shape []int
	Data  []float64
}

// Row returns a 2-d array of shape (1, len(data)).
func Row(data []float64) Array {
	return Array{Shape: []int{1, len(data)}, Data: data}
}

// Write encodes a as a version 1.0 .npy stream with descr '<f8'.
func Write(w io.Writer, a Array) error {
	n, err := elements(a.Shape)
	if err != nil {
		return err
	}
	if n != len(a.Data) {
		return fmt.Errorf("npy: shape %v holds %d elements, have %d", a.Shape, n, len(a.Data))
	}

	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': %s, }", shapeString(a.Shape))
	// magic(6) + version(2) + header length(2) + header + '\n'
	total := len(magic) + 4 + len(header) + 1
	pad := (alignment - total%alignment) % alignment
	header += strings.Repeat(" ", pad) + "\n"
	if len(header) > math.MaxUint16 {
		return errors.New("npy: header too long")
	}

	var buf bytes.Buffer
	buf.Grow(len(magic) + 4 + len(header) + 8*len(a.Data))
	buf.Write(magic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	_ = binary.Write(&buf, binary.LittleEndian, a.Data)

	_, err = w.Write(buf.Bytes())
	return err
}

// Read decodes a .npy stream with descr '<f8' or '<f4' in C order.
func Read(r io.Reader) (Array, error) {
	prefix := make([]byte, len(magic)+2)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return Array{}, fmt.Errorf("npy: reading magic: %w", err)
	}
	if !bytes.Equal(prefix[:len(magic)], magic) {
		return Array{}, fmt.Errorf("%w: bad magic", ErrFormat)
	}

	var headerLen int
	switch major := prefix[len(magic)]; major {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Array{}, fmt.Errorf("npy: reading header length: %w", err)
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Array{}, fmt.Errorf("npy: reading header length: %w", err)
		}
		if n > maxHeaderLen {
			return Array{}, fmt.Errorf("%w: header length %d", ErrFormat, n)
		}
		headerLen = int(n)
	default:
		return Array{}, fmt.Errorf("%w: version %d", ErrFormat, major)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return Array{}, fmt.Errorf("npy: reading header: %w", err)
	}

	descr, fortran, shape, err := parseHeader(string(header))
	if err != nil {
		return Array{}, err
	}
	if fortran {
		return Array{}, fmt.Errorf("%w: fortran order", ErrFormat)
	}

	n, err := elements(shape)
	if err != nil {
		return Array{}, err
	}
	data, err := readData(r, descr, n)
	if err != nil {
		return Array{}, err
	}

	return Array{Shape: shape, Data: data}, nil
}

// EncodeBase64 writes a as .npy and returns the standard base64 encoding.
func EncodeBase64(a Array) (string, error) {
	var buf bytes.Buffer
	if err := Write(&buf, a); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeBase64 reverses EncodeBase64.
func DecodeBase64(s string) (Array, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return Array{}, fmt.Errorf("npy: decoding base64: %w", err)
	}
	return Read(bytes.NewReader(raw))
}

var (
	descrRe   = regexp.MustCompile(`'descr':\s*'([^']+)'`)
	fortranRe = regexp.MustCompile(`'fortran_order':\s*(True|False)`)
	shapeRe   = regexp.MustCompile(`'shape':\s*\(([^)]*)\)`)
)

func parseHeader(h string) (descr string, fortran bool, shape []int, err error) {
	m := descrRe.FindStringSubmatch(h)
	if m == nil {
		return "", false, nil, fmt.Errorf("%w: missing descr", ErrFormat)
	}
	descr = m[1]

	m = fortranRe.FindStringSubmatch(h)
	if m == nil {
		return "", false, nil, fmt.Errorf("%w: missing fortran_order", ErrFormat)
	}
	fortran = m[1] == "True"

	m = shapeRe.FindStringSubmatch(h)
	if m == nil {
		return "", false, nil, fmt.Errorf("%w: missing shape", ErrFormat)
	}
	shape = []int{}
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dim, convErr := strconv.Atoi(part)
		if convErr != nil || dim < 0 {
			return "", false, nil, fmt.Errorf("%w: bad shape %q", ErrFormat, m[1])
		}
		shape = append(shape, dim)
	}
	return descr, fortran, shape, nil
}

func shapeString(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.Itoa(d)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// readData decodes n elements in chunks so a truncated stream fails before
// the whole declared size is allocated.
func readData(r io.Reader, descr string, n int) ([]float64, error) {
	var width int
	switch descr {
	case "<f8":
		width = 8
	case "<f4":
		width = 4
	default:
		return nil, fmt.Errorf("%w: descr %q", ErrFormat, descr)
	}

	data := make([]float64, 0, min(n, readChunk))
	buf := make([]byte, width*min(n, readChunk))
	for len(data) < n {
		k := min(readChunk, n-len(data))
		chunk := buf[:width*k]
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, fmt.Errorf("npy: reading data: %w", err)
		}
		for i := 0; i < k; i++ {
			if width == 8 {
				data = append(data, math.Float64frombits(binary.LittleEndian.Uint64(chunk[8*i:])))
			} else {
				data = append(data, float64(math.Float32frombits(binary.LittleEndian.Uint32(chunk[4*i:]))))
			}
		}
	}
	return data, nil
}

// elements returns the element count of shape, rejecting shapes larger than
// MaxElements before the product can overflow.
func elements(shape []int) (int, error) {
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("%w: negative dimension in %v", ErrFormat, shape)
		}
		if d == 0 {
			return 0, nil
		}
	}
	n := 1
	for _, d := range shape {
		if n > MaxElements/d {
			return 0, fmt.Errorf("%w: shape %v exceeds %d elements", ErrFormat, shape, MaxElements)
		}
		n *= d
	}
	return n, nil
}
