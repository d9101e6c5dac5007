// Package rangeimage decodes the compressed per-laser matrices of a capture:
// range images (range, intensity, elongation, ...) and the per-pixel vehicle
// pose grid of the primary laser.
package rangeimage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"
	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrMalformedMatrix is returned when a matrix blob cannot be decoded.
	ErrMalformedMatrix = errors.New("malformed matrix")
	// ErrShapeMismatch is returned when a matrix has the wrong shape for its use.
	ErrShapeMismatch = errors.New("matrix shape mismatch")
)

// Field numbers of the MatrixFloat and MatrixShape messages.
const (
	matrixDataField  protowire.Number = 1
	matrixShapeField protowire.Number = 2
	shapeDimsField   protowire.Number = 1
)

// Matrix is a decompressed, row-major float matrix of arbitrary rank.
type Matrix struct {
	Dims []int
	Data []float32
}

// Size returns the element count implied by Dims.
func (m Matrix) Size() int {
	if len(m.Dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range m.Dims {
		n *= d
	}
	return n
}

// Decompress inflates a zlib blob and decodes the MatrixFloat it contains.
func Decompress(blob []byte) (Matrix, error) {
	zr, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		return Matrix{}, fmt.Errorf("%w: zlib header: %v", ErrMalformedMatrix, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return Matrix{}, fmt.Errorf("%w: inflate: %v", ErrMalformedMatrix, err)
	}
	return Unmarshal(raw)
}

// Unmarshal decodes an uncompressed MatrixFloat message.
func Unmarshal(b []byte) (Matrix, error) {
	var m Matrix
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Matrix{}, fmt.Errorf("%w: %v", ErrMalformedMatrix, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == matrixDataField && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Matrix{}, fmt.Errorf("%w: data: %v", ErrMalformedMatrix, protowire.ParseError(n))
			}
			if len(packed)%4 != 0 {
				return Matrix{}, fmt.Errorf("%w: packed data length %d", ErrMalformedMatrix, len(packed))
			}
			for len(packed) > 0 {
				v, k := protowire.ConsumeFixed32(packed)
				m.Data = append(m.Data, math.Float32frombits(v))
				packed = packed[k:]
			}
			b = b[n:]
		case num == matrixDataField && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return Matrix{}, fmt.Errorf("%w: data: %v", ErrMalformedMatrix, protowire.ParseError(n))
			}
			m.Data = append(m.Data, math.Float32frombits(v))
			b = b[n:]
		case num == matrixShapeField && typ == protowire.BytesType:
			shape, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Matrix{}, fmt.Errorf("%w: shape: %v", ErrMalformedMatrix, protowire.ParseError(n))
			}
			dims, err := unmarshalShape(shape)
			if err != nil {
				return Matrix{}, err
			}
			m.Dims = append(m.Dims, dims...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Matrix{}, fmt.Errorf("%w: field %d: %v", ErrMalformedMatrix, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if m.Size() != len(m.Data) {
		return Matrix{}, fmt.Errorf("%w: dims %v hold %d values, got %d",
			ErrMalformedMatrix, m.Dims, m.Size(), len(m.Data))
	}
	return m, nil
}

func unmarshalShape(b []byte) ([]int, error) {
	var dims []int
	appendDim := func(v uint64) error {
		d := int(int32(v))
		if d < 0 {
			return fmt.Errorf("%w: negative dimension %d", ErrMalformedMatrix, d)
		}
		dims = append(dims, d)
		return nil
	}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: shape: %v", ErrMalformedMatrix, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == shapeDimsField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: dims: %v", ErrMalformedMatrix, protowire.ParseError(n))
			}
			if err := appendDim(v); err != nil {
				return nil, err
			}
			b = b[n:]
		case num == shapeDimsField && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: dims: %v", ErrMalformedMatrix, protowire.ParseError(n))
			}
			for len(packed) > 0 {
				v, k := protowire.ConsumeVarint(packed)
				if k < 0 {
					return nil, fmt.Errorf("%w: dims: %v", ErrMalformedMatrix, protowire.ParseError(k))
				}
				if err := appendDim(v); err != nil {
					return nil, err
				}
				packed = packed[k:]
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: shape field %d: %v", ErrMalformedMatrix, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return dims, nil
}

// Marshal encodes m as an uncompressed MatrixFloat message with packed data.
func Marshal(m Matrix) []byte {
	var shape []byte
	var dims []byte
	for _, d := range m.Dims {
		dims = protowire.AppendVarint(dims, uint64(int32(d)))
	}
	shape = protowire.AppendTag(shape, shapeDimsField, protowire.BytesType)
	shape = protowire.AppendBytes(shape, dims)

	data := make([]byte, 0, 4*len(m.Data))
	for _, v := range m.Data {
		data = protowire.AppendFixed32(data, math.Float32bits(v))
	}

	var b []byte
	b = protowire.AppendTag(b, matrixDataField, protowire.BytesType)
	b = protowire.AppendBytes(b, data)
	b = protowire.AppendTag(b, matrixShapeField, protowire.BytesType)
	b = protowire.AppendBytes(b, shape)
	return b
}

// Compress marshals and zlib-compresses m, the inverse of Decompress.
func Compress(m Matrix) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(Marshal(m)); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
