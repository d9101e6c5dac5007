package waymo

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// field is one raw protobuf field; val holds the encoded value without its tag.
type field struct {
	num protowire.Number
	typ protowire.Type
	val []byte
}

// eachField calls fn for every field of message b in wire order.
func eachField(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
		}
		b = b[n:]
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformedFrame, num, protowire.ParseError(m))
		}
		if err := fn(field{num: num, typ: typ, val: b[:m]}); err != nil {
			return err
		}
		b = b[m:]
	}
	return nil
}

func (f field) wrongType(want protowire.Type) error {
	return fmt.Errorf("%w: field %d has wire type %d, want %d", ErrMalformedFrame, f.num, f.typ, want)
}

func (f field) bytes() ([]byte, error) {
	if f.typ != protowire.BytesType {
		return nil, f.wrongType(protowire.BytesType)
	}
	v, _ := protowire.ConsumeBytes(f.val)
	return v, nil
}

func (f field) str() (string, error) {
	b, err := f.bytes()
	return string(b), err
}

func (f field) varint() (uint64, error) {
	if f.typ != protowire.VarintType {
		return 0, f.wrongType(protowire.VarintType)
	}
	v, _ := protowire.ConsumeVarint(f.val)
	return v, nil
}

func (f field) enum() (int, error) {
	v, err := f.varint()
	return int(int32(v)), err
}

func (f field) double() (float64, error) {
	if f.typ != protowire.Fixed64Type {
		return 0, f.wrongType(protowire.Fixed64Type)
	}
	v, _ := protowire.ConsumeFixed64(f.val)
	return math.Float64frombits(v), nil
}

func (f field) float() (float32, error) {
	if f.typ != protowire.Fixed32Type {
		return 0, f.wrongType(protowire.Fixed32Type)
	}
	v, _ := protowire.ConsumeFixed32(f.val)
	return math.Float32frombits(v), nil
}

// doubles appends a repeated double field in either packed or unpacked form.
func (f field) doubles(dst []float64) ([]float64, error) {
	switch f.typ {
	case protowire.Fixed64Type:
		v, err := f.double()
		return append(dst, v), err
	case protowire.BytesType:
		b, _ := f.bytes()
		if len(b)%8 != 0 {
			return dst, fmt.Errorf("%w: packed doubles of %d bytes", ErrMalformedFrame, len(b))
		}
		for len(b) > 0 {
			v, n := protowire.ConsumeFixed64(b)
			dst = append(dst, math.Float64frombits(v))
			b = b[n:]
		}
		return dst, nil
	default:
		return dst, f.wrongType(protowire.Fixed64Type)
	}
}
