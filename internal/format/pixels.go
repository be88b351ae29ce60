package format

import (
	"encoding/binary"
	"math"
)

// Big-endian scalar codecs for FITS data units. The standard stores all
// binary data big-endian regardless of host order.

// DecodeInt16 decodes buf as big-endian int16 values.
func DecodeInt16(buf []byte) []int16 {
	out := make([]int16, len(buf)/2)
	for i := range out {
		out[i] = int16(binary.BigEndian.Uint16(buf[2*i:]))
	}

	return out
}

// DecodeInt32 decodes buf as big-endian int32 values.
func DecodeInt32(buf []byte) []int32 {
	out := make([]int32, len(buf)/4)
	for i := range out {
		out[i] = int32(binary.BigEndian.Uint32(buf[4*i:]))
	}

	return out
}

// DecodeInt64 decodes buf as big-endian int64 values.
func DecodeInt64(buf []byte) []int64 {
	out := make([]int64, len(buf)/8)
	for i := range out {
		out[i] = int64(binary.BigEndian.Uint64(buf[8*i:]))
	}

	return out
}

// DecodeFloat32 decodes buf as big-endian IEEE 754 float32 values.
func DecodeFloat32(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.BigEndian.Uint32(buf[4*i:]))
	}

	return out
}

// DecodeFloat64 decodes buf as big-endian IEEE 754 float64 values.
func DecodeFloat64(buf []byte) []float64 {
	out := make([]float64, len(buf)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.BigEndian.Uint64(buf[8*i:]))
	}

	return out
}

// EncodeInt16 encodes vals as big-endian bytes.
func EncodeInt16(vals []int16) []byte {
	buf := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint16(buf[2*i:], uint16(v))
	}

	return buf
}

// EncodeInt32 encodes vals as big-endian bytes.
func EncodeInt32(vals []int32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint32(buf[4*i:], uint32(v))
	}

	return buf
}

// EncodeInt64 encodes vals as big-endian bytes.
func EncodeInt64(vals []int64) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint64(buf[8*i:], uint64(v))
	}

	return buf
}

// EncodeFloat32 encodes vals as big-endian IEEE 754 bytes.
func EncodeFloat32(vals []float32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}

	return buf
}

// EncodeFloat64 encodes vals as big-endian IEEE 754 bytes.
func EncodeFloat64(vals []float64) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}

	return buf
}
