package fits

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/obsarchive/fits/internal/format"
)

// Data-unit side of the native engine: typed image and column I/O.
//
// FITS stores integers as signed big-endian values; the unsigned and
// signed-byte element types exist on disk as their raw counterpart with a
// BZERO offset of half the type's range. Offsetting by 2^(n-1) is a flip of
// the top bit, which is how the codecs below apply it.

// ReadImage implements [Engine].
func (e *nativeEngine) ReadImage(ext int, dt DataType, region *Region) (any, error) {
	info, err := e.info(ext)
	if err != nil {
		return nil, err
	}

	if info.typ != ImageType {
		return nil, fmt.Errorf("fits: extension %d is not an image", ext)
	}

	if region == nil {
		buf := make([]byte, info.dataLen)

		_, err := e.f.ReadAt(buf, info.dataOff)
		if err != nil {
			return nil, fmt.Errorf("read image of extension %d: %w", ext, err)
		}

		return decodePixels(dt, buf), nil
	}

	return e.readRegion(info, ext, dt, region)
}

// readRegion reads only the bounded sub-array: one contiguous run per
// combination of the outer axes, seeked to directly.
func (e *nativeEngine) readRegion(info *hduInfo, ext int, dt DataType, r *Region) (any, error) {
	shape := info.shape

	if len(shape) == 0 {
		return nil, fmt.Errorf("%w: region read on a header-only image", ErrInvalidRegion)
	}

	if len(r.Start) != len(shape) || len(r.End) != len(shape) {
		return nil, fmt.Errorf("%w: rank %d region on rank %d image",
			ErrInvalidRegion, len(r.Start), len(shape))
	}

	for i := range shape {
		if r.Start[i] < 0 || r.End[i] > shape[i] || r.Start[i] >= r.End[i] {
			return nil, fmt.Errorf("%w: axis %d bounds [%d,%d) outside [0,%d)",
				ErrInvalidRegion, i, r.Start[i], r.End[i], shape[i])
		}
	}

	// Strides in elements; the first axis varies fastest on disk.
	strides := make([]int64, len(shape))
	stride := int64(1)

	for i, d := range shape {
		strides[i] = stride
		stride *= int64(d)
	}

	elem := int64(dt.ByteSize())
	runLen := r.End[0] - r.Start[0]
	run := make([]byte, int64(runLen)*elem)

	var buf []byte

	// Odometer over the outer axes of the region.
	coord := make([]int, len(shape))
	copy(coord, r.Start)

	for {
		flat := int64(0)
		for i, c := range coord {
			flat += int64(c) * strides[i]
		}

		_, err := e.f.ReadAt(run, info.dataOff+flat*elem)
		if err != nil {
			return nil, fmt.Errorf("read region of extension %d: %w", ext, err)
		}

		buf = append(buf, run...)

		axis := 1
		for ; axis < len(shape); axis++ {
			coord[axis]++
			if coord[axis] < r.End[axis] {
				break
			}

			coord[axis] = r.Start[axis]
		}

		if axis == len(shape) {
			break
		}
	}

	return decodePixels(dt, buf), nil
}

// WriteImage implements [Engine].
func (e *nativeEngine) WriteImage(ext int, dt DataType, data any) error {
	if !e.writable {
		return ErrReadOnly
	}

	info, err := e.info(ext)
	if err != nil {
		return err
	}

	if info.typ != ImageType {
		return fmt.Errorf("fits: extension %d is not an image", ext)
	}

	buf, err := encodePixels(dt, data)
	if err != nil {
		return fmt.Errorf("write image of extension %d: %w", ext, err)
	}

	if int64(len(buf)) != info.dataLen {
		return fmt.Errorf("fits: write image of extension %d: %d data bytes, image holds %d",
			ext, len(buf), info.dataLen)
	}

	_, err = e.f.WriteAt(buf, info.dataOff)
	if err != nil {
		return fmt.Errorf("write image of extension %d: %w", ext, err)
	}

	return nil
}

// AppendImage implements [Engine].
func (e *nativeEngine) AppendImage(dt DataType, shape []int) error {
	if !e.writable {
		return ErrReadOnly
	}

	primary := len(e.hdus) == 0

	h := NewHeader()
	if primary {
		h.SetCard("SIMPLE", BoolValue(true), "file conforms to the FITS standard")
	} else {
		h.SetCard("XTENSION", StringValue("IMAGE"), "image extension")
	}

	h.SetCard("BITPIX", IntValue(int64(dt.Bitpix())), "bits per data element")
	h.SetCard("NAXIS", IntValue(int64(len(shape))), "number of data axes")

	for i, d := range shape {
		h.SetCard(fmt.Sprintf("NAXIS%d", i+1), IntValue(int64(d)), "")
	}

	if primary {
		h.SetCard("EXTEND", BoolValue(true), "extensions may be present")
	} else {
		h.SetCard("PCOUNT", IntValue(0), "")
		h.SetCard("GCOUNT", IntValue(1), "")
	}

	if offset, ok := dt.bzero(); ok {
		h.SetCard("BSCALE", IntValue(1), "")
		h.SetCard("BZERO", bzeroValue(offset), "offset for unsigned storage")
	}

	var cards []Card
	h.Cards()(func(c Card) bool {
		cards = append(cards, c)
		return true
	})

	hdr, err := renderHeader(cards, 0)
	if err != nil {
		return fmt.Errorf("append image: %w", err)
	}

	n := 0
	if len(shape) > 0 {
		n = 1
		for _, d := range shape {
			n *= d
		}
	}

	out := hdr

	if n > 0 {
		data, err := encodePixels(dt, zeroPixels(dt, n))
		if err != nil {
			return fmt.Errorf("append image: %w", err)
		}

		out = append(out, format.PadBlock(data, 0)...)
	}

	fi, err := e.f.Stat()
	if err != nil {
		return fmt.Errorf("append image: %w", err)
	}

	_, err = e.f.WriteAt(out, fi.Size())
	if err != nil {
		return fmt.Errorf("append image: %w", err)
	}

	e.log.Debugw("appended image hdu", "path", e.path, "type", dt.String(), "shape", shape)

	return e.scan()
}

// bzeroValue renders a BZERO offset: integral when it fits an int64, float
// otherwise (the uint64 offset, 2^63, does not).
func bzeroValue(offset float64) Value {
	if offset <= float64(1<<62) {
		return IntValue(int64(offset))
	}

	return FloatValue(offset)
}

// TableDims implements [Engine].
func (e *nativeEngine) TableDims(ext int) (int64, int, error) {
	info, err := e.info(ext)
	if err != nil {
		return 0, 0, err
	}

	if info.typ == ImageType {
		return 0, 0, fmt.Errorf("fits: extension %d is not a table", ext)
	}

	return info.rows, len(info.cols), nil
}

// ReadColumn implements [Engine].
func (e *nativeEngine) ReadColumn(ext, col int) (Column, error) {
	info, err := e.info(ext)
	if err != nil {
		return Column{}, err
	}

	if info.typ == ImageType {
		return Column{}, fmt.Errorf("fits: extension %d is not a table", ext)
	}

	if col < 0 || col >= len(info.cols) {
		return Column{}, fmt.Errorf("%w: column %d of %d in extension %d",
			ErrColumnNotFound, col, len(info.cols), ext)
	}

	raw := make([]byte, info.dataLen)

	_, err = e.f.ReadAt(raw, info.dataOff)
	if err != nil {
		return Column{}, fmt.Errorf("read column %d of extension %d: %w", col, ext, err)
	}

	ci := info.cols[col]

	var data any
	if ci.ascii {
		data, err = decodeAsciiColumn(ci, raw, info)
	} else {
		data, err = decodeBinColumn(ci, raw, info)
	}

	if err != nil {
		return Column{}, fmt.Errorf("column %d of extension %d: %w", col, ext, err)
	}

	return Column{Name: ci.name, Repeat: ci.repeat, Data: data}, nil
}

// decodeAsciiColumn parses one fixed-width text field per row.
func decodeAsciiColumn(ci colInfo, raw []byte, info *hduInfo) (any, error) {
	field := func(row int64) string {
		base := row*int64(info.rowLen) + int64(ci.off)

		return strings.TrimSpace(string(raw[base : base+int64(ci.width)]))
	}

	switch ci.code {
	case 'A':
		out := make([]string, info.rows)
		for r := range out {
			out[r] = field(int64(r))
		}

		return out, nil

	case 'I':
		out := make([]int64, info.rows)
		for r := range out {
			v, err := strconv.ParseInt(field(int64(r)), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad integer field in row %d", ErrCorrupt, r)
			}

			out[r] = v
		}

		return out, nil

	case 'F', 'E', 'D':
		out := make([]float64, info.rows)
		for r := range out {
			s := strings.Replace(field(int64(r)), "D", "E", 1)

			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad real field in row %d", ErrCorrupt, r)
			}

			out[r] = v
		}

		return out, nil

	default:
		return nil, fmt.Errorf("%w: ASCII TFORM code %q", ErrUnsupportedType, string(ci.code))
	}
}

// decodeBinColumn gathers the column's bytes across rows and decodes them as
// one contiguous big-endian run.
func decodeBinColumn(ci colInfo, raw []byte, info *hduInfo) (any, error) {
	size, err := format.BinElemSize(ci.code)
	if err != nil {
		return nil, fmt.Errorf("%w: TFORM code %q", ErrUnsupportedType, string(ci.code))
	}

	if ci.code == 'A' {
		out := make([]string, info.rows)
		for r := range out {
			base := int64(r)*int64(info.rowLen) + int64(ci.off)
			out[r] = strings.TrimRight(string(raw[base:base+int64(ci.width)]), " \x00")
		}

		return out, nil
	}

	span := size * ci.repeat
	buf := make([]byte, 0, int(info.rows)*span)

	for r := int64(0); r < info.rows; r++ {
		base := r*int64(info.rowLen) + int64(ci.off)
		buf = append(buf, raw[base:base+int64(span)]...)
	}

	switch ci.code {
	case 'L':
		out := make([]bool, len(buf))
		for i, b := range buf {
			out[i] = b == 'T'
		}

		return out, nil
	case 'B':
		out := make([]uint8, len(buf))
		copy(out, buf)

		return out, nil
	case 'I':
		return format.DecodeInt16(buf), nil
	case 'J':
		return format.DecodeInt32(buf), nil
	case 'K':
		return format.DecodeInt64(buf), nil
	case 'E':
		return format.DecodeFloat32(buf), nil
	case 'D':
		return format.DecodeFloat64(buf), nil
	case 'C':
		fs := format.DecodeFloat32(buf)
		out := make([]complex64, len(fs)/2)

		for i := range out {
			out[i] = complex(fs[2*i], fs[2*i+1])
		}

		return out, nil
	case 'M':
		fs := format.DecodeFloat64(buf)
		out := make([]complex128, len(fs)/2)

		for i := range out {
			out[i] = complex(fs[2*i], fs[2*i+1])
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: TFORM code %q", ErrUnsupportedType, string(ci.code))
	}
}

// decodePixels decodes raw big-endian image bytes as dt.
func decodePixels(dt DataType, buf []byte) any {
	switch dt {
	case Uint8:
		out := make([]uint8, len(buf))
		copy(out, buf)

		return out
	case Int8:
		out := make([]int8, len(buf))
		for i, b := range buf {
			out[i] = int8(b ^ 0x80)
		}

		return out
	case Int16:
		return format.DecodeInt16(buf)
	case Uint16:
		raw := format.DecodeInt16(buf)
		out := make([]uint16, len(raw))

		for i, v := range raw {
			out[i] = uint16(v) ^ 0x8000
		}

		return out
	case Int32:
		return format.DecodeInt32(buf)
	case Uint32:
		raw := format.DecodeInt32(buf)
		out := make([]uint32, len(raw))

		for i, v := range raw {
			out[i] = uint32(v) ^ 0x80000000
		}

		return out
	case Int64:
		return format.DecodeInt64(buf)
	case Uint64:
		raw := format.DecodeInt64(buf)
		out := make([]uint64, len(raw))

		for i, v := range raw {
			out[i] = uint64(v) ^ 0x8000000000000000
		}

		return out
	case Float32:
		return format.DecodeFloat32(buf)
	default:
		return format.DecodeFloat64(buf)
	}
}

// encodePixels encodes a flat typed slice as raw big-endian image bytes.
// The concrete type of data must match dt.
func encodePixels(dt DataType, data any) ([]byte, error) {
	mismatch := func() ([]byte, error) {
		return nil, fmt.Errorf("fits: data is %T, want %s", data, dt.String())
	}

	switch dt {
	case Uint8:
		vals, ok := data.([]uint8)
		if !ok {
			return mismatch()
		}

		out := make([]byte, len(vals))
		copy(out, vals)

		return out, nil
	case Int8:
		vals, ok := data.([]int8)
		if !ok {
			return mismatch()
		}

		out := make([]byte, len(vals))
		for i, v := range vals {
			out[i] = uint8(v) ^ 0x80
		}

		return out, nil
	case Int16:
		vals, ok := data.([]int16)
		if !ok {
			return mismatch()
		}

		return format.EncodeInt16(vals), nil
	case Uint16:
		vals, ok := data.([]uint16)
		if !ok {
			return mismatch()
		}

		raw := make([]int16, len(vals))
		for i, v := range vals {
			raw[i] = int16(v ^ 0x8000)
		}

		return format.EncodeInt16(raw), nil
	case Int32:
		vals, ok := data.([]int32)
		if !ok {
			return mismatch()
		}

		return format.EncodeInt32(vals), nil
	case Uint32:
		vals, ok := data.([]uint32)
		if !ok {
			return mismatch()
		}

		raw := make([]int32, len(vals))
		for i, v := range vals {
			raw[i] = int32(v ^ 0x80000000)
		}

		return format.EncodeInt32(raw), nil
	case Int64:
		vals, ok := data.([]int64)
		if !ok {
			return mismatch()
		}

		return format.EncodeInt64(vals), nil
	case Uint64:
		vals, ok := data.([]uint64)
		if !ok {
			return mismatch()
		}

		raw := make([]int64, len(vals))
		for i, v := range vals {
			raw[i] = int64(v ^ 0x8000000000000000)
		}

		return format.EncodeInt64(raw), nil
	case Float32:
		vals, ok := data.([]float32)
		if !ok {
			return mismatch()
		}

		return format.EncodeFloat32(vals), nil
	default:
		vals, ok := data.([]float64)
		if !ok {
			return mismatch()
		}

		return format.EncodeFloat64(vals), nil
	}
}

// zeroPixels returns a zero-valued flat slice of n elements of dt.
func zeroPixels(dt DataType, n int) any {
	switch dt {
	case Uint8:
		return make([]uint8, n)
	case Int8:
		return make([]int8, n)
	case Int16:
		return make([]int16, n)
	case Uint16:
		return make([]uint16, n)
	case Int32:
		return make([]int32, n)
	case Uint32:
		return make([]uint32, n)
	case Int64:
		return make([]int64, n)
	case Uint64:
		return make([]uint64, n)
	case Float32:
		return make([]float32, n)
	default:
		return make([]float64, n)
	}
}
