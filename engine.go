package fits

import "fmt"

// HDUType is the extension type code of one HDU.
type HDUType uint8

// HDUType values cover the three extension kinds the standard defines.
const (
	ImageType HDUType = iota
	BinaryTableType
	ASCIITableType
)

// String returns the XTENSION name for the type.
func (t HDUType) String() string {
	switch t {
	case ImageType:
		return "IMAGE"
	case BinaryTableType:
		return "BINTABLE"
	case ASCIITableType:
		return "TABLE"
	default:
		return fmt.Sprintf("HDUType(%d)", uint8(t))
	}
}

// DataType is the element type of an image data array.
type DataType uint8

// DataType values map one-to-one onto the supported BITPIX codes plus the
// standard's BZERO-offset conventions for the signed/unsigned variants that
// BITPIX cannot express directly.
const (
	Uint8 DataType = iota
	Int8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
)

// String returns a short name for the data type.
func (d DataType) String() string {
	switch d {
	case Uint8:
		return "uint8"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Uint16:
		return "uint16"
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	case Int64:
		return "int64"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("DataType(%d)", uint8(d))
	}
}

// Bitpix returns the on-disk BITPIX code for the type. Unsigned and
// signed-byte variants share the BITPIX of their raw representation and are
// distinguished by BZERO.
func (d DataType) Bitpix() int {
	switch d {
	case Uint8, Int8:
		return 8
	case Int16, Uint16:
		return 16
	case Int32, Uint32:
		return 32
	case Int64, Uint64:
		return 64
	case Float32:
		return -32
	default:
		return -64
	}
}

// ByteSize returns the on-disk size of one element.
func (d DataType) ByteSize() int {
	b := d.Bitpix()
	if b < 0 {
		b = -b
	}

	return b / 8
}

// bzero returns the BZERO offset that marks this type on disk, and whether
// one is needed at all.
func (d DataType) bzero() (float64, bool) {
	switch d {
	case Int8:
		return -128, true
	case Uint16:
		return 32768, true
	case Uint32:
		return 2147483648, true
	case Uint64:
		return 9223372036854775808, true
	default:
		return 0, false
	}
}

// DataTypeOf maps a header's BITPIX (and BZERO, when present) to the element
// type. Each supported code maps to exactly one type; anything else fails
// with [ErrUnsupportedType].
//
// A BZERO that matches one of the standard's offset conventions selects the
// shifted variant (for example BITPIX 16 with BZERO 32768 is Uint16). Any
// other BZERO leaves the raw type: the library does not scale data.
func DataTypeOf(bitpix int, bzero float64, hasBZero bool) (DataType, error) {
	var raw, shifted DataType

	switch bitpix {
	case 8:
		raw, shifted = Uint8, Int8
	case 16:
		raw, shifted = Int16, Uint16
	case 32:
		raw, shifted = Int32, Uint32
	case 64:
		raw, shifted = Int64, Uint64
	case -32:
		return Float32, nil
	case -64:
		return Float64, nil
	default:
		return 0, fmt.Errorf("%w: BITPIX %d", ErrUnsupportedType, bitpix)
	}

	if hasBZero {
		if offset, ok := shifted.bzero(); ok && bzero == offset {
			return shifted, nil
		}
	}

	return raw, nil
}

// Region selects a rectangular sub-array of an image: 0-based, half-open
// bounds, one pair per axis in NAXIS order (first axis varies fastest on
// disk).
type Region struct {
	Start []int
	End   []int
}

// Array is a typed image data array. Data holds a flat slice whose concrete
// type matches Type ([]uint8, []int16, ... []float64), in FITS order: the
// first axis varies fastest.
type Array struct {
	Type  DataType
	Shape []int
	Data  any
}

// Len returns the number of elements implied by the shape.
func (a *Array) Len() int {
	if len(a.Shape) == 0 {
		return 0
	}

	n := 1
	for _, d := range a.Shape {
		n *= d
	}

	return n
}

// Column is one table column read in full. Data holds a flat typed slice of
// rows*Repeat elements for numeric and logical codes, or []string with one
// entry per row for character fields.
type Column struct {
	Name   string
	Repeat int
	Data   any
}

// Engine is the low-level file collaborator: it owns byte offsets, the block
// codec, and typed data encoding. Extension indices at this boundary are
// 0-based in on-disk order; [Session] translates from its public 1-based
// numbering.
//
// The native implementation is [OpenNative]; tests inject fakes through
// [WithEngine].
type Engine interface {
	// NumHDUs returns the number of HDUs in the file.
	NumHDUs() (int, error)

	// HDUType returns the extension type code of one HDU.
	HDUType(ext int) (HDUType, error)

	// ReadHeader returns all header cards of one HDU in on-disk order,
	// freshly read from the file.
	ReadHeader(ext int) ([]Card, error)

	// WriteCard updates the first card matching card.Key in place, or
	// appends it, and persists the header.
	WriteCard(ext int, card Card) error

	// ReadImage reads the data array of an image HDU decoded as dt.
	// A nil region means the full array; otherwise only the bounded
	// sub-array is read from disk.
	ReadImage(ext int, dt DataType, region *Region) (any, error)

	// WriteImage replaces the data array of an image HDU. data must be the
	// flat typed slice matching dt with exactly the HDU's element count.
	WriteImage(ext int, dt DataType, data any) error

	// AppendImage adds an image HDU with the given element type and shape,
	// zero-filled. The first HDU of an empty file becomes the primary.
	AppendImage(dt DataType, shape []int) error

	// TableDims returns the row and column counts the engine derives from
	// the file structure for a table HDU.
	TableDims(ext int) (rows int64, cols int, err error)

	// ReadColumn reads one table column (0-based) in full for all rows.
	ReadColumn(ext, col int) (Column, error)

	// DeleteHDU removes one HDU from the file.
	DeleteHDU(ext int) error

	// Flush commits pending writes to stable storage.
	Flush() error

	// Close releases the underlying file handle.
	Close() error
}
