package fits

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/obsarchive/fits/internal/format"
)

// ValueKind distinguishes the value shapes a header card can carry.
type ValueKind uint8

// ValueKind values enumerate the closed set of FITS header value types.
const (
	KindUndefined ValueKind = iota // card with a blank value field
	KindBool
	KindInt
	KindFloat
	KindString
)

// String returns a short name for the kind.
func (k ValueKind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(k))
	}
}

// Value is a single header card value. FITS headers carry logicals, integers,
// reals, character strings, and cards with no value at all; Value keeps that
// set explicit as a closed tagged union rather than an open any.
type Value struct {
	Kind  ValueKind // Kind describes which field below is populated.
	Bool  bool      // Bool holds the value when Kind == KindBool.
	Int   int64     // Int holds the value when Kind == KindInt.
	Float float64   // Float holds the value when Kind == KindFloat.
	Str   string    // Str holds the value when Kind == KindString.
}

// Undefined returns the value of a card with a blank value field.
func Undefined() Value { return Value{Kind: KindUndefined} }

// BoolValue returns a logical header value.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// IntValue returns an integer header value.
func IntValue(i int64) Value { return Value{Kind: KindInt, Int: i} }

// FloatValue returns a floating-point header value.
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// StringValue returns a character-string header value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// AsBool returns the logical value.
// Returns (false, false) if the value is not a logical.
func (v Value) AsBool() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}

	return v.Bool, true
}

// AsInt returns the integer value.
// Returns (0, false) if the value is not an integer.
func (v Value) AsInt() (int64, bool) {
	if v.Kind != KindInt {
		return 0, false
	}

	return v.Int, true
}

// AsFloat returns the value as a float64. Integer values convert; all other
// kinds return (0, false).
func (v Value) AsFloat() (float64, bool) {
	switch v.Kind {
	case KindFloat:
		return v.Float, true
	case KindInt:
		return float64(v.Int), true
	default:
		return 0, false
	}
}

// AsString returns the string value.
// Returns ("", false) if the value is not a string.
func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}

	return v.Str, true
}

// String renders the value in FITS header text form: T/F for logicals,
// quoted (with doubled internal quotes) for strings, empty for undefined.
// [ParseValue] inverts it.
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		if v.Bool {
			return "T"
		}

		return "F"
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		s := strconv.FormatFloat(v.Float, 'G', -1, 64)
		// A rendered float must reparse as a float, not an integer.
		if !strings.ContainsAny(s, ".E") {
			s += "."
		}

		return s
	case KindString:
		return format.Quote(v.Str)
	default:
		return ""
	}
}

// ParseValue interprets the raw value text of a header card.
//
// Empty text is the undefined value. Fortran-style D exponents are accepted
// for reals. Complex values are outside the supported mapping and fail with
// [ErrUnsupportedType]; anything else unparseable fails with [ErrCorrupt].
func ParseValue(text string) (Value, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return Undefined(), nil
	}

	switch {
	case t[0] == '\'':
		s, err := format.Unquote(t)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}

		return StringValue(s), nil

	case t == "T":
		return BoolValue(true), nil

	case t == "F":
		return BoolValue(false), nil

	case t[0] == '(':
		return Value{}, fmt.Errorf("%w: complex value %q", ErrUnsupportedType, t)

	case t[0] == '+' || t[0] == '-' || t[0] == '.' || (t[0] >= '0' && t[0] <= '9'):
		if strings.ContainsAny(t, ".ED") {
			f, err := strconv.ParseFloat(strings.Replace(t, "D", "E", 1), 64)
			if err != nil {
				return Value{}, fmt.Errorf("%w: bad real %q", ErrCorrupt, t)
			}

			return FloatValue(f), nil
		}

		i, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: bad integer %q", ErrCorrupt, t)
		}

		return IntValue(i), nil

	default:
		return Value{}, fmt.Errorf("%w: unparseable value %q", ErrCorrupt, t)
	}
}
