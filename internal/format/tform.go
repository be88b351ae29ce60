package format

import (
	"fmt"
	"strconv"
	"strings"
)

// binCodes lists the binary-table TFORM type codes this package can size.
// X (bit), P, and Q (variable-length descriptors) are recognized by the
// grammar but have no fixed element width here.
const binCodes = "LXBAIJKEDCMPQ"

// BinForm is a parsed binary-table TFORM value, following the rT grammar:
// an optional repeat count followed by a single type code. Trailing
// characters after the code (TDIM hints, descriptor bounds) are ignored.
type BinForm struct {
	Repeat int
	Code   byte
}

// ParseBinForm parses a binary-table TFORM string such as "E", "10A", or
// "3J". A missing repeat count means 1.
func ParseBinForm(s string) (BinForm, error) {
	t := strings.TrimSpace(s)

	j := strings.IndexAny(t, binCodes)
	if j == -1 {
		return BinForm{}, fmt.Errorf("no type code in TFORM %q", s)
	}

	repeat := 1

	if j > 0 {
		r, err := strconv.Atoi(t[:j])
		if err != nil {
			return BinForm{}, fmt.Errorf("bad repeat count in TFORM %q", s)
		}

		repeat = r
	}

	return BinForm{Repeat: repeat, Code: t[j]}, nil
}

// BinElemSize returns the on-disk byte width of one element of a binary
// table type code. Codes without a fixed width (X, P, Q) and unknown codes
// return an error.
func BinElemSize(code byte) (int, error) {
	switch code {
	case 'L', 'B', 'A':
		return 1, nil
	case 'I':
		return 2, nil
	case 'J', 'E':
		return 4, nil
	case 'K', 'D', 'C':
		return 8, nil
	case 'M':
		return 16, nil
	default:
		return 0, fmt.Errorf("no fixed size for TFORM code %q", string(code))
	}
}

// AsciiForm is a parsed ASCII-table TFORM value, following the Tw or Tw.d
// grammar: a type code, a field width, and an optional decimal count.
type AsciiForm struct {
	Code  byte
	Width int
	Dec   int
}

// ParseAsciiForm parses an ASCII-table TFORM string such as "A8", "I10", or
// "F12.4".
func ParseAsciiForm(s string) (AsciiForm, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return AsciiForm{}, fmt.Errorf("empty TFORM")
	}

	code := t[0]
	switch code {
	case 'A', 'I', 'F', 'E', 'D':
	default:
		return AsciiForm{}, fmt.Errorf("unknown ASCII TFORM code %q", string(code))
	}

	rest := t[1:]
	dec := 0

	if k := strings.IndexByte(rest, '.'); k != -1 {
		d, err := strconv.Atoi(rest[k+1:])
		if err != nil {
			return AsciiForm{}, fmt.Errorf("bad decimal count in TFORM %q", s)
		}

		dec = d
		rest = rest[:k]
	}

	width, err := strconv.Atoi(rest)
	if err != nil || width <= 0 {
		return AsciiForm{}, fmt.Errorf("bad field width in TFORM %q", s)
	}

	return AsciiForm{Code: code, Width: width, Dec: dec}, nil
}
