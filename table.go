package fits

import (
	"fmt"
	"strings"
)

// BinTableHDU is an HDU holding a binary table: named, typed columns with
// fixed-size per-row entries.
type BinTableHDU struct {
	tableHDU
}

// AsciiTableHDU is an HDU holding an ASCII table: named, typed columns
// encoded as fixed-width text fields. The reading contract is identical to
// [BinTableHDU]; only the on-disk encoding differs, and that is the
// engine's business.
type AsciiTableHDU struct {
	tableHDU
}

// tableHDU carries the column operations shared by both table kinds.
type tableHDU struct {
	hduCore
}

// ColumnNames returns the column names declared by the TTYPEn cards, in
// declared order. A column without a TTYPE card has an empty name.
func (t *tableHDU) ColumnNames() ([]string, error) {
	hdr, err := t.Header()
	if err != nil {
		return nil, err
	}

	n, err := declaredColumns(hdr, t.idx)
	if err != nil {
		return nil, err
	}

	names := make([]string, n)
	for i := range names {
		if v, err := hdr.Get(fmt.Sprintf("TTYPE%d", i+1)); err == nil {
			s, _ := v.AsString()
			names[i] = strings.TrimSpace(s)
		}
	}

	return names, nil
}

func declaredColumns(hdr *Header, idx int) (int, error) {
	v, err := hdr.Get("TFIELDS")
	if err != nil {
		return 0, fmt.Errorf("%w: hdu %d has no TFIELDS card", ErrCorrupt, idx)
	}

	n, ok := v.AsInt()
	if !ok {
		return 0, fmt.Errorf("%w: hdu %d TFIELDS is not an integer", ErrCorrupt, idx)
	}

	return int(n), nil
}

// NumRows returns the table's row count from the header's NAXIS2 card,
// cross-checked against what the engine reports for the same extension. A
// disagreement means the file is corrupt or was modified externally and
// fails with [ErrCountMismatch].
func (t *tableHDU) NumRows() (int64, error) {
	hdr, err := t.Header()
	if err != nil {
		return 0, err
	}

	v, err := hdr.Get("NAXIS2")
	if err != nil {
		return 0, fmt.Errorf("%w: hdu %d has no NAXIS2 card", ErrCorrupt, t.idx)
	}

	declared, ok := v.AsInt()
	if !ok {
		return 0, fmt.Errorf("%w: hdu %d NAXIS2 is not an integer", ErrCorrupt, t.idx)
	}

	reported, _, err := t.sess.eng.TableDims(t.idx - 1)
	if err != nil {
		return 0, fmt.Errorf("hdu %d: %w", t.idx, err)
	}

	if declared != reported {
		return 0, fmt.Errorf("%w: hdu %d declares %d rows, engine reports %d",
			ErrCountMismatch, t.idx, declared, reported)
	}

	return declared, nil
}

// NumColumns returns the table's column count from the header's TFIELDS
// card, cross-checked like [tableHDU.NumRows].
func (t *tableHDU) NumColumns() (int, error) {
	hdr, err := t.Header()
	if err != nil {
		return 0, err
	}

	declared, err := declaredColumns(hdr, t.idx)
	if err != nil {
		return 0, err
	}

	_, reported, err := t.sess.eng.TableDims(t.idx - 1)
	if err != nil {
		return 0, fmt.Errorf("hdu %d: %w", t.idx, err)
	}

	if declared != reported {
		return 0, fmt.Errorf("%w: hdu %d declares %d columns, engine reports %d",
			ErrCountMismatch, t.idx, declared, reported)
	}

	return declared, nil
}

// Column reads the column with the given name (case-insensitive) in full.
// Fails with [ErrColumnNotFound] if no declared column matches.
func (t *tableHDU) Column(name string) (Column, error) {
	names, err := t.ColumnNames()
	if err != nil {
		return Column{}, err
	}

	for i, n := range names {
		if strings.EqualFold(n, name) {
			return t.ColumnAt(i)
		}
	}

	return Column{}, fmt.Errorf("%w: %q in hdu %d", ErrColumnNotFound, name, t.idx)
}

// ColumnAt reads the column at the given 0-based position in full.
func (t *tableHDU) ColumnAt(i int) (Column, error) {
	guardErr := t.guard()
	if guardErr != nil {
		return Column{}, guardErr
	}

	col, err := t.sess.eng.ReadColumn(t.idx-1, i)
	if err != nil {
		return Column{}, fmt.Errorf("hdu %d: %w", t.idx, err)
	}

	return col, nil
}
