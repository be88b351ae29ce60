package fits

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/obsarchive/fits/internal/format"
)

// writeTableFixture assembles a minimal file: a header-only primary HDU plus
// one table extension with the given cards and row data.
func writeTableFixture(t *testing.T, extCards []Card, data []byte) string {
	t.Helper()

	primary, err := renderHeader([]Card{
		{Key: "SIMPLE", Value: BoolValue(true)},
		{Key: "BITPIX", Value: IntValue(8)},
		{Key: "NAXIS", Value: IntValue(0)},
		{Key: "EXTEND", Value: BoolValue(true)},
	}, 0)
	if err != nil {
		t.Fatalf("render primary header failed: %v", err)
	}

	ext, err := renderHeader(extCards, 0)
	if err != nil {
		t.Fatalf("render extension header failed: %v", err)
	}

	buf := append(primary, ext...)
	buf = append(buf, format.PadBlock(data, 0)...)

	path := filepath.Join(t.TempDir(), "table.fits")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write fixture failed: %v", err)
	}

	return path
}

func binTableFixture(t *testing.T) string {
	t.Helper()

	cards := []Card{
		{Key: "XTENSION", Value: StringValue("BINTABLE")},
		{Key: "BITPIX", Value: IntValue(8)},
		{Key: "NAXIS", Value: IntValue(2)},
		{Key: "NAXIS1", Value: IntValue(17)},
		{Key: "NAXIS2", Value: IntValue(3)},
		{Key: "PCOUNT", Value: IntValue(0)},
		{Key: "GCOUNT", Value: IntValue(1)},
		{Key: "TFIELDS", Value: IntValue(4)},
		{Key: "TTYPE1", Value: StringValue("ID")},
		{Key: "TFORM1", Value: StringValue("J")},
		{Key: "TTYPE2", Value: StringValue("FLUX")},
		{Key: "TFORM2", Value: StringValue("E")},
		{Key: "TTYPE3", Value: StringValue("NAME")},
		{Key: "TFORM3", Value: StringValue("8A")},
		{Key: "TTYPE4", Value: StringValue("GOOD")},
		{Key: "TFORM4", Value: StringValue("L")},
	}

	type row struct {
		id   int32
		flux float32
		name string
		good byte
	}

	rows := []row{
		{1, 1.5, "alpha", 'T'},
		{2, -2.25, "beta", 'F'},
		{3, 0.5, "gamma", 'T'},
	}

	var data []byte
	for _, r := range rows {
		data = binary.BigEndian.AppendUint32(data, uint32(r.id))
		data = binary.BigEndian.AppendUint32(data, math.Float32bits(r.flux))

		name := make([]byte, 8)
		copy(name, r.name)
		data = append(data, name...)

		data = append(data, r.good)
	}

	return writeTableFixture(t, cards, data)
}

func TestBinTableColumns(t *testing.T) {
	t.Parallel()

	sess, err := Open(binTableFixture(t), ReadOnly)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer sess.Close()

	hdu, err := sess.HDU(2)
	if err != nil {
		t.Fatalf("HDU(2) failed: %v", err)
	}

	if hdu.Type() != BinaryTableType {
		t.Fatalf("type = %v, want binary table", hdu.Type())
	}

	tbl, ok := hdu.(*BinTableHDU)
	if !ok {
		t.Fatalf("HDU(2) is %T, want *BinTableHDU", hdu)
	}

	names, err := tbl.ColumnNames()
	if err != nil {
		t.Fatalf("ColumnNames failed: %v", err)
	}

	if diff := cmp.Diff([]string{"ID", "FLUX", "NAME", "GOOD"}, names); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}

	rows, err := tbl.NumRows()
	if err != nil || rows != 3 {
		t.Errorf("NumRows = %d, %v, want 3", rows, err)
	}

	cols, err := tbl.NumColumns()
	if err != nil || cols != 4 {
		t.Errorf("NumColumns = %d, %v, want 4", cols, err)
	}

	id, err := tbl.Column("ID")
	if err != nil {
		t.Fatalf("Column(ID) failed: %v", err)
	}

	if diff := cmp.Diff([]int32{1, 2, 3}, id.Data.([]int32)); diff != "" {
		t.Errorf("ID (-want +got):\n%s", diff)
	}

	// Name lookup is case-insensitive.
	flux, err := tbl.Column("flux")
	if err != nil {
		t.Fatalf("Column(flux) failed: %v", err)
	}

	if flux.Name != "FLUX" || flux.Repeat != 1 {
		t.Errorf("flux column = %+v", flux)
	}

	if diff := cmp.Diff([]float32{1.5, -2.25, 0.5}, flux.Data.([]float32)); diff != "" {
		t.Errorf("FLUX (-want +got):\n%s", diff)
	}

	name, err := tbl.Column("NAME")
	if err != nil {
		t.Fatalf("Column(NAME) failed: %v", err)
	}

	if diff := cmp.Diff([]string{"alpha", "beta", "gamma"}, name.Data.([]string)); diff != "" {
		t.Errorf("NAME (-want +got):\n%s", diff)
	}

	good, err := tbl.Column("GOOD")
	if err != nil {
		t.Fatalf("Column(GOOD) failed: %v", err)
	}

	if diff := cmp.Diff([]bool{true, false, true}, good.Data.([]bool)); diff != "" {
		t.Errorf("GOOD (-want +got):\n%s", diff)
	}

	// Positional access matches named access.
	byPos, err := tbl.ColumnAt(1)
	if err != nil {
		t.Fatalf("ColumnAt(1) failed: %v", err)
	}

	if diff := cmp.Diff(flux.Data, byPos.Data); diff != "" {
		t.Errorf("ColumnAt(1) differs from Column(FLUX):\n%s", diff)
	}

	if _, err := tbl.Column("NOPE"); !errors.Is(err, ErrColumnNotFound) {
		t.Errorf("unknown column should fail with ErrColumnNotFound, got %v", err)
	}

	if _, err := tbl.ColumnAt(4); !errors.Is(err, ErrColumnNotFound) {
		t.Errorf("out-of-range column should fail with ErrColumnNotFound, got %v", err)
	}
}

func asciiTableFixture(t *testing.T) string {
	t.Helper()

	cards := []Card{
		{Key: "XTENSION", Value: StringValue("TABLE")},
		{Key: "BITPIX", Value: IntValue(8)},
		{Key: "NAXIS", Value: IntValue(2)},
		{Key: "NAXIS1", Value: IntValue(24)},
		{Key: "NAXIS2", Value: IntValue(2)},
		{Key: "PCOUNT", Value: IntValue(0)},
		{Key: "GCOUNT", Value: IntValue(1)},
		{Key: "TFIELDS", Value: IntValue(3)},
		{Key: "TTYPE1", Value: StringValue("NAME")},
		{Key: "TBCOL1", Value: IntValue(1)},
		{Key: "TFORM1", Value: StringValue("A8")},
		{Key: "TTYPE2", Value: StringValue("MAG")},
		{Key: "TBCOL2", Value: IntValue(9)},
		{Key: "TFORM2", Value: StringValue("F8.3")},
		{Key: "TTYPE3", Value: StringValue("COUNT")},
		{Key: "TBCOL3", Value: IntValue(17)},
		{Key: "TFORM3", Value: StringValue("I8")},
	}

	data := []byte(
		"vega       0.030     120" +
			"deneb      1.250      85")

	return writeTableFixture(t, cards, data)
}

func TestAsciiTableColumns(t *testing.T) {
	t.Parallel()

	sess, err := Open(asciiTableFixture(t), ReadOnly)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer sess.Close()

	hdu, err := sess.HDU(2)
	if err != nil {
		t.Fatalf("HDU(2) failed: %v", err)
	}

	tbl, ok := hdu.(*AsciiTableHDU)
	if !ok {
		t.Fatalf("HDU(2) is %T, want *AsciiTableHDU", hdu)
	}

	rows, err := tbl.NumRows()
	if err != nil || rows != 2 {
		t.Errorf("NumRows = %d, %v, want 2", rows, err)
	}

	name, err := tbl.Column("NAME")
	if err != nil {
		t.Fatalf("Column(NAME) failed: %v", err)
	}

	if diff := cmp.Diff([]string{"vega", "deneb"}, name.Data.([]string)); diff != "" {
		t.Errorf("NAME (-want +got):\n%s", diff)
	}

	mag, err := tbl.Column("MAG")
	if err != nil {
		t.Fatalf("Column(MAG) failed: %v", err)
	}

	if diff := cmp.Diff([]float64{0.03, 1.25}, mag.Data.([]float64)); diff != "" {
		t.Errorf("MAG (-want +got):\n%s", diff)
	}

	count, err := tbl.Column("COUNT")
	if err != nil {
		t.Fatalf("Column(COUNT) failed: %v", err)
	}

	if diff := cmp.Diff([]int64{120, 85}, count.Data.([]int64)); diff != "" {
		t.Errorf("COUNT (-want +got):\n%s", diff)
	}
}

func TestBinTableRepeatColumn(t *testing.T) {
	t.Parallel()

	cards := []Card{
		{Key: "XTENSION", Value: StringValue("BINTABLE")},
		{Key: "BITPIX", Value: IntValue(8)},
		{Key: "NAXIS", Value: IntValue(2)},
		{Key: "NAXIS1", Value: IntValue(6)},
		{Key: "NAXIS2", Value: IntValue(2)},
		{Key: "PCOUNT", Value: IntValue(0)},
		{Key: "GCOUNT", Value: IntValue(1)},
		{Key: "TFIELDS", Value: IntValue(1)},
		{Key: "TTYPE1", Value: StringValue("TRIPLE")},
		{Key: "TFORM1", Value: StringValue("3I")},
	}

	var data []byte
	for _, v := range []int16{1, 2, 3, 10, 20, 30} {
		data = binary.BigEndian.AppendUint16(data, uint16(v))
	}

	sess, err := Open(writeTableFixture(t, cards, data), ReadOnly)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer sess.Close()

	hdu, err := sess.HDU(2)
	if err != nil {
		t.Fatalf("HDU(2) failed: %v", err)
	}

	col, err := hdu.(*BinTableHDU).Column("TRIPLE")
	if err != nil {
		t.Fatalf("Column failed: %v", err)
	}

	if col.Repeat != 3 {
		t.Errorf("Repeat = %d, want 3", col.Repeat)
	}

	// rows * repeat elements, row-major.
	if diff := cmp.Diff([]int16{1, 2, 3, 10, 20, 30}, col.Data.([]int16)); diff != "" {
		t.Errorf("data (-want +got):\n%s", diff)
	}
}
