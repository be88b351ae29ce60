package fits

import (
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"
)

// fakeEngine is a scriptable in-memory [Engine] for exercising session
// behavior the native codec cannot produce (structural disagreement,
// injected failures).
type fakeEngine struct {
	types   []HDUType
	headers [][]Card

	// tableRows/tableCols override TableDims per extension.
	tableRows map[int]int64
	tableCols map[int]int

	written []Card
	deleted []int
	flushed int
	closed  bool
}

func (f *fakeEngine) NumHDUs() (int, error) { return len(f.types), nil }

func (f *fakeEngine) HDUType(ext int) (HDUType, error) {
	if ext < 0 || ext >= len(f.types) {
		return 0, ErrExtensionNotFound
	}

	return f.types[ext], nil
}

func (f *fakeEngine) ReadHeader(ext int) ([]Card, error) {
	if ext < 0 || ext >= len(f.headers) {
		return nil, ErrExtensionNotFound
	}

	return f.headers[ext], nil
}

func (f *fakeEngine) WriteCard(_ int, card Card) error {
	f.written = append(f.written, card)

	return nil
}

func (f *fakeEngine) ReadImage(int, DataType, *Region) (any, error) {
	return []uint8{}, nil
}

func (f *fakeEngine) WriteImage(int, DataType, any) error { return nil }

func (f *fakeEngine) AppendImage(DataType, []int) error { return nil }

func (f *fakeEngine) TableDims(ext int) (int64, int, error) {
	return f.tableRows[ext], f.tableCols[ext], nil
}

func (f *fakeEngine) ReadColumn(int, int) (Column, error) {
	return Column{}, nil
}

func (f *fakeEngine) DeleteHDU(ext int) error {
	f.deleted = append(f.deleted, ext)
	f.types = append(f.types[:ext], f.types[ext+1:]...)
	f.headers = append(f.headers[:ext], f.headers[ext+1:]...)

	return nil
}

func (f *fakeEngine) Flush() error {
	f.flushed++

	return nil
}

func (f *fakeEngine) Close() error {
	f.closed = true

	return nil
}

func tableHeader(rows, cols int64) []Card {
	cards := []Card{
		{Key: "XTENSION", Value: StringValue("BINTABLE")},
		{Key: "BITPIX", Value: IntValue(8)},
		{Key: "NAXIS", Value: IntValue(2)},
		{Key: "NAXIS1", Value: IntValue(8)},
		{Key: "NAXIS2", Value: IntValue(rows)},
		{Key: "TFIELDS", Value: IntValue(cols)},
	}

	for i := int64(1); i <= cols; i++ {
		cards = append(cards, Card{Key: fmt.Sprintf("TTYPE%d", i), Value: StringValue("COL")})
	}

	return cards
}

func newFakeSession(t *testing.T, eng Engine) *Session {
	t.Helper()

	sess, err := Open("fake.fits", ReadWrite, WithEngine(eng), WithLogger(zap.NewNop()))
	if err != nil {
		t.Fatalf("Open with fake engine failed: %v", err)
	}

	return sess
}

func TestSessionDispatchesHandleTypes(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{
		types: []HDUType{ImageType, BinaryTableType, ASCIITableType},
		headers: [][]Card{
			{{Key: "SIMPLE", Value: BoolValue(true)}},
			tableHeader(2, 1),
			tableHeader(2, 1),
		},
	}

	sess := newFakeSession(t, eng)
	defer sess.Close()

	h1, err := sess.HDU(1)
	if err != nil {
		t.Fatalf("HDU(1) failed: %v", err)
	}

	if _, ok := h1.(*ImageHDU); !ok {
		t.Errorf("HDU(1) is %T, want *ImageHDU", h1)
	}

	h2, err := sess.HDU(2)
	if err != nil {
		t.Fatalf("HDU(2) failed: %v", err)
	}

	if _, ok := h2.(*BinTableHDU); !ok {
		t.Errorf("HDU(2) is %T, want *BinTableHDU", h2)
	}

	h3, err := sess.HDU(3)
	if err != nil {
		t.Fatalf("HDU(3) failed: %v", err)
	}

	if _, ok := h3.(*AsciiTableHDU); !ok {
		t.Errorf("HDU(3) is %T, want *AsciiTableHDU", h3)
	}
}

func TestTableCountMismatch(t *testing.T) {
	t.Parallel()

	// Header declares 5 rows and 1 column; the engine reports 3 rows and
	// 2 columns.
	eng := &fakeEngine{
		types: []HDUType{ImageType, BinaryTableType},
		headers: [][]Card{
			{{Key: "SIMPLE", Value: BoolValue(true)}},
			tableHeader(5, 1),
		},
		tableRows: map[int]int64{1: 3},
		tableCols: map[int]int{1: 2},
	}

	sess := newFakeSession(t, eng)
	defer sess.Close()

	hdu, err := sess.HDU(2)
	if err != nil {
		t.Fatalf("HDU(2) failed: %v", err)
	}

	tbl := hdu.(*BinTableHDU)

	if _, err := tbl.NumRows(); !errors.Is(err, ErrCountMismatch) {
		t.Errorf("NumRows should fail with ErrCountMismatch, got %v", err)
	}

	if _, err := tbl.NumColumns(); !errors.Is(err, ErrCountMismatch) {
		t.Errorf("NumColumns should fail with ErrCountMismatch, got %v", err)
	}
}

func TestTableCountsAgree(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{
		types: []HDUType{ImageType, BinaryTableType},
		headers: [][]Card{
			{{Key: "SIMPLE", Value: BoolValue(true)}},
			tableHeader(5, 1),
		},
		tableRows: map[int]int64{1: 5},
		tableCols: map[int]int{1: 1},
	}

	sess := newFakeSession(t, eng)
	defer sess.Close()

	tbl := mustHDU(t, sess, 2).(*BinTableHDU)

	rows, err := tbl.NumRows()
	if err != nil || rows != 5 {
		t.Errorf("NumRows = %d, %v, want 5", rows, err)
	}

	cols, err := tbl.NumColumns()
	if err != nil || cols != 1 {
		t.Errorf("NumColumns = %d, %v, want 1", cols, err)
	}
}

func mustHDU(t *testing.T, sess *Session, index int) HDU {
	t.Helper()

	hdu, err := sess.HDU(index)
	if err != nil {
		t.Fatalf("HDU(%d) failed: %v", index, err)
	}

	return hdu
}

func TestDeleteTranslatesToEngineIndex(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{
		types: []HDUType{ImageType, ImageType, ImageType},
		headers: [][]Card{
			{{Key: "SIMPLE", Value: BoolValue(true)}},
			{{Key: "XTENSION", Value: StringValue("IMAGE")}},
			{{Key: "XTENSION", Value: StringValue("IMAGE")}},
		},
	}

	sess := newFakeSession(t, eng)
	defer sess.Close()

	if err := sess.DeleteHDU(3); err != nil {
		t.Fatalf("DeleteHDU failed: %v", err)
	}

	// Public index 3 is engine extension 2.
	if len(eng.deleted) != 1 || eng.deleted[0] != 2 {
		t.Errorf("engine saw deletions %v, want [2]", eng.deleted)
	}
}

func TestDeleteStalesOnlyLaterHandles(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{
		types: []HDUType{ImageType, ImageType, ImageType, ImageType},
		headers: [][]Card{
			{{Key: "SIMPLE", Value: BoolValue(true)}},
			{{Key: "XTENSION", Value: StringValue("IMAGE")}},
			{{Key: "XTENSION", Value: StringValue("IMAGE")}},
			{{Key: "XTENSION", Value: StringValue("IMAGE")}},
		},
	}

	sess := newFakeSession(t, eng)
	defer sess.Close()

	h1 := mustHDU(t, sess, 1)
	h2 := mustHDU(t, sess, 2)
	h3 := mustHDU(t, sess, 3)
	h4 := mustHDU(t, sess, 4)

	if err := sess.DeleteHDU(3); err != nil {
		t.Fatalf("DeleteHDU failed: %v", err)
	}

	for _, h := range []HDU{h1, h2} {
		if _, err := h.Header(); err != nil {
			t.Errorf("handle %d should stay valid, got %v", h.Index(), err)
		}
	}

	for _, h := range []HDU{h3, h4} {
		if _, err := h.Header(); !errors.Is(err, ErrStale) {
			t.Errorf("handle %d should be stale, got %v", h.Index(), err)
		}

		if _, err := h.ReadKey("XTENSION"); !errors.Is(err, ErrStale) {
			t.Errorf("stale handle %d ReadKey should fail, got %v", h.Index(), err)
		}

		if err := h.WriteKey("X", IntValue(1), ""); !errors.Is(err, ErrStale) {
			t.Errorf("stale handle %d WriteKey should fail, got %v", h.Index(), err)
		}
	}

	// Surviving handles keep their identity in the cache.
	if again := mustHDU(t, sess, 2); again != h2 {
		t.Error("handle below the deletion point should keep its identity")
	}

	// Re-fetching a stale index builds a fresh, usable handle.
	fresh := mustHDU(t, sess, 3)
	if fresh == h3 {
		t.Error("re-fetched handle should be a new object")
	}

	if _, err := fresh.Header(); err != nil {
		t.Errorf("fresh handle should be usable, got %v", err)
	}
}

func TestWriteKeyReachesEngine(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{
		types:   []HDUType{ImageType},
		headers: [][]Card{{{Key: "SIMPLE", Value: BoolValue(true)}}},
	}

	sess := newFakeSession(t, eng)
	defer sess.Close()

	h := mustHDU(t, sess, 1)

	err := h.WriteKey("OBSERVER", StringValue("Jane"), "pi")
	if err != nil {
		t.Fatalf("WriteKey failed: %v", err)
	}

	if len(eng.written) != 1 {
		t.Fatalf("engine saw %d writes, want 1", len(eng.written))
	}

	got := eng.written[0]
	if got.Key != "OBSERVER" || got.Comment != "pi" {
		t.Errorf("engine saw %+v", got)
	}

	if s, _ := got.Value.AsString(); s != "Jane" {
		t.Errorf("engine saw value %v", got.Value)
	}
}

func TestSessionFlushAndCloseReachEngine(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{
		types:   []HDUType{ImageType},
		headers: [][]Card{{{Key: "SIMPLE", Value: BoolValue(true)}}},
	}

	sess := newFakeSession(t, eng)

	if err := sess.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if eng.flushed != 1 {
		t.Errorf("engine saw %d flushes, want 1", eng.flushed)
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if !eng.closed {
		t.Error("Close should reach the engine")
	}

	// A second close does not reach the engine again.
	eng.closed = false

	if err := sess.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if eng.closed {
		t.Error("idempotent Close should not call the engine twice")
	}
}

func TestSessionAccessors(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{}

	sess, err := Open("somewhere.fits", ReadOnly, WithEngine(eng))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer sess.Close()

	if sess.Path() != "somewhere.fits" {
		t.Errorf("Path = %q", sess.Path())
	}

	if sess.Mode() != ReadOnly {
		t.Errorf("Mode = %v", sess.Mode())
	}
}
