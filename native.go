package fits

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/obsarchive/fits/internal/format"
)

// nativeEngine is the built-in [Engine]: a block-level FITS codec over a
// single *os.File. It keeps a structural map of the file (per-HDU offsets
// and geometry) built by scan and refreshed after every layout change.
//
// Header and data bytes are re-read from disk on demand; only structure is
// cached. Whole-file layout changes (deleting an HDU, growing a header past
// its allocated blocks) go through an atomic replace of the file.
type nativeEngine struct {
	path     string
	f        *os.File
	writable bool
	hdus     []hduInfo
	log      *zap.SugaredLogger
}

// hduInfo is the structural record of one HDU.
type hduInfo struct {
	hdrOff    int64
	hdrBlocks int64 // header blocks allocated on disk
	dataOff   int64
	dataLen   int64 // logical data bytes, before block padding
	typ       HDUType
	bitpix    int
	shape     []int // image axes, NAXIS1 first

	// Table geometry.
	rows   int64
	rowLen int
	cols   []colInfo
}

// colInfo is the layout of one table column within a row.
type colInfo struct {
	name   string
	code   byte
	repeat int
	width  int // field width: ASCII field or character count for 'A'
	off    int // 0-based byte offset of the field within a row
	ascii  bool
}

// extent returns the half-open byte range the HDU occupies on disk,
// including block padding.
func (h *hduInfo) extent() (start, end int64) {
	return h.hdrOff, h.dataOff + format.Blocks(h.dataLen)*format.BlockSize
}

// OpenNative opens path with the built-in FITS codec. A nil logger disables
// logging. Most callers want [Open], which wraps the engine in a [Session];
// OpenNative is the seam for using the codec directly.
func OpenNative(path string, mode Mode, logger *zap.Logger) (Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var flag int

	switch mode {
	case ReadOnly:
		flag = os.O_RDONLY
	case ReadWrite:
		flag = os.O_RDWR
	case ReadWriteCreate:
		flag = os.O_RDWR | os.O_CREATE
	case Overwrite:
		flag = os.O_RDWR | os.O_CREATE | os.O_TRUNC
	default:
		return nil, fmt.Errorf("%w: Mode(%d)", ErrInvalidMode, mode)
	}

	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	e := &nativeEngine{
		path:     path,
		f:        f,
		writable: mode != ReadOnly,
		log:      logger.Sugar(),
	}

	scanErr := e.scan()
	if scanErr != nil {
		_ = f.Close()

		return nil, scanErr
	}

	e.log.Debugw("opened fits file", "path", path, "mode", mode.String(), "hdus", len(e.hdus))

	return e, nil
}

// scan rebuilds the structural map by walking the file block by block.
func (e *nativeEngine) scan() error {
	e.hdus = e.hdus[:0]

	fi, err := e.f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", e.path, err)
	}

	size := fi.Size()
	if size%format.BlockSize != 0 {
		return fmt.Errorf("%w: size %d is not a multiple of %d", ErrCorrupt, size, format.BlockSize)
	}

	off := int64(0)
	for off < size {
		info, err := e.scanHDU(off)
		if err != nil {
			return fmt.Errorf("hdu %d: %w", len(e.hdus), err)
		}

		e.hdus = append(e.hdus, info)
		_, off = info.extent()
	}

	return nil
}

// readHeaderAt reads card images starting at off until the END card and
// returns the typed cards plus the number of blocks consumed. Blank padding
// cards are dropped.
func (e *nativeEngine) readHeaderAt(off int64) ([]Card, int64, error) {
	var cards []Card

	blocks := int64(0)
	buf := make([]byte, format.BlockSize)

	for {
		_, err := e.f.ReadAt(buf, off+blocks*format.BlockSize)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: header truncated at offset %d", ErrCorrupt, off)
		}

		blocks++

		for i := 0; i < format.CardsPerBlock; i++ {
			lex, err := format.ParseCard(buf[i*format.CardSize : (i+1)*format.CardSize])
			if err != nil {
				return nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
			}

			if lex.Key == "END" && !lex.HasValue {
				return cards, blocks, nil
			}

			if lex.Key == "" && lex.Text == "" {
				continue
			}

			c, err := cardFromLexical(lex)
			if err != nil {
				return nil, 0, err
			}

			cards = append(cards, c)
		}
	}
}

// cardFromLexical types the raw value text of one card. Commentary cards
// carry their text as a string value.
func cardFromLexical(lex format.Card) (Card, error) {
	if !lex.HasValue {
		return Card{Key: lex.Key, Value: StringValue(lex.Text)}, nil
	}

	v, err := ParseValue(lex.Text)
	if err != nil {
		return Card{}, fmt.Errorf("card %s: %w", lex.Key, err)
	}

	return Card{Key: lex.Key, Value: v, Comment: lex.Comment}, nil
}

// lexicalCard renders a typed card back to its raw form. Commentary text is
// written verbatim, never quoted.
func lexicalCard(c Card) format.Card {
	if isCommentary(c.Key) {
		text, ok := c.Value.AsString()
		if !ok {
			text = c.Value.String()
		}

		return format.Card{Key: c.Key, Text: text}
	}

	return format.Card{Key: c.Key, Text: c.Value.String(), Comment: c.Comment, HasValue: true}
}

func isCommentary(key string) bool {
	return key == "" || strings.EqualFold(key, "COMMENT") || strings.EqualFold(key, "HISTORY")
}

// scanHDU parses the header at off and derives the HDU's structure.
func (e *nativeEngine) scanHDU(off int64) (hduInfo, error) {
	cards, blocks, err := e.readHeaderAt(off)
	if err != nil {
		return hduInfo{}, err
	}

	h := NewHeader()
	for _, c := range cards {
		h.AppendCard(c)
	}

	getInt := func(key string) (int64, bool) {
		v, err := h.Get(key)
		if err != nil {
			return 0, false
		}

		return v.AsInt()
	}

	info := hduInfo{
		hdrOff:    off,
		hdrBlocks: blocks,
		dataOff:   off + blocks*format.BlockSize,
	}

	bitpix, ok := getInt("BITPIX")
	if !ok {
		return hduInfo{}, fmt.Errorf("%w: missing BITPIX", ErrCorrupt)
	}

	info.bitpix = int(bitpix)

	naxis, ok := getInt("NAXIS")
	if !ok {
		return hduInfo{}, fmt.Errorf("%w: missing NAXIS", ErrCorrupt)
	}

	// The standard allows at most 999 axes.
	if naxis < 0 || naxis > 999 {
		return hduInfo{}, fmt.Errorf("%w: NAXIS %d out of range", ErrCorrupt, naxis)
	}

	info.shape = make([]int, naxis)
	for i := range info.shape {
		d, ok := getInt(fmt.Sprintf("NAXIS%d", i+1))
		if !ok {
			return hduInfo{}, fmt.Errorf("%w: missing NAXIS%d", ErrCorrupt, i+1)
		}

		info.shape[i] = int(d)
	}

	// Classify: the first HDU is the primary (SIMPLE); everything after
	// dispatches on XTENSION.
	if off == 0 {
		if _, err := h.Get("SIMPLE"); err != nil {
			return hduInfo{}, fmt.Errorf("%w: primary header has no SIMPLE card", ErrCorrupt)
		}

		info.typ = ImageType
	} else {
		xv, err := h.Get("XTENSION")
		if err != nil {
			return hduInfo{}, fmt.Errorf("%w: extension header has no XTENSION card", ErrCorrupt)
		}

		name, _ := xv.AsString()
		switch strings.TrimSpace(name) {
		case "IMAGE":
			info.typ = ImageType
		case "BINTABLE":
			info.typ = BinaryTableType
		case "TABLE":
			info.typ = ASCIITableType
		default:
			return hduInfo{}, fmt.Errorf("%w: XTENSION %q", ErrUnsupportedType, name)
		}
	}

	pcount, _ := getInt("PCOUNT")
	gcount, ok := getInt("GCOUNT")
	if !ok {
		gcount = 1
	}

	elems := int64(0)
	if len(info.shape) > 0 {
		elems = 1
		for _, d := range info.shape {
			elems *= int64(d)
		}
	}

	abs := int64(info.bitpix)
	if abs < 0 {
		abs = -abs
	}

	info.dataLen = abs / 8 * gcount * (pcount + elems)

	if info.typ == BinaryTableType || info.typ == ASCIITableType {
		tblErr := e.scanTable(h, &info)
		if tblErr != nil {
			return hduInfo{}, tblErr
		}
	}

	return info, nil
}

// scanTable derives row and column layout from the table header cards.
func (e *nativeEngine) scanTable(h *Header, info *hduInfo) error {
	if len(info.shape) != 2 {
		return fmt.Errorf("%w: table with NAXIS %d", ErrCorrupt, len(info.shape))
	}

	info.rowLen = info.shape[0]
	info.rows = int64(info.shape[1])

	tfields, err := h.Get("TFIELDS")
	if err != nil {
		return fmt.Errorf("%w: missing TFIELDS", ErrCorrupt)
	}

	nfields, _ := tfields.AsInt()
	info.cols = make([]colInfo, 0, nfields)

	binOff := 0

	for i := int64(1); i <= nfields; i++ {
		formVal, err := h.Get(fmt.Sprintf("TFORM%d", i))
		if err != nil {
			return fmt.Errorf("%w: missing TFORM%d", ErrCorrupt, i)
		}

		form, _ := formVal.AsString()

		var name string
		if nv, err := h.Get(fmt.Sprintf("TTYPE%d", i)); err == nil {
			name, _ = nv.AsString()
			name = strings.TrimSpace(name)
		}

		if info.typ == ASCIITableType {
			af, err := format.ParseAsciiForm(form)
			if err != nil {
				return fmt.Errorf("%w: TFORM%d: %v", ErrCorrupt, i, err)
			}

			tbcol, err := h.Get(fmt.Sprintf("TBCOL%d", i))
			if err != nil {
				return fmt.Errorf("%w: missing TBCOL%d", ErrCorrupt, i)
			}

			start, _ := tbcol.AsInt()

			info.cols = append(info.cols, colInfo{
				name:   name,
				code:   af.Code,
				repeat: 1,
				width:  af.Width,
				off:    int(start) - 1,
				ascii:  true,
			})

			continue
		}

		bf, err := format.ParseBinForm(form)
		if err != nil {
			return fmt.Errorf("%w: TFORM%d: %v", ErrCorrupt, i, err)
		}

		size, err := format.BinElemSize(bf.Code)
		if err != nil {
			return fmt.Errorf("%w: TFORM%d %q", ErrUnsupportedType, i, form)
		}

		info.cols = append(info.cols, colInfo{
			name:   name,
			code:   bf.Code,
			repeat: bf.Repeat,
			width:  bf.Repeat,
			off:    binOff,
		})

		binOff += size * bf.Repeat
	}

	return nil
}

func (e *nativeEngine) info(ext int) (*hduInfo, error) {
	if ext < 0 || ext >= len(e.hdus) {
		return nil, fmt.Errorf("%w: extension %d of %d", ErrExtensionNotFound, ext, len(e.hdus))
	}

	return &e.hdus[ext], nil
}

// NumHDUs implements [Engine].
func (e *nativeEngine) NumHDUs() (int, error) {
	return len(e.hdus), nil
}

// HDUType implements [Engine].
func (e *nativeEngine) HDUType(ext int) (HDUType, error) {
	info, err := e.info(ext)
	if err != nil {
		return 0, err
	}

	return info.typ, nil
}

// ReadHeader implements [Engine]. Cards are parsed fresh from disk on every
// call; snapshot semantics live in the caller.
func (e *nativeEngine) ReadHeader(ext int) ([]Card, error) {
	info, err := e.info(ext)
	if err != nil {
		return nil, err
	}

	cards, _, err := e.readHeaderAt(info.hdrOff)
	if err != nil {
		return nil, fmt.Errorf("read header of extension %d: %w", ext, err)
	}

	return cards, nil
}

// WriteCard implements [Engine]. The header is rewritten in place when it
// still fits its allocated blocks; otherwise the whole file is rewritten
// atomically to make room.
func (e *nativeEngine) WriteCard(ext int, card Card) error {
	if !e.writable {
		return ErrReadOnly
	}

	info, err := e.info(ext)
	if err != nil {
		return err
	}

	cards, _, err := e.readHeaderAt(info.hdrOff)
	if err != nil {
		return fmt.Errorf("write card %s to extension %d: %w", card.Key, ext, err)
	}

	updated := false

	for i := range cards {
		if strings.EqualFold(cards[i].Key, card.Key) {
			cards[i].Value = card.Value
			cards[i].Comment = card.Comment
			updated = true

			break
		}
	}

	if !updated {
		cards = append(cards, card)
	}

	hdr, err := renderHeader(cards, info.hdrBlocks)
	if err != nil {
		return fmt.Errorf("write card %s to extension %d: %w", card.Key, ext, err)
	}

	if int64(len(hdr)) == info.hdrBlocks*format.BlockSize {
		_, err := e.f.WriteAt(hdr, info.hdrOff)
		if err != nil {
			return fmt.Errorf("write header of extension %d: %w", ext, err)
		}

		return nil
	}

	// Header grew past its allocation: rebuild the file around it.
	e.log.Debugw("header grew, rewriting file", "path", e.path, "ext", ext)

	buf, err := e.assemble(ext, hdr, -1)
	if err != nil {
		return err
	}

	return e.rewrite(buf)
}

// renderHeader renders cards plus END, padded with blank cards to a block
// boundary and to at least minBlocks blocks.
func renderHeader(cards []Card, minBlocks int64) ([]byte, error) {
	var buf []byte

	for _, c := range cards {
		img, err := format.RenderCard(lexicalCard(c))
		if err != nil {
			return nil, fmt.Errorf("card %s: %w", c.Key, err)
		}

		buf = append(buf, img...)
	}

	end, err := format.RenderCard(format.End)
	if err != nil {
		return nil, err
	}

	buf = append(buf, end...)
	buf = format.PadBlock(buf, ' ')

	for format.Blocks(int64(len(buf))) < minBlocks {
		buf = append(buf, bytes.Repeat([]byte{' '}, format.BlockSize)...)
	}

	return buf, nil
}

// assemble renders the whole file, substituting newHdr for extension
// replaceExt (-1 for none) and dropping extension skipExt (-1 for none).
func (e *nativeEngine) assemble(replaceExt int, newHdr []byte, skipExt int) ([]byte, error) {
	var out []byte

	for i := range e.hdus {
		if i == skipExt {
			continue
		}

		info := &e.hdus[i]
		start, end := info.extent()

		if i == replaceExt {
			out = append(out, newHdr...)
			start = info.dataOff
		}

		seg := make([]byte, end-start)

		_, err := e.f.ReadAt(seg, start)
		if err != nil {
			return nil, fmt.Errorf("read extension %d: %w", i, err)
		}

		out = append(out, seg...)
	}

	return out, nil
}

// rewrite atomically replaces the file with buf, reopens the handle (the
// replace switches inodes), and rescans.
func (e *nativeEngine) rewrite(buf []byte) error {
	_ = e.f.Close()

	err := atomic.WriteFile(e.path, bytes.NewReader(buf))

	f, openErr := os.OpenFile(e.path, os.O_RDWR, 0o644)
	if openErr != nil {
		return errors.Join(err, fmt.Errorf("reopen %s: %w", e.path, openErr))
	}

	e.f = f

	if err != nil {
		return fmt.Errorf("rewrite %s: %w", e.path, err)
	}

	return e.scan()
}

// DeleteHDU implements [Engine]. The file is rewritten without the
// extension's byte range. Deleting the primary HDU is not supported.
func (e *nativeEngine) DeleteHDU(ext int) error {
	if !e.writable {
		return ErrReadOnly
	}

	if _, err := e.info(ext); err != nil {
		return err
	}

	if ext == 0 {
		return fmt.Errorf("fits: cannot delete the primary hdu")
	}

	buf, err := e.assemble(-1, nil, ext)
	if err != nil {
		return err
	}

	e.log.Debugw("deleting extension", "path", e.path, "ext", ext)

	return e.rewrite(buf)
}

// Flush implements [Engine].
func (e *nativeEngine) Flush() error {
	if !e.writable {
		return nil
	}

	err := e.f.Sync()
	if err != nil {
		return fmt.Errorf("sync %s: %w", e.path, err)
	}

	return nil
}

// Close implements [Engine].
func (e *nativeEngine) Close() error {
	err := e.f.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", e.path, err)
	}

	return nil
}
