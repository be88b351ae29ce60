package fits

import "fmt"

// HDU is a handle on one header/data unit of an open [Session].
//
// Handles are owned by their session: the session guarantees at most one
// live handle per extension index, so two lookups of the same index observe
// the same object. A handle must not outlive its session, and it becomes
// permanently stale when a lower-indexed extension is deleted (see
// [Session.DeleteHDU]).
//
// The three concrete types are [ImageHDU], [BinTableHDU], and
// [AsciiTableHDU], dispatched once at construction from the extension's
// type code.
type HDU interface {
	// Index returns the handle's 1-based extension index; index 1 is the
	// primary HDU.
	Index() int

	// Type returns the extension type code.
	Type() HDUType

	// Header materializes a snapshot of all header cards. The snapshot is
	// independent of later file mutation until re-read.
	Header() (*Header, error)

	// ReadKey returns the value of the first card matching key, freshly
	// read through the engine.
	ReadKey(key string) (Value, error)

	// WriteKey updates or appends a card and persists it immediately; no
	// buffered header state survives the call.
	WriteKey(key string, v Value, comment string) error

	// core pins the implementations to this package.
	core() *hduCore
}

// hduCore carries the state and header operations shared by all variants.
type hduCore struct {
	sess  *Session
	idx   int // public 1-based index
	typ   HDUType
	stale bool
}

func (h *hduCore) core() *hduCore { return h }

// Index implements [HDU].
func (h *hduCore) Index() int { return h.idx }

// Type implements [HDU].
func (h *hduCore) Type() HDUType { return h.typ }

// guard rejects use of a handle whose session closed or whose extension
// numbering was invalidated.
func (h *hduCore) guard() error {
	if h.sess.closed {
		return ErrClosed
	}

	if h.stale {
		return fmt.Errorf("%w: hdu %d was invalidated by a deletion; re-fetch it from the session",
			ErrStale, h.idx)
	}

	return nil
}

// Header implements [HDU].
func (h *hduCore) Header() (*Header, error) {
	guardErr := h.guard()
	if guardErr != nil {
		return nil, guardErr
	}

	cards, err := h.sess.eng.ReadHeader(h.idx - 1)
	if err != nil {
		return nil, fmt.Errorf("hdu %d: %w", h.idx, err)
	}

	hdr := NewHeader()
	for _, c := range cards {
		hdr.AppendCard(c)
	}

	return hdr, nil
}

// ReadKey implements [HDU].
func (h *hduCore) ReadKey(key string) (Value, error) {
	hdr, err := h.Header()
	if err != nil {
		return Value{}, err
	}

	return hdr.Get(key)
}

// WriteKey implements [HDU].
func (h *hduCore) WriteKey(key string, v Value, comment string) error {
	guardErr := h.guard()
	if guardErr != nil {
		return guardErr
	}

	if h.sess.mode == ReadOnly {
		return ErrReadOnly
	}

	err := h.sess.eng.WriteCard(h.idx-1, Card{Key: key, Value: v, Comment: comment})
	if err != nil {
		return fmt.Errorf("hdu %d: %w", h.idx, err)
	}

	return nil
}
