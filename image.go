package fits

import "fmt"

// ImageHDU is an HDU holding an n-dimensional data array of one element
// type. The primary HDU is always an image (possibly header-only).
type ImageHDU struct {
	hduCore
}

// Shape returns the axis lengths in NAXIS order (NAXIS1 first). A
// header-only HDU has an empty shape.
func (h *ImageHDU) Shape() ([]int, error) {
	hdr, err := h.Header()
	if err != nil {
		return nil, err
	}

	return imageShape(hdr, h.idx)
}

func imageShape(hdr *Header, idx int) ([]int, error) {
	nv, err := hdr.Get("NAXIS")
	if err != nil {
		return nil, fmt.Errorf("%w: hdu %d has no NAXIS card", ErrCorrupt, idx)
	}

	naxis, ok := nv.AsInt()
	if !ok {
		return nil, fmt.Errorf("%w: hdu %d NAXIS is not an integer", ErrCorrupt, idx)
	}

	// The standard allows at most 999 axes.
	if naxis < 0 || naxis > 999 {
		return nil, fmt.Errorf("%w: hdu %d NAXIS %d out of range", ErrCorrupt, idx, naxis)
	}

	shape := make([]int, naxis)
	for i := range shape {
		dv, err := hdr.Get(fmt.Sprintf("NAXIS%d", i+1))
		if err != nil {
			return nil, fmt.Errorf("%w: hdu %d has no NAXIS%d card", ErrCorrupt, idx, i+1)
		}

		d, ok := dv.AsInt()
		if !ok {
			return nil, fmt.Errorf("%w: hdu %d NAXIS%d is not an integer", ErrCorrupt, idx, i+1)
		}

		shape[i] = int(d)
	}

	return shape, nil
}

// DataType returns the element type declared by the header: the BITPIX code
// combined with the BZERO convention for unsigned and signed-byte variants.
// Unknown codes fail with [ErrUnsupportedType].
func (h *ImageHDU) DataType() (DataType, error) {
	hdr, err := h.Header()
	if err != nil {
		return 0, err
	}

	return imageDataType(hdr, h.idx)
}

func imageDataType(hdr *Header, idx int) (DataType, error) {
	bv, err := hdr.Get("BITPIX")
	if err != nil {
		return 0, fmt.Errorf("%w: hdu %d has no BITPIX card", ErrCorrupt, idx)
	}

	bitpix, ok := bv.AsInt()
	if !ok {
		return 0, fmt.Errorf("%w: hdu %d BITPIX is not an integer", ErrCorrupt, idx)
	}

	bzero := 0.0
	hasBZero := false

	if zv, err := hdr.Get("BZERO"); err == nil {
		if f, ok := zv.AsFloat(); ok {
			bzero = f
			hasBZero = true
		}
	}

	return DataTypeOf(int(bitpix), bzero, hasBZero)
}

// ReadData reads the full data array.
func (h *ImageHDU) ReadData() (*Array, error) {
	return h.read(nil)
}

// ReadRegion reads a rectangular sub-array without loading the full array;
// the bounds are forwarded to the engine, which seeks each contiguous run
// directly. The result's shape is the region's extent per axis.
func (h *ImageHDU) ReadRegion(r Region) (*Array, error) {
	return h.read(&r)
}

func (h *ImageHDU) read(r *Region) (*Array, error) {
	hdr, err := h.Header()
	if err != nil {
		return nil, err
	}

	dt, err := imageDataType(hdr, h.idx)
	if err != nil {
		return nil, err
	}

	shape, err := imageShape(hdr, h.idx)
	if err != nil {
		return nil, err
	}

	data, err := h.sess.eng.ReadImage(h.idx-1, dt, r)
	if err != nil {
		return nil, fmt.Errorf("hdu %d: %w", h.idx, err)
	}

	if r != nil {
		shape = make([]int, len(r.Start))
		for i := range shape {
			shape[i] = r.End[i] - r.Start[i]
		}
	}

	return &Array{Type: dt, Shape: shape, Data: data}, nil
}

// WriteData replaces the full data array. The array's element type and
// count must match the HDU's declared geometry.
func (h *ImageHDU) WriteData(a *Array) error {
	guardErr := h.guard()
	if guardErr != nil {
		return guardErr
	}

	if h.sess.mode == ReadOnly {
		return ErrReadOnly
	}

	dt, err := h.DataType()
	if err != nil {
		return err
	}

	if a.Type != dt {
		return fmt.Errorf("fits: hdu %d: array is %s, image holds %s", h.idx, a.Type, dt)
	}

	err = h.sess.eng.WriteImage(h.idx-1, dt, a.Data)
	if err != nil {
		return fmt.Errorf("hdu %d: %w", h.idx, err)
	}

	return nil
}
