package fits

import "errors"

// Sentinel errors returned by fits operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, fits.ErrKeyNotFound) {
//	    // fall back to a default
//	}
//
// Errors carry operation and extension/key context in their message via
// wrapping; the sentinels below are the stable classification.
var (
	// ErrLengthMismatch indicates the keys, values, and comments slices
	// passed to [HeaderFromSlices] differ in length.
	//
	// This is a programming error.
	ErrLengthMismatch = errors.New("fits: length mismatch")

	// ErrInvalidMode indicates an open mode string or [Mode] value outside
	// the supported set.
	ErrInvalidMode = errors.New("fits: invalid open mode")

	// ErrKeyNotFound indicates a header lookup for a key with no matching
	// card.
	//
	// Recovery: fall back to a default, or append the card with
	// [Header.Set].
	ErrKeyNotFound = errors.New("fits: key not found")

	// ErrColumnNotFound indicates a table column lookup that matched no
	// declared column name or index.
	ErrColumnNotFound = errors.New("fits: column not found")

	// ErrExtensionNotFound indicates an HDU index past the end of the file,
	// or an EXTNAME that matches no extension.
	ErrExtensionNotFound = errors.New("fits: extension not found")

	// ErrStale indicates an HDU handle used after a lower-indexed extension
	// was deleted from its session.
	//
	// The handle is permanently invalid. Recovery: re-fetch the HDU from the
	// session, which returns a fresh handle with the current numbering.
	ErrStale = errors.New("fits: stale hdu")

	// ErrClosed indicates an operation on a [Session], or on an HDU owned by
	// a session, after [Session.Close].
	//
	// This is a programming error.
	ErrClosed = errors.New("fits: session closed")

	// ErrCountMismatch indicates that the row or column count declared in a
	// table header disagrees with what the engine reports for the same
	// extension. The file is corrupt or was modified externally; the
	// disagreement is surfaced, never reconciled.
	ErrCountMismatch = errors.New("fits: row/column count mismatch")

	// ErrUnsupportedType indicates a BITPIX or TFORM type code outside the
	// known mapping. The value is never coerced to a nearby type.
	ErrUnsupportedType = errors.New("fits: unsupported type code")

	// ErrInvalidRegion indicates a sub-image region whose rank or bounds do
	// not match the image shape.
	//
	// This is a programming error.
	ErrInvalidRegion = errors.New("fits: invalid region")

	// ErrReadOnly indicates a mutating operation on a session opened with
	// [ReadOnly].
	ErrReadOnly = errors.New("fits: read-only session")

	// ErrCorrupt indicates bytes that cannot be interpreted as a FITS
	// structure (bad card image, truncated block, missing mandatory card).
	ErrCorrupt = errors.New("fits: corrupt file")
)
