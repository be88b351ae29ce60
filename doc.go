// Package fits reads and writes FITS files, the standard container format
// for astronomical data: a sequence of header/data units (HDUs), each an
// 80-character card header followed by a big-endian data payload, packed
// into 2880-byte blocks.
//
// A [Session] is an open file. It hands out identity-stable [HDU] handles by
// 1-based index (index 1 is the primary HDU) or by EXTNAME. The concrete
// handle types are [ImageHDU], [BinTableHDU], and [AsciiTableHDU]; images
// support full, regional, and typed reads and writes, tables support
// column reads by name or position.
//
// Header state is never cached: [HDU.Header] returns a fresh snapshot and
// [HDU.WriteKey] persists immediately. [Header] itself is an ordered card
// store with first-occurrence lookup semantics, usable standalone.
//
// The low-level codec sits behind the [Engine] interface; [OpenNative] is
// the built-in implementation and [WithEngine] injects substitutes.
//
// Typical use:
//
//	sess, err := fits.Open("m31.fits", fits.ReadWrite)
//	if err != nil { ... }
//	defer sess.Close()
//
//	hdu, err := sess.HDU(1)
//	if err != nil { ... }
//
//	err = hdu.WriteKey("OBSERVER", fits.StringValue("Jane"), "")
//
// Sessions are not safe for concurrent use.
package fits
