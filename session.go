package fits

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Mode controls how a [Session] opens its file.
type Mode uint8

// Mode values.
const (
	// ReadOnly opens an existing file for reading; all mutating operations
	// fail with [ErrReadOnly].
	ReadOnly Mode = iota

	// ReadWrite opens an existing file for reading and writing.
	ReadWrite

	// ReadWriteCreate opens for reading and writing, creating an empty file
	// if none exists.
	ReadWriteCreate

	// Overwrite creates or truncates the file and opens it for writing.
	Overwrite
)

// ParseMode maps the conventional mode strings onto [Mode] values: "r",
// "r+", "rw", and "w". Anything else fails with [ErrInvalidMode].
func ParseMode(s string) (Mode, error) {
	switch s {
	case "r":
		return ReadOnly, nil
	case "r+":
		return ReadWrite, nil
	case "rw":
		return ReadWriteCreate, nil
	case "w":
		return Overwrite, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// String returns the conventional mode string.
func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "r"
	case ReadWrite:
		return "r+"
	case ReadWriteCreate:
		return "rw"
	case Overwrite:
		return "w"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Option configures a [Session] at open time.
type Option func(*sessionConfig)

type sessionConfig struct {
	logger *zap.Logger
	eng    Engine
}

// WithLogger attaches a logger to the session and its engine. The default is
// a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *sessionConfig) { c.logger = l }
}

// WithEngine substitutes the file engine the session drives. The default is
// the native codec from [OpenNative]; tests inject fakes here.
func WithEngine(e Engine) Option {
	return func(c *sessionConfig) { c.eng = e }
}

// Session is an open FITS file: a sequence of HDUs addressed by a 1-based
// index, where index 1 is the primary HDU.
//
// The session hands out identity-stable handles: as long as the extension
// layout is unchanged, repeated lookups of the same index return the same
// [HDU] object. Deleting an extension invalidates every cached handle at or
// beyond the deleted index; those handles fail with [ErrStale] until
// re-fetched.
//
// A Session is not safe for concurrent use.
type Session struct {
	path string
	mode Mode
	eng  Engine
	log  *zap.SugaredLogger

	hdus   map[int]HDU // live handles by public index
	closed bool
}

// Open opens the FITS file at path.
func Open(path string, mode Mode, opts ...Option) (*Session, error) {
	var cfg sessionConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	if cfg.eng == nil {
		eng, err := OpenNative(path, mode, cfg.logger)
		if err != nil {
			return nil, err
		}

		cfg.eng = eng
	}

	return &Session{
		path: path,
		mode: mode,
		eng:  cfg.eng,
		log:  cfg.logger.Sugar(),
		hdus: make(map[int]HDU),
	}, nil
}

// Path returns the path the session was opened with.
func (s *Session) Path() string { return s.path }

// Mode returns the open mode.
func (s *Session) Mode() Mode { return s.mode }

// NumHDUs returns the number of HDUs in the file.
func (s *Session) NumHDUs() (int, error) {
	if s.closed {
		return 0, ErrClosed
	}

	return s.eng.NumHDUs()
}

// HDU returns the handle for the extension at the given 1-based index; index
// 1 is the primary HDU. The same index returns the same handle until the
// layout changes. Out-of-range indices fail with [ErrExtensionNotFound].
func (s *Session) HDU(index int) (HDU, error) {
	if s.closed {
		return nil, ErrClosed
	}

	if h, ok := s.hdus[index]; ok {
		return h, nil
	}

	n, err := s.eng.NumHDUs()
	if err != nil {
		return nil, err
	}

	if index < 1 || index > n {
		return nil, fmt.Errorf("%w: index %d, file has %d hdus", ErrExtensionNotFound, index, n)
	}

	typ, err := s.eng.HDUType(index - 1)
	if err != nil {
		return nil, err
	}

	h := newHDU(s, index, typ)
	s.hdus[index] = h

	return h, nil
}

func newHDU(s *Session, index int, typ HDUType) HDU {
	core := hduCore{sess: s, idx: index, typ: typ}

	switch typ {
	case BinaryTableType:
		return &BinTableHDU{tableHDU{core}}
	case ASCIITableType:
		return &AsciiTableHDU{tableHDU{core}}
	default:
		return &ImageHDU{core}
	}
}

// HDUByName returns the first extension whose EXTNAME card matches name
// (case-insensitive). The primary HDU is included in the scan. Fails with
// [ErrExtensionNotFound] when no extension matches.
func (s *Session) HDUByName(name string) (HDU, error) {
	if s.closed {
		return nil, ErrClosed
	}

	n, err := s.eng.NumHDUs()
	if err != nil {
		return nil, err
	}

	for ext := 0; ext < n; ext++ {
		cards, err := s.eng.ReadHeader(ext)
		if err != nil {
			return nil, err
		}

		for _, c := range cards {
			if !strings.EqualFold(c.Key, "EXTNAME") {
				continue
			}

			if v, ok := c.Value.AsString(); ok && strings.EqualFold(strings.TrimSpace(v), name) {
				return s.HDU(ext + 1)
			}

			break
		}
	}

	return nil, fmt.Errorf("%w: no extension named %q", ErrExtensionNotFound, name)
}

// AppendImage adds a zero-filled image HDU with the given element type and
// shape to the end of the file and returns its handle. Appending to an empty
// file creates the primary HDU.
func (s *Session) AppendImage(dt DataType, shape []int) (*ImageHDU, error) {
	if s.closed {
		return nil, ErrClosed
	}

	if s.mode == ReadOnly {
		return nil, ErrReadOnly
	}

	err := s.eng.AppendImage(dt, shape)
	if err != nil {
		return nil, err
	}

	n, err := s.eng.NumHDUs()
	if err != nil {
		return nil, err
	}

	h, err := s.HDU(n)
	if err != nil {
		return nil, err
	}

	img, ok := h.(*ImageHDU)
	if !ok {
		return nil, fmt.Errorf("%w: appended hdu %d is not an image", ErrCorrupt, n)
	}

	s.log.Debugw("appended image hdu", "path", s.path, "index", n, "type", dt.String(), "shape", shape)

	return img, nil
}

// DeleteHDU removes the extension at the given 1-based index and rewrites
// the file without it. The primary HDU (index 1) cannot be deleted.
//
// Deletion renumbers every later extension, so the session evicts and marks
// stale all cached handles at or beyond the deleted index; using one of
// those handles afterwards fails with [ErrStale]. Handles below the deleted
// index keep their identity.
func (s *Session) DeleteHDU(index int) error {
	if s.closed {
		return ErrClosed
	}

	if s.mode == ReadOnly {
		return ErrReadOnly
	}

	n, err := s.eng.NumHDUs()
	if err != nil {
		return err
	}

	if index < 1 || index > n {
		return fmt.Errorf("%w: index %d, file has %d hdus", ErrExtensionNotFound, index, n)
	}

	err = s.eng.DeleteHDU(index - 1)
	if err != nil {
		return err
	}

	for idx, h := range s.hdus {
		if idx >= index {
			h.core().stale = true
			delete(s.hdus, idx)
		}
	}

	s.log.Debugw("deleted hdu", "path", s.path, "index", index)

	return nil
}

// Flush commits pending writes to stable storage.
func (s *Session) Flush() error {
	if s.closed {
		return ErrClosed
	}

	return s.eng.Flush()
}

// Close releases the underlying file. Close is idempotent; every other
// operation on the session or its handles fails with [ErrClosed] afterwards.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	return s.eng.Close()
}
