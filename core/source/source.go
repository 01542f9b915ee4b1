// Package source supplies normalized text lines from in-memory text,
// streams and files.
//
// A Reader is a lazy, finite, non-restartable sequence: lines are produced
// one pull at a time as the underlying source delivers bytes, so inputs with
// tens of thousands of records never have to be held in memory. CR and CRLF
// line endings fold to LF, a leading byte-order mark is removed from the first
// line only, and a final line without a terminator is still produced.
//
// Closing a Reader stops production; lines already returned stay valid.
package source

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"iter"
	"os"
	"strings"
	"sync/atomic"

	"github.com/ulikunitz/xz"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	apperrors "github.com/FocuswithJustin/Lineage/core/errors"
)

const utf8BOM = "\uFEFF"

// osOpen is a variable to allow testing of open errors.
var osOpen = func(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Option configures a Reader.
type Option func(*config)

type config struct {
	encoding string
	label    string
}

// WithEncoding decodes the source from a legacy character set (any WHATWG
// label such as "windows-1252" or "iso-8859-1"). UTF-16 sources are detected
// from their byte-order mark and need no option.
func WithEncoding(name string) Option {
	return func(c *config) { c.encoding = name }
}

// WithLabel names the source in error messages (a path or URL).
func WithLabel(label string) Option {
	return func(c *config) { c.label = label }
}

// Reader produces normalized lines from an underlying byte source.
type Reader struct {
	br     *bufio.Reader
	closer io.Closer
	digest hash.Hash
	label  string

	buf    bytes.Buffer
	line   int
	err    error
	closed atomic.Bool
}

// New wraps r. If r is also an io.Closer, Close closes it.
func New(r io.Reader, opts ...Option) (*Reader, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	digest := sha256.New()
	raw := bufio.NewReader(io.TeeReader(r, digest))

	decoded, err := decoderFor(raw, cfg.encoding)
	if err != nil {
		return nil, err
	}

	rd := &Reader{
		br:     bufio.NewReader(decoded),
		digest: digest,
		label:  cfg.label,
	}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	return rd, nil
}

// FromReader reads lines from a stream.
func FromReader(r io.Reader, opts ...Option) (*Reader, error) {
	return New(r, opts...)
}

// FromString reads lines from in-memory text.
func FromString(s string, opts ...Option) (*Reader, error) {
	return New(strings.NewReader(s), opts...)
}

// FromBytes reads lines from an in-memory byte slice.
func FromBytes(b []byte, opts ...Option) (*Reader, error) {
	return New(bytes.NewReader(b), opts...)
}

// Open reads lines from a file. Files ending in .xz or .gz are
// decompressed on the fly.
func Open(path string, opts ...Option) (*Reader, error) {
	f, err := osOpen(path)
	if err != nil {
		return nil, apperrors.NewIO("open", path, err)
	}

	var (
		stream io.Reader = f
		closer io.Closer = f
	)
	switch {
	case strings.HasSuffix(path, ".xz"):
		xzr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, apperrors.NewIO("open xz stream", path, err)
		}
		stream = xzr
	case strings.HasSuffix(path, ".gz"):
		gzr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, apperrors.NewIO("open gzip stream", path, err)
		}
		stream = gzr
		closer = multiCloser{gzr, f}
	}

	opts = append([]Option{WithLabel(path)}, opts...)
	rd, err := New(stream, opts...)
	if err != nil {
		closer.Close()
		return nil, err
	}
	rd.closer = closer
	return rd, nil
}

// CheckEncoding reports an *errors.UnsupportedError when name is not an
// encoding WithEncoding accepts.
func CheckEncoding(name string) error {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return nil
	}
	if _, err := htmlindex.Get(name); err != nil {
		return apperrors.NewUnsupported("encoding", name)
	}
	return nil
}

// decoderFor picks the character decoding for raw. A UTF-16 byte-order mark
// wins over the configured encoding.
func decoderFor(raw *bufio.Reader, name string) (io.Reader, error) {
	if bom, err := raw.Peek(2); err == nil {
		switch {
		case bom[0] == 0xFF && bom[1] == 0xFE:
			dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
			return transform.NewReader(raw, dec), nil
		case bom[0] == 0xFE && bom[1] == 0xFF:
			dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
			return transform.NewReader(raw, dec), nil
		}
	}

	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return raw, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, apperrors.NewUnsupported("encoding", name)
	}
	return transform.NewReader(raw, enc.NewDecoder()), nil
}

// Next returns the next line without its terminator. It returns io.EOF after
// the last line, errors.ErrClosed after Close, and an *errors.IOError when
// the underlying source fails. Bytes of a line interrupted by a read failure
// are returned first; the failure is reported on the following call.
func (r *Reader) Next() (string, error) {
	if r.closed.Load() {
		return "", apperrors.ErrClosed
	}
	if r.err != nil {
		return "", r.err
	}

	r.buf.Reset()
	for {
		b, err := r.br.ReadByte()
		if err != nil {
			if r.closed.Load() {
				return "", apperrors.ErrClosed
			}
			if err == io.EOF {
				r.err = io.EOF
			} else {
				r.err = &apperrors.IOError{Operation: "read", Path: r.label, Line: r.line, Err: err}
			}
			if r.buf.Len() > 0 {
				return r.emit(), nil
			}
			return "", r.err
		}

		switch b {
		case '\n':
			return r.emit(), nil
		case '\r':
			if next, err := r.br.Peek(1); err == nil && next[0] == '\n' {
				r.br.ReadByte()
			}
			return r.emit(), nil
		default:
			r.buf.WriteByte(b)
		}
	}
}

func (r *Reader) emit() string {
	s := r.buf.String()
	if r.line == 0 {
		s = strings.TrimPrefix(s, utf8BOM)
	}
	r.line++
	return s
}

// Lines returns the remaining lines as an iterator. Iteration stops after
// the last line or after yielding the first error.
func (r *Reader) Lines() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			line, err := r.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(line, nil) {
				return
			}
		}
	}
}

// Line returns the number of lines produced so far.
func (r *Reader) Line() int {
	return r.line
}

// Sum returns the hex SHA-256 of the raw bytes consumed so far. After io.EOF
// it is the digest of the whole source.
func (r *Reader) Sum() string {
	return hex.EncodeToString(r.digest.Sum(nil))
}

// Close stops line production and closes the underlying source if it is
// closable. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
