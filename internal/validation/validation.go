// Package validation checks command-line input before it reaches the core:
// paths, snapshot labels and the kind of content a file holds.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	apperrors "github.com/FocuswithJustin/Lineage/core/errors"
)

const (
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
	// MaxLabelLength is the maximum allowed snapshot label length.
	MaxLabelLength = 255
	// sniffLength is how much of a file DetectInput looks at.
	sniffLength = 512
)

// Common validation errors.
var (
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character")
	ErrInvalidLabel     = errors.New("invalid label")
)

// ValidatePath rejects empty paths, overlong paths and paths containing
// null bytes or control characters. "-" is accepted and means stdin.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// ValidateLabel checks a snapshot label. Labels are free text but must be
// non-blank, single-line and at most MaxLabelLength bytes.
func ValidateLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return fmt.Errorf("%w: label cannot be blank", ErrInvalidLabel)
	}
	if len(label) > MaxLabelLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidLabel, MaxLabelLength)
	}
	for _, r := range label {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidLabel)
		}
	}
	return nil
}

// InputType is the kind of content a file holds.
type InputType string

const (
	// InputInterchange is line-oriented interchange text in any encoding
	// the reader accepts.
	InputInterchange InputType = "interchange"
	// InputBundle is a serialized canonical bundle.
	InputBundle InputType = "bundle"
	// InputXZ and InputGzip are compressed streams.
	InputXZ   InputType = "xz"
	InputGzip InputType = "gzip"
	// InputBinary is anything else.
	InputBinary InputType = "binary"
)

// magicBytes defines signatures for content detection.
var magicBytes = []struct {
	inputType InputType
	magic     []byte
	offset    int
}{
	{InputGzip, []byte{0x1f, 0x8b}, 0},
	{InputXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}, 0},
	// UTF-16 byte-order marks, little and big endian.
	{InputInterchange, []byte{0xff, 0xfe}, 0},
	{InputInterchange, []byte{0xfe, 0xff}, 0},
	// ZIP and SQLite.
	{InputBinary, []byte{0x50, 0x4b, 0x03, 0x04}, 0},
	{InputBinary, []byte("SQLite format 3"), 0},
}

// DetectInput reads the start of r and reports what it holds. An empty
// input is interchange text with no records.
func DetectInput(r io.Reader) (InputType, error) {
	buf := make([]byte, sniffLength)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return InputBinary, fmt.Errorf("failed to read file header: %w", err)
	}
	buf = buf[:n]

	for _, sig := range magicBytes {
		end := sig.offset + len(sig.magic)
		if end <= len(buf) && bytes.Equal(buf[sig.offset:end], sig.magic) {
			return sig.inputType, nil
		}
	}
	if len(buf) == 0 {
		return InputInterchange, nil
	}
	if !isLikelyText(buf) {
		return InputBinary, nil
	}
	if trimmed := bytes.TrimLeft(buf, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '{' {
		return InputBundle, nil
	}
	return InputInterchange, nil
}

// CheckExtension reports an *errors.ValidationError when compressed
// content is stored under a name the reader would not decompress.
func CheckExtension(path string, t InputType) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case t == InputXZ && ext != ".xz":
		return apperrors.NewValidation("input", path, "content is xz-compressed but the name does not end in .xz")
	case t == InputGzip && ext != ".gz":
		return apperrors.NewValidation("input", path, "content is gzip-compressed but the name does not end in .gz")
	case t == InputBinary:
		return apperrors.NewValidation("input", path, "content is neither interchange text nor a bundle")
	}
	return nil
}

// isLikelyText reports whether more than 95% of the ASCII range bytes in
// buf are printable. Bytes at or above 0x80 are neutral, so UTF-8 and
// legacy 8-bit text both pass.
func isLikelyText(buf []byte) bool {
	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}
	printable, control := 0, 0
	for _, b := range buf {
		switch {
		case b >= 0x20 && b <= 0x7e, b == '\t', b == '\n', b == '\r':
			printable++
		case b < 0x20:
			control++
		}
	}
	if printable == 0 {
		// Entirely high-bit bytes: legacy text without ASCII.
		return control == 0
	}
	return float64(printable)/float64(printable+control) > 0.95
}
