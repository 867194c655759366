// Package cursor implements a positioned reader over an in-memory byte
// buffer.
//
// A Cursor borrows its buffer; callers must not modify the data while the
// cursor is alive. Reads are little-endian and bounds-checked. Methods with
// an At suffix read at an explicit offset without moving the position.
package cursor

import (
	"errors"
	"iter"
)

// Seek whence values.
const (
	// SeekStart interprets the offset as an absolute position.
	SeekStart = iota

	// SeekCurrent interprets the offset relative to the current position.
	SeekCurrent
)

// Sentinel errors returned by cursor operations.
var (
	// ErrOutOfBounds is returned when a fixed-width read would exceed the buffer.
	ErrOutOfBounds = errors.New("vpk: read out of bounds")

	// ErrInsufficientData is returned when fewer bytes remain than requested.
	ErrInsufficientData = errors.New("vpk: insufficient data")

	// ErrInvalidOffset is returned when a seek target falls outside the buffer.
	ErrInvalidOffset = errors.New("vpk: invalid offset")
)

// Cursor reads fixed-width integers, null-terminated strings, and raw byte
// ranges from a borrowed buffer while tracking a mutable position.
type Cursor struct {
	data []byte
	pos  int
}

// New creates a Cursor positioned at the start of data.
//
// The buffer is retained, not copied; callers must not modify it while the
// cursor is in use.
func New(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Len returns the total length of the underlying buffer.
func (c *Cursor) Len() int {
	return len(c.data)
}

// Pos returns the current position.
func (c *Cursor) Pos() int {
	return c.pos
}

// AtEnd reports whether the position has reached the end of the buffer.
func (c *Cursor) AtEnd() bool {
	return c.pos >= len(c.data)
}

// Reset moves the position back to the start of the buffer.
func (c *Cursor) Reset() {
	c.pos = 0
}

// Uint32 reads a little-endian uint32 at the current position and advances
// by four bytes.
func (c *Cursor) Uint32() (uint32, error) {
	v, err := c.Uint32At(c.pos)
	if err != nil {
		return 0, err
	}
	c.pos += 4
	return v, nil
}

// Uint32At reads a little-endian uint32 at the given offset without moving
// the position.
func (c *Cursor) Uint32At(off int) (uint32, error) {
	if off < 0 || off+4 > len(c.data) {
		return 0, ErrOutOfBounds
	}
	return uint32(c.data[off]) |
		uint32(c.data[off+1])<<8 |
		uint32(c.data[off+2])<<16 |
		uint32(c.data[off+3])<<24, nil
}

// Uint16 reads a little-endian uint16 at the current position and advances
// by two bytes.
func (c *Cursor) Uint16() (uint16, error) {
	v, err := c.Uint16At(c.pos)
	if err != nil {
		return 0, err
	}
	c.pos += 2
	return v, nil
}

// Uint16At reads a little-endian uint16 at the given offset without moving
// the position.
func (c *Cursor) Uint16At(off int) (uint16, error) {
	if off < 0 || off+2 > len(c.data) {
		return 0, ErrOutOfBounds
	}
	return uint16(c.data[off]) | uint16(c.data[off+1])<<8, nil
}

// NullString reads a null-terminated ASCII string at the current position
// and advances one byte past the terminator.
//
// The position advances past the terminator even when the scan stopped at
// the end of the buffer with no zero byte present, so it can land one byte
// beyond the buffer length. Subsequent reads bounds-check against the buffer
// and fail normally from there.
func (c *Cursor) NullString() string {
	s, next := c.scan(c.pos)
	c.pos = next
	return s
}

// NullStringAt reads a null-terminated ASCII string at the given offset
// without moving the position.
func (c *Cursor) NullStringAt(off int) (string, error) {
	if off < 0 || off > len(c.data) {
		return "", ErrOutOfBounds
	}
	s, _ := c.scan(off)
	return s, nil
}

// scan decodes bytes from start until a zero byte or the end of the buffer,
// returning the decoded string and the position one past the terminator.
func (c *Cursor) scan(start int) (string, int) {
	if start >= len(c.data) {
		return "", start + 1
	}
	end := start
	for end < len(c.data) && c.data[end] != 0 {
		end++
	}
	return string(c.data[start:end]), end + 1
}

// Bytes returns the next n bytes and advances the position by n.
//
// The returned slice aliases the underlying buffer and must be treated as
// immutable.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if n < 0 || c.pos < 0 || c.pos+n > len(c.data) {
		return nil, ErrInsufficientData
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Seek moves the position to off, interpreted per whence, and returns the
// resulting position.
//
// The target must satisfy 0 < pos <= Len(). Seeking to absolute position
// zero is rejected; use Reset to rewind.
func (c *Cursor) Seek(off, whence int) (int, error) {
	pos := off
	if whence == SeekCurrent {
		pos = c.pos + off
	}
	if pos <= 0 || pos > len(c.data) {
		return 0, ErrInvalidOffset
	}
	c.pos = pos
	return pos, nil
}

// Remaining returns a single-pass iterator over the bytes from the current
// position to the end of the buffer.
//
// Consuming the iterator advances the shared position, so it interleaves
// destructively with other reads on the same cursor. The sequence is not
// restartable.
func (c *Cursor) Remaining() iter.Seq[byte] {
	return func(yield func(byte) bool) {
		for c.pos < len(c.data) {
			b := c.data[c.pos]
			c.pos++
			if !yield(b) {
				return
			}
		}
	}
}
