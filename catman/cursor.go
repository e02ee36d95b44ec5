package catman

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"
)

// unknownString replaces string fields whose bytes are not valid UTF-8 even
// after the 0xC2 retry.
const unknownString = "unknown"

// Cursor reads primitives sequentially from a seekable byte source. It never
// aligns or pads on its own; every offset comes from the stream.
type Cursor struct {
	rs      io.ReadSeeker
	br      *bufio.Reader
	order   binary.ByteOrder
	pos     int64
	size    int64
	scratch [8]byte
}

// NewCursor wraps rs, starting at its current offset.
func NewCursor(rs io.ReadSeeker, order binary.ByteOrder) (*Cursor, error) {
	if order == nil {
		order = binary.LittleEndian
	}
	pos, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("failed to query start offset: %w", err)
	}
	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to query size: %w", err)
	}
	if _, err := rs.Seek(pos, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to restore start offset: %w", err)
	}
	return &Cursor{
		rs:    rs,
		br:    bufio.NewReaderSize(rs, 64*1024),
		order: order,
		pos:   pos,
		size:  size,
	}, nil
}

// Tell returns the absolute offset of the next byte to be read.
func (c *Cursor) Tell() int64 { return c.pos }

// Size returns the total length of the underlying stream.
func (c *Cursor) Size() int64 { return c.size }

// Remaining returns the number of bytes between the cursor and the end of
// the stream.
func (c *Cursor) Remaining() int64 { return max(c.size-c.pos, 0) }

// Need fails with ErrTruncated unless n more bytes are available. Lengths
// read from the stream go through Need before anything is allocated for them.
func (c *Cursor) Need(n int64) error {
	if n < 0 {
		return fmt.Errorf("%w: %d bytes at offset %d", ErrNegativeLength, n, c.pos)
	}
	if n > c.Remaining() {
		return fmt.Errorf("%w: need %d bytes at offset %d, %d left", ErrTruncated, n, c.pos, c.Remaining())
	}
	return nil
}

// Order returns the byte order used for multi-byte reads.
func (c *Cursor) Order() binary.ByteOrder { return c.order }

// Seek moves the cursor to the absolute offset off.
func (c *Cursor) Seek(off int64) error {
	if off < 0 {
		return fmt.Errorf("seek to negative offset %d", off)
	}
	delta := off - c.pos
	if delta >= 0 && delta <= int64(c.br.Buffered()) {
		_, _ = c.br.Discard(int(delta))
		c.pos = off
		return nil
	}
	if _, err := c.rs.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("seek to %d: %w", off, err)
	}
	c.br.Reset(c.rs)
	c.pos = off
	return nil
}

// Skip advances the cursor by n bytes without decoding them.
func (c *Cursor) Skip(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: skip %d", ErrNegativeLength, n)
	}
	got, err := c.br.Discard(n)
	c.pos += int64(got)
	if err != nil {
		return c.wrapShort(err, n)
	}
	return nil
}

// ReadFull fills p from the stream.
func (c *Cursor) ReadFull(p []byte) error {
	got, err := io.ReadFull(c.br, p)
	c.pos += int64(got)
	if err != nil {
		return c.wrapShort(err, len(p))
	}
	return nil
}

func (c *Cursor) wrapShort(err error, want int) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: need %d bytes before offset %d", ErrTruncated, want, c.pos)
	}
	return err
}

func (c *Cursor) fixed(n int) ([]byte, error) {
	b := c.scratch[:n]
	if err := c.ReadFull(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ReadByte reads one unsigned byte.
func (c *Cursor) ReadByte() (byte, error) {
	b, err := c.fixed(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadInt16 reads a signed 16-bit integer.
func (c *Cursor) ReadInt16() (int16, error) {
	v, err := c.ReadUint16()
	return int16(v), err
}

// ReadUint16 reads an unsigned 16-bit integer.
func (c *Cursor) ReadUint16() (uint16, error) {
	b, err := c.fixed(2)
	if err != nil {
		return 0, err
	}
	return c.order.Uint16(b), nil
}

// ReadInt32 reads a signed 32-bit integer.
func (c *Cursor) ReadInt32() (int32, error) {
	b, err := c.fixed(4)
	if err != nil {
		return 0, err
	}
	return int32(c.order.Uint32(b)), nil
}

// ReadFloat32 reads an IEEE-754 single precision float.
func (c *Cursor) ReadFloat32() (float32, error) {
	b, err := c.fixed(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(c.order.Uint32(b)), nil
}

// ReadFloat64 reads an IEEE-754 double precision float.
func (c *Cursor) ReadFloat64() (float64, error) {
	b, err := c.fixed(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(c.order.Uint64(b)), nil
}

// ReadString reads exactly n bytes and decodes them as text. Content problems
// never fail the read; see decodeText.
func (c *Cursor) ReadString(n int) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("%w: string of %d bytes at offset %d", ErrNegativeLength, n, c.pos)
	}
	if n == 0 {
		return "", nil
	}
	if err := c.Need(int64(n)); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if err := c.ReadFull(b); err != nil {
		return "", err
	}
	return decodeText(b), nil
}

// ReadString16 reads an int16 length prefix followed by that many bytes.
func (c *Cursor) ReadString16() (string, error) {
	n, err := c.ReadInt16()
	if err != nil {
		return "", err
	}
	return c.ReadString(int(n))
}

// ReadString32 reads an int32 length prefix followed by that many bytes.
func (c *Cursor) ReadString32() (string, error) {
	n, err := c.ReadInt32()
	if err != nil {
		return "", err
	}
	return c.ReadString(int(n))
}

// decodeText interprets b as UTF-8. Some instrument versions store Latin-1
// characters in the 0x80-0xBF range as a bare continuation byte; prefixing
// 0xC2 repairs those. Anything else becomes unknownString.
func decodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	fixed := make([]byte, 0, len(b)+1)
	fixed = append(fixed, 0xC2)
	fixed = append(fixed, b...)
	if utf8.Valid(fixed) {
		return string(fixed)
	}
	return unknownString
}

// fieldReader reads a run of fields and keeps the first error, so record
// layouts read top to bottom like the record they decode.
type fieldReader struct {
	c   *Cursor
	err error
}

func (r *fieldReader) i16() int16 {
	if r.err != nil {
		return 0
	}
	v, err := r.c.ReadInt16()
	r.err = err
	return v
}

func (r *fieldReader) i32() int32 {
	if r.err != nil {
		return 0
	}
	v, err := r.c.ReadInt32()
	r.err = err
	return v
}

func (r *fieldReader) f32() float32 {
	if r.err != nil {
		return 0
	}
	v, err := r.c.ReadFloat32()
	r.err = err
	return v
}

func (r *fieldReader) f64() float64 {
	if r.err != nil {
		return 0
	}
	v, err := r.c.ReadFloat64()
	r.err = err
	return v
}

func (r *fieldReader) u8() byte {
	if r.err != nil {
		return 0
	}
	v, err := r.c.ReadByte()
	r.err = err
	return v
}

// fixedStr reads an n byte NUL padded string.
func (r *fieldReader) fixedStr(n int) string {
	if r.err != nil {
		return ""
	}
	v, err := r.c.ReadString(n)
	r.err = err
	return strings.TrimRight(v, "\x00")
}

func (r *fieldReader) str16() string {
	if r.err != nil {
		return ""
	}
	v, err := r.c.ReadString16()
	r.err = err
	return v
}

func (r *fieldReader) str32() string {
	if r.err != nil {
		return ""
	}
	v, err := r.c.ReadString32()
	r.err = err
	return v
}

func (r *fieldReader) skip(n int) {
	if r.err != nil {
		return
	}
	r.err = r.c.Skip(n)
}
