// Package bin provides a bounds-checked little-endian cursor over an in-memory buffer.
//
// Every read checks the remaining length first and fails with ErrTruncated instead of
// reading past the end of the slice. Both the PFS container and the WLD fragment stream
// are decoded through it.
package bin

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrTruncated is returned when a read would run past the end of the buffer.
var ErrTruncated = errors.New("truncated data")

// Reader reads little-endian primitives from a byte slice.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a Reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current offset from the start of the buffer.
func (r *Reader) Pos() int { return r.pos }

// Len returns the total buffer length.
func (r *Reader) Len() int { return len(r.buf) }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// need reports ErrTruncated unless n more bytes are available.
func (r *Reader) need(n int) error {
	if n < 0 || n > len(r.buf)-r.pos {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrTruncated, n, r.pos, len(r.buf)-r.pos)
	}
	return nil
}

// Seek moves the cursor to an absolute offset. Seeking to Len() is allowed.
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > len(r.buf) {
		return fmt.Errorf("%w: seek to offset %d in %d byte buffer", ErrTruncated, pos, len(r.buf))
	}
	r.pos = pos
	return nil
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// Bytes returns the next n bytes without copying.
// The returned slice aliases the underlying buffer.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n : r.pos+n]
	r.pos += n
	return b, nil
}

// Sub returns a Reader over the next n bytes and advances past them.
func (r *Reader) Sub(n int) (*Reader, error) {
	b, err := r.Bytes(n)
	if err != nil {
		return nil, err
	}
	return NewReader(b), nil
}

func (r *Reader) Uint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) Int8() (int8, error) {
	v, err := r.Uint8()
	return int8(v), err
}

func (r *Reader) Uint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) Int16() (int16, error) {
	v, err := r.Uint16()
	return int16(v), err
}

func (r *Reader) Uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

func (r *Reader) Float32() (float32, error) {
	v, err := r.Uint32()
	return math.Float32frombits(v), err
}

// Uint32Slice reads n consecutive uint32 values.
// The length is checked before anything is allocated.
func (r *Reader) Uint32Slice(n int) ([]uint32, error) {
	if n < 0 || n > r.Remaining()/4 {
		return nil, fmt.Errorf("%w: %d uint32 values at offset %d, have %d bytes",
			ErrTruncated, n, r.pos, r.Remaining())
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(r.buf[r.pos:])
		r.pos += 4
	}
	return out, nil
}

// Float32Slice reads n consecutive float32 values.
// The length is checked before anything is allocated.
func (r *Reader) Float32Slice(n int) ([]float32, error) {
	if n < 0 || n > r.Remaining()/4 {
		return nil, fmt.Errorf("%w: %d float32 values at offset %d, have %d bytes",
			ErrTruncated, n, r.pos, r.Remaining())
	}
	out := make([]float32, n)
	if err := r.Float32s(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Float32s reads len(dst) consecutive float32 values into dst.
func (r *Reader) Float32s(dst []float32) error {
	if err := r.need(4 * len(dst)); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(r.buf[r.pos:]))
		r.pos += 4
	}
	return nil
}
