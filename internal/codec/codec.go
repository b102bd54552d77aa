// Package codec adapts a deflate implementation to the two pure functions the
// PFS container needs: compress a block, and inflate a block to a known length.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

// ErrInflate is returned when a block cannot be inflated to its declared length.
var ErrInflate = errors.New("inflate failed")

// Format selects the framing of compressed blocks.
type Format int

const (
	// FormatZlib wraps each deflate stream in a zlib header and Adler-32 trailer.
	// This is what shipped archives use.
	FormatZlib Format = iota
	// FormatDeflate writes bare deflate streams with no headers.
	FormatDeflate
)

func (f Format) String() string {
	switch f {
	case FormatZlib:
		return "zlib"
	case FormatDeflate:
		return "deflate"
	default:
		return "unknown"
	}
}

// ParseFormat converts a config value to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "zlib":
		return FormatZlib, nil
	case "deflate", "raw":
		return FormatDeflate, nil
	default:
		return 0, fmt.Errorf("unknown codec: %s", s)
	}
}

// Codec compresses and decompresses single blocks.
// Implementations must be safe for concurrent use.
type Codec interface {
	Deflate(src []byte) ([]byte, error)
	Inflate(src []byte, n int) ([]byte, error)
}

// Block is the default Codec.
//
// Deflate writes Format framing. Inflate sniffs the zlib header on each block,
// so archives written in either framing can be read.
type Block struct {
	Format Format
	Level  int
}

// New returns a Block codec writing the given format at the best compression level.
func New(format Format) *Block {
	return &Block{Format: format, Level: flate.BestCompression}
}

// Default is the codec used when none is configured.
var Default Codec = New(FormatZlib)

func (c *Block) Deflate(src []byte) ([]byte, error) {
	var buf bytes.Buffer

	var w io.WriteCloser
	var err error
	switch c.Format {
	case FormatDeflate:
		w, err = flate.NewWriter(&buf, c.Level)
	default:
		w, err = zlib.NewWriterLevel(&buf, c.Level)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s writer: %w", c.Format, err)
	}

	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("%s write: %w", c.Format, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%s close: %w", c.Format, err)
	}
	return buf.Bytes(), nil
}

// Inflate decompresses src and returns exactly n bytes.
// A stream that yields fewer than n bytes is an error.
func (c *Block) Inflate(src []byte, n int) ([]byte, error) {
	var r io.ReadCloser
	if hasZlibHeader(src) {
		zr, err := zlib.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInflate, err)
		}
		r = zr
	} else {
		r = flate.NewReader(bytes.NewReader(src))
	}
	defer r.Close()

	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("%w: want %d bytes: %v", ErrInflate, n, err)
	}
	return out, nil
}

// hasZlibHeader reports whether b starts with a valid zlib CMF/FLG pair using deflate.
func hasZlibHeader(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	cmf, flg := b[0], b[1]
	if cmf&0x0F != 8 || cmf>>4 > 7 {
		return false
	}
	return (uint16(cmf)<<8|uint16(flg))%31 == 0
}
