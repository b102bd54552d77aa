// Package wld decodes the WLD fragment graph.
//
// A WLD entry is a header, an obfuscated string pool and a flat run of records.
// Records are decoded strictly in order, and each is appended to the output before
// the next one is read, because later records refer back to earlier ones by
// 1-based position. Unknown kinds are kept as opaque placeholders so positions
// never shift.
package wld

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/ossyrian/pfsparse/internal/bin"
	"github.com/ossyrian/pfsparse/internal/strhash"
)

// Header is the fixed 28-byte WLD header.
type Header struct {
	Magic            uint32
	Version          uint32
	FragmentCount    uint32
	RegionCount      uint32
	Unknown1         uint32
	StringPoolLength uint32
	Unknown2         uint32
}

// Legacy reports whether the entry uses the old numeric encoding.
func (h *Header) Legacy() bool {
	return h.Version == VersionLegacy
}

// World is a decoded WLD entry.
type World struct {
	Header    Header
	Fragments []Fragment

	pool []byte
}

// Legacy reports whether the entry uses the old numeric encoding.
func (w *World) Legacy() bool {
	return w.Header.Legacy()
}

// Name returns the string-pool entry for a name reference, or "" if ref does not
// address the pool.
func (w *World) Name(ref int32) string {
	name, _ := poolString(w.pool, ref)
	return name
}

// Resolve dereferences a 1-based back-reference. 0 yields (nil, nil).
func (w *World) Resolve(ref uint32) (*Fragment, error) {
	return resolve(w.Fragments, ref)
}

// Decoder walks a WLD entry.
type Decoder struct {
	r      *bin.Reader
	logger *slog.Logger
	header *Header
	pool   []byte
	out    []Fragment
}

// NewDecoder returns a Decoder over data. A nil logger means slog.Default().
func NewDecoder(data []byte, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{
		r:      bin.NewReader(data),
		logger: logger,
	}
}

// Decode decodes a whole WLD entry with the default logger.
func Decode(data []byte) (*World, error) {
	return NewDecoder(data, nil).Decode()
}

// Offset returns the cursor position in the entry.
func (d *Decoder) Offset() int {
	return d.r.Pos()
}

// Fragments returns the records decoded so far.
func (d *Decoder) Fragments() []Fragment {
	return d.out
}

// ReadHeader reads and validates the header.
func (d *Decoder) ReadHeader() (*Header, error) {
	h := &Header{}
	fields := []*uint32{
		&h.Magic, &h.Version, &h.FragmentCount, &h.RegionCount,
		&h.Unknown1, &h.StringPoolLength, &h.Unknown2,
	}

	var err error
	if h.Magic, err = d.r.Uint32(); err != nil {
		return nil, fmt.Errorf("failed to read magic: %w", err)
	}
	if h.Magic != Magic {
		return nil, fmt.Errorf("%w: expected 0x%08X, got 0x%08X", ErrBadMagic, uint32(Magic), h.Magic)
	}
	for _, f := range fields[1:] {
		if *f, err = d.r.Uint32(); err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
	}
	if h.Version != VersionLegacy && h.Version != VersionCurrent {
		return nil, fmt.Errorf("%w: 0x%08X", ErrUnsupportedVersion, h.Version)
	}

	d.logger.Debug("read WLD header",
		"version", fmt.Sprintf("0x%08X", h.Version),
		"legacy", h.Legacy(),
		"fragment_count", h.FragmentCount,
		"string_pool_length", h.StringPoolLength,
	)

	d.header = h
	return h, nil
}

// ReadStringPool reads the string pool that follows the header and de-obfuscates it.
// The caller's buffer is not modified.
func (d *Decoder) ReadStringPool() error {
	if d.header == nil {
		return fmt.Errorf("string pool read before header")
	}
	raw, err := d.r.Bytes(int(d.header.StringPoolLength))
	if err != nil {
		return fmt.Errorf("failed to read string pool: %w", err)
	}
	d.pool = bytes.Clone(raw)
	strhash.Decode(d.pool)
	return nil
}

// ReadFragment reads the next record, decodes it and appends it.
//
// A record is {size u32, kind u32, name_ref i32} followed by size-4 payload bytes:
// size counts name_ref and the payload but not itself or kind.
func (d *Decoder) ReadFragment() error {
	start := d.r.Pos()

	size, err := d.r.Uint32()
	if err != nil {
		return fmt.Errorf("failed to read record size at offset %d: %w", start, err)
	}
	kind, err := d.r.Uint32()
	if err != nil {
		return fmt.Errorf("failed to read record kind at offset %d: %w", start, err)
	}
	nameRef, err := d.r.Int32()
	if err != nil {
		return fmt.Errorf("failed to read record name at offset %d: %w", start, err)
	}
	if size < 4 {
		return fmt.Errorf("%w: record at offset %d declares size %d", ErrTruncated, start, size)
	}

	body, err := d.r.Sub(int(size - 4))
	if err != nil {
		return fmt.Errorf("failed to read %s record at offset %d: %w", Kind(kind), start, err)
	}

	name, ok := poolString(d.pool, nameRef)
	if !ok {
		d.logger.Debug("name reference outside string pool",
			"index", len(d.out),
			"name_ref", nameRef,
		)
	}

	frag := Fragment{
		Kind:    Kind(kind),
		NameRef: nameRef,
		Name:    name,
		Size:    size,
	}

	payload, err := d.decodePayload(&frag, body)
	if err != nil {
		return fmt.Errorf("failed to decode %s record %d at offset %d: %w", frag.Kind, len(d.out), start, err)
	}
	if payload == nil {
		payload = &Opaque{}
	}
	frag.Payload = payload

	d.out = append(d.out, frag)
	return nil
}

// Decode reads the header, the string pool and every record.
func (d *Decoder) Decode() (*World, error) {
	if _, err := d.ReadHeader(); err != nil {
		return nil, err
	}
	if err := d.ReadStringPool(); err != nil {
		return nil, err
	}

	// cap the preallocation; the count is untrusted
	d.out = make([]Fragment, 0, min(int(d.header.FragmentCount), d.r.Remaining()/12))
	for i := uint32(0); i < d.header.FragmentCount; i++ {
		if err := d.ReadFragment(); err != nil {
			return nil, err
		}
	}

	d.logger.Debug("decoded WLD",
		"fragment_count", len(d.out),
		"trailing_bytes", d.r.Remaining(),
	)

	return &World{
		Header:    *d.header,
		Fragments: d.out,
		pool:      d.pool,
	}, nil
}

// decodePayload dispatches on kind. A nil payload with a nil error means the
// record carries nothing worth keeping.
func (d *Decoder) decodePayload(frag *Fragment, r *bin.Reader) (Payload, error) {
	switch frag.Kind {
	case KindTexture:
		return decodeTexture(r)
	case KindTextureBrush:
		return d.decodeTextureBrush(r)
	case KindTextureBrushModel, KindLightRef, KindMeshRef:
		return decodeModelRef(r)
	case KindPlaceable:
		return d.decodePlaceable(r)
	case KindLight:
		return decodeLight(r)
	case KindBSPTree:
		return decodeBSPTree(r)
	case KindBSPRegionContainer:
		return nil, nil
	case KindLightInstance:
		return d.decodeLightInstance(r)
	case KindBSPRegion:
		return d.decodeBSPRegion(frag.Name, r)
	case KindTextureBrushRef:
		return d.decodeTextureBrushRef(r)
	case KindTextureBrushSet:
		return d.decodeTextureBrushSet(r)
	case KindMesh:
		return d.decodeMesh(r, d.header.Legacy())
	default:
		return nil, nil
	}
}

// resolve dereferences a 1-based back-reference into frags.
func resolve(frags []Fragment, ref uint32) (*Fragment, error) {
	if ref == 0 {
		return nil, nil
	}
	if uint64(ref) > uint64(len(frags)) {
		return nil, fmt.Errorf("%w: %d with %d records decoded", ErrBadReference, ref, len(frags))
	}
	return &frags[ref-1], nil
}

// poolString reads the NUL-terminated string at offset -ref in pool.
// ok is false when a negative ref falls outside the pool.
func poolString(pool []byte, ref int32) (name string, ok bool) {
	if ref >= 0 {
		return "", true
	}
	off := -int64(ref)
	if off >= int64(len(pool)) {
		return "", false
	}
	s := pool[off:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s), true
}
