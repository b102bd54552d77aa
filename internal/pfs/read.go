package pfs

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/ossyrian/pfsparse/internal/bin"
	"github.com/ossyrian/pfsparse/internal/checksum"
)

// parse decodes data into a. On error a is left unusable and must be dropped.
func (a *Archive) parse(data []byte) error {
	r := bin.NewReader(data)

	dirOffset, err := r.Uint32()
	if err != nil {
		return fmt.Errorf("failed to read directory offset: %w", err)
	}
	magic, err := r.Bytes(len(Magic))
	if err != nil {
		return fmt.Errorf("failed to read magic: %w", err)
	}
	if !bytes.Equal(magic, Magic[:]) {
		return fmt.Errorf("%w: expected %q, got %q", ErrBadMagic, Magic[:], magic)
	}
	if a.version, err = r.Uint32(); err != nil {
		return fmt.Errorf("failed to read version: %w", err)
	}

	records, footer, err := readDirectory(r, dirOffset)
	if err != nil {
		return err
	}
	a.footer = footer

	a.logger.Debug("read directory",
		"dir_offset", dirOffset,
		"record_count", len(records),
		"version", a.version,
		"has_footer", footer != nil,
	)

	tableIndex := -1
	files := make([]dirRecord, 0, len(records))
	for i, rec := range records {
		if rec.CRC != FilenameTableCRC {
			files = append(files, rec)
			continue
		}
		if tableIndex >= 0 {
			return fmt.Errorf("%w: more than one filename table record", ErrFilenameTable)
		}
		tableIndex = i
	}
	if tableIndex < 0 {
		return fmt.Errorf("%w: no filename table record", ErrFilenameTable)
	}

	table, err := a.readBlocks(data, records[tableIndex])
	if err != nil {
		return fmt.Errorf("failed to read filename table: %w", err)
	}
	names, err := readFilenames(table)
	if err != nil {
		return fmt.Errorf("failed to read filename table: %w", err)
	}

	contents := make([][]byte, len(files))
	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, rec := range files {
		g.Go(func() error {
			b, err := a.readBlocks(data, rec)
			if err != nil {
				return fmt.Errorf("failed to read file at offset %d: %w", rec.Offset, err)
			}
			contents[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	resolved, err := a.resolveNames(files, names)
	if err != nil {
		return err
	}

	for i, name := range resolved {
		key := normalize(name)
		if _, dup := a.files.Get(entry{name: key}); dup {
			a.logger.Warn("duplicate entry name, keeping first", "name", name)
			continue
		}
		a.files.Set(entry{name: key, data: contents[i]})
	}

	a.logger.Info("opened archive",
		"file_count", a.files.Len(),
		"footer", footer != nil,
	)
	return nil
}

// readDirectory reads the directory at offset and the optional footer right after it.
func readDirectory(r *bin.Reader, offset uint32) ([]dirRecord, *Footer, error) {
	if err := r.Seek(int(offset)); err != nil {
		return nil, nil, fmt.Errorf("failed to seek to directory: %w", err)
	}

	count, err := r.Uint32()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read directory count: %w", err)
	}
	if uint64(count)*dirRecordSize > uint64(r.Remaining()) {
		return nil, nil, fmt.Errorf("%w: directory declares %d records, only %d bytes remain",
			ErrTruncated, count, r.Remaining())
	}

	records := make([]dirRecord, count)
	for i := range records {
		rec := &records[i]
		if rec.CRC, err = r.Int32(); err != nil {
			return nil, nil, fmt.Errorf("failed to read directory record %d: %w", i, err)
		}
		if rec.Offset, err = r.Uint32(); err != nil {
			return nil, nil, fmt.Errorf("failed to read directory record %d: %w", i, err)
		}
		if rec.Size, err = r.Uint32(); err != nil {
			return nil, nil, fmt.Errorf("failed to read directory record %d: %w", i, err)
		}
	}

	if r.Remaining() == 0 {
		return records, nil, nil
	}
	if r.Remaining() < footerSize {
		return nil, nil, fmt.Errorf("%w: %d trailing bytes, footer needs %d",
			ErrTruncated, r.Remaining(), footerSize)
	}

	footer := &Footer{}
	tag, _ := r.Bytes(len(footer.Tag))
	copy(footer.Tag[:], tag)
	footer.Date, _ = r.Uint32()

	return records, footer, nil
}

// readBlocks inflates the block run described by rec.
func (a *Archive) readBlocks(data []byte, rec dirRecord) ([]byte, error) {
	r := bin.NewReader(data)
	if err := r.Seek(int(rec.Offset)); err != nil {
		return nil, err
	}

	size := int(rec.Size)
	out := make([]byte, 0, min(size, 16*len(data)))
	for len(out) < size {
		pos := r.Pos()

		deflateLen, err := r.Uint32()
		if err != nil {
			return nil, fmt.Errorf("failed to read block header at offset %d: %w", pos, err)
		}
		inflateLen, err := r.Uint32()
		if err != nil {
			return nil, fmt.Errorf("failed to read block header at offset %d: %w", pos, err)
		}
		if inflateLen == 0 || inflateLen > BlockSize || uint64(len(out))+uint64(inflateLen) > uint64(size) {
			return nil, fmt.Errorf("%w: block at offset %d inflates to %d bytes, %d of %d remain",
				ErrBlockFraming, pos, inflateLen, size-len(out), size)
		}

		block, err := r.Bytes(int(deflateLen))
		if err != nil {
			return nil, fmt.Errorf("failed to read block at offset %d: %w", pos, err)
		}
		inflated, err := a.codec.Inflate(block, int(inflateLen))
		if err != nil {
			return nil, fmt.Errorf("%w: block at offset %d: %w", ErrBlockFraming, pos, err)
		}
		out = append(out, inflated...)
	}
	return out, nil
}

// readFilenames decodes the filename table payload.
//
// Each name is a u32 length followed by that many bytes. The stored bytes normally
// end in a NUL, which is stripped; names written without one are accepted as-is.
func readFilenames(table []byte) ([]string, error) {
	r := bin.NewReader(table)

	count, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("failed to read name count: %w", err)
	}
	if uint64(count)*4 > uint64(r.Remaining()) {
		return nil, fmt.Errorf("%w: %d names declared in %d bytes", ErrTruncated, count, r.Remaining())
	}

	names := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		n, err := r.Uint32()
		if err != nil {
			return nil, fmt.Errorf("failed to read name %d length: %w", i, err)
		}
		b, err := r.Bytes(int(n))
		if err != nil {
			return nil, fmt.Errorf("failed to read name %d: %w", i, err)
		}
		if j := bytes.IndexByte(b, 0); j >= 0 {
			b = b[:j]
		}
		names = append(names, string(b))
	}
	return names, nil
}

// resolveNames pairs each file record with a name.
//
// A record takes the name whose checksum matches its own. Records left over are
// paired with the leftover names in ascending offset order, which is how the
// filename table is laid out by the game's writer.
func (a *Archive) resolveNames(files []dirRecord, names []string) ([]string, error) {
	byCRC := make(map[int32][]int, len(names))
	for i, name := range names {
		crc := checksum.String(name)
		byCRC[crc] = append(byCRC[crc], i)
	}

	resolved := make([]string, len(files))
	used := make([]bool, len(names))
	var unmatched []int
	for i, rec := range files {
		idx := -1
		for _, j := range byCRC[rec.CRC] {
			if !used[j] {
				idx = j
				break
			}
		}
		if idx < 0 {
			unmatched = append(unmatched, i)
			continue
		}
		used[idx] = true
		resolved[i] = names[idx]
	}

	if len(unmatched) > 0 {
		slices.SortFunc(unmatched, func(x, y int) int {
			return cmp.Compare(files[x].Offset, files[y].Offset)
		})

		next := 0
		for _, i := range unmatched {
			for next < len(names) && used[next] {
				next++
			}
			if next >= len(names) {
				return nil, fmt.Errorf("%w: %d files, %d names", ErrFilenameTable, len(files), len(names))
			}
			used[next] = true
			resolved[i] = names[next]
			a.logger.Debug("paired file by position",
				"name", names[next],
				"crc", files[i].CRC,
				"offset", files[i].Offset,
			)
		}
	}

	if extra := len(names) - len(files); extra > 0 {
		a.logger.Debug("filename table has unused names", "count", extra)
	}
	return resolved, nil
}
