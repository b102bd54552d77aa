package pfs

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/ossyrian/pfsparse/internal/checksum"
)

// Save serializes the archive to path.
// The archive is written to a temporary file in the same directory and renamed over path.
func (a *Archive) Save(path string) error {
	data, err := a.Bytes()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".pfs_*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to save archive: %w", err)
	}

	a.logger.Info("saved archive",
		"path", path,
		"file_count", a.files.Len(),
		"bytes", len(data),
	)
	return nil
}

// Bytes serializes the archive.
//
// Layout: header, every file's block run in name order, the filename table's block
// run, the directory sorted by checksum, then the footer if the archive has one.
func (a *Archive) Bytes() ([]byte, error) {
	if !a.open {
		return nil, ErrClosed
	}

	names := make([]string, 0, a.files.Len())
	payloads := make([][]byte, 0, a.files.Len()+1)
	a.files.Scan(func(e entry) bool {
		names = append(names, e.name)
		payloads = append(payloads, e.data)
		return true
	})
	payloads = append(payloads, filenameTable(names))

	framed := make([][]byte, len(payloads))
	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, p := range payloads {
		g.Go(func() error {
			b, err := a.frame(p)
			if err != nil {
				return err
			}
			framed[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writeUint32(&buf, 0) // directory offset, backfilled below
	buf.Write(Magic[:])
	writeUint32(&buf, a.version)

	records := make([]dirRecord, 0, len(payloads))
	for i, b := range framed {
		if uint64(buf.Len()) > math.MaxUint32 {
			return nil, fmt.Errorf("archive exceeds 4 GiB")
		}
		crc := FilenameTableCRC
		if i < len(names) {
			crc = checksum.String(names[i])
		}
		records = append(records, dirRecord{
			CRC:    crc,
			Offset: uint32(buf.Len()),
			Size:   uint32(len(payloads[i])),
		})
		buf.Write(b)
	}

	slices.SortFunc(records, func(x, y dirRecord) int {
		return cmp.Compare(x.CRC, y.CRC)
	})

	dirOffset := buf.Len()
	if uint64(dirOffset) > math.MaxUint32 {
		return nil, fmt.Errorf("archive exceeds 4 GiB")
	}
	writeUint32(&buf, uint32(len(records)))
	for _, rec := range records {
		writeUint32(&buf, uint32(rec.CRC))
		writeUint32(&buf, rec.Offset)
		writeUint32(&buf, rec.Size)
	}

	if a.footer != nil {
		buf.Write(a.footer.Tag[:])
		writeUint32(&buf, a.footer.Date)
	}

	out := buf.Bytes()
	binary.LittleEndian.PutUint32(out[0:4], uint32(dirOffset))
	return out, nil
}

// frame splits data into BlockSize chunks and deflates each one
// behind a {deflate_len, inflate_len} header.
func (a *Archive) frame(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	for start := 0; start < len(data); start += BlockSize {
		chunk := data[start:min(start+BlockSize, len(data))]

		packed, err := a.codec.Deflate(chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to deflate block: %w", err)
		}
		writeUint32(&buf, uint32(len(packed)))
		writeUint32(&buf, uint32(len(chunk)))
		buf.Write(packed)
	}
	return buf.Bytes(), nil
}

// filenameTable builds the filename table payload for names in directory order.
func filenameTable(names []string) []byte {
	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(names)))
	for _, name := range names {
		writeUint32(&buf, uint32(len(name)+1))
		buf.WriteString(name)
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
