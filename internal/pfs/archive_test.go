package pfs_test

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossyrian/pfsparse/internal/checksum"
	"github.com/ossyrian/pfsparse/internal/codec"
	"github.com/ossyrian/pfsparse/internal/pfs"
)

func payload(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i%251)
	}
	return b
}

func saveAndOpen(t *testing.T, a *pfs.Archive, opts ...pfs.Option) *pfs.Archive {
	t.Helper()

	path := filepath.Join(t.TempDir(), "zone.s3d")
	require.NoError(t, a.Save(path))

	reopened, err := pfs.Open(path, opts...)
	require.NoError(t, err)
	return reopened
}

func TestArchive_RoundTrip(t *testing.T) {
	sizes := []int{0, 1, 100, pfs.BlockSize - 1, pfs.BlockSize, pfs.BlockSize + 1, 3*pfs.BlockSize + 17}

	for _, format := range []codec.Format{codec.FormatZlib, codec.FormatDeflate} {
		t.Run(format.String(), func(t *testing.T) {
			c := pfs.WithCodec(codec.New(format))
			a := pfs.New(c)

			want := make(map[string][]byte)
			for i, n := range sizes {
				name := fmt.Sprintf("file%02d_%d.bin", i, n)
				want[name] = payload(n, byte(i))
				require.NoError(t, a.Set(name, want[name]))
			}

			got := saveAndOpen(t, a, c)
			assert.Equal(t, len(want), got.Len())
			for name, data := range want {
				b, err := got.Get(name)
				require.NoError(t, err, name)
				assert.True(t, bytes.Equal(data, b), "%s: content mismatch", name)
			}
		})
	}
}

func TestArchive_RoundTripAfterReopenAndMutate(t *testing.T) {
	a := pfs.New()
	require.NoError(t, a.Set("zone.wld", payload(20000, 1)))
	require.NoError(t, a.Set("objects.wld", payload(10, 2)))

	b := saveAndOpen(t, a)
	require.NoError(t, b.Set("lights.wld", payload(9000, 3)))
	require.NoError(t, b.Remove("objects.wld"))

	c := saveAndOpen(t, b)
	assert.Equal(t, []string{"lights.wld", "zone.wld"}, c.List("*"))

	got, err := c.Get("lights.wld")
	require.NoError(t, err)
	assert.Equal(t, payload(9000, 3), got)
}

func TestArchive_CaseInsensitive(t *testing.T) {
	a := pfs.New()
	require.NoError(t, a.Set("Foo.WLD", []byte("x")))

	got, err := a.Get("foo.wld")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)

	assert.True(t, a.Exists("FOO.wld"))
	require.NoError(t, a.Rename("fOO.wLd", "BAR.wld"))
	assert.False(t, a.Exists("foo.wld"))
	assert.True(t, a.Exists("bar.WLD"))
	assert.Equal(t, []string{"bar.wld"}, a.List("*"))
}

func TestArchive_SentinelNotListed(t *testing.T) {
	a := pfs.New()
	require.NoError(t, a.Set("a.bmp", []byte("a")))
	require.NoError(t, a.Set("b.wld", []byte("b")))

	got := saveAndOpen(t, a)
	assert.Equal(t, []string{"a.bmp", "b.wld"}, got.List("*"))
	assert.Equal(t, 2, got.Len())
}

func TestArchive_List(t *testing.T) {
	a := pfs.New()
	for _, name := range []string{"zone.wld", "objects.wld", "tex1.bmp", "tex2.BMP", "zone.zon"} {
		require.NoError(t, a.Set(name, nil))
	}

	tests := []struct {
		ext  string
		want []string
	}{
		{"*", []string{"objects.wld", "tex1.bmp", "tex2.bmp", "zone.wld", "zone.zon"}},
		{".wld", []string{"objects.wld", "zone.wld"}},
		{"BMP", []string{"tex1.bmp", "tex2.bmp"}},
		{".dds", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			assert.Equal(t, tt.want, a.List(tt.ext))
		})
	}
}

func TestArchive_Mutations(t *testing.T) {
	a := pfs.New()
	require.NoError(t, a.Set("a.txt", []byte("a")))
	require.NoError(t, a.Set("b.txt", []byte("b")))

	err := a.Rename("a.txt", "B.TXT")
	require.ErrorIs(t, err, pfs.ErrExists)

	err = a.Rename("missing.txt", "c.txt")
	require.ErrorIs(t, err, pfs.ErrNotFound)

	require.NoError(t, a.Rename("a.txt", "A.txt"), "renaming onto itself is a no-op")

	err = a.Remove("missing.txt")
	require.ErrorIs(t, err, pfs.ErrNotFound)

	_, err = a.Get("missing.txt")
	require.ErrorIs(t, err, pfs.ErrNotFound)

	src := []byte("mutable")
	require.NoError(t, a.Set("c.txt", src))
	src[0] = 'M'
	got, err := a.Get("c.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("mutable"), got, "Set must copy its input")

	got[0] = 'X'
	again, _ := a.Get("c.txt")
	assert.Equal(t, []byte("mutable"), again, "Get must return a copy")
}

func TestArchive_Closed(t *testing.T) {
	a := pfs.New()
	require.NoError(t, a.Set("a.txt", []byte("a")))
	require.NoError(t, a.Close())

	assert.False(t, a.Exists("a.txt"))
	assert.Nil(t, a.List("*"))
	_, err := a.Get("a.txt")
	require.ErrorIs(t, err, pfs.ErrClosed)
	require.ErrorIs(t, a.Set("b.txt", nil), pfs.ErrClosed)
	require.ErrorIs(t, a.Rename("a.txt", "b.txt"), pfs.ErrClosed)
	require.ErrorIs(t, a.Remove("a.txt"), pfs.ErrClosed)
	_, err = a.Bytes()
	require.ErrorIs(t, err, pfs.ErrClosed)
}

func TestArchive_Footer(t *testing.T) {
	plain := pfs.New()
	require.NoError(t, plain.Set("a.txt", []byte("a")))
	_, ok := saveAndOpen(t, plain).Footer()
	assert.False(t, ok)

	versioned := pfs.New()
	require.NoError(t, versioned.Set("a.txt", []byte("a")))
	versioned.SetFooter(&pfs.Footer{Tag: pfs.FooterTag, Date: 0x5F5E100})

	footer, ok := saveAndOpen(t, versioned).Footer()
	require.True(t, ok)
	assert.Equal(t, pfs.FooterTag, footer.Tag)
	assert.Equal(t, uint32(0x5F5E100), footer.Date)

	stamped := pfs.New(pfs.WithVersioned(true))
	footer, ok = stamped.Footer()
	require.True(t, ok)
	assert.Equal(t, pfs.FooterTag, footer.Tag)
	assert.NotZero(t, footer.Date)
}

func TestArchive_DirectorySortedByChecksum(t *testing.T) {
	a := pfs.New()
	for i := 0; i < 20; i++ {
		require.NoError(t, a.Set(fmt.Sprintf("file%d.bin", i), []byte{byte(i)}))
	}
	data, err := a.Bytes()
	require.NoError(t, err)

	dirOffset := binary.LittleEndian.Uint32(data)
	count := binary.LittleEndian.Uint32(data[dirOffset:])
	require.Equal(t, uint32(21), count)

	var prev int32
	sawSentinel := false
	for i := uint32(0); i < count; i++ {
		crc := int32(binary.LittleEndian.Uint32(data[dirOffset+4+i*12:]))
		if i > 0 {
			assert.LessOrEqual(t, prev, crc)
		}
		if crc == pfs.FilenameTableCRC {
			sawSentinel = true
		}
		prev = crc
	}
	assert.True(t, sawSentinel)
	assert.Equal(t, uint32(pfs.DefaultVersion), binary.LittleEndian.Uint32(data[8:]))
	assert.Equal(t, pfs.Magic[:], data[4:8])
}

func TestOpen_Errors(t *testing.T) {
	valid := func() []byte {
		a := pfs.New()
		require.NoError(t, a.Set("zone.wld", payload(100, 0)))
		b, err := a.Bytes()
		require.NoError(t, err)
		return b
	}
	oversized := buildArchive(t, []rawFile{
		{name: "zone.wld", crc: checksum.String("zone.wld"), data: payload(100000, 0)},
	}, true)

	tests := []struct {
		name    string
		mutate  func(b []byte) []byte
		wantErr error
	}{
		{
			name:    "empty file",
			mutate:  func(b []byte) []byte { return nil },
			wantErr: pfs.ErrTruncated,
		},
		{
			name:    "short header",
			mutate:  func(b []byte) []byte { return b[:6] },
			wantErr: pfs.ErrTruncated,
		},
		{
			name: "bad magic",
			mutate: func(b []byte) []byte {
				copy(b[4:8], "PKG1")
				return b
			},
			wantErr: pfs.ErrBadMagic,
		},
		{
			name: "directory offset past end",
			mutate: func(b []byte) []byte {
				binary.LittleEndian.PutUint32(b, uint32(len(b)+10))
				return b
			},
			wantErr: pfs.ErrTruncated,
		},
		{
			name: "directory count too large",
			mutate: func(b []byte) []byte {
				dir := binary.LittleEndian.Uint32(b)
				binary.LittleEndian.PutUint32(b[dir:], 1000)
				return b
			},
			wantErr: pfs.ErrTruncated,
		},
		{
			name:    "partial footer",
			mutate:  func(b []byte) []byte { return append(b, 'S', 'T', 'E') },
			wantErr: pfs.ErrTruncated,
		},
		{
			name: "inflate length exceeds declared size",
			mutate: func(b []byte) []byte {
				// first block header of the first file sits right after the 12-byte header
				binary.LittleEndian.PutUint32(b[16:], 101)
				return b
			},
			wantErr: pfs.ErrBlockFraming,
		},
		{
			name:    "single block larger than block size",
			mutate:  func([]byte) []byte { return bytes.Clone(oversized) },
			wantErr: pfs.ErrBlockFraming,
		},
		{
			name: "huge declared block length",
			mutate: func(b []byte) []byte {
				const huge = 0xF0000000
				binary.LittleEndian.PutUint32(b[16:], huge)
				dir := binary.LittleEndian.Uint32(b)
				count := binary.LittleEndian.Uint32(b[dir:])
				for i := uint32(0); i < count; i++ {
					rec := b[dir+4+i*12:]
					if binary.LittleEndian.Uint32(rec[4:]) == 12 {
						binary.LittleEndian.PutUint32(rec[8:], huge)
					}
				}
				return b
			},
			wantErr: pfs.ErrBlockFraming,
		},
		{
			name: "corrupt deflate stream",
			mutate: func(b []byte) []byte {
				n := binary.LittleEndian.Uint32(b[12:])
				for i := uint32(0); i < n; i++ {
					b[20+i] = 0xFF
				}
				return b
			},
			wantErr: pfs.ErrBlockFraming,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.s3d")
			require.NoError(t, os.WriteFile(path, tt.mutate(valid()), 0o644))

			a, err := pfs.Open(path)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, a)
		})
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := pfs.Open(filepath.Join(t.TempDir(), "nope.s3d"))
	require.ErrorIs(t, err, pfs.ErrTruncated)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// rawFile describes one entry of a hand-assembled archive.
type rawFile struct {
	name string
	crc  int32
	data []byte
}

// buildArchive assembles an archive without going through Archive.Bytes.
// Names are written with or without a trailing NUL as requested.
func buildArchive(t *testing.T, files []rawFile, nulTerminated bool) []byte {
	t.Helper()
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.name
	}
	return buildArchiveNames(t, files, names, nulTerminated)
}

// buildArchiveNames is buildArchive with an explicit filename table.
func buildArchiveNames(t *testing.T, files []rawFile, names []string, nulTerminated bool) []byte {
	t.Helper()
	c := codec.New(codec.FormatZlib)

	block := func(buf *bytes.Buffer, data []byte) {
		packed, err := c.Deflate(data)
		require.NoError(t, err)
		binary.Write(buf, binary.LittleEndian, uint32(len(packed)))
		binary.Write(buf, binary.LittleEndian, uint32(len(data)))
		buf.Write(packed)
	}

	var buf bytes.Buffer
	buf.Write(make([]byte, 4))
	buf.WriteString("PFS ")
	binary.Write(&buf, binary.LittleEndian, uint32(pfs.DefaultVersion))

	type rec struct {
		crc          int32
		offset, size uint32
	}
	var recs []rec
	for _, f := range files {
		recs = append(recs, rec{f.crc, uint32(buf.Len()), uint32(len(f.data))})
		block(&buf, f.data)
	}

	var table bytes.Buffer
	binary.Write(&table, binary.LittleEndian, uint32(len(names)))
	for _, name := range names {
		if nulTerminated {
			name += "\x00"
		}
		binary.Write(&table, binary.LittleEndian, uint32(len(name)))
		table.WriteString(name)
	}
	recs = append(recs, rec{pfs.FilenameTableCRC, uint32(buf.Len()), uint32(table.Len())})
	block(&buf, table.Bytes())

	dirOffset := uint32(buf.Len())
	binary.Write(&buf, binary.LittleEndian, uint32(len(recs)))
	for _, r := range recs {
		binary.Write(&buf, binary.LittleEndian, r.crc)
		binary.Write(&buf, binary.LittleEndian, r.offset)
		binary.Write(&buf, binary.LittleEndian, r.size)
	}

	out := buf.Bytes()
	binary.LittleEndian.PutUint32(out, dirOffset)
	return out
}

func TestParse_HandBuilt(t *testing.T) {
	files := []rawFile{
		{name: "gfaydark.wld", crc: checksum.String("gfaydark.wld"), data: []byte("zone")},
		{name: "objects.wld", crc: checksum.String("objects.wld"), data: []byte("objects")},
	}

	for _, nul := range []bool{true, false} {
		t.Run(fmt.Sprintf("nul=%v", nul), func(t *testing.T) {
			a, err := pfs.Parse(buildArchive(t, files, nul))
			require.NoError(t, err)

			assert.Equal(t, []string{"gfaydark.wld", "objects.wld"}, a.List("*"))
			got, err := a.Get("objects.wld")
			require.NoError(t, err)
			assert.Equal(t, []byte("objects"), got)
			_, ok := a.Footer()
			assert.False(t, ok)
		})
	}
}

func TestParse_ChecksumDecidesNames(t *testing.T) {
	// Directory order differs from filename-table order; checksums still pair them.
	files := []rawFile{
		{name: "b.wld", crc: checksum.String("a.wld"), data: []byte("A")},
		{name: "a.wld", crc: checksum.String("b.wld"), data: []byte("B")},
	}

	a, err := pfs.Parse(buildArchive(t, files, true))
	require.NoError(t, err)

	got, err := a.Get("a.wld")
	require.NoError(t, err)
	assert.Equal(t, []byte("A"), got)

	got, err = a.Get("b.wld")
	require.NoError(t, err)
	assert.Equal(t, []byte("B"), got)
}

func TestParse_PositionalFallback(t *testing.T) {
	files := []rawFile{
		{name: "first.bmp", crc: 1, data: []byte("1")},
		{name: "second.bmp", crc: 2, data: []byte("2")},
	}

	a, err := pfs.Parse(buildArchive(t, files, true))
	require.NoError(t, err)

	got, err := a.Get("second.bmp")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)
}

func TestParse_FilenameTableProblems(t *testing.T) {
	t.Run("more files than names", func(t *testing.T) {
		files := []rawFile{
			{crc: 7, data: []byte("a")},
			{crc: 8, data: []byte("b")},
		}
		_, err := pfs.Parse(buildArchiveNames(t, files, []string{"only.txt"}, true))
		require.ErrorIs(t, err, pfs.ErrFilenameTable)
	})

	t.Run("extra names are ignored", func(t *testing.T) {
		files := []rawFile{{crc: checksum.String("a.txt"), data: []byte("a")}}
		a, err := pfs.Parse(buildArchiveNames(t, files, []string{"a.txt", "ghost.txt"}, true))
		require.NoError(t, err)
		assert.Equal(t, []string{"a.txt"}, a.List("*"))
	})

	t.Run("empty archive", func(t *testing.T) {
		a, err := pfs.Parse(buildArchive(t, nil, true))
		require.NoError(t, err)
		assert.Zero(t, a.Len())
	})

	t.Run("no filename table", func(t *testing.T) {
		var buf bytes.Buffer
		binary.Write(&buf, binary.LittleEndian, uint32(12))
		buf.WriteString("PFS ")
		binary.Write(&buf, binary.LittleEndian, uint32(pfs.DefaultVersion))
		binary.Write(&buf, binary.LittleEndian, uint32(0))

		_, err := pfs.Parse(buf.Bytes())
		require.ErrorIs(t, err, pfs.ErrFilenameTable)
	})
}
