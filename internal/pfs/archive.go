// Package pfs reads and writes PFS container archives.
//
// A PFS archive is a flat set of named files. Each file is stored as a run of
// independently deflated blocks, and a directory at the end of the file maps name
// checksums to block runs. The names live in a reserved filename-table entry.
//
// Open materializes every entry eagerly: after Open returns, all file contents are
// held decompressed in memory and no file handle is kept. Save recompresses from
// scratch. An Archive is not safe for concurrent mutation.
package pfs

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/btree"

	"github.com/ossyrian/pfsparse/internal/codec"
)

// entry is one stored file, keyed by its normalized name.
type entry struct {
	name string
	data []byte
}

func byName(x, y entry) bool {
	return x.name < y.name
}

// Archive is an open PFS archive held in memory.
type Archive struct {
	files   *btree.BTreeG[entry]
	open    bool
	version uint32
	footer  *Footer

	codec       codec.Codec
	logger      *slog.Logger
	concurrency int
}

// Option configures an Archive.
type Option func(*Archive)

// WithCodec sets the block codec used to inflate on open and deflate on save.
func WithCodec(c codec.Codec) Option {
	return func(a *Archive) { a.codec = c }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Archive) { a.logger = l }
}

// WithConcurrency bounds the number of blocks inflated or deflated in parallel.
// Values below 1 mean GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(a *Archive) { a.concurrency = n }
}

// WithVersioned stamps the archive with a footer dated now.
// It only matters for archives created with New; opened archives keep what is on disk.
func WithVersioned(versioned bool) Option {
	return func(a *Archive) {
		if !versioned {
			a.footer = nil
			return
		}
		a.footer = &Footer{Tag: FooterTag, Date: uint32(time.Now().Unix())}
	}
}

func newArchive(opts []Option) *Archive {
	a := &Archive{
		files:   btree.NewBTreeGOptions(byName, btree.Options{NoLocks: true}),
		open:    true,
		version: DefaultVersion,
		codec:   codec.Default,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.concurrency < 1 {
		a.concurrency = runtime.GOMAXPROCS(0)
	}
	return a
}

// New returns an empty open archive.
func New(opts ...Option) *Archive {
	return newArchive(opts)
}

// Open reads the archive at path and decompresses every entry.
// No partial archive is returned on error.
func Open(path string, opts ...Option) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read archive: %w", ErrTruncated, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: archive %s is empty", ErrTruncated, path)
	}

	a := newArchive(opts)
	a.logger = a.logger.With("archive", path)
	if err := a.parse(data); err != nil {
		return nil, err
	}
	return a, nil
}

// Parse decodes an archive already held in memory.
func Parse(data []byte, opts ...Option) (*Archive, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty archive", ErrTruncated)
	}

	a := newArchive(opts)
	if err := a.parse(data); err != nil {
		return nil, err
	}
	return a, nil
}

// Close discards all entries. Later mutations fail with ErrClosed.
func (a *Archive) Close() error {
	a.files = nil
	a.footer = nil
	a.open = false
	return nil
}

// normalize maps a filename to its lookup key.
func normalize(name string) string {
	return strings.ToLower(name)
}

// Get returns a copy of the named file's contents.
func (a *Archive) Get(name string) ([]byte, error) {
	if !a.open {
		return nil, ErrClosed
	}
	e, ok := a.files.Get(entry{name: normalize(name)})
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return slices.Clone(e.data), nil
}

// Set stores a copy of data under name, replacing any existing entry.
func (a *Archive) Set(name string, data []byte) error {
	if !a.open {
		return ErrClosed
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	a.files.Set(entry{name: normalize(name), data: buf})
	return nil
}

// Remove deletes the named entry.
func (a *Archive) Remove(name string) error {
	if !a.open {
		return ErrClosed
	}
	if _, ok := a.files.Delete(entry{name: normalize(name)}); !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// Rename moves an entry to a new name. It fails if the destination exists.
func (a *Archive) Rename(from, to string) error {
	if !a.open {
		return ErrClosed
	}
	src, dst := normalize(from), normalize(to)
	e, ok := a.files.Get(entry{name: src})
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, from)
	}
	if src == dst {
		return nil
	}
	if _, ok := a.files.Get(entry{name: dst}); ok {
		return fmt.Errorf("%w: %s", ErrExists, to)
	}
	a.files.Delete(e)
	a.files.Set(entry{name: dst, data: e.data})
	return nil
}

// Exists reports whether the named entry is present.
func (a *Archive) Exists(name string) bool {
	if !a.open {
		return false
	}
	_, ok := a.files.Get(entry{name: normalize(name)})
	return ok
}

// List returns the sorted names ending with ext. "*" matches every entry.
func (a *Archive) List(ext string) []string {
	if !a.open {
		return nil
	}
	suffix := normalize(ext)
	names := make([]string, 0, a.files.Len())
	a.files.Scan(func(e entry) bool {
		if ext == "*" || strings.HasSuffix(e.name, suffix) {
			names = append(names, e.name)
		}
		return true
	})
	return names
}

// Len returns the number of entries.
func (a *Archive) Len() int {
	if a.files == nil {
		return 0
	}
	return a.files.Len()
}

// Version returns the header version field.
func (a *Archive) Version() uint32 {
	return a.version
}

// Footer returns the trailing date stamp, if the archive has one.
func (a *Archive) Footer() (Footer, bool) {
	if a.footer == nil {
		return Footer{}, false
	}
	return *a.footer, true
}

// SetFooter replaces the trailing date stamp. nil removes it.
func (a *Archive) SetFooter(f *Footer) {
	if f == nil {
		a.footer = nil
		return
	}
	cp := *f
	a.footer = &cp
}
