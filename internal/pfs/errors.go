package pfs

import (
	"errors"

	"github.com/ossyrian/pfsparse/internal/bin"
)

var (
	// ErrTruncated is returned when the archive ends before a structure it declares.
	ErrTruncated = bin.ErrTruncated

	// ErrBadMagic is returned when the header does not carry the "PFS " tag.
	ErrBadMagic = errors.New("invalid PFS magic")

	// ErrBlockFraming is returned when a file's blocks do not add up to its declared size
	// or a block cannot be inflated to its declared length.
	ErrBlockFraming = errors.New("inconsistent block framing")

	// ErrFilenameTable is returned when the filename table is missing or cannot name every file.
	ErrFilenameTable = errors.New("invalid filename table")

	// ErrNotFound is returned when a named entry does not exist.
	ErrNotFound = errors.New("entry not found")

	// ErrExists is returned when a rename target is already taken.
	ErrExists = errors.New("entry already exists")

	// ErrClosed is returned by operations on a closed archive.
	ErrClosed = errors.New("archive is closed")
)
