package wld

import (
	"errors"

	"github.com/ossyrian/pfsparse/internal/bin"
)

var (
	// ErrTruncated is returned when a read runs past the entry or past a record's declared size.
	ErrTruncated = bin.ErrTruncated

	// ErrBadMagic is returned when the entry does not start with Magic.
	ErrBadMagic = errors.New("invalid WLD magic")

	// ErrUnsupportedVersion is returned for a version word that is neither generation.
	ErrUnsupportedVersion = errors.New("unsupported WLD version")

	// ErrBadReference is returned when a back-reference points at or past the record
	// being decoded. Forward references are never legal.
	ErrBadReference = errors.New("invalid fragment reference")
)
