package pfs

// Magic identifies a PFS archive ("PFS ").
var Magic = [4]byte{'P', 'F', 'S', ' '}

const (
	// DefaultVersion is the header version field written by the game's own tools.
	DefaultVersion = 0x00020000

	// FilenameTableCRC is the directory checksum reserved for the filename table.
	// The record carrying it addresses the table, never a real file.
	FilenameTableCRC int32 = 0x61580AC9

	// BlockSize is the maximum number of uncompressed bytes in one block.
	BlockSize = 8192

	dirRecordSize = 12
	footerSize    = 9
)

// FooterTag is the tag written in front of the date stamp of versioned archives.
var FooterTag = [5]byte{'S', 'T', 'E', 'V', 'E'}

// Footer is the optional date stamp trailing the directory.
type Footer struct {
	Tag  [5]byte
	Date uint32
}

// dirRecord is one 12-byte directory entry.
type dirRecord struct {
	CRC    int32
	Offset uint32
	Size   uint32 // uncompressed size
}
