package zonetypes

// Report is the JSON summary of one decoded zone archive.
type Report struct {
	Archive string  `json:"archive"`
	Version uint32  `json:"version"`
	Footer  *Footer `json:"footer,omitempty"`
	Files   []File  `json:"files"`
	Worlds  []World `json:"worlds"`
}

// Footer is the optional version stamp at the end of an archive.
type Footer struct {
	Tag  string `json:"tag"`
	Date uint32 `json:"date"`
}

// File is one archive entry. Digest is the sha256 content digest of the
// uncompressed bytes.
type File struct {
	Name   string `json:"name"`
	Size   int    `json:"size"`
	Digest string `json:"digest"`
}

// World summarizes one decoded WLD entry. Error is set instead of the counts when
// the entry failed to decode.
type World struct {
	Entry    string         `json:"entry"`
	Encoding Encoding       `json:"encoding,omitempty"`
	Error    string         `json:"error,omitempty"`
	Kinds    map[string]int `json:"kinds,omitempty"`

	Fragments  int `json:"fragments"`
	Meshes     int `json:"meshes"`
	Vertices   int `json:"vertices"`
	Polygons   int `json:"polygons"`
	Placeables int `json:"placeables"`
	Lights     int `json:"lights"`

	Textures []string `json:"textures,omitempty"`
	Models   []string `json:"models,omitempty"`
	Regions  []Region `json:"regions,omitempty"`
}

// Region is a named BSP region and the number of tree nodes it claims.
type Region struct {
	Name  string `json:"name"`
	Nodes int    `json:"nodes"`
}

// Encoding is the numeric encoding generation of a WLD entry.
type Encoding string

const (
	EncodingLegacy  Encoding = "legacy"
	EncodingCurrent Encoding = "current"
)

func (e Encoding) String() string {
	return string(e)
}
