package wld

// Fragment is one decoded record. Its position in World.Fragments is its address:
// a back-reference of n points at Fragments[n-1].
type Fragment struct {
	Kind    Kind
	NameRef int32
	Name    string
	Size    uint32
	Payload Payload
}

// Payload is the decoded content of a fragment. It is one of
// *Opaque, *Texture, *TextureBrush, *TextureBrushSet, *ModelRef,
// *Placeable, *Light, *BSPTree, *BSPRegion or *Mesh.
type Payload interface {
	isPayload()
}

// Opaque is the payload of unknown kinds, placeholder kinds and filtered records.
type Opaque struct{}

// Texture lists the bitmap names of one texture.
type Texture struct {
	Names []string
}

// TextureBrush is a sequence of texture frames.
// The render fields are only set when the brush comes from a TextureBrushRef record.
type TextureBrush struct {
	Flags        uint32
	CurrentFrame uint32
	Sleep        uint32
	FrameRefs    []uint32
	Frames       []Texture

	RenderMethod  uint32
	RGBPen        uint32
	Brightness    float32
	ScaledAmbient float32
}

// TextureBrushSet is an ordered material list.
type TextureBrushSet struct {
	Flags   uint32
	Refs    []uint32
	Brushes []TextureBrush
}

// ModelRef is a bare reference to another fragment.
type ModelRef struct {
	Ref   uint32
	Flags uint32
}

type Vec2 struct {
	U, V float32
}

type Vec3 struct {
	X, Y, Z float32
}

// Placeable is a positioned object instance.
// Rotation is in degrees.
type Placeable struct {
	ModelRef  int32
	ModelName string
	Flags     uint32
	SphereRef uint32
	Location  Vec3
	Rotation  Vec3
	ScaleX    float32
	ScaleY    float32
}

// Light is either a light definition (KindLight) or a positioned instance of one
// (KindLightInstance), in which case Location and Radius are set and the
// definition fields are copied from the referenced chain.
type Light struct {
	Flags        uint32
	FrameCount   uint32
	CurrentFrame uint32
	Sleep        uint32
	Levels       []float32
	Colors       []Vec3

	Instance bool
	DefRef   uint32
	Location Vec3
	Radius   float32
}

// BSPNode is one node of a BSPTree.
type BSPNode struct {
	Normal   Vec3
	Distance float32
	Region   uint32 // 1-based region id, 0 for none
	Special  string // name of the last BSPRegion record claiming Region, if any
	Left     uint32 // 1-based index into the node array, 0 for none
	Right    uint32
}

type BSPTree struct {
	Nodes []BSPNode
}

// BSPRegion names a set of BSP regions. Regions holds 0-based region ids.
type BSPRegion struct {
	Name     string
	Flags    uint32
	Regions  []uint32
	UserData string
}

type Vertex struct {
	Position Vec3
	Normal   Vec3
	TexCoord Vec2
	Color    uint32
}

type Polygon struct {
	Flags    uint16
	Indices  [3]uint16
	Material uint16
}

type VertexPiece struct {
	Count uint16
	Bone  uint16
}

// Mesh is decoded geometry.
type Mesh struct {
	Flags               uint32
	MaterialListRef     uint32
	AnimatedVerticesRef uint32
	Center              Vec3
	MaxDistance         float32
	Min                 Vec3
	Max                 Vec3
	ScaleExponent       int16

	Vertices     []Vertex
	Polygons     []Polygon
	VertexPieces []VertexPiece
	Materials    TextureBrushSet
}

func (*Opaque) isPayload()          {}
func (*Texture) isPayload()         {}
func (*TextureBrush) isPayload()    {}
func (*TextureBrushSet) isPayload() {}
func (*ModelRef) isPayload()        {}
func (*Placeable) isPayload()       {}
func (*Light) isPayload()           {}
func (*BSPTree) isPayload()         {}
func (*BSPRegion) isPayload()       {}
func (*Mesh) isPayload()            {}
