package wld

import "fmt"

// Magic is the first word of every WLD entry.
const Magic = 0x54503D02

// Format generations, read from the header's version word.
const (
	// VersionLegacy marks the old numeric encoding (fixed-point texture coordinates).
	VersionLegacy = 0x00015500
	// VersionCurrent marks the newer encoding with float texture coordinates.
	VersionCurrent = 0x1000C800
)

// Kind is the record type tag of a fragment.
type Kind uint32

const (
	KindTexture            Kind = 0x03 // bitmap name list
	KindTextureBrush       Kind = 0x04 // animated frame list over 0x03 records
	KindTextureBrushModel  Kind = 0x05 // reference to a 0x04 record
	KindPlaceable          Kind = 0x15 // object instance
	KindLight              Kind = 0x1B // light definition
	KindLightRef           Kind = 0x1C // reference to a 0x1B record
	KindBSPTree            Kind = 0x21
	KindBSPRegionContainer Kind = 0x22
	KindLightInstance      Kind = 0x28 // positioned light, references 0x1C
	KindBSPRegion          Kind = 0x29
	KindMeshRef            Kind = 0x2D // reference to a 0x36 record
	KindTextureBrushRef    Kind = 0x30 // material, references 0x05
	KindTextureBrushSet    Kind = 0x31 // material list, references 0x30 records
	KindMesh               Kind = 0x36
)

func (k Kind) String() string {
	switch k {
	case KindTexture:
		return "Texture"
	case KindTextureBrush:
		return "TextureBrush"
	case KindTextureBrushModel:
		return "TextureBrushModel"
	case KindPlaceable:
		return "Placeable"
	case KindLight:
		return "Light"
	case KindLightRef:
		return "LightRef"
	case KindBSPTree:
		return "BSPTree"
	case KindBSPRegionContainer:
		return "BSPRegionContainer"
	case KindLightInstance:
		return "LightInstance"
	case KindBSPRegion:
		return "BSPRegion"
	case KindMeshRef:
		return "MeshRef"
	case KindTextureBrushRef:
		return "TextureBrushRef"
	case KindTextureBrushSet:
		return "TextureBrushSet"
	case KindMesh:
		return "Mesh"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", uint32(k))
	}
}

// Flag bits and sentinels used by the variant decoders.
const (
	brushHasCurrentFrame = 1 << 2
	brushHasSleep        = 1 << 3

	lightHasCurrentFrame = 1 << 0
	lightHasSleep        = 1 << 1
	lightHasLevels       = 1 << 2
	lightHasColors       = 1 << 4

	// placeableSkipFlags marks degenerate placeable records that carry no usable instance.
	placeableSkipFlags = 0x2E

	// legacyTexCoordScale converts fixed-point legacy texture coordinates to floats.
	legacyTexCoordScale = 1.0 / 256.0
	normalDivisor       = 127
)
