package mdl

// Fixed record sizes in bytes.
const (
	FileHeaderSize     = 12
	GeometryHeaderSize = 80
	ModelHeaderSize    = 116
	NodeHeaderSize     = 80
	MeshHeaderSize     = 332
	MeshHeaderTSLExtra = 8
	FaceSize           = 32
	VertexSize         = 12
	FaceIndicesSize    = 6
	ChildOffsetSize    = 4
	ControllerKeySize  = 16
	ControllerDataSize = 4
	NameOffsetSize     = 4
	ArrayDefSize       = 12

	// Companion record: position and normal, plus 8 bytes per UV channel.
	MDXBaseStride = 24
	MDXUVStride   = 8
)

// Fixed-width string fields.
const (
	ModelNameSize    = 32
	TextureNameSize  = 32
	ExtraTextureSize = 12
)

// Node type flags written into the node header.
const (
	NodeFlagBase uint16 = 0x0001
	NodeFlagMesh uint16 = 0x0020
)

// Companion channel bits in the mesh header's MDX bitmap.
const (
	MDXFlagVertex uint32 = 0x0001
	MDXFlagUV1    uint32 = 0x0002
	MDXFlagUV2    uint32 = 0x0004
	MDXFlagUV3    uint32 = 0x0008
	MDXFlagUV4    uint32 = 0x0010
	MDXFlagNormal uint32 = 0x0020
)

// Engine function pointers selecting the runtime class of a record.
const (
	modelFnPtr1K1  uint32 = 4273776
	modelFnPtr2K1  uint32 = 4216096
	modelFnPtr1TSL uint32 = 4285200
	modelFnPtr2TSL uint32 = 4216320

	meshFnPtr1K1  uint32 = 4216656
	meshFnPtr2K1  uint32 = 4216672
	meshFnPtr1TSL uint32 = 4216880
	meshFnPtr2TSL uint32 = 4216896

	saberFnPtr1TSL uint32 = 4216880
	saberFnPtr2TSL uint32 = 4216896
)

const (
	absentOffset   uint32  = 0xFFFFFFFF
	noAdjacentFace uint16  = 0xFFFF
	controllerUnk  uint16  = 0xFFFF
	invertedCount  uint32  = 98
	modelTypeGeom  uint8   = 2
	modelRadius    float32 = 7.0
)

// Model-level bounding box written for every model.
var modelBounds = [6]float32{-5, -5, -1, 5, 5, 10}
