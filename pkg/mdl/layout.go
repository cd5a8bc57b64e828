package mdl

import "github.com/Faultbox/kotormdl/pkg/encoding"

// MeshLayout holds the planned positions of one mesh block. Structural
// offsets are absolute stream positions; MDX is a companion stream offset.
type MeshLayout struct {
	Header        int64
	Faces         int64
	IndexOffset   int64 // scalar holding the offset of Indices
	Vertices      int64
	IndexCount    int64
	InvertedCount int64
	Indices       int64
	End           int64

	MDX       int64
	MDXSize   int64
	Stride    uint32
	Bitmap    uint32
	UV1Offset uint32 // within one companion record, or absentOffset
	UV2Offset uint32

	VertexCount int
	FaceCount   int
	HasUV1      bool
	HasUV2      bool
}

// NodeLayout holds the planned positions of one node's regions, in the
// order they are emitted.
type NodeLayout struct {
	Index      int
	Parent     int
	Name       int64
	Header     int64
	Mesh       *MeshLayout
	Children   int64
	ChildCount int

	Controllers    ControllerBlock
	ControllerKeys int64
	ControllerData int64
	End            int64
}

// Plan is the complete layout of both output streams. It is computed
// without writing anything and is immutable once built.
type Plan struct {
	TSL            bool
	NameTable      int64
	Nodes          []NodeLayout
	StructuralSize int64 // total structural stream length, file header included
	CompanionSize  int64
}

// Rel converts an absolute structural position to the header-relative form
// stored in the file.
func Rel(pos int64) uint32 {
	return uint32(pos - FileHeaderSize)
}

// RootOffset returns the planned header offset of the root node.
func (p *Plan) RootOffset() int64 {
	return p.Nodes[0].Header
}

// PlanLayout computes the position of every region of both streams for the
// flattened nodes, in the same order the emitter writes them.
func PlanLayout(nodes []FlatNode, opts Options) *Plan {
	plan := &Plan{
		TSL:   opts.TSL,
		Nodes: make([]NodeLayout, len(nodes)),
	}

	cursor := int64(FileHeaderSize + GeometryHeaderSize + ModelHeaderSize)
	plan.NameTable = cursor
	cursor += int64(len(nodes)) * NameOffsetSize
	for i := range nodes {
		plan.Nodes[i].Name = cursor
		cursor += int64(encoding.EncodedLen(nodes[i].Name)) + 1
	}

	var mdx int64
	for i := range nodes {
		n := &nodes[i]
		nl := &plan.Nodes[i]
		nl.Index = n.Index
		nl.Parent = n.Parent

		nl.Header = cursor
		cursor += NodeHeaderSize

		if n.Kind.HasMesh() {
			ml := planMesh(n.Mesh, cursor, mdx, opts)
			nl.Mesh = ml
			cursor = ml.End
			mdx += ml.MDXSize
		}

		nl.Children = cursor
		nl.ChildCount = len(n.Children)
		cursor += int64(nl.ChildCount) * ChildOffsetSize

		nl.Controllers = EncodeControllers(n.Node, n.IsRoot())
		nl.ControllerKeys = cursor
		cursor += nl.Controllers.KeyBytes()
		nl.ControllerData = cursor
		cursor += nl.Controllers.DataBytes()

		nl.End = cursor
	}

	plan.StructuralSize = cursor
	plan.CompanionSize = mdx
	return plan
}

func planMesh(m *MeshPayload, cursor, mdx int64, opts Options) *MeshLayout {
	ml := &MeshLayout{
		Header:      cursor,
		VertexCount: m.VertexCount(),
		FaceCount:   len(m.Faces),
		HasUV1:      len(m.UV1) > 0 && !opts.OmitPrimaryUV,
		HasUV2:      len(m.UV2) > 0 && !opts.OmitSecondaryUV,
		UV1Offset:   absentOffset,
		UV2Offset:   absentOffset,
	}

	cursor += MeshHeaderSize
	if opts.TSL {
		cursor += MeshHeaderTSLExtra
	}
	ml.Faces = cursor
	cursor += int64(ml.FaceCount) * FaceSize
	ml.IndexOffset = cursor
	cursor += 4
	ml.Vertices = cursor
	cursor += int64(ml.VertexCount) * VertexSize
	ml.IndexCount = cursor
	cursor += 4
	ml.InvertedCount = cursor
	cursor += 4
	ml.Indices = cursor
	cursor += int64(ml.FaceCount) * FaceIndicesSize
	ml.End = cursor

	ml.Bitmap = MDXFlagVertex | MDXFlagNormal
	ml.Stride = MDXBaseStride
	if ml.HasUV1 {
		ml.Bitmap |= MDXFlagUV1
		ml.UV1Offset = ml.Stride
		ml.Stride += MDXUVStride
	}
	if ml.HasUV2 {
		ml.Bitmap |= MDXFlagUV2
		ml.UV2Offset = ml.Stride
		ml.Stride += MDXUVStride
	}
	ml.MDX = mdx
	// One trailing padding record follows the vertex records.
	ml.MDXSize = int64(ml.Stride) * int64(ml.VertexCount+1)
	return ml
}
