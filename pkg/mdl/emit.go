package mdl

import (
	"fmt"

	"go.uber.org/zap"
)

// emitter replays the planner's traversal and writes every region at its
// planned position. A position that disagrees with the plan is a bug in
// this package, not an input error, and panics.
type emitter struct {
	mdl   *ByteSink
	mdx   *ByteSink
	nodes []FlatNode
	plan  *Plan
	log   *zap.Logger
}

func newEmitter(mdl, mdx *ByteSink, nodes []FlatNode, plan *Plan, log *zap.Logger) *emitter {
	if len(nodes) != len(plan.Nodes) {
		panic(fmt.Sprintf("mdl: plan has %d nodes, tree has %d", len(plan.Nodes), len(nodes)))
	}
	return &emitter{mdl: mdl, mdx: mdx, nodes: nodes, plan: plan, log: log}
}

// checkpoint asserts both streams sit at their planned positions. Write
// failures stop the sinks from advancing, so they are reported first.
func (e *emitter) checkpoint(region string, node int, mdl, mdx int64) error {
	if err := e.mdl.Err(); err != nil {
		return &IOError{Path: "mdl stream", Err: err}
	}
	if err := e.mdx.Err(); err != nil {
		return &IOError{Path: "mdx stream", Err: err}
	}
	if e.mdl.Len() != mdl {
		panic(fmt.Sprintf("mdl: node %d %s at structural offset %d, planned %d", node, region, e.mdl.Len(), mdl))
	}
	if mdx >= 0 && e.mdx.Len() != mdx {
		panic(fmt.Sprintf("mdl: node %d %s at companion offset %d, planned %d", node, region, e.mdx.Len(), mdx))
	}
	return nil
}

// emitNames writes the name-offset table and the names themselves.
func (e *emitter) emitNames() error {
	if err := e.checkpoint("name table", -1, e.plan.NameTable, 0); err != nil {
		return err
	}
	for i := range e.plan.Nodes {
		e.mdl.PutUint32(Rel(e.plan.Nodes[i].Name))
	}
	for i := range e.nodes {
		if err := e.checkpoint("name", i, e.plan.Nodes[i].Name, 0); err != nil {
			return err
		}
		e.mdl.PutCString(e.nodes[i].Name)
	}
	return nil
}

// emitNodes writes every node in flattened order.
func (e *emitter) emitNodes() error {
	for i := range e.nodes {
		if err := e.emitNode(&e.nodes[i], &e.plan.Nodes[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *emitter) emitNode(n *FlatNode, nl *NodeLayout) error {
	if err := e.checkpoint("header", n.Index, nl.Header, -1); err != nil {
		return err
	}
	if nl.ChildCount != len(n.Children) {
		panic(fmt.Sprintf("mdl: node %d has %d children, planned %d", n.Index, len(n.Children), nl.ChildCount))
	}

	var parent uint32
	if !n.IsRoot() {
		parent = Rel(e.plan.Nodes[n.Parent].Header)
	}

	e.mdl.PutUint16(n.Kind.TypeFlags())
	e.mdl.PutUint16(uint16(n.Index))
	e.mdl.PutUint16(uint16(n.Index))
	e.mdl.PutUint16(0)
	e.mdl.PutUint32(0) // root offset
	e.mdl.PutUint32(parent)
	e.mdl.PutFloats(n.Position.X, n.Position.Y, n.Position.Z)
	q := n.Orientation.WXYZ()
	e.mdl.PutFloats(q[:]...)
	e.mdl.PutArrayDef(Rel(nl.Children), nl.ChildCount)
	e.mdl.PutArrayDef(Rel(nl.ControllerKeys), len(nl.Controllers.Keys))
	e.mdl.PutArrayDef(Rel(nl.ControllerData), len(nl.Controllers.Data))

	if nl.Mesh != nil {
		if err := e.emitMesh(n, nl.Mesh); err != nil {
			return err
		}
	}

	if err := e.checkpoint("children", n.Index, nl.Children, -1); err != nil {
		return err
	}
	for _, child := range n.Children {
		e.mdl.PutUint32(Rel(e.plan.Nodes[child].Header))
	}

	if err := e.checkpoint("controller keys", n.Index, nl.ControllerKeys, -1); err != nil {
		return err
	}
	for _, key := range nl.Controllers.Keys {
		e.mdl.PutUint32(uint32(key.Type))
		e.mdl.PutUint16(controllerUnk)
		e.mdl.PutUint16(key.Rows)
		e.mdl.PutUint16(key.TimekeyStart)
		e.mdl.PutUint16(key.ValueStart)
		e.mdl.PutUint8(key.Columns)
		e.mdl.PutZeros(3)
	}

	if err := e.checkpoint("controller data", n.Index, nl.ControllerData, -1); err != nil {
		return err
	}
	e.mdl.PutFloats(nl.Controllers.Data...)

	return e.checkpoint("end", n.Index, nl.End, -1)
}

func (e *emitter) fnPtrs(kind NodeKind) (uint32, uint32) {
	switch {
	case e.plan.TSL && kind == KindLightsaber:
		return saberFnPtr1TSL, saberFnPtr2TSL
	case e.plan.TSL:
		return meshFnPtr1TSL, meshFnPtr2TSL
	default:
		return meshFnPtr1K1, meshFnPtr2K1
	}
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func (e *emitter) emitMesh(n *FlatNode, ml *MeshLayout) error {
	if err := e.checkpoint("mesh header", n.Index, ml.Header, ml.MDX); err != nil {
		return err
	}
	m := n.Mesh
	if m.VertexCount() != ml.VertexCount || len(m.Faces) != ml.FaceCount {
		panic(fmt.Sprintf("mdl: node %d mesh changed between planning and emission", n.Index))
	}

	fn1, fn2 := e.fnPtrs(n.Kind)
	e.mdl.PutUint32(fn1)
	e.mdl.PutUint32(fn2)
	e.mdl.PutArrayDef(Rel(ml.Faces), ml.FaceCount)
	e.mdl.PutZeros(6 * 4) // bounding box
	e.mdl.PutFloat(0)     // radius
	e.mdl.PutZeros(3 * 4) // average point
	e.mdl.PutFloats(m.Diffuse.X, m.Diffuse.Y, m.Diffuse.Z)
	e.mdl.PutFloats(m.Ambient.X, m.Ambient.Y, m.Ambient.Z)
	e.mdl.PutUint32(m.TransparencyHint)
	e.mdl.PutString(m.Bitmap, TextureNameSize)
	e.mdl.PutString(m.Bitmap2, TextureNameSize)
	e.mdl.PutZeros(ExtraTextureSize)
	e.mdl.PutZeros(ExtraTextureSize)
	e.mdl.PutArrayDef(Rel(ml.IndexCount), 1)
	e.mdl.PutArrayDef(Rel(ml.IndexOffset), 1)
	e.mdl.PutArrayDef(Rel(ml.InvertedCount), 1)
	e.mdl.PutUint32(absentOffset)
	e.mdl.PutUint32(absentOffset)
	e.mdl.PutUint32(0)
	e.mdl.PutUint8(3) // saber data
	e.mdl.PutZeros(7)
	e.mdl.PutUint32(uint32(boolByte(m.AnimateUV)))
	e.mdl.PutFloats(m.UVDirection.X, m.UVDirection.Y, m.UVJitter, m.UVJitterSpeed)

	e.mdl.PutUint32(ml.Stride)
	e.mdl.PutUint32(ml.Bitmap)
	e.mdl.PutUint32(0)            // vertex
	e.mdl.PutUint32(12)           // normal
	e.mdl.PutUint32(absentOffset) // color
	e.mdl.PutUint32(ml.UV1Offset)
	e.mdl.PutUint32(ml.UV2Offset)
	e.mdl.PutUint32(absentOffset) // uv3
	e.mdl.PutUint32(absentOffset) // uv4
	for i := 0; i < 4; i++ {
		e.mdl.PutUint32(absentOffset) // tangent space
	}
	e.mdl.PutUint16(uint16(ml.VertexCount))
	e.mdl.PutUint16(0) // texture count
	e.mdl.PutUint8(boolByte(m.Lightmapped))
	e.mdl.PutUint8(boolByte(m.RotateTexture))
	e.mdl.PutUint8(boolByte(m.BackgroundGeometry))
	e.mdl.PutUint8(boolByte(m.Shadow))
	e.mdl.PutUint8(boolByte(m.Beaming))
	e.mdl.PutUint8(boolByte(m.Render))
	if e.plan.TSL {
		e.mdl.PutUint8(boolByte(m.DirtEnabled))
		e.mdl.PutUint8(0)
		e.mdl.PutUint16(m.DirtTexture)
		e.mdl.PutUint16(m.DirtWorldSpace)
		e.mdl.PutUint8(boolByte(m.HideInHolograms))
		e.mdl.PutUint8(0)
	}
	e.mdl.PutUint16(0)
	e.mdl.PutFloat(0) // total area
	e.mdl.PutUint32(0)
	e.mdl.PutUint32(uint32(ml.MDX))
	e.mdl.PutUint32(Rel(ml.Vertices))

	if err := e.checkpoint("faces", n.Index, ml.Faces, -1); err != nil {
		return err
	}
	for _, f := range m.Faces {
		e.mdl.PutFloats(f.Normal.X, f.Normal.Y, f.Normal.Z)
		e.mdl.PutFloat(0) // plane distance
		e.mdl.PutUint32(f.Material)
		e.mdl.PutUint16(noAdjacentFace)
		e.mdl.PutUint16(noAdjacentFace)
		e.mdl.PutUint16(noAdjacentFace)
		e.mdl.PutUint16(f.Indices[0])
		e.mdl.PutUint16(f.Indices[1])
		e.mdl.PutUint16(f.Indices[2])
	}

	if err := e.checkpoint("index offset", n.Index, ml.IndexOffset, -1); err != nil {
		return err
	}
	e.mdl.PutUint32(Rel(ml.Indices))

	if err := e.checkpoint("vertices", n.Index, ml.Vertices, ml.MDX); err != nil {
		return err
	}
	for i, p := range m.Positions {
		e.mdl.PutFloats(p.X, p.Y, p.Z)
		e.mdx.PutFloats(p.X, p.Y, p.Z)
		nrm := m.Normals[i]
		e.mdx.PutFloats(nrm.X, nrm.Y, nrm.Z)
		if ml.HasUV1 {
			e.mdx.PutFloats(m.UV1[i].X, m.UV1[i].Y)
		}
		if ml.HasUV2 {
			e.mdx.PutFloats(m.UV2[i].X, m.UV2[i].Y)
		}
	}
	e.mdx.PutZeros(int(ml.Stride))

	if err := e.checkpoint("index count", n.Index, ml.IndexCount, ml.MDX+ml.MDXSize); err != nil {
		return err
	}
	e.mdl.PutUint32(uint32(3 * ml.FaceCount))
	e.mdl.PutUint32(invertedCount)

	if err := e.checkpoint("indices", n.Index, ml.Indices, -1); err != nil {
		return err
	}
	for _, f := range m.Faces {
		e.mdl.PutUint16(f.Indices[0])
		e.mdl.PutUint16(f.Indices[1])
		e.mdl.PutUint16(f.Indices[2])
	}

	e.log.Debug("mesh emitted",
		zap.String("node", n.Name),
		zap.Int("vertices", ml.VertexCount),
		zap.Int("faces", ml.FaceCount),
		zap.Uint32("stride", ml.Stride),
	)
	return e.checkpoint("mesh end", n.Index, ml.End, -1)
}
