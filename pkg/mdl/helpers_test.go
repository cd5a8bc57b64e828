package mdl

import (
	"bytes"
	"encoding/binary"
	stdmath "math"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/Faultbox/kotormdl/pkg/encoding"
	"github.com/Faultbox/kotormdl/pkg/math"
)

// dump prints plans without pointer addresses.
var dump = spew.ConfigState{Indent: " ", DisablePointerAddresses: true}

// makeTriangle returns a one-face mesh with optional UV channels.
func makeTriangle(uv1, uv2 bool) *MeshPayload {
	m := NewMesh()
	m.Positions = []math.Vec3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}}
	m.Normals = []math.Vec3{{Z: 1}, {Z: 1}, {Z: 1}}
	m.Faces = []Face{{Indices: [3]uint16{0, 1, 2}, Normal: math.Vec3{Z: 1}, Material: 3}}
	if uv1 {
		m.UV1 = []math.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}
	}
	if uv2 {
		m.UV2 = []math.Vec2{{X: 0.5, Y: 0.5}, {X: 1, Y: 0.5}, {X: 0.5, Y: 1}}
	}
	m.Bitmap = "tex01"
	return m
}

// makeTriModel returns a dummy root "tri" with one trimesh child "plane".
func makeTriModel(uv1, uv2 bool) *Model {
	m := NewModel("tri")
	plane := NewNode(KindTrimesh, "plane")
	plane.Mesh = makeTriangle(uv1, uv2)
	m.Root.AddChild(plane)
	return m
}

func encodeModel(t *testing.T, m *Model, opts Options) (*Plan, []byte, []byte) {
	t.Helper()
	var mdl, mdx bytes.Buffer
	plan, err := Encode(&mdl, &mdx, m, opts)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if int64(mdl.Len()) != plan.StructuralSize {
		t.Fatalf("structural stream is %d bytes, plan says %d\n%s", mdl.Len(), plan.StructuralSize, dump.Sdump(plan))
	}
	if int64(mdx.Len()) != plan.CompanionSize {
		t.Fatalf("companion stream is %d bytes, plan says %d", mdx.Len(), plan.CompanionSize)
	}
	return plan, mdl.Bytes(), mdx.Bytes()
}

func u16(b []byte, off int64) uint16 {
	return binary.LittleEndian.Uint16(b[off:])
}

func u32(b []byte, off int64) uint32 {
	return binary.LittleEndian.Uint32(b[off:])
}

func f32(b []byte, off int64) float32 {
	return stdmath.Float32frombits(u32(b, off))
}

func cstring(b []byte, off int64) string {
	return encoding.TrimNullString(b[off:])
}
