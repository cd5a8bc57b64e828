package ascii

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Faultbox/kotormdl/pkg/math"
	"github.com/Faultbox/kotormdl/pkg/mdl"
)

// WriteOptions configures Write.
type WriteOptions struct {
	// Timestamp is stamped into the leading comment. The zero value omits
	// the comment, making output byte-for-byte reproducible.
	Timestamp time.Time
}

// Write emits m in text form, nodes in preorder.
func Write(w io.Writer, m *mdl.Model, opts WriteOptions) error {
	if m == nil {
		return fmt.Errorf("%w: nil model", mdl.ErrMalformedTree)
	}
	nodes, err := mdl.Flatten(m.Root)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	tw := &textWriter{w: bw}

	if !opts.Timestamp.IsZero() {
		tw.line("# Exported from kotormdl at %s", opts.Timestamp.Format("Monday, 2006-01-02"))
	}
	supermodel := m.Supermodel
	if supermodel == "" {
		supermodel = "NULL"
	}
	tw.line("newmodel %s", m.Name)
	tw.line("setsupermodel %s %s", m.Name, supermodel)
	tw.line("classification %s", m.Classification)
	tw.line("classification_unk1 %d", m.SubClassification)
	tw.line("ignorefog %d", boolInt(m.IgnoreFog))
	tw.line("setanimationscale %s", ftoa(m.AnimationScale))
	tw.line("beginmodelgeom %s", m.Name)
	for i := range nodes {
		parent := "NULL"
		if !nodes[i].IsRoot() {
			parent = nodes[nodes[i].Parent].Name
		}
		tw.node(nodes[i].Node, parent)
	}
	tw.line("endmodelgeom %s", m.Name)
	tw.line("donemodel %s", m.Name)

	return bw.Flush()
}

type textWriter struct {
	w *bufio.Writer
}

func (t *textWriter) line(format string, args ...any) {
	fmt.Fprintf(t.w, format, args...)
	t.w.WriteByte('\n')
}

func (t *textWriter) node(n *mdl.Node, parent string) {
	t.line("node %s %s", n.Kind, n.Name)
	t.line("  parent %s", parent)
	t.line("  position %s", vec3(n.Position))
	axis, angle := n.Orientation.AxisAngle()
	t.line("  orientation %s %s", vec3(axis), ftoa(angle))

	if n.Kind == mdl.KindReference {
		ref := n.RefModel
		if ref == "" {
			ref = "NULL"
		}
		t.line("  refmodel %s", ref)
		t.line("  reattachable %d", boolInt(n.Reattachable))
	}
	if n.Mesh != nil {
		t.mesh(n.Mesh)
	}
	t.line("endnode")
}

func (t *textWriter) mesh(m *mdl.MeshPayload) {
	t.line("  diffuse %s", vec3(m.Diffuse))
	t.line("  ambient %s", vec3(m.Ambient))
	t.line("  selfillumcolor %s", vec3(m.SelfIllumColor))
	t.line("  alpha %s", ftoa(m.Alpha))
	t.line("  transparencyhint %d", m.TransparencyHint)
	t.line("  bitmap %s", nullName(m.Bitmap))
	if m.Bitmap2 != "" {
		t.line("  lightmap %s", m.Bitmap2)
	}
	t.line("  animateuv %d", boolInt(m.AnimateUV))
	t.line("  uvdirectionx %s", ftoa(m.UVDirection.X))
	t.line("  uvdirectiony %s", ftoa(m.UVDirection.Y))
	t.line("  uvjitter %s", ftoa(m.UVJitter))
	t.line("  uvjitterspeed %s", ftoa(m.UVJitterSpeed))
	t.line("  lightmapped %d", boolInt(m.Lightmapped))
	t.line("  rotatetexture %d", boolInt(m.RotateTexture))
	t.line("  background_geometry %d", boolInt(m.BackgroundGeometry))
	t.line("  shadow %d", boolInt(m.Shadow))
	t.line("  beaming %d", boolInt(m.Beaming))
	t.line("  render %d", boolInt(m.Render))
	t.line("  dirt_enabled %d", boolInt(m.DirtEnabled))
	t.line("  dirt_texture %d", m.DirtTexture)
	t.line("  dirt_worldspace %d", m.DirtWorldSpace)
	t.line("  hologram_donotdraw %d", boolInt(m.HideInHolograms))

	t.line("  verts %d", len(m.Positions))
	for _, v := range m.Positions {
		t.line("    %s", vec3(v))
	}
	// Texture vertices are per vertex, so face texture indices repeat the
	// vertex indices.
	t.line("  faces %d", len(m.Faces))
	for _, f := range m.Faces {
		i := f.Indices
		t.line("    %d %d %d 1 %d %d %d %d", i[0], i[1], i[2], i[0], i[1], i[2], f.Material)
	}
	if len(m.UV1) > 0 {
		t.uvs("tverts", m.UV1)
	}
	if len(m.UV2) > 0 {
		t.uvs("tverts1", m.UV2)
		t.line("  texindices1 %d", len(m.Faces))
		for _, f := range m.Faces {
			t.line("    %d %d %d", f.Indices[0], f.Indices[1], f.Indices[2])
		}
	}
}

func (t *textWriter) uvs(key string, uvs []math.Vec2) {
	t.line("  %s %d", key, len(uvs))
	for _, uv := range uvs {
		t.line("    %s %s 0", ftoa(uv.X), ftoa(uv.Y))
	}
}

func ftoa(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

func vec3(v math.Vec3) string {
	return ftoa(v.X) + " " + ftoa(v.Y) + " " + ftoa(v.Z)
}

func nullName(s string) string {
	if s == "" {
		return "NULL"
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
