package gltfimport

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/kotormdl/pkg/math"
	"github.com/Faultbox/kotormdl/pkg/mdl"
)

// addTriangle appends a one-triangle mesh to doc and returns its index.
func addTriangle(doc *gltf.Document, withUV bool, material *uint32) uint32 {
	attrs := map[string]uint32{
		"POSITION": modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}),
	}
	if withUV {
		attrs["TEXCOORD_0"] = modeler.WriteTextureCoord(doc, [][2]float32{{0, 0}, {1, 0}, {0, 1}})
	}
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name: "tri",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(modeler.WriteIndices(doc, []uint32{0, 1, 2})),
			Attributes: attrs,
			Material:   material,
		}},
	})
	return uint32(len(doc.Meshes) - 1)
}

func addNode(doc *gltf.Document, node *gltf.Node) uint32 {
	doc.Nodes = append(doc.Nodes, node)
	return uint32(len(doc.Nodes) - 1)
}

// withPrimitive builds a one-triangle scene and lets edit corrupt its primitive.
func withPrimitive(edit func(doc *gltf.Document, p *gltf.Primitive)) *gltf.Document {
	doc := gltf.NewDocument()
	mesh := addTriangle(doc, true, nil)
	edit(doc, doc.Meshes[mesh].Primitives[0])
	doc.Scenes[0].Nodes = []uint32{addNode(doc, &gltf.Node{Name: "plane", Mesh: gltf.Index(mesh)})}
	return doc
}

func TestFromDocumentTree(t *testing.T) {
	doc := gltf.NewDocument()
	mesh := addTriangle(doc, true, nil)
	child := addNode(doc, &gltf.Node{Name: "plane", Mesh: gltf.Index(mesh)})
	parent := addNode(doc, &gltf.Node{
		Name:        "pivot",
		Translation: [3]float32{1, 2, 3},
		Rotation:    [4]float32{0, 0, 1, 0},
		Children:    []uint32{child},
	})
	doc.Scenes[0].Nodes = []uint32{parent}

	m, err := FromDocument(doc, Options{Name: "crate", Classification: mdl.ClassPlaceable})
	if err != nil {
		t.Fatalf("FromDocument failed: %v", err)
	}
	if m.Name != "crate" || m.Root.Name != "crate" || m.Root.Kind != mdl.KindDummy {
		t.Fatalf("root = %q %v, model %q", m.Root.Name, m.Root.Kind, m.Name)
	}
	if m.Classification != mdl.ClassPlaceable {
		t.Errorf("Classification = %v, want placeable", m.Classification)
	}
	if len(m.Root.Children) != 1 {
		t.Fatalf("root children = %d, want 1", len(m.Root.Children))
	}

	pivot := m.Root.Children[0]
	if pivot.Name != "pivot" || pivot.Kind != mdl.KindDummy {
		t.Errorf("pivot = %q %v", pivot.Name, pivot.Kind)
	}
	if pivot.Position != (math.Vec3{X: 1, Y: 2, Z: 3}) {
		t.Errorf("pivot position = %+v", pivot.Position)
	}
	if pivot.Orientation != (math.Quat{X: 0, Y: 0, Z: 1, W: 0}) {
		t.Errorf("pivot orientation = %+v", pivot.Orientation)
	}
	if len(pivot.Children) != 1 {
		t.Fatalf("pivot children = %d, want 1", len(pivot.Children))
	}

	plane := pivot.Children[0]
	if plane.Kind != mdl.KindTrimesh || plane.Mesh == nil {
		t.Fatalf("plane kind = %v, mesh %v", plane.Kind, plane.Mesh)
	}
	if plane.Orientation != math.QuatIdentity() {
		t.Errorf("unrotated node orientation = %+v, want identity", plane.Orientation)
	}
	if got := plane.Mesh.VertexCount(); got != 3 {
		t.Errorf("vertices = %d, want 3", got)
	}
	if len(plane.Mesh.Faces) != 1 || plane.Mesh.Faces[0].Indices != [3]uint16{0, 1, 2} {
		t.Errorf("faces = %+v", plane.Mesh.Faces)
	}
	if len(plane.Mesh.UV1) != 3 || plane.Mesh.UV1[1] != (math.Vec2{X: 1, Y: 0}) {
		t.Errorf("UV1 = %+v", plane.Mesh.UV1)
	}
	if plane.Mesh.UV2 != nil {
		t.Errorf("UV2 = %+v, want none", plane.Mesh.UV2)
	}
	want := math.Vec3{X: 0, Y: 0, Z: 1}
	if plane.Mesh.Faces[0].Normal != want {
		t.Errorf("face normal = %+v, want %+v", plane.Mesh.Faces[0].Normal, want)
	}
	for i, n := range plane.Mesh.Normals {
		if n != want {
			t.Errorf("vertex normal %d = %+v, want %+v", i, n, want)
		}
	}
}

func TestFromDocumentMergesPrimitives(t *testing.T) {
	doc := gltf.NewDocument()
	doc.Images = []*gltf.Image{{URI: "textures/tex_crate01.png"}}
	doc.Textures = []*gltf.Texture{{Source: gltf.Index(0)}}
	doc.Materials = []*gltf.Material{
		{Name: "plain"},
		{Name: "wood", PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorTexture: &gltf.TextureInfo{Index: 0},
		}},
	}

	first := addTriangle(doc, false, gltf.Index(1))
	second := addTriangle(doc, true, gltf.Index(0))
	doc.Meshes[first].Primitives = append(doc.Meshes[first].Primitives, doc.Meshes[second].Primitives...)
	doc.Meshes = doc.Meshes[:1]
	doc.Scenes[0].Nodes = []uint32{addNode(doc, &gltf.Node{Name: "box", Mesh: gltf.Index(first)})}

	m, err := FromDocument(doc, Options{Name: "box"})
	if err != nil {
		t.Fatalf("FromDocument failed: %v", err)
	}
	mesh := m.Root.Children[0].Mesh
	if got := mesh.VertexCount(); got != 6 {
		t.Fatalf("vertices = %d, want 6", got)
	}
	if len(mesh.Faces) != 2 {
		t.Fatalf("faces = %d, want 2", len(mesh.Faces))
	}
	if mesh.Faces[1].Indices != [3]uint16{3, 4, 5} {
		t.Errorf("second face indices = %v, want rebased [3 4 5]", mesh.Faces[1].Indices)
	}
	if mesh.Faces[0].Material != 1 || mesh.Faces[1].Material != 0 {
		t.Errorf("materials = %d, %d", mesh.Faces[0].Material, mesh.Faces[1].Material)
	}
	if mesh.Bitmap != "tex_crate01" {
		t.Errorf("Bitmap = %q, want tex_crate01", mesh.Bitmap)
	}
	if len(mesh.UV1) != 6 {
		t.Fatalf("UV1 entries = %d, want 6", len(mesh.UV1))
	}
	if mesh.UV1[0] != (math.Vec2{}) || mesh.UV1[4] != (math.Vec2{X: 1, Y: 0}) {
		t.Errorf("UV1 = %+v, want zeros then the second primitive's coordinates", mesh.UV1)
	}
	if len(mesh.Normals) != 6 {
		t.Errorf("normals = %d, want 6", len(mesh.Normals))
	}

	if _, err := mdl.NewEncoder(mdl.Options{}).Layout(m); err != nil {
		t.Errorf("imported model does not plan: %v", err)
	}
}

func TestFromDocumentErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *gltf.Document
		want  error
	}{
		{
			name: "no scene",
			build: func() *gltf.Document {
				return &gltf.Document{}
			},
			want: mdl.ErrUnsupportedFeature,
		},
		{
			name: "line primitive",
			build: func() *gltf.Document {
				doc := gltf.NewDocument()
				mesh := addTriangle(doc, false, nil)
				doc.Meshes[mesh].Primitives[0].Mode = gltf.PrimitiveLines
				doc.Scenes[0].Nodes = []uint32{addNode(doc, &gltf.Node{Mesh: gltf.Index(mesh)})}
				return doc
			},
			want: mdl.ErrUnsupportedFeature,
		},
		{
			name: "node reached twice",
			build: func() *gltf.Document {
				doc := gltf.NewDocument()
				n := addNode(doc, &gltf.Node{Name: "a"})
				doc.Scenes[0].Nodes = []uint32{n, n}
				return doc
			},
			want: mdl.ErrMalformedTree,
		},
		{
			name: "child out of range",
			build: func() *gltf.Document {
				doc := gltf.NewDocument()
				doc.Scenes[0].Nodes = []uint32{addNode(doc, &gltf.Node{Children: []uint32{9}})}
				return doc
			},
			want: mdl.ErrMalformedTree,
		},
		{
			name: "missing positions",
			build: func() *gltf.Document {
				doc := gltf.NewDocument()
				mesh := addTriangle(doc, false, nil)
				delete(doc.Meshes[mesh].Primitives[0].Attributes, "POSITION")
				doc.Scenes[0].Nodes = []uint32{addNode(doc, &gltf.Node{Mesh: gltf.Index(mesh)})}
				return doc
			},
			want: mdl.ErrMalformedTree,
		},
		{
			name: "position accessor out of range",
			build: func() *gltf.Document {
				return withPrimitive(func(_ *gltf.Document, p *gltf.Primitive) {
					p.Attributes["POSITION"] = 7
				})
			},
			want: mdl.ErrMalformedTree,
		},
		{
			name: "no accessors at all",
			build: func() *gltf.Document {
				doc := gltf.NewDocument()
				doc.Meshes = []*gltf.Mesh{{Primitives: []*gltf.Primitive{{
					Attributes: map[string]uint32{"POSITION": 7},
				}}}}
				doc.Scenes[0].Nodes = []uint32{addNode(doc, &gltf.Node{Mesh: gltf.Index(0)})}
				return doc
			},
			want: mdl.ErrMalformedTree,
		},
		{
			name: "normal accessor out of range",
			build: func() *gltf.Document {
				return withPrimitive(func(_ *gltf.Document, p *gltf.Primitive) {
					p.Attributes["NORMAL"] = 42
				})
			},
			want: mdl.ErrMalformedTree,
		},
		{
			name: "texcoord accessor out of range",
			build: func() *gltf.Document {
				return withPrimitive(func(_ *gltf.Document, p *gltf.Primitive) {
					p.Attributes["TEXCOORD_1"] = 42
				})
			},
			want: mdl.ErrMalformedTree,
		},
		{
			name: "indices accessor out of range",
			build: func() *gltf.Document {
				return withPrimitive(func(_ *gltf.Document, p *gltf.Primitive) {
					p.Indices = gltf.Index(42)
				})
			},
			want: mdl.ErrMalformedTree,
		},
		{
			name: "vertex index out of range",
			build: func() *gltf.Document {
				return withPrimitive(func(doc *gltf.Document, p *gltf.Primitive) {
					p.Indices = gltf.Index(modeler.WriteIndices(doc, []uint32{0, 1, 5}))
				})
			},
			want: mdl.ErrMalformedTree,
		},
		{
			name: "index count not a multiple of three",
			build: func() *gltf.Document {
				return withPrimitive(func(doc *gltf.Document, p *gltf.Primitive) {
					p.Indices = gltf.Index(modeler.WriteIndices(doc, []uint32{0, 1, 2, 0}))
				})
			},
			want: mdl.ErrMalformedTree,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromDocument(tt.build(), Options{Name: "m"})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	doc := gltf.NewDocument()
	mesh := addTriangle(doc, true, nil)
	doc.Scenes[0].Nodes = []uint32{addNode(doc, &gltf.Node{Name: "plane", Mesh: gltf.Index(mesh)})}

	path := filepath.Join(t.TempDir(), "barrel.glb")
	if err := gltf.SaveBinary(doc, path); err != nil {
		t.Fatalf("SaveBinary failed: %v", err)
	}

	m, err := Load(path, Options{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Name != "barrel" {
		t.Errorf("model name = %q, want name taken from the file", m.Name)
	}
	if len(m.Root.Children) != 1 || m.Root.Children[0].Mesh.VertexCount() != 3 {
		t.Fatalf("unexpected tree: %+v", m.Root.Children)
	}

	var mdlBuf, mdxBuf bytes.Buffer
	if _, err := mdl.Encode(&mdlBuf, &mdxBuf, m, mdl.Options{}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if mdxBuf.Len() != 4*(24+8) {
		t.Errorf("companion size = %d, want %d", mdxBuf.Len(), 4*(24+8))
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.gltf"), Options{}); err == nil {
		t.Fatal("expected error for missing file")
	}
}
