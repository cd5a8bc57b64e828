// Package gltfimport builds model trees from glTF 2.0 scenes.
//
// Every glTF node becomes one model node under a dummy root named after the
// model. Nodes that reference a mesh become trimeshes; all of the mesh's
// triangle primitives are merged into one vertex and face list. Coordinates
// are copied as stored, without converting between Y-up and Z-up.
package gltfimport

import (
	"fmt"
	"path"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/Faultbox/kotormdl/pkg/math"
	"github.com/Faultbox/kotormdl/pkg/mdl"
)

// Options configures an import.
type Options struct {
	// Name is the model name. Empty uses the scene name, then "model".
	Name           string
	Classification mdl.Classification
	// Logger receives debug traces. Nil disables logging.
	Logger *zap.Logger
}

// Load opens a .gltf or .glb file and converts its active scene.
func Load(filePath string, opts Options) (*mdl.Model, error) {
	doc, err := gltf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filePath, err)
	}
	if opts.Name == "" {
		opts.Name = strings.TrimSuffix(path.Base(filePath), path.Ext(filePath))
	}
	return FromDocument(doc, opts)
}

// FromDocument converts the active scene of doc, or the first scene when
// none is marked active.
func FromDocument(doc *gltf.Document, opts Options) (*mdl.Model, error) {
	if doc == nil || len(doc.Scenes) == 0 {
		return nil, fmt.Errorf("%w: document has no scene", mdl.ErrUnsupportedFeature)
	}
	sceneIdx := uint32(0)
	if doc.Scene != nil {
		sceneIdx = *doc.Scene
	}
	if int(sceneIdx) >= len(doc.Scenes) {
		return nil, fmt.Errorf("%w: scene %d out of range", mdl.ErrMalformedTree, sceneIdx)
	}
	scene := doc.Scenes[sceneIdx]

	name := opts.Name
	if name == "" {
		name = scene.Name
	}
	if name == "" {
		name = "model"
	}

	log := zap.NewNop()
	if opts.Logger != nil {
		log = opts.Logger.Named("gltfimport")
	}

	m := mdl.NewModel(name)
	m.Classification = opts.Classification

	c := &converter{doc: doc, log: log, visited: make(map[uint32]bool)}
	for _, idx := range scene.Nodes {
		n, err := c.node(idx)
		if err != nil {
			return nil, err
		}
		m.Root.AddChild(n)
	}
	log.Debug("imported scene",
		zap.String("model", name),
		zap.Int("nodes", len(c.visited)))
	return m, nil
}

type converter struct {
	doc     *gltf.Document
	log     *zap.Logger
	visited map[uint32]bool
}

func (c *converter) node(idx uint32) (*mdl.Node, error) {
	if int(idx) >= len(c.doc.Nodes) {
		return nil, fmt.Errorf("%w: node %d out of range", mdl.ErrMalformedTree, idx)
	}
	if c.visited[idx] {
		return nil, fmt.Errorf("%w: node %d reached twice", mdl.ErrMalformedTree, idx)
	}
	c.visited[idx] = true

	src := c.doc.Nodes[idx]
	name := src.Name
	if name == "" {
		name = fmt.Sprintf("node%d", idx)
	}

	var n *mdl.Node
	if src.Mesh != nil {
		n = mdl.NewNode(mdl.KindTrimesh, name)
		if err := c.mesh(n.Mesh, *src.Mesh); err != nil {
			return nil, fmt.Errorf("node %q: %w", name, err)
		}
	} else {
		n = mdl.NewNode(mdl.KindDummy, name)
	}

	n.Position = math.Vec3FromArray(src.Translation)
	r := src.Rotation
	if r != [4]float32{} {
		n.Orientation = math.Quat{X: r[0], Y: r[1], Z: r[2], W: r[3]}.Normalize()
	}

	for _, child := range src.Children {
		cn, err := c.node(child)
		if err != nil {
			return nil, err
		}
		n.AddChild(cn)
	}
	return n, nil
}

// mesh merges every primitive of mesh idx into dst.
func (c *converter) mesh(dst *mdl.MeshPayload, idx uint32) error {
	if int(idx) >= len(c.doc.Meshes) {
		return fmt.Errorf("%w: mesh %d out of range", mdl.ErrMalformedTree, idx)
	}
	src := c.doc.Meshes[idx]

	var (
		positions      []math.Vec3
		normals        []math.Vec3
		uv1, uv2       []math.Vec2
		hasUV1, hasUV2 bool
		missingNormals bool
		faces          []mdl.Face
	)

	for pi, prim := range src.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			return fmt.Errorf("%w: primitive %d is not a triangle list", mdl.ErrUnsupportedFeature, pi)
		}
		posIdx, ok := prim.Attributes["POSITION"]
		if !ok {
			return fmt.Errorf("%w: primitive %d has no positions", mdl.ErrMalformedTree, pi)
		}
		acr, err := c.accessor(posIdx)
		if err != nil {
			return err
		}
		pos, err := modeler.ReadPosition(c.doc, acr, nil)
		if err != nil {
			return fmt.Errorf("read positions: %w", err)
		}
		base := len(positions)
		if base+len(pos) > 0xFFFF {
			return fmt.Errorf("%w: more than 65535 vertices", mdl.ErrUnsupportedFeature)
		}
		for _, p := range pos {
			positions = append(positions, math.Vec3FromArray(p))
		}

		if nIdx, ok := prim.Attributes["NORMAL"]; ok && !missingNormals {
			acr, err := c.accessor(nIdx)
			if err != nil {
				return err
			}
			nrm, err := modeler.ReadNormal(c.doc, acr, nil)
			if err != nil {
				return fmt.Errorf("read normals: %w", err)
			}
			for _, v := range nrm {
				normals = append(normals, math.Vec3FromArray(v))
			}
		} else {
			missingNormals = true
		}

		var present bool
		uv1, present, err = c.appendUV(uv1, prim, "TEXCOORD_0", len(pos))
		if err != nil {
			return err
		}
		hasUV1 = hasUV1 || present
		uv2, present, err = c.appendUV(uv2, prim, "TEXCOORD_1", len(pos))
		if err != nil {
			return err
		}
		hasUV2 = hasUV2 || present

		var indices []uint32
		if prim.Indices != nil {
			acr, err := c.accessor(*prim.Indices)
			if err != nil {
				return err
			}
			indices, err = modeler.ReadIndices(c.doc, acr, nil)
			if err != nil {
				return fmt.Errorf("read indices: %w", err)
			}
		} else {
			indices = make([]uint32, len(pos))
			for i := range indices {
				indices[i] = uint32(i)
			}
		}
		if len(indices)%3 != 0 {
			return fmt.Errorf("%w: primitive %d has %d indices", mdl.ErrMalformedTree, pi, len(indices))
		}

		material := uint32(0)
		if prim.Material != nil {
			material = *prim.Material
			if dst.Bitmap == "" {
				dst.Bitmap = c.textureName(*prim.Material)
			}
		}
		for i := 0; i < len(indices); i += 3 {
			var f mdl.Face
			for k := 0; k < 3; k++ {
				if int(indices[i+k]) >= len(pos) {
					return fmt.Errorf("%w: primitive %d index %d out of range", mdl.ErrMalformedTree, pi, indices[i+k])
				}
				f.Indices[k] = uint16(base + int(indices[i+k]))
			}
			f.Material = material
			faces = append(faces, f)
		}
	}

	tris := make([][3]uint16, len(faces))
	for i := range faces {
		f := &faces[i]
		f.Normal = math.FaceNormal(positions[f.Indices[0]], positions[f.Indices[1]], positions[f.Indices[2]])
		tris[i] = f.Indices
	}
	if missingNormals || len(normals) != len(positions) {
		normals = math.VertexNormals(positions, tris)
	}

	dst.Positions = positions
	dst.Normals = normals
	dst.Faces = faces
	if hasUV1 {
		dst.UV1 = uv1
	}
	if hasUV2 {
		dst.UV2 = uv2
	}
	c.log.Debug("merged mesh",
		zap.String("mesh", src.Name),
		zap.Int("primitives", len(src.Primitives)),
		zap.Int("vertices", len(positions)),
		zap.Int("faces", len(faces)))
	return nil
}

func (c *converter) accessor(idx uint32) (*gltf.Accessor, error) {
	if int(idx) >= len(c.doc.Accessors) || c.doc.Accessors[idx] == nil {
		return nil, fmt.Errorf("%w: accessor %d out of range", mdl.ErrMalformedTree, idx)
	}
	return c.doc.Accessors[idx], nil
}

// appendUV extends uvs with the primitive's coordinates for attr, or with
// zeros when the primitive lacks them, so the channel stays aligned with the
// merged vertex list.
func (c *converter) appendUV(uvs []math.Vec2, prim *gltf.Primitive, attr string, count int) ([]math.Vec2, bool, error) {
	idx, ok := prim.Attributes[attr]
	if !ok {
		return append(uvs, make([]math.Vec2, count)...), false, nil
	}
	acr, err := c.accessor(idx)
	if err != nil {
		return nil, false, err
	}
	tc, err := modeler.ReadTextureCoord(c.doc, acr, nil)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", strings.ToLower(attr), err)
	}
	if len(tc) != count {
		return nil, false, fmt.Errorf("%w: %s has %d entries for %d vertices", mdl.ErrMalformedTree, attr, len(tc), count)
	}
	for _, v := range tc {
		uvs = append(uvs, math.Vec2FromArray(v))
	}
	return uvs, true, nil
}

// textureName returns the base color image name of material idx, without
// directory or extension, or "" when it has none.
func (c *converter) textureName(idx uint32) string {
	if int(idx) >= len(c.doc.Materials) {
		return ""
	}
	mat := c.doc.Materials[idx]
	if mat.PBRMetallicRoughness == nil || mat.PBRMetallicRoughness.BaseColorTexture == nil {
		return ""
	}
	texIdx := int(mat.PBRMetallicRoughness.BaseColorTexture.Index)
	if texIdx >= len(c.doc.Textures) || c.doc.Textures[texIdx].Source == nil {
		return ""
	}
	src := int(*c.doc.Textures[texIdx].Source)
	if src >= len(c.doc.Images) {
		return ""
	}
	img := c.doc.Images[src]
	name := img.Name
	if img.URI != "" && !strings.HasPrefix(img.URI, "data:") {
		name = img.URI
	}
	if name == "" {
		return ""
	}
	name = path.Base(name)
	return strings.TrimSuffix(name, path.Ext(name))
}
