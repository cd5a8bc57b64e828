package ascii

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Faultbox/kotormdl/pkg/encoding"
	"github.com/Faultbox/kotormdl/pkg/math"
	"github.com/Faultbox/kotormdl/pkg/mdl"
)

// SyntaxError reports a problem at a line of the text form. Err, when set,
// is the underlying cause (mdl.ErrMalformedTree for structural problems).
type SyntaxError struct {
	Line int
	Msg  string
	Err  error
}

func (e *SyntaxError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Msg, e.Err)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Counted lists this package does not model; their rows are skipped.
var skippedLists = map[string]bool{
	"weights":          true,
	"constraints":      true,
	"colors":           true,
	"tverts2":          true,
	"tverts3":          true,
	"texindices2":      true,
	"texindices3":      true,
	"flarepositions":   true,
	"flaresizes":       true,
	"flarecolorshifts": true,
	"texturenames":     true,
}

// ReadOptions adjusts how a text model is read.
type ReadOptions struct {
	// AnimationScale is used when the text has no setanimationscale line.
	// Zero means 1.
	AnimationScale float32
}

// Read parses a text model from r.
func Read(r io.Reader) (*mdl.Model, error) {
	return ReadWithOptions(r, ReadOptions{})
}

// ReadWithOptions parses a text model from r using opts.
func ReadWithOptions(r io.Reader, opts ReadOptions) (*mdl.Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseWithOptions(data, opts)
}

// Parse parses a text model. Input may be UTF-8 or Windows-1252.
func Parse(data []byte) (*mdl.Model, error) {
	return ParseWithOptions(data, ReadOptions{})
}

// ParseWithOptions parses a text model using opts.
func ParseWithOptions(data []byte, opts ReadOptions) (*mdl.Model, error) {
	lines, err := tokenize([]byte(encoding.Windows1252ToUTF8(data)))
	if err != nil {
		return nil, err
	}
	scale := opts.AnimationScale
	if scale <= 0 {
		scale = 1.0
	}
	p := &parser{
		lines:  lines,
		model:  &mdl.Model{AnimationScale: scale},
		byName: make(map[string]*pendingNode),
	}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return p.model, nil
}

// pendingNode is a parsed node whose parent is not yet resolved.
type pendingNode struct {
	node   *mdl.Node
	line   int
	parent string

	verts      []math.Vec3
	faces      [][8]int // v1 v2 v3 smooth t1 t2 t3 material
	tverts     []math.Vec2
	tverts1    []math.Vec2
	texindices [][3]int
}

type parser struct {
	lines  []line
	pos    int
	model  *mdl.Model
	nodes  []*pendingNode
	byName map[string]*pendingNode
}

func (p *parser) errorf(no int, format string, args ...any) error {
	return &SyntaxError{Line: no, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) treeErr(no int, format string, args ...any) error {
	return &SyntaxError{Line: no, Msg: fmt.Sprintf(format, args...), Err: mdl.ErrMalformedTree}
}

func (p *parser) next() (line, bool) {
	if p.pos >= len(p.lines) {
		return line{}, false
	}
	l := p.lines[p.pos]
	p.pos++
	return l, true
}

func (p *parser) parse() error {
	for {
		l, ok := p.next()
		if !ok {
			break
		}
		key := strings.ToLower(l.fields[0])
		args := l.fields[1:]

		switch key {
		case "newmodel":
			if len(args) < 1 {
				return p.errorf(l.no, "newmodel without a name")
			}
			p.model.Name = args[0]
		case "setsupermodel":
			if len(args) >= 2 && !strings.EqualFold(args[1], "null") {
				p.model.Supermodel = args[1]
			}
		case "classification":
			if len(args) >= 1 {
				if c, err := mdl.ParseClassification(args[0]); err == nil {
					p.model.Classification = c
				}
			}
		case "classification_unk1":
			v, err := p.unsigned(l, 0, 8)
			if err != nil {
				return err
			}
			p.model.SubClassification = uint8(v)
		case "ignorefog":
			v, err := p.unsigned(l, 0, 8)
			if err != nil {
				return err
			}
			p.model.IgnoreFog = v != 0
		case "setanimationscale":
			v, err := p.float(l, 0)
			if err != nil {
				return err
			}
			p.model.AnimationScale = v
		case "node":
			if err := p.parseNode(l); err != nil {
				return err
			}
		case "newanim":
			p.skipUntil("doneanim")
		case "donemodel":
			return p.link()
		}
	}
	return p.link()
}

func (p *parser) skipUntil(key string) {
	for {
		l, ok := p.next()
		if !ok || strings.EqualFold(l.fields[0], key) {
			return
		}
	}
}

func (p *parser) parseNode(head line) error {
	if len(head.fields) < 3 {
		return p.errorf(head.no, "node needs a type and a name")
	}
	kind, err := mdl.ParseNodeKind(strings.ToLower(head.fields[1]))
	if err != nil {
		return &SyntaxError{Line: head.no, Msg: "node " + head.fields[2], Err: err}
	}
	name := head.fields[2]
	if _, dup := p.byName[strings.ToLower(name)]; dup {
		return p.treeErr(head.no, "duplicate node %q", name)
	}

	pn := &pendingNode{node: mdl.NewNode(kind, name), line: head.no}
	for {
		l, ok := p.next()
		if !ok {
			return p.errorf(head.no, "node %q has no endnode", name)
		}
		key := strings.ToLower(l.fields[0])
		if key == "endnode" {
			break
		}
		if err := p.nodeProperty(pn, key, l); err != nil {
			return err
		}
	}

	if err := pn.finishMesh(); err != nil {
		return err
	}
	p.nodes = append(p.nodes, pn)
	p.byName[strings.ToLower(name)] = pn
	return nil
}

func (p *parser) nodeProperty(pn *pendingNode, key string, l line) error {
	n := pn.node
	switch key {
	case "parent":
		if len(l.fields) >= 2 {
			pn.parent = l.fields[1]
		}
		return nil
	case "position":
		v, err := p.vec3(l)
		if err != nil {
			return err
		}
		n.Position = v
		return nil
	case "orientation":
		v, err := p.floats(l, 4)
		if err != nil {
			return err
		}
		n.Orientation = math.QuatFromAxisAngle(math.Vec3{X: v[0], Y: v[1], Z: v[2]}, v[3])
		return nil
	case "refmodel":
		if len(l.fields) >= 2 {
			n.RefModel = l.fields[1]
		}
		return nil
	case "reattachable":
		v, err := p.unsigned(l, 0, 8)
		n.Reattachable = v != 0
		return err
	case "verts":
		return p.list(l, func(row line) error {
			v, err := p.floatsAt(row, 0, 3)
			if err != nil {
				return err
			}
			pn.verts = append(pn.verts, math.Vec3{X: v[0], Y: v[1], Z: v[2]})
			return nil
		})
	case "faces":
		return p.list(l, func(row line) error {
			if len(row.fields) < 8 {
				return p.errorf(row.no, "face needs 8 values, got %d", len(row.fields))
			}
			var f [8]int
			for i := 0; i < 7; i++ {
				v, err := strconv.Atoi(row.fields[i])
				if err != nil {
					return &SyntaxError{Line: row.no, Msg: "face value", Err: err}
				}
				f[i] = v
			}
			mat, err := strconv.ParseUint(row.fields[7], 10, 32)
			if err != nil {
				return &SyntaxError{Line: row.no, Msg: "face material", Err: err}
			}
			f[7] = int(mat)
			pn.faces = append(pn.faces, f)
			return nil
		})
	case "tverts", "tverts1":
		return p.list(l, func(row line) error {
			v, err := p.floatsAt(row, 0, 2)
			if err != nil {
				return err
			}
			uv := math.Vec2{X: v[0], Y: v[1]}
			if key == "tverts" {
				pn.tverts = append(pn.tverts, uv)
			} else {
				pn.tverts1 = append(pn.tverts1, uv)
			}
			return nil
		})
	case "texindices1":
		return p.list(l, func(row line) error {
			if len(row.fields) < 3 {
				return p.errorf(row.no, "texture indices need 3 values")
			}
			var t [3]int
			for i := range t {
				v, err := strconv.Atoi(row.fields[i])
				if err != nil {
					return &SyntaxError{Line: row.no, Msg: "texture index", Err: err}
				}
				t[i] = v
			}
			pn.texindices = append(pn.texindices, t)
			return nil
		})
	}

	if skippedLists[key] {
		return p.list(l, func(line) error { return nil })
	}
	if n.Mesh != nil {
		return p.meshProperty(n.Mesh, key, l)
	}
	return nil
}

func (p *parser) meshProperty(m *mdl.MeshPayload, key string, l line) error {
	var err error
	switch key {
	case "bitmap":
		m.Bitmap = textureName(l)
	case "bitmap2", "lightmap":
		m.Bitmap2 = textureName(l)
	case "diffuse":
		m.Diffuse, err = p.vec3(l)
	case "ambient":
		m.Ambient, err = p.vec3(l)
	case "selfillumcolor":
		m.SelfIllumColor, err = p.vec3(l)
	case "alpha":
		m.Alpha, err = p.float(l, 0)
	case "transparencyhint":
		var v uint64
		v, err = p.unsigned(l, 0, 32)
		m.TransparencyHint = uint32(v)
	case "animateuv":
		m.AnimateUV, err = p.flag(l)
	case "uvdirectionx":
		m.UVDirection.X, err = p.float(l, 0)
	case "uvdirectiony":
		m.UVDirection.Y, err = p.float(l, 0)
	case "uvjitter":
		m.UVJitter, err = p.float(l, 0)
	case "uvjitterspeed":
		m.UVJitterSpeed, err = p.float(l, 0)
	case "lightmapped":
		m.Lightmapped, err = p.flag(l)
	case "rotatetexture":
		m.RotateTexture, err = p.flag(l)
	case "background_geometry":
		m.BackgroundGeometry, err = p.flag(l)
	case "shadow":
		m.Shadow, err = p.flag(l)
	case "beaming":
		m.Beaming, err = p.flag(l)
	case "render":
		m.Render, err = p.flag(l)
	case "dirt_enabled":
		m.DirtEnabled, err = p.flag(l)
	case "dirt_texture":
		var v uint64
		v, err = p.unsigned(l, 0, 16)
		m.DirtTexture = uint16(v)
	case "dirt_worldspace":
		var v uint64
		v, err = p.unsigned(l, 0, 16)
		m.DirtWorldSpace = uint16(v)
	case "hologram_donotdraw":
		m.HideInHolograms, err = p.flag(l)
	}
	return err
}

func textureName(l line) string {
	if len(l.fields) < 2 || strings.EqualFold(l.fields[1], "null") {
		return ""
	}
	return l.fields[1]
}

// list reads the count on l and hands that many following lines to row.
func (p *parser) list(l line, row func(line) error) error {
	count, err := p.unsigned(l, 0, 32)
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		r, ok := p.next()
		if !ok {
			return p.errorf(l.no, "%s lists %d rows, input ended after %d", l.fields[0], count, i)
		}
		if err := row(r); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) unsigned(l line, arg int, bits int) (uint64, error) {
	if len(l.fields) < arg+2 {
		return 0, p.errorf(l.no, "%s needs a value", l.fields[0])
	}
	v, err := strconv.ParseUint(l.fields[arg+1], 10, bits)
	if err != nil {
		return 0, &SyntaxError{Line: l.no, Msg: l.fields[0], Err: err}
	}
	return v, nil
}

func (p *parser) flag(l line) (bool, error) {
	v, err := p.unsigned(l, 0, 8)
	return v != 0, err
}

func (p *parser) float(l line, arg int) (float32, error) {
	v, err := p.floatsAt(line{no: l.no, fields: l.fields[1:]}, arg, 1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

func (p *parser) floats(l line, n int) ([]float32, error) {
	return p.floatsAt(line{no: l.no, fields: l.fields[1:]}, 0, n)
}

func (p *parser) vec3(l line) (math.Vec3, error) {
	v, err := p.floats(l, 3)
	if err != nil {
		return math.Vec3{}, err
	}
	return math.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
}

// floatsAt parses n floats of row starting at field from.
func (p *parser) floatsAt(row line, from, n int) ([]float32, error) {
	if len(row.fields) < from+n {
		return nil, p.errorf(row.no, "expected %d numbers, got %d", n, len(row.fields)-from)
	}
	out := make([]float32, n)
	for i := range out {
		v, err := strconv.ParseFloat(row.fields[from+i], 32)
		if err != nil {
			return nil, &SyntaxError{Line: row.no, Msg: "number", Err: err}
		}
		out[i] = float32(v)
	}
	return out, nil
}

// finishMesh turns the parsed lists into per-vertex mesh data.
func (pn *pendingNode) finishMesh() error {
	m := pn.node.Mesh
	if m == nil {
		return nil
	}
	nverts := len(pn.verts)
	m.Positions = pn.verts

	indices := make([][3]uint16, len(pn.faces))
	m.Faces = make([]mdl.Face, len(pn.faces))
	for i, f := range pn.faces {
		for k := 0; k < 3; k++ {
			if f[k] < 0 || f[k] >= nverts {
				return &SyntaxError{Line: pn.line, Msg: fmt.Sprintf("node %q face %d references vertex %d of %d", pn.node.Name, i, f[k], nverts), Err: mdl.ErrMalformedTree}
			}
			indices[i][k] = uint16(f[k])
		}
		m.Faces[i] = mdl.Face{
			Indices:  indices[i],
			Normal:   math.FaceNormal(pn.verts[f[0]], pn.verts[f[1]], pn.verts[f[2]]),
			Material: uint32(f[7]),
		}
	}
	m.Normals = math.VertexNormals(m.Positions, indices)

	var err error
	if len(pn.tverts) > 0 {
		m.UV1, err = pn.perVertexUV(pn.tverts, func(i int) [3]int {
			return [3]int{pn.faces[i][4], pn.faces[i][5], pn.faces[i][6]}
		})
		if err != nil {
			return err
		}
	}
	if len(pn.tverts1) > 0 {
		m.UV2, err = pn.perVertexUV(pn.tverts1, func(i int) [3]int {
			if i < len(pn.texindices) {
				return pn.texindices[i]
			}
			return [3]int{pn.faces[i][4], pn.faces[i][5], pn.faces[i][6]}
		})
	}
	return err
}

// perVertexUV maps face-corner texture coordinates onto the vertices the
// corners reference. A vertex shared by corners with different
// coordinates keeps the last one.
func (pn *pendingNode) perVertexUV(tverts []math.Vec2, corners func(face int) [3]int) ([]math.Vec2, error) {
	uvs := make([]math.Vec2, len(pn.verts))
	for i, f := range pn.faces {
		t := corners(i)
		for k := 0; k < 3; k++ {
			if t[k] < 0 || t[k] >= len(tverts) {
				return nil, &SyntaxError{Line: pn.line, Msg: fmt.Sprintf("node %q face %d references texture vertex %d of %d", pn.node.Name, i, t[k], len(tverts)), Err: mdl.ErrMalformedTree}
			}
			uvs[f[k]] = tverts[t[k]]
		}
	}
	return uvs, nil
}

// link resolves parents by name and builds the tree. The first node is
// the root and must be a parentless dummy.
func (p *parser) link() error {
	if len(p.nodes) == 0 {
		return p.treeErr(0, "model has no nodes")
	}
	root := p.nodes[0]
	if root.node.Kind != mdl.KindDummy || !isNull(root.parent) {
		return p.treeErr(root.line, "first node %q must be a dummy without a parent", root.node.Name)
	}

	for _, pn := range p.nodes[1:] {
		if isNull(pn.parent) {
			return p.treeErr(pn.line, "node %q has no parent", pn.node.Name)
		}
		parent, ok := p.byName[strings.ToLower(pn.parent)]
		if !ok {
			return p.treeErr(pn.line, "node %q has unknown parent %q", pn.node.Name, pn.parent)
		}
		if parent == pn {
			return p.treeErr(pn.line, "node %q is its own parent", pn.node.Name)
		}
		parent.node.AddChild(pn.node)
	}

	if p.model.Name == "" {
		p.model.Name = root.node.Name
	}
	p.model.Root = root.node
	flat, err := mdl.Flatten(root.node)
	if err != nil {
		return err
	}
	if len(flat) != len(p.nodes) {
		return p.treeErr(root.line, "%d nodes are not reachable from %q", len(p.nodes)-len(flat), root.node.Name)
	}
	return nil
}

func isNull(name string) bool {
	return name == "" || strings.EqualFold(name, "null")
}
