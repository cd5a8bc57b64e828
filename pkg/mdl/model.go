// Package mdl writes KotOR binary models: a structural MDL stream and a
// companion MDX stream of per-vertex records.
//
// Encoding runs in two passes. Flatten orders the node tree, PlanLayout
// computes every offset and size without writing, and the emitter replays
// the same traversal to write bytes at exactly the planned positions.
package mdl

import (
	"fmt"
	"strings"

	"github.com/Faultbox/kotormdl/pkg/math"
)

// NodeKind is the closed set of node types the engine knows.
type NodeKind uint8

// Node kinds.
const (
	KindDummy NodeKind = iota
	KindReference
	KindTrimesh
	KindDanglyMesh
	KindSkin
	KindEmitter
	KindLight
	KindAABB
	KindLightsaber
)

var kindNames = [...]string{
	KindDummy:      "dummy",
	KindReference:  "reference",
	KindTrimesh:    "trimesh",
	KindDanglyMesh: "danglymesh",
	KindSkin:       "skin",
	KindEmitter:    "emitter",
	KindLight:      "light",
	KindAABB:       "aabb",
	KindLightsaber: "lightsaber",
}

func (k NodeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("NodeKind(%d)", k)
}

// Valid reports whether k is one of the known kinds.
func (k NodeKind) Valid() bool {
	return int(k) < len(kindNames)
}

// ParseNodeKind maps an ASCII type keyword to its kind.
func ParseNodeKind(s string) (NodeKind, error) {
	for k, name := range kindNames {
		if name == s {
			return NodeKind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown node type %q", ErrMalformedTree, s)
}

// TypeFlags returns the node header type flags for k.
// Dummy, Reference, Emitter and Light write the base flag only; every
// mesh-bearing kind adds the mesh flag.
func (k NodeKind) TypeFlags() uint16 {
	switch k {
	case KindDummy, KindReference, KindEmitter, KindLight:
		return NodeFlagBase
	case KindTrimesh, KindDanglyMesh, KindSkin, KindAABB, KindLightsaber:
		return NodeFlagBase | NodeFlagMesh
	default:
		panic(fmt.Sprintf("mdl: type flags requested for %v", k))
	}
}

// HasMesh reports whether nodes of kind k carry a mesh payload.
func (k NodeKind) HasMesh() bool {
	return k.TypeFlags()&NodeFlagMesh != 0
}

// Classification is the model category byte in the model header.
type Classification uint8

// Model classifications.
const (
	ClassOther      Classification = 0x00
	ClassEffect     Classification = 0x01
	ClassTile       Classification = 0x02
	ClassCharacter  Classification = 0x04
	ClassDoor       Classification = 0x08
	ClassLightsaber Classification = 0x10
	ClassPlaceable  Classification = 0x20
	ClassFlyer      Classification = 0x40
)

var classNames = map[Classification]string{
	ClassOther:      "Other",
	ClassEffect:     "Effect",
	ClassTile:       "Tile",
	ClassCharacter:  "Character",
	ClassDoor:       "Door",
	ClassLightsaber: "Lightsaber",
	ClassPlaceable:  "Placeable",
	ClassFlyer:      "Flyer",
}

func (c Classification) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Classification(%d)", uint8(c))
}

// ParseClassification accepts the names used by the ASCII form,
// case-insensitively.
func ParseClassification(s string) (Classification, error) {
	for c, name := range classNames {
		if strings.EqualFold(name, s) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown classification %q", ErrMalformedTree, s)
}

// Model is a complete model: header metadata plus the node tree.
type Model struct {
	Name              string
	Supermodel        string // empty is written as "NULL"
	Classification    Classification
	SubClassification uint8
	IgnoreFog         bool
	AnimationScale    float32
	Root              *Node
}

// NewModel returns a model with a dummy root named after it.
func NewModel(name string) *Model {
	return &Model{
		Name:           name,
		AnimationScale: 1.0,
		Root:           NewNode(KindDummy, name),
	}
}

// Face is one triangle of a mesh.
type Face struct {
	Indices  [3]uint16
	Normal   math.Vec3
	Material uint32
}

// MeshPayload is the geometry and render state of a mesh-bearing node.
// Normals, UV1 and UV2 are per vertex; UV1 and UV2 may be empty.
type MeshPayload struct {
	Positions []math.Vec3
	Normals   []math.Vec3
	UV1       []math.Vec2
	UV2       []math.Vec2
	Faces     []Face

	Diffuse          math.Vec3
	Ambient          math.Vec3
	SelfIllumColor   math.Vec3
	Alpha            float32
	TransparencyHint uint32
	Bitmap           string
	Bitmap2          string

	AnimateUV     bool
	UVDirection   math.Vec2
	UVJitter      float32
	UVJitterSpeed float32

	Lightmapped        bool
	RotateTexture      bool
	BackgroundGeometry bool
	Shadow             bool
	Beaming            bool
	Render             bool

	DirtEnabled     bool
	DirtTexture     uint16
	DirtWorldSpace  uint16
	HideInHolograms bool
}

// NewMesh returns a mesh payload with the engine's default render state.
func NewMesh() *MeshPayload {
	return &MeshPayload{
		Diffuse:        math.Vec3{X: 0.8, Y: 0.8, Z: 0.8},
		Ambient:        math.Vec3{X: 0.2, Y: 0.2, Z: 0.2},
		Alpha:          1.0,
		UVDirection:    math.Vec2{X: 1, Y: 1},
		Shadow:         true,
		Render:         true,
		DirtTexture:    1,
		DirtWorldSpace: 1,
	}
}

// VertexCount returns the number of vertices.
func (m *MeshPayload) VertexCount() int {
	return len(m.Positions)
}

// Node is one element of the input tree.
type Node struct {
	Kind        NodeKind
	Name        string
	Position    math.Vec3
	Orientation math.Quat
	Mesh        *MeshPayload // required for mesh-bearing kinds
	Children    []*Node

	// Controllers holds animation tracks beyond the static transform.
	// The binary writer only encodes the implicit time-zero tracks, so a
	// non-empty list is rejected during validation.
	Controllers []Controller

	RefModel     string
	Reattachable bool
}

// NewNode returns a node with an identity transform. Mesh-bearing kinds
// get a default mesh payload.
func NewNode(kind NodeKind, name string) *Node {
	n := &Node{
		Kind:        kind,
		Name:        name,
		Orientation: math.QuatIdentity(),
	}
	if kind.Valid() && kind.HasMesh() {
		n.Mesh = NewMesh()
	}
	return n
}

// AddChild appends child and returns it.
func (n *Node) AddChild(child *Node) *Node {
	n.Children = append(n.Children, child)
	return child
}
