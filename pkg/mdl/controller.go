package mdl

// ControllerType identifies the property a controller animates.
type ControllerType uint32

// Controller types written by the encoder.
const (
	CtrlPosition       ControllerType = 8
	CtrlOrientation    ControllerType = 20
	CtrlSelfIllumColor ControllerType = 100
	CtrlAlpha          ControllerType = 132
)

// Keyframe is one row of a controller track.
type Keyframe struct {
	Time   float32
	Values []float32
}

// Controller is an animation track on a node.
type Controller struct {
	Type    ControllerType
	Columns uint8
	Keys    []Keyframe
}

// ControllerKey is the 16-byte descriptor of one encoded controller.
// TimekeyStart and ValueStart index into the node's controller data.
type ControllerKey struct {
	Type         ControllerType
	Rows         uint16
	TimekeyStart uint16
	ValueStart   uint16
	Columns      uint8
}

// ControllerBlock is the encoded controller section of one node.
type ControllerBlock struct {
	Keys []ControllerKey
	Data []float32
}

// KeyBytes returns the size of the key table.
func (b ControllerBlock) KeyBytes() int64 {
	return int64(len(b.Keys)) * ControllerKeySize
}

// DataBytes returns the size of the data table.
func (b ControllerBlock) DataBytes() int64 {
	return int64(len(b.Data)) * ControllerDataSize
}

// add appends a single-row track sampled at time zero.
func (b *ControllerBlock) add(typ ControllerType, values ...float32) {
	start := uint16(len(b.Data))
	b.Keys = append(b.Keys, ControllerKey{
		Type:         typ,
		Rows:         1,
		TimekeyStart: start,
		ValueStart:   start + 1,
		Columns:      uint8(len(values)),
	})
	b.Data = append(b.Data, 0)
	b.Data = append(b.Data, values...)
}

// EncodeControllers builds the implicit controllers for n. Only the root
// carries controllers: position and orientation always, plus alpha and
// self-illumination color when the root is mesh-bearing. Every other node
// gets an empty block. The result is a pure function of its inputs, so the
// planner and the emitter derive identical blocks.
func EncodeControllers(n *Node, isRoot bool) ControllerBlock {
	var b ControllerBlock
	if !isRoot {
		return b
	}

	b.add(CtrlPosition, n.Position.X, n.Position.Y, n.Position.Z)
	q := n.Orientation.WXYZ()
	b.add(CtrlOrientation, q[:]...)

	if n.Kind.HasMesh() && n.Mesh != nil {
		b.add(CtrlAlpha, n.Mesh.Alpha)
		c := n.Mesh.SelfIllumColor
		b.add(CtrlSelfIllumColor, c.X, c.Y, c.Z)
	}
	return b
}
