package mdl

import (
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Options configures an encode. The zero value writes a K1 model with
// every UV channel the meshes provide.
type Options struct {
	// TSL selects the second game's record layout: different function
	// pointers and an extra 8 bytes of mesh flags.
	TSL bool
	// OmitPrimaryUV and OmitSecondaryUV drop a UV channel from the
	// companion stream even when meshes carry it.
	OmitPrimaryUV   bool
	OmitSecondaryUV bool
	// Logger receives debug traces. Nil disables logging.
	Logger *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger.Named("mdl")
}

// Encoder writes models to a structural and a companion stream.
type Encoder struct {
	opts Options
	log  *zap.Logger
}

// NewEncoder returns an encoder using opts.
func NewEncoder(opts Options) *Encoder {
	return &Encoder{opts: opts, log: opts.logger()}
}

// Layout validates m and returns the plan an Encode would follow.
func (e *Encoder) Layout(m *Model) (*Plan, error) {
	nodes, err := e.prepare(m)
	if err != nil {
		return nil, err
	}
	plan := PlanLayout(nodes, e.opts)
	if err := checkPlanSize(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (e *Encoder) prepare(m *Model) ([]FlatNode, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil model", ErrMalformedTree)
	}
	nodes, err := Flatten(m.Root)
	if err != nil {
		return nil, err
	}
	if err := validate(m, nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// Encode writes m to mdl and mdx and returns the plan it followed.
// Nothing is written when validation fails. A write failure is returned
// as an *IOError; the streams may then hold partial output.
func (e *Encoder) Encode(mdl, mdx io.Writer, m *Model) (*Plan, error) {
	nodes, err := e.prepare(m)
	if err != nil {
		return nil, err
	}
	plan := PlanLayout(nodes, e.opts)
	if err := checkPlanSize(plan); err != nil {
		return nil, err
	}
	e.log.Debug("layout planned",
		zap.String("model", m.Name),
		zap.Int("nodes", len(nodes)),
		zap.Int64("mdl_size", plan.StructuralSize),
		zap.Int64("mdx_size", plan.CompanionSize),
		zap.Bool("tsl", plan.TSL),
	)

	mdlSink := NewByteSink(mdl)
	mdxSink := NewByteSink(mdx)

	writeFileHeader(mdlSink, plan)
	writeGeometryHeader(mdlSink, m, nodes, plan)
	writeModelHeader(mdlSink, m, nodes, plan)

	em := newEmitter(mdlSink, mdxSink, nodes, plan, e.log)
	if err := em.emitNames(); err != nil {
		return nil, err
	}
	if err := em.emitNodes(); err != nil {
		return nil, err
	}
	if err := em.checkpoint("eof", -1, plan.StructuralSize, plan.CompanionSize); err != nil {
		return nil, err
	}

	e.log.Debug("model encoded", zap.String("model", m.Name))
	return plan, nil
}

// Encode writes m with the given options.
func Encode(mdl, mdx io.Writer, m *Model, opts Options) (*Plan, error) {
	return NewEncoder(opts).Encode(mdl, mdx, m)
}

func writeFileHeader(s *ByteSink, plan *Plan) {
	s.PutUint32(0) // signature
	s.PutUint32(uint32(plan.StructuralSize - FileHeaderSize))
	s.PutUint32(uint32(plan.CompanionSize))
}

func writeGeometryHeader(s *ByteSink, m *Model, nodes []FlatNode, plan *Plan) {
	if plan.TSL {
		s.PutUint32(modelFnPtr1TSL)
		s.PutUint32(modelFnPtr2TSL)
	} else {
		s.PutUint32(modelFnPtr1K1)
		s.PutUint32(modelFnPtr2K1)
	}
	s.PutString(m.Name, ModelNameSize)
	s.PutUint32(Rel(plan.RootOffset()))
	s.PutUint32(uint32(len(nodes)))
	s.PutArrayDef(0, 0) // runtime arrays
	s.PutArrayDef(0, 0)
	s.PutUint32(0) // reference count
	s.PutUint8(modelTypeGeom)
	s.PutZeros(3)
}

func writeModelHeader(s *ByteSink, m *Model, nodes []FlatNode, plan *Plan) {
	supermodel := m.Supermodel
	if supermodel == "" {
		supermodel = "NULL"
	}

	s.PutUint8(uint8(m.Classification))
	s.PutUint8(m.SubClassification)
	s.PutUint8(0)
	s.PutUint8(boolByte(!m.IgnoreFog))
	s.PutUint32(0)      // child models
	s.PutArrayDef(0, 0) // animations
	s.PutUint32(0)      // supermodel reference
	s.PutFloats(modelBounds[:]...)
	s.PutFloat(modelRadius)
	s.PutFloat(m.AnimationScale)
	s.PutString(supermodel, ModelNameSize)
	s.PutUint32(Rel(plan.RootOffset()))
	s.PutUint32(0)
	s.PutUint32(uint32(plan.CompanionSize))
	s.PutUint32(0) // companion offset
	s.PutArrayDef(Rel(plan.NameTable), len(nodes))
}
