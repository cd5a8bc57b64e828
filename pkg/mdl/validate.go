package mdl

import (
	"fmt"
	"math"

	"go.uber.org/multierr"

	"github.com/Faultbox/kotormdl/pkg/encoding"
)

// Validate checks that m can be encoded. All problems found are returned
// together; each is a *TreeError wrapping ErrMalformedTree or
// ErrUnsupportedFeature.
func Validate(m *Model) error {
	if m == nil {
		return fmt.Errorf("%w: nil model", ErrMalformedTree)
	}
	nodes, err := Flatten(m.Root)
	if err != nil {
		return err
	}
	return validate(m, nodes)
}

func validate(m *Model, nodes []FlatNode) error {
	var errs error

	if encoding.EncodedLen(m.Name) > ModelNameSize {
		errs = multierr.Append(errs, fmt.Errorf("%w: model name %q exceeds %d bytes", ErrMalformedTree, m.Name, ModelNameSize))
	}
	if encoding.EncodedLen(m.Supermodel) > ModelNameSize {
		errs = multierr.Append(errs, fmt.Errorf("%w: supermodel name %q exceeds %d bytes", ErrMalformedTree, m.Supermodel, ModelNameSize))
	}
	if len(nodes) > math.MaxUint16+1 {
		errs = multierr.Append(errs, fmt.Errorf("%w: %d nodes exceed the 16-bit node index", ErrUnsupportedFeature, len(nodes)))
	}

	for i := range nodes {
		errs = multierr.Append(errs, validateNode(&nodes[i]))
	}
	return errs
}

// checkPlanSize rejects plans whose offsets or sizes do not fit the 32-bit
// header fields.
func checkPlanSize(plan *Plan) error {
	if plan.StructuralSize-FileHeaderSize > math.MaxUint32 {
		return fmt.Errorf("%w: structural stream of %d bytes exceeds 4 GiB", ErrUnsupportedFeature, plan.StructuralSize)
	}
	if plan.CompanionSize > math.MaxUint32 {
		return fmt.Errorf("%w: companion stream of %d bytes exceeds 4 GiB", ErrUnsupportedFeature, plan.CompanionSize)
	}
	return nil
}

func validateNode(n *FlatNode) error {
	var errs error
	fail := func(kind error, format string, args ...any) {
		errs = multierr.Append(errs, nodeErr(n.Index, n.Name, kind, format, args...))
	}

	if n.Name == "" {
		fail(ErrMalformedTree, "empty name")
	}
	if !n.Kind.Valid() {
		fail(ErrMalformedTree, "unknown kind %d", n.Kind)
		return errs
	}
	if len(n.Controllers) > 0 {
		fail(ErrUnsupportedFeature, "%d keyframed controllers; only the static transform is encoded", len(n.Controllers))
	}

	switch {
	case n.Kind.HasMesh() && n.Mesh == nil:
		fail(ErrMalformedTree, "%v node without mesh", n.Kind)
	case !n.Kind.HasMesh() && n.Mesh != nil:
		fail(ErrMalformedTree, "%v node carries a mesh", n.Kind)
	case n.Mesh != nil:
		errs = multierr.Append(errs, validateMesh(n))
	}
	return errs
}

func validateMesh(n *FlatNode) error {
	var errs error
	fail := func(kind error, format string, args ...any) {
		errs = multierr.Append(errs, nodeErr(n.Index, n.Name, kind, format, args...))
	}

	m := n.Mesh
	verts := m.VertexCount()
	if verts > math.MaxUint16 {
		fail(ErrUnsupportedFeature, "%d vertices exceed the 16-bit vertex count", verts)
	}
	if len(m.Normals) != verts {
		fail(ErrMalformedTree, "%d normals for %d vertices", len(m.Normals), verts)
	}
	if len(m.UV1) != 0 && len(m.UV1) != verts {
		fail(ErrMalformedTree, "%d primary UVs for %d vertices", len(m.UV1), verts)
	}
	if len(m.UV2) != 0 && len(m.UV2) != verts {
		fail(ErrMalformedTree, "%d secondary UVs for %d vertices", len(m.UV2), verts)
	}
	for i, f := range m.Faces {
		for _, idx := range f.Indices {
			if int(idx) >= verts {
				fail(ErrMalformedTree, "face %d references vertex %d of %d", i, idx, verts)
				break
			}
		}
	}
	if encoding.EncodedLen(m.Bitmap) > TextureNameSize {
		fail(ErrMalformedTree, "bitmap %q exceeds %d bytes", m.Bitmap, TextureNameSize)
	}
	if encoding.EncodedLen(m.Bitmap2) > TextureNameSize {
		fail(ErrMalformedTree, "bitmap2 %q exceeds %d bytes", m.Bitmap2, TextureNameSize)
	}
	return errs
}
