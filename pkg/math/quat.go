package math

import "math"

// Quat represents a quaternion for 3D rotations.
// Components are stored as X, Y, Z, W where W is the scalar part.
type Quat struct {
	X, Y, Z, W float32
}

// QuatIdentity returns an identity quaternion (no rotation).
func QuatIdentity() Quat {
	return Quat{X: 0, Y: 0, Z: 0, W: 1}
}

// QuatFromAxisAngle creates a quaternion from axis-angle rotation.
// The axis is normalized here; a zero axis yields the identity.
// angle is in radians.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	axis = axis.Normalize()
	if axis == (Vec3{}) {
		return QuatIdentity()
	}
	halfAngle := float64(angle) / 2
	s := float32(math.Sin(halfAngle))
	return Quat{
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
		W: float32(math.Cos(halfAngle)),
	}
}

// Normalize returns a normalized quaternion.
func (q Quat) Normalize() Quat {
	length := float32(math.Sqrt(float64(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)))
	if length < 0.0001 {
		return QuatIdentity()
	}
	invLen := 1.0 / length
	return Quat{
		X: q.X * invLen,
		Y: q.Y * invLen,
		Z: q.Z * invLen,
		W: q.W * invLen,
	}
}

// AxisAngle converts q to an axis and an angle in radians.
// The identity rotation returns the zero axis and angle 0.
func (q Quat) AxisAngle() (Vec3, float32) {
	q = q.Normalize()
	w := math.Max(-1, math.Min(1, float64(q.W)))
	s := float32(math.Sqrt(1 - w*w))
	if s < 0.0001 {
		return Vec3{}, 0
	}
	angle := 2 * float32(math.Acos(w))
	return Vec3{q.X / s, q.Y / s, q.Z / s}, angle
}

// WXYZ returns the components in scalar-first order.
func (q Quat) WXYZ() [4]float32 {
	return [4]float32{q.W, q.X, q.Y, q.Z}
}
